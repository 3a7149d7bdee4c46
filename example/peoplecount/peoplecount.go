package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/pkg/errors"
	"github.com/swdee/go-rknnlite"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/swdee/go-peoplecount"
	"github.com/swdee/go-peoplecount/onnx"
	"github.com/swdee/go-peoplecount/postprocess"
	"github.com/swdee/go-peoplecount/render"
	"github.com/swdee/go-peoplecount/report"
	"github.com/swdee/go-peoplecount/rknn"
	"github.com/swdee/go-peoplecount/server"
	"github.com/swdee/go-peoplecount/store"
)

const (
	// Flags.
	flagRoot          = "root"
	flagBackend       = "backend"
	flagModel         = "model"
	flagONNXLib       = "onnx-lib"
	flagLabels        = "labels"
	flagPoolSize      = "pool-size"
	flagFrameSkip     = "frame-skip"
	flagMinConfidence = "min-confidence"
	flagIoU           = "iou"
	flagMinHeight     = "min-height"
	flagMaxHeight     = "max-height"
	flagMinAspect     = "min-aspect"
	flagMaxAspect     = "max-aspect"
	flagDB            = "db"
	flagChart         = "chart"
	flagAnnotate      = "annotate"
	flagAddr          = "addr"
	flagDebug         = "debug"

	backendRKNN = "rknn"
	backendONNX = "onnx"
)

func envVar(name string) []string {
	return []string{"PEOPLECOUNT_" + name}
}

func main() {

	var logger *zap.SugaredLogger

	defaults := peoplecount.DefaultParams()

	app := &cli.App{
		Name:  "peoplecount",
		Usage: "estimate the number of people in a video",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagRoot,
				Value:   ".",
				Usage:   "deployment root containing the ml model directory",
				EnvVars: envVar("ROOT"),
			},
			&cli.StringFlag{
				Name:    flagBackend,
				Value:   backendRKNN,
				Usage:   "inference backend, rknn or onnx",
				EnvVars: envVar("BACKEND"),
			},
			&cli.StringFlag{
				Name:    flagModel,
				Aliases: []string{"m"},
				Usage:   "model `FILE`, relative paths resolve under <root>/ml (default yolov8n.rknn or yolov8n.onnx)",
				EnvVars: envVar("MODEL"),
			},
			&cli.StringFlag{
				Name:    flagONNXLib,
				Value:   "onnxruntime.so",
				Usage:   "onnxruntime shared library for the onnx backend",
				EnvVars: envVar("ONNX_LIB"),
			},
			&cli.StringFlag{
				Name:    flagLabels,
				Usage:   "labels `FILE` used to resolve the person class by name",
				EnvVars: envVar("LABELS"),
			},
			&cli.IntFlag{
				Name:    flagPoolSize,
				Value:   1,
				Usage:   "number of detectors, use multiples of 3 on the RK3588",
				EnvVars: envVar("POOL_SIZE"),
			},
			&cli.IntFlag{
				Name:    flagFrameSkip,
				Value:   defaults.FrameSkip,
				Usage:   "process every Nth frame",
				EnvVars: envVar("FRAME_SKIP"),
			},
			&cli.Float64Flag{
				Name:    flagMinConfidence,
				Value:   float64(defaults.MinConfidence),
				Usage:   "minimum detection confidence",
				EnvVars: envVar("MIN_CONFIDENCE"),
			},
			&cli.Float64Flag{
				Name:    flagIoU,
				Value:   float64(defaults.IoUThreshold),
				Usage:   "non maximum suppression IoU threshold",
				EnvVars: envVar("IOU_THRESHOLD"),
			},
			&cli.IntFlag{
				Name:    flagMinHeight,
				Value:   defaults.MinHeight,
				Usage:   "minimum person box height in pixels",
				EnvVars: envVar("MIN_HEIGHT"),
			},
			&cli.IntFlag{
				Name:    flagMaxHeight,
				Value:   defaults.MaxHeight,
				Usage:   "maximum person box height in pixels",
				EnvVars: envVar("MAX_HEIGHT"),
			},
			&cli.Float64Flag{
				Name:    flagMinAspect,
				Value:   defaults.MinAspect,
				Usage:   "minimum box width/height ratio",
				EnvVars: envVar("MIN_ASPECT"),
			},
			&cli.Float64Flag{
				Name:    flagMaxAspect,
				Value:   defaults.MaxAspect,
				Usage:   "maximum box width/height ratio",
				EnvVars: envVar("MAX_ASPECT"),
			},
			&cli.StringFlag{
				Name:    flagDB,
				Usage:   "SQLite `FILE` to record runs in",
				EnvVars: envVar("DB"),
			},
			&cli.BoolFlag{
				Name:    flagDebug,
				Usage:   "enable debug logging",
				EnvVars: envVar("DEBUG"),
			},
		},
		Before: func(c *cli.Context) error {
			var (
				l   *zap.Logger
				err error
			)

			if c.Bool(flagDebug) {
				l, err = zap.NewDevelopment()
			} else {
				l, err = zap.NewProduction()
			}

			if err != nil {
				return err
			}

			logger = l.Sugar()
			return nil
		},
		After: func(c *cli.Context) error {
			if logger != nil {
				logger.Sync()
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "count",
				Usage:     "count the people in one or more videos",
				ArgsUsage: "<video> [video...]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  flagChart,
						Usage: "write an HTML chart of the per frame counts to `FILE`, only with a single video",
					},
					&cli.StringFlag{
						Name:  flagAnnotate,
						Usage: "save every processed frame with the people boxes drawn to `DIR`, only with a single video",
					},
				},
				Action: func(c *cli.Context) error {
					return count(c, logger)
				},
			},
			{
				Name:  "serve",
				Usage: "serve the counting API over HTTP",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    flagAddr,
						Value:   "127.0.0.1:8080",
						Usage:   "listen address",
						EnvVars: envVar("ADDR"),
					},
				},
				Action: func(c *cli.Context) error {
					return serve(c, logger)
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// params maps the global flags onto peoplecount.Params
func params(c *cli.Context) (peoplecount.Params, error) {

	p := peoplecount.DefaultParams()
	p.FrameSkip = c.Int(flagFrameSkip)
	p.MinConfidence = float32(c.Float64(flagMinConfidence))
	p.IoUThreshold = float32(c.Float64(flagIoU))
	p.MinHeight = c.Int(flagMinHeight)
	p.MaxHeight = c.Int(flagMaxHeight)
	p.MinAspect = c.Float64(flagMinAspect)
	p.MaxAspect = c.Float64(flagMaxAspect)

	if file := c.String(flagLabels); file != "" {
		labels, err := peoplecount.LoadLabels(file)

		if err != nil {
			return p, err
		}

		if p.PersonClass, err = peoplecount.ClassIndex(labels, "person"); err != nil {
			return p, err
		}
	}

	return p, p.Validate()
}

// newPool loads the model for the selected backend and returns a pool of
// counters along with a cleanup func for the backend runtime
func newPool(c *cli.Context, p peoplecount.Params, logger *zap.SugaredLogger,
	opts ...peoplecount.Option) (*peoplecount.Pool, func(), error) {

	pp := postprocess.YOLOv8COCOParams()
	pp.BoxThreshold = p.MinConfidence
	pp.NMSThreshold = p.IoUThreshold

	var (
		factory peoplecount.DetectorFactory
		cleanup = func() {}
	)

	switch backend := c.String(flagBackend); backend {
	case backendRKNN:
		model, err := modelPath(c, peoplecount.DefaultRKNNModel)

		if err != nil {
			return nil, nil, err
		}

		factory = rknn.NewCoreFactory(model, rknnlite.RK3588, pp)

	case backendONNX:
		model, err := modelPath(c, peoplecount.DefaultONNXModel)

		if err != nil {
			return nil, nil, err
		}

		if err := onnx.InitRuntime(c.String(flagONNXLib)); err != nil {
			return nil, nil, err
		}

		cleanup = func() {
			if err := onnx.DestroyRuntime(); err != nil {
				logger.Warnw("error destroying onnxruntime", "error", err)
			}
		}

		factory = func(int) (peoplecount.Detector, error) {
			return onnx.NewDetector(model, onnx.DefaultInputSize, pp)
		}

	default:
		return nil, nil, errors.Errorf("unknown backend %q, use %s or %s", backend, backendRKNN, backendONNX)
	}

	opts = append(opts, peoplecount.WithLogger(logger))

	pool, err := peoplecount.NewPool(c.Int(flagPoolSize), factory, p, opts...)

	if err != nil {
		cleanup()
		return nil, nil, errors.Wrap(err, "error creating detector pool")
	}

	return pool, cleanup, nil
}

func modelPath(c *cli.Context, def string) (string, error) {

	file := c.String(flagModel)

	if file == "" {
		file = def
	}

	return peoplecount.ModelPath(c.String(flagRoot), file)
}

func openStore(c *cli.Context) (*store.DB, error) {

	path := c.String(flagDB)

	if path == "" {
		return nil, nil
	}

	return store.NewDB(path)
}

func count(c *cli.Context, logger *zap.SugaredLogger) error {

	if c.NArg() == 0 {
		return errors.New("no video given")
	}

	chart := c.String(flagChart)
	annotate := c.String(flagAnnotate)

	if (chart != "" || annotate != "") && c.NArg() > 1 {
		return errors.New("--chart and --annotate need a single video")
	}

	var opts []peoplecount.Option

	if annotate != "" {
		if err := os.MkdirAll(annotate, 0o755); err != nil {
			return errors.Wrap(err, "error creating annotation directory")
		}

		opts = append(opts, peoplecount.WithFrameHook(annotator(annotate, logger)))
	}

	p, err := params(c)

	if err != nil {
		return err
	}

	db, err := openStore(c)

	if err != nil {
		return err
	}

	if db != nil {
		defer db.Close()
	}

	pool, cleanup, err := newPool(c, p, logger, opts...)

	if err != nil {
		return err
	}

	defer cleanup()
	defer pool.Close()

	for _, path := range c.Args().Slice() {
		res, err := pool.CountPeople(path)

		if err != nil {
			return err
		}

		fmt.Printf("%s: %d\n", path, res.People)

		if db != nil {
			if err := db.RecordRun(res); err != nil {
				logger.Warnw("error recording run", "run", res.RunID, "error", err)
			}
		}

		if chart != "" {
			if err := writeChart(chart, res); err != nil {
				return err
			}
		}
	}

	return nil
}

// annotator returns a frame hook saving a copy of each processed frame with
// its people drawn on
func annotator(dir string, logger *zap.SugaredLogger) peoplecount.FrameHook {

	font := render.DefaultFont()

	return func(frame peoplecount.Frame, people []peoplecount.PersonDetection) {

		img := frame.Mat.Clone()
		defer img.Close()

		render.PeopleBoxes(&img, people, font, 2)
		render.CountBanner(&img, frame.Index, len(people), font)

		file := filepath.Join(dir, fmt.Sprintf("frame_%06d.jpg", frame.Index))

		if ok := gocv.IMWrite(file, img); !ok {
			logger.Warnw("error saving annotated frame", "file", file)
		}
	}
}

func writeChart(file string, res *peoplecount.Result) error {

	f, err := os.Create(file)

	if err != nil {
		return errors.Wrap(err, "error creating chart file")
	}

	if err := report.Render(f, res); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}

func serve(c *cli.Context, logger *zap.SugaredLogger) error {

	p, err := params(c)

	if err != nil {
		return err
	}

	db, err := openStore(c)

	if err != nil {
		return err
	}

	var runs server.RunStore

	if db != nil {
		defer db.Close()
		runs = db
	}

	pool, cleanup, err := newPool(c, p, logger)

	if err != nil {
		return err
	}

	defer cleanup()
	defer pool.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.New(pool, runs, logger).ListenAndServe(ctx, c.String(flagAddr))
}
