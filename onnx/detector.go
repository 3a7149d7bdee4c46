// Package onnx provides a peoplecount.Detector running a YOLOv8 model
// exported to ONNX on the CPU with ONNX Runtime.
package onnx

import (
	"fmt"
	"image"
	"image/color"
	"runtime"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/multierr"

	"github.com/swdee/go-peoplecount"
	"github.com/swdee/go-peoplecount/postprocess"
)

// DefaultInputSize is the square input tensor size of the stock YOLOv8
// exports
const DefaultInputSize = 640

// padColor is the grey the YOLOv8 models were trained with for letterbox
// borders
var padColor = color.NRGBA{R: 114, G: 114, B: 114, A: 255}

var (
	envOnce sync.Once
	envErr  error
)

// InitRuntime loads the ONNX Runtime shared library and initialises the
// process wide environment.  It must be called before NewDetector, later
// calls return the result of the first.
func InitRuntime(libPath string) error {
	envOnce.Do(func() {
		if libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			envErr = errors.Wrapf(peoplecount.ErrModelLoad, "onnxruntime %s: %v", libPath, err)
		}
	})
	return envErr
}

// DestroyRuntime tears down the ONNX Runtime environment once all detectors
// are closed
func DestroyRuntime() error {
	return ort.DestroyEnvironment()
}

// Detector runs YOLOv8 inference in an ONNX Runtime session.  It is not safe
// for concurrent use.
type Detector struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	process *postprocess.YOLOv8
	size    int
	anchors int
}

// Anchors returns the number of YOLOv8 anchor points for a square input of
// the given size, one per cell of the stride 8, 16 and 32 grids
func Anchors(size int) int {
	n := 0
	for _, stride := range []int{8, 16, 32} {
		g := size / stride
		n += g * g
	}
	return n
}

// NewDetector loads the ONNX YOLOv8 model.  size is the square model input
// size, 0 selects DefaultInputSize.  InitRuntime must have been called.
func NewDetector(modelFile string, size int, p postprocess.YOLOv8Params) (*Detector, error) {

	if err := peoplecount.CheckModelFile(modelFile); err != nil {
		return nil, err
	}

	if size <= 0 {
		size = DefaultInputSize
	}

	d := &Detector{
		process: postprocess.NewYOLOv8(p),
		size:    size,
		anchors: Anchors(size),
	}

	options, err := ort.NewSessionOptions()

	if err != nil {
		return nil, errors.Wrapf(peoplecount.ErrModelLoad, "error creating session options: %v", err)
	}

	defer options.Destroy()

	options.SetIntraOpNumThreads(runtime.NumCPU())
	options.SetInterOpNumThreads(1)

	d.input, err = ort.NewEmptyTensor[float32](ort.NewShape(1, 3, int64(size), int64(size)))

	if err != nil {
		return nil, errors.Wrapf(peoplecount.ErrModelLoad, "error creating input tensor: %v", err)
	}

	d.output, err = ort.NewEmptyTensor[float32](ort.NewShape(1, int64(4+p.ObjectClassNum), int64(d.anchors)))

	if err != nil {
		d.input.Destroy()
		return nil, errors.Wrapf(peoplecount.ErrModelLoad, "error creating output tensor: %v", err)
	}

	d.session, err = ort.NewAdvancedSession(
		modelFile,
		[]string{"images"},
		[]string{"output0"},
		[]ort.ArbitraryTensor{d.input},
		[]ort.ArbitraryTensor{d.output},
		options,
	)

	if err != nil {
		d.input.Destroy()
		d.output.Destroy()
		return nil, errors.Wrapf(peoplecount.ErrModelLoad, "%s: %v", modelFile, err)
	}

	return d, nil
}

// Infer implements peoplecount.Detector
func (d *Detector) Infer(frame peoplecount.Frame, confThreshold,
	iouThreshold float32) ([]peoplecount.RawDetection, error) {

	if frame.Mat.Empty() {
		return nil, fmt.Errorf("frame %d is empty", frame.Index)
	}

	img, err := frame.Mat.ToImage()

	if err != nil {
		return nil, fmt.Errorf("convert frame: %w", err)
	}

	lb := d.prepareInput(img)

	if err := d.session.Run(); err != nil {
		return nil, fmt.Errorf("model inference: %w", err)
	}

	return d.process.DetectFloat(d.output.GetData(), d.anchors, lb, confThreshold, iouThreshold)
}

// prepareInput letterboxes img into the input tensor as normalised CHW RGB
func (d *Detector) prepareInput(img image.Image) postprocess.Letterbox {

	b := img.Bounds()
	lb := postprocess.NewLetterbox(b.Dx(), b.Dy(), d.size, d.size)
	resizeW, resizeH := lb.ResizedSize()

	resized := imaging.Resize(img, resizeW, resizeH, imaging.Linear)
	canvas := imaging.New(d.size, d.size, padColor)
	canvas = imaging.Paste(canvas, resized, image.Pt(lb.XPad, lb.YPad))

	FillCHW(d.input.GetData(), canvas, d.size)

	return lb
}

// FillCHW writes the RGB channels of a size x size image into dst in planar
// CHW order scaled to [0,1]
func FillCHW(dst []float32, img *image.NRGBA, size int) {

	channelSize := size * size

	for y := 0; y < size; y++ {
		row := img.Pix[y*img.Stride:]

		for x := 0; x < size; x++ {
			i := y*size + x
			dst[i] = float32(row[x*4]) / 255.0
			dst[channelSize+i] = float32(row[x*4+1]) / 255.0
			dst[channelSize*2+i] = float32(row[x*4+2]) / 255.0
		}
	}
}

// Close destroys the session and its tensors
func (d *Detector) Close() error {
	return multierr.Combine(
		d.session.Destroy(),
		d.input.Destroy(),
		d.output.Destroy(),
	)
}
