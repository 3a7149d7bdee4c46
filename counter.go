package peoplecount

import (
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Result is the outcome of a counting run
type Result struct {
	// RunID uniquely identifies the run in logs and storage
	RunID string `json:"run_id"`
	// Path is the video file counted
	Path string `json:"path"`
	// People is the final estimate
	People int `json:"people"`
	// Height and Width are the video frame dimensions
	Height int `json:"height"`
	Width  int `json:"width"`
	// FramesRead is the number of frames decoded
	FramesRead int `json:"frames_read"`
	// FramesSampled is the number of frames sent to the detector
	FramesSampled int `json:"frames_sampled"`
	// FramesFailed is the number of sampled frames skipped due to a detector
	// error
	FramesFailed int `json:"frames_failed"`
	// Stats are the aggregation statistics
	Stats Stats `json:"stats"`
	// Duration is the wall time of the run
	Duration time.Duration `json:"duration"`
}

// FrameResult is the outcome of running one sampled frame through the
// detector and filter.  Either Err is set or Count and People are.
type FrameResult struct {
	Count  FrameCount
	People []PersonDetection
	Err    *DetectionError
}

// FrameHook is called with every successfully processed frame and the people
// accepted in it.  The frame is closed once the hook returns.
type FrameHook func(frame Frame, people []PersonDetection)

// Counter orchestrates a counting run over a video
type Counter struct {
	// Params are the sampling and filtering configuration
	Params Params
	// detector is the object detection model, shared by all runs and
	// guarded by mu
	detector Detector
	mu       sync.Mutex
	filter   *DetectionFilter
	sampler  Sampler
	open     SourceOpener
	hook     FrameHook
	log      *zap.SugaredLogger
}

// Option customises a Counter
type Option func(c *Counter)

// WithLogger sets the logger used for diagnostics
func WithLogger(log *zap.SugaredLogger) Option {
	return func(c *Counter) {
		if log != nil {
			c.log = log
		}
	}
}

// WithSourceOpener replaces the default OpenCV video decoder
func WithSourceOpener(open SourceOpener) Option {
	return func(c *Counter) {
		if open != nil {
			c.open = open
		}
	}
}

// WithFilter replaces the default DetectionFilter built from Params
func WithFilter(f *DetectionFilter) Option {
	return func(c *Counter) {
		if f != nil {
			c.filter = f
		}
	}
}

// WithFrameHook registers a hook receiving each processed frame, eg: to
// save annotated frames
func WithFrameHook(hook FrameHook) Option {
	return func(c *Counter) {
		c.hook = hook
	}
}

// NewCounter returns a Counter using det for inference.  The detector must
// already be loaded, model errors are surfaced by its constructor before any
// counting takes place.
func NewCounter(det Detector, p Params, opts ...Option) (*Counter, error) {

	if det == nil {
		return nil, errors.New("counter must have a Detector")
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}

	c := &Counter{
		Params:   p,
		detector: det,
		filter:   NewDetectionFilter(p),
		sampler:  NewSampler(p.FrameSkip),
		open:     OpenVideoSource,
		log:      zap.NewNop().Sugar(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Close releases the detector
func (c *Counter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.detector.Close()
}

// CountPeople returns the estimated number of people in the video at path
func (c *Counter) CountPeople(path string) (int, error) {

	res, err := c.Count(path)

	if err != nil {
		return 0, err
	}

	return res.People, nil
}

// Count runs a full counting pass over the video at path and returns the
// estimate with its diagnostics.  It fails only if the video can not be
// opened or its first frame decoded, frames the detector fails on are
// logged and left out.
func (c *Counter) Count(path string) (*Result, error) {

	start := time.Now()

	res := &Result{
		RunID: uuid.NewString(),
		Path:  path,
	}

	log := c.log.With("run", res.RunID)

	src, err := c.open(path)

	if err != nil {
		return nil, err
	}

	defer func() {
		if err := src.Close(); err != nil {
			log.Warnw("error closing video", "path", path, "error", err)
		}
	}()

	res.Height, res.Width = src.Dimensions()

	log.Infow("counting people", "path", path, "height", res.Height,
		"width", res.Width, "frame_skip", c.sampler.Stride)

	c.mu.Lock()
	defer c.mu.Unlock()

	agg := NewAggregator()

	for {
		frame, err := src.Read()

		if err == io.EOF {
			break
		}

		if err != nil {
			// a decoder error mid stream ends the stream, the frames
			// processed so far still produce an estimate
			log.Warnw("stopped reading video", "frame", res.FramesRead, "error", err)
			break
		}

		res.FramesRead++

		if !c.sampler.ShouldProcess(frame.Index) {
			frame.Close()
			continue
		}

		res.FramesSampled++
		fr := c.processFrame(frame)

		if fr.Err == nil && c.hook != nil {
			c.hook(frame, fr.People)
		}

		frame.Close()

		if fr.Err != nil {
			res.FramesFailed++
			log.Warnw("skipping frame", "frame", fr.Err.Index, "error", fr.Err.Err)
			continue
		}

		agg.Add(fr.Count)

		if agg.Len() <= c.Params.LogFrames {
			log.Debugw("frame count", "frame", fr.Count.Index, "people", fr.Count.Count)
		}
	}

	res.Stats = agg.Stats()
	res.People = res.Stats.Estimate
	res.Duration = time.Since(start)

	if agg.Len() == 0 {
		log.Warnw("no frames processed, estimate defaults to 0",
			"frames_read", res.FramesRead, "frames_sampled", res.FramesSampled,
			"frames_failed", res.FramesFailed)
	} else {
		log.Infow("counted people", "people", res.People,
			"median", res.Stats.Median, "mean", res.Stats.Mean,
			"max", res.Stats.Max, "escalated", res.Stats.Escalated,
			"frames_read", res.FramesRead, "frames_processed", agg.Len(),
			"frames_failed", res.FramesFailed, "duration", res.Duration)
	}

	return res, nil
}

// processFrame runs detection and filtering on a single frame.  A detector
// error, a panic in the detector, or a malformed detection all produce a
// DetectionError.
func (c *Counter) processFrame(frame Frame) (fr FrameResult) {

	defer func() {
		if r := recover(); r != nil {
			fr = FrameResult{
				Err: &DetectionError{Index: frame.Index, Err: errors.Errorf("detector panic: %v", r)},
			}
		}
	}()

	raw, err := c.detector.Infer(frame, c.Params.MinConfidence, c.Params.IoUThreshold)

	if err != nil {
		return FrameResult{Err: &DetectionError{Index: frame.Index, Err: err}}
	}

	for _, d := range raw {
		if err := d.validate(); err != nil {
			return FrameResult{Err: &DetectionError{Index: frame.Index, Err: err}}
		}
	}

	people := c.filter.Filter(raw, frame.Height, frame.Width)

	return FrameResult{
		Count:  FrameCount{Index: frame.Index, Count: len(people)},
		People: people,
	}
}
