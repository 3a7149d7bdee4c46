package peoplecount

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error kinds returned by the package.  Use errors.Is to distinguish between
// them as they are always wrapped with additional context.
var (
	// ErrOpenVideo is returned when the video file can not be opened for
	// decoding
	ErrOpenVideo = errors.New("cannot open video")
	// ErrReadFirstFrame is returned when the video opened but its first frame
	// could not be decoded
	ErrReadFirstFrame = errors.New("cannot read first video frame")
	// ErrModelNotFound is returned by detector constructors when the model
	// artifact does not exist
	ErrModelNotFound = errors.New("model file not found")
	// ErrModelLoad is returned by detector constructors when the model exists
	// but the inference runtime failed to load it
	ErrModelLoad = errors.New("model failed to load")
	// ErrInvalidParams is returned by Params.Validate
	ErrInvalidParams = errors.New("invalid parameters")
	// ErrMalformedDetection is wrapped in a DetectionError when the detector
	// returns a box that breaks the RawDetection invariants
	ErrMalformedDetection = errors.New("malformed detection")
)

// DetectionError records a failed detector invocation for a single frame.
// It never aborts a counting run, the frame is just left out of the
// aggregation.
type DetectionError struct {
	// Index is the frame index in the source video
	Index int
	// Err is the underlying cause
	Err error
}

func (e *DetectionError) Error() string {
	return fmt.Sprintf("frame %d: detection failed: %v", e.Index, e.Err)
}

func (e *DetectionError) Unwrap() error {
	return e.Err
}
