package peoplecount

import (
	"math"

	"github.com/pkg/errors"
)

// BoxRect are the pixel coordinates of a bounding box.  Left/Top is the
// (x1, y1) corner and Right/Bottom the (x2, y2) corner.
type BoxRect struct {
	Left   int
	Top    int
	Right  int
	Bottom int
}

// Width of the box in pixels
func (b BoxRect) Width() int {
	return b.Right - b.Left
}

// Height of the box in pixels
func (b BoxRect) Height() int {
	return b.Bottom - b.Top
}

// RawDetection is a single object found by the detector in one frame, before
// any filtering
type RawDetection struct {
	// Class is the line number in the labels file the Model was trained on
	// defining the Class of the detected object
	Class int
	// Confidence is the score of the object detected in the range 0.0 to 1.0
	Confidence float32
	// Box is the bounding box of the object in frame pixel coordinates
	Box BoxRect
}

// validate checks the invariants a detector must honour for every box it
// returns
func (d RawDetection) validate() error {

	conf := float64(d.Confidence)

	if math.IsNaN(conf) || conf < 0 || conf > 1 {
		return errors.Wrapf(ErrMalformedDetection, "confidence %v out of range", d.Confidence)
	}

	if d.Box.Left >= d.Box.Right || d.Box.Top >= d.Box.Bottom {
		return errors.Wrapf(ErrMalformedDetection, "degenerate box %+v", d.Box)
	}

	return nil
}

// PersonDetection is a RawDetection that passed every DetectionFilter
// predicate
type PersonDetection struct {
	RawDetection
	// Height is y2-y1 of the box
	Height int
	// Width is x2-x1 of the box
	Width int
}

// FrameCount is the number of people accepted in one processed frame
type FrameCount struct {
	// Index is the frame index in the source video
	Index int
	// Count is the number of PersonDetections in the frame
	Count int
}

// Detector is the object detection capability consumed by the Counter.
// Implementations are constructed once with their model artifact and reused
// read-only for every frame.  They are not required to be safe for
// concurrent use.
type Detector interface {
	// Infer runs the model on the frame and returns all objects scoring at
	// least confThreshold, after the detector's own Non-Maximum Suppression
	// using iouThreshold
	Infer(frame Frame, confThreshold, iouThreshold float32) ([]RawDetection, error)
	// Close releases the model and runtime resources
	Close() error
}
