package peoplecount

import (
	"github.com/pkg/errors"
)

// PersonClass is the class index of "person" in the COCO label set
const PersonClass = 0

// Params defines the tunables for sampling, filtering and logging a counting
// run.  JSON names match the option names used by the service API.
type Params struct {
	// FrameSkip is the sampling stride, every Nth frame is sent to the
	// detector.  Larger values trade accuracy for speed
	FrameSkip int `json:"frame_skip"`
	// MinConfidence is both the inference time score cutoff passed to the
	// detector and the minimum score a person box must have to be counted
	MinConfidence float32 `json:"min_confidence"`
	// IoUThreshold is the Non-Maximum Suppression threshold passed to the
	// detector
	IoUThreshold float32 `json:"iou_threshold"`
	// PersonClass is the class index counted as a person
	PersonClass int `json:"person_class"`
	// MinHeight and MaxHeight bound the plausible box height in pixels
	MinHeight int `json:"min_height"`
	MaxHeight int `json:"max_height"`
	// MaxAspect rejects boxes wider than MaxAspect*height, likely several
	// people merged into one box
	MaxAspect float64 `json:"max_aspect"`
	// MinAspect rejects boxes narrower than MinAspect*height, likely poles
	// and other thin vertical artifacts
	MinAspect float64 `json:"min_aspect"`
	// LogFrames is the number of processed frames whose counts are logged
	// individually
	LogFrames int `json:"log_frames"`
}

// DefaultParams returns an instance of Params configured with the values
// tuned for a YOLOv8 model trained on the COCO dataset featuring:
// - Frame Skip: 3
// - Min Confidence: 0.35
// - IoU Threshold: 0.45
// - Person height: 30 to 600 pixels
// - Aspect ratio (width/height): 0.2 to 3.0
func DefaultParams() Params {
	return Params{
		FrameSkip:     3,
		MinConfidence: 0.35,
		IoUThreshold:  0.45,
		PersonClass:   PersonClass,
		MinHeight:     30,
		MaxHeight:     600,
		MaxAspect:     3.0,
		MinAspect:     0.2,
		LogFrames:     10,
	}
}

// Validate checks the params are usable
func (p Params) Validate() error {

	switch {
	case p.FrameSkip < 1:
		return errors.Wrapf(ErrInvalidParams, "frame_skip must be at least 1, got %d", p.FrameSkip)
	case p.MinConfidence < 0 || p.MinConfidence > 1:
		return errors.Wrapf(ErrInvalidParams, "min_confidence must be within [0,1], got %v", p.MinConfidence)
	case p.IoUThreshold <= 0 || p.IoUThreshold > 1:
		return errors.Wrapf(ErrInvalidParams, "iou_threshold must be within (0,1], got %v", p.IoUThreshold)
	case p.PersonClass < 0:
		return errors.Wrapf(ErrInvalidParams, "person_class must not be negative, got %d", p.PersonClass)
	case p.MinHeight < 0 || p.MaxHeight < p.MinHeight:
		return errors.Wrapf(ErrInvalidParams, "height range [%d,%d] is invalid", p.MinHeight, p.MaxHeight)
	case p.MinAspect < 0 || p.MaxAspect < p.MinAspect:
		return errors.Wrapf(ErrInvalidParams, "aspect range [%v,%v] is invalid", p.MinAspect, p.MaxAspect)
	case p.LogFrames < 0:
		return errors.Wrapf(ErrInvalidParams, "log_frames must not be negative, got %d", p.LogFrames)
	}

	return nil
}
