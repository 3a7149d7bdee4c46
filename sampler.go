package peoplecount

// Sampler decides which frames are sent to the detector
type Sampler struct {
	// Stride is the sampling interval, only every Stride'th frame starting
	// at frame 0 is processed
	Stride int
}

// NewSampler returns a Sampler processing every stride'th frame.  A stride
// below 1 processes every frame.
func NewSampler(stride int) Sampler {
	if stride < 1 {
		stride = 1
	}
	return Sampler{Stride: stride}
}

// ShouldProcess reports whether the frame at index should be run through the
// detector
func (s Sampler) ShouldProcess(index int) bool {
	if s.Stride <= 1 {
		return true
	}
	return index%s.Stride == 0
}
