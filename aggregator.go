package peoplecount

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// EscalationFactor is how far the peak count must exceed the mean before the
// estimate is pulled towards the peak
const EscalationFactor = 1.3

// Stats are the diagnostic statistics of an aggregation
type Stats struct {
	// Counts are the per frame counts in the order they were added
	Counts []FrameCount
	Median float64
	Mean   float64
	Max    float64
	// Escalated is true when Max exceeded Mean*EscalationFactor and the
	// estimate was blended towards Max
	Escalated bool
	// Estimate is the final people count
	Estimate int
}

// Aggregator collects the FrameCount of every processed frame and reduces
// them into a single estimate
type Aggregator struct {
	counts []FrameCount
}

// NewAggregator returns an empty Aggregator
func NewAggregator() *Aggregator {
	return &Aggregator{
		counts: make([]FrameCount, 0),
	}
}

// Add records the count of a processed frame
func (a *Aggregator) Add(fc FrameCount) {
	if fc.Count < 0 {
		fc.Count = 0
	}
	a.counts = append(a.counts, fc)
}

// Len returns the number of frames added
func (a *Aggregator) Len() int {
	return len(a.counts)
}

// Finalize returns the people count estimate.  With no frames it returns 0.
func (a *Aggregator) Finalize() int {
	return a.Stats().Estimate
}

// Stats computes the estimate along with the statistics it was derived from.
//
// The baseline is the mean count over all processed frames rounded half away
// from zero.  When the peak exceeds the mean by EscalationFactor the estimate
// becomes the rounded midpoint of mean and peak instead.
func (a *Aggregator) Stats() Stats {

	s := Stats{
		Counts: append([]FrameCount(nil), a.counts...),
	}

	if len(a.counts) == 0 {
		return s
	}

	vals := make([]float64, len(a.counts))

	for i, fc := range a.counts {
		vals[i] = float64(fc.Count)
	}

	s.Mean = stat.Mean(vals, nil)
	s.Max = floats.Max(vals)
	s.Median = median(vals)

	estimate := s.Mean

	if s.Max > s.Mean*EscalationFactor {
		estimate = (s.Mean + s.Max) / 2
		s.Escalated = true
	}

	s.Estimate = int(math.Round(estimate))

	return s
}

// median of vals, averaging the two middle values for even lengths.  vals
// is sorted in place.
func median(vals []float64) float64 {

	sort.Float64s(vals)
	n := len(vals)

	if n%2 == 1 {
		return vals[n/2]
	}

	return (vals[n/2-1] + vals[n/2]) / 2
}
