package peoplecount

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// person returns a detection of the given class and score with a box of w x h
// pixels at the origin
func person(class int, conf float32, w, h int) RawDetection {
	return RawDetection{
		Class:      class,
		Confidence: conf,
		Box:        BoxRect{Left: 10, Top: 20, Right: 10 + w, Bottom: 20 + h},
	}
}

func TestDetectionFilter(t *testing.T) {

	f := NewDetectionFilter(DefaultParams())

	tests := []struct {
		name   string
		det    RawDetection
		accept bool
	}{
		{"plausible standing person", person(0, 0.9, 50, 100), true},
		{"square box", person(0, 0.9, 100, 100), true},
		{"wrong class", person(2, 0.9, 50, 100), false},
		{"below confidence", person(0, 0.2, 50, 100), false},
		{"exactly min confidence", person(0, 0.35, 50, 100), true},
		{"height 10px below floor", person(0, 0.9, 5, 10), false},
		{"height 1000px above ceiling", person(0, 0.9, 500, 1000), false},
		{"exactly min height", person(0, 0.9, 30, 30), true},
		{"exactly max height", person(0, 0.9, 300, 600), true},
		{"width 4x height too wide", person(0, 0.9, 400, 100), false},
		{"width 0.1x height too narrow", person(0, 0.9, 10, 100), false},
		{"width 3x height boundary", person(0, 0.9, 300, 100), true},
		{"width 0.2x height boundary", person(0, 0.9, 20, 100), true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out := f.Filter([]RawDetection{tc.det}, 1080, 1920)

			if tc.accept {
				require.Len(t, out, 1)
				assert.Equal(t, tc.det.Box.Height(), out[0].Height)
				assert.Equal(t, tc.det.Box.Width(), out[0].Width)
			} else {
				assert.Empty(t, out)
			}
		})
	}
}

func TestDetectionFilterNeverBelowMinConfidence(t *testing.T) {

	p := DefaultParams()
	f := NewDetectionFilter(p)

	var raw []RawDetection

	for i := 0; i <= 100; i++ {
		raw = append(raw, person(0, float32(i)/100, 50, 100))
	}

	out := f.Filter(raw, 1080, 1920)

	require.NotEmpty(t, out)

	for _, d := range out {
		assert.GreaterOrEqual(t, d.Confidence, p.MinConfidence)
	}
}

func TestDetectionFilterKeepsOverlaps(t *testing.T) {

	f := NewDetectionFilter(DefaultParams())

	// identical boxes are both counted, deduplication is left to the detector
	raw := []RawDetection{person(0, 0.9, 50, 100), person(0, 0.8, 50, 100)}

	assert.Len(t, f.Filter(raw, 1080, 1920), 2)
}

func TestCustomFilter(t *testing.T) {

	f := NewCustomFilter(ClassPredicate(1))

	raw := []RawDetection{person(0, 0.9, 50, 100), person(1, 0.1, 1, 1000)}
	out := f.Filter(raw, 1080, 1920)

	require.Len(t, out, 1)
	assert.Equal(t, 1, out[0].Class)

	// no predicates accepts everything
	assert.Len(t, NewCustomFilter().Filter(raw, 1080, 1920), 2)
}
