package peoplecount

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func aggregate(counts ...int) *Aggregator {
	a := NewAggregator()
	for i, c := range counts {
		a.Add(FrameCount{Index: i * 3, Count: c})
	}
	return a
}

func TestAggregatorEmpty(t *testing.T) {

	a := NewAggregator()

	assert.Equal(t, 0, a.Finalize())

	s := a.Stats()
	assert.Empty(t, s.Counts)
	assert.False(t, s.Escalated)
}

func TestAggregator(t *testing.T) {

	tests := []struct {
		name      string
		counts    []int
		estimate  int
		escalated bool
		median    float64
		mean      float64
		max       float64
	}{
		{"steady", []int{2, 2, 2, 2}, 2, false, 2, 2, 2},
		{"spike escalates", []int{1, 1, 1, 5}, 4, true, 1, 2, 5},
		{"all zero", []int{0, 0, 0}, 0, false, 0, 0, 0},
		{"zeros count in mean", []int{0, 0, 0, 3}, 2, true, 0, 0.75, 3},
		{"within factor", []int{3, 3, 4}, 3, false, 3, 10.0 / 3, 4},
		{"single frame", []int{7}, 7, false, 7, 7, 7},
		{"half rounds up", []int{2, 3}, 3, false, 2.5, 2.5, 3},
		{"escalated blend", []int{1, 1, 4}, 3, true, 1, 2, 4},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := aggregate(tc.counts...).Stats()

			assert.Equal(t, tc.estimate, s.Estimate)
			assert.Equal(t, tc.escalated, s.Escalated)
			assert.InDelta(t, tc.median, s.Median, 1e-9)
			assert.InDelta(t, tc.mean, s.Mean, 1e-9)
			assert.InDelta(t, tc.max, s.Max, 1e-9)
			assert.Len(t, s.Counts, len(tc.counts))
		})
	}
}

func TestAggregatorProperties(t *testing.T) {

	rng := rand.New(rand.NewSource(1))

	for n := 0; n < 500; n++ {

		counts := make([]int, 1+rng.Intn(20))
		sum, max := 0, 0

		for i := range counts {
			counts[i] = rng.Intn(8)
			sum += counts[i]
			if counts[i] > max {
				max = counts[i]
			}
		}

		mean := float64(sum) / float64(len(counts))

		want := int(math.Round(mean))

		if float64(max) > mean*EscalationFactor {
			want = int(math.Round((mean + float64(max)) / 2))
		}

		got := aggregate(counts...).Finalize()

		require.Equal(t, want, got, "counts %v", counts)
		require.GreaterOrEqual(t, got, 0)
	}
}

func TestAggregatorClampsNegative(t *testing.T) {
	assert.Equal(t, 0, aggregate(-3).Finalize())
}

func TestAggregatorStatsDoesNotReorder(t *testing.T) {

	a := aggregate(5, 1, 3)
	a.Stats()

	s := a.Stats()
	require.Len(t, s.Counts, 3)
	assert.Equal(t, 5, s.Counts[0].Count)
	assert.Equal(t, 1, s.Counts[1].Count)
	assert.Equal(t, 3, s.Counts[2].Count)
}
