package peoplecount

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSamplerStride3(t *testing.T) {

	s := NewSampler(3)

	var processed []int

	for i := 0; i < 12; i++ {
		if s.ShouldProcess(i) {
			processed = append(processed, i)
		}
	}

	assert.Equal(t, []int{0, 3, 6, 9}, processed)
}

func TestSamplerStride(t *testing.T) {

	tests := []struct {
		stride int
		index  int
		want   bool
	}{
		{1, 0, true},
		{1, 7, true},
		{0, 7, true},
		{-2, 5, true},
		{5, 0, true},
		{5, 4, false},
		{5, 10, true},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, NewSampler(tc.stride).ShouldProcess(tc.index),
			"stride %d index %d", tc.stride, tc.index)
	}
}
