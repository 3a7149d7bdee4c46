package postprocess

import (
	"math"
	"sort"
)

// deqntAffineToF32 converts a quantized int8 value back to a float32 using
// the provided zero point and scale
func deqntAffineToF32(qnt int8, zp int32, scale float32) float32 {
	return (float32(qnt) - float32(zp)) * scale
}

// qntF32ToAffine converts a float32 value to an int8 using quantization
// parameters: zero point and scale
func qntF32ToAffine(f32 float32, zp int32, scale float32) int8 {

	dstVal := (f32 / scale) + float32(zp)
	res := clip(dstVal, -128, 127)

	return int8(res)
}

// clip restricts the value x to be within the range min and max and converts
// the result to int
func clip(val, min, max float32) int {

	if val <= min {
		return int(min)
	}

	if val >= max {
		return int(max)
	}

	return int(val)
}

// clampF restricts val to the range [min, max]
func clampF(val, min, max float32) float32 {

	if val < min {
		return min
	}

	if val > max {
		return max
	}

	return val
}

// candidate is a box that scored above the box threshold, in model input
// tensor pixel coordinates
type candidate struct {
	x1, y1, x2, y2 float32
	score          float32
	class          int
}

// nms implements a class aware Non-Maximum Suppression (NMS).  Candidates are
// visited in descending score order and any lower scoring box of the same
// class overlapping a kept box by more than threshold IoU is dropped.  At
// most maxObjects boxes are returned.
func nms(cands []candidate, threshold float32, maxObjects int) []candidate {

	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].score > cands[j].score
	})

	removed := make([]bool, len(cands))
	keep := make([]candidate, 0, len(cands))

	for i := range cands {

		if removed[i] {
			continue
		}

		if maxObjects > 0 && len(keep) >= maxObjects {
			break
		}

		keep = append(keep, cands[i])

		for j := i + 1; j < len(cands); j++ {

			if removed[j] || cands[j].class != cands[i].class {
				continue
			}

			iou := calculateOverlap(cands[i].x1, cands[i].y1, cands[i].x2, cands[i].y2,
				cands[j].x1, cands[j].y1, cands[j].x2, cands[j].y2)

			if iou > threshold {
				removed[j] = true
			}
		}
	}

	return keep
}

// calculateOverlap works out the Intersection of Union (IoU) value of two
// boxes dimensions
func calculateOverlap(xmin0, ymin0, xmax0, ymax0, xmin1, ymin1,
	xmax1, ymax1 float32) float32 {

	w := math.Max(0.0, math.Min(float64(xmax0), float64(xmax1))-math.Max(float64(xmin0), float64(xmin1))+1.0)
	h := math.Max(0.0, math.Min(float64(ymax0), float64(ymax1))-math.Max(float64(ymin0), float64(ymin1))+1.0)
	intersection := w * h

	// area of both rectangles with added 1.0 for inclusive pixel calculation
	area0 := (xmax0 - xmin0 + 1) * (ymax0 - ymin0 + 1)
	area1 := (xmax1 - xmin1 + 1) * (ymax1 - ymin1 + 1)

	union := area0 + area1 - float32(intersection)

	if union <= 0 {
		return 0.0
	}

	return float32(intersection) / union
}

// computeDFL calculates the Distribution Focal Loss (DFL) expectation for
// each of the four box sides
func computeDFL(tensor []float32, dflLen int) [4]float32 {

	var box [4]float32
	expT := make([]float32, dflLen)

	for b := 0; b < 4; b++ {

		expSum := float32(0)
		accSum := float32(0)

		for i := 0; i < dflLen; i++ {
			expT[i] = float32(math.Exp(float64(tensor[i+b*dflLen])))
			expSum += expT[i]
		}

		for i := 0; i < dflLen; i++ {
			accSum += expT[i] / expSum * float32(i)
		}

		box[b] = accSum
	}

	return box
}
