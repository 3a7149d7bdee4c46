package postprocess

import (
	"fmt"

	"github.com/swdee/go-peoplecount"
)

// YOLOv8 defines the struct for YOLOv8 model inference post processing
type YOLOv8 struct {
	// Params are the Model configuration parameters
	Params YOLOv8Params
}

// YOLOv8Params defines the struct containing the YOLOv8 parameters to use
// for post processing operations
type YOLOv8Params struct {
	// BoxThreshold is the minimum probability score required for a bounding box
	// region to be considered for processing
	BoxThreshold float32
	// NMSThreshold is the Non-Maximum Suppression threshold used for defining
	// the maximum allowed Intersection Over Union (IoU) between two
	// bounding boxes for both to be kept
	NMSThreshold float32
	// ObjectClassNum is the number of different object classes the Model has
	// been trained with
	ObjectClassNum int
	// MaxObjectNumber is the maximum number of objects detected that can be
	// returned
	MaxObjectNumber int
}

// YOLOv8COCOParams returns an instance of YOLOv8Params configured with
// default values for a Model trained on the COCO dataset featuring:
// - Object Classes: 80
// - Box Threshold: 0.35
// - NMS Threshold: 0.45
// - Maximum Object Number: 128
func YOLOv8COCOParams() YOLOv8Params {
	return YOLOv8Params{
		BoxThreshold:    0.35,
		NMSThreshold:    0.45,
		ObjectClassNum:  80,
		MaxObjectNumber: 128,
	}
}

// NewYOLOv8 returns an instance of the YOLOv8 post processor
func NewYOLOv8(p YOLOv8Params) *YOLOv8 {
	return &YOLOv8{
		Params: p,
	}
}

// Letterbox describes how a source frame was scaled and padded into the
// model input tensor, it is used to map boxes back to frame coordinates
type Letterbox struct {
	// Scale is the factor applied to the source frame
	Scale float32
	// XPad and YPad are the padding added on the left and top
	XPad int
	YPad int
	// SrcWidth and SrcHeight are the source frame dimensions
	SrcWidth  int
	SrcHeight int
}

// NewLetterbox calculates the letterbox scaling of a srcW x srcH frame into a
// dstW x dstH tensor preserving aspect ratio
func NewLetterbox(srcW, srcH, dstW, dstH int) Letterbox {

	scaleW := float32(dstW) / float32(srcW)
	scaleH := float32(dstH) / float32(srcH)

	lb := Letterbox{
		Scale:     scaleH,
		SrcWidth:  srcW,
		SrcHeight: srcH,
	}

	resizeW, resizeH := dstW, dstH

	if scaleW < scaleH {
		lb.Scale = scaleW
		resizeH = int(float32(srcH) * lb.Scale)
	} else {
		resizeW = int(float32(srcW) * lb.Scale)
	}

	lb.XPad = (dstW - resizeW) / 2
	lb.YPad = (dstH - resizeH) / 2

	return lb
}

// ResizedSize returns the dimensions of the frame inside the tensor before
// padding
func (l Letterbox) ResizedSize() (width, height int) {
	return int(float32(l.SrcWidth) * l.Scale), int(float32(l.SrcHeight) * l.Scale)
}

// toFrame maps a box in tensor coordinates back to the source frame,
// returning false if nothing of the box remains inside the frame
func (l Letterbox) toFrame(c candidate) (peoplecount.BoxRect, bool) {

	w := float32(l.SrcWidth)
	h := float32(l.SrcHeight)

	box := peoplecount.BoxRect{
		Left:   int(clampF((c.x1-float32(l.XPad))/l.Scale, 0, w)),
		Top:    int(clampF((c.y1-float32(l.YPad))/l.Scale, 0, h)),
		Right:  int(clampF((c.x2-float32(l.XPad))/l.Scale, 0, w)),
		Bottom: int(clampF((c.y2-float32(l.YPad))/l.Scale, 0, h)),
	}

	return box, box.Right > box.Left && box.Bottom > box.Top
}

// thresholds returns the per call thresholds, falling back to Params for
// zero values
func (y *YOLOv8) thresholds(box, nms float32) (float32, float32) {
	if box <= 0 {
		box = y.Params.BoxThreshold
	}
	if nms <= 0 {
		nms = y.Params.NMSThreshold
	}
	return box, nms
}

// collate runs NMS on the candidates and converts them to frame coordinates
func (y *YOLOv8) collate(cands []candidate, nmsThresh float32, lb Letterbox) []peoplecount.RawDetection {

	kept := nms(cands, nmsThresh, y.Params.MaxObjectNumber)
	dets := make([]peoplecount.RawDetection, 0, len(kept))

	for _, c := range kept {
		box, ok := lb.toFrame(c)

		if !ok {
			continue
		}

		dets = append(dets, peoplecount.RawDetection{
			Class:      c.class,
			Confidence: clampF(c.score, 0, 1),
			Box:        box,
		})
	}

	return dets
}

// Tensor is a quantized int8 output tensor in NCHW layout
type Tensor struct {
	Data []int8
	// ZP and Scale are the affine quantization parameters
	ZP    int32
	Scale float32
	// GridH and GridW are the spatial dimensions of the tensor
	GridH int
	GridW int
}

// Branch holds the output tensors of one YOLOv8 detection head as exported
// for the RKNN toolkit: the DFL box tensor, the class score tensor and an
// optional score sum tensor for quick filtering
type Branch struct {
	Box      Tensor
	Score    Tensor
	ScoreSum *Tensor
}

// DetectQuantized decodes the int8 outputs of a YOLOv8 model compiled for the
// RKNN toolkit.  inputH is the model input tensor height used to derive each
// branch stride.
func (y *YOLOv8) DetectQuantized(branches []Branch, inputH int, lb Letterbox,
	boxThresh, nmsThresh float32) ([]peoplecount.RawDetection, error) {

	boxThresh, nmsThresh = y.thresholds(boxThresh, nmsThresh)

	cands := make([]candidate, 0)

	for i, br := range branches {

		gridLen := br.Box.GridH * br.Box.GridW

		if gridLen == 0 || len(br.Box.Data)%(4*gridLen) != 0 {
			return nil, fmt.Errorf("branch %d: box tensor size %d does not match grid %dx%d",
				i, len(br.Box.Data), br.Box.GridH, br.Box.GridW)
		}

		if len(br.Score.Data) < y.Params.ObjectClassNum*gridLen {
			return nil, fmt.Errorf("branch %d: score tensor size %d too small for %d classes",
				i, len(br.Score.Data), y.Params.ObjectClassNum)
		}

		// distribution focal loss (DFL)
		dflLen := len(br.Box.Data) / gridLen / 4
		stride := inputH / br.Box.GridH

		cands = y.processStride(br, gridLen, stride, dflLen, boxThresh, cands)
	}

	return y.collate(cands, nmsThresh, lb), nil
}

// processStride decodes the candidates of a single branch
func (y *YOLOv8) processStride(br Branch, gridLen, stride, dflLen int,
	boxThresh float32, cands []candidate) []candidate {

	scoreThresI8 := qntF32ToAffine(boxThresh, br.Score.ZP, br.Score.Scale)

	var scoreSumThresI8 int8

	if br.ScoreSum != nil {
		scoreSumThresI8 = qntF32ToAffine(boxThresh, br.ScoreSum.ZP, br.ScoreSum.Scale)
	}

	beforeDFL := make([]float32, 4*dflLen)

	for i := 0; i < br.Box.GridH; i++ {
		for j := 0; j < br.Box.GridW; j++ {

			offset := i*br.Box.GridW + j

			// quick filtering using score sum
			if br.ScoreSum != nil && br.ScoreSum.Data[offset] < scoreSumThresI8 {
				continue
			}

			maxClassID := -1
			maxScore := int8(-br.Score.ZP)

			for c := 0; c < y.Params.ObjectClassNum; c++ {
				s := br.Score.Data[offset+c*gridLen]

				if s > scoreThresI8 && s > maxScore {
					maxScore = s
					maxClassID = c
				}
			}

			if maxClassID < 0 {
				continue
			}

			for k := 0; k < dflLen*4; k++ {
				beforeDFL[k] = deqntAffineToF32(br.Box.Data[offset+k*gridLen], br.Box.ZP, br.Box.Scale)
			}

			box := computeDFL(beforeDFL, dflLen)

			cands = append(cands, candidate{
				x1:    (-box[0] + float32(j) + 0.5) * float32(stride),
				y1:    (-box[1] + float32(i) + 0.5) * float32(stride),
				x2:    (box[2] + float32(j) + 0.5) * float32(stride),
				y2:    (box[3] + float32(i) + 0.5) * float32(stride),
				score: deqntAffineToF32(maxScore, br.Score.ZP, br.Score.Scale),
				class: maxClassID,
			})
		}
	}

	return cands
}

// DetectFloat decodes the float output of a YOLOv8 model exported to ONNX.
// The output has shape [1, 4+classes, anchors] where the first four rows are
// the box centre x, centre y, width and height in input tensor pixels and
// the remaining rows are the per class scores.
func (y *YOLOv8) DetectFloat(output []float32, anchors int, lb Letterbox,
	boxThresh, nmsThresh float32) ([]peoplecount.RawDetection, error) {

	boxThresh, nmsThresh = y.thresholds(boxThresh, nmsThresh)

	rows := 4 + y.Params.ObjectClassNum

	if anchors <= 0 || len(output) != rows*anchors {
		return nil, fmt.Errorf("unexpected output length: got %d, want %d", len(output), rows*anchors)
	}

	cands := make([]candidate, 0)

	for a := 0; a < anchors; a++ {

		maxClassID := -1
		maxScore := float32(0)

		for c := 0; c < y.Params.ObjectClassNum; c++ {
			s := output[(4+c)*anchors+a]

			if s >= boxThresh && (maxClassID < 0 || s > maxScore) {
				maxScore = s
				maxClassID = c
			}
		}

		if maxClassID < 0 {
			continue
		}

		cx := output[a]
		cy := output[anchors+a]
		w := output[2*anchors+a]
		h := output[3*anchors+a]

		cands = append(cands, candidate{
			x1:    cx - w/2,
			y1:    cy - h/2,
			x2:    cx + w/2,
			y2:    cy + h/2,
			score: maxScore,
			class: maxClassID,
		})
	}

	return y.collate(cands, nmsThresh, lb), nil
}
