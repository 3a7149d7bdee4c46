// Package preprocess prepares video frames for model input tensors
package preprocess

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/swdee/go-peoplecount/postprocess"
)

// Resizer converts frames into the RGB letterboxed layout expected by the
// model input tensor.  The scaling is recalculated whenever the frame size
// changes so a single Resizer can serve videos of differing resolution.
type Resizer struct {
	// destWidth is the width to scale to
	destWidth int
	// destHeight is the height to scale to
	destHeight int
	// padColor is the letterbox border colour
	padColor color.RGBA
	// lb is the letterbox geometry for the current frame size
	lb postprocess.Letterbox
	// resize dimensions
	resizeW int
	resizeH int
	// Mats used during the resize process
	rgbMat  gocv.Mat
	tempMat gocv.Mat
}

// NewResizer returns a resizer used for scaling an image to the needed
// dimensions for input tensor size
func NewResizer(destWidth, destHeight int, padColor color.RGBA) *Resizer {
	return &Resizer{
		destWidth:  destWidth,
		destHeight: destHeight,
		padColor:   padColor,
		rgbMat:     gocv.NewMat(),
		tempMat:    gocv.NewMat(),
	}
}

// Close frees memory allocated during resize process
func (r *Resizer) Close() error {
	r.rgbMat.Close()
	return r.tempMat.Close()
}

// preCalc the scaling factors for the source dimensions
func (r *Resizer) preCalc(srcWidth, srcHeight int) {
	r.lb = postprocess.NewLetterbox(srcWidth, srcHeight, r.destWidth, r.destHeight)
	r.resizeW, r.resizeH = r.lb.ResizedSize()
}

// LetterBoxResize converts the BGR src image to RGB and resizes it to the
// dimensions needed for the input tensor size whilst maintaining image
// aspect.  It returns the letterbox geometry for mapping boxes back onto src.
func (r *Resizer) LetterBoxResize(src gocv.Mat, dest *gocv.Mat) postprocess.Letterbox {

	if r.lb.SrcWidth != src.Cols() || r.lb.SrcHeight != src.Rows() {
		r.preCalc(src.Cols(), src.Rows())
	}

	gocv.CvtColor(src, &r.rgbMat, gocv.ColorBGRToRGB)

	gocv.Resize(r.rgbMat, &r.tempMat, image.Pt(r.resizeW, r.resizeH),
		0, 0, gocv.InterpolationArea)

	gocv.CopyMakeBorder(r.tempMat, dest, r.lb.YPad, r.destHeight-r.resizeH-r.lb.YPad,
		r.lb.XPad, r.destWidth-r.resizeW-r.lb.XPad, gocv.BorderConstant, r.padColor)

	return r.lb
}
