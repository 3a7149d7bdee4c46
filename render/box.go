package render

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/swdee/go-peoplecount"
)

// PeopleBoxes renders the bounding boxes around the people detected along
// with their confidence score
func PeopleBoxes(img *gocv.Mat, people []peoplecount.PersonDetection,
	font Font, lineThickness int) {

	// keep a record of all box labels for later rendering
	boxLabels := make([]boxLabel, 0, len(people))

	for i, p := range people {

		useClr := boxColors[i%len(boxColors)]

		rect := image.Rect(p.Box.Left, p.Box.Top, p.Box.Right, p.Box.Bottom)
		gocv.Rectangle(img, rect, useClr, lineThickness)

		text := fmt.Sprintf("person %.2f", p.Confidence)

		boxLabels = append(boxLabels, placeLabel(text, useClr, p.Box, font, lineThickness))
	}

	// labels are drawn last so overlapping boxes don't cover them
	for _, box := range boxLabels {
		box.draw(img, font)
	}
}

// CountBanner renders the frame index and number of people in the top left
// corner of the image
func CountBanner(img *gocv.Mat, frameIndex, count int, font Font) {

	text := fmt.Sprintf("frame %d: %d people", frameIndex, count)
	textSize := gocv.GetTextSize(text, font.Face, font.Scale, font.Thickness)

	label := boxLabel{
		rect: image.Rect(0, 0, textSize.X+font.LeftPad+font.RightPad,
			textSize.Y+font.TopPad+font.BottomPad),
		clr:     Black,
		text:    text,
		textPos: image.Pt(font.LeftPad, textSize.Y+font.TopPad),
	}

	label.draw(img, font)
}

// placeLabel calculates where the text label of a box goes according to the
// font alignment
func placeLabel(text string, clr Color, box peoplecount.BoxRect, font Font,
	lineThickness int) boxLabel {

	textSize := gocv.GetTextSize(text, font.Face, font.Scale, font.Thickness)

	var centerX int

	switch font.Alignment {
	case Center:
		centerX = (box.Left + box.Right) / 2

	case Right:
		centerX = box.Right - (textSize.X / 2) - font.RightPad + (lineThickness / 2)

	case Left:
		fallthrough
	default:
		centerX = box.Left + (textSize.X / 2) + font.LeftPad - (lineThickness / 2)
	}

	top := box.Top

	// keep the label inside the image when the box touches the top edge
	if top-textSize.Y-font.TopPad-font.BottomPad < 0 {
		top = textSize.Y + font.TopPad + font.BottomPad
	}

	return boxLabel{
		rect: image.Rect(centerX-textSize.X/2-font.LeftPad,
			top-textSize.Y-font.TopPad-font.BottomPad,
			centerX+textSize.X/2+font.RightPad, top),
		clr:     clr,
		text:    text,
		textPos: image.Pt(centerX-textSize.X/2, top-font.BottomPad),
	}
}

// boxLabel is a text label with a filled background
type boxLabel struct {
	rect    image.Rectangle
	clr     Color
	text    string
	textPos image.Point
}

func (b boxLabel) draw(img *gocv.Mat, font Font) {
	gocv.Rectangle(img, b.rect, b.clr, -1)
	gocv.PutTextWithParams(img, b.text, b.textPos,
		font.Face, font.Scale, font.Color, font.Thickness,
		font.LineType, false)
}
