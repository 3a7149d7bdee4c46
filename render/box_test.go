package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gocv.io/x/gocv"

	"github.com/swdee/go-peoplecount"
)

func TestPeopleBoxesDrawsOnFrame(t *testing.T) {

	img := gocv.NewMatWithSize(240, 320, gocv.MatTypeCV8UC3)
	defer img.Close()

	people := []peoplecount.PersonDetection{{
		RawDetection: peoplecount.RawDetection{
			Confidence: 0.87,
			Box:        peoplecount.BoxRect{Left: 100, Top: 2, Right: 150, Bottom: 200},
		},
		Height: 198,
		Width:  50,
	}}

	PeopleBoxes(&img, people, DefaultFont(), 2)
	CountBanner(&img, 3, len(people), DefaultFont())

	gray := gocv.NewMat()
	defer gray.Close()

	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)
	assert.Greater(t, gocv.CountNonZero(gray), 0)

	// outside the box and banner is untouched
	assert.Equal(t, uint8(0), img.GetVecbAt(230, 310)[0])
}

func TestPlaceLabelStaysInImage(t *testing.T) {

	font := DefaultFont()
	box := peoplecount.BoxRect{Left: 10, Top: 0, Right: 60, Bottom: 100}

	l := placeLabel("person 0.90", White, box, font, 2)

	assert.GreaterOrEqual(t, l.rect.Min.Y, 0)
	assert.Greater(t, l.rect.Max.X, l.rect.Min.X)
}
