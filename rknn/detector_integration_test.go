//go:build integration
// +build integration

package rknn

import (
	"os"
	"testing"

	"github.com/swdee/go-rknnlite"
	"gocv.io/x/gocv"

	"github.com/swdee/go-peoplecount"
	"github.com/swdee/go-peoplecount/postprocess"
)

func TestInferImage(t *testing.T) {

	modelFile := os.Getenv("RKNN_MODEL")

	if modelFile == "" {
		t.Fatalf("No Model file provided in RKNN_MODEL")
	}

	imgFile := os.Getenv("RKNN_IMAGE")

	if imgFile == "" {
		t.Fatalf("No Image file provided in RKNN_IMAGE")
	}

	det, err := NewDetector(modelFile, rknnlite.NPUCoreAuto, postprocess.YOLOv8COCOParams())

	if err != nil {
		t.Fatalf("NewDetector failed: %v", err)
	}

	defer det.Close()

	img := gocv.IMRead(imgFile, gocv.IMReadColor)

	if img.Empty() {
		t.Fatalf("Error reading image from: %s", imgFile)
	}

	defer img.Close()

	frame := peoplecount.Frame{Mat: img, Height: img.Rows(), Width: img.Cols()}

	dets, err := det.Infer(frame, 0.35, 0.45)

	if err != nil {
		t.Fatalf("Infer error: %v", err)
	}

	if len(dets) == 0 {
		t.Fatalf("expected detections in %s", imgFile)
	}

	for i, d := range dets {

		if d.Confidence < 0.35 || d.Confidence > 1 {
			t.Errorf("detection %d: confidence %v out of [0.35,1]", i, d.Confidence)
		}

		if d.Box.Left < 0 || d.Box.Top < 0 || d.Box.Right > frame.Width || d.Box.Bottom > frame.Height {
			t.Errorf("detection %d: box %+v outside frame %dx%d", i, d.Box, frame.Width, frame.Height)
		}
	}
}
