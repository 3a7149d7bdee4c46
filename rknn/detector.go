// Package rknn provides a peoplecount.Detector running a YOLOv8 model on the
// Rockchip NPU through go-rknnlite.
package rknn

import (
	"fmt"
	"image/color"

	"github.com/pkg/errors"
	"github.com/swdee/go-rknnlite"
	"go.uber.org/multierr"
	"gocv.io/x/gocv"

	"github.com/swdee/go-peoplecount"
	"github.com/swdee/go-peoplecount/postprocess"
	"github.com/swdee/go-peoplecount/preprocess"
)

// padColor is the letterbox border colour
var padColor = color.RGBA{R: 0, G: 0, B: 0, A: 255}

// Detector runs YOLOv8 inference on a single NPU runtime.  It is not safe
// for concurrent use, create one Detector per NPU core instead.
type Detector struct {
	rt      *rknnlite.Runtime
	process *postprocess.YOLOv8
	// inputW and inputH are the model input tensor dimensions
	inputW int
	inputH int
	resizer *preprocess.Resizer
	cropImg gocv.Mat
}

// NewDetector loads the RKNN compiled YOLOv8 model and pins it to the given
// NPU core.  A missing model returns peoplecount.ErrModelNotFound, a model
// the runtime rejects returns peoplecount.ErrModelLoad.
func NewDetector(modelFile string, core rknnlite.CoreMask,
	p postprocess.YOLOv8Params) (*Detector, error) {

	if err := peoplecount.CheckModelFile(modelFile); err != nil {
		return nil, err
	}

	rt, err := rknnlite.NewRuntime(modelFile, core)

	if err != nil {
		return nil, errors.Wrapf(peoplecount.ErrModelLoad, "%s: %v", modelFile, err)
	}

	// leave output tensors as int8 for the quantized post processor
	rt.SetWantFloat(false)

	inputAttrs := rt.InputAttrs()

	if len(inputAttrs) == 0 {
		rt.Close()
		return nil, errors.Wrapf(peoplecount.ErrModelLoad, "%s: model has no input tensors", modelFile)
	}

	outputAttrs := rt.OutputAttrs()

	if n := len(outputAttrs); n != 6 && n != 9 {
		rt.Close()
		return nil, errors.Wrapf(peoplecount.ErrModelLoad,
			"%s: expected three YOLOv8 output branches, got %d tensors", modelFile, len(outputAttrs))
	}

	// input tensor is NHWC
	inputH := int(inputAttrs[0].Dims[1])
	inputW := int(inputAttrs[0].Dims[2])

	return &Detector{
		rt:      rt,
		process: postprocess.NewYOLOv8(p),
		inputH:  inputH,
		inputW:  inputW,
		resizer: preprocess.NewResizer(inputW, inputH, padColor),
		cropImg: gocv.NewMat(),
	}, nil
}

// NewCoreFactory returns a peoplecount.DetectorFactory that spreads
// detectors across the given NPU cores, eg: rknnlite.RK3588
func NewCoreFactory(modelFile string, cores []rknnlite.CoreMask,
	p postprocess.YOLOv8Params) peoplecount.DetectorFactory {

	return func(i int) (peoplecount.Detector, error) {

		core := rknnlite.NPUCoreAuto

		if len(cores) > 0 {
			core = cores[i%len(cores)]
		}

		return NewDetector(modelFile, core, p)
	}
}

// Infer implements peoplecount.Detector
func (d *Detector) Infer(frame peoplecount.Frame, confThreshold,
	iouThreshold float32) ([]peoplecount.RawDetection, error) {

	if frame.Mat.Empty() {
		return nil, fmt.Errorf("frame %d is empty", frame.Index)
	}

	lb := d.resizer.LetterBoxResize(frame.Mat, &d.cropImg)

	outputs, err := d.rt.Inference([]gocv.Mat{d.cropImg})

	if err != nil {
		return nil, fmt.Errorf("runtime inferencing failed: %w", err)
	}

	defer outputs.Free()

	branches, err := d.branches(outputs)

	if err != nil {
		return nil, err
	}

	return d.process.DetectQuantized(branches, d.inputH, lb, confThreshold, iouThreshold)
}

// branches groups the runtime outputs into the three YOLOv8 detection heads.
// Each head has a box and score tensor and optionally a score sum tensor.
func (d *Detector) branches(outputs *rknnlite.Outputs) ([]postprocess.Branch, error) {

	attrs := d.rt.OutputAttrs()

	if len(outputs.Output) != len(attrs) {
		return nil, fmt.Errorf("got %d outputs, model defines %d", len(outputs.Output), len(attrs))
	}

	perBranch := len(attrs) / 3
	branches := make([]postprocess.Branch, 3)

	tensor := func(idx int) postprocess.Tensor {
		// output tensors are NCHW
		return postprocess.Tensor{
			Data:  outputs.Output[idx].BufInt,
			ZP:    attrs[idx].ZP,
			Scale: attrs[idx].Scale,
			GridH: int(attrs[idx].Dims[2]),
			GridW: int(attrs[idx].Dims[3]),
		}
	}

	for i := range branches {
		branches[i].Box = tensor(i * perBranch)
		branches[i].Score = tensor(i*perBranch + 1)

		if perBranch == 3 {
			sum := tensor(i*perBranch + 2)
			branches[i].ScoreSum = &sum
		}
	}

	return branches, nil
}

// Close frees the letterbox buffers and unloads the model from the NPU
func (d *Detector) Close() error {
	return multierr.Combine(
		d.resizer.Close(),
		d.cropImg.Close(),
		d.rt.Close(),
	)
}
