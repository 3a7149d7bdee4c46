package peoplecount

import (
	"io"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Frame is one decoded video image along with its position in the video
type Frame struct {
	// Mat is the BGR image data
	Mat gocv.Mat
	// Index is the 0-based frame number in the source video
	Index int
	// Height and Width are the image dimensions in pixels
	Height int
	Width  int
}

// Close frees the Mat memory
func (f Frame) Close() error {
	return f.Mat.Close()
}

// FrameSource produces the frames of a video in order
type FrameSource interface {
	// Read returns the next frame, or io.EOF once the stream is exhausted
	Read() (Frame, error)
	// Dimensions returns the frame height and width in pixels
	Dimensions() (height, width int)
	// Close releases the decoder
	Close() error
}

// SourceOpener opens a FrameSource for the given path
type SourceOpener func(path string) (FrameSource, error)

// VideoSource is a FrameSource reading a video file with OpenCV
type VideoSource struct {
	// capture is the OpenCV decoder handle
	capture *gocv.VideoCapture
	// pending holds the first frame when the container could not be rewound
	// after probing dimensions, it is replayed on the first Read
	pending *gocv.Mat
	height  int
	width   int
	// next is the index of the next frame Read will return
	next   int
	closed bool
}

// OpenVideoSource is a SourceOpener backed by OpenVideo
func OpenVideoSource(path string) (FrameSource, error) {
	return OpenVideo(path)
}

// OpenVideo opens the video file at path.  The first frame is decoded to learn
// the frame dimensions and the read position is then reset so the first frame
// is still returned by Read.
func OpenVideo(path string) (*VideoSource, error) {

	capture, err := gocv.VideoCaptureFile(path)

	if err != nil {
		if capture != nil {
			capture.Close()
		}
		return nil, errors.Wrapf(ErrOpenVideo, "%s: %v", path, err)
	}

	if !capture.IsOpened() {
		capture.Close()
		return nil, errors.Wrapf(ErrOpenVideo, "%s", path)
	}

	v := &VideoSource{
		capture: capture,
	}

	first := gocv.NewMat()

	if ok := capture.Read(&first); !ok || first.Empty() {
		first.Close()
		capture.Close()
		return nil, errors.Wrapf(ErrReadFirstFrame, "%s", path)
	}

	v.height = first.Rows()
	v.width = first.Cols()

	// rewind to the start, some containers can not seek in which case the
	// probed frame is kept and replayed
	capture.Set(gocv.VideoCapturePosFrames, 0)

	if capture.Get(gocv.VideoCapturePosFrames) == 0 {
		first.Close()
	} else {
		v.pending = &first
	}

	return v, nil
}

// Read returns the next frame of the video
func (v *VideoSource) Read() (Frame, error) {

	if v.closed {
		return Frame{}, io.EOF
	}

	var img gocv.Mat

	if v.pending != nil {
		img = *v.pending
		v.pending = nil
	} else {
		img = gocv.NewMat()

		// read the next frame from the video
		if ok := v.capture.Read(&img); !ok || img.Empty() {
			// reached last video frame
			img.Close()
			return Frame{}, io.EOF
		}
	}

	f := Frame{
		Mat:    img,
		Index:  v.next,
		Height: img.Rows(),
		Width:  img.Cols(),
	}

	v.next++

	return f, nil
}

// Dimensions returns the height and width of the video frames
func (v *VideoSource) Dimensions() (height, width int) {
	return v.height, v.width
}

// FPS returns the frame rate reported by the container
func (v *VideoSource) FPS() float64 {
	return v.capture.Get(gocv.VideoCaptureFPS)
}

// FrameCount returns the number of frames reported by the container, which
// may be an estimate for some formats
func (v *VideoSource) FrameCount() int {
	return int(v.capture.Get(gocv.VideoCaptureFrameCount))
}

// Close releases the decoder and any buffered frame.  It is safe to call
// more than once.
func (v *VideoSource) Close() error {

	if v.closed {
		return nil
	}

	v.closed = true

	if v.pending != nil {
		v.pending.Close()
		v.pending = nil
	}

	return v.capture.Close()
}
