package peoplecount

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestOpenVideoMissingFile(t *testing.T) {

	_, err := OpenVideo(filepath.Join(t.TempDir(), "missing.mp4"))

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOpenVideo))
}

// writeVideo encodes n blank frames of h x w to an MJPG avi file
func writeVideo(t *testing.T, n, h, w int) string {

	t.Helper()

	path := filepath.Join(t.TempDir(), "synthetic.avi")

	writer, err := gocv.VideoWriterFile(path, "MJPG", 25, w, h, true)

	if err != nil || !writer.IsOpened() {
		t.Skipf("video writer unavailable: %v", err)
	}

	img := gocv.NewMatWithSize(h, w, gocv.MatTypeCV8UC3)
	defer img.Close()

	for i := 0; i < n; i++ {
		require.NoError(t, writer.Write(img))
	}

	require.NoError(t, writer.Close())

	return path
}

func TestVideoSourceReadsEveryFrame(t *testing.T) {

	path := writeVideo(t, 10, 48, 64)

	src, err := OpenVideo(path)
	require.NoError(t, err)

	h, w := src.Dimensions()
	assert.Equal(t, 48, h)
	assert.Equal(t, 64, w)

	var indexes []int

	for {
		f, err := src.Read()

		if err == io.EOF {
			break
		}

		require.NoError(t, err)
		assert.Equal(t, 48, f.Height)
		assert.Equal(t, 64, f.Width)

		indexes = append(indexes, f.Index)
		f.Close()
	}

	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, indexes)

	require.NoError(t, src.Close())
	require.NoError(t, src.Close())

	_, err = src.Read()
	assert.Equal(t, io.EOF, err)
}
