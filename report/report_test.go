package report

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swdee/go-peoplecount"
)

func TestRender(t *testing.T) {

	res := &peoplecount.Result{
		RunID:      "c0ffee",
		Path:       "lobby.mp4",
		People:     4,
		FramesRead: 10,
		Stats: peoplecount.Stats{
			Counts: []peoplecount.FrameCount{{Index: 0, Count: 1}, {Index: 3, Count: 1}, {Index: 6, Count: 1}, {Index: 9, Count: 5}},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, res))

	html := buf.String()
	assert.Contains(t, html, "<html")
	assert.Contains(t, html, "4 people")
	assert.Contains(t, html, "c0ffee")
	assert.Contains(t, html, "average")
}

func TestRenderEmptyRun(t *testing.T) {

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, &peoplecount.Result{RunID: "empty"}))
	assert.Contains(t, buf.String(), "0 people")
}

func TestRenderNil(t *testing.T) {
	assert.Error(t, Render(&bytes.Buffer{}, nil))
}
