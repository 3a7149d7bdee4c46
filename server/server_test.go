package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/swdee/go-peoplecount"
	"github.com/swdee/go-peoplecount/store"
)

// stubCounter returns a canned result for any path except missing.mp4
type stubCounter struct {
	calls int
}

func (c *stubCounter) CountPeople(path string) (*peoplecount.Result, error) {

	c.calls++

	switch path {
	case "missing.mp4":
		return nil, errors.Wrap(peoplecount.ErrOpenVideo, path)
	case "broken.mp4":
		return nil, errors.New("runtime failure")
	}

	return &peoplecount.Result{
		RunID:         "run-" + path,
		Path:          path,
		People:        2,
		FramesRead:    10,
		FramesSampled: 4,
		Stats: peoplecount.Stats{
			Counts:   []peoplecount.FrameCount{{0, 2}, {3, 2}, {6, 2}, {9, 2}},
			Median:   2,
			Mean:     2,
			Max:      2,
			Estimate: 2,
		},
	}, nil
}

func (c *stubCounter) Size() int      { return 2 }
func (c *stubCounter) Available() int { return 2 }

func newTestServer(t *testing.T) (*Server, *stubCounter) {

	db, err := store.NewDB(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	c := &stubCounter{}

	return New(c, db, zaptest.NewLogger(t).Sugar()), c
}

func do(s *Server, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestCountAndHistory(t *testing.T) {

	s, c := newTestServer(t)

	rec := do(s, "POST", "/count", `{"video_path":"lobby.mp4"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res peoplecount.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, 2, res.People)
	assert.Equal(t, "run-lobby.mp4", res.RunID)
	assert.Equal(t, 1, c.calls)

	rec = do(s, "GET", "/runs", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var runs []peoplecount.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "lobby.mp4", runs[0].Path)

	rec = do(s, "GET", "/runs/run-lobby.mp4", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Len(t, res.Stats.Counts, 4)

	rec = do(s, "GET", "/runs/run-lobby.mp4/chart", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "2 people")
}

func TestCountErrors(t *testing.T) {

	s, c := newTestServer(t)

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"bad json", `{`, http.StatusBadRequest, "invalid_request"},
		{"no path", `{}`, http.StatusBadRequest, "invalid_request"},
		{"unopenable video", `{"video_path":"missing.mp4"}`, http.StatusUnprocessableEntity, "invalid_video"},
		{"runtime failure", `{"video_path":"broken.mp4"}`, http.StatusInternalServerError, "processing_error"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(s, "POST", "/count", tc.body)
			require.Equal(t, tc.status, rec.Code)

			var e ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
			assert.Equal(t, tc.code, e.Code)
		})
	}

	assert.Equal(t, 2, c.calls)

	rec := do(s, "GET", "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var m map[string]float64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	assert.Equal(t, 2.0, m["runs_total"])
	assert.Equal(t, 2.0, m["runs_failed"])
	assert.Equal(t, 2.0, m["pool_size"])
	assert.Equal(t, 0.0, m["counters_in_use"])
}

func TestRunLookupErrors(t *testing.T) {

	s, _ := newTestServer(t)

	assert.Equal(t, http.StatusNotFound, do(s, "GET", "/runs/nope", "").Code)
	assert.Equal(t, http.StatusNotFound, do(s, "GET", "/runs/nope/chart", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(s, "GET", "/runs?limit=abc", "").Code)

	rec := do(s, "GET", "/runs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestHistoryDisabled(t *testing.T) {

	s := New(&stubCounter{}, nil, nil)

	assert.Equal(t, http.StatusOK, do(s, "POST", "/count", `{"video_path":"lobby.mp4"}`).Code)
	assert.Equal(t, http.StatusNotFound, do(s, "GET", "/runs", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(s, "GET", "/count", "").Code)
}
