package store

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swdee/go-peoplecount"
)

func result(id string, people int) *peoplecount.Result {
	return &peoplecount.Result{
		RunID:         id,
		Path:          "/videos/" + id + ".mp4",
		People:        people,
		Height:        480,
		Width:         640,
		FramesRead:    10,
		FramesSampled: 4,
		FramesFailed:  1,
		Duration:      1500 * time.Millisecond,
		Stats: peoplecount.Stats{
			Counts:    []peoplecount.FrameCount{{Index: 0, Count: 1}, {Index: 3, Count: 1}, {Index: 9, Count: 5}},
			Median:    1,
			Mean:      7.0 / 3,
			Max:       5,
			Escalated: true,
			Estimate:  people,
		},
	}
}

func newTestDB(t *testing.T) *DB {
	db, err := NewDB(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRecordAndLoadRun(t *testing.T) {

	db := newTestDB(t)

	want := result("a1", 4)
	require.NoError(t, db.RecordRun(want))

	got, err := db.Run("a1")
	require.NoError(t, err)

	assert.Equal(t, want, got)
}

func TestRunNotFound(t *testing.T) {

	_, err := newTestDB(t).Run("missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestRecordDuplicateRun(t *testing.T) {

	db := newTestDB(t)

	require.NoError(t, db.RecordRun(result("dup", 1)))
	assert.Error(t, db.RecordRun(result("dup", 2)))

	// the failed insert left nothing behind
	got, err := db.Run("dup")
	require.NoError(t, err)
	assert.Equal(t, 1, got.People)
	assert.Len(t, got.Stats.Counts, 3)
}

func TestRunsNewestFirst(t *testing.T) {

	db := newTestDB(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, db.RecordRun(result(fmt.Sprintf("run%d", i), i)))
	}

	runs, err := db.Runs(3)
	require.NoError(t, err)
	require.Len(t, runs, 3)

	assert.Equal(t, "run4", runs[0].RunID)
	assert.Equal(t, "run3", runs[1].RunID)
	assert.Equal(t, "run2", runs[2].RunID)
	assert.Empty(t, runs[0].Stats.Counts)

	runs, err = db.Runs(0)
	require.NoError(t, err)
	assert.Len(t, runs, 5)
}
