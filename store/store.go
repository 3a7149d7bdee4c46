// Package store keeps a history of counting runs in a SQLite database
package store

import (
	"database/sql"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/swdee/go-peoplecount"
)

// ErrNotFound is returned by Run when no run has the requested ID
var ErrNotFound = errors.New("run not found")

type DB struct {
	*sql.DB
}

// NewDB opens or creates the database at path.  Use ":memory:" for a
// throwaway store.
func NewDB(path string) (*DB, error) {

	db, err := sql.Open("sqlite", path)

	if err != nil {
		return nil, errors.Wrapf(err, "error opening database %s", path)
	}

	// sqlite allows a single writer, an in memory database also exists per
	// connection
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			path TEXT NOT NULL,
			people INTEGER NOT NULL,
			height INTEGER,
			width INTEGER,
			frames_read INTEGER,
			frames_sampled INTEGER,
			frames_failed INTEGER,
			median DOUBLE,
			mean DOUBLE,
			max DOUBLE,
			escalated BOOLEAN,
			duration_ns BIGINT,
			timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS frame_counts (
			run_id TEXT NOT NULL,
			frame_index INTEGER NOT NULL,
			people INTEGER NOT NULL,
			PRIMARY KEY (run_id, frame_index),
			FOREIGN KEY(run_id) REFERENCES runs(run_id)
		);
	`)

	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "error creating schema")
	}

	return &DB{db}, nil
}

// RecordRun saves the result and its per frame counts
func (db *DB) RecordRun(res *peoplecount.Result) error {

	tx, err := db.Begin()

	if err != nil {
		return errors.Wrap(err, "error starting transaction")
	}

	defer tx.Rollback()

	s := res.Stats

	_, err = tx.Exec(`INSERT INTO runs (run_id, path, people, height, width,
		frames_read, frames_sampled, frames_failed, median, mean, max,
		escalated, duration_ns) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.RunID, res.Path, res.People, res.Height, res.Width,
		res.FramesRead, res.FramesSampled, res.FramesFailed,
		s.Median, s.Mean, s.Max, s.Escalated, int64(res.Duration))

	if err != nil {
		return errors.Wrapf(err, "error recording run %s", res.RunID)
	}

	stmt, err := tx.Prepare("INSERT INTO frame_counts (run_id, frame_index, people) VALUES (?, ?, ?)")

	if err != nil {
		return errors.Wrap(err, "error preparing frame insert")
	}

	defer stmt.Close()

	for _, fc := range s.Counts {
		if _, err := stmt.Exec(res.RunID, fc.Index, fc.Count); err != nil {
			return errors.Wrapf(err, "error recording frame %d", fc.Index)
		}
	}

	return tx.Commit()
}

const runColumns = `run_id, path, people, height, width, frames_read,
	frames_sampled, frames_failed, median, mean, max, escalated, duration_ns`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*peoplecount.Result, error) {

	var (
		res peoplecount.Result
		dur int64
	)

	err := row.Scan(&res.RunID, &res.Path, &res.People, &res.Height,
		&res.Width, &res.FramesRead, &res.FramesSampled, &res.FramesFailed,
		&res.Stats.Median, &res.Stats.Mean, &res.Stats.Max,
		&res.Stats.Escalated, &dur)

	if err != nil {
		return nil, err
	}

	res.Duration = time.Duration(dur)
	res.Stats.Estimate = res.People

	return &res, nil
}

// Runs returns the most recent runs, newest first.  Per frame counts are
// not loaded.
func (db *DB) Runs(limit int) ([]*peoplecount.Result, error) {

	if limit <= 0 {
		limit = 50
	}

	rows, err := db.Query("SELECT "+runColumns+" FROM runs ORDER BY rowid DESC LIMIT ?", limit)

	if err != nil {
		return nil, errors.Wrap(err, "error querying runs")
	}

	defer rows.Close()

	var runs []*peoplecount.Result

	for rows.Next() {
		res, err := scanRun(rows)

		if err != nil {
			return nil, errors.Wrap(err, "error reading run")
		}

		runs = append(runs, res)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return runs, nil
}

// Run returns the run with the given ID including its per frame counts
func (db *DB) Run(id string) (*peoplecount.Result, error) {

	res, err := scanRun(db.QueryRow("SELECT "+runColumns+" FROM runs WHERE run_id = ?", id))

	if err == sql.ErrNoRows {
		return nil, errors.Wrap(ErrNotFound, id)
	}

	if err != nil {
		return nil, errors.Wrapf(err, "error reading run %s", id)
	}

	rows, err := db.Query("SELECT frame_index, people FROM frame_counts WHERE run_id = ? ORDER BY frame_index", id)

	if err != nil {
		return nil, errors.Wrapf(err, "error querying frames of run %s", id)
	}

	defer rows.Close()

	for rows.Next() {
		var fc peoplecount.FrameCount

		if err := rows.Scan(&fc.Index, &fc.Count); err != nil {
			return nil, errors.Wrap(err, "error reading frame count")
		}

		res.Stats.Counts = append(res.Stats.Counts, fc)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return res, nil
}
