// Package runstore persists tracking runs in SQLite: the parameters
// each invocation ran with, aggregate statistics over its computed
// velocities, and the gzip-compressed field itself.
package runstore

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/flct"
)

// Run is one persisted tracking invocation.
type Run struct {
	RunID      string
	Note       string
	NX, NY     int
	Params     flct.Params
	DurationMs int64
	Summary    FieldSummary
	FieldBlob  []byte
	CreatedAt  int64
}

// Store provides persistence for tracking runs.
type Store struct {
	db *sql.DB
}

// Open opens the run ledger at path, creating the schema if needed.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS flct_runs (
			run_id        TEXT PRIMARY KEY,
			note          TEXT,
			nx            INTEGER,
			ny            INTEGER,
			deltat        DOUBLE,
			deltas        DOUBLE,
			sigma         DOUBLE,
			thresh        DOUBLE,
			absthresh     INTEGER,
			biascor       INTEGER,
			skip          INTEGER,
			poff          INTEGER,
			qoff          INTEGER,
			interp        INTEGER,
			kr            DOUBLE,
			pc            INTEGER,
			latmin        DOUBLE,
			latmax        DOUBLE,
			duration_ms   BIGINT,
			computed_frac DOUBLE,
			mean_vx       DOUBLE,
			mean_vy       DOUBLE,
			std_vx        DOUBLE,
			std_vy        DOUBLE,
			max_abs_vx    DOUBLE,
			max_abs_vy    DOUBLE,
			field_blob    BLOB,
			created_at    BIGINT
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create runs schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Insert persists a new run. If RunID is empty a UUID is generated; a
// zero CreatedAt is filled with the current time.
func (s *Store) Insert(run *Run) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.CreatedAt == 0 {
		run.CreatedAt = time.Now().UnixNano()
	}
	_, err := s.db.Exec(`
		INSERT INTO flct_runs (
			run_id, note, nx, ny, deltat, deltas, sigma,
			thresh, absthresh, biascor, skip, poff, qoff, interp,
			kr, pc, latmin, latmax, duration_ms,
			computed_frac, mean_vx, mean_vy, std_vx, std_vy, max_abs_vx, max_abs_vy,
			field_blob, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.Note, run.NX, run.NY, run.Params.DeltaT, run.Params.DeltaS, run.Params.Sigma,
		run.Params.Thresh, run.Params.AbsThresh, run.Params.BiasCorrect,
		run.Params.Skip, run.Params.POff, run.Params.QOff, run.Params.Interpolate,
		run.Params.KR, run.Params.PlateCarree, run.Params.LatMin, run.Params.LatMax, run.DurationMs,
		run.Summary.ComputedFrac, run.Summary.MeanVx, run.Summary.MeanVy,
		run.Summary.StdVx, run.Summary.StdVy, run.Summary.MaxAbsVx, run.Summary.MaxAbsVy,
		run.FieldBlob, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// List returns the most recent runs, newest first, without their field
// blobs.
func (s *Store) List(limit int) ([]*Run, error) {
	rows, err := s.db.Query(`
		SELECT run_id, note, nx, ny, deltat, deltas, sigma,
		       thresh, absthresh, biascor, skip, poff, qoff, interp,
		       kr, pc, latmin, latmax, duration_ms,
		       computed_frac, mean_vx, mean_vy, std_vx, std_vy, max_abs_vx, max_abs_vy,
		       created_at
		FROM flct_runs
		ORDER BY created_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Get returns a single run by ID, including its field blob.
func (s *Store) Get(runID string) (*Run, error) {
	row := s.db.QueryRow(`
		SELECT run_id, note, nx, ny, deltat, deltas, sigma,
		       thresh, absthresh, biascor, skip, poff, qoff, interp,
		       kr, pc, latmin, latmax, duration_ms,
		       computed_frac, mean_vx, mean_vy, std_vx, std_vy, max_abs_vx, max_abs_vy,
		       created_at, field_blob
		FROM flct_runs
		WHERE run_id = ?`, runID)

	var r Run
	err := row.Scan(
		&r.RunID, &r.Note, &r.NX, &r.NY, &r.Params.DeltaT, &r.Params.DeltaS, &r.Params.Sigma,
		&r.Params.Thresh, &r.Params.AbsThresh, &r.Params.BiasCorrect,
		&r.Params.Skip, &r.Params.POff, &r.Params.QOff, &r.Params.Interpolate,
		&r.Params.KR, &r.Params.PlateCarree, &r.Params.LatMin, &r.Params.LatMax, &r.DurationMs,
		&r.Summary.ComputedFrac, &r.Summary.MeanVx, &r.Summary.MeanVy,
		&r.Summary.StdVx, &r.Summary.StdVy, &r.Summary.MaxAbsVx, &r.Summary.MaxAbsVy,
		&r.CreatedAt, &r.FieldBlob,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("run %s not found", runID)
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	return &r, nil
}

// Delete removes a run by ID.
func (s *Store) Delete(runID string) error {
	result, err := s.db.Exec(`DELETE FROM flct_runs WHERE run_id = ?`, runID)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}

// scanRun scans a run row from a sql.Rows cursor (blob excluded).
func scanRun(rows *sql.Rows) (*Run, error) {
	var r Run
	err := rows.Scan(
		&r.RunID, &r.Note, &r.NX, &r.NY, &r.Params.DeltaT, &r.Params.DeltaS, &r.Params.Sigma,
		&r.Params.Thresh, &r.Params.AbsThresh, &r.Params.BiasCorrect,
		&r.Params.Skip, &r.Params.POff, &r.Params.QOff, &r.Params.Interpolate,
		&r.Params.KR, &r.Params.PlateCarree, &r.Params.LatMin, &r.Params.LatMax, &r.DurationMs,
		&r.Summary.ComputedFrac, &r.Summary.MeanVx, &r.Summary.MeanVy,
		&r.Summary.StdVx, &r.Summary.StdVy, &r.Summary.MaxAbsVx, &r.Summary.MaxAbsVy,
		&r.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan run row: %w", err)
	}
	return &r, nil
}
