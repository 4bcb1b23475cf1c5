// Package journal persists a local history of pipeline runs.
//
// The journal is backed by SQLite via database/sql. It is advisory: a
// journal failure never fails a release, callers log and continue.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"time"

	// SQLite driver registration.
	_ "modernc.org/sqlite"

	"github.com/slipway-dev/slipway/types"
)

// ErrRunNotFound is returned when a run ID has no journal entry.
var ErrRunNotFound = errors.New("run not found")

// JobRecord is one platform job's outcome within a run.
type JobRecord struct {
	Platform string
	Status   types.JobStatus
	Artifact string
	Error    string
}

// RunRecord is one pipeline run.
type RunRecord struct {
	ID         string
	Version    types.Version
	Outcome    types.OutcomeStatus
	StartedAt  time.Time
	FinishedAt time.Time
	Jobs       []JobRecord
}

// Journal is a run history backed by SQLite.
type Journal struct {
	db *sql.DB
}

// Open opens (creating if needed) the journal database at path and
// initializes the schema.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	j := &Journal{db: db}
	if err := j.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) initSchema() error {
	_, err := j.db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			version TEXT NOT NULL,
			outcome TEXT NOT NULL,
			started_at INTEGER NOT NULL,
			finished_at INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS jobs (
			run_id TEXT NOT NULL REFERENCES runs(id),
			platform TEXT NOT NULL,
			status TEXT NOT NULL,
			artifact TEXT,
			error TEXT,
			PRIMARY KEY (run_id, platform)
		);`,
	)
	return err
}

// Append records a completed run and its per-platform job outcomes.
func (j *Journal) Append(ctx context.Context, run *RunRecord) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, version, outcome, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?)`,
		run.ID,
		string(run.Version),
		string(run.Outcome),
		run.StartedAt.UnixMilli(),
		run.FinishedAt.UnixMilli(),
	)
	if err != nil {
		return err
	}

	for _, job := range run.Jobs {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO jobs (run_id, platform, status, artifact, error)
			VALUES (?, ?, ?, ?, ?)`,
			run.ID,
			job.Platform,
			string(job.Status),
			job.Artifact,
			job.Error,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Recent returns up to limit runs, newest first, with their job outcomes.
func (j *Journal) Recent(ctx context.Context, limit int) ([]RunRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, version, outcome, started_at, finished_at
		FROM runs
		ORDER BY started_at DESC, id DESC
		LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var run RunRecord
		var version, outcome string
		var started, finished int64
		if err := rows.Scan(&run.ID, &version, &outcome, &started, &finished); err != nil {
			return nil, err
		}
		run.Version = types.Version(version)
		run.Outcome = types.OutcomeStatus(outcome)
		run.StartedAt = time.UnixMilli(started)
		run.FinishedAt = time.UnixMilli(finished)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range runs {
		jobs, err := j.jobsForRun(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Jobs = jobs
	}
	return runs, nil
}

// Get returns one run by ID.
func (j *Journal) Get(ctx context.Context, id string) (*RunRecord, error) {
	row := j.db.QueryRowContext(ctx, `
		SELECT id, version, outcome, started_at, finished_at
		FROM runs
		WHERE id = ?`,
		id,
	)

	var run RunRecord
	var version, outcome string
	var started, finished int64
	if err := row.Scan(&run.ID, &version, &outcome, &started, &finished); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	run.Version = types.Version(version)
	run.Outcome = types.OutcomeStatus(outcome)
	run.StartedAt = time.UnixMilli(started)
	run.FinishedAt = time.UnixMilli(finished)

	jobs, err := j.jobsForRun(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	run.Jobs = jobs
	return &run, nil
}

func (j *Journal) jobsForRun(ctx context.Context, runID string) ([]JobRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT platform, status, artifact, error
		FROM jobs
		WHERE run_id = ?
		ORDER BY platform`,
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []JobRecord
	for rows.Next() {
		var job JobRecord
		var status string
		var artifact, jobErr sql.NullString
		if err := rows.Scan(&job.Platform, &status, &artifact, &jobErr); err != nil {
			return nil, err
		}
		job.Status = types.JobStatus(status)
		job.Artifact = artifact.String
		job.Error = jobErr.String
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}
