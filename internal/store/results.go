package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"hugin/internal/dispatch"
	"hugin/internal/types"
)

// JobRecord is one persisted job outcome.
type JobRecord struct {
	ID       string
	RunID    string
	Name     string
	File     string
	Project  string
	Example  string
	Library  string
	Status   dispatch.Status
	Error    string
	Pairs    int
	Started  time.Time
	Duration time.Duration
}

// RecordJob stores an outcome and its clone pairs under runID.
func (s *Store) RecordJob(ctx context.Context, runID string, o dispatch.Outcome) error {
	var project, example, library string
	if j := o.Entry.Job; j != nil {
		project = j.Project.Location
		example = j.LibraryInfo.ExampleEntry(j.ExampleSketch)
		library = j.LibraryInfo.String()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO jobs (id, run_id, name, job_file, project, example, library, status, error, pairs, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, runID, o.Entry.Name, o.Entry.Path, project, example, library,
		string(o.Status), o.ErrorString(), len(o.Pairs),
		o.Started.UTC().Format(timeLayout), o.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("failed to record job %s: %w", o.Entry.Name, err)
	}

	if len(o.Pairs) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO clone_pairs (job_id, seq,
				project_start_line, project_start_column, project_end_line, project_end_column,
				example_start_line, example_start_column, example_end_line, example_end_column,
				project_score, example_score)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare clone pair insert: %w", err)
		}
		defer stmt.Close()

		for i, p := range o.Pairs {
			var projectScore, exampleScore sql.NullFloat64
			if p.Scores != nil {
				projectScore = sql.NullFloat64{Float64: p.Scores.ProjectPart, Valid: true}
				exampleScore = sql.NullFloat64{Float64: p.Scores.ExampleSketchPart, Valid: true}
			}
			_, err := stmt.ExecContext(ctx, o.ID, i,
				p.Project.Start.Line, p.Project.Start.Column, p.Project.End.Line, p.Project.End.Column,
				p.ExampleSketch.Start.Line, p.ExampleSketch.Start.Column, p.ExampleSketch.End.Line, p.ExampleSketch.End.Column,
				projectScore, exampleScore)
			if err != nil {
				return fmt.Errorf("failed to record clone pair %d of %s: %w", i, o.Entry.Name, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit job %s: %w", o.Entry.Name, err)
	}
	return nil
}

// Jobs returns the jobs of a run ordered by name.
func (s *Store) Jobs(ctx context.Context, runID string) ([]JobRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, name, job_file, project, example, library, status, error, pairs, started_at, duration_ms
		FROM jobs WHERE run_id = ? ORDER BY name, started_at`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	var records []JobRecord
	for rows.Next() {
		var (
			r          JobRecord
			status     string
			started    string
			durationMs int64
		)
		if err := rows.Scan(&r.ID, &r.RunID, &r.Name, &r.File, &r.Project, &r.Example, &r.Library,
			&status, &r.Error, &r.Pairs, &started, &durationMs); err != nil {
			return nil, err
		}
		r.Status = dispatch.Status(status)
		if r.Started, err = time.Parse(timeLayout, started); err != nil {
			return nil, fmt.Errorf("job %s: bad start time: %w", r.ID, err)
		}
		r.Duration = time.Duration(durationMs) * time.Millisecond
		records = append(records, r)
	}
	return records, rows.Err()
}

// ClonePairs returns a job's clone pairs in their original order.
func (s *Store) ClonePairs(ctx context.Context, jobID string) ([]types.ClonePair, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT project_start_line, project_start_column, project_end_line, project_end_column,
			example_start_line, example_start_column, example_end_line, example_end_column,
			project_score, example_score
		FROM clone_pairs WHERE job_id = ? ORDER BY seq`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to query clone pairs: %w", err)
	}
	defer rows.Close()

	pairs := []types.ClonePair{}
	for rows.Next() {
		var (
			p                          types.ClonePair
			projectScore, exampleScore sql.NullFloat64
		)
		if err := rows.Scan(
			&p.Project.Start.Line, &p.Project.Start.Column, &p.Project.End.Line, &p.Project.End.Column,
			&p.ExampleSketch.Start.Line, &p.ExampleSketch.Start.Column, &p.ExampleSketch.End.Line, &p.ExampleSketch.End.Column,
			&projectScore, &exampleScore); err != nil {
			return nil, err
		}
		if projectScore.Valid || exampleScore.Valid {
			p.Scores = &types.Scores{ProjectPart: projectScore.Float64, ExampleSketchPart: exampleScore.Float64}
		}
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}

// Sink returns a dispatch.Sink that records outcomes under runID.
func (s *Store) Sink(runID string) dispatch.Sink {
	return dispatch.SinkFunc(func(ctx context.Context, o dispatch.Outcome) error {
		return s.RecordJob(ctx, runID, o)
	})
}
