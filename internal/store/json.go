package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"hugin/internal/dispatch"
	"hugin/internal/job"
	"hugin/internal/types"
)

// JSONResult is the document JSONWriter writes per job.
type JSONResult struct {
	ID         string            `json:"id"`
	JobFile    string            `json:"job_file"`
	Status     dispatch.Status   `json:"status"`
	Error      string            `json:"error,omitempty"`
	Job        *job.Job          `json:"job,omitempty"`
	ClonePairs []types.ClonePair `json:"clone_pairs"`
	Started    time.Time         `json:"started"`
	DurationMs int64             `json:"duration_ms"`
}

// JSONWriter writes each outcome to <Dir>/<job name>.json, replacing any
// previous result of the same job.
type JSONWriter struct {
	Dir string
}

// NewJSONWriter creates dir if needed.
func NewJSONWriter(dir string) (*JSONWriter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create result directory: %w", err)
	}
	return &JSONWriter{Dir: dir}, nil
}

// Record implements dispatch.Sink.
func (w *JSONWriter) Record(_ context.Context, o dispatch.Outcome) error {
	pairs := o.Pairs
	if pairs == nil {
		pairs = []types.ClonePair{}
	}
	data, err := json.MarshalIndent(JSONResult{
		ID:         o.ID,
		JobFile:    o.Entry.Path,
		Status:     o.Status,
		Error:      o.ErrorString(),
		Job:        o.Entry.Job,
		ClonePairs: pairs,
		Started:    o.Started.UTC(),
		DurationMs: o.Duration.Milliseconds(),
	}, "", "  ")
	if err != nil {
		return err
	}

	dest := w.Path(o.Entry.Name)
	tmp := dest + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write result: %w", err)
	}
	return nil
}

// Path returns the file a job's result is written to.
func (w *JSONWriter) Path(name string) string {
	return filepath.Join(w.Dir, name+".json")
}

// ReadJSONResult loads a file written by JSONWriter.
func ReadJSONResult(path string) (*JSONResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r JSONResult
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("invalid result file %s: %w", path, err)
	}
	return &r, nil
}
