package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"hugin/internal/dispatch"
	"hugin/internal/job"
	"hugin/internal/store"
	"hugin/internal/types"
)

func TestQueryDBOutput(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "hugin.db")
	s, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	ctx := context.Background()
	runID, err := s.BeginRun(ctx, "/work/session.toml")
	if err != nil {
		t.Fatalf("failed to begin run: %v", err)
	}
	ok := dispatch.Outcome{
		ID:     "a",
		Entry:  job.Entry{Name: "servo", Path: "servo.toml", Job: &job.Job{Project: job.SourceInfo{Location: "MyProject/MyProject.ino"}}},
		Status: dispatch.StatusOK,
		Pairs: []types.ClonePair{types.NewClonePair(
			types.NewCodeSlice(types.NewCodePosition(130, 40), types.NewCodePosition(141, 4)),
			types.NewCodeSlice(types.NewCodePosition(20, 40), types.NewCodePosition(30, 0)),
		)},
		Started: time.Now(),
	}
	failed := dispatch.Outcome{
		ID:      "b",
		Entry:   job.Entry{Name: "broken", Path: "broken.toml"},
		Status:  dispatch.StatusFailed,
		Err:     errors.New("failed to parse job"),
		Started: time.Now(),
	}
	for _, o := range []dispatch.Outcome{ok, failed} {
		if err := s.RecordJob(ctx, runID, o); err != nil {
			t.Fatalf("failed to record job: %v", err)
		}
	}
	if err := s.FinishRun(ctx, runID, dispatch.Summarize([]dispatch.Outcome{ok, failed})); err != nil {
		t.Fatalf("failed to finish run: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}

	var out bytes.Buffer
	if err := queryDB(&out, dbPath, 5); err != nil {
		t.Fatalf("queryDB failed: %v", err)
	}
	output := out.String()

	for _, want := range []string{
		"=== run " + runID,
		"Session: /work/session.toml",
		"(2 jobs, 1 ok, 1 failed)",
		"broken [failed]",
		"error: failed to parse job",
		"servo [ok]",
		"project (130:40)-(141:4) ~ example (20:40)-(30:0)",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}
}

func TestQueryDBEmpty(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "hugin.db")
	s, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	s.Close()

	var out bytes.Buffer
	if err := queryDB(&out, dbPath, 0); err != nil {
		t.Fatalf("queryDB failed: %v", err)
	}
	if !strings.Contains(out.String(), "No runs recorded") {
		t.Errorf("unexpected output: %s", out.String())
	}
}

func TestQueryDBMissingFile(t *testing.T) {
	var out bytes.Buffer
	if err := queryDB(&out, filepath.Join(t.TempDir(), "absent.db"), 5); err == nil {
		t.Fatal("expected an error for a missing database")
	}
}
