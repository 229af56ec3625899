package store

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hugin/internal/dispatch"
	"hugin/internal/job"
)

func TestJSONWriter(t *testing.T) {
	dir := t.TempDir() + "/results"
	w, err := NewJSONWriter(dir)
	require.NoError(t, err)

	ok := okOutcome()
	require.NoError(t, w.Record(context.Background(), ok))

	r, err := ReadJSONResult(w.Path("servo"))
	require.NoError(t, err)
	assert.Equal(t, "job-ok", r.ID)
	assert.Equal(t, dispatch.StatusOK, r.Status)
	assert.Empty(t, r.Error)
	assert.Equal(t, int64(1500), r.DurationMs)
	require.NotNil(t, r.Job)
	assert.Equal(t, "Servo", r.Job.LibraryInfo.Name)
	if diff := cmp.Diff(ok.Pairs, r.ClonePairs); diff != "" {
		t.Errorf("clone pairs mismatch (-want +got):\n%s", diff)
	}

	leftovers, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, leftovers, 1)
}

func TestJSONWriterFailedJob(t *testing.T) {
	w, err := NewJSONWriter(t.TempDir())
	require.NoError(t, err)

	o := dispatch.Outcome{
		ID:     "x",
		Entry:  job.Entry{Name: "broken", Path: "broken.toml"},
		Status: dispatch.StatusFailed,
		Err:    errors.New("could not open example sketch source"),
	}
	require.NoError(t, w.Record(context.Background(), o))

	data, err := os.ReadFile(w.Path("broken"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"clone_pairs": []`)
	assert.NotContains(t, string(data), `"job":`)

	r, err := ReadJSONResult(w.Path("broken"))
	require.NoError(t, err)
	assert.Equal(t, "could not open example sketch source", r.Error)
	assert.Nil(t, r.Job)
}

func TestReadJSONResultInvalid(t *testing.T) {
	path := t.TempDir() + "/bad.json"
	require.NoError(t, os.WriteFile(path, []byte("{"), 0644))
	_, err := ReadJSONResult(path)
	assert.ErrorContains(t, err, "invalid result file")
}
