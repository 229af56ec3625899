package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"hugin/internal/job"
	"hugin/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeRunner runs jobs by project location.
type fakeRunner struct {
	mu      sync.Mutex
	calls   []string
	fn      func(ctx context.Context, location string) ([]types.ClonePair, error)
	running atomic.Int32
	peak    atomic.Int32
}

func (f *fakeRunner) RunJob(ctx context.Context, j job.Job) ([]types.ClonePair, error) {
	n := f.running.Add(1)
	defer f.running.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	f.mu.Lock()
	f.calls = append(f.calls, j.Project.Location)
	f.mu.Unlock()
	if f.fn == nil {
		return nil, nil
	}
	return f.fn(ctx, j.Project.Location)
}

func entry(name string) job.Entry {
	return job.Entry{
		Name: name,
		Path: name + ".toml",
		Job:  &job.Job{Project: job.SourceInfo{Location: name}},
	}
}

var pair = types.NewClonePair(
	types.NewCodeSlice(types.NewCodePosition(1, 0), types.NewCodePosition(4, 2)),
	types.NewCodeSlice(types.NewCodePosition(10, 0), types.NewCodePosition(13, 2)),
)

func TestRunOrderAndStatus(t *testing.T) {
	runner := &fakeRunner{fn: func(_ context.Context, location string) ([]types.ClonePair, error) {
		switch location {
		case "b":
			return nil, errors.New("detector exploded")
		case "c":
			time.Sleep(5 * time.Millisecond)
			return []types.ClonePair{pair, pair}, nil
		}
		return []types.ClonePair{}, nil
	}}
	broken := job.Entry{Name: "d", Path: "d.toml", Err: errors.New("failed to parse job")}

	d := &Dispatcher{Runner: runner, Concurrency: 2}
	outcomes, err := d.Run(context.Background(), []job.Entry{entry("a"), entry("b"), entry("c"), broken})
	require.NoError(t, err)
	require.Len(t, outcomes, 4)

	assert.Equal(t, "a", outcomes[0].Entry.Name)
	assert.Equal(t, StatusOK, outcomes[0].Status)
	assert.NotNil(t, outcomes[0].Pairs)
	assert.Empty(t, outcomes[0].Pairs)

	assert.Equal(t, StatusFailed, outcomes[1].Status)
	assert.EqualError(t, outcomes[1].Err, "detector exploded")
	assert.Equal(t, "detector exploded", outcomes[1].ErrorString())

	assert.Equal(t, StatusOK, outcomes[2].Status)
	assert.Len(t, outcomes[2].Pairs, 2)
	assert.Positive(t, outcomes[2].Duration)

	assert.Equal(t, StatusFailed, outcomes[3].Status)
	assert.ErrorContains(t, outcomes[3].Err, "failed to parse job")

	assert.ElementsMatch(t, []string{"a", "b", "c"}, runner.calls)

	ids := map[string]bool{}
	for _, o := range outcomes {
		assert.NotEmpty(t, o.ID)
		ids[o.ID] = true
	}
	assert.Len(t, ids, 4)

	s := Summarize(outcomes)
	assert.Equal(t, Summary{Total: 4, OK: 2, Failed: 2, Pairs: 2}, s)
	assert.False(t, s.AllFailed())
}

func TestRunRespectsConcurrency(t *testing.T) {
	runner := &fakeRunner{fn: func(context.Context, string) ([]types.ClonePair, error) {
		time.Sleep(10 * time.Millisecond)
		return nil, nil
	}}
	entries := make([]job.Entry, 8)
	for i := range entries {
		entries[i] = entry(string(rune('a' + i)))
	}

	d := &Dispatcher{Runner: runner, Concurrency: 3}
	_, err := d.Run(context.Background(), entries)
	require.NoError(t, err)
	assert.LessOrEqual(t, runner.peak.Load(), int32(3))
	assert.Len(t, runner.calls, 8)
}

func TestRunCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runner := &fakeRunner{fn: func(ctx context.Context, _ string) ([]types.ClonePair, error) {
		cancel()
		return nil, ctx.Err()
	}}
	collector := &Collector{}

	d := &Dispatcher{Runner: runner, Concurrency: 1, Sink: collector}
	outcomes, err := d.Run(ctx, []job.Entry{entry("a"), entry("b"), entry("c")})
	assert.ErrorIs(t, err, context.Canceled)

	require.Len(t, outcomes, 3)
	for _, o := range outcomes {
		assert.Equal(t, StatusCanceled, o.Status, o.Entry.Name)
		assert.ErrorIs(t, o.Err, context.Canceled)
	}
	assert.Equal(t, []string{"a"}, runner.calls)
	assert.Len(t, collector.Outcomes(), 3)
	assert.True(t, Summarize(outcomes).AllFailed())
}

func TestRunSinks(t *testing.T) {
	first := &Collector{}
	second := &Collector{}
	var failing atomic.Int32
	sink := MultiSink{
		first,
		SinkFunc(func(_ context.Context, o Outcome) error {
			if o.Entry.Name == "b" {
				failing.Add(1)
				return errors.New("disk full")
			}
			return nil
		}),
		second,
	}

	d := &Dispatcher{Runner: &fakeRunner{}, Sink: sink}
	outcomes, err := d.Run(context.Background(), []job.Entry{entry("a"), entry("b")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record b: disk full")

	for _, o := range outcomes {
		assert.Equal(t, StatusOK, o.Status)
	}
	assert.Len(t, first.Outcomes(), 2)
	assert.Len(t, second.Outcomes(), 2)
	assert.Equal(t, int32(1), failing.Load())
}

func TestRunEmpty(t *testing.T) {
	d := &Dispatcher{Runner: &fakeRunner{}}
	outcomes, err := d.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, outcomes)
	assert.False(t, Summarize(outcomes).AllFailed())
}
