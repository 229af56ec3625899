// Package dispatch runs a batch of independent jobs with bounded parallelism.
// A failing job is recorded as that job's outcome and never stops its
// siblings; only cancellation of the dispatch context stops scheduling.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"hugin/internal/job"
	"hugin/internal/logging"
	"hugin/internal/types"
)

// DefaultConcurrency is used when a Dispatcher has no positive limit.
const DefaultConcurrency = 4

// JobRunner runs a single job to completion.
type JobRunner interface {
	RunJob(ctx context.Context, j job.Job) ([]types.ClonePair, error)
}

// Status is the final state of one dispatched job.
type Status string

const (
	StatusOK       Status = "ok"
	StatusFailed   Status = "failed"
	StatusCanceled Status = "canceled"
)

// Outcome is the result of one job.
type Outcome struct {
	ID       string
	Entry    job.Entry
	Status   Status
	Pairs    []types.ClonePair
	Err      error
	Started  time.Time
	Duration time.Duration
}

// ErrorString returns the outcome's error message, or "" on success.
func (o Outcome) ErrorString() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// Dispatcher runs job entries through a JobRunner.
type Dispatcher struct {
	Runner      JobRunner
	Concurrency int
	// Sink, if set, receives every outcome as soon as it is known.
	Sink Sink
}

// Run executes entries and returns their outcomes in input order. The
// returned error joins sink failures and the context error, if any; job
// failures are only reported through the outcomes.
func (d *Dispatcher) Run(ctx context.Context, entries []job.Entry) ([]Outcome, error) {
	limit := d.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	logging.Dispatch("dispatching %d jobs (concurrency=%d)", len(entries), limit)
	timer := logging.StartTimer(logging.CategoryDispatch, "dispatch")
	defer timer.StopWithInfo()

	outcomes := make([]Outcome, len(entries))
	sinkErrs := make([]error, len(entries))

	var g errgroup.Group
	g.SetLimit(limit)
	for i, entry := range entries {
		if ctx.Err() != nil {
			outcomes[i] = canceled(entry, ctx.Err())
			sinkErrs[i] = d.record(ctx, outcomes[i])
			continue
		}
		i, entry := i, entry
		g.Go(func() error {
			outcomes[i] = d.runOne(ctx, entry)
			sinkErrs[i] = d.record(ctx, outcomes[i])
			return nil
		})
	}
	_ = g.Wait()

	errs := append(sinkErrs, ctx.Err())
	return outcomes, errors.Join(errs...)
}

func (d *Dispatcher) runOne(ctx context.Context, entry job.Entry) Outcome {
	o := Outcome{
		ID:      uuid.NewString(),
		Entry:   entry,
		Started: time.Now(),
	}
	log := logging.WithRequestID(logging.CategoryDispatch, o.ID).WithField("job", entry.Name)
	audit := logging.AuditWithJob(o.ID, logging.CategoryDispatch)

	switch {
	case entry.Err != nil:
		o.Status = StatusFailed
		o.Err = entry.Err
	case entry.Job == nil:
		o.Status = StatusFailed
		o.Err = fmt.Errorf("job %s has no descriptor", entry.Name)
	case ctx.Err() != nil:
		o.Status = StatusCanceled
		o.Err = ctx.Err()
	default:
		log.Debug("starting")
		audit.JobStart(entry.Name)
		pairs, err := d.Runner.RunJob(ctx, *entry.Job)
		switch {
		case err == nil:
			o.Status = StatusOK
			o.Pairs = pairs
		case ctx.Err() != nil:
			o.Status = StatusCanceled
			o.Err = err
		default:
			o.Status = StatusFailed
			o.Err = err
		}
	}
	o.Duration = time.Since(o.Started)
	audit.JobEnd(entry.Name, string(o.Status), len(o.Pairs), o.Duration, o.Err)

	if o.Err != nil {
		log.Error("%s: %v", o.Status, o.Err)
	} else {
		log.Info("finished with %d clone pairs in %v", len(o.Pairs), o.Duration)
	}
	return o
}

func canceled(entry job.Entry, err error) Outcome {
	return Outcome{
		ID:      uuid.NewString(),
		Entry:   entry,
		Status:  StatusCanceled,
		Err:     err,
		Started: time.Now(),
	}
}

func (d *Dispatcher) record(ctx context.Context, o Outcome) error {
	if d.Sink == nil {
		return nil
	}
	// Outcomes of canceled jobs are still persisted.
	if err := d.Sink.Record(context.WithoutCancel(ctx), o); err != nil {
		logging.DispatchError("failed to record outcome of %s: %v", o.Entry.Name, err)
		return fmt.Errorf("record %s: %w", o.Entry.Name, err)
	}
	return nil
}

// Summary counts outcomes by status.
type Summary struct {
	Total    int
	OK       int
	Failed   int
	Canceled int
	Pairs    int
}

// Summarize tallies outcomes.
func Summarize(outcomes []Outcome) Summary {
	s := Summary{Total: len(outcomes)}
	for _, o := range outcomes {
		switch o.Status {
		case StatusOK:
			s.OK++
		case StatusFailed:
			s.Failed++
		case StatusCanceled:
			s.Canceled++
		}
		s.Pairs += len(o.Pairs)
	}
	return s
}

// AllFailed reports whether there was at least one job and none succeeded.
func (s Summary) AllFailed() bool {
	return s.Total > 0 && s.OK == 0
}
