package dispatch

import (
	"context"
	"errors"
	"sync"
)

// Sink receives job outcomes. Implementations must be safe for concurrent use.
type Sink interface {
	Record(ctx context.Context, o Outcome) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, o Outcome) error

func (f SinkFunc) Record(ctx context.Context, o Outcome) error { return f(ctx, o) }

// MultiSink records every outcome in each of its sinks, in order.
type MultiSink []Sink

func (m MultiSink) Record(ctx context.Context, o Outcome) error {
	var errs []error
	for _, s := range m {
		if err := s.Record(ctx, o); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Collector keeps outcomes in memory in arrival order.
type Collector struct {
	mu       sync.Mutex
	outcomes []Outcome
}

func (c *Collector) Record(_ context.Context, o Outcome) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outcomes = append(c.outcomes, o)
	return nil
}

// Outcomes returns a copy of what has been recorded so far.
func (c *Collector) Outcomes() []Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Outcome(nil), c.outcomes...)
}
