package watcher

import (
	"context"
	"time"

	"github.com/Invalid27/Factorio-Planner-sub000/pkg/logging"
)

// Debouncer batches rapid events. A batch is released once the input has been
// quiet for quietPeriod, or maxWait after its first event, whichever is first.
type Debouncer[T any] struct {
	input       <-chan T
	output      chan []T
	quietPeriod time.Duration
	maxWait     time.Duration
}

// NewDebouncer creates a new event debouncer
func NewDebouncer[T any](input <-chan T, quietPeriod, maxWait time.Duration) *Debouncer[T] {
	if maxWait < quietPeriod {
		maxWait = quietPeriod
	}
	return &Debouncer[T]{
		input:       input,
		output:      make(chan []T, 10),
		quietPeriod: quietPeriod,
		maxWait:     maxWait,
	}
}

// Start begins processing events with debouncing. The output channel is
// closed after ctx ends or the input closes; pending events are flushed first.
func (d *Debouncer[T]) Start(ctx context.Context) {
	go d.run(ctx)
}

func (d *Debouncer[T]) run(ctx context.Context) {
	defer close(d.output)

	var (
		pending  []T
		quiet    *time.Timer
		deadline *time.Timer
	)

	stop := func() {
		if quiet != nil {
			quiet.Stop()
			quiet = nil
		}
		if deadline != nil {
			deadline.Stop()
			deadline = nil
		}
	}

	flush := func(reason string) {
		stop()
		if len(pending) == 0 {
			return
		}
		logging.Debug("flushing debounced events", "count", len(pending), "reason", reason)
		batch := pending
		pending = nil
		select {
		case d.output <- batch:
		case <-ctx.Done():
		}
	}

	timerC := func(t *time.Timer) <-chan time.Time {
		if t == nil {
			return nil
		}
		return t.C
	}

	for {
		select {
		case <-ctx.Done():
			stop()
			if len(pending) > 0 {
				// Best effort; a reader may already be gone
				select {
				case d.output <- pending:
				default:
				}
			}
			return

		case event, ok := <-d.input:
			if !ok {
				flush("input closed")
				return
			}
			pending = append(pending, event)

			if quiet == nil {
				quiet = time.NewTimer(d.quietPeriod)
			} else {
				if !quiet.Stop() {
					select {
					case <-quiet.C:
					default:
					}
				}
				quiet.Reset(d.quietPeriod)
			}
			if deadline == nil {
				deadline = time.NewTimer(d.maxWait)
			}

		case <-timerC(quiet):
			quiet = nil
			flush("quiet")

		case <-timerC(deadline):
			deadline = nil
			flush("max wait")
		}
	}
}

// Output returns the channel of debounced batches
func (d *Debouncer[T]) Output() <-chan []T {
	return d.output
}
