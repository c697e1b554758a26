// Package settle blocks a flow until an asynchronous UI update shows a positive
// readiness signal or a maximum wait elapses.
package settle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-logr/logr"

	"github.com/gotrs-io/dynamics-e2e/internal/clock"
)

// Mode selects what a timed out wait means for the caller.
type Mode int

const (
	// Soft waits return normally when the signal never appears.
	Soft Mode = iota
	// Hard waits fail with a ReadinessTimeoutError when the signal never appears.
	Hard
)

func (m Mode) String() string {
	if m == Hard {
		return "hard"
	}
	return "soft"
}

// State of a Waiter.
type State int

const (
	Idle State = iota
	Waiting
	Settled
	TimedOut
)

func (s State) String() string {
	switch s {
	case Waiting:
		return "waiting"
	case Settled:
		return "settled"
	case TimedOut:
		return "timed-out"
	default:
		return "idle"
	}
}

// Predicate reports whether the positive readiness signal is present. Errors
// are treated as "not yet".
type Predicate func(ctx context.Context) (bool, error)

// ErrReadinessTimeout is matched by every ReadinessTimeoutError.
var ErrReadinessTimeout = errors.New("readiness timeout")

// ReadinessTimeoutError is returned by hard waits whose signal never appeared.
type ReadinessTimeoutError struct {
	Name    string
	Max     time.Duration
	Elapsed time.Duration
	Polls   int
	// LastErr is the last error returned by the predicate, if any.
	LastErr error
}

func (e *ReadinessTimeoutError) Error() string {
	msg := fmt.Sprintf("readiness timeout: %s not observed within %s (waited %s, %d polls)", e.name(), e.Max, e.Elapsed, e.Polls)
	if e.LastErr != nil {
		msg += ": last error: " + e.LastErr.Error()
	}
	return msg
}

func (e *ReadinessTimeoutError) name() string {
	if e.Name == "" {
		return "signal"
	}
	return e.Name
}

func (e *ReadinessTimeoutError) Is(target error) bool { return target == ErrReadinessTimeout }

func (e *ReadinessTimeoutError) Unwrap() error { return e.LastErr }

// Waiter polls predicates with a backoff policy against a clock.
type Waiter struct {
	Clock clock.Clock
	// NewBackOff returns a fresh polling policy for each wait. Defaults to
	// DefaultBackOff.
	NewBackOff func() backoff.BackOff
	Logger     logr.Logger

	mu    sync.Mutex
	state State
}

// DefaultBackOff polls quickly at first and settles at one poll every 500ms.
func DefaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = 500 * time.Millisecond
	b.MaxElapsedTime = 0
	return b
}

// FixedBackOff polls every interval.
func FixedBackOff(interval time.Duration) func() backoff.BackOff {
	return func() backoff.BackOff { return backoff.NewConstantBackOff(interval) }
}

// New returns a Waiter on the real clock.
func New(logger logr.Logger) *Waiter {
	return &Waiter{Clock: clock.Real(), NewBackOff: DefaultBackOff, Logger: logger}
}

// State returns the state the waiter reached in its most recent wait.
func (w *Waiter) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *Waiter) setState(s State) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
}

// Wait polls fn until it reports true or max elapses. It returns true if the
// signal was observed. In Hard mode a missing signal yields a
// ReadinessTimeoutError, never before max has elapsed. Cancelling ctx aborts
// the wait with ctx.Err().
func (w *Waiter) Wait(ctx context.Context, fn Predicate, max time.Duration, mode Mode) (bool, error) {
	return w.WaitNamed(ctx, "", fn, max, mode)
}

// WaitNamed is Wait with a signal name used in logs and errors.
func (w *Waiter) WaitNamed(ctx context.Context, name string, fn Predicate, max time.Duration, mode Mode) (bool, error) {
	clk := w.Clock
	if clk == nil {
		clk = clock.Real()
	}
	newBackOff := w.NewBackOff
	if newBackOff == nil {
		newBackOff = DefaultBackOff
	}
	b := newBackOff()
	if eb, ok := b.(*backoff.ExponentialBackOff); ok {
		eb.Clock = clk
	}
	b.Reset()

	w.setState(Waiting)
	start := clk.Now()
	var (
		polls   int
		lastErr error
	)
	for {
		if err := ctx.Err(); err != nil {
			w.setState(Idle)
			return false, err
		}
		polls++
		ok, err := fn(ctx)
		if err != nil {
			lastErr = err
			w.Logger.V(2).Info("readiness predicate errored", "signal", name, "poll", polls, "err", err.Error())
		}
		if ok && err == nil {
			w.setState(Settled)
			w.Logger.V(2).Info("settled", "signal", name, "elapsed", clk.Now().Sub(start), "polls", polls)
			return true, nil
		}

		elapsed := clk.Now().Sub(start)
		if elapsed >= max {
			w.setState(TimedOut)
			if mode == Soft {
				w.Logger.V(1).Info("soft wait timed out, proceeding", "signal", name, "max", max)
				return false, nil
			}
			return false, &ReadinessTimeoutError{Name: name, Max: max, Elapsed: elapsed, Polls: polls, LastErr: lastErr}
		}

		next := b.NextBackOff()
		if next == backoff.Stop || next <= 0 {
			next = 50 * time.Millisecond
		}
		if remaining := max - elapsed; next > remaining {
			next = remaining
		}
		if err := clk.Sleep(ctx, next); err != nil {
			w.setState(Idle)
			return false, err
		}
	}
}

// Wait runs a single wait on the real clock with the default backoff.
func Wait(ctx context.Context, fn Predicate, max time.Duration, mode Mode) (bool, error) {
	return New(logr.Discard()).Wait(ctx, fn, max, mode)
}

// All combines predicates; it holds when every predicate holds.
func All(preds ...Predicate) Predicate {
	return func(ctx context.Context) (bool, error) {
		for _, p := range preds {
			ok, err := p(ctx)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	}
}

// Not inverts a predicate. Errors pass through unchanged.
func Not(p Predicate) Predicate {
	return func(ctx context.Context) (bool, error) {
		ok, err := p(ctx)
		if err != nil {
			return false, err
		}
		return !ok, nil
	}
}
