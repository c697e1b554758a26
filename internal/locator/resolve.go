package locator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-logr/logr"

	"github.com/gotrs-io/dynamics-e2e/internal/clock"
	"github.com/gotrs-io/dynamics-e2e/internal/settle"
)

// DefaultAttemptTimeout matches the action timeout the suite uses for a single
// readiness wait.
const DefaultAttemptTimeout = 15 * time.Second

// ErrTargetNotResolved is matched by every TargetNotResolvedError.
var ErrTargetNotResolved = errors.New("target not resolved")

// TargetNotResolvedError reports that no candidate matched before the deadline.
type TargetNotResolvedError struct {
	Target     string
	Intent     Intent
	Candidates Candidates
	// GateObserved is the last value the readiness gate reported.
	GateObserved bool
	Passes       int
	LastURL      string
	// LastErr is the last query or gate error seen, if any.
	LastErr error
}

func (e *TargetNotResolvedError) Error() string {
	target := e.Target
	if target == "" {
		target = "target"
	}
	msg := fmt.Sprintf("%s not resolved for %s after %d pass(es) (gate ready=%t, url=%q); tried %s",
		target, e.Intent, e.Passes, e.GateObserved, e.LastURL, Describe(e.Candidates))
	if e.LastErr != nil {
		msg += ": last error: " + e.LastErr.Error()
	}
	return msg
}

func (e *TargetNotResolvedError) Is(target error) bool { return target == ErrTargetNotResolved }

func (e *TargetNotResolvedError) Unwrap() error { return e.LastErr }

// Options tune a resolution.
type Options struct {
	// Target names the logical target in errors and logs.
	Target string
	Intent Intent
	// Gate must hold before candidates are evaluated. Nil means always ready.
	Gate settle.Predicate
	// AttemptTimeout bounds each readiness-gate wait. Defaults to
	// DefaultAttemptTimeout.
	AttemptTimeout time.Duration
	// Deadline bounds the whole resolution. Zero means a single pass.
	Deadline time.Duration

	Clock      clock.Clock
	NewBackOff func() backoff.BackOff
	Logger     logr.Logger
}

// Result is the resolved handle and the candidate it was bound to.
type Result struct {
	Index     int
	Candidate Candidate
	Handle    Element
}

// Resolve returns the earliest candidate with an element that passes the
// intent's actionability checks. The readiness gate is polled before every
// pass; candidates are evaluated once per pass. Resolution only queries the
// surface.
func Resolve(ctx context.Context, s Surface, cs Candidates, opts Options) (Result, error) {
	if len(cs) == 0 {
		return Result{}, fmt.Errorf("resolving %s: empty candidate list", opts.Target)
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real()
	}
	newBackOff := opts.NewBackOff
	if newBackOff == nil {
		newBackOff = settle.DefaultBackOff
	}
	attempt := opts.AttemptTimeout
	if attempt <= 0 {
		attempt = DefaultAttemptTimeout
	}
	gate := opts.Gate
	if gate == nil {
		gate = func(context.Context) (bool, error) { return true, nil }
	}
	waiter := &settle.Waiter{Clock: clk, NewBackOff: newBackOff, Logger: opts.Logger}
	log := opts.Logger.WithValues("target", opts.Target, "intent", opts.Intent.String())

	retry := newBackOff()
	retry.Reset()

	start := clk.Now()
	nfe := &TargetNotResolvedError{Target: opts.Target, Intent: opts.Intent, Candidates: cs}
	for {
		nfe.Passes++

		gateMax := attempt
		if opts.Deadline > 0 {
			if remaining := opts.Deadline - clk.Now().Sub(start); remaining < gateMax {
				gateMax = max(remaining, 0)
			}
		}
		var gateErr error
		recorded := func(ctx context.Context) (bool, error) {
			ok, err := gate(ctx)
			if err != nil {
				gateErr = err
			}
			return ok, err
		}
		ready, err := waiter.WaitNamed(ctx, "readiness gate", recorded, gateMax, settle.Soft)
		if err != nil {
			return Result{}, err
		}
		nfe.GateObserved = ready
		if !ready && gateErr != nil {
			nfe.LastErr = fmt.Errorf("readiness gate: %w", gateErr)
		}

		if ready {
			for i, c := range cs {
				el, err := match(s, c, opts.Intent)
				if err != nil {
					nfe.LastErr = err
					log.V(2).Info("candidate query failed", "index", i, "candidate", c.String(), "err", err.Error())
					continue
				}
				if el != nil {
					log.V(1).Info("resolved", "index", i, "candidate", c.String(), "pass", nfe.Passes)
					return Result{Index: i, Candidate: c, Handle: el}, nil
				}
			}
		}

		elapsed := clk.Now().Sub(start)
		if opts.Deadline <= 0 || elapsed >= opts.Deadline {
			nfe.LastURL = s.URL()
			return Result{}, nfe
		}
		next := retry.NextBackOff()
		if next == backoff.Stop || next <= 0 {
			next = 50 * time.Millisecond
		}
		if remaining := opts.Deadline - elapsed; next > remaining {
			next = remaining
		}
		if err := clk.Sleep(ctx, next); err != nil {
			return Result{}, err
		}
	}
}

// match returns the first element of c that passes the intent, or nil.
func match(s Surface, c Candidate, intent Intent) (Element, error) {
	els, err := s.QueryAll(c.Selector)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", c.Selector, err)
	}
	for _, el := range els {
		if c.Attr != nil {
			v, present, err := el.Attr(c.Attr.Name)
			if err != nil {
				return nil, fmt.Errorf("reading %s on %s: %w", c.Attr.Name, c.Selector, err)
			}
			if !c.Attr.match(v, present) {
				continue
			}
		}
		if c.Name != "" {
			ok, err := hasName(el, c.Name, c.Exact)
			if err != nil {
				return nil, fmt.Errorf("reading name of %s: %w", c.Selector, err)
			}
			if !ok {
				continue
			}
		}
		ok, err := intent.accepts(el)
		if err != nil {
			return nil, fmt.Errorf("checking %s: %w", c.Selector, err)
		}
		if ok {
			return el, nil
		}
	}
	return nil, nil
}

// First is Resolve with a single pass and no gate: the immediate first match.
func First(ctx context.Context, s Surface, cs Candidates, intent Intent) (Result, error) {
	return Resolve(ctx, s, cs, Options{Intent: intent, Logger: logr.Discard()})
}
