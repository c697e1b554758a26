// Package components holds page objects for the model-driven app, the portal
// and the public-file site. Every target is an ordered candidate list resolved
// through the locator package.
package components

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-logr/logr"

	"github.com/gotrs-io/dynamics-e2e/internal/clock"
	"github.com/gotrs-io/dynamics-e2e/internal/locator"
	"github.com/gotrs-io/dynamics-e2e/internal/settle"
)

// Page is the surface page objects act on.
type Page interface {
	locator.Surface
	Press(key string) error
}

// XrmWaiter blocks until the client API is ready after a navigation.
type XrmWaiter interface {
	WaitForXrmReady(ctx context.Context) error
}

// Actor resolves targets on a page and performs the interaction on the
// winner.
type Actor struct {
	Page Page
	// Timeout bounds each resolution and each hard readiness wait.
	Timeout time.Duration

	Clock      clock.Clock
	NewBackOff func() backoff.BackOff
	Logger     logr.Logger
}

// NewActor returns an actor using the default action timeout.
func NewActor(p Page, logger logr.Logger) *Actor {
	return &Actor{Page: p, Timeout: locator.DefaultAttemptTimeout, Logger: logger}
}

func (a *Actor) timeout() time.Duration {
	if a.Timeout <= 0 {
		return locator.DefaultAttemptTimeout
	}
	return a.Timeout
}

func (a *Actor) options(target string, intent locator.Intent, deadline time.Duration) locator.Options {
	return locator.Options{
		Target:         target,
		Intent:         intent,
		AttemptTimeout: deadline,
		Deadline:       deadline,
		Clock:          a.Clock,
		NewBackOff:     a.NewBackOff,
		Logger:         a.Logger,
	}
}

// Resolve retries cs until Timeout.
func (a *Actor) Resolve(ctx context.Context, target string, cs locator.Candidates, intent locator.Intent) (locator.Result, error) {
	return locator.Resolve(ctx, a.Page, cs, a.options(target, intent, a.timeout()))
}

// ResolveWithin is Resolve with an explicit deadline.
func (a *Actor) ResolveWithin(ctx context.Context, target string, cs locator.Candidates, intent locator.Intent, d time.Duration) (locator.Result, error) {
	return locator.Resolve(ctx, a.Page, cs, a.options(target, intent, d))
}

// Find is a single resolution pass with no waiting.
func (a *Actor) Find(ctx context.Context, target string, cs locator.Candidates, intent locator.Intent) (locator.Result, error) {
	return locator.Resolve(ctx, a.Page, cs, a.options(target, intent, 0))
}

// Exists reports whether cs resolves immediately for intent.
func (a *Actor) Exists(ctx context.Context, target string, cs locator.Candidates, intent locator.Intent) (bool, error) {
	_, err := a.Find(ctx, target, cs, intent)
	if errors.Is(err, locator.ErrTargetNotResolved) {
		return false, nil
	}
	return err == nil, err
}

// Click resolves target and clicks it.
func (a *Actor) Click(ctx context.Context, target string, cs locator.Candidates) error {
	res, err := a.Resolve(ctx, target, cs, locator.Click)
	if err != nil {
		return err
	}
	if err := res.Handle.Click(locator.ClickOptions{}); err != nil {
		return fmt.Errorf("clicking %s: %w", target, err)
	}
	return nil
}

// Fill resolves target as an editable field and replaces its value.
func (a *Actor) Fill(ctx context.Context, target string, cs locator.Candidates, value string) error {
	res, err := a.Resolve(ctx, target, cs, locator.Type)
	if err != nil {
		return err
	}
	if err := res.Handle.Fill(value); err != nil {
		return fmt.Errorf("filling %s: %w", target, err)
	}
	return nil
}

func (a *Actor) waiter() *settle.Waiter {
	return &settle.Waiter{Clock: a.Clock, NewBackOff: a.NewBackOff, Logger: a.Logger}
}

// Wait runs a settle wait on the actor's clock.
func (a *Actor) Wait(ctx context.Context, name string, fn settle.Predicate, max time.Duration, mode settle.Mode) (bool, error) {
	return a.waiter().WaitNamed(ctx, name, fn, max, mode)
}

// WaitVisible is a hard wait, bounded by Timeout, for selector to be visible.
func (a *Actor) WaitVisible(ctx context.Context, selector string) error {
	_, err := a.Wait(ctx, selector+" visible", locator.Visible(a.Page, selector), a.timeout(), settle.Hard)
	return err
}

// WaitHidden is a hard wait, bounded by Timeout, for selector to disappear.
func (a *Actor) WaitHidden(ctx context.Context, selector string) error {
	_, err := a.Wait(ctx, selector+" hidden", locator.Hidden(a.Page, selector), a.timeout(), settle.Hard)
	return err
}

// WaitAttached is a hard wait, bounded by Timeout, for selector to match.
func (a *Actor) WaitAttached(ctx context.Context, selector string) error {
	_, err := a.Wait(ctx, selector+" attached", locator.Present(a.Page, selector), a.timeout(), settle.Hard)
	return err
}

// resolves is a predicate that holds once cs resolves for intent.
func (a *Actor) resolves(cs locator.Candidates, intent locator.Intent) settle.Predicate {
	return func(ctx context.Context) (bool, error) {
		return a.Exists(ctx, "", cs, intent)
	}
}

// quote renders s as a css string literal.
func quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(s) + `"`
}

func text(el locator.Element) string {
	t, err := el.Text()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(t)
}

func attr(el locator.Element, name string) string {
	v, _, err := el.Attr(name)
	if err != nil {
		return ""
	}
	return v
}
