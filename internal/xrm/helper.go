// Package xrm drives the Dynamics 365 client API (window.Xrm) from a test.
package xrm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-logr/logr"

	"github.com/gotrs-io/dynamics-e2e/internal/settle"
)

// ReadyTimeout bounds the wait for the client API after a navigation.
const ReadyTimeout = 60 * time.Second

const readyScript = `() => typeof window.Xrm !== 'undefined' && !!window.Xrm.Page`

// Evaluator runs javascript in the page. playwright.Page satisfies it.
type Evaluator interface {
	Evaluate(expression string, arg ...any) (any, error)
}

// Helper waits for the client API and evaluates scripts against it.
type Helper struct {
	page    Evaluator
	Waiter  *settle.Waiter
	Timeout time.Duration
}

func NewHelper(page Evaluator, logger logr.Logger) *Helper {
	return &Helper{page: page, Waiter: settle.New(logger), Timeout: ReadyTimeout}
}

// Ready reports whether window.Xrm is available.
func (h *Helper) Ready(context.Context) (bool, error) {
	v, err := h.page.Evaluate(readyScript)
	if err != nil {
		return false, err
	}
	ok, _ := v.(bool)
	return ok, nil
}

// WaitForXrmReady blocks until window.Xrm is available, failing with a
// readiness timeout after Timeout.
func (h *Helper) WaitForXrmReady(ctx context.Context) error {
	_, err := h.Waiter.WaitNamed(ctx, "window.Xrm", h.Ready, h.Timeout, settle.Hard)
	return err
}

// Eval waits for the client API, then evaluates script with arg.
func (h *Helper) Eval(ctx context.Context, script string, arg any) (any, error) {
	if err := h.WaitForXrmReady(ctx); err != nil {
		return nil, err
	}
	if arg == nil {
		return h.page.Evaluate(script)
	}
	return h.page.Evaluate(script, arg)
}

// EvalInto evaluates script and decodes its result into out.
func (h *Helper) EvalInto(ctx context.Context, script string, arg, out any) error {
	v, err := h.Eval(ctx, script, arg)
	if err != nil {
		return err
	}
	return decode(v, out)
}

// decode converts a value returned by the page into a typed struct.
func decode(v, out any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding page result: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding page result: %w", err)
	}
	return nil
}
