// Package auth runs the interactive sign-in against a target application,
// retrying a bounded number of times before giving up.
package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"github.com/gotrs-io/dynamics-e2e/internal/settle"
)

const (
	DefaultMaxAttempts  = 3
	DefaultURLTimeout   = 10 * time.Second
	DefaultReadyTimeout = 60 * time.Second
)

var (
	// ErrAuthenticationFailed is matched by every AuthenticationFailedError.
	ErrAuthenticationFailed = errors.New("authentication failed")
	// ErrErrorPage is returned when sign-in lands on the application's error
	// handler.
	ErrErrorPage = errors.New("landed on error page")
)

// DefaultErrorURLMarkers identify the Dynamics error handler page.
var DefaultErrorURLMarkers = []string{"error/errorhandler.aspx"}

// DynamicsURL is the address every model-driven app lives under.
var DynamicsURL = regexp.MustCompile(`dynamics\.com`)

// AuthenticationFailedError reports that every sign-in attempt failed.
type AuthenticationFailedError struct {
	Attempts int
	LastURL  string
	LastErr  error
}

func (e *AuthenticationFailedError) Error() string {
	return fmt.Sprintf("authentication failed after %d attempts (last url %q): %v", e.Attempts, e.LastURL, e.LastErr)
}

func (e *AuthenticationFailedError) Is(target error) bool { return target == ErrAuthenticationFailed }

func (e *AuthenticationFailedError) Unwrap() error { return e.LastErr }

// Credentials are the account a flow signs in with.
type Credentials struct {
	Username string
	Password string
}

// Flow is the browser-side half of a sign-in.
type Flow interface {
	Goto(ctx context.Context, url string) error
	// Reload returns to the start URL after a failed attempt.
	Reload(ctx context.Context) error
	Login(ctx context.Context, creds Credentials) error
	URL() string
	// Ready reports whether the signed-in application has loaded.
	Ready(ctx context.Context) (bool, error)
}

// Authenticator signs a Flow in, retrying up to MaxAttempts times.
type Authenticator struct {
	MaxAttempts int
	// ErrorURLMarkers are URL substrings that mark a failed sign-in.
	ErrorURLMarkers []string
	// ExpectURL, when set, must match the URL after sign-in.
	ExpectURL    *regexp.Regexp
	URLTimeout   time.Duration
	ReadyTimeout time.Duration

	Waiter *settle.Waiter
	Logger logr.Logger
}

// New returns an Authenticator for a model-driven app.
func New(logger logr.Logger) *Authenticator {
	return &Authenticator{
		MaxAttempts:     DefaultMaxAttempts,
		ErrorURLMarkers: DefaultErrorURLMarkers,
		ExpectURL:       DynamicsURL,
		URLTimeout:      DefaultURLTimeout,
		ReadyTimeout:    DefaultReadyTimeout,
		Waiter:          settle.New(logger),
		Logger:          logger,
	}
}

// Authenticate signs flow in starting from startURL. Between failed attempts
// the flow is reloaded, so a run that succeeds on attempt n reloads n-1 times.
func (a *Authenticator) Authenticate(ctx context.Context, flow Flow, startURL string, creds Credentials) error {
	attempts := a.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	var lastErr error
	navigate := true
	for n := 1; n <= attempts; n++ {
		err := a.attempt(ctx, flow, startURL, creds, navigate)
		if err == nil {
			a.Logger.Info("authenticated", "attempt", n, "url", flow.URL())
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = err
		a.Logger.Error(err, "authentication attempt failed", "attempt", n, "max", attempts, "url", flow.URL())
		if n == attempts {
			break
		}
		// A reload lands back on the start URL; only navigate again when it failed.
		navigate = false
		if err := flow.Reload(ctx); err != nil {
			a.Logger.Error(err, "reload after failed attempt", "attempt", n)
			navigate = true
		}
	}
	return &AuthenticationFailedError{Attempts: attempts, LastURL: flow.URL(), LastErr: lastErr}
}

func (a *Authenticator) attempt(ctx context.Context, flow Flow, startURL string, creds Credentials, navigate bool) error {
	if navigate {
		if err := flow.Goto(ctx, startURL); err != nil {
			return fmt.Errorf("navigating to %s: %w", startURL, err)
		}
	}
	if err := flow.Login(ctx, creds); err != nil {
		return fmt.Errorf("signing in: %w", err)
	}
	if u := flow.URL(); a.isErrorURL(u) {
		return fmt.Errorf("%w: %s", ErrErrorPage, u)
	}
	w := a.waiter()
	if a.ExpectURL != nil {
		onApp := func(context.Context) (bool, error) { return a.ExpectURL.MatchString(flow.URL()), nil }
		if _, err := w.WaitNamed(ctx, "url "+a.ExpectURL.String(), onApp, a.timeout(a.URLTimeout, DefaultURLTimeout), settle.Hard); err != nil {
			return err
		}
	}
	_, err := w.WaitNamed(ctx, "application ready", flow.Ready, a.timeout(a.ReadyTimeout, DefaultReadyTimeout), settle.Hard)
	return err
}

func (a *Authenticator) isErrorURL(u string) bool {
	for _, m := range a.ErrorURLMarkers {
		if strings.Contains(u, m) {
			return true
		}
	}
	return false
}

func (a *Authenticator) waiter() *settle.Waiter {
	if a.Waiter == nil {
		a.Waiter = settle.New(a.Logger)
	}
	return a.Waiter
}

func (a *Authenticator) timeout(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
