package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-logr/logr/testr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gotrs-io/dynamics-e2e/internal/clock"
	"github.com/gotrs-io/dynamics-e2e/internal/settle"
)

const (
	appURL   = "https://org.crm11.dynamics.com/main.aspx?appid=1"
	errorURL = "https://org.crm11.dynamics.com/_common/error/errorhandler.aspx?BackUri=x"
)

// fakeFlow lands on landings[i] after the i-th login.
type fakeFlow struct {
	landings []string
	loginErr []error
	ready    bool

	url       string
	gotos     int
	reloads   int
	reloadErr error
	logins    int
	creds     Credentials
}

func (f *fakeFlow) Goto(_ context.Context, url string) error {
	f.gotos++
	f.url = url
	return nil
}

func (f *fakeFlow) Reload(context.Context) error {
	f.reloads++
	return f.reloadErr
}

func (f *fakeFlow) Login(_ context.Context, creds Credentials) error {
	i := f.logins
	f.logins++
	f.creds = creds
	if i < len(f.loginErr) && f.loginErr[i] != nil {
		return f.loginErr[i]
	}
	if i < len(f.landings) {
		f.url = f.landings[i]
	}
	return nil
}

func (f *fakeFlow) URL() string { return f.url }

func (f *fakeFlow) Ready(context.Context) (bool, error) { return f.ready, nil }

func newAuthenticator(t *testing.T) (*Authenticator, *clock.Fake) {
	fake := clock.NewFake(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	a := New(testr.New(t))
	a.Waiter = &settle.Waiter{Clock: fake, NewBackOff: settle.FixedBackOff(100 * time.Millisecond), Logger: testr.New(t)}
	return a, fake
}

var creds = Credentials{Username: "tester@contoso.onmicrosoft.com", Password: "secret"}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()

	t.Run("first attempt", func(t *testing.T) {
		a, _ := newAuthenticator(t)
		flow := &fakeFlow{landings: []string{appURL}, ready: true}

		require.NoError(t, a.Authenticate(ctx, flow, appURL, creds))
		assert.Equal(t, 1, flow.logins)
		assert.Equal(t, 0, flow.reloads)
		assert.Equal(t, creds, flow.creds)
	})

	t.Run("recovers after two error pages", func(t *testing.T) {
		a, _ := newAuthenticator(t)
		flow := &fakeFlow{landings: []string{errorURL, errorURL, appURL}, ready: true}

		require.NoError(t, a.Authenticate(ctx, flow, appURL, creds))
		assert.Equal(t, 3, flow.logins)
		assert.Equal(t, 2, flow.reloads)
		assert.Equal(t, 1, flow.gotos, "a reload already returns to the start URL")
	})

	t.Run("failed reload navigates again", func(t *testing.T) {
		a, _ := newAuthenticator(t)
		flow := &fakeFlow{landings: []string{errorURL, appURL}, ready: true, reloadErr: errors.New("target closed")}

		require.NoError(t, a.Authenticate(ctx, flow, appURL, creds))
		assert.Equal(t, 1, flow.reloads)
		assert.Equal(t, 2, flow.gotos)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		a, _ := newAuthenticator(t)
		flow := &fakeFlow{landings: []string{errorURL, errorURL, errorURL}, ready: true}

		err := a.Authenticate(ctx, flow, appURL, creds)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrAuthenticationFailed)
		assert.ErrorIs(t, err, ErrErrorPage)

		var afe *AuthenticationFailedError
		require.True(t, errors.As(err, &afe))
		assert.Equal(t, 3, afe.Attempts)
		assert.Equal(t, errorURL, afe.LastURL)
		assert.Equal(t, 2, flow.reloads)
	})

	t.Run("login errors are retried", func(t *testing.T) {
		a, _ := newAuthenticator(t)
		flow := &fakeFlow{
			landings: []string{"", appURL},
			loginErr: []error{errors.New("password input not resolved")},
			ready:    true,
		}

		require.NoError(t, a.Authenticate(ctx, flow, appURL, creds))
		assert.Equal(t, 1, flow.reloads)
	})

	t.Run("wrong host times out", func(t *testing.T) {
		a, fake := newAuthenticator(t)
		a.MaxAttempts = 1
		start := fake.Now()
		flow := &fakeFlow{landings: []string{"https://login.microsoftonline.com/common/login"}, ready: true}

		err := a.Authenticate(ctx, flow, appURL, creds)
		assert.ErrorIs(t, err, ErrAuthenticationFailed)
		assert.ErrorIs(t, err, settle.ErrReadinessTimeout)
		assert.Equal(t, DefaultURLTimeout, fake.Now().Sub(start))
		assert.Equal(t, 0, flow.reloads)
	})

	t.Run("app never ready", func(t *testing.T) {
		a, fake := newAuthenticator(t)
		a.MaxAttempts = 2
		start := fake.Now()
		flow := &fakeFlow{landings: []string{appURL, appURL}}

		err := a.Authenticate(ctx, flow, appURL, creds)
		var rte *settle.ReadinessTimeoutError
		require.True(t, errors.As(err, &rte))
		assert.Equal(t, DefaultReadyTimeout, rte.Max)
		assert.Equal(t, 2*DefaultReadyTimeout, fake.Now().Sub(start))
		assert.Equal(t, 1, flow.reloads)
	})

	t.Run("cancellation stops retrying", func(t *testing.T) {
		a, _ := newAuthenticator(t)
		cctx, cancel := context.WithCancel(ctx)
		flow := &fakeFlow{landings: []string{errorURL, appURL}, ready: true}
		cancel()

		err := a.Authenticate(cctx, flow, appURL, creds)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 0, flow.reloads)
	})
}
