// Package signin wires the authenticator, the login page objects and the
// session store together for each profile.
package signin

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"time"

	"github.com/go-logr/logr"
	"github.com/playwright-community/playwright-go"

	"github.com/gotrs-io/dynamics-e2e/internal/auth"
	"github.com/gotrs-io/dynamics-e2e/internal/components"
	"github.com/gotrs-io/dynamics-e2e/internal/config"
	"github.com/gotrs-io/dynamics-e2e/internal/pwsurface"
	"github.com/gotrs-io/dynamics-e2e/internal/session"
	"github.com/gotrs-io/dynamics-e2e/internal/xrm"
)

// SessionMaxAge is how long a saved session is reused before signing in
// again.
const SessionMaxAge = 8 * time.Hour

// ExpectURL returns the pattern the browser must reach after signing in.
func ExpectURL(cfg *config.Config, p config.Profile) (*regexp.Regexp, error) {
	if p == config.ProfileMDA {
		return auth.DynamicsURL, nil
	}
	u, err := url.Parse(cfg.StartURL(p))
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("%s start url %q has no host", p, cfg.StartURL(p))
	}
	return regexp.MustCompile(regexp.QuoteMeta(u.Host)), nil
}

// Credentials picks the account a profile signs in with.
func Credentials(cfg *config.Config, p config.Profile) auth.Credentials {
	switch p {
	case config.ProfilePortal:
		if cfg.B2CUsername != "" {
			return auth.Credentials{Username: cfg.B2CUsername, Password: cfg.B2CPassword}
		}
	case config.ProfilePublicFile:
		return auth.Credentials{Username: cfg.Username, Password: cfg.AzurePassword}
	}
	return auth.Credentials{Username: cfg.Username, Password: cfg.Password}
}

// Flow builds the sign-in flow of a profile on page.
func Flow(cfg *config.Config, p config.Profile, page playwright.Page, logger logr.Logger) *auth.PageFlow {
	a := components.NewActor(pwsurface.New(page), logger)
	if cfg.Browser.ActionTimeout > 0 {
		a.Timeout = cfg.Browser.ActionTimeout
	}
	flow := &auth.PageFlow{Page: page}
	switch p {
	case config.ProfilePortal:
		s := components.NewPortalSignIn(a)
		flow.Form, flow.IsReady = s, s.Ready
	case config.ProfilePublicFile:
		lp := components.NewPublicFileLoginPage(a)
		flow.Form, flow.IsReady = lp.Form(), lp.IsLoggedIn
	default:
		flow.Form = components.NewLoginPage(a)
		flow.IsReady = xrm.NewHelper(page, logger).Ready
	}
	return flow
}

// Authenticator returns an authenticator for a profile.
func Authenticator(cfg *config.Config, p config.Profile, logger logr.Logger) (*auth.Authenticator, error) {
	expect, err := ExpectURL(cfg, p)
	if err != nil {
		return nil, err
	}
	a := auth.New(logger.WithValues("profile", string(p)))
	a.ExpectURL = expect
	return a, nil
}

// Login signs a new page of bctx in for p and returns the context's state.
func Login(ctx context.Context, cfg *config.Config, p config.Profile, bctx playwright.BrowserContext, logger logr.Logger) (session.State, error) {
	if err := cfg.Validate(p); err != nil {
		return session.State{}, err
	}
	authn, err := Authenticator(cfg, p, logger)
	if err != nil {
		return session.State{}, err
	}
	page, err := bctx.NewPage()
	if err != nil {
		return session.State{}, fmt.Errorf("opening login page: %w", err)
	}
	defer page.Close()

	if err := authn.Authenticate(ctx, Flow(cfg, p, page, logger), cfg.StartURL(p), Credentials(cfg, p)); err != nil {
		return session.State{}, err
	}
	st, err := bctx.StorageState()
	if err != nil {
		return session.State{}, fmt.Errorf("reading storage state: %w", err)
	}
	return session.FromPlaywright(st), nil
}

// NewContext opens a browser context for one login.
type NewContext func() (playwright.BrowserContext, error)

// Ensure returns the path of a fresh saved session for p, signing in through
// a new context when there is none.
func Ensure(ctx context.Context, store *session.Store, cfg *config.Config, p config.Profile, newContext NewContext, logger logr.Logger) (string, error) {
	return store.Ensure(ctx, p, SessionMaxAge, func(ctx context.Context) (session.State, error) {
		bctx, err := newContext()
		if err != nil {
			return session.State{}, err
		}
		defer bctx.Close()
		return Login(ctx, cfg, p, bctx, logger)
	})
}
