package helpers

import (
	"context"
	"fmt"

	"github.com/playwright-community/playwright-go"

	"github.com/gotrs-io/dynamics-e2e/internal/config"
	"github.com/gotrs-io/dynamics-e2e/internal/session"
	"github.com/gotrs-io/dynamics-e2e/internal/signin"
)

// AuthHelper provides authentication utilities for tests
type AuthHelper struct {
	browser *BrowserHelper
	Store   *session.Store
}

// NewAuthHelper creates a new authentication helper
func NewAuthHelper(browser *BrowserHelper) *AuthHelper {
	return &AuthHelper{
		browser: browser,
		Store:   session.NewStore(browser.Config.AuthDir, browser.Logger),
	}
}

// Session returns the saved session file for a profile, signing in first
// when no fresh one exists.
func (a *AuthHelper) Session(ctx context.Context, p config.Profile) (string, error) {
	path, err := signin.Ensure(ctx, a.Store, a.browser.Config, p, func() (playwright.BrowserContext, error) {
		return a.browser.NewContext("")
	}, a.browser.Logger)
	if err != nil {
		return "", fmt.Errorf("%s session: %w", p, err)
	}
	return path, nil
}

// SetupSignedIn opens the helper's page with a saved session for p.
func (a *AuthHelper) SetupSignedIn(ctx context.Context, p config.Profile) error {
	path, err := a.Session(ctx, p)
	if err != nil {
		return err
	}
	return a.browser.Setup(path)
}

// Login signs the helper's page in directly, without a saved session.
func (a *AuthHelper) Login(ctx context.Context, p config.Profile) error {
	cfg := a.browser.Config
	authn, err := signin.Authenticator(cfg, p, a.browser.Logger)
	if err != nil {
		return err
	}
	flow := signin.Flow(cfg, p, a.browser.Page, a.browser.Logger)
	return authn.Authenticate(ctx, flow, cfg.StartURL(p), signin.Credentials(cfg, p))
}

// Logout forgets the saved session for p.
func (a *AuthHelper) Logout(p config.Profile) error {
	return a.Store.Remove(p)
}
