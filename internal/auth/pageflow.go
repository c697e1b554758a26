package auth

import (
	"context"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/gotrs-io/dynamics-e2e/internal/settle"
)

// NavigationTimeout bounds a single page load during sign-in.
const NavigationTimeout = 60 * time.Second

// Form fills in a sign-in form on the current page.
type Form interface {
	Login(ctx context.Context, username, password string) error
}

// FormFunc adapts a function to Form.
type FormFunc func(ctx context.Context, username, password string) error

func (f FormFunc) Login(ctx context.Context, username, password string) error {
	return f(ctx, username, password)
}

// PageFlow is a Flow over a playwright page.
type PageFlow struct {
	Page playwright.Page
	Form Form
	// IsReady reports whether the signed-in application has loaded.
	IsReady settle.Predicate

	start string
}

var _ Flow = (*PageFlow)(nil)

func (f *PageFlow) Goto(_ context.Context, url string) error {
	f.start = url
	_, err := f.Page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
		Timeout:   playwright.Float(float64(NavigationTimeout.Milliseconds())),
	})
	return err
}

// Reload navigates back to the URL of the last Goto.
func (f *PageFlow) Reload(ctx context.Context) error {
	if f.start == "" {
		_, err := f.Page.Reload(playwright.PageReloadOptions{WaitUntil: playwright.WaitUntilStateLoad})
		return err
	}
	return f.Goto(ctx, f.start)
}

func (f *PageFlow) Login(ctx context.Context, creds Credentials) error {
	return f.Form.Login(ctx, creds.Username, creds.Password)
}

func (f *PageFlow) URL() string { return f.Page.URL() }

func (f *PageFlow) Ready(ctx context.Context) (bool, error) {
	if f.IsReady == nil {
		return true, nil
	}
	return f.IsReady(ctx)
}
