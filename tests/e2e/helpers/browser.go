package helpers

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/testr"
	"github.com/playwright-community/playwright-go"

	"github.com/gotrs-io/dynamics-e2e/internal/components"
	"github.com/gotrs-io/dynamics-e2e/internal/config"
	"github.com/gotrs-io/dynamics-e2e/internal/pwsurface"
	"github.com/gotrs-io/dynamics-e2e/internal/xrm"
)

// BrowserHelper provides browser setup and teardown for tests
type BrowserHelper struct {
	Playwright *playwright.Playwright
	Browser    playwright.Browser
	Context    playwright.BrowserContext
	Page       playwright.Page
	Config     *config.Config
	Logger     logr.Logger
	t          *testing.T
}

// LoadConfig reads the suite configuration and skips the test when the
// profile's required variables are unset.
func LoadConfig(t *testing.T, p config.Profile) *config.Config {
	t.Helper()
	cfg, err := config.Load(config.Options{EnvFile: os.Getenv("E2E_ENV_FILE")})
	if err != nil {
		t.Fatalf("loading config: %v", err)
	}
	if err := cfg.Validate(p); err != nil {
		if errors.Is(err, config.ErrConfigurationMissing) {
			t.Skipf("skipping %s scenario: %v", p, err)
		}
		t.Fatal(err)
	}
	return cfg
}

// NewBrowserHelper creates a new browser helper instance
func NewBrowserHelper(t *testing.T, cfg *config.Config) *BrowserHelper {
	return &BrowserHelper{
		Config: cfg,
		Logger: testr.NewWithOptions(t, testr.Options{Verbosity: 1}),
		t:      t,
	}
}

func (b *BrowserHelper) start() error {
	if b.Playwright != nil {
		return nil
	}
	if os.Getenv("PLAYWRIGHT_PREINSTALLED") != "1" {
		if err := playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}}); err != nil {
			return fmt.Errorf("could not install playwright browsers: %w", err)
		}
	}
	pw, err := playwright.Run()
	if err != nil {
		return fmt.Errorf("could not start playwright: %w", err)
	}
	b.Playwright = pw

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(b.Config.Browser.Headless),
		SlowMo:   playwright.Float(float64(b.Config.Browser.SlowMo.Milliseconds())),
	})
	if err != nil {
		return fmt.Errorf("could not launch browser: %w", err)
	}
	b.Browser = browser
	return nil
}

// Setup launches the browser and opens a page in a fresh context. A non-empty
// storageState preloads a saved session.
func (b *BrowserHelper) Setup(storageState string) error {
	if err := b.start(); err != nil {
		return err
	}
	ctx, err := b.newContext(storageState)
	if err != nil {
		return err
	}
	b.Context = ctx

	if b.Config.Browser.Traces {
		if err := ctx.Tracing().Start(playwright.TracingStartOptions{
			Name:        playwright.String(b.artifactName()),
			Screenshots: playwright.Bool(true),
			Snapshots:   playwright.Bool(true),
		}); err != nil {
			return fmt.Errorf("could not start tracing: %w", err)
		}
	}

	page, err := ctx.NewPage()
	if err != nil {
		return fmt.Errorf("could not create page: %w", err)
	}
	b.Page = page
	return nil
}

// NewContext opens an extra context on the running browser, used for the
// interactive login that produces a saved session.
func (b *BrowserHelper) NewContext(storageState string) (playwright.BrowserContext, error) {
	if err := b.start(); err != nil {
		return nil, err
	}
	return b.newContext(storageState)
}

func (b *BrowserHelper) newContext(storageState string) (playwright.BrowserContext, error) {
	opts := playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  1280,
			Height: 720,
		},
	}
	if storageState != "" {
		opts.StorageStatePath = playwright.String(storageState)
	}
	if b.Config.Browser.Videos {
		opts.RecordVideo = &playwright.RecordVideo{
			Dir: filepath.Join(b.Config.ResultsDir, "videos"),
		}
	}
	ctx, err := b.Browser.NewContext(opts)
	if err != nil {
		return nil, fmt.Errorf("could not create context: %w", err)
	}
	ctx.SetDefaultTimeout(float64(b.Config.Browser.ActionTimeout.Milliseconds()))
	ctx.SetDefaultNavigationTimeout(float64(b.Config.Browser.Timeout.Milliseconds()))
	return ctx, nil
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func (b *BrowserHelper) artifactName() string {
	return unsafeName.ReplaceAllString(b.t.Name(), "_")
}

func (b *BrowserHelper) artifactPath(dir, ext string) string {
	path := filepath.Join(b.Config.ResultsDir, dir, fmt.Sprintf("%s_%d%s", b.artifactName(), time.Now().Unix(), ext))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		b.Logger.Error(err, "creating results directory")
	}
	return path
}

// TearDown closes the browser and cleans up resources. On failure it keeps a
// screenshot and the trace under the results directory.
func (b *BrowserHelper) TearDown() {
	failed := b.t.Failed()
	if failed && b.Config.Browser.Screenshots && b.Page != nil {
		path := b.artifactPath("screenshots", ".png")
		if _, err := b.Page.Screenshot(playwright.PageScreenshotOptions{
			Path:     playwright.String(path),
			FullPage: playwright.Bool(true),
		}); err != nil {
			b.Logger.Error(err, "screenshot failed")
		} else {
			b.t.Logf("screenshot: %s", path)
		}
	}
	if b.Context != nil && b.Config.Browser.Traces {
		var err error
		if failed {
			path := b.artifactPath("traces", ".zip")
			err = b.Context.Tracing().Stop(path)
			b.t.Logf("trace: %s", path)
		} else {
			err = b.Context.Tracing().Stop()
		}
		if err != nil {
			b.Logger.Error(err, "stopping trace")
		}
	}

	if b.Page != nil {
		b.Page.Close()
	}
	if b.Context != nil {
		b.Context.Close()
	}
	if b.Browser != nil {
		b.Browser.Close()
	}
	if b.Playwright != nil {
		b.Playwright.Stop()
	}
}

// Actor returns a page-object actor on the helper's page.
func (b *BrowserHelper) Actor() *components.Actor {
	return b.ActorFor(b.Page)
}

// ActorFor returns a page-object actor on page.
func (b *BrowserHelper) ActorFor(page playwright.Page) *components.Actor {
	a := components.NewActor(pwsurface.New(page), b.Logger)
	a.Timeout = b.Config.Browser.ActionTimeout
	return a
}

// Xrm returns the client API helper for the helper's page.
func (b *BrowserHelper) Xrm() *xrm.Helper {
	return xrm.NewHelper(b.Page, b.Logger)
}

// NavigateTo navigates to an absolute URL and waits for the load event.
func (b *BrowserHelper) NavigateTo(url string) error {
	_, err := b.Page.Goto(url, playwright.PageGotoOptions{WaitUntil: playwright.WaitUntilStateLoad})
	if err != nil {
		return fmt.Errorf("navigating to %s: %w", url, err)
	}
	return nil
}
