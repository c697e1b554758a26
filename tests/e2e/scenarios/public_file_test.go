package scenarios

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gotrs-io/dynamics-e2e/internal/config"
	"github.com/gotrs-io/dynamics-e2e/internal/locator"
	"github.com/gotrs-io/dynamics-e2e/tests/e2e/helpers"
)

func publicFile(t *testing.T) (*helpers.BrowserHelper, context.Context) {
	t.Helper()
	cfg := helpers.LoadConfig(t, config.ProfilePublicFile)
	ctx, cancel := context.WithTimeout(context.Background(), scenarioTimeout)
	t.Cleanup(cancel)

	b := helpers.NewBrowserHelper(t, cfg)
	t.Cleanup(b.TearDown)
	require.NoError(t, helpers.NewAuthHelper(b).SetupSignedIn(ctx, config.ProfilePublicFile))
	require.NoError(t, b.NavigateTo(cfg.AzureAppURL))
	return b, ctx
}

// href resolves a link by its accessible name and returns its href.
func href(t *testing.T, ctx context.Context, b *helpers.BrowserHelper, scope, name string) string {
	t.Helper()
	res, err := b.Actor().Resolve(ctx, name+" link", locator.Candidates{locator.NamedExactly(scope+" a", name)}, locator.Read)
	require.NoError(t, err)
	v, _, err := res.Handle.Attr("href")
	require.NoError(t, err)
	return v
}

func TestPublicFileHeader(t *testing.T) {
	b, ctx := publicFile(t)
	app := b.Config.AzureAppURL

	assert.Equal(t, "https://www.gov.uk/", href(t, ctx, b, "header", "GOV.UK"))
	assert.Equal(t, app, href(t, ctx, b, "header", "Trade Remedies Service"))
	assert.Equal(t, app, href(t, ctx, b, `nav[aria-label="Menu"]`, "Home"))
	assert.Equal(t, app, href(t, ctx, b, "header", "TRA Investigations"))
	if b.Config.PortalURL != "" {
		assert.Equal(t, b.Config.PortalURL, href(t, ctx, b, "header", "Sign in"))
	}
}

func TestPublicFileFooter(t *testing.T) {
	b, ctx := publicFile(t)
	app := b.Config.AzureAppURL

	for name, want := range map[string]string{
		"Cookies":                 app + "cookies/",
		"Terms and privacy":       app + "terms-and-privacy/",
		"Accessibility statement": app + "accessibility/",
	} {
		assert.Equal(t, want, href(t, ctx, b, "footer", name), name)
	}
	assert.Contains(t, href(t, ctx, b, "footer", "Open Government Licence v3.0"), "open-government-licence")
}

func TestPublicFilePhaseBanner(t *testing.T) {
	b, ctx := publicFile(t)
	_, err := b.Actor().Resolve(ctx, "phase banner", locator.Candidates{
		locator.Named("p", "This is a new service"),
		locator.NamedExactly("strong", "beta"),
	}, locator.Read)
	require.NoError(t, err)
}
