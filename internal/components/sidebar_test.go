package components

import (
	"context"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gotrs-io/dynamics-e2e/internal/snapshot"
)

func sidebarPage(t *testing.T) (*Sidebar, *snapshot.Surface, *events) {
	t.Helper()
	s := open(t, "testdata/grid.html")
	var ev events
	s.OnAction = func(_ *snapshot.Surface, a snapshot.Action, target *goquery.Selection) { ev.add(a, target) }
	a, _ := newActor(t, s)
	return NewSidebar(a), s, &ev
}

func TestSidebar(t *testing.T) {
	ctx := context.Background()

	t.Run("navigate by label", func(t *testing.T) {
		sb, _, ev := sidebarPage(t)
		require.NoError(t, sb.Cases(ctx))
		require.NoError(t, sb.NavigateToEntity(ctx, "sitemap-entity-subarea_cases"))
		assert.Equal(t, events{"click Cases", "click Cases"}, *ev)
	})

	t.Run("interested parties falls back to the subarea id", func(t *testing.T) {
		sb, _, ev := sidebarPage(t)
		require.NoError(t, sb.InterestedParties(ctx))
		assert.Equal(t, events{"click Interested Parties"}, *ev)
	})

	t.Run("visibility", func(t *testing.T) {
		sb, _, _ := sidebarPage(t)
		for label, want := range map[string]bool{
			"Cases":    true,
			"Accounts": false,
			"Reports":  false,
		} {
			got, err := sb.IsEntityVisible(ctx, label)
			require.NoError(t, err)
			assert.Equal(t, want, got, label)
		}
	})
}
