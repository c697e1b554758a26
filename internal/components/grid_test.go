package components

import (
	"context"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gotrs-io/dynamics-e2e/internal/locator"
	"github.com/gotrs-io/dynamics-e2e/internal/settle"
	"github.com/gotrs-io/dynamics-e2e/internal/snapshot"
)

// gridPage loads the grid snapshot and wires the reactions of the real page:
// menus open and close, and checkboxes mark rows selected.
func gridPage(t *testing.T) (*Grid, *snapshot.Surface, *events, *fakeXrm) {
	t.Helper()
	s := open(t, "testdata/grid.html")
	var ev events
	s.OnAction = func(s *snapshot.Surface, a snapshot.Action, target *goquery.Selection) {
		ev.add(a, target)
		switch {
		case a.Kind == "press" && a.Value == "Escape":
			hide(s, columnMenu)
			hide(s, viewSelector)
		case target == nil:
		case target.Is(`div[data-testid="columnHeader"]`):
			show(s, columnMenu)
		case target.Is(columnMenu + " button"):
			hide(s, columnMenu)
		case target.Is(`button[data-id="viewSelector"]`):
			show(s, viewSelector)
		case target.Is(`button[role="menuitemradio"]`):
			s.Document().Find(`button[role="menuitemradio"]`).SetAttr("aria-checked", "false")
			target.SetAttr("aria-checked", "true")
			hide(s, viewSelector)
		case target.Is(`button[aria-label="Edit columns"]`):
			show(s, `div[role="dialog"]`)
		case target.Is(`input[aria-label="Toggle selection of all rows"]`):
			rows := s.Document().Find(`div[role="row"]`)
			if _, on := target.Attr("checked"); on {
				rows.AddClass("ag-row-selected")
			} else {
				rows.RemoveClass("ag-row-selected")
			}
		case target.Is(`input[aria-label^="select row"]`), target.Is("div.ms-Checkbox"):
			target.Closest(`div[role="row"]`).SetAttr("aria-selected", "true")
		}
	}
	a, _ := newActor(t, s)
	x := &fakeXrm{}
	return NewGrid(a, x), s, &ev, x
}

func TestGridReady(t *testing.T) {
	ctx := context.Background()

	t.Run("ready", func(t *testing.T) {
		g, _, _, _ := gridPage(t)
		require.NoError(t, g.WaitReady(ctx))

		n, err := g.RowCount(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("missing viewport fails after the action timeout", func(t *testing.T) {
		g, s, _, _ := gridPage(t)
		s.Document().Find("div.ag-body-viewport").Remove()
		start := g.Clock.Now()

		err := g.WaitReady(ctx)
		assert.ErrorIs(t, err, settle.ErrReadinessTimeout)
		assert.Equal(t, 15*time.Second, g.Clock.Now().Sub(start))
	})

	t.Run("loading indicator only delays", func(t *testing.T) {
		g, s, _, _ := gridPage(t)
		show(s, progressIndicator)
		start := g.Clock.Now()

		require.NoError(t, g.WaitReady(ctx))
		assert.Equal(t, ProgressTimeout, g.Clock.Now().Sub(start))
	})
}

func TestGridRecords(t *testing.T) {
	ctx := context.Background()

	t.Run("open nth record", func(t *testing.T) {
		g, s, _, x := gridPage(t)
		require.NoError(t, g.OpenNthRecord(ctx, 0))

		actions := s.Actions()
		require.NotEmpty(t, actions)
		assert.Equal(t, "dblclick", actions[len(actions)-1].Kind)
		assert.Equal(t, 1, x.waits)

		err := g.OpenNthRecord(ctx, 5)
		assert.ErrorIs(t, err, locator.ErrTargetNotResolved)
		assert.Contains(t, err.Error(), "grid row 5")
	})

	t.Run("columns", func(t *testing.T) {
		g, _, _, _ := gridPage(t)
		cols, err := g.ColumnInfo(ctx)
		require.NoError(t, err)
		require.Len(t, cols, 5)
		assert.Equal(t, Column{Index: 2, Text: "Case Title"}, cols[1])

		idx, err := g.ColumnIndexByName(ctx, "Customer")
		require.NoError(t, err)
		assert.Equal(t, 3, idx)

		_, err = g.ColumnIndexByName(ctx, "Owner")
		assert.ErrorContains(t, err, "available columns: , Case Title, Customer, Status, Status Reason")
	})

	t.Run("lookup links prefer the fluent link", func(t *testing.T) {
		g, _, ev, x := gridPage(t)
		require.NoError(t, g.ClickLookupLink(ctx, 0, "Customer"))
		require.NoError(t, g.ClickLookupLinkAt(ctx, 1, 3))
		assert.Equal(t, events{"click #account-1", "click #account-2"}, *ev)
		assert.Equal(t, 2, x.waits)
	})
}

func TestGridSelection(t *testing.T) {
	ctx := context.Background()

	t.Run("select and deselect all", func(t *testing.T) {
		g, _, _, _ := gridPage(t)
		all, err := g.AllSelected(ctx)
		require.NoError(t, err)
		assert.False(t, all)

		require.NoError(t, g.SelectAll(ctx))
		all, err = g.AllSelected(ctx)
		require.NoError(t, err)
		assert.True(t, all)

		require.NoError(t, g.DeselectAll(ctx))
		all, err = g.AllSelected(ctx)
		require.NoError(t, err)
		assert.False(t, all)
	})

	t.Run("select nth through the input", func(t *testing.T) {
		g, s, _, _ := gridPage(t)
		sel, err := g.IsSelected(ctx, 0)
		require.NoError(t, err)
		assert.False(t, sel)

		require.NoError(t, g.SelectNth(ctx, 0))
		sel, err = g.IsSelected(ctx, 0)
		require.NoError(t, err)
		assert.True(t, sel)
		assert.False(t, s.Actions()[0].Force)
	})

	t.Run("hidden input falls back to a forced wrapper click", func(t *testing.T) {
		g, s, _, _ := gridPage(t)
		require.NoError(t, g.SelectNth(ctx, 1))

		actions := s.Actions()
		require.Len(t, actions, 1)
		assert.True(t, actions[0].Force)
		sel, err := g.IsSelected(ctx, 1)
		require.NoError(t, err)
		assert.True(t, sel)
	})

	t.Run("missing row is not selected", func(t *testing.T) {
		g, _, _, _ := gridPage(t)
		sel, err := g.IsSelected(ctx, 9)
		require.NoError(t, err)
		assert.False(t, sel)
	})
}

func TestGridColumns(t *testing.T) {
	ctx := context.Background()

	t.Run("sort state", func(t *testing.T) {
		g, _, _, _ := gridPage(t)
		for column, want := range map[string]SortOrder{
			"Case Title": Ascending,
			"Status":     Descending,
			"Customer":   Unsorted,
			"Owner":      Unsorted,
		} {
			got, err := g.SortState(ctx, column)
			require.NoError(t, err)
			assert.Equal(t, want, got, column)
		}
	})

	t.Run("sort through the column menu", func(t *testing.T) {
		g, _, ev, _ := gridPage(t)
		require.NoError(t, g.SortDescending(ctx, "Status"))
		assert.Equal(t, events{"click Status", "click Z to A"}, *ev)
	})

	t.Run("close column menu", func(t *testing.T) {
		g, _, ev, _ := gridPage(t)
		require.NoError(t, g.CloseColumnMenu(ctx))
		assert.Empty(t, *ev)

		require.NoError(t, g.OpenColumnMenu(ctx, "Customer"))
		require.NoError(t, g.CloseColumnMenu(ctx))
		assert.Equal(t, events{"click Customer", "press Escape"}, *ev)
	})

	t.Run("filter menu", func(t *testing.T) {
		g, s, _, _ := gridPage(t)
		s.OnAction = func(s *snapshot.Surface, a snapshot.Action, target *goquery.Selection) {
			switch {
			case target == nil:
			case target.Is(`div[data-testid="columnHeader"]`):
				show(s, columnMenu)
			case target.Is(columnMenu + " button"):
				hide(s, columnMenu)
				show(s, `div[role="dialog"]`)
			}
		}
		require.NoError(t, g.OpenFilterMenu(ctx, "Customer"))
	})
}

func TestGridCommands(t *testing.T) {
	ctx := context.Background()

	t.Run("search", func(t *testing.T) {
		g, _, ev, _ := gridPage(t)
		require.NoError(t, g.Search(ctx, "lamp"))
		require.NoError(t, g.ClearSearch(ctx))
		assert.Equal(t, events{
			"fill Search this view=lamp",
			"press Enter",
			"fill Search this view=",
			"press Enter",
		}, *ev)
	})

	t.Run("command bar", func(t *testing.T) {
		g, _, ev, _ := gridPage(t)
		require.NoError(t, g.ClickCommand(ctx, "New Case"))
		require.NoError(t, g.OpenEditColumns(ctx))
		assert.Equal(t, events{"click New Case", "click Edit columns"}, *ev)

		err := g.OpenEditFilters(ctx)
		assert.ErrorIs(t, err, locator.ErrTargetNotResolved, "disabled commands are not clickable")
	})

	t.Run("views", func(t *testing.T) {
		g, _, _, _ := gridPage(t)
		current, err := g.CurrentView(ctx)
		require.NoError(t, err)
		assert.Equal(t, "Active Cases", current)

		views, err := g.AvailableViews(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"Active Cases", "My Active Cases", "Resolved Cases"}, views)

		require.NoError(t, g.SelectView(ctx, "Resolved Cases"))
		current, err = g.CurrentView(ctx)
		require.NoError(t, err)
		assert.Equal(t, "Resolved Cases", current)
	})

	t.Run("unknown view searches first", func(t *testing.T) {
		g, _, ev, _ := gridPage(t)
		err := g.SelectView(ctx, "All Cases")
		assert.ErrorContains(t, err, `view "All Cases" not found`)
		assert.Contains(t, *ev, "fill =All Cases")
	})
}
