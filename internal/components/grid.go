package components

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gotrs-io/dynamics-e2e/internal/locator"
	"github.com/gotrs-io/dynamics-e2e/internal/settle"
)

const (
	progressIndicator = "#progressIndicatorContainer"
	gridRoot          = "div.ag-root"
	gridViewport      = "div.ag-center-cols-viewport, div.ag-body-viewport"
	gridRow           = `div[role="row"]`
	selectedRows      = `div.ag-row.ag-row-selected, div[role="row"][aria-selected="true"]`
	columnMenu        = `div[data-testid="columnContextMenu"]`
	viewSelector      = `div[data-id*="ViewSelector"]`
	panel             = `div[role="dialog"], div.ms-Panel`
	viewLabel         = "label.viewName, label.ms-Label"

	// ProgressTimeout bounds the soft wait for the loading indicator.
	ProgressTimeout = 5 * time.Second
)

// SortOrder is the sort applied to a column.
type SortOrder string

const (
	Unsorted   SortOrder = ""
	Ascending  SortOrder = "asc"
	Descending SortOrder = "desc"
)

// Column is a visible column header.
type Column struct {
	Index int
	Text  string
}

// Grid is the power grid (AG Grid) on a view or dashboard.
type Grid struct {
	*Actor
	// Name identifies the grid in errors.
	Name string
	// Xrm, when set, is awaited after navigating away from the grid.
	Xrm XrmWaiter

	scope string
}

func NewGrid(a *Actor, x XrmWaiter) *Grid {
	return &Grid{Actor: a, Name: "grid", Xrm: x}
}

// sel scopes a selector group to the grid's container.
func (g *Grid) sel(s string) string {
	if g.scope == "" {
		return s
	}
	return locator.Selectors(s).Prefixed(g.scope)[0].Selector
}

func (g *Grid) scoped(cs locator.Candidates) locator.Candidates {
	return cs.Prefixed(g.scope)
}

func (g *Grid) afterNavigate(ctx context.Context) error {
	if g.Xrm == nil {
		return nil
	}
	return g.Xrm.WaitForXrmReady(ctx)
}

// rows returns the row-index and aria-rowindex forms of a row, each followed
// by suffix.
func rows(n int, suffix string) []string {
	byIndex := fmt.Sprintf(`%s[row-index="%d"]`, gridRow, n)
	byAria := fmt.Sprintf(`%s[aria-rowindex="%d"]`, gridRow, n+1)
	if suffix == "" {
		return []string{byIndex, byAria}
	}
	return []string{byIndex + " " + suffix, byAria + " " + suffix}
}

// WaitReady waits for the loading indicator to clear and the grid viewport to
// render. An empty grid is ready.
func (g *Grid) WaitReady(ctx context.Context) error {
	if _, err := g.Wait(ctx, "progress indicator hidden", locator.Hidden(g.Page, progressIndicator), ProgressTimeout, settle.Soft); err != nil {
		return err
	}
	if err := g.WaitVisible(ctx, g.sel(gridRoot)); err != nil {
		return fmt.Errorf("%s not ready: %w", g.Name, err)
	}
	if err := g.WaitVisible(ctx, g.sel(gridViewport)); err != nil {
		return fmt.Errorf("%s not ready: %w", g.Name, err)
	}
	return nil
}

// RowCount returns the number of rendered data rows.
func (g *Grid) RowCount(ctx context.Context) (int, error) {
	if err := g.WaitReady(ctx); err != nil {
		return 0, err
	}
	els, err := g.Page.QueryAll(g.sel(gridRow + "[row-index]"))
	if err != nil {
		return 0, err
	}
	return len(els), nil
}

// OpenNthRecord opens the zero-based nth record by double-clicking its first
// column.
func (g *Grid) OpenNthRecord(ctx context.Context, n int) error {
	if err := g.WaitReady(ctx); err != nil {
		return err
	}
	target := fmt.Sprintf("%s row %d", g.Name, n)
	res, err := g.Resolve(ctx, target, g.scoped(locator.Selectors(rows(n, `div[aria-colindex="1"]`)...)), locator.Read)
	if err != nil {
		return err
	}
	if err := res.Handle.DblClick(); err != nil {
		return fmt.Errorf("opening %s: %w", target, err)
	}
	return g.afterNavigate(ctx)
}

// ColumnInfo lists the visible column headers.
func (g *Grid) ColumnInfo(ctx context.Context) ([]Column, error) {
	if err := g.WaitReady(ctx); err != nil {
		return nil, err
	}
	headers, err := g.Page.QueryAll(g.sel(`div.ag-header-row div[role="columnheader"]`))
	if err != nil {
		return nil, err
	}
	var cols []Column
	for _, h := range headers {
		idx, err := strconv.Atoi(attr(h, "aria-colindex"))
		if err != nil {
			continue
		}
		cols = append(cols, Column{Index: idx, Text: text(h)})
	}
	return cols, nil
}

// ColumnIndexByName returns the aria-colindex of the column titled name.
func (g *Grid) ColumnIndexByName(ctx context.Context, name string) (int, error) {
	cols, err := g.ColumnInfo(ctx)
	if err != nil {
		return 0, err
	}
	names := make([]string, len(cols))
	for i, c := range cols {
		if c.Text == name {
			return c.Index, nil
		}
		names[i] = c.Text
	}
	return 0, fmt.Errorf("column %q not found in %s; available columns: %s", name, g.Name, strings.Join(names, ", "))
}

// ClickLookupLink follows the lookup link in row n of the named column.
func (g *Grid) ClickLookupLink(ctx context.Context, n int, column string) error {
	idx, err := g.ColumnIndexByName(ctx, column)
	if err != nil {
		return err
	}
	return g.ClickLookupLinkAt(ctx, n, idx)
}

// ClickLookupLinkAt follows the lookup link in row n of the column with
// aria-colindex col.
func (g *Grid) ClickLookupLinkAt(ctx context.Context, n, col int) error {
	if err := g.WaitReady(ctx); err != nil {
		return err
	}
	cell := fmt.Sprintf(`div[aria-colindex="%d"]`, col)
	var sels []string
	sels = append(sels, rows(n, cell+" a.ms-Link")...)
	sels = append(sels, rows(n, cell+" a")...)
	target := fmt.Sprintf("lookup link at row %d, column %d in %s", n, col, g.Name)
	if err := g.Click(ctx, target, g.scoped(locator.Selectors(sels...))); err != nil {
		return err
	}
	return g.afterNavigate(ctx)
}

var (
	selectAllInputs = locator.Selectors(
		`div.ag-header-cell[aria-colindex="1"] input[type="checkbox"]`,
		`div.ag-header-select-all input[type="checkbox"]`,
		`input[type="checkbox"][aria-label*="Toggle selection of all rows"]`,
		`input[type="checkbox"][aria-label*="all rows"]`,
	)
	// Fluent UI wrappers intercept pointer events and need a forced click.
	selectAllWrappers = locator.Selectors(
		`div.ag-header-select-all`,
		`div.ag-checkbox.ag-header-select-all`,
		`div.ag-header-cell[aria-colindex="1"] div.ms-Checkbox`,
	)
	selectAllState = locator.Selectors(
		`div.ag-header-cell[aria-colindex="1"] input[type="checkbox"][aria-label*="all"]`,
		`input[type="checkbox"][aria-label*="Toggle selection of all rows"]`,
		`div.ag-header-select-all`,
		`div.ag-header-cell[aria-colindex="1"] div.ms-Checkbox`,
	)
	rowCheckboxWrappers = []string{
		`div.ag-selection-checkbox`,
		`div[aria-colindex="1"] div.ag-checkbox`,
		`div[aria-colindex="1"] div.ms-Checkbox`,
		`div.status-cell div.ms-Checkbox`,
	}
)

// clickPreferred clicks the winner of inputs followed by wrappers, forcing the
// click when a wrapper won.
func (g *Grid) clickPreferred(ctx context.Context, target string, inputs, wrappers locator.Candidates) error {
	cs := append(append(locator.Candidates{}, inputs...), wrappers...)
	res, err := g.Resolve(ctx, target, g.scoped(cs), locator.Click)
	if err != nil {
		return err
	}
	force := res.Index >= len(inputs)
	if err := res.Handle.Click(locator.ClickOptions{Force: force}); err != nil {
		return fmt.Errorf("clicking %s: %w", target, err)
	}
	return nil
}

// SelectAll ticks the header checkbox and waits for a selected row.
func (g *Grid) SelectAll(ctx context.Context) error {
	if err := g.WaitReady(ctx); err != nil {
		return err
	}
	if err := g.clickPreferred(ctx, "select-all checkbox", selectAllInputs, selectAllWrappers); err != nil {
		return err
	}
	return g.WaitAttached(ctx, g.sel(selectedRows))
}

// DeselectAll clears the selection when every record is selected.
func (g *Grid) DeselectAll(ctx context.Context) error {
	all, err := g.AllSelected(ctx)
	if err != nil || !all {
		return err
	}
	if err := g.clickPreferred(ctx, "select-all checkbox", selectAllInputs, selectAllWrappers); err != nil {
		return err
	}
	_, err = g.Wait(ctx, "selection cleared", settle.Not(locator.Present(g.Page, g.sel(selectedRows))), g.timeout(), settle.Hard)
	return err
}

// AllSelected reports whether the header checkbox is ticked.
func (g *Grid) AllSelected(ctx context.Context) (bool, error) {
	if err := g.WaitReady(ctx); err != nil {
		return false, err
	}
	res, err := g.Find(ctx, "select-all state", g.scoped(selectAllState), locator.Read)
	if errors.Is(err, locator.ErrTargetNotResolved) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return checked(res.Handle)
}

// checked reads the state of a checkbox input or of a Fluent UI wrapper.
func checked(el locator.Element) (bool, error) {
	tag, err := el.TagName()
	if err != nil {
		return false, err
	}
	if strings.EqualFold(tag, "input") {
		return el.IsChecked()
	}
	class := attr(el, "class")
	return strings.Contains(class, "ag-checked") ||
		strings.Contains(class, "is-checked") ||
		attr(el, "aria-checked") == "true", nil
}

// SelectNth ticks the checkbox of the zero-based nth record.
func (g *Grid) SelectNth(ctx context.Context, n int) error {
	if err := g.WaitReady(ctx); err != nil {
		return err
	}
	inputs := locator.Selectors(rows(n, `input[type="checkbox"][aria-label*="select"]`)...)
	var wrappers locator.Candidates
	for _, row := range rows(n, "") {
		for _, w := range rowCheckboxWrappers {
			wrappers = append(wrappers, locator.Candidate{Selector: row + " " + w})
		}
	}
	if err := g.clickPreferred(ctx, fmt.Sprintf("row %d checkbox", n), inputs, wrappers); err != nil {
		return err
	}
	marked := make([]string, 0, 4)
	for _, row := range rows(n, "") {
		marked = append(marked, row+`[aria-selected="true"]`, row+".ag-row-selected")
	}
	return g.WaitAttached(ctx, g.sel(strings.Join(marked, ", ")))
}

// IsSelected reports whether the zero-based nth record is selected.
func (g *Grid) IsSelected(ctx context.Context, n int) (bool, error) {
	if err := g.WaitReady(ctx); err != nil {
		return false, err
	}
	res, err := g.Find(ctx, fmt.Sprintf("row %d", n), g.scoped(locator.Selectors(rows(n, "")...)), locator.Attached)
	if errors.Is(err, locator.ErrTargetNotResolved) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	row := res.Handle
	if strings.Contains(attr(row, "class"), "ag-row-selected") || attr(row, "aria-selected") == "true" {
		return true, nil
	}
	boxes, err := row.QueryAll(`input[type="checkbox"][aria-label*="select"]`)
	if err != nil || len(boxes) == 0 {
		return false, err
	}
	return boxes[0].IsChecked()
}

// OpenColumnMenu opens the context menu of the column titled name.
func (g *Grid) OpenColumnMenu(ctx context.Context, name string) error {
	if err := g.WaitReady(ctx); err != nil {
		return err
	}
	header := locator.Candidates{
		locator.NamedExactly(`div.ag-header-cell div[data-testid="columnHeader"]`, name),
		locator.NamedExactly(`div.ag-header-cell div[role="columnheader"]`, name),
	}
	if err := g.Click(ctx, fmt.Sprintf("column header %q", name), g.scoped(header)); err != nil {
		return err
	}
	return g.WaitVisible(ctx, columnMenu)
}

// CloseColumnMenu dismisses an open column menu.
func (g *Grid) CloseColumnMenu(ctx context.Context) error {
	open, err := g.Exists(ctx, "column menu", locator.Selectors(columnMenu), locator.Read)
	if err != nil || !open {
		return err
	}
	if err := g.Page.Press("Escape"); err != nil {
		return err
	}
	return g.WaitHidden(ctx, columnMenu)
}

func (g *Grid) clickColumnMenuOption(ctx context.Context, option string) error {
	if err := g.WaitVisible(ctx, columnMenu); err != nil {
		return err
	}
	items := columnMenu + ` button[role="menuitem"], ` + columnMenu + ` button[role="menuitemradio"]`
	cs := locator.Candidates{
		locator.WithAttr(items, "name", locator.AttrEquals, option),
		locator.Named(items, option),
	}
	return g.Click(ctx, fmt.Sprintf("column menu option %q", option), cs)
}

// SortAscending sorts the named column A to Z.
func (g *Grid) SortAscending(ctx context.Context, column string) error {
	return g.sort(ctx, column, "A to Z")
}

// SortDescending sorts the named column Z to A.
func (g *Grid) SortDescending(ctx context.Context, column string) error {
	return g.sort(ctx, column, "Z to A")
}

func (g *Grid) sort(ctx context.Context, column, option string) error {
	if err := g.OpenColumnMenu(ctx, column); err != nil {
		return err
	}
	if err := g.clickColumnMenuOption(ctx, option); err != nil {
		return err
	}
	return g.WaitReady(ctx)
}

// OpenFilterMenu opens the filter panel of the named column.
func (g *Grid) OpenFilterMenu(ctx context.Context, column string) error {
	if err := g.OpenColumnMenu(ctx, column); err != nil {
		return err
	}
	if err := g.clickColumnMenuOption(ctx, "Filter by"); err != nil {
		return err
	}
	return g.WaitVisible(ctx, panel)
}

// SortState returns the sort applied to the named column.
func (g *Grid) SortState(ctx context.Context, column string) (SortOrder, error) {
	if err := g.WaitReady(ctx); err != nil {
		return Unsorted, err
	}
	headers, err := g.Page.QueryAll(g.sel("div.ag-header-cell"))
	if err != nil {
		return Unsorted, err
	}
	for _, h := range headers {
		labels, err := h.QueryAll(".ms-Label, label")
		if err != nil || len(labels) == 0 || text(labels[0]) != column {
			continue
		}
		if up, _ := h.QueryAll(`i[data-icon-name="SortUp"]`); len(up) > 0 {
			return Ascending, nil
		}
		if down, _ := h.QueryAll(`i[data-icon-name="SortDown"]`); len(down) > 0 {
			return Descending, nil
		}
		class := attr(h, "class")
		switch {
		case strings.Contains(class, "ag-header-cell-sorted-asc"):
			return Ascending, nil
		case strings.Contains(class, "ag-header-cell-sorted-desc"):
			return Descending, nil
		}
		break
	}
	return Unsorted, nil
}

var searchBox = locator.Selectors(
	`input[aria-label*="Search"], input[placeholder*="Search"]`,
	`input[type="search"]`,
	`div.ms-SearchBox input`,
	`[data-id="quickFind_text"]`,
)

// Search filters the grid with the quick find box.
func (g *Grid) Search(ctx context.Context, term string) error {
	if err := g.WaitReady(ctx); err != nil {
		return err
	}
	if err := g.Fill(ctx, "grid search box", searchBox, term); err != nil {
		return err
	}
	if err := g.Page.Press("Enter"); err != nil {
		return err
	}
	return g.WaitReady(ctx)
}

// ClearSearch empties the quick find box. A grid without one is left alone.
func (g *Grid) ClearSearch(ctx context.Context) error {
	res, err := g.Find(ctx, "grid search box", searchBox, locator.Type)
	if errors.Is(err, locator.ErrTargetNotResolved) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := res.Handle.Fill(""); err != nil {
		return err
	}
	if err := g.Page.Press("Enter"); err != nil {
		return err
	}
	return g.WaitReady(ctx)
}

// SearchAndOpen searches the grid then opens the zero-based nth result.
func (g *Grid) SearchAndOpen(ctx context.Context, term string, n int) error {
	if err := g.Search(ctx, term); err != nil {
		return err
	}
	return g.OpenNthRecord(ctx, n)
}

// ClickCommand clicks the command bar button labelled label.
func (g *Grid) ClickCommand(ctx context.Context, label string) error {
	if err := g.WaitReady(ctx); err != nil {
		return err
	}
	cs := locator.Candidates{
		locator.WithAttr("button", "aria-label", locator.AttrEquals, label),
		locator.WithAttr("button", "aria-label", locator.AttrContains, label),
	}
	return g.Click(ctx, fmt.Sprintf("command %q", label), cs)
}

// OpenEditColumns opens the Edit columns panel.
func (g *Grid) OpenEditColumns(ctx context.Context) error {
	if err := g.ClickCommand(ctx, "Edit columns"); err != nil {
		return err
	}
	return g.WaitVisible(ctx, panel)
}

// OpenEditFilters opens the Edit filters panel.
func (g *Grid) OpenEditFilters(ctx context.Context) error {
	if err := g.ClickCommand(ctx, "Edit filters"); err != nil {
		return err
	}
	return g.WaitVisible(ctx, panel)
}

var viewSelectorButton = locator.Selectors(
	`button[aria-label*="Change view"]`,
	`button[aria-label*="Select view"]`,
	`button[data-id*="viewSelector"]`,
	`button[aria-label*="View"]`,
)

// OpenViewSelector opens the view picker.
func (g *Grid) OpenViewSelector(ctx context.Context) error {
	if err := g.WaitReady(ctx); err != nil {
		return err
	}
	if err := g.Click(ctx, "view selector", viewSelectorButton); err != nil {
		return err
	}
	return g.WaitVisible(ctx, viewSelector)
}

type view struct {
	name   string
	button locator.Element
}

func (g *Grid) views(selector string) ([]view, error) {
	buttons, err := g.Page.QueryAll(selector)
	if err != nil {
		return nil, err
	}
	var out []view
	for _, b := range buttons {
		labels, err := b.QueryAll(viewLabel)
		if err != nil {
			return nil, err
		}
		if len(labels) == 0 {
			continue
		}
		out = append(out, view{name: text(labels[0]), button: b})
	}
	return out, nil
}

func (g *Grid) clickView(ctx context.Context, name string) (bool, error) {
	views, err := g.views(viewSelector + ` button[role="menuitemradio"]`)
	if err != nil {
		return false, err
	}
	for _, v := range views {
		if v.name == name {
			if err := v.button.Click(locator.ClickOptions{}); err != nil {
				return false, err
			}
			return true, g.WaitReady(ctx)
		}
	}
	return false, nil
}

// SelectView switches to the view named name, searching the picker when the
// view is not listed up front.
func (g *Grid) SelectView(ctx context.Context, name string) error {
	if err := g.OpenViewSelector(ctx); err != nil {
		return err
	}
	if ok, err := g.clickView(ctx, name); ok || err != nil {
		return err
	}
	if err := g.SearchViews(ctx, name); err != nil {
		return err
	}
	if ok, err := g.clickView(ctx, name); ok || err != nil {
		return err
	}
	return fmt.Errorf("view %q not found in view selector", name)
}

// CurrentView returns the name of the active view.
func (g *Grid) CurrentView(ctx context.Context) (string, error) {
	if err := g.OpenViewSelector(ctx); err != nil {
		return "", err
	}
	views, err := g.views(viewSelector + ` button[role="menuitemradio"][aria-checked="true"]`)
	if err != nil {
		return "", err
	}
	if len(views) == 0 {
		return "", errors.New("no view currently selected")
	}
	return views[0].name, g.Page.Press("Escape")
}

// AvailableViews lists the views in the picker.
func (g *Grid) AvailableViews(ctx context.Context) ([]string, error) {
	if err := g.OpenViewSelector(ctx); err != nil {
		return nil, err
	}
	views, err := g.views(viewSelector + ` button[role="menuitemradio"]`)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(views))
	for _, v := range views {
		if v.name != "" {
			names = append(names, v.name)
		}
	}
	return names, g.Page.Press("Escape")
}

// SearchViews types term into the open view picker's search box.
func (g *Grid) SearchViews(ctx context.Context, term string) error {
	if err := g.WaitVisible(ctx, viewSelector); err != nil {
		return err
	}
	cs := locator.Selectors(
		viewSelector+` input[role="searchbox"]`,
		viewSelector+` input[placeholder*="Search views"]`,
	)
	if err := g.Fill(ctx, "view search box", cs, term); err != nil {
		return err
	}
	return g.WaitVisible(ctx, viewSelector+` button[role="menuitemradio"]`)
}
