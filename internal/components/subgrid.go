package components

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gotrs-io/dynamics-e2e/internal/locator"
	"github.com/gotrs-io/dynamics-e2e/internal/xrm"
)

// AddNewTimeout bounds the look for the subgrid's own Add New button before
// falling back to the overflow menu.
const AddNewTimeout = 5 * time.Second

// SubGrid is a grid embedded in a form, scoped to its container.
type SubGrid struct {
	*Grid
	control *xrm.SubGridControl
	xrm     *xrm.Helper
}

// NewSubGrid returns the subgrid control named name.
func NewSubGrid(a *Actor, x *xrm.Helper, name string) *SubGrid {
	g := &Grid{Actor: a, Name: "subgrid " + name, Xrm: x, scope: fmt.Sprintf(`div[data-id=%s]`, quote(name))}
	return &SubGrid{Grid: g, control: xrm.NewSubGridControl(x, name), xrm: x}
}

func (s *SubGrid) ControlName() string { return s.control.Name }

// IsVisible reports whether the subgrid and its section and tab are visible.
func (s *SubGrid) IsVisible(ctx context.Context) (bool, error) {
	return xrm.NewControl(s.xrm).IsVisible(ctx, s.control.Name)
}

func (s *SubGrid) IsDisabled(ctx context.Context) (bool, error) {
	return xrm.NewControl(s.xrm).IsDisabled(ctx, s.control.Name)
}

// RecordCount returns the number of records behind the subgrid.
func (s *SubGrid) RecordCount(ctx context.Context) (int, error) {
	return s.control.RecordCount(ctx)
}

// OpenRecordForm opens the zero-based nth record's form through the client
// API rather than the rendered row.
func (s *SubGrid) OpenRecordForm(ctx context.Context, n int) error {
	ref, err := s.control.Row(ctx, n)
	if err != nil {
		return err
	}
	return s.xrm.OpenForm(ctx, ref)
}

// CreateNewRecord clicks the subgrid's Add New command, looking in the
// overflow menu when it is not on the bar.
func (s *SubGrid) CreateNewRecord(ctx context.Context) error {
	entity, err := s.control.FocusTab(ctx)
	if err != nil {
		return err
	}
	container := fmt.Sprintf(`div[data-control-name=%s]`, quote(s.control.Name))
	addNew := fmt.Sprintf(`button[data-id*="Mscrm.SubGrid.%s.AddNewStandard"]`, entity)

	res, err := s.ResolveWithin(ctx, "add new "+entity, locator.Selectors(container+" "+addNew), locator.Click, AddNewTimeout)
	switch {
	case err == nil:
		if err := res.Handle.Click(locator.ClickOptions{}); err != nil {
			return err
		}
	case errors.Is(err, locator.ErrTargetNotResolved):
		if err := s.Click(ctx, "subgrid overflow", locator.Selectors(container+` button[data-id*="OverflowButton"]`)); err != nil {
			return err
		}
		if err := s.Click(ctx, "overflow add new "+entity, locator.Selectors(`ul[data-id="OverflowFlyout"] `+addNew)); err != nil {
			return err
		}
	default:
		return err
	}
	return s.xrm.WaitForXrmReady(ctx)
}

// Refresh reloads the subgrid's records.
func (s *SubGrid) Refresh(ctx context.Context) error {
	return s.control.Refresh(ctx)
}
