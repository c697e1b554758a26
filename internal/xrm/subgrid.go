package xrm

import (
	"context"
	"fmt"
)

const (
	subgridCountScript = `(name) => {
		const control = window.Xrm.Page.getControl(name);
		if (!control) throw new Error("Subgrid control '" + name + "' not found");
		return control.getGrid().getTotalRecordCount() || 0;
	}`
	subgridRowScript = `([name, position]) => {
		const control = window.Xrm.Page.getControl(name);
		if (!control) throw new Error("Subgrid control '" + name + "' not found");
		const row = control.getGrid().getRows().get(position);
		if (!row) throw new Error("No row at position " + position);
		const entity = row.data.entity;
		return { id: entity.getId(), entityType: entity.getEntityName() };
	}`
	subgridInfoScript = `(name) => {
		const control = window.Xrm.Page.getControl(name);
		if (!control) throw new Error("Subgrid control '" + name + "' not found");
		const tab = control.getParent().getParent();
		if (tab && tab.setFocus) tab.setFocus();
		return control.getEntityName();
	}`
	subgridRefreshScript = `(name) => {
		const control = window.Xrm.Page.getControl(name);
		if (!control) throw new Error("Subgrid control '" + name + "' not found");
		control.refresh();
		return true;
	}`
	openFormScript = `async ([entityName, entityId]) => {
		await window.Xrm.Navigation.openForm({ entityName, entityId });
		return true;
	}`
)

// SubGridControl drives a form subgrid through its grid control.
type SubGridControl struct {
	xrm  *Helper
	Name string
}

func NewSubGridControl(h *Helper, name string) *SubGridControl {
	return &SubGridControl{xrm: h, Name: name}
}

// RecordCount returns the total number of records behind the subgrid.
func (s *SubGridControl) RecordCount(ctx context.Context) (int, error) {
	var n int
	if err := s.xrm.EvalInto(ctx, subgridCountScript, s.Name, &n); err != nil {
		return 0, fmt.Errorf("subgrid %s: %w", s.Name, err)
	}
	return n, nil
}

// Row returns the record at a zero-based position.
func (s *SubGridControl) Row(ctx context.Context, position int) (RecordRef, error) {
	var ref RecordRef
	if err := s.xrm.EvalInto(ctx, subgridRowScript, []any{s.Name, position}, &ref); err != nil {
		return ref, fmt.Errorf("subgrid %s row %d: %w", s.Name, position, err)
	}
	id, err := NormalizeID(ref.ID)
	if err != nil {
		return ref, err
	}
	ref.ID = id
	return ref, nil
}

// FocusTab brings the subgrid's tab forward and returns the entity it lists.
func (s *SubGridControl) FocusTab(ctx context.Context) (string, error) {
	var entity string
	if err := s.xrm.EvalInto(ctx, subgridInfoScript, s.Name, &entity); err != nil {
		return "", fmt.Errorf("subgrid %s: %w", s.Name, err)
	}
	if entity == "" {
		return "", fmt.Errorf("subgrid %s: entity name unknown", s.Name)
	}
	return entity, nil
}

func (s *SubGridControl) Refresh(ctx context.Context) error {
	if _, err := s.xrm.Eval(ctx, subgridRefreshScript, s.Name); err != nil {
		return fmt.Errorf("refreshing subgrid %s: %w", s.Name, err)
	}
	return nil
}

// OpenForm navigates to a record's main form and waits for it to load.
func (h *Helper) OpenForm(ctx context.Context, ref RecordRef) error {
	if _, err := h.Eval(ctx, openFormScript, []any{ref.EntityType, ref.ID}); err != nil {
		return fmt.Errorf("opening %s(%s): %w", ref.EntityType, ref.ID, err)
	}
	return h.WaitForXrmReady(ctx)
}
