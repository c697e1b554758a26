package xrm

import (
	"context"
	"fmt"
)

// FormType is the value of Xrm.Page.ui.getFormType().
type FormType int

const (
	FormUndefined FormType = 0
	FormCreate    FormType = 1
	FormUpdate    FormType = 2
	FormReadOnly  FormType = 3
	FormDisabled  FormType = 4
	FormBulkEdit  FormType = 6
)

func (f FormType) String() string {
	switch f {
	case FormCreate:
		return "create"
	case FormUpdate:
		return "update"
	case FormReadOnly:
		return "read-only"
	case FormDisabled:
		return "disabled"
	case FormBulkEdit:
		return "bulk-edit"
	default:
		return "undefined"
	}
}

const (
	recordIDScript         = `() => window.Xrm.Page.data.entity.getId()`
	entityNameScript       = `() => window.Xrm.Page.data.entity.getEntityName()`
	saveScript             = `async () => await window.Xrm.Page.data.entity.save()`
	isDirtyScript          = `() => window.Xrm.Page.data.entity.getIsDirty()`
	primaryAttributeScript = `() => window.Xrm.Page.data.entity.getPrimaryAttributeValue()`
	isValidScript          = `() => window.Xrm.Page.data.entity.isValid()`
	formTypeScript         = `() => window.Xrm.Page.ui.getFormType()`
	refreshScript          = `async (save) => await window.Xrm.Page.data.refresh(save)`
)

// Entity is the record open on the current form.
type Entity struct {
	xrm *Helper
}

func NewEntity(h *Helper) *Entity { return &Entity{xrm: h} }

// RecordID returns the normalised id of the open record, or "" on a create
// form.
func (e *Entity) RecordID(ctx context.Context) (string, error) {
	var id string
	if err := e.xrm.EvalInto(ctx, recordIDScript, nil, &id); err != nil {
		return "", fmt.Errorf("reading record id: %w", err)
	}
	if id == "" {
		return "", nil
	}
	return NormalizeID(id)
}

func (e *Entity) EntityName(ctx context.Context) (string, error) {
	var name string
	err := e.xrm.EvalInto(ctx, entityNameScript, nil, &name)
	return name, err
}

// Save saves the open record.
func (e *Entity) Save(ctx context.Context) error {
	_, err := e.xrm.Eval(ctx, saveScript, nil)
	if err != nil {
		return fmt.Errorf("saving record: %w", err)
	}
	return nil
}

func (e *Entity) IsDirty(ctx context.Context) (bool, error) {
	var dirty bool
	err := e.xrm.EvalInto(ctx, isDirtyScript, nil, &dirty)
	return dirty, err
}

// PrimaryAttributeValue is usually the record's name.
func (e *Entity) PrimaryAttributeValue(ctx context.Context) (string, error) {
	var v *string
	if err := e.xrm.EvalInto(ctx, primaryAttributeScript, nil, &v); err != nil {
		return "", err
	}
	if v == nil {
		return "", nil
	}
	return *v, nil
}

func (e *Entity) IsValid(ctx context.Context) (bool, error) {
	var ok bool
	err := e.xrm.EvalInto(ctx, isValidScript, nil, &ok)
	return ok, err
}

func (e *Entity) FormType(ctx context.Context) (FormType, error) {
	var ft FormType
	err := e.xrm.EvalInto(ctx, formTypeScript, nil, &ft)
	return ft, err
}

// Refresh reloads the record data, saving first when save is true.
func (e *Entity) Refresh(ctx context.Context, save bool) error {
	_, err := e.xrm.Eval(ctx, refreshScript, save)
	if err != nil {
		return fmt.Errorf("refreshing record: %w", err)
	}
	return nil
}
