package xrm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Record is a row returned by the web API, keyed by attribute logical name.
type Record map[string]any

// RecordRef identifies a created or updated record.
type RecordRef struct {
	ID         string `json:"id"`
	EntityType string `json:"entityType"`
}

// DeleteResult is what deleteRecord actually resolves to.
type DeleteResult struct {
	ID         string `json:"id"`
	EntityType string `json:"entityType"`
	Name       string `json:"name"`
}

// RecordSet is one page of retrieveMultipleRecords.
type RecordSet struct {
	Entities []Record `json:"entities"`
	NextLink string   `json:"@odata.nextLink,omitempty"`
	Count    *int     `json:"@odata.count,omitempty"`
}

const (
	createScript = `async ({ entityName, recordData }) =>
		await window.Xrm.WebApi.createRecord(entityName, recordData)`
	retrieveScript = `async ({ entityName, recordId, queryOptions }) =>
		await window.Xrm.WebApi.retrieveRecord(entityName, recordId, queryOptions || undefined)`
	retrieveMultipleScript = `async ({ entityName, queryOptions, pageSize }) =>
		await window.Xrm.WebApi.retrieveMultipleRecords(entityName, queryOptions || undefined, pageSize || undefined)`
	updateScript = `async ({ entityName, recordId, recordData }) =>
		await window.Xrm.WebApi.updateRecord(entityName, recordId, recordData)`
	deleteScript = `async ({ entityName, recordId }) =>
		await window.Xrm.WebApi.deleteRecord(entityName, recordId)`
)

// ErrInvalidID is returned for record identifiers that are not GUIDs.
var ErrInvalidID = errors.New("invalid record id")

// NormalizeID strips braces and lower-cases a record GUID.
func NormalizeID(id string) (string, error) {
	trimmed := strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(id), "{"), "}")
	u, err := uuid.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return u.String(), nil
}

// WebAPI performs record CRUD through window.Xrm.WebApi.
type WebAPI struct {
	xrm *Helper
}

func NewWebAPI(h *Helper) *WebAPI { return &WebAPI{xrm: h} }

// CreateRecord creates a single record.
func (w *WebAPI) CreateRecord(ctx context.Context, entity string, data Record) (RecordRef, error) {
	var ref RecordRef
	if entity == "" {
		return ref, errors.New("create: entity logical name required")
	}
	err := w.xrm.EvalInto(ctx, createScript, map[string]any{
		"entityName": entity,
		"recordData": data,
	}, &ref)
	if err != nil {
		return ref, fmt.Errorf("creating %s: %w", entity, err)
	}
	if ref.ID, err = NormalizeID(ref.ID); err != nil {
		return ref, fmt.Errorf("creating %s: %w", entity, err)
	}
	return ref, nil
}

// RetrieveRecord retrieves a single record. options is an OData query string
// such as "?$select=name".
func (w *WebAPI) RetrieveRecord(ctx context.Context, entity, id, options string) (Record, error) {
	nid, err := NormalizeID(id)
	if err != nil {
		return nil, err
	}
	var rec Record
	err = w.xrm.EvalInto(ctx, retrieveScript, map[string]any{
		"entityName":   entity,
		"recordId":     nid,
		"queryOptions": options,
	}, &rec)
	if err != nil {
		return nil, fmt.Errorf("retrieving %s(%s): %w", entity, nid, err)
	}
	return rec, nil
}

// RetrieveMultipleRecords retrieves one page of records. A zero maxPageSize
// leaves paging to the server.
func (w *WebAPI) RetrieveMultipleRecords(ctx context.Context, entity, options string, maxPageSize int) (*RecordSet, error) {
	set := &RecordSet{}
	err := w.xrm.EvalInto(ctx, retrieveMultipleScript, map[string]any{
		"entityName":   entity,
		"queryOptions": options,
		"pageSize":     maxPageSize,
	}, set)
	if err != nil {
		return nil, fmt.Errorf("retrieving %s: %w", entity, err)
	}
	return set, nil
}

// UpdateRecord updates a single record.
func (w *WebAPI) UpdateRecord(ctx context.Context, entity, id string, data Record) (RecordRef, error) {
	var ref RecordRef
	nid, err := NormalizeID(id)
	if err != nil {
		return ref, err
	}
	err = w.xrm.EvalInto(ctx, updateScript, map[string]any{
		"entityName": entity,
		"recordId":   nid,
		"recordData": data,
	}, &ref)
	if err != nil {
		return ref, fmt.Errorf("updating %s(%s): %w", entity, nid, err)
	}
	if ref.ID != "" {
		if ref.ID, err = NormalizeID(ref.ID); err != nil {
			return ref, fmt.Errorf("updating %s(%s): %w", entity, nid, err)
		}
	}
	return ref, nil
}

// DeleteRecord deletes a single record.
func (w *WebAPI) DeleteRecord(ctx context.Context, entity, id string) (DeleteResult, error) {
	var res DeleteResult
	nid, err := NormalizeID(id)
	if err != nil {
		return res, err
	}
	err = w.xrm.EvalInto(ctx, deleteScript, map[string]any{
		"entityName": entity,
		"recordId":   nid,
	}, &res)
	if err != nil {
		return res, fmt.Errorf("deleting %s(%s): %w", entity, nid, err)
	}
	return res, nil
}

// Bind renders an @odata.bind reference to a record in an entity set.
func Bind(entitySet, id string) (string, error) {
	nid, err := NormalizeID(id)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("/%s(%s)", entitySet, nid), nil
}
