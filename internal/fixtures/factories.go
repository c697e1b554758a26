// Package fixtures builds case-management test records and seeds them through
// the web API.
package fixtures

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gotrs-io/dynamics-e2e/internal/xrm"
)

// Entity logical names and the entity sets lookups bind to.
const (
	EntityCategory = "cg_case_category"
	EntityCaseType = "cg_case_type"
	EntityCase     = "cg_case"

	categorySet = "cg_case_categories"
	caseTypeSet = "cg_case_types"
)

// ShowOnPortal is the cg_showonportal option set.
type ShowOnPortal int

const (
	ShowOnPortalYes ShowOnPortal = 121480000
	ShowOnPortalNo  ShowOnPortal = 121480001
)

// UnmarshalYAML accepts yes/no as well as the raw option value.
func (s *ShowOnPortal) UnmarshalYAML(n *yaml.Node) error {
	switch strings.ToLower(n.Value) {
	case "yes", "true":
		*s = ShowOnPortalYes
		return nil
	case "no", "false":
		*s = ShowOnPortalNo
		return nil
	}
	v, err := strconv.Atoi(n.Value)
	if err != nil || (ShowOnPortal(v) != ShowOnPortalYes && ShowOnPortal(v) != ShowOnPortalNo) {
		return fmt.Errorf("line %d: invalid showOnPortal %q", n.Line, n.Value)
	}
	*s = ShowOnPortal(v)
	return nil
}

func (s ShowOnPortal) orDefault() ShowOnPortal {
	if s == 0 {
		return ShowOnPortalYes
	}
	return s
}

type CategoryOptions struct {
	Name         string       `yaml:"name"`
	ShowOnPortal ShowOnPortal `yaml:"showOnPortal"`
}

type CaseTypeOptions struct {
	Name         string       `yaml:"name"`
	Description  string       `yaml:"description"`
	ShowOnPortal ShowOnPortal `yaml:"showOnPortal"`
	CategoryID   string       `yaml:"-"`
}

type CaseOptions struct {
	Name       string `yaml:"name"`
	CategoryID string `yaml:"-"`
	CaseTypeID string `yaml:"-"`
}

// Factory builds record payloads. Names get a millisecond timestamp suffix so
// repeated runs do not collide.
type Factory struct {
	Now func() time.Time
}

func (f Factory) stamp() int64 {
	if f.Now == nil {
		return time.Now().UnixMilli()
	}
	return f.Now().UnixMilli()
}

func or(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// Category builds a cg_case_category payload.
func (f Factory) Category(o CategoryOptions) xrm.Record {
	return xrm.Record{
		"cg_case_category": fmt.Sprintf("%s %d", or(o.Name, "Test Category"), f.stamp()),
		"cg_showonportal":  int(o.ShowOnPortal.orDefault()),
	}
}

// CaseType builds a cg_case_type payload, bound to a category when one is
// given.
func (f Factory) CaseType(o CaseTypeOptions) (xrm.Record, error) {
	ts := f.stamp()
	rec := xrm.Record{
		"cg_case_type":    fmt.Sprintf("%s %d", or(o.Name, "Test Case Type"), ts),
		"cg_description":  or(o.Description, fmt.Sprintf("Test description %d", ts)),
		"cg_showonportal": int(o.ShowOnPortal.orDefault()),
	}
	if o.CategoryID != "" {
		bind, err := xrm.Bind(categorySet, o.CategoryID)
		if err != nil {
			return nil, err
		}
		rec["cg_Case_Category@odata.bind"] = bind
	}
	return rec, nil
}

// Case builds a cg_case payload with optional category and case type lookups.
func (f Factory) Case(o CaseOptions) (xrm.Record, error) {
	rec := xrm.Record{
		"cg_name": fmt.Sprintf("%s %d", or(o.Name, "Test Case"), f.stamp()),
	}
	for _, b := range []struct{ field, set, id string }{
		{"cg_Case_Category@odata.bind", categorySet, o.CategoryID},
		{"cg_Case_Type@odata.bind", caseTypeSet, o.CaseTypeID},
	} {
		if b.id == "" {
			continue
		}
		bind, err := xrm.Bind(b.set, b.id)
		if err != nil {
			return nil, err
		}
		rec[b.field] = bind
	}
	return rec, nil
}

// CaseBulk builds count cases named "<name> 1" to "<name> count".
func (f Factory) CaseBulk(count int, o CaseOptions) ([]xrm.Record, error) {
	recs := make([]xrm.Record, 0, count)
	for i := range count {
		opts := o
		opts.Name = fmt.Sprintf("%s %d", or(o.Name, "Bulk Test Case"), i+1)
		rec, err := f.Case(opts)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}
