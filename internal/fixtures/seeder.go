package fixtures

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/gotrs-io/dynamics-e2e/internal/xrm"
)

// Records is the part of xrm.WebAPI the seeder needs.
type Records interface {
	CreateRecord(ctx context.Context, entity string, data xrm.Record) (xrm.RecordRef, error)
	DeleteRecord(ctx context.Context, entity, id string) (xrm.DeleteResult, error)
}

var _ Records = (*xrm.WebAPI)(nil)

// Seeded holds the records a scenario created.
type Seeded struct {
	Scenario string
	Category xrm.RecordRef
	CaseType xrm.RecordRef
	Case     xrm.RecordRef
	// CaseName is the generated, timestamped case name.
	CaseName string
}

// Seeder creates scenario records and remembers them for Cleanup.
type Seeder struct {
	API     Records
	Factory Factory
	Logger  logr.Logger

	created []xrm.RecordRef
}

func NewSeeder(api Records, logger logr.Logger) *Seeder {
	return &Seeder{API: api, Logger: logger}
}

func (s *Seeder) create(ctx context.Context, entity string, rec xrm.Record) (xrm.RecordRef, error) {
	ref, err := s.API.CreateRecord(ctx, entity, rec)
	if err != nil {
		return ref, err
	}
	if ref.EntityType == "" {
		ref.EntityType = entity
	}
	s.created = append(s.created, ref)
	s.Logger.V(1).Info("seeded record", "entity", entity, "id", ref.ID)
	return ref, nil
}

// Seed creates the scenario's category, then a case type in it, then a case
// of that type. Records created before a failure are still cleaned up.
func (s *Seeder) Seed(ctx context.Context, sc Scenario) (*Seeded, error) {
	out := &Seeded{Scenario: sc.Name}

	var err error
	if out.Category, err = s.create(ctx, EntityCategory, s.Factory.Category(sc.Category)); err != nil {
		return nil, fmt.Errorf("seeding %s category: %w", sc.Name, err)
	}

	ct := sc.CaseType
	ct.CategoryID = out.Category.ID
	rec, err := s.Factory.CaseType(ct)
	if err != nil {
		return nil, err
	}
	if out.CaseType, err = s.create(ctx, EntityCaseType, rec); err != nil {
		return nil, fmt.Errorf("seeding %s case type: %w", sc.Name, err)
	}

	c := sc.Case
	c.CategoryID = out.Category.ID
	c.CaseTypeID = out.CaseType.ID
	if rec, err = s.Factory.Case(c); err != nil {
		return nil, err
	}
	out.CaseName, _ = rec["cg_name"].(string)
	if out.Case, err = s.create(ctx, EntityCase, rec); err != nil {
		return nil, fmt.Errorf("seeding %s case: %w", sc.Name, err)
	}
	return out, nil
}

// SeedNamed looks up a scenario by name and seeds it.
func (s *Seeder) SeedNamed(ctx context.Context, name string) (*Seeded, error) {
	sc, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	return s.Seed(ctx, sc)
}

// Cleanup deletes everything seeded, newest first. It keeps going past
// failures and reports them together.
func (s *Seeder) Cleanup(ctx context.Context) error {
	var errs []error
	for i := len(s.created) - 1; i >= 0; i-- {
		ref := s.created[i]
		if _, err := s.API.DeleteRecord(ctx, ref.EntityType, ref.ID); err != nil {
			s.Logger.Error(err, "cleanup failed", "entity", ref.EntityType, "id", ref.ID)
			errs = append(errs, err)
			continue
		}
		s.Logger.V(1).Info("deleted seeded record", "entity", ref.EntityType, "id", ref.ID)
	}
	s.created = nil
	return errors.Join(errs...)
}
