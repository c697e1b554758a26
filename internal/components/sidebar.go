package components

import (
	"context"
	"fmt"

	"github.com/gotrs-io/dynamics-e2e/internal/locator"
)

// InterestedPartiesSubArea is the sitemap id of the Interested Parties area.
const InterestedPartiesSubArea = "sitemap-entity-subarea_2a27803a"

// Sidebar is the model-driven app's sitemap navigation.
type Sidebar struct {
	*Actor
}

func NewSidebar(a *Actor) *Sidebar { return &Sidebar{Actor: a} }

func entry(label string) locator.Candidates {
	return locator.Selectors(
		fmt.Sprintf(`li[aria-label=%s]`, quote(label)),
		fmt.Sprintf(`[aria-label=%s]`, quote(label)),
	)
}

// NavigateTo clicks the sitemap entry labelled label.
func (s *Sidebar) NavigateTo(ctx context.Context, label string) error {
	return s.Click(ctx, "sidebar "+label, entry(label))
}

// NavigateToEntity clicks the sitemap entry with the given element id.
func (s *Sidebar) NavigateToEntity(ctx context.Context, id string) error {
	return s.Click(ctx, "sidebar "+id, locator.Selectors(fmt.Sprintf(`li[id=%s]`, quote(id))))
}

func (s *Sidebar) Cases(ctx context.Context) error {
	return s.NavigateTo(ctx, "Cases")
}

func (s *Sidebar) InterestedParties(ctx context.Context) error {
	cs := append(entry("Interested Parties"), locator.Candidate{Selector: fmt.Sprintf(`li[id=%s]`, quote(InterestedPartiesSubArea))})
	return s.Click(ctx, "sidebar Interested Parties", cs)
}

// IsEntityVisible reports whether the entry labelled label is shown.
func (s *Sidebar) IsEntityVisible(ctx context.Context, label string) (bool, error) {
	return s.Exists(ctx, "sidebar "+label, entry(label), locator.Read)
}
