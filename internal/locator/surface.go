package locator

import (
	"context"

	"github.com/gotrs-io/dynamics-e2e/internal/settle"
)

// Surface is a queryable page or document.
type Surface interface {
	QueryAll(selector string) ([]Element, error)
	// URL is the address of the document, used in diagnostics.
	URL() string
}

// ClickOptions tune a click.
type ClickOptions struct {
	// Force skips actionability checks, for wrappers whose pointer events are
	// intercepted by an overlay.
	Force bool
}

// Element is a handle on a single node of a Surface.
type Element interface {
	IsVisible() (bool, error)
	IsEnabled() (bool, error)
	IsEditable() (bool, error)
	IsChecked() (bool, error)
	// Attr returns the attribute value and whether it is present.
	Attr(name string) (string, bool, error)
	Text() (string, error)
	TagName() (string, error)
	QueryAll(selector string) ([]Element, error)

	Click(opts ClickOptions) error
	DblClick() error
	Fill(value string) error
}

// Intent is the interaction the caller will perform on the resolved element.
// It decides which actionability checks a match must pass.
type Intent int

const (
	// Read requires the element to be visible.
	Read Intent = iota
	// Click requires the element to be visible and enabled.
	Click
	// Type requires the element to be visible, enabled and editable.
	Type
	// Attached only requires the element to exist.
	Attached
)

func (i Intent) String() string {
	switch i {
	case Click:
		return "click"
	case Type:
		return "type"
	case Attached:
		return "attached"
	default:
		return "read"
	}
}

// ParseIntent is the inverse of Intent.String.
func ParseIntent(s string) (Intent, bool) {
	for _, i := range []Intent{Read, Click, Type, Attached} {
		if i.String() == s {
			return i, true
		}
	}
	return Read, false
}

func (i Intent) accepts(el Element) (bool, error) {
	if i == Attached {
		return true, nil
	}
	if ok, err := el.IsVisible(); err != nil || !ok {
		return false, err
	}
	if i == Read {
		return true, nil
	}
	if ok, err := el.IsEnabled(); err != nil || !ok {
		return false, err
	}
	if i == Click {
		return true, nil
	}
	return el.IsEditable()
}

// Visible holds when at least one element matching selector is visible.
func Visible(s Surface, selector string) settle.Predicate {
	return func(context.Context) (bool, error) {
		els, err := s.QueryAll(selector)
		if err != nil {
			return false, err
		}
		for _, el := range els {
			if ok, err := el.IsVisible(); err == nil && ok {
				return true, nil
			}
		}
		return false, nil
	}
}

// Hidden holds when no element matching selector is visible, including when
// nothing matches at all.
func Hidden(s Surface, selector string) settle.Predicate {
	return settle.Not(Visible(s, selector))
}

// Present holds when selector matches at least one element.
func Present(s Surface, selector string) settle.Predicate {
	return func(context.Context) (bool, error) {
		els, err := s.QueryAll(selector)
		if err != nil {
			return false, err
		}
		return len(els) > 0, nil
	}
}
