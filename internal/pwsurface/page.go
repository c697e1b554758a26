// Package pwsurface adapts a live playwright page to the locator surface.
package pwsurface

import (
	"context"
	"fmt"

	"github.com/playwright-community/playwright-go"

	"github.com/gotrs-io/dynamics-e2e/internal/locator"
	"github.com/gotrs-io/dynamics-e2e/internal/settle"
)

// Page wraps a playwright page.
type Page struct {
	playwright.Page
}

var _ locator.Surface = (*Page)(nil)

// New wraps p.
func New(p playwright.Page) *Page { return &Page{Page: p} }

func (p *Page) QueryAll(selector string) ([]locator.Element, error) {
	handles, err := p.Page.QuerySelectorAll(selector)
	if err != nil {
		return nil, err
	}
	return wrap(handles), nil
}

func (p *Page) URL() string { return p.Page.URL() }

// Press sends a key press to the focused element.
func (p *Page) Press(key string) error {
	return p.Page.Keyboard().Press(key)
}

// Eval returns a predicate that holds when the javascript expression
// evaluates truthy in the page.
func (p *Page) Eval(expression string) settle.Predicate {
	return func(context.Context) (bool, error) {
		v, err := p.Page.Evaluate(expression)
		if err != nil {
			return false, err
		}
		return truthy(v), nil
	}
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case int:
		return t != 0
	case float64:
		return t != 0
	default:
		return true
	}
}

func wrap(handles []playwright.ElementHandle) []locator.Element {
	els := make([]locator.Element, len(handles))
	for i, h := range handles {
		els[i] = &element{h: h}
	}
	return els
}

type element struct {
	h playwright.ElementHandle
}

func (e *element) IsVisible() (bool, error)  { return e.h.IsVisible() }
func (e *element) IsEnabled() (bool, error)  { return e.h.IsEnabled() }
func (e *element) IsEditable() (bool, error) { return e.h.IsEditable() }
func (e *element) IsChecked() (bool, error)  { return e.h.IsChecked() }

func (e *element) Attr(name string) (string, bool, error) {
	present, err := e.h.Evaluate(`(el, name) => el.hasAttribute(name)`, name)
	if err != nil {
		return "", false, err
	}
	if ok, _ := present.(bool); !ok {
		return "", false, nil
	}
	v, err := e.h.GetAttribute(name)
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (e *element) Text() (string, error) { return e.h.TextContent() }

func (e *element) TagName() (string, error) {
	v, err := e.h.Evaluate(`el => el.tagName.toLowerCase()`)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("unexpected tag name %v", v)
	}
	return s, nil
}

func (e *element) QueryAll(selector string) ([]locator.Element, error) {
	handles, err := e.h.QuerySelectorAll(selector)
	if err != nil {
		return nil, err
	}
	return wrap(handles), nil
}

func (e *element) Click(opts locator.ClickOptions) error {
	if opts.Force {
		return e.h.Click(playwright.ElementHandleClickOptions{Force: playwright.Bool(true)})
	}
	return e.h.Click()
}

func (e *element) DblClick() error { return e.h.Dblclick() }

func (e *element) Fill(value string) error { return e.h.Fill(value) }
