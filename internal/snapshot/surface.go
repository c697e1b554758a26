// Package snapshot serves a static HTML document as a locator surface. It backs
// unit tests of page objects and lets saved page dumps be probed offline.
package snapshot

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"github.com/gotrs-io/dynamics-e2e/internal/locator"
)

// Action is an interaction performed on the snapshot.
type Action struct {
	// Kind is one of click, dblclick, fill, press.
	Kind  string
	Path  string
	Value string
	Force bool
}

// Surface implements locator.Surface over a parsed document. Interactions do
// not run scripts; they are recorded, and OnAction may mutate the document to
// simulate the page's reaction.
type Surface struct {
	doc *goquery.Document
	url string

	mu      sync.Mutex
	actions []Action
	// OnAction is called after every recorded interaction with the element it
	// targeted (nil for key presses).
	OnAction func(s *Surface, a Action, target *goquery.Selection)
}

var _ locator.Surface = (*Surface)(nil)

// New parses an HTML document.
func New(r io.Reader, url string) (*Surface, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parsing snapshot: %w", err)
	}
	return &Surface{doc: doc, url: url}, nil
}

// Parse parses an HTML string.
func Parse(html, url string) (*Surface, error) {
	return New(strings.NewReader(html), url)
}

// Open reads a saved page dump from disk.
func Open(path string) (*Surface, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return New(f, "file://"+path)
}

func (s *Surface) URL() string { return s.url }

// SetURL changes the reported document address.
func (s *Surface) SetURL(url string) { s.url = url }

// Document exposes the underlying document for mutation in tests.
func (s *Surface) Document() *goquery.Document { return s.doc }

func (s *Surface) QueryAll(selector string) ([]locator.Element, error) {
	return query(s, s.doc.Selection, selector)
}

// Press records a key press on the focused element.
func (s *Surface) Press(key string) error {
	s.record(Action{Kind: "press", Value: key}, nil)
	return nil
}

// Actions returns the interactions recorded so far.
func (s *Surface) Actions() []Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Action(nil), s.actions...)
}

func (s *Surface) record(a Action, target *goquery.Selection) {
	s.mu.Lock()
	s.actions = append(s.actions, a)
	hook := s.OnAction
	s.mu.Unlock()
	if hook != nil {
		hook(s, a, target)
	}
}

func query(s *Surface, root *goquery.Selection, selector string) ([]locator.Element, error) {
	m, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", selector, err)
	}
	found := root.FindMatcher(m)
	els := make([]locator.Element, 0, found.Length())
	found.Each(func(_ int, sel *goquery.Selection) {
		els = append(els, &element{s: s, sel: sel})
	})
	return els, nil
}

type element struct {
	s   *Surface
	sel *goquery.Selection
}

func (e *element) IsVisible() (bool, error) {
	if goquery.NodeName(e.sel) == "input" && strings.EqualFold(e.sel.AttrOr("type", ""), "hidden") {
		return false, nil
	}
	for n := e.sel; n.Length() > 0; n = n.Parent() {
		if hiddenNode(n) {
			return false, nil
		}
	}
	return true, nil
}

func hiddenNode(n *goquery.Selection) bool {
	if _, ok := n.Attr("hidden"); ok {
		return true
	}
	if n.AttrOr("aria-hidden", "") == "true" {
		return true
	}
	style := strings.ReplaceAll(strings.ToLower(n.AttrOr("style", "")), " ", "")
	return strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden")
}

func (e *element) IsEnabled() (bool, error) {
	if _, ok := e.sel.Attr("disabled"); ok {
		return false, nil
	}
	return e.sel.AttrOr("aria-disabled", "") != "true", nil
}

func (e *element) IsEditable() (bool, error) {
	if ok, _ := e.IsEnabled(); !ok {
		return false, nil
	}
	if _, ok := e.sel.Attr("readonly"); ok {
		return false, nil
	}
	switch goquery.NodeName(e.sel) {
	case "textarea", "select":
		return true, nil
	case "input":
		switch strings.ToLower(e.sel.AttrOr("type", "text")) {
		case "checkbox", "radio", "button", "submit", "reset", "hidden", "image":
			return false, nil
		}
		return true, nil
	}
	v, ok := e.sel.Attr("contenteditable")
	return ok && v != "false", nil
}

func (e *element) IsChecked() (bool, error) {
	if _, ok := e.sel.Attr("checked"); ok {
		return true, nil
	}
	return e.sel.AttrOr("aria-checked", "") == "true", nil
}

func (e *element) Attr(name string) (string, bool, error) {
	v, ok := e.sel.Attr(name)
	return v, ok, nil
}

func (e *element) Text() (string, error) { return e.sel.Text(), nil }

func (e *element) TagName() (string, error) { return goquery.NodeName(e.sel), nil }

func (e *element) QueryAll(selector string) ([]locator.Element, error) {
	return query(e.s, e.sel, selector)
}

func (e *element) Click(opts locator.ClickOptions) error {
	if err := e.actionable(opts.Force); err != nil {
		return err
	}
	if goquery.NodeName(e.sel) == "input" {
		switch strings.ToLower(e.sel.AttrOr("type", "")) {
		case "checkbox":
			if ok, _ := e.IsChecked(); ok {
				e.sel.RemoveAttr("checked")
			} else {
				e.sel.SetAttr("checked", "")
			}
		case "radio":
			e.sel.SetAttr("checked", "")
		}
	}
	e.s.record(Action{Kind: "click", Path: e.path(), Force: opts.Force}, e.sel)
	return nil
}

func (e *element) DblClick() error {
	if err := e.actionable(false); err != nil {
		return err
	}
	e.s.record(Action{Kind: "dblclick", Path: e.path()}, e.sel)
	return nil
}

func (e *element) Fill(value string) error {
	if ok, _ := e.IsEditable(); !ok {
		return fmt.Errorf("element %s is not editable", e.path())
	}
	if goquery.NodeName(e.sel) == "textarea" {
		e.sel.SetText(value)
	} else {
		e.sel.SetAttr("value", value)
	}
	e.s.record(Action{Kind: "fill", Path: e.path(), Value: value}, e.sel)
	return nil
}

func (e *element) actionable(force bool) error {
	if force {
		return nil
	}
	if ok, _ := e.IsVisible(); !ok {
		return fmt.Errorf("element %s is not visible", e.path())
	}
	if ok, _ := e.IsEnabled(); !ok {
		return fmt.Errorf("element %s is not enabled", e.path())
	}
	return nil
}

// path renders a short css-like path for the action log.
func (e *element) path() string {
	var parts []string
	for n := e.sel; n.Length() > 0; n = n.Parent() {
		name := goquery.NodeName(n)
		if name == "html" || name == "#document" {
			break
		}
		if id, ok := n.Attr("id"); ok {
			parts = append(parts, name+"#"+id)
			break
		}
		parts = append(parts, name)
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, " > ")
}
