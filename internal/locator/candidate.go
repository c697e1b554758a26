// Package locator resolves a logical UI target from an ordered list of
// selector candidates, tolerating the several structures a UI framework may
// render the same target under.
package locator

import (
	"fmt"
	"strings"
)

// AttrOp is the comparison an attribute predicate applies.
type AttrOp string

const (
	AttrEquals   AttrOp = "="
	AttrContains AttrOp = "*="
	AttrPrefix   AttrOp = "^="
	AttrPresent  AttrOp = "present"
)

// AttrPredicate further restricts the elements a selector matches.
type AttrPredicate struct {
	Name  string
	Op    AttrOp
	Value string
}

func (p AttrPredicate) match(value string, present bool) bool {
	if !present {
		return false
	}
	switch p.Op {
	case AttrPresent:
		return true
	case AttrContains:
		return strings.Contains(value, p.Value)
	case AttrPrefix:
		return strings.HasPrefix(value, p.Value)
	default:
		return value == p.Value
	}
}

func (p AttrPredicate) String() string {
	if p.Op == AttrPresent {
		return fmt.Sprintf("@%s", p.Name)
	}
	op := p.Op
	if op == "" {
		op = AttrEquals
	}
	return fmt.Sprintf("@%s%s%q", p.Name, op, p.Value)
}

// Candidate is one way the target may be rendered.
type Candidate struct {
	Selector string
	Attr     *AttrPredicate
	// Name, when set, must occur in the element's accessible name: its text,
	// aria-label, value or title, compared case-insensitively.
	Name string
	// Exact requires the whole accessible name to equal Name.
	Exact bool
}

func (c Candidate) String() string {
	s := c.Selector
	if c.Attr != nil {
		s += " " + c.Attr.String()
	}
	if c.Name != "" {
		op := "~"
		if c.Exact {
			op = "="
		}
		s += fmt.Sprintf(" name%s%q", op, c.Name)
	}
	return s
}

// Named returns a candidate restricted to elements whose accessible name
// contains name.
func Named(selector, name string) Candidate {
	return Candidate{Selector: selector, Name: name}
}

// NamedExactly is Named with a whole-name comparison.
func NamedExactly(selector, name string) Candidate {
	return Candidate{Selector: selector, Name: name, Exact: true}
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func hasName(el Element, name string, exact bool) (bool, error) {
	want := normalize(name)
	matches := func(got string) bool {
		if exact {
			return normalize(got) == want
		}
		return strings.Contains(normalize(got), want)
	}
	text, err := el.Text()
	if err != nil {
		return false, err
	}
	if matches(text) {
		return true, nil
	}
	for _, attr := range []string{"aria-label", "value", "title"} {
		v, ok, err := el.Attr(attr)
		if err != nil {
			return false, err
		}
		if ok && matches(v) {
			return true, nil
		}
	}
	return false, nil
}

// Candidates is ordered most specific first. The earliest match wins.
type Candidates []Candidate

// Selectors builds a candidate list from plain selectors.
func Selectors(selectors ...string) Candidates {
	cs := make(Candidates, len(selectors))
	for i, s := range selectors {
		cs[i] = Candidate{Selector: s}
	}
	return cs
}

// WithAttr returns a candidate restricted by an attribute predicate.
func WithAttr(selector, name string, op AttrOp, value string) Candidate {
	return Candidate{Selector: selector, Attr: &AttrPredicate{Name: name, Op: op, Value: value}}
}

// Prefixed returns a copy of cs with every selector scoped under prefix.
func (cs Candidates) Prefixed(prefix string) Candidates {
	if prefix == "" {
		return cs
	}
	out := make(Candidates, len(cs))
	for i, c := range cs {
		parts := splitGroup(c.Selector)
		for j, p := range parts {
			parts[j] = prefix + " " + p
		}
		c.Selector = strings.Join(parts, ", ")
		out[i] = c
	}
	return out
}

// splitGroup splits a selector group on its top-level commas.
func splitGroup(sel string) []string {
	var (
		parts []string
		depth int
		quote rune
		start int
	)
	for i, r := range sel {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == '[' || r == '(':
			depth++
		case r == ']' || r == ')':
			depth--
		case r == ',' && depth == 0:
			parts = append(parts, strings.TrimSpace(sel[start:i]))
			start = i + 1
		}
	}
	return append(parts, strings.TrimSpace(sel[start:]))
}

// Describe renders the list for diagnostics.
func Describe(cs Candidates) string {
	parts := make([]string, len(cs))
	for i, c := range cs {
		parts[i] = fmt.Sprintf("[%d] %s", i, c)
	}
	return strings.Join(parts, "; ")
}
