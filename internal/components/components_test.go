package components

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-logr/logr/testr"
	"github.com/stretchr/testify/require"

	"github.com/gotrs-io/dynamics-e2e/internal/clock"
	"github.com/gotrs-io/dynamics-e2e/internal/settle"
	"github.com/gotrs-io/dynamics-e2e/internal/snapshot"
)

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func newActor(t *testing.T, s *snapshot.Surface) (*Actor, *clock.Fake) {
	t.Helper()
	fake := clock.NewFake(epoch)
	return &Actor{
		Page:       s,
		Timeout:    15 * time.Second,
		Clock:      fake,
		NewBackOff: settle.FixedBackOff(250 * time.Millisecond),
		Logger:     testr.New(t),
	}, fake
}

func open(t *testing.T, path string) *snapshot.Surface {
	t.Helper()
	s, err := snapshot.Open(path)
	require.NoError(t, err)
	return s
}

func parse(t *testing.T, html string) *snapshot.Surface {
	t.Helper()
	s, err := snapshot.Parse(html, "https://org.crm11.dynamics.com/main.aspx")
	require.NoError(t, err)
	return s
}

// events collects a short description of every interaction.
type events []string

func (e *events) add(a snapshot.Action, target *goquery.Selection) {
	desc := a.Value
	if target != nil {
		switch {
		case target.AttrOr("href", "") != "":
			desc = target.AttrOr("href", "")
		case target.AttrOr("aria-label", "") != "":
			desc = target.AttrOr("aria-label", "")
		default:
			desc = strings.Join(strings.Fields(target.Text()), " ")
		}
		if a.Kind == "fill" {
			desc += "=" + a.Value
		}
	}
	*e = append(*e, a.Kind+" "+desc)
}

func show(s *snapshot.Surface, sel string) { s.Document().Find(sel).RemoveAttr("style") }

func hide(s *snapshot.Surface, sel string) { s.Document().Find(sel).SetAttr("style", "display:none") }

// fakeXrm counts readiness waits.
type fakeXrm struct{ waits int }

func (f *fakeXrm) WaitForXrmReady(context.Context) error {
	f.waits++
	return nil
}
