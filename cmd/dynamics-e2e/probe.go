package main

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/gotrs-io/dynamics-e2e/internal/locator"
	"github.com/gotrs-io/dynamics-e2e/internal/snapshot"
)

func newProbeCommand() *cobra.Command {
	var (
		path       string
		selectors  []string
		names      []string
		intentName string
	)
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Resolve a candidate list against a saved page",
		Long: `Resolve an ordered candidate list against a saved HTML dump, the way a test
would, and report which candidate wins. Candidates are tried in flag order.
A --name entry pairs with the -c at the same position and restricts it to
elements with that accessible name.`,
		Example: `  dynamics-e2e probe --snapshot grid.html --intent click \
    -c 'input[aria-label="Toggle selection of all rows"]' \
    -c 'div.ag-header-select-all'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(selectors) == 0 {
				return errors.New("at least one -c candidate is required")
			}
			if len(names) > len(selectors) {
				return errors.New("more --name values than -c candidates")
			}
			intent, ok := locator.ParseIntent(intentName)
			if !ok {
				return fmt.Errorf("unknown intent %q (want read, click, type or attached)", intentName)
			}
			s, err := snapshot.Open(path)
			if err != nil {
				return err
			}

			cs := make(locator.Candidates, len(selectors))
			for i, sel := range selectors {
				cs[i] = locator.Candidate{Selector: sel}
				if i < len(names) && names[i] != "" {
					cs[i] = locator.Named(sel, names[i])
				}
			}

			res, resolveErr := locator.First(cmd.Context(), s, cs, intent)
			if resolveErr != nil && !errors.Is(resolveErr, locator.ErrTargetNotResolved) {
				return resolveErr
			}

			out := cmd.OutOrStdout()
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			for i, c := range cs {
				els, err := s.QueryAll(c.Selector)
				mark, detail := " ", fmt.Sprintf("%d matches", len(els))
				if err != nil {
					detail = color.RedString(err.Error())
				}
				if resolveErr == nil && i == res.Index {
					mark = color.GreenString("✓")
					detail += "  " + describe(res.Handle)
				}
				fmt.Fprintf(w, "%s\t[%d]\t%s\t%s\n", mark, i, c, detail)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if resolveErr != nil {
				fmt.Fprintf(out, "%s no candidate resolved for %s\n", color.RedString("✗"), intent)
				return resolveErr
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "snapshot", "", "Saved HTML page to probe")
	cmd.Flags().StringArrayVarP(&selectors, "candidate", "c", nil, "CSS selector candidate, repeatable, most specific first")
	cmd.Flags().StringArrayVar(&names, "name", nil, "Accessible name filter for the candidate at the same position")
	cmd.Flags().StringVar(&intentName, "intent", locator.Read.String(), "Intent: read, click, type or attached")
	cmd.MarkFlagRequired("snapshot")
	return cmd
}

// describe renders a resolved element as <tag> "text".
func describe(el locator.Element) string {
	tag, _ := el.TagName()
	text, _ := el.Text()
	text = strings.Join(strings.Fields(text), " ")
	if len(text) > 40 {
		text = text[:40] + "…"
	}
	return fmt.Sprintf("<%s> %q", strings.ToLower(tag), text)
}
