package main

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/gotrs-io/dynamics-e2e/internal/config"
)

func newConfigCommand(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect suite configuration",
	}

	var profiles []string
	check := &cobra.Command{
		Use:   "check",
		Short: "Validate the environment for one or more profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.config()
			if err != nil {
				return err
			}
			selected := config.Profiles
			if len(profiles) > 0 {
				selected = nil
				for _, name := range profiles {
					p, err := config.ParseProfile(name)
					if err != nil {
						return err
					}
					selected = append(selected, p)
				}
			}

			out := cmd.OutOrStdout()
			var failed int
			for _, p := range selected {
				v := config.NewValidator(cfg, p)
				err := v.Validate()
				var missing *config.ConfigurationMissingError
				switch {
				case errors.As(err, &missing):
					failed++
					fmt.Fprintf(out, "%s %s: missing %v\n", color.RedString("✗"), p, missing.Missing)
				case err != nil:
					return err
				default:
					fmt.Fprintf(out, "%s %s\n", color.GreenString("✓"), p)
				}
				for _, w := range v.Warnings() {
					fmt.Fprintf(out, "  %s %s\n", color.YellowString("warning:"), w)
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d profiles not configured", failed, len(selected))
			}
			return nil
		},
	}
	check.Flags().StringSliceVarP(&profiles, "profile", "p", nil, "Profiles to check: mda, portal, public-file (default all)")
	cmd.AddCommand(check)
	return cmd
}
