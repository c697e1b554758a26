package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/playwright-community/playwright-go"
	"github.com/spf13/cobra"

	"github.com/gotrs-io/dynamics-e2e/internal/config"
	"github.com/gotrs-io/dynamics-e2e/internal/session"
	"github.com/gotrs-io/dynamics-e2e/internal/signin"
)

func newAuthCommand(g *globals) *cobra.Command {
	var (
		profile string
		force   bool
		install bool
	)
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Sign a profile in and save its session state",
		Long: `Sign a profile in through a real browser and save the session so test
runs can start already authenticated. A fresh saved session is reused unless
--force is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := config.ParseProfile(profile)
			if err != nil {
				return err
			}
			logger, err := g.logger()
			if err != nil {
				return err
			}
			cfg, err := g.config()
			if err != nil {
				return err
			}
			if err := cfg.Validate(p); err != nil {
				return err
			}

			store := session.NewStore(cfg.AuthDir, logger)
			if force {
				if err := store.Remove(p); err != nil {
					return err
				}
			}

			if install {
				if err := playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}}); err != nil {
					return fmt.Errorf("could not install playwright browsers: %w", err)
				}
			}
			pw, err := playwright.Run()
			if err != nil {
				return fmt.Errorf("could not start playwright: %w", err)
			}
			defer pw.Stop()
			browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
				Headless: playwright.Bool(cfg.Browser.Headless),
				SlowMo:   playwright.Float(float64(cfg.Browser.SlowMo.Milliseconds())),
			})
			if err != nil {
				return fmt.Errorf("could not launch browser: %w", err)
			}
			defer browser.Close()

			start := time.Now()
			path, err := signin.Ensure(cmd.Context(), store, cfg, p, func() (playwright.BrowserContext, error) {
				ctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
					Viewport: &playwright.Size{Width: 1280, Height: 720},
				})
				if err != nil {
					return nil, err
				}
				ctx.SetDefaultTimeout(float64(cfg.Browser.ActionTimeout.Milliseconds()))
				ctx.SetDefaultNavigationTimeout(float64(cfg.Browser.Timeout.Milliseconds()))
				return ctx, nil
			}, logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s session at %s (%s)\n",
				color.GreenString("✓"), p, path, time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
	cmd.Flags().StringVarP(&profile, "profile", "p", string(config.ProfileMDA), "Profile to sign in: mda, portal, public-file")
	cmd.Flags().BoolVar(&force, "force", false, "Sign in even when a fresh session is saved")
	cmd.Flags().BoolVar(&install, "install", false, "Install the chromium driver first")
	return cmd
}
