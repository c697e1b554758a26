// Command dynamics-e2e checks configuration, signs profiles in and probes
// candidate locators against saved page dumps.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"github.com/gotrs-io/dynamics-e2e/internal/config"
	"github.com/gotrs-io/dynamics-e2e/internal/logging"
	"github.com/gotrs-io/dynamics-e2e/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "%s %s\n", color.HiRedString("Error:"), err.Error())
		os.Exit(1)
	}
}

// globals are the flags shared by every command.
type globals struct {
	envFile string
	logging logging.Config
}

func (g *globals) logger() (logr.Logger, error) {
	return logging.New(g.logging)
}

func (g *globals) config() (*config.Config, error) {
	return config.Load(config.Options{EnvFile: g.envFile})
}

func run(ctx context.Context, args []string, out io.Writer) error {
	g := &globals{}
	root := &cobra.Command{
		Use:           "dynamics-e2e",
		Short:         "Dynamics 365 end-to-end test tooling",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetArgs(args)
	root.PersistentFlags().StringVar(&g.envFile, "env-file", "", "Dotenv file to read (default .env when present)")
	logging.AddFlags(root.PersistentFlags(), &g.logging)

	root.AddCommand(
		newConfigCommand(g),
		newAuthCommand(g),
		newProbeCommand(),
		newVersionCommand(),
	)
	return root.ExecuteContext(ctx)
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "dynamics-e2e %s\n", version.Full())
		},
	}
}
