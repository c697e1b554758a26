// Package logging builds the suite's structured logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/go-logr/logr"
	"github.com/spf13/pflag"
)

const (
	TextFormat Format = "text"
	JSONFormat Format = "json"
)

type (
	Format string

	Config struct {
		// Verbosity 0 logs progress, 1 logs resolutions and soft timeouts, 2
		// logs every poll.
		Verbosity int
		Format    string
	}
)

// AddFlags registers logging flags; after parsing they populate cfg.
func AddFlags(flags *pflag.FlagSet, cfg *Config) {
	flags.IntVarP(&cfg.Verbosity, "v", "v", 0, "Logging verbosity")
	flags.StringVar(&cfg.Format, "log-format", string(TextFormat), "Logging format: text or json")
}

// New constructs a logger writing to stderr.
func New(cfg Config) (logr.Logger, error) {
	return NewWithWriter(os.Stderr, cfg)
}

// NewWithWriter constructs a logger writing to w.
func NewWithWriter(w io.Writer, cfg Config) (logr.Logger, error) {
	opts := &slog.HandlerOptions{Level: slog.Level(-cfg.Verbosity)}
	var h slog.Handler
	switch Format(cfg.Format) {
	case TextFormat, "":
		h = slog.NewTextHandler(w, opts)
	case JSONFormat:
		h = slog.NewJSONHandler(w, opts)
	default:
		return logr.Logger{}, fmt.Errorf("unrecognised logging format: %s", cfg.Format)
	}
	return logr.FromSlogHandler(h), nil
}
