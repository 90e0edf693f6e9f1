package carcontrol

import (
	"io"
	"log/slog"
)

// Option configures Controller behavior.
type Option func(*config)

type config struct {
	logger      *slog.Logger
	scanOnStart bool
}

func defaultConfig() *config {
	return &config{
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		scanOnStart: true,
	}
}

// WithLogger sets the logger for process diagnostics. These are separate
// from the on-screen log lines kept in State.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithScanOnStart enables or disables the device scan run by Start.
// Enabled by default.
func WithScanOnStart(enabled bool) Option {
	return func(c *config) {
		c.scanOnStart = enabled
	}
}
