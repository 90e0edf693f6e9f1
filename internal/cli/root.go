// Package cli implements the command-line interface for carcontrol.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/SeamusWaldron/carcontrol"
	"github.com/SeamusWaldron/carcontrol/internal/config"
	"github.com/SeamusWaldron/carcontrol/internal/serial"
)

const version = "0.1.0"

var (
	// Global flags
	configPath string
	transport  string
	dbPath     string
	verbose    bool
)

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "carcontrol",
	Short: "Bluetooth joystick for a remote-control car",
	Long: `carcontrol - A terminal joystick for a Bluetooth remote-control car.

Pair the car's serial module (HC-05, HC-06, HM-10 or any Nordic UART
peripheral), then drive it with the arrow keys. Each key press sends the
direction's name (Forward, Backward, Left, Right, Rotate) over the link.

Run without a subcommand to open the drive screen.`,
	Version: version,
	RunE:    runDrive,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (default: ~/.carcontrol/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&transport, "transport", "t", "", "Transport: classic, ble or loopback (overrides config)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "History database path (default: ~/.carcontrol/carcontrol.db)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
}

// loadConfig reads the config file and applies the global flags on top.
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}

	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, err
	}

	if transport != "" {
		cfg.Transport = transport
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// newLogger builds the process logger at the configured level.
func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
}

// newJSONLogger builds a logger whose records are JSON lines, for sharing
// a JSONL file.
func newJSONLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
}

// openController opens the configured link and a controller over it.
// The caller closes both.
func openController(cfg *config.Config, logger *slog.Logger, opts ...carcontrol.Option) (*carcontrol.Controller, serial.Link, error) {
	link, err := serial.Open(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	opts = append([]carcontrol.Option{carcontrol.WithLogger(logger)}, opts...)
	ctrl := carcontrol.NewController(link, link.Permissions(), opts...)
	return ctrl, link, nil
}

// closeController drops the connection and releases the link.
func closeController(ctx context.Context, ctrl *carcontrol.Controller, link serial.Link, logger *slog.Logger) {
	if err := ctrl.Close(ctx); err != nil {
		logger.Warn("close controller", "error", err)
	}
	if err := link.Close(); err != nil {
		logger.Warn("close link", "error", err)
	}
}

// printLogs writes the controller log oldest first.
func printLogs(w io.Writer, logs []string) {
	for i := len(logs) - 1; i >= 0; i-- {
		fmt.Fprintln(w, logs[i])
	}
}
