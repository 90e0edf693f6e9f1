// Package config loads the carcontrol YAML configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Transport names.
const (
	TransportClassic  = "classic"
	TransportBLE      = "ble"
	TransportLoopback = "loopback"
)

// Config holds all application configuration.
type Config struct {
	Transport string         `yaml:"transport"` // "classic", "ble" or "loopback"
	RFCOMM    RFCOMMConfig   `yaml:"rfcomm"`
	BLE       BLEConfig      `yaml:"ble"`
	Loopback  LoopbackConfig `yaml:"loopback"`
	Record    bool           `yaml:"record"`
	DBPath    string         `yaml:"db_path"`
	LogDir    string         `yaml:"log_dir"`
	LogLevel  string         `yaml:"log_level"`
}

// RFCOMMConfig holds Bluetooth Classic serial settings.
type RFCOMMConfig struct {
	Channel    uint8 `yaml:"channel"`     // 0 probes 1..max_channel
	MaxChannel uint8 `yaml:"max_channel"` // highest channel tried when probing
}

// BLEConfig holds BLE UART settings.
type BLEConfig struct {
	ScanTimeout time.Duration `yaml:"scan_timeout"`
	NamePrefix  string        `yaml:"name_prefix"` // empty accepts any UART peripheral
}

// LoopbackConfig configures the in-memory transport.
type LoopbackConfig struct {
	Echo bool `yaml:"echo"`
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".carcontrol")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Default returns a Config with sensible default values.
func Default() *Config {
	dir := DefaultConfigDir()
	return &Config{
		Transport: TransportClassic,
		RFCOMM: RFCOMMConfig{
			Channel:    1,
			MaxChannel: 5,
		},
		BLE: BLEConfig{
			ScanTimeout: 5 * time.Second,
		},
		Loopback: LoopbackConfig{
			Echo: true,
		},
		Record:   false,
		DBPath:   filepath.Join(dir, "carcontrol.db"),
		LogDir:   filepath.Join(dir, "logs"),
		LogLevel: "info",
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults. Tilde (~) in paths is expanded to the user's home directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.DBPath = expandTilde(cfg.DBPath)
	cfg.LogDir = expandTilde(cfg.LogDir)

	return cfg, nil
}

// LoadOrDefault loads path if it exists and returns defaults otherwise.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return Load(path)
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	switch c.Transport {
	case TransportClassic, TransportBLE, TransportLoopback:
	default:
		return fmt.Errorf("transport must be %q, %q or %q, got %q",
			TransportClassic, TransportBLE, TransportLoopback, c.Transport)
	}

	if c.RFCOMM.Channel > 30 {
		return fmt.Errorf("rfcomm.channel must be 0-30, got %d", c.RFCOMM.Channel)
	}
	if c.RFCOMM.Channel == 0 && (c.RFCOMM.MaxChannel == 0 || c.RFCOMM.MaxChannel > 30) {
		return fmt.Errorf("rfcomm.max_channel must be 1-30 when probing, got %d", c.RFCOMM.MaxChannel)
	}

	if c.BLE.ScanTimeout <= 0 {
		return fmt.Errorf("ble.scan_timeout must be > 0")
	}

	if c.Record && c.DBPath == "" {
		return fmt.Errorf("db_path must not be empty when record is enabled")
	}

	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}

	return nil
}

// SlogLevel returns the configured log level.
func (c *Config) SlogLevel() slog.Level {
	lvl, _ := ParseLevel(c.LogLevel)
	return lvl
}

// ParseLevel converts a log_level string to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("log_level must be debug, info, warn, or error, got %q", s)
}

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
