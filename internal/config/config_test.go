package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Transport != TransportClassic {
		t.Errorf("Transport = %q, want %q", cfg.Transport, TransportClassic)
	}
	if cfg.RFCOMM.Channel != 1 {
		t.Errorf("RFCOMM.Channel = %d, want 1", cfg.RFCOMM.Channel)
	}
	if cfg.BLE.ScanTimeout != 5*time.Second {
		t.Errorf("BLE.ScanTimeout = %v, want 5s", cfg.BLE.ScanTimeout)
	}
	if cfg.Record {
		t.Error("Record should default to false")
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default().Validate() = %v", err)
	}
}

func TestLoad(t *testing.T) {
	yamlContent := `
transport: ble
rfcomm:
  channel: 0
  max_channel: 3
ble:
  scan_timeout: 10s
  name_prefix: HM
record: true
db_path: /tmp/cc.db
log_level: debug
`
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Transport != TransportBLE {
		t.Errorf("Transport = %q", cfg.Transport)
	}
	if cfg.RFCOMM.Channel != 0 || cfg.RFCOMM.MaxChannel != 3 {
		t.Errorf("RFCOMM = %+v", cfg.RFCOMM)
	}
	if cfg.BLE.ScanTimeout != 10*time.Second {
		t.Errorf("BLE.ScanTimeout = %v", cfg.BLE.ScanTimeout)
	}
	if cfg.BLE.NamePrefix != "HM" {
		t.Errorf("BLE.NamePrefix = %q", cfg.BLE.NamePrefix)
	}
	if !cfg.Record || cfg.DBPath != "/tmp/cc.db" {
		t.Errorf("Record=%v DBPath=%q", cfg.Record, cfg.DBPath)
	}
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Errorf("SlogLevel() = %v", cfg.SlogLevel())
	}
	// Unset fields keep their defaults
	if !cfg.Loopback.Echo {
		t.Error("Loopback.Echo should keep its default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("Load() should fail for a missing file")
	}
}

func TestLoadOrDefaultMissingFile(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadOrDefault() error = %v", err)
	}
	if cfg.Transport != TransportClassic {
		t.Errorf("Transport = %q", cfg.Transport)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(cfgPath, []byte("transport: [unclosed"), 0644)

	_, err := Load(cfgPath)
	if err == nil || !strings.Contains(err.Error(), "parsing config file") {
		t.Errorf("Load() error = %v", err)
	}
}

func TestLoadExpandsTilde(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(cfgPath, []byte("db_path: ~/cars/cc.db\n"), 0644)

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if strings.HasPrefix(cfg.DBPath, "~") {
		t.Errorf("DBPath = %q, tilde not expanded", cfg.DBPath)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		errMsg string
	}{
		{"bad transport", func(c *Config) { c.Transport = "usb" }, "transport must be"},
		{"channel too high", func(c *Config) { c.RFCOMM.Channel = 31 }, "rfcomm.channel"},
		{"probe without max", func(c *Config) { c.RFCOMM.Channel = 0; c.RFCOMM.MaxChannel = 0 }, "rfcomm.max_channel"},
		{"zero scan timeout", func(c *Config) { c.BLE.ScanTimeout = 0 }, "ble.scan_timeout"},
		{"record without db", func(c *Config) { c.Record = true; c.DBPath = "" }, "db_path"},
		{"bad log level", func(c *Config) { c.LogLevel = "trace" }, "log_level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() should fail")
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("Validate() error = %q, want it to contain %q", err, tt.errMsg)
			}
		})
	}
}
