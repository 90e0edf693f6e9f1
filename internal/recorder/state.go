// Package recorder persists what a drive leaves behind: the last device,
// the session history rows and a JSONL event log.
package recorder

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/SeamusWaldron/carcontrol"
)

// AppState represents the persistent application state.
type AppState struct {
	LastDeviceAddress string `json:"last_device_address,omitempty"`
	LastDeviceName    string `json:"last_device_name,omitempty"`
	LastTransport     string `json:"last_transport,omitempty"`
}

// StateFile manages the application state file.
type StateFile struct {
	path  string
	mu    sync.Mutex
	state AppState
}

// DefaultStatePath returns the default state file path.
func DefaultStatePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	dir := filepath.Join(home, ".carcontrol")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return filepath.Join(dir, "state.json"), nil
}

// NewStateFile creates a new state file manager.
func NewStateFile(path string) (*StateFile, error) {
	sf := &StateFile{path: path}

	// Try to load existing state
	if err := sf.Load(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	return sf, nil
}

// NewDefaultStateFile creates a state file manager with the default path.
func NewDefaultStateFile() (*StateFile, error) {
	path, err := DefaultStatePath()
	if err != nil {
		return nil, err
	}
	return NewStateFile(path)
}

// Load loads the state from disk.
func (sf *StateFile) Load() error {
	data, err := os.ReadFile(sf.path)
	if err != nil {
		return err
	}

	sf.mu.Lock()
	defer sf.mu.Unlock()
	if err := json.Unmarshal(data, &sf.state); err != nil {
		return fmt.Errorf("failed to parse state file: %w", err)
	}
	return nil
}

func (sf *StateFile) save() error {
	data, err := json.MarshalIndent(sf.state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(sf.path), 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	if err := os.WriteFile(sf.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}

	return nil
}

// State returns the current state.
func (sf *StateFile) State() AppState {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	return sf.state
}

// SetLastDevice records the last connected device.
func (sf *StateFile) SetLastDevice(dev carcontrol.Device, transport string) error {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	sf.state.LastDeviceAddress = dev.Address
	sf.state.LastDeviceName = dev.Name
	sf.state.LastTransport = transport
	return sf.save()
}

// LastDevice returns the last connected device, if one was recorded for
// the given transport.
func (sf *StateFile) LastDevice(transport string) (carcontrol.Device, bool) {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	if sf.state.LastDeviceAddress == "" {
		return carcontrol.Device{}, false
	}
	if sf.state.LastTransport != "" && sf.state.LastTransport != transport {
		return carcontrol.Device{}, false
	}
	return carcontrol.Device{
		Name:    sf.state.LastDeviceName,
		Address: sf.state.LastDeviceAddress,
	}, true
}

// Path returns the state file path.
func (sf *StateFile) Path() string {
	return sf.path
}
