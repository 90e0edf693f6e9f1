package serial

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/SeamusWaldron/carcontrol"
	"github.com/SeamusWaldron/carcontrol/internal/ble"
	"github.com/SeamusWaldron/carcontrol/internal/config"
)

// uartClient is the part of ble.Client LowEnergy needs.
type uartClient interface {
	Scan(ctx context.Context, timeout time.Duration, namePrefix string) ([]ble.ScanResult, error)
	Connect(ctx context.Context, address string) error
	Disconnect() error
	Write(data []byte) error
	SetDataCallback(cb func([]byte))
	IsConnected() bool
	Profile() string
}

func newBLEClient() (uartClient, error) {
	c, err := ble.NewClient()
	if err != nil {
		return nil, err
	}
	return c, nil
}

// LowEnergy is a serial link over a BLE UART service.
//
// BLE has no paired-device list, so List scans for the configured time
// and returns every UART peripheral seen.
type LowEnergy struct {
	cfg    config.BLEConfig
	logger *slog.Logger

	newClient func() (uartClient, error)

	mu      sync.Mutex
	client  uartClient
	address string

	listeners listeners
}

// NewLowEnergy returns a BLE link. The adapter is enabled on first use.
func NewLowEnergy(cfg config.BLEConfig, logger *slog.Logger) *LowEnergy {
	return &LowEnergy{
		cfg:       cfg,
		logger:    logger,
		newClient: newBLEClient,
	}
}

// Name implements Link.
func (l *LowEnergy) Name() string { return config.TransportBLE }

func (l *LowEnergy) getClient() (uartClient, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.client != nil {
		return l.client, nil
	}
	c, err := l.newClient()
	if err != nil {
		return nil, err
	}
	c.SetDataCallback(l.handleData)
	l.client = c
	return c, nil
}

// IsEnabled reports whether the adapter could be enabled.
func (l *LowEnergy) IsEnabled(ctx context.Context) (bool, error) {
	if _, err := l.getClient(); err != nil {
		return false, err
	}
	return true, nil
}

// RequestEnable retries enabling the adapter.
func (l *LowEnergy) RequestEnable(ctx context.Context) error {
	_, err := l.getClient()
	return err
}

// List scans for UART peripherals.
func (l *LowEnergy) List(ctx context.Context) ([]carcontrol.Device, error) {
	c, err := l.getClient()
	if err != nil {
		return nil, err
	}
	results, err := c.Scan(ctx, l.cfg.ScanTimeout, l.cfg.NamePrefix)
	if err != nil {
		return nil, err
	}

	devices := make([]carcontrol.Device, len(results))
	for i, r := range results {
		devices[i] = carcontrol.Device{Name: r.Name, Address: r.Address}
		l.logger.Debug("ble device", "name", r.Name, "address", r.Address, "rssi", r.RSSI, "profile", r.Profile)
	}
	return devices, nil
}

// Connect implements carcontrol.Serial.
func (l *LowEnergy) Connect(ctx context.Context, address string) (bool, error) {
	c, err := l.getClient()
	if err != nil {
		return false, err
	}
	if err := c.Connect(ctx, address); err != nil {
		return false, err
	}
	l.logger.Info("ble connected", "address", address, "profile", c.Profile())

	l.mu.Lock()
	l.address = address
	l.mu.Unlock()
	return true, nil
}

// Disconnect implements carcontrol.Serial.
func (l *LowEnergy) Disconnect(ctx context.Context) error {
	l.mu.Lock()
	c := l.client
	l.address = ""
	l.mu.Unlock()

	if c == nil {
		return nil
	}
	return c.Disconnect()
}

// Write implements carcontrol.Serial.
func (l *LowEnergy) Write(ctx context.Context, data []byte) error {
	l.mu.Lock()
	c := l.client
	l.mu.Unlock()

	if c == nil || !c.IsConnected() {
		return ErrNotConnected
	}
	return c.Write(data)
}

// OnDataReceived implements carcontrol.Serial.
func (l *LowEnergy) OnDataReceived(cb func(carcontrol.Data)) {
	l.listeners.set(carcontrol.DataReceivedListener, cb)
}

// RemoveListener implements carcontrol.Serial.
func (l *LowEnergy) RemoveListener(name string) {
	l.listeners.remove(name)
}

// Permissions grants everything; the OS prompts for BLE access itself.
func (l *LowEnergy) Permissions() carcontrol.Permissions {
	return carcontrol.AllowAll{}
}

// Close disconnects if needed.
func (l *LowEnergy) Close() error {
	return l.Disconnect(context.Background())
}

func (l *LowEnergy) handleData(b []byte) {
	l.mu.Lock()
	addr := l.address
	l.mu.Unlock()
	l.listeners.emit(carcontrol.Data{Device: addr, Data: string(b)})
}
