package serial

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/SeamusWaldron/carcontrol"
	"github.com/SeamusWaldron/carcontrol/internal/bluez"
	"github.com/SeamusWaldron/carcontrol/internal/config"
	"github.com/SeamusWaldron/carcontrol/internal/rfcomm"
)

// radio is the part of the BlueZ client Classic needs.
type radio interface {
	Powered() (bool, error)
	SetPowered(on bool) error
	PairedDevices() ([]bluez.PairedDevice, error)
	Probe() error
	Close() error
}

// dialFunc opens a stream and reports the channel it opened on.
type dialFunc func(ctx context.Context, address string, channels []uint8) (io.ReadWriteCloser, uint8, error)

func dialRFCOMM(ctx context.Context, address string, channels []uint8) (io.ReadWriteCloser, uint8, error) {
	conn, err := rfcomm.Dial(ctx, address, channels)
	if err != nil {
		return nil, 0, err
	}
	return conn, conn.Channel(), nil
}

func openBluez() (radio, error) {
	bz, err := bluez.New("")
	if err != nil {
		return nil, err
	}
	return bz, nil
}

// Classic is a Bluetooth Classic SPP link: BlueZ for the radio and
// paired devices, an RFCOMM socket for the data.
type Classic struct {
	channels []uint8
	logger   *slog.Logger

	openRadio func() (radio, error)
	dial      dialFunc

	mu      sync.Mutex
	radio   radio
	conn    io.ReadWriteCloser
	address string
	done    chan struct{}

	listeners listeners
}

// NewClassic returns a Classic link. The BlueZ connection is opened on
// first use.
func NewClassic(cfg config.RFCOMMConfig, logger *slog.Logger) *Classic {
	return &Classic{
		channels:  rfcomm.Channels(cfg.Channel, cfg.MaxChannel),
		logger:    logger,
		openRadio: openBluez,
		dial:      dialRFCOMM,
	}
}

// Name implements Link.
func (c *Classic) Name() string { return config.TransportClassic }

func (c *Classic) getRadio() (radio, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.radio != nil {
		return c.radio, nil
	}
	r, err := c.openRadio()
	if err != nil {
		return nil, err
	}
	c.radio = r
	return r, nil
}

// IsEnabled implements carcontrol.Serial.
func (c *Classic) IsEnabled(ctx context.Context) (bool, error) {
	r, err := c.getRadio()
	if err != nil {
		return false, err
	}
	return r.Powered()
}

// RequestEnable powers the adapter on.
func (c *Classic) RequestEnable(ctx context.Context) error {
	r, err := c.getRadio()
	if err != nil {
		return err
	}
	return r.SetPowered(true)
}

// List returns the paired devices.
func (c *Classic) List(ctx context.Context) ([]carcontrol.Device, error) {
	r, err := c.getRadio()
	if err != nil {
		return nil, err
	}
	paired, err := r.PairedDevices()
	if err != nil {
		return nil, err
	}

	devices := make([]carcontrol.Device, len(paired))
	for i, p := range paired {
		devices[i] = carcontrol.Device{Name: p.Name, Address: p.Address}
	}
	return devices, nil
}

// Connect opens the RFCOMM stream and starts the read loop.
func (c *Classic) Connect(ctx context.Context, address string) (bool, error) {
	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return false, ErrAlreadyConnected
	}
	c.mu.Unlock()

	conn, channel, err := c.dial(ctx, address, c.channels)
	if err != nil {
		return false, err
	}
	c.logger.Info("rfcomm connected", "address", address, "channel", channel)

	done := make(chan struct{})
	c.mu.Lock()
	c.conn = conn
	c.address = address
	c.done = done
	c.mu.Unlock()

	go c.read(conn, address, done)
	return true, nil
}

func (c *Classic) read(conn io.ReadWriteCloser, address string, done chan struct{}) {
	defer close(done)
	err := readLoop(conn, address, &c.listeners)

	c.mu.Lock()
	ours := c.conn == conn
	c.mu.Unlock()

	if ours && !errors.Is(err, os.ErrClosed) && !errors.Is(err, rfcomm.ErrClosed) {
		c.logger.Warn("rfcomm read loop ended", "address", address, "error", err)
	}
}

// Disconnect closes the stream and waits for the read loop to stop.
func (c *Classic) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	conn, done := c.conn, c.done
	c.conn, c.address, c.done = nil, "", nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	err := conn.Close()

	select {
	case <-done:
	case <-ctx.Done():
	}
	return err
}

// Write sends data on the open stream.
func (c *Classic) Write(ctx context.Context, data []byte) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}
	_, err := conn.Write(data)
	return err
}

// OnDataReceived implements carcontrol.Serial.
func (c *Classic) OnDataReceived(cb func(carcontrol.Data)) {
	c.listeners.set(carcontrol.DataReceivedListener, cb)
}

// RemoveListener implements carcontrol.Serial.
func (c *Classic) RemoveListener(name string) {
	c.listeners.remove(name)
}

// Permissions returns the BlueZ-backed permission check.
func (c *Classic) Permissions() carcontrol.Permissions {
	return &classicPermissions{classic: c, rfkillRoot: bluez.RfkillRoot}
}

// Close drops the stream and the bus connection.
func (c *Classic) Close() error {
	err := c.Disconnect(context.Background())

	c.mu.Lock()
	r := c.radio
	c.radio = nil
	c.mu.Unlock()

	if r != nil {
		if cerr := r.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// classicPermissions grants scan and connect unless BlueZ rejects this
// process or the radio is hard-blocked. Linux has no location permission.
type classicPermissions struct {
	classic    *Classic
	rfkillRoot string
}

func (p *classicPermissions) Request(ctx context.Context, perms []carcontrol.Permission) (map[carcontrol.Permission]bool, error) {
	allowed := true

	if st, err := bluez.ReadRfkill(p.rfkillRoot); err == nil && st.HardBlocked {
		allowed = false
	}

	if allowed {
		if r, err := p.classic.getRadio(); err == nil {
			if err := r.Probe(); errors.Is(err, bluez.ErrAccessDenied) {
				allowed = false
			}
		}
	}

	granted := make(map[carcontrol.Permission]bool, len(perms))
	for _, perm := range perms {
		switch perm {
		case carcontrol.PermissionBluetoothScan, carcontrol.PermissionBluetoothConnect:
			granted[perm] = allowed
		default:
			granted[perm] = true
		}
	}
	return granted, nil
}
