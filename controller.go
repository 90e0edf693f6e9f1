package carcontrol

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// Controller is the connection controller and command sender.
//
// It owns the application State and drives a Serial link. Every method
// that touches the radio logs its outcome as a human-readable line and
// also returns the error, so scripted callers can stop on failure while
// the UI only shows the log.
//
// Radio operations are serialized; a second call waits for the first.
// Inbound data is folded into the state as it arrives.
type Controller struct {
	serial Serial
	perms  Permissions
	config *config

	// opMu serializes radio operations.
	opMu sync.Mutex

	mu    sync.RWMutex
	state State

	subscribers []func(State)
	eventHooks  []func(Event)
}

// NewController creates a controller over the given link. A nil perms
// grants everything.
func NewController(serial Serial, perms Permissions, opts ...Option) *Controller {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if perms == nil {
		perms = AllowAll{}
	}
	return &Controller{
		serial: serial,
		perms:  perms,
		config: cfg,
		state:  State{Direction: Neutral},
	}
}

// Subscribe registers a callback that receives a copy of the state after
// each update. Callbacks run on the goroutine that caused the update.
func (c *Controller) Subscribe(cb func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribers = append(c.subscribers, cb)
}

// OnEvent registers a callback that receives every dispatched event.
func (c *Controller) OnEvent(cb func(Event)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.eventHooks = append(c.eventHooks, cb)
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.Clone()
}

// IsConnected returns true while a device is connected.
func (c *Controller) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.Connected
}

// Logs returns the log lines, newest first.
func (c *Controller) Logs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.state.Logs...)
}

// Start performs the initial device scan, if enabled.
func (c *Controller) Start(ctx context.Context) error {
	if !c.config.scanOnStart {
		return nil
	}
	return c.Scan(ctx)
}

// Close removes the data listener and drops any open connection.
func (c *Controller) Close(ctx context.Context) error {
	c.serial.RemoveListener(DataReceivedListener)
	if !c.IsConnected() {
		return nil
	}
	return c.Disconnect(ctx)
}

// RequestPermissions asks for the radio permissions. Scan and connect
// must both be granted.
func (c *Controller) RequestPermissions(ctx context.Context) bool {
	granted, err := c.perms.Request(ctx, RequiredPermissions)
	if err != nil {
		c.config.logger.Warn("permission request failed", "error", err)
		return false
	}

	if granted[PermissionBluetoothScan] && granted[PermissionBluetoothConnect] {
		c.logf("Bluetooth permissions granted")
		return true
	}
	c.logf("Bluetooth permissions denied")
	return false
}

// CheckBluetooth makes sure the radio is on, asking to enable it if not.
// The radio is checked again after the request, so a scan can proceed in
// the same attempt that turned it on.
func (c *Controller) CheckBluetooth(ctx context.Context) bool {
	enabled, err := c.serial.IsEnabled(ctx)
	if err != nil {
		c.logf("Bluetooth error: %v", err)
		return false
	}
	if enabled {
		return true
	}

	if err := c.serial.RequestEnable(ctx); err != nil {
		c.logf("Bluetooth error: %v", err)
		return false
	}

	enabled, err = c.serial.IsEnabled(ctx)
	if err != nil {
		c.logf("Bluetooth error: %v", err)
		return false
	}
	if !enabled {
		c.config.logger.Info("radio still disabled after enable request")
	}
	return enabled
}

// Scan checks permissions and the radio, then refreshes the device list.
func (c *Controller) Scan(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if !c.RequestPermissions(ctx) {
		return ErrPermissionDenied
	}
	if !c.CheckBluetooth(ctx) {
		return ErrRadioDisabled
	}

	c.logf("Scanning for devices...")
	devices, err := c.serial.List(ctx)
	if err != nil {
		c.logf("Scan failed: %v", err)
		return fmt.Errorf("scan: %w", err)
	}

	c.dispatch(
		DevicesListed{Devices: devices},
		LogAppended{Line: fmt.Sprintf("Found %d devices", len(devices))},
	)
	c.config.logger.Debug("scan complete", "devices", len(devices))
	return nil
}

// Connect opens a connection to dev and starts listening for data.
func (c *Controller) Connect(ctx context.Context, dev Device) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if cur := c.State(); cur.Connected {
		c.logf("Connection failed: already connected to %s", cur.Selected.Label())
		return ErrAlreadyConnected
	}

	c.logf("Connecting to %s...", dev.Label())
	ok, err := c.serial.Connect(ctx, dev.Address)
	if err != nil {
		c.logf("Connection failed: %v", err)
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	if !ok {
		c.config.logger.Info("device refused connection", "address", dev.Address)
		return ErrConnectionFailed
	}

	c.serial.OnDataReceived(c.handleData)
	c.dispatch(
		Connected{Device: dev},
		LogAppended{Line: fmt.Sprintf("Connected to %s", dev.Label())},
	)
	return nil
}

// ConnectAddress connects to the listed device with the given address.
func (c *Controller) ConnectAddress(ctx context.Context, address string) error {
	for _, d := range c.State().Devices {
		if d.Address == address {
			return c.Connect(ctx, d)
		}
	}
	return fmt.Errorf("%w: %s", ErrDeviceNotFound, address)
}

// Disconnect closes the active connection. On failure the connection
// state is left as it was.
func (c *Controller) Disconnect(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if err := c.serial.Disconnect(ctx); err != nil {
		c.logf("Disconnect failed: %v", err)
		return fmt.Errorf("disconnect: %w", err)
	}
	c.dispatch(Disconnected{}, LogAppended{Line: "Disconnected"})
	return nil
}

// Send writes the direction's label to the car. While disconnected the
// command is dropped and a single "not connected" line is logged.
func (c *Controller) Send(ctx context.Context, dir Direction) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if !c.IsConnected() {
		c.logf("Not connected to any device")
		return ErrNotConnected
	}
	if !dir.Transmittable() {
		return fmt.Errorf("%w: %s", ErrUnknownDirection, dir)
	}

	if err := c.serial.Write(ctx, dir.Payload()); err != nil {
		c.logf("Send failed: %v", err)
		return fmt.Errorf("send %s: %w", dir, err)
	}
	c.dispatch(
		CommandSent{Direction: dir},
		LogAppended{Line: fmt.Sprintf("Sent: %s", dir)},
	)
	return nil
}

// Press records dir as the current direction and sends it.
func (c *Controller) Press(ctx context.Context, dir Direction) error {
	c.dispatch(DirectionChanged{Direction: dir})
	return c.Send(ctx, dir)
}

func (c *Controller) handleData(d Data) {
	c.dispatch(
		DataReceived{Data: d},
		LogAppended{Line: fmt.Sprintf("Received: %s", d.Data)},
	)
}

func (c *Controller) logf(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	c.config.logger.Debug(line)
	c.dispatch(LogAppended{Line: line})
}

// dispatch folds events into the state and notifies listeners outside
// the lock.
func (c *Controller) dispatch(events ...Event) {
	c.mu.Lock()
	for _, e := range events {
		c.state = Reduce(c.state, e)
	}
	snapshot := c.state.Clone()
	subs := slices.Clone(c.subscribers)
	hooks := slices.Clone(c.eventHooks)
	c.mu.Unlock()

	for _, hook := range hooks {
		for _, e := range events {
			hook(e)
		}
	}
	for _, sub := range subs {
		sub(snapshot.Clone())
	}
}
