package serial

import (
	"context"
	"sync"

	"github.com/SeamusWaldron/carcontrol"
	"github.com/SeamusWaldron/carcontrol/internal/config"
)

// LoopbackDevice is the single device offered by Loopback.
var LoopbackDevice = carcontrol.Device{Name: "Loopback Car", Address: "00:00:00:00:00:01"}

// Loopback is an in-memory link. With echo on, every write is answered
// with "ACK <data>" from a separate goroutine, like a car would.
type Loopback struct {
	echo bool

	mu        sync.Mutex
	enabled   bool
	connected bool
	written   [][]byte
	wg        sync.WaitGroup

	listeners listeners
}

// NewLoopback returns a powered, disconnected loopback link.
func NewLoopback(echo bool) *Loopback {
	return &Loopback{echo: echo, enabled: true}
}

// Name implements Link.
func (l *Loopback) Name() string { return config.TransportLoopback }

// SetEnabled powers the fake radio on or off.
func (l *Loopback) SetEnabled(on bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled = on
}

// IsEnabled implements carcontrol.Serial.
func (l *Loopback) IsEnabled(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enabled, nil
}

// RequestEnable implements carcontrol.Serial.
func (l *Loopback) RequestEnable(ctx context.Context) error {
	l.SetEnabled(true)
	return nil
}

// List implements carcontrol.Serial.
func (l *Loopback) List(ctx context.Context) ([]carcontrol.Device, error) {
	return []carcontrol.Device{LoopbackDevice}, nil
}

// Connect implements carcontrol.Serial.
func (l *Loopback) Connect(ctx context.Context, address string) (bool, error) {
	if address != LoopbackDevice.Address {
		return false, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.connected {
		return false, ErrAlreadyConnected
	}
	l.connected = true
	return true, nil
}

// Disconnect implements carcontrol.Serial.
func (l *Loopback) Disconnect(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.connected = false
	return nil
}

// Write implements carcontrol.Serial.
func (l *Loopback) Write(ctx context.Context, data []byte) error {
	l.mu.Lock()
	if !l.connected {
		l.mu.Unlock()
		return ErrNotConnected
	}
	l.written = append(l.written, append([]byte(nil), data...))
	l.mu.Unlock()

	if l.echo {
		reply := carcontrol.Data{Device: LoopbackDevice.Address, Data: "ACK " + string(data)}
		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			l.listeners.emit(reply)
		}()
	}
	return nil
}

// Written returns a copy of everything written so far.
func (l *Loopback) Written() [][]byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([][]byte, len(l.written))
	copy(out, l.written)
	return out
}

// Wait blocks until all pending echoes are delivered.
func (l *Loopback) Wait() {
	l.wg.Wait()
}

// OnDataReceived implements carcontrol.Serial.
func (l *Loopback) OnDataReceived(cb func(carcontrol.Data)) {
	l.listeners.set(carcontrol.DataReceivedListener, cb)
}

// RemoveListener implements carcontrol.Serial.
func (l *Loopback) RemoveListener(name string) {
	l.listeners.remove(name)
}

// Permissions implements Link.
func (l *Loopback) Permissions() carcontrol.Permissions {
	return carcontrol.AllowAll{}
}

// Close implements Link.
func (l *Loopback) Close() error {
	l.Wait()
	return l.Disconnect(context.Background())
}
