// Package ble provides a serial link to BLE UART modules (Nordic UART
// Service and HM-10 style FFE0/FFE1) used on hobby car controllers.
package ble

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"tinygo.org/x/bluetooth"
)

// Errors
var (
	ErrNotConnected     = errors.New("ble: not connected to device")
	ErrAlreadyConnected = errors.New("ble: already connected to a device")
	ErrNoUARTService    = errors.New("ble: no UART service on device")
)

// MaxChunk is the largest write that fits the default ATT MTU.
const MaxChunk = 20

// Profile describes one UART-over-GATT layout.
type Profile struct {
	Name    string
	Service bluetooth.UUID
	Write   bluetooth.UUID // characteristic the central writes to
	Notify  bluetooth.UUID // characteristic the peripheral notifies on
}

// Known UART profiles, in preference order.
var (
	NordicUART = Profile{
		Name:    "nus",
		Service: bluetooth.ServiceUUIDNordicUART,
		Write:   bluetooth.CharacteristicUUIDUARTRX,
		Notify:  bluetooth.CharacteristicUUIDUARTTX,
	}
	HM10 = Profile{
		Name:    "hm10",
		Service: bluetooth.New16BitUUID(0xFFE0),
		Write:   bluetooth.New16BitUUID(0xFFE1),
		Notify:  bluetooth.New16BitUUID(0xFFE1),
	}

	Profiles = []Profile{NordicUART, HM10}
)

// ScanResult represents a discovered UART peripheral.
type ScanResult struct {
	Name    string
	Address string
	RSSI    int16
	Profile string
}

// Client manages a BLE connection to one UART peripheral.
type Client struct {
	adapter *bluetooth.Adapter
	device  bluetooth.Device
	txChar  bluetooth.DeviceCharacteristic // write
	rxChar  bluetooth.DeviceCharacteristic // notify

	mu        sync.RWMutex
	connected bool
	profile   string

	onData func([]byte)
}

// NewClient enables the default adapter and returns a client for it.
func NewClient() (*Client, error) {
	adapter := bluetooth.DefaultAdapter
	if err := adapter.Enable(); err != nil {
		return nil, fmt.Errorf("failed to enable BLE adapter: %w", err)
	}

	return &Client{adapter: adapter}, nil
}

// SetDataCallback sets the callback for inbound notifications.
func (c *Client) SetDataCallback(cb func([]byte)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onData = cb
}

// matchProfile returns the first profile advertised by result, if any.
func matchProfile(result bluetooth.ScanResult) (Profile, bool) {
	for _, p := range Profiles {
		if result.HasServiceUUID(p.Service) {
			return p, true
		}
	}
	return Profile{}, false
}

// Scan collects UART peripherals until timeout or ctx is done. Devices
// whose name does not start with namePrefix are skipped when the prefix
// is set.
func (c *Client) Scan(ctx context.Context, timeout time.Duration, namePrefix string) ([]ScanResult, error) {
	c.mu.RLock()
	if c.connected {
		c.mu.RUnlock()
		return nil, ErrAlreadyConnected
	}
	c.mu.RUnlock()

	var results []ScanResult
	var mu sync.Mutex
	seen := make(map[string]bool)
	prefix := strings.ToLower(namePrefix)

	done := make(chan error, 1)

	go func() {
		done <- c.adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
			profile, ok := matchProfile(result)
			if !ok {
				return
			}
			name := result.LocalName()
			if prefix != "" && !strings.HasPrefix(strings.ToLower(name), prefix) {
				return
			}
			addr := result.Address.String()

			mu.Lock()
			defer mu.Unlock()
			if seen[addr] {
				return
			}
			seen[addr] = true
			results = append(results, ScanResult{
				Name:    name,
				Address: addr,
				RSSI:    result.RSSI,
				Profile: profile.Name,
			})
		})
	}()

	select {
	case <-time.After(timeout):
		c.adapter.StopScan()
		<-done
	case <-ctx.Done():
		c.adapter.StopScan()
		<-done
	case err := <-done:
		if err != nil {
			return nil, fmt.Errorf("ble: scan: %w", err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	return results, nil
}

// Connect connects to the peripheral at address and subscribes to its
// UART notifications.
func (c *Client) Connect(ctx context.Context, address string) error {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.mu.Unlock()

	var addr bluetooth.Address
	addr.Set(address)

	device, err := awaitConnect(ctx,
		func() (bluetooth.Device, error) {
			return c.adapter.Connect(addr, bluetooth.ConnectionParams{})
		},
		func(d bluetooth.Device) { d.Disconnect() },
	)
	if err != nil {
		return fmt.Errorf("ble: connect to %s: %w", address, err)
	}

	services, err := device.DiscoverServices(nil)
	if err != nil {
		device.Disconnect()
		return fmt.Errorf("failed to discover services: %w", err)
	}

	var profile Profile
	var service *bluetooth.DeviceService
	for _, p := range Profiles {
		for i := range services {
			if services[i].UUID() == p.Service {
				profile, service = p, &services[i]
				break
			}
		}
		if service != nil {
			break
		}
	}
	if service == nil {
		device.Disconnect()
		return ErrNoUARTService
	}

	uuids := []bluetooth.UUID{profile.Write}
	if profile.Notify != profile.Write {
		uuids = append(uuids, profile.Notify)
	}
	chars, err := service.DiscoverCharacteristics(uuids)
	if err != nil {
		device.Disconnect()
		return fmt.Errorf("failed to discover characteristics: %w", err)
	}

	var txChar, rxChar bluetooth.DeviceCharacteristic
	for _, ch := range chars {
		if ch.UUID() == profile.Write {
			txChar = ch
		}
		if ch.UUID() == profile.Notify {
			rxChar = ch
		}
	}

	if err := rxChar.EnableNotifications(c.handleNotification); err != nil {
		device.Disconnect()
		return fmt.Errorf("failed to enable notifications: %w", err)
	}

	c.mu.Lock()
	c.device = device
	c.txChar = txChar
	c.rxChar = rxChar
	c.connected = true
	c.profile = profile.Name
	c.mu.Unlock()

	return nil
}

// awaitConnect runs connect in a goroutine and waits for it or ctx. A
// connection that completes after ctx is done is handed to release.
func awaitConnect[T any](ctx context.Context, connect func() (T, error), release func(T)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := connect()
		ch <- result{v, err}
	}()

	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		go func() {
			if r := <-ch; r.err == nil {
				release(r.v)
			}
		}()
		var zero T
		return zero, ctx.Err()
	}
}

// Disconnect disconnects from the current device.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return nil
	}

	err := c.device.Disconnect()
	c.connected = false
	c.profile = ""

	return err
}

// IsConnected returns true if connected to a device.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Profile returns the name of the UART profile in use.
func (c *Client) Profile() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.profile
}

// Write sends data in MaxChunk pieces using write-without-response.
func (c *Client) Write(data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.connected {
		return ErrNotConnected
	}

	for _, part := range Chunk(data, MaxChunk) {
		if _, err := c.txChar.WriteWithoutResponse(part); err != nil {
			return fmt.Errorf("ble: write: %w", err)
		}
	}
	return nil
}

// Chunk splits data into pieces of at most size bytes.
func Chunk(data []byte, size int) [][]byte {
	if size <= 0 {
		size = MaxChunk
	}
	var parts [][]byte
	for len(data) > 0 {
		n := size
		if len(data) < n {
			n = len(data)
		}
		parts = append(parts, data[:n])
		data = data[n:]
	}
	return parts
}

// handleNotification handles incoming BLE notifications.
func (c *Client) handleNotification(data []byte) {
	c.mu.RLock()
	cb := c.onData
	c.mu.RUnlock()

	if cb != nil {
		buf := make([]byte, len(data))
		copy(buf, data)
		cb(buf)
	}
}
