package carcontrol

import (
	"context"
	"fmt"
)

// Device is a Bluetooth peripheral offered by the transport.
// Devices are listed by Serial.List and passed back to Serial.Connect;
// the application never creates them.
type Device struct {
	Name    string // Advertised or paired name (e.g., "HC-05")
	Address string // MAC address, or a platform UUID on macOS
}

// String returns "name (address)" as shown in the device list.
func (d Device) String() string {
	if d.Name == "" {
		return d.Address
	}
	return fmt.Sprintf("%s (%s)", d.Name, d.Address)
}

// Label returns the name used in log lines, falling back to the address.
func (d Device) Label() string {
	if d.Name == "" {
		return d.Address
	}
	return d.Name
}

// Data is one inbound chunk read from the connection.
type Data struct {
	Device string // Address of the sending device
	Data   string // Raw text as received
}

// DataReceivedListener is the listener name used by OnDataReceived.
const DataReceivedListener = "dataReceived"

// Serial is a Bluetooth serial link. Implementations own the radio,
// device enumeration, framing and read/write; the controller only calls
// into them and reports their results.
type Serial interface {
	// IsEnabled reports whether the radio is powered.
	IsEnabled(ctx context.Context) (bool, error)
	// RequestEnable asks the system to power the radio on.
	RequestEnable(ctx context.Context) error
	// List returns candidate devices (paired devices for Classic,
	// advertising devices for BLE).
	List(ctx context.Context) ([]Device, error)
	// Connect opens the single active connection. A false result with a
	// nil error means the device refused without a reason.
	Connect(ctx context.Context, address string) (bool, error)
	// Disconnect closes the active connection.
	Disconnect(ctx context.Context) error
	// Write sends data as-is over the active connection.
	Write(ctx context.Context, data []byte) error
	// OnDataReceived installs the callback for inbound chunks,
	// registered under DataReceivedListener.
	OnDataReceived(cb func(Data))
	// RemoveListener removes a callback previously installed by name.
	RemoveListener(name string)
}

// Permission is a runtime permission needed to use the radio.
type Permission string

const (
	PermissionBluetoothScan    Permission = "bluetooth_scan"
	PermissionBluetoothConnect Permission = "bluetooth_connect"
	PermissionFineLocation     Permission = "fine_location"
)

// RequiredPermissions lists what Permissions.Request is asked for.
// Only scan and connect must be granted.
var RequiredPermissions = []Permission{
	PermissionBluetoothScan,
	PermissionBluetoothConnect,
	PermissionFineLocation,
}

// Permissions negotiates OS access to the radio.
type Permissions interface {
	Request(ctx context.Context, perms []Permission) (map[Permission]bool, error)
}

// AllowAll grants every permission. Use it on platforms where the OS asks
// the user itself, or where no runtime permissions exist.
type AllowAll struct{}

// Request implements Permissions.
func (AllowAll) Request(_ context.Context, perms []Permission) (map[Permission]bool, error) {
	granted := make(map[Permission]bool, len(perms))
	for _, p := range perms {
		granted[p] = true
	}
	return granted, nil
}
