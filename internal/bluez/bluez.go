// Package bluez talks to the BlueZ daemon over the system D-Bus: adapter
// power, the paired device list and an access probe.
package bluez

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/godbus/dbus/v5"
)

const (
	busName        = "org.bluez"
	adapterIface   = "org.bluez.Adapter1"
	deviceIface    = "org.bluez.Device1"
	propsIface     = "org.freedesktop.DBus.Properties"
	objectManager  = "org.freedesktop.DBus.ObjectManager"
	accessDenied   = "org.freedesktop.DBus.Error.AccessDenied"
	notAuthorized  = "org.bluez.Error.NotAuthorized"
	defaultAdapter = "hci0"
)

// Errors
var (
	ErrNotRunning   = errors.New("bluez: org.bluez not found on system bus")
	ErrAccessDenied = errors.New("bluez: access denied")
	ErrNoAdapter    = errors.New("bluez: adapter not found")
)

// PairedDevice is a device BlueZ knows as paired.
type PairedDevice struct {
	Name      string
	Address   string
	Connected bool
}

// AdapterPath returns the object path of the named adapter.
func AdapterPath(adapter string) dbus.ObjectPath {
	return dbus.ObjectPath("/org/bluez/" + adapter)
}

// DeviceObjectPath converts a MAC address like "AA:BB:CC:DD:EE:FF" to
// "/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF".
func DeviceObjectPath(adapter, addr string) dbus.ObjectPath {
	escaped := strings.ReplaceAll(strings.ToUpper(addr), ":", "_")
	return dbus.ObjectPath(string(AdapterPath(adapter)) + "/dev_" + escaped)
}

// MACFromPath extracts a MAC address from a BlueZ device object path.
func MACFromPath(adapter string, path dbus.ObjectPath) string {
	s := string(path)
	prefix := string(AdapterPath(adapter)) + "/dev_"
	if !strings.HasPrefix(s, prefix) {
		return ""
	}
	return strings.ReplaceAll(s[len(prefix):], "_", ":")
}

// Client wraps a system D-Bus connection for BlueZ operations.
type Client struct {
	conn    *dbus.Conn
	adapter string
}

// New connects to the system bus and checks that BlueZ is running.
// An empty adapter selects hci0.
func New(adapter string) (*Client, error) {
	if adapter == "" {
		adapter = defaultAdapter
	}

	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("connect to system bus: %w", err)
	}

	var names []string
	if err := conn.BusObject().Call("org.freedesktop.DBus.ListNames", 0).Store(&names); err != nil {
		conn.Close()
		return nil, fmt.Errorf("list bus names: %w", err)
	}
	found := false
	for _, n := range names {
		if n == busName {
			found = true
			break
		}
	}
	if !found {
		conn.Close()
		return nil, fmt.Errorf("%w (is bluetooth.service running?)", ErrNotRunning)
	}

	return &Client{conn: conn, adapter: adapter}, nil
}

// Close releases the bus connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// --- property helpers ---

func (c *Client) getProp(path dbus.ObjectPath, iface, prop string) (dbus.Variant, error) {
	obj := c.conn.Object(busName, path)
	var v dbus.Variant
	err := obj.Call(propsIface+".Get", 0, iface, prop).Store(&v)
	return v, mapError(err)
}

func (c *Client) setProp(path dbus.ObjectPath, iface, prop string, val interface{}) error {
	obj := c.conn.Object(busName, path)
	return mapError(obj.Call(propsIface+".Set", 0, iface, prop, dbus.MakeVariant(val)).Err)
}

func (c *Client) getBool(path dbus.ObjectPath, iface, prop string) (bool, error) {
	v, err := c.getProp(path, iface, prop)
	if err != nil {
		return false, err
	}
	val, ok := v.Value().(bool)
	if !ok {
		return false, fmt.Errorf("property %s is not bool", prop)
	}
	return val, nil
}

// --- adapter ---

// Powered reports whether the adapter radio is on.
func (c *Client) Powered() (bool, error) {
	return c.getBool(AdapterPath(c.adapter), adapterIface, "Powered")
}

// SetPowered turns the adapter radio on or off.
func (c *Client) SetPowered(on bool) error {
	return c.setProp(AdapterPath(c.adapter), adapterIface, "Powered", on)
}

// Probe reads an adapter property to find out whether this process may
// use BlueZ at all.
func (c *Client) Probe() error {
	_, err := c.getProp(AdapterPath(c.adapter), adapterIface, "Address")
	return err
}

// --- devices ---

// PairedDevices lists the paired devices under the adapter, sorted by name.
func (c *Client) PairedDevices() ([]PairedDevice, error) {
	obj := c.conn.Object(busName, "/")
	var objects map[dbus.ObjectPath]map[string]map[string]dbus.Variant
	if err := obj.Call(objectManager+".GetManagedObjects", 0).Store(&objects); err != nil {
		return nil, fmt.Errorf("get managed objects: %w", mapError(err))
	}
	return pairedFromObjects(c.adapter, objects), nil
}

// pairedFromObjects filters a GetManagedObjects reply down to paired
// Device1 objects of one adapter.
func pairedFromObjects(adapter string, objects map[dbus.ObjectPath]map[string]map[string]dbus.Variant) []PairedDevice {
	var devices []PairedDevice
	for path, ifaces := range objects {
		props, ok := ifaces[deviceIface]
		if !ok || MACFromPath(adapter, path) == "" {
			continue
		}
		if !variantBool(props["Paired"]) {
			continue
		}

		addr, _ := props["Address"].Value().(string)
		if addr == "" {
			addr = MACFromPath(adapter, path)
		}
		name, _ := props["Alias"].Value().(string)
		if name == "" {
			name, _ = props["Name"].Value().(string)
		}

		devices = append(devices, PairedDevice{
			Name:      name,
			Address:   addr,
			Connected: variantBool(props["Connected"]),
		})
	}

	sort.Slice(devices, func(i, j int) bool {
		if devices[i].Name != devices[j].Name {
			return devices[i].Name < devices[j].Name
		}
		return devices[i].Address < devices[j].Address
	})
	return devices
}

func variantBool(v dbus.Variant) bool {
	b, _ := v.Value().(bool)
	return b
}

// mapError turns D-Bus policy rejections into ErrAccessDenied.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var name string
	var dbusErr dbus.Error
	var dbusErrPtr *dbus.Error
	switch {
	case errors.As(err, &dbusErr):
		name = dbusErr.Name
	case errors.As(err, &dbusErrPtr):
		name = dbusErrPtr.Name
	}
	if name != "" {
		switch name {
		case accessDenied, notAuthorized:
			return fmt.Errorf("%w: %v", ErrAccessDenied, err)
		case "org.freedesktop.DBus.Error.UnknownObject", "org.freedesktop.DBus.Error.UnknownMethod":
			return fmt.Errorf("%w: %s", ErrNoAdapter, name)
		}
	}
	return err
}
