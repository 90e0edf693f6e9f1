package serial

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/SeamusWaldron/carcontrol"
	"github.com/SeamusWaldron/carcontrol/internal/bluez"
	"github.com/SeamusWaldron/carcontrol/internal/config"
)

type fakeRadio struct {
	powered  bool
	paired   []bluez.PairedDevice
	probeErr error
	closed   bool
}

func (r *fakeRadio) Powered() (bool, error)                       { return r.powered, nil }
func (r *fakeRadio) SetPowered(on bool) error                     { r.powered = on; return nil }
func (r *fakeRadio) PairedDevices() ([]bluez.PairedDevice, error) { return r.paired, nil }
func (r *fakeRadio) Probe() error                                 { return r.probeErr }
func (r *fakeRadio) Close() error                                 { r.closed = true; return nil }

func newTestClassic(r *fakeRadio) (*Classic, chan net.Conn) {
	peers := make(chan net.Conn, 1)
	c := NewClassic(config.RFCOMMConfig{Channel: 1}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	c.openRadio = func() (radio, error) { return r, nil }
	c.dial = func(ctx context.Context, address string, channels []uint8) (io.ReadWriteCloser, uint8, error) {
		local, remote := net.Pipe()
		peers <- remote
		return local, channels[0], nil
	}
	return c, peers
}

func TestClassicListMapsPairedDevices(t *testing.T) {
	r := &fakeRadio{powered: true, paired: []bluez.PairedDevice{{Name: "HC-05", Address: "98:D3:31:F5:12:34"}}}
	c, _ := newTestClassic(r)

	devices, err := c.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(devices) != 1 || devices[0].Name != "HC-05" || devices[0].Address != "98:D3:31:F5:12:34" {
		t.Errorf("List() = %+v", devices)
	}
}

func TestClassicRequestEnablePowersOn(t *testing.T) {
	r := &fakeRadio{}
	c, _ := newTestClassic(r)
	ctx := context.Background()

	if on, _ := c.IsEnabled(ctx); on {
		t.Fatal("radio should start off")
	}
	if err := c.RequestEnable(ctx); err != nil {
		t.Fatalf("RequestEnable() error = %v", err)
	}
	if on, _ := c.IsEnabled(ctx); !on {
		t.Error("radio should be on")
	}
}

func TestClassicRoundTrip(t *testing.T) {
	c, peers := newTestClassic(&fakeRadio{powered: true})
	ctx := context.Background()

	received := make(chan carcontrol.Data, 1)
	c.OnDataReceived(func(d carcontrol.Data) { received <- d })

	ok, err := c.Connect(ctx, "98:D3:31:F5:12:34")
	if err != nil || !ok {
		t.Fatalf("Connect() = %v, %v", ok, err)
	}
	peer := <-peers

	go c.Write(ctx, []byte("Forward"))
	buf := make([]byte, 16)
	n, err := peer.Read(buf)
	if err != nil {
		t.Fatalf("peer read error = %v", err)
	}
	if string(buf[:n]) != "Forward" {
		t.Errorf("peer got %q, want %q", buf[:n], "Forward")
	}

	go peer.Write([]byte("OK"))
	select {
	case d := <-received:
		if d.Data != "OK" || d.Device != "98:D3:31:F5:12:34" {
			t.Errorf("received %+v", d)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no data received")
	}

	if err := c.Disconnect(ctx); err != nil {
		t.Errorf("Disconnect() error = %v", err)
	}
	if err := c.Write(ctx, []byte("Left")); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Write() after disconnect = %v, want ErrNotConnected", err)
	}
}

func TestClassicConnectTwice(t *testing.T) {
	c, _ := newTestClassic(&fakeRadio{powered: true})
	ctx := context.Background()

	if _, err := c.Connect(ctx, "98:D3:31:F5:12:34"); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer c.Close()

	if _, err := c.Connect(ctx, "98:D3:31:F5:12:34"); !errors.Is(err, ErrAlreadyConnected) {
		t.Errorf("second Connect() error = %v, want ErrAlreadyConnected", err)
	}
}

func TestClassicRemovedListenerIsSilent(t *testing.T) {
	c, peers := newTestClassic(&fakeRadio{powered: true})
	ctx := context.Background()

	called := make(chan struct{}, 1)
	c.OnDataReceived(func(carcontrol.Data) { called <- struct{}{} })
	c.RemoveListener(carcontrol.DataReceivedListener)

	c.Connect(ctx, "98:D3:31:F5:12:34")
	peer := <-peers
	peer.Write([]byte("ignored"))
	c.Disconnect(ctx)

	select {
	case <-called:
		t.Error("removed listener was called")
	default:
	}
}

func TestClassicPermissions(t *testing.T) {
	perms := carcontrol.RequiredPermissions

	t.Run("granted", func(t *testing.T) {
		c, _ := newTestClassic(&fakeRadio{})
		p := &classicPermissions{classic: c, rfkillRoot: t.TempDir()}
		got, err := p.Request(context.Background(), perms)
		if err != nil {
			t.Fatalf("Request() error = %v", err)
		}
		for _, perm := range perms {
			if !got[perm] {
				t.Errorf("%s not granted", perm)
			}
		}
	})

	t.Run("access denied", func(t *testing.T) {
		c, _ := newTestClassic(&fakeRadio{probeErr: bluez.ErrAccessDenied})
		p := &classicPermissions{classic: c, rfkillRoot: t.TempDir()}
		got, _ := p.Request(context.Background(), perms)
		if got[carcontrol.PermissionBluetoothScan] || got[carcontrol.PermissionBluetoothConnect] {
			t.Error("scan/connect should be denied")
		}
		if !got[carcontrol.PermissionFineLocation] {
			t.Error("location has no Linux equivalent and should be granted")
		}
	})

	t.Run("hard blocked", func(t *testing.T) {
		root := t.TempDir()
		dir := filepath.Join(root, "rfkill0")
		os.MkdirAll(dir, 0755)
		os.WriteFile(filepath.Join(dir, "type"), []byte("bluetooth\n"), 0644)
		os.WriteFile(filepath.Join(dir, "hard"), []byte("1\n"), 0644)

		c, _ := newTestClassic(&fakeRadio{})
		p := &classicPermissions{classic: c, rfkillRoot: root}
		got, _ := p.Request(context.Background(), perms)
		if got[carcontrol.PermissionBluetoothConnect] {
			t.Error("connect should be denied while hard-blocked")
		}
	})
}

func TestClassicCloseReleasesRadio(t *testing.T) {
	r := &fakeRadio{powered: true}
	c, _ := newTestClassic(r)
	c.IsEnabled(context.Background())

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !r.closed {
		t.Error("radio was not closed")
	}
}

func TestClassicLogsOpenedChannel(t *testing.T) {
	var out bytes.Buffer
	c := NewClassic(config.RFCOMMConfig{Channel: 0, MaxChannel: 5}, slog.New(slog.NewTextHandler(&out, nil)))
	c.openRadio = func() (radio, error) { return &fakeRadio{powered: true}, nil }

	var tried []uint8
	c.dial = func(ctx context.Context, address string, channels []uint8) (io.ReadWriteCloser, uint8, error) {
		tried = channels
		local, remote := net.Pipe()
		t.Cleanup(func() { remote.Close() })
		return local, 3, nil
	}

	ok, err := c.Connect(context.Background(), "98:D3:31:F5:12:34")
	if !ok || err != nil {
		t.Fatalf("Connect() = %v, %v", ok, err)
	}
	defer c.Disconnect(context.Background())

	if len(tried) != 5 {
		t.Errorf("dial tried %v, want channels 1-5", tried)
	}
	if !strings.Contains(out.String(), "channel=3") {
		t.Errorf("log = %q, want the opened channel", out.String())
	}
}
