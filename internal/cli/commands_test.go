package cli

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/SeamusWaldron/carcontrol"
	"github.com/SeamusWaldron/carcontrol/internal/recorder"
	"github.com/SeamusWaldron/carcontrol/internal/storage"
)

func TestGesture(t *testing.T) {
	tests := []struct {
		dx, dy string
		want   string
	}{
		{"10", "2", "Direction: Right\nRotation: 11.31°\n"},
		{"-10", "2", "Direction: Left\n"},
		{"2", "10", "Direction: Forward\n"},
		{"2", "-10", "Direction: Backward\n"},
		{"1", "0", "Direction: Right\nRotation: 0.00°\n"},
	}

	for _, tt := range tests {
		var out bytes.Buffer
		cmd := &cobra.Command{}
		cmd.SetOut(&out)
		if err := runGesture(cmd, []string{tt.dx, tt.dy}); err != nil {
			t.Fatalf("gesture %s %s: %v", tt.dx, tt.dy, err)
		}
		if !strings.HasPrefix(out.String(), tt.want) {
			t.Errorf("gesture %s %s = %q, want prefix %q", tt.dx, tt.dy, out.String(), tt.want)
		}
	}
}

func TestGestureBadInput(t *testing.T) {
	if err := runGesture(&cobra.Command{}, []string{"x", "1"}); err == nil {
		t.Error("expected error for non-numeric dx")
	}
}

func TestPickDevice(t *testing.T) {
	a := carcontrol.Device{Name: "A", Address: "00:00:00:00:00:0A"}
	b := carcontrol.Device{Name: "B", Address: "00:00:00:00:00:0B"}
	listed := []carcontrol.Device{a, b}

	sf, err := recorder.NewStateFile(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatal(err)
	}

	got, _ := pickDevice(listed, "", sf, "classic")
	if got != a {
		t.Errorf("no hints: got %v, want first device", got)
	}

	sf.SetLastDevice(b, "classic")
	got, _ = pickDevice(listed, "", sf, "classic")
	if got != b {
		t.Errorf("last device: got %v, want %v", got, b)
	}

	got, _ = pickDevice(listed, a.Address, sf, "classic")
	if got != a {
		t.Errorf("explicit: got %v, want %v", got, a)
	}

	got, _ = pickDevice(nil, "11:22:33:44:55:66", nil, "classic")
	if got.Address != "11:22:33:44:55:66" {
		t.Errorf("unlisted explicit address: got %v", got)
	}

	if _, err := pickDevice(nil, "", nil, "classic"); !errors.Is(err, carcontrol.ErrDeviceNotFound) {
		t.Errorf("empty list error = %v, want ErrDeviceNotFound", err)
	}
}

func TestFormatSession(t *testing.T) {
	name := "HC-05"
	dur := int64(65_000)
	s := storage.Session{
		SessionID:  "0123456789abcdef",
		StartedAt:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Transport:  "classic",
		DeviceName: &name,
		DurationMs: &dur,
	}

	got := formatSession(s, map[string]int{"Forward": 3, "Left": 1})
	for _, want := range []string{"01234567", "classic", "HC-05", "1m5s", "4 commands", "↑3", "←1"} {
		if !strings.Contains(got, want) {
			t.Errorf("formatSession() = %q, missing %q", got, want)
		}
	}

	s.DurationMs = nil
	if got := formatSession(s, nil); !strings.Contains(got, "(open)") || !strings.Contains(got, "0 commands") {
		t.Errorf("open session = %q", got)
	}
}
