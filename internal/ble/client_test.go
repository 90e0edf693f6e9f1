package ble

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"
)

func TestChunk(t *testing.T) {
	tests := []struct {
		in   string
		size int
		want []string
	}{
		{"Forward", 20, []string{"Forward"}},
		{"", 20, nil},
		{"abcdefgh", 3, []string{"abc", "def", "gh"}},
		{"abcdef", 0, []string{"abcdef"}},
	}

	for _, tt := range tests {
		got := Chunk([]byte(tt.in), tt.size)
		if len(got) != len(tt.want) {
			t.Errorf("Chunk(%q, %d) = %d parts, want %d", tt.in, tt.size, len(got), len(tt.want))
			continue
		}
		for i := range got {
			if !bytes.Equal(got[i], []byte(tt.want[i])) {
				t.Errorf("Chunk(%q, %d)[%d] = %q, want %q", tt.in, tt.size, i, got[i], tt.want[i])
			}
		}
	}
}

func TestProfilesUseDistinctServices(t *testing.T) {
	if NordicUART.Service == HM10.Service {
		t.Error("profiles share a service UUID")
	}
	if HM10.Write != HM10.Notify {
		t.Error("HM-10 uses a single characteristic for both directions")
	}
	if NordicUART.Write == NordicUART.Notify {
		t.Error("NUS uses separate RX and TX characteristics")
	}
}

func TestWriteWhileDisconnected(t *testing.T) {
	c := &Client{}
	if err := c.Write([]byte("Left")); err != ErrNotConnected {
		t.Errorf("Write() error = %v, want ErrNotConnected", err)
	}
}

func TestNotificationIsCopied(t *testing.T) {
	c := &Client{}
	var got []byte
	c.SetDataCallback(func(b []byte) { got = b })

	buf := []byte("OK")
	c.handleNotification(buf)
	buf[0] = 'X'

	if string(got) != "OK" {
		t.Errorf("callback saw %q, want %q", got, "OK")
	}
}

func TestAwaitConnectReturnsResult(t *testing.T) {
	got, err := awaitConnect(context.Background(),
		func() (int, error) { return 7, nil },
		func(int) { t.Error("release called for a delivered connection") },
	)
	if err != nil || got != 7 {
		t.Errorf("awaitConnect() = %d, %v; want 7, nil", got, err)
	}
}

func TestAwaitConnectReleasesLateConnection(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	proceed := make(chan struct{})
	released := make(chan int, 1)

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := awaitConnect(ctx,
		func() (int, error) {
			<-proceed
			return 42, nil
		},
		func(v int) { released <- v },
	)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("awaitConnect() error = %v, want context.Canceled", err)
	}

	close(proceed)
	select {
	case v := <-released:
		if v != 42 {
			t.Errorf("released %d, want 42", v)
		}
	case <-time.After(time.Second):
		t.Fatal("late connection was never released")
	}
}

func TestAwaitConnectSkipsReleaseOnLateFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	done := make(chan struct{})

	_, err := awaitConnect(ctx,
		func() (int, error) {
			defer close(done)
			return 0, errors.New("refused")
		},
		func(int) { t.Error("release called for a failed connection") },
	)
	<-done
	time.Sleep(10 * time.Millisecond)
	if err == nil {
		t.Error("awaitConnect() should fail when ctx is already done")
	}
}
