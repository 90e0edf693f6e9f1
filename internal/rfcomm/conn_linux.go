//go:build linux

package rfcomm

import (
	"context"
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// Conn is an open RFCOMM stream.
type Conn struct {
	file    *os.File
	channel uint8

	mu     sync.Mutex
	closed bool
}

// Dial connects to address on the given channels in order and returns the
// first stream that opens. ctx is checked between attempts; a single
// connect(2) is not interruptible.
func Dial(ctx context.Context, address string, channels []uint8) (*Conn, error) {
	addr, err := ParseAddress(address)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for _, ch := range channels {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		fd, err := unix.Socket(unix.AF_BLUETOOTH, unix.SOCK_STREAM, unix.BTPROTO_RFCOMM)
		if err != nil {
			return nil, fmt.Errorf("rfcomm: create socket: %w", err)
		}

		sa := &unix.SockaddrRFCOMM{Addr: addr, Channel: ch}
		if err := unix.Connect(fd, sa); err != nil {
			unix.Close(fd)
			lastErr = fmt.Errorf("channel %d: %w", ch, err)
			continue
		}

		// Non-blocking before NewFile so the runtime poller owns the fd
		// and Close wakes a pending Read.
		if err := unix.SetNonblock(fd, true); err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("rfcomm: set nonblock: %w", err)
		}

		return &Conn{
			file:    os.NewFile(uintptr(fd), "rfcomm:"+address),
			channel: ch,
		}, nil
	}

	if lastErr == nil {
		return nil, ErrNoChannel
	}
	return nil, fmt.Errorf("%w: %s: %v", ErrNoChannel, address, lastErr)
}

// Channel returns the channel the stream opened on.
func (c *Conn) Channel() uint8 { return c.channel }

// Read reads the next chunk from the stream.
func (c *Conn) Read(p []byte) (int, error) {
	return c.file.Read(p)
}

// Write writes p to the stream.
func (c *Conn) Write(p []byte) (int, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return 0, ErrClosed
	}
	return c.file.Write(p)
}

// Close closes the stream. It is safe to call more than once.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.file.Close()
}
