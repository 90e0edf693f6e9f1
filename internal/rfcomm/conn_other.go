//go:build !linux

package rfcomm

import "context"

// Conn is an open RFCOMM stream. Only Linux exposes RFCOMM sockets.
type Conn struct{}

// Dial always fails on this platform.
func Dial(ctx context.Context, address string, channels []uint8) (*Conn, error) {
	return nil, ErrNotSupported
}

func (c *Conn) Channel() uint8              { return 0 }
func (c *Conn) Read(p []byte) (int, error)  { return 0, ErrNotSupported }
func (c *Conn) Write(p []byte) (int, error) { return 0, ErrNotSupported }
func (c *Conn) Close() error                { return nil }
