// Package rfcomm opens Bluetooth Classic serial (SPP) streams over kernel
// RFCOMM sockets.
package rfcomm

import (
	"errors"
	"fmt"
	"net"
)

// Errors
var (
	ErrNotSupported = errors.New("rfcomm: not supported on this platform")
	ErrClosed       = errors.New("rfcomm: connection closed")
	ErrNoChannel    = errors.New("rfcomm: no channel accepted the connection")
)

// MaxChannel is the highest valid RFCOMM channel.
const MaxChannel = 30

// ParseAddress converts "AA:BB:CC:DD:EE:FF" to the kernel's bdaddr byte
// order, which is reversed.
func ParseAddress(mac string) ([6]byte, error) {
	var b [6]byte
	hw, err := net.ParseMAC(mac)
	if err != nil {
		return b, fmt.Errorf("rfcomm: parse address %q: %w", mac, err)
	}
	if len(hw) != 6 {
		return b, fmt.Errorf("rfcomm: address %q is not 6 bytes", mac)
	}
	for i := 0; i < 6; i++ {
		b[i] = hw[5-i]
	}
	return b, nil
}

// Channels returns the channels to try: just ch, or 1..max when ch is 0.
func Channels(ch, max uint8) []uint8 {
	if ch != 0 {
		return []uint8{ch}
	}
	if max == 0 || max > MaxChannel {
		max = MaxChannel
	}
	out := make([]uint8, 0, max)
	for c := uint8(1); c <= max; c++ {
		out = append(out, c)
	}
	return out
}
