// Package serial implements carcontrol.Serial over the available
// Bluetooth transports.
package serial

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/SeamusWaldron/carcontrol"
	"github.com/SeamusWaldron/carcontrol/internal/config"
)

// Errors
var (
	ErrNotConnected     = errors.New("serial: not connected")
	ErrAlreadyConnected = errors.New("serial: already connected")
	ErrUnknownTransport = errors.New("serial: unknown transport")
)

// readBufSize is the largest chunk handed to a data listener at once.
const readBufSize = 1024

// Link is a transport plus the permission negotiation that goes with it.
type Link interface {
	carcontrol.Serial
	Permissions() carcontrol.Permissions
	Name() string
	Close() error
}

// Open builds the Link selected by cfg.Transport.
func Open(cfg *config.Config, logger *slog.Logger) (Link, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Transport {
	case config.TransportClassic:
		return NewClassic(cfg.RFCOMM, logger), nil
	case config.TransportBLE:
		return NewLowEnergy(cfg.BLE, logger), nil
	case config.TransportLoopback:
		return NewLoopback(cfg.Loopback.Echo), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownTransport, cfg.Transport)
}

// listeners holds named data callbacks.
type listeners struct {
	mu  sync.RWMutex
	cbs map[string]func(carcontrol.Data)
}

func (l *listeners) set(name string, cb func(carcontrol.Data)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cbs == nil {
		l.cbs = make(map[string]func(carcontrol.Data))
	}
	l.cbs[name] = cb
}

func (l *listeners) remove(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.cbs, name)
}

func (l *listeners) emit(d carcontrol.Data) {
	l.mu.RLock()
	cbs := make([]func(carcontrol.Data), 0, len(l.cbs))
	for _, cb := range l.cbs {
		cbs = append(cbs, cb)
	}
	l.mu.RUnlock()

	for _, cb := range cbs {
		cb(d)
	}
}

// readLoop delivers each chunk read from r until r fails. It returns the
// error that ended the loop.
func readLoop(r io.Reader, address string, l *listeners) error {
	buf := make([]byte, readBufSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			l.emit(carcontrol.Data{Device: address, Data: string(buf[:n])})
		}
		if err != nil {
			return err
		}
	}
}
