package recorder

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/SeamusWaldron/carcontrol"
	"github.com/SeamusWaldron/carcontrol/internal/storage"
)

// SessionState represents the current state of a recording session.
type SessionState int

const (
	StateIdle SessionState = iota
	StateRecording
	StateEnded
)

// String returns the string representation of the session state.
func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Session records one drive into the history database. Attach it to a
// controller with Controller.OnEvent(session.Record).
type Session struct {
	logger    *slog.Logger
	stateFile *StateFile

	mu        sync.Mutex
	state     SessionState
	sessionID string
	transport string
	startTime time.Time

	sessionRepo *storage.SessionRepository
	eventRepo   *storage.EventRepository
}

// NewSession creates a new session manager. stateFile may be nil.
func NewSession(db *storage.DB, stateFile *StateFile, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Session{
		logger:      logger,
		stateFile:   stateFile,
		state:       StateIdle,
		sessionRepo: storage.NewSessionRepository(db),
		eventRepo:   storage.NewEventRepository(db),
	}
}

// Start begins a new session.
func (s *Session) Start(transport, appVersion string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateRecording {
		return "", fmt.Errorf("session already recording: %s", s.sessionID)
	}

	id, err := s.sessionRepo.Create(transport, appVersion)
	if err != nil {
		return "", err
	}

	s.sessionID = id
	s.transport = transport
	s.startTime = time.Now()
	s.state = StateRecording
	return id, nil
}

// End finishes the session.
func (s *Session) End() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRecording {
		return nil
	}
	s.state = StateEnded
	return s.sessionRepo.End(s.sessionID)
}

// ID returns the session ID, or "" before Start.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// State returns the session state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Record stores a controller event. Events outside a recording session
// are dropped. Storage errors are logged, not returned, since Record runs
// as a controller hook.
func (s *Session) Record(e carcontrol.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRecording {
		return
	}

	eventType, payload, ok := eventRow(e)
	if !ok {
		return
	}

	ts := time.Since(s.startTime).Milliseconds()
	if _, err := s.eventRepo.Create(s.sessionID, ts, eventType, payload); err != nil {
		s.logger.Warn("failed to record event", "type", eventType, "error", err)
	}

	if c, isConnect := e.(carcontrol.Connected); isConnect {
		if err := s.sessionRepo.SetDevice(s.sessionID, c.Device.Name, c.Device.Address); err != nil {
			s.logger.Warn("failed to record session device", "error", err)
		}
		if s.stateFile != nil {
			if err := s.stateFile.SetLastDevice(c.Device, s.transport); err != nil {
				s.logger.Warn("failed to save last device", "error", err)
			}
		}
	}
}

// eventRow maps a controller event to a storage event type and payload.
func eventRow(e carcontrol.Event) (string, string, bool) {
	switch e := e.(type) {
	case carcontrol.CommandSent:
		return storage.EventCommand, e.Direction.String(), true
	case carcontrol.DataReceived:
		return storage.EventReceived, e.Data.Data, true
	case carcontrol.LogAppended:
		return storage.EventLog, e.Line, true
	case carcontrol.Connected:
		return storage.EventConnected, e.Device.Address, true
	case carcontrol.Disconnected:
		return storage.EventDisconnected, "", true
	default:
		return "", "", false
	}
}
