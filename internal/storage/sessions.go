package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Session is one run of the drive UI.
type Session struct {
	SessionID     string
	StartedAt     time.Time
	EndedAt       *time.Time
	DurationMs    *int64
	Transport     string
	DeviceName    *string
	DeviceAddress *string
	AppVersion    *string
}

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SessionRepository provides CRUD operations for sessions.
type SessionRepository struct {
	db  *DB
	now func() time.Time
}

// NewSessionRepository creates a new session repository.
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db, now: time.Now}
}

// Create creates a new session and returns its ID.
func (r *SessionRepository) Create(transport, appVersion string) (string, error) {
	id := uuid.New().String()
	startedAt := r.now().UTC()

	var appVersionPtr *string
	if appVersion != "" {
		appVersionPtr = &appVersion
	}

	_, err := r.db.Exec(`
		INSERT INTO sessions (session_id, started_at, transport, app_version)
		VALUES (?, ?, ?, ?)
	`, id, startedAt.Format(timeLayout), transport, appVersionPtr)

	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}

	return id, nil
}

// SetDevice records the device the session connected to.
func (r *SessionRepository) SetDevice(sessionID, name, address string) error {
	_, err := r.db.Exec(`
		UPDATE sessions SET device_name = ?, device_address = ?
		WHERE session_id = ?
	`, name, address, sessionID)
	if err != nil {
		return fmt.Errorf("failed to set session device: %w", err)
	}
	return nil
}

// End marks a session as finished.
func (r *SessionRepository) End(sessionID string) error {
	endedAt := r.now().UTC()

	var startedAtStr string
	err := r.db.QueryRow("SELECT started_at FROM sessions WHERE session_id = ?", sessionID).Scan(&startedAtStr)
	if err != nil {
		return fmt.Errorf("failed to get session start time: %w", err)
	}

	startedAt, err := time.Parse(timeLayout, startedAtStr)
	if err != nil {
		return fmt.Errorf("failed to parse start time: %w", err)
	}

	durationMs := endedAt.Sub(startedAt).Milliseconds()

	_, err = r.db.Exec(`
		UPDATE sessions SET ended_at = ?, duration_ms = ?
		WHERE session_id = ?
	`, endedAt.Format(timeLayout), durationMs, sessionID)
	if err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}

	return nil
}

// Get retrieves a session by ID.
func (r *SessionRepository) Get(sessionID string) (*Session, error) {
	row := r.db.QueryRow(`
		SELECT session_id, started_at, ended_at, duration_ms, transport,
		       device_name, device_address, app_version
		FROM sessions
		WHERE session_id = ?
	`, sessionID)

	s, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return s, nil
}

// List retrieves the most recent sessions, newest first.
func (r *SessionRepository) List(limit int) ([]Session, error) {
	rows, err := r.db.Query(`
		SELECT session_id, started_at, ended_at, duration_ms, transport,
		       device_name, device_address, app_version
		FROM sessions
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, *s)
	}

	return sessions, rows.Err()
}

// Count returns the total number of sessions.
func (r *SessionRepository) Count() (int, error) {
	var count int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM sessions").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	var s Session
	var startedAt string
	var endedAt sql.NullString
	var durationMs sql.NullInt64
	var deviceName, deviceAddress, appVersion sql.NullString

	err := row.Scan(&s.SessionID, &startedAt, &endedAt, &durationMs, &s.Transport,
		&deviceName, &deviceAddress, &appVersion)
	if err != nil {
		return nil, err
	}

	s.StartedAt, err = time.Parse(timeLayout, startedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse started_at: %w", err)
	}
	if endedAt.Valid {
		t, err := time.Parse(timeLayout, endedAt.String)
		if err == nil {
			s.EndedAt = &t
		}
	}
	if durationMs.Valid {
		s.DurationMs = &durationMs.Int64
	}
	if deviceName.Valid {
		s.DeviceName = &deviceName.String
	}
	if deviceAddress.Valid {
		s.DeviceAddress = &deviceAddress.String
	}
	if appVersion.Valid {
		s.AppVersion = &appVersion.String
	}

	return &s, nil
}
