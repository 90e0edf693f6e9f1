package storage

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.MigrateUp(); err != nil {
		t.Fatalf("MigrateUp() error = %v", err)
	}
	return db
}

func TestMigrateUpIsIdempotent(t *testing.T) {
	db := openTestDB(t)

	if err := db.MigrateUp(); err != nil {
		t.Fatalf("second MigrateUp() error = %v", err)
	}
	v, err := db.CurrentVersion()
	if err != nil {
		t.Fatalf("CurrentVersion() error = %v", err)
	}
	if v != 1 {
		t.Errorf("CurrentVersion() = %d, want 1", v)
	}
}

func TestSessionLifecycle(t *testing.T) {
	db := openTestDB(t)
	repo := NewSessionRepository(db)

	id, err := repo.Create("classic", "0.1.0")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if len(id) != 36 {
		t.Errorf("session ID %q is not a UUID", id)
	}

	if err := repo.SetDevice(id, "HC-05", "98:D3:31:F5:12:34"); err != nil {
		t.Fatalf("SetDevice() error = %v", err)
	}
	if err := repo.End(id); err != nil {
		t.Fatalf("End() error = %v", err)
	}

	s, err := repo.Get(id)
	if err != nil || s == nil {
		t.Fatalf("Get() = %v, %v", s, err)
	}
	if s.Transport != "classic" {
		t.Errorf("Transport = %q", s.Transport)
	}
	if s.DeviceName == nil || *s.DeviceName != "HC-05" {
		t.Errorf("DeviceName = %v", s.DeviceName)
	}
	if s.EndedAt == nil || s.DurationMs == nil {
		t.Error("ended session should have EndedAt and DurationMs")
	}
}

func TestGetMissingSession(t *testing.T) {
	db := openTestDB(t)
	s, err := NewSessionRepository(db).Get("nope")
	if err != nil || s != nil {
		t.Errorf("Get(nope) = %v, %v; want nil, nil", s, err)
	}
}

func TestListNewestFirst(t *testing.T) {
	db := openTestDB(t)
	repo := NewSessionRepository(db)
	start := time.Now()
	repo.now = func() time.Time { return start }
	first, _ := repo.Create("classic", "")
	repo.now = func() time.Time { return start.Add(time.Millisecond) }
	second, _ := repo.Create("ble", "")

	sessions, err := repo.List(10)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("List() = %d sessions, want 2", len(sessions))
	}
	if sessions[0].SessionID != second || sessions[1].SessionID != first {
		t.Errorf("List() order = %s, %s", sessions[0].SessionID, sessions[1].SessionID)
	}

	n, err := repo.Count()
	if err != nil || n != 2 {
		t.Errorf("Count() = %d, %v", n, err)
	}
}

func TestEvents(t *testing.T) {
	db := openTestDB(t)
	id, _ := NewSessionRepository(db).Create("loopback", "")
	repo := NewEventRepository(db)

	repo.Create(id, 10, EventCommand, "Forward")
	repo.Create(id, 20, EventReceived, "ACK Forward")
	repo.Create(id, 30, EventCommand, "Forward")
	repo.Create(id, 40, EventCommand, "Left")

	all, err := repo.GetBySession(id)
	if err != nil {
		t.Fatalf("GetBySession() error = %v", err)
	}
	if len(all) != 4 || all[1].Payload != "ACK Forward" {
		t.Errorf("GetBySession() = %+v", all)
	}

	commands, _ := repo.GetByType(id, EventCommand)
	if len(commands) != 3 {
		t.Errorf("GetByType(command) = %d events, want 3", len(commands))
	}

	counts, err := repo.CommandCounts(id)
	if err != nil {
		t.Fatalf("CommandCounts() error = %v", err)
	}
	if counts["Forward"] != 2 || counts["Left"] != 1 {
		t.Errorf("CommandCounts() = %v", counts)
	}

	n, _ := repo.Count(id)
	if n != 4 {
		t.Errorf("Count() = %d, want 4", n)
	}
}

func TestEventRequiresSession(t *testing.T) {
	db := openTestDB(t)
	if _, err := NewEventRepository(db).Create("missing", 0, EventLog, "x"); err == nil {
		t.Error("Create() should fail for an unknown session")
	}
}

func TestTransactionRollsBack(t *testing.T) {
	db := openTestDB(t)
	id, _ := NewSessionRepository(db).Create("classic", "")

	err := db.Transaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT INTO events (session_id, ts_ms, event_type, payload) VALUES (?, 0, ?, '')`, id, EventLog); err != nil {
			return err
		}
		return errors.New("abort")
	})
	if err == nil || err.Error() != "abort" {
		t.Fatalf("Transaction() error = %v, want abort", err)
	}

	n, _ := NewEventRepository(db).Count(id)
	if n != 0 {
		t.Errorf("Count() after rollback = %d, want 0", n)
	}
}

func TestListOrdersWithinOneSecond(t *testing.T) {
	db := openTestDB(t)
	repo := NewSessionRepository(db)

	base := time.Date(2024, 5, 1, 12, 0, 5, 0, time.UTC)
	stamps := []time.Duration{100 * time.Millisecond, 120 * time.Millisecond, 0}
	ids := make([]string, len(stamps))
	for i, d := range stamps {
		at := base.Add(d)
		repo.now = func() time.Time { return at }
		id, err := repo.Create("classic", "")
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		ids[i] = id
	}

	sessions, err := repo.List(10)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := []string{ids[1], ids[0], ids[2]} // .12, .1, .0
	if len(sessions) != len(want) {
		t.Fatalf("List() = %d sessions, want %d", len(sessions), len(want))
	}
	for i, s := range sessions {
		if s.SessionID != want[i] {
			t.Errorf("List()[%d] = %s started %s, want %s", i, s.SessionID, s.StartedAt.Format(timeLayout), want[i])
		}
	}
	if !sessions[0].StartedAt.Equal(base.Add(120 * time.Millisecond)) {
		t.Errorf("StartedAt = %v, want round trip of the stored time", sessions[0].StartedAt)
	}
}
