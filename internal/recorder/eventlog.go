package recorder

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/SeamusWaldron/carcontrol"
)

// LogEventType identifies the kind of event in a drive log.
type LogEventType string

const (
	LogEventCommand      LogEventType = "command"
	LogEventReceived     LogEventType = "received"
	LogEventLog          LogEventType = "log"
	LogEventConnected    LogEventType = "connected"
	LogEventDisconnected LogEventType = "disconnected"
	LogEventDevices      LogEventType = "devices"
	LogEventDirection    LogEventType = "direction"
)

// LogEvent is one line of a drive log.
type LogEvent struct {
	Timestamp time.Time    `json:"timestamp"`
	ElapsedMs int64        `json:"elapsed_ms"`
	EventType LogEventType `json:"event_type"`
	Direction string       `json:"direction,omitempty"`
	Device    string       `json:"device,omitempty"`
	Data      string       `json:"data,omitempty"`
	Message   string       `json:"message,omitempty"`
	Count     int          `json:"count,omitempty"`
}

// EventLog writes controller events to a JSONL file: a header line, then
// one line per event. It is also an io.Writer for JSON log records.
type EventLog struct {
	mu        sync.Mutex
	file      *os.File
	path      string
	startTime time.Time
}

// NewEventLog creates drive_<timestamp>.jsonl in logDir and writes the
// header.
func NewEventLog(logDir string) (*EventLog, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	filename := fmt.Sprintf("drive_%s.jsonl", time.Now().Format("20060102_150405"))
	path := filepath.Join(logDir, filename)

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}

	l := &EventLog{file: file, path: path, startTime: time.Now()}

	header := map[string]any{
		"version":    "1.0",
		"created_at": l.startTime,
		"type":       "header",
	}
	if err := l.writeJSON(header); err != nil {
		file.Close()
		return nil, err
	}

	return l, nil
}

// Path returns the log file path.
func (l *EventLog) Path() string {
	return l.path
}

// Write appends p to the log as-is. p must be one complete JSON line,
// such as a record from slog.JSONHandler.
func (l *EventLog) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return 0, os.ErrClosed
	}
	return l.file.Write(p)
}

// Record writes a controller event. It has the shape of a controller
// event hook.
func (l *EventLog) Record(e carcontrol.Event) {
	event := LogEvent{}
	switch e := e.(type) {
	case carcontrol.CommandSent:
		event.EventType = LogEventCommand
		event.Direction = e.Direction.String()
	case carcontrol.DataReceived:
		event.EventType = LogEventReceived
		event.Device = e.Data.Device
		event.Data = e.Data.Data
	case carcontrol.LogAppended:
		event.EventType = LogEventLog
		event.Message = e.Line
	case carcontrol.Connected:
		event.EventType = LogEventConnected
		event.Device = e.Device.String()
	case carcontrol.Disconnected:
		event.EventType = LogEventDisconnected
	case carcontrol.DevicesListed:
		event.EventType = LogEventDevices
		event.Count = len(e.Devices)
	case carcontrol.DirectionChanged:
		event.EventType = LogEventDirection
		event.Direction = e.Direction.String()
	default:
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return
	}
	event.Timestamp = time.Now()
	event.ElapsedMs = time.Since(l.startTime).Milliseconds()
	l.writeJSON(event)
}

// Close closes the log file.
func (l *EventLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

func (l *EventLog) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = l.file.Write(append(data, '\n'))
	return err
}
