// Package audit records scan lifecycle events as JSON lines, one event per
// line, append-only. The trail is the compliance artifact: who scanned
// what, which sources answered, and what verdict came out.
package audit

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EventType identifies a scan lifecycle event.
type EventType string

const (
	EventScanStarted     EventType = "scan_started"
	EventSourceCompleted EventType = "source_completed"
	EventSourceFailed    EventType = "source_failed"
	EventSourceSkipped   EventType = "source_skipped"
	EventScanCompleted   EventType = "scan_completed"
	EventScanFailed      EventType = "scan_failed"
)

// Event is one audit record.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	ScanID    string    `json:"scan_id,omitempty"`
	Target    string    `json:"target,omitempty"`
	Source    string    `json:"source,omitempty"`
	Status    string    `json:"status,omitempty"`
	Score     int       `json:"score,omitempty"`
	Light     string    `json:"light,omitempty"`
	Error     string    `json:"error,omitempty"`
	Note      string    `json:"note,omitempty"`
}

// Trail writes audit events. A nil *Trail is valid and records nothing.
type Trail struct {
	mu  sync.Mutex
	w   io.Writer
	c   io.Closer
	now func() time.Time
}

// NewTrail writes events to w.
func NewTrail(w io.Writer) *Trail {
	return &Trail{w: w, now: time.Now}
}

// OpenTrail appends events to the file at path, creating directories as
// needed.
func OpenTrail(path string) (*Trail, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create audit directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	return &Trail{w: f, c: f, now: time.Now}, nil
}

// Record appends one event, stamping the timestamp.
func (t *Trail) Record(ev Event) {
	if t == nil {
		return
	}
	ev.Timestamp = t.now().UTC()

	t.mu.Lock()
	defer t.mu.Unlock()

	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	t.w.Write(data)
	t.w.Write([]byte("\n"))
}

// ScanStarted records the start of a scan.
func (t *Trail) ScanStarted(scanID, target string) {
	t.Record(Event{Type: EventScanStarted, ScanID: scanID, Target: target})
}

// SourceCompleted records an analyzer finishing, in any status.
func (t *Trail) SourceCompleted(scanID, source, status, note string) {
	typ := EventSourceCompleted
	switch status {
	case "failed":
		typ = EventSourceFailed
	case "skipped":
		typ = EventSourceSkipped
	}
	t.Record(Event{Type: typ, ScanID: scanID, Source: source, Status: status, Note: note})
}

// ScanCompleted records the verdict.
func (t *Trail) ScanCompleted(scanID, target string, score int, light string) {
	t.Record(Event{Type: EventScanCompleted, ScanID: scanID, Target: target, Score: score, Light: light})
}

// ScanFailed records a scan that produced no report.
func (t *Trail) ScanFailed(scanID, target string, err error) {
	ev := Event{Type: EventScanFailed, ScanID: scanID, Target: target}
	if err != nil {
		ev.Error = err.Error()
	}
	t.Record(ev)
}

// Close closes the underlying file, if the trail owns one.
func (t *Trail) Close() error {
	if t == nil || t.c == nil {
		return nil
	}
	return t.c.Close()
}
