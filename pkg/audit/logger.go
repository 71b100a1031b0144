// Package audit records the engine's governance events: admission
// decisions, denials, and completed verification trails. Events are
// structured, append-only, and never rewritten.
package audit

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType defines the category of the audit event.
type EventType string

const (
	EventAdmission    EventType = "ADMISSION"
	EventDenial       EventType = "DENIAL"
	EventVerification EventType = "VERIFICATION"
	EventSystem       EventType = "SYSTEM"
)

// Event represents a structured audit record.
type Event struct {
	ID        string                 `json:"id"`
	Actor     string                 `json:"actor"`
	Type      EventType              `json:"type"`
	Action    string                 `json:"action"`
	PolicyID  string                 `json:"policy_id,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Logger defines the interface for recording audit events.
type Logger interface {
	Record(ctx context.Context, eventType EventType, actor, action, policyID string, metadata map[string]interface{}) error
}

// logger implements Logger, writing structured JSON to a configurable
// writer.
type logger struct {
	mu     sync.Mutex
	writer io.Writer
	clock  func() time.Time
}

// NewLogger creates a Logger writing to os.Stdout.
func NewLogger() Logger {
	return NewLoggerWithWriter(os.Stdout)
}

// NewLoggerWithWriter creates a Logger writing to the given writer.
// This allows injection for testing and custom sinks.
func NewLoggerWithWriter(w io.Writer) Logger {
	if w == nil {
		w = os.Stdout
	}
	return &logger{writer: w, clock: time.Now}
}

func (l *logger) Record(ctx context.Context, eventType EventType, actor, action, policyID string, metadata map[string]interface{}) error {
	_ = ctx
	if actor == "" {
		actor = "system"
	}

	event := Event{
		ID:        uuid.New().String(),
		Actor:     actor,
		Type:      eventType,
		Action:    action,
		PolicyID:  policyID,
		Timestamp: l.clock(),
		Metadata:  metadata,
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	bytes, err := json.Marshal(event)
	if err != nil {
		return err
	}
	// Prefix with AUDIT: for easy filtering
	_, err = l.writer.Write(append([]byte("AUDIT: "), append(bytes, '\n')...))
	return err
}
