package driveauth

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
)

// AuditEvent is one security-relevant occurrence. TokenDigest is the
// session's digest, never the raw token.
type AuditEvent struct {
	ID          string            `json:"id"`
	Timestamp   time.Time         `json:"timestamp"`
	EventType   string            `json:"event_type"`
	UserID      int64             `json:"user_id,omitempty"`
	TokenDigest string            `json:"token_digest,omitempty"`
	IP          string            `json:"ip,omitempty"`
	UserAgent   string            `json:"user_agent,omitempty"`
	Success     bool              `json:"success"`
	Error       string            `json:"error,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// AuditSink receives audit events from the dispatcher goroutine, one at
// a time.
type AuditSink interface {
	Write(ctx context.Context, event AuditEvent) error
}

// NoOpAuditSink discards events.
type NoOpAuditSink struct{}

func (NoOpAuditSink) Write(context.Context, AuditEvent) error { return nil }

// ChannelAuditSink forwards events to a channel, dropping when the
// channel is full. Useful in tests and for custom fan-out.
type ChannelAuditSink struct {
	C chan AuditEvent
}

// NewChannelAuditSink builds a ChannelAuditSink with the given buffer.
func NewChannelAuditSink(buffer int) *ChannelAuditSink {
	return &ChannelAuditSink{C: make(chan AuditEvent, buffer)}
}

func (s *ChannelAuditSink) Write(_ context.Context, event AuditEvent) error {
	select {
	case s.C <- event:
	default:
	}
	return nil
}

// JSONWriterAuditSink writes one JSON object per line.
type JSONWriterAuditSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewJSONWriterAuditSink wraps w. The sink serializes writes itself; w
// does not need to be concurrency safe.
func NewJSONWriterAuditSink(w io.Writer) *JSONWriterAuditSink {
	return &JSONWriterAuditSink{w: w}
}

func (s *JSONWriterAuditSink) Write(_ context.Context, event AuditEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.w.Write(data)
	return err
}

func newAuditEvent(eventType string) AuditEvent {
	return AuditEvent{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		EventType: eventType,
	}
}
