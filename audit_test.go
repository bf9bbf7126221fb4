package driveauth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

type recordingSink struct {
	mu     sync.Mutex
	events []AuditEvent
}

func (s *recordingSink) Write(_ context.Context, event AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) snapshot() []AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]AuditEvent(nil), s.events...)
}

type blockingSink struct {
	release chan struct{}
}

func (s *blockingSink) Write(_ context.Context, _ AuditEvent) error {
	<-s.release
	return nil
}

func TestDispatcherDeliversInOrder(t *testing.T) {
	sink := &recordingSink{}
	d := newAuditDispatcher(sink, 16, true)

	for i := 0; i < 5; i++ {
		ev := newAuditEvent(auditEventLoginSuccess)
		ev.Metadata = map[string]string{"seq": string(rune('a' + i))}
		d.Emit(context.Background(), ev)
	}
	d.Close()

	events := sink.snapshot()
	if len(events) != 5 {
		t.Fatalf("delivered %d events, want 5", len(events))
	}
	for i, ev := range events {
		if ev.Metadata["seq"] != string(rune('a'+i)) {
			t.Fatalf("event %d out of order: %+v", i, ev)
		}
	}
	if d.Dropped() != 0 {
		t.Fatalf("dropped = %d", d.Dropped())
	}
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	d := newAuditDispatcher(sink, 1, true)

	// First event occupies the worker, second fills the buffer, the
	// rest must be dropped without blocking.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 6; i++ {
			d.Emit(context.Background(), newAuditEvent(auditEventLogout))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Emit blocked with dropIfFull set")
	}
	if d.Dropped() == 0 {
		t.Fatal("no drops counted")
	}
	close(sink.release)
	d.Close()
}

func TestDispatcherEmitAfterClose(t *testing.T) {
	sink := &recordingSink{}
	d := newAuditDispatcher(sink, 4, true)
	d.Close()
	// Must not panic or deliver.
	d.Emit(context.Background(), newAuditEvent(auditEventLogout))
	if n := len(sink.snapshot()); n != 0 {
		t.Fatalf("delivered %d events after close", n)
	}
}

func TestJSONWriterSinkFormat(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterAuditSink(&buf)

	ev := newAuditEvent(auditEventRevokeAll)
	ev.UserID = 42
	ev.TokenDigest = "digest"
	if err := sink.Write(context.Background(), ev); err != nil {
		t.Fatalf("Write: %v", err)
	}

	line := strings.TrimSpace(buf.String())
	var decoded map[string]any
	if err := json.Unmarshal([]byte(line), &decoded); err != nil {
		t.Fatalf("output is not one JSON object per line: %v", err)
	}
	if decoded["event_type"] != "revoke_all" || decoded["user_id"] != float64(42) {
		t.Fatalf("decoded = %v", decoded)
	}
	if decoded["id"] == "" || decoded["id"] == nil {
		t.Fatal("event missing id")
	}
}

func TestChannelSinkDropsQuietly(t *testing.T) {
	sink := NewChannelAuditSink(1)
	for i := 0; i < 3; i++ {
		if err := sink.Write(context.Background(), newAuditEvent(auditEventLogout)); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if len(sink.C) != 1 {
		t.Fatalf("channel holds %d events, want 1", len(sink.C))
	}
}

func TestAuditErrorCodes(t *testing.T) {
	cases := []struct {
		err  error
		want AuditErrorCode
	}{
		{nil, ""},
		{ErrUnauthenticated, auditErrUnauthenticated},
		{ErrInvalidCredentials, auditErrInvalidCredentials},
		{ErrDigestConflict, auditErrDigestConflict},
		{ErrAuthorityUnavailable, auditErrAuthorityDown},
		{ErrLedgerUnavailable, auditErrLedgerDown},
		{errors.New("anything else"), auditErrInternal},
	}
	for _, tc := range cases {
		if got := auditErrorCode(tc.err); got != tc.want {
			t.Errorf("auditErrorCode(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
