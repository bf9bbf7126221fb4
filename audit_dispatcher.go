package driveauth

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
)

// auditDispatcher decouples the request path from the sink: Emit is a
// buffered channel send, delivery happens on one background goroutine.
type auditDispatcher struct {
	sink       AuditSink
	events     chan AuditEvent
	dropIfFull bool
	dropped    atomic.Uint64

	closed    atomic.Bool
	closeOnce sync.Once
	done      chan struct{}
}

func newAuditDispatcher(sink AuditSink, bufferSize int, dropIfFull bool) *auditDispatcher {
	if bufferSize < 1 {
		bufferSize = 1
	}
	d := &auditDispatcher{
		sink:       sink,
		events:     make(chan AuditEvent, bufferSize),
		dropIfFull: dropIfFull,
		done:       make(chan struct{}),
	}
	go d.run()
	return d
}

// Emit queues event for delivery. With dropIfFull set, a full buffer
// drops the event and bumps the drop counter instead of blocking the
// request.
func (d *auditDispatcher) Emit(ctx context.Context, event AuditEvent) {
	if d == nil || d.closed.Load() {
		return
	}
	if d.dropIfFull {
		select {
		case d.events <- event:
		default:
			d.dropped.Add(1)
		}
		return
	}
	select {
	case d.events <- event:
	case <-ctx.Done():
		d.dropped.Add(1)
	}
}

func (d *auditDispatcher) run() {
	for event := range d.events {
		if err := d.sink.Write(context.Background(), event); err != nil {
			log.Print("driveauth: audit sink write failed: ", err)
		}
	}
	close(d.done)
}

// Dropped reports how many events were lost to a full buffer.
func (d *auditDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// Close stops intake, drains buffered events to the sink and returns
// once delivery has finished.
func (d *auditDispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.events)
		<-d.done
	})
}
