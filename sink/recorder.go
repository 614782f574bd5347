package sink

import (
	"chat-widget/domain/chat"
	"chat-widget/domain/event"
	"context"
	"sync"
)

// Recorder keeps every notification it receives, and the latest snapshot.
// Used by tests and the end-to-end scenarios to observe the widget from outside.
type Recorder struct {
	mu       sync.Mutex
	events   []event.DomainEvent
	snapshot chat.Snapshot
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Consume(_ context.Context, e event.DomainEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	if evt, ok := e.(event.SnapshotUpdated); ok {
		r.snapshot = evt.Snapshot
	}
	return nil
}

// Count returns how many recorded events match.
func (r *Recorder) Count(match func(event.DomainEvent) bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if match(e) {
			n++
		}
	}
	return n
}

func (r *Recorder) Has(match func(event.DomainEvent) bool) bool {
	return r.Count(match) > 0
}

func (r *Recorder) Latest() chat.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot
}

// Is matches every event of type T.
func Is[T event.DomainEvent](e event.DomainEvent) bool {
	_, ok := e.(T)
	return ok
}
