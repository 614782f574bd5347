package workers

import (
	"chat-widget/contract"
	"chat-widget/domain/event"
	"context"
	"log/slog"
	"sync"
	"time"
)

// EventFanout broadcasts the synchronizer and directory notifications to
// the presentation sinks.
//
// It provides best-effort fan-out with no retries. Each sink gets sinkTimeout
// to consume an event; the next event is only delivered once every sink
// returned, so a sink sees events in publication order.
//
// EventFanout is safe for concurrent use by multiple goroutines.
type EventFanout struct {
	log         *slog.Logger
	events      <-chan event.DomainEvent
	sinkTimeout time.Duration
	mu          sync.RWMutex
	sinks       []contract.EventSink
}

func NewEventFanout(log *slog.Logger, events <-chan event.DomainEvent, sinkTimeout time.Duration,
	sinks ...contract.EventSink) *EventFanout {
	return &EventFanout{log: log, events: events, sinkTimeout: sinkTimeout, sinks: sinks}
}

// Add registers sinks, they receive the events published from now on.
func (w *EventFanout) Add(sinks ...contract.EventSink) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sinks = append(w.sinks, sinks...)
}

func (w *EventFanout) Run(ctx context.Context) error {
	for {
		select {
		case evt, ok := <-w.events:
			if !ok {
				w.log.Debug("Event channel is closed")
				return nil
			}
			w.Fanout(ctx, evt)
		case <-ctx.Done():
			w.log.Debug("Context done, stopping event fanout")
			return nil
		}
	}
}

// Fanout One goroutine for each sink, bounded by the sink timeout
func (w *EventFanout) Fanout(ctx context.Context, evt event.DomainEvent) {
	w.mu.RLock()
	sinks := make([]contract.EventSink, len(w.sinks))
	copy(sinks, w.sinks)
	w.mu.RUnlock()

	var wg sync.WaitGroup
	for _, sink := range sinks {
		wg.Add(1)
		go func(sink contract.EventSink) {
			defer wg.Done()
			sinkCtx, cancel := context.WithTimeout(ctx, w.sinkTimeout)
			defer cancel()
			if err := sink.Consume(sinkCtx, evt); err != nil {
				w.log.Warn("Sink failed to consume event",
					"sink", contract.GetSinkName(sink), "room_id", evt.RoomID(), "error", err)
			}
		}(sink)
	}
	wg.Wait()
}
