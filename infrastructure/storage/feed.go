package storage

import (
	"chat-widget/contract"
	"chat-widget/domain/chat"
	"chat-widget/errors"
	"log/slog"
	"sync"
)

const DefaultSubscriptionBufferSize = 64

type subscriberSet map[*subscription]struct{}

// Feed is the in-process change feed of the local store. Every committed
// insert is broadcast to the subscribers of its room.
//
// Subscriptions have a bounded buffer: a subscriber that falls behind is
// dropped and its Err reports ErrSubscriberTooSlow, like a remote feed
// closing a lagging socket.
type Feed struct {
	mu         sync.RWMutex
	log        *slog.Logger
	rooms      map[chat.RoomID]subscriberSet
	bufferSize int
}

func NewFeed(log *slog.Logger, bufferSize int) *Feed {
	if bufferSize <= 0 {
		bufferSize = DefaultSubscriptionBufferSize
	}
	return &Feed{log: log, rooms: make(map[chat.RoomID]subscriberSet), bufferSize: bufferSize}
}

// Subscribe registers a subscriber for the inserts of one room partition.
// If the room does not yet exist in the feed, it is initialized on the fly.
func (f *Feed) Subscribe(roomID chat.RoomID, visibility chat.Visibility) contract.Subscription {
	sub := &subscription{
		feed:       f,
		roomID:     roomID,
		visibility: visibility,
		events:     make(chan chat.RawMessage, f.bufferSize),
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rooms[roomID]; !ok {
		f.rooms[roomID] = make(subscriberSet)
	}
	f.rooms[roomID][sub] = struct{}{}
	return sub
}

// Publish delivers a committed row to every matching subscriber without blocking.
func (f *Feed) Publish(raw chat.RawMessage) {
	var dropped []*subscription
	f.mu.RLock()
	for sub := range f.rooms[raw.RoomID] {
		if sub.visibility != "" && sub.visibility != raw.Visibility {
			continue
		}
		if !sub.offer(raw) {
			dropped = append(dropped, sub)
		}
	}
	f.mu.RUnlock()

	for _, sub := range dropped {
		f.log.Warn("Dropping slow feed subscriber", "room_id", sub.roomID, "error", errors.ErrSubscriberTooSlow)
		f.remove(sub)
	}
}

// Subscribers counts the open subscriptions of a room.
func (f *Feed) Subscribers(roomID chat.RoomID) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.rooms[roomID])
}

// remove cleans up the subscriber and ensures no empty sets are left in the room map.
func (f *Feed) remove(sub *subscription) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if members, ok := f.rooms[sub.roomID]; ok {
		delete(members, sub)
		if len(members) == 0 {
			delete(f.rooms, sub.roomID)
		}
	}
}

// subscription implements contract.Subscription.
type subscription struct {
	feed       *Feed
	roomID     chat.RoomID
	visibility chat.Visibility
	events     chan chat.RawMessage

	mu     sync.Mutex
	closed bool
	err    error
}

func (s *subscription) Events() <-chan chat.RawMessage { return s.events }

func (s *subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close is idempotent.
func (s *subscription) Close() error {
	if s.end(nil) {
		s.feed.remove(s)
	}
	return nil
}

// offer returns false when the buffer is full, the subscription is then ended.
func (s *subscription) offer(raw chat.RawMessage) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	select {
	case s.events <- raw:
		return true
	default:
		s.closed = true
		s.err = errors.ErrSubscriberTooSlow
		close(s.events)
		return false
	}
}

func (s *subscription) end(err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.closed = true
	s.err = err
	close(s.events)
	return true
}
