package runtime

import (
	"chat-widget/contract"
	"chat-widget/domain/chat"
	"chat-widget/projection"
	"context"
	"time"
)

// roomSession is the live aggregate of the active room.
// Only the synchronizer's apply loop reads or writes it.
type roomSession struct {
	room       chat.Room
	generation uint64
	state      chat.SessionState
	timeline   *projection.Timeline
	// Live events received while the bulk fetch is in flight.
	buffer []chat.Message
	sub    contract.Subscription
	// connected is false until the feed is open, and again after it dropped.
	connected bool
	// opened is set once the feed has been open, a later subscription is a reconnection.
	opened bool
	// catchUp is set when a subscription opened while Loading came from a retry:
	// the bulk query may have run before it, so a catch-up follows the load.
	catchUp bool
	// resubscribed is set while the single resubscription attempt is used up.
	resubscribed bool
	// lost is set once ConnectionLost has been surfaced for this session.
	lost   bool
	ctx    context.Context
	cancel context.CancelFunc
}

func newRoomSession(parent context.Context, room chat.Room, generation uint64, window time.Duration) *roomSession {
	ctx, cancel := context.WithCancel(parent)
	return &roomSession{
		room:       room,
		generation: generation,
		state:      chat.Loading,
		timeline:   projection.NewTimeline(window),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// accepts tells whether a message belongs to this session's room partition.
func (s *roomSession) accepts(m chat.Message) bool {
	if m.RoomID != s.room.ID {
		return false
	}
	return m.Visibility == "" || m.Visibility == s.room.Visibility()
}

func (s *roomSession) snapshot() chat.Snapshot {
	room := s.room
	return chat.Snapshot{
		Room:       &room,
		State:      s.state,
		Messages:   s.timeline.Messages(),
		Connected:  s.connected,
		Generation: s.generation,
	}
}
