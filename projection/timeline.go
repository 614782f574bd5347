// Package projection builds the local timeline of the active room.
// Handles ordering, deduplication and the reconciliation of provisional entries.
// Does not emit events or interact with the store directly.
package projection

import (
	"chat-widget/domain/chat"
	"slices"
	"time"
)

// Timeline holds the messages of one room session, unique by id and sorted
// by creation time then id. It is not safe for concurrent use: the
// synchronizer's apply loop is its single writer.
type Timeline struct {
	messages []chat.Message
	ids      map[chat.MessageID]struct{}
	window   time.Duration
	now      func() time.Time
}

// NewTimeline creates an empty timeline. window bounds how long a provisional
// entry may be matched by content against a server-confirmed message.
func NewTimeline(window time.Duration) *Timeline {
	return &Timeline{
		ids:    make(map[chat.MessageID]struct{}),
		window: window,
		now:    time.Now,
	}
}

func (t *Timeline) WithClock(now func() time.Time) *Timeline {
	t.now = now
	return t
}

func (t *Timeline) Len() int { return len(t.messages) }

func (t *Timeline) Contains(id chat.MessageID) bool {
	_, ok := t.ids[id]
	return ok
}

// Messages returns a copy safe to publish.
func (t *Timeline) Messages() []chat.Message {
	return slices.Clone(t.messages)
}

// Insert places a message at its ordered position.
// It returns false when the id is already present.
func (t *Timeline) Insert(message chat.Message) bool {
	if t.Contains(message.ID) {
		return false
	}
	i, _ := slices.BinarySearchFunc(t.messages, message, chat.Compare)
	t.messages = slices.Insert(t.messages, i, message)
	t.ids[message.ID] = struct{}{}
	return true
}

// Remove drops the message with the given id, if any.
func (t *Timeline) Remove(id chat.MessageID) bool {
	if !t.Contains(id) {
		return false
	}
	t.messages = slices.DeleteFunc(t.messages, func(m chat.Message) bool { return m.ID == id })
	delete(t.ids, id)
	return true
}

// Reconcile applies one server-confirmed message: duplicates are ignored and
// a matching provisional entry is replaced by the canonical one.
// It returns whether the timeline changed.
func (t *Timeline) Reconcile(canonical chat.Message) bool {
	if t.Contains(canonical.ID) {
		return false
	}
	if i := t.matchProvisional(canonical); i >= 0 {
		t.Remove(t.messages[i].ID)
	}
	return t.Insert(canonical)
}

// Merge applies a batch of server-confirmed messages with a single sort
// instead of one insertion per message. It returns the number of messages added.
func (t *Timeline) Merge(batch []chat.Message) int {
	added := 0
	for _, m := range batch {
		if t.Contains(m.ID) {
			continue
		}
		if i := t.matchProvisional(m); i >= 0 {
			delete(t.ids, t.messages[i].ID)
			t.messages = slices.Delete(t.messages, i, i+1)
		}
		t.messages = append(t.messages, m)
		t.ids[m.ID] = struct{}{}
		added++
	}
	if added > 0 {
		slices.SortStableFunc(t.messages, chat.Compare)
	}
	return added
}

// Confirm replaces a provisional entry by the message the store returned for it.
// The canonical message may already be there when the feed echoed it first.
func (t *Timeline) Confirm(provisionalID chat.MessageID, canonical chat.Message) bool {
	removed := t.Remove(provisionalID)
	inserted := t.Insert(canonical)
	return removed || inserted
}

// matchProvisional finds the oldest provisional entry of the same author with
// the same body, added less than window ago. Returns -1 when none matches.
func (t *Timeline) matchProvisional(canonical chat.Message) int {
	now := t.now()
	for i, m := range t.messages {
		if !m.Provisional {
			continue
		}
		if m.RoomID != canonical.RoomID || m.AuthorID != canonical.AuthorID || m.Body != canonical.Body {
			continue
		}
		if now.Sub(m.CreatedAt) > t.window {
			continue
		}
		return i
	}
	return -1
}
