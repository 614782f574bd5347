// Package chat contains core concepts of the chat widget.
// Rooms, profiles and messages are immutable values; ordering rules live here
// so every component sorts messages the same way.
package chat

import (
	"strings"
	"time"
)

type MessageID string

type UserID string

// Visibility mirrors RoomKind on each message row.
type Visibility string

const (
	VisibilityPublic  Visibility = Visibility(Public)
	VisibilityPrivate Visibility = Visibility(Private)
)

// RawMessage is a row as delivered by the store, either by a query or the change feed.
type RawMessage struct {
	ID         MessageID
	RoomID     RoomID
	AuthorID   UserID
	Body       string
	CreatedAt  time.Time
	Visibility Visibility
}

// Message is a RawMessage enriched with its author's profile.
// Provisional marks an optimistic entry not yet confirmed by the store.
type Message struct {
	ID          MessageID
	RoomID      RoomID
	AuthorID    UserID
	Author      Profile
	Body        string
	CreatedAt   time.Time
	Visibility  Visibility
	Provisional bool
}

func NewMessage(raw RawMessage, author Profile) Message {
	return Message{
		ID:         raw.ID,
		RoomID:     raw.RoomID,
		AuthorID:   raw.AuthorID,
		Author:     author,
		Body:       raw.Body,
		CreatedAt:  raw.CreatedAt,
		Visibility: raw.Visibility,
	}
}

// Before orders messages ascending by creation time, ties broken by id.
func (m Message) Before(other Message) bool {
	if !m.CreatedAt.Equal(other.CreatedAt) {
		return m.CreatedAt.Before(other.CreatedAt)
	}
	return m.ID < other.ID
}

// Compare is Before expressed as a three-way comparison for slices.SortFunc.
func Compare(a, b Message) int {
	switch {
	case a.Before(b):
		return -1
	case b.Before(a):
		return 1
	default:
		return 0
	}
}

// NormalizeBody trims surrounding whitespace, the form in which bodies are stored.
func NormalizeBody(body string) string {
	return strings.TrimSpace(body)
}
