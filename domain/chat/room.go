package chat

import "fmt"

type RoomID string

// RoomKind partitions rooms into the public and private tabs of the widget.
// It is also the single source of truth for the visibility of the room's messages.
type RoomKind string

const (
	Public  RoomKind = "public"
	Private RoomKind = "private"
)

func ParseRoomKind(s string) (RoomKind, error) {
	switch RoomKind(s) {
	case Public, Private:
		return RoomKind(s), nil
	default:
		return "", fmt.Errorf("unknown room kind %q", s)
	}
}

// Room is created by the backend and only ever selected here, never mutated.
type Room struct {
	ID   RoomID
	Name string
	Kind RoomKind
}

// Visibility of every message posted in the room.
func (r Room) Visibility() Visibility {
	return Visibility(r.Kind)
}
