// Package event defines the notifications the synchronizer and the room
// directory publish to the presentation layer.
package event

import (
	"chat-widget/domain/chat"
)

type DomainEvent interface {
	RoomID() chat.RoomID
}

// SnapshotUpdated is published after every atomic merge into the session.
type SnapshotUpdated struct {
	Snapshot chat.Snapshot
}

func (e SnapshotUpdated) RoomID() chat.RoomID { return e.Snapshot.RoomID() }

// LoadFailed reports the bulk fetch of a room failed, the session is back to Idle.
type LoadFailed struct {
	Room       chat.Room
	Generation uint64
	Err        error
}

func (e LoadFailed) RoomID() chat.RoomID { return e.Room.ID }

// ConnectionLost is published once per session when the live feed dropped and
// the single resubscription attempt failed too.
type ConnectionLost struct {
	Room chat.Room
	Err  error
}

func (e ConnectionLost) RoomID() chat.RoomID { return e.Room.ID }

// Resubscribed reports the live feed dropped and was opened again.
type Resubscribed struct {
	Room chat.Room
}

func (e Resubscribed) RoomID() chat.RoomID { return e.Room.ID }

// RoomSelected is published by the room directory when the active room changes.
type RoomSelected struct {
	Room chat.Room
}

func (e RoomSelected) RoomID() chat.RoomID { return e.Room.ID }

// RoomsListed is published when a fresh room list was installed for a kind.
type RoomsListed struct {
	Kind  chat.RoomKind
	Rooms []chat.Room
}

func (e RoomsListed) RoomID() chat.RoomID { return "" }
