package services

import (
	"chat-widget/contract"
	"chat-widget/domain/chat"
	"chat-widget/domain/event"
	"chat-widget/errors"
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/samber/lo"
)

type IRoomDirectory interface {
	ListRooms(ctx context.Context, kind chat.RoomKind) ([]chat.Room, error)
	Rooms(kind chat.RoomKind) []chat.Room
	SelectRoom(ctx context.Context, room chat.Room) (uint64, error)
	Selected() (chat.Room, bool)
	Close(ctx context.Context) error
}

// RoomDirectory lists the rooms of a kind and keeps the user's selection.
// Selecting a room activates it on the synchronizer.
type RoomDirectory struct {
	log          *slog.Logger
	directory    contract.DirectoryService
	synchronizer contract.ISynchronizer
	events       chan<- event.DomainEvent

	mu       sync.Mutex
	tickets  map[chat.RoomKind]uint64
	rooms    map[chat.RoomKind][]chat.Room
	selected *chat.Room

	// selectMu orders selections with their activation.
	selectMu sync.Mutex
}

func NewRoomDirectory(log *slog.Logger, directory contract.DirectoryService,
	synchronizer contract.ISynchronizer, events chan<- event.DomainEvent) *RoomDirectory {
	return &RoomDirectory{
		log:          log,
		directory:    directory,
		synchronizer: synchronizer,
		events:       events,
		tickets:      make(map[chat.RoomKind]uint64),
		rooms:        make(map[chat.RoomKind][]chat.Room),
	}
}

// ListRooms fetches the rooms of kind sorted by name.
// A response overtaken by a newer call for the same kind is discarded and
// the most recently installed list is returned instead.
// When nothing is selected yet, the first room of the installed list is selected.
func (d *RoomDirectory) ListRooms(ctx context.Context, kind chat.RoomKind) ([]chat.Room, error) {
	d.mu.Lock()
	d.tickets[kind]++
	ticket := d.tickets[kind]
	d.mu.Unlock()

	rooms, err := d.directory.ListRooms(ctx, kind)

	d.mu.Lock()
	if ticket != d.tickets[kind] {
		installed := slices.Clone(d.rooms[kind])
		d.mu.Unlock()
		d.log.Debug("Discarding room list", "kind", kind, "ticket", ticket, "error", errors.ErrStaleResult)
		return installed, nil
	}
	if err != nil {
		d.mu.Unlock()
		return nil, fmt.Errorf("list %s rooms: %w", kind, err)
	}
	rooms = lo.Filter(rooms, func(r chat.Room, _ int) bool {
		if r.Kind != kind {
			d.log.Debug("Dropping room of another kind", "room_id", r.ID, "kind", r.Kind)
			return false
		}
		return true
	})
	slices.SortStableFunc(rooms, func(a, b chat.Room) int { return cmp.Compare(a.Name, b.Name) })
	d.rooms[kind] = rooms
	autoSelect := d.selected == nil && len(rooms) > 0
	d.mu.Unlock()

	d.offer(event.RoomsListed{Kind: kind, Rooms: slices.Clone(rooms)})
	if autoSelect {
		if _, err := d.selectRoom(ctx, rooms[0], true); err != nil {
			d.log.Warn("Selecting the first room failed", "room_id", rooms[0].ID, "error", err)
		}
	}
	return slices.Clone(rooms), nil
}

// Rooms returns the last installed list of kind.
func (d *RoomDirectory) Rooms(kind chat.RoomKind) []chat.Room {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.rooms[kind])
}

// SelectRoom records the selection and activates the room on the synchronizer.
// It returns the generation of the new session, see Synchronizer.Await.
func (d *RoomDirectory) SelectRoom(ctx context.Context, room chat.Room) (uint64, error) {
	return d.selectRoom(ctx, room, false)
}

func (d *RoomDirectory) selectRoom(ctx context.Context, room chat.Room, onlyIfEmpty bool) (uint64, error) {
	d.selectMu.Lock()
	defer d.selectMu.Unlock()

	if onlyIfEmpty {
		if _, ok := d.Selected(); ok {
			return 0, nil
		}
	}
	generation, err := d.synchronizer.Activate(ctx, room)
	if err != nil {
		return 0, fmt.Errorf("activate room %s: %w", room.ID, err)
	}
	d.mu.Lock()
	d.selected = &room
	d.mu.Unlock()

	d.log.Info("Room selected", "room_id", room.ID, "generation", generation)
	d.offer(event.RoomSelected{Room: room})
	return generation, nil
}

func (d *RoomDirectory) Selected() (chat.Room, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.selected == nil {
		return chat.Room{}, false
	}
	return *d.selected, true
}

// Close is called when the widget closes: the session is torn down and the
// selection cleared.
func (d *RoomDirectory) Close(ctx context.Context) error {
	d.selectMu.Lock()
	defer d.selectMu.Unlock()
	if err := d.synchronizer.Teardown(ctx); err != nil {
		return err
	}
	d.mu.Lock()
	d.selected = nil
	d.mu.Unlock()
	return nil
}

func (d *RoomDirectory) offer(evt event.DomainEvent) {
	if d.events == nil {
		return
	}
	select {
	case d.events <- evt:
	default:
		d.log.Debug("Directory notification lost")
	}
}
