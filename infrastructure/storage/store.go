// Package storage is the local backend of the widget: rooms, profiles and
// messages in BadgerDB, plus an in-process change feed of message inserts.
package storage

import (
	"chat-widget/contract"
	"chat-widget/domain/chat"
	"chat-widget/errors"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

const (
	roomPrefix    = "room:"
	profilePrefix = "profile:"
	messagePrefix = "msg:"
)

// Store implements contract.DirectoryService, contract.MessageStore and
// contract.ProfileWriter over BadgerDB.
type Store struct {
	db   *badger.DB
	log  *slog.Logger
	feed *Feed
	now  func() time.Time
}

func NewStore(db *badger.DB, log *slog.Logger, feed *Feed) *Store {
	return &Store{db: db, log: log, feed: feed, now: time.Now}
}

func roomKey(id chat.RoomID) []byte { return []byte(roomPrefix + string(id)) }

func profileKey(id chat.UserID) []byte { return []byte(profilePrefix + string(id)) }

// messageKey is formatted as "msg:{room_id}:{timestamp_padded}:{id}" to:
//  1. Ensure chronological sorting using 19-digit zero padding (lexicographical order).
//  2. Prevent data loss by using the id as a collision disconnector if two messages
//     arrive at the same nanosecond.
func messageKey(m chat.RawMessage) []byte {
	return []byte(fmt.Sprintf("%s%s:%019d:%s", messagePrefix, m.RoomID, m.CreatedAt.UnixNano(), m.ID))
}

func roomMessagesPrefix(id chat.RoomID) []byte {
	return []byte(messagePrefix + string(id) + ":")
}

func (s *Store) UpsertRoom(ctx context.Context, room chat.Room) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(roomKey(room.ID), encodeRoom(room))
	})
}

// ListRooms returns the rooms of one kind. The order is the key order,
// callers sort for display.
func (s *Store) ListRooms(ctx context.Context, kind chat.RoomKind) ([]chat.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rooms []chat.Room
	err := s.scan([]byte(roomPrefix), func(value []byte) error {
		room, err := decodeRoom(value)
		if err != nil {
			return err
		}
		if room.Kind == kind {
			rooms = append(rooms, room)
		}
		return nil
	})
	return rooms, err
}

func (s *Store) UpsertProfile(ctx context.Context, profile chat.Profile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(profileKey(profile.ID), encodeProfile(profile))
	})
}

// GetProfile returns nil without error when the user never set a profile.
func (s *Store) GetProfile(ctx context.Context, id chat.UserID) (*chat.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var profile *chat.Profile
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(profileKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			p, err := decodeProfile(value)
			if err != nil {
				return err
			}
			profile = &p
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	return profile, err
}

// QueryMessages retrieves the messages of a room partition using a prefix scan.
// Thanks to the padded timestamp in the key, messages are naturally sorted by time.
func (s *Store) QueryMessages(ctx context.Context, roomID chat.RoomID, visibility chat.Visibility) ([]chat.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var messages []chat.RawMessage
	err := s.scan(roomMessagesPrefix(roomID), func(value []byte) error {
		m, err := decodeMessage(value)
		if err != nil {
			return err
		}
		// The prefix of room "a" also covers the keys of room "a:b".
		if m.RoomID != roomID {
			return nil
		}
		if visibility == "" || m.Visibility == visibility {
			messages = append(messages, m)
		}
		return nil
	})
	return messages, err
}

// InsertMessage commits a row, then broadcasts it on the feed.
func (s *Store) InsertMessage(ctx context.Context, roomID chat.RoomID, authorID chat.UserID,
	body string, visibility chat.Visibility) (chat.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return chat.RawMessage{}, err
	}
	m := chat.RawMessage{
		ID:         chat.MessageID(uuid.NewString()),
		RoomID:     roomID,
		AuthorID:   authorID,
		Body:       body,
		CreatedAt:  s.now().UTC(),
		Visibility: visibility,
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(m), encodeMessage(m))
	})
	if err != nil {
		return chat.RawMessage{}, err
	}
	s.feed.Publish(m)
	return m, nil
}

func (s *Store) SubscribeInserts(ctx context.Context, roomID chat.RoomID, visibility chat.Visibility) (contract.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.log.Debug("Opening insert feed", "room_id", roomID, "visibility", visibility)
	return s.feed.Subscribe(roomID, visibility), nil
}

// Entry is one raw record, used by the inspection tool.
type Entry struct {
	Key   string
	Kind  string
	Value any
}

// Dump decodes every record whose key starts with prefix.
// Records which can't be decoded are returned with their error as value.
func (s *Store) Dump(prefix string) ([]Entry, error) {
	var entries []Entry
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
			item := it.Item()
			key := string(item.Key())
			err := item.Value(func(value []byte) error {
				entries = append(entries, decodeEntry(key, slices.Clone(value)))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return entries, err
}

func decodeEntry(key string, value []byte) Entry {
	var (
		kind    string
		decoded any
		err     error
	)
	switch {
	case strings.HasPrefix(key, roomPrefix):
		kind = "ROOM"
		decoded, err = decodeRoom(value)
	case strings.HasPrefix(key, profilePrefix):
		kind = "PROFILE"
		decoded, err = decodeProfile(value)
	case strings.HasPrefix(key, messagePrefix):
		kind = "MESSAGE"
		decoded, err = decodeMessage(value)
	default:
		kind = "UNKNOWN"
		decoded = value
	}
	if err != nil {
		decoded = err
	}
	return Entry{Key: key, Kind: kind, Value: decoded}
}

func (s *Store) scan(prefix []byte, fn func(value []byte) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := it.Item().Value(fn); err != nil {
				return err
			}
		}
		return nil
	})
}
