//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-widget/domain/chat"
	"chat-widget/domain/event"
	"context"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// It is only used to label supervision logs.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	return typeName(w)
}

func GetSinkName(s EventSink) string {
	if s == nil {
		return "NilSink"
	}
	return typeName(s)
}

func typeName(v any) string {
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink receives the notifications published to the presentation layer.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// DirectoryService is the backend read side for rooms and user profiles.
// GetProfile returns a nil profile and a nil error when the id is unknown.
type DirectoryService interface {
	ListRooms(ctx context.Context, kind chat.RoomKind) ([]chat.Room, error)
	GetProfile(ctx context.Context, id chat.UserID) (*chat.Profile, error)
}

// ProfileWriter persists the nickname chosen by a user.
type ProfileWriter interface {
	UpsertProfile(ctx context.Context, profile chat.Profile) error
}

// MessageStore is the backend message table and its insert change feed.
// The feed is at-least-once and may reorder inserts.
type MessageStore interface {
	QueryMessages(ctx context.Context, roomID chat.RoomID, visibility chat.Visibility) ([]chat.RawMessage, error)
	InsertMessage(ctx context.Context, roomID chat.RoomID, authorID chat.UserID, body string, visibility chat.Visibility) (chat.RawMessage, error)
	SubscribeInserts(ctx context.Context, roomID chat.RoomID, visibility chat.Visibility) (Subscription, error)
}

// Subscription is an open change feed for one room.
// Events is closed when the feed ends; Err then tells a Close (nil) from a
// transport failure.
type Subscription interface {
	Events() <-chan chat.RawMessage
	Err() error
	Close() error
}

type ProfileResolver interface {
	Resolve(ctx context.Context, id chat.UserID) chat.Profile
	ResolveAll(ctx context.Context, ids []chat.UserID) map[chat.UserID]chat.Profile
}

// ISynchronizer is the message synchronizer as seen by the room directory
// and the send pipeline.
type ISynchronizer interface {
	Activate(ctx context.Context, room chat.Room) (uint64, error)
	Teardown(ctx context.Context) error
	Snapshot() chat.Snapshot
	AddProvisional(ctx context.Context, message chat.Message) error
	Confirm(ctx context.Context, provisionalID chat.MessageID, canonical chat.Message) error
	Reject(ctx context.Context, provisionalID chat.MessageID) error
}
