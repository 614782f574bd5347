package runtime

import (
	"chat-widget/contract"
	"chat-widget/domain/chat"
	"chat-widget/mocks"
	"context"
	"sync"

	"go.uber.org/mock/gomock"
)

type fakeSubscription struct {
	room     chat.RoomID
	events   chan chat.RawMessage
	mu       sync.Mutex
	err      error
	closed   bool
	closeErr error
}

func newFakeSubscription(room chat.RoomID) *fakeSubscription {
	return &fakeSubscription{room: room, events: make(chan chat.RawMessage, 16)}
}

func (f *fakeSubscription) Events() <-chan chat.RawMessage { return f.events }

func (f *fakeSubscription) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *fakeSubscription) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.events)
	}
	return f.closeErr
}

// fail simulates a transport failure of the feed.
func (f *fakeSubscription) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
	if !f.closed {
		f.closed = true
		close(f.events)
	}
}

func (f *fakeSubscription) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeSubscription) deliver(raws ...chat.RawMessage) {
	for _, raw := range raws {
		f.events <- raw
	}
}

// fakeStore serves canned rows and hands out fakeSubscriptions.
type fakeStore struct {
	mu            sync.Mutex
	rows          map[chat.RoomID][]chat.RawMessage
	gates         map[chat.RoomID]chan struct{}
	fetchErrs     map[chat.RoomID]error
	subscribeErrs []error
	closeErr      error
	subscriptions chan *fakeSubscription
	queries       int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		rows:          make(map[chat.RoomID][]chat.RawMessage),
		gates:         make(map[chat.RoomID]chan struct{}),
		fetchErrs:     make(map[chat.RoomID]error),
		subscriptions: make(chan *fakeSubscription, 16),
	}
}

func (f *fakeStore) withRows(room chat.RoomID, rows ...chat.RawMessage) *fakeStore {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[room] = append(f.rows[room], rows...)
	return f
}

// gate blocks the fetch of room until the returned function is called.
func (f *fakeStore) gate(room chat.RoomID) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	g := make(chan struct{})
	f.gates[room] = g
	return func() { close(g) }
}

func (f *fakeStore) QueryMessages(ctx context.Context, roomID chat.RoomID, _ chat.Visibility) ([]chat.RawMessage, error) {
	f.mu.Lock()
	f.queries++
	g := f.gates[roomID]
	f.mu.Unlock()
	if g != nil {
		<-g
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fetchErrs[roomID]; err != nil {
		return nil, err
	}
	rows := make([]chat.RawMessage, len(f.rows[roomID]))
	copy(rows, f.rows[roomID])
	return rows, nil
}

func (f *fakeStore) queryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries
}

func (f *fakeStore) InsertMessage(_ context.Context, roomID chat.RoomID, authorID chat.UserID, body string, visibility chat.Visibility) (chat.RawMessage, error) {
	panic("not used by the synchronizer")
}

func (f *fakeStore) SubscribeInserts(_ context.Context, roomID chat.RoomID, _ chat.Visibility) (contract.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.subscribeErrs) > 0 {
		err := f.subscribeErrs[0]
		f.subscribeErrs = f.subscribeErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	sub := newFakeSubscription(roomID)
	sub.closeErr = f.closeErr
	f.subscriptions <- sub
	return sub, nil
}

// profileResolver returns a gomock resolver naming every author after its id.
func profileResolver(ctrl *gomock.Controller) *mocks.MockProfileResolver {
	resolver := mocks.NewMockProfileResolver(ctrl)
	resolver.EXPECT().Resolve(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, id chat.UserID) chat.Profile {
			return chat.Profile{ID: id, Nickname: string(id), AvatarRef: chat.DefaultAvatarRef}
		}).AnyTimes()
	resolver.EXPECT().ResolveAll(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, ids []chat.UserID) map[chat.UserID]chat.Profile {
			res := make(map[chat.UserID]chat.Profile)
			for _, id := range ids {
				res[id] = chat.Profile{ID: id, Nickname: string(id), AvatarRef: chat.DefaultAvatarRef}
			}
			return res
		}).AnyTimes()
	return resolver
}
