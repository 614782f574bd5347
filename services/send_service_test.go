package services

import (
	"bytes"
	"chat-widget/domain/chat"
	"chat-widget/errors"
	"chat-widget/mocks"
	"chat-widget/moderation"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var alice = chat.Identity{UserID: "alice"}

type sendFixture struct {
	store        *mocks.MockMessageStore
	synchronizer *mocks.MockISynchronizer
	profiles     *mocks.MockProfileResolver
	service      *SendService
}

func newSendFixture(t *testing.T, active *chat.Room) sendFixture {
	ctrl := gomock.NewController(t)
	f := sendFixture{
		store:        mocks.NewMockMessageStore(ctrl),
		synchronizer: mocks.NewMockISynchronizer(ctrl),
		profiles:     mocks.NewMockProfileResolver(ctrl),
	}
	f.synchronizer.EXPECT().Snapshot().Return(chat.Snapshot{Room: active, State: chat.Live}).AnyTimes()
	f.profiles.EXPECT().Resolve(gomock.Any(), chat.UserID("alice")).
		Return(chat.Profile{ID: "alice", Nickname: "Alice", AvatarRef: chat.DefaultAvatarRef}).AnyTimes()
	f.service = NewSendService(logs.GetLoggerFromLevel(slog.LevelDebug), f.store, f.synchronizer, f.profiles, 20)
	return f
}

func TestSendService_Send_Success(t *testing.T) {
	req := require.New(t)
	f := newSendFixture(t, &general)
	ctx := context.Background()
	stored := chat.RawMessage{ID: "c1", RoomID: general.ID, AuthorID: "alice", Body: "hi",
		CreatedAt: time.Now(), Visibility: chat.VisibilityPublic}

	var provisionalID chat.MessageID
	gomock.InOrder(
		// Given the provisional entry is displayed first with the trimmed body
		f.synchronizer.EXPECT().AddProvisional(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, m chat.Message) error {
				req.True(IsProvisional(m.ID))
				req.True(m.Provisional)
				req.Equal("hi", m.Body)
				req.Equal("Alice", m.Author.Nickname)
				req.Equal(chat.VisibilityPublic, m.Visibility)
				provisionalID = m.ID
				return nil
			}),
		f.store.EXPECT().InsertMessage(gomock.Any(), general.ID, chat.UserID("alice"), "hi", chat.VisibilityPublic).
			Return(stored, nil),
		// Then the provisional entry is confirmed with the stored message
		f.synchronizer.EXPECT().Confirm(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, id chat.MessageID, canonical chat.Message) error {
				req.Equal(provisionalID, id)
				req.Equal(chat.MessageID("c1"), canonical.ID)
				req.False(canonical.Provisional)
				return nil
			}),
	)

	// When alice sends a padded body
	message, err := f.service.Send(ctx, alice, general, "  hi \n")

	req.NoError(err)
	req.Equal(chat.MessageID("c1"), message.ID)
	req.Equal("Alice", message.Author.Nickname)
}

func TestSendService_Send_Failure_Keeps_Body(t *testing.T) {
	req := require.New(t)
	f := newSendFixture(t, &general)
	ctx := context.Background()
	boom := fmt.Errorf("insert rejected")

	// Given the insert fails
	f.synchronizer.EXPECT().AddProvisional(gomock.Any(), gomock.Any()).Return(nil)
	f.store.EXPECT().InsertMessage(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(chat.RawMessage{}, boom)
	// Then the provisional entry is removed
	f.synchronizer.EXPECT().Reject(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, id chat.MessageID) error {
			req.True(IsProvisional(id))
			return nil
		})
	f.synchronizer.EXPECT().Confirm(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	_, err := f.service.Send(ctx, alice, general, " hi there ")

	// And the body is kept for a retry
	req.ErrorIs(err, errors.ErrSendFailed)
	req.ErrorIs(err, boom)
	var sendErr *errors.SendFailedError
	req.True(errors.As(err, &sendErr))
	req.Equal(" hi there ", sendErr.Body)
}

func TestSendService_Send_Rejected_Before_Anything_Is_Displayed(t *testing.T) {
	tests := []struct {
		name   string
		room   chat.Room
		body   string
		target error
	}{
		{"Blank body", general, "   \t ", errors.ErrEmptyBody},
		{"Inactive room", random, "hi", errors.ErrRoomNotActive},
		{"Body too long", general, strings.Repeat("a", 21), errors.ErrSendFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			f := newSendFixture(t, &general)
			f.synchronizer.EXPECT().AddProvisional(gomock.Any(), gomock.Any()).Times(0)
			f.store.EXPECT().InsertMessage(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

			_, err := f.service.Send(context.Background(), alice, tt.room, tt.body)

			req.ErrorIs(err, errors.ErrSendFailed)
			req.ErrorIs(err, tt.target)
		})
	}
}

func TestSendService_Send_Without_Active_Room(t *testing.T) {
	req := require.New(t)
	f := newSendFixture(t, nil)

	_, err := f.service.Send(context.Background(), alice, general, "hi")

	req.ErrorIs(err, errors.ErrRoomNotActive)
}

func TestSendService_Send_Censored(t *testing.T) {
	req := require.New(t)
	f := newSendFixture(t, &general)
	var logged bytes.Buffer
	f.service.log = slog.New(slog.NewTextHandler(&logged, nil))
	moderator, err := moderation.NewModerator([]string{"badger", "snake"}, '*', slog.Default())
	req.NoError(err)
	f.service.WithCensor(moderator)

	// Then the censored body is displayed and stored, line break kept
	f.synchronizer.EXPECT().AddProvisional(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, m chat.Message) error {
			req.Equal("a ******\n*****!", m.Body)
			return nil
		})
	f.store.EXPECT().InsertMessage(gomock.Any(), general.ID, chat.UserID("alice"), "a ******\n*****!", chat.VisibilityPublic).
		Return(chat.RawMessage{ID: "c1", RoomID: general.ID, AuthorID: "alice", Body: "a ******\n*****!"}, nil)
	f.synchronizer.EXPECT().Confirm(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

	// When alice sends obfuscated words on two lines
	_, err = f.service.Send(context.Background(), alice, general, "a b4dger\n5nake!")
	req.NoError(err)

	// And the words reported by the moderator are logged
	req.Contains(logged.String(), "Message censored")
	req.Contains(logged.String(), `words="[badger snake]"`)
}

func TestSendService_Confirm_Failure_Is_Not_A_Send_Failure(t *testing.T) {
	req := require.New(t)
	f := newSendFixture(t, &general)

	f.synchronizer.EXPECT().AddProvisional(gomock.Any(), gomock.Any()).Return(nil)
	f.store.EXPECT().InsertMessage(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(chat.RawMessage{ID: "c1", RoomID: general.ID, AuthorID: "alice", Body: "hi"}, nil)
	f.synchronizer.EXPECT().Confirm(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.ErrSynchronizerStopped)

	message, err := f.service.Send(context.Background(), alice, general, "hi")

	req.NoError(err)
	req.Equal(chat.MessageID("c1"), message.ID)
}
