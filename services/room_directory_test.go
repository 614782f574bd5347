package services

import (
	"chat-widget/domain/chat"
	"chat-widget/domain/event"
	"chat-widget/mocks"
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var (
	general = chat.Room{ID: "r1", Name: "general", Kind: chat.Public}
	random  = chat.Room{ID: "r2", Name: "random", Kind: chat.Public}
	archive = chat.Room{ID: "r3", Name: "archive", Kind: chat.Public}
	secret  = chat.Room{ID: "r4", Name: "secret", Kind: chat.Private}
)

func TestRoomDirectory_ListRooms_Filters_Sorts_And_Selects_First(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	directory := mocks.NewMockDirectoryService(ctrl)
	synchronizer := mocks.NewMockISynchronizer(ctrl)
	events := make(chan event.DomainEvent, 10)
	d := NewRoomDirectory(logs.GetLoggerFromLevel(slog.LevelDebug), directory, synchronizer, events)
	ctx := context.Background()

	// Given the directory answers with an unsorted list holding a room of another kind
	directory.EXPECT().ListRooms(gomock.Any(), chat.Public).Return([]chat.Room{random, secret, general, archive}, nil)
	// Then the first room by name is activated
	synchronizer.EXPECT().Activate(gomock.Any(), archive).Return(uint64(1), nil).Times(1)

	// When public rooms are listed
	rooms, err := d.ListRooms(ctx, chat.Public)

	// Then only public rooms are kept, sorted by name
	req.NoError(err)
	req.Equal([]chat.Room{archive, general, random}, rooms)
	req.Equal(rooms, d.Rooms(chat.Public))
	selected, ok := d.Selected()
	req.True(ok)
	req.Equal(archive, selected)
	req.IsType(event.RoomsListed{}, <-events)
	req.Equal(event.RoomSelected{Room: archive}, <-events)
}

func TestRoomDirectory_ListRooms_Keeps_Existing_Selection(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	directory := mocks.NewMockDirectoryService(ctrl)
	synchronizer := mocks.NewMockISynchronizer(ctrl)
	d := NewRoomDirectory(slog.Default(), directory, synchronizer, nil)
	ctx := context.Background()

	// Given random is selected
	synchronizer.EXPECT().Activate(gomock.Any(), random).Return(uint64(1), nil).Times(1)
	_, err := d.SelectRoom(ctx, random)
	req.NoError(err)

	// When the list is fetched again
	directory.EXPECT().ListRooms(gomock.Any(), chat.Public).Return([]chat.Room{general, random}, nil)
	_, err = d.ListRooms(ctx, chat.Public)
	req.NoError(err)

	// Then the selection is untouched
	selected, _ := d.Selected()
	req.Equal(random, selected)
}

func TestRoomDirectory_Stale_List_Is_Discarded(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	directory := mocks.NewMockDirectoryService(ctrl)
	synchronizer := mocks.NewMockISynchronizer(ctrl)
	d := NewRoomDirectory(slog.Default(), directory, synchronizer, nil)
	ctx := context.Background()
	synchronizer.EXPECT().Activate(gomock.Any(), gomock.Any()).Return(uint64(1), nil).AnyTimes()

	// Given a first call whose response is delayed until a second call completed
	firstCalled := make(chan struct{})
	release := make(chan struct{})
	gomock.InOrder(
		directory.EXPECT().ListRooms(gomock.Any(), chat.Public).
			DoAndReturn(func(context.Context, chat.RoomKind) ([]chat.Room, error) {
				close(firstCalled)
				<-release
				return []chat.Room{general}, nil
			}),
		directory.EXPECT().ListRooms(gomock.Any(), chat.Public).Return([]chat.Room{random, archive}, nil),
	)

	type result struct {
		rooms []chat.Room
		err   error
	}
	first := make(chan result, 1)
	go func() {
		rooms, err := d.ListRooms(ctx, chat.Public)
		first <- result{rooms, err}
	}()
	<-firstCalled

	// When the second call completes before the first
	second, err := d.ListRooms(ctx, chat.Public)
	req.NoError(err)
	close(release)

	// Then the late response never replaces the newer list
	late := <-first
	req.NoError(late.err)
	req.Equal([]chat.Room{archive, random}, second)
	req.Equal(second, late.rooms)
	req.Equal(second, d.Rooms(chat.Public))
}

func TestRoomDirectory_Kinds_Are_Independent(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	directory := mocks.NewMockDirectoryService(ctrl)
	synchronizer := mocks.NewMockISynchronizer(ctrl)
	d := NewRoomDirectory(slog.Default(), directory, synchronizer, nil)
	ctx := context.Background()
	synchronizer.EXPECT().Activate(gomock.Any(), general).Return(uint64(1), nil).Times(1)

	directory.EXPECT().ListRooms(gomock.Any(), chat.Public).Return([]chat.Room{general}, nil)
	directory.EXPECT().ListRooms(gomock.Any(), chat.Private).Return([]chat.Room{secret}, nil)

	_, err := d.ListRooms(ctx, chat.Public)
	req.NoError(err)
	_, err = d.ListRooms(ctx, chat.Private)
	req.NoError(err)

	req.Equal([]chat.Room{general}, d.Rooms(chat.Public))
	req.Equal([]chat.Room{secret}, d.Rooms(chat.Private))
}

func TestRoomDirectory_ListRooms_Error(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	directory := mocks.NewMockDirectoryService(ctrl)
	d := NewRoomDirectory(slog.Default(), directory, mocks.NewMockISynchronizer(ctrl), nil)
	boom := fmt.Errorf("directory unavailable")

	directory.EXPECT().ListRooms(gomock.Any(), chat.Private).Return(nil, boom)

	_, err := d.ListRooms(context.Background(), chat.Private)

	req.ErrorIs(err, boom)
	_, ok := d.Selected()
	req.False(ok)
}

func TestRoomDirectory_SelectRoom_Failure_Keeps_Previous(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	synchronizer := mocks.NewMockISynchronizer(ctrl)
	d := NewRoomDirectory(slog.Default(), mocks.NewMockDirectoryService(ctrl), synchronizer, nil)
	ctx := context.Background()

	synchronizer.EXPECT().Activate(gomock.Any(), general).Return(uint64(1), nil)
	synchronizer.EXPECT().Activate(gomock.Any(), random).Return(uint64(0), context.DeadlineExceeded)

	generation, err := d.SelectRoom(ctx, general)
	req.NoError(err)
	req.Equal(uint64(1), generation)

	_, err = d.SelectRoom(ctx, random)
	req.ErrorIs(err, context.DeadlineExceeded)
	selected, _ := d.Selected()
	req.Equal(general, selected)
}

func TestRoomDirectory_Close(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	synchronizer := mocks.NewMockISynchronizer(ctrl)
	d := NewRoomDirectory(slog.Default(), mocks.NewMockDirectoryService(ctrl), synchronizer, nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	gomock.InOrder(
		synchronizer.EXPECT().Activate(gomock.Any(), general).Return(uint64(1), nil),
		synchronizer.EXPECT().Teardown(gomock.Any()).Return(nil),
	)
	_, err := d.SelectRoom(ctx, general)
	req.NoError(err)

	req.NoError(d.Close(ctx))

	_, ok := d.Selected()
	req.False(ok)
}
