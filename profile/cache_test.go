package profile

import (
	"chat-widget/domain/chat"
	"chat-widget/mocks"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestCache_Resolve_Hits_Directory_Once(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	directory := mocks.NewMockDirectoryService(ctrl)
	cache := NewCache(directory, logs.GetLoggerFromLevel(slog.LevelDebug), 4)
	ctx := context.Background()

	// Given alice exists
	directory.EXPECT().
		GetProfile(gomock.Any(), chat.UserID("alice")).
		Return(&chat.Profile{ID: "alice", Nickname: "Alice", AvatarRef: "/alice.png"}, nil).
		Times(1)

	// When resolving twice
	first := cache.Resolve(ctx, "alice")
	second := cache.Resolve(ctx, "alice")

	// Then the second resolve is served from the cache
	req.Equal(chat.Profile{ID: "alice", Nickname: "Alice", AvatarRef: "/alice.png"}, first)
	req.Equal(first, second)
}

func TestCache_Resolve_Unknown_User_Yields_Fallback(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	directory := mocks.NewMockDirectoryService(ctrl)
	cache := NewCache(directory, logs.GetLoggerFromLevel(slog.LevelDebug), 4)

	// Given the directory doesn't know ghost
	directory.EXPECT().GetProfile(gomock.Any(), chat.UserID("ghost")).Return(nil, nil).Times(1)

	p := cache.Resolve(context.Background(), "ghost")

	req.Equal(chat.Profile{ID: "ghost", Nickname: "Anonymous", AvatarRef: chat.DefaultAvatarRef}, p)
	// And not-found is remembered
	req.Equal(p, cache.Resolve(context.Background(), "ghost"))
}

func TestCache_Resolve_Lookup_Failure_Is_Not_Cached(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	directory := mocks.NewMockDirectoryService(ctrl)
	cache := NewCache(directory, logs.GetLoggerFromLevel(slog.LevelDebug), 4)
	ctx := context.Background()

	// Given the directory is down once then recovers
	gomock.InOrder(
		directory.EXPECT().GetProfile(gomock.Any(), chat.UserID("bob")).Return(nil, fmt.Errorf("timeout")),
		directory.EXPECT().GetProfile(gomock.Any(), chat.UserID("bob")).Return(&chat.Profile{Nickname: "Bob"}, nil),
	)

	// Then the failure yields the fallback
	req.Equal(chat.FallbackProfile("bob"), cache.Resolve(ctx, "bob"))
	// And the next resolve looks up again, missing avatar falls back
	req.Equal(chat.Profile{ID: "bob", Nickname: "Bob", AvatarRef: chat.DefaultAvatarRef}, cache.Resolve(ctx, "bob"))
}

func TestCache_Concurrent_Resolves_Share_One_Lookup(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	directory := mocks.NewMockDirectoryService(ctrl)
	cache := NewCache(directory, logs.GetLoggerFromLevel(slog.LevelDebug), 4)

	directory.EXPECT().
		GetProfile(gomock.Any(), chat.UserID("alice")).
		Return(&chat.Profile{Nickname: "Alice", AvatarRef: "/a.png"}, nil).
		Times(1)

	var wg sync.WaitGroup
	results := make([]chat.Profile, 20)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = cache.Resolve(context.Background(), "alice")
		}()
	}
	wg.Wait()

	req.Len(lo.Uniq(results), 1)
	req.Equal("Alice", results[0].Nickname)
}

func TestCache_ResolveAll_And_Forget(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	directory := mocks.NewMockDirectoryService(ctrl)
	cache := NewCache(directory, logs.GetLoggerFromLevel(slog.LevelDebug), 2)
	ctx := context.Background()

	directory.EXPECT().GetProfile(gomock.Any(), chat.UserID("alice")).
		Return(&chat.Profile{Nickname: "Alice"}, nil).Times(2)
	directory.EXPECT().GetProfile(gomock.Any(), chat.UserID("bob")).
		Return(nil, fmt.Errorf("boom")).Times(1)

	// When resolving a batch with duplicates
	res := cache.ResolveAll(ctx, []chat.UserID{"alice", "bob", "alice"})

	// Then each id is resolved once
	req.Len(res, 2)
	req.Equal("Alice", res["alice"].Nickname)
	req.Equal(chat.AnonymousNickname, res["bob"].Nickname)

	// When alice is forgotten, she is looked up again
	cache.Forget("alice")
	req.Equal("Alice", cache.Resolve(ctx, "alice").Nickname)
}

func TestCache_Cancelled_Caller_Does_Not_Fail_Joined_Callers(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	directory := mocks.NewMockDirectoryService(ctrl)
	cache := NewCache(directory, logs.GetLoggerFromLevel(slog.LevelDebug), 4)

	// Given a slow directory answering once released, or failing if its ctx is cancelled
	started := make(chan struct{})
	release := make(chan struct{})
	directory.EXPECT().GetProfile(gomock.Any(), chat.UserID("alice")).
		DoAndReturn(func(ctx context.Context, _ chat.UserID) (*chat.Profile, error) {
			close(started)
			select {
			case <-release:
				return &chat.Profile{Nickname: "Alice"}, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}).Times(1)

	// When the old session starts the lookup
	oldSession, cancel := context.WithCancel(context.Background())
	oldResult := make(chan chat.Profile, 1)
	go func() { oldResult <- cache.Resolve(oldSession, "alice") }()
	<-started

	// And the new session asks for the same author
	newResult := make(chan chat.Profile, 1)
	go func() { newResult <- cache.Resolve(context.Background(), "alice") }()

	// And the old session is torn down
	cancel()
	req.Equal(chat.AnonymousNickname, (<-oldResult).Nickname)
	close(release)

	// Then the new session gets the real profile
	select {
	case p := <-newResult:
		req.Equal("Alice", p.Nickname)
	case <-time.After(time.Second):
		req.Fail("resolve of the new session never returned")
	}
	req.Equal("Alice", cache.Resolve(context.Background(), "alice").Nickname)
}

func TestCache_Lookup_Timeout_Yields_Fallback(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	directory := mocks.NewMockDirectoryService(ctrl)
	cache := NewCache(directory, logs.GetLoggerFromLevel(slog.LevelDebug), 4).WithLookupTimeout(20 * time.Millisecond)

	// Given a directory that never answers in time
	directory.EXPECT().GetProfile(gomock.Any(), chat.UserID("bob")).
		DoAndReturn(func(ctx context.Context, _ chat.UserID) (*chat.Profile, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}).Times(1)

	// Then the fallback is returned and not remembered
	req.Equal(chat.FallbackProfile("bob"), cache.Resolve(context.Background(), "bob"))
	_, cached := cache.load("bob")
	req.False(cached)
}
