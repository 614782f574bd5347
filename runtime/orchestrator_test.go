package runtime_test

import (
	"chat-widget/domain/chat"
	"chat-widget/domain/event"
	"chat-widget/infrastructure/storage"
	"chat-widget/moderation"
	"chat-widget/runtime"
	"chat-widget/runtime/workers"
	"chat-widget/sink"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func TestOrchestrator_Select_Send_And_Notify(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctx := context.Background()

	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	defer db.Close()
	store := storage.NewStore(db, log, storage.NewFeed(log, 16))
	general := chat.Room{ID: "r1", Name: "general", Kind: chat.Public}
	req.NoError(store.UpsertRoom(ctx, general))
	req.NoError(store.UpsertProfile(ctx, chat.Profile{ID: "alice", Nickname: "Alice"}))

	orchestrator, err := runtime.NewOrchestrator(log, workers.NewSupervisor(log, 10*time.Millisecond), store, runtime.Options{
		CommandBufferSize:    16,
		EventBufferSize:      64,
		ReconciliationWindow: 5 * time.Second,
		SinkTimeout:          time.Second,
		MetricInterval:       10 * time.Millisecond,
		MaxBodyLength:        100,
		Dictionary:           moderation.DefaultDictionary,
		DictionaryDir:        moderation.DefaultDictionaryDir,
		CharReplacement:      '*',
	})
	req.NoError(err)
	recorder := sink.NewRecorder()
	orchestrator.RegisterSinks(recorder)
	req.NoError(orchestrator.Start(ctx))
	defer orchestrator.Stop()

	// Given the room list is fetched, the first room is selected
	rooms, err := orchestrator.Directory().ListRooms(ctx, chat.Public)
	req.NoError(err)
	req.Equal([]chat.Room{general}, rooms)
	synchronizer := orchestrator.Synchronizer()
	req.Eventually(func() bool { return synchronizer.Snapshot().State == chat.Live }, time.Second, 5*time.Millisecond)

	// When alice sends a message containing a censored word
	message, err := orchestrator.Sender().Send(ctx, chat.Identity{UserID: "alice"}, general, "hello badger")
	req.NoError(err)

	// Then it is stored censored, shown once and carries her nickname
	req.Equal("hello ******", message.Body)
	req.Eventually(func() bool {
		snap := synchronizer.Snapshot()
		return len(snap.Messages) == 1 && snap.Messages[0].ID == message.ID && !snap.Messages[0].Provisional
	}, time.Second, 5*time.Millisecond)
	req.Equal("Alice", synchronizer.Snapshot().Messages[0].Author.Nickname)

	// And the sink was notified
	req.Eventually(func() bool {
		return recorder.Has(sink.Is[event.RoomSelected]) && recorder.Latest().RoomID() == general.ID
	}, time.Second, 5*time.Millisecond)
}

func TestOrchestrator_Stop_Before_Start(t *testing.T) {
	req := require.New(t)
	log := slog.Default()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	defer db.Close()

	orchestrator, err := runtime.NewOrchestrator(log, workers.NewSupervisor(log, 0),
		storage.NewStore(db, log, storage.NewFeed(log, 0)), runtime.Options{SinkTimeout: time.Second})
	req.NoError(err)

	orchestrator.Stop()
}
