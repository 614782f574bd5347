package e2e

import (
	"chat-widget/domain/chat"
	"chat-widget/infrastructure/storage"
	"chat-widget/runtime"
	"chat-widget/runtime/workers"
	"chat-widget/sink"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/suite"
)

// BaseSuite runs the whole widget over a local Badger backend.
// Every test gets a fresh database and orchestrator.
type BaseSuite struct {
	suite.Suite
	Config       Config
	Log          *slog.Logger
	DB           *badger.DB
	Store        *storage.Store
	Orchestrator *runtime.Orchestrator
	Events       *sink.Recorder
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	s.Log = logs.GetLoggerFromLevel(slog.LevelDebug)
}

func (s *BaseSuite) SetupTest() {
	dir := s.T().TempDir()
	if s.Config.BadgerDir != "" {
		dir = filepath.Join(s.Config.BadgerDir, s.T().Name())
		s.Require().NoError(os.RemoveAll(dir))
		s.Require().NoError(os.MkdirAll(dir, 0o755))
	}
	db, err := storage.OpenBadger(dir)
	s.Require().NoError(err)
	s.DB = db
	s.Store = storage.NewStore(db, s.Log, storage.NewFeed(s.Log, s.Config.SubscriptionBuffer))

	s.Orchestrator, err = runtime.NewOrchestrator(s.Log, workers.NewSupervisor(s.Log, 10*time.Millisecond), s.Store,
		runtime.Options{
			CommandBufferSize:    64,
			EventBufferSize:      256,
			EnrichConcurrency:    4,
			ReconciliationWindow: 5 * time.Second,
			SinkTimeout:          time.Second,
			MaxBodyLength:        500,
		})
	s.Require().NoError(err)
	s.Events = sink.NewRecorder()
	s.Orchestrator.RegisterSinks(s.Events, sink.NewLogSink(s.Log))
	s.Require().NoError(s.Orchestrator.Start(context.Background()))
}

func (s *BaseSuite) TearDownTest() {
	s.Orchestrator.Stop()
	s.Require().NoError(s.DB.Close())
}

// Step prints a colorized header for a scenario step in logs
func (s *BaseSuite) Step(t *testing.T, name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	t.Log(header)
}

func (s *BaseSuite) Seed(rooms []chat.Room, profiles []chat.Profile) {
	ctx := context.Background()
	for _, room := range rooms {
		s.Require().NoError(s.Store.UpsertRoom(ctx, room))
	}
	for _, profile := range profiles {
		s.Require().NoError(s.Store.UpsertProfile(ctx, profile))
	}
}

// Snapshot waits until the synchronizer publishes a snapshot matching cond.
func (s *BaseSuite) Snapshot(cond func(chat.Snapshot) bool) chat.Snapshot {
	synchronizer := s.Orchestrator.Synchronizer()
	s.Require().Eventually(func() bool { return cond(synchronizer.Snapshot()) }, s.Config.Wait, 5*time.Millisecond)
	return synchronizer.Snapshot()
}
