// Package runtime runs the message synchronizer and wires it with the
// services, the supervised workers and the presentation sinks.
package runtime

import (
	"chat-widget/contract"
	"chat-widget/domain/event"
	"chat-widget/moderation"
	"chat-widget/profile"
	"chat-widget/runtime/workers"
	"chat-widget/services"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Backend is everything the widget needs from the chat backend.
type Backend interface {
	contract.DirectoryService
	contract.MessageStore
	contract.ProfileWriter
}

type Options struct {
	CommandBufferSize    int
	EventBufferSize      int
	EnrichConcurrency    int
	ReconciliationWindow time.Duration
	SinkTimeout          time.Duration
	MetricInterval       time.Duration
	MaxBodyLength        int
	// Dictionary enables moderation of outgoing bodies when set.
	Dictionary      fs.FS
	DictionaryDir   string
	CharReplacement rune
}

type Orchestrator struct {
	mu             sync.Mutex
	log            *slog.Logger
	supervisor     *workers.Supervisor
	events         chan event.DomainEvent
	fanout         *workers.EventFanout
	capacity       *workers.ChannelCapacityWorker
	profiles       *profile.Cache
	synchronizer   *Synchronizer
	directory      *services.RoomDirectory
	sender         *services.SendService
	profileService *services.ProfileService
	cancel         context.CancelFunc
	done           chan struct{}
}

// NewOrchestrator builds every component. Nothing runs before Start.
func NewOrchestrator(log *slog.Logger, supervisor *workers.Supervisor, backend Backend, opts Options) (*Orchestrator, error) {
	events := make(chan event.DomainEvent, opts.EventBufferSize)
	profiles := profile.NewCache(backend, log, opts.EnrichConcurrency)
	synchronizer := NewSynchronizer(log, backend, profiles, events, opts.CommandBufferSize, opts.ReconciliationWindow)

	sender := services.NewSendService(log, backend, synchronizer, profiles, opts.MaxBodyLength)
	if opts.Dictionary != nil {
		moderator, err := prepareModeration(log, opts.Dictionary, opts.DictionaryDir, opts.CharReplacement)
		if err != nil {
			return nil, err
		}
		sender.WithCensor(moderator)
	}

	o := &Orchestrator{
		log:            log,
		supervisor:     supervisor,
		events:         events,
		fanout:         workers.NewEventFanout(log, events, opts.SinkTimeout),
		profiles:       profiles,
		synchronizer:   synchronizer,
		directory:      services.NewRoomDirectory(log, backend, synchronizer, events),
		sender:         sender,
		profileService: services.NewProfileService(log, backend, profiles, profiles),
	}
	if opts.MetricInterval > 0 {
		o.capacity = workers.NewChannelCapacityWorker(log, []workers.NamedChannel{
			{Name: "synchronizer_commands", Channel: synchronizer.commands},
			{Name: "events", Channel: events},
		}, opts.MetricInterval)
	}
	return o, nil
}

// prepareModeration loads censored words and builds the Aho-Corasick automaton.
func prepareModeration(log *slog.Logger, dictionary fs.FS, dir string, charReplacement rune) (*moderation.Moderator, error) {
	data, err := moderation.NewCensoredLoader(dictionary).LoadAll(dir)
	if err != nil {
		return nil, fmt.Errorf("load censored words: %w", err)
	}
	log.Info(fmt.Sprintf("%d censored files loaded [%s]",
		len(data.Languages), strings.Join(data.Languages, ",")))
	log.Info(fmt.Sprintf("%d unique censored words loaded", len(data.Words)))
	return moderation.NewModerator(data.Words, charReplacement, log)
}

// RegisterSinks adds presentation sinks to the notification fanout.
func (o *Orchestrator) RegisterSinks(sinks ...contract.EventSink) {
	o.fanout.Add(sinks...)
}

// Start runs the supervised workers in the background.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.done != nil {
		return fmt.Errorf("orchestrator already started")
	}

	o.supervisor.Add(o.synchronizer, o.fanout)
	if o.capacity != nil {
		o.supervisor.Add(o.capacity)
	}

	ctx, o.cancel = context.WithCancel(ctx)
	o.done = make(chan struct{})
	o.log.Info("Starting orchestrator and all supervised workers")
	go func() {
		defer close(o.done)
		o.supervisor.Run(ctx)
	}()
	return nil
}

// Stop cancels the supervised workers and waits for them.
// The synchronizer tears its session down on the way out.
func (o *Orchestrator) Stop() {
	o.log.Info("Requesting orchestrator shutdown")
	o.supervisor.Stop()

	o.mu.Lock()
	cancel, done := o.cancel, o.done
	o.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
	o.log.Debug("Orchestrator stopped")
}

func (o *Orchestrator) Directory() *services.RoomDirectory { return o.directory }

func (o *Orchestrator) Sender() *services.SendService { return o.sender }

func (o *Orchestrator) Profiles() *services.ProfileService { return o.profileService }

func (o *Orchestrator) Synchronizer() *Synchronizer { return o.synchronizer }
