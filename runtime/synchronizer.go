package runtime

import (
	"chat-widget/contract"
	"chat-widget/domain/chat"
	"chat-widget/domain/event"
	"chat-widget/errors"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samber/lo"
)

// Synchronizer owns the message list of the active room.
//
// Every mutation goes through Run, a single apply loop fed by commands.
// Fetches, profile lookups and the change feed run in their own goroutines
// and post their results back tagged with the session generation, so a
// result from a room that is no longer active is recognised and dropped.
// Readers only ever see whole snapshots published after an apply.
type Synchronizer struct {
	log      *slog.Logger
	store    contract.MessageStore
	profiles contract.ProfileResolver
	window   time.Duration
	commands chan command
	events   chan<- event.DomainEvent

	snapshot    atomic.Pointer[chat.Snapshot]
	changed     atomic.Pointer[chan struct{}]
	lastFailure atomic.Pointer[loadFailure]
	stopped     chan struct{}
	stopOnce    sync.Once

	// Owned by the apply loop.
	runCtx     context.Context
	session    *roomSession
	generation uint64
}

type loadFailure struct {
	generation uint64
	err        error
}

// NewSynchronizer creates an idle synchronizer. Notifications are sent on
// events when it is not nil. window is the reconciliation window of
// provisional messages.
func NewSynchronizer(log *slog.Logger, store contract.MessageStore, profiles contract.ProfileResolver,
	events chan<- event.DomainEvent, bufferSize int, window time.Duration) *Synchronizer {
	s := &Synchronizer{
		log:      log,
		store:    store,
		profiles: profiles,
		window:   window,
		commands: make(chan command, bufferSize),
		events:   events,
		stopped:  make(chan struct{}),
	}
	s.snapshot.Store(&chat.Snapshot{State: chat.Idle})
	changed := make(chan struct{})
	s.changed.Store(&changed)
	return s
}

// Run is the apply loop. It tears the active session down when ctx is done.
func (s *Synchronizer) Run(ctx context.Context) error {
	s.runCtx = ctx
	for {
		select {
		case <-ctx.Done():
			s.log.Debug("Stopping synchronizer")
			s.teardown("shutdown")
			s.stopOnce.Do(func() { close(s.stopped) })
			return nil
		case cmd := <-s.commands:
			s.apply(cmd)
		}
	}
}

// Snapshot returns the latest published state. It never blocks.
func (s *Synchronizer) Snapshot() chat.Snapshot {
	return *s.snapshot.Load()
}

// Activate switches the synchronizer to room. The previous session, if any, is
// closed before the new one is installed. It returns the generation of the new
// session as soon as the apply loop accepted it; use Await to wait for the
// initial fetch.
func (s *Synchronizer) Activate(ctx context.Context, room chat.Room) (uint64, error) {
	reply := make(chan uint64, 1)
	if err := s.send(ctx, activateCmd{room: room, reply: reply}); err != nil {
		return 0, err
	}
	return s.receive(ctx, reply)
}

// Teardown closes the active session, the synchronizer goes back to Idle.
func (s *Synchronizer) Teardown(ctx context.Context) error {
	reply := make(chan uint64, 1)
	if err := s.send(ctx, teardownCmd{reply: reply}); err != nil {
		return err
	}
	_, err := s.receive(ctx, reply)
	return err
}

// Await blocks until the session of generation leaves Loading.
// It returns the LoadError when the fetch failed and ErrStaleResult when
// another activation or a teardown superseded it.
func (s *Synchronizer) Await(ctx context.Context, generation uint64) error {
	for {
		changed := *s.changed.Load()
		snap := s.Snapshot()
		switch {
		case snap.Generation > generation:
			return errors.ErrStaleResult
		case snap.Generation == generation && snap.State == chat.Live:
			return nil
		case snap.Generation == generation && snap.State == chat.Idle:
			if f := s.lastFailure.Load(); f != nil && f.generation == generation {
				return f.err
			}
			return errors.ErrStaleResult
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stopped:
			return errors.ErrSynchronizerStopped
		}
	}
}

// AddProvisional displays an optimistic message in the active room.
func (s *Synchronizer) AddProvisional(ctx context.Context, message chat.Message) error {
	return s.call(ctx, func(reply chan error) command { return provisionalCmd{message: message, reply: reply} })
}

// Confirm replaces a provisional message by the canonical one returned by the store.
func (s *Synchronizer) Confirm(ctx context.Context, provisionalID chat.MessageID, canonical chat.Message) error {
	return s.call(ctx, func(reply chan error) command {
		return confirmCmd{provisionalID: provisionalID, canonical: canonical, reply: reply}
	})
}

// Reject removes a provisional message whose insert failed.
func (s *Synchronizer) Reject(ctx context.Context, provisionalID chat.MessageID) error {
	return s.call(ctx, func(reply chan error) command { return rejectCmd{provisionalID: provisionalID, reply: reply} })
}

func (s *Synchronizer) call(ctx context.Context, build func(reply chan error) command) error {
	reply := make(chan error, 1)
	if err := s.send(ctx, build(reply)); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-s.stopped:
		return errors.ErrSynchronizerStopped
	}
}

func (s *Synchronizer) send(ctx context.Context, cmd command) error {
	select {
	case s.commands <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.stopped:
		return errors.ErrSynchronizerStopped
	}
}

func (s *Synchronizer) receive(ctx context.Context, reply chan uint64) (uint64, error) {
	select {
	case generation := <-reply:
		return generation, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-s.stopped:
		return 0, errors.ErrSynchronizerStopped
	}
}

// post is used by background goroutines; it gives up when their session is cancelled.
func (s *Synchronizer) post(ctx context.Context, cmd command) bool {
	select {
	case s.commands <- cmd:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Synchronizer) apply(cmd command) {
	switch c := cmd.(type) {
	case activateCmd:
		s.activate(c)
	case teardownCmd:
		s.teardown("teardown")
		s.publish()
		c.reply <- s.generation
	case subscribedCmd:
		s.onSubscribed(c)
	case fetchedCmd:
		s.onFetched(c)
	case insertCmd:
		s.onInsert(c)
	case feedEndedCmd:
		s.onFeedEnded(c)
	case provisionalCmd:
		c.reply <- s.onProvisional(c)
	case confirmCmd:
		s.onConfirm(c)
		c.reply <- nil
	case rejectCmd:
		if s.session != nil && s.session.timeline.Remove(c.provisionalID) {
			s.publish()
		}
		c.reply <- nil
	default:
		s.log.Warn(fmt.Sprintf("Unknown synchronizer command %T", cmd))
	}
}

func (s *Synchronizer) activate(c activateCmd) {
	s.teardown("room switch")
	s.generation++
	session := newRoomSession(s.runCtx, c.room, s.generation, s.window)
	s.session = session
	s.log.Debug("Activating room", "room_id", c.room.ID, "generation", session.generation)
	s.publish()
	c.reply <- session.generation

	go s.open(session.ctx, session.generation, c.room)
}

// open subscribes before fetching so no insert committed in between is missed.
func (s *Synchronizer) open(ctx context.Context, generation uint64, room chat.Room) {
	sub, err := s.store.SubscribeInserts(ctx, room.ID, room.Visibility())
	if !s.post(ctx, subscribedCmd{generation: generation, sub: sub, err: err}) && sub != nil {
		_ = sub.Close()
	}
	s.fetch(ctx, generation, room, false)
}

func (s *Synchronizer) fetch(ctx context.Context, generation uint64, room chat.Room, catchUp bool) {
	raws, err := s.store.QueryMessages(ctx, room.ID, room.Visibility())
	var messages []chat.Message
	if err == nil {
		messages = s.enrich(ctx, raws)
	}
	s.post(ctx, fetchedCmd{generation: generation, messages: messages, err: err, catchUp: catchUp})
}

func (s *Synchronizer) enrich(ctx context.Context, raws []chat.RawMessage) []chat.Message {
	authors := lo.Map(raws, func(raw chat.RawMessage, _ int) chat.UserID { return raw.AuthorID })
	profiles := s.profiles.ResolveAll(ctx, authors)
	return lo.Map(raws, func(raw chat.RawMessage, _ int) chat.Message {
		p, ok := profiles[raw.AuthorID]
		if !ok {
			p = chat.FallbackProfile(raw.AuthorID)
		}
		return chat.NewMessage(raw, p)
	})
}

// pump forwards the feed of one subscription to the apply loop.
func (s *Synchronizer) pump(ctx context.Context, generation uint64, room chat.Room, sub contract.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-sub.Events():
			if !ok {
				s.post(ctx, feedEndedCmd{generation: generation, sub: sub, err: sub.Err()})
				return
			}
			if raw.RoomID != room.ID {
				s.log.Debug("Dropping feed event of another room", "room_id", raw.RoomID, "active_room_id", room.ID)
				continue
			}
			message := chat.NewMessage(raw, s.profiles.Resolve(ctx, raw.AuthorID))
			if !s.post(ctx, insertCmd{generation: generation, message: message}) {
				return
			}
		}
	}
}

func (s *Synchronizer) resubscribe(ctx context.Context, generation uint64, room chat.Room) {
	sub, err := s.store.SubscribeInserts(ctx, room.ID, room.Visibility())
	if !s.post(ctx, subscribedCmd{generation: generation, sub: sub, err: err, retry: true}) && sub != nil {
		_ = sub.Close()
	}
}

// current returns the active session when the generation still matches.
func (s *Synchronizer) current(generation uint64) (*roomSession, bool) {
	if s.session == nil || s.session.generation != generation {
		return nil, false
	}
	return s.session, true
}

func (s *Synchronizer) onSubscribed(c subscribedCmd) {
	session, ok := s.current(c.generation)
	if !ok {
		s.log.Debug("Closing subscription of a stale session", "generation", c.generation, "error", errors.ErrStaleResult)
		if c.sub != nil {
			_ = c.sub.Close()
		}
		return
	}
	if c.err != nil {
		s.log.Warn("Subscription failed", "room_id", session.room.ID, "retry", c.retry, "error", c.err)
		s.onTransportFailure(session, c.err)
		return
	}
	reconnected := session.opened
	session.sub = c.sub
	session.connected = true
	session.opened = true
	go s.pump(session.ctx, session.generation, session.room, c.sub)
	if c.retry {
		session.resubscribed = false
		if reconnected {
			s.notify(event.Resubscribed{Room: session.room})
		}
		// Inserts committed while the feed was down are only visible to a query.
		if session.state == chat.Loading {
			session.catchUp = true
		} else {
			go s.fetch(session.ctx, session.generation, session.room, true)
		}
	}
	s.publish()
}

func (s *Synchronizer) onFeedEnded(c feedEndedCmd) {
	session, ok := s.current(c.generation)
	if !ok || session.sub != c.sub {
		return
	}
	session.sub = nil
	if c.err == nil {
		c.err = errors.ErrSubscriptionClosed
	}
	s.log.Warn("Live feed dropped", "room_id", session.room.ID, "error", c.err)
	s.onTransportFailure(session, c.err)
}

// onTransportFailure tries to resubscribe once. When the attempt already
// happened, ConnectionLost is surfaced once and the messages stay as they are.
func (s *Synchronizer) onTransportFailure(session *roomSession, err error) {
	session.connected = false
	if !session.resubscribed {
		session.resubscribed = true
		go s.resubscribe(session.ctx, session.generation, session.room)
		s.publish()
		return
	}
	if !session.lost {
		session.lost = true
		s.notify(event.ConnectionLost{Room: session.room, Err: fmt.Errorf("%w: %w", errors.ErrConnectionLost, err)})
	}
	s.publish()
}

func (s *Synchronizer) onFetched(c fetchedCmd) {
	session, ok := s.current(c.generation)
	if !ok {
		s.log.Debug("Dropping fetch result", "generation", c.generation, "error", errors.ErrStaleResult)
		return
	}
	if c.catchUp {
		if c.err != nil {
			s.log.Warn("Catch-up fetch failed", "room_id", session.room.ID, "error", c.err)
			return
		}
		if session.timeline.Merge(s.accepted(session, c.messages)) > 0 {
			s.publish()
		}
		return
	}
	if c.err != nil {
		loadErr := &errors.LoadError{RoomID: string(session.room.ID), Err: c.err}
		s.log.Warn("Loading room failed", "room_id", session.room.ID, "error", c.err)
		s.lastFailure.Store(&loadFailure{generation: session.generation, err: loadErr})
		s.teardown("load failure")
		s.publishIdle(session.generation)
		s.notify(event.LoadFailed{Room: session.room, Generation: session.generation, Err: loadErr})
		return
	}
	session.timeline.Merge(s.accepted(session, c.messages))
	session.timeline.Merge(session.buffer)
	session.buffer = nil
	session.state = chat.Live
	s.log.Debug("Room loaded", "room_id", session.room.ID, "messages", session.timeline.Len())
	if session.catchUp {
		session.catchUp = false
		go s.fetch(session.ctx, session.generation, session.room, true)
	}
	s.publish()
}

func (s *Synchronizer) accepted(session *roomSession, messages []chat.Message) []chat.Message {
	return lo.Filter(messages, func(m chat.Message, _ int) bool {
		if !session.accepts(m) {
			s.log.Debug("Dropping message outside the room partition", "message_id", m.ID, "room_id", m.RoomID)
			return false
		}
		return true
	})
}

func (s *Synchronizer) onInsert(c insertCmd) {
	session, ok := s.current(c.generation)
	if !ok || !session.accepts(c.message) {
		s.log.Debug("Dropping live event", "message_id", c.message.ID, "room_id", c.message.RoomID)
		return
	}
	if session.state == chat.Loading {
		session.buffer = append(session.buffer, c.message)
		return
	}
	if session.timeline.Reconcile(c.message) {
		s.publish()
	}
}

func (s *Synchronizer) onProvisional(c provisionalCmd) error {
	session := s.session
	if session == nil || session.room.ID != c.message.RoomID {
		return errors.ErrRoomNotActive
	}
	c.message.Provisional = true
	if session.timeline.Insert(c.message) {
		s.publish()
	}
	return nil
}

func (s *Synchronizer) onConfirm(c confirmCmd) {
	session := s.session
	if session == nil || !session.accepts(c.canonical) {
		s.log.Debug("Confirmation for an inactive room", "message_id", c.canonical.ID, "error", errors.ErrStaleResult)
		return
	}
	if session.timeline.Confirm(c.provisionalID, c.canonical) {
		s.publish()
	}
}

// teardown closes the active session. A failing close is only logged: a late
// event from the dangling feed is dropped by the generation check anyway.
func (s *Synchronizer) teardown(reason string) {
	session := s.session
	if session == nil {
		return
	}
	s.session = nil
	s.generation++
	session.cancel()
	if session.sub != nil {
		if err := session.sub.Close(); err != nil {
			s.log.Warn("Closing subscription failed", "room_id", session.room.ID, "reason", reason, "error", err)
		}
	}
	s.log.Debug("Room session closed", "room_id", session.room.ID, "reason", reason)
}

func (s *Synchronizer) publish() {
	if s.session == nil {
		s.publishIdle(s.generation)
		return
	}
	snap := s.session.snapshot()
	s.install(&snap)
	s.offer(event.SnapshotUpdated{Snapshot: snap})
}

func (s *Synchronizer) publishIdle(generation uint64) {
	snap := chat.Snapshot{State: chat.Idle, Generation: generation}
	s.install(&snap)
	s.offer(event.SnapshotUpdated{Snapshot: snap})
}

func (s *Synchronizer) install(snap *chat.Snapshot) {
	s.snapshot.Store(snap)
	next := make(chan struct{})
	prev := s.changed.Swap(&next)
	close(*prev)
}

// offer drops the notification when nobody keeps up: the latest snapshot is
// always readable anyway.
func (s *Synchronizer) offer(evt event.DomainEvent) {
	if s.events == nil {
		return
	}
	select {
	case s.events <- evt:
	default:
		s.log.Debug("Snapshot notification lost")
	}
}

// notify delivers notifications that must not be lost.
func (s *Synchronizer) notify(evt event.DomainEvent) {
	if s.events == nil {
		return
	}
	select {
	case s.events <- evt:
	case <-s.runCtx.Done():
	}
}
