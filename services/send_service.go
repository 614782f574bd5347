package services

import (
	"chat-widget/auth"
	"chat-widget/contract"
	"chat-widget/domain/chat"
	"chat-widget/errors"
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

const provisionalPrefix = "p-"

type ISendService interface {
	Send(ctx context.Context, identity chat.Identity, room chat.Room, body string) (chat.Message, error)
}

// Censor masks forbidden words in a body before it is displayed or stored.
type Censor interface {
	Censor(original string) (string, []string)
}

// SendService posts the user's messages optimistically: the message is
// displayed as provisional right away, then replaced by the stored one.
type SendService struct {
	log           *slog.Logger
	store         contract.MessageStore
	synchronizer  contract.ISynchronizer
	profiles      contract.ProfileResolver
	censor        Censor
	maxBodyLength int
	now           func() time.Time
}

func NewSendService(log *slog.Logger, store contract.MessageStore, synchronizer contract.ISynchronizer,
	profiles contract.ProfileResolver, maxBodyLength int) *SendService {
	return &SendService{
		log:           log,
		store:         store,
		synchronizer:  synchronizer,
		profiles:      profiles,
		maxBodyLength: maxBodyLength,
		now:           time.Now,
	}
}

func (s *SendService) WithCensor(censor Censor) *SendService {
	s.censor = censor
	return s
}

// Send validates and posts body to the active room.
// Every failure is a *errors.SendFailedError carrying the body as typed.
func (s *SendService) Send(ctx context.Context, identity chat.Identity, room chat.Room, body string) (chat.Message, error) {
	normalized := chat.NormalizeBody(body)
	if normalized == "" {
		return chat.Message{}, &errors.SendFailedError{Body: body, Err: errors.ErrEmptyBody}
	}
	valReq := auth.SendRequest{RoomID: room.ID, AuthorID: identity.UserID, Body: normalized}
	if err := auth.ValidateSend(valReq, s.maxBodyLength); err != nil {
		return chat.Message{}, &errors.SendFailedError{Body: body, Err: err}
	}
	if active := s.synchronizer.Snapshot(); active.RoomID() != room.ID {
		return chat.Message{}, &errors.SendFailedError{Body: body, Err: errors.ErrRoomNotActive}
	}
	if s.censor != nil {
		censored, words := s.censor.Censor(normalized)
		if len(words) > 0 {
			s.log.Info("Message censored", "room_id", room.ID, "author", identity.UserID, "words", words)
		}
		normalized = censored
	}

	visibility := room.Visibility()
	author := s.profiles.Resolve(ctx, identity.UserID)
	provisional := chat.Message{
		ID:          chat.MessageID(provisionalPrefix + uuid.NewString()),
		RoomID:      room.ID,
		AuthorID:    identity.UserID,
		Author:      author,
		Body:        normalized,
		CreatedAt:   s.now(),
		Visibility:  visibility,
		Provisional: true,
	}
	if err := s.synchronizer.AddProvisional(ctx, provisional); err != nil {
		return chat.Message{}, &errors.SendFailedError{Body: body, Err: err}
	}

	raw, err := s.store.InsertMessage(ctx, room.ID, identity.UserID, normalized, visibility)
	if err != nil {
		s.log.Warn("Inserting message failed", "room_id", room.ID, "provisional_id", provisional.ID, "error", err)
		if rejectErr := s.synchronizer.Reject(ctx, provisional.ID); rejectErr != nil {
			s.log.Warn("Removing provisional message failed", "provisional_id", provisional.ID, "error", rejectErr)
		}
		return chat.Message{}, &errors.SendFailedError{Body: body, Err: err}
	}

	canonical := chat.NewMessage(raw, author)
	if err := s.synchronizer.Confirm(ctx, provisional.ID, canonical); err != nil {
		// The echo of the feed still reconciles the provisional entry.
		s.log.Warn("Confirming message failed", "message_id", canonical.ID, "error", err)
	}
	return canonical, nil
}

// IsProvisional tells whether an id was generated for an optimistic entry.
func IsProvisional(id chat.MessageID) bool {
	return strings.HasPrefix(string(id), provisionalPrefix)
}
