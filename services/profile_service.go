package services

import (
	"chat-widget/auth"
	"chat-widget/contract"
	"chat-widget/domain/chat"
	"context"
	"fmt"
	"log/slog"
)

type IProfileService interface {
	SetNickname(ctx context.Context, identity chat.Identity, nickname string) (chat.Profile, error)
}

// ProfileInvalidator drops a memoized profile so the next lookup hits the directory.
type ProfileInvalidator interface {
	Forget(id chat.UserID)
}

type ProfileService struct {
	log      *slog.Logger
	writer   contract.ProfileWriter
	profiles contract.ProfileResolver
	cache    ProfileInvalidator
}

func NewProfileService(log *slog.Logger, writer contract.ProfileWriter,
	profiles contract.ProfileResolver, cache ProfileInvalidator) *ProfileService {
	return &ProfileService{log: log, writer: writer, profiles: profiles, cache: cache}
}

// SetNickname stores the nickname chosen by the signed-in user. The avatar is kept.
// Messages enriched from now on carry the new nickname.
func (s *ProfileService) SetNickname(ctx context.Context, identity chat.Identity, nickname string) (chat.Profile, error) {
	nickname = chat.NormalizeBody(nickname)
	if err := auth.ValidateNickname(auth.NicknameRequest{UserID: identity.UserID, Nickname: nickname}); err != nil {
		return chat.Profile{}, fmt.Errorf("invalid nickname: %w", err)
	}

	current := s.profiles.Resolve(ctx, identity.UserID)
	updated := chat.Profile{ID: identity.UserID, Nickname: nickname, AvatarRef: current.AvatarRef}
	if err := s.writer.UpsertProfile(ctx, updated); err != nil {
		return chat.Profile{}, fmt.Errorf("save profile of %s: %w", identity.UserID, err)
	}
	s.cache.Forget(identity.UserID)
	s.log.Info("Nickname updated", "user_id", identity.UserID)
	return updated.WithDefaults(identity.UserID), nil
}
