package auth

import (
	"chat-widget/domain/chat"
	"fmt"

	"github.com/go-playground/validator/v10"
)

const MaxNicknameLength = 32

var validate = validator.New()

type SendRequest struct {
	RoomID   chat.RoomID `validate:"required"`
	AuthorID chat.UserID `validate:"required"`
	Body     string      `validate:"required"`
}

// ValidateSend checks a normalized send request. maxBodyLength counts runes,
// zero disables the limit.
func ValidateSend(req SendRequest, maxBodyLength int) error {
	if err := validate.Struct(req); err != nil {
		return err
	}
	if maxBodyLength > 0 {
		return validate.Var(req.Body, fmt.Sprintf("max=%d", maxBodyLength))
	}
	return nil
}

type NicknameRequest struct {
	UserID   chat.UserID `validate:"required"`
	Nickname string      `validate:"required,max=32"`
}

func ValidateNickname(req NicknameRequest) error {
	return validate.Struct(req)
}
