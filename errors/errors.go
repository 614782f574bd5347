package errors

import (
	"errors"
	"fmt"
)

var (
	ErrLoad                = fmt.Errorf("messages could not be loaded")
	ErrConnectionLost      = fmt.Errorf("live connection lost")
	ErrProfileLookupFailed = fmt.Errorf("profile lookup failed")
	ErrSendFailed          = fmt.Errorf("message could not be sent")
	ErrStaleResult         = fmt.Errorf("stale result discarded")

	ErrEmptyBody           = fmt.Errorf("message body is empty")
	ErrRoomNotActive       = fmt.Errorf("room is not the active room")
	ErrSynchronizerStopped = fmt.Errorf("synchronizer stopped")
	ErrRoomNotFound        = fmt.Errorf("room not found")
	ErrSubscriberTooSlow   = fmt.Errorf("subscriber too slow, feed dropped")
	ErrSubscriptionClosed  = fmt.Errorf("subscription closed")
	ErrInvalidToken        = fmt.Errorf("invalid access token")
	ErrEmptyWords          = fmt.Errorf("no words have been found")
	ErrWorkerPanic         = fmt.Errorf("worker panic")
)

// LoadError is returned and notified when the bulk fetch of a room failed.
// The synchronizer is back to Idle, retrying means activating the room again.
type LoadError struct {
	RoomID string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load room %s: %v", e.RoomID, e.Err)
}

func (e *LoadError) Unwrap() []error { return []error{ErrLoad, e.Err} }

// SendFailedError keeps the body the user typed so the input can be retried as is.
type SendFailedError struct {
	Body string
	Err  error
}

func (e *SendFailedError) Error() string {
	return fmt.Sprintf("send message: %v", e.Err)
}

func (e *SendFailedError) Unwrap() []error { return []error{ErrSendFailed, e.Err} }

// Is, As and Join re-export the standard helpers so callers importing this
// package under its usual name keep access to them.
func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target any) bool { return errors.As(err, target) }

func Join(errs ...error) error { return errors.Join(errs...) }
