package conversation

import (
	"errors"
	"fmt"
)

// Op names a round-trip to the conversation service.
type Op string

const (
	// OpHistory is the read request that loads a user's past messages.
	OpHistory Op = "history"
	// OpSend is the write request that submits one message and returns an answer.
	OpSend Op = "send"
)

var (
	// ErrEmptyMessage is returned when a free-text submit carries no visible characters. Nothing is
	// appended and no request is issued.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrUnknownAction is returned when a quick action id has no configured trigger.
	ErrUnknownAction = errors.New("unknown quick action")
	// ErrClosed is returned by every ViewModel operation after Close.
	ErrClosed = errors.New("view model is closed")
	// ErrDiscarded resolves a pending request whose response arrived after the view model was closed.
	ErrDiscarded = errors.New("response discarded after close")
)

// NetworkFailure reports a round-trip that could not complete. It is logged by the Synchronizer and
// handed to whoever waits on the pending request, but it never changes the transcript.
type NetworkFailure struct {
	Op     Op
	UserID string
	Err    error
}

func (e *NetworkFailure) Error() string {
	return fmt.Sprintf("%s request for user %s failed: %v", e.Op, e.UserID, e.Err)
}

func (e *NetworkFailure) Unwrap() error {
	return e.Err
}
