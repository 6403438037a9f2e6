package chat

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyContent is returned by Send for blank messages.
	ErrEmptyContent = errors.New("chat: message content is empty")
	// ErrSessionClosed is returned by Send after Close.
	ErrSessionClosed = errors.New("chat: session closed")
	// ErrSurfaceClosed is returned by Open after the surface is closed.
	ErrSurfaceClosed = errors.New("chat: surface closed")
)

// HistoryError reports a failed backlog fetch. The session returned alongside
// it is usable but shows only live messages.
type HistoryError struct {
	ThreadID string
	Err      error
}

func (e *HistoryError) Error() string {
	return fmt.Sprintf("chat: loading history for %s: %v", e.ThreadID, e.Err)
}

func (e *HistoryError) Unwrap() error { return e.Err }

// PersistError reports a send whose durable write failed. The live envelope
// may already have reached other participants.
type PersistError struct {
	ThreadID string
	Err      error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("chat: message to %s not saved: %v", e.ThreadID, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// LiveError reports a message that was stored but could not be written to
// the live connection. Other participants see it once they reload history.
type LiveError struct {
	ThreadID string
	Err      error
}

func (e *LiveError) Error() string {
	return fmt.Sprintf("chat: message to %s saved but not delivered live: %v", e.ThreadID, e.Err)
}

func (e *LiveError) Unwrap() error { return e.Err }
