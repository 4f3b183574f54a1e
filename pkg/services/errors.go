package services

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound reports that no post matched the requested title and ref.
	ErrNotFound = errors.New("post not found")
	// ErrConflict reports that the file changed remotely between the
	// precondition read and the write.
	ErrConflict = errors.New("post was edited concurrently")
	// ErrRemoteRead and ErrRemoteWrite cover transport, authorization and
	// rate limit failures from the content store.
	ErrRemoteRead  = errors.New("failed reading from the content repository")
	ErrRemoteWrite = errors.New("failed writing to the content repository")
)

// ValidationError is a user correctable rejection of a submission. Message is
// shown verbatim as the alert on the edit screen.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func remoteStatusError(kind error, op string, status int) error {
	return fmt.Errorf("%w: %s returned status %d", kind, op, status)
}
