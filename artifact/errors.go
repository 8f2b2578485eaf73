package artifact

import "errors"

var (
	// ErrUnavailable indicates the store could not answer. Callers treat it
	// as a miss.
	ErrUnavailable = errors.New("artifact: cache unavailable")

	// ErrPublishConflict indicates an entry already exists for the key.
	ErrPublishConflict = errors.New("artifact: entry already published")

	// ErrPublishFailed indicates an entry could not be written.
	ErrPublishFailed = errors.New("artifact: publish failed")

	// ErrInvalidFile indicates a file descriptor that cannot be stored.
	ErrInvalidFile = errors.New("artifact: invalid file descriptor")

	// ErrInvalidRef indicates a Ref that was not produced by the store.
	ErrInvalidRef = errors.New("artifact: invalid ref")
)
