package backend

import "errors"

var (
	// ErrExecutionFailed indicates the backend could not run the tool.
	ErrExecutionFailed = errors.New("backend: execution failed")

	// ErrSubmitUnavailable indicates the submit command cannot be found.
	ErrSubmitUnavailable = errors.New("backend: submit unavailable")

	// ErrInvalidRequest indicates a request missing required fields.
	ErrInvalidRequest = errors.New("backend: invalid request")
)
