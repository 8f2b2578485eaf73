package notebook

import "errors"

var (
	// ErrNotFound indicates no scrap with the requested name.
	ErrNotFound = errors.New("notebook: scrap not found")

	// ErrInvalidDocument indicates the notebook is not valid JSON.
	ErrInvalidDocument = errors.New("notebook: invalid document")
)
