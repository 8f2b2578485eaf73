package run

import "errors"

var (
	// ErrConfiguration indicates an invalid venue, tool or cache combination.
	// It is returned before any I/O.
	ErrConfiguration = errors.New("run: configuration error")

	// ErrOutputMismatch describes declared and produced outputs that differ.
	// It is reported, never returned by Run.
	ErrOutputMismatch = errors.New("run: output mismatch")

	// ErrNoOutputs indicates the run has no readable output document.
	ErrNoOutputs = errors.New("run: no output document")

	// ErrWorkspace indicates the workspace could not be prepared.
	ErrWorkspace = errors.New("run: workspace setup failed")
)
