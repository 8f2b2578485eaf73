package backend

import (
	"context"
	"fmt"
	"path/filepath"
)

// Standard workspace names shared with the dispatcher.
const (
	// InputsFile is the side-channel document holding the parameters.
	InputsFile = "inputs.yaml"

	// InputFilesDir holds user-supplied input files.
	InputFilesDir = ".notebookInputFiles"

	// StagingDir holds tool support files shipped to remote venues.
	StagingDir = ".simtool"

	// RemoteArgumentsFile passes remote attributes to trusted helpers.
	RemoteArgumentsFile = "remoteArguments.json"
)

// RemoteAttributes configures remote execution.
type RemoteAttributes struct {
	Venue    string `json:"venue,omitempty" yaml:"venue"`
	WallTime string `json:"wallTime,omitempty" yaml:"wall_time"`
	Cores    int    `json:"nCores,omitempty" yaml:"cores"`
	Command  string `json:"command,omitempty" yaml:"command"`
}

// WithDefaults fills Command with the tool's wrapper when unset:
// <name>_simtool_serial for one core, <name>_simtool_mpi otherwise.
func (a RemoteAttributes) WithDefaults(tool string) RemoteAttributes {
	if a.Command != "" {
		return a
	}
	if a.Cores > 1 {
		a.Command = tool + "_simtool_mpi"
	} else {
		a.Command = tool + "_simtool_serial"
	}
	return a
}

// Request describes one execution.
type Request struct {
	Tool     string
	Revision string

	// Notebook is the absolute path of the tool notebook.
	Notebook string

	// Workspace is the run directory.
	Workspace string

	// Parameters are passed inline by backends that do not read InputsFile.
	Parameters map[string]any

	// Remote is set for remote venues.
	Remote *RemoteAttributes
}

// OutputName is the produced notebook's file name.
func (r Request) OutputName() string {
	return filepath.Base(r.Notebook)
}

// OutputPath is the produced notebook's path in the workspace.
func (r Request) OutputPath() string {
	return filepath.Join(r.Workspace, r.OutputName())
}

// InputsPath is the side-channel document's path.
func (r Request) InputsPath() string {
	return filepath.Join(r.Workspace, InputsFile)
}

func (r Request) validate() error {
	switch {
	case r.Tool == "":
		return fmt.Errorf("%w: tool name is required", ErrInvalidRequest)
	case r.Workspace == "":
		return fmt.Errorf("%w: workspace is required", ErrInvalidRequest)
	case r.Notebook == "":
		return fmt.Errorf("%w: notebook is required", ErrInvalidRequest)
	}
	return nil
}

// Result is the outcome of an execution.
type Result struct {
	ExitCode int

	// Document is the produced notebook path. It may not exist when the
	// run failed.
	Document string
}

// Backend runs a tool.
//
// Contract:
// - Blocking: Execute waits for the tool to finish; ctx cancellation kills it.
// - Errors: non-zero exit is reported in Result, not as an error.
type Backend interface {
	Execute(ctx context.Context, req Request) (Result, error)
}

// CacheChecker is implemented by backends with their own cache channel.
// On a hit the cached result has already been placed in the workspace.
type CacheChecker interface {
	CheckCache(ctx context.Context, req Request) (bool, error)
}
