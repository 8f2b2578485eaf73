package run

import (
	"fmt"
	"slices"

	"github.com/jonwraymond/simrun/artifact"
	"github.com/jonwraymond/simrun/notebook"
)

// Sentinel outputs every tool records for its own bookkeeping.
const (
	OutputSaveError = "simToolSaveErrorOccurred"
	OutputAllSaved  = "simToolAllOutputsSaved"
)

// Outputs reads what a run produced.
type Outputs interface {
	SavedOutputs() []string
	SavedOutputFiles() []string
	Read(name string, display, raw bool) (any, error)
}

// Opener opens the output document of a run.
type Opener func(path string) (Outputs, error)

// OpenNotebook is the default Opener.
func OpenNotebook(path string) (Outputs, error) {
	return notebook.Open(path)
}

var _ Outputs = (*notebook.Document)(nil)

// Result describes a finished run.
type Result struct {
	RunName   string
	Workspace string
	Venue     Venue

	// Document is the output document path.
	Document string

	// Caching reports whether the run read from and wrote to a cache.
	Caching bool

	// Cached reports a cache hit: the tool did not execute.
	Cached bool

	// Lookup is the artifact store status for untrusted cached runs.
	Lookup artifact.Status

	// Executed is set when the backend ran the tool.
	Executed bool
	ExitCode int

	// Missing are declared outputs the run did not produce; Extra are
	// produced outputs the tool did not declare.
	Missing []string
	Extra   []string

	// Entry is the published cache entry, or the entry the hit came from.
	Entry *artifact.Entry

	// States lists the lifecycle states the run went through.
	States []State

	outputs       Outputs
	publishFailed bool
}

// Outputs returns the opened output document, nil when it could not be
// read.
func (r *Result) Outputs() Outputs {
	return r.outputs
}

// Read returns a recorded output.
func (r *Result) Read(name string, display, raw bool) (any, error) {
	if r.outputs == nil {
		return nil, ErrNoOutputs
	}
	return r.outputs.Read(name, display, raw)
}

// SavedOutputs returns the recorded output names.
func (r *Result) SavedOutputs() []string {
	if r.outputs == nil {
		return nil
	}
	return r.outputs.SavedOutputs()
}

// SavedOutputFiles returns the files the tool saved as outputs.
func (r *Result) SavedOutputFiles() []string {
	if r.outputs == nil {
		return nil
	}
	return r.outputs.SavedOutputFiles()
}

// Mismatch describes missing and extra outputs, nil when they match.
func (r *Result) Mismatch() error {
	switch {
	case len(r.Missing) > 0 && len(r.Extra) > 0:
		return fmt.Errorf("%w: missing %v, extra %v", ErrOutputMismatch, r.Missing, r.Extra)
	case len(r.Missing) > 0:
		return fmt.Errorf("%w: missing %v", ErrOutputMismatch, r.Missing)
	case len(r.Extra) > 0:
		return fmt.Errorf("%w: extra %v", ErrOutputMismatch, r.Extra)
	}
	return nil
}

func (r *Result) enter(s State) {
	r.States = append(r.States, s)
}

// reconcile compares declared outputs to produced ones. Bookkeeping
// sentinels are never reported as extra.
func reconcile(declared, produced []string) (missing, extra []string) {
	for _, name := range declared {
		if !slices.Contains(produced, name) {
			missing = append(missing, name)
		}
	}
	for _, name := range produced {
		if name == OutputSaveError || name == OutputAllSaved {
			continue
		}
		if !slices.Contains(declared, name) {
			extra = append(extra, name)
		}
	}
	slices.Sort(missing)
	slices.Sort(extra)
	return slices.Compact(missing), slices.Compact(extra)
}
