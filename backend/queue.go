package backend

import (
	"context"
	"fmt"
)

// LocalQueue submits the notebook engine to the local queue. The engine
// reads parameters from InputsFile.
type LocalQueue struct {
	Submitter Submitter

	// Engine is the notebook engine binary. Default: "papermill"
	Engine string
}

// Execute submits --local <engine> -f inputs.yaml <notebook> <output>.
func (q *LocalQueue) Execute(ctx context.Context, req Request) (Result, error) {
	if err := req.validate(); err != nil {
		return Result{}, err
	}
	engine := q.Engine
	if engine == "" {
		engine = "papermill"
	}

	res, err := q.Submitter.Submit(ctx, SubmitCommand{
		Local:   true,
		Command: engine,
		Args:    []string{"-f", InputsFile, req.Notebook, req.OutputName()},
		Dir:     req.Workspace,
	})
	if err != nil {
		return Result{}, err
	}
	return Result{ExitCode: res.ExitCode, Document: req.OutputPath()}, nil
}

// RemoteQueue submits the tool's wrapper command to a remote venue. Support
// files travel in StagingDir and user inputs in InputFilesDir.
type RemoteQueue struct {
	Submitter Submitter
}

// Execute submits <command> -s <tool> -i inputs.yaml with the remote
// attributes of req.
func (q *RemoteQueue) Execute(ctx context.Context, req Request) (Result, error) {
	if err := req.validate(); err != nil {
		return Result{}, err
	}
	if req.Remote == nil {
		return Result{}, fmt.Errorf("%w: remote attributes are required", ErrInvalidRequest)
	}
	attrs := req.Remote.WithDefaults(req.Tool)

	res, err := q.Submitter.Submit(ctx, SubmitCommand{
		Venue:      attrs.Venue,
		WallTime:   attrs.WallTime,
		Cores:      attrs.Cores,
		InputFiles: []string{StagingDir, InputFilesDir},
		Command:    attrs.Command,
		Args:       []string{"-s", req.Tool, "-i", InputsFile},
		Dir:        req.Workspace,
	})
	if err != nil {
		return Result{}, err
	}
	return Result{ExitCode: res.ExitCode, Document: req.OutputPath()}, nil
}

var (
	_ Backend = (*LocalQueue)(nil)
	_ Backend = (*RemoteQueue)(nil)
)
