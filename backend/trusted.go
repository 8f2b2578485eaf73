package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jonwraymond/simrun/observe"
)

// DefaultHelperDir holds the privileged helper scripts.
const DefaultHelperDir = "/apps/bin"

// Helper script names.
const (
	helperGetArchived = "ionhelperGetArchivedSimToolResult.sh"
	helperRun         = "ionhelperRunSimTool.sh"
	helperLoad        = "ionhelperLoadSimToolResult.sh"
)

// Trusted runs tools through privileged helpers that read and write the
// global cache on the user's behalf. The helpers are submitted locally; the
// privilege boundary is theirs.
//
// Only published tools may run trusted; the dispatcher enforces that.
type Trusted struct {
	Submitter Submitter

	// HelperDir locates the helper scripts. Default: DefaultHelperDir
	HelperDir string

	Logger observe.Logger
}

// CheckCache asks the archive helper to deliver a cached result into the
// workspace. Exit 0 means it did.
func (t *Trusted) CheckCache(ctx context.Context, req Request) (bool, error) {
	if err := req.validate(); err != nil {
		return false, err
	}
	code, err := t.submit(ctx, req, helperGetArchived, req.Tool, req.Revision, req.InputsPath(), req.Workspace)
	if err != nil {
		return false, err
	}
	return code == 0, nil
}

// Execute runs the tool through the run helper, then fetches the result:
// from the archive when the run succeeded, or the failure delivery
// otherwise. Remote attributes are handed over in RemoteArgumentsFile.
func (t *Trusted) Execute(ctx context.Context, req Request) (Result, error) {
	if err := req.validate(); err != nil {
		return Result{}, err
	}
	if req.Remote != nil {
		if err := writeRemoteArguments(req); err != nil {
			return Result{}, err
		}
	}

	code, err := t.submit(ctx, req, helperRun, req.Tool, req.Revision, req.InputsPath())
	if err != nil {
		return Result{}, err
	}

	logger := t.logger()
	if code == 0 {
		rc, err := t.submit(ctx, req, helperGetArchived, req.Tool, req.Revision, req.InputsPath(), req.Workspace)
		if err != nil {
			return Result{}, err
		}
		if rc != 0 {
			logger.Warn(ctx, "retrieval of generated cached result failed", observe.Field{Key: "exit_code", Value: rc})
		}
	} else {
		rc, err := t.submit(ctx, req, helperLoad, req.Workspace)
		if err != nil {
			return Result{}, err
		}
		if rc != 0 {
			logger.Warn(ctx, "retrieval of failed execution result failed", observe.Field{Key: "exit_code", Value: rc})
		}
	}

	return Result{ExitCode: code, Document: req.OutputPath()}, nil
}

func (t *Trusted) submit(ctx context.Context, req Request, helper string, args ...string) (int, error) {
	dir := t.HelperDir
	if dir == "" {
		dir = DefaultHelperDir
	}
	res, err := t.Submitter.Submit(ctx, SubmitCommand{
		Local:   true,
		Command: filepath.Join(dir, helper),
		Args:    args,
		Dir:     req.Workspace,
	})
	if err != nil {
		return 0, err
	}
	return res.ExitCode, nil
}

func (t *Trusted) logger() observe.Logger {
	if t.Logger == nil {
		return observe.NopLogger()
	}
	return t.Logger
}

func writeRemoteArguments(req Request) error {
	data, err := json.Marshal(req.Remote.WithDefaults(req.Tool))
	if err != nil {
		return fmt.Errorf("%w: encode remote arguments: %w", ErrInvalidRequest, err)
	}
	if err := os.WriteFile(filepath.Join(req.Workspace, RemoteArgumentsFile), data, 0o644); err != nil {
		return fmt.Errorf("%w: write remote arguments: %w", ErrExecutionFailed, err)
	}
	return nil
}

var (
	_ Backend      = (*Trusted)(nil)
	_ CacheChecker = (*Trusted)(nil)
)
