package backend

import (
	"context"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Process runs the notebook engine directly, passing parameters inline.
type Process struct {
	// Engine is the notebook engine binary. Default: "papermill"
	Engine string

	Stdout io.Writer
	Stderr io.Writer
}

// Execute runs <engine> <notebook> <output> -y <parameters> --cwd <workspace>.
func (p *Process) Execute(ctx context.Context, req Request) (Result, error) {
	if err := req.validate(); err != nil {
		return Result{}, err
	}
	params, err := yaml.Marshal(req.Parameters)
	if err != nil {
		return Result{}, fmt.Errorf("%w: encode parameters: %w", ErrInvalidRequest, err)
	}

	engine := p.Engine
	if engine == "" {
		engine = "papermill"
	}
	stdout, stderr := p.Stdout, p.Stderr
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}

	code, err := run(ctx, command{
		Path:   engine,
		Args:   []string{req.Notebook, req.OutputPath(), "-y", string(params), "--cwd", req.Workspace},
		Dir:    req.Workspace,
		Stdout: stdout,
		Stderr: stderr,
	})
	if err != nil {
		return Result{}, err
	}
	return Result{ExitCode: code, Document: req.OutputPath()}, nil
}

var _ Backend = (*Process)(nil)
