package backend

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/jonwraymond/simrun/observe"
)

// SubmitCommand is one job for the submission system.
type SubmitCommand struct {
	// Local runs the job on the submitting host.
	Local bool

	Venue    string
	WallTime string
	Cores    int

	// InputFiles are workspace paths shipped with a remote job.
	InputFiles []string

	Command string
	Args    []string

	// Dir is the working directory of the submission.
	Dir string
}

// Argv renders the command line passed to submit.
func (c SubmitCommand) Argv() []string {
	var argv []string
	if c.Local {
		argv = append(argv, "--local")
	}
	if c.Venue != "" {
		argv = append(argv, "-v", c.Venue)
	}
	if c.WallTime != "" {
		argv = append(argv, "-w", c.WallTime)
	}
	if c.Cores > 0 {
		argv = append(argv, "-n", strconv.Itoa(c.Cores))
	}
	for _, f := range c.InputFiles {
		argv = append(argv, "-i", f)
	}
	argv = append(argv, c.Command)
	return append(argv, c.Args...)
}

// SubmitResult is the outcome of a submission.
type SubmitResult struct {
	ExitCode int
}

// Submitter runs a job and waits for it.
//
// Contract:
// - Blocking: Submit returns when the job finishes.
// - Errors: returned only when the job could not be submitted or waited on.
type Submitter interface {
	Submit(ctx context.Context, cmd SubmitCommand) (SubmitResult, error)
}

// CommandSubmitter shells out to the submit client.
type CommandSubmitter struct {
	// Path is the submit binary. Default: "submit"
	Path string

	Stdout io.Writer
	Stderr io.Writer
	Logger observe.Logger
}

// NewCommandSubmitter creates a submitter writing job output to the
// process's stdout and stderr.
func NewCommandSubmitter(path string, logger observe.Logger) *CommandSubmitter {
	if path == "" {
		path = "submit"
	}
	if logger == nil {
		logger = observe.NopLogger()
	}
	return &CommandSubmitter{Path: path, Stdout: os.Stdout, Stderr: os.Stderr, Logger: logger}
}

// Available reports whether the submit binary can be found.
func (s *CommandSubmitter) Available() bool {
	_, err := exec.LookPath(s.Path)
	return err == nil
}

// Submit runs submit with the rendered argv.
func (s *CommandSubmitter) Submit(ctx context.Context, c SubmitCommand) (SubmitResult, error) {
	if !s.Available() {
		return SubmitResult{}, fmt.Errorf("%w: %s", ErrSubmitUnavailable, s.Path)
	}
	argv := c.Argv()
	s.Logger.Debug(ctx, "submitting job",
		observe.Field{Key: "command", Value: s.Path + " " + strings.Join(argv, " ")},
		observe.Field{Key: "dir", Value: c.Dir},
	)

	code, err := run(ctx, command{Path: s.Path, Args: argv, Dir: c.Dir, Stdout: s.Stdout, Stderr: s.Stderr})
	if err != nil {
		return SubmitResult{}, err
	}
	return SubmitResult{ExitCode: code}, nil
}

var _ Submitter = (*CommandSubmitter)(nil)
