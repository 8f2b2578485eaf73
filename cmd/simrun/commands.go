package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/alecthomas/kingpin.v2"
	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/simrun/backend"
	"github.com/jonwraymond/simrun/config"
	"github.com/jonwraymond/simrun/run"
)

// toolArgs describe the simtool to run.
type toolArgs struct {
	Name       string
	Notebook   string
	Revision   string
	Published  bool
	Outputs    []string
	ExtraFiles []string
}

func (a *toolArgs) bind(cmd *kingpin.CmdClause) {
	cmd.Arg("tool", "Tool name.").
		Required().
		StringVar(&a.Name)
	cmd.Arg("notebook", "Path to the tool notebook.").
		Required().
		StringVar(&a.Notebook)
	cmd.Flag("revision", "Tool revision. Unversioned tools are never cached.").
		Short('r').
		StringVar(&a.Revision)
	cmd.Flag("published", "The tool is installed and published.").
		BoolVar(&a.Published)
	cmd.Flag("output", "Declared output name (repeatable).").
		Short('o').
		StringsVar(&a.Outputs)
	cmd.Flag("extra", "File next to the notebook to stage, or * for the whole directory (repeatable).").
		StringsVar(&a.ExtraFiles)
}

func (a *toolArgs) tool() (run.Tool, error) {
	notebook, err := filepath.Abs(a.Notebook)
	if err != nil {
		return run.Tool{}, err
	}
	return run.Tool{
		Name:       a.Name,
		Revision:   a.Revision,
		Notebook:   notebook,
		Published:  a.Published,
		Outputs:    a.Outputs,
		ExtraFiles: a.ExtraFiles,
	}, nil
}

// inputArgs collect tool inputs.
type inputArgs struct {
	InputsPath string
	Params     []string
	Volatile   []string
	Files      []string
}

func (a *inputArgs) bind(cmd *kingpin.CmdClause) {
	cmd.Flag("inputs", "YAML file of input values.").
		StringVar(&a.InputsPath)
	cmd.Flag("param", "Input value as name=value; the value is parsed as YAML (repeatable).").
		Short('p').
		StringsVar(&a.Params)
	cmd.Flag("volatile", "Input value that does not affect the cache key, as name=value (repeatable).").
		StringsVar(&a.Volatile)
	cmd.Flag("file", "Input file as name=path (repeatable).").
		Short('f').
		StringsVar(&a.Files)
}

// inputSet merges the inputs file with flags. Later sources win.
func (a *inputArgs) inputSet() (run.InputSet, error) {
	set := run.InputSet{}
	if a.InputsPath != "" {
		data, err := os.ReadFile(a.InputsPath)
		if err != nil {
			return nil, err
		}
		var values map[string]any
		if err := yaml.Unmarshal(data, &values); err != nil {
			return nil, fmt.Errorf("%w: inputs %s: %w", errUsage, a.InputsPath, err)
		}
		for k, v := range values {
			set[k] = run.Param{Value: v}
		}
	}

	for _, kv := range a.Params {
		name, v, err := parseValue(kv)
		if err != nil {
			return nil, err
		}
		set[name] = run.Param{Value: v}
	}
	for _, kv := range a.Volatile {
		name, v, err := parseValue(kv)
		if err != nil {
			return nil, err
		}
		set[name] = run.Param{Value: v, Volatile: true}
	}
	for _, kv := range a.Files {
		name, path, err := splitPair(kv)
		if err != nil {
			return nil, err
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, err
		}
		set[name] = run.Param{File: abs}
	}
	return set, nil
}

func splitPair(kv string) (string, string, error) {
	name, value, ok := strings.Cut(kv, "=")
	if !ok || name == "" {
		return "", "", fmt.Errorf("%w: input %q must look like name=value", errUsage, kv)
	}
	return name, value, nil
}

func parseValue(kv string) (string, any, error) {
	name, raw, err := splitPair(kv)
	if err != nil {
		return "", nil, err
	}
	var v any
	if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
		return "", nil, fmt.Errorf("%w: input %s: %w", errUsage, name, err)
	}
	return name, v, nil
}

type runArgs struct {
	tool   toolArgs
	inputs inputArgs

	Venue   string
	NoCache bool
	RunName string

	Remote      bool
	RemoteVenue string
	WallTime    string
	Cores       int
	Command     string
}

// remote returns the remote attributes, nil for local execution.
func (a *runArgs) remote() *backend.RemoteAttributes {
	if !a.Remote && a.RemoteVenue == "" && a.WallTime == "" && a.Cores == 0 && a.Command == "" {
		return nil
	}
	return &backend.RemoteAttributes{
		Venue:    a.RemoteVenue,
		WallTime: a.WallTime,
		Cores:    a.Cores,
		Command:  a.Command,
	}
}

// RunCmd runs one tool and prints the result. A run whose tool exited
// nonzero reports errToolFailed after printing.
func RunCmd(ctx context.Context, rt *config.Runtime, args runArgs, p printer) error {
	tool, err := args.tool.tool()
	if err != nil {
		return err
	}
	inputs, err := args.inputs.inputSet()
	if err != nil {
		return err
	}
	venue, err := run.ParseVenue(rt.Config.Execution.Venue)
	if err != nil {
		return err
	}

	res, err := rt.Dispatcher.Run(ctx, run.Request{
		Tool:    tool,
		Inputs:  inputs,
		RunName: args.RunName,
		Remote:  args.remote(),
		Venue:   venue,
		NoCache: args.NoCache || rt.Config.Execution.NoCache,
	})
	if res != nil {
		p.printResult(newRunSummary(res))
	}
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("%w: %s exited %d", errToolFailed, tool.Name, res.ExitCode)
	}
	return nil
}

type keyArgs struct {
	tool   toolArgs
	inputs inputArgs
}

// KeyCmd resolves the cache reference for a tool and inputs and reports
// whether an entry is published under it.
func KeyCmd(ctx context.Context, rt *config.Runtime, args keyArgs, p printer) error {
	if rt.Store == nil {
		return fmt.Errorf("%w: no cache store is configured", errUsage)
	}
	tool, err := args.tool.tool()
	if err != nil {
		return err
	}
	if !tool.Identity().Versioned() {
		return fmt.Errorf("%w: tool %s is unversioned and never cached", errUsage, tool.Name)
	}
	inputs, err := args.inputs.inputSet()
	if err != nil {
		return err
	}
	hashable, err := inputs.Hashable()
	if err != nil {
		return err
	}
	ref, err := rt.Store.Resolve(ctx, tool.Identity(), hashable)
	if err != nil {
		return err
	}
	lookup := rt.Store.Stat(ctx, ref)
	p.printKey(keySummary{
		Ref:    ref.String(),
		Status: lookup.Status.String(),
		Reason: errString(lookup.Reason),
	})
	return nil
}

// HealthCmd writes the health report as JSON.
func HealthCmd(ctx context.Context, rt *config.Runtime, w io.Writer) error {
	report := rt.Health.Run(ctx)
	if err := report.WriteJSON(w); err != nil {
		return err
	}
	if !report.Healthy() {
		return errUnhealthy
	}
	return nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
