// Command simrun runs simtools through the result cache.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/jonwraymond/simrun/config"
	"github.com/jonwraymond/simrun/observe"
	"github.com/jonwraymond/simrun/run"
)

// Exit codes.
const (
	exitOK         = 0
	exitError      = 1
	exitUsage      = 2
	exitToolFailed = 3
	exitUnhealthy  = 4
)

var (
	errUsage      = errors.New("usage")
	errToolFailed = errors.New("tool failed")
	errUnhealthy  = errors.New("unhealthy")
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	bhv := Main(ctx, os.Args, os.Stdin, os.Stdout, os.Stderr)
	err := bhv.action()
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "simrun: %s\n", err)
	}
	os.Exit(exitCodeForError(err))
}

func exitCodeForError(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errUsage), errors.Is(err, run.ErrConfiguration):
		return exitUsage
	case errors.Is(err, errToolFailed):
		return exitToolFailed
	case errors.Is(err, errUnhealthy):
		return exitUnhealthy
	default:
		return exitError
	}
}

// behavior holds the parse result so tests can inspect it before
// running anything.
type behavior struct {
	parsedArgs any
	action     func() error
}

// Main parses args and returns the behavior they select.
func Main(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) behavior {
	app := kingpin.New("simrun", "Run simtools through the result cache.")
	app.HelpFlag.Short('h')
	app.UsageWriter(stderr)
	app.ErrorWriter(stderr)

	baseArgs := struct {
		ConfigPath string
		Format     string
		LogLevel   string
	}{}
	app.Flag("config", "Path to a YAML configuration file.").
		Short('c').
		Envar("SIMRUN_CONFIG").
		StringVar(&baseArgs.ConfigPath)
	app.Flag("format", "Output format.").
		Default(formatText).
		EnumVar(&baseArgs.Format, formatText, formatJSON)
	app.Flag("log-level", "Override the configured log level.").
		EnumVar(&baseArgs.LogLevel, observe.ValidLogLevels...)

	load := func(venue string) (*config.Runtime, error) {
		cfg, err := config.Load(baseArgs.ConfigPath)
		if err != nil {
			return nil, err
		}
		if baseArgs.LogLevel != "" {
			cfg.Observe.Logging.Level = baseArgs.LogLevel
		}
		if venue != "" {
			cfg.Execution.Venue = venue
		}
		if err := cfg.ResolveSecrets(ctx); err != nil {
			return nil, err
		}
		cfg.Observe.Output = stderr
		return config.Build(ctx, cfg)
	}

	bhvs := map[string]behavior{}
	{
		cmdRun := app.Command("run", "Run a simtool, reusing a cached result when one exists.")
		argsRun := runArgs{}
		argsRun.tool.bind(cmdRun)
		argsRun.inputs.bind(cmdRun)
		cmdRun.Flag("venue", "Force an execution venue.").
			EnumVar(&argsRun.Venue, venueNames()...)
		cmdRun.Flag("no-cache", "Neither read nor write the cache.").
			BoolVar(&argsRun.NoCache)
		cmdRun.Flag("run-name", "Name of the run workspace.").
			StringVar(&argsRun.RunName)
		cmdRun.Flag("remote", "Execute on a remote venue.").
			BoolVar(&argsRun.Remote)
		cmdRun.Flag("remote-venue", "Remote resource to submit to.").
			StringVar(&argsRun.RemoteVenue)
		cmdRun.Flag("walltime", "Remote wall time limit.").
			StringVar(&argsRun.WallTime)
		cmdRun.Flag("cores", "Remote core count.").
			IntVar(&argsRun.Cores)
		cmdRun.Flag("command", "Remote wrapper command.").
			StringVar(&argsRun.Command)
		bhvs[cmdRun.FullCommand()] = behavior{&argsRun, func() error {
			rt, err := load(argsRun.Venue)
			if err != nil {
				return err
			}
			defer rt.Close(context.WithoutCancel(ctx))
			return RunCmd(ctx, rt, argsRun, setupPrinter(baseArgs.Format, stdout, stderr))
		}}
	}
	{
		cmdKey := app.Command("key", "Resolve the cache entry a run would use.")
		argsKey := keyArgs{}
		argsKey.tool.bind(cmdKey)
		argsKey.inputs.bind(cmdKey)
		bhvs[cmdKey.FullCommand()] = behavior{&argsKey, func() error {
			rt, err := load("")
			if err != nil {
				return err
			}
			defer rt.Close(context.WithoutCancel(ctx))
			return KeyCmd(ctx, rt, argsKey, setupPrinter(baseArgs.Format, stdout, stderr))
		}}
	}
	{
		cmdHealth := app.Command("health", "Check the cache and execution dependencies.")
		bhvs[cmdHealth.FullCommand()] = behavior{nil, func() error {
			rt, err := load("")
			if err != nil {
				return err
			}
			defer rt.Close(context.WithoutCancel(ctx))
			return HealthCmd(ctx, rt, stdout)
		}}
	}

	parsedCmdStr, err := app.Parse(args[1:])
	if err != nil {
		return behavior{
			parsedArgs: err,
			action: func() error {
				return fmt.Errorf("%w: %s", errUsage, err)
			},
		}
	}
	if bhv, ok := bhvs[parsedCmdStr]; ok {
		return bhv
	}
	panic("unreachable, cli parser must error on unknown commands")
}

func venueNames() []string {
	names := make([]string, len(run.Venues))
	for i, v := range run.Venues {
		names[i] = v.String()
	}
	return names
}
