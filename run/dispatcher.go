package run

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/jonwraymond/simrun/artifact"
	"github.com/jonwraymond/simrun/backend"
	"github.com/jonwraymond/simrun/cache"
	"github.com/jonwraymond/simrun/observe"
)

// Dispatcher runs simtools through the result cache.
//
// Contract:
//   - Concurrency: safe for concurrent use; each run owns its workspace.
//   - Blocking: Run waits for the backend. Cancelling ctx kills the tool and
//     fails the run.
//   - Errors: configuration errors are returned before any I/O. Publish
//     failures are returned together with the Result, whose workspace stays
//     valid. Execution failures and output mismatches are reported in the
//     Result and logged, never returned.
type Dispatcher struct {
	workRoot        string
	store           artifact.Store
	backends        map[Venue]backend.Backend
	submitAvailable bool
	opener          Opener
	logger          observe.Logger
	middleware      *observe.Middleware
	newRunName      func() string
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithStore sets the artifact store for untrusted runs. Without one the
// user cache is disabled.
func WithStore(s artifact.Store) Option {
	return func(d *Dispatcher) {
		d.store = s
	}
}

// WithBackend sets the backend for a venue.
func WithBackend(v Venue, b backend.Backend) Option {
	return func(d *Dispatcher) {
		if b != nil {
			d.backends[v] = b
		}
	}
}

// WithSubmitAvailable records whether the submission system is present.
// Without it venue selection falls back to noSubmit.
func WithSubmitAvailable(ok bool) Option {
	return func(d *Dispatcher) {
		d.submitAvailable = ok
	}
}

// WithOpener sets how output documents are read. Default: OpenNotebook
func WithOpener(o Opener) Option {
	return func(d *Dispatcher) {
		if o != nil {
			d.opener = o
		}
	}
}

// WithLogger sets the reporting channel for run warnings.
func WithLogger(l observe.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithMiddleware instruments every run.
func WithMiddleware(m *observe.Middleware) Option {
	return func(d *Dispatcher) {
		if m != nil {
			d.middleware = m
		}
	}
}

// WithRunNameGenerator sets how unnamed runs are named.
func WithRunNameGenerator(gen func() string) Option {
	return func(d *Dispatcher) {
		if gen != nil {
			d.newRunName = gen
		}
	}
}

// NewDispatcher creates a dispatcher whose run workspaces live under
// workRoot.
func NewDispatcher(workRoot string, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		workRoot:   workRoot,
		backends:   make(map[Venue]backend.Backend),
		opener:     OpenNotebook,
		logger:     observe.NopLogger(),
		middleware: observe.NopMiddleware(),
		newRunName: newRunName,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func newRunName() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Request describes one run.
type Request struct {
	Tool   Tool
	Inputs InputSet

	// RunName names the workspace. Empty generates a unique name.
	RunName string

	// Remote selects remote execution.
	Remote *backend.RemoteAttributes

	// Venue forces a venue. Empty selects one.
	Venue Venue

	// NoCache disables reading and writing the cache.
	NoCache bool
}

// plan is a validated request.
type plan struct {
	tool    Tool
	inputs  InputSet
	venue   Venue
	backend backend.Backend
	remote  *backend.RemoteAttributes
	caching bool
	meta    observe.RunMeta
}

// Run executes req, or reuses a cached result.
func (d *Dispatcher) Run(ctx context.Context, req Request) (*Result, error) {
	p, err := d.plan(req)
	if err != nil {
		return nil, err
	}

	var res *Result
	wrapped := d.middleware.Wrap(func(ctx context.Context, _ observe.RunMeta) (observe.Outcome, error) {
		var err error
		res, err = d.run(ctx, p)
		return res.outcome(), err
	})
	_, err = wrapped(ctx, p.meta)
	return res, err
}

func (d *Dispatcher) plan(req Request) (*plan, error) {
	if err := req.Tool.Validate(); err != nil {
		return nil, err
	}
	policy := cache.Policy{Requested: !req.NoCache}

	venue, err := SelectVenue(Selection{
		Venue:           req.Venue,
		Tool:            req.Tool,
		Remote:          req.Remote,
		Policy:          policy,
		SubmitAvailable: d.submitAvailable,
	})
	if err != nil {
		return nil, err
	}
	be, ok := d.backends[venue]
	if !ok {
		return nil, fmt.Errorf("%w: no backend for venue %s", ErrConfiguration, venue)
	}

	runName := req.RunName
	if runName == "" {
		runName = d.newRunName()
	}
	if !filepath.IsLocal(runName) || strings.ContainsAny(runName, `/\`) {
		return nil, fmt.Errorf("%w: invalid run name %q", ErrConfiguration, runName)
	}

	var remote *backend.RemoteAttributes
	if venue.Remote() {
		attrs := req.Remote.WithDefaults(req.Tool.Name)
		remote = &attrs
	}

	caching := policy.ShouldCache(req.Tool.Identity())
	if !venue.Trusted() && d.store == nil {
		caching = false
	}

	return &plan{
		tool:    req.Tool,
		inputs:  req.Inputs.Clone(),
		venue:   venue,
		backend: be,
		remote:  remote,
		caching: caching,
		meta: observe.RunMeta{
			Tool:     req.Tool.Name,
			Revision: req.Tool.Revision,
			Venue:    string(venue),
			RunName:  runName,
		},
	}, nil
}

func (d *Dispatcher) run(ctx context.Context, p *plan) (*Result, error) {
	logger := d.logger.WithRun(p.meta)
	res := &Result{
		RunName: p.meta.RunName,
		Venue:   p.venue,
		Caching: p.caching,
	}
	res.enter(StateInit)

	var hashable map[string]any
	if p.caching && !p.venue.Trusted() {
		var err error
		if hashable, err = p.inputs.Hashable(); err != nil {
			return res, fmt.Errorf("hash inputs: %w", err)
		}
	}
	notebookPath, err := filepath.Abs(p.tool.Notebook)
	if err != nil {
		return res, fmt.Errorf("%w: %w", ErrWorkspace, err)
	}

	ws := filepath.Join(d.workRoot, p.meta.RunName)
	if err := os.MkdirAll(d.workRoot, 0o755); err != nil {
		return res, fmt.Errorf("%w: %w", ErrWorkspace, err)
	}
	if err := os.Mkdir(ws, 0o755); err != nil {
		return res, fmt.Errorf("%w: %w", ErrWorkspace, err)
	}
	res.Workspace = ws
	res.Document = filepath.Join(ws, p.tool.NotebookName())

	var staging string
	if p.venue.Remote() {
		staging = filepath.Join(ws, backend.StagingDir)
		if err := os.Mkdir(staging, 0o755); err != nil {
			return res, fmt.Errorf("%w: %w", ErrWorkspace, err)
		}
		defer os.RemoveAll(staging)
	}
	res.enter(StateWorkspaceReady)
	logger.Info(ctx, "workspace ready",
		observe.Field{Key: "workspace", Value: ws},
		observe.Field{Key: "caching", Value: p.caching},
	)

	breq := backend.Request{
		Tool:       p.tool.Name,
		Revision:   p.tool.Revision,
		Notebook:   notebookPath,
		Workspace:  ws,
		Parameters: p.inputs.Parameters(),
		Remote:     p.remote,
	}

	if p.venue.Trusted() {
		err = d.runTrusted(ctx, p, res, breq, staging, logger)
	} else {
		err = d.runUntrusted(ctx, p, res, breq, staging, hashable, logger)
	}
	if err != nil {
		return res, err
	}
	res.enter(StateDone)
	return res, nil
}

func (d *Dispatcher) runUntrusted(ctx context.Context, p *plan, res *Result, breq backend.Request, staging string, hashable map[string]any, logger observe.Logger) error {
	var (
		ref      artifact.Ref
		resolved bool
	)
	if p.caching {
		var err error
		ref, err = d.store.Resolve(ctx, p.tool.Identity(), hashable)
		if err != nil {
			res.Lookup = artifact.StatusUnavailable
			logger.Warn(ctx, "result cache unavailable", observe.Field{Key: "error", Value: err})
		} else {
			resolved = true
			lookup := d.store.Read(ctx, ref, res.Workspace)
			res.Lookup = lookup.Status
			switch lookup.Status {
			case artifact.StatusHit:
				res.Cached = true
				res.Entry = lookup.Entry
			case artifact.StatusUnavailable:
				logger.Warn(ctx, "result cache unavailable", observe.Field{Key: "error", Value: lookup.Reason})
			}
		}
	}

	if res.Cached {
		res.enter(StateCacheHit)
		logger.Info(ctx, "found cached result", observe.Field{Key: "entry", Value: ref.String()})
		d.collect(ctx, p, res, logger)
		return nil
	}
	res.enter(StateCacheMiss)

	dst, keep := res.Workspace, false
	if staging != "" {
		dst, keep = staging, true
	}
	if err := stageTool(p.tool, dst, keep); err != nil {
		return fmt.Errorf("%w: stage tool files: %w", ErrWorkspace, err)
	}
	if err := stageInputFiles(res.Workspace, p.inputs.Files()); err != nil {
		return fmt.Errorf("%w: stage input files: %w", ErrWorkspace, err)
	}
	if p.venue != VenueNoSubmit {
		if err := writeInputs(res.Workspace, breq.Parameters); err != nil {
			return fmt.Errorf("%w: write inputs: %w", ErrWorkspace, err)
		}
	}
	prerun, err := prerunFiles(res.Workspace, p.tool.NotebookName())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWorkspace, err)
	}

	if err := d.execute(ctx, p, res, breq, logger); err != nil {
		return err
	}
	if staging != "" {
		_ = os.RemoveAll(staging)
	}
	d.collect(ctx, p, res, logger)

	if !resolved {
		return nil
	}
	entry, err := d.store.Write(ctx, ref, res.Workspace, publishNames(ctx, logger, prerun, res.SavedOutputFiles()))
	if err != nil {
		res.publishFailed = true
		logger.Error(ctx, "publishing result failed",
			observe.Field{Key: "entry", Value: ref.String()},
			observe.Field{Key: "error", Value: err},
		)
		return fmt.Errorf("publish %s: %w", ref, err)
	}
	res.Entry = entry
	res.enter(StatePublished)
	return nil
}

func (d *Dispatcher) runTrusted(ctx context.Context, p *plan, res *Result, breq backend.Request, staging string, logger observe.Logger) error {
	if staging != "" {
		if err := stageTool(p.tool, staging, true); err != nil {
			return fmt.Errorf("%w: stage tool files: %w", ErrWorkspace, err)
		}
	}
	if err := stageInputFiles(res.Workspace, p.inputs.Files()); err != nil {
		return fmt.Errorf("%w: stage input files: %w", ErrWorkspace, err)
	}
	if err := writeInputs(res.Workspace, breq.Parameters); err != nil {
		return fmt.Errorf("%w: write inputs: %w", ErrWorkspace, err)
	}

	res.enter(StateTrustedCacheCheck)
	if checker, ok := p.backend.(backend.CacheChecker); ok {
		hit, err := checker.CheckCache(ctx, breq)
		switch {
		case err != nil && ctx.Err() != nil:
			return err
		case err != nil:
			logger.Warn(ctx, "trusted cache check failed", observe.Field{Key: "error", Value: err})
		case hit:
			res.Cached = true
		}
	}

	if res.Cached {
		res.Lookup = artifact.StatusHit
		res.enter(StateCacheHit)
		logger.Info(ctx, "found cached result")
	} else {
		res.Lookup = artifact.StatusMiss
		res.enter(StateCacheMiss)
		if err := d.execute(ctx, p, res, breq, logger); err != nil {
			return err
		}
	}
	if staging != "" {
		_ = os.RemoveAll(staging)
	}
	d.collect(ctx, p, res, logger)
	return nil
}

// execute runs the backend. A backend that cannot run the tool counts as a
// failed execution; only cancellation fails the run.
func (d *Dispatcher) execute(ctx context.Context, p *plan, res *Result, breq backend.Request, logger observe.Logger) error {
	res.enter(StateExecuting)
	out, err := p.backend.Execute(ctx, breq)
	res.Executed = true
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		logger.Error(ctx, "simtool execution could not start", observe.Field{Key: "error", Value: err})
		res.ExitCode = 1
	} else {
		res.ExitCode = out.ExitCode
	}
	if res.ExitCode != 0 {
		logger.Warn(ctx, "simtool execution failed", observe.Field{Key: "exit_code", Value: res.ExitCode})
	}
	return nil
}

// collect opens the output document and reconciles outputs.
func (d *Dispatcher) collect(ctx context.Context, p *plan, res *Result, logger observe.Logger) {
	outs, err := d.opener(res.Document)
	if err != nil {
		logger.Warn(ctx, "output document unreadable",
			observe.Field{Key: "document", Value: res.Document},
			observe.Field{Key: "error", Value: err},
		)
		res.Missing, res.Extra = reconcile(p.tool.Outputs, nil)
	} else {
		res.outputs = outs
		res.Missing, res.Extra = reconcile(p.tool.Outputs, outs.SavedOutputs())
	}

	if len(res.Missing) > 0 {
		logger.Warn(ctx, "outputs are missing", observe.Field{Key: "outputs", Value: res.Missing})
	}
	if len(res.Extra) > 0 {
		logger.Warn(ctx, "additional outputs were returned", observe.Field{Key: "outputs", Value: res.Extra})
	}
	res.enter(StateOutputsCollected)
}

// publishNames merges the pre-run files with the saved output files.
// Saved files outside the workspace are not published.
func publishNames(ctx context.Context, logger observe.Logger, prerun, saved []string) []string {
	names := append([]string(nil), prerun...)
	for _, f := range saved {
		if !filepath.IsLocal(f) {
			logger.Warn(ctx, "saved output file outside workspace not published", observe.Field{Key: "file", Value: f})
			continue
		}
		names = append(names, f)
	}
	return names
}

func (r *Result) outcome() observe.Outcome {
	if r == nil {
		return observe.Outcome{}
	}
	out := observe.Outcome{
		Executed:      r.Executed,
		ExitCode:      r.ExitCode,
		PublishFailed: r.publishFailed,
	}
	for _, s := range r.States {
		if s == StatePublished {
			out.Published = true
		}
	}
	switch {
	case !r.Caching:
		out.Lookup = observe.LookupDisabled
	case r.Venue.Trusted() && !r.Cached:
		out.Lookup = observe.LookupTrusted
	default:
		out.Lookup = r.Lookup.String()
	}
	return out
}
