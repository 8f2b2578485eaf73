package config

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jonwraymond/simrun/artifact"
	"github.com/jonwraymond/simrun/auth"
	"github.com/jonwraymond/simrun/backend"
	"github.com/jonwraymond/simrun/cache"
	"github.com/jonwraymond/simrun/health"
	"github.com/jonwraymond/simrun/observe"
	"github.com/jonwraymond/simrun/resilience"
	"github.com/jonwraymond/simrun/run"
)

// Runtime is a wired simrun instance.
type Runtime struct {
	Config     Config
	Observer   observe.Observer
	Logger     observe.Logger
	Store      artifact.Store
	Dispatcher *run.Dispatcher
	Health     *health.Aggregator
}

// Build validates cfg and wires a Runtime. Secrets must already be
// resolved.
func Build(ctx context.Context, cfg Config) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Observe.Output == nil {
		cfg.Observe.Output = os.Stderr
	}

	obs, err := observe.NewObserver(ctx, cfg.Observe)
	if err != nil {
		return nil, err
	}
	logger := obs.Logger()
	middleware, err := observe.MiddlewareFromObserver(obs)
	if err != nil {
		return nil, errors.Join(err, obs.Shutdown(ctx))
	}

	agg := health.NewAggregator()
	store, err := newStore(ctx, cfg, logger, agg)
	if err != nil {
		return nil, errors.Join(err, obs.Shutdown(ctx))
	}
	if err := os.MkdirAll(cfg.WorkRoot, 0o755); err != nil {
		return nil, errors.Join(fmt.Errorf("config: work root: %w", err), obs.Shutdown(ctx))
	}
	agg.Register(health.NewDirChecker("work-root", cfg.WorkRoot))

	opts := []run.Option{
		run.WithLogger(logger),
		run.WithMiddleware(middleware),
	}
	if store != nil {
		opts = append(opts, run.WithStore(store))
	}
	opts = append(opts, backendOptions(cfg.Execution, logger, agg)...)

	return &Runtime{
		Config:     cfg,
		Observer:   obs,
		Logger:     logger,
		Store:      store,
		Dispatcher: run.NewDispatcher(cfg.WorkRoot, opts...),
		Health:     agg,
	}, nil
}

// Close flushes telemetry.
func (r *Runtime) Close(ctx context.Context) error {
	return r.Observer.Shutdown(ctx)
}

// newStore builds the configured store and registers its health checks.
// The none backend returns a nil store.
func newStore(ctx context.Context, cfg Config, logger observe.Logger, agg *health.Aggregator) (artifact.Store, error) {
	switch cfg.Store.Backend {
	case StoreLocal:
		agg.Register(health.NewDirChecker("cache-root", cfg.CacheRoot))
		return artifact.NewLocalStore(cfg.CacheRoot), nil

	case StoreRemote:
		src, err := auth.NewTokenSource(cfg.Store.Remote.Auth)
		if err != nil {
			return nil, err
		}
		client := auth.NewClient(src, nil)
		store, err := artifact.NewRemoteStore(artifact.RemoteConfig{
			BaseURL:     cfg.Store.Remote.URL,
			Client:      client,
			Executor:    newExecutor(cfg.Store.Remote, logger),
			Concurrency: cfg.Store.Remote.Concurrency,
			Logger:      logger,
		})
		if err != nil {
			return nil, err
		}
		agg.Register(health.NewHTTPChecker("artifact-service", cfg.Store.Remote.URL, client))
		return store, nil

	case StoreObject:
		agg.Register(health.NewDirChecker("cache-root", cfg.CacheRoot))
		store, err := artifact.NewObjectStore(ctx, cfg.Store.Object, cache.NewFileTable(cfg.CacheRoot))
		if err != nil {
			return nil, err
		}
		agg.Register(store.HealthChecker())
		return store, nil

	default:
		return nil, nil
	}
}

// newExecutor stacks rate limiting, circuit breaking, retries and a
// per-attempt timeout for artifact service calls.
func newExecutor(cfg RemoteConfig, logger observe.Logger) *resilience.Executor {
	opts := []resilience.ExecutorOption{
		resilience.WithRetry(resilience.NewRetry(resilience.RetryConfig{
			MaxAttempts:  cfg.Retry.MaxAttempts,
			InitialDelay: cfg.Retry.InitialDelay,
			MaxDelay:     cfg.Retry.MaxDelay,
			Jitter:       true,
		})),
		resilience.WithCircuitBreaker(resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			MaxFailures:  cfg.Breaker.MaxFailures,
			ResetTimeout: cfg.Breaker.ResetTimeout,
			OnStateChange: func(from, to resilience.State) {
				logger.Warn(context.Background(), "artifact service circuit changed",
					observe.Field{Key: "from", Value: from.String()},
					observe.Field{Key: "to", Value: to.String()},
				)
			},
		})),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, resilience.WithTimeout(cfg.Timeout))
	}
	if cfg.RateLimit > 0 {
		opts = append(opts, resilience.WithRateLimiter(resilience.NewRateLimiter(resilience.RateLimiterConfig{
			Rate: cfg.RateLimit,
		})))
	}
	return resilience.NewExecutor(opts...)
}

// backendOptions registers a backend for every venue. Queued and trusted
// venues share one submitter. Job output goes to stderr; stdout carries
// the run summary.
func backendOptions(cfg ExecutionConfig, logger observe.Logger, agg *health.Aggregator) []run.Option {
	submitter := backend.NewCommandSubmitter(cfg.Submit, logger)
	submitter.Stdout = os.Stderr
	trusted := &backend.Trusted{Submitter: submitter, HelperDir: cfg.HelperDir, Logger: logger}

	agg.Register(health.NewCheckerFunc("submit", func(context.Context) health.Result {
		if submitter.Available() {
			return health.Healthy("submit found")
		}
		return health.Degraded(fmt.Sprintf("%s not found; runs use the noSubmit venue", submitter.Path))
	}))

	return []run.Option{
		run.WithSubmitAvailable(submitter.Available()),
		run.WithBackend(run.VenueNoSubmit, &backend.Process{Engine: cfg.Engine, Stdout: os.Stderr}),
		run.WithBackend(run.VenueLocal, &backend.LocalQueue{Submitter: submitter, Engine: cfg.Engine}),
		run.WithBackend(run.VenueRemote, &backend.RemoteQueue{Submitter: submitter}),
		run.WithBackend(run.VenueTrustedLocal, trusted),
		run.WithBackend(run.VenueTrustedRemote, trusted),
	}
}
