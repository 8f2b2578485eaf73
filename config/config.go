package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/simrun/artifact"
	"github.com/jonwraymond/simrun/auth"
	"github.com/jonwraymond/simrun/observe"
	"github.com/jonwraymond/simrun/run"
)

// Store backends.
const (
	StoreLocal  = "local"
	StoreRemote = "remote"
	StoreObject = "object"
	StoreNone   = "none"
)

// ValidStores lists the accepted store backends.
var ValidStores = []string{StoreLocal, StoreRemote, StoreObject, StoreNone}

// Config is the complete simrun configuration.
type Config struct {
	// CacheRoot holds the local cache and the key memo tables.
	// Default: ~/data
	CacheRoot string `yaml:"cache_root"`

	// WorkRoot holds run workspaces.
	// Default: ~/data/results
	WorkRoot string `yaml:"work_root"`

	Store     StoreConfig     `yaml:"store"`
	Execution ExecutionConfig `yaml:"execution"`
	Observe   observe.Config  `yaml:"observe"`
	Secrets   SecretsConfig   `yaml:"secrets"`
}

// StoreConfig selects and configures the artifact store.
type StoreConfig struct {
	// Backend is one of local, remote, object, none. Default: local
	Backend string `yaml:"backend"`

	Remote RemoteConfig          `yaml:"remote"`
	Object artifact.ObjectConfig `yaml:"object"`
}

// RemoteConfig configures the artifact web service client.
type RemoteConfig struct {
	URL string `yaml:"url"`

	// Timeout bounds each request. Default: 30s
	Timeout time.Duration `yaml:"timeout"`

	// Concurrency bounds parallel downloads. Default: 4
	Concurrency int `yaml:"concurrency"`

	Retry     RetryConfig   `yaml:"retry"`
	Breaker   BreakerConfig `yaml:"breaker"`
	RateLimit float64       `yaml:"rate_limit"` // requests per second, 0 disables

	Auth auth.Config `yaml:"auth"`
}

// RetryConfig configures request retries.
type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
}

// BreakerConfig configures the circuit breaker.
type BreakerConfig struct {
	MaxFailures  int           `yaml:"max_failures"`
	ResetTimeout time.Duration `yaml:"reset_timeout"`
}

// ExecutionConfig configures venues and backends.
type ExecutionConfig struct {
	// Venue forces a venue for every run. Empty selects per run.
	Venue string `yaml:"venue"`

	// NoCache disables caching for every run.
	NoCache bool `yaml:"no_cache"`

	// Engine is the notebook engine. Default: papermill
	Engine string `yaml:"engine"`

	// Submit is the submission client. Default: submit
	Submit string `yaml:"submit"`

	// HelperDir holds the trusted helper scripts. Default: /apps/bin
	HelperDir string `yaml:"helper_dir"`
}

// SecretsConfig configures secret resolution.
type SecretsConfig struct {
	// Strict fails on unset ${VAR} references.
	Strict bool `yaml:"strict"`

	// Providers configures secretref providers by name.
	Providers map[string]map[string]any `yaml:"providers"`
}

// Default returns the default configuration.
func Default() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	data := filepath.Join(home, "data")
	return Config{
		CacheRoot: data,
		WorkRoot:  filepath.Join(data, "results"),
		Store: StoreConfig{
			Backend: StoreLocal,
			Remote: RemoteConfig{
				Timeout:     30 * time.Second,
				Concurrency: 4,
				Retry: RetryConfig{
					MaxAttempts:  3,
					InitialDelay: 200 * time.Millisecond,
					MaxDelay:     5 * time.Second,
				},
				Breaker: BreakerConfig{
					MaxFailures:  5,
					ResetTimeout: 30 * time.Second,
				},
			},
			Object: artifact.ObjectConfig{
				Bucket:      "simtool-cache",
				Concurrency: 4,
			},
		},
		Execution: ExecutionConfig{
			Engine:    "papermill",
			Submit:    "submit",
			HelperDir: "/apps/bin",
		},
		Observe: observe.Config{
			ServiceName: "simrun",
			Tracing:     observe.TracingConfig{Exporter: "none", SamplePct: 1.0},
			Metrics:     observe.MetricsConfig{Exporter: "none"},
			Logging:     observe.LoggingConfig{Enabled: true, Level: "info"},
		},
	}
}

// Load reads the YAML file at path over the defaults, then applies the
// environment. An empty path loads defaults and environment only.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("%w: parse %s: %w", ErrInvalidConfig, path, err)
		}
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// ApplyEnv overrides fields from SIMRUN_* environment variables.
func (c *Config) ApplyEnv() {
	c.CacheRoot = getenv("SIMRUN_CACHE_ROOT", c.CacheRoot)
	c.WorkRoot = getenv("SIMRUN_WORK_ROOT", c.WorkRoot)

	c.Store.Backend = getenv("SIMRUN_STORE", c.Store.Backend)
	c.Store.Remote.URL = getenv("SIMRUN_REMOTE_URL", c.Store.Remote.URL)
	c.Store.Remote.Timeout = getenvDuration("SIMRUN_REMOTE_TIMEOUT", c.Store.Remote.Timeout)
	if token := os.Getenv("SIMRUN_REMOTE_TOKEN"); token != "" {
		c.Store.Remote.Auth.Token = token
		if c.Store.Remote.Auth.Type == "" || c.Store.Remote.Auth.Type == "none" {
			c.Store.Remote.Auth.Type = "bearer"
		}
	}
	c.Store.Object.Endpoint = getenv("SIMRUN_OBJECT_ENDPOINT", c.Store.Object.Endpoint)
	c.Store.Object.AccessKey = getenv("SIMRUN_OBJECT_ACCESS_KEY", c.Store.Object.AccessKey)
	c.Store.Object.SecretKey = getenv("SIMRUN_OBJECT_SECRET_KEY", c.Store.Object.SecretKey)
	c.Store.Object.Bucket = getenv("SIMRUN_OBJECT_BUCKET", c.Store.Object.Bucket)
	c.Store.Object.Secure = getenvBool("SIMRUN_OBJECT_SECURE", c.Store.Object.Secure)

	c.Execution.Venue = getenv("SIMRUN_VENUE", c.Execution.Venue)
	c.Execution.NoCache = getenvBool("SIMRUN_NO_CACHE", c.Execution.NoCache)
	c.Execution.Engine = getenv("SIMRUN_ENGINE", c.Execution.Engine)
	c.Execution.Submit = getenv("SIMRUN_SUBMIT", c.Execution.Submit)
	c.Execution.HelperDir = getenv("SIMRUN_HELPER_DIR", c.Execution.HelperDir)

	c.Observe.Logging.Level = getenv("SIMRUN_LOG_LEVEL", c.Observe.Logging.Level)
}

// Validate checks the configuration. All problems are reported together.
func (c *Config) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if c.WorkRoot == "" {
		invalid("work_root is required")
	}
	if !slices.Contains(ValidStores, c.Store.Backend) {
		invalid("unknown store backend %q", c.Store.Backend)
	}

	switch c.Store.Backend {
	case StoreLocal, StoreObject:
		if c.CacheRoot == "" {
			invalid("cache_root is required for the %s store", c.Store.Backend)
		}
	}
	if c.Store.Backend == StoreRemote {
		if c.Store.Remote.URL == "" {
			invalid("store.remote.url is required")
		}
		if _, err := auth.NewTokenSource(c.Store.Remote.Auth); err != nil {
			errs = append(errs, fmt.Errorf("%w: store.remote.auth: %w", ErrInvalidConfig, err))
		}
	}
	if c.Store.Backend == StoreObject {
		if c.Store.Object.Endpoint == "" {
			invalid("store.object.endpoint is required")
		}
		if c.Store.Object.Bucket == "" {
			invalid("store.object.bucket is required")
		}
	}

	if _, err := run.ParseVenue(c.Execution.Venue); err != nil {
		errs = append(errs, fmt.Errorf("%w: execution.venue: %w", ErrInvalidConfig, err))
	}
	if err := c.Observe.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("%w: observe: %w", ErrInvalidConfig, err))
	}
	return errors.Join(errs...)
}

func getenv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getenvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
