package observe_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/jonwraymond/simrun/observe"
)

func ExampleNewObserver() {
	cfg := observe.Config{
		ServiceName: "simrun",
		Version:     "1.0.0",
		Tracing:     observe.TracingConfig{Enabled: true, Exporter: "none"},
		Logging:     observe.LoggingConfig{Enabled: true, Level: "info"},
	}

	ctx := context.Background()
	obs, err := observe.NewObserver(ctx, cfg)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	defer func() {
		_ = obs.Shutdown(ctx)
	}()

	fmt.Println("Observer created successfully")
	// Output:
	// Observer created successfully
}

func ExampleNewObserver_validation() {
	_, err := observe.NewObserver(context.Background(), observe.Config{})
	if errors.Is(err, observe.ErrMissingServiceName) {
		fmt.Println("Caught: missing service name")
	}
	// Output:
	// Caught: missing service name
}

func ExampleRunMeta_SpanName() {
	meta := observe.RunMeta{Tool: "diffusion", Revision: "1.0", Venue: "local"}
	fmt.Println(meta.SpanName())
	fmt.Println(meta.ToolID())
	// Output:
	// simtool.run.diffusion
	// diffusion@1.0
}

func ExampleLogger_WithRun() {
	var buf bytes.Buffer
	logger := observe.NewLoggerWithWriter("info", &buf).WithRun(observe.RunMeta{
		Tool:     "diffusion",
		Revision: "1.0",
	})

	logger.Warn(context.Background(), "declared outputs missing",
		observe.Field{Key: "missing", Value: []string{"b"}},
	)

	fmt.Println("Contains tool.revision:", bytes.Contains(buf.Bytes(), []byte(`"tool.revision":"1.0"`)))
	fmt.Println("Contains missing:", bytes.Contains(buf.Bytes(), []byte(`"missing":["b"]`)))
	// Output:
	// Contains tool.revision: true
	// Contains missing: true
}

func ExampleMiddleware_Wrap() {
	ctx := context.Background()

	obs, _ := observe.NewObserver(ctx, observe.Config{
		ServiceName: "example",
		Tracing:     observe.TracingConfig{Enabled: true, Exporter: "none"},
		Metrics:     observe.MetricsConfig{Enabled: true, Exporter: "none"},
	})
	defer func() {
		_ = obs.Shutdown(ctx)
	}()

	mw, _ := observe.MiddlewareFromObserver(obs)

	run := mw.Wrap(func(ctx context.Context, meta observe.RunMeta) (observe.Outcome, error) {
		return observe.Outcome{Lookup: observe.LookupHit}, nil
	})

	outcome, err := run(ctx, observe.RunMeta{Tool: "diffusion", Revision: "1.0"})
	fmt.Println(outcome.Lookup, err)
	// Output:
	// hit <nil>
}

func ExampleParseLogLevel() {
	for _, s := range []string{"debug", "info", "warn", "error", "unknown"} {
		fmt.Printf("%s -> %s\n", s, observe.ParseLogLevel(s))
	}
	// Output:
	// debug -> debug
	// info -> info
	// warn -> warn
	// error -> error
	// unknown -> info
}
