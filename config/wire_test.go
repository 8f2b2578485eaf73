package config

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonwraymond/simrun/artifact"
	"github.com/jonwraymond/simrun/health"
	"github.com/jonwraymond/simrun/run"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	cfg := Default()
	cfg.CacheRoot = t.TempDir()
	cfg.WorkRoot = filepath.Join(t.TempDir(), "results")
	cfg.Execution.Submit = filepath.Join(t.TempDir(), "no-submit")
	cfg.Observe.Output = &bytes.Buffer{}
	return cfg
}

func TestBuild_Local(t *testing.T) {
	ctx := context.Background()
	rt, err := Build(ctx, testConfig(t))
	require.NoError(t, err)
	defer rt.Close(ctx)

	_, ok := rt.Store.(*artifact.LocalStore)
	assert.True(t, ok)
	assert.ElementsMatch(t, []string{"cache-root", "work-root", "submit"}, rt.Health.CheckerNames())

	report := rt.Health.Run(ctx)
	for _, c := range report.Checks {
		if c.Name == "submit" {
			assert.Equal(t, health.StatusDegraded, c.Status)
		}
	}
}

func TestBuild_None(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Store.Backend = StoreNone

	rt, err := Build(ctx, cfg)
	require.NoError(t, err)
	defer rt.Close(ctx)
	assert.Nil(t, rt.Store)
}

func TestBuild_Remote(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Store.Backend = StoreRemote
	cfg.Store.Remote.URL = srv.URL + "/squid/"
	cfg.Store.Remote.RateLimit = 100
	cfg.Store.Remote.Auth.Type = "bearer"
	cfg.Store.Remote.Auth.Token = "tok"

	rt, err := Build(ctx, cfg)
	require.NoError(t, err)
	defer rt.Close(ctx)

	_, ok := rt.Store.(*artifact.RemoteStore)
	assert.True(t, ok)

	res, err := rt.Health.Check(ctx, "artifact-service")
	require.NoError(t, err)
	assert.Equal(t, health.StatusHealthy, res.Status)
	assert.Equal(t, "Bearer tok", gotAuth)
}

func TestBuild_Invalid(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.Backend = "ftp"
	_, err := Build(context.Background(), cfg)
	require.ErrorIs(t, err, ErrInvalidConfig)
}

// TestBuild_RunsThroughCache drives a full run with a stand-in notebook
// engine: submit is absent, so runs use the noSubmit venue.
func TestBuild_RunsThroughCache(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	engine := filepath.Join(t.TempDir(), "engine.sh")
	require.NoError(t, os.WriteFile(engine, []byte(`#!/bin/sh
cat > "$2" <<'NB'
{"cells": [{"outputs": [{"data": {"application/scrapbook.scrap.json+json": {"name": "T", "data": 300, "encoder": "json"}}}]}]}
NB
`), 0o755))
	cfg.Execution.Engine = engine

	toolDir := t.TempDir()
	notebook := filepath.Join(toolDir, "diffusion.ipynb")
	require.NoError(t, os.WriteFile(notebook, []byte(`{"cells": []}`), 0o644))

	rt, err := Build(ctx, cfg)
	require.NoError(t, err)
	defer rt.Close(ctx)

	req := run.Request{
		Tool:   run.Tool{Name: "diffusion", Revision: "1.0", Notebook: notebook, Outputs: []string{"T"}},
		Inputs: run.Values(map[string]any{"T": 300}),
	}

	first, err := rt.Dispatcher.Run(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, run.VenueNoSubmit, first.Venue)
	assert.True(t, first.Executed)
	assert.Empty(t, first.Missing)
	require.NotNil(t, first.Entry)

	second, err := rt.Dispatcher.Run(ctx, req)
	require.NoError(t, err)
	assert.True(t, second.Cached)

	v, err := second.Read("T", false, false)
	require.NoError(t, err)
	assert.Equal(t, 300.0, v)
}
