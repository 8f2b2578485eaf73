package run

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jonwraymond/simrun/artifact"
	"github.com/jonwraymond/simrun/backend"
	"github.com/jonwraymond/simrun/cache"
)

// notebookJSON renders an executed notebook recording values as json
// scraps and files as file scraps.
func notebookJSON(t *testing.T, values map[string]any, files []string) []byte {
	t.Helper()
	var outputs []any
	scrap := func(name string, data any, encoder string) {
		outputs = append(outputs, map[string]any{
			"output_type": "display_data",
			"data": map[string]any{
				"application/scrapbook.scrap.json+json": map[string]any{
					"name": name, "data": data, "encoder": encoder, "version": 1,
				},
			},
			"metadata": map[string]any{"scrapbook": map[string]any{"name": name, "data": true, "display": false}},
		})
	}
	for name, v := range values {
		scrap(name, v, "json")
	}
	for _, f := range files {
		scrap("file:"+f, f, "file")
	}
	data, err := json.Marshal(map[string]any{
		"cells":    []any{map[string]any{"cell_type": "code", "outputs": outputs}},
		"nbformat": 4,
	})
	require.NoError(t, err)
	return data
}

// fakeBackend writes an executed notebook into the workspace.
type fakeBackend struct {
	t *testing.T

	mu       sync.Mutex
	requests []backend.Request

	exitCode int
	err      error
	values   map[string]any
	files    map[string]string

	// inspect runs before the notebook is written.
	inspect func(req backend.Request)
}

func newFakeBackend(t *testing.T) *fakeBackend {
	return &fakeBackend{
		t:      t,
		values: map[string]any{"profile": []any{1, 2, 3}},
		files:  map[string]string{"result.txt": "T=300"},
	}
}

func (b *fakeBackend) Execute(_ context.Context, req backend.Request) (backend.Result, error) {
	b.mu.Lock()
	b.requests = append(b.requests, req)
	b.mu.Unlock()

	if b.inspect != nil {
		b.inspect(req)
	}
	if b.err != nil {
		return backend.Result{}, b.err
	}
	b.deliver(req)
	return backend.Result{ExitCode: b.exitCode, Document: req.OutputPath()}, nil
}

func (b *fakeBackend) deliver(req backend.Request) {
	var files []string
	for name, content := range b.files {
		path := filepath.Join(req.Workspace, name)
		require.NoError(b.t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(b.t, os.WriteFile(path, []byte(content), 0o644))
		files = append(files, name)
	}
	require.NoError(b.t, os.WriteFile(req.OutputPath(), notebookJSON(b.t, b.values, files), 0o644))
}

func (b *fakeBackend) calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.requests)
}

// fakeTrusted answers the privileged cache check.
type fakeTrusted struct {
	*fakeBackend
	cached bool
	checks int
}

func (b *fakeTrusted) CheckCache(_ context.Context, req backend.Request) (bool, error) {
	b.checks++
	if b.cached {
		b.deliver(req)
	}
	return b.cached, nil
}

// stubStore scripts store answers.
type stubStore struct {
	resolveErr error
	read       artifact.Lookup
	writeErr   error
	writes     int
}

func (s *stubStore) Resolve(_ context.Context, id cache.Identity, _ map[string]any) (artifact.Ref, error) {
	if s.resolveErr != nil {
		return artifact.Ref{}, s.resolveErr
	}
	return artifact.Ref{Identity: id, ID: "stub"}, nil
}

func (s *stubStore) Stat(context.Context, artifact.Ref) artifact.Lookup { return s.read }

func (s *stubStore) Read(context.Context, artifact.Ref, string) artifact.Lookup { return s.read }

func (s *stubStore) Write(_ context.Context, ref artifact.Ref, _ string, _ []string) (*artifact.Entry, error) {
	s.writes++
	if s.writeErr != nil {
		return nil, s.writeErr
	}
	return &artifact.Entry{Ref: ref}, nil
}

// newTool lays out a tool directory: the notebook, a helper script and a
// data directory.
func newTool(t *testing.T) Tool {
	t.Helper()
	dir := t.TempDir()
	for rel, content := range map[string]string{
		"diffusion.ipynb":    `{"cells": []}`,
		"helper.py":          "print('help')",
		"data/mesh.txt":      "mesh",
		"data/deep/more.txt": "more",
	} {
		path := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return Tool{
		Name:     "diffusion",
		Revision: "1.0",
		Notebook: filepath.Join(dir, "diffusion.ipynb"),
		Outputs:  []string{"profile"},
	}
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}
