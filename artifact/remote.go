package artifact

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/simrun/cache"
	"github.com/jonwraymond/simrun/observe"
	"github.com/jonwraymond/simrun/resilience"
)

// RemoteConfig configures a RemoteStore.
type RemoteConfig struct {
	// BaseURL is the artifact service root, e.g. https://host/squid/.
	BaseURL string

	// Client sends requests. Wrap its transport with auth.Transport to
	// authenticate. Default: http.DefaultClient
	Client *http.Client

	// Executor applies retry, circuit breaking and per-call timeouts.
	// Nil sends each request once.
	Executor *resilience.Executor

	// Concurrency bounds parallel downloads.
	// Default: 4
	Concurrency int

	// Logger receives warnings about files the protocol cannot carry.
	Logger observe.Logger
}

// RemoteStore is a Store backed by the artifact web service.
//
// The service identifies an entry by a signature id it derives from the
// tool identity and inputs:
//
//	GET /squidid                  {simtoolName, simtoolRevision, inputs} -> {id}
//	GET /squidlist                {squidid} -> [{id, name}]
//	GET /files/{id}?download=true -> file bytes
//	PUT /squidlist                multipart: squidid + file parts
//
// File names carry at most one directory level, joined by NestingMarker.
// Transport errors and 5xx responses are retried by the Executor; 4xx
// responses are not.
type RemoteStore struct {
	base        *url.URL
	client      *http.Client
	executor    *resilience.Executor
	concurrency int
	logger      observe.Logger
}

type remoteFile struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// NewRemoteStore validates cfg and creates a store.
func NewRemoteStore(cfg RemoteConfig) (*RemoteStore, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("artifact: invalid remote base url %q", cfg.BaseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	if cfg.Client == nil {
		cfg.Client = http.DefaultClient
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Logger == nil {
		cfg.Logger = observe.NopLogger()
	}
	return &RemoteStore{
		base:        base,
		client:      cfg.Client,
		executor:    cfg.Executor,
		concurrency: cfg.Concurrency,
		logger:      cfg.Logger,
	}, nil
}

// Resolve asks the service for the signature id of the inputs.
func (s *RemoteStore) Resolve(ctx context.Context, id cache.Identity, hashable map[string]any) (Ref, error) {
	body := map[string]any{
		"simtoolName":     id.Name,
		"simtoolRevision": id.Revision,
		"inputs":          hashable,
	}
	out, err := getJSON[struct {
		ID json.RawMessage `json:"id"`
	}](ctx, s, "squidid", body)
	if err != nil {
		return Ref{}, fmt.Errorf("%w: resolve signature: %w", ErrUnavailable, err)
	}

	sid := signatureID(out.ID)
	if sid == "" {
		return Ref{}, fmt.Errorf("%w: resolve signature: empty id", ErrUnavailable)
	}
	return Ref{Identity: id, ID: sid}, nil
}

// Stat lists the files registered under the signature id.
func (s *RemoteStore) Stat(ctx context.Context, ref Ref) Lookup {
	_, _, l := s.stat(ctx, ref)
	return l
}

// Read downloads every file of the entry into workspace. Any failure makes
// the lookup Unavailable, which callers treat as a miss, and leaves the
// workspace as it was.
func (s *RemoteStore) Read(ctx context.Context, ref Ref, workspace string) Lookup {
	listed, files, l := s.stat(ctx, ref)
	if l.Status != StatusHit {
		return l
	}

	err := materialize(workspace, func(dir string) error {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.concurrency)
		for i, rf := range listed {
			f := files[i]
			g.Go(func() error {
				return s.download(gctx, rf.ID, dir, f)
			})
		}
		return g.Wait()
	})
	if err != nil {
		return Unavailable(err)
	}
	return l
}

// Write uploads names from workspace in a single multipart request.
//
// Top-level files and files one directory down are uploaded. A directory
// name contributes the regular files directly inside it; anything nested
// deeper is skipped with a warning.
func (s *RemoteStore) Write(ctx context.Context, ref Ref, workspace string, names []string) (*Entry, error) {
	if ref.ID == "" {
		return nil, fmt.Errorf("%w: %w: empty signature id", ErrPublishFailed, ErrInvalidRef)
	}

	uploads, err := s.collectUploads(ctx, workspace, names)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	err = s.execute(ctx, func(ctx context.Context) error {
		body, contentType, err := multipartBody(ref.ID, uploads)
		if err != nil {
			return resilience.Permanent(err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.endpoint("squidlist"), body)
		if err != nil {
			return resilience.Permanent(err)
		}
		req.Header.Set("Content-Type", contentType)
		return s.send(req, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	files := make([]File, len(uploads))
	for i, u := range uploads {
		files[i] = u.file
	}
	sortFiles(files)
	return &Entry{Ref: ref, Location: s.endpoint("squidlist") + "#" + ref.ID, Files: files}, nil
}

// stat lists the entry. On a hit it also returns the listing with files
// decoded in listing order, for download.
func (s *RemoteStore) stat(ctx context.Context, ref Ref) ([]remoteFile, []File, Lookup) {
	if ref.ID == "" {
		return nil, nil, Unavailable(ErrInvalidRef)
	}

	listed, err := getJSON[[]remoteFile](ctx, s, "squidlist", map[string]any{"squidid": ref.ID})
	if err != nil {
		return nil, nil, Unavailable(fmt.Errorf("list %s: %w", ref.ID, err))
	}
	if len(listed) == 0 {
		return nil, nil, Miss()
	}

	files := make([]File, len(listed))
	for i, rf := range listed {
		f, err := ParseWireName(rf.Name)
		if err != nil {
			return nil, nil, Unavailable(err)
		}
		if rf.ID == "" {
			return nil, nil, Unavailable(fmt.Errorf("file %q has no id", rf.Name))
		}
		files[i] = f
	}

	sorted := append([]File(nil), files...)
	sortFiles(sorted)
	entry := &Entry{Ref: ref, Location: s.endpoint("squidlist") + "#" + ref.ID, Files: sorted}
	return listed, files, Hit(entry)
}

func (s *RemoteStore) download(ctx context.Context, id, workspace string, f File) error {
	dir := workspace
	if f.Dir != "" {
		dir = filepath.Join(workspace, f.Dir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	dst := filepath.Join(dir, f.Name)

	return s.execute(ctx, func(ctx context.Context) error {
		u := s.endpoint("files/"+url.PathEscape(id)) + "?download=true"
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return resilience.Permanent(err)
		}
		req.Header.Set("Cache-Control", "no-cache")
		return s.send(req, func(body io.Reader) error {
			out, err := os.Create(dst)
			if err != nil {
				return resilience.Permanent(err)
			}
			if _, err := io.Copy(out, body); err != nil {
				out.Close()
				return err
			}
			return out.Close()
		})
	})
}

type upload struct {
	file File
	path string
}

func (s *RemoteStore) collectUploads(ctx context.Context, workspace string, names []string) ([]upload, error) {
	var uploads []upload
	for _, name := range dedupe(names) {
		src := filepath.Join(workspace, name)
		info, err := os.Stat(src)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}

		if !info.IsDir() {
			f := fileFromRel(filepath.ToSlash(name))
			if _, err := f.WireName(); err != nil {
				s.logger.Warn(ctx, "file too deeply nested for remote cache, skipped", observe.Field{Key: "file", Value: name})
				continue
			}
			uploads = append(uploads, upload{file: f, path: src})
			continue
		}

		if strings.ContainsRune(filepath.ToSlash(name), '/') {
			s.logger.Warn(ctx, "directory too deeply nested for remote cache, skipped", observe.Field{Key: "dir", Value: name})
			continue
		}
		entries, err := os.ReadDir(src)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			p := filepath.Join(src, e.Name())
			fi, err := os.Stat(p)
			if err != nil {
				return nil, err
			}
			if fi.IsDir() {
				s.logger.Warn(ctx, "directory too deeply nested for remote cache, skipped",
					observe.Field{Key: "dir", Value: filepath.Join(name, e.Name())})
				continue
			}
			uploads = append(uploads, upload{file: File{Dir: name, Name: e.Name()}, path: p})
		}
	}
	return uploads, nil
}

func multipartBody(sid string, uploads []upload) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("squidid", sid); err != nil {
		return nil, "", err
	}
	for _, u := range uploads {
		wire, err := u.file.WireName()
		if err != nil {
			return nil, "", err
		}
		part, err := w.CreateFormFile("file", wire)
		if err != nil {
			return nil, "", err
		}
		in, err := os.Open(u.path)
		if err != nil {
			return nil, "", err
		}
		_, err = io.Copy(part, in)
		in.Close()
		if err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

// getJSON sends a GET carrying a JSON body, as the service expects, and
// decodes the JSON response as T. Every attempt decodes into a fresh value.
func getJSON[T any](ctx context.Context, s *RemoteStore, path string, body any) (T, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		var zero T
		return zero, err
	}
	return resilience.Do(ctx, s.executor, func(ctx context.Context) (T, error) {
		var out T
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint(path), bytes.NewReader(payload))
		if err != nil {
			return out, resilience.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		err = s.send(req, func(r io.Reader) error {
			if err := json.NewDecoder(r).Decode(&out); err != nil {
				return resilience.Permanent(fmt.Errorf("decode %s response: %w", path, err))
			}
			return nil
		})
		return out, err
	})
}

// StatusError reports a non-200 response from the artifact service.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Code, http.StatusText(e.Code))
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// send performs req and hands a 200 body to handle. 5xx responses come back
// retryable; other non-200 responses are permanent.
func (s *RemoteStore) send(req *http.Request, handle func(io.Reader) error) error {
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		serr := &StatusError{
			Method: req.Method,
			Path:   req.URL.Path,
			Code:   resp.StatusCode,
			Body:   strings.TrimSpace(string(snippet)),
		}
		if resp.StatusCode >= 500 {
			return serr
		}
		return resilience.Permanent(serr)
	}
	if handle == nil {
		return nil
	}
	return handle(resp.Body)
}

func (s *RemoteStore) execute(ctx context.Context, op func(context.Context) error) error {
	if s.executor == nil {
		return op(ctx)
	}
	return s.executor.Execute(ctx, op)
}

func (s *RemoteStore) endpoint(path string) string {
	return s.base.JoinPath(path).String()
}

// signatureID accepts the id as a JSON string or number.
func signatureID(raw json.RawMessage) string {
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str
	}
	var num json.Number
	if err := json.Unmarshal(raw, &num); err == nil {
		return num.String()
	}
	return ""
}

var _ Store = (*RemoteStore)(nil)
