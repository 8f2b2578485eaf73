package artifact

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/simrun/cache"
	"github.com/jonwraymond/simrun/health"
)

// EntryMarker is written last into an entry, under an object prefix or an
// entry directory. An entry without it is incomplete and reads as a miss.
const EntryMarker = ".entry"

// ObjectConfig configures an ObjectStore.
type ObjectConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Secure    bool   `yaml:"secure"`

	// Prefix is prepended to every object name.
	Prefix string `yaml:"prefix"`

	// Concurrency bounds parallel transfers.
	// Default: 4
	Concurrency int `yaml:"concurrency"`
}

// objectClient is the subset of *minio.Client the store uses.
type objectClient interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	StatObject(ctx context.Context, bucket, object string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	ListObjects(ctx context.Context, bucket string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	FGetObject(ctx context.Context, bucket, object, filePath string, opts minio.GetObjectOptions) error
	FPutObject(ctx context.Context, bucket, object, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	PutObject(ctx context.Context, bucket, object string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// ObjectStore keeps entries in an S3-compatible bucket:
//
//	<prefix>/<name>/<revision>/<key>/...
//	<prefix>/<name>/<revision>/<key>/.entry
//
// Keys come from a cache.Deriver over table; a key is occupied when any
// object exists under its prefix. Reads download real copies.
//
// Object stores have no atomic create, so conflict detection is a check of
// the marker before upload. Two writers racing past the check both upload
// identical content for the same key.
type ObjectStore struct {
	client      objectClient
	bucket      string
	prefix      string
	concurrency int
	deriver     *cache.Deriver
}

// NewObjectStore connects to the bucket, creating it if needed. table holds
// the key memo table; it is usually a cache.FileTable on local disk.
func NewObjectStore(ctx context.Context, cfg ObjectConfig, table cache.Table) (*ObjectStore, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, errors.New("artifact: object store endpoint is required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("artifact: object store client: %w", err)
	}
	return newObjectStore(ctx, client, cfg, table)
}

func newObjectStore(ctx context.Context, client objectClient, cfg ObjectConfig, table cache.Table) (*ObjectStore, error) {
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		bucket = "simtool-cache"
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("artifact: bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("artifact: make bucket %s: %w", bucket, err)
		}
	}

	s := &ObjectStore{
		client:      client,
		bucket:      bucket,
		prefix:      strings.Trim(cfg.Prefix, "/"),
		concurrency: cfg.Concurrency,
	}
	s.deriver = cache.NewDeriver(table, s.occupied)
	return s, nil
}

// Resolve derives the cache key for the inputs.
func (s *ObjectStore) Resolve(ctx context.Context, id cache.Identity, hashable map[string]any) (Ref, error) {
	key, err := s.deriver.Derive(ctx, id, hashable)
	if err != nil {
		return Ref{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return Ref{Identity: id, ID: string(key)}, nil
}

// Stat reports a hit when the entry marker exists.
func (s *ObjectStore) Stat(ctx context.Context, ref Ref) Lookup {
	_, l := s.stat(ctx, ref)
	return l
}

// Read downloads the entry into workspace. A failed download leaves the
// workspace as it was.
func (s *ObjectStore) Read(ctx context.Context, ref Ref, workspace string) Lookup {
	prefix, l := s.stat(ctx, ref)
	if l.Status != StatusHit {
		return l
	}

	err := materialize(workspace, func(dir string) error {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.concurrency)
		for _, f := range l.Entry.Files {
			g.Go(func() error {
				dst := filepath.Join(dir, filepath.FromSlash(f.Path()))
				if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
					return err
				}
				return s.client.FGetObject(gctx, s.bucket, prefix+f.Path(), dst, minio.GetObjectOptions{})
			})
		}
		return g.Wait()
	})
	if err != nil {
		return Unavailable(err)
	}
	return l
}

// Write uploads names from workspace, then the entry marker. Directories
// are uploaded with their full structure.
func (s *ObjectStore) Write(ctx context.Context, ref Ref, workspace string, names []string) (*Entry, error) {
	if err := validateRef(ref); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	prefix := s.entryPrefix(ref)

	_, err := s.client.StatObject(ctx, s.bucket, prefix+EntryMarker, minio.StatObjectOptions{})
	switch {
	case err == nil:
		return nil, fmt.Errorf("%w: %s", ErrPublishConflict, ref)
	case !isNoSuchKey(err):
		return nil, fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	var uploads []upload
	for _, name := range dedupe(names) {
		src := filepath.Join(workspace, name)
		info, err := os.Stat(src)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrPublishFailed, err)
		}
		if !info.IsDir() {
			uploads = append(uploads, upload{file: fileFromRel(filepath.ToSlash(name)), path: src})
			continue
		}
		files, err := ListFiles(src)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrPublishFailed, err)
		}
		for _, f := range files {
			rel := path.Join(filepath.ToSlash(name), f.Path())
			uploads = append(uploads, upload{file: fileFromRel(rel), path: filepath.Join(src, filepath.FromSlash(f.Path()))})
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, u := range uploads {
		g.Go(func() error {
			_, err := s.client.FPutObject(gctx, s.bucket, prefix+u.file.Path(), u.path, minio.PutObjectOptions{})
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	files := make([]File, len(uploads))
	for i, u := range uploads {
		files[i] = u.file
	}
	sortFiles(files)

	marker, err := json.Marshal(entryRecord{
		Name:      ref.Identity.Name,
		Revision:  ref.Identity.Revision,
		Key:       ref.ID,
		Published: time.Now().UTC(),
		Files:     len(files),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	if _, err := s.client.PutObject(ctx, s.bucket, prefix+EntryMarker, bytes.NewReader(marker), int64(len(marker)),
		minio.PutObjectOptions{ContentType: "application/json"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	return &Entry{Ref: ref, Location: s.location(prefix), Files: files}, nil
}

// HealthChecker reports whether the bucket is reachable.
func (s *ObjectStore) HealthChecker() health.Checker {
	return health.NewCheckerFunc("object-store", func(ctx context.Context) health.Result {
		details := map[string]any{"bucket": s.bucket}
		ok, err := s.client.BucketExists(ctx, s.bucket)
		switch {
		case err != nil:
			return health.Unhealthy("bucket unreachable", err).WithDetails(details)
		case !ok:
			return health.Degraded("bucket does not exist").WithDetails(details)
		default:
			return health.Healthy("bucket reachable").WithDetails(details)
		}
	})
}

type entryRecord struct {
	Name      string    `json:"name"`
	Revision  string    `json:"revision"`
	Key       string    `json:"key"`
	Published time.Time `json:"published"`
	Files     int       `json:"files"`
}

func (s *ObjectStore) stat(ctx context.Context, ref Ref) (string, Lookup) {
	if err := validateRef(ref); err != nil {
		return "", Unavailable(err)
	}
	prefix := s.entryPrefix(ref)

	if _, err := s.client.StatObject(ctx, s.bucket, prefix+EntryMarker, minio.StatObjectOptions{}); err != nil {
		if isNoSuchKey(err) {
			return "", Miss()
		}
		return "", Unavailable(err)
	}

	var files []File
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return "", Unavailable(obj.Err)
		}
		rel := strings.TrimPrefix(obj.Key, prefix)
		if rel == EntryMarker || rel == "" {
			continue
		}
		files = append(files, fileFromRel(rel))
	}
	sortFiles(files)
	return prefix, Hit(&Entry{Ref: ref, Location: s.location(prefix), Files: files})
}

func (s *ObjectStore) occupied(ctx context.Context, id cache.Identity, key cache.Key) (bool, error) {
	prefix := s.entryPrefix(Ref{Identity: id, ID: string(key)})
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, MaxKeys: 1}) {
		if obj.Err != nil {
			return false, obj.Err
		}
		return true, nil
	}
	return false, nil
}

func (s *ObjectStore) entryPrefix(ref Ref) string {
	p := path.Join(ref.Identity.Name, ref.Identity.Revision, ref.ID) + "/"
	if s.prefix != "" {
		p = s.prefix + "/" + p
	}
	return p
}

func (s *ObjectStore) location(prefix string) string {
	return "s3://" + s.bucket + "/" + prefix
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}

var _ Store = (*ObjectStore)(nil)
