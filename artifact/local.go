package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/jonwraymond/simrun/cache"
)

// EntriesDirName is the directory under a LocalStore root holding entries.
const EntriesDirName = ".simtool_cache"

// LocalStore keeps entries on a filesystem shared by every user of the root:
//
//	<root>/.simtool_cache/<name>/<revision>/<key>/...
//	<root>/.simtool_cache_table/<name>/<revision>/...   (key memo table)
//
// Keys come from a cache.Deriver whose memo table lives next to the entries
// and which never mints a key whose entry directory already exists.
type LocalStore struct {
	root    string
	deriver *cache.Deriver
}

// LocalOption configures a LocalStore.
type LocalOption func(*localOptions)

type localOptions struct {
	table  cache.Table
	keyGen cache.KeyGenerator
}

// WithTable replaces the file-backed memo table.
func WithTable(t cache.Table) LocalOption {
	return func(o *localOptions) { o.table = t }
}

// WithLocalKeyGenerator replaces random key generation.
func WithLocalKeyGenerator(gen cache.KeyGenerator) LocalOption {
	return func(o *localOptions) { o.keyGen = gen }
}

// NewLocalStore creates a store rooted at root. Directories are created on
// first write.
func NewLocalStore(root string, opts ...LocalOption) *LocalStore {
	o := localOptions{table: cache.NewFileTable(root)}
	for _, opt := range opts {
		opt(&o)
	}

	s := &LocalStore{root: root}
	var dopts []cache.DeriverOption
	if o.keyGen != nil {
		dopts = append(dopts, cache.WithKeyGenerator(o.keyGen))
	}
	s.deriver = cache.NewDeriver(o.table, s.occupied, dopts...)
	return s
}

// Root returns the cache root.
func (s *LocalStore) Root() string {
	return s.root
}

// EntryDir returns the directory for ref.
func (s *LocalStore) EntryDir(ref Ref) string {
	return filepath.Join(s.root, EntriesDirName, ref.Identity.Name, ref.Identity.Revision, ref.ID)
}

// Resolve derives the cache key for the inputs.
func (s *LocalStore) Resolve(ctx context.Context, id cache.Identity, hashable map[string]any) (Ref, error) {
	key, err := s.deriver.Derive(ctx, id, hashable)
	if err != nil {
		return Ref{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return Ref{Identity: id, ID: string(key)}, nil
}

// Stat reports whether a complete entry exists. An entry directory without
// its marker is still being published, or was abandoned, and reads as a
// miss.
func (s *LocalStore) Stat(_ context.Context, ref Ref) Lookup {
	if err := validateRef(ref); err != nil {
		return Unavailable(err)
	}
	dir := s.EntryDir(ref)
	info, err := os.Stat(dir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return Miss()
	case err != nil:
		return Unavailable(err)
	case !info.IsDir():
		return Unavailable(fmt.Errorf("%s is not a directory", dir))
	}

	_, err = os.Stat(filepath.Join(dir, EntryMarker))
	switch {
	case errors.Is(err, os.ErrNotExist):
		return Miss()
	case err != nil:
		return Unavailable(err)
	}

	files, err := entryFiles(dir)
	if err != nil {
		return Unavailable(err)
	}
	return Hit(&Entry{Ref: ref, Location: dir, Files: files})
}

// Read links the entry into workspace. Entries are immutable, so links are
// safe to share between concurrent readers. The workspace is untouched
// unless every file links.
func (s *LocalStore) Read(ctx context.Context, ref Ref, workspace string) Lookup {
	l := s.Stat(ctx, ref)
	if l.Status != StatusHit {
		return l
	}
	err := materialize(workspace, func(dir string) error {
		if err := LinkTree(l.Entry.Location, dir); err != nil {
			return err
		}
		return os.Remove(filepath.Join(dir, EntryMarker))
	})
	if err != nil {
		return Unavailable(fmt.Errorf("materialize %s: %w", ref, err))
	}
	return l
}

// Write copies names from workspace into a new entry directory.
//
// Creating the entry directory is the only mutual exclusion between
// writers: if it already exists, Write fails with ErrPublishConflict and
// leaves the existing entry untouched. Directories in names are copied with
// their structure. Names that do not exist in workspace are skipped. The
// entry marker is written last; a failed Write removes the directory.
func (s *LocalStore) Write(_ context.Context, ref Ref, workspace string, names []string) (_ *Entry, err error) {
	if err := validateRef(ref); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	dir := s.EntryDir(ref)
	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	if err := os.Mkdir(dir, 0o755); err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("%w: %s", ErrPublishConflict, ref)
		}
		return nil, fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	defer func() {
		if err != nil {
			_ = os.RemoveAll(dir)
		}
	}()

	for _, name := range dedupe(names) {
		src := filepath.Join(workspace, name)
		info, err := os.Stat(src)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrPublishFailed, err)
		}

		dst := filepath.Join(dir, filepath.Dir(name))
		if info.IsDir() {
			dst = filepath.Join(dir, name)
		}
		if err := os.MkdirAll(dst, 0o755); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrPublishFailed, err)
		}
		if err := CopyTree(src, dst); err != nil {
			return nil, fmt.Errorf("%w: copy %s: %w", ErrPublishFailed, name, err)
		}
	}

	if err := WidenPermissions(dir); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	files, err := entryFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	if err := writeMarker(dir, ref, len(files)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return &Entry{Ref: ref, Location: dir, Files: files}, nil
}

func writeMarker(dir string, ref Ref, files int) error {
	data, err := json.Marshal(entryRecord{
		Name:      ref.Identity.Name,
		Revision:  ref.Identity.Revision,
		Key:       ref.ID,
		Published: time.Now().UTC(),
		Files:     files,
	})
	if err != nil {
		return err
	}
	path := filepath.Join(dir, EntryMarker)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Chmod(path, 0o644)
}

// entryFiles lists the published files of an entry directory.
func entryFiles(dir string) ([]File, error) {
	files, err := ListFiles(dir)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(files, func(f File) bool {
		return f.Dir == "" && f.Name == EntryMarker
	}), nil
}

func (s *LocalStore) occupied(_ context.Context, id cache.Identity, key cache.Key) (bool, error) {
	_, err := os.Lstat(s.EntryDir(Ref{Identity: id, ID: string(key)}))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}

func validateRef(ref Ref) error {
	if err := ref.Identity.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRef, err)
	}
	if !ref.Identity.Versioned() {
		return fmt.Errorf("%w: %s is unversioned", ErrInvalidRef, ref.Identity)
	}
	if err := cache.ValidateKey(cache.Key(ref.ID)); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRef, err)
	}
	return nil
}

// dedupe cleans names and drops duplicates, unsafe paths and names already
// covered by an ancestor in the list.
func dedupe(names []string) []string {
	clean := make([]string, 0, len(names))
	for _, n := range names {
		n = filepath.Clean(n)
		if n != "." && filepath.IsLocal(n) {
			clean = append(clean, n)
		}
	}
	slices.Sort(clean)
	clean = slices.Compact(clean)

	out := make([]string, 0, len(clean))
	for _, n := range clean {
		covered := false
		for d := filepath.Dir(n); d != "."; d = filepath.Dir(d) {
			if _, ok := slices.BinarySearch(clean, d); ok {
				covered = true
				break
			}
		}
		if !covered {
			out = append(out, n)
		}
	}
	return out
}

var _ Store = (*LocalStore)(nil)
