package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// TableDirName is the directory under a cache root holding memo tables.
const TableDirName = ".simtool_cache_table"

// Table memoizes the key minted for each input digest of an Identity.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Store is first-writer-wins: once a key is recorded for (id, digest) it never changes.
type Table interface {
	// Lookup returns the key memoized for digest. ok is false on miss.
	Lookup(ctx context.Context, id Identity, digest string) (key Key, ok bool, err error)

	// Store records key for digest unless a key is already recorded, and
	// returns whichever key is recorded afterwards.
	Store(ctx context.Context, id Identity, digest string, key Key) (Key, error)
}

// FileTable is a memo table persisted under a cache root:
//
//	<root>/.simtool_cache_table/<name>/<revision>/<digest[0:2]>/<digest>.json
type FileTable struct {
	dir string
}

// NewFileTable returns a FileTable rooted at root/.simtool_cache_table.
func NewFileTable(root string) *FileTable {
	return &FileTable{dir: filepath.Join(root, TableDirName)}
}

// Dir returns the table's top-level directory.
func (t *FileTable) Dir() string {
	return t.dir
}

type tableRecord struct {
	Kind     string `json:"kind"`
	Name     string `json:"name"`
	Revision string `json:"revision"`
	Digest   string `json:"digest"`
	Key      Key    `json:"key"`
	Created  int64  `json:"created"`
}

const tableRecordKind = "simtool-key-v1"

// Lookup reads the record for digest, if present.
func (t *FileTable) Lookup(_ context.Context, id Identity, digest string) (Key, bool, error) {
	path, err := t.recordPath(id, digest)
	if err != nil {
		return "", false, err
	}
	rec, err := readRecord(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return rec.Key, true, nil
}

// Store writes the record through a temp file that is hard-linked into place.
// Linking fails when another writer got there first; that writer's key wins.
func (t *FileTable) Store(_ context.Context, id Identity, digest string, key Key) (Key, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	path, err := t.recordPath(id, digest)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("cache: creating memo table dir: %w", err)
	}

	data, err := json.Marshal(tableRecord{
		Kind:     tableRecordKind,
		Name:     id.Name,
		Revision: id.Revision,
		Digest:   digest,
		Key:      key,
		Created:  time.Now().Unix(),
	})
	if err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "memo-tmp-*")
	if err != nil {
		return "", fmt.Errorf("cache: creating memo record: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		return "", fmt.Errorf("cache: writing memo record: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}

	if err := os.Link(tmpName, path); err != nil {
		if !errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("cache: committing memo record: %w", err)
		}
		rec, rerr := readRecord(path)
		if rerr != nil {
			return "", fmt.Errorf("cache: reading competing memo record: %w", rerr)
		}
		return rec.Key, nil
	}
	return key, nil
}

func (t *FileTable) recordPath(id Identity, digest string) (string, error) {
	if err := id.Validate(); err != nil {
		return "", err
	}
	if len(digest) < 3 {
		return "", fmt.Errorf("cache: digest %q is too short", digest)
	}
	if err := validateSegment(digest); err != nil {
		return "", fmt.Errorf("cache: digest: %v", err)
	}
	return filepath.Join(t.dir, id.Name, id.Revision, digest[:2], digest+".json"), nil
}

func readRecord(path string) (*tableRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rec tableRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("cache: parsing memo record %s: %w", path, err)
	}
	if rec.Kind != tableRecordKind {
		return nil, fmt.Errorf("cache: memo record %s has unknown kind %q", path, rec.Kind)
	}
	if err := ValidateKey(rec.Key); err != nil {
		return nil, fmt.Errorf("cache: memo record %s: %w", path, err)
	}
	return &rec, nil
}

// Ensure FileTable implements Table
var _ Table = (*FileTable)(nil)
