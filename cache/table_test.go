package cache

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

const testDigest = "ab12cd34ef56"

func TestFileTable_LookupMiss(t *testing.T) {
	table := NewFileTable(t.TempDir())
	_, ok, err := table.Lookup(context.Background(), testID, testDigest)
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if ok {
		t.Error("expected miss on empty table")
	}
}

func TestFileTable_StoreThenLookup(t *testing.T) {
	root := t.TempDir()
	table := NewFileTable(root)
	ctx := context.Background()

	got, err := table.Store(ctx, testID, testDigest, "key1")
	if err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	if got != "key1" {
		t.Errorf("Store() = %s, want key1", got)
	}

	key, ok, err := table.Lookup(ctx, testID, testDigest)
	if err != nil || !ok || key != "key1" {
		t.Errorf("Lookup() = %s, %v, %v", key, ok, err)
	}

	want := filepath.Join(root, TableDirName, "diffusion", "1.0", "ab", testDigest+".json")
	if _, err := os.Stat(want); err != nil {
		t.Errorf("record not at %s: %v", want, err)
	}
}

func TestFileTable_FirstWriterWins(t *testing.T) {
	table := NewFileTable(t.TempDir())
	ctx := context.Background()

	if _, err := table.Store(ctx, testID, testDigest, "first"); err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	got, err := table.Store(ctx, testID, testDigest, "second")
	if err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	if got != "first" {
		t.Errorf("Store() = %s, want first", got)
	}
}

func TestFileTable_ConcurrentStoresAgree(t *testing.T) {
	table := NewFileTable(t.TempDir())
	ctx := context.Background()

	const n = 10
	results := make([]Key, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			k, err := table.Store(ctx, testID, testDigest, NewRandomKey())
			if err != nil {
				t.Errorf("Store() error = %v", err)
				return
			}
			results[i] = k
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if results[i] != results[0] {
			t.Fatalf("writers disagree: %s vs %s", results[i], results[0])
		}
	}
}

func TestFileTable_RejectsBadInput(t *testing.T) {
	table := NewFileTable(t.TempDir())
	ctx := context.Background()

	if _, err := table.Store(ctx, testID, testDigest, "a/b"); err == nil {
		t.Error("expected error for path-unsafe key")
	}
	if _, err := table.Store(ctx, testID, "x", "key"); err == nil {
		t.Error("expected error for short digest")
	}
	if _, _, err := table.Lookup(ctx, Identity{Name: ".."}, testDigest); err == nil {
		t.Error("expected error for invalid identity")
	}
}

func TestFileTable_CorruptRecord(t *testing.T) {
	root := t.TempDir()
	table := NewFileTable(root)
	dir := filepath.Join(root, TableDirName, "diffusion", "1.0", "ab")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, testDigest+".json"), []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := table.Lookup(context.Background(), testID, testDigest); err == nil {
		t.Error("expected error for corrupt record")
	}
}

func TestMemoryTable_FirstWriterWins(t *testing.T) {
	table := NewMemoryTable()
	ctx := context.Background()

	_, _ = table.Store(ctx, testID, testDigest, "first")
	got, _ := table.Store(ctx, testID, testDigest, "second")
	if got != "first" {
		t.Errorf("Store() = %s, want first", got)
	}
	if table.Len() != 1 {
		t.Errorf("Len() = %d, want 1", table.Len())
	}
}
