package cache

import (
	"context"
	"testing"
)

// BenchmarkDigest measures canonical hashing of a typical input set.
func BenchmarkDigest(b *testing.B) {
	input := map[string]any{
		"T":     300,
		"steps": 100,
		"mesh":  map[string]any{"nx": 64, "ny": 64, "nz": 1},
		"tags":  []any{"a", "b", "c"},
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Digest(input)
	}
}

// BenchmarkDeriver_Memoized measures the memo hit path.
func BenchmarkDeriver_Memoized(b *testing.B) {
	d := NewDeriver(NewMemoryTable(), nil)
	ctx := context.Background()
	input := map[string]any{"T": 300, "steps": 100}
	_, _ = d.Derive(ctx, testID, input)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = d.Derive(ctx, testID, input)
	}
}

// BenchmarkFileTable_Lookup measures a persisted memo hit.
func BenchmarkFileTable_Lookup(b *testing.B) {
	table := NewFileTable(b.TempDir())
	ctx := context.Background()
	_, _ = table.Store(ctx, testID, testDigest, "key1")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _, _ = table.Lookup(ctx, testID, testDigest)
	}
}
