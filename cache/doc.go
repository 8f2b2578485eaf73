// Package cache derives stable cache keys for simtool executions.
//
// A key is scoped to a tool Identity (name + revision) and is minted once per
// distinct hashable input set. The mapping from input digest to key lives in a
// memo Table that survives process restarts, so repeated runs of the same tool
// with equal inputs land on the same cache entry.
//
// # Key derivation
//
//	table := cache.NewFileTable(root)
//	d := cache.NewDeriver(table, occupied)
//	key, err := d.Derive(ctx, cache.Identity{Name: "diffusion", Revision: "1.0"}, inputs)
//
// Inputs are canonicalized before hashing, so map ordering never changes the
// derived key. New keys are random and checked against the caller's namespace
// until an unused one is found.
package cache
