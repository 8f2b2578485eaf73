package cache

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// DefaultMaxAttempts bounds the generate-and-check loop in Derive.
const DefaultMaxAttempts = 16

// OccupiedFunc reports whether key already names an entry under id.
type OccupiedFunc func(ctx context.Context, id Identity, key Key) (bool, error)

// KeyGenerator mints candidate keys.
type KeyGenerator func() Key

// NewRandomKey returns a random 32 character hex key.
func NewRandomKey() Key {
	u := uuid.New()
	return Key(fmt.Sprintf("%x", u[:]))
}

// Deriver turns an identity and its hashable inputs into a stable Key.
//
// The first derivation for a digest mints a fresh key that is not occupied
// under the identity and records it in the memo table. Later derivations
// with equal inputs return the recorded key, across process restarts when
// the table is persistent.
type Deriver struct {
	table       Table
	occupied    OccupiedFunc
	generate    KeyGenerator
	maxAttempts int
	group       singleflight.Group
}

// DeriverOption configures a Deriver.
type DeriverOption func(*Deriver)

// WithKeyGenerator overrides the key generator.
func WithKeyGenerator(gen KeyGenerator) DeriverOption {
	return func(d *Deriver) {
		if gen != nil {
			d.generate = gen
		}
	}
}

// WithMaxAttempts sets how many candidate keys are tried before giving up.
// Values below 1 mean unbounded.
func WithMaxAttempts(n int) DeriverOption {
	return func(d *Deriver) {
		d.maxAttempts = n
	}
}

// NewDeriver creates a Deriver backed by table. A nil occupied treats every
// candidate key as unused.
func NewDeriver(table Table, occupied OccupiedFunc, opts ...DeriverOption) *Deriver {
	d := &Deriver{
		table:       table,
		occupied:    occupied,
		generate:    NewRandomKey,
		maxAttempts: DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Derive returns the key for (id, hashable).
func (d *Deriver) Derive(ctx context.Context, id Identity, hashable map[string]any) (Key, error) {
	if d.table == nil {
		return "", ErrNilTable
	}
	if err := id.Validate(); err != nil {
		return "", err
	}
	digest, err := Digest(hashable)
	if err != nil {
		return "", err
	}

	v, err, _ := d.group.Do(id.String()+"\x00"+digest, func() (any, error) {
		return d.derive(ctx, id, digest)
	})
	if err != nil {
		return "", err
	}
	return v.(Key), nil
}

func (d *Deriver) derive(ctx context.Context, id Identity, digest string) (Key, error) {
	key, ok, err := d.table.Lookup(ctx, id, digest)
	if err != nil {
		return "", fmt.Errorf("cache: memo lookup for %s: %w", id, err)
	}
	if ok {
		return key, nil
	}

	key, err = d.mint(ctx, id)
	if err != nil {
		return "", err
	}
	stored, err := d.table.Store(ctx, id, digest, key)
	if err != nil {
		return "", fmt.Errorf("cache: memo store for %s: %w", id, err)
	}
	return stored, nil
}

func (d *Deriver) mint(ctx context.Context, id Identity) (Key, error) {
	for attempt := 0; d.maxAttempts < 1 || attempt < d.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		key := d.generate()
		if err := ValidateKey(key); err != nil {
			return "", fmt.Errorf("cache: generated key %q: %w", key, err)
		}
		if d.occupied == nil {
			return key, nil
		}
		used, err := d.occupied(ctx, id, key)
		if err != nil {
			return "", fmt.Errorf("cache: checking key %s for %s: %w", key, id, err)
		}
		if !used {
			return key, nil
		}
	}
	return "", fmt.Errorf("%w after %d attempts for %s", ErrKeysExhausted, d.maxAttempts, id)
}
