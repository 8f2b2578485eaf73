package secret

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Provider resolves secrets by reference string.
//
// Implementations must be safe for concurrent use and must not log secret values.
type Provider interface {
	Name() string
	Resolve(ctx context.Context, ref string) (string, error)
	Close() error
}

// EnvProvider resolves a reference as an environment variable name,
// optionally under a prefix.
type EnvProvider struct {
	Prefix string
}

func (EnvProvider) Name() string { return "env" }
func (EnvProvider) Close() error { return nil }

// Resolve returns the value of Prefix+ref.
func (p EnvProvider) Resolve(_ context.Context, ref string) (string, error) {
	v, ok := os.LookupEnv(p.Prefix + ref)
	if !ok {
		return "", fmt.Errorf("%w: env %s%s", ErrNotFound, p.Prefix, ref)
	}
	return v, nil
}

// FileProvider resolves a reference as a file path relative to Dir.
// Trailing newlines are trimmed.
type FileProvider struct {
	Dir string
}

func (FileProvider) Name() string { return "file" }
func (FileProvider) Close() error { return nil }

// Resolve reads Dir/ref. References that escape Dir are rejected.
func (p FileProvider) Resolve(_ context.Context, ref string) (string, error) {
	if !filepath.IsLocal(ref) {
		return "", fmt.Errorf("%w: %q escapes the secret directory", ErrInvalidRef, ref)
	}
	data, err := os.ReadFile(filepath.Join(p.Dir, ref))
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: file %s", ErrNotFound, ref)
		}
		return "", fmt.Errorf("secret: read %s: %w", ref, err)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

var (
	_ Provider = EnvProvider{}
	_ Provider = FileProvider{}
)
