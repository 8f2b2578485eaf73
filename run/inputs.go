package run

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/jonwraymond/simrun/backend"
)

// Param is one tool input.
type Param struct {
	// Value is a scalar or structured value.
	Value any

	// File is a local file supplied as the input. The tool sees it under
	// backend.InputFilesDir; the cache key sees its name and content digest.
	File string

	// Volatile params are passed to the tool but do not affect the cache key.
	Volatile bool
}

// InputSet maps parameter names to inputs.
type InputSet map[string]Param

// Values builds an InputSet of plain values.
func Values(values map[string]any) InputSet {
	set := make(InputSet, len(values))
	for k, v := range values {
		set[k] = Param{Value: v}
	}
	return set
}

// Clone returns a deep copy of s. Maps and slices in values are copied.
func (s InputSet) Clone() InputSet {
	out := make(InputSet, len(s))
	for k, p := range s {
		p.Value = cloneValue(p.Value)
		out[k] = p
	}
	return out
}

// Parameters returns the values handed to the tool.
func (s InputSet) Parameters() map[string]any {
	params := make(map[string]any, len(s))
	for k, p := range s {
		if p.File != "" {
			params[k] = filepath.Join(backend.InputFilesDir, filepath.Base(p.File))
			continue
		}
		params[k] = p.Value
	}
	return params
}

// Hashable returns the values that identify a result: volatile params are
// dropped and files are replaced by their name and SHA-256 digest.
func (s InputSet) Hashable() (map[string]any, error) {
	hashable := make(map[string]any, len(s))
	for k, p := range s {
		if p.Volatile {
			continue
		}
		if p.File == "" {
			hashable[k] = p.Value
			continue
		}
		sum, err := fileDigest(p.File)
		if err != nil {
			return nil, fmt.Errorf("input %q: %w", k, err)
		}
		hashable[k] = map[string]any{"file": filepath.Base(p.File), "sha256": sum}
	}
	return hashable, nil
}

// Files returns the input files, sorted.
func (s InputSet) Files() []string {
	var files []string
	for _, p := range s {
		if p.File != "" {
			files = append(files, p.File)
		}
	}
	sort.Strings(files)
	return files
}

func fileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[k] = cloneValue(e)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, e := range t {
			s[i] = cloneValue(e)
		}
		return s
	case []string:
		return append([]string(nil), t...)
	case []float64:
		return append([]float64(nil), t...)
	case []int:
		return append([]int(nil), t...)
	default:
		return v
	}
}
