package artifact

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
)

// NestingMarker joins directory and file name in remote wire names.
// The remote protocol can express one level of nesting only.
const NestingMarker = "_._"

// File describes one stored file. Dir is the slash-separated directory
// relative to the entry root, empty for top-level files.
type File struct {
	Dir  string
	Name string
}

// Path returns the slash-separated path relative to the entry root.
func (f File) Path() string {
	if f.Dir == "" {
		return f.Name
	}
	return f.Dir + "/" + f.Name
}

// Nested reports whether the file sits in a subdirectory.
func (f File) Nested() bool {
	return f.Dir != ""
}

// WireName encodes f for the remote protocol. Files nested more than one
// level deep cannot be encoded.
func (f File) WireName() (string, error) {
	if err := validateName(f.Name); err != nil {
		return "", err
	}
	if f.Dir == "" {
		return f.Name, nil
	}
	if err := validateName(f.Dir); err != nil {
		return "", fmt.Errorf("%w: %s is nested more than one level", ErrInvalidFile, f.Path())
	}
	return f.Dir + NestingMarker + f.Name, nil
}

// ParseWireName decodes a remote file name. The first marker splits
// directory from name.
func ParseWireName(s string) (File, error) {
	f := File{Name: s}
	if dir, name, ok := strings.Cut(s, NestingMarker); ok {
		f = File{Dir: dir, Name: name}
		if err := validateName(dir); err != nil {
			return File{}, err
		}
	}
	if err := validateName(f.Name); err != nil {
		return File{}, err
	}
	return f, nil
}

func validateName(s string) error {
	if s == "" || s == "." || s == ".." || strings.ContainsAny(s, `/\`+"\x00") {
		return fmt.Errorf("%w: %q", ErrInvalidFile, s)
	}
	return nil
}

// ListFiles walks root and returns every regular file (following symlinks
// to files) below it, sorted by path.
func ListFiles(root string) ([]File, error) {
	var files []File
	err := filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := os.Stat(p)
		if err != nil || !info.Mode().IsRegular() {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		files = append(files, fileFromRel(filepath.ToSlash(rel)))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortFiles(files)
	return files, nil
}

func fileFromRel(rel string) File {
	dir, name := path.Split(rel)
	return File{Dir: strings.TrimSuffix(dir, "/"), Name: name}
}

func sortFiles(files []File) {
	slices.SortFunc(files, func(a, b File) int { return strings.Compare(a.Path(), b.Path()) })
}
