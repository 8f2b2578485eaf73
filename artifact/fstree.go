package artifact

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// CopyTree copies src into the directory dst as real files.
//
// A file source lands at dst/<base(src)>. A directory source has its
// children copied into dst, recursively. Symlinks are followed, so a tree of
// links copies as the files they point to. File modes and modification
// times are preserved. Anything that is neither a directory nor a regular
// file, such as a FIFO or device, is skipped.
func CopyTree(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		if !info.Mode().IsRegular() {
			return nil
		}
		return copyFile(src, filepath.Join(dst, filepath.Base(src)), info)
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, e := range entries {
		from := filepath.Join(src, e.Name())
		to := filepath.Join(dst, e.Name())

		fi, err := os.Stat(from)
		if err != nil {
			return err
		}
		if fi.IsDir() {
			if err := os.MkdirAll(to, fi.Mode().Perm()|0o700); err != nil {
				return err
			}
			if err := CopyTree(from, to); err != nil {
				return err
			}
			continue
		}
		if !fi.Mode().IsRegular() {
			continue
		}
		if err := copyFile(from, to, fi); err != nil {
			return err
		}
	}
	return nil
}

// LinkTree mirrors src into the directory dst using symlinks.
//
// A file source becomes the link dst/<base(src)>. A directory source has its
// subdirectories recreated as real directories in dst and its files linked
// by absolute path.
func LinkTree(src, dst string) error {
	abs, err := filepath.Abs(src)
	if err != nil {
		return err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return os.Symlink(abs, filepath.Join(dst, filepath.Base(abs)))
	}

	entries, err := os.ReadDir(abs)
	if err != nil {
		return err
	}
	for _, e := range entries {
		from := filepath.Join(abs, e.Name())
		to := filepath.Join(dst, e.Name())

		fi, err := os.Stat(from)
		if err != nil {
			return err
		}
		if fi.IsDir() {
			if err := os.MkdirAll(to, 0o755); err != nil {
				return err
			}
			if err := LinkTree(from, to); err != nil {
				return err
			}
			continue
		}
		if err := os.Symlink(from, to); err != nil {
			return err
		}
	}
	return nil
}

// materialize runs fill against a scratch directory inside dst, then moves
// what fill produced into dst. dst is left as it was unless fill succeeds
// and none of the produced names already exist in dst.
func materialize(dst string, fill func(dir string) error) error {
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return err
	}
	tmp, err := os.MkdirTemp(dst, ".materialize-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmp)

	if err := fill(tmp); err != nil {
		return err
	}
	entries, err := os.ReadDir(tmp)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if _, err := os.Lstat(filepath.Join(dst, e.Name())); err == nil {
			return fmt.Errorf("%s: %w", filepath.Join(dst, e.Name()), fs.ErrExist)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}

	moved := make([]string, 0, len(entries))
	for _, e := range entries {
		if err := os.Rename(filepath.Join(tmp, e.Name()), filepath.Join(dst, e.Name())); err != nil {
			for _, name := range moved {
				_ = os.Rename(filepath.Join(dst, name), filepath.Join(tmp, name))
			}
			return err
		}
		moved = append(moved, e.Name())
	}
	return nil
}

// WidenPermissions makes every file under root world-readable and every
// directory, root included, world-readable and traversable.
func WidenPermissions(root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		mode := info.Mode().Perm() | 0o004
		if d.IsDir() {
			mode |= 0o001
		}
		if mode == info.Mode().Perm() {
			return nil
		}
		return os.Chmod(p, mode)
	})
}

func copyFile(src, dst string, info fs.FileInfo) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copy %s: %w", src, err)
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}
