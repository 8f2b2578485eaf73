package artifact

import (
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCopyTree_File(t *testing.T) {
	src := writeFile(t, t.TempDir(), "model.dat", "weights")
	dst := t.TempDir()

	require.NoError(t, CopyTree(src, dst))

	info, err := os.Lstat(filepath.Join(dst, "model.dat"))
	require.NoError(t, err)
	require.True(t, info.Mode().IsRegular())
	require.Equal(t, "weights", readFile(t, filepath.Join(dst, "model.dat")))
}

func TestCopyTree_DirectoryFollowsLinks(t *testing.T) {
	elsewhere := t.TempDir()
	target := writeFile(t, elsewhere, "data.csv", "1,2,3")

	src := t.TempDir()
	writeFile(t, src, "sub/inner.txt", "inner")
	require.NoError(t, os.Symlink(target, filepath.Join(src, "data.csv")))

	dst := t.TempDir()
	require.NoError(t, CopyTree(src, dst))

	info, err := os.Lstat(filepath.Join(dst, "data.csv"))
	require.NoError(t, err)
	require.True(t, info.Mode().IsRegular(), "symlink should be copied as a file")
	require.Equal(t, "1,2,3", readFile(t, filepath.Join(dst, "data.csv")))
	require.Equal(t, "inner", readFile(t, filepath.Join(dst, "sub", "inner.txt")))
}

func TestCopyTree_SkipsSpecialFiles(t *testing.T) {
	src := t.TempDir()
	writeFile(t, src, "log.txt", "done")
	require.NoError(t, syscall.Mkfifo(filepath.Join(src, "pipe"), 0o644))

	dst := t.TempDir()
	require.NoError(t, CopyTree(src, dst))
	require.NoError(t, CopyTree(filepath.Join(src, "pipe"), dst))

	require.Equal(t, "done", readFile(t, filepath.Join(dst, "log.txt")))
	_, err := os.Lstat(filepath.Join(dst, "pipe"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestMaterialize(t *testing.T) {
	dst := t.TempDir()
	writeFile(t, dst, "keep.txt", "keep")

	err := materialize(dst, func(dir string) error {
		writeFile(t, dir, "a.txt", "a")
		return errors.New("interrupted")
	})
	require.Error(t, err)
	requireNames(t, dst, "keep.txt")

	err = materialize(dst, func(dir string) error {
		writeFile(t, dir, "b.txt", "b")
		writeFile(t, dir, "keep.txt", "new")
		return nil
	})
	require.ErrorIs(t, err, os.ErrExist)
	requireNames(t, dst, "keep.txt")
	require.Equal(t, "keep", readFile(t, filepath.Join(dst, "keep.txt")))

	err = materialize(dst, func(dir string) error {
		writeFile(t, dir, "sub/c.txt", "c")
		return nil
	})
	require.NoError(t, err)
	requireNames(t, dst, "keep.txt", "sub")
	require.Equal(t, "c", readFile(t, filepath.Join(dst, "sub", "c.txt")))
}

// requireNames asserts the exact top-level names in dir.
func requireNames(t *testing.T, dir string, want ...string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	got := make([]string, len(entries))
	for i, e := range entries {
		got[i] = e.Name()
	}
	require.Equal(t, want, got)
}

func TestLinkTree(t *testing.T) {
	src := t.TempDir()
	writeFile(t, src, "a.txt", "a")
	writeFile(t, src, "sub/b.txt", "b")
	dst := t.TempDir()

	require.NoError(t, LinkTree(src, dst))

	info, err := os.Lstat(filepath.Join(dst, "sub"))
	require.NoError(t, err)
	require.True(t, info.IsDir(), "directories are recreated")

	for _, rel := range []string{"a.txt", "sub/b.txt"} {
		p := filepath.Join(dst, filepath.FromSlash(rel))
		info, err := os.Lstat(p)
		require.NoError(t, err)
		require.NotZero(t, info.Mode()&os.ModeSymlink, rel)
		target, err := os.Readlink(p)
		require.NoError(t, err)
		require.True(t, filepath.IsAbs(target))
	}
	require.Equal(t, "b", readFile(t, filepath.Join(dst, "sub", "b.txt")))
}

func TestLinkTree_File(t *testing.T) {
	src := writeFile(t, t.TempDir(), "tool.py", "print()")
	dst := t.TempDir()

	require.NoError(t, LinkTree(src, dst))
	target, err := os.Readlink(filepath.Join(dst, "tool.py"))
	require.NoError(t, err)
	require.Equal(t, src, target)
}

func TestWidenPermissions(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Chmod(root, 0o700))
	f := writeFile(t, root, "sub/secret.txt", "x")
	require.NoError(t, os.Chmod(f, 0o600))
	require.NoError(t, os.Chmod(filepath.Dir(f), 0o700))

	require.NoError(t, WidenPermissions(root))

	for p, want := range map[string]os.FileMode{
		root:            0o705,
		filepath.Dir(f): 0o705,
		f:               0o604,
	} {
		info, err := os.Stat(p)
		require.NoError(t, err)
		require.Equal(t, want, info.Mode().Perm(), p)
	}
}
