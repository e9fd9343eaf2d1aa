package fsio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/grovetools/basin/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestRead(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "src", "b.js"), "x=1")

	t.Run("absolute path", func(t *testing.T) {
		f, err := Read(filepath.Join(root, "src", "b.js"), root)
		require.NoError(t, err)
		assert.Equal(t, "src/b.js", f.Path)
		assert.Equal(t, "x=1", f.Content)
	})

	t.Run("relative path", func(t *testing.T) {
		f, err := Read("src/b.js", root)
		require.NoError(t, err)
		assert.Equal(t, "src/b.js", f.Path)
		assert.Equal(t, "x=1", f.Content)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Read("nope.js", root)
		require.Error(t, err)
		assert.Equal(t, errors.ErrCodeIO, errors.GetCode(err))

		basinErr, ok := errors.AsBasinError(err)
		require.True(t, ok)
		assert.Equal(t, "read", basinErr.Details["op"])
		assert.True(t, os.IsNotExist(basinErr.Cause))
	})
}

func TestReadOutsideRootKeepsPath(t *testing.T) {
	root := t.TempDir()
	other := t.TempDir()
	path := filepath.Join(other, "x.txt")
	writeFile(t, path, "outside")

	f, err := Read(path, root)
	require.NoError(t, err)
	assert.Equal(t, filepath.ToSlash(path), f.Path)
}

func TestWriteCreatesParentDirectories(t *testing.T) {
	root := t.TempDir()

	err := Write("dist/js/deep/app.js", []byte("bundle"), root)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(root, "dist", "js", "deep", "app.js"))
	require.NoError(t, err)
	assert.Equal(t, "bundle", string(data))

	info, err := os.Stat(filepath.Join(root, "dist", "js", "deep", "app.js"))
	require.NoError(t, err)
	assert.False(t, info.IsDir(), "target must be written as a file")
}

func TestWriteOverwrites(t *testing.T) {
	root := t.TempDir()

	require.NoError(t, Write("out.txt", []byte("first"), root))
	require.NoError(t, Write(filepath.Join(root, "out.txt"), []byte("second"), ""))

	data, err := os.ReadFile(filepath.Join(root, "out.txt"))
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestWriteFailure(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "blocker"), "file, not a dir")

	err := Write("blocker/child.txt", []byte("x"), root)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeIO, errors.GetCode(err))
}

func TestRemoveAllLiteral(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "dist", "a.js"), "a")

	require.NoError(t, RemoveAll(filepath.Join(root, "dist")))
	assert.NoDirExists(t, filepath.Join(root, "dist"))

	// Missing paths are fine.
	require.NoError(t, RemoveAll(filepath.Join(root, "dist")))
}

func TestRemoveAllGlob(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "dist", "a.js"), "a")
	writeFile(t, filepath.Join(root, "dist", "a.js.map"), "map")
	writeFile(t, filepath.Join(root, "dist", "nested", "b.js.map"), "map")
	writeFile(t, filepath.Join(root, "dist", "nested", "b.js"), "b")

	require.NoError(t, RemoveAll(filepath.Join(root, "dist", "**", "*.map")))

	assert.FileExists(t, filepath.Join(root, "dist", "a.js"))
	assert.FileExists(t, filepath.Join(root, "dist", "nested", "b.js"))
	assert.NoFileExists(t, filepath.Join(root, "dist", "a.js.map"))
	assert.NoFileExists(t, filepath.Join(root, "dist", "nested", "b.js.map"))
}

func TestRemoveAllGlobDirectories(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "build-1", "x"), "x")
	writeFile(t, filepath.Join(root, "build-2", "y", "z"), "z")
	writeFile(t, filepath.Join(root, "keep", "k"), "k")

	require.NoError(t, RemoveAll(filepath.Join(root, "build-*")))

	assert.NoDirExists(t, filepath.Join(root, "build-1"))
	assert.NoDirExists(t, filepath.Join(root, "build-2"))
	assert.DirExists(t, filepath.Join(root, "keep"))
}

func TestRemoveAllGlobMissingBase(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, RemoveAll(filepath.Join(root, "missing", "*.js")))
}

func TestRemoveAllEmpty(t *testing.T) {
	err := RemoveAll("")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeIO, errors.GetCode(err))
}

func TestStaticBase(t *testing.T) {
	tests := []struct {
		pattern string
		want    string
	}{
		{"dist/**/*.map", "dist"},
		{"*.tmp", "."},
		{"a/b/c?.txt", filepath.Join("a", "b")},
		{"/tmp/out/*", filepath.FromSlash("/tmp/out")},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			assert.Equal(t, tt.want, staticBase(tt.pattern))
		})
	}
}

func TestDelete(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "a[1].txt")
	writeFile(t, path, "literal name")

	require.NoError(t, Delete(path))
	assert.NoFileExists(t, path)
	require.NoError(t, Delete(path), "missing path is fine")
}
