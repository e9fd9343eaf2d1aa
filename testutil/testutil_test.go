package testutil

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteTree(t *testing.T) {
	root := t.TempDir()
	paths := WriteTree(t, root, map[string]string{
		"src/b.js":  "b",
		"a.txt":     "a",
		"src/x/y.z": "y",
	})

	assert.Equal(t, []string{
		filepath.Join(root, "a.txt"),
		filepath.Join(root, "src", "b.js"),
		filepath.Join(root, "src", "x", "y.z"),
	}, paths)

	data, err := os.ReadFile(filepath.Join(root, "src", "x", "y.z"))
	require.NoError(t, err)
	assert.Equal(t, "y", string(data))
}

func TestBufferConcurrentWrites(t *testing.T) {
	var buf Buffer
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = buf.Write([]byte("x"))
		}()
	}
	wg.Wait()
	assert.Len(t, buf.String(), 50)
}

func TestRandomString(t *testing.T) {
	s := RandomString(9)
	assert.Len(t, s, 9)
	assert.NotEqual(t, s, RandomString(9))
}

func TestNullLogger(t *testing.T) {
	logger, hook := NullLogger()
	logger.Debug("hello")
	require.Len(t, hook.AllEntries(), 1)
	assert.Equal(t, "test", hook.LastEntry().Data["component"])
}
