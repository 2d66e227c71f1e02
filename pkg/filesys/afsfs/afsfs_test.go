package afsfs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minikern/pkg/filesys"
)

func TestNewCreatesBase(t *testing.T) {
	base := filepath.Join(t.TempDir(), "images")
	_, err := New(base)
	require.NoError(t, err)

	info, err := os.Stat(base)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestOpenReadsLocalFile(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(base, "test"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(base, "test", "halt"), []byte("abcdef"), 0o644))

	fs, err := New(base)
	require.NoError(t, err)

	for _, p := range []string{"test/halt", "/test/halt", "../test/halt"} {
		t.Run(p, func(t *testing.T) {
			f, err := fs.Open(p)
			require.NoError(t, err)
			defer f.Close()
			assert.Equal(t, int64(6), f.Length())

			buf := make([]byte, 2)
			_, err = f.ReadAt(buf, 4)
			require.NoError(t, err)
			assert.Equal(t, "ef", string(buf))
		})
	}
}

func TestOpenMissing(t *testing.T) {
	fs, err := New(t.TempDir())
	require.NoError(t, err)

	_, err = fs.Open("nope")
	assert.ErrorIs(t, err, filesys.ErrNotFound)
}

func TestCreateAndWrite(t *testing.T) {
	base := t.TempDir()
	fs, err := New(base)
	require.NoError(t, err)

	require.NoError(t, fs.WriteFile("out", []byte("data")))
	require.NoError(t, fs.Create("out"))

	data, err := os.ReadFile(filepath.Join(base, "out"))
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestEmptyBase(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)
}
