package scanner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
}

func TestIsVideoFile(t *testing.T) {
	assert.True(t, IsVideoFile("a/b/Show.S01E01.MKV"))
	assert.True(t, IsVideoFile("clip.ts"))
	assert.False(t, IsVideoFile("Show.S01E01.nfo"))
	assert.False(t, IsVideoFile("noext"))
}

func TestCollect(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "b.S01E02.mkv"))
	touch(t, filepath.Join(root, "a.S01E01.mkv"))
	touch(t, filepath.Join(root, "a.S01E01.nfo"))
	touch(t, filepath.Join(root, "a.sample.mkv"))
	touch(t, filepath.Join(root, ".hidden.mkv"))
	touch(t, filepath.Join(root, "Season 2", "c.S02E01.mp4"))
	touch(t, filepath.Join(root, ".trash", "d.mkv"))

	t.Run("flat", func(t *testing.T) {
		res := Collect([]string{root}, Options{})
		assert.Equal(t, []string{
			filepath.Join(root, "a.S01E01.mkv"),
			filepath.Join(root, "b.S01E02.mkv"),
		}, res.Files)
		assert.Equal(t, 2, res.Skipped)
		assert.Empty(t, res.Errors)
	})

	t.Run("recursive", func(t *testing.T) {
		res := Collect([]string{root}, Options{Recursive: true})
		assert.Equal(t, []string{
			filepath.Join(root, "Season 2", "c.S02E01.mp4"),
			filepath.Join(root, "a.S01E01.mkv"),
			filepath.Join(root, "b.S01E02.mkv"),
		}, res.Files)
	})

	t.Run("explicit files are kept", func(t *testing.T) {
		nfo := filepath.Join(root, "a.S01E01.nfo")
		res := Collect([]string{nfo}, Options{})
		assert.Equal(t, []string{nfo}, res.Files)
	})

	t.Run("all files and no skip patterns", func(t *testing.T) {
		res := Collect([]string{root}, Options{All: true, SkipPatterns: []string{}})
		assert.Len(t, res.Files, 4)
	})

	t.Run("missing path", func(t *testing.T) {
		res := Collect([]string{filepath.Join(root, "nope")}, Options{})
		assert.Empty(t, res.Files)
		assert.Len(t, res.Errors, 1)
	})
}
