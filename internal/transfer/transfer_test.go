package transfer

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestOS_Rename(t *testing.T) {
	dir := t.TempDir()
	fs := NewOS()
	src := filepath.Join(dir, "a.mkv")
	dst := filepath.Join(dir, "b.mkv")
	writeFile(t, src, "a")

	require.NoError(t, fs.Rename(src, dst, false))
	assert.False(t, fs.Exists(src))
	assert.Equal(t, "a", readFile(t, dst))

	err := fs.Rename(src, dst, false)
	assert.ErrorIs(t, err, ErrSourceNotFound)
}

func TestOS_RenameRefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	fs := NewOS()
	src := filepath.Join(dir, "a.mkv")
	dst := filepath.Join(dir, "b.mkv")
	writeFile(t, src, "a")
	writeFile(t, dst, "b")

	err := fs.Rename(src, dst, false)
	assert.ErrorIs(t, err, ErrTargetExists)
	assert.Equal(t, "b", readFile(t, dst))

	require.NoError(t, fs.Rename(src, dst, true))
	assert.Equal(t, "a", readFile(t, dst))
}

func TestOS_RenameOntoDirectory(t *testing.T) {
	dir := t.TempDir()
	fs := NewOS()
	src := filepath.Join(dir, "a.mkv")
	writeFile(t, src, "a")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0755))

	err := fs.Rename(src, filepath.Join(dir, "sub"), true)
	assert.ErrorIs(t, err, ErrTargetIsDir)
}

func TestOS_MkdirAllAndRemoveDir(t *testing.T) {
	dir := t.TempDir()
	fs := NewOS()
	deep := filepath.Join(dir, "Show", "Season 01")

	created, err := fs.MkdirAll(deep)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "Show"), deep}, created)

	created, err = fs.MkdirAll(deep)
	require.NoError(t, err)
	assert.Empty(t, created)

	// Non-empty directories stay.
	writeFile(t, filepath.Join(deep, "x.mkv"), "x")
	assert.Error(t, fs.RemoveDir(filepath.Join(dir, "Show")))

	require.NoError(t, os.Remove(filepath.Join(deep, "x.mkv")))
	require.NoError(t, fs.RemoveDir(deep))
	require.NoError(t, fs.RemoveDir(filepath.Join(dir, "Show")))
	assert.NoError(t, fs.RemoveDir(filepath.Join(dir, "Show")))
}

func TestMkdirAll_FileInTheWay(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "file"), "x")
	_, err := NewOS().MkdirAll(filepath.Join(dir, "file", "sub"))
	assert.Error(t, err)
}

func TestCheckDirs(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, CheckDirs([]string{dir, dir}, time.Second))
	assert.Error(t, CheckDirs([]string{filepath.Join(dir, "missing")}, time.Second))

	file := filepath.Join(dir, "f")
	writeFile(t, file, "x")
	err := CheckDirs([]string{file}, time.Second)
	var dirErr *DirError
	require.ErrorAs(t, err, &dirErr)
	assert.Equal(t, file, dirErr.Dir)
	assert.Equal(t, "not a directory", dirErr.Reason)
}

func TestMemory(t *testing.T) {
	m := NewMemory("/tv/a.mkv", "/tv/b.mkv")
	var _ Renamer = m

	assert.ErrorIs(t, m.Rename("/tv/a.mkv", "/tv/b.mkv", false), ErrTargetExists)
	require.NoError(t, m.Rename("/tv/a.mkv", "/tv/c.mkv", false))
	content, ok := m.Content("/tv/c.mkv")
	require.True(t, ok)
	assert.Equal(t, "a.mkv", content)
	assert.ErrorIs(t, m.Rename("/tv/a.mkv", "/tv/d.mkv", false), ErrSourceNotFound)

	created, err := m.MkdirAll("/tv/Show/Season 01")
	require.NoError(t, err)
	assert.Equal(t, []string{"/tv/Show", "/tv/Show/Season 01"}, created)
	assert.True(t, m.Exists("/tv/Show"))
	assert.Error(t, m.RemoveDir("/tv/Show"))
	require.NoError(t, m.RemoveDir("/tv/Show/Season 01"))
	require.NoError(t, m.RemoveDir("/tv/Show"))
	assert.False(t, m.Exists("/tv/Show"))

	m.Fail("/tv/b.mkv", assert.AnError)
	assert.ErrorIs(t, m.Rename("/tv/b.mkv", "/tv/e.mkv", false), assert.AnError)
	assert.Equal(t, []string{"/tv/b.mkv", "/tv/c.mkv"}, m.Files())
}
