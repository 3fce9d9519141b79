//go:build unix

package transfer

import (
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRename_CrossDevice(t *testing.T) {
	old := renameFunc
	renameFunc = func(oldpath, newpath string) error {
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: syscall.EXDEV}
	}
	defer func() { renameFunc = old }()

	dir := t.TempDir()
	src := filepath.Join(dir, "a.mkv")
	require.NoError(t, os.WriteFile(src, []byte("a"), 0644))

	err := NewOS().Rename(src, filepath.Join(dir, "b.mkv"), false)
	require.Error(t, err)
	assert.True(t, IsCrossDevice(err))
	assert.ErrorIs(t, err, syscall.EXDEV)
}
