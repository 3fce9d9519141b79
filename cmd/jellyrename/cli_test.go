package main

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nomadcxx/jellyrename/internal/undo"
)

const testCatalog = `[
  {"id": 1, "name": "Show Name", "first_air_year": 2010,
   "episodes": {"1": {"1": "Pilot", "2": "Second"}}}
]`

type cliEnv struct {
	dir     string
	config  string
	catalog string
}

func newCLIEnv(t *testing.T) cliEnv {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("SUDO_USER", "")
	t.Setenv("TMDB_API_KEY", "")
	t.Setenv("TMDB_ACCESS_TOKEN", "")

	state := t.TempDir()
	env := cliEnv{
		dir:     t.TempDir(),
		config:  filepath.Join(state, "config.toml"),
		catalog: filepath.Join(state, "catalog.json"),
	}
	require.NoError(t, os.WriteFile(env.catalog, []byte(testCatalog), 0644))

	cfg := fmt.Sprintf(`[history]
enabled = true
path = %q

[logging]
level = "debug"
file = %q
`, filepath.Join(state, "history.db"), filepath.Join(state, "jellyrename.log"))
	require.NoError(t, os.WriteFile(env.config, []byte(cfg), 0600))
	return env
}

func (e cliEnv) run(args ...string) error {
	root := newRootCmd()
	root.SetArgs(append([]string{"--config", e.config, "--catalog", e.catalog, "--no-color"}, args...))
	return root.Execute()
}

func (e cliEnv) touch(t *testing.T, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(e.dir, name), []byte(name), 0644))
	}
}

func (e cliEnv) exists(name string) bool {
	_, err := os.Stat(filepath.Join(e.dir, name))
	return err == nil
}

func TestCLI_RenameAndUndo(t *testing.T) {
	env := newCLIEnv(t)
	env.touch(t, "Show.Name.S01E01.mkv", "Show.Name.S01E02.mkv")

	require.NoError(t, env.run("preview", env.dir))
	assert.True(t, env.exists("Show.Name.S01E01.mkv"), "preview must not rename")

	require.NoError(t, env.run("rename", "--dry-run", env.dir))
	assert.True(t, env.exists("Show.Name.S01E01.mkv"), "dry run must not rename")

	require.NoError(t, env.run("rename", "--yes", env.dir))
	assert.True(t, env.exists("Show Name - S01E01 - Pilot.mkv"))
	assert.True(t, env.exists("Show Name - S01E02 - Second.mkv"))
	assert.False(t, env.exists("Show.Name.S01E01.mkv"))

	require.NoError(t, env.run("history"))

	require.NoError(t, env.run("undo", "--yes"))
	assert.True(t, env.exists("Show.Name.S01E01.mkv"))
	assert.True(t, env.exists("Show.Name.S01E02.mkv"))
	assert.False(t, env.exists("Show Name - S01E01 - Pilot.mkv"))

	err := env.run("undo", "--yes")
	assert.ErrorIs(t, err, undo.ErrNoUndoAvailable)
}

func TestCLI_SerialRename(t *testing.T) {
	env := newCLIEnv(t)
	env.touch(t, "b.mp4", "a.mp4")

	require.NoError(t, env.run("rename", "--yes", "--mode", "serial", "--prefix", "Trip-", "--width", "3", env.dir))
	assert.True(t, env.exists("Trip-001.mp4"))
	assert.True(t, env.exists("Trip-002.mp4"))
	assert.False(t, env.exists("a.mp4"))
}

func TestCLI_Errors(t *testing.T) {
	env := newCLIEnv(t)

	assert.Error(t, env.run("rename", "--yes", env.dir), "empty directory")

	env.touch(t, "Show.Name.S01E01.mkv")
	assert.Error(t, env.run("rename", "--yes", "--width", "12", "--mode", "serial", env.dir))
	assert.Error(t, env.run("rename", "--yes", "--template", "{nope}", env.dir))
	assert.Error(t, env.run("rename", "--yes", "--choose", "broken", env.dir))
	assert.True(t, env.exists("Show.Name.S01E01.mkv"))
}

func TestCLI_ParseAndConfig(t *testing.T) {
	env := newCLIEnv(t)

	require.NoError(t, env.run("parse", "Show.Name.S01E01-E02.mkv", "clip.mp4"))
	require.NoError(t, env.run("parse", "--json", "Show.Name.1x05.avi"))
	require.NoError(t, env.run("config", "show"))
	require.NoError(t, env.run("config", "path"))

	target := filepath.Join(t.TempDir(), "new", "config.toml")
	root := newRootCmd()
	root.SetArgs([]string{"--config", target, "config", "init"})
	require.NoError(t, root.Execute())

	info, err := os.Stat(target)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	root = newRootCmd()
	root.SetArgs([]string{"--config", target, "config", "init"})
	assert.Error(t, root.Execute(), "init refuses to overwrite without --force")
}
