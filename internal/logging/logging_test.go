package logging

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"warning": LevelWarn,
		"error":   LevelError,
		"bogus":   LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestNewWriter_FormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, "info")

	l.Debug("planner", "hidden")
	l.Info("planner", "plan built", F("renames", 2))
	l.Error("executor", "rename failed", errors.New("boom"), F("entry", 3))

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[INFO] [planner] plan built | renames=2")
	assert.Contains(t, out, "[ERROR] [executor] rename failed | error=boom | entry=3")
	assert.Equal(t, 2, strings.Count(out, "\n"))
}

func TestWith_SharesOutput(t *testing.T) {
	var buf bytes.Buffer
	root := NewWriter(&buf, "debug")
	child := root.With(F("batch", 7))

	child.Debug("executor", "step", F("took", 1500*time.Microsecond), F("path", "a | b"))
	root.Info("executor", "done")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "[DEBUG] [executor] step | batch=7 | took=2ms | path=\"a | b\"")
	assert.NotContains(t, lines[1], "batch=7")
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Error("x", "y", errors.New("z"))
	assert.NoError(t, l.Close())
}

func TestNew_RotatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")
	l, err := New(Config{Level: "debug", File: path, MaxBackups: 2})
	require.NoError(t, err)
	defer l.Close()

	l.out.maxSize = 64
	for i := 0; i < 10; i++ {
		l.Info("test", "a line long enough to push the file past its limit")
	}

	_, err = os.Stat(filepath.Join(filepath.Dir(path), "app.1.log"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(filepath.Dir(path), "app.3.log"))
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, path, l.FilePath())
}
