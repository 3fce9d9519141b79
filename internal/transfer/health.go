package transfer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrStatTimeout is returned when a stat did not answer in time, which
// usually means a hung network mount.
var ErrStatTimeout = errors.New("stat timed out")

// DirError reports a source directory that failed the preflight check.
type DirError struct {
	Dir    string
	Reason string
	Err    error
}

func (e *DirError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Dir, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Dir, e.Reason)
}

func (e *DirError) Unwrap() error { return e.Err }

// StatWithTimeout stats path in the background and returns ErrStatTimeout
// if the answer takes longer than timeout. The stat itself is left running.
func StatWithTimeout(path string, timeout time.Duration) (os.FileInfo, error) {
	done := make(chan struct{})
	var (
		info os.FileInfo
		err  error
	)
	go func() {
		defer close(done)
		info, err = os.Stat(path)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return info, err
	case <-timer.C:
		return nil, fmt.Errorf("%w after %s", ErrStatTimeout, timeout)
	}
}

// CheckDirs verifies that every directory a batch renames out of is
// reachable and writable. Duplicates are checked once.
func CheckDirs(dirs []string, timeout time.Duration) error {
	checked := make(map[string]struct{}, len(dirs))
	for _, dir := range dirs {
		dir = filepath.Clean(dir)
		if _, ok := checked[dir]; ok {
			continue
		}
		checked[dir] = struct{}{}

		info, err := StatWithTimeout(dir, timeout)
		switch {
		case err != nil:
			return &DirError{Dir: dir, Reason: "not accessible", Err: err}
		case !info.IsDir():
			return &DirError{Dir: dir, Reason: "not a directory"}
		case info.Mode().Perm()&0222 == 0:
			return &DirError{Dir: dir, Reason: "not writable"}
		}
	}
	return nil
}
