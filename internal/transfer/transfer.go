// Package transfer performs the single-file renames a batch is made of.
// Renames never fall back to copy and delete: a move across filesystems is
// refused with a CrossDeviceError so every step stays atomic.
package transfer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var (
	// ErrSourceNotFound is returned when the file to move is gone.
	ErrSourceNotFound = errors.New("source file not found")

	// ErrTargetExists is returned when the target is occupied and the
	// rename was not allowed to overwrite.
	ErrTargetExists = errors.New("target already exists")

	// ErrTargetIsDir is returned when the target is a directory.
	ErrTargetIsDir = errors.New("target is a directory")
)

// replaced in tests to simulate EXDEV
var renameFunc = os.Rename

// CrossDeviceError reports a rename between two filesystems.
type CrossDeviceError struct {
	From string
	To   string
	Err  error
}

func (e *CrossDeviceError) Error() string {
	return fmt.Sprintf("cannot move %q to %q across filesystems: %v", e.From, e.To, e.Err)
}

func (e *CrossDeviceError) Unwrap() error { return e.Err }

func IsCrossDevice(err error) bool {
	var e *CrossDeviceError
	return errors.As(err, &e)
}

// Renamer is the filesystem as seen by the executor and the undo manager.
type Renamer interface {
	// Rename moves from to to. Without overwrite an occupied target fails
	// with ErrTargetExists.
	Rename(from, to string, overwrite bool) error
	Exists(path string) bool
	// MkdirAll creates dir and its missing parents and returns the
	// directories it created, outermost first.
	MkdirAll(dir string) ([]string, error)
	// RemoveDir removes dir if it is empty.
	RemoveDir(dir string) error
}

// OS is the Renamer backed by the local filesystem.
type OS struct {
	DirMode os.FileMode
}

func NewOS() *OS {
	return &OS{DirMode: 0755}
}

func (o *OS) Rename(from, to string, overwrite bool) error {
	if _, err := os.Lstat(from); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrSourceNotFound, from)
		}
		return fmt.Errorf("stat source: %w", err)
	}

	if fi, err := os.Lstat(to); err == nil {
		if fi.IsDir() {
			return fmt.Errorf("%w: %s", ErrTargetIsDir, to)
		}
		if !overwrite {
			return fmt.Errorf("%w: %s", ErrTargetExists, to)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat target: %w", err)
	}

	if err := renameFunc(from, to); err != nil {
		if isEXDEV(err) {
			return &CrossDeviceError{From: from, To: to, Err: err}
		}
		return err
	}
	return nil
}

func (o *OS) Exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

func (o *OS) MkdirAll(dir string) ([]string, error) {
	dir = filepath.Clean(dir)
	var missing []string
	for d := dir; ; d = filepath.Dir(d) {
		fi, err := os.Stat(d)
		if err == nil {
			if !fi.IsDir() {
				return nil, fmt.Errorf("%s is not a directory", d)
			}
			break
		}
		if !os.IsNotExist(err) {
			return nil, err
		}
		missing = append(missing, d)
		if parent := filepath.Dir(d); parent == d {
			break
		}
	}

	mode := o.DirMode
	if mode == 0 {
		mode = 0755
	}
	created := make([]string, 0, len(missing))
	for i := len(missing) - 1; i >= 0; i-- {
		if err := os.Mkdir(missing[i], mode); err != nil && !os.IsExist(err) {
			return created, fmt.Errorf("creating directory: %w", err)
		}
		created = append(created, missing[i])
	}
	return created, nil
}

func (o *OS) RemoveDir(dir string) error {
	err := os.Remove(dir)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}
