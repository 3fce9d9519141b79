package transfer

import (
	"fmt"
	"path/filepath"
	"sort"
	"sync"
)

// Memory is an in-memory Renamer. Directories are implicit except for the
// ones created through MkdirAll. Fail makes a rename out of a path return
// an error, which lets callers rehearse partial batches.
type Memory struct {
	mu    sync.Mutex
	files map[string]string
	dirs  map[string]bool
	fail  map[string]error
}

func NewMemory(paths ...string) *Memory {
	m := &Memory{
		files: make(map[string]string),
		dirs:  make(map[string]bool),
		fail:  make(map[string]error),
	}
	for _, p := range paths {
		m.files[filepath.Clean(p)] = filepath.Base(p)
	}
	return m
}

// Fail makes every later rename from path fail with err.
func (m *Memory) Fail(path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail[filepath.Clean(path)] = err
}

func (m *Memory) Rename(from, to string, overwrite bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	from, to = filepath.Clean(from), filepath.Clean(to)

	if err, ok := m.fail[from]; ok {
		return err
	}
	content, ok := m.files[from]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSourceNotFound, from)
	}
	if m.dirs[to] {
		return fmt.Errorf("%w: %s", ErrTargetIsDir, to)
	}
	if _, taken := m.files[to]; taken && !overwrite {
		return fmt.Errorf("%w: %s", ErrTargetExists, to)
	}
	delete(m.files, from)
	m.files[to] = content
	return nil
}

func (m *Memory) Exists(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	path = filepath.Clean(path)
	_, ok := m.files[path]
	return ok || m.dirs[path]
}

func (m *Memory) MkdirAll(dir string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	dir = filepath.Clean(dir)
	if m.parentKnown(dir) {
		return nil, nil
	}

	var missing []string
	for d := dir; !m.parentKnown(d); d = filepath.Dir(d) {
		if _, isFile := m.files[d]; isFile {
			return nil, fmt.Errorf("%s is not a directory", d)
		}
		missing = append(missing, d)
	}
	created := make([]string, 0, len(missing))
	for i := len(missing) - 1; i >= 0; i-- {
		m.dirs[missing[i]] = true
		created = append(created, missing[i])
	}
	return created, nil
}

// parentKnown reports whether dir exists: it was created, holds a file, or
// is the root.
func (m *Memory) parentKnown(dir string) bool {
	if m.dirs[dir] || filepath.Dir(dir) == dir {
		return true
	}
	for p := range m.files {
		if filepath.Dir(p) == dir {
			return true
		}
	}
	for d := range m.dirs {
		if filepath.Dir(d) == dir {
			return true
		}
	}
	return false
}

func (m *Memory) RemoveDir(dir string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	dir = filepath.Clean(dir)
	for p := range m.files {
		if filepath.Dir(p) == dir {
			return fmt.Errorf("directory not empty: %s", dir)
		}
	}
	for d := range m.dirs {
		if filepath.Dir(d) == dir {
			return fmt.Errorf("directory not empty: %s", dir)
		}
	}
	delete(m.dirs, dir)
	return nil
}

// Files lists every file path in sorted order.
func (m *Memory) Files() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.files))
	for p := range m.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Content returns the original base name of the file now at path.
func (m *Memory) Content(path string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.files[filepath.Clean(path)]
	return c, ok
}
