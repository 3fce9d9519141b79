package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (s *sink) open() error {
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("unable to open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("unable to stat log file: %w", err)
	}
	s.file = f
	s.size = info.Size()
	return nil
}

func (s *sink) write(line []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file != nil {
		if s.size > 0 && s.size+int64(len(line)) > s.maxSize {
			if err := s.rotate(); err != nil {
				fmt.Fprintf(os.Stderr, "log rotation error: %v\n", err)
			}
		}
		if s.file != nil {
			n, _ := s.file.Write(line)
			s.size += int64(n)
		}
	}
	for _, w := range s.extra {
		w.Write(line)
	}
}

func (s *sink) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// rotate shifts app.N.log to app.N+1.log, drops the ones past maxBackups
// and starts a fresh app.log.
func (s *sink) rotate() error {
	if err := s.file.Close(); err != nil {
		return err
	}
	s.file = nil

	for n := s.maxBackups; n >= 1; n-- {
		from := backupName(s.path, n)
		if _, err := os.Stat(from); err != nil {
			continue
		}
		if n == s.maxBackups {
			os.Remove(from)
			continue
		}
		if err := os.Rename(from, backupName(s.path, n+1)); err != nil {
			return fmt.Errorf("failed to rotate %s: %w", from, err)
		}
	}
	if err := os.Rename(s.path, backupName(s.path, 1)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to rotate current log: %w", err)
	}

	return s.open()
}

// backupName returns dir/app.N.log for dir/app.log.
func backupName(path string, n int) string {
	ext := filepath.Ext(path)
	return fmt.Sprintf("%s.%d%s", strings.TrimSuffix(path, ext), n, ext)
}
