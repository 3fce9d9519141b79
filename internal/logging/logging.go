// Package logging writes component-tagged log lines to a size-rotated file.
//
// A line looks like
//
//	2026-01-02T15:04:05Z [INFO] [executor] batch applied | batch=3 | renamed=12
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Nomadcxx/jellyrename/internal/paths"
)

// Level represents a logging level
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	levelOff
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR"}

func (l Level) String() string {
	if l >= LevelDebug && l <= LevelError {
		return levelNames[l]
	}
	return "UNKNOWN"
}

// ParseLevel converts a string to a Level. Unknown names mean info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	}
	return LevelInfo
}

// Field is a key-value pair appended to a line.
type Field struct {
	Key   string
	Value interface{}
}

// F creates a new Field (shorthand for structured logging)
func F(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// Config holds logger configuration
type Config struct {
	Level      string `mapstructure:"level" toml:"level"`             // debug, info, warn, error
	File       string `mapstructure:"file" toml:"file"`               // log file path (empty = default under the config dir)
	MaxSizeMB  int    `mapstructure:"max_size_mb" toml:"max_size_mb"` // max size before rotation (default: 10)
	MaxBackups int    `mapstructure:"max_backups" toml:"max_backups"` // number of backups to keep (default: 5)
	Console    bool   `mapstructure:"console" toml:"console"`         // mirror log lines to stderr
}

// DefaultConfig returns default logging configuration
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		MaxSizeMB:  10,
		MaxBackups: 5,
	}
}

const (
	defaultMaxSize    = 10 << 20
	defaultMaxBackups = 5
)

// sink is the shared output of a logger and the loggers derived from it.
type sink struct {
	mu         sync.Mutex
	path       string
	file       *os.File
	size       int64
	maxSize    int64
	maxBackups int
	extra      []io.Writer
}

// Logger is safe for concurrent use. Loggers returned by With share the
// parent's output.
type Logger struct {
	level  Level
	out    *sink
	fields []Field
}

// New opens the log file named by cfg, creating its directory.
func New(cfg Config) (*Logger, error) {
	s := &sink{
		maxSize:    int64(cfg.MaxSizeMB) << 20,
		maxBackups: cfg.MaxBackups,
	}
	if s.maxSize <= 0 {
		s.maxSize = defaultMaxSize
	}
	if s.maxBackups <= 0 {
		s.maxBackups = defaultMaxBackups
	}
	if cfg.Console {
		s.extra = []io.Writer{os.Stderr}
	}

	path, err := logFile(cfg.File)
	if err != nil {
		return nil, err
	}
	s.path = path

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("unable to create log directory: %w", err)
	}
	if err := s.open(); err != nil {
		return nil, err
	}

	return &Logger{level: ParseLevel(cfg.Level), out: s}, nil
}

func logFile(file string) (string, error) {
	if file == "" {
		p, err := paths.LogPath()
		if err != nil {
			return "", fmt.Errorf("unable to get log path: %w", err)
		}
		return p, nil
	}
	if strings.HasPrefix(file, "~") {
		home, err := paths.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("unable to get home dir: %w", err)
		}
		return filepath.Join(home, file[1:]), nil
	}
	return file, nil
}

// NewWriter returns a logger that writes to w only, without rotation.
func NewWriter(w io.Writer, level string) *Logger {
	return &Logger{level: ParseLevel(level), out: &sink{extra: []io.Writer{w}}}
}

// Nop returns a no-operation logger that discards all output
func Nop() *Logger {
	return &Logger{level: levelOff, out: &sink{}}
}

// With returns a logger that appends fields to every line.
func (l *Logger) With(fields ...Field) *Logger {
	child := *l
	child.fields = append(append([]Field(nil), l.fields...), fields...)
	return &child
}

func (l *Logger) Debug(component, msg string, fields ...Field) {
	l.log(LevelDebug, component, msg, nil, fields)
}

func (l *Logger) Info(component, msg string, fields ...Field) {
	l.log(LevelInfo, component, msg, nil, fields)
}

func (l *Logger) Warn(component, msg string, fields ...Field) {
	l.log(LevelWarn, component, msg, nil, fields)
}

// Error logs msg with err as the first field.
func (l *Logger) Error(component, msg string, err error, fields ...Field) {
	l.log(LevelError, component, msg, err, fields)
}

func (l *Logger) log(level Level, component, msg string, err error, fields []Field) {
	if level < l.level {
		return
	}

	var sb strings.Builder
	sb.WriteString(time.Now().Format(time.RFC3339))
	fmt.Fprintf(&sb, " [%s] [%s] %s", level, component, msg)
	if err != nil {
		writeField(&sb, "error", err.Error())
	}
	for _, f := range l.fields {
		writeField(&sb, f.Key, f.Value)
	}
	for _, f := range fields {
		writeField(&sb, f.Key, f.Value)
	}
	sb.WriteByte('\n')

	l.out.write([]byte(sb.String()))
}

// writeField renders " | key=value". Strings that would break the line
// format are quoted.
func writeField(sb *strings.Builder, key string, value interface{}) {
	sb.WriteString(" | ")
	sb.WriteString(key)
	sb.WriteByte('=')

	var s string
	switch v := value.(type) {
	case string:
		s = v
	case time.Duration:
		s = v.Round(time.Millisecond).String()
	case error:
		s = v.Error()
	default:
		s = fmt.Sprintf("%v", v)
	}
	if strings.ContainsAny(s, "|\n") {
		s = fmt.Sprintf("%q", s)
	}
	sb.WriteString(s)
}

// Close closes the log file
func (l *Logger) Close() error {
	return l.out.close()
}

// FilePath returns the log file path, empty for writer-only loggers.
func (l *Logger) FilePath() string {
	return l.out.path
}
