// Package scanner expands files and directories into the video files a
// batch should contain.
package scanner

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var videoExts = map[string]bool{
	".mkv": true, ".mp4": true, ".avi": true, ".mov": true,
	".wmv": true, ".flv": true, ".webm": true, ".m4v": true,
	".mpg": true, ".mpeg": true, ".m2ts": true, ".ts": true,
}

// Names containing one of these words are extras, not episodes.
var defaultSkipPatterns = []string{"sample", "trailer", "featurette"}

// IsVideoFile reports whether path has a known video extension.
func IsVideoFile(path string) bool {
	return videoExts[strings.ToLower(filepath.Ext(path))]
}

// Options configures Collect.
type Options struct {
	// Recursive descends into subdirectories of directory arguments.
	Recursive bool
	// All keeps every regular file, not only video files.
	All bool
	// SkipPatterns overrides the default extras filter. An empty, non-nil
	// slice disables it.
	SkipPatterns []string
}

// Result lists collected files in sorted order per argument.
type Result struct {
	Files   []string
	Skipped int
	Errors  []error
}

// Collect expands paths. Files named explicitly are always kept; files found
// inside directories are filtered. Hidden entries and temporary rename
// files are ignored.
func Collect(paths []string, opts Options) Result {
	skip := opts.SkipPatterns
	if skip == nil {
		skip = defaultSkipPatterns
	}

	var res Result
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Errorf("unable to read %s: %w", p, err))
			continue
		}
		if !info.IsDir() {
			res.Files = append(res.Files, p)
			continue
		}

		var found []string
		walkErr := filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				res.Errors = append(res.Errors, err)
				return nil
			}
			name := d.Name()
			if d.IsDir() {
				if path != p && (!opts.Recursive || strings.HasPrefix(name, ".")) {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() || strings.HasPrefix(name, ".") {
				return nil
			}
			if !opts.All && !IsVideoFile(name) {
				res.Skipped++
				return nil
			}
			if matchesAny(name, skip) {
				res.Skipped++
				return nil
			}
			found = append(found, path)
			return nil
		})
		if walkErr != nil {
			res.Errors = append(res.Errors, walkErr)
		}
		sort.Strings(found)
		res.Files = append(res.Files, found...)
	}
	return res
}

func matchesAny(name string, patterns []string) bool {
	lower := strings.ToLower(name)
	for _, p := range patterns {
		if p != "" && strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}
