// Package media holds helpers for working with downloaded rendition files.
package media

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// renditionExtensions lists the container formats the downloader may hand us.
var renditionExtensions = map[string]struct{}{
	".avi":  {},
	".mp4":  {},
	".mkv":  {},
	".nut":  {},
	".mpeg": {},
	".mpg":  {},
	".ts":   {},
}

// IsRendition reports whether a file name looks like a downloaded rendition.
func IsRendition(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	_, ok := renditionExtensions[ext]
	return ok
}

// ListRenditions returns the rendition files directly inside dir, sorted by
// name for deterministic iteration.
func ListRenditions(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read renditions dir: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !IsRendition(entry.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// Stem returns a file name without its directory and extension, the key used
// to pair a rendition with its feature report.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
