package planner

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrDiscovery is returned when an input directory cannot be listed.
var ErrDiscovery = errors.New("discover inputs")

// Discover lists the regular files directly inside dir whose extension
// matches one of exts (case-insensitive, leading dot), sorted
// lexicographically. Symlinks count when their target is a regular file;
// dangling links are skipped. Subdirectories are not descended into.
func Discover(dir string, exts []string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDiscovery, err)
	}

	want := make(map[string]bool, len(exts))
	for _, e := range exts {
		want[strings.ToLower(e)] = true
	}

	var files []string
	for _, entry := range entries {
		if !want[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if !entry.Type().IsRegular() {
			info, err := os.Stat(path)
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
		}
		files = append(files, path)
	}
	sort.Strings(files)
	return files, nil
}
