package repo

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/gobwas/glob"

	"github.com/mesdx/xref/internal/treesitter"
)

// DiscoverAllDirs recursively discovers all directories in the repo root,
// excluding common ignored directories and hidden directories.
func DiscoverAllDirs(repoRoot string) ([]string, error) {
	var dirs []string
	err := filepath.WalkDir(repoRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Skip directories we can't access
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() || path == repoRoot {
			return nil
		}
		if skipDir(d.Name()) {
			return filepath.SkipDir
		}
		rel, err := filepath.Rel(repoRoot, path)
		if err != nil {
			return nil
		}
		dirs = append(dirs, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory tree: %w", err)
	}
	return dirs, nil
}

// DiscoverFiles lists the parseable source files under the given source
// roots. Paths are relative to repoRoot, use forward slashes and are sorted.
// A file is dropped when any exclude glob matches its relative path.
func DiscoverFiles(repoRoot string, sourceRoots []string, exclude []glob.Glob) ([]string, error) {
	if err := CheckRoot(repoRoot); err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var files []string
	for _, sr := range sourceRoots {
		start := filepath.Join(repoRoot, filepath.FromSlash(sr))
		info, err := os.Stat(start)
		if err != nil {
			return nil, fmt.Errorf("source root %s: %w", sr, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("source root %s is not a directory", sr)
		}

		err = filepath.WalkDir(start, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				if path != start && skipDir(d.Name()) {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() || treesitter.DetectLanguage(path) == "" {
				return nil
			}
			rel, err := filepath.Rel(repoRoot, path)
			if err != nil {
				return nil
			}
			rel = filepath.ToSlash(rel)
			if seen[rel] || excluded(rel, exclude) {
				return nil
			}
			seen[rel] = true
			files = append(files, rel)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", sr, err)
		}
	}
	sort.Strings(files)
	return files, nil
}

func excluded(rel string, exclude []glob.Glob) bool {
	for _, g := range exclude {
		if g.Match(rel) {
			return true
		}
	}
	return false
}
