package repo

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const xrefDirName = ".xref"

var (
	// ErrRootNotFound is returned when the start directory does not exist.
	ErrRootNotFound = errors.New("project root not found")
	// ErrRootInaccessible is returned when the root exists but cannot be read
	// as a directory.
	ErrRootInaccessible = errors.New("project root is not an accessible directory")
)

// FindRoot finds the repository root for start. It walks up looking for a
// .git entry and falls back to start itself.
func FindRoot(start string) (string, error) {
	abs, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrRootNotFound, start, err)
	}
	if err := CheckRoot(abs); err != nil {
		return "", err
	}

	dir := abs
	for {
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return abs, nil
}

// CheckRoot verifies that root is a readable directory.
func CheckRoot(root string) error {
	info, err := os.Stat(root)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrRootNotFound, root)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrRootInaccessible, root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrRootInaccessible, root)
	}
	f, err := os.Open(root)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrRootInaccessible, root, err)
	}
	defer f.Close()
	if _, err := f.Readdirnames(1); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %s: %v", ErrRootInaccessible, root, err)
	}
	return nil
}

// Dir returns the path to the .xref directory for a given repo root.
func Dir(repoRoot string) string {
	return filepath.Join(repoRoot, xrefDirName)
}

// excludedDirs are never descended into.
var excludedDirs = map[string]bool{
	".git":             true,
	xrefDirName:        true,
	"node_modules":     true,
	"bower_components": true,
	"vendor":           true,
	"build":            true,
	"dist":             true,
	"out":              true,
	"coverage":         true,
	".next":            true,
	".idea":            true,
	".vscode":          true,
}

func skipDir(name string) bool {
	return excludedDirs[name] || (strings.HasPrefix(name, ".") && name != ".")
}
