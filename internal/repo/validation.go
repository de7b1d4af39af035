package repo

import (
	"fmt"
	"path/filepath"
	"strings"
)

// IsParentOrChild reports whether one path contains the other. Equal paths
// are not parent and child.
func IsParentOrChild(path1, path2 string) bool {
	abs1, err1 := filepath.Abs(path1)
	abs2, err2 := filepath.Abs(path2)
	if err1 != nil || err2 != nil {
		abs1, abs2 = filepath.Clean(path1), filepath.Clean(path2)
	}
	return within(abs1, abs2) || within(abs2, abs1)
}

// within reports whether child lies strictly below parent.
func within(parent, child string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// ValidateSelectedDirs checks that the selected source roots are unique and
// that none contains another. Roots are "." or paths relative to repoRoot.
func ValidateSelectedDirs(repoRoot string, selectedDirs []string) error {
	abs := make([]string, len(selectedDirs))
	seen := make(map[string]string, len(selectedDirs))
	for i, dir := range selectedDirs {
		p := filepath.Join(repoRoot, filepath.FromSlash(dir))
		if a, err := filepath.Abs(p); err == nil {
			p = a
		}
		if _, dup := seen[p]; dup {
			return fmt.Errorf("duplicate directory selected: %s", dir)
		}
		seen[p] = dir
		abs[i] = p
	}

	label := func(dir string) string {
		if dir == "." {
			return "repository root"
		}
		return dir
	}
	for i := range abs {
		for j := i + 1; j < len(abs); j++ {
			if IsParentOrChild(abs[i], abs[j]) {
				return fmt.Errorf("directories cannot be parent/child of each other: %s and %s",
					label(selectedDirs[i]), label(selectedDirs[j]))
			}
		}
	}
	return nil
}
