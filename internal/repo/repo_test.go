package repo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gobwas/glob"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, root string, paths ...string) {
	t.Helper()
	for _, p := range paths {
		full := filepath.Join(root, filepath.FromSlash(p))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte("export {};\n"), 0o644))
	}
}

func TestFindRoot(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))
	nested := filepath.Join(root, "src", "app")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	got, err := FindRoot(nested)
	require.NoError(t, err)
	assert.Equal(t, root, got)
}

func TestFindRootFallsBackToStart(t *testing.T) {
	start := t.TempDir()
	got, err := FindRoot(start)
	require.NoError(t, err)
	// The temp dir may sit below a checkout; either way the result contains start.
	assert.True(t, got == start || IsParentOrChild(got, start))
}

func TestFindRootErrors(t *testing.T) {
	_, err := FindRoot(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, ErrRootNotFound)

	file := filepath.Join(t.TempDir(), "file.ts")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	_, err = FindRoot(file)
	assert.ErrorIs(t, err, ErrRootInaccessible)
}

func TestDiscoverFiles(t *testing.T) {
	root := t.TempDir()
	touch(t, root,
		"src/app.ts",
		"src/view.tsx",
		"src/types.d.ts",
		"src/legacy.js",
		"src/readme.md",
		"src/app.spec.ts",
		"src/node_modules/dep/index.ts",
		"src/.cache/x.ts",
		"src/dist/bundle.js",
		"lib/util.ts",
		"scripts/build.ts",
	)
	exclude := []glob.Glob{glob.MustCompile("**/*.spec.ts", '/')}

	files, err := DiscoverFiles(root, []string{"src", "lib"}, exclude)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"lib/util.ts",
		"src/app.ts",
		"src/legacy.js",
		"src/types.d.ts",
		"src/view.tsx",
	}, files)

	all, err := DiscoverFiles(root, []string{"."}, nil)
	require.NoError(t, err)
	assert.Contains(t, all, "scripts/build.ts")
	assert.Contains(t, all, "src/app.spec.ts")
	assert.NotContains(t, all, "src/node_modules/dep/index.ts")
}

func TestDiscoverFilesMissingSourceRoot(t *testing.T) {
	_, err := DiscoverFiles(t.TempDir(), []string{"nope"}, nil)
	assert.Error(t, err)

	_, err = DiscoverFiles(filepath.Join(t.TempDir(), "gone"), []string{"."}, nil)
	assert.ErrorIs(t, err, ErrRootNotFound)
}

func TestDiscoverAllDirs(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "src/a/x.ts", "node_modules/p/y.ts", ".xref/config.yaml")
	dirs, err := DiscoverAllDirs(root)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"src", filepath.Join("src", "a")}, dirs)
}

func TestValidateSelectedDirs(t *testing.T) {
	root := t.TempDir()
	assert.NoError(t, ValidateSelectedDirs(root, []string{"src", "lib"}))
	assert.NoError(t, ValidateSelectedDirs(root, []string{"src", "src2"}))
	assert.ErrorContains(t, ValidateSelectedDirs(root, []string{"src", "src"}), "duplicate")
	assert.ErrorContains(t, ValidateSelectedDirs(root, []string{".", "src"}), "repository root")
	assert.Error(t, ValidateSelectedDirs(root, []string{"src", "src/app"}))
}

func TestIsParentOrChild(t *testing.T) {
	assert.True(t, IsParentOrChild("/a", "/a/b"))
	assert.True(t, IsParentOrChild("/a/b", "/a"))
	assert.False(t, IsParentOrChild("/a", "/a"))
	assert.False(t, IsParentOrChild("/a/b", "/a/c"))
}
