package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesdx/xref/internal/config"
	"github.com/mesdx/xref/internal/store"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"-q"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
}

func newProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0755))
	writeFiles(t, root, map[string]string{
		"src/widget.ts": "export class Widget {\n  render(): string {\n    return \"w\";\n  }\n}\n",
		"src/app.ts":    "import { Widget } from \"./widget\";\n\nconst w = new Widget();\nw.render();\n",
	})
	return root
}

func TestInitWritesConfigAndDatabase(t *testing.T) {
	root := newProject(t)
	writeFiles(t, root, map[string]string{".gitignore": "node_modules/\n"})

	out, err := execute(t, "init", "--root", root, "--yes")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Initialization complete")

	cfg, err := config.Load(filepath.Join(root, ".xref"))
	require.NoError(t, err)
	assert.Equal(t, []string{"."}, cfg.SourceRoots)
	assert.Equal(t, root, cfg.RepoRoot)
	assert.FileExists(t, filepath.Join(root, ".xref", "xref.db"))

	gitignore, err := os.ReadFile(filepath.Join(root, ".gitignore"))
	require.NoError(t, err)
	assert.Contains(t, string(gitignore), ".xref/")

	// A second init keeps the ignore file unchanged.
	_, err = execute(t, "init", "--root", root, "--yes")
	require.NoError(t, err)
	again, err := os.ReadFile(filepath.Join(root, ".gitignore"))
	require.NoError(t, err)
	assert.Equal(t, string(gitignore), string(again))
}

func TestScanWritesProjectionAndStore(t *testing.T) {
	root := newProject(t)

	out, err := execute(t, "scan", "--root", root, "--format", "json,yaml", "--metrics", filepath.Join(root, "xref.prom"))
	require.NoError(t, err, out)
	assert.Contains(t, out, "Scanned 2 files")
	assert.Contains(t, out, "Stored scan")

	data, err := os.ReadFile(filepath.Join(root, ".xref", "out", "xref.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"name": "Widget"`)
	assert.FileExists(t, filepath.Join(root, ".xref", "out", "xref.yaml"))

	metrics, err := os.ReadFile(filepath.Join(root, "xref.prom"))
	require.NoError(t, err)
	assert.Contains(t, string(metrics), "xref_phase_seconds")
}

func TestScanNoStore(t *testing.T) {
	root := newProject(t)
	outDir := filepath.Join(t.TempDir(), "proj")

	out, err := execute(t, "scan", "--root", root, "--no-store", "--out", outDir)
	require.NoError(t, err, out)
	assert.FileExists(t, filepath.Join(outDir, "xref.json"))
	assert.NoFileExists(t, filepath.Join(root, ".xref", "xref.db"))
}

func TestScanRejectsUnknownFormat(t *testing.T) {
	root := newProject(t)
	_, err := execute(t, "scan", "--root", root, "--format", "xml")
	assert.Error(t, err)
}

func TestShowSymbol(t *testing.T) {
	root := newProject(t)
	_, err := execute(t, "scan", "--root", root)
	require.NoError(t, err)

	out, err := execute(t, "show", "Widget", "--root", root)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Widget")
	assert.Contains(t, out, "src/widget.ts:1:")
	assert.Contains(t, out, "instantiation")
	assert.Contains(t, out, "src/app.ts:3:")
	assert.Contains(t, out, "render")
	assert.NotContains(t, out, "Changed since")

	out, err = execute(t, "show", "Widget", "--root", root, "--code", "--context", "0")
	require.NoError(t, err, out)
	assert.Contains(t, out, "--- src/widget.ts:1-5 (Widget class) ---")
	assert.Contains(t, out, "--- src/app.ts:3-3 ---")

	out, err = execute(t, "show", "Widget.render", "--root", root)
	require.NoError(t, err, out)
	assert.Contains(t, out, "render")
	assert.Contains(t, out, "method")
}

func TestShowKindFilter(t *testing.T) {
	root := newProject(t)
	_, err := execute(t, "scan", "--root", root)
	require.NoError(t, err)

	_, err = execute(t, "show", "Widget", "--root", root, "--kind", "interface")
	assert.ErrorIs(t, err, errSymbolNotFound)

	_, err = execute(t, "show", "Widget", "--root", root, "--kind", "gadget")
	assert.ErrorContains(t, err, "unknown kind")
}

func TestShowSuggestsNames(t *testing.T) {
	root := newProject(t)
	_, err := execute(t, "scan", "--root", root)
	require.NoError(t, err)

	out, err := execute(t, "show", "Widgte", "--root", root)
	assert.ErrorIs(t, err, errSymbolNotFound)
	assert.Contains(t, out, "Did you mean:")
	assert.Contains(t, out, "  Widget\n")
}

func TestShowReportsChangedFiles(t *testing.T) {
	root := newProject(t)
	_, err := execute(t, "scan", "--root", root)
	require.NoError(t, err)
	writeFiles(t, root, map[string]string{
		"src/app.ts": "import { Widget } from \"./widget\";\n\nexport const w = new Widget();\n",
	})

	out, err := execute(t, "show", "Widget", "--root", root)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Changed since the scan")
	assert.Contains(t, out, "  src/app.ts\n")
}

func TestShowWithoutScan(t *testing.T) {
	root := newProject(t)
	_, err := execute(t, "show", "Widget", "--root", root)
	assert.ErrorIs(t, err, store.ErrNoScans)
}

func TestSuggestNames(t *testing.T) {
	names := []string{"Widget", "WidgetFactory", "Gadget", "Widget.render", "Unrelated"}
	got := suggestNames("Widgte", names)
	require.NotEmpty(t, got)
	assert.Equal(t, "Widget", got[0])
	assert.NotContains(t, got, "Unrelated")

	assert.Empty(t, suggestNames("zzz", names))
	assert.Empty(t, suggestNames("Widget", nil))
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "xref "+Version+"\n", out)
}
