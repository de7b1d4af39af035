package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesdx/xref/internal/projection"
)

func TestLoadWithoutInit(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), ".xref"))
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestSaveLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), ".xref")
	cfg := Default("/repo")
	cfg.SourceRoots = []string{"src", "lib"}
	cfg.Exclude = []string{"**/generated/**"}
	cfg.Denylist = []string{"Observable"}
	cfg.PartitionMembersByOwner = true
	cfg.Output.Formats = []string{"json", "yaml"}
	require.NoError(t, Save(cfg, dir))

	data, err := os.ReadFile(Path(dir))
	require.NoError(t, err)
	assert.Contains(t, string(data), "partition_members_by_owner: true")
	assert.Contains(t, string(data), "source_roots:")

	got, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestLoadKeepsDefaultsForMissingFields(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(Path(dir), []byte("repo_root: /repo\nsource_roots: [src]\n"), 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"src"}, cfg.SourceRoots)
	assert.True(t, cfg.Store)
	assert.Equal(t, DefaultOutputDir, cfg.Output.Dir)

	formats, err := cfg.Formats()
	require.NoError(t, err)
	assert.Equal(t, []projection.Format{projection.FormatJSON}, formats)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no source roots", func(c *Config) { c.SourceRoots = nil }},
		{"negative workers", func(c *Config) { c.Workers = -1 }},
		{"negative keep", func(c *Config) { c.Keep = -2 }},
		{"unknown format", func(c *Config) { c.Output.Formats = []string{"xml"} }},
		{"bad glob", func(c *Config) { c.Exclude = []string{"src/[a-"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default("/repo")
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
			assert.Error(t, Save(cfg, t.TempDir()))
		})
	}
	assert.NoError(t, Default("/repo").Validate())
}

func TestFormatsDeduplicates(t *testing.T) {
	cfg := Default("/repo")
	cfg.Output.Formats = []string{"yaml", "yml", "json"}
	formats, err := cfg.Formats()
	require.NoError(t, err)
	assert.Equal(t, []projection.Format{projection.FormatYAML, projection.FormatJSON}, formats)
}

func TestExcludeGlobs(t *testing.T) {
	cfg := Default("/repo")
	cfg.Exclude = []string{"**/*.spec.ts", "src/legacy/**"}
	globs, err := cfg.ExcludeGlobs()
	require.NoError(t, err)
	require.Len(t, globs, 2)
	assert.True(t, globs[0].Match("src/app/user.spec.ts"))
	assert.False(t, globs[0].Match("src/app/user.ts"))
	assert.True(t, globs[1].Match("src/legacy/a/b.ts"))
}

func TestOutputDir(t *testing.T) {
	cfg := Default("/repo")
	assert.Equal(t, filepath.Join("/repo", ".xref", "out"), cfg.OutputDir())
	cfg.Output.Dir = "/tmp/xref"
	assert.Equal(t, "/tmp/xref", cfg.OutputDir())
}
