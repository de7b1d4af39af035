package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gobwas/glob"
	"gopkg.in/yaml.v3"

	"github.com/mesdx/xref/internal/projection"
)

const configFileName = "config.yaml"

// DefaultOutputDir is where projections are written, relative to the repo root.
const DefaultOutputDir = ".xref/out"

// ErrNotInitialized is returned by Load when no config file exists.
var ErrNotInitialized = errors.New("xref is not initialized; run `xref init`")

// Output controls projection files.
type Output struct {
	Formats []string `yaml:"formats"`
	Dir     string   `yaml:"dir"`
}

// Config represents the xref configuration.
type Config struct {
	RepoRoot    string   `yaml:"repo_root"`
	SourceRoots []string `yaml:"source_roots"`
	// Exclude holds glob patterns matched against root-relative paths.
	Exclude []string `yaml:"exclude,omitempty"`
	// Denylist adds names that are never reference candidates.
	Denylist []string `yaml:"denylist,omitempty"`
	// ReplaceDenylist makes Denylist replace the built-in names.
	ReplaceDenylist bool `yaml:"replace_denylist,omitempty"`

	Workers                 int  `yaml:"workers,omitempty"`
	PartitionMembersByOwner bool `yaml:"partition_members_by_owner"`
	AllowSyntaxErrors       bool `yaml:"allow_syntax_errors"`

	Output Output `yaml:"output"`
	Store  bool   `yaml:"store"`
	// Keep bounds the stored scan history.
	Keep int `yaml:"keep,omitempty"`
}

// Default returns the configuration used when none has been saved.
func Default(repoRoot string) *Config {
	return &Config{
		RepoRoot:    repoRoot,
		SourceRoots: []string{"."},
		Output: Output{
			Formats: []string{string(projection.FormatJSON)},
			Dir:     DefaultOutputDir,
		},
		Store: true,
	}
}

// Path returns the path to the config file in the .xref directory.
func Path(xrefDir string) string {
	return filepath.Join(xrefDir, configFileName)
}

// Save validates cfg and writes it to disk.
func Save(cfg *Config, xrefDir string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(xrefDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(Path(xrefDir), data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Load reads and validates the configuration from disk. Fields missing from
// the file keep their Default values.
func Load(xrefDir string) (*Config, error) {
	data, err := os.ReadFile(Path(xrefDir))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotInitialized
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default("")
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", Path(xrefDir), err)
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if len(c.SourceRoots) == 0 {
		return errors.New("source_roots must not be empty")
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	if c.Keep < 0 {
		return fmt.Errorf("keep must not be negative, got %d", c.Keep)
	}
	if _, err := c.Formats(); err != nil {
		return err
	}
	if _, err := c.ExcludeGlobs(); err != nil {
		return err
	}
	return nil
}

// Formats parses Output.Formats.
func (c *Config) Formats() ([]projection.Format, error) {
	out := make([]projection.Format, 0, len(c.Output.Formats))
	seen := map[projection.Format]bool{}
	for _, s := range c.Output.Formats {
		f, err := projection.ParseFormat(s)
		if err != nil {
			return nil, err
		}
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out, nil
}

// ExcludeGlobs compiles the exclude patterns with '/' as separator.
func (c *Config) ExcludeGlobs() ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(c.Exclude))
	for _, p := range c.Exclude {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("bad exclude pattern %q: %w", p, err)
		}
		out = append(out, g)
	}
	return out, nil
}

// OutputDir resolves Output.Dir against the repo root.
func (c *Config) OutputDir() string {
	dir := c.Output.Dir
	if dir == "" {
		dir = DefaultOutputDir
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(c.RepoRoot, filepath.FromSlash(dir))
}
