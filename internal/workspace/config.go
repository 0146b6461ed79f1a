package workspace

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultProgram is the command-line program named in suggested commands.
const DefaultProgram = "consult"

// Config is the optional governance.yaml at the workspace root.
// All fields are optional; zero values fall back to DefaultLayout.
type Config struct {
	// Program is the domain CLI used in suggested commands (e.g. "consult").
	Program string `yaml:"program,omitempty"`

	// DataDir holds raw input data, relative to the root.
	DataDir string `yaml:"data_dir,omitempty"`

	// DataSource is a file or directory copied into DataDir in suggested
	// commands.
	DataSource string `yaml:"data_source,omitempty"`

	// RequiredDirs are directories every healthy workspace has.
	RequiredDirs []string `yaml:"required_dirs,omitempty"`

	// Placeholders are file names ignored when counting data files.
	Placeholders []string `yaml:"placeholders,omitempty"`

	// Paths overrides canonical artifact locations.
	Paths PathsConfig `yaml:"paths,omitempty"`
}

// PathsConfig overrides individual canonical artifact paths.
type PathsConfig struct {
	Spec     string `yaml:"spec,omitempty"`
	Profile  string `yaml:"profile,omitempty"`
	Insights string `yaml:"insights,omitempty"`
	Build    string `yaml:"build,omitempty"`
	Charts   string `yaml:"charts,omitempty"`
	Tables   string `yaml:"tables,omitempty"`
}

// LoadConfig reads a governance.yaml file.
// A missing file returns an empty config and no error. Unknown fields are
// rejected so typos surface instead of silently using defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Config{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if len(bytes.TrimSpace(data)) == 0 {
		return &cfg, nil
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

func validateConfig(cfg *Config) error {
	for i, dir := range cfg.RequiredDirs {
		if dir == "" {
			return fmt.Errorf("required_dirs[%d]: must be non-empty", i)
		}
	}
	for i, name := range cfg.Placeholders {
		if name == "" {
			return fmt.Errorf("placeholders[%d]: must be non-empty", i)
		}
	}
	return nil
}

// apply overlays non-zero config values onto layout.
func (cfg *Config) apply(layout *Layout) {
	override := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	override(&layout.DataDir, cfg.DataDir)
	override(&layout.DataSource, cfg.DataSource)
	override(&layout.SpecFile, cfg.Paths.Spec)
	override(&layout.ProfileFile, cfg.Paths.Profile)
	override(&layout.InsightsFile, cfg.Paths.Insights)
	override(&layout.BuildDir, cfg.Paths.Build)
	override(&layout.ChartsDir, cfg.Paths.Charts)
	override(&layout.TablesDir, cfg.Paths.Tables)
	if len(cfg.RequiredDirs) > 0 {
		layout.RequiredDirs = append([]string(nil), cfg.RequiredDirs...)
	}
	if len(cfg.Placeholders) > 0 {
		layout.Placeholders = append([]string(nil), cfg.Placeholders...)
	}
}
