package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/trustgate/internal/policy"
	"github.com/roach88/trustgate/internal/workspace"
)

// Scenario defines one governance scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// RunID is the fixed run id. Empty uses the test default.
	RunID string `yaml:"run_id,omitempty"`

	// Workspace describes the state before the command runs.
	Workspace WorkspaceSetup `yaml:"workspace"`

	// Invocation is the governed command and the result it reports.
	Invocation InvocationStep `yaml:"invocation"`

	// Expect holds the checks applied to the outcome.
	Expect Expectation `yaml:"expect"`
}

// WorkspaceSetup lays out the scenario workspace.
type WorkspaceSetup struct {
	// Stage is written to state/workflow_stage.json when non-empty.
	Stage           string   `yaml:"stage,omitempty"`
	CompletedStages []string `yaml:"completed_stages,omitempty"`

	// Mode is written to state/execution_mode.json when non-empty.
	Mode string `yaml:"mode,omitempty"`

	// RequiredDirs creates the default required directories.
	RequiredDirs bool `yaml:"required_dirs,omitempty"`

	// Dirs are extra directories to create.
	Dirs []string `yaml:"dirs,omitempty"`

	// Files maps relative paths to contents.
	Files map[string]string `yaml:"files,omitempty"`

	// Config is written verbatim to governance.yaml when non-empty.
	Config string `yaml:"config,omitempty"`
}

// InvocationStep is the governed command.
type InvocationStep struct {
	Command string         `yaml:"command"`
	Args    map[string]any `yaml:"args,omitempty"`

	// Creates maps relative paths to contents written when the command runs.
	Creates map[string]string `yaml:"creates,omitempty"`

	// Result is the document the command reports. Required.
	Result map[string]any `yaml:"result"`

	// Error makes the command fail with this message instead of reporting
	// Result.
	Error string `yaml:"error,omitempty"`
}

// Expectation lists what the pipeline must have decided. Empty fields are
// not checked.
type Expectation struct {
	Precondition        string   `yaml:"precondition,omitempty"`
	Enforced            string   `yaml:"enforced,omitempty"`
	MissingPrerequisite string   `yaml:"missing_prerequisite,omitempty"`
	Evidence            string   `yaml:"evidence,omitempty"`
	ViolatedInvariant   string   `yaml:"violated_invariant,omitempty"`
	TruthPassed         *bool    `yaml:"truth_passed,omitempty"`
	MissingArtifacts    []string `yaml:"missing_artifacts,omitempty"`
	Success             *bool    `yaml:"success,omitempty"`
	Blocked             *bool    `yaml:"blocked,omitempty"`
	RecoveryGenerated   *bool    `yaml:"recovery_generated,omitempty"`
	WhatHappened        string   `yaml:"what_happened,omitempty"`
	Tier1               []string `yaml:"tier1,omitempty"`
	NextActions         []string `yaml:"next_actions,omitempty"`
	LedgerErrors        []string `yaml:"ledger_errors,omitempty"`
	Outputs             []string `yaml:"outputs,omitempty"`
}

var decisions = []string{string(policy.Allow), string(policy.Warn), string(policy.Block)}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// FindScenarios lists the .yaml and .yml files under dir whose base name
// matches filter (a glob; empty matches everything), in lexical order.
func FindScenarios(dir, filter string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && d.Name() == "golden" {
				return filepath.SkipDir
			}
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	return files, err
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Invocation.Command == "" {
		return fmt.Errorf("invocation.command is required")
	}
	if s.Invocation.Result == nil && s.Invocation.Error == "" {
		return fmt.Errorf("invocation.result is required unless invocation.error is set")
	}
	if s.Workspace.Mode != "" {
		if _, ok := workspace.ParseMode(s.Workspace.Mode); !ok {
			return fmt.Errorf("workspace.mode: unknown mode %q", s.Workspace.Mode)
		}
	}
	for _, p := range append(keys(s.Workspace.Files), keys(s.Invocation.Creates)...) {
		if filepath.IsAbs(p) || strings.HasPrefix(filepath.Clean(p), "..") {
			return fmt.Errorf("file path %q must be relative to the workspace", p)
		}
	}
	for field, d := range map[string]string{
		"precondition": s.Expect.Precondition,
		"enforced":     s.Expect.Enforced,
		"evidence":     s.Expect.Evidence,
	} {
		if d != "" && !contains(decisions, d) {
			return fmt.Errorf("expect.%s: unknown decision %q", field, d)
		}
	}
	return nil
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
