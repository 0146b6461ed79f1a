package bundle

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/roach88/trustgate/internal/digest"
	"github.com/roach88/trustgate/internal/ledger"
	"github.com/roach88/trustgate/internal/result"
	"github.com/roach88/trustgate/internal/safe"
	"github.com/roach88/trustgate/internal/workspace"
)

// Sections are the markdown headings in document order.
var Sections = []string{
	"1. Run Identity",
	"2. Workflow State",
	"3. What Executed",
	"4. Evidence Ledger",
	"5. Artifacts Produced",
	"6. Skills Executed",
	"7. Warnings & Blocks",
	"8. What's Missing",
	"9. Next CLI Actions",
}

// RecoveryHint is suggested after a blocked run with no explicit recovery
// commands.
const RecoveryHint = "cat " + workspace.RecoveryPlan

// RunIdentity identifies the run.
type RunIdentity struct {
	RunID         string `json:"run_id"`
	Timestamp     string `json:"timestamp"`
	Command       string `json:"command"`
	ToolVersion   string `json:"tool_version"`
	SchemaVersion string `json:"schema_version"`
}

// WorkflowState is the workflow position around the run.
type WorkflowState struct {
	StageBefore     *string  `json:"stage_before"`
	StageAfter      *string  `json:"stage_after"`
	CompletedStages []string `json:"completed_stages"`
}

// WhatExecuted summarizes the invocation and its outcome.
type WhatExecuted struct {
	Command  string         `json:"command"`
	Args     map[string]any `json:"args"`
	Outcome  string         `json:"outcome"`
	Success  bool           `json:"success"`
	Blocked  bool           `json:"blocked"`
	Decision *string        `json:"policy_decision"`
}

// Outcome values.
const (
	OutcomeSuccess = "SUCCESS"
	OutcomeFailed  = "FAILED"
	OutcomeBlocked = "BLOCKED"
)

// EvidenceRef points at the saved ledger.
type EvidenceRef struct {
	Path    string `json:"path"`
	Digest  string `json:"digest"`
	Inputs  int    `json:"inputs"`
	Outputs int    `json:"outputs"`
}

// Artifact is one recorded output file.
type Artifact struct {
	Path string  `json:"path"`
	Hash *string `json:"hash"`
}

// WarningsBlocks collects everything that went wrong or was flagged.
type WarningsBlocks struct {
	Warnings []string `json:"warnings"`
	Errors   []string `json:"errors"`
	Blocks   []string `json:"blocks"`
}

// Bundle is the structured trust bundle.
type Bundle struct {
	RunIdentity       RunIdentity    `json:"run_identity"`
	WorkflowState     WorkflowState  `json:"workflow_state"`
	OutputPreferences map[string]any `json:"output_preferences"`
	ExecutionMode     string         `json:"execution_mode"`
	WhatExecuted      WhatExecuted   `json:"what_executed"`
	EvidenceLedger    EvidenceRef    `json:"evidence_ledger"`
	ArtifactsProduced []Artifact     `json:"artifacts_produced"`
	SkillsExecuted    []string       `json:"skills_executed"`
	WarningsBlocks    WarningsBlocks `json:"warnings_blocks"`
	WhatsMissing      []string       `json:"whats_missing"`
	NextCLIActions    []string       `json:"next_cli_actions"`

	// Problems lists collectors that failed.
	Problems []error `json:"-"`
}

type options struct {
	ledgerPath string
	digest     string
}

// Option customizes Generate.
type Option func(*options)

// WithLedgerPath sets the ledger location shown in the bundle.
func WithLedgerPath(path string) Option {
	return func(o *options) { o.ledgerPath = path }
}

// WithLedgerDigest supplies an already computed ledger digest.
func WithLedgerDigest(d string) Option {
	return func(o *options) { o.digest = d }
}

// part fills one section of a bundle. A section that errors or panics
// leaves the empty default for its part in place.
type part struct {
	name string
	fill func(b *Bundle, c *collector) error
}

// parts are filled in order, one per heading in Sections. next_cli_actions
// starts out as the status command.
var parts = []part{
	{"run_identity", func(b *Bundle, c *collector) error {
		b.RunIdentity = c.identity()
		return nil
	}},
	{"workflow_state", func(b *Bundle, c *collector) error {
		b.WorkflowState = c.workflowState()
		if c.ws != nil && c.ws.OutputPreferences != nil {
			b.OutputPreferences = c.ws.OutputPreferences
		}
		return nil
	}},
	{"what_executed", func(b *Bundle, c *collector) error {
		b.WhatExecuted = c.whatExecuted()
		return nil
	}},
	{"evidence_ledger", func(b *Bundle, c *collector) error {
		ref, err := c.evidence()
		b.EvidenceLedger = ref
		return err
	}},
	{"artifacts_produced", func(b *Bundle, c *collector) error {
		b.ArtifactsProduced = c.artifacts()
		return nil
	}},
	{"skills_executed", func(b *Bundle, c *collector) error {
		b.SkillsExecuted = c.skills()
		return nil
	}},
	{"warnings_blocks", func(b *Bundle, c *collector) error {
		b.WarningsBlocks = c.warningsBlocks()
		return nil
	}},
	{"whats_missing", func(b *Bundle, c *collector) error {
		b.WhatsMissing = c.missing()
		return nil
	}},
	{"next_cli_actions", func(b *Bundle, c *collector) error {
		b.NextCLIActions = c.nextActions()
		return nil
	}},
}

// Generate builds the bundle for a run. It never panics; if every
// section fails the result is Fallback.
func Generate(l *ledger.Ledger, res *result.Result, ws *workspace.Workspace, opts ...Option) Bundle {
	return generate(l, res, ws, parts, opts...)
}

func generate(l *ledger.Ledger, res *result.Result, ws *workspace.Workspace, secs []part, opts ...Option) Bundle {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if l == nil {
		l = &ledger.Ledger{}
	}
	c := &collector{l: l, res: res, ws: ws, opts: o}

	b := Bundle{
		ExecutionMode:     l.ExecutionMode,
		OutputPreferences: map[string]any{},
		ArtifactsProduced: []Artifact{},
		SkillsExecuted:    []string{},
		WhatsMissing:      []string{},
		WarningsBlocks:    WarningsBlocks{Warnings: []string{}, Errors: []string{}, Blocks: []string{}},
		NextCLIActions:    []string{c.cmd("status")},
	}
	for _, s := range secs {
		if err := safe.Do(s.name, func() error { return s.fill(&b, c) }); err != nil {
			b.Problems = append(b.Problems, err)
		}
	}

	if len(secs) > 0 && len(b.Problems) == len(secs) {
		fb := Fallback(c.program(), l.RunID)
		fb.Problems = b.Problems
		return fb
	}
	return b
}

// Fallback is the minimal bundle used when nothing could be collected.
func Fallback(program, runID string) Bundle {
	if program == "" {
		program = workspace.DefaultProgram
	}
	return Bundle{
		RunIdentity:       RunIdentity{RunID: runID, ToolVersion: ledger.ToolVersion, SchemaVersion: ledger.SchemaVersion},
		OutputPreferences: map[string]any{},
		WhatExecuted:      WhatExecuted{Outcome: OutcomeFailed, Args: map[string]any{}},
		ArtifactsProduced: []Artifact{},
		SkillsExecuted:    []string{},
		WarningsBlocks:    WarningsBlocks{Warnings: []string{"trust bundle could not be generated"}, Errors: []string{}, Blocks: []string{}},
		WhatsMissing:      []string{},
		NextCLIActions:    []string{program + " status"},
	}
}

// JSON returns the indented structured form.
func (b Bundle) JSON() ([]byte, error) {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal trust bundle: %w", err)
	}
	return append(data, '\n'), nil
}

// Save writes both forms under root, replacing previous bundles. Each form
// is written independently; a path is empty only when its own write failed,
// and err joins every failure.
func Save(b Bundle, root string) (mdPath, jsonPath string, err error) {
	dir := filepath.Join(root, filepath.FromSlash(workspace.AuditDir))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("save trust bundle: %w", err)
	}

	var errs []error
	mdPath = filepath.Join(root, filepath.FromSlash(workspace.TrustBundleMD))
	if err := os.WriteFile(mdPath, []byte(b.Markdown()), 0o644); err != nil {
		errs = append(errs, fmt.Errorf("save trust bundle markdown: %w", err))
		mdPath = ""
	}

	jsonPath = filepath.Join(root, filepath.FromSlash(workspace.TrustBundleJSON))
	data, err := b.JSON()
	if err == nil {
		err = os.WriteFile(jsonPath, data, 0o644)
	}
	if err != nil {
		errs = append(errs, fmt.Errorf("save trust bundle json: %w", err))
		jsonPath = ""
	}
	return mdPath, jsonPath, errors.Join(errs...)
}

// Load reads a saved structured bundle.
func Load(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read trust bundle: %w", err)
	}
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parse trust bundle: %w", err)
	}
	return &b, nil
}

func appendUnique(list []string, s string) []string {
	if s == "" || slices.Contains(list, s) {
		return list
	}
	return append(list, s)
}

// Digest returns the canonical content digest of the structured form.
func (b Bundle) Digest() (string, error) {
	return digest.Document(digest.DomainBundle, b)
}
