package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/roach88/trustgate/internal/governance"
	"github.com/roach88/trustgate/internal/ledger"
	"github.com/roach88/trustgate/internal/result"
	"github.com/roach88/trustgate/internal/testutil"
	"github.com/roach88/trustgate/internal/workspace"
)

// Harness runs scenarios in throwaway workspaces.
type Harness struct {
	logger *slog.Logger
	keep   bool
	tmpDir string
}

// Option configures a Harness.
type Option func(*Harness)

// WithLogger sets the logger handed to the governance pipeline.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) { h.logger = l }
}

// WithTempDir sets the parent directory for scenario workspaces.
func WithTempDir(dir string) Option {
	return func(h *Harness) { h.tmpDir = dir }
}

// KeepWorkspace leaves the scenario workspace on disk after the run.
func KeepWorkspace() Option {
	return func(h *Harness) { h.keep = true }
}

// New creates a harness.
func New(opts ...Option) *Harness {
	h := &Harness{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run executes a scenario with a default harness.
func Run(s *Scenario) (*Result, error) {
	return New().Run(context.Background(), s)
}

// Run lays out the scenario workspace, governs the invocation and checks
// the expectations. The returned error is reserved for setup failures;
// failed expectations are reported on the Result.
func (h *Harness) Run(ctx context.Context, s *Scenario) (*Result, error) {
	root, err := os.MkdirTemp(h.tmpDir, "trustgate-scenario-*")
	if err != nil {
		return nil, fmt.Errorf("create scenario workspace: %w", err)
	}
	if !h.keep {
		defer os.RemoveAll(root)
	}

	if err := setup(root, s.Workspace); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
	}
	ws, err := workspace.Load(root, workspace.Options{})
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
	}

	p := governance.New(ws,
		governance.WithLogger(h.logger.With("scenario", s.Name)),
		governance.WithClock(testutil.NewDeterministicClock().Now),
		governance.WithRunIDGenerator(testutil.NewFixedRunIDGenerator(s.RunID)),
		governance.WithEnvironment(func() ledger.Environment { return ledger.Environment{} }),
	)
	inv := governance.Invocation{Command: s.Invocation.Command, Args: s.Invocation.Args}
	out := p.Run(ctx, inv, scriptedExecutor(root, s.Invocation))

	r := NewResult()
	r.Outcome = out
	r.Snapshot = snapshot(s, ws, out)

	var missingPrereq, violated string
	if out.Precondition.MissingPrerequisite != nil {
		missingPrereq = *out.Precondition.MissingPrerequisite
	}
	if out.Evidence.ViolatedInvariant != nil {
		violated = *out.Evidence.ViolatedInvariant
	} else if out.Precondition.ViolatedInvariant != nil {
		violated = *out.Precondition.ViolatedInvariant
	}
	for _, err := range evaluate(s.Expect, r.Snapshot, missingPrereq, violated) {
		r.AddError(err.Error())
	}
	for _, w := range out.Warnings {
		r.AddError("pipeline: " + w)
	}
	return r, nil
}

// scriptedExecutor writes the files the command is declared to create and
// reports the declared result.
func scriptedExecutor(root string, step InvocationStep) governance.Executor {
	return func(_ context.Context, _ governance.Invocation) (*result.Result, error) {
		for _, rel := range sortedKeys(step.Creates) {
			if err := writeFile(root, rel, step.Creates[rel]); err != nil {
				return nil, err
			}
		}
		if step.Error != "" {
			return nil, fmt.Errorf("%s", step.Error)
		}
		return result.FromMap(step.Result)
	}
}

func setup(root string, ws WorkspaceSetup) error {
	var dirs []string
	if ws.RequiredDirs {
		dirs = append(dirs, workspace.DefaultLayout().RequiredDirs...)
	}
	dirs = append(dirs, ws.Dirs...)
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(root, d), 0o755); err != nil {
			return fmt.Errorf("create %s: %w", d, err)
		}
	}
	if ws.Stage != "" || len(ws.CompletedStages) > 0 {
		var current *string
		if ws.Stage != "" {
			current = &ws.Stage
		}
		completed := ws.CompletedStages
		if completed == nil {
			completed = []string{}
		}
		if err := writeJSON(root, workspace.StageFile, workspace.StageState{
			CurrentStage:    current,
			CompletedStages: completed,
		}); err != nil {
			return err
		}
	}
	if ws.Mode != "" {
		if err := writeJSON(root, workspace.ModeFile, map[string]string{"mode": ws.Mode}); err != nil {
			return err
		}
	}
	if ws.Config != "" {
		if err := writeFile(root, workspace.ConfigFile, ws.Config); err != nil {
			return err
		}
	}
	for _, rel := range sortedKeys(ws.Files) {
		if err := writeFile(root, rel, ws.Files[rel]); err != nil {
			return err
		}
	}
	return nil
}

func snapshot(s *Scenario, ws *workspace.Workspace, out *governance.Outcome) Snapshot {
	snap := Snapshot{
		Scenario:         s.Name,
		Command:          s.Invocation.Command,
		Precondition:     string(out.Precondition.Decision),
		Enforced:         string(out.Enforced.Decision),
		Evidence:         string(out.Evidence.Decision),
		Success:          out.Succeeded(),
		Blocked:          out.Blocked(),
		TruthPassed:      out.Truth.Passed,
		MissingArtifacts: nonNil(out.Truth.MissingArtifacts),
		Outputs:          []string{},
		LedgerWarnings:   nonNil(out.Ledger.Warnings),
		LedgerErrors:     nonNil(out.Ledger.Errors),
		NextActions:      nonNil(out.Bundle.NextCLIActions),
	}
	for _, p := range out.Ledger.OutputPaths() {
		snap.Outputs = append(snap.Outputs, filepath.ToSlash(ws.Rel(p)))
	}
	if out.Plan != nil {
		snap.RecoveryGenerated = true
		snap.WhatHappened = out.Plan.WhatHappened
		snap.Tier1 = out.Plan.Tier1Fix
		snap.RecoveryPlan = out.Plan.Markdown()
	}
	return snap
}

func writeFile(root, rel, content string) error {
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", rel, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", rel, err)
	}
	return nil
}

func writeJSON(root, rel string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", rel, err)
	}
	return writeFile(root, rel, string(data))
}

func sortedKeys(m map[string]string) []string {
	out := keys(m)
	slices.Sort(out)
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
