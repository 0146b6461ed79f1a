package bundle

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/trustgate/internal/ledger"
	"github.com/roach88/trustgate/internal/result"
	"github.com/roach88/trustgate/internal/workspace"
)

type collector struct {
	l    *ledger.Ledger
	res  *result.Result
	ws   *workspace.Workspace
	opts options
}

func (c *collector) program() string {
	if c.ws != nil && c.ws.Program != "" {
		return c.ws.Program
	}
	return workspace.DefaultProgram
}

func (c *collector) cmd(args ...string) string {
	return strings.Join(append([]string{c.program()}, args...), " ")
}

// rel renders path relative to the workspace root when possible.
func (c *collector) rel(path string) string {
	if c.ws == nil {
		return path
	}
	return c.ws.Rel(path)
}

func (c *collector) identity() RunIdentity {
	return RunIdentity{
		RunID:         c.l.RunID,
		Timestamp:     c.l.Timestamp,
		Command:       c.l.Command,
		ToolVersion:   ledger.ToolVersion,
		SchemaVersion: c.l.SchemaVersion,
	}
}

func (c *collector) workflowState() WorkflowState {
	state := WorkflowState{
		StageBefore:     c.l.StageBefore,
		StageAfter:      c.l.StageAfter,
		CompletedStages: []string{},
	}
	if c.ws != nil {
		if s, err := c.ws.ReadStage(); err == nil && s.CompletedStages != nil {
			state.CompletedStages = s.CompletedStages
		}
	}
	return state
}

func (c *collector) whatExecuted() WhatExecuted {
	w := WhatExecuted{
		Command: c.l.Command,
		Args:    c.l.Args,
		Success: c.l.Success,
		Outcome: OutcomeFailed,
	}
	if w.Args == nil {
		w.Args = map[string]any{}
	}
	if c.res != nil {
		w.Success = c.res.Success
		w.Blocked = c.res.Blocked
		if c.res.Policy != nil {
			d := c.res.Policy.Decision
			w.Decision = &d
		}
	}
	switch {
	case w.Blocked:
		w.Outcome = OutcomeBlocked
	case w.Success:
		w.Outcome = OutcomeSuccess
	}
	return w
}

func (c *collector) evidence() (EvidenceRef, error) {
	ref := EvidenceRef{
		Path:    c.opts.ledgerPath,
		Digest:  c.opts.digest,
		Inputs:  len(c.l.Inputs),
		Outputs: len(c.l.Outputs),
	}
	if ref.Path == "" {
		ref.Path = workspace.LedgerDir + "/" + c.l.FileName()
	} else {
		ref.Path = c.rel(ref.Path)
	}
	if ref.Digest == "" {
		d, err := c.l.Digest()
		if err != nil {
			return ref, fmt.Errorf("ledger digest: %w", err)
		}
		ref.Digest = d
	}
	return ref, nil
}

func (c *collector) artifacts() []Artifact {
	out := make([]Artifact, 0, len(c.l.Outputs))
	for _, e := range c.l.Outputs {
		out = append(out, Artifact{Path: c.rel(e.Path), Hash: e.Hash})
	}
	return out
}

func (c *collector) skills() []string {
	if c.res == nil {
		return []string{}
	}
	var skills []string
	for _, s := range c.res.SkillsExecuted {
		skills = appendUnique(skills, s)
	}
	if skills == nil {
		return []string{}
	}
	return skills
}

func (c *collector) warningsBlocks() WarningsBlocks {
	wb := WarningsBlocks{
		Warnings: slices.Clone(c.l.Warnings),
		Errors:   slices.Clone(c.l.Errors),
		Blocks:   []string{},
	}
	if wb.Warnings == nil {
		wb.Warnings = []string{}
	}
	if wb.Errors == nil {
		wb.Errors = []string{}
	}
	if c.res == nil {
		return wb
	}
	if p := c.res.Policy; p != nil && p.Decision != result.DecisionAllow {
		msg := p.Decision
		if p.Message != "" {
			msg += ": " + p.Message
		}
		wb.Blocks = appendUnique(wb.Blocks, msg)
	}
	if c.res.Blocked {
		reason := c.res.BlockReason
		if reason == "" {
			reason = "command blocked"
		}
		if p := c.res.Policy; p == nil || p.Message != reason {
			wb.Blocks = appendUnique(wb.Blocks, "BLOCKED: "+reason)
		}
	}
	return wb
}

func (c *collector) missing() []string {
	missing := []string{}
	layout := workspace.DefaultLayout()
	if c.ws != nil {
		layout = c.ws.Layout
	}
	for _, dir := range proofStrings(c.l.ProofReferences[ledger.ProofMissingDirs]) {
		missing = append(missing, "directory "+dir+"/")
	}
	if present, ok := c.l.ProofReferences[ledger.ProofDataPresent].(bool); ok && !present {
		missing = append(missing, "data files in "+layout.DataDir+"/")
	}
	if has, ok := c.l.ProofReferences[ledger.ProofHasSpecification].(bool); ok && !has {
		missing = append(missing, "specification file "+layout.SpecFile)
	}
	if c.res != nil && c.res.TruthGate != nil {
		for _, m := range c.res.TruthGate.MissingArtifacts {
			missing = append(missing, "claimed artifact "+m)
		}
	}
	return missing
}

func (c *collector) nextActions() []string {
	var actions []string
	switch {
	case c.res != nil && len(c.res.NextSteps) > 0:
		actions = slices.Clone(c.res.NextSteps)
	case c.res != nil && c.res.Policy != nil && len(c.res.Policy.RecoveryCommands) > 0:
		actions = slices.Clone(c.res.Policy.RecoveryCommands)
	case c.res != nil && c.res.Blocked:
		actions = []string{RecoveryHint}
	}
	if len(actions) == 0 {
		actions = []string{c.cmd("status")}
	}
	return actions
}

func proofStrings(v any) []string {
	switch v := v.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
