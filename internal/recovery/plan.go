package recovery

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/roach88/trustgate/internal/ledger"
	"github.com/roach88/trustgate/internal/policy"
	"github.com/roach88/trustgate/internal/result"
	"github.com/roach88/trustgate/internal/safe"
	"github.com/roach88/trustgate/internal/workspace"
)

// Section headings in document order.
var Sections = []string{
	"1. What Happened",
	"2. Why It Happened",
	"3. Tier 1: Fix It Now",
	"4. Tier 2: Validate",
	"5. Tier 3: Diagnose",
	"6. Tier 4: Escalate",
}

// maxErrors caps how many recorded errors are quoted as reasons.
const maxErrors = 3

// Escalation lists what may be shared when asking for help.
type Escalation struct {
	WhatToShare  []string `json:"what_to_share"`
	Instructions []string `json:"instructions"`
}

// Plan is a recovery plan for one run.
type Plan struct {
	RunID         string     `json:"run_id"`
	Command       string     `json:"command"`
	WhatHappened  string     `json:"what_happened"`
	WhyHappened   []string   `json:"why_happened"`
	Tier1Fix      []string   `json:"tier1_fix"`
	Tier2Validate []string   `json:"tier2_validate"`
	Tier3Diagnose []string   `json:"tier3_diagnose"`
	Tier4Escalate Escalation `json:"tier4_escalate"`

	// Problems lists sections that fell back to generic content.
	Problems []error `json:"-"`
}

// ShouldGenerate reports whether a run needs a recovery plan. Only clean,
// unblocked successes do not.
func ShouldGenerate(l *ledger.Ledger, res *result.Result) bool {
	if res != nil {
		if res.Blocked || res.PolicyDecisionIs(result.DecisionBlock) || res.PolicyDecisionIs(result.DecisionWarn) {
			return true
		}
	}
	if l == nil {
		return res == nil || !res.Success
	}
	return !l.Success || len(l.Errors) > 0
}

// section fills one part of a plan. A section that errors or panics leaves
// the fallback content for its part in place.
type section struct {
	name string
	fill func(p *Plan, in *inputs) error
}

// sections are filled in document order, one per heading in Sections.
var sections = []section{
	{"what_happened", func(p *Plan, in *inputs) error {
		p.WhatHappened = in.whatHappened()
		return nil
	}},
	{"why_happened", func(p *Plan, in *inputs) error {
		p.WhyHappened = in.whyHappened()
		return nil
	}},
	{"tier1_fix", func(p *Plan, in *inputs) error {
		p.Tier1Fix = in.tier1()
		return nil
	}},
	{"tier2_validate", func(p *Plan, in *inputs) error {
		p.Tier2Validate = []string{in.cmd("status"), in.cmd("validate")}
		return nil
	}},
	{"tier3_diagnose", func(p *Plan, in *inputs) error {
		p.Tier3Diagnose = in.tier3()
		return nil
	}},
	{"tier4_escalate", func(p *Plan, in *inputs) error {
		p.Tier4Escalate = in.tier4()
		return nil
	}},
}

// Generate builds the plan for a run. It never panics; if every section
// fails the result is Fallback.
func Generate(l *ledger.Ledger, res *result.Result, ws *workspace.Workspace) Plan {
	return generate(l, res, ws, sections)
}

func generate(l *ledger.Ledger, res *result.Result, ws *workspace.Workspace, secs []section) Plan {
	in := newInputs(l, res, ws)
	fb := Fallback(in.program, in.runID)
	p := fb
	p.Command = in.command

	for _, s := range secs {
		if err := safe.Do(s.name, func() error { return s.fill(&p, in) }); err != nil {
			p.Problems = append(p.Problems, err)
		}
	}

	if len(secs) > 0 && len(p.Problems) == len(secs) {
		fb.Problems = p.Problems
		return fb
	}
	return p
}

// Fallback is the minimal plan used when nothing could be collected.
func Fallback(program, runID string) Plan {
	if program == "" {
		program = workspace.DefaultProgram
	}
	ledgerRef := workspace.LedgerDir + "/"
	if runID != "" {
		ledgerRef = workspace.LedgerDir + "/" + runID + ".json"
	}
	return Plan{
		RunID:         runID,
		WhatHappened:  "The command did not complete cleanly and no further details could be collected.",
		WhyHappened:   []string{"Details are in the run record: " + ledgerRef},
		Tier1Fix:      []string{program + " status"},
		Tier2Validate: []string{program + " status", program + " validate"},
		Tier3Diagnose: []string{program + " doctor"},
		Tier4Escalate: escalation(ledgerRef),
	}
}

func escalation(ledgerRef string) Escalation {
	return Escalation{
		WhatToShare: []string{
			workspace.TrustBundleMD,
			workspace.RecoveryPlan,
			ledgerRef,
			workspace.StageFile,
		},
		Instructions: []string{
			"Share only the files listed above.",
			"Never share raw data files or credentials.",
		},
	}
}

// Save writes the plan to audit/recovery_plan.md under root, replacing any
// previous plan.
func Save(p Plan, root string) (string, error) {
	path := filepath.Join(root, filepath.FromSlash(workspace.RecoveryPlan))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("save recovery plan: %w", err)
	}
	if err := os.WriteFile(path, []byte(p.Markdown()), 0o644); err != nil {
		return "", fmt.Errorf("save recovery plan: %w", err)
	}
	return path, nil
}

// inputs is the evidence a plan is derived from.
type inputs struct {
	runID      string
	command    string
	program    string
	dataDir    string
	dataSource string
	specRel    string

	blocked     bool
	blockReason string
	policy      *result.PolicyDecision
	success     bool
	errors      []string

	missingDirs    []string
	dataPresent    *bool
	hasSpec        *bool
	dashboardClaim bool
}

func newInputs(l *ledger.Ledger, res *result.Result, ws *workspace.Workspace) *inputs {
	in := &inputs{program: workspace.DefaultProgram}
	layout := workspace.DefaultLayout()
	if ws != nil {
		if ws.Program != "" {
			in.program = ws.Program
		}
		layout = ws.Layout
	}
	in.dataDir = layout.DataDir
	in.dataSource = layout.DataSource
	in.specRel = layout.SpecFile

	if l != nil {
		in.runID = l.RunID
		in.command = l.Command
		in.success = l.Success
		in.errors = l.Errors
		in.missingDirs = stringList(l.ProofReferences[ledger.ProofMissingDirs])
		in.dataPresent = boolPtr(l.ProofReferences[ledger.ProofDataPresent])
		in.hasSpec = boolPtr(l.ProofReferences[ledger.ProofHasSpecification])
	}
	if res != nil {
		in.blocked = res.Blocked
		in.blockReason = res.BlockReason
		in.policy = res.Policy
		in.dashboardClaim = res.DashboardPath != ""
		if l == nil {
			in.success = res.Success
			in.errors = res.Errors
		}
	}
	return in
}

func (in *inputs) cmd(args ...string) string {
	return strings.Join(append([]string{in.program}, args...), " ")
}

func (in *inputs) commandLabel() string {
	if in.command == "" {
		return "command"
	}
	return "`" + in.command + "` command"
}

func (in *inputs) ledgerRef() string {
	if in.runID == "" {
		return workspace.LedgerDir + "/"
	}
	return workspace.LedgerDir + "/" + in.runID + ".json"
}

func (in *inputs) decision() string {
	if in.policy == nil {
		return ""
	}
	return in.policy.Decision
}

func (in *inputs) violated(invariant string) bool {
	return in.policy != nil && in.policy.ViolatedInvariant != nil && *in.policy.ViolatedInvariant == invariant
}

func (in *inputs) whatHappened() string {
	label := in.commandLabel()
	switch {
	case !in.blocked && in.violated(policy.InvariantArtifactExistence):
		return fmt.Sprintf("The %s completed with issues: it claimed success without recording any artifacts.", label)
	case in.blocked || in.decision() == result.DecisionBlock:
		return fmt.Sprintf("The %s was blocked by a policy check and did not complete.", label)
	case in.decision() == result.DecisionWarn:
		return fmt.Sprintf("The %s ran despite a policy warning.", label)
	case !in.success && len(in.errors) > 0:
		return fmt.Sprintf("The %s failed with error: %s", label, in.errors[0])
	case !in.success:
		return fmt.Sprintf("The %s failed without reporting an error.", label)
	default:
		return fmt.Sprintf("The %s completed with issues that need attention.", label)
	}
}

func (in *inputs) whyHappened() []string {
	var why []string
	if in.policy != nil && in.policy.Message != "" {
		why = append(why, fmt.Sprintf("Policy %s: %s", in.policy.Decision, in.policy.Message))
		if in.policy.ViolatedInvariant != nil {
			why = append(why, "Violated invariant: "+*in.policy.ViolatedInvariant)
		}
	}
	if in.blockReason != "" && (in.policy == nil || in.blockReason != in.policy.Message) {
		why = append(why, "Block reason: "+in.blockReason)
	}
	if len(in.missingDirs) > 0 {
		why = append(why, "Missing workspace directories: "+strings.Join(in.missingDirs, ", "))
	}
	if in.dataPresent != nil && !*in.dataPresent {
		why = append(why, fmt.Sprintf("No data files found in %s/", in.dataDir))
	}
	for i, e := range in.errors {
		if i == maxErrors {
			why = append(why, fmt.Sprintf("%d more error(s) in the run record", len(in.errors)-maxErrors))
			break
		}
		why = append(why, "Error: "+e)
	}
	why = append(why,
		"Full run record: "+in.ledgerRef(),
		"Run summary: "+workspace.TrustBundleMD,
	)
	return why
}

// stageAtOrAfter reports whether the command is a pipeline stage at or
// after target.
func (in *inputs) stageAtOrAfter(target workspace.Stage) bool {
	idx := workspace.Stage(in.command).Index()
	return idx >= 0 && idx >= target.Index()
}

func (in *inputs) tier1() []string {
	if in.policy != nil && len(in.policy.RecoveryCommands) > 0 {
		return slices.Clone(in.policy.RecoveryCommands)
	}
	if in.dataPresent != nil && !*in.dataPresent && in.stageAtOrAfter(workspace.StageProfiling) {
		return []string{policy.AddDataCommand(in.dataDir, in.dataSource), in.cmd("status"), in.cmd("profiling")}
	}
	if in.hasSpec != nil && !*in.hasSpec && in.stageAtOrAfter(workspace.StageProfiling) {
		return []string{in.cmd("specification")}
	}
	if in.command != "" {
		return []string{in.cmd(in.command)}
	}
	return []string{in.cmd("status")}
}

func (in *inputs) tier3() []string {
	steps := []string{in.cmd("doctor")}
	if in.dashboardClaim || strings.Contains(in.command, "preview") || strings.Contains(in.command, "dashboard") {
		steps = append(steps, "node --version")
	}
	return steps
}

func (in *inputs) tier4() Escalation {
	return escalation(in.ledgerRef())
}

// stringList reads a proof value that is either a live []string or a list
// decoded from JSON.
func stringList(v any) []string {
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

func boolPtr(v any) *bool {
	b, ok := v.(bool)
	if !ok {
		return nil
	}
	return &b
}
