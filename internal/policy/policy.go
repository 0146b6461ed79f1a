package policy

import (
	"github.com/roach88/trustgate/internal/result"
	"github.com/roach88/trustgate/internal/workspace"
)

// Decision is the outcome of a policy check.
type Decision string

const (
	Allow Decision = result.DecisionAllow
	Warn  Decision = result.DecisionWarn
	Block Decision = result.DecisionBlock
)

// Invariants named by BLOCK decisions.
const (
	InvariantStagePreconditions = "Stage Preconditions"
	InvariantArtifactExistence  = "Artifact Existence"
)

// Result is a policy decision with the context needed to act on it.
type Result struct {
	Decision            Decision `json:"decision"`
	Message             string   `json:"message"`
	ViolatedInvariant   *string  `json:"violated_invariant"`
	MissingPrerequisite *string  `json:"missing_prerequisite"`
	RecoverySteps       []string `json:"recovery_steps"`
}

// Allowed returns an ALLOW result.
func Allowed(message string) Result {
	return Result{Decision: Allow, Message: message}
}

// Blocked returns a BLOCK result for a stage precondition.
func Blocked(message, prerequisite string, steps ...string) Result {
	inv := InvariantStagePreconditions
	return Result{
		Decision:            Block,
		Message:             message,
		ViolatedInvariant:   &inv,
		MissingPrerequisite: &prerequisite,
		RecoverySteps:       steps,
	}
}

// IsBlock reports whether the decision is BLOCK.
func (r Result) IsBlock() bool {
	return r.Decision == Block
}

// Embed converts r into the policy record carried on a domain result.
func (r Result) Embed() *result.PolicyDecision {
	d := &result.PolicyDecision{
		Decision: string(r.Decision),
		Message:  r.Message,
	}
	if r.ViolatedInvariant != nil {
		inv := *r.ViolatedInvariant
		d.ViolatedInvariant = &inv
	}
	if len(r.RecoverySteps) > 0 {
		d.RecoveryCommands = append([]string(nil), r.RecoverySteps...)
	}
	return d
}

// Enforce applies the execution mode to a precondition decision.
// Guided mode enforces blocks; open mode downgrades them to warnings and
// lets the command run.
func Enforce(r Result, mode workspace.Mode) Result {
	if r.Decision != Block || mode != workspace.ModeOpen {
		return r
	}
	r.Decision = Warn
	r.Message = "open mode, proceeding anyway: " + r.Message
	return r
}
