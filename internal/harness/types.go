package harness

import "github.com/roach88/trustgate/internal/governance"

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if all expect clauses match.
	Pass bool `json:"pass"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Snapshot is the deterministic view of the outcome used for golden
	// comparison.
	Snapshot Snapshot `json:"snapshot"`

	// Outcome is the raw pipeline outcome. Paths in it point into a
	// workspace that is removed when Run returns.
	Outcome *governance.Outcome `json:"-"`
}

// Snapshot captures what the governance pipeline decided, with workspace
// paths made relative so runs compare equal across temp directories.
type Snapshot struct {
	Scenario          string   `json:"scenario"`
	Command           string   `json:"command"`
	Precondition      string   `json:"precondition"`
	Enforced          string   `json:"enforced"`
	Evidence          string   `json:"evidence"`
	Success           bool     `json:"success"`
	Blocked           bool     `json:"blocked"`
	TruthPassed       bool     `json:"truth_passed"`
	MissingArtifacts  []string `json:"missing_artifacts"`
	Outputs           []string `json:"outputs"`
	LedgerWarnings    []string `json:"ledger_warnings"`
	LedgerErrors      []string `json:"ledger_errors"`
	NextActions       []string `json:"next_actions"`
	RecoveryGenerated bool     `json:"recovery_generated"`
	WhatHappened      string   `json:"what_happened,omitempty"`
	Tier1             []string `json:"tier1,omitempty"`
	RecoveryPlan      string   `json:"recovery_plan,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
