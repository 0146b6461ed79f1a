package harness

import (
	"fmt"
	"slices"
	"strings"
)

// AssertionError is returned when an expectation does not hold.
type AssertionError struct {
	Field    string // expect field that failed
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("expect.%s: expected %s, got %s", e.Field, e.Expected, e.Actual)
}

// evaluate checks every expectation that was given against the snapshot
// and returns one error per mismatch, in field order.
func evaluate(expect Expectation, snap Snapshot, missingPrereq, violated string) []error {
	var errs []error
	check := func(field, want, got string) {
		if want != "" && want != got {
			errs = append(errs, &AssertionError{Field: field, Expected: quote(want), Actual: quote(got)})
		}
	}
	checkBool := func(field string, want *bool, got bool) {
		if want != nil && *want != got {
			errs = append(errs, &AssertionError{
				Field:    field,
				Expected: fmt.Sprint(*want),
				Actual:   fmt.Sprint(got),
			})
		}
	}
	checkList := func(field string, want, got []string) {
		if len(want) > 0 && !slices.Equal(want, got) {
			errs = append(errs, &AssertionError{Field: field, Expected: list(want), Actual: list(got)})
		}
	}
	checkSubset := func(field string, want, got []string) {
		for _, w := range want {
			if !slices.ContainsFunc(got, func(g string) bool { return strings.Contains(g, w) }) {
				errs = append(errs, &AssertionError{
					Field:    field,
					Expected: "an entry containing " + quote(w),
					Actual:   list(got),
				})
			}
		}
	}

	check("precondition", expect.Precondition, snap.Precondition)
	check("enforced", expect.Enforced, snap.Enforced)
	check("missing_prerequisite", expect.MissingPrerequisite, missingPrereq)
	check("evidence", expect.Evidence, snap.Evidence)
	check("violated_invariant", expect.ViolatedInvariant, violated)
	checkBool("truth_passed", expect.TruthPassed, snap.TruthPassed)
	checkList("missing_artifacts", expect.MissingArtifacts, snap.MissingArtifacts)
	checkBool("success", expect.Success, snap.Success)
	checkBool("blocked", expect.Blocked, snap.Blocked)
	checkBool("recovery_generated", expect.RecoveryGenerated, snap.RecoveryGenerated)
	if expect.WhatHappened != "" && !strings.Contains(snap.WhatHappened, expect.WhatHappened) {
		errs = append(errs, &AssertionError{
			Field:    "what_happened",
			Expected: "text containing " + quote(expect.WhatHappened),
			Actual:   quote(snap.WhatHappened),
		})
	}
	checkSubset("tier1", expect.Tier1, snap.Tier1)
	checkList("next_actions", expect.NextActions, snap.NextActions)
	checkSubset("ledger_errors", expect.LedgerErrors, snap.LedgerErrors)
	checkList("outputs", expect.Outputs, snap.Outputs)
	return errs
}

func quote(s string) string {
	return fmt.Sprintf("%q", s)
}

func list(items []string) string {
	if len(items) == 0 {
		return "[]"
	}
	return "[" + strings.Join(items, ", ") + "]"
}
