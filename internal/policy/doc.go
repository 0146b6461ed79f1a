// Package policy decides whether a workflow command may run.
//
// Decisions are values, never errors. EvaluatePreconditions looks up the
// rule registered for a command (commands without a rule are allowed) and
// EvaluateEvidenceCompleteness checks, after the fact, that a command
// claiming success actually produced artifacts. Both are pure: every fact
// they need arrives in a Context built from the workspace beforehand.
package policy
