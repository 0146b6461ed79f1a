// Package recovery builds the tiered remediation guide written to
// audit/recovery_plan.md when a run is blocked, warned or failed.
//
// A plan always has the same six sections. Each section is computed on its
// own; a section that fails falls back to generic content and the problem
// is kept on the plan so the caller can record it.
package recovery
