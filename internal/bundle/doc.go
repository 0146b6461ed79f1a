// Package bundle renders the trust bundle: the canonical nine-section
// summary of a run, written as audit/trust_bundle.md for people and
// audit/trust_bundle.json for tooling.
//
// Collectors run independently so one failure does not blank the rest of
// the document, and the next-actions list is never empty.
package bundle
