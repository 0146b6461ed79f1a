// Package hooks populates the Evidence Ledger around a domain command.
//
// Pre runs before the command and Post after it, including when the command
// failed or was blocked. Every sub-observation is independent: a failure
// (or panic) in one is recorded as a ledger warning wrapped in an
// *ObservationError and the remaining observations still run. Neither hook
// ever returns an error or blocks execution.
package hooks
