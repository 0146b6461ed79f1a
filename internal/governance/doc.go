// Package governance runs one domain command under the full governance
// pipeline.
//
// Run is the single entry point used by the CLI and the scenario harness:
//
//	ledger.Create -> hooks.Pre -> policy preconditions (mode enforced)
//	-> executor (skipped when blocked) -> truth gate -> hooks.Post
//	-> evidence completeness -> recovery plan -> trust bundle
//	-> ledger save -> trust bundle save -> ledger index
//
// Run never returns an error. Problems found after the ledger is saved are
// logged and reported on the Outcome.
package governance
