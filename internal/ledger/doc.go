// Package ledger implements the Evidence Ledger: the per-run audit record
// every other governance component reads or writes.
//
// Lifecycle:
//
//	led := ledger.Create(command, args, ws)   // fresh run_id, env snapshot, stage/mode
//	...hooks and pipeline mutate led during the run...
//	path, err := led.Save(dir)                // once; <dir>/<run_id>.json
//
// A saved ledger is immutable: Save uses exclusive create, so a second save
// of the same run_id fails softly instead of overwriting evidence. Save never
// panics and never fails the run; on error it logs a warning and returns an
// empty path with a *SaveError the caller may record.
package ledger
