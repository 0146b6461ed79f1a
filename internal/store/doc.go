// Package store provides the SQLite-backed ledger index.
//
// Ledger documents are the source of truth and live as one JSON file per run
// under audit/ledger/. The index catalogues them so runs can be listed,
// looked up by id and checked against their recorded content digest without
// scanning the directory.
//
// Tables:
//   - runs: one row per saved ledger (run id, command, outcome, path, digest)
//   - run_outputs: output files recorded by each run, in ledger order
//
// # Ordering
//
// Every run gets a monotonically increasing seq on insert. Listings order by
// seq, never by the wall-clock timestamp, so runs recorded within the same
// second keep their insertion order.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
