package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/trustgate/internal/ledger"
)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun creates a test run with minimal required fields.
func createTestRun(runID, command string, success bool) Run {
	return Run{
		RunID:         runID,
		Command:       command,
		Timestamp:     "2026-03-14T09:26:53Z",
		Success:       success,
		ExecutionMode: "guided",
		Path:          "audit/ledger/" + runID + ".json",
		Digest:        "digest-" + runID,
	}
}

func hashPtr(s string) *string { return &s }

var testOutputs = []ledger.Entry{
	{Path: "outputs/profile.json", Hash: hashPtr("abc123")},
	{Path: "outputs/missing.json", Hash: nil},
}
