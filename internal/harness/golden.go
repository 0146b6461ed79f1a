package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// MarshalSnapshot renders a snapshot as indented JSON followed by the
// recovery plan, if any. This is the golden file format.
func MarshalSnapshot(snap Snapshot) ([]byte, error) {
	plan := snap.RecoveryPlan
	snap.RecoveryPlan = ""
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	if plan != "" {
		buf.WriteString("\n")
		buf.WriteString(plan)
	}
	return buf.Bytes(), nil
}

// RunWithGolden executes a scenario, fails the test on unmet expectations,
// and compares the snapshot against testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	res, err := Run(scenario)
	if err != nil {
		return err
	}
	if !res.Pass {
		t.Errorf("scenario %s failed:\n  %s", scenario.Name, strings.Join(res.Errors, "\n  "))
	}
	return AssertGolden(t, scenario.Name, res)
}

// AssertGolden compares an existing result against a golden file.
func AssertGolden(t *testing.T, name string, res *Result) error {
	t.Helper()

	data, err := MarshalSnapshot(res.Snapshot)
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}

// GoldenPath returns the golden file for a scenario file:
// <scenario dir>/golden/<scenario name>.golden.
func GoldenPath(scenarioPath, name string) string {
	return filepath.Join(filepath.Dir(scenarioPath), "golden", name+".golden")
}

// CompareGolden reports whether the snapshot matches the golden file at
// path. A missing golden file is an error.
func CompareGolden(path string, res *Result) error {
	want, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read golden file: %w", err)
	}
	got, err := MarshalSnapshot(res.Snapshot)
	if err != nil {
		return err
	}
	if !bytes.Equal(want, got) {
		return fmt.Errorf("snapshot does not match golden file %s (run with --update to regenerate)", path)
	}
	return nil
}

// UpdateGolden writes the snapshot to path.
func UpdateGolden(path string, res *Result) error {
	data, err := MarshalSnapshot(res.Snapshot)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}
