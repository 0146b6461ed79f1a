package ledger

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/trustgate/internal/workspace"
)

var fixedTime = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

func newTestLedger(t *testing.T, ws *workspace.Workspace, id string) *Ledger {
	t.Helper()
	return Create("profiling", map[string]any{"sample": 100}, ws,
		WithClock(func() time.Time { return fixedTime }),
		WithRunIDGenerator(NewFixedGenerator(id)),
		WithEnvironment(func() Environment { return Environment{OS: strPtr("linux")} }),
	)
}

func loadWorkspace(t *testing.T, root string) *workspace.Workspace {
	t.Helper()
	ws, err := workspace.Load(root, workspace.Options{})
	require.NoError(t, err)
	return ws
}

func TestCreateDefaults(t *testing.T) {
	ws := loadWorkspace(t, t.TempDir())
	l := newTestLedger(t, ws, "run-1")

	assert.Equal(t, "run-1", l.RunID)
	assert.Equal(t, "2026-03-14T09:26:53Z", l.Timestamp)
	assert.Equal(t, "profiling", l.Command)
	assert.Equal(t, "guided", l.ExecutionMode)
	assert.Nil(t, l.StageBefore)
	assert.Nil(t, l.StageAfter)
	assert.Empty(t, l.Outputs)
	assert.Empty(t, l.Warnings)
	assert.False(t, l.Success)
	assert.Equal(t, SchemaVersion, l.SchemaVersion)
}

func TestCreateReadsStageAndMode(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "state"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "state", "workflow_stage.json"),
		[]byte(`{"current_stage": "specification"}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "state", "execution_mode.json"),
		[]byte(`{"mode": "open"}`), 0644))

	l := newTestLedger(t, loadWorkspace(t, root), "run-2")

	require.NotNil(t, l.StageBefore)
	assert.Equal(t, "specification", *l.StageBefore)
	assert.Equal(t, "open", l.ExecutionMode)
}

func TestCreateCopiesArgs(t *testing.T) {
	args := map[string]any{"k": "v"}
	l := Create("status", args, nil, WithRunIDGenerator(NewFixedGenerator("r")))
	args["k"] = "changed"
	assert.Equal(t, "v", l.Args["k"])
}

func TestCreateArgsAlwaysEncodable(t *testing.T) {
	root := t.TempDir()
	args := map[string]any{
		"ratio":   math.NaN(),
		"limits":  []any{math.Inf(1), 2.5},
		"nested":  map[string]any{"floor": math.Inf(-1)},
		"channel": make(chan int),
		"rows":    10,
	}
	l := Create("analysis", args, nil, WithRunIDGenerator(NewFixedGenerator("run-nan")))

	assert.Equal(t, "NaN", l.Args["ratio"])
	assert.Equal(t, []any{"+Inf", 2.5}, l.Args["limits"])
	assert.Equal(t, map[string]any{"floor": "-Inf"}, l.Args["nested"])
	assert.IsType(t, "", l.Args["channel"])
	assert.Equal(t, 10, l.Args["rows"])

	_, err := l.Digest()
	require.NoError(t, err)
	path, err := l.Save(filepath.Join(root, "audit", "ledger"))
	require.NoError(t, err)

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "NaN", loaded.Args["ratio"])
}

func TestCreateRecordsWorkspaceNotes(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "state"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "state", "workflow_stage.json"), []byte(`{`), 0644))

	l := newTestLedger(t, loadWorkspace(t, root), "run-3")
	require.Len(t, l.Warnings, 1)
	assert.Contains(t, l.Warnings[0], "workspace: workflow stage unreadable")
}

func TestAddOutputHashesAndDedupes(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "profile.json")
	require.NoError(t, os.WriteFile(present, []byte("{}"), 0644))
	missing := filepath.Join(dir, "missing.json")

	l := Create("profiling", nil, nil, WithRunIDGenerator(NewFixedGenerator("r")))
	assert.True(t, l.AddOutput(present))
	assert.False(t, l.AddOutput(present))
	assert.True(t, l.AddOutput(missing))

	require.Len(t, l.Outputs, 2)
	require.NotNil(t, l.Outputs[0].Hash)
	assert.Len(t, *l.Outputs[0].Hash, 64)
	assert.Nil(t, l.Outputs[1].Hash)
	assert.Equal(t, []string{present, missing}, l.OutputPaths())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	root := t.TempDir()
	out := filepath.Join(root, "profile.json")
	require.NoError(t, os.WriteFile(out, []byte(`{"rows": 3}`), 0644))

	l := newTestLedger(t, loadWorkspace(t, root), "run-roundtrip")
	l.AddOutput(out)
	l.Success = true
	l.SetProof(ProofDataFileCount, 2)

	path, err := l.Save(filepath.Join(root, "audit", "ledger"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "audit", "ledger", "run-roundtrip.json"), path)

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, l.RunID, loaded.RunID)
	assert.Equal(t, l.Command, loaded.Command)
	assert.Equal(t, l.Outputs, loaded.Outputs)
	assert.True(t, loaded.Success)

	want, err := l.Digest()
	require.NoError(t, err)
	got, err := loaded.Digest()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSaveIsImmutable(t *testing.T) {
	dir := t.TempDir()
	l := newTestLedger(t, nil, "run-once")

	_, err := l.Save(dir)
	require.NoError(t, err)

	l.Success = true
	path, err := l.Save(dir)
	assert.Empty(t, path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAlreadySaved))

	loaded, err := Load(filepath.Join(dir, "run-once.json"))
	require.NoError(t, err)
	assert.False(t, loaded.Success)
}

func TestSaveFailureReturnsEmptyPath(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	l := newTestLedger(t, nil, "run-fail")
	path, err := l.Save(filepath.Join(blocker, "ledger"))

	assert.Empty(t, path)
	var saveErr *SaveError
	require.ErrorAs(t, err, &saveErr)
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}

func TestFixedGeneratorExhausted(t *testing.T) {
	g := NewFixedGenerator("a")
	assert.Equal(t, "a", g.Generate())
	assert.Panics(t, func() { g.Generate() })
}

func TestUUIDv7GeneratorUnique(t *testing.T) {
	g := UUIDv7Generator{}
	a, b := g.Generate(), g.Generate()
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 36)
}
