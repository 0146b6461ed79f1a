package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestLoadDefaultsWithoutStateFiles(t *testing.T) {
	root := t.TempDir()

	ws, err := Load(root, Options{})
	require.NoError(t, err)

	assert.Nil(t, ws.Stage)
	assert.Equal(t, ModeGuided, ws.Mode)
	assert.Equal(t, DefaultProgram, ws.Program)
	assert.Equal(t, DefaultLayout(), ws.Layout)
	assert.Empty(t, ws.Notes)
}

func TestLoadReadsStageAndMode(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, StageFile, `{"current_stage": "profiling", "completed_stages": ["init", "specification"]}`)
	writeFile(t, root, ModeFile, `{"mode": "open"}`)
	writeFile(t, root, PreferencesFile, `{"theme": "dark"}`)

	ws, err := Load(root, Options{})
	require.NoError(t, err)

	require.NotNil(t, ws.Stage)
	assert.Equal(t, "profiling", *ws.Stage)
	assert.Equal(t, []string{"init", "specification"}, ws.CompletedStages)
	assert.Equal(t, ModeOpen, ws.Mode)
	assert.Equal(t, "dark", ws.OutputPreferences["theme"])
}

func TestLoadMalformedStateFallsBack(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, StageFile, `{not json`)
	writeFile(t, root, ModeFile, `{"mode": "chaos"}`)

	ws, err := Load(root, Options{})
	require.NoError(t, err)

	assert.Nil(t, ws.Stage)
	assert.Equal(t, ModeGuided, ws.Mode)
	require.Len(t, ws.Notes, 2)
	assert.Contains(t, ws.Notes[0], "workflow stage unreadable")
	assert.Contains(t, ws.Notes[1], `unknown execution mode "chaos"`)
}

func TestLoadConfigOverrides(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ConfigFile, `
program: kie
data_dir: raw
data_source: ~/Downloads/sales.csv
required_dirs: [raw, out]
paths:
  profile: out/eda.json
`)

	ws, err := Load(root, Options{})
	require.NoError(t, err)

	assert.Equal(t, "kie", ws.Program)
	assert.Equal(t, "raw", ws.Layout.DataDir)
	assert.Equal(t, "~/Downloads/sales.csv", ws.Layout.DataSource)
	assert.Equal(t, []string{"raw", "out"}, ws.Layout.RequiredDirs)
	assert.Equal(t, "out/eda.json", ws.Layout.ProfileFile)
	assert.Equal(t, "outputs/insights.json", ws.Layout.InsightsFile)
	assert.Equal(t, "kie status", ws.Command("status"))
}

func TestLoadConfigRejectsUnknownFields(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ConfigFile, "progam: typo\n")

	_, err := Load(root, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "progam")
}

func TestMissingDirs(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "data"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "state"), 0755))

	ws, err := Load(root, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"outputs", "exports"}, ws.MissingDirs())
}

func TestDataFileCountSkipsPlaceholders(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "data/.gitkeep", "")
	writeFile(t, root, "data/README.md", "drop files here")
	writeFile(t, root, "data/sales.csv", "a,b\n1,2\n")
	writeFile(t, root, "data/nested/q2.csv", "a,b\n")

	ws, err := Load(root, Options{})
	require.NoError(t, err)

	count, err := ws.DataFileCount()
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestDataFileCountMissingDir(t *testing.T) {
	ws, err := Load(t.TempDir(), Options{})
	require.NoError(t, err)

	count, err := ws.DataFileCount()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRel(t *testing.T) {
	ws, err := Load(t.TempDir(), Options{})
	require.NoError(t, err)

	assert.Equal(t, "outputs/profile.json", ws.Rel(filepath.Join(ws.Root, "outputs", "profile.json")))
	assert.Equal(t, "relative/x.md", ws.Rel("relative/x.md"))
	outside := filepath.Join(filepath.Dir(ws.Root), "elsewhere.json")
	assert.Equal(t, filepath.ToSlash(outside), ws.Rel(outside))
}

func TestReached(t *testing.T) {
	stage := func(s string) *string { return &s }

	assert.False(t, Reached(nil, nil, StageInit))
	assert.True(t, Reached(stage("init"), nil, StageInit))
	assert.True(t, Reached(stage("profiling"), nil, StageSpecification))
	assert.False(t, Reached(stage("init"), nil, StageSpecification))
	assert.True(t, Reached(nil, []string{"init"}, StageInit))
	assert.False(t, Reached(stage("bogus"), nil, StageInit))
}

func TestStageNext(t *testing.T) {
	assert.Equal(t, StageSpecification, StageInit.Next())
	assert.Equal(t, Stage(""), StagePreview.Next())
	assert.Equal(t, Stage(""), Stage("bogus").Next())
}
