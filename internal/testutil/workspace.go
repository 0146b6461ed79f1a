package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/trustgate/internal/workspace"
)

// WorkspaceBuilder lays out a throwaway workspace under t.TempDir().
type WorkspaceBuilder struct {
	t    *testing.T
	root string
}

// NewWorkspace creates an empty workspace root.
func NewWorkspace(t *testing.T) *WorkspaceBuilder {
	t.Helper()
	return &WorkspaceBuilder{t: t, root: t.TempDir()}
}

// Root returns the workspace root.
func (b *WorkspaceBuilder) Root() string {
	return b.root
}

// Dirs creates directories relative to the root.
func (b *WorkspaceBuilder) Dirs(dirs ...string) *WorkspaceBuilder {
	b.t.Helper()
	for _, d := range dirs {
		require.NoError(b.t, os.MkdirAll(filepath.Join(b.root, filepath.FromSlash(d)), 0o755))
	}
	return b
}

// RequiredDirs creates the default required directories.
func (b *WorkspaceBuilder) RequiredDirs() *WorkspaceBuilder {
	b.t.Helper()
	return b.Dirs(workspace.DefaultLayout().RequiredDirs...)
}

// File writes content to rel, creating parent directories.
func (b *WorkspaceBuilder) File(rel, content string) *WorkspaceBuilder {
	b.t.Helper()
	path := filepath.Join(b.root, filepath.FromSlash(rel))
	require.NoError(b.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(b.t, os.WriteFile(path, []byte(content), 0o644))
	return b
}

// Stage writes state/workflow_stage.json.
func (b *WorkspaceBuilder) Stage(current string, completed ...string) *WorkspaceBuilder {
	b.t.Helper()
	doc := map[string]any{"completed_stages": completed}
	if current != "" {
		doc["current_stage"] = current
	} else {
		doc["current_stage"] = nil
	}
	if completed == nil {
		doc["completed_stages"] = []string{}
	}
	return b.JSON(workspace.StageFile, doc)
}

// Mode writes state/execution_mode.json.
func (b *WorkspaceBuilder) Mode(mode string) *WorkspaceBuilder {
	b.t.Helper()
	return b.JSON(workspace.ModeFile, map[string]any{"mode": mode})
}

// JSON writes v as JSON to rel.
func (b *WorkspaceBuilder) JSON(rel string, v any) *WorkspaceBuilder {
	b.t.Helper()
	data, err := json.Marshal(v)
	require.NoError(b.t, err)
	return b.File(rel, string(data))
}

// Load loads the workspace with default options.
func (b *WorkspaceBuilder) Load() *workspace.Workspace {
	b.t.Helper()
	ws, err := workspace.Load(b.root, workspace.Options{})
	require.NoError(b.t, err)
	return ws
}
