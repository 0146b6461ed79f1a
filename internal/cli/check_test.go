package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/trustgate/internal/testutil"
)

func TestCheckAllowed(t *testing.T) {
	ws := readyForProfiling(t)

	out, _, err := execute(t, "", "check", "profiling", "-w", ws.Root())
	require.NoError(t, err)
	assert.Contains(t, out, "profiling: ALLOW")
}

func TestCheckBlocked(t *testing.T) {
	ws := testutil.NewWorkspace(t).RequiredDirs().Stage("init", "init").File("data/sales.csv", "x\n")

	out, _, err := execute(t, "", "check", "profiling", "-w", ws.Root())
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "profiling: BLOCK")
	assert.Contains(t, out, "Missing: specification file")
	assert.Contains(t, out, "consult specification")
}

func TestCheckOpenModeDowngrades(t *testing.T) {
	ws := testutil.NewWorkspace(t).RequiredDirs().Stage("init", "init").Mode("open").File("data/sales.csv", "x\n")

	out, _, err := execute(t, "", "check", "profiling", "-w", ws.Root(), "--format", "json")
	require.NoError(t, err)

	resp := decodeResponse(t, out)
	assert.Equal(t, "ok", resp.Status)
	data := resp.Data.(map[string]any)
	assert.Equal(t, "open", data["mode"])
	assert.Equal(t, "BLOCK", data["precondition"].(map[string]any)["decision"])
	assert.Equal(t, "WARN", data["enforced"].(map[string]any)["decision"])
}

func TestCheckWritesNothing(t *testing.T) {
	ws := testutil.NewWorkspace(t).RequiredDirs()

	_, _, _ = execute(t, "", "check", "build", "-w", ws.Root())
	assert.NoDirExists(t, ws.Root()+"/audit")
}

func TestCheckUnknownCommandAllowed(t *testing.T) {
	ws := testutil.NewWorkspace(t)

	out, _, err := execute(t, "", "check", "status", "-w", ws.Root())
	require.NoError(t, err)
	assert.Contains(t, out, "status: ALLOW")
}
