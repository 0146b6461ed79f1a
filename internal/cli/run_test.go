package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/trustgate/internal/ledger"
	"github.com/roach88/trustgate/internal/testutil"
)

func TestRunRequiresResultOrCommandLine(t *testing.T) {
	ws := readyForProfiling(t)

	_, _, err := execute(t, "", "run", "profiling", "-w", ws.Root())
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "exactly one of --result or -- <argv> is required")
}

func TestRunRejectsStrayArguments(t *testing.T) {
	ws := readyForProfiling(t)

	_, _, err := execute(t, "", "run", "profiling", "extra", "-w", ws.Root(), "--result", "r.json")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "unexpected arguments")
}

func TestRunInvalidArg(t *testing.T) {
	ws := readyForProfiling(t)

	_, _, err := execute(t, "", "run", "profiling", "-w", ws.Root(), "--arg", "novalue", "--result", "r.json")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), `"novalue": expected key=value`)
}

func TestRunSuccessWithResultFile(t *testing.T) {
	ws := readyForProfiling(t).File("outputs/profile.json", `{"rows": 1}`)
	res := writeResult(t, `{"success": true, "profile_path": "outputs/profile.json"}`)

	out, _, err := execute(t, "", "run", "profiling", "-w", ws.Root(), "--arg", "sample=100", "--result", res, "--format", "json")
	require.NoError(t, err)

	resp := decodeResponse(t, out)
	assert.Equal(t, "ok", resp.Status)
	data := resp.Data.(map[string]any)
	assert.Equal(t, true, data["success"])
	assert.Equal(t, "ALLOW", data["precondition"])
	assert.Equal(t, "SUCCESS", data["outcome"])
	assert.Equal(t, []any{"consult analysis"}, data["next_actions"])
	assert.Equal(t, resp.RunID, data["run_id"])

	runID := data["run_id"].(string)
	assert.FileExists(t, filepath.Join(ws.Root(), "audit", "ledger", runID+".json"))
	assert.FileExists(t, filepath.Join(ws.Root(), "audit", "ledger", "index.db"))
	assert.FileExists(t, filepath.Join(ws.Root(), "audit", "trust_bundle.md"))
	assert.FileExists(t, filepath.Join(ws.Root(), "audit", "trust_bundle.json"))
	assert.NoFileExists(t, filepath.Join(ws.Root(), "audit", "recovery_plan.md"))
}

func TestRunResultFromStdin(t *testing.T) {
	ws := readyForProfiling(t).File("outputs/profile.json", `{"rows": 1}`)

	out, _, err := execute(t, `{"success": true, "profile_path": "outputs/profile.json"}`,
		"run", "profiling", "-w", ws.Root(), "--result", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "SUCCESS")
	assert.Contains(t, out, "consult analysis")
}

func TestRunBlocked(t *testing.T) {
	ws := testutil.NewWorkspace(t).RequiredDirs().Stage("init", "init").File("data/sales.csv", "x\n")
	res := writeResult(t, `{"success": true}`)

	out, _, err := execute(t, "", "run", "profiling", "-w", ws.Root(), "--result", res, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decodeResponse(t, out)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, ErrCodeBlocked, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "Profiling needs a specification")

	data := resp.Data.(map[string]any)
	assert.Equal(t, true, data["blocked"])
	assert.Equal(t, "BLOCKED", data["outcome"])
	assert.FileExists(t, filepath.Join(ws.Root(), "audit", "recovery_plan.md"))
}

func TestRunBlockedText(t *testing.T) {
	ws := testutil.NewWorkspace(t).RequiredDirs().Stage("init", "init").File("data/sales.csv", "x\n")
	res := writeResult(t, `{"success": true}`)

	out, _, err := execute(t, "", "run", "profiling", "-w", ws.Root(), "--result", res)
	require.Error(t, err)
	assert.Contains(t, out, "BLOCKED")
	assert.Contains(t, out, "audit/recovery_plan.md")
	assert.Contains(t, out, "consult specification")
}

func TestRunOpenModeWarns(t *testing.T) {
	ws := readyForProfiling(t).Mode("open").Stage("profiling", "init", "specification", "profiling").
		File("outputs/insights.json", `{"top": "north"}`)
	res := writeResult(t, `{"success": true, "insights_path": "outputs/insights.json"}`)

	out, _, err := execute(t, "", "run", "analysis", "-w", ws.Root(), "--result", res)
	require.NoError(t, err)
	assert.Contains(t, out, "BLOCK (enforced as WARN)")
	assert.Contains(t, out, "policy warning")
}

func TestRunTruthGateFailure(t *testing.T) {
	ws := readyForProfiling(t)
	res := writeResult(t, `{"success": true, "profile_path": "outputs/profile.json"}`)

	out, _, err := execute(t, "", "run", "profiling", "-w", ws.Root(), "--result", res, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decodeResponse(t, out)
	assert.Equal(t, ErrCodeTruth, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "outputs/profile.json")
}

func TestRunInvalidResultIsRecordedAsFailure(t *testing.T) {
	ws := readyForProfiling(t)
	res := writeResult(t, `{"success": "yes"}`)

	out, _, err := execute(t, "", "run", "profiling", "-w", ws.Root(), "--result", res, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decodeResponse(t, out)
	assert.Equal(t, ErrCodeFailed, resp.Error.Code)
	data := resp.Data.(map[string]any)
	require.NotEmpty(t, data["errors"])
	assert.Contains(t, data["errors"].([]any)[0], "result does not match schema")
}

func TestRunSuccessWithoutArtifactsFails(t *testing.T) {
	ws := readyForProfiling(t).Stage("profiling", "init", "specification", "profiling").
		File("outputs/profile.json", `{"rows": 1}`)
	res := writeResult(t, `{"success": true}`)

	out, _, err := execute(t, "", "run", "analysis", "-w", ws.Root(), "--result", res, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decodeResponse(t, out)
	assert.Equal(t, ErrCodeEvidence, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "false success")

	data := resp.Data.(map[string]any)
	assert.Equal(t, false, data["success"])
	assert.Equal(t, "FAILED", data["outcome"])
	assert.NotContains(t, data["next_actions"], "consult build")
	assert.FileExists(t, filepath.Join(ws.Root(), "audit", "recovery_plan.md"))
}

func TestRunNonFiniteArgIsRecorded(t *testing.T) {
	ws := readyForProfiling(t).File("outputs/profile.json", `{"rows": 1}`)
	res := writeResult(t, `{"success": true, "profile_path": "outputs/profile.json"}`)

	out, _, err := execute(t, "", "run", "profiling", "-w", ws.Root(),
		"--arg", "ratio=.nan", "--arg", "cap=-.inf", "--result", res, "--format", "json")
	require.NoError(t, err)

	data := decodeResponse(t, out).Data.(map[string]any)
	runID := data["run_id"].(string)

	l, err := ledger.Load(filepath.Join(ws.Root(), "audit", "ledger", runID+".json"))
	require.NoError(t, err)
	assert.Equal(t, ".nan", l.Args["ratio"])
	assert.Equal(t, "-.inf", l.Args["cap"])
	assert.FileExists(t, filepath.Join(ws.Root(), "audit", "trust_bundle.md"))
	assert.FileExists(t, filepath.Join(ws.Root(), "audit", "trust_bundle.json"))
}

func TestRunExternalCommand(t *testing.T) {
	ws := readyForProfiling(t)
	script := `mkdir -p outputs && printf '{"rows": 1}' > outputs/profile.json && ` +
		`printf '{"success": true, "profile_path": "outputs/profile.json"}'`

	out, _, err := execute(t, "", "run", "profiling", "-w", ws.Root(), "--format", "json", "--", "sh", "-c", script)
	require.NoError(t, err)

	resp := decodeResponse(t, out)
	data := resp.Data.(map[string]any)
	assert.Equal(t, true, data["success"])
	assert.Equal(t, true, data["truth_passed"])
	assert.FileExists(t, filepath.Join(ws.Root(), "outputs", "profile.json"))
}

func TestRunExternalCommandWithoutResult(t *testing.T) {
	ws := readyForProfiling(t)

	_, _, err := execute(t, "", "run", "profiling", "-w", ws.Root(), "--", "sh", "-c", "exit 3")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	ledgers, err := filepath.Glob(filepath.Join(ws.Root(), "audit", "ledger", "*.json"))
	require.NoError(t, err)
	assert.Len(t, ledgers, 1)
}

func TestParseArgs(t *testing.T) {
	args, err := parseArgs([]string{"n=3", "ratio=0.5", "fast=true", "name=north", "empty=", "eq=a=b", "nan=.NaN", "inf=.inf"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"n":     3,
		"ratio": 0.5,
		"nan":   ".NaN",
		"inf":   ".inf",
		"fast":  true,
		"name":  "north",
		"empty": "",
		"eq":    "a=b",
	}, args)

	_, err = parseArgs([]string{"=x"})
	require.Error(t, err)
}
