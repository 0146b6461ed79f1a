package governance

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"

	"github.com/roach88/trustgate/internal/result"
)

// Invocation names the domain command being governed.
type Invocation struct {
	Command string
	Args    map[string]any

	// RunID is filled in by Run before the executor is called.
	RunID string
}

// Executor runs the domain command and returns its result.
type Executor func(ctx context.Context, inv Invocation) (*result.Result, error)

// StaticResult returns an executor that always reports res.
func StaticResult(res *result.Result) Executor {
	return func(context.Context, Invocation) (*result.Result, error) {
		return res, nil
	}
}

// RunIDEnv is set for external commands to the current run id.
const RunIDEnv = "TRUSTGATE_RUN_ID"

// CommandExecutor returns an executor that runs argv in dir and reads a
// JSON result document from its standard output. A non-zero exit is not an
// error when stdout still holds a valid result, so commands can report
// their own failures.
func CommandExecutor(dir string, argv []string, stderr io.Writer) Executor {
	if stderr == nil {
		stderr = os.Stderr
	}
	return func(ctx context.Context, inv Invocation) (*result.Result, error) {
		if len(argv) == 0 {
			return nil, &ExecError{Code: ErrCodeExecFailed, Command: inv.Command, Err: errors.New("no command line")}
		}
		cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(), RunIDEnv+"="+inv.RunID)
		var stdout bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = stderr

		runErr := cmd.Run()
		if len(bytes.TrimSpace(stdout.Bytes())) == 0 {
			if runErr == nil {
				runErr = errors.New("no result on stdout")
			}
			return nil, &ExecError{Code: ErrCodeExecFailed, Command: inv.Command, Err: runErr}
		}

		res, err := result.Parse(stdout.Bytes())
		if err != nil {
			if runErr != nil {
				return nil, &ExecError{Code: ErrCodeExecFailed, Command: inv.Command, Err: runErr}
			}
			return nil, &ExecError{Code: ErrCodeInvalidResult, Command: inv.Command, Err: err}
		}
		return res, nil
	}
}
