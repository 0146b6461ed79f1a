package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/trustgate/internal/governance"
	"github.com/roach88/trustgate/internal/ledger"
	"github.com/roach88/trustgate/internal/result"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Args   []string // key=value pairs recorded as command arguments
	Result string   // result document path, "-" for stdin

	// Clock, RunIDs and Environment override the ledger defaults (for testing).
	Clock       func() time.Time
	RunIDs      ledger.RunIDGenerator
	Environment func() ledger.Environment
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <command> (--result FILE | -- <argv>...)",
		Short: "Run a workflow command through the governance gate",
		Long: `Run one workflow command through the full governance pipeline.

The command's preconditions are checked first. In guided mode a failed
precondition blocks the command; in open mode it only warns. The command
itself is either an external program, given after "--", that prints its
JSON result on stdout, or a result document that was produced elsewhere.

Every run writes audit/ledger/<run_id>.json, audit/trust_bundle.md and
audit/trust_bundle.json, plus audit/recovery_plan.md when it did not
cleanly succeed.

Exit codes:
  0 - Command succeeded
  1 - Command failed or was blocked
  2 - Command error (bad flags, unreadable workspace config, etc.)

Examples:
  trustgate run profiling -- consult-profile --json
  trustgate run analysis --arg depth=2 --result analysis.json
  consult-build --json | trustgate run build --result -`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGoverned(opts, args, cmd)
		},
	}

	cmd.Flags().StringArrayVar(&opts.Args, "arg", nil, "command argument as key=value (repeatable)")
	cmd.Flags().StringVar(&opts.Result, "result", "", "result document to record (\"-\" reads stdin)")

	return cmd
}

func runGoverned(opts *RunOptions, args []string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	command := args[0]

	var argv []string
	if dash := cmd.ArgsLenAtDash(); dash >= 0 {
		if dash != 1 {
			return fail(f, ErrCodeGeneric, ExitCommandError, "expected exactly one command name before --", nil)
		}
		argv = args[dash:]
	} else if len(args) > 1 {
		return fail(f, ErrCodeGeneric, ExitCommandError,
			fmt.Sprintf("unexpected arguments %v (put the command line after --)", args[1:]), nil)
	}
	if (opts.Result == "") == (len(argv) == 0) {
		return fail(f, ErrCodeGeneric, ExitCommandError, "exactly one of --result or -- <argv> is required", nil)
	}

	invArgs, err := parseArgs(opts.Args)
	if err != nil {
		return fail(f, ErrCodeGeneric, ExitCommandError, "invalid --arg", err)
	}

	ws, err := opts.loadWorkspace(f)
	if err != nil {
		return err
	}

	var exec governance.Executor
	if len(argv) > 0 {
		exec = governance.CommandExecutor(ws.Root, argv, cmd.ErrOrStderr())
	} else {
		exec = resultFileExecutor(opts.Result, cmd.InOrStdin())
	}

	pipelineOpts := []governance.Option{governance.WithLogger(opts.logger(cmd.ErrOrStderr()))}
	if opts.Clock != nil {
		pipelineOpts = append(pipelineOpts, governance.WithClock(opts.Clock))
	}
	if opts.RunIDs != nil {
		pipelineOpts = append(pipelineOpts, governance.WithRunIDGenerator(opts.RunIDs))
	}
	if opts.Environment != nil {
		pipelineOpts = append(pipelineOpts, governance.WithEnvironment(opts.Environment))
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := governance.New(ws, pipelineOpts...).Run(ctx, governance.Invocation{Command: command, Args: invArgs}, exec)
	summary := summarize(out)

	var code, message string
	switch {
	case out.Succeeded():
	case out.Blocked():
		code, message = ErrCodeBlocked, "command blocked: "+out.Enforced.Message
	case !out.Truth.Passed:
		code, message = ErrCodeTruth, "claimed artifacts missing: "+strings.Join(out.Truth.MissingArtifacts, ", ")
	case out.Evidence.IsBlock():
		code, message = ErrCodeEvidence, "false success: "+out.Evidence.Message
	default:
		code, message = ErrCodeFailed, "command failed"
	}

	if opts.Format == "json" {
		if err := outputRunJSON(cmd, summary, code, message); err != nil {
			return err
		}
	} else {
		renderSummary(cmd.OutOrStdout(), summary, ws.Rel)
	}
	if code != "" {
		return NewExitError(ExitFailure, message)
	}
	return nil
}

// outputRunJSON outputs the run summary in the JSON envelope.
func outputRunJSON(cmd *cobra.Command, summary RunSummary, code, message string) error {
	response := CLIResponse{
		Status: "ok",
		Data:   summary,
		RunID:  summary.RunID,
	}
	if code != "" {
		response.Status = "error"
		response.Error = &CLIError{Code: code, Message: message}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(response)
}

// resultFileExecutor reports the result document at path, or on stdin
// when path is "-". Read and schema errors become the command's failure.
func resultFileExecutor(path string, stdin io.Reader) governance.Executor {
	return func(context.Context, governance.Invocation) (*result.Result, error) {
		data, err := readInput(path, stdin)
		if err != nil {
			return nil, err
		}
		return result.Parse(data)
	}
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read result from stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read result: %w", err)
	}
	return data, nil
}

// parseArgs turns key=value pairs into command arguments. Values are
// decoded as YAML scalars, so "3" is a number and "true" a boolean; any
// other value stays a string.
func parseArgs(pairs []string) (map[string]any, error) {
	args := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("%q: expected key=value", pair)
		}
		args[key] = scalar(raw)
	}
	return args, nil
}

func scalar(raw string) any {
	if raw == "" {
		return raw
	}
	var v any
	if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	switch n := v.(type) {
	case float64:
		// .nan and .inf stay text; JSON has no encoding for them.
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return raw
		}
		return v
	case bool, int:
		return v
	default:
		return raw
	}
}
