package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/trustgate/internal/governance"
	"github.com/roach88/trustgate/internal/result"
	"github.com/roach88/trustgate/internal/truth"
)

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	var resultPath string

	cmd := &cobra.Command{
		Use:   "verify <command> --result FILE",
		Short: "Check a result's artifact claims against the workspace",
		Long: `Run the truth gate alone: every file a result claims to have produced
must exist. Nothing is written to the workspace.

Exit codes:
  0 - All claimed artifacts exist
  1 - One or more claimed artifacts are missing
  2 - Command error (unreadable or invalid result)`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(rootOpts, args[0], resultPath, cmd)
		},
	}

	cmd.Flags().StringVar(&resultPath, "result", "", "result document to verify (\"-\" reads stdin)")
	_ = cmd.MarkFlagRequired("result")

	return cmd
}

func runVerify(opts *RootOptions, command, resultPath string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	res, err := loadResult(f, resultPath, cmd.InOrStdin())
	if err != nil {
		return err
	}
	ws, err := opts.loadWorkspace(f)
	if err != nil {
		return err
	}

	v := governance.New(ws).Verify(command, res)
	if opts.Format == "json" {
		if !v.Passed {
			_ = f.Failure(v, ErrCodeTruth, "claimed artifacts missing")
		} else if err := f.Success(v); err != nil {
			return err
		}
	} else {
		writeVerifyText(cmd.OutOrStdout(), command, v)
	}

	if !v.Passed {
		return NewExitError(ExitFailure, fmt.Sprintf("%d claimed artifact(s) missing", len(v.MissingArtifacts)))
	}
	return nil
}

// loadResult reads and validates a result document for a command.
func loadResult(f *OutputFormatter, path string, stdin io.Reader) (*result.Result, error) {
	data, err := readInput(path, stdin)
	if err != nil {
		return nil, fail(f, ErrCodeReadFailed, ExitCommandError, "failed to read result", err)
	}
	res, err := result.Parse(data)
	if err != nil {
		var schemaErr *result.SchemaError
		if errors.As(err, &schemaErr) {
			return nil, fail(f, ErrCodeSchema, ExitCommandError, "invalid result", err)
		}
		return nil, fail(f, ErrCodeGeneric, ExitCommandError, "invalid result", err)
	}
	return res, nil
}

func writeVerifyText(w io.Writer, command string, v truth.Validation) {
	if v.Passed {
		fmt.Fprintf(w, "✓ %s: %d claimed artifact(s) verified\n", command, len(v.ValidatedArtifacts))
	} else {
		fmt.Fprintf(w, "✗ %s: %d claimed artifact(s) missing\n", command, len(v.MissingArtifacts))
	}
	for _, m := range v.MissingArtifacts {
		fmt.Fprintf(w, "  missing: %s\n", m)
	}
	for _, ok := range v.ValidatedArtifacts {
		fmt.Fprintf(w, "  found: %s\n", ok)
	}
	for _, warn := range v.Warnings {
		fmt.Fprintf(w, "  warning: %s\n", warn)
	}
}
