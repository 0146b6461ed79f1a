package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/trustgate/internal/result"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	var resultPath string

	cmd := &cobra.Command{
		Use:   "validate --result FILE",
		Short: "Validate a result document against the schema",
		Long: `Validate a command result document against the result schema.

Checks field types and rejects malformed JSON without touching the
workspace. Unknown fields are allowed and preserved.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, resultPath, cmd)
		},
	}

	cmd.Flags().StringVar(&resultPath, "result", "", "result document to validate (\"-\" reads stdin)")
	_ = cmd.MarkFlagRequired("result")

	return cmd
}

func runValidate(opts *RootOptions, resultPath string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	data, err := readInput(resultPath, cmd.InOrStdin())
	if err != nil {
		return fail(f, ErrCodeReadFailed, ExitCommandError, "failed to read result", err)
	}
	f.VerboseLog("Validating %d byte(s) from %s", len(data), resultPath)

	err = result.Validate(data)
	if err == nil {
		if opts.Format == "json" {
			return f.Success(ValidationResult{Valid: true})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Result is valid")
		return nil
	}

	var schemaErr *result.SchemaError
	if !errors.As(err, &schemaErr) {
		return fail(f, ErrCodeGeneric, ExitCommandError, "schema unavailable", err)
	}

	vr := ValidationResult{Valid: false, Errors: schemaErr.Issues}
	if opts.Format == "json" {
		_ = f.Failure(vr, ErrCodeSchema, fmt.Sprintf("%d schema error(s)", len(vr.Errors)))
	} else {
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "✗ Result is invalid (%d error(s))\n", len(vr.Errors))
		for _, issue := range vr.Errors {
			fmt.Fprintf(w, "  %s\n", issue)
		}
	}
	return NewExitError(ExitFailure, "result does not match schema")
}
