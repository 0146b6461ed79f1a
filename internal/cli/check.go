package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/trustgate/internal/governance"
	"github.com/roach88/trustgate/internal/policy"
)

// CheckReport is the outcome of a precondition check.
type CheckReport struct {
	Command      string        `json:"command"`
	Stage        *string       `json:"stage"`
	Mode         string        `json:"mode"`
	Precondition policy.Result `json:"precondition"`
	Enforced     policy.Result `json:"enforced"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <command>",
		Short: "Check whether a command's preconditions are met",
		Long: `Evaluate the stage preconditions for a command without running it.

Nothing is written to the workspace. The enforced decision applies the
execution mode: open mode downgrades BLOCK to WARN.

Exit codes:
  0 - Command may run (ALLOW or WARN)
  1 - Command would be blocked
  2 - Command error`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runCheck(opts *RootOptions, command string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	ws, err := opts.loadWorkspace(f)
	if err != nil {
		return err
	}

	p := governance.New(ws, governance.WithLogger(opts.logger(cmd.ErrOrStderr())))
	raw, enforced := p.Check(command)
	report := CheckReport{
		Command:      command,
		Stage:        ws.Stage,
		Mode:         string(ws.Mode),
		Precondition: raw,
		Enforced:     enforced,
	}

	if opts.Format == "json" {
		if enforced.IsBlock() {
			_ = f.Failure(report, ErrCodeBlocked, enforced.Message)
		} else if err := f.Success(report); err != nil {
			return err
		}
	} else {
		writeCheckText(cmd.OutOrStdout(), report)
	}

	if enforced.IsBlock() {
		return NewExitError(ExitFailure, "command blocked: "+enforced.Message)
	}
	return nil
}

func writeCheckText(w io.Writer, r CheckReport) {
	fmt.Fprintf(w, "%s: %s\n", r.Command, decision(string(r.Precondition.Decision), string(r.Enforced.Decision)))
	fmt.Fprintf(w, "  %s\n", r.Enforced.Message)
	if r.Precondition.MissingPrerequisite != nil {
		fmt.Fprintf(w, "  Missing: %s\n", *r.Precondition.MissingPrerequisite)
	}
	if len(r.Precondition.RecoverySteps) > 0 {
		fmt.Fprintln(w, "  Fix:")
		for _, step := range r.Precondition.RecoverySteps {
			fmt.Fprintf(w, "    %s\n", step)
		}
	}
}
