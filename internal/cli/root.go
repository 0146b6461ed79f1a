package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/trustgate/internal/workspace"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose   bool
	Format    string // "json" | "text"
	Workspace string
	Config    string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the trustgate CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "trustgate",
		Short: "Governance gate for analytics workflow commands",
		Long: `Trustgate runs analytics workflow commands behind a governance gate.

Each run is checked against stage preconditions, its success claims are
verified against the files on disk, and every run leaves an immutable
evidence ledger, a trust bundle and, when something went wrong, a
recovery plan under audit/.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return fail(opts.formatter(cmd), ErrCodeGeneric, ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats), nil)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.Workspace, "workspace", "w", ".", "workspace root directory")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "path to governance.yaml (default <workspace>/governance.yaml)")

	// Add subcommands
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewCheckCommand(opts))
	cmd.AddCommand(NewVerifyCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewLedgerCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// loadWorkspace loads the workspace named by the global flags.
func (o *RootOptions) loadWorkspace(f *OutputFormatter) (*workspace.Workspace, error) {
	root := o.Workspace
	if root == "" {
		root = "."
	}
	ws, err := workspace.Load(root, workspace.Options{ConfigPath: o.Config})
	if err != nil {
		return nil, fail(f, ErrCodeWorkspace, ExitCommandError, "failed to load workspace", err)
	}
	return ws, nil
}

// fail reports an error through f and returns the matching ExitError.
func fail(f *OutputFormatter, code string, exitCode int, message string, err error) error {
	exitErr := WrapExitError(exitCode, message, err)
	if err == nil {
		exitErr = NewExitError(exitCode, message)
	}
	_ = f.Error(code, exitErr.Error(), nil)
	return exitErr
}

// logger returns a text logger on w at info level, or debug with --verbose.
func (o *RootOptions) logger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose,
	}
}
