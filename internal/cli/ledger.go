package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/roach88/trustgate/internal/digest"
	"github.com/roach88/trustgate/internal/ledger"
	"github.com/roach88/trustgate/internal/store"
	"github.com/roach88/trustgate/internal/workspace"
)

// Output check statuses reported by ledger verify.
const (
	OutputOK       = "ok"
	OutputChanged  = "changed"
	OutputMissing  = "missing"
	OutputUnhashed = "unhashed"
)

// OutputCheck compares one recorded output with the file on disk.
type OutputCheck struct {
	Path     string  `json:"path"`
	Recorded *string `json:"recorded"`
	Current  *string `json:"current"`
	Status   string  `json:"status"`
}

// LedgerVerifyReport is the outcome of ledger verify.
type LedgerVerifyReport struct {
	RunID         string        `json:"run_id"`
	Path          string        `json:"path"`
	Digest        string        `json:"digest"`
	IndexedDigest *string       `json:"indexed_digest"`
	Outputs       []OutputCheck `json:"outputs"`
	Valid         bool          `json:"valid"`
	Problems      []string      `json:"problems"`
}

// NewLedgerCommand creates the ledger command group.
func NewLedgerCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect evidence ledgers",
		Long: `Inspect the evidence ledgers recorded under audit/ledger/.

Ledgers are immutable; these commands only read them.`,
	}
	cmd.AddCommand(newLedgerListCommand(rootOpts))
	cmd.AddCommand(newLedgerShowCommand(rootOpts))
	cmd.AddCommand(newLedgerVerifyCommand(rootOpts))
	return cmd
}

func newLedgerListCommand(opts *RootOptions) *cobra.Command {
	var listOpts store.ListOptions

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List indexed runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			ws, err := opts.loadWorkspace(f)
			if err != nil {
				return err
			}

			runs := []store.Run{}
			if ws.Exists(workspace.LedgerIndex) {
				st, err := store.Open(ws.Path(workspace.LedgerIndex))
				if err != nil {
					return fail(f, ErrCodeIndex, ExitCommandError, "failed to open ledger index", err)
				}
				defer st.Close()
				runs, err = st.ListRuns(cmd.Context(), listOpts)
				if err != nil {
					return fail(f, ErrCodeIndex, ExitCommandError, "failed to list runs", err)
				}
			}

			if opts.Format == "json" {
				return f.Success(runs)
			}
			writeRunTable(cmd.OutOrStdout(), runs)
			return nil
		},
	}

	cmd.Flags().IntVar(&listOpts.Limit, "limit", 20, "maximum number of runs (0 for all)")
	cmd.Flags().StringVar(&listOpts.Command, "command", "", "only runs of this command")
	return cmd
}

func newLedgerShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run_id>",
		Short: "Show one ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			ws, err := opts.loadWorkspace(f)
			if err != nil {
				return err
			}
			l, _, err := loadLedger(f, ws, args[0])
			if err != nil {
				return err
			}
			if opts.Format == "json" {
				return f.Success(l)
			}
			writeLedgerText(cmd.OutOrStdout(), l, ws)
			return nil
		},
	}
}

func newLedgerVerifyCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <run_id>",
		Short: "Check a ledger against its indexed digest and its outputs on disk",
		Long: `Recompute the digest of a saved ledger and compare it with the digest
recorded in the ledger index, then re-hash every recorded output.

Exit codes:
  0 - Digest matches and every output is unchanged
  1 - Digest mismatch, or an output changed or disappeared
  2 - Command error (ledger not found, index unreadable)`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			ws, err := opts.loadWorkspace(f)
			if err != nil {
				return err
			}
			l, path, err := loadLedger(f, ws, args[0])
			if err != nil {
				return err
			}

			report, err := verifyLedger(cmd, ws, l, path)
			if err != nil {
				return fail(f, ErrCodeIndex, ExitCommandError, "failed to verify ledger", err)
			}

			if opts.Format == "json" {
				if report.Valid {
					return f.Success(report)
				}
				_ = f.Failure(report, ErrCodeDigest, "ledger verification failed")
			} else {
				writeVerifyLedgerText(cmd.OutOrStdout(), report)
			}
			if !report.Valid {
				return NewExitError(ExitFailure, "ledger verification failed")
			}
			return nil
		},
	}
}

func loadLedger(f *OutputFormatter, ws *workspace.Workspace, runID string) (*ledger.Ledger, string, error) {
	if runID == "" || filepath.Base(runID) != runID {
		return nil, "", fail(f, ErrCodeGeneric, ExitCommandError, fmt.Sprintf("invalid run id %q", runID), nil)
	}
	path := filepath.Join(ws.Path(workspace.LedgerDir), runID+".json")
	l, err := ledger.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, "", fail(f, ErrCodeNotFound, ExitCommandError, "ledger not found: "+runID, nil)
	}
	if err != nil {
		return nil, "", fail(f, ErrCodeReadFailed, ExitCommandError, "failed to load ledger", err)
	}
	return l, path, nil
}

func verifyLedger(cmd *cobra.Command, ws *workspace.Workspace, l *ledger.Ledger, path string) (LedgerVerifyReport, error) {
	report := LedgerVerifyReport{
		RunID:    l.RunID,
		Path:     ws.Rel(path),
		Outputs:  []OutputCheck{},
		Problems: []string{},
	}

	d, err := l.Digest()
	if err != nil {
		return report, err
	}
	report.Digest = d

	if ws.Exists(workspace.LedgerIndex) {
		st, err := store.Open(ws.Path(workspace.LedgerIndex))
		if err != nil {
			return report, err
		}
		defer st.Close()
		run, err := st.GetRun(cmd.Context(), l.RunID)
		switch {
		case errors.Is(err, store.ErrRunNotFound):
		case err != nil:
			return report, err
		default:
			report.IndexedDigest = &run.Digest
			if run.Digest != d {
				report.Problems = append(report.Problems,
					fmt.Sprintf("digest mismatch: ledger %s, index %s", digest.Short(d), digest.Short(run.Digest)))
			}
		}
	}

	for _, out := range l.Outputs {
		check := OutputCheck{Path: out.Path, Recorded: out.Hash, Current: digest.File(out.Path)}
		switch {
		case out.Hash == nil:
			check.Status = OutputUnhashed
		case check.Current == nil:
			check.Status = OutputMissing
			report.Problems = append(report.Problems, "output missing: "+ws.Rel(out.Path))
		case *check.Current != *out.Hash:
			check.Status = OutputChanged
			report.Problems = append(report.Problems, "output changed: "+ws.Rel(out.Path))
		default:
			check.Status = OutputOK
		}
		report.Outputs = append(report.Outputs, check)
	}

	report.Valid = len(report.Problems) == 0
	return report, nil
}

func writeRunTable(w io.Writer, runs []store.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("#444444"))).
		Headers("SEQ", "RUN ID", "COMMAND", "OUTCOME", "TIMESTAMP")
	for _, r := range runs {
		t.Row(strconv.FormatInt(r.Seq, 10), r.RunID, r.Command, runOutcome(r), r.Timestamp)
	}
	fmt.Fprintln(w, t.Render())
}

func runOutcome(r store.Run) string {
	switch {
	case r.Blocked:
		return "BLOCKED"
	case r.Success:
		return "SUCCESS"
	default:
		return "FAILED"
	}
}

func writeLedgerText(w io.Writer, l *ledger.Ledger, ws *workspace.Workspace) {
	fmt.Fprintf(w, "Run:        %s\n", l.RunID)
	fmt.Fprintf(w, "Command:    %s\n", l.Command)
	fmt.Fprintf(w, "Timestamp:  %s\n", l.Timestamp)
	fmt.Fprintf(w, "Mode:       %s\n", l.ExecutionMode)
	fmt.Fprintf(w, "Stage:      %s -> %s\n", stageLabel(l.StageBefore), stageLabel(l.StageAfter))
	fmt.Fprintf(w, "Success:    %t\n", l.Success)
	writeEntries(w, "Inputs", l.Inputs, ws)
	writeEntries(w, "Outputs", l.Outputs, ws)
	for _, e := range l.Errors {
		fmt.Fprintf(w, "error: %s\n", e)
	}
	for _, warn := range l.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warn)
	}
}

func writeEntries(w io.Writer, title string, entries []ledger.Entry, ws *workspace.Workspace) {
	if len(entries) == 0 {
		return
	}
	fmt.Fprintf(w, "%s:\n", title)
	for _, e := range entries {
		hash := "unhashed"
		if e.Hash != nil {
			hash = digest.Short(*e.Hash)
		}
		fmt.Fprintf(w, "  %s  %s\n", hash, ws.Rel(e.Path))
	}
}

func stageLabel(s *string) string {
	if s == nil {
		return "unknown"
	}
	return *s
}

func writeVerifyLedgerText(w io.Writer, r LedgerVerifyReport) {
	indexed := "not indexed"
	if r.IndexedDigest != nil {
		indexed = digest.Short(*r.IndexedDigest)
	}
	fmt.Fprintf(w, "Ledger: %s\n", r.Path)
	fmt.Fprintf(w, "Digest: %s (index: %s)\n", digest.Short(r.Digest), indexed)
	for _, o := range r.Outputs {
		fmt.Fprintf(w, "  %-8s %s\n", o.Status, o.Path)
	}
	if r.Valid {
		fmt.Fprintln(w, "✓ Ledger verified")
		return
	}
	for _, p := range r.Problems {
		fmt.Fprintf(w, "✗ %s\n", p)
	}
}
