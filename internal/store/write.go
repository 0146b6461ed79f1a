package store

import (
	"context"
	"fmt"

	"github.com/roach88/trustgate/internal/ledger"
)

// Run is one indexed ledger.
type Run struct {
	Seq           int64   `json:"seq"`
	RunID         string  `json:"run_id"`
	Command       string  `json:"command"`
	Timestamp     string  `json:"timestamp"`
	Success       bool    `json:"success"`
	Blocked       bool    `json:"blocked"`
	ExecutionMode string  `json:"execution_mode"`
	StageBefore   *string `json:"stage_before"`
	StageAfter    *string `json:"stage_after"`
	Path          string  `json:"path"`
	Digest        string  `json:"digest"`
	WarningCount  int     `json:"warning_count"`
	ErrorCount    int     `json:"error_count"`
}

// RunFromLedger builds the index row for a saved ledger.
func RunFromLedger(l *ledger.Ledger, path, digest string, blocked bool) Run {
	return Run{
		RunID:         l.RunID,
		Command:       l.Command,
		Timestamp:     l.Timestamp,
		Success:       l.Success,
		Blocked:       blocked,
		ExecutionMode: l.ExecutionMode,
		StageBefore:   l.StageBefore,
		StageAfter:    l.StageAfter,
		Path:          path,
		Digest:        digest,
		WarningCount:  len(l.Warnings),
		ErrorCount:    len(l.Errors),
	}
}

// RecordRun inserts a run and its outputs.
// Uses ON CONFLICT(run_id) DO NOTHING: a ledger is indexed at most once and
// re-recording the same run id reports inserted=false.
func (s *Store) RecordRun(ctx context.Context, run Run, outputs []ledger.Entry) (inserted bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("record run: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs
		(run_id, command, timestamp, success, blocked, execution_mode, stage_before, stage_after, path, digest, warning_count, error_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO NOTHING
	`,
		run.RunID,
		run.Command,
		run.Timestamp,
		boolToInt(run.Success),
		boolToInt(run.Blocked),
		run.ExecutionMode,
		run.StageBefore,
		run.StageAfter,
		run.Path,
		run.Digest,
		run.WarningCount,
		run.ErrorCount,
	)
	if err != nil {
		return false, fmt.Errorf("record run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("record run: rows affected: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	for i, out := range outputs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO run_outputs (run_id, position, path, hash)
			VALUES (?, ?, ?, ?)
		`, run.RunID, i, out.Path, out.Hash); err != nil {
			return false, fmt.Errorf("record run output %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("record run: commit: %w", err)
	}
	return true, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
