package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/trustgate/internal/ledger"
)

// ErrRunNotFound is returned when a run id is not in the index.
var ErrRunNotFound = errors.New("run not found")

const runColumns = `seq, run_id, command, timestamp, success, blocked, execution_mode,
	stage_before, stage_after, path, digest, warning_count, error_count`

// ListOptions filters ListRuns.
type ListOptions struct {
	// Command restricts results to one command when non-empty.
	Command string
	// Limit caps the number of rows; zero means no limit.
	Limit int
}

// GetRun returns the indexed run with the given id.
func (s *Store) GetRun(ctx context.Context, runID string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return Run{}, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// ListRuns returns indexed runs, newest first (ORDER BY seq DESC).
// Returns an empty slice (not nil) when there are none.
func (s *Store) ListRuns(ctx context.Context, opts ListOptions) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs`
	var args []any
	if opts.Command != "" {
		query += ` WHERE command = ?`
		args = append(args, opts.Command)
	}
	query += ` ORDER BY seq DESC`
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// RunOutputs returns the outputs recorded for a run in ledger order.
func (s *Store) RunOutputs(ctx context.Context, runID string) ([]ledger.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT path, hash FROM run_outputs
		WHERE run_id = ?
		ORDER BY position ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query run outputs: %w", err)
	}
	defer rows.Close()

	outputs := []ledger.Entry{}
	for rows.Next() {
		var e ledger.Entry
		var hash sql.NullString
		if err := rows.Scan(&e.Path, &hash); err != nil {
			return nil, fmt.Errorf("scan run output: %w", err)
		}
		if hash.Valid {
			h := hash.String
			e.Hash = &h
		}
		outputs = append(outputs, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run outputs: %w", err)
	}
	return outputs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var run Run
	var success, blocked int
	var before, after sql.NullString
	err := row.Scan(
		&run.Seq,
		&run.RunID,
		&run.Command,
		&run.Timestamp,
		&success,
		&blocked,
		&run.ExecutionMode,
		&before,
		&after,
		&run.Path,
		&run.Digest,
		&run.WarningCount,
		&run.ErrorCount,
	)
	if err != nil {
		return Run{}, err
	}
	run.Success = success != 0
	run.Blocked = blocked != 0
	if before.Valid {
		s := before.String
		run.StageBefore = &s
	}
	if after.Valid {
		s := after.String
		run.StageAfter = &s
	}
	return run, nil
}
