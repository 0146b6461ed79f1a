package hooks

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/roach88/trustgate/internal/ledger"
	"github.com/roach88/trustgate/internal/result"
	"github.com/roach88/trustgate/internal/safe"
	"github.com/roach88/trustgate/internal/workspace"
)

// ObservationError records a sub-observation that could not complete.
type ObservationError struct {
	Step string
	Err  error
}

func (e *ObservationError) Error() string {
	return fmt.Sprintf("observation %q failed: %v", e.Step, e.Err)
}

func (e *ObservationError) Unwrap() error {
	return e.Err
}

// Hooks observes one workspace.
type Hooks struct {
	ws      *workspace.Workspace
	advisor NextStepsAdvisor
	logger  *slog.Logger
}

// Option customizes Hooks.
type Option func(*Hooks)

// WithAdvisor sets the collaborator that suggests follow-up commands.
func WithAdvisor(a NextStepsAdvisor) Option {
	return func(h *Hooks) { h.advisor = a }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Hooks) { h.logger = l }
}

// New creates hooks for ws. The default advisor is StageAdvisor.
func New(ws *workspace.Workspace, opts ...Option) *Hooks {
	h := &Hooks{
		ws:      ws,
		advisor: StageAdvisor{},
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Pre records what the workspace looked like before command runs.
func (h *Hooks) Pre(l *ledger.Ledger, command string, args map[string]any) {
	h.logger.Debug("pre-execution observations", "run_id", l.RunID, "command", command, "args", len(args))

	h.observe(l, "stage_before", func() error {
		state, err := h.ws.ReadStage()
		if errors.Is(err, fs.ErrNotExist) {
			l.StageBefore = nil
			return nil
		}
		if err != nil {
			return err
		}
		l.StageBefore = state.CurrentStage
		return nil
	})

	h.observe(l, "required_directories", func() error {
		l.SetProof(ledger.ProofMissingDirs, h.ws.MissingDirs())
		return nil
	})

	h.observe(l, "data_files", func() error {
		files, err := h.ws.DataFiles()
		if err != nil {
			return err
		}
		l.SetProof(ledger.ProofDataPresent, len(files) > 0)
		l.SetProof(ledger.ProofDataFileCount, len(files))
		for _, f := range files {
			l.AddInput(f)
		}
		return nil
	})

	h.observe(l, "specification", func() error {
		l.SetProof(ledger.ProofHasSpecification, h.ws.HasSpecification())
		return nil
	})
}

// Post records what the command reported and produced.
func (h *Hooks) Post(l *ledger.Ledger, res *result.Result) {
	h.observe(l, "stage_after", func() error {
		state, err := h.ws.ReadStage()
		if errors.Is(err, fs.ErrNotExist) {
			l.StageAfter = nil
			return nil
		}
		if err != nil {
			return err
		}
		l.StageAfter = state.CurrentStage
		return nil
	})

	if res == nil {
		l.Success = false
		l.AddWarning("post-execution: no result was returned")
		return
	}

	h.observe(l, "success", func() error {
		l.Success = res.Success
		return nil
	})

	h.observe(l, "messages", func() error {
		for _, w := range res.Warnings {
			l.AddWarning(w)
		}
		for _, e := range res.Errors {
			l.AddError(e)
		}
		return nil
	})

	h.observe(l, "outputs", func() error {
		for _, claim := range res.OutputClaims() {
			path := result.ResolvePath(h.ws.Root, claim.Path)
			info, err := os.Stat(path)
			if err != nil || !info.Mode().IsRegular() {
				h.logger.Debug("claimed output not found", "key", claim.Key, "path", claim.Path)
				continue
			}
			l.AddOutput(path)
		}
		return nil
	})

	h.observe(l, "next_steps", func() error {
		if len(res.NextSteps) > 0 || h.advisor == nil {
			return nil
		}
		steps, err := h.advisor.Suggest(l.Command, res, h.ws)
		if err != nil {
			return err
		}
		if len(steps) > 0 {
			res.NextSteps = steps
		}
		return nil
	})
}

// observe runs one sub-observation and records any failure on the ledger.
func (h *Hooks) observe(l *ledger.Ledger, step string, fn func() error) {
	if err := safe.Do(step, fn); err != nil {
		obsErr := &ObservationError{Step: step, Err: err}
		h.logger.Warn("observation failed", "run_id", l.RunID, "step", step, "error", err)
		l.AddWarning(obsErr.Error())
	}
}
