package hooks

import (
	"github.com/roach88/trustgate/internal/result"
	"github.com/roach88/trustgate/internal/workspace"
)

// NextStepsAdvisor suggests follow-up commands after a run.
type NextStepsAdvisor interface {
	Suggest(command string, res *result.Result, ws *workspace.Workspace) ([]string, error)
}

// AdvisorFunc adapts a function to NextStepsAdvisor.
type AdvisorFunc func(command string, res *result.Result, ws *workspace.Workspace) ([]string, error)

// Suggest implements NextStepsAdvisor.
func (f AdvisorFunc) Suggest(command string, res *result.Result, ws *workspace.Workspace) ([]string, error) {
	return f(command, res, ws)
}

// StageAdvisor suggests the next pipeline stage after a successful stage
// command. It stays silent after failures so recovery guidance from the
// policy layer takes precedence.
type StageAdvisor struct{}

// Suggest implements NextStepsAdvisor.
func (StageAdvisor) Suggest(command string, res *result.Result, ws *workspace.Workspace) ([]string, error) {
	if res == nil || !res.Success {
		return nil, nil
	}
	stage := workspace.Stage(command)
	if stage.Index() < 0 {
		return nil, nil
	}
	if next := stage.Next(); next != "" {
		return []string{ws.Command(string(next))}, nil
	}
	return []string{ws.Command("status")}, nil
}
