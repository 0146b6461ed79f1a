package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/roach88/trustgate/internal/governance"
)

var (
	okStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#4CAF50"))
	warnStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#E5C07B"))
	failStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).Width(14)
	headStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#444444")).Padding(0, 1)
)

// RunSummary is the machine-readable report of one governed run.
type RunSummary struct {
	RunID            string           `json:"run_id"`
	Command          string           `json:"command"`
	Outcome          string           `json:"outcome"`
	Success          bool             `json:"success"`
	Blocked          bool             `json:"blocked"`
	Precondition     string           `json:"precondition"`
	Enforced         string           `json:"enforced"`
	EvidencePolicy   string           `json:"evidence_policy"`
	TruthPassed      bool             `json:"truth_passed"`
	MissingArtifacts []string         `json:"missing_artifacts"`
	Errors           []string         `json:"errors"`
	Warnings         []string         `json:"warnings"`
	NextActions      []string         `json:"next_actions"`
	LedgerDigest     string           `json:"ledger_digest"`
	Paths            governance.Paths `json:"paths"`
}

func summarize(out *governance.Outcome) RunSummary {
	s := RunSummary{
		RunID:            out.Ledger.RunID,
		Command:          out.Ledger.Command,
		Outcome:          out.Bundle.WhatExecuted.Outcome,
		Success:          out.Succeeded(),
		Blocked:          out.Blocked(),
		Precondition:     string(out.Precondition.Decision),
		Enforced:         string(out.Enforced.Decision),
		EvidencePolicy:   string(out.Evidence.Decision),
		TruthPassed:      out.Truth.Passed,
		MissingArtifacts: out.Truth.MissingArtifacts,
		Errors:           append([]string{}, out.Ledger.Errors...),
		Warnings:         append(append([]string{}, out.Ledger.Warnings...), out.Warnings...),
		NextActions:      out.Bundle.NextCLIActions,
		LedgerDigest:     out.LedgerDigest,
		Paths:            out.Paths,
	}
	if s.MissingArtifacts == nil {
		s.MissingArtifacts = []string{}
	}
	return s
}

// renderSummary writes the styled text report for a run.
func renderSummary(w io.Writer, s RunSummary, rel func(string) string) {
	var status string
	switch {
	case s.Blocked:
		status = failStyle.Render("BLOCKED")
	case !s.Success:
		status = failStyle.Render("FAILED")
	case len(s.Warnings) > 0:
		status = warnStyle.Render("SUCCESS (with warnings)")
	default:
		status = okStyle.Render("SUCCESS")
	}

	lines := []string{
		headStyle.Render("trustgate " + s.Command),
		row("Outcome", status),
		row("Run", s.RunID),
		row("Policy", decision(s.Precondition, s.Enforced)),
		row("Evidence", s.EvidencePolicy),
		row("Truth gate", truthLine(s)),
	}
	if s.Paths.Ledger != "" {
		lines = append(lines, row("Ledger", rel(s.Paths.Ledger)))
	}
	if s.Paths.TrustBundleMD != "" {
		lines = append(lines, row("Trust bundle", rel(s.Paths.TrustBundleMD)))
	}
	if s.Paths.RecoveryPlan != "" {
		lines = append(lines, row("Recovery", rel(s.Paths.RecoveryPlan)))
	}
	fmt.Fprintln(w, boxStyle.Render(strings.Join(lines, "\n")))

	for _, e := range s.Errors {
		fmt.Fprintf(w, "%s %s\n", failStyle.Render("error:"), e)
	}
	for _, warn := range s.Warnings {
		fmt.Fprintf(w, "%s %s\n", warnStyle.Render("warning:"), warn)
	}
	if len(s.NextActions) > 0 {
		fmt.Fprintln(w, headStyle.Render("Next:"))
		for _, a := range s.NextActions {
			fmt.Fprintf(w, "  %s\n", a)
		}
	}
}

func row(label, value string) string {
	return labelStyle.Render(label) + value
}

func decision(raw, enforced string) string {
	if raw == enforced {
		return raw
	}
	return fmt.Sprintf("%s (enforced as %s)", raw, enforced)
}

func truthLine(s RunSummary) string {
	if s.TruthPassed {
		return "passed"
	}
	return "missing " + strings.Join(s.MissingArtifacts, ", ")
}
