package bundle

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/trustgate/internal/digest"
)

// Markdown renders the human form. Hashes are shortened.
func (b Bundle) Markdown() string {
	var w strings.Builder
	w.WriteString("# Trust Bundle\n\n")

	section(&w, Sections[0])
	item(&w, "Run ID", code(orNone(b.RunIdentity.RunID)))
	item(&w, "Timestamp", orNone(b.RunIdentity.Timestamp))
	item(&w, "Command", code(orNone(b.RunIdentity.Command)))
	item(&w, "Tool version", b.RunIdentity.ToolVersion)
	w.WriteString("\n")

	section(&w, Sections[1])
	item(&w, "Stage before", stage(b.WorkflowState.StageBefore))
	item(&w, "Stage after", stage(b.WorkflowState.StageAfter))
	item(&w, "Completed stages", joinOrNone(b.WorkflowState.CompletedStages))
	item(&w, "Execution mode", orNone(b.ExecutionMode))
	item(&w, "Output preferences", keyValues(b.OutputPreferences))
	w.WriteString("\n")

	section(&w, Sections[2])
	item(&w, "Command", code(orNone(b.WhatExecuted.Command)))
	item(&w, "Arguments", keyValues(b.WhatExecuted.Args))
	item(&w, "Outcome", b.WhatExecuted.Outcome)
	if b.WhatExecuted.Decision != nil {
		item(&w, "Policy decision", *b.WhatExecuted.Decision)
	}
	w.WriteString("\n")

	section(&w, Sections[3])
	item(&w, "Ledger", code(orNone(b.EvidenceLedger.Path)))
	item(&w, "Digest", code(orNone(digest.Short(b.EvidenceLedger.Digest))))
	item(&w, "Inputs recorded", fmt.Sprint(b.EvidenceLedger.Inputs))
	item(&w, "Outputs recorded", fmt.Sprint(b.EvidenceLedger.Outputs))
	w.WriteString("\n")

	section(&w, Sections[4])
	if len(b.ArtifactsProduced) == 0 {
		w.WriteString("None recorded.\n\n")
	} else {
		w.WriteString("| Path | SHA-256 |\n|---|---|\n")
		for _, a := range b.ArtifactsProduced {
			hash := "unavailable"
			if a.Hash != nil {
				hash = code(digest.Short(*a.Hash))
			}
			fmt.Fprintf(&w, "| %s | %s |\n", code(a.Path), hash)
		}
		w.WriteString("\n")
	}

	section(&w, Sections[5])
	list(&w, b.SkillsExecuted, "None reported.")

	section(&w, Sections[6])
	var flagged []string
	for _, s := range b.WarningsBlocks.Blocks {
		flagged = append(flagged, "Block: "+s)
	}
	for _, s := range b.WarningsBlocks.Errors {
		flagged = append(flagged, "Error: "+s)
	}
	for _, s := range b.WarningsBlocks.Warnings {
		flagged = append(flagged, "Warning: "+s)
	}
	list(&w, flagged, "None.")

	section(&w, Sections[7])
	list(&w, b.WhatsMissing, "Nothing missing.")

	section(&w, Sections[8])
	w.WriteString("```bash\n")
	for _, a := range b.NextCLIActions {
		w.WriteString(a + "\n")
	}
	w.WriteString("```\n")
	return w.String()
}

func section(w *strings.Builder, title string) {
	w.WriteString("## " + title + "\n\n")
}

func item(w *strings.Builder, label, value string) {
	w.WriteString("- " + label + ": " + value + "\n")
}

func list(w *strings.Builder, items []string, empty string) {
	if len(items) == 0 {
		w.WriteString(empty + "\n\n")
		return
	}
	for _, s := range items {
		w.WriteString("- " + s + "\n")
	}
	w.WriteString("\n")
}

func code(s string) string {
	return "`" + s + "`"
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

func stage(s *string) string {
	if s == nil {
		return "unknown"
	}
	return *s
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}

// keyValues renders a map as sorted k=v pairs. Non-string values are JSON.
func keyValues(m map[string]any) string {
	if len(m) == 0 {
		return "none"
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, len(keys))
	for i, k := range keys {
		var v string
		if s, ok := m[k].(string); ok {
			v = s
		} else if data, err := json.Marshal(m[k]); err == nil {
			v = string(data)
		} else {
			v = fmt.Sprint(m[k])
		}
		pairs[i] = code(k + "=" + v)
	}
	return strings.Join(pairs, ", ")
}
