package recovery

import "strings"

// Markdown renders the plan.
func (p Plan) Markdown() string {
	var b strings.Builder
	b.WriteString("# Recovery Plan\n\n")
	if p.RunID != "" {
		b.WriteString("Run: `" + p.RunID + "`\n")
	}
	if p.Command != "" {
		b.WriteString("Command: `" + p.Command + "`\n")
	}
	if p.RunID != "" || p.Command != "" {
		b.WriteString("\n")
	}

	heading(&b, Sections[0])
	b.WriteString(p.WhatHappened + "\n\n")

	heading(&b, Sections[1])
	bullets(&b, p.WhyHappened)

	heading(&b, Sections[2])
	commands(&b, p.Tier1Fix)

	heading(&b, Sections[3])
	commands(&b, p.Tier2Validate)

	heading(&b, Sections[4])
	commands(&b, p.Tier3Diagnose)

	heading(&b, Sections[5])
	bullets(&b, quoted(p.Tier4Escalate.WhatToShare))
	for _, line := range p.Tier4Escalate.Instructions {
		b.WriteString(line + "\n")
	}
	return b.String()
}

func heading(b *strings.Builder, title string) {
	b.WriteString("## " + title + "\n\n")
}

func bullets(b *strings.Builder, items []string) {
	for _, item := range items {
		b.WriteString("- " + item + "\n")
	}
	b.WriteString("\n")
}

func commands(b *strings.Builder, cmds []string) {
	b.WriteString("```bash\n")
	for _, c := range cmds {
		b.WriteString(c + "\n")
	}
	b.WriteString("```\n\n")
}

func quoted(items []string) []string {
	out := make([]string, len(items))
	for i, s := range items {
		out[i] = "`" + s + "`"
	}
	return out
}
