package policy

import (
	"strings"

	"github.com/roach88/trustgate/internal/workspace"
)

// Context carries the workspace facts precondition rules depend on.
type Context struct {
	CompletedStages  []string
	HasSpecification bool
	HasData          bool
	ProfileExists    bool
	InsightsExists   bool
	BuildDirExists   bool

	// Program prefixes suggested commands. Empty means the default program.
	Program string
	// Layout names artifacts in messages. The zero value means the default
	// layout.
	Layout workspace.Layout
}

// ContextFrom observes ws. An unreadable data directory counts as no data.
func ContextFrom(ws *workspace.Workspace) Context {
	n, err := ws.DataFileCount()
	return Context{
		CompletedStages:  ws.CompletedStages,
		HasSpecification: ws.HasSpecification(),
		HasData:          err == nil && n > 0,
		ProfileExists:    ws.Exists(ws.Layout.ProfileFile),
		InsightsExists:   ws.Exists(ws.Layout.InsightsFile),
		BuildDirExists:   ws.IsDir(ws.Layout.BuildDir),
		Program:          ws.Program,
		Layout:           ws.Layout,
	}
}

func (c Context) command(args ...string) string {
	program := c.Program
	if program == "" {
		program = workspace.DefaultProgram
	}
	return strings.Join(append([]string{program}, args...), " ")
}

func (c Context) layout() workspace.Layout {
	if c.Layout.DataDir == "" {
		return workspace.DefaultLayout()
	}
	return c.Layout
}

// AddDataCommand is the command suggested when no data files exist. With a
// configured source it copies that source into dataDir; otherwise it creates
// dataDir and lists it so the user can see what is there.
func AddDataCommand(dataDir, source string) string {
	dir := strings.TrimSuffix(dataDir, "/")
	if source != "" {
		return "cp -R " + source + " " + dir + "/"
	}
	return "mkdir -p " + dir + " && ls -A " + dir + "/"
}
