package policy

import (
	"fmt"

	"github.com/roach88/trustgate/internal/workspace"
)

// Rule is the precondition check for one command.
type Rule interface {
	Evaluate(stage *string, ctx Context) Result
}

// RuleFunc adapts a function to Rule.
type RuleFunc func(stage *string, ctx Context) Result

// Evaluate implements Rule.
func (f RuleFunc) Evaluate(stage *string, ctx Context) Result {
	return f(stage, ctx)
}

// Registry maps command names to precondition rules.
//
// Commands without a rule are allowed. DefaultRegistry carries one rule per
// pipeline stage; a domain with extra commands registers its own:
//
//	r := policy.DefaultRegistry()
//	r.Register("publish", policy.RuleFunc(publishRule))
//
// Thread-safety: register every rule before sharing the registry. After
// that EvaluatePreconditions may be called concurrently; Register may not.
type Registry struct {
	rules map[string]Rule
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{rules: make(map[string]Rule)}
}

// DefaultRegistry returns a registry with the stage precondition rules.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(string(workspace.StageSpecification), RuleFunc(specificationRule))
	r.Register(string(workspace.StageProfiling), RuleFunc(profilingRule))
	r.Register(string(workspace.StageAnalysis), RuleFunc(analysisRule))
	r.Register(string(workspace.StageBuild), RuleFunc(buildRule))
	r.Register(string(workspace.StagePreview), RuleFunc(previewRule))
	return r
}

// Register sets the rule for command, replacing any existing rule.
func (r *Registry) Register(command string, rule Rule) {
	r.rules[command] = rule
}

// Has reports whether command has a rule.
func (r *Registry) Has(command string) bool {
	_, ok := r.rules[command]
	return ok
}

// EvaluatePreconditions checks whether command may run at stage.
func (r *Registry) EvaluatePreconditions(command string, stage *string, ctx Context) Result {
	rule, ok := r.rules[command]
	if !ok {
		return Allowed(fmt.Sprintf("no preconditions for %q", command))
	}
	return rule.Evaluate(stage, ctx)
}

var defaultRegistry = DefaultRegistry()

// EvaluatePreconditions checks command against the default rules.
func EvaluatePreconditions(command string, stage *string, ctx Context) Result {
	return defaultRegistry.EvaluatePreconditions(command, stage, ctx)
}

func specificationRule(stage *string, ctx Context) Result {
	if workspace.Reached(stage, ctx.CompletedStages, workspace.StageInit) {
		return Allowed("workspace initialized")
	}
	return Blocked(
		"The workspace has not been initialized yet.",
		"workspace initialization",
		ctx.command("init"),
		ctx.command("specification"),
	)
}

func profilingRule(_ *string, ctx Context) Result {
	if !ctx.HasSpecification {
		return Blocked(
			fmt.Sprintf("Profiling needs a specification at %s.", ctx.layout().SpecFile),
			"specification file",
			ctx.command("specification"),
			ctx.command("profiling"),
		)
	}
	if !ctx.HasData {
		layout := ctx.layout()
		return Blocked(
			fmt.Sprintf("Profiling needs at least one data file in %s/.", layout.DataDir),
			"data files present",
			AddDataCommand(layout.DataDir, layout.DataSource),
			ctx.command("status"),
			ctx.command("profiling"),
		)
	}
	return Allowed("specification and data present")
}

func analysisRule(_ *string, ctx Context) Result {
	if ctx.ProfileExists {
		return Allowed("profile present")
	}
	path := ctx.layout().ProfileFile
	return Blocked(
		fmt.Sprintf("Analysis needs the data profile at %s.", path),
		"profile output ("+path+")",
		ctx.command("profiling"),
		ctx.command("analysis"),
	)
}

func buildRule(_ *string, ctx Context) Result {
	if ctx.InsightsExists {
		return Allowed("insights present")
	}
	path := ctx.layout().InsightsFile
	return Blocked(
		fmt.Sprintf("Build needs the analysis insights at %s.", path),
		"insights output ("+path+")",
		ctx.command("analysis"),
		ctx.command("build"),
	)
}

func previewRule(_ *string, ctx Context) Result {
	if ctx.BuildDirExists {
		return Allowed("build output present")
	}
	dir := ctx.layout().BuildDir
	return Blocked(
		fmt.Sprintf("Preview needs the build output directory %s/.", dir),
		"build output directory ("+dir+")",
		ctx.command("build"),
		ctx.command("preview"),
	)
}
