package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/trustgate/internal/result"
	"github.com/roach88/trustgate/internal/testutil"
	"github.com/roach88/trustgate/internal/workspace"
)

func stage(s string) *string { return &s }

func TestEvaluatePreconditions_ProfilingWithoutSpecification(t *testing.T) {
	got := EvaluatePreconditions("profiling", stage("init"), Context{HasSpecification: false, HasData: true})

	assert.Equal(t, Block, got.Decision)
	require.NotNil(t, got.MissingPrerequisite)
	assert.Equal(t, "specification file", *got.MissingPrerequisite)
	require.NotNil(t, got.ViolatedInvariant)
	assert.Equal(t, InvariantStagePreconditions, *got.ViolatedInvariant)
	assert.Equal(t, []string{"consult specification", "consult profiling"}, got.RecoverySteps)
}

func TestEvaluatePreconditions_ProfilingReady(t *testing.T) {
	got := EvaluatePreconditions("profiling", stage("specification"), Context{HasSpecification: true, HasData: true})

	assert.Equal(t, Allow, got.Decision)
	assert.Nil(t, got.ViolatedInvariant)
	assert.Nil(t, got.MissingPrerequisite)
}

func TestEvaluatePreconditions_ProfilingReportsFirstFailureOnly(t *testing.T) {
	got := EvaluatePreconditions("profiling", nil, Context{})
	require.NotNil(t, got.MissingPrerequisite)
	assert.Equal(t, "specification file", *got.MissingPrerequisite)

	got = EvaluatePreconditions("profiling", nil, Context{HasSpecification: true})
	require.NotNil(t, got.MissingPrerequisite)
	assert.Equal(t, "data files present", *got.MissingPrerequisite)
	assert.Equal(t, []string{"mkdir -p data && ls -A data/", "consult status", "consult profiling"}, got.RecoverySteps)
}

func TestEvaluatePreconditions_ProfilingCopiesConfiguredDataSource(t *testing.T) {
	layout := workspace.DefaultLayout()
	layout.DataDir = "raw/"
	layout.DataSource = "/srv/exports/q3.csv"

	got := EvaluatePreconditions("profiling", nil, Context{HasSpecification: true, Layout: layout, Program: "acme"})

	assert.Equal(t, []string{"cp -R /srv/exports/q3.csv raw/", "acme status", "acme profiling"}, got.RecoverySteps)
}

func TestEvaluatePreconditions_Specification(t *testing.T) {
	tests := []struct {
		name      string
		stage     *string
		completed []string
		want      Decision
	}{
		{"no stage", nil, nil, Block},
		{"at init", stage("init"), nil, Allow},
		{"past init", stage("analysis"), nil, Allow},
		{"init completed", nil, []string{"init"}, Allow},
		{"unknown stage", stage("bootstrapping"), nil, Block},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EvaluatePreconditions("specification", tt.stage, Context{CompletedStages: tt.completed})
			assert.Equal(t, tt.want, got.Decision)
			if tt.want == Block {
				assert.Equal(t, []string{"consult init", "consult specification"}, got.RecoverySteps)
			}
		})
	}
}

func TestEvaluatePreconditions_ArtifactRules(t *testing.T) {
	tests := []struct {
		command string
		ctx     Context
		want    Decision
		steps   []string
	}{
		{"analysis", Context{}, Block, []string{"consult profiling", "consult analysis"}},
		{"analysis", Context{ProfileExists: true}, Allow, nil},
		{"build", Context{}, Block, []string{"consult analysis", "consult build"}},
		{"build", Context{InsightsExists: true}, Allow, nil},
		{"preview", Context{}, Block, []string{"consult build", "consult preview"}},
		{"preview", Context{BuildDirExists: true}, Allow, nil},
	}
	for _, tt := range tests {
		t.Run(tt.command+"/"+string(tt.want), func(t *testing.T) {
			got := EvaluatePreconditions(tt.command, nil, tt.ctx)
			assert.Equal(t, tt.want, got.Decision)
			assert.Equal(t, tt.steps, got.RecoverySteps)
		})
	}
}

func TestEvaluatePreconditions_UnknownCommandAllowed(t *testing.T) {
	got := EvaluatePreconditions("status", nil, Context{})
	assert.Equal(t, Allow, got.Decision)
}

func TestEvaluatePreconditions_UsesProgramAndLayout(t *testing.T) {
	layout := workspace.DefaultLayout()
	layout.ProfileFile = "out/profile.json"

	got := EvaluatePreconditions("analysis", nil, Context{Program: "dsa", Layout: layout})

	assert.Equal(t, []string{"dsa profiling", "dsa analysis"}, got.RecoverySteps)
	assert.Contains(t, got.Message, "out/profile.json")
	require.NotNil(t, got.MissingPrerequisite)
	assert.Equal(t, "profile output (out/profile.json)", *got.MissingPrerequisite)
}

func TestRegistry_CustomRule(t *testing.T) {
	r := NewRegistry()
	r.Register("deploy", RuleFunc(func(*string, Context) Result {
		return Blocked("no deploys on Fridays", "weekday")
	}))

	assert.True(t, r.Has("deploy"))
	assert.False(t, r.Has("profiling"))
	assert.Equal(t, Block, r.EvaluatePreconditions("deploy", nil, Context{}).Decision)
	assert.Equal(t, Allow, r.EvaluatePreconditions("profiling", nil, Context{}).Decision)
}

func TestRegistry_ExtendsDefaultRules(t *testing.T) {
	r := DefaultRegistry()
	r.Register("publish", RuleFunc(func(_ *string, ctx Context) Result {
		if !ctx.BuildDirExists {
			return Blocked("nothing to publish", "build directory", ctx.command("build"))
		}
		return Allowed("build present")
	}))

	got := r.EvaluatePreconditions("publish", nil, Context{})
	assert.Equal(t, Block, got.Decision)
	assert.Equal(t, []string{"consult build"}, got.RecoverySteps)
	assert.Equal(t, Allow, r.EvaluatePreconditions("publish", nil, Context{BuildDirExists: true}).Decision)
	assert.Equal(t, Block, r.EvaluatePreconditions("analysis", nil, Context{}).Decision, "stage rules kept")
}

func TestContextFrom(t *testing.T) {
	ws := testutil.NewWorkspace(t).
		RequiredDirs().
		File("state/spec.yaml", "goal: churn\n").
		File("data/users.csv", "id\n1\n").
		File("outputs/profile.json", "{}").
		Stage("profiling", "init", "specification").
		Load()

	ctx := ContextFrom(ws)

	assert.True(t, ctx.HasSpecification)
	assert.True(t, ctx.HasData)
	assert.True(t, ctx.ProfileExists)
	assert.False(t, ctx.InsightsExists)
	assert.True(t, ctx.BuildDirExists)
	assert.Equal(t, []string{"init", "specification"}, ctx.CompletedStages)
	assert.Equal(t, "consult", ctx.Program)
}

func TestEnforce(t *testing.T) {
	blocked := Blocked("missing spec", "specification file", "consult specification")

	guided := Enforce(blocked, workspace.ModeGuided)
	assert.Equal(t, Block, guided.Decision)
	assert.Equal(t, "missing spec", guided.Message)

	open := Enforce(blocked, workspace.ModeOpen)
	assert.Equal(t, Warn, open.Decision)
	assert.Contains(t, open.Message, "missing spec")
	assert.Equal(t, blocked.RecoverySteps, open.RecoverySteps)
	assert.Equal(t, blocked.ViolatedInvariant, open.ViolatedInvariant)

	allowed := Allowed("fine")
	assert.Equal(t, allowed, Enforce(allowed, workspace.ModeOpen))
}

func TestEmbed(t *testing.T) {
	r := Blocked("no profile", "profile output", "consult profiling", "consult analysis")
	d := r.Embed()

	assert.Equal(t, result.DecisionBlock, d.Decision)
	assert.Equal(t, "no profile", d.Message)
	require.NotNil(t, d.ViolatedInvariant)
	assert.Equal(t, InvariantStagePreconditions, *d.ViolatedInvariant)
	assert.Equal(t, []string{"consult profiling", "consult analysis"}, d.RecoveryCommands)

	assert.Nil(t, Allowed("ok").Embed().ViolatedInvariant)
}

func TestEvaluateEvidenceCompleteness(t *testing.T) {
	t.Run("failure always allowed", func(t *testing.T) {
		for _, cmd := range []string{"specification", "profiling", "analysis", "build", "preview", "status"} {
			for _, artifacts := range [][]string{nil, {"outputs/profile.json"}} {
				got := EvaluateEvidenceCompleteness(cmd, &result.Result{Success: false}, artifacts)
				assert.Equal(t, Allow, got.Decision, cmd)
			}
		}
	})

	t.Run("success without artifacts blocked", func(t *testing.T) {
		for _, cmd := range ArtifactRequired {
			got := EvaluateEvidenceCompleteness(cmd, &result.Result{Success: true}, nil)
			assert.Equal(t, Block, got.Decision, cmd)
			require.NotNil(t, got.ViolatedInvariant)
			assert.Equal(t, InvariantArtifactExistence, *got.ViolatedInvariant)
			assert.Contains(t, got.Message, "bug")
		}
	})

	t.Run("success with artifacts allowed", func(t *testing.T) {
		got := EvaluateEvidenceCompleteness("profiling", &result.Result{Success: true}, []string{"outputs/profile.json"})
		assert.Equal(t, Allow, got.Decision)
	})

	t.Run("commands outside the required set", func(t *testing.T) {
		got := EvaluateEvidenceCompleteness("preview", &result.Result{Success: true}, nil)
		assert.Equal(t, Allow, got.Decision)
	})

	t.Run("nil result", func(t *testing.T) {
		assert.Equal(t, Allow, EvaluateEvidenceCompleteness("build", nil, nil).Decision)
	})
}
