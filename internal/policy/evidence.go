package policy

import (
	"fmt"
	"slices"

	"github.com/roach88/trustgate/internal/result"
	"github.com/roach88/trustgate/internal/workspace"
)

// ArtifactRequired lists the commands that must produce at least one
// artifact when they report success.
var ArtifactRequired = []string{
	string(workspace.StageSpecification),
	string(workspace.StageProfiling),
	string(workspace.StageAnalysis),
	string(workspace.StageBuild),
}

// EvaluateEvidenceCompleteness checks a finished command against the
// artifacts recorded for it. A failed command is never penalized further.
func EvaluateEvidenceCompleteness(command string, res *result.Result, artifacts []string) Result {
	if res == nil || !res.Success {
		return Allowed("command did not report success")
	}
	if !slices.Contains(ArtifactRequired, command) || len(artifacts) > 0 {
		return Allowed(fmt.Sprintf("%d artifact(s) recorded", len(artifacts)))
	}
	inv := InvariantArtifactExistence
	return Result{
		Decision: Block,
		Message: fmt.Sprintf(
			"%s reported success but recorded no artifacts. This false-success claim is a bug signal in the command, not a user error.",
			command),
		ViolatedInvariant: &inv,
	}
}
