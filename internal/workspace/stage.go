package workspace

// Stage is a named checkpoint in the fixed workflow pipeline.
type Stage string

const (
	StageInit          Stage = "init"
	StageSpecification Stage = "specification"
	StageProfiling     Stage = "profiling"
	StageAnalysis      Stage = "analysis"
	StageBuild         Stage = "build"
	StagePreview       Stage = "preview"
)

// Pipeline is the ordered list of workflow stages.
var Pipeline = []Stage{
	StageInit,
	StageSpecification,
	StageProfiling,
	StageAnalysis,
	StageBuild,
	StagePreview,
}

// Index returns the position of s in Pipeline, or -1 if s is not a stage.
func (s Stage) Index() int {
	for i, p := range Pipeline {
		if p == s {
			return i
		}
	}
	return -1
}

// Next returns the stage after s, or "" if s is last or unknown.
func (s Stage) Next() Stage {
	i := s.Index()
	if i < 0 || i+1 >= len(Pipeline) {
		return ""
	}
	return Pipeline[i+1]
}

// Reached reports whether the workflow has reached stage target, either
// because current is at or past it or because it is listed as completed.
func Reached(current *string, completed []string, target Stage) bool {
	for _, c := range completed {
		if Stage(c) == target {
			return true
		}
	}
	if current == nil {
		return false
	}
	idx := Stage(*current).Index()
	return idx >= 0 && idx >= target.Index()
}

// Mode controls how strictly precondition blocks are enforced.
type Mode string

const (
	// ModeGuided enforces precondition blocks.
	ModeGuided Mode = "guided"
	// ModeOpen downgrades precondition blocks to warnings.
	ModeOpen Mode = "open"
)

// ParseMode returns the mode named by s and whether it was recognised.
func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case ModeGuided:
		return ModeGuided, true
	case ModeOpen:
		return ModeOpen, true
	default:
		return ModeGuided, false
	}
}
