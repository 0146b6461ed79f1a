package result

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
)

// Policy decision values.
const (
	DecisionAllow = "ALLOW"
	DecisionWarn  = "WARN"
	DecisionBlock = "BLOCK"
)

// Result is the closed record returned by a domain command.
type Result struct {
	Success        bool            `json:"success"`
	Warnings       StringList      `json:"warnings,omitempty"`
	Errors         StringList      `json:"errors,omitempty"`
	Blocked        bool            `json:"blocked,omitempty"`
	BlockReason    string          `json:"block_reason,omitempty"`
	Policy         *PolicyDecision `json:"policy,omitempty"`
	NextSteps      []string        `json:"next_steps,omitempty"`
	SkillsExecuted []string        `json:"skills_executed,omitempty"`

	// Single-file claims.
	SavedPath     string `json:"saved_path,omitempty"`
	ProfilePath   string `json:"profile_path,omitempty"`
	SpecPath      string `json:"spec_path,omitempty"`
	InsightsPath  string `json:"insights_path,omitempty"`
	ReportPath    string `json:"report_path,omitempty"`
	DashboardPath string `json:"dashboard_path,omitempty"`
	OutputPath    string `json:"output_path,omitempty"`

	// Outputs maps names to paths or to nested maps of the same shape.
	Outputs map[string]any `json:"outputs,omitempty"`

	// Count claims.
	ChartsCreated int    `json:"charts_created,omitempty"`
	TablesCreated int    `json:"tables_created,omitempty"`
	ChartsDir     string `json:"charts_dir,omitempty"`
	TablesDir     string `json:"tables_dir,omitempty"`

	// ExistingOutputs lists outputs a preview claims are already present.
	ExistingOutputs []string `json:"existing_outputs,omitempty"`

	// TruthGate is filled in by the governance pipeline.
	TruthGate *TruthReport `json:"truth_gate,omitempty"`

	// Extra holds keys not covered by the schema.
	Extra map[string]any `json:"-"`
}

// PolicyDecision is a policy outcome embedded in a result.
type PolicyDecision struct {
	Decision          string   `json:"decision"`
	Message           string   `json:"message,omitempty"`
	ViolatedInvariant *string  `json:"violated_invariant,omitempty"`
	RecoveryCommands  []string `json:"recovery_commands,omitempty"`
}

// TruthReport records the truth gate outcome on the result.
type TruthReport struct {
	Passed             bool     `json:"passed"`
	MissingArtifacts   []string `json:"missing_artifacts,omitempty"`
	ValidatedArtifacts []string `json:"validated_artifacts,omitempty"`
	Warnings           []string `json:"warnings,omitempty"`
}

// Claim is a single path a result says it produced, with the key it came from.
type Claim struct {
	Key  string
	Path string
}

// FileClaims returns the non-empty single-file claims in fixed key order.
func (r *Result) FileClaims() []Claim {
	if r == nil {
		return nil
	}
	all := []Claim{
		{"saved_path", r.SavedPath},
		{"profile_path", r.ProfilePath},
		{"spec_path", r.SpecPath},
		{"insights_path", r.InsightsPath},
		{"report_path", r.ReportPath},
		{"dashboard_path", r.DashboardPath},
		{"output_path", r.OutputPath},
	}
	claims := make([]Claim, 0, len(all))
	for _, c := range all {
		if c.Path != "" {
			claims = append(claims, c)
		}
	}
	return claims
}

// OutputClaims returns every path-valued claim: single-file claims, the
// nested outputs map flattened in key order, then existing outputs.
func (r *Result) OutputClaims() []Claim {
	if r == nil {
		return nil
	}
	claims := r.FileClaims()
	claims = append(claims, flattenOutputs("outputs", r.Outputs)...)
	for i, p := range r.ExistingOutputs {
		if p != "" {
			claims = append(claims, Claim{Key: fmt.Sprintf("existing_outputs[%d]", i), Path: p})
		}
	}
	return claims
}

func flattenOutputs(prefix string, m map[string]any) []Claim {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var claims []Claim
	for _, k := range keys {
		key := prefix + "." + k
		switch v := m[k].(type) {
		case string:
			if v != "" {
				claims = append(claims, Claim{Key: key, Path: v})
			}
		case map[string]any:
			claims = append(claims, flattenOutputs(key, v)...)
		}
	}
	return claims
}

// PolicyDecisionIs reports whether the embedded policy decision equals d.
func (r *Result) PolicyDecisionIs(d string) bool {
	return r != nil && r.Policy != nil && r.Policy.Decision == d
}

// AddError appends msg to the error list.
func (r *Result) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
}

// Blockedf builds the result recorded for a command that never ran because
// a precondition blocked it.
func Blockedf(decision *PolicyDecision, format string, args ...any) *Result {
	return &Result{
		Success:     false,
		Blocked:     true,
		BlockReason: fmt.Sprintf(format, args...),
		Policy:      decision,
	}
}

// Failed builds the result recorded when the domain command could not be run
// or did not produce a readable result.
func Failed(err error) *Result {
	return &Result{Success: false, Errors: StringList{err.Error()}}
}

// ResolvePath resolves a claimed path against root when it is relative.
func ResolvePath(root, path string) string {
	if filepath.IsAbs(path) || root == "" {
		return path
	}
	return filepath.Join(root, filepath.FromSlash(path))
}

// knownKeys mirrors the JSON tags of Result.
var knownKeys = map[string]bool{
	"success": true, "warnings": true, "errors": true, "blocked": true,
	"block_reason": true, "policy": true, "next_steps": true,
	"skills_executed": true, "saved_path": true, "profile_path": true,
	"spec_path": true, "insights_path": true, "report_path": true,
	"dashboard_path": true, "output_path": true, "outputs": true,
	"charts_created": true, "tables_created": true, "charts_dir": true,
	"tables_dir": true, "existing_outputs": true, "truth_gate": true,
}

type plainResult Result

// UnmarshalJSON decodes known keys into fields and keeps the rest in Extra.
func (r *Result) UnmarshalJSON(data []byte) error {
	var plain plainResult
	if err := json.Unmarshal(data, &plain); err != nil {
		return err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for k, v := range raw {
		if knownKeys[k] {
			continue
		}
		if plain.Extra == nil {
			plain.Extra = map[string]any{}
		}
		plain.Extra[k] = v
	}
	*r = Result(plain)
	return nil
}

// MarshalJSON writes known fields and Extra as one object.
func (r Result) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(plainResult(r))
	if err != nil {
		return nil, err
	}
	if len(r.Extra) == 0 {
		return data, nil
	}
	var merged map[string]any
	if err := json.Unmarshal(data, &merged); err != nil {
		return nil, err
	}
	for k, v := range r.Extra {
		if _, ok := merged[k]; !ok && !knownKeys[k] {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

// StringList accepts either a single string or a list of strings.
type StringList []string

// UnmarshalJSON implements json.Unmarshaler.
func (l *StringList) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*l = nil
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single == "" {
			*l = nil
		} else {
			*l = StringList{single}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("expected string or list of strings: %w", err)
	}
	*l = many
	return nil
}
