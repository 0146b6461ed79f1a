package truth

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/roach88/trustgate/internal/result"
	"github.com/roach88/trustgate/internal/workspace"
)

// ViolationPrefix starts every error Enforce adds to a result.
const ViolationPrefix = "Truth Gate violation"

var (
	chartExtensions = []string{".png", ".svg", ".html", ".jpg", ".jpeg"}
	tableExtensions = []string{".csv", ".xlsx", ".md", ".html"}
)

// Validation is the outcome of checking one result.
type Validation struct {
	Passed             bool     `json:"passed"`
	MissingArtifacts   []string `json:"missing_artifacts"`
	ValidatedArtifacts []string `json:"validated_artifacts"`
	Warnings           []string `json:"warnings"`
}

func newValidation() *Validation {
	return &Validation{
		MissingArtifacts:   []string{},
		ValidatedArtifacts: []string{},
		Warnings:           []string{},
	}
}

// Report converts v into the record carried on the result.
func (v Validation) Report() *result.TruthReport {
	return &result.TruthReport{
		Passed:             v.Passed,
		MissingArtifacts:   slices.Clone(v.MissingArtifacts),
		ValidatedArtifacts: slices.Clone(v.ValidatedArtifacts),
		Warnings:           slices.Clone(v.Warnings),
	}
}

// Validator checks the claims one command family makes.
type Validator interface {
	Validate(res *result.Result, c *Checker)
}

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc func(res *result.Result, c *Checker)

// Validate implements Validator.
func (f ValidatorFunc) Validate(res *result.Result, c *Checker) {
	f(res, c)
}

// Checker records the outcome of individual claim checks.
type Checker struct {
	root   string
	layout workspace.Layout
	v      *Validation
}

// File checks a single-file claim. Empty paths are not claims.
func (c *Checker) File(key, path string) {
	if path == "" {
		return
	}
	info, err := os.Stat(result.ResolvePath(c.root, path))
	if err != nil {
		c.v.MissingArtifacts = append(c.v.MissingArtifacts, path)
		return
	}
	c.v.ValidatedArtifacts = append(c.v.ValidatedArtifacts, path)
	if info.Mode().IsRegular() && info.Size() == 0 {
		c.v.Warnings = append(c.v.Warnings, fmt.Sprintf("%s: %s is empty", key, path))
	}
}

// Count checks that dir holds at least claimed files with one of exts.
// A claim of zero is not checked.
func (c *Checker) Count(key string, claimed int, dir string, exts []string) {
	if claimed <= 0 {
		return
	}
	found := countFiles(result.ResolvePath(c.root, dir), exts)
	if found < claimed {
		c.v.MissingArtifacts = append(c.v.MissingArtifacts,
			fmt.Sprintf("%s: claimed %d file(s) in %s, found %d", key, claimed, dir, found))
		return
	}
	c.v.ValidatedArtifacts = append(c.v.ValidatedArtifacts, dir)
}

// Listing checks that every listed path exists.
func (c *Checker) Listing(key string, paths []string) {
	for _, p := range paths {
		c.File(key, p)
	}
}

func countFiles(dir string, exts []string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	n := 0
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if slices.Contains(exts, strings.ToLower(filepath.Ext(e.Name()))) {
			n++
		}
	}
	return n
}

// Gate validates results against the filesystem.
//
// Each command has a Validator that knows which claims its result may make.
// Commands without one use the generic single-file claims (saved_path,
// output_path). Relative claims resolve against the workspace root.
//
// The gate only checks existence. A zero-byte file passes with a warning.
//
// Thread-safety: register validators before sharing the gate. Validate
// itself keeps no state between calls and may run concurrently.
type Gate struct {
	root       string
	layout     workspace.Layout
	validators map[string]Validator
	fallback   Validator
}

// New returns a gate for ws with the default validators.
func New(ws *workspace.Workspace) *Gate {
	return NewGate(ws.Root, ws.Layout)
}

// NewGate returns a gate resolving relative claims against root. A zero
// layout means the default layout.
func NewGate(root string, layout workspace.Layout) *Gate {
	if layout.ChartsDir == "" && layout.TablesDir == "" {
		layout = workspace.DefaultLayout()
	}
	g := &Gate{
		root:       root,
		layout:     layout,
		validators: make(map[string]Validator),
		fallback:   ValidatorFunc(genericClaims),
	}
	g.Register(string(workspace.StageSpecification), ValidatorFunc(specificationClaims))
	g.Register(string(workspace.StageProfiling), ValidatorFunc(profilingClaims))
	g.Register(string(workspace.StageAnalysis), ValidatorFunc(analysisClaims))
	g.Register(string(workspace.StageBuild), ValidatorFunc(buildClaims))
	g.Register(string(workspace.StagePreview), ValidatorFunc(previewClaims))
	return g
}

// Register sets the validator for command.
func (g *Gate) Register(command string, v Validator) {
	g.validators[command] = v
}

// Validate checks the claims in res. Failed results pass immediately.
func (g *Gate) Validate(command string, res *result.Result) Validation {
	v := newValidation()
	if res == nil || !res.Success {
		v.Passed = true
		return *v
	}
	validator, ok := g.validators[command]
	if !ok {
		validator = g.fallback
	}
	validator.Validate(res, &Checker{root: g.root, layout: g.layout, v: v})
	v.Passed = len(v.MissingArtifacts) == 0
	return *v
}

// Enforce records v on res. When v did not pass, res is downgraded to a
// failure with one itemized error per missing artifact. Reports whether res
// was overridden.
func Enforce(res *result.Result, v Validation) bool {
	if res == nil {
		return false
	}
	res.TruthGate = v.Report()
	if v.Passed {
		return false
	}
	overridden := res.Success
	res.Success = false
	for _, m := range v.MissingArtifacts {
		res.AddError(fmt.Sprintf("%s: claimed artifact missing: %s", ViolationPrefix, m))
	}
	return overridden
}

func genericClaims(res *result.Result, c *Checker) {
	c.File("saved_path", res.SavedPath)
	c.File("output_path", res.OutputPath)
}

func specificationClaims(res *result.Result, c *Checker) {
	genericClaims(res, c)
	c.File("spec_path", res.SpecPath)
}

func profilingClaims(res *result.Result, c *Checker) {
	genericClaims(res, c)
	c.File("profile_path", res.ProfilePath)
}

func analysisClaims(res *result.Result, c *Checker) {
	genericClaims(res, c)
	c.File("insights_path", res.InsightsPath)
}

func buildClaims(res *result.Result, c *Checker) {
	genericClaims(res, c)
	c.File("report_path", res.ReportPath)
	c.File("dashboard_path", res.DashboardPath)

	chartsDir := res.ChartsDir
	if chartsDir == "" {
		chartsDir = c.layout.ChartsDir
	}
	tablesDir := res.TablesDir
	if tablesDir == "" {
		tablesDir = c.layout.TablesDir
	}
	c.Count("charts_created", res.ChartsCreated, chartsDir, chartExtensions)
	c.Count("tables_created", res.TablesCreated, tablesDir, tableExtensions)
}

func previewClaims(res *result.Result, c *Checker) {
	genericClaims(res, c)
	c.Listing("existing_outputs", res.ExistingOutputs)
}
