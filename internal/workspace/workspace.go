package workspace

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Fixed locations relative to the workspace root.
const (
	AuditDir        = "audit"
	LedgerDir       = "audit/ledger"
	LedgerIndex     = "audit/ledger/index.db"
	TrustBundleMD   = "audit/trust_bundle.md"
	TrustBundleJSON = "audit/trust_bundle.json"
	RecoveryPlan    = "audit/recovery_plan.md"
	StageFile       = "state/workflow_stage.json"
	ModeFile        = "state/execution_mode.json"
	PreferencesFile = "state/output_preferences.json"
	ConfigFile      = "governance.yaml"
)

// Layout holds canonical artifact paths relative to the workspace root.
type Layout struct {
	DataDir      string
	// DataSource is where input data is copied from. Empty when unknown.
	DataSource   string
	SpecFile     string
	ProfileFile  string
	InsightsFile string
	BuildDir     string
	ChartsDir    string
	TablesDir    string
	RequiredDirs []string
	Placeholders []string
}

// DefaultLayout returns the layout used when governance.yaml does not
// override it.
func DefaultLayout() Layout {
	return Layout{
		DataDir:      "data",
		SpecFile:     "state/spec.yaml",
		ProfileFile:  "outputs/profile.json",
		InsightsFile: "outputs/insights.json",
		BuildDir:     "exports",
		ChartsDir:    "exports/charts",
		TablesDir:    "exports/tables",
		RequiredDirs: []string{"data", "outputs", "exports", "state"},
		Placeholders: []string{".gitkeep", ".keep", "README.md", ".DS_Store"},
	}
}

// StageState mirrors state/workflow_stage.json.
type StageState struct {
	CurrentStage    *string  `json:"current_stage"`
	CompletedStages []string `json:"completed_stages"`
}

// Workspace is the per-invocation view of the workspace.
//
// Load reads the state files once; the fields are a snapshot and are not
// refreshed when a domain command later rewrites state/workflow_stage.json.
// Call ReadStage for the current stage after a run.
//
// Missing or malformed state files never fail Load. They fall back to the
// defaults (no stage, guided mode, empty preferences) and the problem is
// kept in Notes so the ledger can record it.
//
// Thread-safety: Workspace is not synchronized. It is safe to share between
// goroutines that only read it; nothing in this module mutates it after Load.
type Workspace struct {
	Root    string
	Program string
	Layout  Layout

	// Stage is the current workflow stage, nil when unknown.
	Stage           *string
	CompletedStages []string

	Mode              Mode
	OutputPreferences map[string]any

	// Notes records non-fatal problems found while loading state files.
	Notes []string
}

// Options configures Load.
type Options struct {
	// ConfigPath overrides the location of governance.yaml.
	ConfigPath string
}

// Load builds the workspace view rooted at root.
// It only fails when the governance config exists but is malformed.
func Load(root string, opts Options) (*Workspace, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root: %w", err)
	}

	configPath := opts.ConfigPath
	if configPath == "" {
		configPath = filepath.Join(abs, ConfigFile)
	}
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	ws := &Workspace{
		Root:              abs,
		Program:           DefaultProgram,
		Layout:            DefaultLayout(),
		Mode:              ModeGuided,
		OutputPreferences: map[string]any{},
	}
	if cfg.Program != "" {
		ws.Program = cfg.Program
	}
	cfg.apply(&ws.Layout)

	if state, err := ws.ReadStage(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			ws.Notes = append(ws.Notes, fmt.Sprintf("workflow stage unreadable: %v", err))
		}
	} else {
		ws.Stage = state.CurrentStage
		ws.CompletedStages = state.CompletedStages
	}

	var modeDoc struct {
		Mode string `json:"mode"`
	}
	if err := readJSON(ws.Path(ModeFile), &modeDoc); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			ws.Notes = append(ws.Notes, fmt.Sprintf("execution mode unreadable: %v", err))
		}
	} else if mode, ok := ParseMode(modeDoc.Mode); ok {
		ws.Mode = mode
	} else {
		ws.Notes = append(ws.Notes, fmt.Sprintf("unknown execution mode %q, using guided", modeDoc.Mode))
	}

	var prefs map[string]any
	if err := readJSON(ws.Path(PreferencesFile), &prefs); err == nil && prefs != nil {
		ws.OutputPreferences = prefs
	}

	return ws, nil
}

// ReadStage re-reads the workflow stage file.
func (w *Workspace) ReadStage() (StageState, error) {
	var state StageState
	if err := readJSON(w.Path(StageFile), &state); err != nil {
		return StageState{}, err
	}
	return state, nil
}

// Path joins rel onto the workspace root. Absolute paths are returned as is.
func (w *Workspace) Path(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(w.Root, filepath.FromSlash(rel))
}

// Rel renders path relative to the root when it lies inside the workspace,
// and unchanged otherwise. Separators are always forward slashes.
func (w *Workspace) Rel(path string) string {
	if !filepath.IsAbs(path) {
		return filepath.ToSlash(path)
	}
	rel, err := filepath.Rel(w.Root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// Exists reports whether rel exists in the workspace.
func (w *Workspace) Exists(rel string) bool {
	_, err := os.Stat(w.Path(rel))
	return err == nil
}

// IsDir reports whether rel is an existing directory.
func (w *Workspace) IsDir(rel string) bool {
	info, err := os.Stat(w.Path(rel))
	return err == nil && info.IsDir()
}

// MissingDirs returns the required directories that do not exist, in
// layout order.
func (w *Workspace) MissingDirs() []string {
	missing := []string{}
	for _, dir := range w.Layout.RequiredDirs {
		if !w.IsDir(dir) {
			missing = append(missing, dir)
		}
	}
	return missing
}

// DataFiles lists regular, non-placeholder files under the data directory
// in lexical order. A missing data directory yields no files.
func (w *Workspace) DataFiles() ([]string, error) {
	dir := w.Path(w.Layout.DataDir)
	files := []string{}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == dir {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() || slices.Contains(w.Layout.Placeholders, d.Name()) {
			return nil
		}
		if d.Type().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list data files: %w", err)
	}
	return files, nil
}

// DataFileCount counts the files DataFiles would return.
func (w *Workspace) DataFileCount() (int, error) {
	files, err := w.DataFiles()
	if err != nil {
		return 0, err
	}
	return len(files), nil
}

// HasSpecification reports whether the specification file exists.
func (w *Workspace) HasSpecification() bool {
	return w.Exists(w.Layout.SpecFile)
}

// Command renders a literal command line for the domain program.
func (w *Workspace) Command(args ...string) string {
	program := w.Program
	if program == "" {
		program = DefaultProgram
	}
	return strings.Join(append([]string{program}, args...), " ")
}

// StageName returns the current stage or "" when unknown.
func (w *Workspace) StageName() string {
	if w.Stage == nil {
		return ""
	}
	return *w.Stage
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return nil
}
