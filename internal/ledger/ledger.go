package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/roach88/trustgate/internal/digest"
	"github.com/roach88/trustgate/internal/workspace"
)

// Well-known proof reference keys written by the observability hooks.
const (
	ProofMissingDirs      = "missing_directories"
	ProofDataPresent      = "data_present"
	ProofDataFileCount    = "data_file_count"
	ProofHasSpecification = "has_specification"
	ProofPolicy           = "policy"
	ProofEvidencePolicy   = "evidence_policy"
	ProofTruthGate        = "truth_gate"
)

// Entry is one input or output file with its content hash.
// Hash is nil when the file was missing or unreadable when hashed.
type Entry struct {
	Path string  `json:"path"`
	Hash *string `json:"hash"`
}

// Ledger is the audit record of one command execution.
type Ledger struct {
	SchemaVersion   string         `json:"schema_version"`
	RunID           string         `json:"run_id"`
	Timestamp       string         `json:"timestamp"`
	Command         string         `json:"command"`
	Args            map[string]any `json:"args"`
	ExecutionMode   string         `json:"execution_mode"`
	StageBefore     *string        `json:"stage_before"`
	StageAfter      *string        `json:"stage_after"`
	Environment     Environment    `json:"environment"`
	Inputs          []Entry        `json:"inputs"`
	Outputs         []Entry        `json:"outputs"`
	Warnings        []string       `json:"warnings"`
	Errors          []string       `json:"errors"`
	Success         bool           `json:"success"`
	ProofReferences map[string]any `json:"proof_references"`

	logger *slog.Logger
}

type options struct {
	clock  func() time.Time
	ids    RunIDGenerator
	env    func() Environment
	logger *slog.Logger
}

// Option customizes Create.
type Option func(*options)

// WithClock overrides the clock used for the run timestamp.
func WithClock(clock func() time.Time) Option {
	return func(o *options) { o.clock = clock }
}

// WithRunIDGenerator overrides the run id generator (default UUIDv7).
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(o *options) { o.ids = g }
}

// WithEnvironment overrides the environment snapshot function.
func WithEnvironment(fn func() Environment) Option {
	return func(o *options) { o.env = fn }
}

// WithLogger sets the logger used to report save failures.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Create starts a ledger for one run of command.
//
// Args are copied. Values JSON cannot represent, such as NaN or a func, are
// recorded as their printed text so the ledger can always be saved.
//
// stage_before and execution_mode come from the workspace, which already
// defaults them to nil and guided when the state files are missing. Notes
// collected while loading the workspace become ledger warnings.
func Create(command string, args map[string]any, ws *workspace.Workspace, opts ...Option) *Ledger {
	o := options{
		clock:  time.Now,
		ids:    UUIDv7Generator{},
		env:    SnapshotEnvironment,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&o)
	}

	copied := make(map[string]any, len(args))
	for k, v := range args {
		copied[k] = encodable(v)
	}

	l := &Ledger{
		SchemaVersion:   SchemaVersion,
		RunID:           o.ids.Generate(),
		Timestamp:       o.clock().UTC().Format(time.RFC3339),
		Command:         command,
		Args:            copied,
		ExecutionMode:   string(workspace.ModeGuided),
		Environment:     o.env(),
		Inputs:          []Entry{},
		Outputs:         []Entry{},
		Warnings:        []string{},
		Errors:          []string{},
		ProofReferences: map[string]any{},
		logger:          o.logger,
	}
	if ws != nil {
		l.ExecutionMode = string(ws.Mode)
		if ws.Stage != nil {
			stage := *ws.Stage
			l.StageBefore = &stage
		}
		for _, note := range ws.Notes {
			l.AddWarning("workspace: " + note)
		}
	}
	return l
}

// AddWarning appends a warning.
func (l *Ledger) AddWarning(msg string) {
	l.Warnings = append(l.Warnings, msg)
}

// AddError appends an error.
func (l *Ledger) AddError(msg string) {
	l.Errors = append(l.Errors, msg)
}

// SetProof records an ad hoc observation.
func (l *Ledger) SetProof(key string, value any) {
	if l.ProofReferences == nil {
		l.ProofReferences = map[string]any{}
	}
	l.ProofReferences[key] = value
}

// AddOutput hashes path and appends it to the outputs unless already present.
// Returns false when the path was a duplicate.
func (l *Ledger) AddOutput(path string) bool {
	return addEntry(&l.Outputs, path)
}

// AddInput hashes path and appends it to the inputs unless already present.
func (l *Ledger) AddInput(path string) bool {
	return addEntry(&l.Inputs, path)
}

func addEntry(entries *[]Entry, path string) bool {
	for _, e := range *entries {
		if e.Path == path {
			return false
		}
	}
	*entries = append(*entries, Entry{Path: path, Hash: digest.File(path)})
	return true
}

// OutputPaths returns the output paths in order.
func (l *Ledger) OutputPaths() []string {
	paths := make([]string, len(l.Outputs))
	for i, e := range l.Outputs {
		paths[i] = e.Path
	}
	return paths
}

// FileName is the name the ledger is saved under.
func (l *Ledger) FileName() string {
	return l.RunID + ".json"
}

// Digest returns the canonical content digest of the ledger.
func (l *Ledger) Digest() (string, error) {
	return digest.Document(digest.DomainLedger, l)
}

// SaveError reports why a ledger could not be saved.
type SaveError struct {
	Path string
	Err  error
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("ledger not saved to %s: %v", e.Path, e.Err)
}

func (e *SaveError) Unwrap() error {
	return e.Err
}

// ErrAlreadySaved is returned (wrapped in SaveError) when a ledger file for
// the run already exists.
var ErrAlreadySaved = errors.New("ledger already saved for this run")

// Save writes the ledger to <dir>/<run_id>.json, creating dir if needed.
//
// Save never overwrites an existing ledger. Any failure is logged as a
// warning and returned as a *SaveError with an empty path.
func (l *Ledger) Save(dir string) (string, error) {
	path := filepath.Join(dir, l.FileName())
	fail := func(err error) (string, error) {
		saveErr := &SaveError{Path: path, Err: err}
		l.log().Warn("ledger not saved", "run_id", l.RunID, "path", path, "error", err)
		return "", saveErr
	}

	if l.RunID == "" {
		return fail(errors.New("empty run id"))
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fail(err)
	}
	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return fail(err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fail(ErrAlreadySaved)
		}
		return fail(err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		f.Close()
		return fail(err)
	}
	if err := f.Close(); err != nil {
		return fail(err)
	}
	return path, nil
}

// Load reads a saved ledger.
func Load(path string) (*Ledger, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	var l Ledger
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("parse ledger %s: %w", filepath.Base(path), err)
	}
	return &l, nil
}

func (l *Ledger) log() *slog.Logger {
	if l.logger == nil {
		return slog.Default()
	}
	return l.logger
}

// encodable returns v, or a copy of it, that json.Marshal accepts.
func encodable(v any) any {
	switch v := v.(type) {
	case nil, string, bool, int, int64:
		return v
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Sprint(v)
		}
		return v
	case float32:
		return encodable(float64(v))
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[k] = encodable(e)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = encodable(e)
		}
		return out
	}
	if _, err := json.Marshal(v); err != nil {
		return fmt.Sprint(v)
	}
	return v
}
