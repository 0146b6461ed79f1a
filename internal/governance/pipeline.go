package governance

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/roach88/trustgate/internal/bundle"
	"github.com/roach88/trustgate/internal/hooks"
	"github.com/roach88/trustgate/internal/ledger"
	"github.com/roach88/trustgate/internal/policy"
	"github.com/roach88/trustgate/internal/recovery"
	"github.com/roach88/trustgate/internal/result"
	"github.com/roach88/trustgate/internal/safe"
	"github.com/roach88/trustgate/internal/store"
	"github.com/roach88/trustgate/internal/truth"
	"github.com/roach88/trustgate/internal/workspace"
)

// EvidenceViolationPrefix starts the error recorded when a command claims
// success without producing any artifact.
const EvidenceViolationPrefix = "Evidence policy violation"

// IndexOpener opens the ledger index at path.
type IndexOpener func(path string) (*store.Store, error)

// Pipeline governs commands against one workspace.
//
// Run drives a single invocation through every stage: ledger creation, the
// pre hook, preconditions, the domain command, the truth gate, the post hook,
// the evidence check, recovery, sealing, the trust bundle and persistence.
// No stage returns an error to the caller; failures become ledger warnings
// or Outcome.Warnings.
//
// Usage:
//
//	p := governance.New(ws, governance.WithLogger(logger))
//	out := p.Run(ctx, governance.Invocation{Command: "profiling"}, exec)
//	if !out.Succeeded() {
//		// out.Paths.RecoveryPlan explains what to do next.
//	}
//
// Thread-safety: a Pipeline keeps no per-run state, so Run may be called from
// several goroutines. Concurrent runs against the same workspace still race
// on audit/recovery_plan.md and the trust bundle files; the last writer wins.
type Pipeline struct {
	ws       *workspace.Workspace
	logger   *slog.Logger
	ledgerOp []ledger.Option
	advisor  hooks.NextStepsAdvisor
	rules    *policy.Registry
	gate     *truth.Gate
	index    IndexOpener
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger shared by every stage.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithClock overrides the ledger clock.
func WithClock(clock func() time.Time) Option {
	return func(p *Pipeline) { p.ledgerOp = append(p.ledgerOp, ledger.WithClock(clock)) }
}

// WithRunIDGenerator overrides the run id generator.
func WithRunIDGenerator(g ledger.RunIDGenerator) Option {
	return func(p *Pipeline) { p.ledgerOp = append(p.ledgerOp, ledger.WithRunIDGenerator(g)) }
}

// WithEnvironment overrides the environment snapshot.
func WithEnvironment(fn func() ledger.Environment) Option {
	return func(p *Pipeline) { p.ledgerOp = append(p.ledgerOp, ledger.WithEnvironment(fn)) }
}

// WithAdvisor sets the next-steps collaborator.
func WithAdvisor(a hooks.NextStepsAdvisor) Option {
	return func(p *Pipeline) { p.advisor = a }
}

// WithPolicyRegistry replaces the precondition rules.
func WithPolicyRegistry(r *policy.Registry) Option {
	return func(p *Pipeline) { p.rules = r }
}

// WithTruthGate replaces the truth gate.
func WithTruthGate(g *truth.Gate) Option {
	return func(p *Pipeline) { p.gate = g }
}

// WithIndexOpener sets how the ledger index is opened. nil disables the
// index.
func WithIndexOpener(open IndexOpener) Option {
	return func(p *Pipeline) { p.index = open }
}

// New creates a pipeline for ws.
func New(ws *workspace.Workspace, opts ...Option) *Pipeline {
	p := &Pipeline{
		ws:      ws,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		advisor: hooks.StageAdvisor{},
		rules:   policy.DefaultRegistry(),
		gate:    truth.New(ws),
		index:   store.Open,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Paths are the files a run persisted. Empty means not written.
type Paths struct {
	Ledger          string `json:"ledger"`
	TrustBundleMD   string `json:"trust_bundle_md"`
	TrustBundleJSON string `json:"trust_bundle_json"`
	RecoveryPlan    string `json:"recovery_plan"`
}

// Outcome is everything one governed run produced.
type Outcome struct {
	Ledger       *ledger.Ledger
	Result       *result.Result
	Precondition policy.Result
	Enforced     policy.Result
	Evidence     policy.Result
	Truth        truth.Validation
	Plan         *recovery.Plan
	Bundle       bundle.Bundle
	LedgerDigest string
	Paths        Paths

	// Warnings lists problems found after the ledger was sealed.
	Warnings []string
}

// Succeeded reports whether the governed command succeeded.
func (o *Outcome) Succeeded() bool {
	return o.Result != nil && o.Result.Success
}

// Blocked reports whether the command was prevented from running.
func (o *Outcome) Blocked() bool {
	return o.Result != nil && o.Result.Blocked
}

// Check evaluates the preconditions for command and applies the
// execution mode. It returns the raw and the enforced decision.
func (p *Pipeline) Check(command string) (raw, enforced policy.Result) {
	raw = p.rules.EvaluatePreconditions(command, p.ws.Stage, policy.ContextFrom(p.ws))
	return raw, policy.Enforce(raw, p.ws.Mode)
}

// Verify runs the truth gate alone.
func (p *Pipeline) Verify(command string, res *result.Result) truth.Validation {
	return p.gate.Validate(command, res)
}

// Run governs one invocation of a domain command.
func (p *Pipeline) Run(ctx context.Context, inv Invocation, exec Executor) *Outcome {
	ws := p.ws
	opts := append([]ledger.Option{ledger.WithLogger(p.logger)}, p.ledgerOp...)
	l := ledger.Create(inv.Command, inv.Args, ws, opts...)
	inv.RunID = l.RunID
	log := p.logger.With("run_id", l.RunID, "command", inv.Command)
	out := &Outcome{Ledger: l}

	h := hooks.New(ws, hooks.WithAdvisor(p.advisor), hooks.WithLogger(p.logger))
	h.Pre(l, inv.Command, inv.Args)

	out.Precondition, out.Enforced = p.Check(inv.Command)
	l.SetProof(ledger.ProofPolicy, out.Precondition)
	log.Debug("preconditions evaluated",
		"decision", out.Precondition.Decision,
		"enforced", out.Enforced.Decision,
		"mode", ws.Mode)

	var res *result.Result
	if out.Enforced.IsBlock() {
		log.Info("command blocked", "reason", out.Enforced.Message)
		res = result.Blockedf(out.Enforced.Embed(), "%s", out.Enforced.Message)
	} else {
		res = p.execute(ctx, inv, exec, log)
		if out.Enforced.Decision == policy.Warn {
			if res.Policy == nil {
				res.Policy = out.Enforced.Embed()
			}
			res.Warnings = append(res.Warnings, "policy warning: "+out.Enforced.Message)
		}
	}
	out.Result = res

	out.Truth = p.gate.Validate(inv.Command, res)
	if truth.Enforce(res, out.Truth) {
		log.Warn("success claim overridden by truth gate", "missing", out.Truth.MissingArtifacts)
	}
	for _, w := range out.Truth.Warnings {
		res.Warnings = append(res.Warnings, "truth gate: "+w)
	}
	l.SetProof(ledger.ProofTruthGate, out.Truth)

	reportedSteps := len(res.NextSteps) > 0
	h.Post(l, res)

	out.Evidence = policy.EvaluateEvidenceCompleteness(inv.Command, res, evidenceArtifacts(l, out.Truth, ws.Root))
	l.SetProof(ledger.ProofEvidencePolicy, out.Evidence)
	if out.Evidence.IsBlock() {
		log.Warn("success claim without artifacts", "invariant", policy.InvariantArtifactExistence)
		msg := EvidenceViolationPrefix + ": " + out.Evidence.Message
		res.Success = false
		res.AddError(msg)
		l.Success = false
		l.AddError(msg)
		// Stage advice assumed the claim was true.
		if !reportedSteps {
			res.NextSteps = nil
		}
		if res.Policy == nil || res.Policy.Decision == result.DecisionAllow {
			res.Policy = out.Evidence.Embed()
		}
	}

	if recovery.ShouldGenerate(l, res) {
		plan := recovery.Generate(l, res, ws)
		for _, err := range plan.Problems {
			l.AddWarning("recovery plan: " + err.Error())
		}
		path, err := recovery.Save(plan, ws.Root)
		if err != nil {
			l.AddWarning(err.Error())
		}
		out.Plan = &plan
		out.Paths.RecoveryPlan = path
	}

	out.LedgerDigest = p.seal(l, log)
	out.Bundle = bundle.Generate(l, res, ws, bundle.WithLedgerDigest(out.LedgerDigest))
	for _, err := range out.Bundle.Problems {
		out.warn(log, "trust bundle: "+err.Error())
	}

	ledgerPath, err := l.Save(ws.Path(workspace.LedgerDir))
	if err != nil {
		out.warn(log, err.Error())
	}
	out.Paths.Ledger = ledgerPath

	mdPath, jsonPath, err := bundle.Save(out.Bundle, ws.Root)
	if err != nil {
		out.warn(log, err.Error())
	}
	out.Paths.TrustBundleMD, out.Paths.TrustBundleJSON = mdPath, jsonPath

	if ledgerPath != "" {
		if err := p.record(ctx, l, ws.Rel(ledgerPath), out.LedgerDigest, res.Blocked); err != nil {
			out.warn(log, fmt.Sprintf("ledger index: %v", err))
		}
	}

	log.Info("run governed", "success", res.Success, "blocked", res.Blocked, "ledger", ws.Rel(ledgerPath))
	return out
}

// evidenceArtifacts is every artifact the run is known to have produced:
// the outputs Post recorded plus whatever the truth gate found on disk,
// which includes directories behind count claims.
func evidenceArtifacts(l *ledger.Ledger, v truth.Validation, root string) []string {
	artifacts := l.OutputPaths()
	for _, a := range v.ValidatedArtifacts {
		path := result.ResolvePath(root, a)
		if !slices.Contains(artifacts, path) {
			artifacts = append(artifacts, path)
		}
	}
	return artifacts
}

// execute runs the executor, turning errors, panics and missing results
// into a failed result.
func (p *Pipeline) execute(ctx context.Context, inv Invocation, exec Executor, log *slog.Logger) *result.Result {
	if exec == nil {
		return result.Failed(&ExecError{Code: ErrCodeNoResult, Command: inv.Command})
	}
	res, err := safe.Value[*result.Result]("execute", nil, func() (*result.Result, error) {
		return exec(ctx, inv)
	})
	if err != nil {
		log.Warn("domain command failed", "error", err)
		return result.Failed(err)
	}
	if res == nil {
		return result.Failed(&ExecError{Code: ErrCodeNoResult, Command: inv.Command})
	}
	return res
}

// seal computes the ledger digest. The ledger must not change afterwards.
func (p *Pipeline) seal(l *ledger.Ledger, log *slog.Logger) string {
	d, err := l.Digest()
	if err != nil {
		log.Warn("ledger digest failed", "error", err)
		return ""
	}
	return d
}

func (p *Pipeline) record(ctx context.Context, l *ledger.Ledger, path, digest string, blocked bool) error {
	if p.index == nil {
		return nil
	}
	st, err := p.index(p.ws.Path(workspace.LedgerIndex))
	if err != nil {
		return err
	}
	defer st.Close()
	_, err = st.RecordRun(ctx, store.RunFromLedger(l, path, digest, blocked), l.Outputs)
	return err
}

func (o *Outcome) warn(log *slog.Logger, msg string) {
	log.Warn(msg)
	o.Warnings = append(o.Warnings, msg)
}
