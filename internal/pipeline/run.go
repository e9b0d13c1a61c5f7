// Package pipeline orchestrates one analysis run: parallel classification
// and calibration, deterministic ordering, constitutional validation, the
// launch decision, and run-state accounting. It produces an in-memory
// RunSummary; persisting it is the caller's concern.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"vigil/internal/claim"
	"vigil/internal/classify"
	"vigil/internal/config"
	"vigil/internal/constitution"
	"vigil/internal/decision"
	"vigil/internal/logging"
	"vigil/internal/rules"
	"vigil/internal/runstate"
)

// SchemaVersion tags RunSummary serializations.
const SchemaVersion = "1"

// Thresholds for determinism factor extraction from observations.
const (
	jitterFactorThresholdMs = 250
)

// Skip is the observation layer's record of an expectation it never
// analyzed, forwarded verbatim into run accounting.
type Skip struct {
	ExpectationID string `json:"expectation_id" yaml:"expectation_id"`
	Code          string `json:"code" yaml:"code"`
	Detail        string `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// Input is one run's complete, already-materialized input set.
type Input struct {
	Expectations []claim.Expectation
	Observations []claim.Observation
	Skips        []Skip
	Signals      decision.Bundle
	// Evidence is the artifact layer's cross-linkage context. When empty it
	// is derived from the observations themselves.
	Evidence constitution.Context
}

// RunSummary is the serializable result of one run.
type RunSummary struct {
	SchemaVersion   string             `json:"schema_version"`
	RunID           string             `json:"run_id"`
	StartedAt       string             `json:"started_at"`
	Findings        []claim.Finding    `json:"findings"`
	Decision        decision.Decision  `json:"decision"`
	RunState        runstate.Snapshot  `json:"run_state"`
	ProcessExitCode int                `json:"process_exit_code"`
}

// Runner executes runs under one configuration.
type Runner struct {
	cfg   *config.Config
	rules *rules.RuleSet
	clock func() time.Time
	log   *slog.Logger
}

// NewRunner builds a runner, loading and compiling the launch rules if the
// config names a rule file.
func NewRunner(cfg *config.Config) (*Runner, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	r := &Runner{cfg: cfg, clock: time.Now, log: logging.New("pipeline")}
	if cfg.RulesPath != "" {
		rs, err := rules.LoadFromPath(cfg.RulesPath)
		if err != nil {
			return nil, fmt.Errorf("load launch rules: %w", err)
		}
		r.rules = rs
	}
	return r, nil
}

// WithClock overrides the runner's clock; tests use this to freeze
// decision-history timestamps.
func (r *Runner) WithClock(clock func() time.Time) *Runner {
	r.clock = clock
	return r
}

// Run executes the full pipeline over one input set. It returns an error
// only for context cancellation; pipeline faults are absorbed into the
// summary's run state per the error-handling contract.
func (r *Runner) Run(ctx context.Context, in Input) (*RunSummary, error) {
	runID := deriveRunID(in.Expectations)
	log := r.log.With(slog.String("run_id", runID))
	tracker := runstate.NewTracker()
	tracker.RecordDiscovered(len(in.Expectations))

	skipped := make(map[string]bool, len(in.Skips))
	for _, s := range in.Skips {
		skipped[s.ExpectationID] = true
		tracker.RecordSkip(s.ExpectationID, s.Code, s.Detail)
	}

	obsByID := make(map[string]*claim.Observation, len(in.Observations))
	for i := range in.Observations {
		obs := &in.Observations[i]
		if _, dup := obsByID[obs.ExpectationID]; dup {
			tracker.RecordFault(fmt.Sprintf("duplicate observation for expectation %s", obs.ExpectationID))
			continue
		}
		obsByID[obs.ExpectationID] = obs
	}

	findings, err := r.classifyAll(ctx, in.Expectations, obsByID, skipped, tracker)
	if err != nil {
		return nil, err
	}
	recordFactors(in.Observations, tracker)

	evidence := in.Evidence
	if evidence.EvidenceFileIndex == nil && evidence.ObserveEvidenceByExpectation == nil {
		evidence = deriveEvidenceContext(in.Observations)
	}
	validated := constitution.BatchValidate(findings, evidence)
	if dropped := len(findings) - len(validated.Valid); dropped > 0 {
		tracker.RecordDropped(dropped, "constitution validation")
	}
	if validated.Downgraded > 0 {
		log.Info("constitution downgrades applied", slog.Int("count", validated.Downgraded))
	}

	if err := tracker.VerifyInvariants(); err != nil {
		// Accounting mismatch is a pipeline fault, never silently corrected.
		log.Error("invariant violation", slog.String("error", err.Error()))
		tracker.RecordFault(err.Error())
	}

	sig := in.Signals
	if sig.RulesEngine == nil && r.rules != nil {
		verdict, err := r.rules.Evaluate(sig)
		if err != nil {
			log.Warn("launch rules evaluation failed", slog.String("error", err.Error()))
		} else {
			sig.RulesEngine = verdict
		}
	}
	if sig.Coverage == nil {
		snapCounts := len(in.Expectations) - len(in.Skips)
		sig.Coverage = &decision.Coverage{Discovered: len(in.Expectations), Analyzed: snapCounts}
	}

	dec := decision.ComputeDecision(sig, decision.Options{Clock: r.clock})

	actionable := 0
	for _, f := range validated.Valid {
		if f.Actionable() {
			actionable++
		}
	}
	tracker.RecordFindings(actionable)

	snap := tracker.Finalize()
	log.Info("run finalized",
		slog.String("state", string(snap.State)),
		slog.Int("findings", actionable),
		slog.String("verdict", string(dec.FinalVerdict)))

	return &RunSummary{
		SchemaVersion:   SchemaVersion,
		RunID:           runID,
		StartedAt:       r.clock().UTC().Format(time.RFC3339Nano),
		Findings:        validated.Valid,
		Decision:        dec,
		RunState:        snap,
		ProcessExitCode: tracker.ExitCode(),
	}, nil
}

// classifyAll classifies and calibrates every non-skipped expectation. Work
// runs in parallel; results land in per-index slots and are then sorted by
// source reference, so output order never depends on completion order.
func (r *Runner) classifyAll(ctx context.Context, exps []claim.Expectation, obsByID map[string]*claim.Observation, skipped map[string]bool, tracker *runstate.Tracker) ([]claim.Finding, error) {
	slots := make([]*claim.Finding, len(exps))

	g, ctx := errgroup.WithContext(ctx)
	limit := r.cfg.Parallelism
	if limit <= 0 {
		limit = runtime.NumCPU()
	}
	g.SetLimit(limit)

	for i := range exps {
		if skipped[exps[i].ID] {
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			exp := exps[i]
			obs := obsByID[exp.ID]
			f := classify.Classify(exp, obs)
			if r.cfg.CalibrationEnabled() {
				f.Confidence = classify.Calibrate(f.Confidence.OriginalScore, obs, f)
			}
			slots[i] = &f
			tracker.RecordAnalyzed(exp.ID)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	findings := make([]claim.Finding, 0, len(exps))
	for _, f := range slots {
		if f != nil {
			findings = append(findings, *f)
		}
	}
	sort.SliceStable(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		if a.Source.File != b.Source.File {
			return a.Source.File < b.Source.File
		}
		if a.Source.Line != b.Source.Line {
			return a.Source.Line < b.Source.Line
		}
		if a.Source.Column != b.Source.Column {
			return a.Source.Column < b.Source.Column
		}
		return a.ID < b.ID
	})
	return findings, nil
}

// recordFactors extracts determinism risk factors from the observation set.
func recordFactors(observations []claim.Observation, tracker *runstate.Tracker) {
	retries, jitters, timeouts := 0, 0, 0
	for _, obs := range observations {
		if obs.Signals.AdaptiveRetries > 0 {
			retries++
		}
		if obs.Signals.NetworkJitterMs > jitterFactorThresholdMs {
			jitters++
		}
		if obs.Cause == claim.CauseTimeout {
			timeouts++
		}
	}
	if retries > 0 {
		tracker.RecordFactor("adaptive-retry", false, fmt.Sprintf("%d observation(s) retried", retries))
	}
	if jitters > 0 {
		tracker.RecordFactor("network-jitter", true, fmt.Sprintf("%d observation(s) above %dms jitter", jitters, jitterFactorThresholdMs))
	}
	if timeouts > 0 {
		tracker.RecordFactor("timeout", true, fmt.Sprintf("%d observation(s) timed out", timeouts))
	}
}

// deriveEvidenceContext builds the cross-linkage tables from the
// observations themselves when the artifact layer supplies none.
func deriveEvidenceContext(observations []claim.Observation) constitution.Context {
	ctx := constitution.Context{
		EvidenceFileIndex:            make(map[string]bool),
		ObserveEvidenceByExpectation: make(map[string][]string),
	}
	for _, obs := range observations {
		if len(obs.EvidenceFiles) == 0 {
			continue
		}
		ctx.ObserveEvidenceByExpectation[obs.ExpectationID] = obs.EvidenceFiles
		for _, f := range obs.EvidenceFiles {
			ctx.EvidenceFileIndex[f] = true
		}
	}
	return ctx
}

// deriveRunID hashes the sorted expectation ids: identical inputs yield the
// same run id on any machine, keeping summaries reproducible.
func deriveRunID(exps []claim.Expectation) string {
	ids := make([]string, 0, len(exps))
	for _, e := range exps {
		ids = append(ids, e.ID)
	}
	sort.Strings(ids)
	sum := sha256.Sum256([]byte(strings.Join(ids, "\n")))
	return "run-" + hex.EncodeToString(sum[:])[:12]
}
