package decision

import (
	"fmt"
	"time"
)

// Readiness exit codes. FRICTION normalizes to 0 externally while the
// verdict source keeps it distinct from READY.
const (
	ExitReady       = 0
	ExitFriction    = 0
	ExitDoNotLaunch = 2
)

// Confidence bands per verdict source.
const (
	confidenceRules        = 0.99
	confidenceResolved     = 0.75
	confidenceInsufficient = 0.35
)

// policyHardFailExit is the exit code at which a failed policy evaluation
// blocks launch. Softer codes are recorded as reasons only.
const policyHardFailExit = 2

// Options tunes decision computation. Clock is injectable so history
// timestamps are the only non-reproducible output of ComputeDecision.
type Options struct {
	Clock func() time.Time
}

// resolution is a resolver's non-empty answer: verdict, attribution, and the
// reason code written to history.
type resolution struct {
	verdict    Verdict
	source     Source
	reasonCode string
	confidence float64
}

// resolver is one step of the precedence chain. It returns nil when its
// signal is absent or not decisive, letting the fold continue.
type resolver struct {
	phase string
	run   func(sig Bundle) *resolution
}

// resolverChain is the fixed precedence, first match wins. Adding a signal
// source is an insertion here, not a rewrite of nested conditionals.
var resolverChain = []resolver{
	{phase: "rules-engine", run: resolveRulesEngine},
	{phase: "flow-failure", run: resolveFlowFailure},
	{phase: "policy", run: resolvePolicy},
	{phase: "baseline", run: resolveBaseline},
}

// ComputeDecision folds the signals bundle through the precedence chain,
// applies the journey downgrade, and returns one Decision with a full audit
// trail. Pure over sig: repeat calls are identical except for timestamps.
func ComputeDecision(sig Bundle, opts Options) Decision {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	d := Decision{}
	stamp := func(phase string, source Source, code string) {
		d.VerdictHistory = append(d.VerdictHistory, HistoryEntry{
			Phase:      phase,
			Source:     source,
			ReasonCode: code,
			Timestamp:  clock().UTC().Format(time.RFC3339Nano),
		})
	}

	var res *resolution
	for _, r := range resolverChain {
		if res = r.run(sig); res != nil {
			stamp(r.phase, res.source, res.reasonCode)
			break
		}
		stamp(r.phase, "", "no_match")
	}
	// The baseline resolver always answers, so res is never nil here.

	d.FinalVerdict = res.verdict
	d.VerdictSource = res.source
	d.Confidence = res.confidence

	// Journey verdict may only downgrade a baseline resolution; the first
	// three chain steps are absolute.
	if sig.Journey != "" && downgradeable(res.source) && sig.Journey.Rank() < d.FinalVerdict.Rank() {
		d.FinalVerdict = sig.Journey
		d.VerdictSource = SourceJourneyDowngrade
		stamp("journey", SourceJourneyDowngrade, "journey_downgrade")
	}

	d.ExitCode = ExitFor(d.FinalVerdict)
	d.Reasons = informationalReasons(sig)
	return d
}

func downgradeable(s Source) bool {
	return s == SourceFlowsBaseline || s == SourceInsufficientData
}

// ExitFor maps a verdict to the user-facing readiness exit code.
func ExitFor(v Verdict) int {
	switch v {
	case VerdictDoNotLaunch:
		return ExitDoNotLaunch
	case VerdictFriction:
		return ExitFriction
	default:
		return ExitReady
	}
}

// resolveRulesEngine uses a precomputed rules verdict verbatim, with
// absolute precedence over every other signal.
func resolveRulesEngine(sig Bundle) *resolution {
	if sig.RulesEngine == nil {
		return nil
	}
	return &resolution{
		verdict:    sig.RulesEngine.Verdict,
		source:     SourceRulesEngine,
		reasonCode: "rules_engine_verdict",
		confidence: confidenceRules,
	}
}

// resolveFlowFailure blocks launch on any failed flow or attempt.
func resolveFlowFailure(sig Bundle) *resolution {
	for _, f := range sig.Flows {
		if f.Outcome == OutcomeFailure {
			return &resolution{VerdictDoNotLaunch, SourceFlowsFailure, "flow_failure", confidenceResolved}
		}
	}
	for _, a := range sig.Attempts {
		if a.Outcome == OutcomeFailure {
			return &resolution{VerdictDoNotLaunch, SourceFlowsFailure, "attempt_failure", confidenceResolved}
		}
	}
	return nil
}

// resolvePolicy blocks launch only on a hard-fail policy exit. Softer
// failures surface as informational reasons, never as downgrades.
func resolvePolicy(sig Bundle) *resolution {
	if sig.Policy == nil || sig.Policy.Passed {
		return nil
	}
	if sig.Policy.ExitCode >= policyHardFailExit {
		return &resolution{VerdictDoNotLaunch, SourcePolicyHardFail, "policy_hard_fail", confidenceResolved}
	}
	return nil
}

// resolveBaseline derives READY or FRICTION from the flow and attempt mix.
// Friction mixed with at least one success and no failure still resolves
// READY. No applicable signals at all means insufficient data, which blocks.
func resolveBaseline(sig Bundle) *resolution {
	successes, frictions := 0, 0
	tally := func(o Outcome) {
		switch o {
		case OutcomeSuccess:
			successes++
		case OutcomeFriction:
			frictions++
		}
	}
	for _, f := range sig.Flows {
		tally(f.Outcome)
	}
	for _, a := range sig.Attempts {
		tally(a.Outcome)
	}

	switch {
	case successes > 0:
		return &resolution{VerdictReady, SourceFlowsBaseline, "flows_observed_ready", confidenceResolved}
	case frictions > 0:
		return &resolution{VerdictFriction, SourceFlowsBaseline, "flows_friction_only", confidenceResolved}
	default:
		return &resolution{VerdictDoNotLaunch, SourceInsufficientData, "insufficient_data", confidenceInsufficient}
	}
}

// informationalReasons collects the signals that explain but never decide:
// baseline regressions, inapplicable flows, soft policy failures.
func informationalReasons(sig Bundle) []Reason {
	var reasons []Reason
	if sig.Baseline != nil {
		for _, r := range sig.Baseline.Regressions {
			reasons = append(reasons, Reason{Code: "baseline_regression", Message: r})
		}
	}
	for _, f := range sig.Flows {
		if f.Outcome == OutcomeNotApplicable {
			reasons = append(reasons, Reason{Code: "flow_not_applicable", Message: f.Name})
		}
	}
	if sig.Policy != nil && !sig.Policy.Passed && sig.Policy.ExitCode < policyHardFailExit {
		reasons = append(reasons, Reason{
			Code:    "policy_soft_fail",
			Message: fmt.Sprintf("policy failed with soft exit %d: %s", sig.Policy.ExitCode, sig.Policy.Summary),
		})
	}
	return reasons
}
