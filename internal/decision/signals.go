// Package decision merges the run's independent signal sources — rules
// engine, flow and attempt outcomes, policy evaluation, journey verdict,
// baseline comparison — into one launch decision under fixed precedence.
package decision

// Outcome is the result of one flow or attempt.
type Outcome string

const (
	OutcomeSuccess       Outcome = "SUCCESS"
	OutcomeFriction      Outcome = "FRICTION"
	OutcomeFailure       Outcome = "FAILURE"
	OutcomeNotApplicable Outcome = "NOT_APPLICABLE"
)

// Verdict is the user-facing launch readiness call.
type Verdict string

const (
	VerdictReady       Verdict = "READY"
	VerdictFriction    Verdict = "FRICTION"
	VerdictDoNotLaunch Verdict = "DO_NOT_LAUNCH"
)

// verdictRank orders verdicts from worst to best; a downgrade moves toward
// a lower rank and an upgrade is never performed.
var verdictRank = map[Verdict]int{
	VerdictDoNotLaunch: 0,
	VerdictFriction:    1,
	VerdictReady:       2,
}

// Rank returns the verdict's position in the downgrade order.
func (v Verdict) Rank() int { return verdictRank[v] }

// Source identifies which resolver produced the final verdict.
type Source string

const (
	SourceRulesEngine      Source = "RULES_ENGINE"
	SourceFlowsFailure     Source = "FLOWS_FAILURE"
	SourcePolicyHardFail   Source = "POLICY_HARD_FAIL"
	SourceFlowsBaseline    Source = "FLOWS_BASELINE"
	SourceInsufficientData Source = "INSUFFICIENT_DATA"
	SourceJourneyDowngrade Source = "JOURNEY_DOWNGRADE"
)

// FlowResult is the outcome of one end-to-end flow.
type FlowResult struct {
	Name    string  `json:"name"`
	Outcome Outcome `json:"outcome"`
	Detail  string  `json:"detail,omitempty"`
}

// AttemptResult is the outcome of one individual interaction attempt.
type AttemptResult struct {
	Name    string  `json:"name"`
	Outcome Outcome `json:"outcome"`
	Detail  string  `json:"detail,omitempty"`
}

// RulesVerdict is a precomputed verdict from the launch-rules engine. When
// present it is used verbatim with absolute precedence.
type RulesVerdict struct {
	Verdict  Verdict `json:"verdict"`
	RuleID   string  `json:"rule_id,omitempty"`
	Reason   string  `json:"reason,omitempty"`
	ExitCode int     `json:"exit_code"`
}

// PolicyEval is the result of an external policy evaluation.
type PolicyEval struct {
	Passed   bool   `json:"passed"`
	ExitCode int    `json:"exit_code"`
	Summary  string `json:"summary,omitempty"`
}

// BaselineComparison lists deltas against a prior accepted run. Regressions
// are informational to the decision; they never change the verdict here.
type BaselineComparison struct {
	Regressions  []string `json:"regressions,omitempty"`
	Improvements []string `json:"improvements,omitempty"`
}

// Coverage summarizes expectation accounting for reporting.
type Coverage struct {
	Discovered int `json:"discovered"`
	Analyzed   int `json:"analyzed"`
}

// Bundle is the complete signals input assembled by the run orchestrator.
// Missing fields are treated as empty collections, never as errors.
type Bundle struct {
	Flows       []FlowResult        `json:"flows,omitempty"`
	Attempts    []AttemptResult     `json:"attempts,omitempty"`
	RulesEngine *RulesVerdict       `json:"rules_engine,omitempty"`
	Journey     Verdict             `json:"journey,omitempty"` // empty = absent
	Policy      *PolicyEval         `json:"policy,omitempty"`
	Baseline    *BaselineComparison `json:"baseline,omitempty"`
	Coverage    *Coverage           `json:"coverage,omitempty"`
}

// HistoryEntry records one precedence step's contribution to the verdict.
type HistoryEntry struct {
	Phase      string `json:"phase"`
	Source     Source `json:"source,omitempty"`
	ReasonCode string `json:"reason_code"`
	Timestamp  string `json:"timestamp"`
}

// Reason is one machine-readable explanation attached to the decision.
type Reason struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Decision is the merged launch verdict for one run. Its exit code governs
// the user-facing readiness contract and is distinct from the process exit
// code owned by the run state tracker.
type Decision struct {
	FinalVerdict   Verdict        `json:"final_verdict"`
	ExitCode       int            `json:"exit_code"`
	VerdictSource  Source         `json:"verdict_source"`
	VerdictHistory []HistoryEntry `json:"verdict_history"`
	Reasons        []Reason       `json:"reasons,omitempty"`
	Confidence     float64        `json:"confidence"`
}
