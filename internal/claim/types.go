// Package claim defines the records flowing through the verdict pipeline:
// statically-derived Expectations, runtime Observations, and the classified
// Findings produced from each pair. All types are plain data; behavior lives
// in the classify, constitution, and decision packages.
package claim

import (
	"encoding/json"
	"strings"
)

// Cause is the precise failure token recorded by the observation layer
// when the reason for a miss is known.
type Cause string

const (
	CauseNotFound        Cause = "not-found"
	CauseBlocked         Cause = "blocked"
	CauseTimeout         Cause = "timeout"
	CausePreventedSubmit Cause = "prevented-submit"
	CauseNoChange        Cause = "no-change"
	CauseError           Cause = "error"
)

// Promise is the behavior a piece of code claims to deliver.
type Promise struct {
	Kind  string `json:"kind" yaml:"kind"`   // e.g. "navigate", "submit", "feedback.toast"
	Value string `json:"value" yaml:"value"` // e.g. "/checkout", "POST /api/pay"
}

// Source locates the claim in the codebase.
type Source struct {
	File   string `json:"file" yaml:"file"`
	Line   int    `json:"line" yaml:"line"`
	Column int    `json:"column" yaml:"column"`
}

// Expectation is an immutable, statically-derived claim that code promises
// some observable behavior. Read-only to this pipeline.
type Expectation struct {
	ID      string  `json:"id" yaml:"id"` // content hash; stable across runs
	Type    string  `json:"type" yaml:"type"`
	Promise Promise `json:"promise" yaml:"promise"`
	Source  Source  `json:"source" yaml:"source"`
}

// ActivitySignals are the named DOM/network/UI activity measurements the
// observation layer attaches to each record. Zero values mean "not seen".
type ActivitySignals struct {
	DOMChanged      bool    `json:"dom_changed,omitempty" yaml:"dom_changed,omitempty"`
	DOMChangeCount  int     `json:"dom_change_count,omitempty" yaml:"dom_change_count,omitempty"`
	NetworkRequests int     `json:"network_requests,omitempty" yaml:"network_requests,omitempty"`
	NetworkFailures int     `json:"network_failures,omitempty" yaml:"network_failures,omitempty"`
	NetworkJitterMs float64 `json:"network_jitter_ms,omitempty" yaml:"network_jitter_ms,omitempty"`
	AdaptiveRetries int     `json:"adaptive_retries,omitempty" yaml:"adaptive_retries,omitempty"`
	RenderDelayMs   float64 `json:"render_delay_ms,omitempty" yaml:"render_delay_ms,omitempty"`
	UIEvents        int     `json:"ui_events,omitempty" yaml:"ui_events,omitempty"`
}

// Timing is recorded by the observation layer. It never feeds classification;
// it is carried only for reporting and determinism factor extraction.
type Timing struct {
	DurationMs int64 `json:"duration_ms,omitempty" yaml:"duration_ms,omitempty"`
}

// Observation is the runtime record of whether and how an Expectation's
// promised behavior occurred. Correlated 1:1 with an Expectation by ID.
// Read-only to this pipeline.
type Observation struct {
	ExpectationID string          `json:"expectation_id" yaml:"expectation_id"`
	Attempted     bool            `json:"attempted" yaml:"attempted"`
	Observed      bool            `json:"observed" yaml:"observed"`
	SafetySkipped bool            `json:"safety_skipped,omitempty" yaml:"safety_skipped,omitempty"`
	Reason        string          `json:"reason,omitempty" yaml:"reason,omitempty"`
	Cause         Cause           `json:"cause,omitempty" yaml:"cause,omitempty"`
	EvidenceFiles []string        `json:"evidence_files,omitempty" yaml:"evidence_files,omitempty"`
	Signals       ActivitySignals `json:"signals,omitempty" yaml:"signals,omitempty"`
	Timing        Timing          `json:"timing,omitempty" yaml:"timing,omitempty"`
}

// ClassKind is the closed set of classification variants.
type ClassKind string

const (
	ClassObserved      ClassKind = "observed"
	ClassCoverageGap   ClassKind = "coverage-gap"
	ClassUnproven      ClassKind = "unproven"
	ClassSilentFailure ClassKind = "silent-failure"
	ClassInformational ClassKind = "informational"
)

// Classification is the variant plus, for silent failures, the cause sub-tag.
// Keeping Cause as a field rather than string-splicing lets the evidence gate
// and exhaustiveness checks work on the type, not on string parsing.
type Classification struct {
	Kind  ClassKind
	Cause Cause // set only when Kind is ClassSilentFailure and the cause is known
}

// String renders the wire form, e.g. "silent-failure:blocked".
func (c Classification) String() string {
	if c.Kind == ClassSilentFailure && c.Cause != "" {
		return string(c.Kind) + ":" + string(c.Cause)
	}
	return string(c.Kind)
}

// ParseClassification is the inverse of String.
func ParseClassification(s string) Classification {
	kind, cause, found := strings.Cut(s, ":")
	c := Classification{Kind: ClassKind(kind)}
	if found && c.Kind == ClassSilentFailure {
		c.Cause = Cause(cause)
	}
	return c
}

// MarshalJSON emits the wire form.
func (c Classification) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON parses the wire form.
func (c *Classification) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*c = ParseClassification(s)
	return nil
}

// Severity is the impact level attached to findings and derived severities.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

// Status expresses how firmly a finding is established.
type Status string

const (
	StatusObserved  Status = "OBSERVED"
	StatusSuspected Status = "SUSPECTED"
	StatusConfirmed Status = "CONFIRMED"
	StatusUnknown   Status = "UNKNOWN"
)

// statusRank orders statuses by certainty. The constitution validator may
// only move a finding toward a lower rank.
var statusRank = map[Status]int{
	StatusUnknown:   0,
	StatusSuspected: 1,
	StatusObserved:  2,
	StatusConfirmed: 3,
}

// Rank returns the certainty rank of the status; unknown strings rank lowest.
func (s Status) Rank() int { return statusRank[s] }

// Judgment is the pass/fail flavor fed to the severity mapper.
type Judgment string

const (
	JudgmentPass        Judgment = "pass"
	JudgmentWeakPass    Judgment = "weak-pass"
	JudgmentNeedsReview Judgment = "needs-review"
	JudgmentFail        Judgment = "fail"
)

// Adjustment is one calibration rule's contribution to a finding's confidence.
type Adjustment struct {
	Rule   string  `json:"rule"`
	Delta  float64 `json:"delta"`
	Reason string  `json:"reason"`
}

// Confidence carries the seed score, the calibrated score, and the audit
// trail of adjustments between them.
type Confidence struct {
	OriginalScore      float64      `json:"original_score"`
	CalibratedScore    float64      `json:"calibrated_score"`
	Adjustments        []Adjustment `json:"adjustments,omitempty"`
	AppliedCalibration bool         `json:"applied_calibration"`
}

// Enrichment holds notes appended by later pipeline passes.
type Enrichment struct {
	EvidenceCrossArtifactNotes []string `json:"evidence_cross_artifact_notes,omitempty"`
}

// Finding is the classified, confidence- and severity-scored verdict on one
// Expectation/Observation pair. Derived only from record content — never from
// wall-clock time, process id, or other non-reproducible input.
type Finding struct {
	ID             string         `json:"id"`
	Classification Classification `json:"classification"`
	Impact         Severity       `json:"impact"`
	Status         Status         `json:"status"`
	Confidence     Confidence     `json:"confidence"`
	Evidence       []string       `json:"evidence,omitempty"`
	Reason         string         `json:"reason,omitempty"`
	Source         Source         `json:"source"`
	Enrichment     Enrichment     `json:"enrichment,omitempty"`
}

// Actionable reports whether the finding represents a failure a human
// should look at, as opposed to coverage bookkeeping.
func (f Finding) Actionable() bool {
	return f.Classification.Kind == ClassSilentFailure
}
