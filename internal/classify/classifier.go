// Package classify turns Expectation/Observation pairs into Findings: a
// fixed-order taxonomy evaluation, a bounded confidence calibration, and a
// pure severity lookup. Everything here is total and deterministic —
// malformed input degrades to an informational finding, never to an error.
package classify

import (
	"math"
	"strings"

	"vigil/internal/claim"
)

// Evidence-seed scoring constants. More independent evidence kinds present
// means a higher seed score, capped so a silent failure never claims full
// certainty without human review.
const (
	seedEvidenceFile   = 0.45
	seedSecondFile     = 0.10
	seedDOMChange      = 0.20
	seedNetworkMiss    = 0.10
	seedKnownCause     = 0.10
	seedCap            = 0.85
	observedConfidence = 1.0
)

// Classify evaluates the classification taxonomy in fixed order and returns
// one Finding. obs may be nil when the observation layer never reached the
// expectation; that is a coverage gap, not an error.
func Classify(exp claim.Expectation, obs *claim.Observation) claim.Finding {
	f := claim.Finding{
		ID:     exp.ID,
		Impact: deriveImpact(exp),
		Source: exp.Source,
		Status: claim.StatusUnknown,
	}

	if exp.ID == "" {
		f.Classification = claim.Classification{Kind: claim.ClassInformational}
		f.Reason = "expectation missing id"
		return f
	}

	switch {
	case obs != nil && obs.Observed:
		f.Classification = claim.Classification{Kind: claim.ClassObserved}
		f.Status = claim.StatusObserved
		f.Confidence = seed(observedConfidence)
		f.Reason = "promised behavior observed"
		f.Evidence = append(f.Evidence, obs.EvidenceFiles...)

	case obs == nil || !obs.Attempted:
		f.Classification = claim.Classification{Kind: claim.ClassCoverageGap}
		f.Confidence = seed(0)
		f.Reason = "never attempted"
		if obs != nil && obs.Reason != "" {
			f.Reason = obs.Reason
		}

	case obs.SafetySkipped && !hasEvidence(obs):
		f.Classification = claim.Classification{Kind: claim.ClassCoverageGap}
		f.Confidence = seed(0)
		f.Reason = "safety-skipped without evidence"

	case hasEvidence(obs):
		// Evidence gate holds: a silent failure is only ever asserted with
		// at least one evidence file or a true DOM-change signal.
		f.Classification = claim.Classification{Kind: claim.ClassSilentFailure, Cause: obs.Cause}
		f.Status = claim.StatusConfirmed
		f.Confidence = seed(evidenceSeedScore(obs))
		f.Evidence = append(f.Evidence, obs.EvidenceFiles...)
		f.Reason = obs.Reason
		if f.Reason == "" {
			f.Reason = "attempted action produced no observable effect"
		}

	default:
		f.Classification = claim.Classification{Kind: claim.ClassUnproven}
		f.Confidence = seed(0)
		f.Reason = "attempted without corroborating evidence"
	}

	return f
}

// hasEvidence is the evidence gate predicate: a non-empty evidence file set
// or a true DOM-change signal.
func hasEvidence(obs *claim.Observation) bool {
	return len(obs.EvidenceFiles) > 0 || obs.Signals.DOMChanged
}

// evidenceSeedScore computes the fixed evidence-signal seed for a silent
// failure. Zero evidence scores zero, which the gate makes unreachable.
func evidenceSeedScore(obs *claim.Observation) float64 {
	score := 0.0
	if len(obs.EvidenceFiles) > 0 {
		score += seedEvidenceFile
	}
	if len(obs.EvidenceFiles) > 1 {
		score += seedSecondFile
	}
	if obs.Signals.DOMChanged {
		score += seedDOMChange
	}
	if obs.Signals.NetworkFailures > 0 {
		score += seedNetworkMiss
	}
	if obs.Cause != "" {
		score += seedKnownCause
	}
	return round3(math.Min(score, seedCap))
}

func seed(score float64) claim.Confidence {
	return claim.Confidence{OriginalScore: score, CalibratedScore: score}
}

// Route and endpoint classes for the static impact table. Matching is by
// lowercase substring so "/account/settings" and "settings" both land in the
// same class.
var (
	lowValueRoutes  = []string{"privacy", "terms", "footer", "legal", "help", "about", "sitemap"}
	midValueRoutes  = []string{"settings", "admin", "preferences", "profile"}
	highValueCalls  = []string{"auth", "login", "signup", "payment", "pay", "checkout", "billing"}
	lowValueCalls   = []string{"analytics", "telemetry", "tracking", "beacon"}
	criticalPromise = map[string]bool{"navigate": true, "submit": true, "payment": true, "auth": true}
)

// deriveImpact is the static impact table keyed by expectation type and
// promise value. Pure lookup, no randomness.
func deriveImpact(exp claim.Expectation) claim.Severity {
	value := strings.ToLower(exp.Promise.Value)
	switch strings.ToLower(exp.Type) {
	case "navigation", "navigate":
		if matchesAny(value, lowValueRoutes) {
			return claim.SeverityLow
		}
		if matchesAny(value, midValueRoutes) {
			return claim.SeverityMedium
		}
		return claim.SeverityHigh
	case "network", "network-call":
		if matchesAny(value, highValueCalls) {
			return claim.SeverityHigh
		}
		if matchesAny(value, lowValueCalls) {
			return claim.SeverityLow
		}
		return claim.SeverityMedium
	case "submit", "form-submit", "payment", "auth":
		return claim.SeverityHigh
	case "feedback", "ui-feedback", "state":
		return claim.SeverityMedium
	default:
		if criticalPromise[strings.ToLower(exp.Promise.Kind)] {
			return claim.SeverityHigh
		}
		return claim.SeverityMedium
	}
}

func matchesAny(value string, classes []string) bool {
	for _, c := range classes {
		if strings.Contains(value, c) {
			return true
		}
	}
	return false
}

// round3 rounds to three decimals so scores serialize identically everywhere.
func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
