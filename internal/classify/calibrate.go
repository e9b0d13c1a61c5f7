package classify

import (
	"math"

	"vigil/internal/claim"
)

// Calibration bounds: the summed rule deltas are clamped before they are
// applied, so calibration can nudge a score but never rewrite it.
const (
	maxTotalDelta = 0.15
	minTotalDelta = -0.15

	jitterThresholdMs     = 250
	lateRenderThresholdMs = 1000
	fastRenderThresholdMs = 200
)

// calibrationRule contributes one signed delta when its condition holds.
// Penalties are listed before boosts so the emitted adjustment trail always
// reads worst-news-first.
type calibrationRule struct {
	name   string
	delta  float64
	reason string
	when   func(sig claim.ActivitySignals) bool
}

var calibrationRules = []calibrationRule{
	// Penalties.
	{
		name:   "jittery-network-late-render",
		delta:  -0.10,
		reason: "network jitter with late render weakens the silence signal",
		when: func(s claim.ActivitySignals) bool {
			return s.NetworkJitterMs > jitterThresholdMs && s.RenderDelayMs > lateRenderThresholdMs
		},
	},
	{
		name:   "adaptive-retry",
		delta:  -0.05,
		reason: "adaptive retries indicate an unstable interaction path",
		when: func(s claim.ActivitySignals) bool {
			return s.AdaptiveRetries > 0
		},
	},
	{
		name:   "network-failures",
		delta:  -0.05,
		reason: "failed network requests may explain the silence",
		when: func(s claim.ActivitySignals) bool {
			return s.NetworkFailures > 0
		},
	},
	// Boosts.
	{
		name:   "stable-environment",
		delta:  0.10,
		reason: "stable DOM and stable network make the silence trustworthy",
		when: func(s claim.ActivitySignals) bool {
			return s.DOMChangeCount > 0 && s.NetworkFailures == 0 && s.NetworkJitterMs <= jitterThresholdMs
		},
	},
	{
		name:   "prompt-render",
		delta:  0.05,
		reason: "prompt render with no retries rules out slow-load artifacts",
		when: func(s claim.ActivitySignals) bool {
			return s.RenderDelayMs > 0 && s.RenderDelayMs <= fastRenderThresholdMs && s.AdaptiveRetries == 0
		},
	},
}

// Calibrate refines a finding's confidence using the observation's stability
// signals. It applies only to silent-failure classifications; everything else
// passes through untouched. Classification and status are never modified.
func Calibrate(original float64, obs *claim.Observation, f claim.Finding) claim.Confidence {
	out := claim.Confidence{
		OriginalScore:   round3(original),
		CalibratedScore: round3(original),
	}
	if obs == nil || f.Classification.Kind != claim.ClassSilentFailure {
		return out
	}

	total := 0.0
	for _, rule := range calibrationRules {
		if !rule.when(obs.Signals) {
			continue
		}
		total += rule.delta
		out.Adjustments = append(out.Adjustments, claim.Adjustment{
			Rule:   rule.name,
			Delta:  rule.delta,
			Reason: rule.reason,
		})
	}

	total = clamp(total, minTotalDelta, maxTotalDelta)
	out.CalibratedScore = round3(clamp(original+total, 0, 1))
	out.AppliedCalibration = true
	return out
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
