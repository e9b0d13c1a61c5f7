package classify

import (
	"strings"

	"vigil/internal/claim"
)

// criticalKinds are promise kinds where a miss blocks the user journey
// outright: navigation, form submission, payment, authentication.
var criticalKinds = map[string]bool{
	"navigate": true,
	"submit":   true,
	"payment":  true,
	"auth":     true,
}

// importantKind matches promise kinds that shape what the user perceives:
// feedback.* (toasts, spinners, errors) and state.* (store/url/storage).
func importantKind(kind string) bool {
	return strings.HasPrefix(kind, "feedback.") || strings.HasPrefix(kind, "state.")
}

// DeriveSeverity maps (judgment, promise kind) to a severity level. Pure
// table lookup. Passing judgments mirror the failure table so high-value
// paths that work stay visible in reports.
func DeriveSeverity(judgment claim.Judgment, promiseKind string) claim.Severity {
	kind := strings.ToLower(promiseKind)
	switch judgment {
	case claim.JudgmentFail:
		switch {
		case criticalKinds[kind]:
			return claim.SeverityCritical
		case importantKind(kind):
			return claim.SeverityHigh
		default:
			return claim.SeverityMedium
		}
	case claim.JudgmentNeedsReview:
		if criticalKinds[kind] {
			return claim.SeverityMedium
		}
		return claim.SeverityLow
	case claim.JudgmentWeakPass:
		return claim.SeverityLow
	case claim.JudgmentPass:
		switch {
		case criticalKinds[kind]:
			return claim.SeverityCritical
		case importantKind(kind):
			return claim.SeverityHigh
		default:
			return claim.SeverityMedium
		}
	default:
		return claim.SeverityMedium
	}
}
