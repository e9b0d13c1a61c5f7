// Package constitution enforces the pipeline's certainty rules over a batch
// of findings: status never rises, and every cited evidence file must be
// provably linked to both its observation and the global evidence index.
// The pass only ever downgrades; it never drops a finding and never promotes.
package constitution

import (
	"vigil/internal/claim"
)

// Downgrade notes appended to enrichment when linkage cannot be proven.
const (
	NoteEvidenceNotInObservation = "evidence_not_in_observation"
	NoteEvidenceNotInIndex       = "evidence_not_in_index"
)

// Context supplies the cross-linkage lookup tables built by the artifact
// layer: the global evidence file index and the per-expectation evidence
// recorded during observation.
type Context struct {
	EvidenceFileIndex            map[string]bool
	ObserveEvidenceByExpectation map[string][]string
}

// Result is the validated batch. Valid preserves input order.
type Result struct {
	Valid      []claim.Finding
	Downgraded int
}

// BatchValidate applies the non-upgrade and evidence cross-linkage
// invariants. Idempotent: re-validating Result.Valid yields zero downgrades.
func BatchValidate(findings []claim.Finding, ctx Context) Result {
	res := Result{Valid: make([]claim.Finding, 0, len(findings))}

	observed := make(map[string]map[string]bool, len(ctx.ObserveEvidenceByExpectation))
	for id, files := range ctx.ObserveEvidenceByExpectation {
		set := make(map[string]bool, len(files))
		for _, f := range files {
			set[f] = true
		}
		observed[id] = set
	}

	for _, f := range findings {
		validated, downgraded := validateOne(f, observed, ctx.EvidenceFileIndex)
		if downgraded {
			res.Downgraded++
		}
		res.Valid = append(res.Valid, validated)
	}
	return res
}

// validateOne checks one finding's evidence linkage and lowers its status if
// any citation is unprovable. CONFIRMED is the only status with something to
// lose here; SUSPECTED stays SUSPECTED and is never re-promoted.
func validateOne(f claim.Finding, observed map[string]map[string]bool, index map[string]bool) (claim.Finding, bool) {
	if f.Status != claim.StatusConfirmed {
		return f, false
	}

	// A finding citing no files has nothing to prove: the evidence gate
	// already admitted it on a DOM-change signal.
	var note string
	for _, file := range f.Evidence {
		if !observed[f.ID][file] {
			note = NoteEvidenceNotInObservation
			break
		}
		if !index[file] {
			note = NoteEvidenceNotInIndex
			break
		}
	}
	if note == "" {
		return f, false
	}

	f.Status = downgrade(f.Status)
	f.Enrichment.EvidenceCrossArtifactNotes = append(f.Enrichment.EvidenceCrossArtifactNotes, note)
	return f, true
}

// downgrade lowers a status one certainty step. It can never raise one:
// callers only reach it from CONFIRMED.
func downgrade(s claim.Status) claim.Status {
	if s == claim.StatusConfirmed {
		return claim.StatusSuspected
	}
	return s
}
