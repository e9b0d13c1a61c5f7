// Package runstate accumulates discovery, analysis, and skip accounting for
// one run, verifies the accounting invariants, classifies the run's
// determinism level, and derives the process exit code. Record calls are
// serialized behind a mutex; finalization freezes the tracker into a
// read-only snapshot.
package runstate

import (
	"fmt"
	"sort"
	"sync"
)

// State is the run-level analysis outcome.
type State string

const (
	StateComplete   State = "ANALYSIS_COMPLETE"
	StateIncomplete State = "ANALYSIS_INCOMPLETE"
	StateFailed     State = "ANALYSIS_FAILED"
)

// stateRank orders states from best to worst; the machine only moves down.
var stateRank = map[State]int{
	StateComplete:   0,
	StateIncomplete: 1,
	StateFailed:     2,
}

// Process exit codes. This contract is fixed; changing it is a breaking
// change for every caller scripting against the binary.
const (
	ExitClean      = 0  // complete, no findings
	ExitFindings   = 1  // complete, findings present
	ExitFailed     = 2  // internal fault or contract violation
	ExitIncomplete = 66 // timeout, systemic skip, or budget exceeded
)

// Systemic skip codes: these indicate the run itself was compromised, not
// that one expectation was intentionally passed over.
const (
	SkipTotalTimeout   = "total-timeout"
	SkipInfraCrash     = "infra-crash"
	SkipBudgetExceeded = "budget-exceeded"
)

var systemicCodes = map[string]bool{
	SkipTotalTimeout:   true,
	SkipInfraCrash:     true,
	SkipBudgetExceeded: true,
}

// SkipReason explains why one expectation was not analyzed.
type SkipReason struct {
	ExpectationID string `json:"expectation_id"`
	Code          string `json:"code"`
	Systemic      bool   `json:"systemic"`
	Detail        string `json:"detail,omitempty"`
}

// DeterminismLevel is the run's self-assessed reproducibility.
type DeterminismLevel string

const (
	LevelGolden   DeterminismLevel = "golden"   // no risk factors recorded
	LevelStable   DeterminismLevel = "stable"   // only benign factors (retries)
	LevelVolatile DeterminismLevel = "volatile" // jitter, timeouts, systemic skips
)

// Factor is one recorded determinism risk.
type Factor struct {
	Code   string `json:"code"`
	Risky  bool   `json:"risky"`
	Detail string `json:"detail,omitempty"`
}

// Determinism is the run's reproducibility block.
type Determinism struct {
	Level   DeterminismLevel `json:"level"`
	Factors []Factor         `json:"factors,omitempty"`
}

// Snapshot is the frozen run state suitable for direct serialization.
type Snapshot struct {
	State         State        `json:"state"`
	Discovered    int          `json:"discovered"`
	Analyzed      int          `json:"analyzed"`
	Skipped       int          `json:"skipped"`
	FindingsCount int          `json:"findings_count"`
	SkipReasons   []SkipReason `json:"skip_reasons,omitempty"`
	FirstFault    string       `json:"first_fault,omitempty"`
	Determinism   Determinism  `json:"determinism"`
}

// Tracker is the single-writer run accumulator. Create with NewTracker at
// run start; mutate via Record calls; Finalize exactly once logically —
// repeated calls return the same frozen snapshot.
type Tracker struct {
	mu sync.Mutex

	discovered    int
	analyzed      map[string]struct{}
	skipped       map[string]struct{}
	skipReasons   []SkipReason
	findingsCount int
	factors       []Factor

	state      State
	firstFault string

	finalized bool
	snapshot  Snapshot
}

// NewTracker returns a tracker with zero counts in the optimistic COMPLETE
// state; any systemic skip or fault degrades it.
func NewTracker() *Tracker {
	return &Tracker{
		state:    StateComplete,
		analyzed: make(map[string]struct{}),
		skipped:  make(map[string]struct{}),
	}
}

// RecordDiscovered adds to the discovered expectation count.
func (t *Tracker) RecordDiscovered(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.discovered += n
}

// RecordAnalyzed marks one expectation as classified.
func (t *Tracker) RecordAnalyzed(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.analyzed[id] = struct{}{}
}

// RecordSkip marks one expectation as skipped with a structured reason.
// A systemic reason degrades the run to INCOMPLETE regardless of counts.
func (t *Tracker) RecordSkip(id, code, detail string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	systemic := systemicCodes[code]
	t.skipped[id] = struct{}{}
	t.skipReasons = append(t.skipReasons, SkipReason{
		ExpectationID: id,
		Code:          code,
		Systemic:      systemic,
		Detail:        detail,
	})
	if systemic {
		t.degrade(StateIncomplete)
		t.factors = append(t.factors, Factor{Code: "systemic-skip:" + code, Risky: true, Detail: detail})
	}
}

// RecordDropped reports findings dropped by contract enforcement. Dropping
// is a pipeline fault, never a data condition: the run fails.
func (t *Tracker) RecordDropped(n int, detail string) {
	if n <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fail(fmt.Sprintf("contract enforcement dropped %d finding(s): %s", n, detail))
}

// RecordFault marks the run as failed, retaining the first fault only.
func (t *Tracker) RecordFault(detail string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fail(detail)
}

// RecordFindings sets the actionable findings count used by the exit code.
func (t *Tracker) RecordFindings(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.findingsCount = n
}

// RecordFactor adds one determinism risk factor.
func (t *Tracker) RecordFactor(code string, risky bool, detail string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.factors = append(t.factors, Factor{Code: code, Risky: risky, Detail: detail})
}

// fail degrades to FAILED and keeps the first fault. Callers hold the lock.
func (t *Tracker) fail(detail string) {
	t.degrade(StateFailed)
	if t.firstFault == "" {
		t.firstFault = detail
	}
}

// degrade moves the state machine one direction only. Callers hold the lock.
func (t *Tracker) degrade(s State) {
	if stateRank[s] > stateRank[t.state] {
		t.state = s
	}
}

// VerifyInvariants checks the accounting: every discovered expectation is
// either analyzed or skipped, never both. A violation is a pipeline fault —
// the caller must fail the run, not correct the numbers.
func (t *Tracker) VerifyInvariants() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id := range t.analyzed {
		if _, ok := t.skipped[id]; ok {
			return fmt.Errorf("expectation %s both analyzed and skipped", id)
		}
	}
	if got := len(t.analyzed) + len(t.skipped); got != t.discovered {
		return fmt.Errorf("accounting mismatch: analyzed %d + skipped %d != discovered %d",
			len(t.analyzed), len(t.skipped), t.discovered)
	}
	return nil
}

// Finalize derives the final state and freezes the tracker. Order of rules:
// an explicit FAILED is final; zero discovered keeps COMPLETE only for the
// empty-project case; systemic skips force INCOMPLETE; otherwise COMPLETE
// even with intentional skips. Stable under repeated calls.
func (t *Tracker) Finalize() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.finalized {
		return t.snapshot
	}

	switch {
	case t.state == StateFailed:
		// final
	case t.discovered == 0:
		if t.state != StateComplete {
			t.state = StateIncomplete
		}
	case t.hasSystemicSkip():
		t.state = StateIncomplete
	case t.state == StateIncomplete:
		// degraded earlier; preserved
	default:
		t.state = StateComplete
	}

	reasons := append([]SkipReason(nil), t.skipReasons...)
	sort.SliceStable(reasons, func(i, j int) bool {
		return reasons[i].ExpectationID < reasons[j].ExpectationID
	})

	t.snapshot = Snapshot{
		State:         t.state,
		Discovered:    t.discovered,
		Analyzed:      len(t.analyzed),
		Skipped:       len(t.skipped),
		FindingsCount: t.findingsCount,
		SkipReasons:   reasons,
		FirstFault:    t.firstFault,
		Determinism:   deriveDeterminism(t.factors),
	}
	t.finalized = true
	return t.snapshot
}

func (t *Tracker) hasSystemicSkip() bool {
	for _, r := range t.skipReasons {
		if r.Systemic {
			return true
		}
	}
	return false
}

// ExitCode derives the process exit code from the finalized state. Fixed
// precedence: FAILED, then INCOMPLETE, then findings-or-clean.
func (t *Tracker) ExitCode() int {
	snap := t.Finalize()
	switch snap.State {
	case StateFailed:
		return ExitFailed
	case StateIncomplete:
		return ExitIncomplete
	default:
		if snap.FindingsCount > 0 {
			return ExitFindings
		}
		return ExitClean
	}
}

// deriveDeterminism classifies the run's reproducibility from its factors.
func deriveDeterminism(factors []Factor) Determinism {
	d := Determinism{Level: LevelGolden, Factors: append([]Factor(nil), factors...)}
	for _, f := range factors {
		if f.Risky {
			d.Level = LevelVolatile
			return d
		}
		d.Level = LevelStable
	}
	return d
}
