package runstate

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFinalize_CompleteNoFindings(t *testing.T) {
	tr := NewTracker()
	tr.RecordDiscovered(2)
	tr.RecordAnalyzed("e1")
	tr.RecordAnalyzed("e2")

	snap := tr.Finalize()

	if snap.State != StateComplete {
		t.Fatalf("state = %s, want COMPLETE", snap.State)
	}
	if got := tr.ExitCode(); got != ExitClean {
		t.Errorf("exit = %d, want %d", got, ExitClean)
	}
}

func TestFinalize_CompleteWithFindings(t *testing.T) {
	tr := NewTracker()
	tr.RecordDiscovered(1)
	tr.RecordAnalyzed("e1")
	tr.RecordFindings(3)

	if got := tr.ExitCode(); got != ExitFindings {
		t.Errorf("exit = %d, want %d", got, ExitFindings)
	}
}

func TestFinalize_EmptyProjectStaysComplete(t *testing.T) {
	tr := NewTracker()

	snap := tr.Finalize()

	if snap.State != StateComplete {
		t.Errorf("state = %s, want COMPLETE for an empty project", snap.State)
	}
	if got := tr.ExitCode(); got != ExitClean {
		t.Errorf("exit = %d, want %d", got, ExitClean)
	}
}

func TestFinalize_SystemicSkipForcesIncomplete(t *testing.T) {
	// Ten discovered, nine analyzed, one systemic skip: INCOMPLETE and 66
	// regardless of the findings count.
	tr := NewTracker()
	tr.RecordDiscovered(10)
	for _, id := range []string{"e1", "e2", "e3", "e4", "e5", "e6", "e7", "e8", "e9"} {
		tr.RecordAnalyzed(id)
	}
	tr.RecordSkip("e10", SkipTotalTimeout, "run budget exhausted")
	tr.RecordFindings(4)

	snap := tr.Finalize()

	if snap.State != StateIncomplete {
		t.Fatalf("state = %s, want INCOMPLETE", snap.State)
	}
	if got := tr.ExitCode(); got != ExitIncomplete {
		t.Errorf("exit = %d, want %d", got, ExitIncomplete)
	}
	if len(snap.SkipReasons) != 1 || !snap.SkipReasons[0].Systemic {
		t.Errorf("skip reasons = %+v, want one systemic entry", snap.SkipReasons)
	}
}

func TestFinalize_IntentionalSkipsStayComplete(t *testing.T) {
	tr := NewTracker()
	tr.RecordDiscovered(2)
	tr.RecordAnalyzed("e1")
	tr.RecordSkip("e2", "destructive-action", "delete button excluded by safety policy")

	snap := tr.Finalize()

	if snap.State != StateComplete {
		t.Errorf("state = %s, want COMPLETE with non-systemic skips", snap.State)
	}
}

func TestFinalize_DroppedFindingsForceFailed(t *testing.T) {
	tr := NewTracker()
	tr.RecordDiscovered(1)
	tr.RecordAnalyzed("e1")
	tr.RecordDropped(2, "schema violation")

	snap := tr.Finalize()

	if snap.State != StateFailed {
		t.Fatalf("state = %s, want FAILED", snap.State)
	}
	if got := tr.ExitCode(); got != ExitFailed {
		t.Errorf("exit = %d, want %d", got, ExitFailed)
	}
	if snap.FirstFault == "" {
		t.Error("want first fault retained")
	}
}

func TestFinalize_FailedIsFinal(t *testing.T) {
	tr := NewTracker()
	tr.RecordFault("first")
	tr.RecordFault("second")
	tr.RecordDiscovered(1)
	tr.RecordAnalyzed("e1")

	snap := tr.Finalize()

	if snap.State != StateFailed {
		t.Fatalf("state = %s, want FAILED", snap.State)
	}
	if snap.FirstFault != "first" {
		t.Errorf("first fault = %q, want the first violation retained", snap.FirstFault)
	}
}

func TestFinalize_StableUnderRepeatedCalls(t *testing.T) {
	tr := NewTracker()
	tr.RecordDiscovered(1)
	tr.RecordAnalyzed("e1")
	tr.RecordFindings(1)

	first := tr.Finalize()
	tr.RecordFindings(99) // post-finalize mutation must not leak into snapshots
	second := tr.Finalize()

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("finalize not stable (-first +second):\n%s", diff)
	}
}

func TestVerifyInvariants(t *testing.T) {
	t.Run("balanced accounting passes", func(t *testing.T) {
		tr := NewTracker()
		tr.RecordDiscovered(2)
		tr.RecordAnalyzed("e1")
		tr.RecordSkip("e2", "not-interactable", "")
		if err := tr.VerifyInvariants(); err != nil {
			t.Errorf("unexpected invariant error: %v", err)
		}
	})

	t.Run("accounting mismatch fails", func(t *testing.T) {
		tr := NewTracker()
		tr.RecordDiscovered(3)
		tr.RecordAnalyzed("e1")
		if err := tr.VerifyInvariants(); err == nil {
			t.Error("want error for analyzed+skipped != discovered")
		}
	})

	t.Run("overlapping sets fail", func(t *testing.T) {
		tr := NewTracker()
		tr.RecordDiscovered(1)
		tr.RecordAnalyzed("e1")
		tr.RecordSkip("e1", "timeout", "")
		if err := tr.VerifyInvariants(); err == nil {
			t.Error("want error for an id both analyzed and skipped")
		}
	})
}

func TestDeterminismLevels(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*Tracker)
		want  DeterminismLevel
	}{
		{"no factors is golden", func(_ *Tracker) {}, LevelGolden},
		{"benign factor is stable", func(tr *Tracker) {
			tr.RecordFactor("adaptive-retry", false, "2 retries on #pay")
		}, LevelStable},
		{"risky factor is volatile", func(tr *Tracker) {
			tr.RecordFactor("adaptive-retry", false, "")
			tr.RecordFactor("network-jitter", true, "p95 420ms")
		}, LevelVolatile},
		{"systemic skip is volatile", func(tr *Tracker) {
			tr.RecordDiscovered(1)
			tr.RecordSkip("e1", SkipInfraCrash, "browser died")
		}, LevelVolatile},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTracker()
			tt.setup(tr)
			if got := tr.Finalize().Determinism.Level; got != tt.want {
				t.Errorf("level = %s, want %s", got, tt.want)
			}
		})
	}
}
