package determinism

import (
	"testing"
)

type summary struct {
	RunID     string         `json:"run_id"`
	StartedAt string         `json:"started_at"`
	TotalMs   int64          `json:"total_ms"`
	State     string         `json:"state"`
	Counts    map[string]int `json:"counts"`
	Findings  []finding      `json:"findings"`
	Artifacts []string       `json:"artifacts"`
}

type finding struct {
	ID             string  `json:"id"`
	Classification string  `json:"classification"`
	Confidence     float64 `json:"confidence"`
}

func baseSummary() summary {
	return summary{
		RunID:     "run-abc",
		StartedAt: "2026-01-15T10:00:00Z",
		TotalMs:   5321,
		State:     "ANALYSIS_COMPLETE",
		Counts:    map[string]int{"discovered": 3, "analyzed": 3},
		Findings: []finding{
			{ID: "e1", Classification: "observed", Confidence: 1.0},
			{ID: "e2", Classification: "silent-failure:blocked", Confidence: 0.65},
		},
		Artifacts: []string{"/tmp/run-a/shots/e2.png"},
	}
}

func TestCompare_SelfIsIdentical(t *testing.T) {
	s := baseSummary()
	rep, err := Compare(s, s, Options{})
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if !rep.Identical || len(rep.Differences) != 0 {
		t.Errorf("self-compare not identical: %+v", rep.Differences)
	}
}

func TestCompare_VolatileFieldsIgnored(t *testing.T) {
	a := baseSummary()
	b := baseSummary()
	b.RunID = "run-xyz"
	b.StartedAt = "2026-01-15T11:59:59Z"
	b.TotalMs = 9999

	rep, err := Compare(a, b, Options{})
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if !rep.Identical {
		t.Errorf("volatile-only divergence reported: %+v", rep.Differences)
	}
}

func TestCompare_PathRewriting(t *testing.T) {
	a := baseSummary()
	b := baseSummary()
	b.Artifacts = []string{"/tmp/run-b/shots/e2.png"}

	rep, err := Compare(a, b, Options{BaseA: "/tmp/run-a", BaseB: "/tmp/run-b"})
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if !rep.Identical {
		t.Errorf("base-relative paths reported as divergence: %+v", rep.Differences)
	}
}

func TestCompare_ValueMismatch(t *testing.T) {
	a := baseSummary()
	b := baseSummary()
	b.State = "ANALYSIS_INCOMPLETE"

	rep, _ := Compare(a, b, Options{})

	if rep.Identical {
		t.Fatal("semantic divergence not reported")
	}
	if rep.Differences[0].Type != DiffValueMismatch || rep.Differences[0].Path != "$.state" {
		t.Errorf("got %+v, want value-mismatch at $.state", rep.Differences[0])
	}
}

func TestCompare_MissingKey(t *testing.T) {
	a := map[string]any{"state": "ok", "counts": 1}
	b := map[string]any{"state": "ok"}

	rep, _ := Compare(a, b, Options{})

	if len(rep.Differences) != 1 || rep.Differences[0].Type != DiffMissingInSecond {
		t.Errorf("got %+v, want one missing-in-second", rep.Differences)
	}

	rep, _ = Compare(b, a, Options{})
	if len(rep.Differences) != 1 || rep.Differences[0].Type != DiffMissingInFirst {
		t.Errorf("got %+v, want one missing-in-first", rep.Differences)
	}
}

func TestCompare_TypeMismatch(t *testing.T) {
	a := map[string]any{"count": 3}
	b := map[string]any{"count": "3"}

	rep, _ := Compare(a, b, Options{})

	if len(rep.Differences) != 1 || rep.Differences[0].Type != DiffTypeMismatch {
		t.Errorf("got %+v, want one type-mismatch", rep.Differences)
	}
}

func TestCompare_ArrayDivergence(t *testing.T) {
	t.Run("length mismatch", func(t *testing.T) {
		a := map[string]any{"tags": []any{"x", "y"}}
		b := map[string]any{"tags": []any{"x"}}
		rep, _ := Compare(a, b, Options{})
		if len(rep.Differences) != 1 || rep.Differences[0].Type != DiffLengthMismatch {
			t.Errorf("got %+v, want one length-mismatch", rep.Differences)
		}
	})

	t.Run("scalar element mismatch", func(t *testing.T) {
		a := map[string]any{"tags": []any{"x", "y"}}
		b := map[string]any{"tags": []any{"x", "z"}}
		rep, _ := Compare(a, b, Options{})
		if len(rep.Differences) != 1 || rep.Differences[0].Type != DiffArrayMismatch {
			t.Errorf("got %+v, want one array-mismatch", rep.Differences)
		}
		if rep.Differences[0].Path != "$.tags[1]" {
			t.Errorf("path = %s, want $.tags[1]", rep.Differences[0].Path)
		}
	})

	t.Run("nested object element recurses", func(t *testing.T) {
		a := baseSummary()
		b := baseSummary()
		b.Findings[1].Confidence = 0.70
		rep, _ := Compare(a, b, Options{})
		if len(rep.Differences) != 1 || rep.Differences[0].Type != DiffValueMismatch {
			t.Errorf("got %+v, want one value-mismatch", rep.Differences)
		}
	})
}

func TestCompare_KeyOrderIndependent(t *testing.T) {
	a := map[string]any{"alpha": 1, "beta": 2, "gamma": 3}
	b := map[string]any{"gamma": 3, "alpha": 1, "beta": 2}

	rep, _ := Compare(a, b, Options{})

	if !rep.Identical {
		t.Errorf("key order treated as divergence: %+v", rep.Differences)
	}
}

func TestCompare_ExtraVolatileKeys(t *testing.T) {
	a := map[string]any{"state": "ok", "browser_build": "137.0.1"}
	b := map[string]any{"state": "ok", "browser_build": "137.0.2"}

	rep, _ := Compare(a, b, Options{ExtraVolatileKeys: []string{"browser_build"}})

	if !rep.Identical {
		t.Errorf("declared volatile key still compared: %+v", rep.Differences)
	}
}

func TestIsVolatileKey(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"startedAt", true},
		{"finished_at", true},
		{"totalMs", true},
		{"duration_ms", true},
		{"wallTime", true},
		{"run_id", true},
		{"runId", true},
		{"pid", true},
		{"timestamp", true},
		{"format", false},
		{"state", false},
		{"classification", false},
		{"atlas", false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := isVolatileKey(tt.key); got != tt.want {
				t.Errorf("isVolatileKey(%q) = %v, want %v", tt.key, got, tt.want)
			}
		})
	}
}
