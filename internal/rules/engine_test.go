package rules

import (
	"testing"

	"vigil/internal/decision"
)

func TestEvaluate_FirstMatchByPriority(t *testing.T) {
	rs := &RuleSet{Version: "1", Rules: []Rule{
		{ID: "allow-clean", Priority: 10, Condition: "Failures == 0", Verdict: decision.VerdictReady},
		{ID: "block-regressions", Priority: 100, Condition: "Regressions > 0", Verdict: decision.VerdictDoNotLaunch, Reason: "baseline regressed"},
	}}
	if err := rs.Compile(); err != nil {
		t.Fatalf("compile: %v", err)
	}

	sig := decision.Bundle{
		Flows:    []decision.FlowResult{{Outcome: decision.OutcomeSuccess}},
		Baseline: &decision.BaselineComparison{Regressions: []string{"cart badge"}},
	}

	got, err := rs.Evaluate(sig)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if got == nil || got.RuleID != "block-regressions" {
		t.Fatalf("got %+v, want the higher-priority rule", got)
	}
	if got.Verdict != decision.VerdictDoNotLaunch || got.ExitCode != decision.ExitDoNotLaunch {
		t.Errorf("verdict/exit = %s/%d, want DO_NOT_LAUNCH/2", got.Verdict, got.ExitCode)
	}
}

func TestEvaluate_NoMatchYieldsNil(t *testing.T) {
	rs := &RuleSet{Rules: []Rule{
		{ID: "only-on-failures", Priority: 1, Condition: "Failures > 0", Verdict: decision.VerdictDoNotLaunch},
	}}
	if err := rs.Compile(); err != nil {
		t.Fatalf("compile: %v", err)
	}

	got, err := rs.Evaluate(decision.Bundle{Flows: []decision.FlowResult{{Outcome: decision.OutcomeSuccess}}})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if got != nil {
		t.Errorf("got %+v, want nil when no rule fires", got)
	}
}

func TestEvaluate_EmptyConditionMatchesAll(t *testing.T) {
	rs := &RuleSet{Rules: []Rule{
		{ID: "default-block", Priority: 0, Verdict: decision.VerdictDoNotLaunch},
	}}
	if err := rs.Compile(); err != nil {
		t.Fatalf("compile: %v", err)
	}

	got, err := rs.Evaluate(decision.Bundle{})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if got == nil || got.RuleID != "default-block" {
		t.Errorf("got %+v, want the unconditional rule", got)
	}
}

func TestEvaluate_CoverageRatio(t *testing.T) {
	rs := &RuleSet{Rules: []Rule{
		{ID: "low-coverage", Priority: 5, Condition: "CoverageRatio < 0.8", Verdict: decision.VerdictFriction, Reason: "thin coverage"},
	}}
	if err := rs.Compile(); err != nil {
		t.Fatalf("compile: %v", err)
	}

	got, err := rs.Evaluate(decision.Bundle{Coverage: &decision.Coverage{Discovered: 10, Analyzed: 6}})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if got == nil || got.Verdict != decision.VerdictFriction {
		t.Errorf("got %+v, want FRICTION on 60%% coverage", got)
	}
}

func TestCompile_RejectsBadRules(t *testing.T) {
	tests := []struct {
		name string
		rule Rule
	}{
		{"bad expression", Rule{ID: "r1", Condition: "Failures >!< 1", Verdict: decision.VerdictReady}},
		{"non-boolean expression", Rule{ID: "r2", Condition: "Failures + 1", Verdict: decision.VerdictReady}},
		{"unknown verdict", Rule{ID: "r3", Verdict: decision.Verdict("LAUNCH_MAYBE")}},
		{"unknown identifier", Rule{ID: "r4", Condition: "Bogus > 0", Verdict: decision.VerdictReady}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs := &RuleSet{Rules: []Rule{tt.rule}}
			if err := rs.Compile(); err == nil {
				t.Error("want compile error")
			}
		})
	}
}

func TestLoad_YAMLAndJSON(t *testing.T) {
	yamlSrc := []byte(`
version: "1"
rules:
  - id: block-failures
    priority: 100
    condition: "Failures > 0"
    verdict: DO_NOT_LAUNCH
    reason: flows failed
`)
	jsonSrc := []byte(`{"version":"1","rules":[{"id":"block-failures","priority":100,"condition":"Failures > 0","verdict":"DO_NOT_LAUNCH"}]}`)

	for _, tc := range []struct {
		name string
		data []byte
		ext  string
	}{
		{"yaml by extension", yamlSrc, ".yaml"},
		{"json by extension", jsonSrc, ".json"},
		{"yaml by content", yamlSrc, ""},
		{"json by content", jsonSrc, ""},
	} {
		t.Run(tc.name, func(t *testing.T) {
			rs, err := Load(tc.data, tc.ext)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			sig := decision.Bundle{Flows: []decision.FlowResult{{Outcome: decision.OutcomeFailure}}}
			got, err := rs.Evaluate(sig)
			if err != nil {
				t.Fatalf("evaluate: %v", err)
			}
			if got == nil || got.Verdict != decision.VerdictDoNotLaunch {
				t.Errorf("got %+v, want DO_NOT_LAUNCH", got)
			}
		})
	}
}
