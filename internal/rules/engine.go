// Package rules evaluates launch rules over the run's signals bundle and
// produces the precomputed verdict the decision authority consumes with
// absolute precedence. Rules are priority-ordered; each carries a boolean
// expression over the signal summary; the first match wins. With no rule
// file, or no matching rule, the engine yields nothing and the decision
// authority falls through to its own chain.
package rules

import (
	"fmt"
	"sort"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"vigil/internal/decision"
)

// Env is the expression environment: a flattened summary of the signals
// bundle, so rule authors write conditions like
// "Failures == 0 && CoverageRatio >= 0.9".
type Env struct {
	Successes     int
	Frictions     int
	Failures      int
	NotApplicable int
	Regressions   int
	PolicyPassed  bool
	PolicyExit    int
	CoverageRatio float64
	Journey       string
}

// Rule is one launch rule. An empty condition matches every run.
type Rule struct {
	ID        string           `json:"id" yaml:"id"`
	Name      string           `json:"name,omitempty" yaml:"name,omitempty"`
	Priority  int              `json:"priority" yaml:"priority"`
	Condition string           `json:"condition,omitempty" yaml:"condition,omitempty"`
	Verdict   decision.Verdict `json:"verdict" yaml:"verdict"`
	Reason    string           `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// RuleSet is a versioned, ordered collection of launch rules.
type RuleSet struct {
	Version string `json:"version" yaml:"version"`
	Rules   []Rule `json:"rules" yaml:"rules"`

	programs []*vm.Program
}

// Compile validates every rule expression up front so a malformed rule file
// fails at load time, not mid-run. Rules are sorted by descending priority,
// ties broken by ID for reproducibility.
func (rs *RuleSet) Compile() error {
	sort.SliceStable(rs.Rules, func(i, j int) bool {
		if rs.Rules[i].Priority != rs.Rules[j].Priority {
			return rs.Rules[i].Priority > rs.Rules[j].Priority
		}
		return rs.Rules[i].ID < rs.Rules[j].ID
	})

	rs.programs = make([]*vm.Program, len(rs.Rules))
	for i, r := range rs.Rules {
		if err := validVerdict(r.Verdict); err != nil {
			return fmt.Errorf("rule %s: %w", r.ID, err)
		}
		if r.Condition == "" {
			continue
		}
		prog, err := expr.Compile(r.Condition, expr.Env(Env{}), expr.AsBool())
		if err != nil {
			return fmt.Errorf("rule %s: compile condition: %w", r.ID, err)
		}
		rs.programs[i] = prog
	}
	return nil
}

func validVerdict(v decision.Verdict) error {
	switch v {
	case decision.VerdictReady, decision.VerdictFriction, decision.VerdictDoNotLaunch:
		return nil
	default:
		return fmt.Errorf("unknown verdict %q", v)
	}
}

// Evaluate runs the compiled rules against the bundle and returns the first
// match as a rules verdict, or nil when no rule fires.
func (rs *RuleSet) Evaluate(sig decision.Bundle) (*decision.RulesVerdict, error) {
	if rs == nil || len(rs.Rules) == 0 {
		return nil, nil
	}
	if rs.programs == nil {
		if err := rs.Compile(); err != nil {
			return nil, err
		}
	}

	env := buildEnv(sig)
	for i, r := range rs.Rules {
		matched := true
		if prog := rs.programs[i]; prog != nil {
			out, err := expr.Run(prog, env)
			if err != nil {
				return nil, fmt.Errorf("rule %s: evaluate: %w", r.ID, err)
			}
			matched = out.(bool)
		}
		if matched {
			return &decision.RulesVerdict{
				Verdict:  r.Verdict,
				RuleID:   r.ID,
				Reason:   r.Reason,
				ExitCode: decision.ExitFor(r.Verdict),
			}, nil
		}
	}
	return nil, nil
}

// buildEnv flattens the signals bundle into the expression environment.
func buildEnv(sig decision.Bundle) Env {
	env := Env{Journey: string(sig.Journey)}
	tally := func(o decision.Outcome) {
		switch o {
		case decision.OutcomeSuccess:
			env.Successes++
		case decision.OutcomeFriction:
			env.Frictions++
		case decision.OutcomeFailure:
			env.Failures++
		case decision.OutcomeNotApplicable:
			env.NotApplicable++
		}
	}
	for _, f := range sig.Flows {
		tally(f.Outcome)
	}
	for _, a := range sig.Attempts {
		tally(a.Outcome)
	}
	if sig.Baseline != nil {
		env.Regressions = len(sig.Baseline.Regressions)
	}
	if sig.Policy != nil {
		env.PolicyPassed = sig.Policy.Passed
		env.PolicyExit = sig.Policy.ExitCode
	} else {
		env.PolicyPassed = true
	}
	if sig.Coverage != nil && sig.Coverage.Discovered > 0 {
		env.CoverageRatio = float64(sig.Coverage.Analyzed) / float64(sig.Coverage.Discovered)
	}
	return env
}
