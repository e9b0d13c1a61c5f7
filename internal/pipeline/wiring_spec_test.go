package pipeline

import (
	"context"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"vigil/internal/claim"
	"vigil/internal/decision"
	"vigil/internal/runstate"
)

var _ = ginkgo.Describe("Run", func() {
	ginkgo.It("carries a silent failure from observation to verdict and exit code", func() {
		src := claim.Source{File: "src/checkout.tsx", Line: 88, Column: 3}
		e := claim.Expectation{
			ID:      claim.ExpectationID(src, "navigate", "/checkout"),
			Type:    "navigation",
			Promise: claim.Promise{Kind: "navigate", Value: "/checkout"},
			Source:  src,
		}
		in := Input{
			Expectations: []claim.Expectation{e},
			Observations: []claim.Observation{{
				ExpectationID: e.ID,
				Attempted:     true,
				Observed:      false,
				Cause:         claim.CauseBlocked,
				EvidenceFiles: []string{"checkout-before.png", "checkout-after.png"},
				Signals:       claim.ActivitySignals{DOMChangeCount: 1},
			}},
			Signals: decision.Bundle{
				Flows:   []decision.FlowResult{{Name: "purchase", Outcome: decision.OutcomeSuccess}},
				Journey: decision.VerdictFriction,
			},
		}

		r, err := NewRunner(nil)
		gomega.Expect(err).To(gomega.Succeed())

		sum, err := r.Run(context.Background(), in)
		gomega.Expect(err).To(gomega.Succeed())
		gomega.Expect(sum).NotTo(gomega.BeNil())

		gomega.Expect(sum.Findings).To(gomega.HaveLen(1))
		f := sum.Findings[0]
		gomega.Expect(f.Classification.String()).To(gomega.Equal("silent-failure:blocked"))
		gomega.Expect(f.Impact).To(gomega.Equal(claim.SeverityHigh))
		gomega.Expect(f.Confidence.CalibratedScore).To(gomega.BeNumerically(">", 0))
		gomega.Expect(f.Status).To(gomega.Equal(claim.StatusConfirmed))

		gomega.Expect(sum.RunState.State).To(gomega.Equal(runstate.StateComplete))
		gomega.Expect(sum.ProcessExitCode).To(gomega.Equal(runstate.ExitFindings))

		gomega.Expect(sum.Decision.FinalVerdict).To(gomega.Equal(decision.VerdictFriction))
		gomega.Expect(sum.Decision.VerdictSource).To(gomega.Equal(decision.SourceJourneyDowngrade))
		gomega.Expect(sum.Decision.ExitCode).To(gomega.Equal(0))
	})

	ginkgo.It("treats an empty input as a complete empty project", func() {
		r, err := NewRunner(nil)
		gomega.Expect(err).To(gomega.Succeed())

		sum, err := r.Run(context.Background(), Input{})
		gomega.Expect(err).To(gomega.Succeed())

		gomega.Expect(sum.Findings).To(gomega.BeEmpty())
		gomega.Expect(sum.RunState.State).To(gomega.Equal(runstate.StateComplete))
		gomega.Expect(sum.ProcessExitCode).To(gomega.Equal(runstate.ExitClean))
		gomega.Expect(sum.Decision.VerdictSource).To(gomega.Equal(decision.SourceInsufficientData))
	})
})
