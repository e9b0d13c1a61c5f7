package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"vigil/internal/config"
	"vigil/internal/format"
	"vigil/internal/pipeline"
)

var (
	flagExpectations  string
	flagObservations  string
	flagSignals       string
	flagSkips         string
	flagEvidence      string
	flagRules         string
	flagConfig        string
	flagOut           string
	flagTableFormat   string
	flagReadinessExit bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run the evidence-to-verdict pipeline over one run's inputs",
	Long: `Reads expectations, observations, and the signals bundle, classifies every
expectation, validates the findings, and computes the launch decision.

The process exits with the run-state contract: 0 complete with no findings,
1 complete with findings, 2 failed, 66 incomplete. With --readiness-exit the
process exits with the decision's readiness code instead (READY/FRICTION 0,
DO_NOT_LAUNCH 2); the two contracts are never mixed.`,
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVarP(&flagExpectations, "expectations", "e", "", "expectations file (JSON or YAML, required)")
	analyzeCmd.Flags().StringVarP(&flagObservations, "observations", "b", "", "observations file")
	analyzeCmd.Flags().StringVarP(&flagSignals, "signals", "s", "", "signals bundle file")
	analyzeCmd.Flags().StringVar(&flagSkips, "skips", "", "skip records file")
	analyzeCmd.Flags().StringVar(&flagEvidence, "evidence", "", "evidence cross-linkage file from the artifact layer")
	analyzeCmd.Flags().StringVar(&flagRules, "rules", "", "launch rules file (overrides config)")
	analyzeCmd.Flags().StringVarP(&flagConfig, "config", "c", "", "pipeline config file")
	analyzeCmd.Flags().StringVarP(&flagOut, "out", "o", "", "write the run summary JSON to this file")
	analyzeCmd.Flags().StringVar(&flagTableFormat, "format", "ascii", "summary table format (ascii, markdown)")
	analyzeCmd.Flags().BoolVar(&flagReadinessExit, "readiness-exit", false, "exit with the decision's readiness code instead of the run-state code")
	_ = analyzeCmd.MarkFlagRequired("expectations")
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadFromPath(flagConfig)
	if err != nil {
		return err
	}
	if flagRules != "" {
		cfg.RulesPath = flagRules
	}

	in, err := pipeline.LoadInput(pipeline.InputPaths{
		Expectations: flagExpectations,
		Observations: flagObservations,
		Signals:      flagSignals,
		Skips:        flagSkips,
		Evidence:     flagEvidence,
	})
	if err != nil {
		return err
	}

	runner, err := pipeline.NewRunner(cfg)
	if err != nil {
		return err
	}
	sum, err := runner.Run(cmd.Context(), in)
	if err != nil {
		return err
	}

	mode := format.ParseMode(flagTableFormat)
	fmt.Fprintln(cmd.OutOrStdout(), findingsTable(sum, mode))
	fmt.Fprintln(cmd.OutOrStdout(), verdictTable(sum, mode))

	if flagOut != "" {
		data, err := json.MarshalIndent(sum, "", "  ")
		if err != nil {
			return fmt.Errorf("encode summary: %w", err)
		}
		if err := os.WriteFile(flagOut, append(data, '\n'), 0o644); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
	}

	code := sum.ProcessExitCode
	if flagReadinessExit {
		code = sum.Decision.ExitCode
	}
	if code != 0 {
		os.Exit(code)
	}
	return nil
}

func findingsTable(sum *pipeline.RunSummary, mode format.Mode) string {
	tb := format.NewTable(mode)
	tb.Header("EXPECTATION", "SOURCE", "CLASSIFICATION", "IMPACT", "STATUS", "CONFIDENCE")
	actionable := 0
	for _, f := range sum.Findings {
		if f.Actionable() {
			actionable++
		}
		tb.Row(
			f.ID,
			fmt.Sprintf("%s:%d", f.Source.File, f.Source.Line),
			f.Classification.String(),
			string(f.Impact),
			string(f.Status),
			fmt.Sprintf("%.3f", f.Confidence.CalibratedScore),
		)
	}
	tb.Footer("", "", "", "", "actionable", actionable)
	tb.Columns(format.Column{Number: 6, Align: format.AlignRight})
	return tb.String()
}

func verdictTable(sum *pipeline.RunSummary, mode format.Mode) string {
	tb := format.NewTable(mode)
	tb.Header("VERDICT", "SOURCE", "READINESS EXIT", "RUN STATE", "DETERMINISM", "PROCESS EXIT")
	tb.Row(
		string(sum.Decision.FinalVerdict),
		string(sum.Decision.VerdictSource),
		sum.Decision.ExitCode,
		string(sum.RunState.State),
		string(sum.RunState.Determinism.Level),
		sum.ProcessExitCode,
	)
	return tb.String()
}
