package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"vigil/internal/determinism"
	"vigil/internal/format"
)

var (
	flagBaseA        string
	flagBaseB        string
	flagVolatileKeys []string
)

var compareCmd = &cobra.Command{
	Use:   "compare <summary-a> <summary-b>",
	Short: "Semantically compare two run summaries",
	Long: `Compares two run summary files after stripping volatile fields
(timestamps, durations, run ids) and rewriting each run's artifact root.
Exits 0 when the runs are semantically identical and 1 when they differ.`,
	Args: cobra.ExactArgs(2),
	RunE: runCompare,
}

func init() {
	compareCmd.Flags().StringVar(&flagBaseA, "base-a", "", "artifact root of the first run, rewritten before comparison")
	compareCmd.Flags().StringVar(&flagBaseB, "base-b", "", "artifact root of the second run, rewritten before comparison")
	compareCmd.Flags().StringSliceVar(&flagVolatileKeys, "volatile-key", nil, "additional key to ignore (repeatable)")
	compareCmd.Flags().StringVar(&flagTableFormat, "format", "ascii", "difference table format (ascii, markdown)")
}

func runCompare(cmd *cobra.Command, args []string) error {
	a, err := readJSONValue(args[0])
	if err != nil {
		return err
	}
	b, err := readJSONValue(args[1])
	if err != nil {
		return err
	}

	rep, err := determinism.Compare(a, b, determinism.Options{
		ExtraVolatileKeys: flagVolatileKeys,
		BaseA:             flagBaseA,
		BaseB:             flagBaseB,
	})
	if err != nil {
		return err
	}

	if rep.Identical {
		fmt.Fprintln(cmd.OutOrStdout(), "runs are semantically identical")
		return nil
	}

	tb := format.NewTable(format.ParseMode(flagTableFormat))
	tb.Header("PATH", "TYPE", "FIRST", "SECOND")
	for _, d := range rep.Differences {
		tb.Row(d.Path, string(d.Type), renderValue(d.Value1), renderValue(d.Value2))
	}
	fmt.Fprintln(cmd.OutOrStdout(), tb.String())
	fmt.Fprintf(cmd.OutOrStdout(), "%d difference(s)\n", len(rep.Differences))
	os.Exit(1)
	return nil
}

func readJSONValue(path string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return v, nil
}

func renderValue(v any) string {
	if v == nil {
		return "-"
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
