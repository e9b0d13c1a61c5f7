// Package mcp exposes the verdict pipeline over the Model Context Protocol:
// agents can run an analysis, compare two run summaries, and classify a
// single expectation/observation pair without shelling out to the CLI.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"vigil/internal/claim"
	"vigil/internal/classify"
	"vigil/internal/config"
	"vigil/internal/determinism"
	"vigil/internal/pipeline"
)

// Server wraps the MCP SDK server around a pipeline runner.
type Server struct {
	MCPServer *sdkmcp.Server
	runner    *pipeline.Runner
	cfg       *config.Config
}

// NewServer creates the MCP server with the analyze, compare, and classify
// tools registered against the given configuration.
func NewServer(cfg *config.Config) (*Server, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	runner, err := pipeline.NewRunner(cfg)
	if err != nil {
		return nil, err
	}
	s := &Server{runner: runner, cfg: cfg}
	s.MCPServer = sdkmcp.NewServer(
		&sdkmcp.Implementation{Name: "vigil", Version: "dev"},
		nil,
	)
	s.registerTools()
	return s, nil
}

// Run serves over the given transport until the context ends.
func (s *Server) Run(ctx context.Context, transport sdkmcp.Transport) error {
	return s.MCPServer.Run(ctx, transport)
}

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "analyze_run",
		Description: "Run the full evidence-to-verdict pipeline over expectations, observations, and signals. Returns the run summary with findings, decision, run state, and process exit code.",
	}, s.handleAnalyzeRun)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "compare_runs",
		Description: "Semantically compare two run summaries, ignoring volatile fields (timestamps, durations, run ids). Returns identical=true or the list of leaf differences.",
	}, s.handleCompareRuns)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "classify_one",
		Description: "Classify a single expectation/observation pair without run accounting. Returns the finding with classification, impact, and calibrated confidence.",
	}, s.handleClassifyOne)
}

// --- Tool input/output types ---

type analyzeRunInput struct {
	Expectations []claim.Expectation `json:"expectations" jsonschema:"statically-derived expectations"`
	Observations []claim.Observation `json:"observations,omitempty" jsonschema:"runtime observations keyed by expectation id"`
	SignalsJSON  string              `json:"signals_json,omitempty" jsonschema:"signals bundle as a JSON string (flows, attempts, policy, journey, baseline)"`
	SkipsJSON    string              `json:"skips_json,omitempty" jsonschema:"skip records as a JSON array string"`
}

type analyzeRunOutput struct {
	Summary *pipeline.RunSummary `json:"summary"`
}

type compareRunsInput struct {
	SummaryA json.RawMessage `json:"summary_a" jsonschema:"first run summary as JSON"`
	SummaryB json.RawMessage `json:"summary_b" jsonschema:"second run summary as JSON"`
	BaseA    string          `json:"base_a,omitempty" jsonschema:"artifact root of the first run, rewritten before comparison"`
	BaseB    string          `json:"base_b,omitempty" jsonschema:"artifact root of the second run, rewritten before comparison"`
}

type compareRunsOutput struct {
	Report determinism.Report `json:"report"`
}

type classifyOneInput struct {
	Expectation claim.Expectation  `json:"expectation" jsonschema:"the expectation to classify"`
	Observation *claim.Observation `json:"observation,omitempty" jsonschema:"the matching observation, if any"`
}

type classifyOneOutput struct {
	Finding claim.Finding `json:"finding"`
}

// --- Tool handlers ---

func (s *Server) handleAnalyzeRun(ctx context.Context, _ *sdkmcp.CallToolRequest, input analyzeRunInput) (*sdkmcp.CallToolResult, analyzeRunOutput, error) {
	in := pipeline.Input{
		Expectations: input.Expectations,
		Observations: input.Observations,
	}
	if input.SignalsJSON != "" {
		if err := json.Unmarshal([]byte(input.SignalsJSON), &in.Signals); err != nil {
			return nil, analyzeRunOutput{}, fmt.Errorf("parse signals: %w", err)
		}
	}
	if input.SkipsJSON != "" {
		if err := json.Unmarshal([]byte(input.SkipsJSON), &in.Skips); err != nil {
			return nil, analyzeRunOutput{}, fmt.Errorf("parse skips: %w", err)
		}
	}

	sum, err := s.runner.Run(ctx, in)
	if err != nil {
		return nil, analyzeRunOutput{}, fmt.Errorf("analyze run: %w", err)
	}
	return nil, analyzeRunOutput{Summary: sum}, nil
}

func (s *Server) handleCompareRuns(_ context.Context, _ *sdkmcp.CallToolRequest, input compareRunsInput) (*sdkmcp.CallToolResult, compareRunsOutput, error) {
	var a, b any
	if err := json.Unmarshal(input.SummaryA, &a); err != nil {
		return nil, compareRunsOutput{}, fmt.Errorf("parse summary a: %w", err)
	}
	if err := json.Unmarshal(input.SummaryB, &b); err != nil {
		return nil, compareRunsOutput{}, fmt.Errorf("parse summary b: %w", err)
	}

	rep, err := determinism.Compare(a, b, determinism.Options{
		ExtraVolatileKeys: s.cfg.ExtraVolatileKeys,
		BaseA:             input.BaseA,
		BaseB:             input.BaseB,
	})
	if err != nil {
		return nil, compareRunsOutput{}, fmt.Errorf("compare runs: %w", err)
	}
	return nil, compareRunsOutput{Report: rep}, nil
}

func (s *Server) handleClassifyOne(_ context.Context, _ *sdkmcp.CallToolRequest, input classifyOneInput) (*sdkmcp.CallToolResult, classifyOneOutput, error) {
	f := classify.Classify(input.Expectation, input.Observation)
	f.Confidence = classify.Calibrate(f.Confidence.OriginalScore, input.Observation, f)
	return nil, classifyOneOutput{Finding: f}, nil
}
