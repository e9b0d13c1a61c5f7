package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	yaml "gopkg.in/yaml.v3"

	"vigil/internal/constitution"
)

// EvidenceFile is the artifact layer's serialized cross-linkage context.
type EvidenceFile struct {
	EvidenceFileIndex            []string            `json:"evidence_file_index" yaml:"evidence_file_index"`
	ObserveEvidenceByExpectation map[string][]string `json:"observe_evidence_by_expectation" yaml:"observe_evidence_by_expectation"`
}

// InputPaths names the files one run reads. Expectations is required;
// everything else is optional and defaults to empty.
type InputPaths struct {
	Expectations string
	Observations string
	Signals      string
	Skips        string
	Evidence     string
}

// LoadInput reads all input files into one Input. Each file may be JSON or
// YAML, detected by extension then content.
func LoadInput(paths InputPaths) (Input, error) {
	var in Input

	if err := decodeFile(paths.Expectations, &in.Expectations); err != nil {
		return Input{}, fmt.Errorf("expectations: %w", err)
	}
	if paths.Observations != "" {
		if err := decodeFile(paths.Observations, &in.Observations); err != nil {
			return Input{}, fmt.Errorf("observations: %w", err)
		}
	}
	if paths.Signals != "" {
		if err := decodeFile(paths.Signals, &in.Signals); err != nil {
			return Input{}, fmt.Errorf("signals: %w", err)
		}
	}
	if paths.Skips != "" {
		if err := decodeFile(paths.Skips, &in.Skips); err != nil {
			return Input{}, fmt.Errorf("skips: %w", err)
		}
	}
	if paths.Evidence != "" {
		var ev EvidenceFile
		if err := decodeFile(paths.Evidence, &ev); err != nil {
			return Input{}, fmt.Errorf("evidence: %w", err)
		}
		in.Evidence = evidenceContext(ev)
	}
	return in, nil
}

func evidenceContext(ev EvidenceFile) constitution.Context {
	ctx := constitution.Context{
		EvidenceFileIndex:            make(map[string]bool, len(ev.EvidenceFileIndex)),
		ObserveEvidenceByExpectation: ev.ObserveEvidenceByExpectation,
	}
	for _, f := range ev.EvidenceFileIndex {
		ctx.EvidenceFileIndex[f] = true
	}
	if ctx.ObserveEvidenceByExpectation == nil {
		ctx.ObserveEvidenceByExpectation = map[string][]string{}
	}
	return ctx
}

// decodeFile unmarshals one file into out, JSON or YAML by extension with a
// content sniff for unknown extensions.
func decodeFile(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return json.Unmarshal(data, out)
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, out)
	default:
		trimmed := strings.TrimSpace(string(data))
		if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
			return json.Unmarshal(data, out)
		}
		return yaml.Unmarshal(data, out)
	}
}
