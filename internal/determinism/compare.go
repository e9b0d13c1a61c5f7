// Package determinism proves two runs semantically equal: both summaries are
// normalized by stripping declared-volatile fields and rewriting path-like
// values, then deep-compared with keys sorted so serialization order never
// matters. Each leaf divergence is reported with its path and both values.
package determinism

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// DiffType classifies one leaf divergence.
type DiffType string

const (
	DiffTypeMismatch    DiffType = "type-mismatch"
	DiffValueMismatch   DiffType = "value-mismatch"
	DiffMissingInFirst  DiffType = "missing-in-first"
	DiffMissingInSecond DiffType = "missing-in-second"
	DiffLengthMismatch  DiffType = "length-mismatch"
	DiffArrayMismatch   DiffType = "array-mismatch"
)

// Difference is one divergence between the two normalized trees.
type Difference struct {
	Path   string   `json:"path"`
	Type   DiffType `json:"type"`
	Value1 any      `json:"value1,omitempty"`
	Value2 any      `json:"value2,omitempty"`
}

// Report is the comparison outcome.
type Report struct {
	Identical   bool         `json:"identical"`
	Differences []Difference `json:"differences"`
}

// Options declares what to ignore. Zero value applies the built-in
// volatility rules only.
type Options struct {
	// ExtraVolatileKeys are stripped in addition to the built-in rules.
	ExtraVolatileKeys []string
	// BaseA and BaseB are path prefixes rewritten to a common placeholder
	// before comparison, so artifact roots don't count as divergence.
	BaseA string
	BaseB string
}

// Known volatile identifiers, matched case-insensitively on the exact key.
var volatileKeys = map[string]bool{
	"runid":     true,
	"run_id":    true,
	"pid":       true,
	"timestamp": true,
	"hostname":  true,
	"seed":      true,
	"duration":  true,
}

// volatileSuffixes match by field-name suffix: startedAt, finished_at,
// totalMs, wall_time and friends are wall-clock artifacts, not semantics.
var volatileSuffixes = []string{"at", "_at", "ms", "_ms", "time", "_time"}

// Compare normalizes both summaries and deep-compares them. Any well-formed
// value compared against itself reports identical with no differences.
func Compare(a, b any, opts Options) (Report, error) {
	na, err := normalize(a, opts.BaseA, opts.ExtraVolatileKeys)
	if err != nil {
		return Report{}, fmt.Errorf("normalize first summary: %w", err)
	}
	nb, err := normalize(b, opts.BaseB, opts.ExtraVolatileKeys)
	if err != nil {
		return Report{}, fmt.Errorf("normalize second summary: %w", err)
	}

	rep := Report{Differences: []Difference{}}
	diffValue("$", na, nb, &rep.Differences)
	rep.Identical = len(rep.Differences) == 0
	return rep, nil
}

// normalize round-trips through JSON to erase Go types, then strips volatile
// fields and rewrites base-relative paths.
func normalize(v any, base string, extra []string) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var tree any
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, err
	}
	extraSet := make(map[string]bool, len(extra))
	for _, k := range extra {
		extraSet[strings.ToLower(k)] = true
	}
	return scrub(tree, base, extraSet), nil
}

func scrub(v any, base string, extra map[string]bool) any {
	switch node := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(node))
		for k, child := range node {
			if isVolatileKey(k) || extra[strings.ToLower(k)] {
				continue
			}
			out[k] = scrub(child, base, extra)
		}
		return out
	case []any:
		out := make([]any, len(node))
		for i, child := range node {
			out[i] = scrub(child, base, extra)
		}
		return out
	case string:
		if base != "" && strings.HasPrefix(node, base) {
			return "<base>" + strings.TrimPrefix(node, base)
		}
		return node
	default:
		return v
	}
}

// isVolatileKey applies the fixed volatility rule set: exact known
// identifiers, or a name suffix marking wall-clock or duration data.
func isVolatileKey(key string) bool {
	lower := strings.ToLower(key)
	if volatileKeys[lower] {
		return true
	}
	for _, suffix := range volatileSuffixes {
		if len(lower) > len(suffix) && strings.HasSuffix(lower, suffix) {
			// "format" ends in "at" lexically but not semantically; require
			// the character before a bare suffix to close a word.
			if suffix[0] == '_' || endsWord(key, suffix) {
				return true
			}
		}
	}
	return false
}

// endsWord reports whether key ends with the camel-case word form of the
// suffix, e.g. "startedAt" / "totalMs" / "wallTime".
func endsWord(key, suffix string) bool {
	word := strings.ToUpper(suffix[:1]) + suffix[1:]
	return strings.HasSuffix(key, word)
}

func diffValue(path string, a, b any, out *[]Difference) {
	switch {
	case a == nil && b == nil:
		return
	case a == nil:
		*out = append(*out, Difference{Path: path, Type: DiffMissingInFirst, Value2: b})
		return
	case b == nil:
		*out = append(*out, Difference{Path: path, Type: DiffMissingInSecond, Value1: a})
		return
	}

	ma, aIsMap := a.(map[string]any)
	mb, bIsMap := b.(map[string]any)
	sa, aIsSlice := a.([]any)
	sb, bIsSlice := b.([]any)

	switch {
	case aIsMap && bIsMap:
		diffMap(path, ma, mb, out)
	case aIsSlice && bIsSlice:
		diffSlice(path, sa, sb, out)
	case aIsMap != bIsMap || aIsSlice != bIsSlice:
		*out = append(*out, Difference{Path: path, Type: DiffTypeMismatch, Value1: a, Value2: b})
	default:
		if fmt.Sprintf("%T", a) != fmt.Sprintf("%T", b) {
			*out = append(*out, Difference{Path: path, Type: DiffTypeMismatch, Value1: a, Value2: b})
			return
		}
		if a != b {
			*out = append(*out, Difference{Path: path, Type: DiffValueMismatch, Value1: a, Value2: b})
		}
	}
}

// diffMap walks keys in sorted order so reports are reproducible and
// independent of serialization order.
func diffMap(path string, a, b map[string]any, out *[]Difference) {
	keys := make([]string, 0, len(a)+len(b))
	seen := make(map[string]bool, len(a)+len(b))
	for k := range a {
		keys = append(keys, k)
		seen[k] = true
	}
	for k := range b {
		if !seen[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, k := range keys {
		childPath := path + "." + k
		av, inA := a[k]
		bv, inB := b[k]
		switch {
		case !inA:
			*out = append(*out, Difference{Path: childPath, Type: DiffMissingInFirst, Value2: bv})
		case !inB:
			*out = append(*out, Difference{Path: childPath, Type: DiffMissingInSecond, Value1: av})
		default:
			diffValue(childPath, av, bv, out)
		}
	}
}

// diffSlice reports a length mismatch once, then compares the common prefix.
// Scalar divergence inside an array is tagged array-mismatch; nested objects
// recurse normally.
func diffSlice(path string, a, b []any, out *[]Difference) {
	if len(a) != len(b) {
		*out = append(*out, Difference{Path: path, Type: DiffLengthMismatch, Value1: len(a), Value2: len(b)})
	}
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		childPath := fmt.Sprintf("%s[%d]", path, i)
		_, aIsScalar := scalarKind(a[i])
		_, bIsScalar := scalarKind(b[i])
		if aIsScalar && bIsScalar {
			if a[i] != b[i] {
				*out = append(*out, Difference{Path: childPath, Type: DiffArrayMismatch, Value1: a[i], Value2: b[i]})
			}
			continue
		}
		diffValue(childPath, a[i], b[i], out)
	}
}

func scalarKind(v any) (string, bool) {
	switch v.(type) {
	case string:
		return "string", true
	case float64:
		return "number", true
	case bool:
		return "bool", true
	default:
		return "", false
	}
}
