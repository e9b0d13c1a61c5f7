package format

import (
	"strings"
	"testing"
)

func TestTable_ASCII(t *testing.T) {
	tb := NewTable(ASCII)
	tb.Header("ID", "CLASSIFICATION", "CONFIDENCE")
	tb.Row("e1", "observed", 1.0)
	tb.Row("e2", "silent-failure:blocked", 0.65)
	tb.Footer("", "total", 2)

	out := tb.String()
	for _, want := range []string{"CLASSIFICATION", "silent-failure:blocked", "0.65"} {
		if !strings.Contains(out, want) {
			t.Errorf("ASCII output missing %q:\n%s", want, out)
		}
	}
}

func TestTable_Markdown(t *testing.T) {
	tb := NewTable(Markdown)
	tb.Header("Verdict", "Exit")
	tb.Row("READY", 0)

	out := tb.String()
	if !strings.Contains(out, "| READY | 0 |") {
		t.Errorf("markdown output malformed:\n%s", out)
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want Mode
	}{
		{"markdown", Markdown},
		{"md", Markdown},
		{"ascii", ASCII},
		{"", ASCII},
	}
	for _, tt := range tests {
		if got := ParseMode(tt.in); got != tt.want {
			t.Errorf("ParseMode(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
