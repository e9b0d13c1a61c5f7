// Package format renders CLI summary tables in ASCII or Markdown through a
// single builder, so command output stays consistent across subcommands.
package format

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Mode controls the rendering target.
type Mode int

const (
	ASCII    Mode = iota // fixed-width terminal tables
	Markdown             // GitHub-flavoured Markdown tables
)

// ParseMode maps a CLI flag value to a Mode; anything but "markdown"/"md"
// renders ASCII.
func ParseMode(s string) Mode {
	switch s {
	case "markdown", "md":
		return Markdown
	default:
		return ASCII
	}
}

// Align is per-column horizontal alignment.
type Align int

const (
	AlignLeft Align = iota
	AlignCenter
	AlignRight
)

// Column configures one table column by 1-based index.
type Column struct {
	Number   int
	Align    Align
	MaxWidth int // 0 = unlimited
}

// Table accumulates rows and renders once in the configured Mode.
type Table struct {
	writer table.Writer
	mode   Mode
}

// NewTable returns an empty table for the given mode.
func NewTable(m Mode) *Table {
	w := table.NewWriter()
	if m == ASCII {
		w.SetStyle(table.StyleLight)
	}
	return &Table{writer: w, mode: m}
}

// Header sets the column headers.
func (t *Table) Header(cols ...string) {
	row := make(table.Row, len(cols))
	for i, c := range cols {
		row[i] = c
	}
	t.writer.AppendHeader(row)
}

// Row appends one data row.
func (t *Table) Row(vals ...any) {
	row := make(table.Row, len(vals))
	copy(row, vals)
	t.writer.AppendRow(row)
}

// Footer appends a footer row, typically totals.
func (t *Table) Footer(vals ...any) {
	row := make(table.Row, len(vals))
	copy(row, vals)
	t.writer.AppendFooter(row)
}

// Columns applies per-column alignment and width caps.
func (t *Table) Columns(cols ...Column) {
	cfgs := make([]table.ColumnConfig, 0, len(cols))
	for _, c := range cols {
		cfg := table.ColumnConfig{Number: c.Number, WidthMax: c.MaxWidth}
		switch c.Align {
		case AlignCenter:
			cfg.Align = text.AlignCenter
		case AlignRight:
			cfg.Align = text.AlignRight
		default:
			cfg.Align = text.AlignLeft
		}
		cfgs = append(cfgs, cfg)
	}
	t.writer.SetColumnConfigs(cfgs)
}

// String renders the table.
func (t *Table) String() string {
	if t.mode == Markdown {
		return t.writer.RenderMarkdown()
	}
	return t.writer.Render()
}
