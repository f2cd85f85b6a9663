package domain

import (
	"strings"
	"time"
)

// PayloadMeta carries provenance attached to a fetched payload.
type PayloadMeta struct {
	Source    string `json:"source"`
	Ticker    string `json:"ticker"`
	FetchedAt string `json:"fetched_at"` // UTC ISO-8601, 'Z' suffixed
}

// RawPayload is a provider-native table: columns keep the provider's exact
// names and casing, cells keep the provider's textual rendering, and Index
// holds the datetime row index. It is ephemeral; it exists between the fetch
// step and the mapper, surviving only as a persisted audit artifact.
type RawPayload struct {
	Columns []string
	Index   []time.Time
	Rows    [][]string
	Meta    PayloadMeta
}

// Empty reports whether the payload has no rows.
func (p *RawPayload) Empty() bool {
	return p == nil || len(p.Rows) == 0
}

// Column returns the position of the named column (exact match), or -1.
func (p *RawPayload) Column(name string) int {
	for i, c := range p.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// ColumnFold returns the position of the named column ignoring case, or -1.
func (p *RawPayload) ColumnFold(name string) int {
	for i, c := range p.Columns {
		if strings.EqualFold(c, name) {
			return i
		}
	}
	return -1
}

// Cell returns the cell at (row, col), or "" when out of range. Providers
// occasionally emit ragged rows; treating the overflow as empty keeps the
// coercion pre-pass as the single place that decides what missing means.
func (p *RawPayload) Cell(row, col int) string {
	if row < 0 || row >= len(p.Rows) || col < 0 {
		return ""
	}
	r := p.Rows[row]
	if col >= len(r) {
		return ""
	}
	return r[col]
}

// Table is a canonical-shaped table: columns follow the canonical schema
// order, cells are typed Values, Index preserves the original row ordinals
// so validation diagnostics can refer back to source rows.
type Table struct {
	Fields []Field
	Index  []int
	Rows   [][]Value
	Meta   TableMeta
}

// TableMeta is out-of-band provenance on a canonical table. These are not
// literal columns unless the schema document defines them as such.
type TableMeta struct {
	RawChecksum string
	Provider    string
	Ticker      string
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Column returns the position of the named field, or -1.
func (t *Table) Column(name string) int {
	for i, f := range t.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// At returns the value at (row, col).
func (t *Table) At(row, col int) Value {
	return t.Rows[row][col]
}

// Select returns a new table containing the rows at the given positions, in
// the given order. Fields and Meta are shared; rows are copied by reference
// since Values are immutable.
func (t *Table) Select(positions []int) *Table {
	out := &Table{Fields: t.Fields, Meta: t.Meta}
	out.Index = make([]int, 0, len(positions))
	out.Rows = make([][]Value, 0, len(positions))
	for _, p := range positions {
		out.Index = append(out.Index, t.Index[p])
		out.Rows = append(out.Rows, t.Rows[p])
	}
	return out
}
