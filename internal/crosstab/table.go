package crosstab

import (
	"fmt"
	"strings"
)

// Header labels used by the builder.
const (
	TotalLabel = "TOTAL"
	BaseLabel  = "Total"
)

// ViewType selects which derived rows a table carries.
type ViewType int

const (
	// Detailed keeps every option and appends statistic rows.
	Detailed ViewType = iota
	// Grouped adds T2B/TB (or folds just-right scales) and drops statistics.
	Grouped
)

func (v ViewType) String() string {
	if v == Grouped {
		return "grouped"
	}
	return "detailed"
}

func (v ViewType) MarshalText() ([]byte, error) { return []byte(v.String()), nil }

func (v *ViewType) UnmarshalText(b []byte) error {
	p, err := ParseViewType(string(b))
	if err != nil {
		return err
	}
	*v = p
	return nil
}

// ParseViewType accepts "detailed" or "grouped" (case-insensitive).
func ParseViewType(s string) (ViewType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "detailed", "detallado":
		return Detailed, nil
	case "grouped", "agrupado":
		return Grouped, nil
	}
	return Detailed, fmt.Errorf("unknown view type %q (detailed|grouped)", s)
}

// RowKind tells apart the base row, option rows and computed rows.
type RowKind int

const (
	RowTotal RowKind = iota
	RowOption
	RowDerived
	RowStat
)

func (k RowKind) String() string {
	switch k {
	case RowTotal:
		return "total"
	case RowOption:
		return "option"
	case RowDerived:
		return "derived"
	default:
		return "stat"
	}
}

func (k RowKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Testable reports whether rows of this kind take part in significance
// testing.
func (k RowKind) Testable() bool { return k == RowOption || k == RowDerived }

// RowKey is the 3-level row index.
type RowKey struct {
	Group    string `json:"group"`
	Question string `json:"question"`
	Option   string `json:"option"`
}

// Row holds one count per table column. Bases is the Total row of the block
// the row belongs to; it is kept even when that row is hidden.
type Row struct {
	Key    RowKey    `json:"key"`
	Kind   RowKind   `json:"kind"`
	Values []float64 `json:"values"`
	Bases  []float64 `json:"bases"`
}

// ColKey is the 3-level column index.
type ColKey struct {
	Cross  string `json:"cross"`
	Option string `json:"option"`
	Wave   string `json:"wave,omitempty"`
}

// Column is one table column. Margin marks the TOTAL column of a wave.
type Column struct {
	Key    ColKey `json:"key"`
	Margin bool   `json:"margin,omitempty"`
}

// Table is one question tabulated against one cross break.
type Table struct {
	Question string   `json:"question"`
	Label    string   `json:"label"`
	Cross    string   `json:"cross"`
	View     ViewType `json:"view"`
	Columns  []Column `json:"columns"`
	Rows     []Row    `json:"rows"`
}

// Block is a run of rows that share one set of column bases.
type Block struct {
	Question string
	Rows     []int
	Bases    []float64
}

// Blocks groups the rows of t by question label, in row order.
func (t *Table) Blocks() []Block {
	var out []Block
	for i, r := range t.Rows {
		if n := len(out); n > 0 && out[n-1].Question == r.Key.Question {
			out[n-1].Rows = append(out[n-1].Rows, i)
			continue
		}
		out = append(out, Block{Question: r.Key.Question, Rows: []int{i}, Bases: r.Bases})
	}
	return out
}

// Waves returns the distinct column waves in order.
func (t *Table) Waves() []string {
	var out []string
	seen := map[string]bool{}
	for _, c := range t.Columns {
		if !seen[c.Key.Wave] {
			seen[c.Key.Wave] = true
			out = append(out, c.Key.Wave)
		}
	}
	return out
}

// Find returns the first row with the given question and option labels.
func (t *Table) Find(question, option string) (Row, bool) {
	for _, r := range t.Rows {
		if r.Key.Question == question && r.Key.Option == option {
			return r, true
		}
	}
	return Row{}, false
}

// ColumnIndex returns the index of the column with key k, or -1.
func (t *Table) ColumnIndex(k ColKey) int {
	for i, c := range t.Columns {
		if c.Key == k {
			return i
		}
	}
	return -1
}

// Warning is a non-fatal condition met while building.
type Warning struct {
	Question string `json:"question"`
	Cross    string `json:"cross,omitempty"`
	Wave     string `json:"wave,omitempty"`
	Message  string `json:"message"`
}

func (w Warning) String() string {
	var b strings.Builder
	b.WriteString(w.Question)
	if w.Wave != "" {
		b.WriteString(" [" + w.Wave + "]")
	}
	b.WriteString(": ")
	b.WriteString(w.Message)
	return b.String()
}
