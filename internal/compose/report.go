package compose

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/KaramelBytes/tabloom-cli/internal/crosstab"
)

// Cell is one displayed value. Option and derived rows show Percent; the
// Total row shows its count; statistic rows keep their raw value.
type Cell struct {
	Count   float64          `json:"count"`
	Base    float64          `json:"base"`
	Percent float64          `json:"percent"`
	Letters string           `json:"letters,omitempty"`
	Romans  string           `json:"romans,omitempty"`
	Kind    crosstab.RowKind `json:"-"`
}

func newCell(kind crosstab.RowKind, count, base float64, letters, romans string) Cell {
	c := Cell{Count: count, Base: base, Kind: kind, Letters: letters, Romans: romans}
	if rowKindIsValue(kind) && base > 0 {
		c.Percent = 100 * count / base
	}
	return c
}

// rowKindIsValue reports the kinds shown as percentages.
func rowKindIsValue(k crosstab.RowKind) bool {
	return k == crosstab.RowOption || k == crosstab.RowDerived
}

// Value is the number the cell displays.
func (c Cell) Value() float64 {
	if rowKindIsValue(c.Kind) {
		return c.Percent
	}
	return c.Count
}

// Number formats Value; counts of the Total row have no decimals.
func (c Cell) Number(decimals int) string {
	if c.Kind == crosstab.RowTotal {
		return strconv.FormatFloat(math.Round(c.Count), 'f', 0, 64)
	}
	if decimals < 0 {
		decimals = 0
	}
	return strconv.FormatFloat(c.Value(), 'f', decimals, 64)
}

// Annotation joins letters and roman numerals: "A,B II".
func (c Cell) Annotation() string {
	return strings.TrimSpace(c.Letters + " " + c.Romans)
}

// Display is the number followed by its annotation.
func (c Cell) Display(decimals int) string {
	if a := c.Annotation(); a != "" {
		return c.Number(decimals) + " " + a
	}
	return c.Number(decimals)
}

// Column is one report column with its comparison identifiers.
type Column struct {
	Key    crosstab.ColKey `json:"key"`
	Margin bool            `json:"margin,omitempty"`
	Letter string          `json:"letter,omitempty"`
	Roman  string          `json:"roman,omitempty"`
}

// Tag is the identifier shown under the column header.
func (c Column) Tag() string {
	return strings.TrimSpace(c.Letter + " " + c.Roman)
}

// Row is one report row with a cell per report column.
type Row struct {
	Key   crosstab.RowKey  `json:"key"`
	Kind  crosstab.RowKind `json:"kind"`
	Cells []Cell           `json:"cells"`
}

// QuestionError records a question that was skipped.
type QuestionError struct {
	Question string
	Label    string
	Err      error
}

func (e *QuestionError) Error() string {
	if e.Label != "" && e.Label != e.Question {
		return fmt.Sprintf("question %s (%s): %v", e.Question, e.Label, e.Err)
	}
	return fmt.Sprintf("question %s: %v", e.Question, e.Err)
}

func (e *QuestionError) Unwrap() error { return e.Err }

func (e *QuestionError) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{
		"question": e.Question,
		"label":    e.Label,
		"error":    e.Err.Error(),
	})
}

// Report is the composed table for a batch of questions.
type Report struct {
	View     crosstab.ViewType  `json:"view"`
	Decimals int                `json:"decimals"`
	Columns  []Column           `json:"columns"`
	Rows     []Row              `json:"rows"`
	Warnings []crosstab.Warning `json:"warnings,omitempty"`
	Errors   []*QuestionError   `json:"errors,omitempty"`

	colIdx map[crosstab.ColKey]int
}

func newReport(view crosstab.ViewType, decimals int) *Report {
	return &Report{View: view, Decimals: decimals, colIdx: map[crosstab.ColKey]int{}}
}

// Waves returns the distinct column waves in order.
func (r *Report) Waves() []string {
	var out []string
	seen := map[string]bool{}
	for _, c := range r.Columns {
		if !seen[c.Key.Wave] {
			seen[c.Key.Wave] = true
			out = append(out, c.Key.Wave)
		}
	}
	return out
}

// HasWaves reports whether any column carries a wave.
func (r *Report) HasWaves() bool {
	for _, c := range r.Columns {
		if c.Key.Wave != "" {
			return true
		}
	}
	return false
}

// add merges a question's columns by key and appends its rows.
func (r *Report) add(p *part) {
	remap := make([]int, len(p.columns))
	for i, c := range p.columns {
		j, ok := r.colIdx[c.Key]
		if !ok {
			j = len(r.Columns)
			r.colIdx[c.Key] = j
			r.Columns = append(r.Columns, c)
		}
		if r.Columns[j].Letter == "" {
			r.Columns[j].Letter = c.Letter
		}
		if r.Columns[j].Roman == "" {
			r.Columns[j].Roman = c.Roman
		}
		remap[i] = j
	}
	for _, pr := range p.rows {
		row := Row{Key: pr.key, Kind: pr.kind, Cells: make([]Cell, 0, len(r.Columns))}
		cells := map[int]Cell{}
		for i, c := range pr.cells {
			cells[remap[i]] = c
		}
		row.Cells = append(row.Cells, denseCells(cells, len(r.Columns), pr.kind)...)
		r.Rows = append(r.Rows, row)
	}
}

// finish pads every row to the final width and drops statistic rows from
// the Grouped view. Margin columns are keyed by wave, so every question
// already shares one TOTAL column per wave and the roman identifiers of the
// wave pass keep pointing at columns that exist.
func (r *Report) finish() {
	for i := range r.Rows {
		for len(r.Rows[i].Cells) < len(r.Columns) {
			r.Rows[i].Cells = append(r.Rows[i].Cells, Cell{Kind: r.Rows[i].Kind})
		}
	}
	if r.View != crosstab.Grouped {
		return
	}
	rows := r.Rows[:0]
	for _, row := range r.Rows {
		if row.Kind != crosstab.RowStat {
			rows = append(rows, row)
		}
	}
	r.Rows = rows
}

// Cell returns the cell at (question, option) under column k.
func (r *Report) Cell(question, option string, k crosstab.ColKey) (Cell, bool) {
	j, ok := r.colIdx[k]
	if !ok {
		return Cell{}, false
	}
	for _, row := range r.Rows {
		if row.Key.Question == question && row.Key.Option == option {
			return row.Cells[j], true
		}
	}
	return Cell{}, false
}

func denseCells(m map[int]Cell, width int, kind crosstab.RowKind) []Cell {
	out := make([]Cell, width)
	for i := range out {
		if c, ok := m[i]; ok {
			out[i] = c
			continue
		}
		out[i] = Cell{Kind: kind}
	}
	return out
}
