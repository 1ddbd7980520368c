package survey

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrDuplicateCode is returned when a dataset header repeats a column code.
	ErrDuplicateCode = errors.New("duplicate column code")
	// ErrUnknownColumn is returned when a code is not present in the dataset.
	ErrUnknownColumn = errors.New("unknown column")
)

// Column is one raw variable of a survey dataset. Ordinal is the position of
// the column in the source file and never changes after load.
type Column struct {
	Code    string
	Ordinal int
	Values  []string
}

// Dataset is a respondent-level table: one row per respondent, one column per
// raw variable code.
type Dataset struct {
	Name    string
	columns []*Column
	index   map[string]int
	rows    int
}

// NewDataset builds a dataset from a header and row-major records. Short
// records are padded with missing values.
func NewDataset(name string, codes []string, records [][]string) (*Dataset, error) {
	d := &Dataset{Name: name, index: make(map[string]int, len(codes)), rows: len(records)}
	for i, raw := range codes {
		code := strings.TrimSpace(raw)
		if _, dup := d.index[code]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateCode, code)
		}
		d.index[code] = i
		d.columns = append(d.columns, &Column{Code: code, Ordinal: i, Values: make([]string, len(records))})
	}
	for r, rec := range records {
		for c := range d.columns {
			if c < len(rec) {
				d.columns[c].Values[r] = strings.TrimSpace(rec[c])
			}
		}
	}
	return d, nil
}

// Rows returns the number of respondents.
func (d *Dataset) Rows() int { return d.rows }

// Codes returns column codes in file order.
func (d *Dataset) Codes() []string {
	out := make([]string, len(d.columns))
	for i, c := range d.columns {
		out[i] = c.Code
	}
	return out
}

// Columns returns the columns in file order.
func (d *Dataset) Columns() []*Column { return d.columns }

// Column looks up a column by code.
func (d *Dataset) Column(code string) (*Column, bool) {
	i, ok := d.index[code]
	if !ok {
		return nil, false
	}
	return d.columns[i], true
}

// Has reports whether the dataset carries the given code.
func (d *Dataset) Has(code string) bool {
	_, ok := d.index[code]
	return ok
}

// Value returns the raw cell for code at row, or "" when absent.
func (d *Dataset) Value(code string, row int) string {
	c, ok := d.Column(code)
	if !ok || row < 0 || row >= d.rows {
		return ""
	}
	return c.Values[row]
}

// Number parses the raw cell for code at row as a number.
func (d *Dataset) Number(code string, row int) (float64, bool) {
	return ParseNumber(d.Value(code, row))
}

// Filter returns a new dataset holding only the rows for which keep is true.
// Column ordinals are preserved.
func (d *Dataset) Filter(keep func(row int) bool) *Dataset {
	var rows []int
	for r := 0; r < d.rows; r++ {
		if keep(r) {
			rows = append(rows, r)
		}
	}
	out := &Dataset{Name: d.Name, index: make(map[string]int, len(d.columns)), rows: len(rows)}
	for i, c := range d.columns {
		nc := &Column{Code: c.Code, Ordinal: c.Ordinal, Values: make([]string, len(rows))}
		for j, r := range rows {
			nc.Values[j] = c.Values[r]
		}
		out.columns = append(out.columns, nc)
		out.index[c.Code] = i
	}
	return out
}

// ParseNumber parses a raw survey cell. Empty cells and SPSS system-missing
// markers are reported as missing. A lone comma is accepted as decimal
// separator.
func ParseNumber(s string) (float64, bool) {
	raw := strings.TrimSpace(s)
	if raw == "" || raw == "." || strings.EqualFold(raw, "nan") {
		return 0, false
	}
	if strings.Count(raw, ",") == 1 && !strings.Contains(raw, ".") {
		raw = strings.Replace(raw, ",", ".", 1)
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// ParseCode parses a raw cell as an integer response code.
func ParseCode(s string) (int, bool) {
	f, ok := ParseNumber(s)
	if !ok || f != float64(int(f)) {
		return 0, false
	}
	return int(f), true
}
