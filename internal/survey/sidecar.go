package survey

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// CrossBreak is a named column axis built from one or more raw codes. Several
// codes usually mean wave variants of the same cross question.
type CrossBreak struct {
	Label string   `json:"label" yaml:"label"`
	Codes []string `json:"codes" yaml:"codes"`
}

// Filter keeps respondents whose Code value is one of Values.
type Filter struct {
	Code   string `json:"code"`
	Values []int  `json:"values"`
}

// StudyConfig is the "config" object of a dataset's JSON sidecar.
// SectionVariables are column codes that open a section: every column from
// one of them up to the next belongs to it.
type StudyConfig struct {
	Filters          []Filter     `json:"filters"`
	CrossVariables   []CrossBreak `json:"cross_variables"`
	SectionVariables []string     `json:"section_variables"`
}

// Sidecar is the JSON document stored next to a dataset.
type Sidecar struct {
	Config StudyConfig `json:"config"`
}

// LoadSidecar reads a sidecar JSON document.
func LoadSidecar(path string) (*Sidecar, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sidecar: %w", err)
	}
	var s Sidecar
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("parse sidecar: %w", err)
	}
	return &s, nil
}

// Apply returns the subset of respondents matching every filter.
func (c StudyConfig) Apply(ds *Dataset) (*Dataset, error) {
	if len(c.Filters) == 0 {
		return ds, nil
	}
	allowed := make([]map[int]bool, len(c.Filters))
	for i, f := range c.Filters {
		if !ds.Has(f.Code) {
			return nil, fmt.Errorf("filter: %w: %s", ErrUnknownColumn, f.Code)
		}
		allowed[i] = make(map[int]bool, len(f.Values))
		for _, v := range f.Values {
			allowed[i][v] = true
		}
	}
	return ds.Filter(func(row int) bool {
		for i, f := range c.Filters {
			v, ok := ParseCode(ds.Value(f.Code, row))
			if !ok || !allowed[i][v] {
				return false
			}
		}
		return true
	}), nil
}

// CrossBreak returns the configured cross variable with the given label.
func (c StudyConfig) CrossBreak(label string) (CrossBreak, bool) {
	for _, cb := range c.CrossVariables {
		if cb.Label == label {
			return cb, true
		}
	}
	return CrossBreak{}, false
}

// Sections maps each column code to the label of the closest section
// variable at or before it in column order. Columns ahead of the first
// section variable are left out, as are section codes missing from ds.
func (c StudyConfig) Sections(ds *Dataset, md *Metadata) map[string]string {
	if len(c.SectionVariables) == 0 {
		return nil
	}
	marks := make(map[string]bool, len(c.SectionVariables))
	for _, code := range c.SectionVariables {
		marks[code] = true
	}
	cols := append([]*Column(nil), ds.Columns()...)
	sort.SliceStable(cols, func(i, j int) bool { return cols[i].Ordinal < cols[j].Ordinal })

	out := map[string]string{}
	current := ""
	for _, col := range cols {
		if marks[col.Code] {
			current = col.Code
			if md != nil {
				if l := md.Label(col.Code); l != "" {
					current = l
				}
			}
		}
		if current != "" {
			out[col.Code] = current
		}
	}
	return out
}
