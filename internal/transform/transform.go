package transform

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/KaramelBytes/tabloom-cli/internal/survey"
)

// Missing is the label given to unmapped or missing responses.
const Missing = "0"

// Series is a transformed column, one entry per respondent.
type Series struct {
	Name    string
	Code    string
	Numeric bool
	// Labels holds display labels for categorical series.
	Labels []string
	// Values holds numbers for numeric series.
	Values []float64
	// Order is the category order declared by the value map.
	Order []string
}

// Len returns the number of respondents.
func (s Series) Len() int {
	if s.Numeric {
		return len(s.Values)
	}
	return len(s.Labels)
}

// Valid reports whether row i holds a real category (not Missing).
func (s Series) Valid(i int) bool {
	if s.Numeric {
		return true
	}
	return s.Labels[i] != Missing
}

// Transform maps a raw coded column to display labels. A value map with a
// single empty label marks an already-numeric column.
func Transform(code string, ds *survey.Dataset, md *survey.Metadata) (Series, error) {
	col, ok := ds.Column(code)
	if !ok {
		return Series{}, fmt.Errorf("transform: %w: %s", survey.ErrUnknownColumn, code)
	}
	v := md.Variable(code)
	s := Series{Name: code, Code: code}
	switch {
	case isNumericMarker(v.Values):
		s.Numeric = true
		s.Values = numbers(col.Values)
	case v.Values.Len() == 0:
		if allNumeric(col.Values) {
			s.Numeric = true
			s.Values = numbers(col.Values)
			return s, nil
		}
		s.Labels, s.Order = freeText(col.Values)
	default:
		s.Order = v.Values.Labels()
		s.Labels = make([]string, len(col.Values))
		for i, raw := range col.Values {
			s.Labels[i] = Missing
			c, ok := survey.ParseCode(raw)
			if !ok {
				continue
			}
			if l, ok := v.Values.Label(c); ok && strings.TrimSpace(l) != "" {
				s.Labels[i] = strings.TrimSpace(l)
			}
		}
	}
	return s, nil
}

// TransformCross maps a cross-break column and names the series after the
// cross question label.
func TransformCross(code, label string, ds *survey.Dataset, md *survey.Metadata) (Series, error) {
	s, err := Transform(code, ds, md)
	if err != nil {
		return Series{}, err
	}
	if s.Numeric {
		// Numeric cross breaks tabulate by their distinct values.
		s.Labels, s.Order = numericCategories(s.Values)
		s.Numeric = false
		s.Values = nil
	}
	s.Name = label
	return s, nil
}

// MultiSeries is a multi-response group: one selection flag per option and
// respondent.
type MultiSeries struct {
	Name     string
	Options  []string
	Codes    []string
	Selected [][]bool
	// Answered marks respondents with at least one selection.
	Answered []bool
}

// TransformMulti converts a multi-response group. An option is selected when
// its raw value is a non-zero code present in the option's value map (or any
// non-zero number when the map is empty).
func TransformMulti(name string, codes []string, ds *survey.Dataset, md *survey.Metadata) (MultiSeries, error) {
	m := MultiSeries{Name: name, Answered: make([]bool, ds.Rows())}
	for _, code := range codes {
		col, ok := ds.Column(code)
		if !ok {
			return MultiSeries{}, fmt.Errorf("transform multi: %w: %s", survey.ErrUnknownColumn, code)
		}
		v := md.Variable(code)
		label := optionLabel(v)
		sel := make([]bool, len(col.Values))
		for i, raw := range col.Values {
			c, ok := survey.ParseCode(raw)
			if !ok || c == 0 {
				continue
			}
			if v.Values.Len() > 0 {
				if _, mapped := v.Values.Label(c); !mapped {
					continue
				}
			}
			sel[i] = true
			m.Answered[i] = true
		}
		m.Options = append(m.Options, label)
		m.Codes = append(m.Codes, code)
		m.Selected = append(m.Selected, sel)
	}
	return m, nil
}

func optionLabel(v survey.VariableMetadata) string {
	if v.Values.Len() == 1 {
		if l := v.Values.Labels()[0]; l != "" {
			return l
		}
	}
	if v.Label != "" {
		return v.Label
	}
	return v.Code
}

// IsFilterIndicator reports a single-category variable (one labelled code).
func IsFilterIndicator(vm *survey.ValueMap) bool {
	return vm.Len() == 1 && vm.Labels()[0] != ""
}

func isNumericMarker(vm *survey.ValueMap) bool {
	return vm.Len() == 1 && vm.Labels()[0] == ""
}

func numbers(raw []string) []float64 {
	out := make([]float64, len(raw))
	for i, r := range raw {
		if f, ok := survey.ParseNumber(r); ok {
			out[i] = float64(int64(f))
		}
	}
	return out
}

func allNumeric(raw []string) bool {
	for _, r := range raw {
		if r == "" {
			continue
		}
		if _, ok := survey.ParseNumber(r); !ok {
			return false
		}
	}
	return true
}

func freeText(raw []string) ([]string, []string) {
	labels := make([]string, len(raw))
	seen := map[string]bool{}
	var order []string
	for i, r := range raw {
		l := strings.TrimSpace(r)
		if l == "" {
			labels[i] = Missing
			continue
		}
		labels[i] = l
		if !seen[l] {
			seen[l] = true
			order = append(order, l)
		}
	}
	return labels, order
}

func numericCategories(vals []float64) ([]string, []string) {
	labels := make([]string, len(vals))
	seen := map[string]bool{}
	var order []string
	for i, v := range vals {
		l := strconv.FormatFloat(v, 'f', -1, 64)
		labels[i] = l
		if v == 0 {
			labels[i] = Missing
			continue
		}
		if !seen[l] {
			seen[l] = true
			order = append(order, l)
		}
	}
	return labels, order
}
