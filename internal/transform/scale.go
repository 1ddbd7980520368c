package transform

import (
	"errors"
	"strings"

	"github.com/KaramelBytes/tabloom-cli/internal/survey"
)

// Derived row labels.
const (
	LabelT2B       = "T2B"
	LabelTB        = "TB"
	LabelBottom    = "Bottom 2 Box"
	LabelJustRight = "Just Right"
	LabelTop       = "Top 2 Box"
)

// ErrNotFiveRows is returned when a just-right fold gets anything but the
// five raw scale rows.
var ErrNotFiveRows = errors.New("just-right fold needs exactly 5 rows")

// Row is a labelled row of per-column counts.
type Row struct {
	Label  string
	Values []float64
}

// TopBoxes returns the T2B and TB rows for a 5-point scale. Regular scales
// sum the options labelled "4."/"5." (T2B) and "5." (TB); inverted scales
// mirror that with "1."/"2." and "1.". Other kinds yield no rows.
func TopBoxes(rows []Row, kind survey.ScaleKind) []Row {
	var t2b, tb []string
	switch kind {
	case survey.ScaleRegular:
		t2b, tb = []string{"4.", "5."}, []string{"5."}
	case survey.ScaleInverted:
		t2b, tb = []string{"1.", "2."}, []string{"1."}
	default:
		return nil
	}
	return []Row{sumByPrefix(LabelT2B, rows, t2b), sumByPrefix(LabelTB, rows, tb)}
}

func sumByPrefix(label string, rows []Row, prefixes []string) Row {
	out := Row{Label: label, Values: make([]float64, width(rows))}
	for _, r := range rows {
		if !hasAnyPrefix(r.Label, prefixes) {
			continue
		}
		for j, v := range r.Values {
			out.Values[j] += v
		}
	}
	return out
}

// FoldJustRight folds the five raw rows of a just-right scale into
// Bottom (1+2), Just Right (3) and Top (4+5).
func FoldJustRight(rows []Row) ([]Row, error) {
	if len(rows) != 5 {
		return nil, ErrNotFiveRows
	}
	n := width(rows)
	fold := func(label string, idx ...int) Row {
		r := Row{Label: label, Values: make([]float64, n)}
		for _, i := range idx {
			for j, v := range rows[i].Values {
				r.Values[j] += v
			}
		}
		return r
	}
	return []Row{
		fold(LabelBottom, 0, 1),
		fold(LabelJustRight, 2),
		fold(LabelTop, 3, 4),
	}, nil
}

func width(rows []Row) int {
	n := 0
	for _, r := range rows {
		if len(r.Values) > n {
			n = len(r.Values)
		}
	}
	return n
}

func hasAnyPrefix(s string, prefixes []string) bool {
	s = strings.TrimSpace(s)
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
