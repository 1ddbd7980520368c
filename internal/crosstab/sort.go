package crosstab

import (
	"fmt"
	"sort"
	"strings"
)

// SortBy selects the option row sort key.
type SortBy string

const (
	SortNone      SortBy = ""
	SortByOptions SortBy = "options"
	SortByValues  SortBy = "values"
)

// SortOrder is the direction of the option row sort.
type SortOrder string

const (
	SortOriginal SortOrder = "original"
	SortAsc      SortOrder = "asc"
	SortDesc     SortOrder = "desc"
)

// ParseSort validates a sorted_by / sort_order pair. Empty values mean the
// value map order.
func ParseSort(by, order string) (SortBy, SortOrder, error) {
	b := SortBy(strings.ToLower(strings.TrimSpace(by)))
	o := SortOrder(strings.ToLower(strings.TrimSpace(order)))
	switch b {
	case SortNone, SortByOptions, SortByValues:
	default:
		return SortNone, SortOriginal, fmt.Errorf("unknown sorted_by %q (options|values)", by)
	}
	switch o {
	case "":
		o = SortOriginal
	case SortOriginal, SortAsc, SortDesc:
	default:
		return SortNone, SortOriginal, fmt.Errorf("unknown sort_order %q (asc|desc|original)", order)
	}
	return b, o, nil
}

// sortOptions orders option labels by label or by their first-wave count
// over all respondents. Ties keep the value map order.
func sortOptions(options []string, overall map[string]float64, by SortBy, order SortOrder) []string {
	out := append([]string(nil), options...)
	if order != SortAsc && order != SortDesc {
		return out
	}
	var less func(a, b string) bool
	switch by {
	case SortByOptions:
		less = func(a, b string) bool { return strings.ToLower(a) < strings.ToLower(b) }
	case SortByValues:
		less = func(a, b string) bool { return overall[a] < overall[b] }
	default:
		return out
	}
	sort.SliceStable(out, func(i, j int) bool {
		if order == SortDesc {
			return less(out[j], out[i])
		}
		return less(out[i], out[j])
	})
	return out
}
