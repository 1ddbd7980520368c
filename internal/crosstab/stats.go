package crosstab

import (
	"math"
	"strings"
)

// Stat names a summary statistic row.
type Stat string

const (
	StatMean    Stat = "Mean"
	StatStd     Stat = "Std. Deviation"
	StatSE      Stat = "Std. Error"
	StatCount   Stat = "Total Count"
	StatAnswers Stat = "Total Answers"
	StatPercent Stat = "% of Total"
)

var statAliases = map[string]Stat{
	"mean":           StatMean,
	"media":          StatMean,
	"std":            StatStd,
	"std. deviation": StatStd,
	"std deviation":  StatStd,
	"se":             StatSE,
	"std. error":     StatSE,
	"std error":      StatSE,
	"total count":    StatCount,
	"count":          StatCount,
	"total answers":  StatAnswers,
	"answers":        StatAnswers,
	"% of total":     StatPercent,
	"percentage":     StatPercent,
}

// ParseStat maps a question type property to a statistic.
func ParseStat(name string) (Stat, bool) {
	s, ok := statAliases[strings.ToLower(strings.TrimSpace(name))]
	return s, ok
}

// ParseStats keeps the recognised names of props, in order, without repeats.
func ParseStats(props []string) []Stat {
	var out []Stat
	seen := map[Stat]bool{}
	for _, p := range props {
		if s, ok := ParseStat(p); ok && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// moments accumulates count, mean and variance with Welford's update.
type moments struct {
	n    int
	mean float64
	m2   float64
}

func (m *moments) add(x float64) {
	m.n++
	delta := x - m.mean
	m.mean += delta / float64(m.n)
	m.m2 += delta * (x - m.mean)
}

// std is the sample standard deviation; 0 below two observations.
func (m moments) std() float64 {
	if m.n < 2 {
		return 0
	}
	return math.Sqrt(m.m2 / float64(m.n-1))
}

func (m moments) se() float64 {
	if m.n == 0 {
		return 0
	}
	return m.std() / math.Sqrt(float64(m.n))
}

// cell holds what a statistic row needs for one column.
type cell struct {
	moments
	base    float64
	answers float64
}

// value computes s for one column; total is the answered base of the wave.
func (c cell) value(s Stat, total float64) float64 {
	switch s {
	case StatMean:
		return c.mean
	case StatStd:
		return c.std()
	case StatSE:
		return c.se()
	case StatCount:
		return c.base
	case StatAnswers:
		return c.answers
	case StatPercent:
		if total == 0 {
			return 0
		}
		return 100 * c.base / total
	}
	return 0
}
