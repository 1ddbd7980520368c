package questions

import (
	"sort"
	"strings"

	"github.com/KaramelBytes/tabloom-cli/internal/survey"
)

const (
	openRegionStart = "ABIERTAS"
	openRegionEnd   = "ETIQUETAS"
)

// Code is a raw column code with its file ordinal and parse result.
type Code struct {
	Code    string
	Ordinal int
	Wave    string
	Item    string
}

// Item is a logical sub-question: one grid row, one waved variable aligned
// across waves, or the option set of a multi-response group.
type Item struct {
	Key   string
	Label string
	Codes []Code
}

// ParsedQuestion groups raw codes under one logical question. It is built
// once per dataset and metadata pair and not modified afterwards.
type ParsedQuestion struct {
	BaseCode string
	Label    string
	Kind     Kind
	Codes    []Code

	waves []string
	items []Item
}

// Waves returns the wave tokens in order of first appearance.
func (q *ParsedQuestion) Waves() []string { return append([]string(nil), q.waves...) }

// CodesForWave returns the raw codes of one wave in file order.
func (q *ParsedQuestion) CodesForWave(wave string) []string {
	var out []string
	for _, c := range q.Codes {
		if c.Wave == wave {
			out = append(out, c.Code)
		}
	}
	return out
}

// RawCodes returns all raw codes in file order.
func (q *ParsedQuestion) RawCodes() []string {
	out := make([]string, len(q.Codes))
	for i, c := range q.Codes {
		out[i] = c.Code
	}
	return out
}

// Items returns the logical items of the question.
func (q *ParsedQuestion) Items() []Item { return q.items }

// Set is the ordered result of Parse.
type Set struct {
	order  []string
	byBase map[string]*ParsedQuestion
}

// Get returns the question for a base code.
func (s *Set) Get(base string) (*ParsedQuestion, bool) {
	q, ok := s.byBase[base]
	return q, ok
}

// Bases returns base codes in order of first appearance.
func (s *Set) Bases() []string { return append([]string(nil), s.order...) }

// Len returns the number of logical questions.
func (s *Set) Len() int { return len(s.order) }

// Find returns the question that owns a raw code.
func (s *Set) Find(code string) (*ParsedQuestion, bool) {
	if q, ok := s.byBase[code]; ok {
		return q, true
	}
	for _, b := range s.order {
		for _, c := range s.byBase[b].Codes {
			if c.Code == code {
				return s.byBase[b], true
			}
		}
	}
	return nil, false
}

// ColumnRef is a raw code with its file ordinal.
type ColumnRef struct {
	Code    string
	Ordinal int
}

// ParseDataset parses the columns of ds.
func ParseDataset(ds *survey.Dataset, md *survey.Metadata) *Set {
	cols := make([]ColumnRef, 0, len(ds.Columns()))
	for _, c := range ds.Columns() {
		cols = append(cols, ColumnRef{Code: c.Code, Ordinal: c.Ordinal})
	}
	return Parse(cols, md)
}

// Parse groups raw codes into logical questions. Columns are processed by
// ordinal. F-prefixed codes between the ABIERTAS and ETIQUETAS markers are
// open-ended verbatims and are skipped.
func Parse(cols []ColumnRef, md *survey.Metadata) *Set {
	sorted := append([]ColumnRef(nil), cols...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Ordinal < sorted[j].Ordinal })

	s := &Set{byBase: map[string]*ParsedQuestion{}}
	inOpen := false
	for _, col := range sorted {
		switch col.Code {
		case openRegionStart:
			inOpen = true
			continue
		case openRegionEnd:
			inOpen = false
			continue
		}
		if inOpen && strings.HasPrefix(col.Code, "F") {
			continue
		}
		c := Classify(col.Code)
		q, ok := s.byBase[c.Base]
		if !ok {
			q = &ParsedQuestion{BaseCode: c.Base, Kind: c.Kind}
			s.byBase[c.Base] = q
			s.order = append(s.order, c.Base)
		}
		switch {
		case c.Kind == Waved:
			q.Kind = Waved
		case c.Kind == MultiResponse && q.Kind == Single:
			q.Kind = MultiResponse
		}
		code := Code{Code: col.Code, Ordinal: col.Ordinal, Wave: c.Wave, Item: ComposedKey(col.Code)}
		q.Codes = append(q.Codes, code)
		if c.Wave != "" && !contains(q.waves, c.Wave) {
			q.waves = append(q.waves, c.Wave)
		}
	}
	for _, b := range s.order {
		finish(s.byBase[b], md)
	}
	return s
}

func finish(q *ParsedQuestion, md *survey.Metadata) {
	first := q.Codes[0].Code
	if len(q.waves) > 0 {
		if wc := q.CodesForWave(q.waves[0]); len(wc) > 0 {
			first = wc[0]
		}
	}
	q.Label = md.Label(first)
	if q.Label == "" {
		q.Label = q.BaseCode
	}

	switch q.Kind {
	case MultiResponse:
		q.items = []Item{{Key: q.BaseCode, Label: q.Label, Codes: q.Codes}}
	default:
		idx := map[string]int{}
		for _, c := range q.Codes {
			i, ok := idx[c.Item]
			if !ok {
				i = len(q.items)
				idx[c.Item] = i
				q.items = append(q.items, Item{Key: c.Item})
			}
			q.items[i].Codes = append(q.items[i].Codes, c)
		}
		for i := range q.items {
			l := md.Label(q.items[i].Codes[0].Code)
			if l == "" {
				l = q.items[i].Key
			}
			q.items[i].Label = l
		}
	}
}

func contains(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}
