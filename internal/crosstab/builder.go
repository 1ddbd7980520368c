package crosstab

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"github.com/KaramelBytes/tabloom-cli/internal/questions"
	"github.com/KaramelBytes/tabloom-cli/internal/survey"
	"github.com/KaramelBytes/tabloom-cli/internal/transform"
)

var (
	// ErrNoCrossBreak is returned when no cross break (or one without codes)
	// is requested.
	ErrNoCrossBreak = errors.New("no cross break")
	// ErrEmptyQuestion is returned for a question without raw codes.
	ErrEmptyQuestion = errors.New("question has no codes")
)

// Options controls one build.
type Options struct {
	View     ViewType
	Keywords survey.ScaleKeywords
	// Group is the first level of the row index.
	Group string
	// Stats lists the statistic rows of Detailed tables, in order.
	Stats     []Stat
	SortBy    SortBy
	SortOrder SortOrder
	Logger    *zap.Logger
}

// DefaultOptions returns a Detailed view with the default scale keywords.
func DefaultOptions() Options {
	return Options{Keywords: survey.DefaultScaleKeywords(), SortOrder: SortOriginal}
}

type builder struct {
	ds       *survey.Dataset
	md       *survey.Metadata
	q        *questions.ParsedQuestion
	opt      Options
	log      *zap.Logger
	warnings []Warning
}

// Build tabulates q against every cross break, one table each. Only the
// first cross break carries the TOTAL margin column of each wave. Waves of
// q are laid side by side; items are aligned across waves by composed key.
func Build(ds *survey.Dataset, md *survey.Metadata, crossBreaks []survey.CrossBreak, q *questions.ParsedQuestion, opt Options) ([]*Table, []Warning, error) {
	if len(crossBreaks) == 0 {
		return nil, nil, ErrNoCrossBreak
	}
	if q == nil || len(q.Codes) == 0 {
		return nil, nil, ErrEmptyQuestion
	}
	b := &builder{ds: ds, md: md, q: q, opt: opt, log: opt.Logger}
	if b.log == nil {
		b.log = zap.NewNop()
	}
	tables := make([]*Table, 0, len(crossBreaks))
	for i, cb := range crossBreaks {
		t, err := b.table(cb, i == 0)
		if err != nil {
			return nil, b.warnings, fmt.Errorf("build %s by %q: %w", q.BaseCode, cb.Label, err)
		}
		tables = append(tables, t)
	}
	return tables, b.warnings, nil
}

func (b *builder) table(cb survey.CrossBreak, first bool) (*Table, error) {
	if len(cb.Codes) == 0 {
		return nil, fmt.Errorf("%w: %q has no codes", ErrNoCrossBreak, cb.Label)
	}
	waves := b.q.Waves()
	if len(waves) == 0 {
		waves = []string{""}
	}
	t := &Table{Question: b.q.BaseCode, Label: b.q.Label, Cross: cb.Label, View: b.opt.View}
	items := map[string]*itemRows{}
	var order []string

	for wi, w := range waves {
		cross, err := transform.TransformCross(crossCodeFor(cb, w), cb.Label, b.ds, b.md)
		if err != nil {
			return nil, err
		}
		offset := len(t.Columns)
		if first {
			t.Columns = append(t.Columns, Column{Key: ColKey{Cross: TotalLabel, Option: TotalLabel, Wave: w}, Margin: true})
		}
		pos := map[string]int{}
		for _, o := range cross.Order {
			pos[o] = len(t.Columns) - offset
			t.Columns = append(t.Columns, Column{Key: ColKey{Cross: cb.Label, Option: o, Wave: w}})
		}
		colOf := make([]int, b.ds.Rows())
		for r := range colOf {
			colOf[r] = -1
			if i, ok := pos[cross.Labels[r]]; ok && cross.Valid(r) {
				colOf[r] = i
			}
		}
		width := len(t.Columns) - offset

		for _, it := range b.q.Items() {
			codes := codesForWave(it, w)
			if len(codes) == 0 {
				continue
			}
			resp, err := b.responses(codes, w, first)
			if err != nil {
				return nil, err
			}
			blk := tabulate(resp, colOf, width, first)
			ir, ok := items[it.Key]
			if !ok {
				ir = newItemRows(b.rowLabel(it))
				items[it.Key] = ir
				order = append(order, it.Key)
			}
			ir.hideTotal = ir.hideTotal || resp.filter
			ir.merge(blk, offset, wi == 0)
			if err := b.derive(ir, resp, blk, offset); err != nil {
				return nil, err
			}
		}
	}

	width := len(t.Columns)
	for _, k := range order {
		t.Rows = append(t.Rows, items[k].rows(b.opt, width)...)
	}
	return t, nil
}

func (b *builder) rowLabel(it questions.Item) string {
	if len(b.q.Items()) == 1 {
		return b.q.Label
	}
	return it.Label
}

// crossCodeFor picks the cross code for a wave: the code of the same wave,
// else the first code without a wave, else the first code.
func crossCodeFor(cb survey.CrossBreak, wave string) string {
	if wave != "" {
		for _, c := range cb.Codes {
			if questions.Classify(c).Wave == wave {
				return c
			}
		}
	}
	for _, c := range cb.Codes {
		if questions.Classify(c).Wave == "" {
			return c
		}
	}
	return cb.Codes[0]
}

func codesForWave(it questions.Item, wave string) []string {
	var out []string
	for _, c := range it.Codes {
		if c.Wave == wave {
			out = append(out, c.Code)
		}
	}
	return out
}

// response is what one respondent answered to one item.
type response struct {
	picks  []string
	raw    float64
	hasRaw bool
}

type itemResponses struct {
	code        string
	categorical bool
	options     []string
	rows        []response
	filter      bool
}

// responses reads one item of one wave. A multi-response item reads all its
// option codes. For other items, repeated codes of the same wave are
// combined: each respondent keeps the first valid answer.
func (b *builder) responses(codes []string, wave string, warn bool) (itemResponses, error) {
	out := itemResponses{code: codes[0], rows: make([]response, b.ds.Rows())}
	if b.q.Kind == questions.MultiResponse {
		m, err := transform.TransformMulti(b.q.Label, codes, b.ds, b.md)
		if err != nil {
			return out, err
		}
		out.categorical = true
		out.options = dedupe(m.Options)
		for r := range out.rows {
			for k, sel := range m.Selected {
				if sel[r] {
					out.rows[r].picks = append(out.rows[r].picks, m.Options[k])
				}
			}
			out.rows[r].raw = float64(len(out.rows[r].picks))
			out.rows[r].hasRaw = m.Answered[r]
		}
		return out, nil
	}

	if len(codes) > 1 && warn {
		for _, dup := range codes[1:] {
			b.warn(Warning{Question: b.q.BaseCode, Wave: wave, Message: fmt.Sprintf("repeated wave variable %s, keeping values of %s first", dup, codes[0])})
		}
	}
	series := make([]transform.Series, len(codes))
	for i, c := range codes {
		s, err := transform.Transform(c, b.ds, b.md)
		if err != nil {
			return out, err
		}
		series[i] = s
	}
	out.categorical = !series[0].Numeric
	out.filter = transform.IsFilterIndicator(b.md.Variable(codes[0]).Values)
	for _, s := range series {
		if !s.Numeric {
			out.options = append(out.options, s.Order...)
		}
	}
	for r := range out.rows {
		for i, s := range series {
			raw, ok := b.ds.Number(codes[i], r)
			var label string
			switch {
			case s.Numeric && ok:
				label = strconv.FormatFloat(s.Values[r], 'f', -1, 64)
				out.options = append(out.options, label)
			case !s.Numeric && s.Valid(r):
				label = s.Labels[r]
			default:
				continue
			}
			out.rows[r] = response{picks: []string{label}, raw: raw, hasRaw: ok}
			break
		}
	}
	out.options = dedupe(out.options)
	if !out.categorical {
		sortNumeric(out.options)
	}
	return out, nil
}

func (b *builder) warn(w Warning) {
	b.warnings = append(b.warnings, w)
	b.log.Warn("crosstab warning",
		zap.String("question", w.Question),
		zap.String("wave", w.Wave),
		zap.String("message", w.Message))
}

// block is one item of one wave tabulated over the local columns.
type block struct {
	options []string
	counts  map[string][]float64
	cells   []cell
	// total is the number of respondents who answered in this wave.
	total float64
	// overall counts each option over all respondents.
	overall map[string]float64
}

func tabulate(resp itemResponses, colOf []int, width int, margin bool) *block {
	blk := &block{
		options: resp.options,
		counts:  make(map[string][]float64, len(resp.options)),
		cells:   make([]cell, width),
		overall: map[string]float64{},
	}
	for _, o := range resp.options {
		blk.counts[o] = make([]float64, width)
	}
	targets := make([]int, 0, 2)
	for r, rr := range resp.rows {
		if len(rr.picks) == 0 {
			continue
		}
		blk.total++
		targets = targets[:0]
		if margin {
			targets = append(targets, 0)
		}
		if c := colOf[r]; c >= 0 {
			targets = append(targets, c)
		}
		for _, p := range rr.picks {
			blk.overall[p]++
		}
		for _, c := range targets {
			cl := &blk.cells[c]
			cl.base++
			cl.answers += float64(len(rr.picks))
			if rr.hasRaw {
				cl.add(rr.raw)
			}
			for _, p := range rr.picks {
				if v, ok := blk.counts[p]; ok {
					v[c]++
				}
			}
		}
	}
	return blk
}

// derive adds the scale rows of a Grouped view and the statistic rows of a
// Detailed view.
func (b *builder) derive(ir *itemRows, resp itemResponses, blk *block, offset int) error {
	switch b.opt.View {
	case Grouped:
		if !resp.categorical || b.q.Kind == questions.MultiResponse {
			return nil
		}
		rows := make([]transform.Row, len(blk.options))
		for i, o := range blk.options {
			rows[i] = transform.Row{Label: o, Values: blk.counts[o]}
		}
		kind := b.md.Scale(resp.code, b.opt.Keywords)
		if kind == survey.ScaleJustRight {
			folded, err := transform.FoldJustRight(rows)
			if err != nil {
				b.warn(Warning{Question: b.q.BaseCode, Message: fmt.Sprintf("just-right fold skipped: %v", err)})
				return nil
			}
			ir.folded = true
			ir.addDerived(folded, offset)
			return nil
		}
		ir.addDerived(transform.TopBoxes(rows, kind), offset)
	default:
		for _, s := range b.opt.Stats {
			vals := ir.stat(s)
			for c, cl := range blk.cells {
				vals[offset+c] = cl.value(s, blk.total)
			}
		}
	}
	return nil
}

// itemRows accumulates one item across waves, keyed by global column.
type itemRows struct {
	label       string
	options     []string
	seen        map[string]bool
	counts      map[string]map[int]float64
	bases       map[int]float64
	derived     []string
	derivedVals map[string]map[int]float64
	stats       map[Stat]map[int]float64
	overall     map[string]float64
	folded      bool
	hideTotal   bool
}

func newItemRows(label string) *itemRows {
	return &itemRows{
		label:       label,
		seen:        map[string]bool{},
		counts:      map[string]map[int]float64{},
		bases:       map[int]float64{},
		derivedVals: map[string]map[int]float64{},
		stats:       map[Stat]map[int]float64{},
		overall:     map[string]float64{},
	}
}

func (ir *itemRows) merge(blk *block, offset int, firstWave bool) {
	for _, o := range blk.options {
		if !ir.seen[o] {
			ir.seen[o] = true
			ir.options = append(ir.options, o)
			ir.counts[o] = map[int]float64{}
		}
		for c, v := range blk.counts[o] {
			ir.counts[o][offset+c] = v
		}
	}
	for c, cl := range blk.cells {
		ir.bases[offset+c] = cl.base
	}
	if firstWave {
		for o, v := range blk.overall {
			ir.overall[o] = v
		}
	}
}

func (ir *itemRows) addDerived(rows []transform.Row, offset int) {
	for _, r := range rows {
		m, ok := ir.derivedVals[r.Label]
		if !ok {
			m = map[int]float64{}
			ir.derivedVals[r.Label] = m
			ir.derived = append(ir.derived, r.Label)
		}
		for c, v := range r.Values {
			m[offset+c] = v
		}
	}
}

func (ir *itemRows) stat(s Stat) map[int]float64 {
	m, ok := ir.stats[s]
	if !ok {
		m = map[int]float64{}
		ir.stats[s] = m
	}
	return m
}

func (ir *itemRows) rows(opt Options, width int) []Row {
	bases := dense(ir.bases, width)
	key := func(option string) RowKey {
		return RowKey{Group: opt.Group, Question: ir.label, Option: option}
	}
	var out []Row
	if !ir.hideTotal {
		out = append(out, Row{Key: key(BaseLabel), Kind: RowTotal, Values: append([]float64(nil), bases...), Bases: bases})
	}
	if !ir.folded {
		for _, o := range sortOptions(ir.options, ir.overall, opt.SortBy, opt.SortOrder) {
			out = append(out, Row{Key: key(o), Kind: RowOption, Values: dense(ir.counts[o], width), Bases: bases})
		}
	}
	for _, d := range ir.derived {
		out = append(out, Row{Key: key(d), Kind: RowDerived, Values: dense(ir.derivedVals[d], width), Bases: bases})
	}
	for _, s := range opt.Stats {
		if m, ok := ir.stats[s]; ok {
			out = append(out, Row{Key: key(string(s)), Kind: RowStat, Values: dense(m, width), Bases: bases})
		}
	}
	return out
}

// dense fills structurally absent cells with 0.
func dense(m map[int]float64, width int) []float64 {
	out := make([]float64, width)
	for c, v := range m {
		if c < width {
			out[c] = v
		}
	}
	return out
}

func dedupe(xs []string) []string {
	seen := make(map[string]bool, len(xs))
	out := xs[:0:0]
	for _, x := range xs {
		if x != "" && !seen[x] {
			seen[x] = true
			out = append(out, x)
		}
	}
	return out
}

func sortNumeric(labels []string) {
	sort.SliceStable(labels, func(i, j int) bool {
		a, _ := strconv.ParseFloat(labels[i], 64)
		b, _ := strconv.ParseFloat(labels[j], 64)
		return a < b
	})
}
