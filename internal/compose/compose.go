package compose

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/KaramelBytes/tabloom-cli/internal/crosstab"
	"github.com/KaramelBytes/tabloom-cli/internal/metrics"
	"github.com/KaramelBytes/tabloom-cli/internal/questions"
	"github.com/KaramelBytes/tabloom-cli/internal/significance"
	"github.com/KaramelBytes/tabloom-cli/internal/survey"
)

// ErrUnknownQuestion is returned for a requested code that no parsed
// question owns.
var ErrUnknownQuestion = errors.New("unknown question")

// QuestionSpec selects one question and its display configuration. A spec
// with Err is reported as skipped without building.
type QuestionSpec struct {
	Code      string   `json:"code" yaml:"code"`
	Group     string   `json:"group,omitempty" yaml:"group,omitempty"`
	Stats     []string `json:"stats,omitempty" yaml:"stats,omitempty"`
	SortBy    string   `json:"sorted_by,omitempty" yaml:"sorted_by,omitempty"`
	SortOrder string   `json:"sort_order,omitempty" yaml:"sort_order,omitempty"`
	Err       error    `json:"-" yaml:"-"`
}

// Request is one batch: questions by cross breaks in one view.
type Request struct {
	Questions   []QuestionSpec
	CrossBreaks []survey.CrossBreak
	View        crosstab.ViewType
}

// Options configures every build of a Composer.
type Options struct {
	Keywords     survey.ScaleKeywords
	Significance significance.Options
	Decimals     int
}

// DefaultOptions returns one decimal, alpha 0.05 and a minimum base of 30.
func DefaultOptions() Options {
	return Options{
		Keywords:     survey.DefaultScaleKeywords(),
		Significance: significance.DefaultOptions(),
		Decimals:     1,
	}
}

// Composer builds reports over one dataset.
type Composer struct {
	ds  *survey.Dataset
	md  *survey.Metadata
	set *questions.Set
	opt Options
	log *zap.Logger
}

// New parses the questions of ds once. A nil logger discards output.
func New(ds *survey.Dataset, md *survey.Metadata, opt Options, log *zap.Logger) *Composer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Composer{ds: ds, md: md, set: questions.ParseDataset(ds, md), opt: opt, log: log}
}

// Questions returns the parsed question set.
func (c *Composer) Questions() *questions.Set { return c.set }

// Compose builds every requested question. A question that fails, or
// panics, is recorded in Report.Errors and the batch continues. Only a
// missing cross break or a cancelled context stops the batch.
func (c *Composer) Compose(ctx context.Context, req Request) (*Report, error) {
	if len(req.CrossBreaks) == 0 {
		return nil, crosstab.ErrNoCrossBreak
	}
	rep := newReport(req.View, c.opt.Decimals)
	for _, qs := range req.Questions {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		start := time.Now()
		p, warns, err := c.question(qs, req)
		rep.Warnings = append(rep.Warnings, warns...)
		if err != nil {
			qe := &QuestionError{Question: qs.Code, Err: err}
			if q, ok := c.lookup(qs.Code); ok {
				qe.Label = q.Label
			}
			reason := "error"
			switch {
			case qs.Err != nil:
				reason = "config"
			case errors.Is(err, ErrUnknownQuestion):
				reason = "unknown"
			}
			metrics.QuestionsSkipped.WithLabelValues(reason).Inc()
			c.log.Warn("question skipped",
				zap.String("question", qe.Question),
				zap.String("label", qe.Label),
				zap.Error(err))
			rep.Errors = append(rep.Errors, qe)
			continue
		}
		rep.add(p)
		metrics.TableBuildDuration.WithLabelValues(req.View.String()).Observe(time.Since(start).Seconds())
	}
	rep.finish()
	c.log.Debug("report composed",
		zap.Int("questions", len(req.Questions)),
		zap.Int("rows", len(rep.Rows)),
		zap.Int("columns", len(rep.Columns)),
		zap.Int("skipped", len(rep.Errors)))
	return rep, nil
}

func (c *Composer) lookup(code string) (*questions.ParsedQuestion, bool) {
	if q, ok := c.set.Get(code); ok {
		return q, true
	}
	return c.set.Find(code)
}

func (c *Composer) question(qs QuestionSpec, req Request) (p *part, warns []crosstab.Warning, err error) {
	if qs.Err != nil {
		return nil, nil, qs.Err
	}
	q, ok := c.lookup(qs.Code)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownQuestion, qs.Code)
	}
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("panic composing question",
				zap.String("question", q.BaseCode),
				zap.Any("panic", r),
				zap.Stack("stack"))
			p, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()

	by, order, err := crosstab.ParseSort(qs.SortBy, qs.SortOrder)
	if err != nil {
		return nil, nil, err
	}
	tables, warns, err := crosstab.Build(c.ds, c.md, req.CrossBreaks, q, crosstab.Options{
		View:      req.View,
		Keywords:  c.opt.Keywords,
		Group:     qs.Group,
		Stats:     crosstab.ParseStats(qs.Stats),
		SortBy:    by,
		SortOrder: order,
		Logger:    c.log,
	})
	if err != nil {
		return nil, warns, err
	}
	p = &part{rowIdx: map[rowID]int{}}
	for _, t := range tables {
		c.annotate(p, t)
		metrics.TablesBuilt.WithLabelValues(req.View.String()).Inc()
	}
	return p, warns, nil
}

type rowID struct {
	key  crosstab.RowKey
	kind crosstab.RowKind
}

type partRow struct {
	key   crosstab.RowKey
	kind  crosstab.RowKind
	cells map[int]Cell
}

// part is one question's tables laid side by side.
type part struct {
	columns []Column
	rows    []*partRow
	rowIdx  map[rowID]int
}

func (p *part) row(key crosstab.RowKey, kind crosstab.RowKind) *partRow {
	id := rowID{key, kind}
	if i, ok := p.rowIdx[id]; ok {
		return p.rows[i]
	}
	r := &partRow{key: key, kind: kind, cells: map[int]Cell{}}
	p.rowIdx[id] = len(p.rows)
	p.rows = append(p.rows, r)
	return r
}

// annotate runs both significance passes on every block of t and appends
// its columns to p.
func (c *Composer) annotate(p *part, t *crosstab.Table) {
	cols := make([]significance.Column, len(t.Columns))
	offset := len(p.columns)
	for i, col := range t.Columns {
		cols[i] = significance.Column{Cross: col.Key.Cross, Option: col.Key.Option, Wave: col.Key.Wave, Margin: col.Margin}
		p.columns = append(p.columns, Column{Key: col.Key, Margin: col.Margin})
	}
	for _, blk := range t.Blocks() {
		counts := make([][]float64, len(blk.Rows))
		testable := make([]bool, len(blk.Rows))
		for k, ri := range blk.Rows {
			counts[k] = t.Rows[ri].Values
			testable[k] = t.Rows[ri].Kind.Testable()
		}
		a := significance.Annotate(counts, blk.Bases, cols, testable, c.opt.Significance)
		metrics.SignificanceTests.Add(float64(a.Tests))
		for j := range t.Columns {
			pc := &p.columns[offset+j]
			if pc.Letter == "" {
				pc.Letter = a.ColumnLetters[j]
			}
			if pc.Roman == "" {
				pc.Roman = a.ColumnRomans[j]
			}
		}
		for k, ri := range blk.Rows {
			row := t.Rows[ri]
			pr := p.row(row.Key, row.Kind)
			for j := range t.Columns {
				pr.cells[offset+j] = newCell(row.Kind, row.Values[j], row.Bases[j], a.Letters[k][j], a.Romans[k][j])
			}
		}
	}
}
