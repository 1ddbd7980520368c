package tabulate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/KaramelBytes/tabloom-cli/internal/catalog"
	"github.com/KaramelBytes/tabloom-cli/internal/compose"
	"github.com/KaramelBytes/tabloom-cli/internal/crosstab"
	"github.com/KaramelBytes/tabloom-cli/internal/questions"
	"github.com/KaramelBytes/tabloom-cli/internal/study"
	"github.com/KaramelBytes/tabloom-cli/internal/survey"
)

// ErrUnknownCrossBreak is returned for a cross break that is neither a
// sidecar cross variable nor a dataset column.
var ErrUnknownCrossBreak = errors.New("unknown cross break")

// Request selects what to tabulate for one study. Empty Questions come
// from the catalog groups (all groups when Groups is empty), or from every
// parsed question without a catalog, where Groups selects sidecar sections.
// Empty CrossBreaks come from the
// catalog cross questions, or from every sidecar cross variable.
type Request struct {
	Study       string                 `json:"study"`
	Questions   []compose.QuestionSpec `json:"questions,omitempty"`
	Groups      []string               `json:"groups,omitempty"`
	CrossBreaks []string               `json:"cross_breaks,omitempty"`
	View        string                 `json:"view,omitempty"`
}

// Service resolves requests against the study registry and the catalog.
type Service struct {
	StudiesDir string
	// Catalog is optional.
	Catalog catalog.Store
	Options compose.Options
	Log     *zap.Logger
}

func (s *Service) log() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

func (s *Service) open(name string) (*study.Study, *study.Data, error) {
	st, err := study.Open(s.StudiesDir, name)
	if err != nil {
		return nil, nil, err
	}
	d, err := st.Read()
	if err != nil {
		return nil, nil, err
	}
	return st, d, nil
}

// QuestionInfo describes one parsed question.
type QuestionInfo struct {
	Code  string   `json:"code"`
	Label string   `json:"label"`
	Kind  string   `json:"kind"`
	Waves []string `json:"waves,omitempty"`
	Codes []string `json:"codes"`
}

// Questions lists the parsed questions of a study in dataset order.
func (s *Service) Questions(_ context.Context, name string) ([]QuestionInfo, error) {
	_, d, err := s.open(name)
	if err != nil {
		return nil, err
	}
	set := questions.ParseDataset(d.Dataset, d.Metadata)
	out := make([]QuestionInfo, 0, set.Len())
	for _, base := range set.Bases() {
		q, _ := set.Get(base)
		out = append(out, QuestionInfo{
			Code:  q.BaseCode,
			Label: q.Label,
			Kind:  q.Kind.String(),
			Waves: q.Waves(),
			Codes: q.RawCodes(),
		})
	}
	return out, nil
}

// Tabulate composes the report of req.
func (s *Service) Tabulate(ctx context.Context, req Request) (*compose.Report, error) {
	view, err := crosstab.ParseViewType(req.View)
	if err != nil {
		return nil, err
	}
	st, d, err := s.open(req.Study)
	if err != nil {
		return nil, err
	}
	comp := compose.New(d.Dataset, d.Metadata, s.Options, s.log())

	specs := req.Questions
	if len(specs) == 0 {
		if specs, err = s.defaultQuestions(ctx, st, d, comp.Questions(), req.Groups); err != nil {
			return nil, err
		}
	}
	labels := req.CrossBreaks
	if len(labels) == 0 {
		if labels, err = s.defaultCrossBreaks(ctx, st, d.Config); err != nil {
			return nil, err
		}
	}
	cbs, err := ResolveCrossBreaks(labels, d.Config, d.Dataset, d.Metadata)
	if err != nil {
		return nil, err
	}
	s.log().Info("tabulating",
		zap.String("study", st.Name),
		zap.Int("questions", len(specs)),
		zap.Strings("cross_breaks", labels),
		zap.String("view", view.String()))
	return comp.Compose(ctx, compose.Request{Questions: specs, CrossBreaks: cbs, View: view})
}

// defaultQuestions takes the catalog groups of the study's category. Without
// a catalog every parsed question is used, grouped by the sidecar section it
// starts in; groups then selects sections.
func (s *Service) defaultQuestions(ctx context.Context, st *study.Study, d *study.Data, set *questions.Set, groups []string) ([]compose.QuestionSpec, error) {
	if s.Catalog != nil && st.Category != "" {
		g, err := s.Catalog.Questions(ctx, st.Category, st.Subcategory, groups)
		if err != nil {
			return nil, fmt.Errorf("catalog questions: %w", err)
		}
		return catalog.Specs(ctx, s.Catalog, g)
	}
	sections := d.Config.Sections(d.Dataset, d.Metadata)
	var out []compose.QuestionSpec
	for _, base := range set.Bases() {
		spec := compose.QuestionSpec{Code: base}
		if q, ok := set.Get(base); ok {
			if codes := q.RawCodes(); len(codes) > 0 {
				spec.Group = sections[codes[0]]
			}
		}
		if len(groups) > 0 && !slices.Contains(groups, spec.Group) {
			continue
		}
		out = append(out, spec)
	}
	return out, nil
}

func (s *Service) defaultCrossBreaks(ctx context.Context, st *study.Study, cfg survey.StudyConfig) ([]string, error) {
	if s.Catalog != nil && st.Category != "" {
		labels, err := s.Catalog.CrossQuestions(ctx, st.Category, st.Subcategory)
		if err != nil {
			return nil, fmt.Errorf("catalog cross questions: %w", err)
		}
		if len(labels) > 0 {
			return labels, nil
		}
	}
	labels := make([]string, 0, len(cfg.CrossVariables))
	for _, cb := range cfg.CrossVariables {
		labels = append(labels, cb.Label)
	}
	return labels, nil
}

// ResolveCrossBreaks maps labels to sidecar cross variables. A label that
// names a dataset column becomes a single-code cross break.
func ResolveCrossBreaks(labels []string, cfg survey.StudyConfig, ds *survey.Dataset, md *survey.Metadata) ([]survey.CrossBreak, error) {
	out := make([]survey.CrossBreak, 0, len(labels))
	for _, l := range labels {
		if cb, ok := cfg.CrossBreak(l); ok {
			out = append(out, cb)
			continue
		}
		if ds.Has(l) {
			label := md.Label(l)
			if label == "" {
				label = l
			}
			out = append(out, survey.CrossBreak{Label: label, Codes: []string{l}})
			continue
		}
		return nil, fmt.Errorf("%w: %s", ErrUnknownCrossBreak, l)
	}
	return out, nil
}

// Formats lists the supported output formats.
var Formats = []string{"html", "xlsx", "text", "json"}

// ContentType returns the MIME type of a format.
func ContentType(format string) string {
	switch format {
	case "html":
		return "text/html; charset=utf-8"
	case "xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case "text":
		return "text/plain; charset=utf-8"
	}
	return "application/json"
}

// Render writes rep in format.
func Render(w io.Writer, rep *compose.Report, format string, xopt compose.XLSXOptions) error {
	switch strings.ToLower(format) {
	case "html":
		return compose.RenderHTML(w, rep)
	case "xlsx":
		return compose.WriteXLSX(w, rep, xopt)
	case "text", "txt":
		return compose.RenderText(w, rep)
	case "json", "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}
	return fmt.Errorf("unsupported format %q (%s)", format, strings.Join(Formats, "|"))
}
