package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/tabloom-cli/internal/compose"
)

// ErrNotFound is returned for an unknown category, subcategory or question type.
var ErrNotFound = errors.New("not found in catalog")

// QuestionConfig is the stored display configuration of one question.
type QuestionConfig struct {
	Code           string `json:"code" yaml:"code"`
	Label          string `json:"label" yaml:"label"`
	QuestionTypeID string `json:"question_type_id" yaml:"question_type_id"`
	SortedBy       string `json:"sorted_by,omitempty" yaml:"sorted_by,omitempty"`
	SortOrder      string `json:"sort_order,omitempty" yaml:"sort_order,omitempty"`
	Order          int    `json:"order" yaml:"order"`
}

// QuestionType lists the statistic rows of a family of questions.
type QuestionType struct {
	Code       string   `json:"code" yaml:"code"`
	Properties []string `json:"properties" yaml:"properties"`
}

// Group is a named, ordered list of questions.
type Group struct {
	Name      string           `json:"name" yaml:"name"`
	Questions []QuestionConfig `json:"questions" yaml:"questions"`
}

// Store serves study configuration. Results are stable and safe to cache.
type Store interface {
	// Questions returns the groups of a category/subcategory in stored
	// order, each with questions sorted by Order. An empty groups filter
	// returns every group.
	Questions(ctx context.Context, category, subcategory string, groups []string) ([]Group, error)
	QuestionType(ctx context.Context, id string) (QuestionType, error)
	// CrossQuestions returns the cross break labels offered for a
	// category/subcategory.
	CrossQuestions(ctx context.Context, category, subcategory string) ([]string, error)
}

type subcategoryDoc struct {
	Name           string   `yaml:"name"`
	CrossQuestions []string `yaml:"cross_questions"`
	Groups         []Group  `yaml:"groups"`
}

type categoryDoc struct {
	Name           string           `yaml:"name"`
	CrossQuestions []string         `yaml:"cross_questions"`
	Subcategories  []subcategoryDoc `yaml:"subcategories"`
}

type document struct {
	Categories    []categoryDoc           `yaml:"categories"`
	QuestionTypes map[string]QuestionType `yaml:"question_types"`
}

// File is a Store backed by one YAML document.
type File struct {
	doc document
}

// LoadFile reads a YAML catalog.
func LoadFile(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseFile(b)
}

// ParseFile decodes a YAML catalog document.
func ParseFile(b []byte) (*File, error) {
	var doc document
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return &File{doc: doc}, nil
}

func (f *File) subcategory(category, subcategory string) (*categoryDoc, *subcategoryDoc, error) {
	for i := range f.doc.Categories {
		c := &f.doc.Categories[i]
		if c.Name != category {
			continue
		}
		for j := range c.Subcategories {
			if c.Subcategories[j].Name == subcategory {
				return c, &c.Subcategories[j], nil
			}
		}
		return nil, nil, fmt.Errorf("subcategory %q of %q: %w", subcategory, category, ErrNotFound)
	}
	return nil, nil, fmt.Errorf("category %q: %w", category, ErrNotFound)
}

func (f *File) Questions(_ context.Context, category, subcategory string, groups []string) ([]Group, error) {
	_, sub, err := f.subcategory(category, subcategory)
	if err != nil {
		return nil, err
	}
	want := map[string]bool{}
	for _, g := range groups {
		want[g] = true
	}
	var out []Group
	for _, g := range sub.Groups {
		if len(want) > 0 && !want[g.Name] {
			continue
		}
		qs := append([]QuestionConfig(nil), g.Questions...)
		sort.SliceStable(qs, func(i, j int) bool { return qs[i].Order < qs[j].Order })
		out = append(out, Group{Name: g.Name, Questions: qs})
	}
	return out, nil
}

func (f *File) QuestionType(_ context.Context, id string) (QuestionType, error) {
	qt, ok := f.doc.QuestionTypes[id]
	if !ok {
		return QuestionType{}, fmt.Errorf("question type %q: %w", id, ErrNotFound)
	}
	if qt.Code == "" {
		qt.Code = id
	}
	return qt, nil
}

// CrossQuestions prefers the subcategory list and falls back to the category's.
func (f *File) CrossQuestions(_ context.Context, category, subcategory string) ([]string, error) {
	cat, sub, err := f.subcategory(category, subcategory)
	if err != nil {
		return nil, err
	}
	if len(sub.CrossQuestions) > 0 {
		return append([]string(nil), sub.CrossQuestions...), nil
	}
	return append([]string(nil), cat.CrossQuestions...), nil
}

// Specs turns catalog groups into composer question specs, resolving each
// question type into its statistic rows. A question without a type gets
// no statistics. A type that cannot be resolved is attached to its spec as
// Err; only a cancelled context fails the whole call.
func Specs(ctx context.Context, s Store, groups []Group) ([]compose.QuestionSpec, error) {
	var out []compose.QuestionSpec
	types := map[string][]string{}
	failed := map[string]error{}
	for _, g := range groups {
		for _, q := range g.Questions {
			spec := compose.QuestionSpec{
				Code:      q.Code,
				Group:     g.Name,
				SortBy:    q.SortedBy,
				SortOrder: q.SortOrder,
			}
			if id := q.QuestionTypeID; id != "" {
				props, ok := types[id]
				if !ok && failed[id] == nil {
					qt, err := s.QuestionType(ctx, id)
					if err != nil {
						if ctxErr := ctx.Err(); ctxErr != nil {
							return nil, ctxErr
						}
						failed[id] = err
					} else {
						props = qt.Properties
						types[id] = props
					}
				}
				spec.Err = failed[id]
				spec.Stats = props
			}
			out = append(out, spec)
		}
	}
	return out, nil
}
