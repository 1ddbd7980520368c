package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/tabloom-cli/internal/cache"
)

const fixture = `
categories:
  - name: food
    cross_questions: [Gender]
    subcategories:
      - name: snacks
        cross_questions: [Gender, Zone]
        groups:
          - name: Liking
            questions:
              - {code: P2, label: Crunch, question_type_id: scale, order: 2}
              - {code: P1, label: Taste, question_type_id: scale, sorted_by: values, sort_order: desc, order: 1}
          - name: Profile
            questions:
              - {code: Q1, label: Bought, order: 1}
      - name: drinks
        groups: []
question_types:
  scale:
    properties: [Mean, Std. Deviation]
`

func load(t *testing.T) *File {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fixture), 0o644))
	f, err := LoadFile(path)
	require.NoError(t, err)
	return f
}

func TestQuestionsOrdered(t *testing.T) {
	f := load(t)
	groups, err := f.Questions(context.Background(), "food", "snacks", nil)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "Liking", groups[0].Name)
	assert.Equal(t, "P1", groups[0].Questions[0].Code)
	assert.Equal(t, "P2", groups[0].Questions[1].Code)

	only, err := f.Questions(context.Background(), "food", "snacks", []string{"Profile"})
	require.NoError(t, err)
	require.Len(t, only, 1)
	assert.Equal(t, "Q1", only[0].Questions[0].Code)
}

func TestNotFound(t *testing.T) {
	f := load(t)
	_, err := f.Questions(context.Background(), "toys", "snacks", nil)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.Questions(context.Background(), "food", "toys", nil)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.QuestionType(context.Background(), "matrix")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCrossQuestionsFallback(t *testing.T) {
	f := load(t)
	got, err := f.CrossQuestions(context.Background(), "food", "snacks")
	require.NoError(t, err)
	assert.Equal(t, []string{"Gender", "Zone"}, got)
	got, err = f.CrossQuestions(context.Background(), "food", "drinks")
	require.NoError(t, err)
	assert.Equal(t, []string{"Gender"}, got)
}

func TestSpecs(t *testing.T) {
	f := load(t)
	groups, err := f.Questions(context.Background(), "food", "snacks", nil)
	require.NoError(t, err)
	specs, err := Specs(context.Background(), f, groups)
	require.NoError(t, err)
	require.Len(t, specs, 3)
	assert.Equal(t, "P1", specs[0].Code)
	assert.Equal(t, "Liking", specs[0].Group)
	assert.Equal(t, "values", specs[0].SortBy)
	assert.Equal(t, "desc", specs[0].SortOrder)
	assert.Equal(t, []string{"Mean", "Std. Deviation"}, specs[0].Stats)
	assert.Empty(t, specs[2].Stats)
}

func TestSpecsKeepsQuestionsBesideUnknownType(t *testing.T) {
	f := load(t)
	groups := []Group{{Name: "Liking", Questions: []QuestionConfig{
		{Code: "P1", QuestionTypeID: "scale"},
		{Code: "P9", QuestionTypeID: "nope"},
		{Code: "Q1"},
	}}}
	specs, err := Specs(context.Background(), f, groups)
	require.NoError(t, err)
	require.Len(t, specs, 3)
	assert.NoError(t, specs[0].Err)
	assert.Equal(t, []string{"Mean", "Std. Deviation"}, specs[0].Stats)
	assert.ErrorIs(t, specs[1].Err, ErrNotFound)
	assert.Equal(t, "P9", specs[1].Code)
	assert.NoError(t, specs[2].Err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Specs(ctx, f, groups)
	assert.ErrorIs(t, err, context.Canceled)
}

type countingStore struct {
	Store
	calls int
}

func (c *countingStore) Questions(ctx context.Context, category, subcategory string, groups []string) ([]Group, error) {
	c.calls++
	return c.Store.Questions(ctx, category, subcategory, groups)
}

func TestCachedMemoizesAndInvalidates(t *testing.T) {
	inner := &countingStore{Store: load(t)}
	c := NewCached(inner, cache.NewMemory(), time.Minute)
	ctx := context.Background()

	a, err := c.Questions(ctx, "food", "snacks", nil)
	require.NoError(t, err)
	b, err := c.Questions(ctx, "food", "snacks", nil)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, 1, inner.calls)

	qt, err := c.QuestionType(ctx, "scale")
	require.NoError(t, err)
	assert.Equal(t, "scale", qt.Code)

	n, err := c.Invalidate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	_, err = c.Questions(ctx, "food", "snacks", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)

	_, err = c.QuestionType(ctx, "matrix")
	assert.ErrorIs(t, err, ErrNotFound, "errors pass through uncached")
}
