package survey

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const metaFixture = `{
  "column_names_to_labels": {"ID": "Respondent", "P1": "Overall satisfaction", "SEXO": "Gender"},
  "variable_value_labels": {
    "P1": {"5": "5. Very satisfied", "4": "4. Satisfied", "3": "3. Neutral", "2": "2. Unsatisfied", "1": "1. Very unsatisfied"},
    "SEXO": "{1: 'Male', 2: \"Female\"}"
  }
}`

func TestNewDatasetRejectsDuplicateCodes(t *testing.T) {
	_, err := NewDataset("d", []string{"A", "B", "A"}, nil)
	require.ErrorIs(t, err, ErrDuplicateCode)
}

func TestDatasetOrdinalsAndPadding(t *testing.T) {
	ds, err := NewDataset("d", []string{"ID", "P1", "P2"}, [][]string{{"1", "3"}, {"2", " 4 ", "1"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"ID", "P1", "P2"}, ds.Codes())
	c, ok := ds.Column("P2")
	require.True(t, ok)
	assert.Equal(t, 2, c.Ordinal)
	assert.Equal(t, "", ds.Value("P2", 0))
	assert.Equal(t, "4", ds.Value("P1", 1))

	sub := ds.Filter(func(r int) bool { return r == 1 })
	assert.Equal(t, 1, sub.Rows())
	assert.Equal(t, "2", sub.Value("ID", 0))
	assert.Equal(t, 2, ds.Rows(), "filter must not mutate the source")
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"3", 3, true},
		{"3.0", 3, true},
		{"2,5", 2.5, true},
		{"", 0, false},
		{".", 0, false},
		{"abc", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseNumber(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestParseValueMap(t *testing.T) {
	vm, err := ParseValueMap(`{1: 'Sí', 2.0: "No", '3': 'Don\'t know',}`)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, vm.Codes())
	assert.Equal(t, []string{"Sí", "No", "Don't know"}, vm.Labels())

	empty, err := ParseValueMap("{}")
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Len())

	for _, bad := range []string{"", "[1, 2]", "{1: x}", "{1.5: 'a'}", "{1: 'a'", "{1: 'a'} trailing", "__import__('os')"} {
		_, err := ParseValueMap(bad)
		assert.ErrorIs(t, err, ErrBadLiteral, bad)
	}
}

func TestParseMetadataKeepsOrder(t *testing.T) {
	md, err := ParseMetadata([]byte(metaFixture))
	require.NoError(t, err)
	v := md.Variable("P1")
	assert.Equal(t, "Overall satisfaction", v.Label)
	assert.Equal(t, []int{5, 4, 3, 2, 1}, v.Values.Codes())
	assert.Equal(t, []string{"Male", "Female"}, md.Variable("SEXO").Values.Labels())

	missing := md.Variable("NOPE")
	assert.Equal(t, "", missing.Label)
	assert.Equal(t, 0, missing.Values.Len())

	_, err = ParseMetadata([]byte("{not json"))
	assert.ErrorIs(t, err, ErrBadMetadata)
}

func TestScaleClassification(t *testing.T) {
	md := NewMetadata()
	regular := NewValueMap()
	jr := NewValueMap()
	inv := NewValueMap()
	for i, l := range []string{"1. Poor", "2. Fair", "3. Good", "4. Very good", "5. Excellent"} {
		regular.Set(i+1, l)
	}
	for i, l := range []string{"1. Too little", "2. Little", "3. Justo", "4. Much", "5. Too much"} {
		jr.Set(i+1, l)
	}
	for i, l := range []string{"1. Agree", "2. Somewhat agree", "3. Neutral", "4. Somewhat disagree", "5. Disagree"} {
		inv.Set(i+1, l)
	}
	md.SetValues("R", regular)
	md.SetValues("J", jr)
	md.SetValues("I", inv)
	small := NewValueMap()
	small.Set(1, "Yes")
	md.SetValues("S", small)

	kw := ScaleKeywords{JustRight: []string{"justo"}, Inverted: []string{"disagree"}}
	assert.Equal(t, ScaleRegular, md.Scale("R", kw))
	assert.Equal(t, ScaleJustRight, md.Scale("J", kw))
	assert.Equal(t, ScaleInverted, md.Scale("I", kw))
	assert.Equal(t, ScaleNone, md.Scale("S", kw))
	assert.Equal(t, ScaleRegular, md.Scale("I", DefaultScaleKeywords()))
}

func TestReadFileCSVWithSiblingMetadata(t *testing.T) {
	dir := t.TempDir()
	data := filepath.Join(dir, "wave.csv")
	require.NoError(t, os.WriteFile(data, []byte("\ufeffID,P1,SEXO\n1,5,1\n2,4,2\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wave.meta.json"), []byte(metaFixture), 0o644))

	ds, md, err := ReadFile(data, ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, "wave", ds.Name)
	assert.Equal(t, []string{"ID", "P1", "SEXO"}, ds.Codes())
	assert.Equal(t, 2, ds.Rows())
	assert.Equal(t, "Gender", md.Label("SEXO"))

	_, _, err = ReadFile(filepath.Join(dir, "wave.sav"), ReadOptions{})
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestReadXLSX(t *testing.T) {
	dir := t.TempDir()
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"ID", "P1"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{1, 3}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]interface{}{2, 5}))
	path := filepath.Join(dir, "data.xlsx")
	require.NoError(t, f.SaveAs(path))

	ds, err := ReadXLSX(path, ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, ds.Rows())
	assert.Equal(t, "5", ds.Value("P1", 1))

	_, err = ReadXLSX(path, ReadOptions{Sheet: "Missing"})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "available"))
}

func TestSidecarFilters(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "sidecar.json")
	doc := `{"config": {"filters": [{"code": "SEXO", "values": [2]}],
	  "cross_variables": [{"label": "Gender", "codes": ["SEXO"]}],
	  "section_variables": ["P1"]}}`
	require.NoError(t, os.WriteFile(p, []byte(doc), 0o644))
	sc, err := LoadSidecar(p)
	require.NoError(t, err)

	ds, err := NewDataset("d", []string{"ID", "SEXO"}, [][]string{{"1", "1"}, {"2", "2"}, {"3", "2"}, {"4", ""}})
	require.NoError(t, err)
	out, err := sc.Config.Apply(ds)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Rows())

	cb, ok := sc.Config.CrossBreak("Gender")
	require.True(t, ok)
	assert.Equal(t, []string{"SEXO"}, cb.Codes)

	bad := StudyConfig{Filters: []Filter{{Code: "NOPE", Values: []int{1}}}}
	_, err = bad.Apply(ds)
	assert.ErrorIs(t, err, ErrUnknownColumn)
}

func TestSidecarSections(t *testing.T) {
	ds, err := NewDataset("d", []string{"ID", "S1", "P1", "P2", "S2", "P3"}, nil)
	require.NoError(t, err)
	md := NewMetadata()
	md.SetLabel("S1", "Brand health")

	cfg := StudyConfig{SectionVariables: []string{"S2", "S1", "MISSING"}}
	got := cfg.Sections(ds, md)
	assert.Equal(t, map[string]string{
		"S1": "Brand health",
		"P1": "Brand health",
		"P2": "Brand health",
		"S2": "S2",
		"P3": "S2",
	}, got)
	assert.Nil(t, StudyConfig{}.Sections(ds, md))
}
