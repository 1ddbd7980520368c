package compose

import (
	"bytes"
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/KaramelBytes/tabloom-cli/internal/crosstab"
	"github.com/KaramelBytes/tabloom-cli/internal/survey"
)

var gender = survey.CrossBreak{Label: "Gender", Codes: []string{"SEXO"}}

func valueMap(labels ...string) *survey.ValueMap {
	vm := survey.NewValueMap()
	for i, l := range labels {
		vm.Set(i+1, l)
	}
	return vm
}

// fixture has 80 respondents split 40/40 by gender. Q1 is answered "Yes"
// by 36 men and 20 women; P1 is a 5-point scale.
func fixture(t *testing.T) (*survey.Dataset, *survey.Metadata) {
	t.Helper()
	var records [][]string
	for i := 0; i < 80; i++ {
		sexo, yes := "1", i < 36
		if i >= 40 {
			sexo, yes = "2", i < 60
		}
		q1 := "2"
		if yes {
			q1 = "1"
		}
		records = append(records, []string{strconv.Itoa(i + 1), sexo, q1, strconv.Itoa(1 + i%5)})
	}
	ds, err := survey.NewDataset("fixture", []string{"ID", "SEXO", "Q1", "P1"}, records)
	require.NoError(t, err)
	md := survey.NewMetadata()
	md.SetLabel("SEXO", "Gender")
	md.SetValues("SEXO", valueMap("Men", "Women"))
	md.SetLabel("Q1", "Knows the brand")
	md.SetValues("Q1", valueMap("Yes", "No"))
	md.SetLabel("P1", "Overall rating")
	md.SetValues("P1", valueMap("1. Very bad", "2. Bad", "3. Neutral", "4. Good", "5. Very good"))
	return ds, md
}

func compose(t *testing.T, req Request) *Report {
	t.Helper()
	ds, md := fixture(t)
	rep, err := New(ds, md, DefaultOptions(), nil).Compose(context.Background(), req)
	require.NoError(t, err)
	return rep
}

var (
	totalCol = crosstab.ColKey{Cross: crosstab.TotalLabel, Option: crosstab.TotalLabel}
	menCol   = crosstab.ColKey{Cross: "Gender", Option: "Men"}
	womenCol = crosstab.ColKey{Cross: "Gender", Option: "Women"}
)

func TestComposeAnnotatesHigherColumn(t *testing.T) {
	rep := compose(t, Request{Questions: []QuestionSpec{{Code: "Q1"}}, CrossBreaks: []survey.CrossBreak{gender}})
	require.Empty(t, rep.Errors)

	require.Len(t, rep.Columns, 3)
	assert.Equal(t, "", rep.Columns[0].Tag())
	assert.Equal(t, "A", rep.Columns[1].Tag())
	assert.Equal(t, "B", rep.Columns[2].Tag())

	yes, ok := rep.Cell("Knows the brand", "Yes", menCol)
	require.True(t, ok)
	assert.InDelta(t, 90.0, yes.Percent, 1e-9)
	assert.Equal(t, "B", yes.Letters)
	assert.Equal(t, "90.0 B", yes.Display(1))

	no, _ := rep.Cell("Knows the brand", "No", womenCol)
	assert.Equal(t, "50.0 A", no.Display(1))

	total, _ := rep.Cell("Knows the brand", crosstab.BaseLabel, totalCol)
	assert.Equal(t, "80", total.Display(1))
	assert.Empty(t, total.Annotation(), "the base row is never tested")
}

func TestComposePercentRoundTrip(t *testing.T) {
	rep := compose(t, Request{
		Questions:   []QuestionSpec{{Code: "P1"}, {Code: "Q1"}},
		CrossBreaks: []survey.CrossBreak{gender},
	})
	checked := 0
	for _, r := range rep.Rows {
		if r.Kind != crosstab.RowOption {
			continue
		}
		for _, c := range r.Cells {
			require.Greater(t, c.Base, 0.0)
			assert.Equal(t, c.Count, math.Round(c.Percent*c.Base/100))
			checked++
		}
	}
	assert.Equal(t, 21, checked)
}

func TestComposeIsolatesFailingQuestions(t *testing.T) {
	rep := compose(t, Request{
		Questions: []QuestionSpec{
			{Code: "NOPE"},
			{Code: "P1", SortBy: "sideways"},
			{Code: "Q1"},
		},
		CrossBreaks: []survey.CrossBreak{gender},
	})
	require.Len(t, rep.Errors, 2)
	assert.ErrorIs(t, rep.Errors[0], ErrUnknownQuestion)
	assert.Equal(t, "P1", rep.Errors[1].Question)
	assert.Equal(t, "Overall rating", rep.Errors[1].Label)
	assert.Contains(t, rep.Errors[1].Error(), "Overall rating")

	_, ok := rep.Cell("Knows the brand", "Yes", menCol)
	assert.True(t, ok, "the remaining question is still composed")
}

func TestComposeSkipsSpecWithConfigError(t *testing.T) {
	badType := errors.New("question type \"nope\": not found")
	rep := compose(t, Request{
		Questions: []QuestionSpec{
			{Code: "P1", Stats: []string{"mean"}},
			{Code: "Q1", Err: badType},
		},
		CrossBreaks: []survey.CrossBreak{gender},
	})
	require.Len(t, rep.Errors, 1)
	assert.ErrorIs(t, rep.Errors[0], badType)
	assert.Equal(t, "Knows the brand", rep.Errors[0].Label)

	_, ok := rep.Cell("Overall rating", "Mean", menCol)
	assert.True(t, ok)
	_, ok = rep.Cell("Knows the brand", "Yes", menCol)
	assert.False(t, ok)
}

func TestComposeStatRowsKeepRawValues(t *testing.T) {
	rep := compose(t, Request{
		Questions:   []QuestionSpec{{Code: "P1", Stats: []string{"mean"}}},
		CrossBreaks: []survey.CrossBreak{gender},
	})
	mean, ok := rep.Cell("Overall rating", string(crosstab.StatMean), totalCol)
	require.True(t, ok)
	assert.InDelta(t, 3.0, mean.Value(), 1e-9)
	assert.Equal(t, "3.0", mean.Display(1))
}

// waveFixture has 80 respondents split 40/40 by gender. P26 and P27 are the
// same two-wave item: Yes is 90% in V1 and 50% in V2.
func waveFixture(t *testing.T) (*survey.Dataset, *survey.Metadata) {
	t.Helper()
	var records [][]string
	for i := 0; i < 80; i++ {
		sexo := "1"
		if i >= 40 {
			sexo = "2"
		}
		v1, v2 := "1", "2"
		if i%10 == 0 {
			v1 = "2"
		}
		if i%2 == 0 {
			v2 = "1"
		}
		records = append(records, []string{sexo, v1, v2, v1, v2})
	}
	ds, err := survey.NewDataset("waves", []string{"SEXO", "P26_V1_R1", "P26_V2_R1", "P27_V1_R1", "P27_V2_R1"}, records)
	require.NoError(t, err)
	md := survey.NewMetadata()
	md.SetValues("SEXO", valueMap("Men", "Women"))
	md.SetLabel("P26_V1_R1", "Recommend")
	md.SetLabel("P27_V1_R1", "Advocate")
	for _, code := range ds.Codes()[1:] {
		md.SetValues(code, valueMap("Yes", "No"))
	}
	return ds, md
}

func TestComposeGroupedDropsDuplicateMargins(t *testing.T) {
	ds, md := waveFixture(t)
	c := New(ds, md, DefaultOptions(), nil)
	specs := []QuestionSpec{{Code: "P26", Stats: []string{"count"}}, {Code: "P27", Stats: []string{"count"}}}

	detailed, err := c.Compose(context.Background(), Request{Questions: specs, CrossBreaks: []survey.CrossBreak{gender}})
	require.NoError(t, err)
	assert.Len(t, detailed.Columns, 6)
	assert.True(t, detailed.HasWaves())

	grouped, err := c.Compose(context.Background(), Request{
		Questions:   specs,
		CrossBreaks: []survey.CrossBreak{gender},
		View:        crosstab.Grouped,
	})
	require.NoError(t, err)
	require.Empty(t, grouped.Errors)
	require.Len(t, grouped.Columns, 6, "both questions share one TOTAL column per wave")
	margins := map[string]int{}
	for _, col := range grouped.Columns {
		if col.Margin {
			margins[col.Key.Wave]++
		}
	}
	assert.Equal(t, map[string]int{"V1": 1, "V2": 1}, margins)
	for _, r := range grouped.Rows {
		assert.NotEqual(t, crosstab.RowStat, r.Kind)
		assert.Len(t, r.Cells, 6)
	}
	assert.Equal(t, []string{"V1", "V2"}, grouped.Waves())

	// Every roman numeral names a column of the same cross option that is
	// still in the report.
	romans := map[[2]string]map[string]bool{}
	for _, col := range grouped.Columns {
		k := [2]string{col.Key.Cross, col.Key.Option}
		if romans[k] == nil {
			romans[k] = map[string]bool{}
		}
		romans[k][col.Roman] = true
	}
	annotated := 0
	for _, r := range grouped.Rows {
		for j, cell := range r.Cells {
			if cell.Romans == "" {
				continue
			}
			annotated++
			col := grouped.Columns[j]
			for _, id := range strings.Split(cell.Romans, ",") {
				assert.True(t, romans[[2]string{col.Key.Cross, col.Key.Option}][id],
					"%s %s/%s/%s refers to missing column %s", r.Key.Question, col.Key.Cross, col.Key.Option, col.Key.Wave, id)
			}
		}
	}
	assert.Positive(t, annotated)

	v1 := crosstab.ColKey{Cross: crosstab.TotalLabel, Option: crosstab.TotalLabel, Wave: "V1"}
	v2 := crosstab.ColKey{Cross: crosstab.TotalLabel, Option: crosstab.TotalLabel, Wave: "V2"}
	for _, r := range grouped.Rows {
		if r.Key.Option != "Yes" {
			continue
		}
		yes1, ok := grouped.Cell(r.Key.Question, "Yes", v1)
		require.True(t, ok)
		assert.Equal(t, "90.0 II", yes1.Display(1))
		yes2, ok := grouped.Cell(r.Key.Question, "Yes", v2)
		require.True(t, ok)
		assert.Equal(t, "50.0", yes2.Display(1))
	}
}

func TestComposeRequiresCrossBreakAndLiveContext(t *testing.T) {
	ds, md := fixture(t)
	c := New(ds, md, DefaultOptions(), nil)
	_, err := c.Compose(context.Background(), Request{Questions: []QuestionSpec{{Code: "Q1"}}})
	assert.ErrorIs(t, err, crosstab.ErrNoCrossBreak)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Compose(ctx, Request{Questions: []QuestionSpec{{Code: "Q1"}}, CrossBreaks: []survey.CrossBreak{gender}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRenderHTMLStylesAnnotations(t *testing.T) {
	rep := compose(t, Request{Questions: []QuestionSpec{{Code: "Q1"}}, CrossBreaks: []survey.CrossBreak{gender}})
	var buf bytes.Buffer
	require.NoError(t, RenderHTML(&buf, rep))
	out := buf.String()
	assert.Contains(t, out, "position:sticky")
	assert.Contains(t, out, `90.0<span class="sig-letter">B</span>`)
	assert.Contains(t, out, `<th colspan="2">Gender</th>`)
	assert.NotContains(t, out, "sig-roman\">", "a single wave has no roman numerals")
}

func TestRenderText(t *testing.T) {
	rep := compose(t, Request{Questions: []QuestionSpec{{Code: "Q1"}}, CrossBreaks: []survey.CrossBreak{gender}})
	var buf bytes.Buffer
	require.NoError(t, RenderText(&buf, rep))
	out := buf.String()
	assert.Contains(t, out, "Knows the brand")
	assert.Contains(t, out, "Gender: Men")
	assert.Contains(t, out, "90.0 B")
	assert.True(t, strings.Count(out, "\n") > 4)
}

func TestRenderXLSXRejectsBadSheetName(t *testing.T) {
	rep := compose(t, Request{Questions: []QuestionSpec{{Code: "Q1"}}, CrossBreaks: []survey.CrossBreak{gender}})
	f, err := RenderXLSX(rep, XLSXOptions{Sheet: "bad:name"})
	assert.Error(t, err)
	assert.Nil(t, f)
	var buf bytes.Buffer
	assert.Error(t, WriteXLSX(&buf, rep, XLSXOptions{Sheet: "bad:name"}))
	assert.Zero(t, buf.Len())
}

func TestRenderXLSX(t *testing.T) {
	rep := compose(t, Request{Questions: []QuestionSpec{{Code: "Q1"}, {Code: "P1"}}, CrossBreaks: []survey.CrossBreak{gender}})
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, rep, XLSXOptions{Chart: true}))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Contains(t, f.GetSheetList(), "Tables")
	assert.Contains(t, f.GetSheetList(), chartDataSheet)

	v, err := f.GetCellValue("Tables", "E1")
	require.NoError(t, err)
	assert.Equal(t, "Gender", v)
	v, err = f.GetCellValue("Tables", "B2")
	require.NoError(t, err)
	assert.Equal(t, "Question", v)

	merged, err := f.GetMergeCells("Tables")
	require.NoError(t, err)
	assert.NotEmpty(t, merged)

	// Row 4 is the Q1 base row; row 5 is "Yes".
	v, err = f.GetCellValue("Tables", "D4")
	require.NoError(t, err)
	assert.Equal(t, "80", v)
	v, err = f.GetCellValue("Tables", "E5")
	require.NoError(t, err)
	assert.Equal(t, "90.0 B", v)
	runs, err := f.GetCellRichText("Tables", "E5")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	require.NotNil(t, runs[1].Font)
	assert.Contains(t, runs[1].Font.Color, letterColor)

	v, err = f.GetCellValue(chartDataSheet, "A2")
	require.NoError(t, err)
	assert.Equal(t, "Yes", v)
}
