package crosstab

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/tabloom-cli/internal/questions"
	"github.com/KaramelBytes/tabloom-cli/internal/survey"
)

var scaleLabels = []string{"1. Very bad", "2. Bad", "3. Neutral", "4. Good", "5. Very good"}

func valueMap(labels ...string) *survey.ValueMap {
	vm := survey.NewValueMap()
	for i, l := range labels {
		vm.Set(i+1, l)
	}
	return vm
}

// scaleFixture is 20 respondents answering a 5-point scale with value
// counts [2,3,5,6,4] and alternating between two cross groups.
func scaleFixture(t *testing.T, labels []string) (*survey.Dataset, *survey.Metadata) {
	t.Helper()
	answers := []int{1, 1, 2, 2, 2, 3, 3, 3, 3, 3, 4, 4, 4, 4, 4, 4, 5, 5, 5, 5}
	records := make([][]string, len(answers))
	for i, a := range answers {
		records[i] = []string{strconv.Itoa(i + 1), strconv.Itoa(a), strconv.Itoa(1 + i%2), strconv.Itoa(1 + i%3%2)}
	}
	ds, err := survey.NewDataset("fixture", []string{"ID", "P1", "SEXO", "ZONA"}, records)
	require.NoError(t, err)

	md := survey.NewMetadata()
	md.SetLabel("P1", "Overall rating")
	md.SetValues("P1", valueMap(labels...))
	md.SetLabel("SEXO", "Gender")
	sexo := survey.NewValueMap()
	sexo.Set(2, "Women")
	sexo.Set(1, "Men")
	md.SetValues("SEXO", sexo)
	md.SetValues("ZONA", valueMap("North", "South"))
	return ds, md
}

func question(t *testing.T, ds *survey.Dataset, md *survey.Metadata, base string) *questions.ParsedQuestion {
	t.Helper()
	q, ok := questions.ParseDataset(ds, md).Get(base)
	require.True(t, ok, "question %s", base)
	return q
}

var gender = survey.CrossBreak{Label: "Gender", Codes: []string{"SEXO"}}

func colSum(t *Table, col int, kind RowKind) float64 {
	s := 0.0
	for _, r := range t.Rows {
		if r.Kind == kind {
			s += r.Values[col]
		}
	}
	return s
}

func TestBuildScaleAgainstBinaryCross(t *testing.T) {
	ds, md := scaleFixture(t, scaleLabels)
	tables, warns, err := Build(ds, md, []survey.CrossBreak{gender}, question(t, ds, md, "P1"), DefaultOptions())
	require.NoError(t, err)
	assert.Empty(t, warns)
	require.Len(t, tables, 1)
	tb := tables[0]

	require.Len(t, tb.Columns, 3)
	assert.Equal(t, ColKey{Cross: TotalLabel, Option: TotalLabel}, tb.Columns[0].Key)
	assert.True(t, tb.Columns[0].Margin)
	assert.Equal(t, "Women", tb.Columns[1].Key.Option, "columns follow the value map order")
	assert.Equal(t, "Men", tb.Columns[2].Key.Option)

	total, ok := tb.Find("Overall rating", BaseLabel)
	require.True(t, ok)
	assert.Equal(t, RowTotal, total.Kind)
	assert.Equal(t, []float64{20, 10, 10}, total.Values)
	assert.Equal(t, RowTotal, tb.Rows[0].Kind, "the base row comes first")

	assert.Equal(t, 20.0, colSum(tb, 0, RowOption))
	assert.Equal(t, 10.0, colSum(tb, 1, RowOption))
	assert.Equal(t, 10.0, colSum(tb, 2, RowOption))

	good, ok := tb.Find("Overall rating", "4. Good")
	require.True(t, ok)
	assert.Equal(t, []float64{6, 3, 3}, good.Values)
	assert.Equal(t, total.Values, good.Bases)

	var opts []string
	for _, r := range tb.Rows {
		if r.Kind == RowOption {
			opts = append(opts, r.Key.Option)
		}
	}
	assert.Equal(t, scaleLabels, opts)
}

func TestBuildMarginOnlyOnFirstCrossBreak(t *testing.T) {
	ds, md := scaleFixture(t, scaleLabels)
	zona := survey.CrossBreak{Label: "Zone", Codes: []string{"ZONA"}}
	tables, _, err := Build(ds, md, []survey.CrossBreak{gender, zona}, question(t, ds, md, "P1"), DefaultOptions())
	require.NoError(t, err)
	require.Len(t, tables, 2)
	assert.Len(t, tables[0].Columns, 3)
	require.Len(t, tables[1].Columns, 2)
	for _, c := range tables[1].Columns {
		assert.False(t, c.Margin)
		assert.Equal(t, "Zone", c.Key.Cross)
	}
}

func TestBuildGroupedAddsTopBoxes(t *testing.T) {
	ds, md := scaleFixture(t, scaleLabels)
	opt := DefaultOptions()
	opt.View = Grouped
	opt.Stats = []Stat{StatMean}
	tables, _, err := Build(ds, md, []survey.CrossBreak{gender}, question(t, ds, md, "P1"), opt)
	require.NoError(t, err)
	tb := tables[0]

	t2b, ok := tb.Find("Overall rating", "T2B")
	require.True(t, ok)
	assert.Equal(t, RowDerived, t2b.Kind)
	assert.Equal(t, []float64{10, 5, 5}, t2b.Values)
	top, ok := tb.Find("Overall rating", "TB")
	require.True(t, ok)
	assert.Equal(t, []float64{4, 2, 2}, top.Values)

	_, ok = tb.Find("Overall rating", string(StatMean))
	assert.False(t, ok, "grouped view carries no statistic rows")
}

func TestBuildGroupedFoldsJustRight(t *testing.T) {
	ds, md := scaleFixture(t, []string{"1. Far too little", "2. Too little", "3. Justo", "4. Too much", "5. Far too much"})
	opt := DefaultOptions()
	opt.View = Grouped
	tables, _, err := Build(ds, md, []survey.CrossBreak{gender}, question(t, ds, md, "P1"), opt)
	require.NoError(t, err)
	tb := tables[0]

	var labels []string
	for _, r := range tb.Rows {
		labels = append(labels, r.Key.Option)
	}
	assert.Equal(t, []string{BaseLabel, "Bottom 2 Box", "Just Right", "Top 2 Box"}, labels)
	jr, _ := tb.Find("Overall rating", "Just Right")
	assert.Equal(t, []float64{5, 3, 2}, jr.Values)
	assert.Equal(t, 20.0, colSum(tb, 0, RowDerived))
}

func TestBuildDetailedStatistics(t *testing.T) {
	ds, md := scaleFixture(t, scaleLabels)
	opt := DefaultOptions()
	opt.Stats = ParseStats([]string{"Mean", "count", "% of total", "unknown"})
	require.Equal(t, []Stat{StatMean, StatCount, StatPercent}, opt.Stats)

	tables, _, err := Build(ds, md, []survey.CrossBreak{gender}, question(t, ds, md, "P1"), opt)
	require.NoError(t, err)
	tb := tables[0]

	mean, ok := tb.Find("Overall rating", string(StatMean))
	require.True(t, ok)
	assert.Equal(t, RowStat, mean.Kind)
	assert.InDelta(t, 3.35, mean.Values[0], 1e-9)
	assert.InDelta(t, 3.4, mean.Values[1], 1e-9)
	assert.InDelta(t, 3.3, mean.Values[2], 1e-9)

	count, _ := tb.Find("Overall rating", string(StatCount))
	assert.Equal(t, []float64{20, 10, 10}, count.Values)
	pct, _ := tb.Find("Overall rating", string(StatPercent))
	assert.Equal(t, []float64{100, 50, 50}, pct.Values)

	last := tb.Rows[len(tb.Rows)-1]
	assert.Equal(t, RowStat, last.Kind, "statistic rows come last")
}

func TestBuildSortByValues(t *testing.T) {
	ds, md := scaleFixture(t, scaleLabels)
	opt := DefaultOptions()
	opt.SortBy, opt.SortOrder = SortByValues, SortDesc
	tables, _, err := Build(ds, md, []survey.CrossBreak{gender}, question(t, ds, md, "P1"), opt)
	require.NoError(t, err)
	var opts []string
	for _, r := range tables[0].Rows {
		if r.Kind == RowOption {
			opts = append(opts, r.Key.Option)
		}
	}
	assert.Equal(t, []string{"4. Good", "3. Neutral", "5. Very good", "2. Bad", "1. Very bad"}, opts)

	opt.SortBy, opt.SortOrder = SortByOptions, SortDesc
	tables, _, err = Build(ds, md, []survey.CrossBreak{gender}, question(t, ds, md, "P1"), opt)
	require.NoError(t, err)
	assert.Equal(t, "5. Very good", tables[0].Rows[1].Key.Option)
}

func TestBuildWavesSideBySide(t *testing.T) {
	records := [][]string{
		{"1", "1", "2", "1", "1"},
		{"1", "1", "1", "2", "2"},
		{"2", "", "2", "1", "2"},
		{"2", "2", "2", "2", "1"},
	}
	ds, err := survey.NewDataset("waves", []string{"SEXO", "P26_V1_R1", "P26_V2_R1", "ZONA_V1", "ZONA_V2"}, records)
	require.NoError(t, err)
	md := survey.NewMetadata()
	md.SetValues("SEXO", valueMap("Men", "Women"))
	md.SetLabel("P26_V1_R1", "Would recommend")
	md.SetValues("P26_V1_R1", valueMap("Yes", "No"))
	md.SetValues("P26_V2_R1", valueMap("Yes", "No"))
	md.SetValues("ZONA_V1", valueMap("North", "South"))
	md.SetValues("ZONA_V2", valueMap("North", "South"))

	q := question(t, ds, md, "P26")
	require.Equal(t, []string{"V1", "V2"}, q.Waves())

	tables, _, err := Build(ds, md, []survey.CrossBreak{gender}, q, DefaultOptions())
	require.NoError(t, err)
	tb := tables[0]
	assert.Equal(t, []string{"V1", "V2"}, tb.Waves())
	require.Len(t, tb.Columns, 6)

	total, ok := tb.Find("Would recommend", BaseLabel)
	require.True(t, ok)
	assert.Equal(t, []float64{3, 2, 1, 4, 2, 2}, total.Values)
	yes, _ := tb.Find("Would recommend", "Yes")
	assert.Equal(t, []float64{2, 2, 0, 1, 1, 0}, yes.Values)

	zone := survey.CrossBreak{Label: "Zone", Codes: []string{"ZONA_V1", "ZONA_V2"}}
	tables, _, err = Build(ds, md, []survey.CrossBreak{zone}, q, DefaultOptions())
	require.NoError(t, err)
	yes, _ = tables[0].Find("Would recommend", "Yes")
	// V1 by ZONA_V1, V2 by ZONA_V2.
	assert.Equal(t, []float64{2, 1, 1, 1, 0, 1}, yes.Values)
}

func TestBuildRepeatedWaveWarnsAndCombinesFirst(t *testing.T) {
	records := [][]string{{"1", "1", ""}, {"1", "", "2"}, {"2", "2", "1"}}
	ds, err := survey.NewDataset("dup", []string{"SEXO", "P7_V1_R1", "P7_R1_V1"}, records)
	require.NoError(t, err)
	md := survey.NewMetadata()
	md.SetValues("SEXO", valueMap("Men", "Women"))
	md.SetLabel("P7_V1_R1", "Aware")
	md.SetValues("P7_V1_R1", valueMap("Yes", "No"))
	md.SetValues("P7_R1_V1", valueMap("Yes", "No"))

	tables, warns, err := Build(ds, md, []survey.CrossBreak{gender}, question(t, ds, md, "P7"), DefaultOptions())
	require.NoError(t, err)
	require.Len(t, warns, 1)
	assert.Equal(t, "V1", warns[0].Wave)
	assert.Contains(t, warns[0].String(), "P7_R1_V1")

	total, _ := tables[0].Find("Aware", BaseLabel)
	assert.Equal(t, []float64{3, 2, 1}, total.Values)
	yes, _ := tables[0].Find("Aware", "Yes")
	assert.Equal(t, []float64{1, 1, 0}, yes.Values)
	no, _ := tables[0].Find("Aware", "No")
	assert.Equal(t, []float64{2, 1, 1}, no.Values, "the second respondent has no first value and takes the repeat's")
}

func TestBuildFilterIndicatorHidesTotal(t *testing.T) {
	ds, err := survey.NewDataset("f", []string{"SEXO", "S1"}, [][]string{{"1", "1"}, {"2", "1"}, {"2", ""}})
	require.NoError(t, err)
	md := survey.NewMetadata()
	md.SetValues("SEXO", valueMap("Men", "Women"))
	md.SetLabel("S1", "Buyer")
	md.SetValues("S1", valueMap("Bought"))

	tables, _, err := Build(ds, md, []survey.CrossBreak{gender}, question(t, ds, md, "S1"), DefaultOptions())
	require.NoError(t, err)
	tb := tables[0]
	require.Len(t, tb.Rows, 1)
	assert.Equal(t, RowOption, tb.Rows[0].Kind)
	assert.Equal(t, []float64{2, 1, 1}, tb.Rows[0].Values)
	assert.Equal(t, []float64{2, 1, 1}, tb.Rows[0].Bases)
}

func TestBuildMultiResponse(t *testing.T) {
	records := [][]string{{"1", "1", "1"}, {"1", "", "1"}, {"2", "1", ""}, {"2", "", ""}}
	ds, err := survey.NewDataset("m", []string{"SEXO", "F11A1", "F11A2"}, records)
	require.NoError(t, err)
	md := survey.NewMetadata()
	md.SetValues("SEXO", valueMap("Men", "Women"))
	md.SetLabel("F11A1", "Brands used")
	md.SetValues("F11A1", valueMap("Brand A"))
	md.SetValues("F11A2", valueMap("Brand B"))

	q := question(t, ds, md, "F11")
	require.Equal(t, questions.MultiResponse, q.Kind)
	opt := DefaultOptions()
	opt.Stats = []Stat{StatAnswers}
	tables, _, err := Build(ds, md, []survey.CrossBreak{gender}, q, opt)
	require.NoError(t, err)
	tb := tables[0]

	total, _ := tb.Find("Brands used", BaseLabel)
	assert.Equal(t, []float64{3, 2, 1}, total.Values)
	a, _ := tb.Find("Brands used", "Brand A")
	assert.Equal(t, []float64{2, 1, 1}, a.Values)
	b, _ := tb.Find("Brands used", "Brand B")
	assert.Equal(t, []float64{2, 2, 0}, b.Values)
	answers, _ := tb.Find("Brands used", string(StatAnswers))
	assert.Equal(t, []float64{4, 3, 1}, answers.Values)
}

func TestBuildErrors(t *testing.T) {
	ds, md := scaleFixture(t, scaleLabels)
	q := question(t, ds, md, "P1")

	_, _, err := Build(ds, md, nil, q, DefaultOptions())
	assert.ErrorIs(t, err, ErrNoCrossBreak)
	_, _, err = Build(ds, md, []survey.CrossBreak{{Label: "Empty"}}, q, DefaultOptions())
	assert.ErrorIs(t, err, ErrNoCrossBreak)
	_, _, err = Build(ds, md, []survey.CrossBreak{{Label: "X", Codes: []string{"NOPE"}}}, q, DefaultOptions())
	assert.ErrorIs(t, err, survey.ErrUnknownColumn)
	_, _, err = Build(ds, md, []survey.CrossBreak{gender}, &questions.ParsedQuestion{BaseCode: "P9"}, DefaultOptions())
	assert.ErrorIs(t, err, ErrEmptyQuestion)
}

func TestParseHelpers(t *testing.T) {
	v, err := ParseViewType("Grouped")
	require.NoError(t, err)
	assert.Equal(t, Grouped, v)
	_, err = ParseViewType("pivot")
	assert.Error(t, err)

	by, order, err := ParseSort("values", "")
	require.NoError(t, err)
	assert.Equal(t, SortByValues, by)
	assert.Equal(t, SortOriginal, order)
	_, _, err = ParseSort("labels", "asc")
	assert.Error(t, err)
	_, _, err = ParseSort("options", "sideways")
	assert.Error(t, err)
}

func TestBlocksShareBases(t *testing.T) {
	ds, md := scaleFixture(t, scaleLabels)
	tables, _, err := Build(ds, md, []survey.CrossBreak{gender}, question(t, ds, md, "P1"), DefaultOptions())
	require.NoError(t, err)
	blocks := tables[0].Blocks()
	require.Len(t, blocks, 1)
	assert.Len(t, blocks[0].Rows, 6)
	assert.Equal(t, []float64{20, 10, 10}, blocks[0].Bases)
}
