package compose

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/KaramelBytes/tabloom-cli/internal/crosstab"
)

const (
	leadCols       = 3
	chartDataSheet = "chart_data"
	letterColor    = "C00000"
	romanColor     = "2E75B6"
)

// XLSXOptions controls the workbook export.
type XLSXOptions struct {
	Sheet string
	// Chart adds a bar chart of the first TOTAL column for the first
	// question's options.
	Chart bool
}

type xlsxStyles struct {
	header, label, pct, count, stat, rich int
}

func newStyles(f *excelize.File, decimals int) (xlsxStyles, error) {
	var st xlsxStyles
	border := []excelize.Border{
		{Type: "left", Color: "BFBFBF", Style: 1},
		{Type: "top", Color: "BFBFBF", Style: 1},
		{Type: "bottom", Color: "BFBFBF", Style: 1},
		{Type: "right", Color: "BFBFBF", Style: 1},
	}
	numFmt := "0"
	if decimals > 0 {
		numFmt = "0." + strings.Repeat("0", decimals)
	}
	right := &excelize.Alignment{Horizontal: "right", Vertical: "center"}
	specs := []struct {
		dst   *int
		style *excelize.Style
	}{
		{&st.header, &excelize.Style{
			Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
			Fill:      excelize.Fill{Type: "pattern", Color: []string{"1F4E78"}, Pattern: 1},
			Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
			Border:    border,
		}},
		{&st.label, &excelize.Style{
			Alignment: &excelize.Alignment{Vertical: "top", WrapText: true},
			Border:    border,
		}},
		{&st.pct, &excelize.Style{Border: border, Alignment: right, CustomNumFmt: &numFmt}},
		{&st.count, &excelize.Style{
			Border:    border,
			Alignment: right,
			NumFmt:    1,
			Font:      &excelize.Font{Bold: true},
			Fill:      excelize.Fill{Type: "pattern", Color: []string{"F2F2F2"}, Pattern: 1},
		}},
		{&st.stat, &excelize.Style{Border: border, Alignment: right, CustomNumFmt: &numFmt, Font: &excelize.Font{Italic: true}}},
		{&st.rich, &excelize.Style{Border: border, Alignment: right}},
	}
	for _, s := range specs {
		id, err := f.NewStyle(s.style)
		if err != nil {
			return st, fmt.Errorf("xlsx style: %w", err)
		}
		*s.dst = id
	}
	return st, nil
}

func cellName(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

// RenderXLSX builds a workbook with merged multi-level headers. Annotated
// cells are rich text with letters and roman numerals in their own colors;
// other cells stay numeric.
func RenderXLSX(rep *Report, opt XLSXOptions) (_ *excelize.File, err error) {
	sheet := opt.Sheet
	if sheet == "" {
		sheet = "Tables"
	}
	f := excelize.NewFile()
	defer func() {
		if err != nil {
			f.Close()
		}
	}()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("xlsx sheet: %w", err)
	}
	st, err := newStyles(f, rep.Decimals)
	if err != nil {
		return nil, err
	}

	h := buildHeader(rep)
	var levels [][]span
	if len(h.Waves) > 0 {
		levels = append(levels, h.Waves)
	}
	levels = append(levels, h.Crosses, h.Options, h.Tags)
	lastCol := leadCols + len(rep.Columns)

	for li, lvl := range levels {
		row := li + 1
		col := leadCols + 1
		for _, s := range lvl {
			if err := f.SetCellValue(sheet, cellName(col, row), s.Text); err != nil {
				return nil, err
			}
			if s.Span > 1 {
				if err := f.MergeCell(sheet, cellName(col, row), cellName(col+s.Span-1, row)); err != nil {
					return nil, fmt.Errorf("xlsx merge: %w", err)
				}
			}
			col += s.Span
		}
	}
	optRow := len(levels) - 1
	for i, l := range []string{"Group", "Question", "Option"} {
		if err := f.SetCellValue(sheet, cellName(i+1, optRow), l); err != nil {
			return nil, err
		}
	}
	if err := f.SetCellStyle(sheet, "A1", cellName(lastCol, len(levels)), st.header); err != nil {
		return nil, err
	}

	first := len(levels) + 1
	questionStart := first
	for i, r := range rep.Rows {
		row := first + i
		for j, v := range []string{r.Key.Group, r.Key.Question, r.Key.Option} {
			if err := f.SetCellValue(sheet, cellName(j+1, row), v); err != nil {
				return nil, err
			}
		}
		if err := f.SetCellStyle(sheet, cellName(1, row), cellName(leadCols, row), st.label); err != nil {
			return nil, err
		}
		for j, c := range r.Cells {
			if err := writeCell(f, sheet, cellName(leadCols+1+j, row), r.Kind, c, rep.Decimals, st); err != nil {
				return nil, err
			}
		}
		// Merge the question label over its block.
		next := i + 1
		if next == len(rep.Rows) || rep.Rows[next].Key.Question != r.Key.Question {
			if row > questionStart {
				if err := f.MergeCell(sheet, cellName(2, questionStart), cellName(2, row)); err != nil {
					return nil, err
				}
			}
			questionStart = row + 1
		}
	}

	if err := f.SetColWidth(sheet, "A", "A", 14); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(sheet, "B", "B", 40); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(sheet, "C", "C", 28); err != nil {
		return nil, err
	}
	if len(rep.Columns) > 0 {
		from, _ := excelize.ColumnNumberToName(leadCols + 1)
		to, _ := excelize.ColumnNumberToName(lastCol)
		if err := f.SetColWidth(sheet, from, to, 12); err != nil {
			return nil, err
		}
	}
	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		XSplit:      leadCols,
		YSplit:      len(levels),
		TopLeftCell: cellName(leadCols+1, first),
		ActivePane:  "bottomRight",
	}); err != nil {
		return nil, err
	}

	if opt.Chart {
		if err := addTotalChart(f, sheet, rep, cellName(lastCol+2, first)); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func writeCell(f *excelize.File, sheet, name string, kind crosstab.RowKind, c Cell, decimals int, st xlsxStyles) error {
	if rowKindIsValue(kind) && c.Annotation() != "" {
		runs := []excelize.RichTextRun{{Text: c.Number(decimals)}}
		if c.Letters != "" {
			runs = append(runs, excelize.RichTextRun{Text: " " + c.Letters, Font: &excelize.Font{Bold: true, Color: letterColor}})
		}
		if c.Romans != "" {
			runs = append(runs, excelize.RichTextRun{Text: " " + c.Romans, Font: &excelize.Font{Bold: true, Color: romanColor}})
		}
		if err := f.SetCellRichText(sheet, name, runs); err != nil {
			return fmt.Errorf("xlsx rich text %s: %w", name, err)
		}
		return f.SetCellStyle(sheet, name, name, st.rich)
	}
	if err := f.SetCellValue(sheet, name, c.Value()); err != nil {
		return err
	}
	style := st.pct
	switch kind {
	case crosstab.RowTotal:
		style = st.count
	case crosstab.RowStat:
		style = st.stat
	}
	return f.SetCellStyle(sheet, name, name, style)
}

// addTotalChart writes the first question's option percentages under the
// first TOTAL column to a hidden sheet and charts them.
func addTotalChart(f *excelize.File, sheet string, rep *Report, anchor string) error {
	margin := -1
	for i, c := range rep.Columns {
		if c.Margin {
			margin = i
			break
		}
	}
	if margin < 0 || len(rep.Rows) == 0 {
		return nil
	}
	question := ""
	var rows []Row
	for _, r := range rep.Rows {
		if r.Kind != crosstab.RowOption {
			continue
		}
		if question == "" {
			question = r.Key.Question
		}
		if r.Key.Question != question {
			break
		}
		rows = append(rows, r)
	}
	if len(rows) == 0 {
		return nil
	}
	if _, err := f.NewSheet(chartDataSheet); err != nil {
		return fmt.Errorf("xlsx chart sheet: %w", err)
	}
	if err := f.SetCellValue(chartDataSheet, "A1", "Option"); err != nil {
		return err
	}
	if err := f.SetCellValue(chartDataSheet, "B1", crosstab.TotalLabel); err != nil {
		return err
	}
	for i, r := range rows {
		if err := f.SetCellValue(chartDataSheet, cellName(1, i+2), r.Key.Option); err != nil {
			return err
		}
		if err := f.SetCellValue(chartDataSheet, cellName(2, i+2), r.Cells[margin].Value()); err != nil {
			return err
		}
	}
	last := len(rows) + 1
	if err := f.AddChart(sheet, anchor, &excelize.Chart{
		Type: excelize.Bar,
		Series: []excelize.ChartSeries{{
			Name:       fmt.Sprintf("%s!$B$1", chartDataSheet),
			Categories: fmt.Sprintf("%s!$A$2:$A$%d", chartDataSheet, last),
			Values:     fmt.Sprintf("%s!$B$2:$B$%d", chartDataSheet, last),
		}},
		Title:  []excelize.RichTextRun{{Text: question}},
		Legend: excelize.ChartLegend{Position: "none"},
	}); err != nil {
		return fmt.Errorf("xlsx chart: %w", err)
	}
	return f.SetSheetVisible(chartDataSheet, false)
}

// WriteXLSX renders rep and writes the workbook to w.
func WriteXLSX(w io.Writer, rep *Report, opt XLSXOptions) error {
	f, err := RenderXLSX(rep, opt)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteTo(w)
	return err
}
