package compose

import (
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
)

// RenderText writes rep as a terminal grid. Column headers join the header
// levels on separate lines.
func RenderText(w io.Writer, rep *Report) error {
	table := tablewriter.NewWriter(w)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetRowLine(false)

	head := []string{"Question", "Option"}
	for _, c := range rep.Columns {
		var parts []string
		if c.Key.Wave != "" {
			parts = append(parts, c.Key.Wave)
		}
		opt := c.Key.Option
		if !c.Margin {
			opt = c.Key.Cross + ": " + opt
		}
		parts = append(parts, opt)
		if tag := c.Tag(); tag != "" {
			parts = append(parts, "("+tag+")")
		}
		head = append(head, strings.Join(parts, "\n"))
	}
	table.SetHeader(head)

	align := []int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT}
	for range rep.Columns {
		align = append(align, tablewriter.ALIGN_RIGHT)
	}
	table.SetColumnAlignment(align)

	prev := ""
	for _, r := range rep.Rows {
		q := r.Key.Question
		if q == prev {
			q = ""
		}
		prev = r.Key.Question
		line := []string{q, r.Key.Option}
		for _, c := range r.Cells {
			if r.Kind.Testable() {
				line = append(line, c.Display(rep.Decimals))
				continue
			}
			line = append(line, c.Number(rep.Decimals))
		}
		table.Append(line)
	}
	table.Render()
	return nil
}
