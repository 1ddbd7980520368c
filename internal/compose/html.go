package compose

import (
	"html/template"
	"io"
)

// span is one merged header cell.
type span struct {
	Text   string
	Span   int
	Margin bool
}

// headerSpans merges consecutive columns whose level key is equal.
func headerSpans(cols []Column, key func(Column) string, text func(Column) string) []span {
	var out []span
	prev := ""
	for i, c := range cols {
		k := key(c)
		if i > 0 && k == prev {
			out[len(out)-1].Span++
			continue
		}
		out = append(out, span{Text: text(c), Span: 1, Margin: c.Margin})
		prev = k
	}
	return out
}

type header struct {
	Waves   []span
	Crosses []span
	Options []span
	Tags    []span
}

func buildHeader(rep *Report) header {
	h := header{
		Crosses: headerSpans(rep.Columns,
			func(c Column) string { return c.Key.Wave + "\x00" + c.Key.Cross },
			func(c Column) string { return c.Key.Cross }),
		Options: headerSpans(rep.Columns,
			func(c Column) string { return c.Key.Wave + "\x00" + c.Key.Cross + "\x00" + c.Key.Option },
			func(c Column) string { return c.Key.Option }),
	}
	if rep.HasWaves() {
		h.Waves = headerSpans(rep.Columns,
			func(c Column) string { return c.Key.Wave },
			func(c Column) string { return c.Key.Wave })
	}
	for _, c := range rep.Columns {
		h.Tags = append(h.Tags, span{Text: c.Tag(), Span: 1, Margin: c.Margin})
	}
	return h
}

type htmlCell struct {
	Number  string
	Letters string
	Romans  string
}

type htmlRow struct {
	Group    string
	Question string
	Option   string
	Kind     string
	Cells    []htmlCell
}

var reportTmpl = template.Must(template.New("report").Parse(`<style>
.tabloom{border-collapse:collapse;font-family:sans-serif;font-size:12px}
.tabloom th,.tabloom td{border:1px solid #d0d0d0;padding:2px 6px}
.tabloom thead th{position:sticky;background:#1f4e78;color:#fff;text-align:center}
.tabloom thead tr:nth-child(1) th{top:0}
.tabloom thead tr:nth-child(2) th{top:20px}
.tabloom thead tr:nth-child(3) th{top:40px}
.tabloom thead tr:nth-child(4) th{top:60px}
.tabloom td.num{text-align:right;white-space:nowrap}
.tabloom tr.total td{font-weight:bold;background:#f2f2f2}
.tabloom tr.stat td{font-style:italic}
.tabloom .sig-letter{color:#c00000;font-weight:bold;margin-left:3px}
.tabloom .sig-roman{color:#2e75b6;font-weight:bold;margin-left:3px}
</style>
<table class="tabloom">
<thead>
{{- if .Header.Waves}}
<tr><th colspan="3"></th>{{range .Header.Waves}}<th colspan="{{.Span}}">{{.Text}}</th>{{end}}</tr>
{{- end}}
<tr><th colspan="3"></th>{{range .Header.Crosses}}<th colspan="{{.Span}}">{{.Text}}</th>{{end}}</tr>
<tr><th>Group</th><th>Question</th><th>Option</th>{{range .Header.Options}}<th colspan="{{.Span}}">{{.Text}}</th>{{end}}</tr>
<tr><th colspan="3"></th>{{range .Header.Tags}}<th>{{.Text}}</th>{{end}}</tr>
</thead>
<tbody>
{{- range .Rows}}
<tr class="{{.Kind}}"><td>{{.Group}}</td><td>{{.Question}}</td><td>{{.Option}}</td>
{{- range .Cells}}<td class="num">{{.Number}}{{if .Letters}}<span class="sig-letter">{{.Letters}}</span>{{end}}{{if .Romans}}<span class="sig-roman">{{.Romans}}</span>{{end}}</td>{{end}}</tr>
{{- end}}
</tbody>
</table>
`))

// RenderHTML writes rep as a sticky-header HTML fragment. Letters and roman
// numerals go into their own spans so they can be styled apart from the
// number.
func RenderHTML(w io.Writer, rep *Report) error {
	data := struct {
		Header header
		Rows   []htmlRow
	}{Header: buildHeader(rep)}
	for _, r := range rep.Rows {
		hr := htmlRow{Group: r.Key.Group, Question: r.Key.Question, Option: r.Key.Option, Kind: r.Kind.String()}
		for _, c := range r.Cells {
			hc := htmlCell{Number: c.Number(rep.Decimals)}
			if r.Kind.Testable() {
				hc.Letters, hc.Romans = c.Letters, c.Romans
			}
			hr.Cells = append(hr.Cells, hc)
		}
		data.Rows = append(data.Rows, hr)
	}
	return reportTmpl.Execute(w, data)
}
