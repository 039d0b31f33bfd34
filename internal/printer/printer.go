// Package printer dumps a computed layout as terminal tables.
package printer

import (
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"

	"lanecal/internal/layout"
)

// Printer writes one table per day.
type Printer struct {
	Out io.Writer
	// ShowIssues appends the events that could not be laid out.
	ShowIssues bool
}

func New(out io.Writer) *Printer {
	if out == nil {
		out = color.Output
	}
	return &Printer{Out: out, ShowIssues: true}
}

// Layout prints every day of l in order.
func (p *Printer) Layout(l layout.Layout) {
	title := color.New(color.Bold, color.Underline)
	faint := color.New(color.Faint)

	days := l.Days()
	if len(days) == 0 {
		_, _ = color.New(color.Faint, color.Italic).Fprintln(p.Out, " no events")
	}

	for _, d := range days {
		_, _ = title.Fprintf(p.Out, "%s %s", d.Date.Weekday(), d.Date)
		_, _ = faint.Fprintf(p.Out, " - %d %s, %d %s\n",
			len(d.Segments), plural(len(d.Segments), "segment"),
			d.MaxColumn+1, plural(d.MaxColumn+1, "column"))
		_, _ = fmt.Fprintln(p.Out, p.dayTable(d))
		_, _ = fmt.Fprintln(p.Out)
	}

	if p.ShowIssues && len(l.Issues) > 0 {
		warn := color.New(color.FgYellow)
		_, _ = title.Fprintln(p.Out, "Skipped")
		for _, is := range l.Issues {
			_, _ = warn.Fprintf(p.Out, "  %s\n", is.Error())
		}
	}
}

func (p *Printer) dayTable(d layout.Day) *uitable.Table {
	bold := color.New(color.Bold)
	overnight := color.New(color.FgHiMagenta)
	multi := color.New(color.FgCyan)

	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.MaxColWidth = 40
	tbl.AddRow(bold.Sprint("COL"), bold.Sprint("TIME"), bold.Sprint("EVENT"), bold.Sprint("DAY"))

	for _, s := range d.Segments {
		name := ""
		if s.Event != nil {
			name = s.Event.Name
		}

		span := s.StartTime.String() + "-" + s.EndTime.String()
		switch {
		case s.NominalEnd != s.EndTime:
			span = overnight.Sprintf("%s (until %s)", span, s.NominalEnd)
		case s.CrossesMidnight:
			span = overnight.Sprintf("%s >", span)
		}

		label := s.DayLabel()
		if label != "" {
			label = multi.Sprint(label)
		}

		tbl.AddRow(strconv.Itoa(s.Column), span, name, label)
	}
	tbl.RightAlign(0)
	return tbl
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
