package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// ErrUnknownFormat is returned for an unsupported output format.
var ErrUnknownFormat = errors.New("unknown output format")

const durationPrecision = time.Millisecond

// RenderOptions controls rendering.
type RenderOptions struct {
	Format string
	// Color enables ANSI colors in text output.
	Color bool
}

// Render writes the report in the requested format.
func Render(w io.Writer, r *Report, opts RenderOptions) error {
	switch opts.Format {
	case FormatText, "":
		return renderText(w, r, opts.Color)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		err := enc.Encode(r)
		if err != nil {
			return fmt.Errorf("encode json: %w", err)
		}

		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)

		err := enc.Encode(r)
		if err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}

		err = enc.Close()
		if err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}

		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnknownFormat, opts.Format)
	}
}

type palette struct {
	header  *color.Color
	problem *color.Color
	ok      *color.Color
	dim     *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		header:  color.New(color.Bold, color.FgCyan),
		problem: color.New(color.FgRed),
		ok:      color.New(color.FgGreen),
		dim:     color.New(color.Faint),
	}

	for _, c := range []*color.Color{p.header, p.problem, p.ok, p.dim} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}

	return p
}

func renderText(w io.Writer, r *Report, colored bool) error {
	p := newPalette(colored)

	var b strings.Builder

	b.WriteString(summaryTable(r))
	b.WriteString("\n")

	if r.Empty() {
		b.WriteString("\n")
		p.ok.Fprintln(&b, "There don't seem to be any unimported files.")
	}

	section(&b, p, "unresolved imports", len(r.UnresolvedImports), func() {
		for i, u := range r.UnresolvedImports {
			p.problem.Fprintf(&b, "%4d │ %s", i+1, u.Specifier)
			p.dim.Fprintf(&b, " at %s\n", strings.Join(u.Importers, ", "))
		}
	})

	section(&b, p, "unused dependencies", len(r.UnusedDependencies), func() {
		for i, name := range r.UnusedDependencies {
			p.problem.Fprintf(&b, "%4d │ %s\n", i+1, name)
		}
	})

	section(&b, p, "unimported files", len(r.UnimportedFiles), func() {
		for i, file := range r.UnimportedFiles {
			p.problem.Fprintf(&b, "%4d │ %s\n", i+1, file)
		}
	})

	_, err := io.WriteString(w, b.String())
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	return nil
}

func section(b *strings.Builder, p palette, title string, count int, body func()) {
	if count == 0 {
		return
	}

	b.WriteString("\n")
	p.header.Fprintf(b, "─── %s %s ───\n", humanize.Comma(int64(count)), title)
	body()
}

func summaryTable(r *Report) string {
	s := r.Summary

	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	tbl.Style().Options.SeparateColumns = false
	tbl.Style().Options.DrawBorder = false
	tbl.Style().Options.SeparateHeader = false

	tbl.AppendHeader(table.Row{"summary", ""})
	tbl.AppendRow(table.Row{"entry", strings.Join(s.Entries, ", ")})

	if s.Revision != "" {
		tbl.AppendRow(table.Row{"revision", s.Revision})
	}

	tbl.AppendRows([]table.Row{
		{"files scanned", humanize.Comma(int64(s.Scanned))},
		{"reachable", humanize.Comma(int64(s.Reachable))},
		{"parsed / cached / memoized", fmt.Sprintf("%s / %s / %s",
			humanize.Comma(int64(s.Parsed)), humanize.Comma(int64(s.Cached)), humanize.Comma(int64(s.Memoized)))},
		{"unresolved imports", humanize.Comma(int64(len(r.UnresolvedImports)))},
		{"unused dependencies", humanize.Comma(int64(len(r.UnusedDependencies)))},
		{"unimported files", humanize.Comma(int64(len(r.UnimportedFiles)))},
	})

	if s.Retries > 0 {
		tbl.AppendRow(table.Row{"cache retries", humanize.Comma(int64(s.Retries))})
	}

	if s.Duration > 0 {
		tbl.AppendRow(table.Row{"duration", s.Duration.Round(durationPrecision).String()})
	}

	return tbl.Render()
}
