package client

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"
)

// Printer renders API results for a terminal.
type Printer struct {
	out     io.Writer
	heading *color.Color
	muted   *color.Color
	warn    *color.Color
	ok      *color.Color
}

func NewPrinter(out io.Writer, noColor bool) *Printer {
	p := &Printer{
		out:     out,
		heading: color.New(color.FgCyan, color.Bold),
		muted:   color.New(color.Faint),
		warn:    color.New(color.FgYellow),
		ok:      color.New(color.FgGreen),
	}
	if noColor {
		for _, c := range []*color.Color{p.heading, p.muted, p.warn, p.ok} {
			c.DisableColor()
		}
	}
	return p
}

// Brief prints the brief text followed by a one-line run summary.
func (p *Printer) Brief(res *ResearchResponse) {
	b := res.Brief
	p.heading.Fprintf(p.out, "Research brief (%s mode)\n", b.Mode)
	fmt.Fprintln(p.out, strings.Repeat("-", 40))
	fmt.Fprintln(p.out, strings.TrimSpace(b.Text))
	fmt.Fprintln(p.out, strings.Repeat("-", 40))
	p.muted.Fprintf(p.out, "run %s: %d turns, %d tool calls (%d failed), %d in / %d out tokens\n",
		b.RunID, b.Turns, b.ToolCalls, b.ToolErrors, b.Usage.InputTokens, b.Usage.OutputTokens)

	if b.Partial {
		p.warn.Fprintln(p.out, "Brief is partial: the model did not finish within the turn budget.")
	}
	if b.Degraded != "" {
		p.warn.Fprintf(p.out, "Degraded: %s\n", b.Degraded)
	}
	if res.IndexedChunkID != "" {
		p.ok.Fprintf(p.out, "Indexed as %s\n", res.IndexedChunkID)
	}
	if res.IndexError != "" {
		p.warn.Fprintf(p.out, "Indexing failed: %s\n", res.IndexError)
	}
}

func (p *Printer) SearchResults(results []SearchResult) {
	if len(results) == 0 {
		fmt.Fprintln(p.out, "No results found.")
		return
	}

	fmt.Fprintf(p.out, "Found %d results:\n\n", len(results))
	for i, r := range results {
		p.heading.Fprintf(p.out, "%d. %s", i+1, r.ID)
		p.muted.Fprintf(p.out, " [%s/%s] (%.2f)\n", r.Source, r.Category, r.Score)
		text := r.Text
		if len(text) > 200 {
			text = text[:197] + "..."
		}
		fmt.Fprintf(p.out, "   %s\n", text)
		if i < len(results)-1 {
			fmt.Fprintln(p.out, strings.Repeat("-", 40))
		}
	}
}

func (p *Printer) Status(s *StatusResponse) {
	if s.Ready {
		p.ok.Fprintln(p.out, "Knowledge base: ready (agentic research)")
	} else {
		p.warn.Fprintln(p.out, "Knowledge base: unavailable (legacy research)")
		if s.Reason != "" {
			fmt.Fprintf(p.out, "  reason: %s\n", s.Reason)
		}
		return
	}

	fmt.Fprintf(p.out, "  chunks: %d\n", s.Total)
	sources := make([]string, 0, len(s.BySource))
	for src := range s.BySource {
		sources = append(sources, src)
	}
	sort.Strings(sources)
	for _, src := range sources {
		fmt.Fprintf(p.out, "    %s: %d\n", src, s.BySource[src])
	}
	if s.Embedder != "" {
		p.muted.Fprintf(p.out, "  embedder: %s\n", s.Embedder)
	}
}
