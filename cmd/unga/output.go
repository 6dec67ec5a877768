package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/WessleyAI/unga-engine/engine/ingest"
	"github.com/WessleyAI/unga-engine/engine/rag"
	"github.com/WessleyAI/unga-engine/engine/search"
)

// maxPrinted bounds the results shown in text mode.
const maxPrinted = 10

func (o *options) printResponse(w io.Writer, resp search.Response) error {
	if o.format == "json" {
		return writeJSON(w, resp)
	}
	a := resp.Analysis
	fmt.Fprintf(w, "Intent: %s  Complexity: %s  Strategy: %s", a.Intent, a.Complexity, resp.Strategy)
	if resp.Executed != string(resp.Strategy) {
		fmt.Fprintf(w, " (ran %s)", resp.Executed)
	}
	fmt.Fprintln(w)
	printEntities(w, "Countries", a.Entities.Countries)
	printEntities(w, "Topics", a.Entities.Topics)
	printEntities(w, "Regions", a.Entities.Regions)
	printEntities(w, "Organizations", a.Entities.Organizations)
	if len(a.Entities.Years) > 0 {
		fmt.Fprintf(w, "Years: %d-%d (%d)\n", a.Entities.Years[0], a.Entities.Years[len(a.Entities.Years)-1], len(a.Entities.Years))
	}
	fmt.Fprintf(w, "\n%s\n", resp.Summary)
	for _, d := range resp.Diagnostics {
		fmt.Fprintf(w, "  ! %s\n", d)
	}

	for i, r := range resp.Results {
		if i == maxPrinted {
			fmt.Fprintf(w, "\n... %d more (use --format json)\n", len(resp.Results)-maxPrinted)
			break
		}
		fmt.Fprintf(w, "\n[%d] %s  relevance %.2f\n", i+1, r.Citation, r.Relevance)
		for _, q := range r.Quotes {
			fmt.Fprintf(w, "    %q\n", q.Text)
		}
	}
	return nil
}

func printEntities(w io.Writer, label string, values []string) {
	if len(values) > 0 {
		fmt.Fprintf(w, "%s: %s\n", label, strings.Join(values, ", "))
	}
}

func (o *options) printAnswer(w io.Writer, ans *rag.Answer) error {
	if o.format == "json" {
		return writeJSON(w, ans)
	}
	fmt.Fprintln(w, ans.Text)
	if len(ans.Sources) == 0 {
		return nil
	}
	fmt.Fprintln(w, "\nSources:")
	for _, s := range ans.Sources {
		fmt.Fprintf(w, "  [%d] %s\n", s.N, s.Citation)
	}
	return nil
}

func (o *options) printReport(w io.Writer, rep ingest.Report) error {
	if o.format == "json" {
		return writeJSON(w, rep)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "stored\t%d\n", rep.Stored)
	fmt.Fprintf(tw, "embedded\t%d\n", rep.Embedded)
	fmt.Fprintf(tw, "duplicates\t%d\n", rep.Duplicates)
	fmt.Fprintf(tw, "skipped\t%d\n", rep.Skipped)
	fmt.Fprintf(tw, "failed\t%d\n", rep.Failed)
	for _, err := range rep.Errors {
		fmt.Fprintf(tw, "error\t%v\n", err)
	}
	return tw.Flush()
}
