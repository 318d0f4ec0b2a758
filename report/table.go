package report

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/pkg/errors"

	"mrnabench/probe"
)

// WriteTable prints one row per metric: mean, std, ci and the per-seed
// values in seed order.
func WriteTable(out io.Writer, m Meta, res probe.MultiResult) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "== %s / %s (o%d) %s tcol=%s split=%s ==\n",
		m.Dataset, m.Model, m.Overlap, m.Task, m.TargetColumn, m.SplitType)

	fmt.Fprint(w, "METRIC\tMEAN\tSTD\tCI")
	for _, s := range res.Seeds() {
		fmt.Fprintf(w, "\trs-%d", s)
	}
	fmt.Fprintln(w)

	for _, k := range probe.SummaryKeys(res.Summary) {
		s := res.Summary[k]
		fmt.Fprintf(w, "%s\t%.4f\t%.4f\t%.4f", k, s.Mean, s.Std, s.CI)
		for _, r := range res.PerSeed {
			fmt.Fprintf(w, "\t%.4f", r.Metrics[k])
		}
		fmt.Fprintln(w)
	}
	return errors.Wrap(w.Flush(), "write table")
}
