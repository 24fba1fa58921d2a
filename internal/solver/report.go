package solver

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// reportWriter keeps the first write error and skips every later write
type reportWriter struct {
	w   io.Writer
	err error
}

func (rw *reportWriter) Write(p []byte) (int, error) {
	if rw.err != nil {
		return 0, rw.err
	}
	n, err := rw.w.Write(p)
	rw.err = err
	return n, err
}

func (rw *reportWriter) printf(format string, args ...any) {
	fmt.Fprintf(rw, format, args...)
}

// WriteReport prints the per-component breakdown and the total cost
func WriteReport(w io.Writer, r *Result) error {
	rw := &reportWriter{w: w}
	rule := strings.Repeat("-", 80)

	if !r.Found {
		rw.printf("No solution found (%s).\n", r.Algorithm)
		return rw.err
	}

	rw.printf("*** SOLUTION ***\n%s\n", rule)

	tw := tabwriter.NewWriter(rw, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Pipe ID\tSeries\tDiameter\tRoughness\tLength\tPrice\tAmount\t")
	for _, l := range r.Lines {
		fmt.Fprintf(tw, "%s\t%s\t%.1f\t%.4f\t%.1f\t%.2f\t%.2f\t\n",
			l.ID, l.Series, l.Diameter, l.Roughness, l.Length, l.Price, l.Amount)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	rw.printf("%s\nTotal cost: %.2f\n", rule, r.Cost)

	if len(r.Pressures) > 0 {
		rw.printf("%s\n", rule)
		tw = tabwriter.NewWriter(rw, 0, 0, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(tw, "Node\tMin pressure\tRequired\t")
		for _, p := range r.Pressures {
			fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t\n", p.Node, p.Min, p.Required)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		rw.printf("%s\n", rule)
	}
	if r.Polished {
		rw.printf("Polish savings: %.2f (before polish: %.2f)\n", r.Savings(), r.PrePolishCost)
	}
	if r.StopReason != "" {
		rw.printf("Stopped after %d trials (%s)\n", r.Trials, r.StopReason)
	}
	rw.printf("Oracle calls: %d applies, %d queries\n", r.Stats.Applies, r.Stats.Queries())
	rw.printf("%s\n", strings.Repeat("=", 80))
	return rw.err
}
