// Package report renders verdicts, batches and audits for the terminal.
//
// Rendering is plain text with optional ANSI colour. Colour is enabled when
// the destination is a terminal and NO_COLOR is unset.
package report

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/banshee-data/peakpurity/internal/db"
	"github.com/banshee-data/peakpurity/internal/purity"
)

const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorGray   = "\033[90m"
)

// Renderer formats output, optionally with colour.
type Renderer struct {
	Color bool
}

// ForWriter returns a Renderer that colours output only when w is a
// terminal and NO_COLOR is unset.
func ForWriter(w io.Writer) Renderer {
	if os.Getenv("NO_COLOR") != "" {
		return Renderer{}
	}
	type fder interface{ Fd() uintptr }
	if f, ok := w.(fder); ok {
		return Renderer{Color: isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())}
	}
	return Renderer{}
}

func (r Renderer) colorize(color, text string) string {
	if r.Color {
		return color + text + colorReset
	}
	return text
}

func (r Renderer) outcome(pure bool) string {
	if pure {
		return r.colorize(colorGreen, "pure")
	}
	return r.colorize(colorRed, "impure")
}

func (r Renderer) check(ok bool) string {
	if ok {
		return r.colorize(colorGreen, "yes")
	}
	return r.colorize(colorGray, "no")
}

// Verdict renders the per-signal analytics of one peak next to the
// thresholds they were tested against.
func (r Renderer) Verdict(peakID string, v purity.Verdict, p purity.Params) string {
	s := v.Signals
	var sb strings.Builder
	fmt.Fprintf(&sb, "Peak %s: %s (rule %s)\n", peakID, r.outcome(v.Pure), v.Rule)
	fmt.Fprintf(&sb, "  %-22s %10.6f  > %-6g %s\n", "Agilent ratio", s.AgilentRatio, p.AgilentPure, r.check(s.AgilentRatio > p.AgilentPure))
	fmt.Fprintf(&sb, "  %-22s %10v\n", "Unimodal", s.Unimodal)
	fmt.Fprintf(&sb, "  %-22s %10.6f  > %-6g %s\n", "PCA variance explained", s.PCARatio, p.PCAPure, r.check(s.PCARatio > p.PCAPure))
	fmt.Fprintf(&sb, "  %-22s %10.6f  < %-6g %s\n", "Min correlation", s.MinCorrelation, p.MinCorrelationImpure, r.check(s.MinCorrelation < p.MinCorrelationImpure))
	fmt.Fprintf(&sb, "  %-22s %10.6f  > %-6g %s\n", "Min correlation", s.MinCorrelation, p.MinCorrelationPure, r.check(s.MinCorrelation > p.MinCorrelationPure))
	fmt.Fprintf(&sb, "  %-22s %10.6f  > %-6g %s\n", "Mean correlation", s.MeanCorrelation, p.MeanCorrelationPure, r.check(s.MeanCorrelation > p.MeanCorrelationPure))
	return sb.String()
}

// Trace renders the intermediate values of a verdict for debugging.
func (r Renderer) Trace(t purity.Trace) string {
	var sb strings.Builder
	first, last := -1, -1
	if n := len(t.RetainedColumns); n > 0 {
		first, last = t.RetainedColumns[0], t.RetainedColumns[n-1]
	}
	fmt.Fprintf(&sb, "  noise variance %.3g, apex column %d, %d retained columns [%d..%d]\n",
		t.NoiseVariance, t.MaxLoc, len(t.RetainedColumns), first, last)
	return sb.String()
}

// Row is one line of a batch table. Kind overrides the error class derived
// from Err, for errors read back from storage.
type Row struct {
	PeakID  string
	Verdict purity.Verdict
	Err     error
	Kind    string
}

// RowsFromResults adapts batch results for rendering.
func RowsFromResults(results []purity.Result) []Row {
	rows := make([]Row, len(results))
	for i, res := range results {
		rows[i] = Row{PeakID: res.PeakID, Verdict: res.Verdict, Err: res.Err}
		if rows[i].PeakID == "" {
			rows[i].PeakID = fmt.Sprintf("#%d", res.Index)
		}
	}
	return rows
}

// BatchTable renders one line per peak.
func (r Renderer) BatchTable(rows []Row) string {
	if len(rows) == 0 {
		return "No peaks analysed.\n"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%-24s %-14s %-20s %8s %8s %8s %8s\n",
		"Peak", "Verdict", "Rule", "Agilent", "PCA", "MinCorr", "MeanCorr")
	sb.WriteString(strings.Repeat("─", 96))
	sb.WriteString("\n")

	for _, row := range rows {
		sb.WriteString(r.Line(row))
	}
	return sb.String()
}

// Line renders one table row without the header, for streaming output.
func (r Renderer) Line(row Row) string {
	if row.Err != nil {
		kind := row.Kind
		if kind == "" {
			kind = purity.ErrorKind(row.Err)
		}
		if kind == "" {
			kind = "error"
		}
		return fmt.Sprintf("%-24s %s %s\n",
			truncate(row.PeakID, 24),
			r.colorize(colorYellow, pad("indeterminate", 14)),
			r.colorize(colorGray, kind+": "+row.Err.Error()))
	}
	s := row.Verdict.Signals
	return fmt.Sprintf("%-24s %s %-20s %8.4f %8.4f %8.4f %8.4f\n",
		truncate(row.PeakID, 24),
		pad(r.outcome(row.Verdict.Pure), 14+r.colorWidth()),
		row.Verdict.Rule,
		s.AgilentRatio, s.PCARatio, s.MinCorrelation, s.MeanCorrelation)
}

// Tally counts rows by outcome.
func Tally(rows []Row) db.RunSummary {
	var sum db.RunSummary
	for _, row := range rows {
		sum.Total++
		switch {
		case row.Err != nil:
			sum.Indeterminate++
		case row.Verdict.Pure:
			sum.Pure++
		default:
			sum.Impure++
		}
	}
	return sum
}

// Summary renders outcome counts on one line.
func (r Renderer) Summary(sum db.RunSummary) string {
	return fmt.Sprintf("%d peaks: %s pure, %s impure, %s indeterminate\n",
		sum.Total,
		r.colorize(colorGreen, fmt.Sprint(sum.Pure)),
		r.colorize(colorRed, fmt.Sprint(sum.Impure)),
		r.colorize(colorYellow, fmt.Sprint(sum.Indeterminate)))
}

// AuditTable renders audit results, one line per verdict.
func (r Renderer) AuditTable(results []*db.AuditResult) string {
	if len(results) == 0 {
		return "No verdicts audited.\n"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%-24s %-8s %-6s %-6s %s\n", "Peak", "Status", "Input", "Bounds", "Drift")
	sb.WriteString(strings.Repeat("─", 72))
	sb.WriteString("\n")
	for _, res := range results {
		status := r.colorize(colorGreen, pad("ok", 8))
		if !res.Clean() {
			status = r.colorize(colorRed, pad("drift", 8))
		}
		var drift []string
		for _, d := range res.Drift {
			drift = append(drift, fmt.Sprintf("%s %g -> %g", d.Signal, d.Stored, d.Recomputed))
		}
		if res.StoredError != res.RecomputedError {
			drift = append(drift, fmt.Sprintf("error %q -> %q", res.StoredError, res.RecomputedError))
		}
		fmt.Fprintf(&sb, "%-24s %s %-6s %-6s %s\n",
			truncate(res.PeakID, 24), status,
			sameLabel(res.FingerprintMatch), sameLabel(res.BoundsMatch),
			strings.Join(drift, "; "))
	}
	return sb.String()
}

func sameLabel(same bool) string {
	if same {
		return "same"
	}
	return "diff"
}

func (r Renderer) colorWidth() int {
	if r.Color {
		return len(colorGreen) + len(colorReset)
	}
	return 0
}

func pad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

// Fprint writes s to w, ignoring short writes to a closed terminal.
func Fprint(w io.Writer, s string) {
	_, _ = io.WriteString(w, s)
}
