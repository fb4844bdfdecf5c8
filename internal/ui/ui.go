// Package ui renders benchmark progress to stderr and results to stdout.
package ui

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/montiglio/graphbench/internal/bench"
	"github.com/montiglio/graphbench/internal/graph"
	"github.com/montiglio/graphbench/internal/ppr"
	"github.com/montiglio/graphbench/internal/score"
)

// Printer writes human-facing output. Progress and diagnostics go to the log
// writer; the result lines go to the output writer so they can be piped.
type Printer struct {
	out io.Writer
	log io.Writer
}

// New returns a Printer writing results to stdout and progress to stderr.
func New() *Printer {
	return &Printer{out: os.Stdout, log: os.Stderr}
}

// NewWriters returns a Printer with explicit writers.
func NewWriters(out, log io.Writer) *Printer {
	return &Printer{out: out, log: log}
}

var _ bench.UI = (*Printer)(nil)

// Banner prints the program heading.
func (p *Printer) Banner(version string) {
	fmt.Fprintln(p.log, styleHeading.Render("graphbench")+" "+styleMuted.Render(version))
}

// Info prints a de-emphasized message.
func (p *Printer) Info(msg string) {
	fmt.Fprintln(p.log, styleMuted.Render(msg))
}

// Error prints an error message.
func (p *Printer) Error(msg string) {
	fmt.Fprintln(p.log, styleDanger.Render("error: ")+msg)
}

// GraphStats prints the shape of a loaded graph.
func (p *Printer) GraphStats(source string, s graph.Stats) {
	fmt.Fprintln(p.log, styleHeading.Render("graph ")+source)
	p.field("vertices", fmt.Sprint(s.Vertices))
	p.field("edges", fmt.Sprint(s.Edges))
	p.field("dangling", fmt.Sprintf("%d (%.1f%%)", s.Dangling, percent(s.Dangling, s.Vertices)))
	p.field("self-loops", fmt.Sprint(s.SelfLoops))
}

// RunStart prints the run heading.
func (p *Printer) RunStart(runID string, s graph.Stats, trials int) {
	fmt.Fprintf(p.log, "%s %s %s\n",
		styleHeading.Render("run"),
		runID,
		styleMuted.Render(fmt.Sprintf("(%d vertices, %d edges, %d trial%s)", s.Vertices, s.Edges, trials, pluralS(trials))))
}

// TrialStart announces a trial.
func (p *Printer) TrialStart(trial, source int) {
	fmt.Fprintf(p.log, "%s trial %d %s\n", styleHeading.Render(iconTrial), trial, styleMuted.Render(fmt.Sprintf("source %d", source)))
}

// Iteration prints debug diagnostics for one iteration. A negative mass
// means the vector could not be read back.
func (p *Printer) Iteration(trial int, it ppr.Iteration, mass float64) {
	line := fmt.Sprintf("  %s iter %3d  distance %.3e  dangling %.6f", iconPending, it.Number, it.Distance, it.DanglingMass)
	if mass >= 0 {
		line += fmt.Sprintf("  mass %.12f", mass)
	}
	fmt.Fprintln(p.log, styleMuted.Render(line))
}

// TrialDone prints the outcome of a completed trial.
func (p *Printer) TrialDone(t bench.Trial) {
	icon, style := iconDone, styleSuccess
	if t.Status != ppr.StatusConverged || t.Mismatch != nil || !t.ReferenceConverged {
		icon, style = iconWarn, styleWarning
	}
	fmt.Fprintf(p.log, "  %s %s in %d iterations, %s, score %.6f\n",
		style.Render(icon), t.Status, t.Iterations, formatDuration(t.Elapsed), t.Score)
	if t.Mismatch != nil {
		fmt.Fprintln(p.log, "    "+styleWarning.Render(t.Mismatch.Error()))
	}
	if !t.ReferenceConverged {
		fmt.Fprintln(p.log, "    "+styleWarning.Render(fmt.Sprintf("reference unconverged after %d iterations", t.ReferenceIterations)))
	}
}

// TrialFailed prints a trial aborted by a device failure.
func (p *Printer) TrialFailed(trial int, err error) {
	fmt.Fprintf(p.log, "  %s trial %d aborted: %v\n", styleDanger.Render(iconFailed), trial, err)
}

// Mismatch prints a rank-by-rank comparison of a mismatched trial.
func (p *Printer) Mismatch(trial int, rows []score.RankComparison) {
	fmt.Fprintf(p.log, "    %s\n", styleWarning.Render(fmt.Sprintf("trial %d top-%d comparison", trial, len(rows))))
	fmt.Fprintf(p.log, "    %4s  %8s %14s  %8s %14s\n", "rank", "device", "value", "golden", "value")
	for _, r := range rows {
		mark := styleSuccess.Render(iconDone)
		if !r.VertexMatch || !r.ValueMatch {
			mark = styleDanger.Render(iconFailed)
		}
		fmt.Fprintf(p.log, "    %4d  %8d %14.8e  %8d %14.8e  %s\n",
			r.Rank+1, r.Candidate, r.CandidateValue, r.Golden, r.GoldenValue, mark)
	}
}

// Summary prints aggregate timing, accuracy and device counters.
func (p *Printer) Summary(rep *bench.Report) {
	s := rep.Summary()
	fmt.Fprintln(p.log, styleHeading.Render("summary"))
	p.field("trials", fmt.Sprintf("%d completed, %d failed, %d converged, %d mismatched, %d unverified",
		s.Completed, s.Failed, s.Converged, s.Mismatched, s.Unverified))
	if s.Completed > 0 {
		p.field("elapsed", fmt.Sprintf("mean %s  min %s  max %s", formatDuration(s.MeanElapsed), formatDuration(s.MinElapsed), formatDuration(s.MaxElapsed)))
		p.field("score", fmt.Sprintf("mean %.6f  min %.6f", s.MeanScore, s.MinScore))
	}
	p.field("device", fmt.Sprintf("%d launches, %d transfers, %s in, %s out",
		rep.Device.Launches, rep.Device.Transfers, formatBytes(rep.Device.BytesToDevice), formatBytes(rep.Device.BytesToHost)))
	p.field("wall", formatDuration(rep.Elapsed))
}

// Result writes the short form, the mean accuracy, to the output writer,
// followed by the long form when long is set.
func (p *Printer) Result(rep *bench.Report, long bool) {
	fmt.Fprintln(p.out, rep.Short())
	if long {
		fmt.Fprintln(p.out, rep.Long())
	}
}

func (p *Printer) field(label, value string) {
	fmt.Fprintln(p.log, "  "+styleMuted.Render(styleLabel.Render(label))+value)
}

// formatDuration formats a duration for trial timings: milliseconds below a
// second, otherwise seconds with two decimals.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%.3fms", float64(d.Microseconds())/1000)
	}
	return fmt.Sprintf("%.2fs", d.Seconds())
}

// formatBytes formats a byte count with a binary unit.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return 100 * float64(part) / float64(whole)
}

// pluralS returns "s" if n != 1, for simple English pluralization.
func pluralS(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
