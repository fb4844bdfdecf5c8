package ui

import (
	"fmt"
	"time"

	"github.com/montiglio/graphbench/internal/report"
	"github.com/montiglio/graphbench/internal/store"
)

// Runs prints saved runs, newest first.
func (p *Printer) Runs(runs []store.RunRecord) {
	if len(runs) == 0 {
		fmt.Fprintln(p.log, styleMuted.Render("(no runs recorded)"))
		return
	}
	fmt.Fprintf(p.out, "%-36s  %-20s  %-24s  %6s  %8s  %10s\n", "RUN", "STARTED", "GRAPH", "TRIALS", "SCORE", "MEAN")
	for _, r := range runs {
		trials := fmt.Sprintf("%d", r.Trials)
		if r.Failed > 0 {
			trials = fmt.Sprintf("%d/%d", r.Trials-r.Failed, r.Trials)
		}
		fmt.Fprintf(p.out, "%-36s  %-20s  %-24s  %6s  %8.6f  %10s\n",
			r.ID, r.StartedAt.Format(time.DateTime), truncate(r.Graph, 24), trials, r.MeanScore, formatDuration(r.MeanElapsed))
	}
}

// Trials prints the saved trials of one run.
func (p *Printer) Trials(trials []store.TrialRecord) {
	for _, t := range trials {
		switch {
		case t.Error != "":
			fmt.Fprintf(p.out, "  %s trial %d: %s\n", styleDanger.Render(iconFailed), t.Number, t.Error)
		default:
			icon := styleSuccess.Render(iconDone)
			if t.Mismatch || t.Status != "converged" || !t.ReferenceConverged {
				icon = styleWarning.Render(iconWarn)
			}
			fmt.Fprintf(p.out, "  %s trial %d: source %d, %s in %d iterations, %s, score %.6f",
				icon, t.Number, t.Source, t.Status, t.Iterations, formatDuration(t.Elapsed), t.Score)
			if !t.ReferenceConverged {
				fmt.Fprint(p.out, " "+styleWarning.Render("(reference unconverged)"))
			}
			fmt.Fprintln(p.out)
		}
	}
}

// ReportHistory prints the current run of a TOML report and the runs before it.
func (p *Printer) ReportHistory(run *report.Run, history []report.HistoryEntry) {
	if run == nil {
		fmt.Fprintln(p.log, styleMuted.Render("(no report written yet)"))
		return
	}
	fmt.Fprintln(p.out, styleHeading.Render("current ")+run.RunID)
	fmt.Fprintf(p.out, "  %s  %s  %d trial%s  score %.6f  mean %s",
		run.StartedAt.Format(time.DateTime), run.Graph, run.Trials, pluralS(run.Trials), run.MeanScore, formatDuration(run.MeanElapsed))
	if run.Unverified > 0 {
		fmt.Fprint(p.out, " "+styleWarning.Render(fmt.Sprintf("(%d unverified)", run.Unverified)))
	}
	fmt.Fprintln(p.out)
	for i := len(history) - 1; i >= 0; i-- {
		h := history[i]
		fmt.Fprintf(p.out, "  %s %s  %s  %d trial%s  score %.6f  mean %s\n",
			styleMuted.Render(iconPending), h.StartedAt.Format(time.DateTime), h.Graph, h.Trials, pluralS(h.Trials), h.MeanScore, formatDuration(h.MeanElapsed))
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return "…" + string(r[len(r)-n+1:])
}
