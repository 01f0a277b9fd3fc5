package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/syssam/hubgen/compiler/gen"
)

var (
	fatal   = color.New(color.FgRed, color.Bold).SprintFunc()
	warning = color.New(color.FgYellow).SprintFunc()
	good    = color.New(color.FgGreen).SprintFunc()
	faint   = color.New(color.Faint).SprintFunc()
	added   = color.New(color.FgGreen).SprintFunc()
	removed = color.New(color.FgRed).SprintFunc()
)

// printReport prints the diagnostics of a run followed by a summary line.
// Drift diffs are included when diffs is set.
func printReport(w io.Writer, r *gen.Report, diffs bool) {
	for _, d := range r.Diagnostics {
		sev := warning(d.Severity)
		if d.Fatal() {
			sev = fatal(d.Severity)
		}
		loc := d.Path
		if loc == "" {
			loc = d.Entity
		}
		if loc != "" {
			loc += ": "
		}
		fmt.Fprintf(w, "%s%s %s: %s\n", loc, sev, d.Code, d.Message)
		if drift, ok := driftOf(d); ok && diffs && drift.Diff != "" {
			printDiff(w, drift.Diff)
		}
	}

	var failed, partial int
	for _, e := range r.Entities {
		switch {
		case e.State == gen.StateFailed:
			failed++
		case e.Partial:
			partial++
		}
	}
	f := r.Files
	parts := []string{
		fmt.Sprintf("%d entities", len(r.Entities)),
		fmt.Sprintf("%d failed", failed),
		fmt.Sprintf("%d partial", partial),
	}
	if r.Check {
		parts = append(parts, fmt.Sprintf("%d drifted", f.Drifted), fmt.Sprintf("%d up to date", f.Unchanged))
	} else {
		parts = append(parts,
			fmt.Sprintf("%d written", f.Written),
			fmt.Sprintf("%d unchanged", f.Unchanged),
			fmt.Sprintf("%d skipped", f.Skipped),
			fmt.Sprintf("%d pruned", f.Pruned),
		)
	}
	summary := strings.Join(parts, ", ")
	status := good("ok")
	if r.ExitCode() != 0 {
		status = fatal("failed")
	}
	fmt.Fprintf(w, "%s %s %s\n", status, summary, faint("("+r.Duration.Round(time.Millisecond).String()+")"))
}

func driftOf(d gen.Diagnostic) (*gen.DriftError, bool) {
	var drift *gen.DriftError
	if d.Err == nil || !errors.As(d.Err, &drift) {
		return nil, false
	}
	return drift, true
}

func printDiff(w io.Writer, diff string) {
	for _, line := range strings.SplitAfter(diff, "\n") {
		switch {
		case line == "":
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			fmt.Fprint(w, "    ", faint(line))
		case strings.HasPrefix(line, "+"):
			fmt.Fprint(w, "    ", added(line))
		case strings.HasPrefix(line, "-"):
			fmt.Fprint(w, "    ", removed(line))
		default:
			fmt.Fprint(w, "    ", line)
		}
	}
}
