package console

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/davarch/star-backup/internal/domain"
	"github.com/fatih/color"
)

var (
	bold = color.New(color.Bold)
	ok   = color.New(color.FgGreen)
	bad  = color.New(color.FgRed)
	dim  = color.New(color.Faint)
)

// PrintSummary writes the end-of-run summary: counts, then every failure with
// its reason.
func PrintSummary(w io.Writer, r domain.RunReport, reportPath string) {
	_, _ = bold.Fprintln(w, "Backup summary")
	_, _ = fmt.Fprintf(w, "  total:     %d\n", r.Total)
	_, _ = ok.Fprintf(w, "  succeeded: %d\n", r.SuccessCount)
	if r.FailureCount > 0 {
		_, _ = bad.Fprintf(w, "  failed:    %d\n", r.FailureCount)
	} else {
		_, _ = fmt.Fprintf(w, "  failed:    %d\n", r.FailureCount)
	}

	if len(r.Failed) > 0 {
		_, _ = fmt.Fprintln(w)
		_, _ = bold.Fprintln(w, "Failures")
		for _, f := range r.Failed {
			_, _ = bad.Fprintf(w, "  ✗ %s", f.Name)
			if f.Attempts > 0 {
				_, _ = dim.Fprintf(w, " (%d attempts)", f.Attempts)
			}
			_, _ = fmt.Fprintf(w, ": %s\n", f.Error)
		}
	}

	if reportPath != "" {
		_, _ = fmt.Fprintln(w)
		_, _ = dim.Fprintf(w, "report: %s\n", reportPath)
	}
}

// PrintStatus writes a previously saved report, including when it was taken.
func PrintStatus(w io.Writer, r domain.RunReport, now time.Time) {
	age := now.Sub(r.Timestamp).Truncate(time.Second)
	_, _ = fmt.Fprintf(w, "last run: %s (%s ago)\n\n", r.Timestamp.Format(time.RFC3339), age)
	PrintSummary(w, r, "")

	if len(r.Succeeded) > 0 {
		_, _ = fmt.Fprintln(w)
		_, _ = bold.Fprintln(w, "Backed up")
		for _, name := range r.Succeeded {
			_, _ = ok.Fprintf(w, "  ✓ %s\n", name)
		}
	}
}

func PrintRepos(w io.Writer, repos []domain.RepoDescriptor, thresholdKB int64) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "NAME\tSIZE_KB\tLARGE\tCLONE_URL")
	for _, r := range repos {
		large := "false"
		if thresholdKB > 0 && r.SizeKB > thresholdKB {
			large = "true"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", r.Name, r.SizeKB, large, r.CloneURL)
	}
	_ = tw.Flush()
}
