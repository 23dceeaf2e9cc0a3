package output

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/sipwatch/sipwatch/pkg/checker"
)

func WriteReportTable(w io.Writer, report checker.Report) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ACCOUNT\tREGISTERED\tOUTCOME\tEMAIL")
	for _, r := range report.Results {
		email := "-"
		if r.Notification != nil {
			email = r.Notification.String()
		}
		registered := r.Registered
		if registered == "" {
			registered = "-"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Account, registered, string(r.Outcome), email)
	}
	_ = tw.Flush()
	if report.Error != "" {
		_, _ = fmt.Fprintf(w, "run %s aborted at %s: %s\n", report.RunID, formatTime(report.FinishedAt), report.Error)
	}
}

func WriteMarkerTable(w io.Writer, keys []string) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ACCOUNT\tSTATE")
	for _, k := range keys {
		_, _ = fmt.Fprintf(tw, "%s\t%s\n", k, "notified")
	}
	_ = tw.Flush()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
