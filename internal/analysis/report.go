package analysis

import (
	"fmt"
	"strings"
)

const (
	reportTitle  = "=-=-=-=-=  Sleep Quantity Stats  =-=-=-=-=\n"
	reportRule   = "--=--=--=--=--=--=--=--=--\n"
	reportFooter = "=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-="
)

// Report renders the plain text report sent to the notification channel.
//
//	=-=-=-=-=  Sleep Quantity Stats  =-=-=-=-=
//	--=--=--=    24h    =--=--=--
//	asleep percent: 31.25%
//	awake percent: 68.75%
//	sleep quantity: 8h
//	--=--=--=    3d    =--=--=--
//	...
func Report(a Analysis) string {
	var b strings.Builder
	b.WriteString(reportTitle)

	for _, w := range a.Windows {
		fmt.Fprintf(&b, "--=--=--=    %s    =--=--=--\n", w.Label)
		fmt.Fprintf(&b, "asleep percent: %.2f%%\n", w.SleepRatio)
		fmt.Fprintf(&b, "awake percent: %.2f%%\n", w.AwakeRatio)

		if w.Period.Days == 1 {
			fmt.Fprintf(&b, "sleep quantity: %.0fh\n", w.Asleep.Hours())
			continue
		}
		fmt.Fprintf(&b, "avg 24h asleep: %.1fh \n", w.AvgAsleepHours())
		fmt.Fprintf(&b, "avg 24h awake: %.1fh\n", w.AvgAwakeHours())
	}

	b.WriteString(reportRule)
	b.WriteString(reportFooter)
	return b.String()
}

// Markdown renders the analysis as a markdown table for the status page.
func Markdown(a Analysis) string {
	var b strings.Builder
	b.WriteString("## Sleep quantity\n\n")
	fmt.Fprintf(&b, "Generated %s.\n\n", a.GeneratedAt.Format("2006-01-02 15:04 MST"))

	if len(a.Windows) == 0 {
		b.WriteString("_No windows configured._\n")
		return b.String()
	}

	b.WriteString("| Window | Sessions | Asleep | Awake | Asleep per 24h |\n")
	b.WriteString("|---|---:|---:|---:|---:|\n")
	for _, w := range a.Windows {
		fmt.Fprintf(&b, "| %s | %d | %.2f%% | %.2f%% | %.1fh |\n",
			w.Label, w.Sessions, w.SleepRatio, w.AwakeRatio, w.AvgAsleepHours())
	}
	return b.String()
}
