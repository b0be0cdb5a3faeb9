package web

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/sleepimport/internal/core"
)

type statusData struct {
	Limiter     core.UploadLimiterStatus
	Notifier    string
	ReportHTML  string
	ReportError string
}

const pageHead = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Sleep import</title>
<style>
body { font-family: system-ui, sans-serif; margin: 2rem auto; max-width: 48rem; color: #222; }
table { border-collapse: collapse; }
th, td { border: 1px solid #ccc; padding: .3rem .7rem; text-align: right; }
th:first-child, td:first-child { text-align: left; }
.muted { color: #777; }
</style>
</head>
<body>
<h1>Sleep import</h1>
`

func statusPage(d statusData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, pageHead); err != nil {
			return err
		}

		if d.ReportError != "" {
			if _, err := fmt.Fprintf(w, "<p class=\"muted\">%s</p>\n", templ.EscapeString(d.ReportError)); err != nil {
				return err
			}
		} else if err := templ.Raw(d.ReportHTML).Render(ctx, w); err != nil {
			return err
		}

		_, err := fmt.Fprintf(w, `<h2>Service</h2>
<ul>
<li>Imports running: %d of %d</li>
<li>Free import slots: %d</li>
<li>Notifications: %s</li>
</ul>
<p class="muted">POST an export archive to /upload. Plain text report at <a href="/report">/report</a>.</p>
</body>
</html>
`, d.Limiter.Active, d.Limiter.MaxConcurrent, d.Limiter.Available, templ.EscapeString(d.Notifier))
		return err
	})
}
