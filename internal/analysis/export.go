package analysis

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"html"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
)

// ExportFormat is the closed set of export formats a Report can be
// rendered to.
type ExportFormat string

const (
	ExportCSV  ExportFormat = "csv"
	ExportJSON ExportFormat = "json"
	ExportHTML ExportFormat = "html"
)

// Export renders report in the requested format. CSV emits one row
// per (series, point); JSON marshals the report verbatim; HTML
// produces a minimal human-readable page.
func Export(report Report, format ExportFormat) ([]byte, error) {
	switch format {
	case ExportCSV:
		return exportCSV(report)
	case ExportJSON:
		return json.MarshalIndent(report, "", "  ")
	case ExportHTML:
		return exportHTML(report), nil
	default:
		return nil, fmt.Errorf("analysis: unsupported export format %q", format)
	}
}

func exportCSV(report Report) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"series", "timestamp", "value"}); err != nil {
		return nil, err
	}
	for _, s := range report.Series {
		for _, p := range s.Points {
			row := []string{s.Name, p.Timestamp.Format(time.RFC3339), strconv.FormatFloat(p.Value, 'f', -1, 64)}
			if err := w.Write(row); err != nil {
				return nil, err
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func exportHTML(report Report) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "<html><head><title>%s report</title></head><body>", html.EscapeString(string(report.Kind)))
	fmt.Fprintf(&buf, "<h1>%s</h1><p>%s</p>", html.EscapeString(string(report.Kind)), html.EscapeString(report.Summary))
	fmt.Fprintf(&buf, "<p>generated %s</p>", html.EscapeString(humanize.Time(report.GeneratedAt)))

	buf.WriteString("<table border=\"1\"><tr><th>series</th><th>trend</th><th>points</th></tr>")
	for _, s := range report.Series {
		fmt.Fprintf(&buf, "<tr><td>%s</td><td>%s</td><td>%s</td></tr>",
			html.EscapeString(s.Name), html.EscapeString(string(report.Trends[s.Name])), humanize.Comma(int64(len(s.Points))))
	}
	buf.WriteString("</table>")

	if len(report.Recommendations) > 0 {
		buf.WriteString("<h2>recommendations</h2><ul>")
		for _, r := range report.Recommendations {
			fmt.Fprintf(&buf, "<li>%s</li>", html.EscapeString(r))
		}
		buf.WriteString("</ul>")
	}

	buf.WriteString("</body></html>")
	return buf.Bytes()
}

// summarize produces the report's one-line human-readable summary.
func summarize(kind ReportKind, report Report) string {
	declining, improving := 0, 0
	for _, t := range report.Trends {
		switch t {
		case TrendDeclining:
			declining++
		case TrendImproving:
			improving++
		}
	}
	return fmt.Sprintf("%s report over %s series (%d improving, %d declining), window %s",
		kind, humanize.Comma(int64(len(report.Series))), improving, declining, humanize.RelTime(time.Now().Add(-report.Window), time.Now(), "", ""))
}
