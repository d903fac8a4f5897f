package output

import (
	"fmt"
	"html/template"
	"io"
	"time"
)

var htmlFuncs = template.FuncMap{
	"formatTime": func(t time.Time) string {
		return t.Format(time.RFC3339)
	},
	"formatMicros": func(f float64) string {
		return fmt.Sprintf("%.3f", f)
	},
}

var reportTemplate = template.Must(template.New("report").Funcs(htmlFuncs).Parse(htmlTemplate))

// PrintHTMLReport renders r as a standalone HTML page.
func PrintHTMLReport(w io.Writer, r *Report) error {
	if err := reportTemplate.Execute(w, r); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}
	return nil
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>collbench {{.Benchmark}} report</title>
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif;
            background: #f5f7fa;
            color: #2c3e50;
            padding: 20px;
        }
        .container {
            max-width: 1100px;
            margin: 0 auto;
            background: white;
            border-radius: 8px;
            box-shadow: 0 2px 8px rgba(0,0,0,0.1);
        }
        header {
            background: linear-gradient(135deg, #667eea 0%, #764ba2 100%);
            color: white;
            padding: 24px 32px;
        }
        header .meta {
            opacity: 0.9;
            font-size: 0.9rem;
        }
        .content {
            padding: 32px;
        }
        table {
            width: 100%;
            border-collapse: collapse;
            font-variant-numeric: tabular-nums;
        }
        th, td {
            padding: 8px 12px;
            text-align: right;
            border-bottom: 1px solid #e9ecef;
        }
        th {
            background: #f8f9fa;
            font-size: 0.85rem;
            text-transform: uppercase;
            color: #6c757d;
        }
    </style>
</head>
<body>
<div class="container">
    <header>
        <h1>{{.Benchmark}}</h1>
        <div class="meta">
            run {{.RunID}} &middot; {{.Size}} participants over {{.Transport}}
            &middot; {{formatTime .Started}} to {{formatTime .Finished}}
            {{if .Verified}}&middot; verified{{end}}
        </div>
    </header>
    <div class="content">
        <table>
            <thead>
                <tr>
                    <th>elements</th>
                    <th>min (us)</th>
                    <th>p50 (us)</th>
                    <th>p90 (us)</th>
                    <th>p99 (us)</th>
                    <th>p99.9 (us)</th>
                    <th>max (us)</th>
                    <th>samples</th>
                </tr>
            </thead>
            <tbody>
            {{range .Results}}
                <tr>
                    <td>{{.Elements}}</td>
                    <td>{{formatMicros .MinUs}}</td>
                    <td>{{formatMicros .P50Us}}</td>
                    <td>{{formatMicros .P90Us}}</td>
                    <td>{{formatMicros .P99Us}}</td>
                    <td>{{formatMicros .P999Us}}</td>
                    <td>{{formatMicros .MaxUs}}</td>
                    <td>{{.Samples}}</td>
                </tr>
            {{end}}
            </tbody>
        </table>
    </div>
</div>
</body>
</html>
`
