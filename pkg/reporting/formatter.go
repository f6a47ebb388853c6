package reporting

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ReportFormat represents the report output format
type ReportFormat string

const (
	ReportFormatHTML ReportFormat = "html"
	ReportFormatText ReportFormat = "text"
	ReportFormatJSON ReportFormat = "json"
)

// Formatter generates formatted route reports
type Formatter struct {
	logger *Logger
}

// NewFormatter creates a new report formatter
func NewFormatter(logger *Logger) *Formatter {
	return &Formatter{
		logger: logger,
	}
}

// GenerateRouteReport renders a route report in the specified format
func (f *Formatter) GenerateRouteReport(report *RouteReport, format ReportFormat, outputPath string) error {
	switch format {
	case ReportFormatHTML:
		return f.generateHTMLReport(report, outputPath)
	case ReportFormatText:
		return f.generateTextReport(report, outputPath)
	case ReportFormatJSON:
		// Already handled by storage
		return fmt.Errorf("JSON format is automatically saved by storage")
	default:
		return fmt.Errorf("unsupported report format: %s", format)
	}
}

// generateHTMLReport renders the route as a standalone HTML page with a
// segment table and a risk histogram.
func (f *Formatter) generateHTMLReport(report *RouteReport, outputPath string) error {
	tmpl, err := template.New("route").Funcs(template.FuncMap{
		"formatTime": func(t time.Time) string {
			return t.Format("2006-01-02 15:04:05")
		},
		"riskClass": func(risk float64) string {
			switch {
			case risk >= 0.5:
				return "high"
			case risk >= 0.2:
				return "medium"
			default:
				return "low"
			}
		},
		"riskPct": func(risk float64) string {
			return fmt.Sprintf("%.0f%%", risk*100)
		},
		"riskBar": func(risk float64) int {
			return int(risk * 100)
		},
		"km": func(m float64) string {
			return fmt.Sprintf("%.2f km", m/1000)
		},
	}).Parse(routeHTMLTemplate)

	if err != nil {
		return fmt.Errorf("failed to parse HTML template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, report); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}

	if err := os.WriteFile(outputPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write HTML report: %w", err)
	}

	f.logger.Info("HTML route report generated", "path", outputPath)
	return nil
}

// generateTextReport renders the route as a plain-text summary
func (f *Formatter) generateTextReport(report *RouteReport, outputPath string) error {
	var b strings.Builder

	b.WriteString("ROUTE REPORT\n")
	b.WriteString("============\n\n")
	fmt.Fprintf(&b, "Route ID:   %s\n", report.RouteID)
	fmt.Fprintf(&b, "Computed:   %s\n", report.Timestamp.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Profile:    %s\n", report.Profile)
	fmt.Fprintf(&b, "From:       (%.6f, %.6f)\n", report.StartLat, report.StartLon)
	fmt.Fprintf(&b, "To:         (%.6f, %.6f)\n\n", report.EndLat, report.EndLon)

	fmt.Fprintf(&b, "Distance:   %.1f m\n", report.TotalDistanceM)
	fmt.Fprintf(&b, "Est. time:  %.1f min\n", report.EstimatedTimeMin)
	fmt.Fprintf(&b, "Avg risk:   %.3f\n", report.AvgRisk)
	fmt.Fprintf(&b, "Max risk:   %.3f\n", report.MaxRisk)
	fmt.Fprintf(&b, "High-risk segments: %d\n", report.HighRiskSegments)
	if report.BlockedEdges > 0 {
		fmt.Fprintf(&b, "Blocked edges encountered: %d\n", report.BlockedEdges)
	}

	if report.Shelter != nil {
		b.WriteString("\nEVACUATION TARGET\n")
		fmt.Fprintf(&b, "  %s (capacity %d) at (%.6f, %.6f)\n",
			report.Shelter.Name, report.Shelter.Capacity, report.Shelter.Lat, report.Shelter.Lon)
	}

	if len(report.Segments) > 0 {
		b.WriteString("\nSEGMENTS\n")
		for i, seg := range report.Segments {
			name := seg.Name
			if name == "" {
				name = fmt.Sprintf("segment-%d", i+1)
			}
			fmt.Fprintf(&b, "  %3d. %-30s %8.1f m  risk %.3f\n", i+1, name, seg.LengthM, seg.RiskScore)
		}
	}

	if len(report.Warnings) > 0 {
		b.WriteString("\nWARNINGS\n")
		for _, w := range report.Warnings {
			fmt.Fprintf(&b, "  ! %s\n", w)
		}
	}

	if err := os.WriteFile(outputPath, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("failed to write text report: %w", err)
	}

	f.logger.Info("Text route report generated", "path", outputPath)
	return nil
}

// CompareTickReports renders a side-by-side text comparison of two ticks,
// so operators can see how risk evolved between them.
func (f *Formatter) CompareTickReports(before, after *TickReport, outputPath string) error {
	var b strings.Builder

	b.WriteString("TICK COMPARISON\n")
	b.WriteString("===============\n\n")
	fmt.Fprintf(&b, "%-20s %-24s %-24s\n", "", "before", "after")
	fmt.Fprintf(&b, "%-20s %-24s %-24s\n", "tick", before.TickID, after.TickID)
	fmt.Fprintf(&b, "%-20s %-24d %-24d\n", "tick_count", before.TickCount, after.TickCount)
	fmt.Fprintf(&b, "%-20s %-24s %-24s\n", "scenario",
		fmt.Sprintf("%s/%d", before.ReturnPeriod, before.TimeStep),
		fmt.Sprintf("%s/%d", after.ReturnPeriod, after.TimeStep))
	fmt.Fprintf(&b, "%-20s %-24d %-24d\n", "edges_updated", before.EdgesUpdated, after.EdgesUpdated)
	fmt.Fprintf(&b, "%-20s %-24.4f %-24.4f\n", "average_risk", before.AverageRisk, after.AverageRisk)
	fmt.Fprintf(&b, "%-20s %-24s %-24s\n", "risk_trend", before.RiskTrend, after.RiskTrend)
	fmt.Fprintf(&b, "%-20s %-24d %-24d\n", "routes_served", before.RoutesServed, after.RoutesServed)

	delta := after.AverageRisk - before.AverageRisk
	fmt.Fprintf(&b, "\naverage_risk delta: %+.4f\n", delta)

	if err := os.WriteFile(outputPath, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("failed to write comparison: %w", err)
	}

	return nil
}

// GetReportPath builds the output path for a formatted route report
func GetReportPath(report *RouteReport, format ReportFormat, outputDir string) string {
	timestamp := report.Timestamp.Format("20060102-150405")
	ext := string(format)
	if format == ReportFormatText {
		ext = "txt"
	}
	return filepath.Join(outputDir, fmt.Sprintf("route-%s-%s.%s", timestamp, report.RouteID, ext))
}

// HTML template for route report generation
const routeHTMLTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Route {{.RouteID}}</title>
<style>
  body { font-family: -apple-system, 'Segoe UI', sans-serif; margin: 2em; color: #222; }
  h1 { font-size: 1.4em; border-bottom: 2px solid #3668a0; padding-bottom: 0.3em; }
  .summary { display: grid; grid-template-columns: repeat(auto-fit, minmax(180px, 1fr)); gap: 1em; margin: 1.5em 0; }
  .stat { background: #f4f6f9; border-radius: 6px; padding: 0.8em 1em; }
  .stat .label { font-size: 0.75em; text-transform: uppercase; color: #667; }
  .stat .value { font-size: 1.3em; font-weight: 600; }
  table { border-collapse: collapse; width: 100%; margin-top: 1em; }
  th, td { text-align: left; padding: 0.4em 0.8em; border-bottom: 1px solid #ddd; font-size: 0.9em; }
  .bar { display: inline-block; height: 0.7em; background: #3668a0; border-radius: 2px; vertical-align: middle; }
  tr.high td { background: #fde8e8; }
  tr.medium td { background: #fdf3e0; }
  .warning { color: #a03636; margin: 0.2em 0; }
  .shelter { background: #e8f4ea; border-radius: 6px; padding: 1em; margin-top: 1em; }
</style>
</head>
<body>
<h1>Route {{.RouteID}}</h1>
<p>Computed {{formatTime .Timestamp}} with profile <strong>{{.Profile}}</strong><br>
From ({{printf "%.6f" .StartLat}}, {{printf "%.6f" .StartLon}})
to ({{printf "%.6f" .EndLat}}, {{printf "%.6f" .EndLon}})</p>

<div class="summary">
  <div class="stat"><div class="label">Distance</div><div class="value">{{km .TotalDistanceM}}</div></div>
  <div class="stat"><div class="label">Estimated time</div><div class="value">{{printf "%.1f" .EstimatedTimeMin}} min</div></div>
  <div class="stat"><div class="label">Average risk</div><div class="value">{{riskPct .AvgRisk}}</div></div>
  <div class="stat"><div class="label">Max risk</div><div class="value">{{riskPct .MaxRisk}}</div></div>
  <div class="stat"><div class="label">High-risk segments</div><div class="value">{{.HighRiskSegments}}</div></div>
</div>

{{if .Shelter}}
<div class="shelter">
  <strong>Evacuation target:</strong> {{.Shelter.Name}}
  (capacity {{.Shelter.Capacity}}) at ({{printf "%.6f" .Shelter.Lat}}, {{printf "%.6f" .Shelter.Lon}})
</div>
{{end}}

{{if .Warnings}}
<h2>Warnings</h2>
{{range .Warnings}}<p class="warning">⚠ {{.}}</p>{{end}}
{{end}}

{{if .Segments}}
<h2>Segments</h2>
<table>
<tr><th>#</th><th>Name</th><th>Length</th><th>Risk</th><th></th></tr>
{{range $i, $seg := .Segments}}
<tr class="{{riskClass $seg.RiskScore}}">
  <td>{{$i}}</td>
  <td>{{if $seg.Name}}{{$seg.Name}}{{else}}—{{end}}</td>
  <td>{{printf "%.0f" $seg.LengthM}} m</td>
  <td>{{riskPct $seg.RiskScore}}</td>
  <td><span class="bar" style="width: {{riskBar $seg.RiskScore}}px"></span></td>
</tr>
{{end}}
</table>
{{end}}

</body>
</html>`
