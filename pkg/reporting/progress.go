package reporting

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// OutputFormat represents the progress output format
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
)

// ProgressReporter prints tick-by-tick progress of the running loop to
// stdout, used by `evac-runner run` in the foreground.
type ProgressReporter struct {
	format OutputFormat
	logger *Logger
}

// NewProgressReporter creates a new progress reporter
func NewProgressReporter(format OutputFormat, logger *Logger) *ProgressReporter {
	return &ProgressReporter{
		format: format,
		logger: logger,
	}
}

// ReportPhaseTransition reports a tick phase transition
func (pr *ProgressReporter) ReportPhaseTransition(tickCount int64, from, to string) {
	switch pr.format {
	case FormatJSON:
		data, _ := json.Marshal(map[string]interface{}{
			"event":      "phase_transition",
			"tick_count": tickCount,
			"from_phase": from,
			"to_phase":   to,
			"timestamp":  time.Now(),
		})
		fmt.Println(string(data))
	default:
		fmt.Printf("[tick %d] %s → %s\n", tickCount, from, to)
	}
}

// ReportState reports the current live tick state
func (pr *ProgressReporter) ReportState(state LiveTickState) {
	switch pr.format {
	case FormatJSON:
		data, _ := json.Marshal(map[string]interface{}{
			"event": "tick_state",
			"state": state,
		})
		fmt.Println(string(data))
	default:
		fmt.Printf("[tick %d] phase=%s scenario=%s/%d avg_risk=%.4f pending_routes=%d elapsed=%s\n",
			state.TickCount, state.Phase, state.ReturnPeriod, state.TimeStep,
			state.AverageRisk, state.PendingRoutes, state.Elapsed.Round(time.Millisecond))
	}
}

// ReportTickCompleted reports a finished tick with its fusion outcome
func (pr *ProgressReporter) ReportTickCompleted(report *TickReport) {
	switch pr.format {
	case FormatJSON:
		data, _ := json.Marshal(map[string]interface{}{
			"event":  "tick_completed",
			"report": report,
		})
		fmt.Println(string(data))
	default:
		status := "ok"
		if !report.Success {
			status = "FAILED"
		}
		trend := report.RiskTrend
		if trend == "" {
			trend = "stable"
		}
		fmt.Printf("[tick %d] %s  %s/%d  edges_updated=%d avg_risk=%.4f trend=%s routes=%d (%s)\n",
			report.TickCount, status, report.ReturnPeriod, report.TimeStep,
			report.EdgesUpdated, report.AverageRisk, trend, report.RoutesServed, report.Duration)
		for _, e := range report.Errors {
			fmt.Printf("          error: %s\n", e)
		}
	}
}

// ReportRouteServed reports a route answered during the routing phase
func (pr *ProgressReporter) ReportRouteServed(report *RouteReport) {
	switch pr.format {
	case FormatJSON:
		data, _ := json.Marshal(map[string]interface{}{
			"event":  "route_served",
			"report": report,
		})
		fmt.Println(string(data))
	default:
		fmt.Printf("  route %s: %.0f m, avg risk %.3f, %d high-risk segment(s)\n",
			report.RouteID, report.TotalDistanceM, report.AvgRisk, report.HighRiskSegments)
		for _, w := range report.Warnings {
			fmt.Printf("    ! %s\n", w)
		}
	}
}

// ReportSessionSummary prints a final banner when the tick loop stops
func (pr *ProgressReporter) ReportSessionSummary(ticks int64, routes int, started time.Time) {
	switch pr.format {
	case FormatJSON:
		data, _ := json.Marshal(map[string]interface{}{
			"event":      "session_summary",
			"ticks":      ticks,
			"routes":     routes,
			"started_at": started,
			"elapsed":    time.Since(started).String(),
		})
		fmt.Println(string(data))
	default:
		line := strings.Repeat("─", 60)
		fmt.Println(line)
		fmt.Printf("session complete: %d tick(s), %d route(s) served in %s\n",
			ticks, routes, time.Since(started).Round(time.Second))
		fmt.Println(line)
	}
}
