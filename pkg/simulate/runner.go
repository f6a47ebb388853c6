// Package simulate implements scenario playback and generation for
// simulated runs: a pre-recorded event stream is read from CSV and each
// event is delivered to the scout or flood collector when the simulation
// clock first exceeds its offset.
package simulate

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/riverwatch/evacroute/pkg/hazard"
	"github.com/riverwatch/evacroute/pkg/hazardsource"
)

// Agent names recognized in the scenario stream.
const (
	AgentFlood = "flood_agent"
	AgentScout = "scout_agent"
)

// Event is one scheduled scenario entry: a payload destined for one agent
// once the simulation clock passes OffsetSeconds.
type Event struct {
	OffsetSeconds float64
	Agent         string
	Payload       []byte
}

// Scenario is a loaded event stream, ordered by offset.
type Scenario struct {
	Name   string
	Events []Event
}

// LoadScenarioFile reads a scenario CSV with the header
// time_offset_seconds, agent, payload_json. Rows with an unknown agent or
// malformed offset are dropped with a warning entry, never fatal.
func LoadScenarioFile(path string) (*Scenario, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("simulate: open scenario: %w", err)
	}
	defer f.Close()

	sc, warnings, err := parseScenario(f)
	if err != nil {
		return nil, warnings, err
	}
	sc.Name = strings.TrimSuffix(shortName(path), ".csv")
	return sc, warnings, nil
}

func shortName(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}

func parseScenario(r io.Reader) (*Scenario, []string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	// Payload JSON contains commas; it is quoted in the CSV, which the
	// stdlib reader handles, but embedded quotes may be lazy.
	reader.LazyQuotes = true

	var events []Event
	var warnings []string

	row := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, warnings, fmt.Errorf("simulate: parse scenario: %w", err)
		}
		row++

		if row == 1 && strings.EqualFold(strings.TrimSpace(record[0]), "time_offset_seconds") {
			continue
		}
		if len(record) < 3 {
			warnings = append(warnings, fmt.Sprintf("row %d dropped: expected 3 fields", row))
			continue
		}

		offset, err := strconv.ParseFloat(strings.TrimSpace(record[0]), 64)
		if err != nil || offset < 0 {
			warnings = append(warnings, fmt.Sprintf("row %d dropped: bad offset %q", row, record[0]))
			continue
		}

		agent := strings.TrimSpace(record[1])
		if agent != AgentFlood && agent != AgentScout {
			warnings = append(warnings, fmt.Sprintf("row %d dropped: unknown agent %q", row, agent))
			continue
		}

		events = append(events, Event{
			OffsetSeconds: offset,
			Agent:         agent,
			Payload:       []byte(record[2]),
		})
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].OffsetSeconds < events[j].OffsetSeconds
	})

	return &Scenario{Events: events}, warnings, nil
}

// Handlers receive decoded event payloads. Either may be nil, in which case
// that agent's events are skipped.
type Handlers struct {
	Flood func(readings []hazard.HazardReading) error
	Scout func(reports []hazard.ScoutReport) error
}

// Runner replays a scenario against a simulation clock. DeliverDue is
// called once per tick with the current time; every event whose offset has
// been passed since the last call is decoded and handed to its handler.
type Runner struct {
	scenario *Scenario
	handlers Handlers

	mu        sync.Mutex
	started   time.Time
	startedOK bool
	cursor    int
	delivered int
	dropped   int
}

// NewRunner creates a playback runner for a loaded scenario
func NewRunner(scenario *Scenario, handlers Handlers) *Runner {
	return &Runner{scenario: scenario, handlers: handlers}
}

// Start arms the simulation clock. Delivery is relative to this instant.
func (r *Runner) Start(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = now
	r.startedOK = true
	r.cursor = 0
	r.delivered = 0
	r.dropped = 0
}

// Done reports whether every event has been delivered
func (r *Runner) Done() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.startedOK && r.cursor >= len(r.scenario.Events)
}

// Progress returns delivered, dropped and total event counts
func (r *Runner) Progress() (delivered, dropped, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.delivered, r.dropped, len(r.scenario.Events)
}

// DeliverDue decodes and delivers every event whose offset the simulation
// clock has passed. Undecodable payloads are dropped and counted; a drop
// never aborts the remaining deliveries.
func (r *Runner) DeliverDue(now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.startedOK {
		return 0, fmt.Errorf("simulate: runner not started")
	}

	elapsed := now.Sub(r.started).Seconds()
	count := 0
	var firstErr error

	for r.cursor < len(r.scenario.Events) {
		ev := r.scenario.Events[r.cursor]
		if ev.OffsetSeconds > elapsed {
			break
		}
		r.cursor++

		if err := r.deliver(ev); err != nil {
			r.dropped++
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		r.delivered++
		count++
	}

	return count, firstErr
}

func (r *Runner) deliver(ev Event) error {
	switch ev.Agent {
	case AgentFlood:
		if r.handlers.Flood == nil {
			return nil
		}
		batch, err := hazardsource.ParseBatch(ev.Payload)
		if err != nil {
			return err
		}
		readings := make([]hazard.HazardReading, 0, len(batch))
		for _, reading := range batch {
			readings = append(readings, reading)
		}
		return r.handlers.Flood(readings)

	case AgentScout:
		if r.handlers.Scout == nil {
			return nil
		}
		reports, err := ParseScoutBatch(ev.Payload)
		if err != nil {
			return err
		}
		return r.handlers.Scout(reports)

	default:
		return fmt.Errorf("simulate: unknown agent %q", ev.Agent)
	}
}

// wireScoutReport is the scout payload JSON shape.
type wireScoutReport struct {
	LocationName string `json:"location_name,omitempty"`
	Coordinates  *struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"coordinates,omitempty"`
	Severity   float64 `json:"severity"`
	Confidence float64 `json:"confidence"`
	ReportKind string  `json:"report_kind"`
	Timestamp  string  `json:"timestamp"`
	Body       string  `json:"body,omitempty"`
}

// ParseScoutBatch decodes a scout report list payload into validated
// ScoutReports. Entries with out-of-range severity/confidence or a bad
// timestamp are dropped.
func ParseScoutBatch(data []byte) ([]hazard.ScoutReport, error) {
	var wire []wireScoutReport
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("simulate: decode scout batch: %w", err)
	}

	out := make([]hazard.ScoutReport, 0, len(wire))
	for i, w := range wire {
		ts, err := parseTimestamp(w.Timestamp)
		if err != nil {
			continue
		}
		if w.Severity < 0 || w.Severity > 1 || w.Confidence < 0 || w.Confidence > 1 {
			continue
		}

		report := hazard.ScoutReport{
			ReportID:     fmt.Sprintf("sim-%d-%d", ts.Unix(), i),
			Timestamp:    ts,
			Body:         w.Body,
			LocationName: w.LocationName,
			Severity:     w.Severity,
			Confidence:   w.Confidence,
			ReportKind:   hazard.ReportKind(w.ReportKind),
		}
		if w.Coordinates != nil {
			lat, lon := w.Coordinates.Lat, w.Coordinates.Lon
			if lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180 {
				report.HasCoordinates = true
				report.Coordinates = hazard.Coordinates{Lat: lat, Lon: lon}
			}
		}
		out = append(out, report)
	}
	return out, nil
}

func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	ts, err := time.Parse("2006-01-02T15:04:05", s)
	if err != nil {
		return time.Time{}, err
	}
	return ts.UTC(), nil
}
