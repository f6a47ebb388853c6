package simulate

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"
)

// GeneratorConfig parameterizes synthetic scenario generation.
type GeneratorConfig struct {
	// Seed drives the sampler; pass the same seed to reproduce a scenario.
	Seed int64

	// DurationSeconds is the span of the generated event stream.
	DurationSeconds float64

	// ScoutEvents and FloodEvents are the number of batches of each kind.
	ScoutEvents int
	FloodEvents int

	// ReportsPerScoutBatch is the batch size for scout events.
	ReportsPerScoutBatch int

	// Stations are the location ids covered by each flood batch.
	Stations []string

	// CenterLat/CenterLon/JitterDeg place scout reports around the area
	// of interest.
	CenterLat float64
	CenterLon float64
	JitterDeg float64
}

// Generate builds a randomized scenario: scout and flood events spread
// uniformly over the duration, parameters sampled near classification
// thresholds.
func Generate(cfg GeneratorConfig) (*Scenario, error) {
	if cfg.DurationSeconds <= 0 {
		return nil, fmt.Errorf("simulate: duration must be positive")
	}
	if len(cfg.Stations) == 0 {
		cfg.Stations = []string{"station-1", "station-2"}
	}
	if cfg.ReportsPerScoutBatch < 1 {
		cfg.ReportsPerScoutBatch = 3
	}
	if cfg.JitterDeg <= 0 {
		cfg.JitterDeg = 0.01
	}

	sampler := NewSampler(cfg.Seed)
	base := time.Unix(0, 0).UTC()
	var events []Event

	for i := 0; i < cfg.ScoutEvents; i++ {
		offset := cfg.DurationSeconds * float64(i+1) / float64(cfg.ScoutEvents+1)
		ts := base.Add(time.Duration(offset * float64(time.Second)))

		batch := make([]wireScoutReport, cfg.ReportsPerScoutBatch)
		for j := range batch {
			batch[j] = sampler.SampleScoutReport(ts, cfg.CenterLat, cfg.CenterLon, cfg.JitterDeg)
		}
		payload, err := json.Marshal(batch)
		if err != nil {
			return nil, fmt.Errorf("simulate: marshal scout batch: %w", err)
		}
		events = append(events, Event{OffsetSeconds: offset, Agent: AgentScout, Payload: payload})
	}

	for i := 0; i < cfg.FloodEvents; i++ {
		offset := cfg.DurationSeconds * float64(i+1) / float64(cfg.FloodEvents+1)
		ts := base.Add(time.Duration(offset * float64(time.Second)))

		batch := make(map[string]wireReadingOut, len(cfg.Stations))
		for _, station := range cfg.Stations {
			batch[station] = sampler.SampleFloodReading(ts)
		}
		payload, err := json.Marshal(batch)
		if err != nil {
			return nil, fmt.Errorf("simulate: marshal flood batch: %w", err)
		}
		events = append(events, Event{OffsetSeconds: offset, Agent: AgentFlood, Payload: payload})
	}

	sc := &Scenario{Name: fmt.Sprintf("generated-%d", cfg.Seed), Events: events}
	sort.SliceStable(sc.Events, func(i, j int) bool {
		return sc.Events[i].OffsetSeconds < sc.Events[j].OffsetSeconds
	})
	return sc, nil
}

// WriteScenarioFile saves a scenario in the playback CSV format.
func WriteScenarioFile(sc *Scenario, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("simulate: create scenario file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"time_offset_seconds", "agent", "payload_json"}); err != nil {
		return fmt.Errorf("simulate: write header: %w", err)
	}

	for _, ev := range sc.Events {
		record := []string{
			strconv.FormatFloat(ev.OffsetSeconds, 'f', 1, 64),
			ev.Agent,
			string(ev.Payload),
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("simulate: write event: %w", err)
		}
	}

	return nil
}
