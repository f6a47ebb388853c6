// Package hazardsource defines the upstream hazard feed contract the flood
// collector refreshes from, plus the two shipped implementations: an HTTP
// JSON client for a real upstream endpoint and a file-backed fixture client
// for simulated or offline runs.
package hazardsource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/riverwatch/evacroute/pkg/hazard"
)

// Source is the upstream hazard feed contract. Implementations honor the
// context deadline and return readings keyed by location id.
type Source interface {
	FetchReadings(ctx context.Context) (map[string]hazard.HazardReading, error)
}

// Config contains HTTP client configuration
type Config struct {
	URL     string
	Timeout time.Duration
}

// HTTPClient fetches a HazardReading batch from an upstream JSON endpoint.
type HTTPClient struct {
	httpClient *http.Client
	config     Config
}

// wireReading is the upstream JSON shape: one entry per location id.
type wireReading struct {
	FloodDepth           *float64 `json:"flood_depth,omitempty"`
	Rainfall1h           float64  `json:"rainfall_1h"`
	Rainfall24h          float64  `json:"rainfall_24h"`
	RiverLevelM          *float64 `json:"river_level_m,omitempty"`
	AlertLevelM          float64  `json:"alert_level_m,omitempty"`
	AlarmLevelM          float64  `json:"alarm_level_m,omitempty"`
	CriticalLevelM       float64  `json:"critical_level_m,omitempty"`
	ReservoirWaterLevelM *float64 `json:"reservoir_water_level_m,omitempty"`
	NormalHighWaterM     float64  `json:"normal_high_water_level_m,omitempty"`
	Timestamp            string   `json:"timestamp"`
}

// New creates a new upstream HTTP client
func New(config Config) (*HTTPClient, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("hazardsource: upstream URL is empty")
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	return &HTTPClient{
		httpClient: &http.Client{Timeout: config.Timeout},
		config:     config,
	}, nil
}

// FetchReadings performs one upstream fetch and converts the payload into
// HazardReadings. Entries that fail validation are dropped; the batch
// itself only fails on transport or decode errors.
func (c *HTTPClient) FetchReadings(ctx context.Context) (map[string]hazard.HazardReading, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("hazardsource: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("hazardsource: fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("hazardsource: upstream returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("hazardsource: read body: %w", err)
	}

	return ParseBatch(body)
}

// TestConnection probes the upstream endpoint
func (c *HTTPClient) TestConnection(ctx context.Context) error {
	_, err := c.FetchReadings(ctx)
	if err != nil {
		return fmt.Errorf("hazardsource: connection test failed: %w", err)
	}
	return nil
}

// FileClient reads the same JSON batch shape from a local fixture file,
// used by simulated mode and tests.
type FileClient struct {
	path string
}

// NewFileClient returns a FileClient reading path on every fetch.
func NewFileClient(path string) *FileClient {
	return &FileClient{path: path}
}

// FetchReadings reads and parses the fixture file.
func (c *FileClient) FetchReadings(ctx context.Context) (map[string]hazard.HazardReading, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, fmt.Errorf("hazardsource: read fixture: %w", err)
	}
	return ParseBatch(data)
}

// ParseBatch decodes a location_id → reading JSON object into validated
// HazardReadings. Invalid entries are silently dropped, matching the
// InputValidation policy: a bad location never aborts the batch.
func ParseBatch(data []byte) (map[string]hazard.HazardReading, error) {
	var wire map[string]wireReading
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("hazardsource: decode batch: %w", err)
	}

	out := make(map[string]hazard.HazardReading, len(wire))
	for locationID, w := range wire {
		r, ok := convertReading(locationID, w)
		if !ok {
			continue
		}
		out[locationID] = r
	}
	return out, nil
}

// convertReading maps one wire entry onto a HazardReading. Timestamps
// without a zone are treated as UTC.
func convertReading(locationID string, w wireReading) (hazard.HazardReading, bool) {
	if locationID == "" {
		return hazard.HazardReading{}, false
	}

	ts, err := parseTimestamp(w.Timestamp)
	if err != nil {
		return hazard.HazardReading{}, false
	}

	r := hazard.HazardReading{
		LocationID:    locationID,
		Timestamp:     ts,
		Rainfall1hMM:  w.Rainfall1h,
		Rainfall24hMM: w.Rainfall24h,
		SourceTag:     "upstream",
	}

	if w.FloodDepth != nil {
		r.HasFloodDepth = true
		r.FloodDepthM = *w.FloodDepth
	}

	if w.RiverLevelM != nil {
		r.HasRiverLevel = true
		r.RiverLevelM = *w.RiverLevelM
		r.Thresholds = hazard.RiverLevelThresholds{
			AlertM:    w.AlertLevelM,
			AlarmM:    w.AlarmLevelM,
			CriticalM: w.CriticalLevelM,
		}
	}

	// Dam deviation is derived from reservoir level vs the normal
	// high-water level when both are present.
	if w.ReservoirWaterLevelM != nil && w.NormalHighWaterM > 0 {
		r.HasDamDeviation = true
		r.DamDeviationM = *w.ReservoirWaterLevelM - w.NormalHighWaterM
		r.NormalHighWaterM = w.NormalHighWaterM
	}

	return r, true
}

func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	// Naive timestamps are treated as UTC.
	ts, err := time.Parse("2006-01-02T15:04:05", s)
	if err != nil {
		return time.Time{}, err
	}
	return ts.UTC(), nil
}
