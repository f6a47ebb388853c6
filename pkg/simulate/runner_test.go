package simulate

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riverwatch/evacroute/pkg/hazard"
)

const scenarioCSV = `time_offset_seconds,agent,payload_json
0,scout_agent,"[{""coordinates"":{""lat"":0.005,""lon"":0.005},""severity"":0.8,""confidence"":1.0,""report_kind"":""flood"",""timestamp"":""2026-08-01T10:00:00Z""}]"
30,flood_agent,"{""station-1"":{""rainfall_1h"":12.0,""rainfall_24h"":40.0,""river_level_m"":4.2,""alert_level_m"":3.0,""alarm_level_m"":4.0,""critical_level_m"":5.0,""timestamp"":""2026-08-01T10:00:30Z""}}"
60,scout_agent,"[{""severity"":0.4,""confidence"":0.7,""report_kind"":""rain_report"",""timestamp"":""2026-08-01T10:01:00Z""}]"
`

func TestParseScenarioOrdersEvents(t *testing.T) {
	sc, warnings, err := parseScenario(strings.NewReader(scenarioCSV))
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, sc.Events, 3)
	assert.Equal(t, AgentScout, sc.Events[0].Agent)
	assert.Equal(t, 30.0, sc.Events[1].OffsetSeconds)
}

func TestParseScenarioDropsBadRows(t *testing.T) {
	csv := "time_offset_seconds,agent,payload_json\n" +
		"abc,scout_agent,[]\n" +
		"10,martian_agent,[]\n" +
		"5,scout_agent,[]\n"
	sc, warnings, err := parseScenario(strings.NewReader(csv))
	require.NoError(t, err)
	assert.Len(t, warnings, 2)
	require.Len(t, sc.Events, 1)
}

func TestRunnerDeliversWhenClockPasses(t *testing.T) {
	sc, _, err := parseScenario(strings.NewReader(scenarioCSV))
	require.NoError(t, err)

	var scoutBatches [][]hazard.ScoutReport
	var floodBatches [][]hazard.HazardReading

	r := NewRunner(sc, Handlers{
		Scout: func(reports []hazard.ScoutReport) error {
			scoutBatches = append(scoutBatches, reports)
			return nil
		},
		Flood: func(readings []hazard.HazardReading) error {
			floodBatches = append(floodBatches, readings)
			return nil
		},
	})

	start := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	r.Start(start)

	// t=0: only the offset-0 scout event is due.
	n, err := r.DeliverDue(start)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, scoutBatches, 1)
	assert.True(t, scoutBatches[0][0].HasCoordinates)
	assert.False(t, r.Done())

	// t=45s: the flood event fires, the 60s scout event does not.
	n, err = r.DeliverDue(start.Add(45 * time.Second))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, floodBatches, 1)
	require.Len(t, floodBatches[0], 1)
	assert.True(t, floodBatches[0][0].HasRiverLevel)

	// t=2min: the rest drains and the runner is done.
	n, err = r.DeliverDue(start.Add(2 * time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, r.Done())

	delivered, dropped, total := r.Progress()
	assert.Equal(t, 3, delivered)
	assert.Equal(t, 0, dropped)
	assert.Equal(t, 3, total)
}

func TestParseScoutBatchDropsInvalidEntries(t *testing.T) {
	payload := []byte(`[
		{"severity": 1.4, "confidence": 1.0, "report_kind": "flood", "timestamp": "2026-08-01T10:00:00Z"},
		{"severity": 0.5, "confidence": 0.9, "report_kind": "rain_report", "timestamp": "2026-08-01T10:00:00Z"},
		{"severity": 0.5, "confidence": 0.9, "report_kind": "flood", "timestamp": ""}
	]`)
	reports, err := ParseScoutBatch(payload)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, hazard.ReportRain, reports[0].ReportKind)
}

func TestGenerateRoundTripsThroughCSV(t *testing.T) {
	sc, err := Generate(GeneratorConfig{
		Seed:            42,
		DurationSeconds: 300,
		ScoutEvents:     4,
		FloodEvents:     2,
		CenterLat:       0.005,
		CenterLon:       0.005,
	})
	require.NoError(t, err)
	require.Len(t, sc.Events, 6)

	path := t.TempDir() + "/scenario.csv"
	require.NoError(t, WriteScenarioFile(sc, path))

	loaded, warnings, err := LoadScenarioFile(path)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Len(t, loaded.Events, 6)

	// Same seed reproduces the same stream.
	sc2, err := Generate(GeneratorConfig{
		Seed:            42,
		DurationSeconds: 300,
		ScoutEvents:     4,
		FloodEvents:     2,
		CenterLat:       0.005,
		CenterLon:       0.005,
	})
	require.NoError(t, err)
	require.Len(t, sc2.Events, 6)
	for i := range sc.Events {
		assert.Equal(t, string(sc.Events[i].Payload), string(sc2.Events[i].Payload))
	}
}
