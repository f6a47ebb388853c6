package hazard

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riverwatch/evacroute/pkg/graph"
	"github.com/riverwatch/evacroute/pkg/raster"
)

// oneDegreeLatM is meters per degree of latitude under the Haversine
// radius used by pkg/graph.
const oneDegreeLatM = 6371000.0 * math.Pi / 180

// fakeRaster returns fixed depths keyed like the engine's bulk query.
type fakeRaster struct {
	depths map[string]float64
}

func (f *fakeRaster) DepthsForEdges(ctx context.Context, points map[string][2]float64, scenario raster.Scenario) map[string]float64 {
	out := make(map[string]float64)
	for key := range points {
		if d, ok := f.depths[key]; ok {
			out[key] = d
		}
	}
	return out
}

// singleEdgeGraph has one directed edge whose midpoint sits at (0, 0.005).
func singleEdgeGraph(t *testing.T) *graph.Graph {
	t.Helper()
	src := []byte(`
nodes:
  - {id: 1, lat: 0.0, lon: 0.0}
  - {id: 2, lat: 0.0, lon: 0.01}
edges:
  - {u: 1, v: 2, key: 0, length_m: 1113, road_class: residential}
`)
	g, err := graph.NewLoader().Load(src)
	require.NoError(t, err)
	return g
}

func newTestEngine(g *graph.Graph, rs rasterSource) *Engine {
	if rs == nil {
		rs = &fakeRaster{}
	}
	return NewEngine(EngineConfig{
		Graph:         g,
		RasterService: rs,
		Cache:         NewCache(DefaultScoutTTL, DefaultFloodTTL),
		Weights:       DefaultFusionWeights(),
		Rates:         DefaultDecayRates(),
	})
}

func TestDepthToRiskCurve(t *testing.T) {
	cases := []struct{ depth, risk float64 }{
		{0, 0},
		{0.15, 0.15},
		{0.3, 0.3},
		{0.45, 0.45},
		{0.6, 0.6},
		{0.8, 0.7},
		{1.0, 0.8},
		{1.5, 0.9},
		{2.5, 1.0},
		{5.0, 1.0},
	}
	for _, c := range cases {
		assert.InDelta(t, c.risk, depthToRisk(c.depth), 1e-9, "depth %v", c.depth)
	}
}

func TestRiverAndDamClassification(t *testing.T) {
	thresholds := RiverLevelThresholds{AlertM: 3, AlarmM: 4, CriticalM: 5}
	assert.Equal(t, 0.2, riverLevelToRisk(2.5, thresholds))
	assert.Equal(t, 0.5, riverLevelToRisk(3.2, thresholds))
	assert.Equal(t, 0.8, riverLevelToRisk(4.5, thresholds))
	assert.Equal(t, 1.0, riverLevelToRisk(5.1, thresholds))

	assert.Equal(t, 0.1, damDeviationToRisk(-0.3))
	assert.Equal(t, 0.3, damDeviationToRisk(0.2))
	assert.Equal(t, 0.5, damDeviationToRisk(0.7))
	assert.Equal(t, 0.8, damDeviationToRisk(1.2))
	assert.Equal(t, 1.0, damDeviationToRisk(2.5))
}

func TestRainIntensityBands(t *testing.T) {
	assert.Equal(t, IntensityNone, classifyRainIntensity(0))
	assert.Equal(t, IntensityLight, classifyRainIntensity(2.0))
	assert.Equal(t, IntensityModerate, classifyRainIntensity(5.0))
	assert.Equal(t, IntensityHeavy, classifyRainIntensity(12.0))
	assert.Equal(t, IntensityIntense, classifyRainIntensity(25.0))
	assert.Equal(t, IntensityTorrential, classifyRainIntensity(40.0))

	// Intensity contributes at most 0.6.
	assert.InDelta(t, 0.6, rainSeverityFactor(30), 1e-9)
	assert.InDelta(t, 0.6, rainSeverityFactor(100), 1e-9)
	assert.InDelta(t, 0.3, rainSeverityFactor(15), 1e-9)
}

func TestSpatialPropagationContribution(t *testing.T) {
	g := singleEdgeGraph(t)
	e := newTestEngine(g, nil)
	now := time.Now()

	// Report 400 m due north of the edge midpoint, severity and confidence
	// both 1: contribution = 1 * 1 * (1 - 400/800) * 0.3 = 0.15.
	e.IngestScoutReports([]ScoutReport{{
		ReportID:       "r1",
		Timestamp:      now,
		Severity:       1.0,
		Confidence:     1.0,
		ReportKind:     ReportFlood,
		HasCoordinates: true,
		Coordinates:    Coordinates{Lat: 400 / oneDegreeLatM, Lon: 0.005},
	}})

	_, err := e.Fuse(context.Background(), now, raster.Scenario{ReturnPeriod: raster.RR02, TimeStep: 1}, 1)
	require.NoError(t, err)

	edge, ok := g.Edge(graph.EdgeKey{U: 1, V: 2, Key: 0})
	require.True(t, ok)
	assert.InDelta(t, 0.15, edge.RiskScore, 0.002)
}

func TestPropagationIgnoresFarReports(t *testing.T) {
	g := singleEdgeGraph(t)
	e := newTestEngine(g, nil)
	now := time.Now()

	// 900 m away is outside the 800 m propagation radius.
	e.IngestScoutReports([]ScoutReport{{
		ReportID:       "r1",
		Timestamp:      now,
		Severity:       1.0,
		Confidence:     1.0,
		ReportKind:     ReportFlood,
		HasCoordinates: true,
		Coordinates:    Coordinates{Lat: 900 / oneDegreeLatM, Lon: 0.005},
	}})

	_, err := e.Fuse(context.Background(), now, raster.Scenario{ReturnPeriod: raster.RR02, TimeStep: 1}, 1)
	require.NoError(t, err)

	edge, _ := g.Edge(graph.EdgeKey{U: 1, V: 2, Key: 0})
	assert.Equal(t, 0.0, edge.RiskScore)
}

func TestScoutDecayClosedForm(t *testing.T) {
	g := singleEdgeGraph(t)
	e := newTestEngine(g, nil)
	base := time.Now()

	// One report at the edge midpoint; no river elevation anywhere, so the
	// fast rate (0.10/min) applies.
	e.IngestScoutReports([]ScoutReport{{
		ReportID:       "r1",
		Timestamp:      base,
		Severity:       0.8,
		Confidence:     1.0,
		ReportKind:     ReportFlood,
		HasCoordinates: true,
		Coordinates:    Coordinates{Lat: 0, Lon: 0.005},
	}})

	// Five 1-minute ticks with no further input.
	scenario := raster.Scenario{ReturnPeriod: raster.RR01, TimeStep: 1}
	for i := 1; i <= 5; i++ {
		_, err := e.Fuse(context.Background(), base.Add(time.Duration(i)*time.Minute), scenario, i)
		require.NoError(t, err)
	}

	expected := 0.8 * math.Exp(-0.10*5) * 0.3 // distance factor is 1 at the midpoint
	edge, _ := g.Edge(graph.EdgeKey{U: 1, V: 2, Key: 0})
	assert.InDelta(t, expected, edge.RiskScore, expected*0.01)

	// After the scout TTL the report is evicted and the residual decays
	// through the floor to exactly zero.
	_, err := e.Fuse(context.Background(), base.Add(50*time.Minute), scenario, 6)
	require.NoError(t, err)
	_, err = e.Fuse(context.Background(), base.Add(100*time.Minute), scenario, 7)
	require.NoError(t, err)

	edge, _ = g.Edge(graph.EdgeKey{U: 1, V: 2, Key: 0})
	assert.Equal(t, 0.0, edge.RiskScore)
}

func TestReportedFloodDepthContributesAtRasterWeight(t *testing.T) {
	g := singleEdgeGraph(t)
	e := newTestEngine(g, nil)
	now := time.Now()

	// flood_depth 0.8 m → depth risk 0.7, weighted at 0.5 → 0.35 uniform,
	// plus the official share from the reading's own classification.
	e.IngestReadings([]HazardReading{{
		LocationID:    "station-1",
		Timestamp:     now,
		HasFloodDepth: true,
		FloodDepthM:   0.8,
	}})

	_, err := e.Fuse(context.Background(), now, raster.Scenario{ReturnPeriod: raster.RR02, TimeStep: 1}, 1)
	require.NoError(t, err)

	// The depth-only reading carries no rain/river/dam signal, so the
	// official share is zero and only the weighted depth term remains.
	edge, _ := g.Edge(graph.EdgeKey{U: 1, V: 2, Key: 0})
	assert.InDelta(t, 0.7*0.5, edge.RiskScore, 1e-9)
}

func TestRasterTermWeighted(t *testing.T) {
	g := singleEdgeGraph(t)
	rs := &fakeRaster{depths: map[string]float64{"1_2_0": 0.8}}
	e := newTestEngine(g, rs)
	now := time.Now()

	_, err := e.Fuse(context.Background(), now, raster.Scenario{ReturnPeriod: raster.RR02, TimeStep: 10}, 10)
	require.NoError(t, err)

	// depth 0.8 → risk 0.7, weighted at 0.5.
	edge, _ := g.Edge(graph.EdgeKey{U: 1, V: 2, Key: 0})
	assert.InDelta(t, 0.35, edge.RiskScore, 1e-9)
}

func TestCacheEvictionByTTL(t *testing.T) {
	c := NewCache(45*time.Minute, 90*time.Minute)
	now := time.Now()

	c.UpsertReadings([]HazardReading{
		{LocationID: "old", Timestamp: now.Add(-2 * time.Hour)},
		{LocationID: "fresh", Timestamp: now.Add(-10 * time.Minute)},
	})
	c.AppendScoutReports([]ScoutReport{
		{ReportID: "old", Timestamp: now.Add(-time.Hour), Severity: 0.5, Confidence: 1},
		{ReportID: "fresh", Timestamp: now.Add(-5 * time.Minute), Severity: 0.5, Confidence: 1},
	})

	c.EvictExpired(now)

	readings := c.Readings()
	require.Len(t, readings, 1)
	assert.Equal(t, "fresh", readings[0].LocationID)

	reports := c.ScoutReports()
	require.Len(t, reports, 1)
	assert.Equal(t, "fresh", reports[0].ReportID)
}

func TestDuplicateLocationKeepsLatest(t *testing.T) {
	c := NewCache(DefaultScoutTTL, DefaultFloodTTL)
	now := time.Now()

	c.UpsertReadings([]HazardReading{
		{LocationID: "s1", Timestamp: now.Add(-time.Minute), Rainfall1hMM: 1},
		{LocationID: "s1", Timestamp: now, Rainfall1hMM: 2},
		{LocationID: "s1", Timestamp: now, Rainfall1hMM: 3}, // tie: arrival order wins
	})

	readings := c.Readings()
	require.Len(t, readings, 1)
	assert.Equal(t, 3.0, readings[0].Rainfall1hMM)
}

func TestIngestDropsInvalidEntries(t *testing.T) {
	e := newTestEngine(singleEdgeGraph(t), nil)

	accepted, dropped := e.IngestReadings([]HazardReading{
		{LocationID: "", Timestamp: time.Now()},
		{LocationID: "ok", Timestamp: time.Now()},
	})
	assert.Equal(t, 1, accepted)
	assert.Equal(t, 1, dropped)

	accepted, dropped = e.IngestScoutReports([]ScoutReport{
		{ReportID: "bad", Timestamp: time.Now(), Severity: 1.5, Confidence: 1},
		{ReportID: "ok", Timestamp: time.Now(), Severity: 0.5, Confidence: 1},
	})
	assert.Equal(t, 1, accepted)
	assert.Equal(t, 1, dropped)
}

func TestTrendClassification(t *testing.T) {
	g := singleEdgeGraph(t)
	e := newTestEngine(g, nil)
	base := time.Now()
	scenario := raster.Scenario{ReturnPeriod: raster.RR01, TimeStep: 1}

	// First tick: no history yet, trend is stable.
	s1, err := e.Fuse(context.Background(), base, scenario, 1)
	require.NoError(t, err)
	assert.Equal(t, TrendStable, s1.Trend)

	// Inject a strong geocoded report; average rises.
	e.IngestScoutReports([]ScoutReport{{
		ReportID:       "r1",
		Timestamp:      base.Add(time.Minute),
		Severity:       1.0,
		Confidence:     1.0,
		ReportKind:     ReportFlood,
		HasCoordinates: true,
		Coordinates:    Coordinates{Lat: 0, Lon: 0.005},
	}})
	s2, err := e.Fuse(context.Background(), base.Add(time.Minute), scenario, 2)
	require.NoError(t, err)
	assert.Equal(t, TrendIncreasing, s2.Trend)

	// Silence: decay brings it back down.
	s3, err := e.Fuse(context.Background(), base.Add(20*time.Minute), scenario, 3)
	require.NoError(t, err)
	assert.Equal(t, TrendDecreasing, s3.Trend)
}

func TestScoutDecayRateSelection(t *testing.T) {
	rates := DefaultDecayRates()

	rain := ScoutReport{ReportKind: ReportRain}
	flood := ScoutReport{ReportKind: ReportFlood}
	clear := ScoutReport{ReportKind: ReportClear}

	// Rain reports always decay fast.
	assert.Equal(t, rates.ScoutFast, scoutDecayRate(rain, true, rates))
	// River-tied reports decay slow only under an elevated river.
	assert.Equal(t, rates.ScoutSlow, scoutDecayRate(flood, true, rates))
	assert.Equal(t, rates.ScoutFast, scoutDecayRate(flood, false, rates))
	// Anything else under an elevated river: mean of the two.
	assert.Equal(t, (rates.ScoutFast+rates.ScoutSlow)/2, scoutDecayRate(clear, true, rates))
}
