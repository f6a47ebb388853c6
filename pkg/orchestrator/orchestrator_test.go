package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riverwatch/evacroute/pkg/config"
	"github.com/riverwatch/evacroute/pkg/graph"
	"github.com/riverwatch/evacroute/pkg/hazard"
	"github.com/riverwatch/evacroute/pkg/planner"
	"github.com/riverwatch/evacroute/pkg/raster"
	"github.com/riverwatch/evacroute/pkg/reporting"
)

func testGraph(t *testing.T) *graph.Graph {
	t.Helper()
	src := []byte(`
nodes:
  - {id: 1, lat: 0.0, lon: 0.0}
  - {id: 2, lat: 0.0, lon: 0.01}
  - {id: 3, lat: 0.01, lon: 0.01}
edges:
  - {u: 1, v: 2, key: 0, length_m: 1000, road_class: residential}
  - {u: 2, v: 3, key: 0, length_m: 1000, road_class: residential}
`)
	g, err := graph.NewLoader().Load(src)
	require.NoError(t, err)
	return g
}

func newTestOrchestrator(t *testing.T, hooks Hooks) (*Orchestrator, *graph.Graph, *hazard.Engine) {
	t.Helper()
	g := testGraph(t)

	rasterSvc := raster.NewService(raster.Config{
		Root:           t.TempDir(),
		Align:          raster.AlignConfig{BaseCoverageDeg: 0.06},
		EnabledAtStart: false,
	})
	engine := hazard.NewEngine(hazard.EngineConfig{
		Graph:         g,
		RasterService: rasterSvc,
		Cache:         hazard.NewCache(hazard.DefaultScoutTTL, hazard.DefaultFloodTTL),
		Weights:       hazard.DefaultFusionWeights(),
		Rates:         hazard.DefaultDecayRates(),
	})
	plan := planner.New(planner.Config{Graph: g})

	orch, err := New(Config{
		Cfg:           config.DefaultConfig(),
		Graph:         g,
		Engine:        engine,
		RasterService: rasterSvc,
		Planner:       plan,
		Hooks:         hooks,
	})
	require.NoError(t, err)
	return orch, g, engine
}

// busFeeder stands in for the hazard agent: RunTick steps it at the start
// of fusion, after collection has cleared the bus, and it stages whatever
// inputs the test queued for that tick.
type busFeeder struct {
	bus   *DataBus
	flood []hazard.HazardReading
	scout []hazard.ScoutReport
}

func (f *busFeeder) Name() string { return "bus-feeder" }

func (f *busFeeder) Step(ctx context.Context) error {
	if len(f.flood) > 0 {
		f.bus.AddFloodData(f.flood)
	}
	if len(f.scout) > 0 {
		f.bus.AddScoutData(f.scout)
	}
	f.flood, f.scout = nil, nil
	return nil
}

func TestStartBindsModeAndTimeStep(t *testing.T) {
	orch, _, _ := newTestOrchestrator(t, Hooks{})

	require.NoError(t, orch.Start("heavy"))
	status := orch.GetStatus()
	assert.True(t, status.Running)
	assert.Equal(t, raster.RR03, status.ReturnPeriod)
	assert.Equal(t, 1, status.TimeStep)

	require.Error(t, orch.Start("apocalyptic"))
}

func TestRunTickAdvancesAndWraps(t *testing.T) {
	orch, _, _ := newTestOrchestrator(t, Hooks{})
	require.NoError(t, orch.Start("light"))

	ctx := context.Background()
	for i := 0; i < maxTimeStep; i++ {
		result, err := orch.RunTick(ctx, nil)
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, i+1, result.TimeStep)
	}

	// After 18 ticks the time step has wrapped back to 1.
	status := orch.GetStatus()
	assert.Equal(t, 1, status.TimeStep)
	assert.Equal(t, int64(maxTimeStep), status.TickCount)
}

func TestRouteRequestServedInRoutingPhase(t *testing.T) {
	orch, _, _ := newTestOrchestrator(t, Hooks{})
	require.NoError(t, orch.Start("light"))

	req := NewRouteRequest(
		planner.Coord{Lat: 0, Lon: 0},
		planner.Coord{Lat: 0.01, Lon: 0.01},
		planner.Preferences{Profile: "balanced"},
		false,
	)
	orch.Bus().EnqueueRoute(req)

	result, err := orch.RunTick(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.RoutesServed)

	select {
	case res := <-req.Result:
		require.NoError(t, res.Err)
		assert.InDelta(t, 2000.0, res.Route.TotalDistanceM, 1e-6)
	default:
		t.Fatal("route result not delivered")
	}
}

func TestFusionConsumesBusInputs(t *testing.T) {
	var riskUpdate *reporting.RiskUpdateData
	orch, g, _ := newTestOrchestrator(t, Hooks{
		OnRiskUpdate: func(data reporting.RiskUpdateData) {
			riskUpdate = &data
		},
	})
	require.NoError(t, orch.Start("medium"))

	feeder := &busFeeder{bus: orch.Bus()}
	orch.SetHazardAgent(feeder)
	feeder.scout = []hazard.ScoutReport{{
		ReportID:       "r1",
		Timestamp:      time.Now(),
		Severity:       1.0,
		Confidence:     1.0,
		ReportKind:     hazard.ReportFlood,
		HasCoordinates: true,
		Coordinates:    hazard.Coordinates{Lat: 0, Lon: 0.005},
	}}

	result, err := orch.RunTick(context.Background(), nil)
	require.NoError(t, err)
	assert.Greater(t, result.Summary.EdgesUpdated, 0)

	require.NotNil(t, riskUpdate)
	assert.Equal(t, result.Summary.EdgesUpdated, riskUpdate.EdgesUpdated)

	// The nearest edge picked up risk from the report.
	edge, _ := g.Edge(graph.EdgeKey{U: 1, V: 2, Key: 0})
	assert.Greater(t, edge.RiskScore, 0.0)
}

func TestCriticalAlertFiresOncePerLocation(t *testing.T) {
	var alerts []string
	orch, _, _ := newTestOrchestrator(t, Hooks{
		OnCriticalAlert: func(r hazard.HazardReading) {
			alerts = append(alerts, r.LocationID)
		},
	})
	require.NoError(t, orch.Start("medium"))

	critical := hazard.HazardReading{
		LocationID:    "station-1",
		Timestamp:     time.Now(),
		HasRiverLevel: true,
		RiverLevelM:   6.0,
		Thresholds:    hazard.RiverLevelThresholds{AlertM: 3, AlarmM: 4, CriticalM: 5},
	}

	feeder := &busFeeder{bus: orch.Bus()}
	orch.SetHazardAgent(feeder)

	feeder.flood = []hazard.HazardReading{critical}
	_, err := orch.RunTick(context.Background(), nil)
	require.NoError(t, err)

	// Same still-critical location on the next tick: no duplicate alert.
	critical.Timestamp = time.Now()
	feeder.flood = []hazard.HazardReading{critical}
	_, err = orch.RunTick(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"station-1"}, alerts)
}

func TestResetClearsStateAndAudits(t *testing.T) {
	orch, g, _ := newTestOrchestrator(t, Hooks{})
	require.NoError(t, orch.Start("medium"))

	feeder := &busFeeder{bus: orch.Bus()}
	orch.SetHazardAgent(feeder)
	feeder.scout = []hazard.ScoutReport{{
		ReportID:       "r1",
		Timestamp:      time.Now(),
		Severity:       1.0,
		Confidence:     1.0,
		ReportKind:     hazard.ReportFlood,
		HasCoordinates: true,
		Coordinates:    hazard.Coordinates{Lat: 0, Lon: 0.005},
	}}
	_, err := orch.RunTick(context.Background(), nil)
	require.NoError(t, err)

	require.NoError(t, orch.Reset("test"))

	for _, e := range g.AllEdges() {
		assert.Equal(t, 0.0, e.RiskScore)
	}
	summary := orch.ResetLog().GetSummary()
	assert.Equal(t, 3, summary.TotalActions)
	assert.Equal(t, 3, summary.Succeeded)
}

func TestOverrideTimeStep(t *testing.T) {
	orch, _, _ := newTestOrchestrator(t, Hooks{})
	require.NoError(t, orch.Start("light"))

	override := 10
	result, err := orch.RunTick(context.Background(), &override)
	require.NoError(t, err)
	assert.Equal(t, 10, result.TimeStep)

	bad := 99
	_, err = orch.RunTick(context.Background(), &bad)
	require.Error(t, err)
}

func TestSetScenarioValidates(t *testing.T) {
	orch, _, _ := newTestOrchestrator(t, Hooks{})

	require.NoError(t, orch.SetScenario(raster.RR04, 7))
	status := orch.GetStatus()
	assert.Equal(t, raster.RR04, status.ReturnPeriod)
	assert.Equal(t, 7, status.TimeStep)

	require.Error(t, orch.SetScenario(raster.RR01, 0))
	require.Error(t, orch.SetScenario("rr09", 5))
}
