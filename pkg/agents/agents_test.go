package agents

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riverwatch/evacroute/pkg/evac"
	"github.com/riverwatch/evacroute/pkg/graph"
	"github.com/riverwatch/evacroute/pkg/hazard"
	"github.com/riverwatch/evacroute/pkg/messaging"
	"github.com/riverwatch/evacroute/pkg/planner"
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

type fakeBus struct {
	flood []hazard.HazardReading
	scout []hazard.ScoutReport
}

func (b *fakeBus) AddFloodData(readings []hazard.HazardReading) {
	b.flood = append(b.flood, readings...)
}
func (b *fakeBus) AddScoutData(reports []hazard.ScoutReport) { b.scout = append(b.scout, reports...) }

func TestHazardAgentDispatchesByInfoKind(t *testing.T) {
	r := messaging.NewRouter(messaging.RouterConfig{})
	bus := &fakeBus{}
	a := NewHazardAgent(r, bus, testGraph(t), nil)

	readings := []hazard.HazardReading{{LocationID: "s1", Timestamp: time.Now()}}
	reports := []hazard.ScoutReport{{ReportID: "r1", Timestamp: time.Now(), Severity: 0.5, Confidence: 1}}
	require.NoError(t, r.Send(messaging.NewInform("flood_collector", NameHazardAgent, KindFloodBatch, readings)))
	require.NoError(t, r.Send(messaging.NewInform("scout_collector", NameHazardAgent, KindScoutBatch, reports)))

	require.NoError(t, a.Step(context.Background()))
	assert.Len(t, bus.flood, 1)
	assert.Len(t, bus.scout, 1)
}

func TestHazardAgentAnswersRiskQuery(t *testing.T) {
	r := messaging.NewRouter(messaging.RouterConfig{})
	g := testGraph(t)
	require.NoError(t, g.UpdateEdgeRisk(graph.EdgeKey{U: 1, V: 2, Key: 0}, 0.42, time.Now()))
	a := NewHazardAgent(r, &fakeBus{}, g, nil)

	asker := r.Register("asker")
	query := messaging.Message{
		Performative: messaging.Query,
		Sender:       "asker",
		Receiver:     NameHazardAgent,
		Content:      messaging.Content{Kind: KindRiskAtEdge, Payload: EdgeRiskQuery{U: 1, V: 2, Key: 0}},
		ReplyWith:    "q-1",
	}
	require.NoError(t, r.Send(query))
	require.NoError(t, a.Step(context.Background()))

	reply, err := asker.ReceiveReply("q-1", time.Second)
	require.NoError(t, err)
	assert.Equal(t, messaging.Inform, reply.Performative)
	assert.Equal(t, 0.42, reply.Content.Payload)
}

func TestScoutCollectorBatchesToHazardAgent(t *testing.T) {
	r := messaging.NewRouter(messaging.RouterConfig{})
	c := NewScoutCollector(r, nil)
	hazardBox := r.Register(NameHazardAgent)

	require.NoError(t, c.Enqueue([]hazard.ScoutReport{
		{ReportID: "a", Timestamp: time.Now(), Severity: 0.3, Confidence: 0.8},
		{ReportID: "b", Timestamp: time.Now(), Severity: 0.6, Confidence: 0.9},
	}))
	require.NoError(t, c.Step(context.Background()))

	msg, ok := hazardBox.Poll()
	require.True(t, ok)
	assert.Equal(t, KindScoutBatch, msg.Content.Kind)
	assert.Len(t, msg.Content.Payload.([]hazard.ScoutReport), 2)

	// Nothing staged → no second INFORM.
	require.NoError(t, c.Step(context.Background()))
	_, ok = hazardBox.Poll()
	assert.False(t, ok)
}

func TestFloodCollectorDeliverEmitsSingleInform(t *testing.T) {
	r := messaging.NewRouter(messaging.RouterConfig{})
	c := NewFloodCollector(r, nil, nil)
	hazardBox := r.Register(NameHazardAgent)

	readings := []hazard.HazardReading{
		{LocationID: "s1", Timestamp: time.Now()},
		{LocationID: "s2", Timestamp: time.Now()},
	}
	require.NoError(t, c.Deliver(context.Background(), readings))

	msg, ok := hazardBox.Poll()
	require.True(t, ok)
	assert.Equal(t, KindFloodBatch, msg.Content.Kind)
	assert.Len(t, msg.Content.Payload.([]hazard.HazardReading), 2)
}

func TestPlannerAgentServesRouteRequest(t *testing.T) {
	r := messaging.NewRouter(messaging.RouterConfig{})
	g := testGraph(t)
	p := planner.New(planner.Config{Graph: g})
	a := NewPlannerAgent(r, p, nil, nil)

	caller := r.Register("caller")
	req := messaging.NewRequest("caller", NamePlannerAgent, KindCalculateRoute, RoutePayload{
		Start: planner.Coord{Lat: 0, Lon: 0},
		End:   planner.Coord{Lat: 0.01, Lon: 0.01},
		Prefs: planner.Preferences{Profile: "balanced"},
	})
	require.NoError(t, r.Send(req))
	require.NoError(t, a.Step(context.Background()))

	reply, err := caller.ReceiveReply(req.ReplyWith, time.Second)
	require.NoError(t, err)
	require.Equal(t, messaging.Inform, reply.Performative)
	answer := reply.Content.Payload.(RouteAnswer)
	assert.InDelta(t, 2000.0, answer.Route.TotalDistanceM, 1e-6)
}

func TestPlannerAgentFailsOnNoPath(t *testing.T) {
	r := messaging.NewRouter(messaging.RouterConfig{})
	g := testGraph(t)
	require.NoError(t, g.UpdateEdgeRisk(graph.EdgeKey{U: 1, V: 2, Key: 0}, 0.95, time.Now()))
	a := NewPlannerAgent(r, planner.New(planner.Config{Graph: g}), nil, nil)

	caller := r.Register("caller")
	req := messaging.NewRequest("caller", NamePlannerAgent, KindCalculateRoute, RoutePayload{
		Start: planner.Coord{Lat: 0, Lon: 0},
		End:   planner.Coord{Lat: 0.01, Lon: 0.01},
		Prefs: planner.Preferences{Profile: "balanced"},
	})
	require.NoError(t, r.Send(req))
	require.NoError(t, a.Step(context.Background()))

	reply, err := caller.ReceiveReply(req.ReplyWith, time.Second)
	require.NoError(t, err)
	assert.Equal(t, messaging.Failure, reply.Performative)
}

func TestEvacuationManagerRelaysThroughPlanner(t *testing.T) {
	r := messaging.NewRouter(messaging.RouterConfig{})
	g := testGraph(t)
	p := planner.New(planner.Config{Graph: g})
	selector := evac.NewSelector(evac.Config{
		Planner:  p,
		Shelters: []evac.Shelter{{Name: "gym", Lat: 0.01, Lon: 0.01, Capacity: 200}},
	})

	mgr := NewEvacuationManager(r, time.Second, nil)
	plannerAgent := NewPlannerAgent(r, p, selector, nil)

	caller := r.Register("caller")
	distress := messaging.NewRequest("caller", NameEvacuationManager, KindDistressCall,
		DistressPayload{Start: planner.Coord{Lat: 0, Lon: 0}, Profile: "balanced"})
	require.NoError(t, r.Send(distress))

	ctx := context.Background()
	// Step 1: manager forwards; step 2: planner serves; step 3: manager relays.
	require.NoError(t, mgr.Step(ctx))
	require.NoError(t, plannerAgent.Step(ctx))
	require.NoError(t, mgr.Step(ctx))

	reply, err := caller.ReceiveReply(distress.ReplyWith, time.Second)
	require.NoError(t, err)
	require.Equal(t, messaging.Inform, reply.Performative)
	answer := reply.Content.Payload.(RouteAnswer)
	require.NotNil(t, answer.Shelter)
	assert.Equal(t, "gym", answer.Shelter.Name)
}

func TestEvacuationManagerTimesOutWithoutPlanner(t *testing.T) {
	r := messaging.NewRouter(messaging.RouterConfig{})
	mgr := NewEvacuationManager(r, 10*time.Millisecond, nil)
	r.Register(NamePlannerAgent) // mailbox exists but nobody serves it

	caller := r.Register("caller")
	distress := messaging.NewRequest("caller", NameEvacuationManager, KindDistressCall,
		DistressPayload{Start: planner.Coord{Lat: 0, Lon: 0}})
	require.NoError(t, r.Send(distress))

	ctx := context.Background()
	require.NoError(t, mgr.Step(ctx))
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, mgr.Step(ctx))

	reply, err := caller.ReceiveReply(distress.ReplyWith, time.Second)
	require.NoError(t, err)
	assert.Equal(t, messaging.Failure, reply.Performative)
}
