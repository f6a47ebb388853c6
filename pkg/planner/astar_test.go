package planner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riverwatch/evacroute/pkg/graph"
)

// gridGraph builds the 4-node unit grid used across the routing scenarios:
// (0,0)-(0,1)-(1,1)-(1,0) with 1000 m edges in both directions. Node ids:
// 1=(0,0) 2=(0,0.01) 3=(0.01,0.01) 4=(0.01,0).
func gridGraph(t *testing.T) *graph.Graph {
	t.Helper()
	src := []byte(`
nodes:
  - {id: 1, lat: 0.0, lon: 0.0}
  - {id: 2, lat: 0.0, lon: 0.01}
  - {id: 3, lat: 0.01, lon: 0.01}
  - {id: 4, lat: 0.01, lon: 0.0}
edges:
  - {u: 1, v: 2, key: 0, length_m: 1000, road_class: residential, name: east-low}
  - {u: 2, v: 1, key: 0, length_m: 1000, road_class: residential}
  - {u: 2, v: 3, key: 0, length_m: 1000, road_class: residential, name: north-east}
  - {u: 3, v: 2, key: 0, length_m: 1000, road_class: residential}
  - {u: 1, v: 4, key: 0, length_m: 1000, road_class: residential, name: north-west}
  - {u: 4, v: 1, key: 0, length_m: 1000, road_class: residential}
  - {u: 4, v: 3, key: 0, length_m: 1000, road_class: residential, name: east-high}
  - {u: 3, v: 4, key: 0, length_m: 1000, road_class: residential}
`)
	g, err := graph.NewLoader().Load(src)
	require.NoError(t, err)
	return g
}

func TestRouteNoHazardsShortestPath(t *testing.T) {
	g := gridGraph(t)
	p := New(Config{Graph: g})

	route, err := p.Route(Coord{0, 0}, Coord{0.01, 0.01}, Preferences{Profile: "balanced"})
	require.NoError(t, err)

	assert.Len(t, route.Nodes, 3)
	assert.InDelta(t, 2000.0, route.TotalDistanceM, 1e-6)
	assert.Equal(t, 0.0, route.AvgRisk)
	assert.Equal(t, 0.0, route.MaxRisk)
	assert.Empty(t, route.Warnings)
}

func TestRouteAvoidsImpassableEdge(t *testing.T) {
	g := gridGraph(t)
	ts := time.Now()
	// Block the (2)->(3) leg; safest profile treats risk >= 0.7 as a wall.
	require.NoError(t, g.UpdateEdgeRisk(graph.EdgeKey{U: 2, V: 3, Key: 0}, 0.95, ts))

	p := New(Config{Graph: g})
	route, err := p.Route(Coord{0, 0}, Coord{0.01, 0.01}, Preferences{Profile: "safest"})
	require.NoError(t, err)

	// Must detour via node 4.
	ids := make([]int64, len(route.Nodes))
	for i, n := range route.Nodes {
		ids[i] = n.ID
	}
	assert.Equal(t, []int64{1, 4, 3}, ids)
	assert.InDelta(t, 2000.0, route.TotalDistanceM, 1e-6)
	assert.Equal(t, 0.0, route.MaxRisk)
	assert.GreaterOrEqual(t, route.BlockedEdges, 1)
}

func TestVirtualMetersPreferLongerSaferPath(t *testing.T) {
	// Two parallel routes between the endpoints: A direct 1000 m at risk
	// 0.4, B a 1400 m detour at risk 0. Under balanced (w_r=2000) the
	// detour wins: cost A = 1000 + 1000*0.4*2000 = 801000 vs B = 1400.
	src := []byte(`
nodes:
  - {id: 1, lat: 0.0, lon: 0.0}
  - {id: 2, lat: 0.0, lon: 0.009}
  - {id: 3, lat: 0.004, lon: 0.0045}
edges:
  - {u: 1, v: 2, key: 0, length_m: 1000, road_class: primary, name: direct}
  - {u: 1, v: 3, key: 0, length_m: 700, road_class: residential}
  - {u: 3, v: 2, key: 0, length_m: 700, road_class: residential}
`)
	g, err := graph.NewLoader().Load(src)
	require.NoError(t, err)
	require.NoError(t, g.UpdateEdgeRisk(graph.EdgeKey{U: 1, V: 2, Key: 0}, 0.4, time.Now()))

	p := New(Config{Graph: g})
	route, err := p.Route(Coord{0, 0}, Coord{0, 0.009}, Preferences{Profile: "balanced"})
	require.NoError(t, err)

	assert.InDelta(t, 1400.0, route.TotalDistanceM, 1e-6)
	assert.Equal(t, 0.0, route.MaxRisk)
}

func TestFastestIgnoresRisk(t *testing.T) {
	g := gridGraph(t)
	require.NoError(t, g.UpdateEdgeRisk(graph.EdgeKey{U: 2, V: 3, Key: 0}, 0.8, time.Now()))

	p := New(Config{Graph: g})
	route, err := p.Route(Coord{0, 0}, Coord{0.01, 0.01}, Preferences{Profile: "fastest"})
	require.NoError(t, err)

	// Both 2000 m paths tie on distance, so the risky one is permitted;
	// the point is that risk never inflates fastest-profile cost.
	assert.InDelta(t, 2000.0, route.TotalDistanceM, 1e-6)
}

func TestRouteMetricsHighRiskWarnings(t *testing.T) {
	g := gridGraph(t)
	ts := time.Now()
	require.NoError(t, g.UpdateEdgeRisk(graph.EdgeKey{U: 1, V: 2, Key: 0}, 0.6, ts))
	require.NoError(t, g.UpdateEdgeRisk(graph.EdgeKey{U: 2, V: 3, Key: 0}, 0.2, ts))
	// Make the detour expensive so balanced keeps the direct path.
	require.NoError(t, g.UpdateEdgeRisk(graph.EdgeKey{U: 1, V: 4, Key: 0}, 0.85, ts))
	require.NoError(t, g.UpdateEdgeRisk(graph.EdgeKey{U: 4, V: 3, Key: 0}, 0.85, ts))

	p := New(Config{Graph: g})
	route, err := p.Route(Coord{0, 0}, Coord{0.01, 0.01}, Preferences{Profile: "balanced"})
	require.NoError(t, err)

	// Length-weighted average over two equal-length edges.
	assert.InDelta(t, 0.4, route.AvgRisk, 1e-9)
	assert.InDelta(t, 0.6, route.MaxRisk, 1e-9)
	assert.Equal(t, 1, route.HighRiskSegments)
	require.Len(t, route.Warnings, 1)
	assert.Contains(t, route.Warnings[0], "east-low")
	assert.Contains(t, route.Warnings[0], "60%")
}

func TestRouteNoPath(t *testing.T) {
	src := []byte(`
nodes:
  - {id: 1, lat: 0.0, lon: 0.0}
  - {id: 2, lat: 0.0, lon: 0.01}
edges:
  - {u: 1, v: 2, key: 0, length_m: 1000, road_class: residential}
`)
	g, err := graph.NewLoader().Load(src)
	require.NoError(t, err)
	require.NoError(t, g.UpdateEdgeRisk(graph.EdgeKey{U: 1, V: 2, Key: 0}, 0.95, time.Now()))

	p := New(Config{Graph: g})
	_, err = p.Route(Coord{0, 0}, Coord{0, 0.01}, Preferences{Profile: "balanced"})
	require.ErrorIs(t, err, ErrNoPath)
}

func TestRouteNoNearbyNode(t *testing.T) {
	g := gridGraph(t)
	p := New(Config{Graph: g})
	// 1 degree away is far beyond the 500 m snap radius.
	_, err := p.Route(Coord{1.0, 1.0}, Coord{0.01, 0.01}, Preferences{})
	require.ErrorIs(t, err, ErrNoNearbyNode)
}

func TestRouteGraphNotReady(t *testing.T) {
	p := New(Config{Graph: graph.New()})
	_, err := p.Route(Coord{0, 0}, Coord{0.01, 0.01}, Preferences{})
	require.ErrorIs(t, err, ErrGraphNotReady)
}

func TestPreferenceOverrides(t *testing.T) {
	g := gridGraph(t)
	require.NoError(t, g.UpdateEdgeRisk(graph.EdgeKey{U: 2, V: 3, Key: 0}, 0.95, time.Now()))

	// Balanced blocks at 0.9; raising the threshold re-opens the edge.
	threshold := 1.0
	p := New(Config{Graph: g})
	route, err := p.Route(Coord{0, 0}, Coord{0.01, 0.01},
		Preferences{Profile: "balanced", MaxRiskThreshold: &threshold})
	require.NoError(t, err)
	assert.InDelta(t, 2000.0, route.TotalDistanceM, 1e-6)
}

func TestAlternativesAreDistinct(t *testing.T) {
	g := gridGraph(t)
	p := New(Config{Graph: g})

	route, err := p.Route(Coord{0, 0}, Coord{0.01, 0.01},
		Preferences{Profile: "balanced", Alternatives: 2})
	require.NoError(t, err)

	require.NotEmpty(t, route.Alternatives)
	primary := route.edgeKeySet()
	for _, alt := range route.Alternatives {
		assert.Less(t, jaccard(primary, alt.edgeKeySet()), jaccardDedupThreshold)
	}
}

func TestResolveProfileDefaults(t *testing.T) {
	p := ResolveProfile(Preferences{})
	assert.Equal(t, "balanced", p.Name)
	assert.Equal(t, 2000.0, p.WRisk)
	assert.Equal(t, 0.9, p.MaxRiskThreshold)
}
