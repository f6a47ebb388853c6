package planner

import (
	"fmt"

	"github.com/riverwatch/evacroute/pkg/graph"
)

// urbanSpeedMPerMin is the assumed urban average used for the time
// estimate: 12 m/s.
const urbanSpeedMPerMin = 720.0

// highRiskThreshold marks a segment as high-risk for counting and warnings.
const highRiskThreshold = 0.5

// Route is a computed path with its metrics, ready for transport marshaling.
type Route struct {
	Nodes []graph.Node
	Edges []graph.Edge

	TotalDistanceM   float64
	EstimatedTimeMin float64
	AvgRisk          float64
	MaxRisk          float64
	HighRiskSegments int
	Warnings         []string
	BlockedEdges     int

	Alternatives []*Route
}

// Coords returns the route's node sequence as [lat, lon] pairs.
func (r *Route) Coords() [][2]float64 {
	out := make([][2]float64, len(r.Nodes))
	for i, n := range r.Nodes {
		out[i] = [2]float64{n.Lat, n.Lon}
	}
	return out
}

// edgeKeySet returns the set of edge identities on the route, used for
// alternative-path deduplication.
func (r *Route) edgeKeySet() map[graph.EdgeKey]bool {
	set := make(map[graph.EdgeKey]bool, len(r.Edges))
	for _, e := range r.Edges {
		set[e.ID()] = true
	}
	return set
}

// buildRoute derives metrics and warnings from a search result: total
// length, the length-weighted average risk, the max risk, and one warning
// line per high-risk segment.
func buildRoute(adj *adjacency, res searchResult) *Route {
	route := &Route{
		BlockedEdges: res.blockedSeen,
	}

	for _, id := range res.nodePath {
		route.Nodes = append(route.Nodes, adj.nodes[id])
	}
	route.Edges = res.edgePath

	weightedRisk := 0.0
	for i, e := range route.Edges {
		route.TotalDistanceM += e.LengthM
		weightedRisk += e.RiskScore * e.LengthM
		if e.RiskScore > route.MaxRisk {
			route.MaxRisk = e.RiskScore
		}
		if e.RiskScore >= highRiskThreshold {
			route.HighRiskSegments++
			name := e.Name
			if name == "" {
				name = fmt.Sprintf("segment-%d", i+1)
			}
			route.Warnings = append(route.Warnings,
				fmt.Sprintf("%s at %.0f%% flood risk", name, e.RiskScore*100))
		}
	}

	if route.TotalDistanceM > 0 {
		route.AvgRisk = weightedRisk / route.TotalDistanceM
		route.EstimatedTimeMin = route.TotalDistanceM / urbanSpeedMPerMin
	}

	return route
}
