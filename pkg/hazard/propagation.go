package hazard

import (
	"github.com/riverwatch/evacroute/pkg/graph"
)

// DefaultPropagationRadiusM is the spatial propagation radius for
// geocoded scout reports.
const DefaultPropagationRadiusM = 800.0

// edgeLookup is the subset of *graph.Graph this package depends on for
// spatial propagation, so tests can substitute a fake without a full
// loaded network.
type edgeLookup interface {
	FindEdgesWithinRadius(lat, lon, radiusM float64) ([]graph.EdgeKey, error)
	Edge(k graph.EdgeKey) (graph.Edge, bool)
	Node(id int64) (graph.Node, bool)
}

// propagateReport spreads a decayed, geocoded scout report's severity
// across nearby edges. The contribution formula is
// severity * confidence * (1 - distance/radius); it is accumulated,
// unweighted, into pending. The caller applies the crowdsourced weight.
func propagateReport(g edgeLookup, report ScoutReport, decayedSeverity float64, radiusM float64, pending map[graph.EdgeKey]float64) {
	if !report.HasCoordinates {
		return
	}

	keys, err := g.FindEdgesWithinRadius(report.Coordinates.Lat, report.Coordinates.Lon, radiusM)
	if err != nil {
		return
	}

	for _, k := range keys {
		e, ok := g.Edge(k)
		if !ok {
			continue
		}
		u, uok := g.Node(e.U)
		v, vok := g.Node(e.V)
		if !uok || !vok {
			continue
		}
		midLat, midLon := (u.Lat+v.Lat)/2, (u.Lon+v.Lon)/2
		dist := graph.HaversineMeters(report.Coordinates.Lat, report.Coordinates.Lon, midLat, midLon)
		if dist > radiusM {
			continue
		}
		contribution := decayedSeverity * report.Confidence * (1 - dist/radiusM)
		if contribution <= 0 {
			continue
		}
		pending[k] += contribution
	}
}
