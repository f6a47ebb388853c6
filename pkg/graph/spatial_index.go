package graph

import "math"

// defaultGridDeg is the bucketing cell size: 0.01° ≈ 1.1 km.
const defaultGridDeg = 0.01

// earthRadiusM is the mean Earth radius used by the Haversine formula
// throughout this package and pkg/planner.
const earthRadiusM = 6371000.0

// cellKey identifies one grid cell: (floor(lon/G), floor(lat/G)).
type cellKey struct {
	x int64
	y int64
}

// spatialIndex buckets edges by the grid cell their midpoint falls in,
// rebuilt only on graph load and kept in lockstep with store
// mutations since edges never change endpoints after load.
type spatialIndex struct {
	gridDeg float64
	cells   map[cellKey][]EdgeKey
}

func newSpatialIndex(gridDeg float64) *spatialIndex {
	return &spatialIndex{
		gridDeg: gridDeg,
		cells:   make(map[cellKey][]EdgeKey),
	}
}

func (s *spatialIndex) cellFor(lat, lon float64) cellKey {
	return cellKey{
		x: int64(math.Floor(lon / s.gridDeg)),
		y: int64(math.Floor(lat / s.gridDeg)),
	}
}

func (s *spatialIndex) insert(k EdgeKey, midLat, midLon float64) {
	c := s.cellFor(midLat, midLon)
	s.cells[c] = append(s.cells[c], k)
}

// query returns every EdgeKey whose midpoint lies within radiusM meters of
// (lat, lon). nodes and edges are the store's live maps; the caller must
// hold at least an RLock.
func (s *spatialIndex) query(lat, lon, radiusM float64, edges map[EdgeKey]*Edge, nodes map[int64]Node) []EdgeKey {
	dLat := radiusM / 111000.0
	cosLat := math.Cos(lat * math.Pi / 180)
	if cosLat < 1e-9 {
		cosLat = 1e-9
	}
	dLon := radiusM / (111000.0 * cosLat)

	spanCellsX := int64(math.Ceil(dLon / s.gridDeg))
	spanCellsY := int64(math.Ceil(dLat / s.gridDeg))

	center := s.cellFor(lat, lon)

	var out []EdgeKey
	for dx := -spanCellsX; dx <= spanCellsX; dx++ {
		for dy := -spanCellsY; dy <= spanCellsY; dy++ {
			c := cellKey{x: center.x + dx, y: center.y + dy}
			for _, k := range s.cells[c] {
				e, ok := edges[k]
				if !ok {
					continue
				}
				u, uok := nodes[e.U]
				v, vok := nodes[e.V]
				if !uok || !vok {
					continue
				}
				midLat, midLon := midpoint(u, v)
				if HaversineMeters(lat, lon, midLat, midLon) <= radiusM {
					out = append(out, k)
				}
			}
		}
	}
	return out
}

// HaversineMeters is the great-circle distance between two lat/lon points,
// shared with pkg/planner's A* heuristic.
func HaversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	phi1, phi2 := lat1*rad, lat2*rad
	dPhi := (lat2 - lat1) * rad
	dLambda := (lon2 - lon1) * rad

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusM * c
}
