package evac

import (
	"fmt"
	"sort"

	"github.com/riverwatch/evacroute/pkg/graph"
	"github.com/riverwatch/evacroute/pkg/planner"
)

// DefaultCandidates is the number of nearest shelters considered per
// distress call.
const DefaultCandidates = 5

// router is the subset of *planner.Planner the selector depends on.
type router interface {
	Route(start, end planner.Coord, prefs planner.Preferences) (*planner.Route, error)
}

// Selector picks an evacuation target for a distress call: among the
// N nearest shelters by great-circle distance, the one whose route has the
// lowest average risk; ties break toward shorter distance, then higher
// capacity.
type Selector struct {
	planner    router
	shelters   []Shelter
	candidates int
}

// Config configures a Selector.
type Config struct {
	Planner    router
	Shelters   []Shelter
	Candidates int
}

// NewSelector returns a Selector over the given roster.
func NewSelector(cfg Config) *Selector {
	candidates := cfg.Candidates
	if candidates < 1 {
		candidates = DefaultCandidates
	}
	return &Selector{
		planner:    cfg.Planner,
		shelters:   cfg.Shelters,
		candidates: candidates,
	}
}

// Shelters returns the loaded roster.
func (s *Selector) Shelters() []Shelter {
	return s.shelters
}

// Result pairs the chosen shelter with its computed route.
type Result struct {
	Shelter Shelter
	Route   *planner.Route
}

// Select routes start to the best shelter under prefs. Shelters that are
// unreachable under the active profile are skipped; if none of the
// candidates is reachable, the last routing error is returned.
func (s *Selector) Select(start planner.Coord, prefs planner.Preferences) (*Result, error) {
	if len(s.shelters) == 0 {
		return nil, fmt.Errorf("evac: no shelters loaded")
	}

	nearest := make([]Shelter, len(s.shelters))
	copy(nearest, s.shelters)
	sort.Slice(nearest, func(i, j int) bool {
		di := graph.HaversineMeters(start.Lat, start.Lon, nearest[i].Lat, nearest[i].Lon)
		dj := graph.HaversineMeters(start.Lat, start.Lon, nearest[j].Lat, nearest[j].Lon)
		return di < dj
	})
	if len(nearest) > s.candidates {
		nearest = nearest[:s.candidates]
	}

	var best *Result
	var lastErr error
	for _, shelter := range nearest {
		route, err := s.planner.Route(start, planner.Coord{Lat: shelter.Lat, Lon: shelter.Lon}, prefs)
		if err != nil {
			lastErr = err
			continue
		}
		candidate := &Result{Shelter: shelter, Route: route}
		if best == nil || betterThan(candidate, best) {
			best = candidate
		}
	}

	if best == nil {
		if lastErr != nil {
			return nil, fmt.Errorf("evac: no reachable shelter: %w", lastErr)
		}
		return nil, fmt.Errorf("evac: no reachable shelter")
	}
	return best, nil
}

// betterThan orders candidates: lower avg risk first, then shorter
// distance, then higher capacity.
func betterThan(a, b *Result) bool {
	if a.Route.AvgRisk != b.Route.AvgRisk {
		return a.Route.AvgRisk < b.Route.AvgRisk
	}
	if a.Route.TotalDistanceM != b.Route.TotalDistanceM {
		return a.Route.TotalDistanceM < b.Route.TotalDistanceM
	}
	return a.Shelter.Capacity > b.Shelter.Capacity
}
