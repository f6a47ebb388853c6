package evac

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riverwatch/evacroute/pkg/planner"
)

func TestParseRosterSkipsHeaderAndBadRows(t *testing.T) {
	csv := `name,lat,lon,capacity,kind,address
Central School,0.01,0.01,500,school,1 Main St
Bad Row,not-a-lat,0.01,100,hall,
North Gym,0.02,0.0,200,gym,
`
	shelters, warnings, err := parseRoster(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, shelters, 2)
	assert.Equal(t, "Central School", shelters[0].Name)
	assert.Equal(t, 500, shelters[0].Capacity)
	assert.Len(t, warnings, 1)
}

func TestParseRosterEmptyFails(t *testing.T) {
	_, _, err := parseRoster(strings.NewReader("name,lat,lon,capacity\n"))
	require.Error(t, err)
}

// fakeRouter returns canned routes keyed by shelter coordinates.
type fakeRouter struct {
	routes map[[2]float64]*planner.Route
	errs   map[[2]float64]error
}

func (f *fakeRouter) Route(start, end planner.Coord, prefs planner.Preferences) (*planner.Route, error) {
	key := [2]float64{end.Lat, end.Lon}
	if err, ok := f.errs[key]; ok {
		return nil, err
	}
	if r, ok := f.routes[key]; ok {
		return r, nil
	}
	return nil, planner.ErrNoPath
}

func TestSelectPicksLowestAvgRisk(t *testing.T) {
	shelters := []Shelter{
		{Name: "near-risky", Lat: 0.01, Lon: 0.0, Capacity: 100},
		{Name: "far-safe", Lat: 0.02, Lon: 0.0, Capacity: 100},
	}
	f := &fakeRouter{routes: map[[2]float64]*planner.Route{
		{0.01, 0.0}: {AvgRisk: 0.4, TotalDistanceM: 1000},
		{0.02, 0.0}: {AvgRisk: 0.1, TotalDistanceM: 2200},
	}}

	s := NewSelector(Config{Planner: f, Shelters: shelters})
	res, err := s.Select(planner.Coord{Lat: 0, Lon: 0}, planner.Preferences{})
	require.NoError(t, err)
	assert.Equal(t, "far-safe", res.Shelter.Name)
}

func TestSelectTieBreaksOnDistanceThenCapacity(t *testing.T) {
	shelters := []Shelter{
		{Name: "a", Lat: 0.01, Lon: 0.0, Capacity: 100},
		{Name: "b", Lat: 0.02, Lon: 0.0, Capacity: 100},
		{Name: "c", Lat: 0.03, Lon: 0.0, Capacity: 900},
	}
	f := &fakeRouter{routes: map[[2]float64]*planner.Route{
		{0.01, 0.0}: {AvgRisk: 0.2, TotalDistanceM: 1500},
		{0.02, 0.0}: {AvgRisk: 0.2, TotalDistanceM: 1000},
		{0.03, 0.0}: {AvgRisk: 0.2, TotalDistanceM: 1000},
	}}

	s := NewSelector(Config{Planner: f, Shelters: shelters})
	res, err := s.Select(planner.Coord{Lat: 0, Lon: 0}, planner.Preferences{})
	require.NoError(t, err)
	// b and c tie on risk and distance; c wins on capacity.
	assert.Equal(t, "c", res.Shelter.Name)
}

func TestSelectSkipsUnreachableShelters(t *testing.T) {
	shelters := []Shelter{
		{Name: "blocked", Lat: 0.01, Lon: 0.0, Capacity: 100},
		{Name: "open", Lat: 0.02, Lon: 0.0, Capacity: 100},
	}
	f := &fakeRouter{
		routes: map[[2]float64]*planner.Route{
			{0.02, 0.0}: {AvgRisk: 0.3, TotalDistanceM: 2000},
		},
		errs: map[[2]float64]error{
			{0.01, 0.0}: planner.ErrNoPath,
		},
	}

	s := NewSelector(Config{Planner: f, Shelters: shelters})
	res, err := s.Select(planner.Coord{Lat: 0, Lon: 0}, planner.Preferences{})
	require.NoError(t, err)
	assert.Equal(t, "open", res.Shelter.Name)
}

func TestSelectAllUnreachable(t *testing.T) {
	shelters := []Shelter{{Name: "x", Lat: 0.01, Lon: 0.0, Capacity: 1}}
	f := &fakeRouter{}

	s := NewSelector(Config{Planner: f, Shelters: shelters})
	_, err := s.Select(planner.Coord{Lat: 0, Lon: 0}, planner.Preferences{})
	require.Error(t, err)
}

func TestSelectHonorsCandidateLimit(t *testing.T) {
	// Three shelters, candidates=2: only the two nearest are routed, so the
	// excellent-but-distant shelter never wins.
	shelters := []Shelter{
		{Name: "n1", Lat: 0.01, Lon: 0.0, Capacity: 10},
		{Name: "n2", Lat: 0.02, Lon: 0.0, Capacity: 10},
		{Name: "far", Lat: 0.5, Lon: 0.0, Capacity: 10},
	}
	f := &fakeRouter{routes: map[[2]float64]*planner.Route{
		{0.01, 0.0}: {AvgRisk: 0.5, TotalDistanceM: 1000},
		{0.02, 0.0}: {AvgRisk: 0.4, TotalDistanceM: 2000},
		{0.5, 0.0}:  {AvgRisk: 0.0, TotalDistanceM: 50000},
	}}

	s := NewSelector(Config{Planner: f, Shelters: shelters, Candidates: 2})
	res, err := s.Select(planner.Coord{Lat: 0, Lon: 0}, planner.Preferences{})
	require.NoError(t, err)
	assert.Equal(t, "n2", res.Shelter.Name)
}
