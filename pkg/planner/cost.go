package planner

import (
	"math"

	"github.com/riverwatch/evacroute/pkg/graph"
)

// Profile is one cost model: distance weight, risk penalty in virtual
// meters per unit risk per meter of length, and the impassability
// threshold above which an edge costs infinity.
type Profile struct {
	Name             string
	WDist            float64
	WRisk            float64
	MaxRiskThreshold float64
}

// The three named profiles.
var (
	ProfileFastest  = Profile{Name: "fastest", WDist: 1.0, WRisk: 0.0, MaxRiskThreshold: 1.0}
	ProfileBalanced = Profile{Name: "balanced", WDist: 1.0, WRisk: 2000.0, MaxRiskThreshold: 0.9}
	ProfileSafest   = Profile{Name: "safest", WDist: 1.0, WRisk: 100000.0, MaxRiskThreshold: 0.7}
)

// Preferences are the per-request planner options. The profile name picks a
// base Profile; any of the pointer fields override a single knob.
type Preferences struct {
	Profile          string
	WDist            *float64
	WRisk            *float64
	MaxRiskThreshold *float64
	Alternatives     int
}

// ResolveProfile merges preferences over the named base profile, defaulting
// to balanced.
func ResolveProfile(prefs Preferences) Profile {
	var p Profile
	switch prefs.Profile {
	case "fastest":
		p = ProfileFastest
	case "safest":
		p = ProfileSafest
	default:
		p = ProfileBalanced
	}

	if prefs.WDist != nil {
		p.WDist = *prefs.WDist
	}
	if prefs.WRisk != nil {
		p.WRisk = *prefs.WRisk
	}
	if prefs.MaxRiskThreshold != nil {
		p.MaxRiskThreshold = *prefs.MaxRiskThreshold
	}
	return p
}

// edgeCost returns the virtual-meters cost of traversing e under p.
// passable is false when the edge's risk is at or above the impassability
// threshold (cost is then +Inf).
func edgeCost(e graph.Edge, p Profile) (cost float64, passable bool) {
	if e.RiskScore >= p.MaxRiskThreshold {
		return math.Inf(1), false
	}
	return e.LengthM*p.WDist + e.LengthM*e.RiskScore*p.WRisk, true
}
