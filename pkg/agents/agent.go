// Package agents implements the tick participants: the flood and scout
// collectors, the hazard agent, the planner agent, and the evacuation
// manager. Every agent exposes a constructor taking the mailbox router and
// a Step method the orchestrator sequences; no agent calls another agent's
// methods directly.
package agents

import (
	"github.com/riverwatch/evacroute/pkg/planner"
)

// Registered mailbox names.
const (
	NameFloodCollector    = "flood_collector"
	NameScoutCollector    = "scout_collector"
	NameHazardAgent       = "hazard_agent"
	NamePlannerAgent      = "planner_agent"
	NameEvacuationManager = "evacuation_manager"
)

// Content kinds dispatched on inside INFORM/REQUEST/QUERY payloads.
const (
	KindFloodBatch     = "flood_data_batch"
	KindScoutBatch     = "scout_report_batch"
	KindCollectNow     = "collect_now"
	KindCalculateRoute = "calculate_route"
	KindFindEvacRoute  = "find_evacuation_route"
	KindDistressCall   = "distress_call"
	KindRiskAtEdge     = "risk_at_edge"
	KindRouteResult    = "route_result"
	KindEdgeRisk       = "edge_risk"
	KindError          = "error"
)

// RoutePayload is the content of a calculate_route REQUEST.
type RoutePayload struct {
	Start planner.Coord
	End   planner.Coord
	Prefs planner.Preferences
}

// DistressPayload is the content of a distress_call REQUEST: only the
// caller's position and an optional profile; the evacuation manager picks
// the target shelter.
type DistressPayload struct {
	Start   planner.Coord
	Profile string
}

// EdgeRiskQuery is the content of a risk_at_edge QUERY.
type EdgeRiskQuery struct {
	U   int64
	V   int64
	Key int
}
