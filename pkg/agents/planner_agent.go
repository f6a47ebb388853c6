package agents

import (
	"context"

	"github.com/riverwatch/evacroute/pkg/evac"
	"github.com/riverwatch/evacroute/pkg/messaging"
	"github.com/riverwatch/evacroute/pkg/planner"
	"github.com/riverwatch/evacroute/pkg/reporting"
)

// RouteAnswer is the planner agent's INFORM payload for a served request.
type RouteAnswer struct {
	Route   *planner.Route
	Shelter *evac.Shelter
}

// PlannerAgent serves calculate_route and find_evacuation_route REQUESTs
// synchronously within the routing phase. Domain failures (NoPath,
// NoNearbyNode) go back as FAILURE replies without log noise.
type PlannerAgent struct {
	router   *messaging.Router
	box      *messaging.Mailbox
	plan     *planner.Planner
	selector *evac.Selector
	logger   *reporting.Logger
}

// NewPlannerAgent registers the agent's mailbox and returns it. selector
// may be nil when no shelter roster is loaded.
func NewPlannerAgent(router *messaging.Router, plan *planner.Planner, selector *evac.Selector, logger *reporting.Logger) *PlannerAgent {
	return &PlannerAgent{
		router:   router,
		box:      router.Register(NamePlannerAgent),
		plan:     plan,
		selector: selector,
		logger:   logger,
	}
}

// Name returns the agent's mailbox name.
func (a *PlannerAgent) Name() string { return NamePlannerAgent }

// Step drains and answers every queued routing REQUEST.
func (a *PlannerAgent) Step(ctx context.Context) error {
	for _, msg := range a.box.Drain() {
		if msg.Performative != messaging.Request {
			continue
		}

		switch msg.Content.Kind {
		case KindCalculateRoute:
			a.serveRoute(msg)
		case KindFindEvacRoute:
			a.serveEvacuation(msg)
		default:
			a.send(messaging.Reply(msg, messaging.Refuse, KindError, "unknown request "+msg.Content.Kind))
		}
	}
	return nil
}

func (a *PlannerAgent) serveRoute(msg messaging.Message) {
	payload, ok := msg.Content.Payload.(RoutePayload)
	if !ok {
		a.send(messaging.Reply(msg, messaging.Failure, KindError, "malformed route payload"))
		return
	}

	route, err := a.plan.Route(payload.Start, payload.End, payload.Prefs)
	if err != nil {
		a.send(messaging.Reply(msg, messaging.Failure, KindError, err.Error()))
		return
	}
	a.send(messaging.Reply(msg, messaging.Inform, KindRouteResult, RouteAnswer{Route: route}))
}

func (a *PlannerAgent) serveEvacuation(msg messaging.Message) {
	payload, ok := msg.Content.Payload.(RoutePayload)
	if !ok {
		a.send(messaging.Reply(msg, messaging.Failure, KindError, "malformed route payload"))
		return
	}
	if a.selector == nil {
		a.send(messaging.Reply(msg, messaging.Failure, KindError, "no shelter roster loaded"))
		return
	}

	res, err := a.selector.Select(payload.Start, payload.Prefs)
	if err != nil {
		a.send(messaging.Reply(msg, messaging.Failure, KindError, err.Error()))
		return
	}
	shelter := res.Shelter
	a.send(messaging.Reply(msg, messaging.Inform, KindRouteResult,
		RouteAnswer{Route: res.Route, Shelter: &shelter}))
}

func (a *PlannerAgent) send(msg messaging.Message) {
	if err := a.router.Send(msg); err != nil && a.logger != nil {
		a.logger.Warn("Failed to send planner reply", "to", msg.Receiver, "error", err)
	}
}
