package agents

import (
	"context"
	"fmt"

	"github.com/riverwatch/evacroute/pkg/graph"
	"github.com/riverwatch/evacroute/pkg/hazard"
	"github.com/riverwatch/evacroute/pkg/messaging"
	"github.com/riverwatch/evacroute/pkg/reporting"
)

// busSink is where the hazard agent stages accepted inputs for the fusion
// phase: the orchestrator's shared data bus.
type busSink interface {
	AddFloodData(readings []hazard.HazardReading)
	AddScoutData(reports []hazard.ScoutReport)
}

// HazardAgent drains its mailbox at the start of the fusion phase,
// dispatching INFORMs into the bus staging by info kind and answering
// risk_at_edge QUERYs. It never mutates the graph itself; the fusion
// engine does that.
type HazardAgent struct {
	router *messaging.Router
	box    *messaging.Mailbox
	bus    busSink
	g      *graph.Graph
	logger *reporting.Logger
}

// NewHazardAgent registers the agent's mailbox and returns it.
func NewHazardAgent(router *messaging.Router, bus busSink, g *graph.Graph, logger *reporting.Logger) *HazardAgent {
	return &HazardAgent{
		router: router,
		box:    router.Register(NameHazardAgent),
		bus:    bus,
		g:      g,
		logger: logger,
	}
}

// Name returns the agent's mailbox name.
func (a *HazardAgent) Name() string { return NameHazardAgent }

// Step drains the mailbox: INFORM batches go to the bus, QUERYs get
// answered inline. Unrecognized payload types are dropped with a warning.
func (a *HazardAgent) Step(ctx context.Context) error {
	for _, msg := range a.box.Drain() {
		switch msg.Performative {
		case messaging.Inform:
			a.handleInform(msg)
		case messaging.Query:
			a.handleQuery(msg)
		default:
			if a.logger != nil {
				a.logger.Debug("Ignoring message", "performative", string(msg.Performative), "from", msg.Sender)
			}
		}
	}
	return nil
}

func (a *HazardAgent) handleInform(msg messaging.Message) {
	switch msg.Content.Kind {
	case KindFloodBatch:
		readings, ok := msg.Content.Payload.([]hazard.HazardReading)
		if !ok {
			a.warnPayload(msg)
			return
		}
		a.bus.AddFloodData(readings)

	case KindScoutBatch:
		reports, ok := msg.Content.Payload.([]hazard.ScoutReport)
		if !ok {
			a.warnPayload(msg)
			return
		}
		a.bus.AddScoutData(reports)

	default:
		if a.logger != nil {
			a.logger.Debug("Unknown info kind", "kind", msg.Content.Kind, "from", msg.Sender)
		}
	}
}

func (a *HazardAgent) handleQuery(msg messaging.Message) {
	switch msg.Content.Kind {
	case KindRiskAtEdge:
		q, ok := msg.Content.Payload.(EdgeRiskQuery)
		if !ok {
			a.warnPayload(msg)
			return
		}
		e, found := a.g.Edge(graph.EdgeKey{U: q.U, V: q.V, Key: q.Key})
		var reply messaging.Message
		if !found {
			reply = messaging.Reply(msg, messaging.Failure, KindError,
				fmt.Sprintf("edge (%d,%d,%d) not found", q.U, q.V, q.Key))
		} else {
			reply = messaging.Reply(msg, messaging.Inform, KindEdgeRisk, e.RiskScore)
		}
		if err := a.router.Send(reply); err != nil && a.logger != nil {
			a.logger.Warn("Failed to answer risk query", "error", err)
		}

	default:
		reply := messaging.Reply(msg, messaging.Refuse, KindError, "unknown query "+msg.Content.Kind)
		if err := a.router.Send(reply); err != nil && a.logger != nil {
			a.logger.Warn("Failed to refuse query", "error", err)
		}
	}
}

func (a *HazardAgent) warnPayload(msg messaging.Message) {
	if a.logger != nil {
		a.logger.Warn("Dropping malformed payload", "kind", msg.Content.Kind, "from", msg.Sender)
	}
}
