package agents

import (
	"context"

	"github.com/riverwatch/evacroute/pkg/hazard"
	"github.com/riverwatch/evacroute/pkg/messaging"
	"github.com/riverwatch/evacroute/pkg/reporting"
	"github.com/riverwatch/evacroute/pkg/scheduler"
)

// FloodCollector relays official HazardReading batches to the hazard
// agent. Refreshes come from the upstream scheduler (periodic or manually
// triggered) or, in simulated mode, from the scenario runner; both arrive
// through Deliver and leave as a single INFORM per batch.
type FloodCollector struct {
	router *messaging.Router
	box    *messaging.Mailbox
	sched  *scheduler.Scheduler
	logger *reporting.Logger
}

// NewFloodCollector registers the collector's mailbox and returns it.
// sched may be nil in simulated mode.
func NewFloodCollector(router *messaging.Router, sched *scheduler.Scheduler, logger *reporting.Logger) *FloodCollector {
	return &FloodCollector{
		router: router,
		box:    router.Register(NameFloodCollector),
		sched:  sched,
		logger: logger,
	}
}

// Name returns the agent's mailbox name.
func (c *FloodCollector) Name() string { return NameFloodCollector }

// SetScheduler wires the upstream scheduler after construction. The
// scheduler's delivery callback is this collector's Deliver method, so the
// two reference each other and one side has to be set late.
func (c *FloodCollector) SetScheduler(sched *scheduler.Scheduler) {
	c.sched = sched
}

// Deliver forwards one fetched batch as an INFORM to the hazard agent.
// This is the scheduler's delivery callback and the simulation runner's
// flood handler.
func (c *FloodCollector) Deliver(ctx context.Context, readings []hazard.HazardReading) error {
	if len(readings) == 0 {
		return nil
	}
	msg := messaging.NewInform(NameFloodCollector, NameHazardAgent, KindFloodBatch, readings)
	return c.router.Send(msg)
}

// Step drains inbound REQUESTs. A collect_now request triggers an
// immediate upstream refresh outside the scheduler cadence.
func (c *FloodCollector) Step(ctx context.Context) error {
	for _, msg := range c.box.Drain() {
		if msg.Performative != messaging.Request {
			continue
		}
		switch msg.Content.Kind {
		case KindCollectNow:
			if c.sched == nil {
				c.reply(msg, messaging.Refuse, "no upstream source configured")
				continue
			}
			stats := c.sched.TriggerNow(ctx)
			reply := messaging.Reply(msg, messaging.Inform, "scheduler_stats", stats)
			if err := c.router.Send(reply); err != nil && c.logger != nil {
				c.logger.Warn("Failed to send scheduler stats", "error", err)
			}
		default:
			c.reply(msg, messaging.Refuse, "unknown request "+msg.Content.Kind)
		}
	}
	return nil
}

func (c *FloodCollector) reply(req messaging.Message, perf messaging.Performative, detail string) {
	if req.Sender == "" {
		return
	}
	msg := messaging.Reply(req, perf, KindError, detail)
	if err := c.router.Send(msg); err != nil && c.logger != nil {
		c.logger.Warn("Failed to send reply", "error", err)
	}
}
