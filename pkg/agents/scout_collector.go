package agents

import (
	"context"
	"sync"

	"github.com/riverwatch/evacroute/pkg/hazard"
	"github.com/riverwatch/evacroute/pkg/messaging"
	"github.com/riverwatch/evacroute/pkg/reporting"
)

// ScoutCollector relays pre-classified, optionally geocoded crowdsourced
// reports to the hazard agent. In simulated mode the scenario runner feeds
// Enqueue; a live deployment would feed it from the external classifier.
type ScoutCollector struct {
	router *messaging.Router
	box    *messaging.Mailbox
	logger *reporting.Logger

	mu      sync.Mutex
	pending []hazard.ScoutReport
}

// NewScoutCollector registers the collector's mailbox and returns it.
func NewScoutCollector(router *messaging.Router, logger *reporting.Logger) *ScoutCollector {
	return &ScoutCollector{
		router: router,
		box:    router.Register(NameScoutCollector),
		logger: logger,
	}
}

// Name returns the agent's mailbox name.
func (c *ScoutCollector) Name() string { return NameScoutCollector }

// Enqueue stages reports for the next collection step.
func (c *ScoutCollector) Enqueue(reports []hazard.ScoutReport) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = append(c.pending, reports...)
	return nil
}

// Step drains the staged reports into a single INFORM per step. Inbound
// mail is drained but the collector serves no requests.
func (c *ScoutCollector) Step(ctx context.Context) error {
	c.box.Drain()

	c.mu.Lock()
	batch := c.pending
	c.pending = nil
	c.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	msg := messaging.NewInform(NameScoutCollector, NameHazardAgent, KindScoutBatch, batch)
	if err := c.router.Send(msg); err != nil {
		// Re-stage so back-pressure loses nothing; the batch goes out next
		// step once the hazard mailbox drains.
		c.mu.Lock()
		c.pending = append(batch, c.pending...)
		c.mu.Unlock()
		return err
	}

	if c.logger != nil {
		c.logger.Debug("Scout batch emitted", "reports", len(batch))
	}
	return nil
}
