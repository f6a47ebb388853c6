package agents

import (
	"context"
	"time"

	"github.com/riverwatch/evacroute/pkg/messaging"
	"github.com/riverwatch/evacroute/pkg/planner"
	"github.com/riverwatch/evacroute/pkg/reporting"
)

// DefaultReplyTimeout bounds how long the manager waits for the planner's
// answer before reporting FAILURE to the distressed caller.
const DefaultReplyTimeout = 10 * time.Second

// pendingCall tracks one forwarded distress call awaiting its planner
// reply.
type pendingCall struct {
	origin messaging.Message
	sentAt time.Time
}

// EvacuationManager translates distress_call REQUESTs into planner
// find_evacuation_route REQUESTs. It holds no reference to the planner
// agent; the handoff is pure message passing with reply correlation. A
// reply that has not arrived after the deadline becomes a FAILURE to the
// original caller.
type EvacuationManager struct {
	router       *messaging.Router
	box          *messaging.Mailbox
	replyTimeout time.Duration
	logger       *reporting.Logger

	pending map[string]pendingCall // reply_with → awaiting call
}

// NewEvacuationManager registers the manager's mailbox and returns it.
func NewEvacuationManager(router *messaging.Router, replyTimeout time.Duration, logger *reporting.Logger) *EvacuationManager {
	if replyTimeout <= 0 {
		replyTimeout = DefaultReplyTimeout
	}
	return &EvacuationManager{
		router:       router,
		box:          router.Register(NameEvacuationManager),
		replyTimeout: replyTimeout,
		logger:       logger,
		pending:      make(map[string]pendingCall),
	}
}

// Name returns the agent's mailbox name.
func (m *EvacuationManager) Name() string { return NameEvacuationManager }

// Step drains the mailbox: distress calls are forwarded to the planner
// agent, planner replies are relayed back to their original callers, and
// expired pending calls fail. Step never blocks, so the routing phase's
// agents can run concurrently.
func (m *EvacuationManager) Step(ctx context.Context) error {
	for _, msg := range m.box.Drain() {
		switch {
		case msg.InReplyTo != "":
			m.handleReply(msg)
		case msg.Performative == messaging.Request && msg.Content.Kind == KindDistressCall:
			m.handleDistress(msg)
		}
	}

	m.expirePending()
	return nil
}

func (m *EvacuationManager) handleDistress(origin messaging.Message) {
	payload, ok := origin.Content.Payload.(DistressPayload)
	if !ok {
		m.send(messaging.Reply(origin, messaging.Failure, KindError, "malformed distress payload"))
		return
	}

	req := messaging.NewRequest(NameEvacuationManager, NamePlannerAgent, KindFindEvacRoute,
		RoutePayload{
			Start: payload.Start,
			Prefs: planner.Preferences{Profile: payload.Profile},
		})
	req.ConversationID = origin.ConversationID

	if err := m.router.Send(req); err != nil {
		m.send(messaging.Reply(origin, messaging.Failure, KindError, err.Error()))
		return
	}

	m.pending[req.ReplyWith] = pendingCall{origin: origin, sentAt: time.Now()}
}

func (m *EvacuationManager) handleReply(reply messaging.Message) {
	call, ok := m.pending[reply.InReplyTo]
	if !ok {
		// Late reply for an already-failed call; drop it.
		return
	}
	delete(m.pending, reply.InReplyTo)

	m.send(messaging.Reply(call.origin, reply.Performative, reply.Content.Kind, reply.Content.Payload))
}

// expirePending fails every forwarded call whose reply deadline passed.
func (m *EvacuationManager) expirePending() {
	now := time.Now()
	for replyWith, call := range m.pending {
		if now.Sub(call.sentAt) < m.replyTimeout {
			continue
		}
		delete(m.pending, replyWith)
		m.send(messaging.Reply(call.origin, messaging.Failure, KindError, "evacuation planning timed out"))
	}
}

func (m *EvacuationManager) send(msg messaging.Message) {
	if msg.Receiver == "" {
		return
	}
	if err := m.router.Send(msg); err != nil && m.logger != nil {
		m.logger.Warn("Failed to relay evacuation reply", "to", msg.Receiver, "error", err)
	}
}
