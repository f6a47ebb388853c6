// Package messaging implements the agent message layer: FIPA-ACL-style
// performatives carried over bounded MPSC mailboxes, addressed through a
// named router. Agents never hold references to each other; every
// interaction goes through Send/Receive on this layer.
package messaging

import (
	"time"

	"github.com/google/uuid"
)

// Performative is the intent label on an inter-agent message.
type Performative string

const (
	Inform  Performative = "INFORM"
	Request Performative = "REQUEST"
	Query   Performative = "QUERY"
	Confirm Performative = "CONFIRM"
	Refuse  Performative = "REFUSE"
	Agree   Performative = "AGREE"
	Failure Performative = "FAILURE"
	Propose Performative = "PROPOSE"
	CFP     Performative = "CFP"
)

// Content is the structured payload of a message: a kind tag that receivers
// dispatch on (e.g. "flood_data_batch", "calculate_route") plus the typed
// payload itself.
type Content struct {
	Kind    string
	Payload interface{}
}

// Message is one unit of agent communication.
type Message struct {
	Performative   Performative
	Sender         string
	Receiver       string
	Content        Content
	ConversationID string
	ReplyWith      string
	InReplyTo      string
	Timestamp      time.Time
}

// NewInform builds an INFORM message carrying a tagged payload.
func NewInform(sender, receiver, kind string, payload interface{}) Message {
	return Message{
		Performative: Inform,
		Sender:       sender,
		Receiver:     receiver,
		Content:      Content{Kind: kind, Payload: payload},
		Timestamp:    time.Now(),
	}
}

// NewRequest builds a REQUEST with a fresh reply_with token so the sender
// can correlate the eventual reply.
func NewRequest(sender, receiver, kind string, payload interface{}) Message {
	return Message{
		Performative: Request,
		Sender:       sender,
		Receiver:     receiver,
		Content:      Content{Kind: kind, Payload: payload},
		ReplyWith:    uuid.NewString(),
		Timestamp:    time.Now(),
	}
}

// Reply builds a response to req: receiver and in_reply_to are taken from
// the request, the conversation id is preserved.
func Reply(req Message, perf Performative, kind string, payload interface{}) Message {
	return Message{
		Performative:   perf,
		Sender:         req.Receiver,
		Receiver:       req.Sender,
		Content:        Content{Kind: kind, Payload: payload},
		ConversationID: req.ConversationID,
		InReplyTo:      req.ReplyWith,
		Timestamp:      time.Now(),
	}
}
