package messaging

import (
	"time"
)

// DefaultCapacity is the default mailbox depth.
const DefaultCapacity = 1024

// DefaultSendTimeout bounds a send to a full mailbox before it fails with
// ErrMailboxFull.
const DefaultSendTimeout = 100 * time.Millisecond

// Mailbox is a bounded multiple-producer single-consumer FIFO owned by one
// agent. The owning agent drains it in its step(); producers go through the
// router's Send.
type Mailbox struct {
	name string
	ch   chan Message

	// stash holds messages set aside by ReceiveReply while it was waiting
	// for a specific in_reply_to; the single consumer sees them again, in
	// order, before anything new from the channel.
	stash []Message
}

func newMailbox(name string, capacity int) *Mailbox {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Mailbox{
		name: name,
		ch:   make(chan Message, capacity),
	}
}

// Name returns the mailbox's registered name.
func (m *Mailbox) Name() string { return m.name }

// Depth reports the number of queued messages, used by metrics. The stash
// is included since the consumer still has to process it.
func (m *Mailbox) Depth() int { return len(m.ch) + len(m.stash) }

// put delivers a message, blocking up to timeout when the mailbox is full.
func (m *Mailbox) put(msg Message, timeout time.Duration) error {
	select {
	case m.ch <- msg:
		return nil
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case m.ch <- msg:
		return nil
	case <-timer.C:
		return ErrMailboxFull
	}
}

// Poll is the non-blocking receive agents use inside step(): it returns the
// next queued message, or ok=false when the mailbox is empty.
func (m *Mailbox) Poll() (Message, bool) {
	if len(m.stash) > 0 {
		msg := m.stash[0]
		m.stash = m.stash[1:]
		return msg, true
	}

	select {
	case msg := <-m.ch:
		return msg, true
	default:
		return Message{}, false
	}
}

// Receive blocks up to timeout for the next message.
func (m *Mailbox) Receive(timeout time.Duration) (Message, error) {
	if msg, ok := m.Poll(); ok {
		return msg, nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case msg := <-m.ch:
		return msg, nil
	case <-timer.C:
		return Message{}, ErrReceiveTimeout
	}
}

// ReceiveReply blocks up to timeout for a message whose InReplyTo matches
// replyWith. Messages that arrive in the meantime are stashed, preserving
// order, so the consumer does not lose them. A FAILURE or REFUSE reply is
// returned as-is; the caller inspects the performative.
func (m *Mailbox) ReceiveReply(replyWith string, timeout time.Duration) (Message, error) {
	deadline := time.Now().Add(timeout)

	// Check the stash first in case the reply already arrived.
	for i, msg := range m.stash {
		if msg.InReplyTo == replyWith {
			m.stash = append(m.stash[:i], m.stash[i+1:]...)
			return msg, nil
		}
	}

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return Message{}, ErrNoReply
		}

		timer := time.NewTimer(remaining)
		select {
		case msg := <-m.ch:
			timer.Stop()
			if msg.InReplyTo == replyWith {
				return msg, nil
			}
			m.stash = append(m.stash, msg)
		case <-timer.C:
			return Message{}, ErrNoReply
		}
	}
}

// Drain returns every currently queued message, used by agents that batch
// their entire inbox per step.
func (m *Mailbox) Drain() []Message {
	var out []Message
	for {
		msg, ok := m.Poll()
		if !ok {
			return out
		}
		out = append(out, msg)
	}
}
