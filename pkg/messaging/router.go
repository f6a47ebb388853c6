package messaging

import (
	"fmt"
	"sync"
	"time"
)

// Router owns every registered mailbox and addresses messages by receiver
// name. Registration happens at startup; sends may come from any goroutine.
type Router struct {
	mu          sync.RWMutex
	boxes       map[string]*Mailbox
	capacity    int
	sendTimeout time.Duration
}

// RouterConfig configures a Router.
type RouterConfig struct {
	MailboxCapacity int
	SendTimeout     time.Duration
}

// NewRouter returns an empty Router.
func NewRouter(cfg RouterConfig) *Router {
	capacity := cfg.MailboxCapacity
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	sendTimeout := cfg.SendTimeout
	if sendTimeout <= 0 {
		sendTimeout = DefaultSendTimeout
	}
	return &Router{
		boxes:       make(map[string]*Mailbox),
		capacity:    capacity,
		sendTimeout: sendTimeout,
	}
}

// Register creates (or returns the existing) mailbox for name. The returned
// mailbox must only be consumed by the agent that owns the name.
func (r *Router) Register(name string) *Mailbox {
	r.mu.Lock()
	defer r.mu.Unlock()

	if box, ok := r.boxes[name]; ok {
		return box
	}
	box := newMailbox(name, r.capacity)
	r.boxes[name] = box
	return box
}

// Send delivers msg to its receiver's mailbox using the router's default
// send timeout.
func (r *Router) Send(msg Message) error {
	return r.SendTimeout(msg, r.sendTimeout)
}

// SendTimeout delivers msg, blocking up to timeout when the receiver's
// mailbox is full.
func (r *Router) SendTimeout(msg Message, timeout time.Duration) error {
	r.mu.RLock()
	box, ok := r.boxes[msg.Receiver]
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownReceiver, msg.Receiver)
	}
	if err := box.put(msg, timeout); err != nil {
		return fmt.Errorf("%w: receiver %q", err, msg.Receiver)
	}
	return nil
}

// Mailbox returns the registered mailbox for name, used by metrics to read
// queue depths. ok is false for unregistered names.
func (r *Router) Mailbox(name string) (*Mailbox, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	box, ok := r.boxes[name]
	return box, ok
}

// Names returns every registered mailbox name.
func (r *Router) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.boxes))
	for name := range r.boxes {
		out = append(out, name)
	}
	return out
}
