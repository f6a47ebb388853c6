package messaging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendAndPoll(t *testing.T) {
	r := NewRouter(RouterConfig{MailboxCapacity: 4})
	box := r.Register("hazard")

	msg := NewInform("flood", "hazard", "flood_data_batch", "payload")
	require.NoError(t, r.Send(msg))

	got, ok := box.Poll()
	require.True(t, ok)
	assert.Equal(t, Inform, got.Performative)
	assert.Equal(t, "flood_data_batch", got.Content.Kind)

	_, ok = box.Poll()
	assert.False(t, ok)
}

func TestSendUnknownReceiver(t *testing.T) {
	r := NewRouter(RouterConfig{})
	err := r.Send(NewInform("a", "nobody", "x", nil))
	require.ErrorIs(t, err, ErrUnknownReceiver)
}

func TestSendFullMailboxTimesOut(t *testing.T) {
	r := NewRouter(RouterConfig{MailboxCapacity: 1, SendTimeout: 10 * time.Millisecond})
	r.Register("slow")

	require.NoError(t, r.Send(NewInform("a", "slow", "x", nil)))
	err := r.Send(NewInform("a", "slow", "x", nil))
	require.ErrorIs(t, err, ErrMailboxFull)
}

func TestReceiveBlocksUntilMessage(t *testing.T) {
	r := NewRouter(RouterConfig{MailboxCapacity: 4})
	box := r.Register("agent")

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = r.Send(NewInform("other", "agent", "ping", nil))
	}()

	msg, err := box.Receive(time.Second)
	require.NoError(t, err)
	assert.Equal(t, "ping", msg.Content.Kind)
}

func TestReceiveTimeout(t *testing.T) {
	r := NewRouter(RouterConfig{MailboxCapacity: 4})
	box := r.Register("agent")

	_, err := box.Receive(10 * time.Millisecond)
	require.ErrorIs(t, err, ErrReceiveTimeout)
}

func TestReceiveReplyStashesUnrelatedMessages(t *testing.T) {
	r := NewRouter(RouterConfig{MailboxCapacity: 8})
	requester := r.Register("manager")
	r.Register("planner")

	req := NewRequest("manager", "planner", "calculate_route", nil)
	require.NoError(t, r.Send(req))

	// An unrelated INFORM lands in the requester's box before the reply.
	require.NoError(t, r.Send(NewInform("scout", "manager", "noise", nil)))
	require.NoError(t, r.Send(Reply(req, Inform, "route_result", "the-route")))

	reply, err := requester.ReceiveReply(req.ReplyWith, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "route_result", reply.Content.Kind)

	// The stashed unrelated message is still delivered, in order.
	noise, ok := requester.Poll()
	require.True(t, ok)
	assert.Equal(t, "noise", noise.Content.Kind)
}

func TestReceiveReplyDeadline(t *testing.T) {
	r := NewRouter(RouterConfig{MailboxCapacity: 4})
	requester := r.Register("manager")

	_, err := requester.ReceiveReply("never-sent", 20*time.Millisecond)
	require.ErrorIs(t, err, ErrNoReply)
}

func TestDrainReturnsAllInOrder(t *testing.T) {
	r := NewRouter(RouterConfig{MailboxCapacity: 8})
	box := r.Register("agent")

	for i := 0; i < 3; i++ {
		require.NoError(t, r.Send(NewInform("x", "agent", "batch", i)))
	}
	msgs := box.Drain()
	require.Len(t, msgs, 3)
	assert.Equal(t, 0, msgs[0].Content.Payload)
	assert.Equal(t, 2, msgs[2].Content.Payload)
}
