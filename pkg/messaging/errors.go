package messaging

import "errors"

// ErrUnknownReceiver is returned when a message addresses a mailbox that
// was never registered.
var ErrUnknownReceiver = errors.New("messaging: unknown receiver")

// ErrMailboxFull is returned when a send to a full mailbox does not
// complete within the caller's timeout. Back-pressure is always surfaced,
// never silently dropped.
var ErrMailboxFull = errors.New("messaging: mailbox full")

// ErrReceiveTimeout is returned by the blocking receive variants when no
// message arrives within the deadline.
var ErrReceiveTimeout = errors.New("messaging: receive timed out")

// ErrNoReply is returned when a REQUEST sees no AGREE/INFORM reply within
// the reply deadline; the originator should treat it as FAILURE.
var ErrNoReply = errors.New("messaging: no reply within deadline")
