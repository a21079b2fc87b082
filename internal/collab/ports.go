package collab

import "context"

// Store is the latest-value cache used for session catch-up and multi-writer
// persistence. A missing key reads back as (nil, nil); writes overwrite with
// no versioning or merge.
type Store interface {
	GetSession(ctx context.Context, code string) (*Session, error)
	PutSession(ctx context.Context, session *Session) error
	DeleteSession(ctx context.Context, code string) error
	GetCanvas(ctx context.Context, code string) (*CanvasState, error)
	PutCanvas(ctx context.Context, code string, state *CanvasState) error
}

// Channel is a broadcast pipe scoped to one session code and bound to one
// member. Delivery is best effort: no retries, no acks, FIFO per sender
// only as far as the underlying medium preserves it.
type Channel interface {
	// Broadcast stamps and fans out an event to every other subscriber
	// under the same session code. It is a silent no-op once the channel
	// is closed or when the medium is unavailable.
	Broadcast(eventType EventType, payload EventPayload)
	// Subscribe registers a callback for inbound events. The channel never
	// delivers the binding member's own events. The returned cancel
	// function removes the callback.
	Subscribe(fn func(Event)) (cancel func())
	// Close tears the channel down and drops all callbacks. Safe to call
	// more than once.
	Close() error
}

// Broker opens session-scoped channels over some shared broadcast medium.
type Broker interface {
	Open(sessionCode, memberID string) (Channel, error)
}
