// Package syncnet provides broadcast channel implementations for the
// collaboration layer: an in-process broker for peers sharing one runtime
// and a Redis pub/sub broker for multi-machine deployments. Both deliver
// best effort with no retries, acks, or cross-sender ordering.
package syncnet

import (
	"sync"
	"time"

	"github.com/dakshx9/IconCanvas/internal/collab"
)

const defaultStreamBuffer = 64

// LocalBroker is an in-process broadcast medium. Channels opened under the
// same session code see each other's events; a channel never sees its own
// member's events. Publish is non-blocking and drops when a subscriber's
// buffer is full.
type LocalBroker struct {
	mu       sync.RWMutex
	sessions map[string]map[int64]*localChannel
	nextID   int64

	bufferSize int
	clock      func() time.Time
}

// NewLocalBroker constructs an empty broker using the wall clock for event
// timestamps.
func NewLocalBroker() *LocalBroker {
	return &LocalBroker{
		sessions:   make(map[string]map[int64]*localChannel),
		bufferSize: defaultStreamBuffer,
		clock:      time.Now,
	}
}

// SetClock overrides the timestamp source. Intended for tests.
func (b *LocalBroker) SetClock(clock func() time.Time) {
	if clock != nil {
		b.clock = clock
	}
}

// Open binds a channel to the session code for the given member.
func (b *LocalBroker) Open(sessionCode, memberID string) (collab.Channel, error) {
	channel := &localChannel{
		broker:      b,
		sessionCode: sessionCode,
		memberID:    memberID,
		stream:      make(chan collab.Event, b.bufferSize),
		done:        make(chan struct{}),
		callbacks:   make(map[int64]func(collab.Event)),
	}

	b.mu.Lock()
	b.nextID++
	channel.id = b.nextID
	if _, ok := b.sessions[sessionCode]; !ok {
		b.sessions[sessionCode] = make(map[int64]*localChannel)
	}
	b.sessions[sessionCode][channel.id] = channel
	b.mu.Unlock()

	go channel.dispatch()
	return channel, nil
}

// publish fans the event out to every channel under the code except the
// publishing instance. Slow subscribers miss events rather than block the
// sender.
func (b *LocalBroker) publish(from *localChannel, event collab.Event) {
	b.mu.RLock()
	channels := b.sessions[event.SessionCode]
	targets := make([]*localChannel, 0, len(channels))
	for _, channel := range channels {
		if channel == from {
			continue
		}
		targets = append(targets, channel)
	}
	b.mu.RUnlock()

	for _, target := range targets {
		select {
		case target.stream <- event:
		default:
		}
	}
}

func (b *LocalBroker) unregister(channel *localChannel) {
	b.mu.Lock()
	channels := b.sessions[channel.sessionCode]
	if channels != nil {
		delete(channels, channel.id)
		if len(channels) == 0 {
			delete(b.sessions, channel.sessionCode)
		}
	}
	b.mu.Unlock()
}

type localChannel struct {
	broker      *LocalBroker
	sessionCode string
	memberID    string
	id          int64
	stream      chan collab.Event
	done        chan struct{}

	mu        sync.Mutex
	closed    bool
	nextCbID  int64
	callbacks map[int64]func(collab.Event)
}

// Broadcast stamps an event with the binding member, session code, and the
// broker clock, then fans it out. A closed channel swallows the call.
func (ch *localChannel) Broadcast(eventType collab.EventType, payload collab.EventPayload) {
	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		return
	}
	ch.mu.Unlock()

	event := collab.Event{
		Type:            eventType,
		MemberID:        ch.memberID,
		SessionCode:     ch.sessionCode,
		TimestampMillis: ch.broker.clock().UTC().UnixMilli(),
		Payload:         payload,
	}
	ch.broker.publish(ch, event)
}

// Subscribe registers a callback for inbound events from other members.
func (ch *localChannel) Subscribe(fn func(collab.Event)) func() {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.closed || fn == nil {
		return func() {}
	}
	ch.nextCbID++
	callbackID := ch.nextCbID
	ch.callbacks[callbackID] = fn
	return func() {
		ch.mu.Lock()
		delete(ch.callbacks, callbackID)
		ch.mu.Unlock()
	}
}

// Close unregisters the channel and drops every callback. Calling it again
// is a no-op.
func (ch *localChannel) Close() error {
	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		return nil
	}
	ch.closed = true
	ch.callbacks = make(map[int64]func(collab.Event))
	ch.mu.Unlock()

	ch.broker.unregister(ch)
	close(ch.done)
	return nil
}

func (ch *localChannel) dispatch() {
	for {
		select {
		case <-ch.done:
			return
		case event := <-ch.stream:
			// Self-echo suppression: every event carries its sender and
			// the binding member's own events are dropped here.
			if event.MemberID == ch.memberID {
				continue
			}
			ch.mu.Lock()
			callbacks := make([]func(collab.Event), 0, len(ch.callbacks))
			for _, fn := range ch.callbacks {
				callbacks = append(callbacks, fn)
			}
			ch.mu.Unlock()
			for _, fn := range callbacks {
				fn(event)
			}
		}
	}
}
