package syncnet

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/dakshx9/IconCanvas/internal/collab"
)

const redisChannelPrefix = "iconcanvas:session:"

// RedisBroker carries session events over Redis PUB/SUB so participants on
// different machines share one broadcast medium. Delivery semantics match
// the local broker: fire and forget, self echoes filtered by member ID.
type RedisBroker struct {
	rdb    *redis.Client
	clock  func() time.Time
	logger *zap.Logger
}

// NewRedisBroker wraps an established Redis client.
func NewRedisBroker(rdb *redis.Client, logger *zap.Logger) *RedisBroker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBroker{rdb: rdb, clock: time.Now, logger: logger}
}

func redisChannelKey(sessionCode string) string {
	return redisChannelPrefix + sessionCode
}

// Open subscribes to the session's pub/sub channel and starts the receive
// loop.
func (b *RedisBroker) Open(sessionCode, memberID string) (collab.Channel, error) {
	ctx, cancel := context.WithCancel(context.Background())
	pubsub := b.rdb.Subscribe(ctx, redisChannelKey(sessionCode))
	if _, err := pubsub.Receive(ctx); err != nil {
		cancel()
		_ = pubsub.Close()
		return nil, err
	}

	channel := &redisChannel{
		broker:      b,
		sessionCode: sessionCode,
		memberID:    memberID,
		pubsub:      pubsub,
		ctx:         ctx,
		cancel:      cancel,
		callbacks:   make(map[int64]func(collab.Event)),
	}
	go channel.receive()
	return channel, nil
}

type redisChannel struct {
	broker      *RedisBroker
	sessionCode string
	memberID    string
	pubsub      *redis.PubSub
	ctx         context.Context
	cancel      context.CancelFunc

	mu        sync.Mutex
	closed    bool
	nextCbID  int64
	callbacks map[int64]func(collab.Event)
}

// Broadcast publishes the stamped event as JSON. Publish failures are
// swallowed: the sender never learns whether anyone received the message.
func (ch *redisChannel) Broadcast(eventType collab.EventType, payload collab.EventPayload) {
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
	encoded, err := json.Marshal(event)
	if err != nil {
		ch.broker.logger.Warn("event encode failed",
			zap.String("type", string(eventType)), zap.Error(err))
		return
	}
	if err := ch.broker.rdb.Publish(ch.ctx, redisChannelKey(ch.sessionCode), encoded).Err(); err != nil {
		ch.broker.logger.Debug("event publish dropped",
			zap.String("code", ch.sessionCode), zap.Error(err))
	}
}

func (ch *redisChannel) Subscribe(fn func(collab.Event)) func() {
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

func (ch *redisChannel) Close() error {
	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		return nil
	}
	ch.closed = true
	ch.callbacks = make(map[int64]func(collab.Event))
	ch.mu.Unlock()

	ch.cancel()
	return ch.pubsub.Close()
}

func (ch *redisChannel) receive() {
	for message := range ch.pubsub.Channel() {
		var event collab.Event
		if err := json.Unmarshal([]byte(message.Payload), &event); err != nil {
			ch.broker.logger.Warn("event decode failed",
				zap.String("code", ch.sessionCode), zap.Error(err))
			continue
		}
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
