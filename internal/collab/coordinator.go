package collab

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	errMissingStore  = errors.New("shared state store is required")
	errMissingBroker = errors.New("broker is required")
	// ErrAlreadyConnected is returned when CreateGroup is called on a
	// coordinator that already has a live session.
	ErrAlreadyConnected = errors.New("collab: already connected to a session")

	noOpLogger = zap.NewNop()
)

const (
	opCreateGroup   = "collab.create_group"
	opJoinGroup     = "collab.join_group"
	opSendMessage   = "collab.send_message"
	opCanvasUpdate  = "collab.canvas_update"
	opSetPermission = "collab.set_permission"
	opHandleEvent   = "collab.handle_event"
)

// RemoteCursor is the latest known pointer position of another member,
// together with the display attributes carried on the wire.
type RemoteCursor struct {
	X     float64
	Y     float64
	Name  string
	Color string
}

// CoordinatorConfig describes the dependencies of a Coordinator. Store and
// Broker are required; the rest default to production implementations.
type CoordinatorConfig struct {
	Store      Store
	Broker     Broker
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// Coordinator is the per-participant state machine. It owns the local view
// of membership, chat history, remote cursors, and the canvas snapshot,
// translating local mutations into outbound events and inbound events into
// local state changes. A coordinator is either disconnected (no session)
// or connected (live session, member identity, active channel).
//
// All reconciliation is last write wins per field or entry; there is no
// conflict detection. Concurrent canvas edits race and whichever update is
// processed last locally wins.
type Coordinator struct {
	store  Store
	broker Broker
	clock  func() time.Time
	ids    IDProvider
	logger *zap.Logger

	// Inbound events arrive on transport goroutines, so unlike the
	// original single-threaded event loop the local state needs a lock.
	mu             sync.RWMutex
	session        *Session
	selfID         string
	messages       []ChatMessage
	cursors        map[string]RemoteCursor
	locks          map[string]string
	channel        Channel
	cancelInbound  func()
	onCanvasUpdate func(CanvasPatch)
}

// NewCoordinator constructs a disconnected coordinator.
func NewCoordinator(cfg CoordinatorConfig) (*Coordinator, error) {
	if cfg.Store == nil {
		return nil, errMissingStore
	}
	if cfg.Broker == nil {
		return nil, errMissingBroker
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	ids := cfg.IDProvider
	if ids == nil {
		ids = NewUUIDProvider()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Coordinator{
		store:  cfg.Store,
		broker: cfg.Broker,
		clock:  clock,
		ids:    ids,
		logger: logger,
	}, nil
}

// CreateGroup generates a session code and member identity, persists a new
// session with the caller as its single host member, and connects to the
// session's broadcast channel. Calling while already connected is an
// invalid transition and is rejected.
func (c *Coordinator) CreateGroup(ctx context.Context, name, memberName string) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil {
		return nil, ErrAlreadyConnected
	}

	memberID, err := c.ids.NewID()
	if err != nil {
		c.logError(opCreateGroup, "id_generation_failed", err)
		return nil, err
	}

	code := GenerateSessionCode()
	now := c.clock().UTC().UnixMilli()
	host := NewMember(memberID, memberName, GenerateMemberIdentity(), true, now)
	session := NewSession(code, strings.TrimSpace(name), host, now)

	if err := c.store.PutSession(ctx, session); err != nil {
		c.logError(opCreateGroup, "session_persist_failed", err, zap.String("code", code))
		return nil, err
	}

	c.connectLocked(session, memberID)
	return session.Clone(), nil
}

// JoinGroup looks the code up in the shared state store and joins the
// session when it exists. The lookup is the only validation: there is no
// fullness, expiry, or host-liveness check. Returns false when the session
// is not found or the coordinator is already connected.
func (c *Coordinator) JoinGroup(ctx context.Context, rawCode, memberName string) bool {
	code, err := NormalizeSessionCode(rawCode)
	if err != nil {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil {
		return false
	}

	session, err := c.store.GetSession(ctx, code)
	if err != nil {
		c.logError(opJoinGroup, "session_lookup_failed", err, zap.String("code", code))
		return false
	}
	if session == nil {
		return false
	}

	memberID, err := c.ids.NewID()
	if err != nil {
		c.logError(opJoinGroup, "id_generation_failed", err)
		return false
	}

	now := c.clock().UTC().UnixMilli()
	member := NewMember(memberID, memberName, GenerateMemberIdentity(), false, now)
	session.AddMember(member)

	if err := c.store.PutSession(ctx, session); err != nil {
		c.logError(opJoinGroup, "session_persist_failed", err, zap.String("code", code))
	}

	c.connectLocked(session, memberID)
	c.broadcastLocked(EventMemberJoin, MemberJoinPayload{Member: member})
	return true
}

// connectLocked wires session state and the broadcast channel. A channel
// open failure degrades to a locally connected session whose broadcasts are
// silent no-ops; the sender never learns whether anyone received anything.
func (c *Coordinator) connectLocked(session *Session, memberID string) {
	c.session = session
	c.selfID = memberID
	c.messages = append([]ChatMessage(nil), session.Messages...)
	c.cursors = make(map[string]RemoteCursor)
	c.locks = make(map[string]string)

	channel, err := c.broker.Open(session.Code, memberID)
	if err != nil {
		c.logger.Warn("broadcast channel unavailable",
			zap.String("code", session.Code), zap.Error(err))
		return
	}
	c.channel = channel
	c.cancelInbound = channel.Subscribe(c.handleEvent)
}

// LeaveGroup broadcasts the departure, disconnects the channel, and clears
// all local session state. Safe to call while disconnected. When the host
// leaves, no re-election happens: other participants' HostID goes stale
// until the application layer re-derives it.
func (c *Coordinator) LeaveGroup() {
	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return
	}

	channel := c.channel
	cancel := c.cancelInbound
	selfID := c.selfID

	c.session = nil
	c.selfID = ""
	c.messages = nil
	c.cursors = nil
	c.locks = nil
	c.channel = nil
	c.cancelInbound = nil
	c.mu.Unlock()

	if channel != nil {
		channel.Broadcast(EventMemberLeave, MemberLeavePayload{MemberID: selfID})
		if cancel != nil {
			cancel()
		}
		_ = channel.Close()
	}
}

// SendMessage appends a chat message locally, broadcasts it, and persists
// the updated session. Empty or whitespace-only text and the disconnected
// state are silent no-ops.
func (c *Coordinator) SendMessage(ctx context.Context, text string) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return
	}

	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return
	}

	messageID, err := c.ids.NewID()
	if err != nil {
		c.mu.Unlock()
		c.logError(opSendMessage, "id_generation_failed", err)
		return
	}

	self := c.session.Member(c.selfID)
	message := ChatMessage{
		ID:              messageID,
		MemberID:        c.selfID,
		Text:            trimmed,
		TimestampMillis: c.clock().UTC().UnixMilli(),
	}
	if self != nil {
		message.MemberName = self.Name
		message.MemberColor = self.Color
	}

	c.messages = append(c.messages, message)
	c.session.Messages = append(c.session.Messages, message)
	persisted := c.session.Clone()
	channel := c.channel
	c.mu.Unlock()

	if channel != nil {
		channel.Broadcast(EventChatMessage, ChatMessagePayload{Message: message})
	}
	if err := c.store.PutSession(ctx, persisted); err != nil {
		c.logError(opSendMessage, "session_persist_failed", err, zap.String("code", persisted.Code))
	}
}

// UpdateCursor broadcasts the local pointer position with the member's
// display name and color denormalized into the payload. No throttling
// happens here; callers are expected to rate-limit.
func (c *Coordinator) UpdateCursor(x, y float64) {
	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return
	}

	payload := CursorMovePayload{X: x, Y: y}
	if self := c.session.Member(c.selfID); self != nil {
		self.Cursor = &Point{X: x, Y: y}
		self.LastSeenMillis = c.clock().UTC().UnixMilli()
		payload.Name = self.Name
		payload.Color = self.Color
	}
	channel := c.channel
	c.mu.Unlock()

	if channel != nil {
		channel.Broadcast(EventCursorMove, payload)
	}
}

// BroadcastCanvasUpdate fans the patch out verbatim, with no diffing, and
// folds it into the persisted canvas snapshot. A disconnected coordinator
// ignores the call.
func (c *Coordinator) BroadcastCanvasUpdate(ctx context.Context, patch CanvasPatch) {
	c.mu.RLock()
	if c.session == nil {
		c.mu.RUnlock()
		return
	}
	code := c.session.Code
	channel := c.channel
	c.mu.RUnlock()

	if channel != nil {
		channel.Broadcast(EventCanvasUpdate, CanvasUpdatePayload{CanvasPatch: patch})
	}
	c.persistCanvas(ctx, code, patch)
}

// SetOnCanvasUpdate registers the single callback invoked whenever a remote
// canvas update arrives. Setting a new callback replaces the previous one;
// nil clears it.
func (c *Coordinator) SetOnCanvasUpdate(fn func(CanvasPatch)) {
	c.mu.Lock()
	c.onCanvasUpdate = fn
	c.mu.Unlock()
}

// SetMemberPermission updates a roster member's permission locally,
// persists the session, and broadcasts the member record wholesale.
func (c *Coordinator) SetMemberPermission(ctx context.Context, memberID string, permission PermissionLevel) {
	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return
	}
	member := c.session.Member(memberID)
	if member == nil {
		c.mu.Unlock()
		return
	}
	member.Permission = permission
	updated := *member
	persisted := c.session.Clone()
	channel := c.channel
	c.mu.Unlock()

	if channel != nil {
		channel.Broadcast(EventMemberUpdate, MemberUpdatePayload{Member: updated})
	}
	if err := c.store.PutSession(ctx, persisted); err != nil {
		c.logError(opSetPermission, "session_persist_failed", err, zap.String("code", persisted.Code))
	}
}

// handleEvent is the reconciliation policy for inbound events. The channel
// already filtered the local member's own echoes.
func (c *Coordinator) handleEvent(event Event) {
	c.mu.Lock()
	if c.session == nil || event.SessionCode != c.session.Code {
		c.mu.Unlock()
		return
	}

	var (
		persisted   *Session
		patch       *CanvasPatch
		fullCanvas  *CanvasState
		sessionCode = c.session.Code
	)

	switch payload := event.Payload.(type) {
	case MemberJoinPayload:
		if c.session.AddMember(payload.Member) {
			persisted = c.session.Clone()
		}

	case MemberLeavePayload:
		if c.session.RemoveMember(payload.MemberID) {
			persisted = c.session.Clone()
		}
		delete(c.cursors, payload.MemberID)
		for elementID, holder := range c.locks {
			if holder == payload.MemberID {
				delete(c.locks, elementID)
			}
		}

	case MemberUpdatePayload:
		if c.session.ReplaceMember(payload.Member) {
			persisted = c.session.Clone()
		}

	case CursorMovePayload:
		c.cursors[event.MemberID] = RemoteCursor{
			X: payload.X, Y: payload.Y,
			Name: payload.Name, Color: payload.Color,
		}
		if member := c.session.Member(event.MemberID); member != nil {
			member.Cursor = &Point{X: payload.X, Y: payload.Y}
			member.LastSeenMillis = event.TimestampMillis
		}

	case ChatMessagePayload:
		// Appended by arrival order with no dedupe by message ID;
		// duplicate delivery duplicates the message.
		c.messages = append(c.messages, payload.Message)
		c.session.Messages = append(c.session.Messages, payload.Message)

	case CanvasUpdatePayload:
		incoming := payload.CanvasPatch
		patch = &incoming

	case ElementLockPayload:
		if payload.Locked {
			c.locks[payload.ElementID] = payload.MemberID
		} else if c.locks[payload.ElementID] == payload.MemberID {
			delete(c.locks, payload.ElementID)
		}

	case FullSyncPayload:
		replacement := payload.Session
		c.session = &replacement
		c.messages = append([]ChatMessage(nil), replacement.Messages...)
		if payload.Canvas != nil {
			state := *payload.Canvas
			fullCanvas = &state
			asPatch := state.AsPatch()
			patch = &asPatch
		}

	default:
		c.logger.Debug("unhandled event", zap.String("type", string(event.Type)))
	}

	callback := c.onCanvasUpdate
	c.mu.Unlock()

	// Every participant that processes a state-changing event re-persists
	// the materialized state; consistency across peers comes from these
	// redundant last-write-wins writes, not an authoritative copy.
	ctx := context.Background()
	if persisted != nil {
		if err := c.store.PutSession(ctx, persisted); err != nil {
			c.logError(opHandleEvent, "session_persist_failed", err, zap.String("code", persisted.Code))
		}
	}
	if fullCanvas != nil {
		if err := c.store.PutCanvas(ctx, sessionCode, fullCanvas); err != nil {
			c.logError(opHandleEvent, "canvas_persist_failed", err, zap.String("code", sessionCode))
		}
	} else if patch != nil {
		c.persistCanvas(ctx, sessionCode, *patch)
	}
	if patch != nil && callback != nil {
		// The callback, not the coordinator, decides how each field lands
		// in the consumer's materialized state.
		callback(*patch)
	}
}

// persistCanvas folds a patch into the stored snapshot. Failures are logged
// and swallowed so the realtime path never crashes over storage trouble.
func (c *Coordinator) persistCanvas(ctx context.Context, code string, patch CanvasPatch) {
	if patch.IsEmpty() {
		return
	}
	state, err := c.store.GetCanvas(ctx, code)
	if err != nil {
		c.logError(opCanvasUpdate, "canvas_load_failed", err, zap.String("code", code))
		return
	}
	if state == nil {
		state = &CanvasState{}
	}
	patch.Apply(state)
	if err := c.store.PutCanvas(ctx, code, state); err != nil {
		c.logError(opCanvasUpdate, "canvas_persist_failed", err, zap.String("code", code))
	}
}

// Session returns a snapshot of the current session, or nil while
// disconnected.
func (c *Coordinator) Session() *Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session.Clone()
}

// IsConnected reports whether the coordinator has a live session.
func (c *Coordinator) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session != nil
}

// CurrentMember returns a copy of the local member record, or nil while
// disconnected.
func (c *Coordinator) CurrentMember() *Member {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return nil
	}
	member := c.session.Member(c.selfID)
	if member == nil {
		return nil
	}
	copied := *member
	if member.Cursor != nil {
		point := *member.Cursor
		copied.Cursor = &point
	}
	return &copied
}

// Messages returns the local chat history in arrival order.
func (c *Coordinator) Messages() []ChatMessage {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]ChatMessage(nil), c.messages...)
}

// RemoteCursors returns the latest known cursor per remote member.
func (c *Coordinator) RemoteCursors() map[string]RemoteCursor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cursors := make(map[string]RemoteCursor, len(c.cursors))
	for memberID, cursor := range c.cursors {
		cursors[memberID] = cursor
	}
	return cursors
}

// ElementLocks returns the advisory element lock map (element ID to holding
// member ID). Locks are observed, never enforced.
func (c *Coordinator) ElementLocks() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	locks := make(map[string]string, len(c.locks))
	for elementID, holder := range c.locks {
		locks[elementID] = holder
	}
	return locks
}

func (c *Coordinator) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	c.logger.Error("collaboration error", attrs...)
}

// broadcastLocked sends while holding the coordinator lock. Channel
// implementations must not call back into the coordinator synchronously.
func (c *Coordinator) broadcastLocked(eventType EventType, payload EventPayload) {
	if c.channel == nil {
		return
	}
	c.channel.Broadcast(eventType, payload)
}
