package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/dakshx9/IconCanvas/internal/collab"
)

const (
	// relaySenderID stamps relay-originated frames (the catch-up FULL_SYNC)
	// so no participant mistakes them for its own echoes.
	relaySenderID = "relay"

	writeTimeout   = 10 * time.Second
	pongTimeout    = 60 * time.Second
	pingInterval   = 54 * time.Second
	peerSendBuffer = 64
)

// The relay sits behind CORS "*" and serves arbitrary canvas frontends, so
// origin checking is left to the deployment's edge.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWebSocket attaches a participant to the session's broadcast medium.
// The first frame sent is a FULL_SYNC built from the store, giving late
// joiners the materialized state the transport itself never replays.
func (h *httpHandler) handleWebSocket(c *gin.Context) {
	code, err := collab.NormalizeSessionCode(c.Param("code"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_code"})
		return
	}
	memberID := c.Query("memberId")
	if memberID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": errMissingMemberID.Error()})
		return
	}

	session, err := h.store.GetSession(c.Request.Context(), code)
	if err != nil {
		h.logger.Error("session lookup failed", zap.String("code", code), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session_lookup_failed"})
		return
	}
	if session == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session_not_found"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.String("code", code), zap.Error(err))
		return
	}

	channel, err := h.broker.Open(code, memberID)
	if err != nil {
		h.logger.Error("channel open failed", zap.String("code", code), zap.Error(err))
		_ = conn.Close()
		return
	}

	peer := &relayPeer{
		handler:  h,
		conn:     conn,
		channel:  channel,
		code:     code,
		memberID: memberID,
		send:     make(chan collab.Event, peerSendBuffer),
		done:     make(chan struct{}),
	}

	cancel := channel.Subscribe(peer.enqueue)
	defer func() {
		cancel()
		peer.shutdown()
	}()

	canvas, err := h.store.GetCanvas(c.Request.Context(), code)
	if err != nil {
		h.logger.Warn("canvas lookup failed", zap.String("code", code), zap.Error(err))
	}
	peer.enqueue(collab.Event{
		Type:            collab.EventFullSync,
		MemberID:        relaySenderID,
		SessionCode:     code,
		TimestampMillis: h.clock().UTC().UnixMilli(),
		Payload:         collab.FullSyncPayload{Session: *session, Canvas: canvas},
	})

	go peer.writePump()
	peer.readPump(c.Request.Context())
}

// relayPeer bridges one websocket connection and one broker channel.
type relayPeer struct {
	handler  *httpHandler
	conn     *websocket.Conn
	channel  collab.Channel
	code     string
	memberID string
	send     chan collab.Event

	closeOnce sync.Once
	done      chan struct{}
}

// enqueue pushes an event toward the socket, dropping when the peer is too
// slow to drain its buffer.
func (p *relayPeer) enqueue(event collab.Event) {
	select {
	case p.send <- event:
	case <-p.done:
	default:
		p.handler.logger.Debug("peer buffer full, frame dropped",
			zap.String("code", p.code), zap.String("member", p.memberID))
	}
}

func (p *relayPeer) shutdown() {
	p.closeOnce.Do(func() {
		close(p.done)
		_ = p.channel.Close()
		_ = p.conn.Close()
	})
}

// readPump consumes frames from the socket until it closes, fanning each
// valid event out and folding state-changing ones into the store. A vanished
// peer is announced to the rest of the session as a MEMBER_LEAVE.
func (p *relayPeer) readPump(ctx context.Context) {
	defer func() {
		leave := collab.MemberLeavePayload{MemberID: p.memberID}
		p.channel.Broadcast(collab.EventMemberLeave, leave)
		p.applyEvent(ctx, collab.Event{
			Type:        collab.EventMemberLeave,
			MemberID:    p.memberID,
			SessionCode: p.code,
			Payload:     leave,
		})
		p.shutdown()
	}()

	_ = p.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})

	for {
		_, frame, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				p.handler.logger.Debug("websocket read ended",
					zap.String("code", p.code), zap.Error(err))
			}
			return
		}

		var event collab.Event
		if err := json.Unmarshal(frame, &event); err != nil {
			p.handler.logger.Debug("undecodable frame dropped",
				zap.String("code", p.code), zap.Error(err))
			continue
		}
		if err := p.validate(event); err != nil {
			p.handler.logger.Debug("frame rejected",
				zap.String("code", p.code), zap.Error(err))
			continue
		}

		p.applyEvent(ctx, event)
		p.channel.Broadcast(event.Type, event.Payload)
	}
}

func (p *relayPeer) validate(event collab.Event) error {
	if event.MemberID == "" {
		return errUnknownInboundSender
	}
	if event.MemberID != p.memberID {
		return errEventSenderMismatch
	}
	if event.SessionCode != p.code {
		return errSessionCodeMismatch
	}
	return nil
}

func (p *relayPeer) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		p.shutdown()
	}()

	for {
		select {
		case <-p.done:
			return
		case event := <-p.send:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := p.conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// applyEvent folds a state-changing event into the store so the FULL_SYNC
// catch-up stays current. Cursor moves and element locks are transient and
// never persisted; errors degrade silently like every other realtime-path
// failure.
func (p *relayPeer) applyEvent(ctx context.Context, event collab.Event) {
	h := p.handler

	switch payload := event.Payload.(type) {
	case collab.MemberJoinPayload:
		p.mutateSession(ctx, func(session *collab.Session) bool {
			return session.AddMember(payload.Member)
		})
	case collab.MemberLeavePayload:
		p.mutateSession(ctx, func(session *collab.Session) bool {
			return session.RemoveMember(payload.MemberID)
		})
	case collab.MemberUpdatePayload:
		p.mutateSession(ctx, func(session *collab.Session) bool {
			return session.ReplaceMember(payload.Member)
		})
	case collab.ChatMessagePayload:
		p.mutateSession(ctx, func(session *collab.Session) bool {
			session.Messages = append(session.Messages, payload.Message)
			return true
		})
	case collab.CanvasUpdatePayload:
		state, err := h.store.GetCanvas(ctx, p.code)
		if err != nil {
			h.logger.Warn("canvas load failed", zap.String("code", p.code), zap.Error(err))
			return
		}
		if state == nil {
			state = &collab.CanvasState{}
		}
		payload.Apply(state)
		if err := h.store.PutCanvas(ctx, p.code, state); err != nil {
			h.logger.Warn("canvas persist failed", zap.String("code", p.code), zap.Error(err))
		}
	}
}

func (p *relayPeer) mutateSession(ctx context.Context, mutate func(*collab.Session) bool) {
	h := p.handler
	session, err := h.store.GetSession(ctx, p.code)
	if err != nil {
		h.logger.Warn("session load failed", zap.String("code", p.code), zap.Error(err))
		return
	}
	if session == nil {
		return
	}
	if !mutate(session) {
		return
	}
	if err := h.store.PutSession(ctx, session); err != nil {
		h.logger.Warn("session persist failed", zap.String("code", p.code), zap.Error(err))
	}
}
