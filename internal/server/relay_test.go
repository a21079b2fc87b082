package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dakshx9/IconCanvas/internal/collab"
)

func dialPeer(t *testing.T, server *httptest.Server, code, memberID string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/" + code + "?memberId=" + memberID
	conn, response, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("unexpected dial error: %v (response %+v)", err, response)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) collab.Event {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event collab.Event
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("unexpected read error: %v", err)
	}
	return event
}

func TestWebSocketFirstFrameIsFullSync(t *testing.T) {
	relay := newTestRelay(t)
	seeded := relay.seedSession(t)
	if err := relay.store.PutCanvas(context.Background(), seeded.Code, &collab.CanvasState{
		BackgroundColor: "#0f172a",
		Icons:           []collab.CanvasIcon{{ID: "icon-1", X: 1, Y: 2}},
	}); err != nil {
		t.Fatalf("unexpected canvas seed error: %v", err)
	}

	server := httptest.NewServer(relay.handler)
	defer server.Close()

	conn := dialPeer(t, server, seeded.Code, "host-1")
	event := readEvent(t, conn)

	if event.Type != collab.EventFullSync || event.MemberID != relaySenderID {
		t.Fatalf("first frame should be a relay FULL_SYNC, got %+v", event)
	}
	payload, ok := event.Payload.(collab.FullSyncPayload)
	if !ok {
		t.Fatalf("expected FullSyncPayload, got %T", event.Payload)
	}
	if payload.Session.Code != seeded.Code || len(payload.Session.Members) != 1 {
		t.Fatalf("snapshot session mismatch: %+v", payload.Session)
	}
	if payload.Canvas == nil || payload.Canvas.BackgroundColor != "#0f172a" || len(payload.Canvas.Icons) != 1 {
		t.Fatalf("snapshot canvas mismatch: %+v", payload.Canvas)
	}
}

func TestWebSocketFansOutBetweenPeers(t *testing.T) {
	relay := newTestRelay(t)
	seeded := relay.seedSession(t)

	server := httptest.NewServer(relay.handler)
	defer server.Close()

	host := dialPeer(t, server, seeded.Code, "host-1")
	guest := dialPeer(t, server, seeded.Code, "guest-1")
	readEvent(t, host)
	readEvent(t, guest)

	outbound := collab.Event{
		Type:            collab.EventChatMessage,
		MemberID:        "guest-1",
		SessionCode:     seeded.Code,
		TimestampMillis: 2000,
		Payload: collab.ChatMessagePayload{Message: collab.ChatMessage{
			ID: "msg-1", MemberID: "guest-1", MemberName: "Bob", Text: "hi", TimestampMillis: 2000,
		}},
	}
	if err := guest.WriteJSON(outbound); err != nil {
		t.Fatalf("unexpected write error: %v", err)
	}

	received := readEvent(t, host)
	if received.Type != collab.EventChatMessage || received.MemberID != "guest-1" {
		t.Fatalf("unexpected fan-out frame: %+v", received)
	}
	payload, ok := received.Payload.(collab.ChatMessagePayload)
	if !ok || payload.Message.Text != "hi" {
		t.Fatalf("unexpected chat payload: %+v", received.Payload)
	}

	// The relay folds the chat into the stored session for the next
	// late joiner's catch-up.
	deadline := time.Now().Add(2 * time.Second)
	for {
		stored, err := relay.store.GetSession(context.Background(), seeded.Code)
		if err == nil && stored != nil && len(stored.Messages) == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("chat message was not persisted, got %+v, %v", stored, err)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWebSocketDisconnectAnnouncesLeave(t *testing.T) {
	relay := newTestRelay(t)
	seeded := relay.seedSession(t)

	server := httptest.NewServer(relay.handler)
	defer server.Close()

	host := dialPeer(t, server, seeded.Code, "host-1")
	guest := dialPeer(t, server, seeded.Code, "guest-1")
	readEvent(t, host)
	readEvent(t, guest)

	_ = guest.Close()

	event := readEvent(t, host)
	if event.Type != collab.EventMemberLeave {
		t.Fatalf("expected MEMBER_LEAVE after disconnect, got %+v", event)
	}
	payload, ok := event.Payload.(collab.MemberLeavePayload)
	if !ok || payload.MemberID != "guest-1" {
		t.Fatalf("unexpected leave payload: %+v", event.Payload)
	}
}

func TestWebSocketRejectsBadAttach(t *testing.T) {
	relay := newTestRelay(t)
	relay.seedSession(t)

	server := httptest.NewServer(relay.handler)
	defer server.Close()

	missingMember, err := http.Get(server.URL + "/ws/ABC234")
	if err != nil {
		t.Fatalf("unexpected request error: %v", err)
	}
	defer func() { _ = missingMember.Body.Close() }()
	if missingMember.StatusCode != http.StatusBadRequest {
		t.Fatalf("attach without memberId should 400, got %d", missingMember.StatusCode)
	}

	unknownSession, err := http.Get(server.URL + "/ws/ZZZZ22?memberId=host-1")
	if err != nil {
		t.Fatalf("unexpected request error: %v", err)
	}
	defer func() { _ = unknownSession.Body.Close() }()
	if unknownSession.StatusCode != http.StatusNotFound {
		t.Fatalf("attach to unknown session should 404, got %d", unknownSession.StatusCode)
	}
}
