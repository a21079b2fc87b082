package collab

import (
	"encoding/json"
	"errors"
	"testing"
)

func roundTripEvent(t *testing.T, event Event) Event {
	t.Helper()
	encoded, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("unexpected marshal error: %v", err)
	}
	var decoded Event
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("unexpected unmarshal error: %v", err)
	}
	return decoded
}

func TestEventRoundTripChatMessage(t *testing.T) {
	decoded := roundTripEvent(t, Event{
		Type:            EventChatMessage,
		MemberID:        "m-1",
		SessionCode:     "ABC234",
		TimestampMillis: 1700000000000,
		Payload: ChatMessagePayload{Message: ChatMessage{
			ID: "msg-1", MemberID: "m-1", MemberName: "Alice",
			MemberColor: "#ef4444", Text: "hi", TimestampMillis: 1700000000000,
		}},
	})

	payload, ok := decoded.Payload.(ChatMessagePayload)
	if !ok {
		t.Fatalf("expected ChatMessagePayload, got %T", decoded.Payload)
	}
	if payload.Message.Text != "hi" || payload.Message.MemberName != "Alice" {
		t.Fatalf("unexpected message: %+v", payload.Message)
	}
	if decoded.SessionCode != "ABC234" || decoded.MemberID != "m-1" {
		t.Fatalf("envelope fields lost: %+v", decoded)
	}
}

func TestEventRoundTripCursorMove(t *testing.T) {
	decoded := roundTripEvent(t, Event{
		Type:        EventCursorMove,
		MemberID:    "m-2",
		SessionCode: "ABC234",
		Payload:     CursorMovePayload{X: 120.5, Y: 44, Name: "Bob", Color: "#3b82f6"},
	})

	payload, ok := decoded.Payload.(CursorMovePayload)
	if !ok {
		t.Fatalf("expected CursorMovePayload, got %T", decoded.Payload)
	}
	if payload.X != 120.5 || payload.Y != 44 || payload.Name != "Bob" {
		t.Fatalf("unexpected cursor payload: %+v", payload)
	}
}

func TestEventRoundTripCanvasUpdateKeepsAbsentFieldsAbsent(t *testing.T) {
	background := "#112233"
	decoded := roundTripEvent(t, Event{
		Type:        EventCanvasUpdate,
		MemberID:    "m-1",
		SessionCode: "ABC234",
		Payload:     CanvasUpdatePayload{CanvasPatch: CanvasPatch{BackgroundColor: &background}},
	})

	payload, ok := decoded.Payload.(CanvasUpdatePayload)
	if !ok {
		t.Fatalf("expected CanvasUpdatePayload, got %T", decoded.Payload)
	}
	if payload.BackgroundColor == nil || *payload.BackgroundColor != "#112233" {
		t.Fatalf("expected background to survive, got %+v", payload.CanvasPatch)
	}
	if payload.Icons != nil || payload.Slides != nil || payload.CurrentSlideIndex != nil {
		t.Fatalf("absent fields should stay absent: %+v", payload.CanvasPatch)
	}
}

func TestEventRoundTripFullSync(t *testing.T) {
	host := NewMember("m-1", "Alice", MemberIdentity{Color: "#ef4444"}, true, 1000)
	session := NewSession("ABC234", "Team", host, 1000)
	decoded := roundTripEvent(t, Event{
		Type:        EventFullSync,
		MemberID:    "relay",
		SessionCode: "ABC234",
		Payload: FullSyncPayload{
			Session: *session,
			Canvas:  &CanvasState{BackgroundColor: "#000000"},
		},
	})

	payload, ok := decoded.Payload.(FullSyncPayload)
	if !ok {
		t.Fatalf("expected FullSyncPayload, got %T", decoded.Payload)
	}
	if payload.Session.Code != "ABC234" || len(payload.Session.Members) != 1 {
		t.Fatalf("unexpected session payload: %+v", payload.Session)
	}
	if payload.Canvas == nil || payload.Canvas.BackgroundColor != "#000000" {
		t.Fatalf("unexpected canvas payload: %+v", payload.Canvas)
	}
}

func TestEventRoundTripMemberAndLockPayloads(t *testing.T) {
	member := NewMember("m-3", "Cara", MemberIdentity{Color: "#22c55e"}, false, 2000)

	join := roundTripEvent(t, Event{Type: EventMemberJoin, MemberID: "m-3", SessionCode: "ABC234", Payload: MemberJoinPayload{Member: member}})
	if payload, ok := join.Payload.(MemberJoinPayload); !ok || payload.Member.Name != "Cara" {
		t.Fatalf("unexpected join payload: %+v", join.Payload)
	}

	leave := roundTripEvent(t, Event{Type: EventMemberLeave, MemberID: "m-3", SessionCode: "ABC234", Payload: MemberLeavePayload{MemberID: "m-3"}})
	if payload, ok := leave.Payload.(MemberLeavePayload); !ok || payload.MemberID != "m-3" {
		t.Fatalf("unexpected leave payload: %+v", leave.Payload)
	}

	lock := roundTripEvent(t, Event{Type: EventElementLock, MemberID: "m-3", SessionCode: "ABC234", Payload: ElementLockPayload{ElementID: "icon-1", MemberID: "m-3", Locked: true}})
	if payload, ok := lock.Payload.(ElementLockPayload); !ok || payload.ElementID != "icon-1" || !payload.Locked {
		t.Fatalf("unexpected lock payload: %+v", lock.Payload)
	}
}

func TestEventUnmarshalRejectsUnknownType(t *testing.T) {
	var event Event
	err := json.Unmarshal([]byte(`{"type":"TELEPORT","memberId":"m-1","sessionCode":"ABC234","timestamp":0}`), &event)
	if !errors.Is(err, ErrUnknownEventType) {
		t.Fatalf("expected ErrUnknownEventType, got %v", err)
	}
}
