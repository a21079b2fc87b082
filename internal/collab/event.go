package collab

import (
	"encoding/json"
	"errors"
	"fmt"
)

// EventType tags the wire payload of a sync event.
type EventType string

const (
	EventMemberJoin   EventType = "MEMBER_JOIN"
	EventMemberLeave  EventType = "MEMBER_LEAVE"
	EventMemberUpdate EventType = "MEMBER_UPDATE"
	EventCursorMove   EventType = "CURSOR_MOVE"
	EventChatMessage  EventType = "CHAT_MESSAGE"
	EventCanvasUpdate EventType = "CANVAS_UPDATE"
	EventElementLock  EventType = "ELEMENT_LOCK"
	EventFullSync     EventType = "FULL_SYNC"
)

// ErrUnknownEventType indicates a wire event whose type tag is not part of
// the protocol.
var ErrUnknownEventType = errors.New("collab: unknown event type")

// EventPayload is the closed set of payload shapes; one concrete type per
// event type, so the reconciliation switch is exhaustive at compile time.
type EventPayload interface {
	eventType() EventType
}

// MemberJoinPayload announces a new roster member.
type MemberJoinPayload struct {
	Member Member `json:"member"`
}

// MemberLeavePayload announces a departing member.
type MemberLeavePayload struct {
	MemberID string `json:"memberId"`
}

// MemberUpdatePayload replaces a roster record wholesale, e.g. on a
// permission change.
type MemberUpdatePayload struct {
	Member Member `json:"member"`
}

// CursorMovePayload carries raw coordinates plus the sender's display name
// and color, denormalized so receivers need no roster lookup.
type CursorMovePayload struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Name  string  `json:"name"`
	Color string  `json:"color"`
}

// ChatMessagePayload carries one chat message.
type ChatMessagePayload struct {
	Message ChatMessage `json:"message"`
}

// CanvasUpdatePayload carries a partial-or-full canvas snapshot.
type CanvasUpdatePayload struct {
	CanvasPatch
}

// ElementLockPayload marks an element as locked or released by a member.
type ElementLockPayload struct {
	ElementID string `json:"elementId"`
	MemberID  string `json:"memberId"`
	Locked    bool   `json:"locked"`
}

// FullSyncPayload replaces the receiver's entire session and, when present,
// the canvas snapshot. Used for bulk catch-up of late joiners.
type FullSyncPayload struct {
	Session Session      `json:"session"`
	Canvas  *CanvasState `json:"canvas,omitempty"`
}

func (MemberJoinPayload) eventType() EventType   { return EventMemberJoin }
func (MemberLeavePayload) eventType() EventType  { return EventMemberLeave }
func (MemberUpdatePayload) eventType() EventType { return EventMemberUpdate }
func (CursorMovePayload) eventType() EventType   { return EventCursorMove }
func (ChatMessagePayload) eventType() EventType  { return EventChatMessage }
func (CanvasUpdatePayload) eventType() EventType { return EventCanvasUpdate }
func (ElementLockPayload) eventType() EventType  { return EventElementLock }
func (FullSyncPayload) eventType() EventType     { return EventFullSync }

// Event is the wire unit: a typed, timestamped notification broadcast to
// all other session participants. Events are transient; durability comes
// from the shared state store, not an event log.
type Event struct {
	Type            EventType    `json:"type"`
	MemberID        string       `json:"memberId"`
	SessionCode     string       `json:"sessionCode"`
	TimestampMillis int64        `json:"timestamp"`
	Payload         EventPayload `json:"payload,omitempty"`
}

type eventEnvelope struct {
	Type            EventType       `json:"type"`
	MemberID        string          `json:"memberId"`
	SessionCode     string          `json:"sessionCode"`
	TimestampMillis int64           `json:"timestamp"`
	Payload         json.RawMessage `json:"payload,omitempty"`
}

// UnmarshalJSON decodes the envelope and then the concrete payload selected
// by the type tag.
func (e *Event) UnmarshalJSON(data []byte) error {
	var envelope eventEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return err
	}

	payload, err := decodePayload(envelope.Type, envelope.Payload)
	if err != nil {
		return err
	}

	e.Type = envelope.Type
	e.MemberID = envelope.MemberID
	e.SessionCode = envelope.SessionCode
	e.TimestampMillis = envelope.TimestampMillis
	e.Payload = payload
	return nil
}

func decodePayload(eventType EventType, raw json.RawMessage) (EventPayload, error) {
	switch eventType {
	case EventMemberJoin:
		return unmarshalPayload[MemberJoinPayload](raw)
	case EventMemberLeave:
		return unmarshalPayload[MemberLeavePayload](raw)
	case EventMemberUpdate:
		return unmarshalPayload[MemberUpdatePayload](raw)
	case EventCursorMove:
		return unmarshalPayload[CursorMovePayload](raw)
	case EventChatMessage:
		return unmarshalPayload[ChatMessagePayload](raw)
	case EventCanvasUpdate:
		return unmarshalPayload[CanvasUpdatePayload](raw)
	case EventElementLock:
		return unmarshalPayload[ElementLockPayload](raw)
	case EventFullSync:
		return unmarshalPayload[FullSyncPayload](raw)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, eventType)
	}
}

func unmarshalPayload[T EventPayload](raw json.RawMessage) (EventPayload, error) {
	var payload T
	if len(raw) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}
