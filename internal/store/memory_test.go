package store

import (
	"context"
	"testing"

	"github.com/dakshx9/IconCanvas/internal/collab"
)

func TestMemoryStoreMissingKeysReturnNil(t *testing.T) {
	memory := NewMemoryStore()

	session, err := memory.GetSession(context.Background(), "ABC234")
	if err != nil || session != nil {
		t.Fatalf("missing session should be (nil, nil), got %v, %v", session, err)
	}
	state, err := memory.GetCanvas(context.Background(), "ABC234")
	if err != nil || state != nil {
		t.Fatalf("missing canvas should be (nil, nil), got %v, %v", state, err)
	}
}

func TestMemoryStoreSessionRoundTripAndOverwrite(t *testing.T) {
	memory := NewMemoryStore()
	host := collab.NewMember("m-1", "Alice", collab.MemberIdentity{Color: "#ef4444"}, true, 1000)
	session := collab.NewSession("ABC234", "First", host, 1000)

	if err := memory.PutSession(context.Background(), session); err != nil {
		t.Fatalf("unexpected put error: %v", err)
	}

	loaded, err := memory.GetSession(context.Background(), "ABC234")
	if err != nil {
		t.Fatalf("unexpected get error: %v", err)
	}
	if loaded == nil || loaded.Name != "First" || len(loaded.Members) != 1 {
		t.Fatalf("unexpected loaded session: %+v", loaded)
	}

	session.Name = "Second"
	if err := memory.PutSession(context.Background(), session); err != nil {
		t.Fatalf("unexpected overwrite error: %v", err)
	}
	loaded, err = memory.GetSession(context.Background(), "ABC234")
	if err != nil || loaded == nil || loaded.Name != "Second" {
		t.Fatalf("later write should win, got %+v, %v", loaded, err)
	}
}

func TestMemoryStoreReadersDoNotAliasWriters(t *testing.T) {
	memory := NewMemoryStore()
	host := collab.NewMember("m-1", "Alice", collab.MemberIdentity{Color: "#ef4444"}, true, 1000)
	session := collab.NewSession("ABC234", "Board", host, 1000)

	if err := memory.PutSession(context.Background(), session); err != nil {
		t.Fatalf("unexpected put error: %v", err)
	}

	// Mutating the caller's copy after Put must not leak into the store.
	session.Members[0].Name = "Mallory"

	loaded, err := memory.GetSession(context.Background(), "ABC234")
	if err != nil || loaded == nil {
		t.Fatalf("unexpected get error: %v", err)
	}
	if loaded.Members[0].Name != "Alice" {
		t.Fatalf("stored snapshot should be isolated from the writer, got %q", loaded.Members[0].Name)
	}

	// Mutating a read result must not change the next read.
	loaded.Members[0].Name = "Eve"
	reloaded, err := memory.GetSession(context.Background(), "ABC234")
	if err != nil || reloaded == nil || reloaded.Members[0].Name != "Alice" {
		t.Fatalf("reads should be isolated from each other, got %+v, %v", reloaded, err)
	}
}

func TestMemoryStoreCanvasRoundTrip(t *testing.T) {
	memory := NewMemoryStore()
	state := &collab.CanvasState{
		BackgroundColor: "#ffffff",
		Icons:           []collab.CanvasIcon{{ID: "icon-1", X: 10, Y: 20}},
		LayerOrder:      []string{"icon-1"},
	}

	if err := memory.PutCanvas(context.Background(), "ABC234", state); err != nil {
		t.Fatalf("unexpected put error: %v", err)
	}
	loaded, err := memory.GetCanvas(context.Background(), "ABC234")
	if err != nil || loaded == nil {
		t.Fatalf("unexpected get error: %v", err)
	}
	if len(loaded.Icons) != 1 || loaded.Icons[0].ID != "icon-1" {
		t.Fatalf("unexpected loaded canvas: %+v", loaded)
	}
}

func TestMemoryStoreDeleteSessionIsIdempotent(t *testing.T) {
	memory := NewMemoryStore()
	host := collab.NewMember("m-1", "Alice", collab.MemberIdentity{Color: "#ef4444"}, true, 1000)
	session := collab.NewSession("ABC234", "Board", host, 1000)

	if err := memory.PutSession(context.Background(), session); err != nil {
		t.Fatalf("unexpected put error: %v", err)
	}
	if err := memory.DeleteSession(context.Background(), "ABC234"); err != nil {
		t.Fatalf("unexpected delete error: %v", err)
	}
	loaded, err := memory.GetSession(context.Background(), "ABC234")
	if err != nil || loaded != nil {
		t.Fatalf("deleted session should be gone, got %+v, %v", loaded, err)
	}
	if err := memory.DeleteSession(context.Background(), "ABC234"); err != nil {
		t.Fatalf("deleting an absent key should be a no-op, got %v", err)
	}
}
