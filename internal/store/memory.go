// Package store provides shared state store implementations: an in-memory
// map for peers sharing one process, a SQLite-backed store for a durable
// relay, and a Redis-backed store for multi-relay deployments. All of them
// hold only the latest value per key with last-write-wins overwrite
// semantics and no versioning.
package store

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/dakshx9/IconCanvas/internal/collab"
)

func sessionKey(code string) string { return "session-" + code }
func canvasKey(code string) string  { return "canvas-" + code }

// MemoryStore keeps session and canvas snapshots in a process-local map.
// Values round-trip through JSON so readers never alias a writer's slices.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string][]byte)}
}

// GetSession returns the latest session snapshot, or (nil, nil) when the
// code has never been written.
func (s *MemoryStore) GetSession(_ context.Context, code string) (*collab.Session, error) {
	var session collab.Session
	found, err := s.get(sessionKey(code), &session)
	if err != nil || !found {
		return nil, err
	}
	return &session, nil
}

// PutSession overwrites the stored snapshot for the session's code.
func (s *MemoryStore) PutSession(_ context.Context, session *collab.Session) error {
	return s.put(sessionKey(session.Code), session)
}

// DeleteSession removes the session snapshot. Deleting an absent key is a
// no-op.
func (s *MemoryStore) DeleteSession(_ context.Context, code string) error {
	s.mu.Lock()
	delete(s.entries, sessionKey(code))
	s.mu.Unlock()
	return nil
}

// GetCanvas returns the latest canvas snapshot, or (nil, nil) when absent.
func (s *MemoryStore) GetCanvas(_ context.Context, code string) (*collab.CanvasState, error) {
	var state collab.CanvasState
	found, err := s.get(canvasKey(code), &state)
	if err != nil || !found {
		return nil, err
	}
	return &state, nil
}

// PutCanvas overwrites the stored canvas snapshot for the code.
func (s *MemoryStore) PutCanvas(_ context.Context, code string, state *collab.CanvasState) error {
	return s.put(canvasKey(code), state)
}

func (s *MemoryStore) get(key string, target any) (bool, error) {
	s.mu.RLock()
	encoded, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(encoded, target); err != nil {
		return false, err
	}
	return true, nil
}

func (s *MemoryStore) put(key string, value any) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.entries[key] = encoded
	s.mu.Unlock()
	return nil
}
