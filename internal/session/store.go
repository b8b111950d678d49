package session

import (
	"context"
	"sync"
)

// MaxTurns is the number of most recent turns a session keeps (five exchanges).
const MaxTurns = 10

// Role identifies the author of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one role-tagged message in a session transcript.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Store holds bounded chat transcripts keyed by an opaque session key.
//
// Put overwrites the whole transcript and must keep only the most recent
// MaxTurns turns. Clear is idempotent.
type Store interface {
	Get(ctx context.Context, key string) ([]Turn, error)
	Put(ctx context.Context, key string, turns []Turn) error
	Clear(ctx context.Context, key string) error
}

// Truncate returns a copy of the last MaxTurns turns, oldest first.
func Truncate(turns []Turn) []Turn {
	if len(turns) > MaxTurns {
		turns = turns[len(turns)-MaxTurns:]
	}
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}

// MemoryStore is a process-local Store. The mutex only protects the map
// itself; a Get followed by a Put is not atomic, so two callers working on
// the same key can overwrite each other's update.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]Turn
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string][]Turn)}
}

// Get returns a copy of the transcript for key, or an empty slice.
func (s *MemoryStore) Get(_ context.Context, key string) ([]Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turns := s.sessions[key]
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out, nil
}

// Put replaces the transcript for key with the last MaxTurns of turns.
func (s *MemoryStore) Put(_ context.Context, key string, turns []Turn) error {
	trimmed := Truncate(turns)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[key] = trimmed
	return nil
}

// Clear removes the transcript for key. Clearing an unknown key is a no-op.
func (s *MemoryStore) Clear(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, key)
	return nil
}

// Len reports how many sessions are held.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
