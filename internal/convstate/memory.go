package convstate

import (
	"context"
	"sync"
	"time"

	"github.com/wbarena/arena/internal/contracts"
)

// MemoryStore is a thread-safe in-memory Store, the default for the mock
// provider and for tests.
type MemoryStore struct {
	mu      sync.RWMutex
	handles map[string]*Handle
}

// NewMemoryStore creates an empty in-memory conversation-handle store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{handles: make(map[string]*Handle)}
}

func (s *MemoryStore) Load(ctx context.Context, matchID string, teamID contracts.TeamID) (*Handle, error) {
	if matchID == "" || teamID == "" {
		return nil, ErrInvalidID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.handles[key(matchID, teamID)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *h
	cp.Data = append([]byte(nil), h.Data...)
	return &cp, nil
}

func (s *MemoryStore) Save(ctx context.Context, h *Handle) error {
	if h == nil || h.MatchID == "" || h.TeamID == "" {
		return ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *h
	cp.Data = append([]byte(nil), h.Data...)
	cp.UpdatedAt = time.Now()
	s.handles[key(h.MatchID, h.TeamID)] = &cp
	return nil
}
