package presence

import (
	"context"
	"sort"
	"sync"
	"time"
)

// DefaultTTL bounds how long an entry survives without a heartbeat.
const DefaultTTL = 5 * time.Minute

// Store tracks which users currently hold at least one live connection.
// Entries are best-effort: TTL expiry is the only eventual-consistency
// guarantee, and nothing correctness-critical may consult this store.
type Store struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[int]*entry
}

type entry struct {
	conns       int
	connectedAt time.Time
	expiresAt   time.Time
}

// NewStore constructs a Store with the given TTL (DefaultTTL when zero).
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[int]*entry),
	}
}

// Connect records one more live connection for the user and refreshes the TTL.
func (s *Store) Connect(userID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	e, ok := s.entries[userID]
	if !ok {
		e = &entry{connectedAt: now}
		s.entries[userID] = e
	}
	e.conns++
	e.expiresAt = now.Add(s.ttl)
}

// Disconnect drops one connection. The entry is removed only when the last
// connection goes away, so a second open tab keeps the user online.
func (s *Store) Disconnect(userID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[userID]
	if !ok {
		return
	}
	e.conns--
	if e.conns <= 0 {
		delete(s.entries, userID)
	}
}

// Heartbeat refreshes the TTL for a user with a live entry.
func (s *Store) Heartbeat(userID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[userID]; ok {
		e.expiresAt = s.now().Add(s.ttl)
	}
}

// IsOnline reports whether the user has an unexpired entry. Best-effort only.
func (s *Store) IsOnline(userID int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[userID]
	return ok && e.expiresAt.After(s.now())
}

// ListOnline returns the user ids with unexpired entries, sorted for
// deterministic output.
func (s *Store) ListOnline() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	ids := make([]int, 0, len(s.entries))
	for userID, e := range s.entries {
		if e.expiresAt.After(now) {
			ids = append(ids, userID)
		}
	}
	sort.Ints(ids)
	return ids
}

// Run sweeps expired entries until the context is cancelled. Expiry covers
// clients that crashed without a disconnect notification.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Store) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for userID, e := range s.entries {
		if !e.expiresAt.After(now) {
			delete(s.entries, userID)
		}
	}
}
