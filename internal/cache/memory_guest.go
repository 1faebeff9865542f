package cache

import (
	"context"
	"sync"
	"time"

	"github.com/hy-aurora/unimart-sub000/internal/domain"
)

// DefaultCleanupInterval is how often the background cleanup runs
const DefaultCleanupInterval = time.Minute

type guestEntry struct {
	items     []domain.CartItem
	expiresAt time.Time
}

// MemoryGuestStore implements GuestStore in process memory.
// Carts are lost on restart; it is meant for single-instance and local setups.
type MemoryGuestStore struct {
	mu      sync.Mutex
	entries map[string]*guestEntry
	ttl     time.Duration
	now     func() time.Time

	stopCleanup chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

func NewMemoryGuestStore(ttl, cleanupInterval time.Duration) *MemoryGuestStore {
	s := &MemoryGuestStore{
		entries:     make(map[string]*guestEntry),
		ttl:         ttl,
		now:         time.Now,
		stopCleanup: make(chan struct{}),
	}

	s.wg.Add(1)
	go s.cleanupLoop(cleanupInterval)

	return s
}

func (s *MemoryGuestStore) cleanupLoop(interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.evictExpired()
		case <-s.stopCleanup:
			return
		}
	}
}

func (s *MemoryGuestStore) evictExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for id, entry := range s.entries {
		if !now.Before(entry.expiresAt) {
			delete(s.entries, id)
		}
	}
}

// live returns the entry for guestID, or nil if it is absent or expired. Caller holds mu.
func (s *MemoryGuestStore) live(guestID string) *guestEntry {
	entry, ok := s.entries[guestID]
	if !ok {
		return nil
	}
	if !s.now().Before(entry.expiresAt) {
		delete(s.entries, guestID)
		return nil
	}
	return entry
}

func (s *MemoryGuestStore) Append(_ context.Context, guestID string, items ...domain.CartItem) ([]domain.CartItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.live(guestID)
	if entry == nil {
		entry = &guestEntry{}
		s.entries[guestID] = entry
	}
	entry.items = append(entry.items, items...)
	entry.expiresAt = s.now().Add(s.ttl)

	return cloneItems(entry.items), nil
}

func (s *MemoryGuestStore) Items(_ context.Context, guestID string) ([]domain.CartItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.live(guestID)
	if entry == nil {
		return []domain.CartItem{}, nil
	}
	return cloneItems(entry.items), nil
}

func (s *MemoryGuestStore) Drain(_ context.Context, guestID string) ([]domain.CartItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.live(guestID)
	if entry == nil {
		return []domain.CartItem{}, nil
	}
	delete(s.entries, guestID)
	return entry.items, nil
}

// Close stops the cleanup goroutine.
func (s *MemoryGuestStore) Close() {
	s.stopOnce.Do(func() { close(s.stopCleanup) })
	s.wg.Wait()
}

func cloneItems(items []domain.CartItem) []domain.CartItem {
	out := make([]domain.CartItem, len(items))
	copy(out, items)
	return out
}
