package idempotency

import (
	"context"
	"sync"
	"time"

	"github.com/fintova/paycore/internal/domain"
)

type memoryEntry struct {
	record    domain.TransactionRecord
	expiresAt time.Time
}

// MemoryStore keeps records in process memory. Suitable for tests and
// single-instance deployments; distributed deployments use the Postgres or
// DynamoDB backends.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryStore creates a store with the standard retention window.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     RetentionWindow,
		now:     time.Now,
	}
}

func storeKey(ownerID, token string) string {
	return ownerID + ":" + token
}

func (s *MemoryStore) Get(_ context.Context, ownerID, token string) (*domain.TransactionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[storeKey(ownerID, token)]
	if !ok || s.now().After(entry.expiresAt) {
		return nil, ErrNotFound
	}
	record := entry.record
	return &record, nil
}

func (s *MemoryStore) Create(_ context.Context, ownerID, token, transactionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := storeKey(ownerID, token)
	now := s.now()
	if entry, ok := s.entries[key]; ok && now.Before(entry.expiresAt) {
		return ErrConflict
	}

	s.entries[key] = memoryEntry{
		record: domain.TransactionRecord{
			OwnerUserID:   ownerID,
			Token:         token,
			TransactionID: transactionID,
			State:         domain.TxPending,
			CreatedAt:     now,
		},
		expiresAt: now.Add(s.ttl),
	}

	s.cleanupExpiredLocked(now)
	return nil
}

func (s *MemoryStore) SetState(_ context.Context, ownerID, token string, state domain.TxState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := storeKey(ownerID, token)
	entry, ok := s.entries[key]
	if !ok || s.now().After(entry.expiresAt) {
		return ErrNotFound
	}
	entry.record.State = state
	s.entries[key] = entry
	return nil
}

// cleanupExpiredLocked removes expired entries. Must be called with mu held.
func (s *MemoryStore) cleanupExpiredLocked(now time.Time) {
	for key, entry := range s.entries {
		if now.After(entry.expiresAt) {
			delete(s.entries, key)
		}
	}
}

var _ Store = (*MemoryStore)(nil)
