package entitlement

import (
	"context"
	"sync"
)

// MemoryQuotaStore counts quota consumption in process memory. Suitable for
// single-instance deployments and tests; use RedisQuotaStore when more than
// one instance gates the same users.
type MemoryQuotaStore struct {
	mu     sync.Mutex
	counts map[string]int // key: userID + "|" + day
}

func NewMemoryQuotaStore() *MemoryQuotaStore {
	return &MemoryQuotaStore{counts: make(map[string]int)}
}

func (m *MemoryQuotaStore) Take(_ context.Context, userID, day string, limit int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := userID + "|" + day
	if m.counts[key] >= limit {
		return false, nil
	}
	m.counts[key]++
	return true, nil
}
