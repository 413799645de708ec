package idempotency

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemoryStore 单实例部署用的进程内记录。容量满时淘汰最久未用的键。
type MemoryStore struct {
	mu      sync.Mutex
	records *expirable.LRU[string, Record]
}

func NewMemoryStore(size int, ttl time.Duration) *MemoryStore {
	return &MemoryStore{records: expirable.NewLRU[string, Record](size, nil, ttl)}
}

func (s *MemoryStore) Reserve(ctx context.Context, key string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records.Get(key)
	if !ok {
		s.records.Add(key, Record{})
		return nil, nil
	}
	if !rec.Done {
		return nil, ErrInProgress
	}
	return &rec, nil
}

func (s *MemoryStore) Complete(ctx context.Context, key string, rec Record) error {
	rec.Done = true
	s.mu.Lock()
	s.records.Add(key, rec)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Release(ctx context.Context, key string) error {
	s.mu.Lock()
	s.records.Remove(key)
	s.mu.Unlock()
	return nil
}
