package session

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// memoryStore is a process-local Store. Suitable for single-instance
// deployments; sessions do not survive a restart.
type memoryStore struct {
	c *gocache.Cache
}

// NewMemoryStore returns an in-memory Store. The cache's background janitor
// evicts records expiredRetention past their sliding deadline.
func NewMemoryStore() Store {
	return &memoryStore{c: gocache.New(gocache.NoExpiration, 10*time.Minute)}
}

func (s *memoryStore) Set(_ context.Context, handle string, rec Record) error {
	s.c.Set(handle, rec, time.Until(rec.ExpiresAt)+expiredRetention)
	return nil
}

func (s *memoryStore) Get(_ context.Context, handle string) (Record, error) {
	v, ok := s.c.Get(handle)
	if !ok {
		return Record{}, ErrNotFound
	}
	return v.(Record), nil
}

func (s *memoryStore) Delete(_ context.Context, handle string) error {
	s.c.Delete(handle)
	return nil
}
