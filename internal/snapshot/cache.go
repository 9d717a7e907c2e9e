package snapshot

import (
	"errors"
	"sync/atomic"
)

var (
	ErrNilSnapshot   = errors.New("snapshot is nil")
	ErrStaleSnapshot = errors.New("snapshot is older than the current one")
)

// Cache holds the current snapshot. Reads never block and never see a
// partially built snapshot; Publish swaps the whole reference.
type Cache struct {
	current atomic.Pointer[Snapshot]
}

// NewCache creates a cache serving the empty snapshot
func NewCache() *Cache {
	c := &Cache{}
	c.current.Store(Empty())
	return c
}

// Publish replaces the current snapshot. A snapshot generated before the
// current one is rejected so readers never go back in time.
func (c *Cache) Publish(s *Snapshot) error {
	if s == nil {
		return ErrNilSnapshot
	}
	for {
		old := c.current.Load()
		if s.GeneratedAt.Before(old.GeneratedAt) {
			return ErrStaleSnapshot
		}
		if c.current.CompareAndSwap(old, s) {
			return nil
		}
	}
}

// Current returns the latest published snapshot
func (c *Cache) Current() *Snapshot {
	return c.current.Load()
}
