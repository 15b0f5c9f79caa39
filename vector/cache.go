package vector

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Cache keeps one loaded Handle per location for the process lifetime.
// Handles are reference counted: Invalidate drops the cached handle so the
// next Acquire reloads, while leases already handed out keep using the old
// handle until they are released.
type Cache struct {
	store Store
	log   *zap.Logger

	mu      sync.Mutex
	entries map[string]*cacheEntry
	gens    map[string]uint64
}

type cacheEntry struct {
	handle Handle
	refs   int
	stale  bool
}

func NewCache(store Store) *Cache {
	return &Cache{
		store:   store,
		log:     zap.L().With(zap.String("component", "index_cache")),
		entries: make(map[string]*cacheEntry),
		gens:    make(map[string]uint64),
	}
}

// Lease is a borrowed handle. Release must be called exactly once.
type Lease struct {
	Handle

	once    sync.Once
	release func()
}

func (l *Lease) Release() {
	l.once.Do(l.release)
}

func (c *Cache) Acquire(ctx context.Context, location string) (*Lease, error) {
	c.mu.Lock()
	if e, ok := c.entries[location]; ok {
		lease := c.lease(e)
		c.mu.Unlock()
		return lease, nil
	}
	gen := c.gens[location]
	c.mu.Unlock()

	handle, err := c.store.Load(ctx, location)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// another caller may have loaded it meanwhile
	if e, ok := c.entries[location]; ok {
		handle.Close()
		return c.lease(e), nil
	}

	// the index was replaced while loading; serve this caller but do not
	// cache what may be the previous index
	if c.gens[location] != gen {
		e := &cacheEntry{handle: handle, stale: true}
		return c.lease(e), nil
	}

	e := &cacheEntry{handle: handle}
	c.entries[location] = e

	c.log.Info("index loaded",
		zap.String("location", location),
		zap.Int("records", handle.Len()),
		zap.Int("dimension", handle.Dimension()),
	)

	return c.lease(e), nil
}

// lease must be called with c.mu held.
func (c *Cache) lease(e *cacheEntry) *Lease {
	e.refs++

	return &Lease{
		Handle: e.handle,
		release: func() {
			c.mu.Lock()
			defer c.mu.Unlock()

			e.refs--
			if e.stale && e.refs == 0 {
				c.closeHandle(e)
			}
		},
	}
}

// Invalidate forgets the cached handle for location.
func (c *Cache) Invalidate(location string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gens[location]++

	e, ok := c.entries[location]
	if !ok {
		return
	}

	delete(c.entries, location)

	e.stale = true
	if e.refs == 0 {
		c.closeHandle(e)
	}
}

// Close drops every entry. Outstanding leases close their handle on release.
func (c *Cache) Close() error {
	c.mu.Lock()
	locations := make([]string, 0, len(c.entries))
	for location := range c.entries {
		locations = append(locations, location)
	}
	c.mu.Unlock()

	for _, location := range locations {
		c.Invalidate(location)
	}

	return nil
}

func (c *Cache) closeHandle(e *cacheEntry) {
	if err := e.handle.Close(); err != nil {
		c.log.Error(err.Error())
	}
}
