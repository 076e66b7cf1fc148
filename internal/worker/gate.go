package worker

import (
	"context"
	"sync"
)

// Gate serialises work per key while leaving different keys fully
// concurrent. Entries are refcounted and dropped once the last waiter for a
// key finishes, so the map never grows with idle users.
type Gate struct {
	mu      sync.Mutex
	entries map[string]*gateEntry
}

type gateEntry struct {
	sem  chan struct{}
	refs int
}

func NewGate() *Gate {
	return &Gate{entries: make(map[string]*gateEntry)}
}

// Do runs fn while holding the key's slot. It blocks until the slot is free
// or the context is done.
func (g *Gate) Do(ctx context.Context, key string, fn func() error) error {
	entry := g.checkout(key)
	defer g.release(key)

	select {
	case entry.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-entry.sem }()

	return fn()
}

func (g *Gate) checkout(key string) *gateEntry {
	g.mu.Lock()
	defer g.mu.Unlock()

	entry, ok := g.entries[key]
	if !ok {
		entry = &gateEntry{sem: make(chan struct{}, 1)}
		g.entries[key] = entry
	}
	entry.refs++
	return entry
}

func (g *Gate) release(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	entry, ok := g.entries[key]
	if !ok {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(g.entries, key)
	}
}
