// Package reference loads the reference notes a performance is scored against.
package reference

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/leandrodaf/perfdiff/internal/cache"
	"github.com/leandrodaf/perfdiff/sdk/contracts"
)

// ErrUnknownScore is returned for a score without reference notes.
var ErrUnknownScore = errors.New("unknown score")

// Notes are the reference notes of one score.
type Notes struct {
	ScoreID     string
	ReferenceID string
	Notes       []contracts.NoteEvent
	PageSizes   []float64 // Flat [w0,h0,w1,h1,...].
}

// Provider loads reference notes by score id.
type Provider interface {
	Load(ctx context.Context, scoreID string) (*Notes, error)
}

// Memory is a Provider over notes registered in process.
type Memory struct {
	mu    sync.RWMutex
	items map[string]*Notes
}

// NewMemory creates an empty Memory provider.
func NewMemory() *Memory {
	return &Memory{items: make(map[string]*Notes)}
}

// Put registers n under n.ScoreID.
func (m *Memory) Put(n *Notes) {
	m.mu.Lock()
	m.items[n.ScoreID] = n
	m.mu.Unlock()
}

// Load implements Provider.
func (m *Memory) Load(_ context.Context, scoreID string) (*Notes, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.items[scoreID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownScore, scoreID)
	}
	return n, nil
}

// Cache holds loaded reference notes per score until cleared.
type Cache struct {
	keyed *cache.Keyed[string, *Notes]
}

// NewCache wraps p.
func NewCache(p Provider) *Cache {
	return &Cache{keyed: cache.NewKeyed(p.Load)}
}

// Get returns the notes for scoreID, loading them on first use. Failed loads are retried on the next call.
func (c *Cache) Get(ctx context.Context, scoreID string) (*Notes, error) {
	if scoreID == "" {
		return nil, fmt.Errorf("%w: no score selected", ErrUnknownScore)
	}
	n, err := c.keyed.Get(ctx, scoreID)
	if err != nil {
		return nil, err
	}
	if len(n.Notes) == 0 {
		c.keyed.Invalidate(scoreID)
		return nil, fmt.Errorf("score %s has no reference notes", scoreID)
	}
	return n, nil
}

// Invalidate drops the notes of one score.
func (c *Cache) Invalidate(scoreID string) {
	c.keyed.Invalidate(scoreID)
}

// Clear drops every score.
func (c *Cache) Clear() {
	c.keyed.Clear()
}

// Len is the number of cached scores.
func (c *Cache) Len() int {
	return c.keyed.Len()
}
