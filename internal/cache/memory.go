package cache

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Memory is a thread-safe in-process cache.
type Memory struct {
	data       sync.Map
	defaultTTL time.Duration
	maxEntries int
	stopCh     chan struct{}
	closed     atomic.Bool
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewMemory creates an in-process cache. maxEntries of 0 means unlimited.
// A background goroutine sweeps expired entries every minute until Close.
func NewMemory(defaultTTL time.Duration, maxEntries int) *Memory {
	c := &Memory{
		defaultTTL: defaultTTL,
		maxEntries: maxEntries,
		stopCh:     make(chan struct{}),
	}
	go c.sweepLoop(time.Minute)
	return c
}

// Get returns the value for key, or ErrMiss.
func (c *Memory) Get(_ context.Context, key string) ([]byte, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}

	val, ok := c.data.Load(key)
	if !ok {
		return nil, ErrMiss
	}

	entry := val.(*memoryEntry)
	if time.Now().After(entry.expiresAt) {
		c.data.Delete(key)
		return nil, ErrMiss
	}

	// Copy so callers cannot mutate the cached bytes.
	result := make([]byte, len(entry.value))
	copy(result, entry.value)
	return result, nil
}

// Set stores value under key.
func (c *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if c.closed.Load() {
		return ErrClosed
	}

	if ttl == 0 {
		ttl = c.defaultTTL
	}

	if c.maxEntries > 0 && c.count() >= c.maxEntries {
		c.removeExpired()
	}

	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	c.data.Store(key, &memoryEntry{
		value:     valueCopy,
		expiresAt: time.Now().Add(ttl),
	})
	return nil
}

// Delete removes a single key.
func (c *Memory) Delete(_ context.Context, key string) error {
	if c.closed.Load() {
		return ErrClosed
	}
	c.data.Delete(key)
	return nil
}

// DeletePrefix removes all keys starting with prefix.
func (c *Memory) DeletePrefix(_ context.Context, prefix string) error {
	if c.closed.Load() {
		return ErrClosed
	}

	c.data.Range(func(key, _ any) bool {
		if strings.HasPrefix(key.(string), prefix) {
			c.data.Delete(key)
		}
		return true
	})
	return nil
}

// Close stops the sweep goroutine.
func (c *Memory) Close() error {
	if c.closed.CompareAndSwap(false, true) {
		close(c.stopCh)
	}
	return nil
}

func (c *Memory) count() int {
	count := 0
	c.data.Range(func(_, _ any) bool {
		count++
		return true
	})
	return count
}

func (c *Memory) removeExpired() {
	now := time.Now()
	c.data.Range(func(key, value any) bool {
		if now.After(value.(*memoryEntry).expiresAt) {
			c.data.Delete(key)
		}
		return true
	})
}

func (c *Memory) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.removeExpired()
		case <-c.stopCh:
			return
		}
	}
}

var _ Cache = (*Memory)(nil)
