package cache

import (
	"strings"
	"sync"
	"time"
)

// Cache is the narrow surface the engine reads and invalidates through.
// Implementations must be safe for concurrent use. The engine stays fully
// correct when every Get misses, so Nop is a valid implementation.
type Cache interface {
	Get(key string) (any, bool)
	Set(key string, value any, ttl time.Duration)
	Delete(key string)
	DeleteByPrefix(prefix string)
}

type entry struct {
	value     any
	expiresAt time.Time
}

// Memory is an in-process TTL cache. A janitor goroutine sweeps expired
// entries; reads also skip entries past their deadline so correctness never
// depends on the sweep.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]entry
	stop    chan struct{}
	once    sync.Once
}

// NewMemory creates a Memory cache whose janitor runs every interval.
func NewMemory(interval time.Duration) *Memory {
	if interval <= 0 {
		interval = time.Minute
	}
	m := &Memory{
		entries: make(map[string]entry),
		stop:    make(chan struct{}),
	}
	go m.janitor(interval)
	return m
}

func (m *Memory) Get(key string) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		return nil, false
	}
	return e.value, true
}

// Set stores value under key. A non-positive ttl stores it without expiry.
func (m *Memory) Set(key string, value any, ttl time.Duration) {
	e := entry{value: value}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}
	m.mu.Lock()
	m.entries[key] = e
	m.mu.Unlock()
}

func (m *Memory) Delete(key string) {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
}

func (m *Memory) DeleteByPrefix(prefix string) {
	m.mu.Lock()
	for key := range m.entries {
		if strings.HasPrefix(key, prefix) {
			delete(m.entries, key)
		}
	}
	m.mu.Unlock()
}

// Len reports the number of live entries, expired ones included until the
// janitor sweeps them.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Close stops the janitor goroutine.
func (m *Memory) Close() {
	m.once.Do(func() { close(m.stop) })
}

func (m *Memory) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.sweep()
		case <-m.stop:
			return
		}
	}
}

func (m *Memory) sweep() {
	now := time.Now()
	m.mu.Lock()
	for key, e := range m.entries {
		if !e.expiresAt.IsZero() && now.After(e.expiresAt) {
			delete(m.entries, key)
		}
	}
	m.mu.Unlock()
}

// Nop is the disabled cache: misses on every read, swallows every write.
type Nop struct{}

func (Nop) Get(string) (any, bool)         { return nil, false }
func (Nop) Set(string, any, time.Duration) {}
func (Nop) Delete(string)                  {}
func (Nop) DeleteByPrefix(string)          {}
