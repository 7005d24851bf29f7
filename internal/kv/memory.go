package kv

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// gcEvery is how many mutations pass between opportunistic sweeps of expired
// entries. Expiry is also checked lazily on read, so the sweep only bounds
// memory, it does not affect correctness.
const gcEvery = 64

type memCounter struct {
	windowStart time.Time
	window      time.Duration
	count       int64
}

// MemoryCounters is an in-process Counters backend.
type MemoryCounters struct {
	mu       sync.Mutex
	counters map[string]*memCounter
	ops      int

	// staleAfter is how long past its window end a counter may linger
	// before the opportunistic sweep drops it.
	staleAfter time.Duration

	nowFunc func() time.Time
}

// NewMemoryCounters creates an empty in-memory counter store. Counters whose
// window ended more than staleAfter ago are garbage-collected opportunistically.
func NewMemoryCounters(staleAfter time.Duration) *MemoryCounters {
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}
	return &MemoryCounters{
		counters:   make(map[string]*memCounter),
		staleAfter: staleAfter,
		nowFunc:    time.Now,
	}
}

// WithNow sets a fixed clock for testing.
func (m *MemoryCounters) WithNow(now func() time.Time) *MemoryCounters {
	m.nowFunc = now
	return m
}

// Incr implements Counters.
func (m *MemoryCounters) Incr(_ context.Context, key string, window time.Duration) (int64, time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.nowFunc()

	m.ops++
	if m.ops%gcEvery == 0 {
		m.sweep(now)
	}

	c, ok := m.counters[key]
	if !ok || now.Sub(c.windowStart) > c.window {
		c = &memCounter{windowStart: now, window: window, count: 0}
		m.counters[key] = c
	}
	c.count++
	return c.count, c.windowStart.Add(c.window), nil
}

// Len reports the number of live counters, for tests.
func (m *MemoryCounters) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.counters)
}

func (m *MemoryCounters) sweep(now time.Time) {
	for key, c := range m.counters {
		if now.Sub(c.windowStart.Add(c.window)) > m.staleAfter {
			delete(m.counters, key)
		}
	}
}

type memMarker struct {
	key       string
	expiresAt time.Time
}

// MemoryMarkers is an in-process Markers backend bounded to a maximum number
// of entries; the oldest markers are evicted once the cap is exceeded.
type MemoryMarkers struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // oldest first, of *memMarker
	cap     int

	nowFunc func() time.Time
}

// NewMemoryMarkers creates an in-memory marker store holding at most cap
// entries.
func NewMemoryMarkers(cap int) *MemoryMarkers {
	if cap <= 0 {
		cap = 10_000
	}
	return &MemoryMarkers{
		entries: make(map[string]*list.Element),
		order:   list.New(),
		cap:     cap,
		nowFunc: time.Now,
	}
}

// WithNow sets a fixed clock for testing.
func (m *MemoryMarkers) WithNow(now func() time.Time) *MemoryMarkers {
	m.nowFunc = now
	return m
}

// PutIfAbsent implements Markers.
func (m *MemoryMarkers) PutIfAbsent(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.nowFunc()

	if el, ok := m.entries[key]; ok {
		mk := el.Value.(*memMarker)
		if mk.expiresAt.IsZero() || now.Before(mk.expiresAt) {
			return false, nil
		}
		// Expired marker: treat as absent.
		m.order.Remove(el)
		delete(m.entries, key)
	}

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = now.Add(ttl)
	}
	el := m.order.PushBack(&memMarker{key: key, expiresAt: expiresAt})
	m.entries[key] = el

	for m.order.Len() > m.cap {
		oldest := m.order.Front()
		m.order.Remove(oldest)
		delete(m.entries, oldest.Value.(*memMarker).key)
	}
	return true, nil
}

// Len reports the number of live markers, for tests.
func (m *MemoryMarkers) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order.Len()
}
