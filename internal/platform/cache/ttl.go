package cache

import (
	"strings"
	"sync"
	"time"
)

// ttlMap holds byte payloads under string keys until their deadline.
// Expired entries stay invisible to lookups and are reclaimed by sweep.
type ttlMap struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

type entry struct {
	payload  []byte
	deadline time.Time
}

func (e entry) live(at time.Time) bool {
	return at.Before(e.deadline)
}

func newTTLMap(ttl time.Duration) *ttlMap {
	return &ttlMap{entries: map[string]entry{}, ttl: ttl, now: time.Now}
}

func (m *ttlMap) lookup(key string) ([]byte, bool) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok || !e.live(m.now()) {
		return nil, false
	}
	return e.payload, true
}

// put stores payload for ttl, or for the map default when ttl <= 0.
func (m *ttlMap) put(key string, payload []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = m.ttl
	}
	deadline := m.now().Add(ttl)
	m.mu.Lock()
	m.entries[key] = entry{payload: payload, deadline: deadline}
	m.mu.Unlock()
}

func (m *ttlMap) remove(keys ...string) {
	m.mu.Lock()
	for _, k := range keys {
		delete(m.entries, k)
	}
	m.mu.Unlock()
}

func (m *ttlMap) removePrefix(prefix string) {
	m.mu.Lock()
	for k := range m.entries {
		if strings.HasPrefix(k, prefix) {
			delete(m.entries, k)
		}
	}
	m.mu.Unlock()
}

// sweep drops expired entries and reports how many went.
func (m *ttlMap) sweep() int {
	at := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	dropped := 0
	for k, e := range m.entries {
		if !e.live(at) {
			delete(m.entries, k)
			dropped++
		}
	}
	return dropped
}

// len counts stored entries, expired ones included.
func (m *ttlMap) len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
