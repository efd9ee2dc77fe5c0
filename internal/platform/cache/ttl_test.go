package cache

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newClockedMap(ttl time.Duration) (*ttlMap, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := newTTLMap(ttl)
	m.now = clock.Now
	return m, clock
}

func TestTTLMapExpiry(t *testing.T) {
	m, clock := newClockedMap(time.Minute)
	m.put("item:1", []byte("a"), 0)
	m.put("item:2", []byte("b"), time.Hour)

	if v, ok := m.lookup("item:1"); !ok || string(v) != "a" {
		t.Fatalf("lookup(item:1) = %q, %v, want a, true", v, ok)
	}

	clock.Advance(time.Minute)

	if _, ok := m.lookup("item:1"); ok {
		t.Error("lookup(item:1) should miss at its deadline")
	}
	if v, ok := m.lookup("item:2"); !ok || string(v) != "b" {
		t.Errorf("lookup(item:2) = %q, %v, want b, true", v, ok)
	}
	if m.len() != 2 {
		t.Errorf("len() = %d, want 2 before sweep", m.len())
	}
	if dropped := m.sweep(); dropped != 1 {
		t.Errorf("sweep() = %d, want 1", dropped)
	}
	if m.len() != 1 {
		t.Errorf("len() = %d, want 1 after sweep", m.len())
	}
}

func TestTTLMapRemove(t *testing.T) {
	m := newTTLMap(time.Minute)
	m.put("item:1", nil, 0)
	m.put("item:2", nil, 0)
	m.put("item:", nil, 0)
	m.put("other:1", nil, 0)

	m.remove("item:1", "missing")
	if _, ok := m.lookup("item:1"); ok {
		t.Error("item:1 should be gone")
	}

	m.removePrefix("item:")
	if m.len() != 1 {
		t.Errorf("len() = %d, want 1", m.len())
	}
	if _, ok := m.lookup("other:1"); !ok {
		t.Error("other:1 should survive prefix removal")
	}
}

func TestTTLMapConcurrentAccess(t *testing.T) {
	m := newTTLMap(time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := string(rune('a' + n%26))
			m.put(key, []byte{byte(n)}, 0)
			m.lookup(key)
			if n%10 == 0 {
				m.sweep()
			}
		}(i)
	}
	wg.Wait()
	if m.len() != 26 {
		t.Errorf("len() = %d, want 26", m.len())
	}
}
