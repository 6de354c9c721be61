package adapters

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/Rajchodisetti/stock-insights/internal/observ"
)

// PayloadCache keeps successful provider payloads for a short TTL so repeat
// lookups do not spend budget.
type PayloadCache struct {
	mu      sync.RWMutex
	entries map[string]payloadEntry
	ttl     time.Duration
	maxSize int
	clock   Clock
}

type payloadEntry struct {
	payload  Payload
	cachedAt time.Time
}

// NewPayloadCache creates a cache; ttl <= 0 disables it.
func NewPayloadCache(ttl time.Duration, maxSize int, clock Clock) *PayloadCache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &PayloadCache{
		entries: make(map[string]payloadEntry),
		ttl:     ttl,
		maxSize: maxSize,
		clock:   clock,
	}
}

func cacheKey(function string, sym Symbol, params url.Values) string {
	key := function + "|" + sym.String()
	if len(params) > 0 {
		key += "|" + params.Encode()
	}
	return key
}

// Get returns a fresh entry. Expired entries count as misses. The top level of
// the payload is copied; nested values are shared and must not be modified.
func (c *PayloadCache) Get(key string) (Payload, bool) {
	if c == nil || c.ttl <= 0 {
		return nil, false
	}
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || c.clock.Now().Sub(entry.cachedAt) > c.ttl {
		observ.IncCounter("av_payload_cache_miss_total", nil)
		return nil, false
	}
	observ.IncCounter("av_payload_cache_hit_total", nil)
	return entry.payload.clone(), true
}

func (c *PayloadCache) Set(key string, p Payload) {
	if c == nil || c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	// Simple LRU eviction if cache is full
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		var oldestKey string
		var oldest time.Time
		for k, e := range c.entries {
			if oldestKey == "" || e.cachedAt.Before(oldest) {
				oldestKey, oldest = k, e.cachedAt
			}
		}
		delete(c.entries, oldestKey)
	}
	c.entries[key] = payloadEntry{payload: p.clone(), cachedAt: c.clock.Now()}
	observ.SetGauge("av_payload_cache_size", float64(len(c.entries)), nil)
}

// Cleanup removes expired entries and returns how many were dropped.
func (c *PayloadCache) Cleanup() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	evicted := 0
	for k, e := range c.entries {
		if now.Sub(e.cachedAt) > c.ttl {
			delete(c.entries, k)
			evicted++
		}
	}
	if evicted > 0 {
		observ.IncCounterBy("av_payload_cache_evictions_total", nil, int64(evicted))
	}
	observ.SetGauge("av_payload_cache_size", float64(len(c.entries)), nil)
	return evicted
}

func (c *PayloadCache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (p Payload) clone() Payload {
	if p == nil {
		return nil
	}
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// StartSweeper runs Cleanup every interval in the background until ctx is done.
func (c *PayloadCache) StartSweeper(ctx context.Context, interval time.Duration) {
	if c == nil || interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := c.Cleanup(); n > 0 {
					observ.Debug("av_payload_cache_swept", map[string]any{"evicted": n})
				}
			}
		}
	}()
}
