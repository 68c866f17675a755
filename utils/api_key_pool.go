package utils

import (
	"errors"
	"math/rand/v2"
	"sync"
	"time"
)

// ErrNoAvailableKeys is returned when every key is blacklisted or the pool is empty.
var ErrNoAvailableKeys = errors.New("no available API keys")

// APIKeyPool rotates API keys, preferring the least used ones and skipping
// keys that recently failed.
type APIKeyPool struct {
	keys        []string
	usageCounts map[string]int
	blacklist   map[string]time.Time
	now         func() time.Time
	pick        func(n int) int
	mu          sync.Mutex
}

// PoolStats is a snapshot of pool health.
type PoolStats struct {
	Total       int
	Available   int
	Blacklisted int
}

// NewAPIKeyPool creates a new API key pool. Empty keys are ignored.
func NewAPIKeyPool(keys []string) *APIKeyPool {
	cleaned := make([]string, 0, len(keys))
	for _, k := range keys {
		if k != "" {
			cleaned = append(cleaned, k)
		}
	}
	return &APIKeyPool{
		keys:        cleaned,
		usageCounts: make(map[string]int),
		blacklist:   make(map[string]time.Time),
		now:         time.Now,
		pick:        rand.IntN,
	}
}

// Len returns the number of configured keys.
func (p *APIKeyPool) Len() int {
	if p == nil {
		return 0
	}
	return len(p.keys)
}

// Acquire returns an available key, choosing randomly among the least used.
func (p *APIKeyPool) Acquire() (string, error) {
	if p == nil {
		return "", ErrNoAvailableKeys
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	available := p.availableLocked()
	if len(available) == 0 {
		return "", ErrNoAvailableKeys
	}

	minUsage := p.usageCounts[available[0]]
	for _, key := range available[1:] {
		if c := p.usageCounts[key]; c < minUsage {
			minUsage = c
		}
	}
	candidates := make([]string, 0, len(available))
	for _, key := range available {
		if p.usageCounts[key] == minUsage {
			candidates = append(candidates, key)
		}
	}

	selected := candidates[p.pick(len(candidates))]
	p.usageCounts[selected]++
	return selected, nil
}

// MarkFailed blacklists a key for retryAfter.
func (p *APIKeyPool) MarkFailed(key string, retryAfter time.Duration) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.blacklist[key] = p.now().Add(retryAfter)
}

// Stats returns usage statistics
func (p *APIKeyPool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	available := len(p.availableLocked())
	return PoolStats{
		Total:       len(p.keys),
		Available:   available,
		Blacklisted: len(p.keys) - available,
	}
}

// availableLocked drops expired blacklist entries and returns usable keys.
// Must be called with lock held.
func (p *APIKeyPool) availableLocked() []string {
	now := p.now()
	available := make([]string, 0, len(p.keys))
	for _, key := range p.keys {
		if until, ok := p.blacklist[key]; ok {
			if now.Before(until) {
				continue
			}
			delete(p.blacklist, key)
		}
		available = append(available, key)
	}
	return available
}
