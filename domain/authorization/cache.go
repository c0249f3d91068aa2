package authorization

import (
	"context"
	"sync"
	"time"

	"collective-rides/pkg/utils"
)

// DefaultCapabilityCacheTTL bounds how long a resolved capability set is reused
const DefaultCapabilityCacheTTL = 5 * time.Minute

type cacheEntry struct {
	capabilities []SystemCapability
	expiresAt    time.Time
}

// SystemCapabilityCache memoizes system capabilities per userID:systemRole.
// One instance is built per process and shared by reference.
type SystemCapabilityCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
	clock   utils.Clock

	stopCh  chan struct{}
	doneCh  chan struct{}
	once    sync.Once
	started bool
}

// NewSystemCapabilityCache creates a cache. A non-positive ttl uses the default.
func NewSystemCapabilityCache(ttl time.Duration, clock utils.Clock) *SystemCapabilityCache {
	if ttl <= 0 {
		ttl = DefaultCapabilityCacheTTL
	}
	if clock == nil {
		clock = utils.SystemClock{}
	}
	return &SystemCapabilityCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		clock:   clock,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

func cacheKey(userID string, role SystemRole) string {
	return userID + ":" + string(role)
}

// Get returns a copy of the capabilities for the user, computing and storing them on a miss
func (c *SystemCapabilityCache) Get(userID string, role SystemRole) []SystemCapability {
	key := cacheKey(userID, role)
	now := c.clock.Now()

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || !now.Before(entry.expiresAt) {
		entry = cacheEntry{capabilities: GetSystemCapabilities(role), expiresAt: now.Add(c.ttl)}
		c.mu.Lock()
		c.entries[key] = entry
		c.mu.Unlock()
	}
	return append([]SystemCapability(nil), entry.capabilities...)
}

// Has reports whether the user's system role grants capability
func (c *SystemCapabilityCache) Has(userID string, role SystemRole, capability SystemCapability) bool {
	for _, granted := range c.Get(userID, role) {
		if granted == capability {
			return true
		}
	}
	return false
}

// Invalidate drops the entries cached for userID under every system role
func (c *SystemCapabilityCache) Invalidate(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for role := range systemCapabilities {
		delete(c.entries, cacheKey(userID, role))
	}
}

// Sweep removes expired entries and returns how many were dropped
func (c *SystemCapabilityCache) Sweep() int {
	now := c.clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, entry := range c.entries {
		if !now.Before(entry.expiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of cached entries
func (c *SystemCapabilityCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Start runs the periodic sweep (interval = TTL) until ctx is done or Stop is called
func (c *SystemCapabilityCache) Start(ctx context.Context) {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()

	go func() {
		defer close(c.doneCh)
		ticker := time.NewTicker(c.ttl)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-c.stopCh:
				return
			case <-ticker.C:
				c.Sweep()
			}
		}
	}()
}

// Stop halts the sweep goroutine started by Start and waits for it to exit
func (c *SystemCapabilityCache) Stop() {
	c.once.Do(func() {
		close(c.stopCh)
	})

	c.mu.RLock()
	started := c.started
	c.mu.RUnlock()
	if started {
		<-c.doneCh
	}
}
