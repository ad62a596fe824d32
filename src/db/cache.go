package db

import (
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
)

// Cache holds per-user read models. Keys are tracked per user so everything
// a sync rewrites can be dropped in one call.
//
// Every clear advances a clock. A reader takes Generation before loading from
// the store and hands it to Set, which refuses the value if the user was
// cleared in between.
type Cache struct {
	store *ristretto.Cache
	ttl   time.Duration

	mu           sync.Mutex
	userKeys     map[int64]map[string]struct{}
	clock        uint64
	clearedAt    map[int64]uint64
	allClearedAt uint64
}

func NewCache(ttl time.Duration) (*Cache, error) {
	store, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10000, // number of keys to track frequency of
		MaxCost:     10000,
		BufferItems: 64, // number of keys per Get buffer
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}
	return &Cache{
		store:     store,
		ttl:       ttl,
		userKeys:  make(map[int64]map[string]struct{}),
		clearedAt: make(map[int64]uint64),
	}, nil
}

func AccountsKey(userID int64) string {
	return fmt.Sprintf("accounts:%d", userID)
}

func NetWorthKey(userID int64) string {
	return fmt.Sprintf("net_worth:%d", userID)
}

func SyncHistoryKey(userID int64) string {
	return fmt.Sprintf("sync_history:%d", userID)
}

func (c *Cache) Get(key string) (interface{}, bool) {
	return c.store.Get(key)
}

// Generation returns the token a reader passes to Set.
func (c *Cache) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clock
}

// Set stores value under key and waits for it to become visible to Get. It
// reports false, storing nothing, when the user's entries were cleared after
// gen was taken.
func (c *Cache) Set(userID int64, gen uint64, key string, value interface{}) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.clearedAt[userID] > gen || c.allClearedAt > gen {
		return false
	}

	keys, ok := c.userKeys[userID]
	if !ok {
		keys = make(map[string]struct{})
		c.userKeys[userID] = keys
	}
	keys[key] = struct{}{}

	if c.ttl > 0 {
		c.store.SetWithTTL(key, value, 1, c.ttl)
	} else {
		c.store.Set(key, value, 1)
	}
	c.store.Wait()
	return true
}

func (c *Cache) ClearUser(userID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clock++
	c.clearedAt[userID] = c.clock
	for key := range c.userKeys[userID] {
		c.store.Del(key)
	}
	delete(c.userKeys, userID)
}

func (c *Cache) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clock++
	c.allClearedAt = c.clock
	c.clearedAt = make(map[int64]uint64)
	c.store.Clear()
	c.userKeys = make(map[int64]map[string]struct{})
}

func (c *Cache) Close() {
	c.store.Close()
}
