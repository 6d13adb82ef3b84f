package calendar

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/robfig/cron/v3"

	appLog "workoutcal/internal/log"
	"workoutcal/internal/model"
	"workoutcal/internal/observability"
)

const defaultCacheTTL = 5 * time.Minute

// Cache holds rendered calendar responses per user and window. Entries
// expire after the TTL, are dropped for a user on commit, and are flushed
// on a cron schedule so "today" moves on at midnight.
type Cache struct {
	c *gocache.Cache

	genMu sync.Mutex
	epoch uint64
	gens  map[model.UserID]uint64

	mu   sync.Mutex
	cron *cron.Cron
}

// Generation identifies the state of a user's entries. It changes on every
// Invalidate of that user and on every Flush.
type Generation struct {
	epoch, user uint64
}

// NewCache returns an empty cache. ttl <= 0 uses the default.
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Cache{c: gocache.New(ttl, time.Minute), gens: make(map[model.UserID]uint64)}
}

func cacheKey(user model.UserID, key string) string {
	return fmt.Sprintf("%d|%s", int64(user), key)
}

// Get returns the cached value for user/key.
func (c *Cache) Get(user model.UserID, key string) (any, bool) {
	v, ok := c.c.Get(cacheKey(user, key))
	observability.RecordCacheLookup(ok)
	return v, ok
}

// Set stores v for user/key with the default TTL.
func (c *Cache) Set(user model.UserID, key string, v any) {
	c.c.SetDefault(cacheKey(user, key), v)
}

// Generation returns the current generation of user. Take it before reading
// the data that will be passed to SetIfCurrent.
func (c *Cache) Generation(user model.UserID) Generation {
	c.genMu.Lock()
	defer c.genMu.Unlock()
	return Generation{epoch: c.epoch, user: c.gens[user]}
}

// SetIfCurrent stores v only if user was not invalidated since gen was
// taken, and reports whether it did.
func (c *Cache) SetIfCurrent(user model.UserID, gen Generation, key string, v any) bool {
	c.genMu.Lock()
	defer c.genMu.Unlock()
	if gen != (Generation{epoch: c.epoch, user: c.gens[user]}) {
		return false
	}
	c.c.SetDefault(cacheKey(user, key), v)
	return true
}

// Invalidate drops every entry of user.
func (c *Cache) Invalidate(user model.UserID) {
	c.genMu.Lock()
	c.gens[user]++
	c.genMu.Unlock()

	prefix := fmt.Sprintf("%d|", int64(user))
	for k := range c.c.Items() {
		if strings.HasPrefix(k, prefix) {
			c.c.Delete(k)
		}
	}
}

// Flush drops everything.
func (c *Cache) Flush() {
	c.genMu.Lock()
	c.epoch++
	clear(c.gens)
	c.genMu.Unlock()

	c.c.Flush()
}

// Len reports the number of live entries.
func (c *Cache) Len() int {
	return c.c.ItemCount()
}

// Schedule starts flushing the cache on the standard five-field cron
// expression spec, evaluated in loc. A previous schedule is replaced.
func (c *Cache) Schedule(spec string, loc *time.Location) error {
	if loc == nil {
		loc = time.Local
	}
	cr := cron.New(cron.WithLocation(loc))
	if _, err := cr.AddFunc(spec, func() {
		c.Flush()
		appLog.Info("calendar cache flushed", "schedule", spec)
	}); err != nil {
		return fmt.Errorf("calendar refresh schedule %q: %w", spec, err)
	}

	c.mu.Lock()
	old := c.cron
	c.cron = cr
	c.mu.Unlock()

	if old != nil {
		<-old.Stop().Done()
	}
	cr.Start()
	appLog.Info("calendar refresh scheduled", "schedule", spec, "tz", loc.String())
	return nil
}

// Stop halts the flush schedule, waiting for a running flush to finish
// or ctx to end.
func (c *Cache) Stop(ctx context.Context) {
	c.mu.Lock()
	cr := c.cron
	c.cron = nil
	c.mu.Unlock()
	if cr == nil {
		return
	}
	select {
	case <-cr.Stop().Done():
	case <-ctx.Done():
	}
}
