package infrastructure

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// TieredCache is a TTL cache with an in-memory L1 and an optional Redis L2.
// L1 is lost on restart, L2 survives it. Entries only leave by expiry.
type TieredCache struct {
	l1     sync.Map      // key -> *cacheEntry
	rdb    *redis.Client // nil if Redis unavailable
	ttl    time.Duration
	prefix string
	log    *logrus.Logger
	now    func() time.Time

	hits   atomic.Int64
	misses atomic.Int64
}

type cacheEntry struct {
	data      []byte
	expiresAt time.Time
}

// NewTieredCache builds the cache. redisURL may be empty to disable L2;
// an unreachable Redis also disables it rather than failing startup.
func NewTieredCache(redisURL string, ttl time.Duration, log *logrus.Logger) *TieredCache {
	c := &TieredCache{ttl: ttl, prefix: "analysis:", log: log, now: time.Now}

	if redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			log.WithError(err).Warn("cache: invalid redis URL, L2 disabled")
		} else {
			rdb := redis.NewClient(opts)
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := rdb.Ping(ctx).Err(); err != nil {
				log.WithError(err).Warn("cache: redis unreachable, L2 disabled")
				_ = rdb.Close()
			} else {
				c.rdb = rdb
				log.WithField("addr", opts.Addr).Info("cache: L2 redis connected")
			}
		}
	}

	log.WithFields(logrus.Fields{"ttl": ttl, "redis": c.rdb != nil}).Info("cache: initialized")
	return c
}

// Get tries L1, then L2. An L2 hit repopulates L1 for the entry's
// remaining Redis lifetime only.
func (c *TieredCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if val, ok := c.l1.Load(key); ok {
		entry := val.(*cacheEntry)
		if c.now().Before(entry.expiresAt) {
			c.hits.Add(1)
			return entry.data, true
		}
		c.l1.Delete(key)
	}

	if c.rdb != nil {
		if data, ok := c.getL2(ctx, key); ok {
			c.hits.Add(1)
			return data, true
		}
	}

	c.misses.Add(1)
	return nil, false
}

func (c *TieredCache) getL2(ctx context.Context, key string) ([]byte, bool) {
	var (
		getCmd *redis.StringCmd
		ttlCmd *redis.DurationCmd
	)
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		getCmd = pipe.Get(ctx, c.prefix+key)
		ttlCmd = pipe.PTTL(ctx, c.prefix+key)
		return nil
	})
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.WithError(err).Debug("cache: L2 get failed")
		}
		return nil, false
	}

	data, err := getCmd.Bytes()
	if err != nil {
		return nil, false
	}
	// -1/-2 come back as negative durations
	remaining := ttlCmd.Val()
	if remaining > c.ttl {
		remaining = c.ttl
	}
	if remaining > 0 {
		c.l1.Store(key, &cacheEntry{data: data, expiresAt: c.now().Add(remaining)})
	}
	return data, true
}

// Set stores value in both tiers. L2 failures are logged and ignored.
func (c *TieredCache) Set(ctx context.Context, key string, value []byte) {
	c.l1.Store(key, &cacheEntry{data: value, expiresAt: c.now().Add(c.ttl)})

	if c.rdb != nil {
		if err := c.rdb.Set(ctx, c.prefix+key, value, c.ttl).Err(); err != nil {
			c.log.WithError(err).Debug("cache: L2 set failed")
		}
	}
}

func (c *TieredCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Sweep removes expired L1 entries and returns how many were dropped.
func (c *TieredCache) Sweep() int {
	now := c.now()
	removed := 0
	c.l1.Range(func(key, val any) bool {
		if entry, ok := val.(*cacheEntry); ok && !now.Before(entry.expiresAt) {
			c.l1.Delete(key)
			removed++
		}
		return true
	})
	return removed
}

// RunCleanup sweeps L1 every interval until ctx is done.
func (c *TieredCache) RunCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := c.Sweep(); n > 0 {
				c.log.WithField("removed", n).Debug("cache: swept expired entries")
			}
		}
	}
}

func (c *TieredCache) Close() error {
	if c.rdb != nil {
		return c.rdb.Close()
	}
	return nil
}
