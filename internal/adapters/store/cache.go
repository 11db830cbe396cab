package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/Pairup/internal/core"
	"github.com/dkeye/Pairup/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const (
	displayKeyPrefix = "pairup:display:"
	// lookupTimeout bounds the shared inner lookup, which outlives any one
	// caller's context.
	lookupTimeout = 5 * time.Second
)

// DisplayCache is a core.Directory that keeps display info in redis in
// front of another directory. Concurrent misses for one principal share a
// single inner lookup; each caller still waits only as long as its own
// context allows. Redis trouble degrades to a direct lookup.
type DisplayCache struct {
	rdb   *redis.Client
	inner core.Directory
	ttl   time.Duration
	group singleflight.Group
}

// NewDisplayCache accepts a nil client, in which case only coalescing
// applies.
func NewDisplayCache(rdb *redis.Client, inner core.Directory, ttl time.Duration) *DisplayCache {
	return &DisplayCache{rdb: rdb, inner: inner, ttl: ttl}
}

func (c *DisplayCache) Lookup(ctx context.Context, p domain.Principal) (domain.Display, error) {
	key := displayKeyPrefix + string(p.ID)
	if d, ok := c.cached(ctx, key); ok {
		return d, nil
	}

	ch := c.group.DoChan(key, func() (any, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lookupTimeout)
		defer cancel()
		return c.inner.Lookup(lctx, p)
	})
	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return domain.Display{}, fmt.Errorf("%w: %w", core.ErrCollaboratorUnavailable, ctx.Err())
	}
	if err := res.Err; err != nil {
		if errors.Is(err, core.ErrNotFound) || errors.Is(err, core.ErrCollaboratorUnavailable) {
			return domain.Display{}, err
		}
		return domain.Display{}, fmt.Errorf("%w: %w", core.ErrCollaboratorUnavailable, err)
	}
	d := res.Val.(domain.Display)
	c.store(ctx, key, d)
	return d, nil
}

func (c *DisplayCache) cached(ctx context.Context, key string) (domain.Display, bool) {
	if c.rdb == nil {
		return domain.Display{}, false
	}
	b, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Debug().Err(err).Str("module", "store.cache").Str("key", key).Msg("cache read failed")
		}
		return domain.Display{}, false
	}
	var d domain.Display
	if err := json.Unmarshal(b, &d); err != nil {
		return domain.Display{}, false
	}
	return d, true
}

func (c *DisplayCache) store(ctx context.Context, key string, d domain.Display) {
	if c.rdb == nil || c.ttl <= 0 {
		return
	}
	b, err := json.Marshal(d)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, b, c.ttl).Err(); err != nil {
		log.Debug().Err(err).Str("module", "store.cache").Str("key", key).Msg("cache write failed")
	}
}

// NewRedis builds a client and pings it once.
func NewRedis(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("%w: ping redis: %w", core.ErrCollaboratorUnavailable, err)
	}
	log.Info().Str("module", "store.cache").Str("addr", addr).Msg("redis connected")
	return rdb, nil
}
