// Package directorycache is an optional Redis-backed TTL cache in front of
// directory peer lookups. It is disabled whenever no Redis address is
// configured, and degrades to a cache miss on any Redis error rather than
// failing a connect attempt.
package directorycache

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "harmonydesk:peer:"

// Cache fronts directory.Client.RequestConnection with a TTL cache keyed by
// remote session id.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	log    *slog.Logger
}

// New builds a Cache against addr, or returns (nil, nil) when addr is
// empty: callers treat a nil *Cache as "disabled" and skip straight to the
// directory lookup.
func New(addr string, ttl time.Duration, log *slog.Logger) (*Cache, error) {
	if addr == "" {
		return nil, nil
	}
	if log == nil {
		log = slog.Default()
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}

	client := redis.NewClient(&redis.Options{Addr: addr})

	pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("directorycache: connect to %s: %w", addr, err)
	}

	log.Info("directory cache connected", "addr", addr, "ttl", ttl.String())
	return &Cache{client: client, ttl: ttl, log: log}, nil
}

// Get returns the cached peer address for remoteID, if any. Any Redis
// error is logged and treated as a cache miss.
func (c *Cache) Get(remoteID string) (*net.UDPAddr, bool) {
	if c == nil {
		return nil, false
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	raw, err := c.client.Get(ctx, keyPrefix+remoteID).Result()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.log.Warn("directory cache read failed, falling back to directory lookup", "remote_id", remoteID, "error", err)
		return nil, false
	}

	addr, err := net.ResolveUDPAddr("udp", raw)
	if err != nil {
		c.log.Warn("directory cache entry malformed", "remote_id", remoteID, "error", err)
		return nil, false
	}
	return addr, true
}

// Set caches addr for remoteID. A Redis error is logged and swallowed; the
// next lookup simply misses the cache.
func (c *Cache) Set(remoteID string, addr *net.UDPAddr) {
	if c == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := c.client.Set(ctx, keyPrefix+remoteID, addr.String(), c.ttl).Err(); err != nil {
		c.log.Warn("directory cache write failed", "remote_id", remoteID, "error", err)
	}
}

// Close releases the underlying Redis client.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
