package redis

import (
	"context"
	"time"
)

// IncrWithTTL increments key and gives it ttl unless it already has one.
// EXPIRE NX runs on every call so a counter orphaned by a failed expire
// still ages out. Requires Redis 7.
func (c *Client) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	s, err := c.cmd()
	if err != nil {
		return 0, err
	}
	count, err := s.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if ttl > 0 {
		if err := s.ExpireNX(ctx, key, ttl).Err(); err != nil {
			return count, err
		}
	}
	return count, nil
}

// FixedWindowAllow counts one hit against scope and reports whether it is
// still within limit for the current window.
func (c *Client) FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error) {
	count, err := c.IncrWithTTL(ctx, c.RateLimitKey(scope), window)
	if err != nil {
		return false, 0, err
	}
	return count <= limit, count, nil
}

// RetryAfter returns how long until the window for scope resets, or zero when
// no window is open.
func (c *Client) RetryAfter(ctx context.Context, scope string) (time.Duration, error) {
	s, err := c.cmd()
	if err != nil {
		return 0, err
	}
	ttl, err := s.TTL(ctx, c.RateLimitKey(scope)).Result()
	if err != nil || ttl < 0 {
		return 0, err
	}
	return ttl, nil
}

// AcquireCooldown sets a marker for ttl and reports false while one is still live.
func (c *Client) AcquireCooldown(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return c.SetNX(ctx, key, time.Now().UTC().Unix(), ttl)
}
