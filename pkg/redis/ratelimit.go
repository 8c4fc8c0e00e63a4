package redis

import (
	"context"
	"strconv"
	"time"
)

// RateLimitKey is the counter key of scope for the window starting at windowStart.
func RateLimitKey(scope string, windowStart time.Time) string {
	return key("rate_limit", scope, strconv.FormatInt(windowStart.Unix(), 10))
}

// FixedWindowAllow counts one hit against scope in the current window and reports whether
// the count is still within limit. Each window gets its own key, so a lost EXPIRE only
// leaks one counter instead of pinning the scope shut.
func (c *Client) FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error) {
	if c.store == nil {
		return false, 0, errNotInitialized
	}
	if window <= 0 {
		window = time.Minute
	}
	k := RateLimitKey(scope, c.clock().Truncate(window))
	count, err := c.store.Incr(ctx, k).Result()
	if err != nil {
		return false, 0, err
	}
	if count == 1 {
		if err := c.store.Expire(ctx, k, window).Err(); err != nil {
			return true, count, err
		}
	}
	return count <= limit, count, nil
}
