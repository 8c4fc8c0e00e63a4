package redis

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// CombinedKey is the cache key of a party's latest combined preferences.
func CombinedKey(partyCode string) string {
	return key("combined", strings.ToUpper(partyCode))
}

// SetCombined caches the encoded combined preferences document for a party.
func (c *Client) SetCombined(ctx context.Context, partyCode string, doc []byte, ttl time.Duration) error {
	if c.store == nil {
		return errNotInitialized
	}
	return c.store.Set(ctx, CombinedKey(partyCode), doc, ttl).Err()
}

// GetCombined returns the cached document. A miss is found=false with a nil error.
func (c *Client) GetCombined(ctx context.Context, partyCode string) ([]byte, bool, error) {
	if c.store == nil {
		return nil, false, errNotInitialized
	}
	val, err := c.store.Get(ctx, CombinedKey(partyCode)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

// InvalidateCombined drops the cached document so the next read goes to the store.
func (c *Client) InvalidateCombined(ctx context.Context, partyCode string) error {
	if c.store == nil {
		return errNotInitialized
	}
	return c.store.Del(ctx, CombinedKey(partyCode)).Err()
}
