package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// pendingLease bounds how long a crashed request can hold its key.
const pendingLease = 2 * time.Minute

// IdempotencyRecord is what an Idempotency-Key points at: a pending marker while the first
// request runs, then the response to replay.
type IdempotencyRecord struct {
	Pending     bool   `json:"pending,omitempty"`
	RequestHash string `json:"request_hash"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

// IdempotencyStore is the record lifecycle the HTTP middleware drives.
type IdempotencyStore interface {
	ReserveIdempotency(ctx context.Context, scope, id, requestHash string) (*IdempotencyRecord, bool, error)
	CompleteIdempotency(ctx context.Context, scope, id string, rec IdempotencyRecord, ttl time.Duration) error
	ReleaseIdempotency(ctx context.Context, scope, id string) error
}

// IdempotencyKey namespaces a client supplied key by request scope.
func IdempotencyKey(scope, id string) string {
	return key("idempotency", scope, id)
}

// ReserveIdempotency claims scope/id for a new request. When another request got there
// first, claimed is false and the record it left is returned.
func (c *Client) ReserveIdempotency(ctx context.Context, scope, id, requestHash string) (*IdempotencyRecord, bool, error) {
	if c.store == nil {
		return nil, false, errNotInitialized
	}
	k := IdempotencyKey(scope, id)
	pending, err := json.Marshal(IdempotencyRecord{Pending: true, RequestHash: requestHash})
	if err != nil {
		return nil, false, err
	}

	// the holder may expire between SETNX and GET, so try twice
	for range 2 {
		ok, err := c.store.SetNX(ctx, k, pending, pendingLease).Result()
		if err != nil {
			return nil, false, fmt.Errorf("reserve idempotency key: %w", err)
		}
		if ok {
			return nil, true, nil
		}
		raw, err := c.store.Get(ctx, k).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, false, fmt.Errorf("load idempotency record: %w", err)
		}
		var rec IdempotencyRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, false, fmt.Errorf("decode idempotency record: %w", err)
		}
		return &rec, false, nil
	}
	return nil, false, errors.New("idempotency key contended")
}

// CompleteIdempotency replaces the pending marker with the final response.
func (c *Client) CompleteIdempotency(ctx context.Context, scope, id string, rec IdempotencyRecord, ttl time.Duration) error {
	if c.store == nil {
		return errNotInitialized
	}
	rec.Pending = false
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return c.store.Set(ctx, IdempotencyKey(scope, id), payload, ttl).Err()
}

// ReleaseIdempotency frees the key so a failed request can be retried with it.
func (c *Client) ReleaseIdempotency(ctx context.Context, scope, id string) error {
	if c.store == nil {
		return errNotInitialized
	}
	return c.store.Del(ctx, IdempotencyKey(scope, id)).Err()
}
