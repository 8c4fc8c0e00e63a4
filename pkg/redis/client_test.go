package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/forkcast-backend/pkg/config"
)

func newTestClient(mock *mockCmdable, now time.Time) *Client {
	return &Client{store: mock, now: func() time.Time { return now }}
}

func TestFixedWindowAllow(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	start := time.Date(2026, 3, 1, 12, 0, 10, 0, time.UTC)
	client := newTestClient(mock, start)

	for i, want := range []bool{true, true, false} {
		allowed, count, err := client.FixedWindowAllow(ctx, "guest_submit:AB12CD:1.2.3.4", 2, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, allowed, "call %d", i+1)
		assert.Equal(t, int64(i+1), count)
	}
	require.Len(t, mock.expireCalls, 1)
	assert.Equal(t, "fc:rate_limit:guest_submit:AB12CD:1.2.3.4:1772366400", mock.expireCalls[0].key)
	assert.Equal(t, time.Minute, mock.expireCalls[0].ttl)

	client.now = func() time.Time { return start.Add(time.Minute) }
	allowed, count, err := client.FixedWindowAllow(ctx, "guest_submit:AB12CD:1.2.3.4", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, int64(1), count)
}

func TestCombinedCacheLifecycle(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(newMockCmdable(), time.Now())

	_, found, err := client.GetCombined(ctx, "ab12cd")
	require.NoError(t, err)
	assert.False(t, found)

	doc := []byte(`{"status":"PREFERENCES_COMPLETE"}`)
	require.NoError(t, client.SetCombined(ctx, "ab12cd", doc, 30*time.Minute))
	got, found, err := client.GetCombined(ctx, "AB12CD")
	require.NoError(t, err)
	require.True(t, found)
	assert.JSONEq(t, string(doc), string(got))

	require.NoError(t, client.InvalidateCombined(ctx, "AB12CD"))
	_, found, err = client.GetCombined(ctx, "AB12CD")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestIdempotencyLifecycle(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := newTestClient(mock, time.Now())

	existing, claimed, err := client.ReserveIdempotency(ctx, "POST /api/v1/parties", "k1", "hash-a")
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.Nil(t, existing)

	existing, claimed, err = client.ReserveIdempotency(ctx, "POST /api/v1/parties", "k1", "hash-a")
	require.NoError(t, err)
	assert.False(t, claimed)
	require.NotNil(t, existing)
	assert.True(t, existing.Pending)

	require.NoError(t, client.CompleteIdempotency(ctx, "POST /api/v1/parties", "k1", IdempotencyRecord{
		RequestHash: "hash-a",
		Status:      201,
		ContentType: "application/json",
		Body:        []byte(`{"data":{}}`),
	}, time.Hour))

	existing, claimed, err = client.ReserveIdempotency(ctx, "POST /api/v1/parties", "k1", "hash-a")
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.Equal(t, &IdempotencyRecord{RequestHash: "hash-a", Status: 201, ContentType: "application/json", Body: []byte(`{"data":{}}`)}, existing)

	require.NoError(t, client.ReleaseIdempotency(ctx, "POST /api/v1/parties", "k1"))
	_, claimed, err = client.ReserveIdempotency(ctx, "POST /api/v1/parties", "k1", "hash-b")
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestUninitializedClient(t *testing.T) {
	client := &Client{}
	ctx := context.Background()
	assert.Error(t, client.Ping(ctx))
	_, _, err := client.FixedWindowAllow(ctx, "s", 1, time.Second)
	assert.Error(t, err)
	assert.NoError(t, client.Close())
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "fc:idempotency:scope:id", IdempotencyKey("scope", "id"))
	assert.Equal(t, "fc:idempotency:scope", IdempotencyKey("scope", ""))
	assert.Equal(t, "fc:combined:AB12CD", CombinedKey("ab12cd"))
	assert.Equal(t, "fc:rate_limit:s:60", RateLimitKey("s", time.Unix(60, 0)))
}

func TestOptionsFromConfig(t *testing.T) {
	opts, err := optionsFromConfig(config.RedisConfig{
		URL:         "redis://:secret@cache:6380/3",
		PoolSize:    7,
		DialTimeout: time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, 3, opts.DB)
	assert.Equal(t, 7, opts.PoolSize)
	assert.Equal(t, time.Second, opts.DialTimeout)

	opts, err = optionsFromConfig(config.RedisConfig{Address: "localhost:6379", DB: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, opts.DB)

	_, err = optionsFromConfig(config.RedisConfig{})
	assert.Error(t, err)
}

type mockCmdable struct {
	data        map[string]string
	incr        map[string]int64
	expireCalls []expireCall
}

type expireCall struct {
	key string
	ttl time.Duration
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{
		data: make(map[string]string),
		incr: make(map[string]int64),
	}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	m.data[key] = stringify(value)
	return redis.NewStatusResult("OK", nil)
}

func (m *mockCmdable) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) SetNX(_ context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = stringify(value)
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Incr(_ context.Context, key string) *redis.IntCmd {
	m.incr[key]++
	return redis.NewIntResult(m.incr[key], nil)
}

func (m *mockCmdable) Expire(_ context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	m.expireCalls = append(m.expireCalls, expireCall{key: key, ttl: expiration})
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(m.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func stringify(value any) string {
	if b, ok := value.([]byte); ok {
		return string(b)
	}
	return fmt.Sprint(value)
}
