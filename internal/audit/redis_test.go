package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testPayload carries a single field: the mock compares the flattened
// XADD values positionally, and map iteration order would make multi-key
// expectations flaky.
func testPayload() map[string]interface{} {
	return map[string]interface{}{"asset": "AAPL"}
}

func expectedArgs(cfg RedisSinkConfig, payload map[string]interface{}) *redis.XAddArgs {
	return &redis.XAddArgs{
		Stream: cfg.Stream,
		MaxLen: cfg.MaxLen,
		Approx: true,
		Values: payload,
	}
}

func TestRedisSinkPublish(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cfg := DefaultRedisSinkConfig()
	sink := NewRedisSink(db, cfg, nil)

	payload := testPayload()
	mock.ExpectXAdd(expectedArgs(cfg, payload)).SetVal("1-0")

	require.NoError(t, sink.Publish(context.Background(), payload))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisSinkRateLimitDrops(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cfg := DefaultRedisSinkConfig()
	cfg.PublishPerSec = 0.001
	cfg.Burst = 1
	sink := NewRedisSink(db, cfg, nil)

	payload := testPayload()
	mock.ExpectXAdd(expectedArgs(cfg, payload)).SetVal("1-0")

	require.NoError(t, sink.Publish(context.Background(), payload))
	// Budget exhausted: dropped without touching the client, and without
	// an error since audit is best-effort
	require.NoError(t, sink.Publish(context.Background(), payload))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisSinkPublishError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cfg := DefaultRedisSinkConfig()
	sink := NewRedisSink(db, cfg, nil)

	payload := testPayload()
	mock.ExpectXAdd(expectedArgs(cfg, payload)).SetErr(errors.New("connection refused"))

	err := sink.Publish(context.Background(), payload)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis sink publish")
}

func TestRedisSinkBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cfg := DefaultRedisSinkConfig()
	sink := NewRedisSink(db, cfg, nil)

	payload := testPayload()
	for i := 0; i < 5; i++ {
		mock.ExpectXAdd(expectedArgs(cfg, payload)).SetErr(errors.New("connection refused"))
	}
	for i := 0; i < 5; i++ {
		assert.Error(t, sink.Publish(context.Background(), payload))
	}

	// Breaker is open: the client is no longer consulted, but publish
	// still reports the failure
	err := sink.Publish(context.Background(), payload)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisSinkClose(t *testing.T) {
	db, _ := redismock.NewClientMock()
	closed := false
	sink := NewRedisSink(db, DefaultRedisSinkConfig(), func() error {
		closed = true
		return nil
	})
	require.NoError(t, sink.Close())
	assert.True(t, closed)

	noCloser := NewRedisSink(db, DefaultRedisSinkConfig(), nil)
	assert.NoError(t, noCloser.Close())
}
