package publisher

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPublisher(t *testing.T, streamCount, maxLen int) (*RedisPublisher, *redis.Client) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisPublisherWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "reviews", streamCount, maxLen), client
}

func TestRedisPublisher(t *testing.T) {
	ctx := context.Background()
	publisher, client := newTestPublisher(t, 1, 100)
	defer publisher.Close()

	require.NoError(t, publisher.Ping(ctx))
	require.NoError(t, publisher.Publish(ctx, "b64_review", []byte("test_message")))

	msgs, err := client.XRange(ctx, "reviews:0", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	// The message should be base64 encoded
	assert.Equal(t, "dGVzdF9tZXNzYWdl", msgs[0].Values["b64_review"])
}

func TestRedisPublisherSpreadsAndTrims(t *testing.T) {
	ctx := context.Background()
	publisher, client := newTestPublisher(t, 3, 2)
	defer publisher.Close()

	for i := 0; i < 30; i++ {
		require.NoError(t, publisher.Publish(ctx, "b64_review", []byte{byte(i)}))
	}

	keys, err := client.Keys(ctx, "reviews:*").Result()
	require.NoError(t, err)
	total := int64(0)
	for _, k := range keys {
		n, err := client.XLen(ctx, k).Result()
		require.NoError(t, err)
		total += n
	}
	assert.Equal(t, int64(30), total)

	require.NoError(t, publisher.TrimStreams(ctx))
	for _, k := range keys {
		n, err := client.XLen(ctx, k).Result()
		require.NoError(t, err)
		assert.LessOrEqual(t, n, int64(2))
	}

	last, err := client.XRevRangeN(ctx, keys[0], "+", "-", 1).Result()
	require.NoError(t, err)
	_, err = base64.StdEncoding.DecodeString(last[0].Values["b64_review"].(string))
	assert.NoError(t, err)
}
