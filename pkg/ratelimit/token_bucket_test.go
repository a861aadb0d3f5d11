package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucketBurstThenDeny(t *testing.T) {
	// 极低的速率，测试期间几乎不会补充令牌
	tb := NewTokenBucket(1, 5)

	for i := 0; i < 5; i++ {
		assert.Truef(t, tb.Allow(), "第%d个突发请求应放行", i+1)
	}
	assert.False(t, tb.Allow())
}

func TestTokenBucketDefaultCapacity(t *testing.T) {
	tb := NewTokenBucket(60, 0)
	assert.InDelta(t, 30.0, tb.capacity, 1e-9)

	// qpm为1时容量兜底为1
	tiny := NewTokenBucket(1, 0)
	assert.InDelta(t, 1.0, tiny.capacity, 1e-9)
}

func TestTokenBucketRefill(t *testing.T) {
	// 6000 QPM = 每秒100个令牌
	tb := NewTokenBucket(6000, 1)
	require.True(t, tb.Allow())
	require.False(t, tb.Allow())

	time.Sleep(50 * time.Millisecond)
	assert.True(t, tb.Allow())
}

func TestTokenBucketWaitContextCancel(t *testing.T) {
	tb := NewTokenBucket(1, 1)
	require.True(t, tb.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := tb.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestKeyedLimiterIsolation(t *testing.T) {
	kl := NewKeyedLimiter(1, 1)

	require.True(t, kl.Allow("key-a"))
	assert.False(t, kl.Allow("key-a"))

	// 不同密钥的桶互不影响
	assert.True(t, kl.Allow("key-b"))
}
