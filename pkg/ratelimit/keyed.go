package ratelimit

import (
	"sync"
	"time"
)

// idleBucketTTL 超过该时长未活动的密钥桶会被回收
const idleBucketTTL = 30 * time.Minute

// KeyedLimiter 按API密钥隔离的令牌桶限流器，
// 每个密钥独享一个桶，空闲桶定期回收
type KeyedLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*TokenBucket
	qpm      int
	capacity int

	lastSweep time.Time
}

// NewKeyedLimiter 创建按密钥限流器
func NewKeyedLimiter(qpm, capacity int) *KeyedLimiter {
	return &KeyedLimiter{
		buckets:   make(map[string]*TokenBucket),
		qpm:       qpm,
		capacity:  capacity,
		lastSweep: time.Now(),
	}
}

// Allow 判断指定密钥的请求是否放行
func (kl *KeyedLimiter) Allow(key string) bool {
	kl.mu.Lock()
	bucket, ok := kl.buckets[key]
	if !ok {
		bucket = NewTokenBucket(kl.qpm, kl.capacity)
		kl.buckets[key] = bucket
	}
	kl.sweepLocked()
	kl.mu.Unlock()

	return bucket.Allow()
}

// sweepLocked 顺带回收长时间未活动的桶，调用方需持有锁
func (kl *KeyedLimiter) sweepLocked() {
	now := time.Now()
	if now.Sub(kl.lastSweep) < idleBucketTTL {
		return
	}
	kl.lastSweep = now

	for key, bucket := range kl.buckets {
		if now.Sub(bucket.lastActive()) > idleBucketTTL {
			delete(kl.buckets, key)
		}
	}
}
