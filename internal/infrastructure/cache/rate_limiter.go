package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// RateLimiter 按 key 限流
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RedisRateLimiter 固定窗口计数：窗口内第一次 INCR 时设置过期时间
type RedisRateLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

func NewRedisRateLimiter(client *redis.Client, limit int, window time.Duration) *RedisRateLimiter {
	return &RedisRateLimiter{client: client, limit: limit, window: window}
}

func (l *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := fmt.Sprintf("economy:ratelimit:%s", key)

	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, fmt.Errorf("限流计数失败: %w", err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, redisKey, l.window).Err(); err != nil {
			return false, fmt.Errorf("设置限流窗口失败: %w", err)
		}
	}
	return count <= int64(l.limit), nil
}

// TokenBucket 令牌桶
type TokenBucket struct {
	capacity   int64
	tokens     int64
	refillRate int64 // 每秒补充的令牌数
	lastRefill time.Time
	mu         sync.Mutex
}

func NewTokenBucket(capacity, refillRate int64) *TokenBucket {
	return &TokenBucket{
		capacity:   capacity,
		tokens:     capacity,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()
	tokensToAdd := int64(now.Sub(tb.lastRefill).Seconds()) * tb.refillRate
	if tokensToAdd > 0 {
		tb.tokens += tokensToAdd
		if tb.tokens > tb.capacity {
			tb.tokens = tb.capacity
		}
		tb.lastRefill = now
	}

	if tb.tokens > 0 {
		tb.tokens--
		return true
	}
	return false
}

// refilled 闲置到足以补满时，与新建的桶等价
func (tb *TokenBucket) refilled(now time.Time) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	fullAfter := time.Duration((tb.capacity+tb.refillRate-1)/tb.refillRate) * time.Second
	return now.Sub(tb.lastRefill) >= fullAfter
}

// LocalRateLimiter 单机部署时使用，每个 key 一个令牌桶
// 定期清理已经补满的桶，map 大小只取决于活跃 key 的数量
type LocalRateLimiter struct {
	mu            sync.Mutex
	buckets       map[string]*TokenBucket
	capacity      int64
	refillRate    int64
	sweepInterval time.Duration
	lastSweep     time.Time
}

// NewLocalRateLimiter perMinute 换算成每秒补充速率，最少每秒 1 个
func NewLocalRateLimiter(perMinute int) *LocalRateLimiter {
	rate := int64(perMinute / 60)
	if rate < 1 {
		rate = 1
	}
	return &LocalRateLimiter{
		buckets:       make(map[string]*TokenBucket),
		capacity:      int64(perMinute),
		refillRate:    rate,
		sweepInterval: time.Minute,
		lastSweep:     time.Now(),
	}
}

func (l *LocalRateLimiter) Allow(_ context.Context, key string) (bool, error) {
	now := time.Now()
	l.mu.Lock()
	if now.Sub(l.lastSweep) >= l.sweepInterval {
		l.sweepLocked(now)
	}
	bucket, ok := l.buckets[key]
	if !ok {
		bucket = NewTokenBucket(l.capacity, l.refillRate)
		l.buckets[key] = bucket
	}
	l.mu.Unlock()
	return bucket.Allow(), nil
}

func (l *LocalRateLimiter) sweepLocked(now time.Time) {
	for key, bucket := range l.buckets {
		if bucket.refilled(now) {
			delete(l.buckets, key)
		}
	}
	l.lastSweep = now
}
