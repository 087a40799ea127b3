package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

func TestRedisRateLimiterWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	limiter := NewRedisRateLimiter(client, 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := limiter.Allow(ctx, "user:1")
		if err != nil || !ok {
			t.Fatalf("call %d: allowed=%v err=%v", i, ok, err)
		}
	}
	if ok, _ := limiter.Allow(ctx, "user:1"); ok {
		t.Fatal("4th call allowed")
	}
	if ok, _ := limiter.Allow(ctx, "user:2"); !ok {
		t.Fatal("other key limited")
	}

	if ttl := mr.TTL("economy:ratelimit:user:1"); ttl <= 0 || ttl > time.Minute {
		t.Errorf("ttl = %v", ttl)
	}

	mr.FastForward(time.Minute + time.Second)
	if ok, _ := limiter.Allow(ctx, "user:1"); !ok {
		t.Error("new window still limited")
	}
}

func TestRedisRateLimiterError(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	mr.Close()

	if _, err := NewRedisRateLimiter(client, 3, time.Minute).Allow(context.Background(), "k"); err == nil {
		t.Error("expected error with redis down")
	}
}

func TestLocalRateLimiter(t *testing.T) {
	limiter := NewLocalRateLimiter(2)
	ctx := context.Background()

	a1, _ := limiter.Allow(ctx, "a")
	a2, _ := limiter.Allow(ctx, "a")
	a3, _ := limiter.Allow(ctx, "a")
	b1, _ := limiter.Allow(ctx, "b")
	if !a1 || !a2 || a3 || !b1 {
		t.Errorf("got a=%v,%v,%v b=%v", a1, a2, a3, b1)
	}
}

func TestTokenBucketRefill(t *testing.T) {
	tb := NewTokenBucket(1, 1)
	if !tb.Allow() {
		t.Fatal("first take failed")
	}
	if tb.Allow() {
		t.Fatal("empty bucket allowed")
	}
	tb.lastRefill = tb.lastRefill.Add(-time.Second)
	if !tb.Allow() {
		t.Error("bucket did not refill")
	}
}

func TestLocalRateLimiterEvictsIdleBuckets(t *testing.T) {
	limiter := NewLocalRateLimiter(2)
	ctx := context.Background()

	limiter.Allow(ctx, "idle")
	limiter.Allow(ctx, "busy")
	limiter.Allow(ctx, "busy")
	limiter.buckets["idle"].lastRefill = time.Now().Add(-time.Hour)

	// 触发下一次 Allow 时清理
	limiter.lastSweep = time.Now().Add(-2 * time.Minute)
	limiter.Allow(ctx, "other")

	if _, ok := limiter.buckets["idle"]; ok {
		t.Error("idle bucket not evicted")
	}
	if _, ok := limiter.buckets["busy"]; !ok {
		t.Error("busy bucket evicted")
	}
	if len(limiter.buckets) != 2 {
		t.Errorf("buckets = %d, want 2", len(limiter.buckets))
	}

	// 被清理的 key 重新拿到满额令牌
	a1, _ := limiter.Allow(ctx, "idle")
	a2, _ := limiter.Allow(ctx, "idle")
	a3, _ := limiter.Allow(ctx, "idle")
	if !a1 || !a2 || a3 {
		t.Errorf("re-created bucket = %v,%v,%v", a1, a2, a3)
	}
}
