package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// Redis 分布式锁
//
// 加锁：SET key value NX EX timeout
//   - NX 保证互斥
//   - EX 防止持有者崩溃后死锁
//   - value 是持有者标识，释放时校验，避免删掉别人的锁
//
// 释放：Lua 脚本中先比对 value 再删除，两步是原子的

var (
	ErrLockFailed = errors.New("获取分布式锁失败")
)

const unlockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`

type DistributedLock struct {
	client     *redis.Client
	key        string
	value      string
	expiration time.Duration
}

func NewDistributedLock(client *redis.Client, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

// TryLock 非阻塞
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	return l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
}

// Lock 阻塞式获取锁，最多重试 maxRetries 次
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		success, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if success {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	return ErrLockFailed
}

func (l *DistributedLock) Unlock(ctx context.Context) error {
	return l.client.Eval(ctx, unlockScript, []string{l.key}, l.value).Err()
}

// UserLockKey 账户维度的锁，不同用户之间互不阻塞
func UserLockKey(userID int64) string {
	return fmt.Sprintf("economy:lock:user:%d", userID)
}

// RedisLocker 每次加锁生成新的 uuid 作为持有者标识
type RedisLocker struct {
	client        *redis.Client
	expiration    time.Duration
	retryInterval time.Duration
	maxRetries    int
}

// NewRedisLocker 在 timeout 内按 20ms 间隔重试
func NewRedisLocker(client *redis.Client, timeout time.Duration) *RedisLocker {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	retryInterval := 20 * time.Millisecond
	return &RedisLocker{
		client:        client,
		expiration:    timeout,
		retryInterval: retryInterval,
		maxRetries:    int(timeout / retryInterval),
	}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	dl := NewDistributedLock(l.client, key, uuid.NewString(), l.expiration)
	if err := dl.Lock(ctx, l.retryInterval, l.maxRetries); err != nil {
		return nil, err
	}
	return func() {
		// 请求 ctx 可能已取消，释放锁使用独立的 ctx
		unlockCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = dl.Unlock(unlockCtx)
	}, nil
}
