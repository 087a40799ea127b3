package lock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestDistributedLockOwnership(t *testing.T) {
	mr, client := newRedis(t)
	ctx := context.Background()
	key := UserLockKey(1)

	a := NewDistributedLock(client, key, "owner-a", time.Second)
	b := NewDistributedLock(client, key, "owner-b", time.Second)

	if ok, err := a.TryLock(ctx); err != nil || !ok {
		t.Fatalf("a.TryLock = %v, %v", ok, err)
	}
	if ok, _ := b.TryLock(ctx); ok {
		t.Fatal("b acquired a held lock")
	}

	// 非持有者释放不影响锁
	if err := b.Unlock(ctx); err != nil {
		t.Fatalf("b.Unlock: %v", err)
	}
	if got, _ := mr.Get(key); got != "owner-a" {
		t.Fatalf("lock value = %q after foreign unlock", got)
	}

	if err := a.Unlock(ctx); err != nil {
		t.Fatalf("a.Unlock: %v", err)
	}
	if mr.Exists(key) {
		t.Fatal("lock still held after owner unlock")
	}
}

func TestDistributedLockExpires(t *testing.T) {
	mr, client := newRedis(t)
	ctx := context.Background()
	key := UserLockKey(2)

	a := NewDistributedLock(client, key, "owner-a", time.Second)
	if ok, _ := a.TryLock(ctx); !ok {
		t.Fatal("TryLock failed")
	}
	mr.FastForward(2 * time.Second)

	b := NewDistributedLock(client, key, "owner-b", time.Second)
	if ok, _ := b.TryLock(ctx); !ok {
		t.Fatal("lock did not expire")
	}
}

func TestDistributedLockGivesUp(t *testing.T) {
	_, client := newRedis(t)
	ctx := context.Background()
	key := UserLockKey(3)

	NewDistributedLock(client, key, "holder", time.Minute).TryLock(ctx)

	err := NewDistributedLock(client, key, "waiter", time.Minute).Lock(ctx, time.Millisecond, 3)
	if !errors.Is(err, ErrLockFailed) {
		t.Errorf("Lock err = %v, want ErrLockFailed", err)
	}
}

func TestRedisLockerSerializes(t *testing.T) {
	_, client := newRedis(t)
	locker := NewRedisLocker(client, 5*time.Second)
	testLockerSerializes(t, locker)
}

func TestLocalLockerSerializes(t *testing.T) {
	testLockerSerializes(t, NewLocalLocker())
}

func testLockerSerializes(t *testing.T, locker Locker) {
	t.Helper()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locker.Acquire(ctx, UserLockKey(9))
			if err != nil {
				t.Errorf("Acquire: %v", err)
				return
			}
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			time.Sleep(2 * time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
			release()
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Errorf("max concurrent holders = %d, want 1", maxSeen)
	}
}

func TestLocalLockerHonoursContext(t *testing.T) {
	locker := NewLocalLocker()
	release, err := locker.Acquire(context.Background(), "k")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := locker.Acquire(ctx, "k"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("blocked Acquire err = %v", err)
	}

	release()
	release()
	if len(locker.entries) != 0 {
		t.Errorf("entries leaked: %d", len(locker.entries))
	}

	// 其他 key 不受影响
	other, err := locker.Acquire(context.Background(), "other")
	if err != nil {
		t.Fatalf("Acquire other: %v", err)
	}
	other()
}
