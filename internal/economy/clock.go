package economy

import (
	"sync"
	"time"
)

// Clock 所有利息和连续签到的计算都以它为准，不依赖后台定时器
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

// SimClock 可拨动的模拟时钟，用于演示环境和测试
type SimClock struct {
	mu     sync.RWMutex
	start  time.Time
	offset time.Duration
}

// NewSimClock start 为零值时以真实时间为基准
func NewSimClock(start time.Time) *SimClock {
	return &SimClock{start: start}
}

func (c *SimClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.start.IsZero() {
		return time.Now().Add(c.offset)
	}
	return c.start.Add(c.offset)
}

// Advance 只允许向前拨动
func (c *SimClock) Advance(d time.Duration) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offset += d
}

func (c *SimClock) Offset() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.offset
}
