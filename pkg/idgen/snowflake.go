package idgen

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// ============================================================================
// 雪花算法 ID 生成器
// ============================================================================
//
// 流水号和质押单号要求全局唯一、趋势递增，不暴露业务量
//
//   0 | 41位毫秒时间戳 | 10位 workerID | 12位序列号
//
// 多实例部署时通过 -worker-id 区分；时钟回拨时沿用上一次的时间戳继续发号，
// 保证同一进程内单调递增
// ============================================================================

const (
	epoch          = int64(1704067200000) // 2024-01-01 00:00:00 UTC
	workerIDBits   = 10
	sequenceBits   = 12
	maxWorkerID    = -1 ^ (-1 << workerIDBits)
	maxSequence    = -1 ^ (-1 << sequenceBits)
	workerIDShift  = sequenceBits
	timestampShift = sequenceBits + workerIDBits
)

// 业务单号前缀
const (
	PrefixTransaction = "TXN"
	PrefixStake       = "STK"
)

type Snowflake struct {
	mu        sync.Mutex
	lastMilli int64
	workerID  int64
	sequence  int64
	now       func() time.Time
}

// New 创建独立的生成器，workerID 范围 0-1023
func New(workerID int64) (*Snowflake, error) {
	if workerID < 0 || workerID > maxWorkerID {
		return nil, fmt.Errorf("workerID 必须在 0-%d 之间: %d", maxWorkerID, workerID)
	}
	return &Snowflake{workerID: workerID, now: time.Now}, nil
}

var (
	defaultGenerator *Snowflake
	once             sync.Once
)

// Init 初始化默认生成器，只有第一次调用生效
func Init(workerID int64) {
	once.Do(func() {
		g, err := New(workerID)
		if err != nil {
			log.Fatalf("初始化 ID 生成器失败: %v", err)
		}
		defaultGenerator = g
	})
}

// NextID 未初始化时使用 workerID = 1
func NextID() int64 {
	Init(1)
	return defaultGenerator.Generate()
}

func (s *Snowflake) Generate() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	milli := s.now().UnixMilli()
	if milli < s.lastMilli {
		// 时钟回拨
		milli = s.lastMilli
	}

	if milli == s.lastMilli {
		s.sequence = (s.sequence + 1) & maxSequence
		if s.sequence == 0 {
			// 本毫秒序列号用完，借用下一毫秒
			milli++
		}
	} else {
		s.sequence = 0
	}
	s.lastMilli = milli

	return ((milli - epoch) << timestampShift) |
		(s.workerID << workerIDShift) |
		s.sequence
}

// Decompose 拆出 ID 的生成时间、workerID 和序列号，排查问题时使用
func Decompose(id int64) (at time.Time, workerID, sequence int64) {
	milli := (id >> timestampShift) + epoch
	workerID = (id >> workerIDShift) & maxWorkerID
	sequence = id & maxSequence
	return time.UnixMilli(milli).UTC(), workerID, sequence
}

// FormatNo 业务单号：前缀 + UTC 年月日时分秒 + 完整雪花 ID
// 例如 TXN20240115143052123456789012345
func FormatNo(prefix string, id int64) string {
	at, _, _ := Decompose(id)
	return fmt.Sprintf("%s%s%d", prefix, at.Format("20060102150405"), id)
}

// GenerateTransactionNo 生成流水号
func GenerateTransactionNo() string {
	return FormatNo(PrefixTransaction, NextID())
}

// GenerateStakeNo 生成质押单号
func GenerateStakeNo() string {
	return FormatNo(PrefixStake, NextID())
}
