package economy

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const Day = 24 * time.Hour

// Pool 质押池参数，静态配置，与用户无关
type Pool struct {
	ID                           string          `json:"id"`
	Name                         string          `json:"name"`
	LockPeriodDays               int             `json:"lock_period_days"`
	APYPercent                   decimal.Decimal `json:"apy_percent"`
	MinStake                     int64           `json:"min_stake"`
	MaxStake                     int64           `json:"max_stake"`
	EarlyUnstakePenaltyPercent   decimal.Decimal `json:"early_unstake_penalty_percent"`
	StreakMultiplierAtFullStreak decimal.Decimal `json:"streak_multiplier_at_full_streak"`
}

func (p Pool) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("质押池缺少ID")
	}
	if p.LockPeriodDays < 0 {
		return fmt.Errorf("质押池 %s 锁定天数不能为负", p.ID)
	}
	if p.LockPeriodDays == 0 && !p.EarlyUnstakePenaltyPercent.IsZero() {
		return fmt.Errorf("质押池 %s 无锁定期时不能设置提前赎回罚金", p.ID)
	}
	if p.EarlyUnstakePenaltyPercent.IsNegative() || p.EarlyUnstakePenaltyPercent.GreaterThan(hundred) {
		return fmt.Errorf("质押池 %s 罚金比例必须在 0-100 之间", p.ID)
	}
	if p.APYPercent.IsNegative() {
		return fmt.Errorf("质押池 %s 年化收益不能为负", p.ID)
	}
	if p.MinStake <= 0 || p.MinStake > p.MaxStake {
		return fmt.Errorf("质押池 %s 质押区间不合法", p.ID)
	}
	if p.StreakMultiplierAtFullStreak.LessThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("质押池 %s 连续签到倍率不能小于1", p.ID)
	}
	return nil
}

// CheckAmount 校验质押数量是否在 [MinStake, MaxStake] 内
func (p Pool) CheckAmount(amount int64) error {
	if amount < p.MinStake {
		return ErrBelowMinimumStake
	}
	if amount > p.MaxStake {
		return ErrAboveMaximumStake
	}
	return nil
}

func (p Pool) UnlocksAt(stakedAt time.Time) time.Time {
	return stakedAt.Add(time.Duration(p.LockPeriodDays) * Day)
}

// Penalty 提前赎回罚金，只作用于本金部分，向下取整
func (p Pool) Penalty(principal int64) int64 {
	if principal <= 0 {
		return 0
	}
	return decimal.NewFromInt(principal).
		Mul(p.EarlyUnstakePenaltyPercent).
		Div(hundred).
		Floor().
		IntPart()
}

type PoolTable struct {
	pools []Pool
	byID  map[string]Pool
}

func NewPoolTable(pools []Pool) (*PoolTable, error) {
	t := &PoolTable{byID: make(map[string]Pool, len(pools))}
	for _, p := range pools {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if _, dup := t.byID[p.ID]; dup {
			return nil, fmt.Errorf("质押池ID重复: %s", p.ID)
		}
		t.byID[p.ID] = p
		t.pools = append(t.pools, p)
	}
	return t, nil
}

func (t *PoolTable) Lookup(id string) (Pool, error) {
	p, ok := t.byID[id]
	if !ok {
		return Pool{}, ErrUnknownPool
	}
	return p, nil
}

func (t *PoolTable) All() []Pool {
	out := make([]Pool, len(t.pools))
	copy(out, t.pools)
	return out
}
