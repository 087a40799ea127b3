package economy

import (
	"time"

	"github.com/shopspring/decimal"
)

var daysPerYear = decimal.NewFromInt(365)

// Accrual 一次收益计算的结果
//
// Anchor 是结算后新的 last_accrual_at：只前进已计息的整天数，
// 不足一天的部分留到下一次计算
type Accrual struct {
	Days   int64
	Amount int64
	Anchor time.Time
}

// ElapsedDays 从 from 到 now 经过的整天数
func ElapsedDays(from, now time.Time) int64 {
	if !now.After(from) {
		return 0
	}
	return int64(now.Sub(from) / Day)
}

// StreakFactor 连续签到达到 fullStreakDays 时使用质押池的满签倍率
func StreakFactor(pool Pool, streakLength, fullStreakDays int) decimal.Decimal {
	if fullStreakDays > 0 && streakLength >= fullStreakDays {
		return pool.StreakMultiplierAtFullStreak
	}
	return decimal.NewFromInt(1)
}

// PendingRewards floor(本金 * apy/100/365 * 天数 * 倍率)
//
// 先整体相乘最后只做一次除法和取整，重复计算结果完全一致
func PendingRewards(effectivePrincipal int64, pool Pool, days int64, streakFactor decimal.Decimal) int64 {
	if effectivePrincipal <= 0 || days <= 0 {
		return 0
	}
	numerator := decimal.NewFromInt(effectivePrincipal).
		Mul(pool.APYPercent).
		Mul(decimal.NewFromInt(days)).
		Mul(streakFactor)
	return numerator.Div(hundred.Mul(daysPerYear)).Floor().IntPart()
}

// Accrue 纯函数：只读，不修改任何状态
func Accrue(effectivePrincipal int64, pool Pool, lastAccrualAt, now time.Time, streakFactor decimal.Decimal) Accrual {
	days := ElapsedDays(lastAccrualAt, now)
	return Accrual{
		Days:   days,
		Amount: PendingRewards(effectivePrincipal, pool, days, streakFactor),
		Anchor: lastAccrualAt.Add(time.Duration(days) * Day),
	}
}
