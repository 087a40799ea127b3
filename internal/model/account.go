package model

import (
	"time"

	"rewardsystem/internal/economy"
)

// Account 用户积分账户
// 货币余额、积分余额、累计积分和连续签到状态都在这一行上，
// 所有变动只能通过 LedgerService 提交
type Account struct {
	ID                     int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID                 int64     `gorm:"uniqueIndex;not null" json:"user_id"`
	CurrencyBalance        int64     `gorm:"not null;default:0" json:"currency_balance"`         // 游戏货币余额
	PointsBalance          int64     `gorm:"not null;default:0" json:"points_balance"`           // 可兑换积分
	LifetimePointsEarned   int64     `gorm:"not null;default:0" json:"lifetime_points_earned"`   // 累计获得积分，只增不减
	LifetimePointsRedeemed int64     `gorm:"not null;default:0" json:"lifetime_points_redeemed"` // 累计兑换积分，只增不减
	CurrentTier            string    `gorm:"type:varchar(32);not null;default:''" json:"current_tier"`
	StreakCurrent          int       `gorm:"not null;default:0" json:"streak_current"`
	StreakLongest          int       `gorm:"not null;default:0" json:"streak_longest"`
	StreakLastDate         string    `gorm:"type:varchar(10);not null;default:''" json:"streak_last_date"`
	StreakTotalDays        int       `gorm:"not null;default:0" json:"streak_total_days"`
	LastActivityAt         time.Time `gorm:"index" json:"last_activity_at"`
	Version                int       `gorm:"not null;default:0" json:"version"` // 乐观锁版本号
	CreatedAt              time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Account) TableName() string {
	return "account"
}

func (a *Account) Streak() economy.StreakState {
	return economy.StreakState{
		Current:   a.StreakCurrent,
		Longest:   a.StreakLongest,
		TotalDays: a.StreakTotalDays,
		LastDate:  economy.Date(a.StreakLastDate),
	}
}

func (a *Account) SetStreak(s economy.StreakState) {
	a.StreakCurrent = s.Current
	a.StreakLongest = s.Longest
	a.StreakTotalDays = s.TotalDays
	a.StreakLastDate = s.LastDate.String()
}
