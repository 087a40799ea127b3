package model

import (
	"time"
)

const (
	StakeStatusActive   = "ACTIVE"
	StakeStatusUnstaked = "UNSTAKED"
)

// ValidStakeTransitions 质押状态流转，UNSTAKED 为终态
var ValidStakeTransitions = map[string][]string{
	StakeStatusActive: {StakeStatusActive, StakeStatusUnstaked},
}

func CanStakeTransitionTo(currentStatus, targetStatus string) bool {
	allowed, exists := ValidStakeTransitions[currentStatus]
	if !exists {
		return false
	}
	for _, s := range allowed {
		if s == targetStatus {
			return true
		}
	}
	return false
}

// Stake 用户在某个质押池中的一笔仓位
// Principal 创建后不再修改，复投只增加 EffectivePrincipal
type Stake struct {
	ID                 int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	StakeNo            string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"stake_no"`
	UserID             int64      `gorm:"index;not null" json:"user_id"`
	PoolID             string     `gorm:"type:varchar(32);not null" json:"pool_id"`
	Principal          int64      `gorm:"not null" json:"principal"`
	EffectivePrincipal int64      `gorm:"not null" json:"effective_principal"`
	StakedAt           time.Time  `gorm:"not null" json:"staked_at"`
	UnlocksAt          time.Time  `gorm:"index;not null" json:"unlocks_at"`
	LastAccrualAt      time.Time  `gorm:"not null" json:"last_accrual_at"`
	TotalClaimed       int64      `gorm:"not null;default:0" json:"total_claimed"`
	TotalCompounded    int64      `gorm:"not null;default:0" json:"total_compounded"`
	Status             string     `gorm:"type:varchar(20);index;not null" json:"status"`
	PenaltyAmount      int64      `gorm:"not null;default:0" json:"penalty_amount"`
	ReturnedAmount     int64      `gorm:"not null;default:0" json:"returned_amount"`
	UnstakedAt         *time.Time `json:"unstaked_at"`
	UnlockNotified     bool       `gorm:"not null;default:false" json:"unlock_notified"`
	Version            int        `gorm:"not null;default:0" json:"version"`
	CreatedAt          time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Stake) TableName() string {
	return "stake"
}

func (s *Stake) IsActive() bool {
	return s.Status == StakeStatusActive
}
