package model

import (
	"time"
)

// 流水类型
const (
	TxnKindEarn        = "earn"
	TxnKindRedeem      = "redeem"
	TxnKindStake       = "stake"
	TxnKindUnstake     = "unstake"
	TxnKindStakeReward = "stake_reward"
	TxnKindStreakBonus = "streak_bonus"
	TxnKindExpire      = "expire"
)

// 变动的余额类型
const (
	AssetCurrency = "CURRENCY"
	AssetPoints   = "POINTS"
)

// AccountTransaction 账户流水表
//
// 1. 只追加，不修改，不删除
// 2. 每笔流水只记录一种余额的一次变动
// 3. 记录变动前后余额，便于校验一致性
type AccountTransaction struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionNo string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"transaction_no"`
	UserID        int64     `gorm:"index;not null" json:"user_id"`
	Kind          string    `gorm:"type:varchar(20);not null" json:"kind"`
	Asset         string    `gorm:"type:varchar(10);not null" json:"asset"`
	Amount        int64     `gorm:"not null" json:"amount"` // 正数入账，负数出账
	Reason        string    `gorm:"type:varchar(256)" json:"reason"`
	Source        string    `gorm:"type:varchar(32)" json:"source"`
	RefNo         string    `gorm:"type:varchar(64);index" json:"ref_no"` // 质押单号或奖励ID
	RequestID     string    `gorm:"type:varchar(64);index" json:"request_id"`
	BalanceBefore int64     `gorm:"not null" json:"balance_before"`
	BalanceAfter  int64     `gorm:"not null" json:"balance_after"`
	CreatedAt     time.Time `gorm:"index" json:"created_at"`
}

func (AccountTransaction) TableName() string {
	return "account_transaction"
}
