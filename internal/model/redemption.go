package model

import (
	"time"
)

// RedemptionCounter 每个用户每个奖励的兑换次数，用于 limit_per_account 校验
type RedemptionCounter struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    int64     `gorm:"uniqueIndex:uk_user_item;not null" json:"user_id"`
	ItemID    string    `gorm:"type:varchar(64);uniqueIndex:uk_user_item;not null" json:"item_id"`
	Count     int       `gorm:"not null;default:0" json:"count"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (RedemptionCounter) TableName() string {
	return "redemption_counter"
}
