package model

import (
	"time"
)

// RequestRecord 幂等记录，与业务变更在同一个事务中写入
// 同一个 request_id 重复提交时直接返回第一次的结果
type RequestRecord struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	RequestID string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"request_id"`
	UserID    int64     `gorm:"index;not null" json:"user_id"`
	Action    string    `gorm:"type:varchar(32);not null" json:"action"`
	Response  string    `gorm:"type:text;not null" json:"response"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (RequestRecord) TableName() string {
	return "request_record"
}
