package repository

import (
	"context"
	"errors"

	"rewardsystem/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrRequestExists request_id 已被写入
var ErrRequestExists = errors.New("幂等记录已存在")

type RequestRepository struct {
	db *gorm.DB
}

func NewRequestRepository(db *gorm.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// GetByRequestID 不存在时返回 nil, nil
func (r *RequestRepository) GetByRequestID(ctx context.Context, tx *gorm.DB, requestID string) (*model.RequestRecord, error) {
	if tx == nil {
		tx = r.db
	}
	var record model.RequestRecord
	err := tx.WithContext(ctx).Where("request_id = ?", requestID).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// Create 唯一索引冲突时返回 ErrRequestExists，已有记录保持不变
func (r *RequestRepository) Create(ctx context.Context, tx *gorm.DB, record *model.RequestRecord) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "request_id"}}, DoNothing: true}).
		Create(record)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRequestExists
	}
	return nil
}
