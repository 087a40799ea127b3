package repository

import (
	"context"

	"rewardsystem/internal/model"

	"gorm.io/gorm"
)

// TransactionRepository 流水只提供追加和查询
type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(ctx context.Context, tx *gorm.DB, trans *model.AccountTransaction) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(trans).Error
}

func (r *TransactionRepository) ListByUserID(ctx context.Context, userID int64, page, pageSize int) ([]*model.AccountTransaction, int64, error) {
	var transactions []*model.AccountTransaction
	var total int64

	err := r.db.WithContext(ctx).
		Model(&model.AccountTransaction{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&transactions).Error

	return transactions, total, err
}

// ListByRef 同一业务单号（质押单号、奖励ID、签到日期）下的全部流水
func (r *TransactionRepository) ListByRef(ctx context.Context, userID int64, refNo string) ([]*model.AccountTransaction, error) {
	var transactions []*model.AccountTransaction
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND ref_no = ?", userID, refNo).
		Order("id ASC").
		Find(&transactions).Error
	return transactions, err
}
