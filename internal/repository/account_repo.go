package repository

import (
	"context"
	"errors"
	"time"

	"rewardsystem/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrAccountNotFound = errors.New("账户不存在")
	ErrOptimisticLock  = errors.New("乐观锁冲突，请重试")
)

type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) conn(tx *gorm.DB) *gorm.DB {
	if tx == nil {
		return r.db
	}
	return tx
}

// CreateIfAbsent 并发开户时只有一个成功，其余忽略唯一键冲突
func (r *AccountRepository) CreateIfAbsent(ctx context.Context, tx *gorm.DB, account *model.Account) error {
	return r.conn(tx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).
		Create(account).Error
}

func (r *AccountRepository) GetByUserID(ctx context.Context, tx *gorm.DB, userID int64) (*model.Account, error) {
	var account model.Account
	err := r.conn(tx).WithContext(ctx).Where("user_id = ?", userID).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (r *AccountRepository) GetByUserIDForUpdate(ctx context.Context, tx *gorm.DB, userID int64) (*model.Account, error) {
	var account model.Account
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// UpdateWithVersion 以 version 做 CAS 写回账户的全部可变字段
// 成功后 account.Version 加 1；version 不匹配返回 ErrOptimisticLock
func (r *AccountRepository) UpdateWithVersion(ctx context.Context, tx *gorm.DB, account *model.Account) error {
	result := tx.WithContext(ctx).
		Model(&model.Account{}).
		Where("user_id = ? AND version = ?", account.UserID, account.Version).
		Updates(map[string]interface{}{
			"currency_balance":         account.CurrencyBalance,
			"points_balance":           account.PointsBalance,
			"lifetime_points_earned":   account.LifetimePointsEarned,
			"lifetime_points_redeemed": account.LifetimePointsRedeemed,
			"current_tier":             account.CurrentTier,
			"streak_current":           account.StreakCurrent,
			"streak_longest":           account.StreakLongest,
			"streak_last_date":         account.StreakLastDate,
			"streak_total_days":        account.StreakTotalDays,
			"last_activity_at":         account.LastActivityAt,
			"version":                  gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrOptimisticLock
	}

	account.Version++
	return nil
}

// ListInactiveWithPoints 最后活跃时间早于 before 且仍有积分的账户
func (r *AccountRepository) ListInactiveWithPoints(ctx context.Context, before time.Time, limit int) ([]*model.Account, error) {
	var accounts []*model.Account
	err := r.db.WithContext(ctx).
		Where("points_balance > 0 AND last_activity_at < ?", before).
		Order("last_activity_at ASC").
		Limit(limit).
		Find(&accounts).Error
	return accounts, err
}
