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
	ErrStakeNotFound      = errors.New("质押记录不存在")
	ErrStakeStatusInvalid = errors.New("质押状态不合法")
)

type StakeRepository struct {
	db *gorm.DB
}

func NewStakeRepository(db *gorm.DB) *StakeRepository {
	return &StakeRepository{db: db}
}

func (r *StakeRepository) Create(ctx context.Context, tx *gorm.DB, stake *model.Stake) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(stake).Error
}

func (r *StakeRepository) GetByStakeNoForUpdate(ctx context.Context, tx *gorm.DB, userID int64, stakeNo string) (*model.Stake, error) {
	var stake model.Stake
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("stake_no = ? AND user_id = ?", stakeNo, userID).
		First(&stake).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStakeNotFound
		}
		return nil, err
	}
	return &stake, nil
}

// ListByUserID activeOnly 为 true 时只返回 ACTIVE 的仓位
func (r *StakeRepository) ListByUserID(ctx context.Context, tx *gorm.DB, userID int64, activeOnly bool) ([]*model.Stake, error) {
	if tx == nil {
		tx = r.db
	}
	var stakes []*model.Stake
	query := tx.WithContext(ctx).Where("user_id = ?", userID)
	if activeOnly {
		query = query.Where("status = ?", model.StakeStatusActive)
	}
	err := query.Order("id ASC").Find(&stakes).Error
	return stakes, err
}

// Update 校验状态流转并以 version 做 CAS
func (r *StakeRepository) Update(ctx context.Context, tx *gorm.DB, stake *model.Stake, fromStatus string) error {
	if !model.CanStakeTransitionTo(fromStatus, stake.Status) {
		return ErrStakeStatusInvalid
	}

	result := tx.WithContext(ctx).
		Model(&model.Stake{}).
		Where("id = ? AND status = ? AND version = ?", stake.ID, fromStatus, stake.Version).
		Updates(map[string]interface{}{
			"effective_principal": stake.EffectivePrincipal,
			"last_accrual_at":     stake.LastAccrualAt,
			"total_claimed":       stake.TotalClaimed,
			"total_compounded":    stake.TotalCompounded,
			"status":              stake.Status,
			"penalty_amount":      stake.PenaltyAmount,
			"returned_amount":     stake.ReturnedAmount,
			"unstaked_at":         stake.UnstakedAt,
			"version":             gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrOptimisticLock
	}

	stake.Version++
	return nil
}

// ListUnlockedUnnotified 已过锁定期但还未发送解锁通知的仓位
func (r *StakeRepository) ListUnlockedUnnotified(ctx context.Context, now time.Time, limit int) ([]*model.Stake, error) {
	var stakes []*model.Stake
	err := r.db.WithContext(ctx).
		Where("status = ? AND unlock_notified = ? AND unlocks_at <= ?", model.StakeStatusActive, false, now).
		Order("unlocks_at ASC").
		Limit(limit).
		Find(&stakes).Error
	return stakes, err
}

// MarkUnlockNotified 条件更新，返回是否由本次调用标记
func (r *StakeRepository) MarkUnlockNotified(ctx context.Context, tx *gorm.DB, id int64) (bool, error) {
	result := tx.WithContext(ctx).
		Model(&model.Stake{}).
		Where("id = ? AND unlock_notified = ?", id, false).
		UpdateColumn("unlock_notified", true)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
