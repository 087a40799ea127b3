package repository

import (
	"context"
	"errors"

	"rewardsystem/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RedemptionRepository struct {
	db *gorm.DB
}

func NewRedemptionRepository(db *gorm.DB) *RedemptionRepository {
	return &RedemptionRepository{db: db}
}

func (r *RedemptionRepository) GetCount(ctx context.Context, tx *gorm.DB, userID int64, itemID string) (int, error) {
	if tx == nil {
		tx = r.db
	}
	var counter model.RedemptionCounter
	err := tx.WithContext(ctx).
		Where("user_id = ? AND item_id = ?", userID, itemID).
		First(&counter).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return counter.Count, nil
}

// Increment 首次兑换插入，之后累加
func (r *RedemptionRepository) Increment(ctx context.Context, tx *gorm.DB, userID int64, itemID string) error {
	counter := &model.RedemptionCounter{UserID: userID, ItemID: itemID, Count: 1}
	return tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "item_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"count": gorm.Expr("count + 1")}),
		}).
		Create(counter).Error
}

// CountsByUser itemID -> 已兑换次数
func (r *RedemptionRepository) CountsByUser(ctx context.Context, userID int64) (map[string]int, error) {
	var counters []*model.RedemptionCounter
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Find(&counters).Error; err != nil {
		return nil, err
	}
	out := make(map[string]int, len(counters))
	for _, c := range counters {
		out[c.ItemID] = c.Count
	}
	return out, nil
}
