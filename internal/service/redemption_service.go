package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"rewardsystem/internal/economy"
	"rewardsystem/internal/model"
	"rewardsystem/internal/repository"

	"gorm.io/gorm"
)

type RedeemResult struct {
	ItemID        string `json:"item_id"`
	ItemName      string `json:"item_name"`
	PointsCost    int64  `json:"points_cost"`
	TransactionNo string `json:"transaction_no"`
	PointsBalance int64  `json:"points_balance"`
	Redeemed      int    `json:"redeemed"`
}

// CatalogEntry 奖励及其对当前账户的可兑换状态
type CatalogEntry struct {
	economy.RewardItem
	Affordable bool `json:"affordable"`
	TierMet    bool `json:"tier_met"`
	Redeemed   int  `json:"redeemed"`
	Remaining  int  `json:"remaining"` // -1 表示不限
	Available  bool `json:"available"`
}

type RedemptionService struct {
	econ           *economy.Economy
	ledger         *LedgerService
	redemptionRepo *repository.RedemptionRepository
}

func NewRedemptionService(db *gorm.DB, econ *economy.Economy, ledger *LedgerService) *RedemptionService {
	return &RedemptionService{
		econ:           econ,
		ledger:         ledger,
		redemptionRepo: repository.NewRedemptionRepository(db),
	}
}

// RedeemIn 所有校验都在锁定的账户上完成后才扣积分，任一校验失败不产生任何修改
func (s *RedemptionService) RedeemIn(ltx *LedgerTx, itemID string) (*RedeemResult, error) {
	item, err := s.econ.Rewards.Lookup(itemID)
	if err != nil {
		return nil, err
	}

	acc := ltx.Account()
	redeemed, err := s.redemptionRepo.GetCount(ltx.ctx, ltx.tx, acc.UserID, itemID)
	if err != nil {
		return nil, fmt.Errorf("查询兑换次数失败: %w", err)
	}

	err = economy.CheckRedemption(item, s.econ.Tiers, economy.RedemptionCheck{
		LifetimePoints:  acc.LifetimePointsEarned,
		PointsBalance:   acc.PointsBalance,
		RedeemedAlready: redeemed,
	})
	if err != nil {
		return nil, err
	}

	trans, err := ltx.Debit(model.AssetPoints, item.PointsCost, Entry{
		Kind:   model.TxnKindRedeem,
		Reason: fmt.Sprintf("兑换 %s", item.Name),
		RefNo:  item.ID,
	})
	if err != nil {
		return nil, err
	}

	if err := s.redemptionRepo.Increment(ltx.ctx, ltx.tx, acc.UserID, itemID); err != nil {
		return nil, fmt.Errorf("更新兑换次数失败: %w", err)
	}

	return &RedeemResult{
		ItemID:        item.ID,
		ItemName:      item.Name,
		PointsCost:    item.PointsCost,
		TransactionNo: trans.TransactionNo,
		PointsBalance: acc.PointsBalance,
		Redeemed:      redeemed + 1,
	}, nil
}

func (s *RedemptionService) Redeem(ctx context.Context, userID int64, itemID string) (*RedeemResult, error) {
	var result *RedeemResult
	err := s.ledger.Execute(ctx, userID, func(ltx *LedgerTx) error {
		var err error
		result, err = s.RedeemIn(ltx, itemID)
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[Redemption] 兑换成功: userID=%d, item=%s, cost=%d", userID, itemID, result.PointsCost)
	return result, nil
}

// Catalog userID 为 0 或账户不存在时按新账户标注
func (s *RedemptionService) Catalog(ctx context.Context, userID int64) ([]CatalogEntry, error) {
	account := &model.Account{}
	counts := map[string]int{}

	if userID > 0 {
		acc, err := s.ledger.Read(ctx, userID)
		switch {
		case err == nil:
			account = acc
			counts, err = s.redemptionRepo.CountsByUser(ctx, userID)
			if err != nil {
				return nil, fmt.Errorf("查询兑换次数失败: %w", err)
			}
		case errors.Is(err, economy.ErrUnknownAccount):
		default:
			return nil, err
		}
	}

	tier := s.econ.Tiers.TierOf(account.LifetimePointsEarned)
	items := s.econ.Rewards.All()
	entries := make([]CatalogEntry, 0, len(items))
	for _, item := range items {
		redeemed := counts[item.ID]
		entries = append(entries, CatalogEntry{
			RewardItem: item,
			Affordable: account.PointsBalance >= item.PointsCost,
			TierMet:    s.econ.Tiers.Meets(tier, item.MinTier),
			Redeemed:   redeemed,
			Remaining:  item.Remaining(redeemed),
			Available: economy.CheckRedemption(item, s.econ.Tiers, economy.RedemptionCheck{
				LifetimePoints:  account.LifetimePointsEarned,
				PointsBalance:   account.PointsBalance,
				RedeemedAlready: redeemed,
			}) == nil,
		})
	}
	return entries, nil
}
