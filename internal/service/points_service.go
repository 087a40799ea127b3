package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"rewardsystem/internal/economy"
	"rewardsystem/internal/model"
)

// PointsService 把货币收益按来源换算成积分
type PointsService struct {
	econ   *economy.Economy
	ledger *LedgerService
}

func NewPointsService(econ *economy.Economy, ledger *LedgerService) *PointsService {
	return &PointsService{econ: econ, ledger: ledger}
}

// ConvertIn 在调用方的提交中换算并入账积分
//
// 倍率取入账前的累计积分对应的等级：本次入账导致的升级只影响下一次
func (s *PointsService) ConvertIn(ltx *LedgerTx, currencyAmount int64, source economy.Source, refNo string) (int64, error) {
	multiplier := s.econ.Tiers.MultiplierOf(s.econ.Tiers.TierOf(ltx.Account().LifetimePointsEarned))

	points, err := s.econ.Rates.Points(source, currencyAmount, multiplier)
	if err != nil {
		return 0, err
	}
	if points <= 0 {
		return 0, nil
	}

	_, err = ltx.Credit(model.AssetPoints, points, Entry{
		Kind:   model.TxnKindEarn,
		Reason: fmt.Sprintf("%s 换算积分 x%s", source, multiplier.String()),
		Source: string(source),
		RefNo:  refNo,
	})
	if err != nil {
		return 0, err
	}
	return points, nil
}

// ConvertEarning 单独提交一次积分换算
func (s *PointsService) ConvertEarning(ctx context.Context, userID int64, currencyAmount int64, source economy.Source) (int64, error) {
	if _, ok := s.econ.Rates.Lookup(source); !ok {
		return 0, economy.ErrUnknownSource
	}

	var points int64
	err := s.ledger.Execute(ctx, userID, func(ltx *LedgerTx) error {
		var err error
		points, err = s.ConvertIn(ltx, currencyAmount, source, "")
		return err
	})
	if err != nil {
		return 0, err
	}
	return points, nil
}

// ExpireInactive 账户在 cutoff 之前没有任何活动时清空积分余额
// 累计获得/兑换积分不变；加锁后重新判断，期间有新活动则不处理
func (s *PointsService) ExpireInactive(ctx context.Context, userID int64, cutoff time.Time) (int64, error) {
	var expired int64
	err := s.ledger.Execute(ctx, userID, func(ltx *LedgerTx) error {
		acc := ltx.Account()
		if acc.PointsBalance <= 0 || !acc.LastActivityAt.Before(cutoff) {
			return nil
		}

		expired = acc.PointsBalance
		_, err := ltx.Debit(model.AssetPoints, expired, Entry{
			Kind:   model.TxnKindExpire,
			Reason: "长期未活跃，积分过期",
		})
		return err
	})
	if err != nil {
		return 0, err
	}
	if expired > 0 {
		log.Printf("[Points] 积分过期: userID=%d, points=%d", userID, expired)
	}
	return expired, nil
}
