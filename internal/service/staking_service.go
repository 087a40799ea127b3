package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"rewardsystem/internal/economy"
	"rewardsystem/internal/model"
	"rewardsystem/internal/repository"
	"rewardsystem/pkg/idgen"

	"gorm.io/gorm"
)

// StakeView 质押仓位和按当前时间计算的待领取收益
type StakeView struct {
	*model.Stake
	PoolName        string `json:"pool_name"`
	PendingRewards  int64  `json:"pending_rewards"`
	AccruedDays     int64  `json:"accrued_days"`
	Unlocked        bool   `json:"unlocked"`
	PenaltyIfForced int64  `json:"penalty_if_forced"`
	StreakBoosted   bool   `json:"streak_boosted"`
}

type ClaimResult struct {
	StakeNo        string `json:"stake_no"`
	Amount         int64  `json:"amount"`
	PointsCredited int64  `json:"points_credited"`
	Days           int64  `json:"days"`
}

type CompoundResult struct {
	StakeNo            string `json:"stake_no"`
	Amount             int64  `json:"amount"`
	EffectivePrincipal int64  `json:"effective_principal"`
}

type UnstakeResult struct {
	StakeNo        string `json:"stake_no"`
	Early          bool   `json:"early"`
	Principal      int64  `json:"principal"`
	Penalty        int64  `json:"penalty"`
	Returned       int64  `json:"returned"`
	Rewards        int64  `json:"rewards"`
	PointsCredited int64  `json:"points_credited"`
}

// StakingService 质押：创建、领取收益、复投、赎回
//
// 收益不靠定时任务累积，每次都由 last_accrual_at 到当前时间的整天数计算，
// 只有领取/复投/赎回成功提交时才前移 last_accrual_at
type StakingService struct {
	db         *gorm.DB
	econ       *economy.Economy
	ledger     *LedgerService
	points     *PointsService
	clock      economy.Clock
	stakeRepo  *repository.StakeRepository
	outboxRepo *repository.OutboxRepository
}

func NewStakingService(db *gorm.DB, econ *economy.Economy, ledger *LedgerService, points *PointsService, clock economy.Clock) *StakingService {
	return &StakingService{
		db:         db,
		econ:       econ,
		ledger:     ledger,
		points:     points,
		clock:      clock,
		stakeRepo:  repository.NewStakeRepository(db),
		outboxRepo: repository.NewOutboxRepository(db),
	}
}

// accrue 纯计算；连续签到倍率使用账户当前有效的连续天数
func (s *StakingService) accrue(stake *model.Stake, pool economy.Pool, account *model.Account, now time.Time) economy.Accrual {
	if !stake.IsActive() {
		return economy.Accrual{Anchor: stake.LastAccrualAt}
	}
	streak := economy.EffectiveStreak(account.Streak(), s.econ.Today(now))
	factor := economy.StreakFactor(pool, streak, s.econ.FullStreakDays)
	return economy.Accrue(stake.EffectivePrincipal, pool, stake.LastAccrualAt, now, factor)
}

// Preview 不修改任何状态，重复调用结果一致
func (s *StakingService) Preview(stake *model.Stake, account *model.Account, now time.Time) StakeView {
	view := StakeView{Stake: stake}
	pool, err := s.econ.Pools.Lookup(stake.PoolID)
	if err != nil {
		return view
	}

	acc := s.accrue(stake, pool, account, now)
	view.PoolName = pool.Name
	view.PendingRewards = acc.Amount
	view.AccruedDays = acc.Days
	view.Unlocked = !now.Before(stake.UnlocksAt)
	streak := economy.EffectiveStreak(account.Streak(), s.econ.Today(now))
	view.StreakBoosted = stake.IsActive() && s.econ.FullStreakDays > 0 && streak >= s.econ.FullStreakDays
	if stake.IsActive() && !view.Unlocked {
		view.PenaltyIfForced = pool.Penalty(stake.EffectivePrincipal)
	}
	return view
}

func (s *StakingService) ListStakes(ctx context.Context, account *model.Account, now time.Time) ([]StakeView, error) {
	stakes, err := s.stakeRepo.ListByUserID(ctx, nil, account.UserID, false)
	if err != nil {
		return nil, fmt.Errorf("查询质押失败: %w", err)
	}
	views := make([]StakeView, 0, len(stakes))
	for _, stake := range stakes {
		views = append(views, s.Preview(stake, account, now))
	}
	return views, nil
}

// StakeIn 先校验区间，再扣货币，最后创建仓位
func (s *StakingService) StakeIn(ltx *LedgerTx, poolID string, amount int64) (*StakeView, error) {
	pool, err := s.econ.Pools.Lookup(poolID)
	if err != nil {
		return nil, err
	}
	if err := pool.CheckAmount(amount); err != nil {
		return nil, err
	}

	now := ltx.Now()
	stakeNo := idgen.GenerateStakeNo()
	_, err = ltx.Debit(model.AssetCurrency, amount, Entry{
		Kind:   model.TxnKindStake,
		Reason: fmt.Sprintf("质押到 %s", pool.Name),
		RefNo:  stakeNo,
	})
	if err != nil {
		return nil, err
	}

	stake := &model.Stake{
		StakeNo:            stakeNo,
		UserID:             ltx.Account().UserID,
		PoolID:             pool.ID,
		Principal:          amount,
		EffectivePrincipal: amount,
		StakedAt:           now,
		UnlocksAt:          pool.UnlocksAt(now),
		LastAccrualAt:      now,
		Status:             model.StakeStatusActive,
	}
	if err := s.stakeRepo.Create(ltx.ctx, ltx.tx, stake); err != nil {
		return nil, fmt.Errorf("创建质押失败: %w", err)
	}

	view := s.Preview(stake, ltx.Account(), now)
	return &view, nil
}

func (s *StakingService) loadActive(ltx *LedgerTx, stakeNo string) (*model.Stake, economy.Pool, error) {
	stake, err := s.stakeRepo.GetByStakeNoForUpdate(ltx.ctx, ltx.tx, ltx.Account().UserID, stakeNo)
	if err != nil {
		if errors.Is(err, repository.ErrStakeNotFound) {
			return nil, economy.Pool{}, economy.ErrUnknownStake
		}
		return nil, economy.Pool{}, fmt.Errorf("查询质押失败: %w", err)
	}
	if !stake.IsActive() {
		return nil, economy.Pool{}, economy.ErrStakeClosed
	}
	pool, err := s.econ.Pools.Lookup(stake.PoolID)
	if err != nil {
		return nil, economy.Pool{}, err
	}
	return stake, pool, nil
}

// ClaimIn 待领取为 0 时不做任何修改；last_accrual_at 只前移已计息的整天数
func (s *StakingService) ClaimIn(ltx *LedgerTx, stakeNo string) (*ClaimResult, error) {
	stake, pool, err := s.loadActive(ltx, stakeNo)
	if err != nil {
		return nil, err
	}

	acc := s.accrue(stake, pool, ltx.Account(), ltx.Now())
	result := &ClaimResult{StakeNo: stakeNo}
	if acc.Amount <= 0 {
		return result, nil
	}

	stake.LastAccrualAt = acc.Anchor
	stake.TotalClaimed += acc.Amount
	if err := s.stakeRepo.Update(ltx.ctx, ltx.tx, stake, model.StakeStatusActive); err != nil {
		return nil, err
	}

	_, err = ltx.Credit(model.AssetCurrency, acc.Amount, Entry{
		Kind:   model.TxnKindStakeReward,
		Reason: fmt.Sprintf("%s 质押收益 %d 天", pool.Name, acc.Days),
		Source: string(economy.SourceStakeReward),
		RefNo:  stakeNo,
	})
	if err != nil {
		return nil, err
	}

	points, err := s.points.ConvertIn(ltx, acc.Amount, economy.SourceStakeReward, stakeNo)
	if err != nil {
		return nil, err
	}

	result.Amount = acc.Amount
	result.PointsCredited = points
	result.Days = acc.Days
	return result, nil
}

// ClaimAllIn 逐个领取所有进行中的质押，没有收益的跳过
func (s *StakingService) ClaimAllIn(ltx *LedgerTx) ([]ClaimResult, error) {
	stakes, err := s.stakeRepo.ListByUserID(ltx.ctx, ltx.tx, ltx.Account().UserID, true)
	if err != nil {
		return nil, fmt.Errorf("查询质押失败: %w", err)
	}

	results := make([]ClaimResult, 0, len(stakes))
	for _, stake := range stakes {
		r, err := s.ClaimIn(ltx, stake.StakeNo)
		if err != nil {
			return nil, err
		}
		if r.Amount > 0 {
			results = append(results, *r)
		}
	}
	return results, nil
}

// CompoundIn 收益并入有效本金；超过质押池上限时拒绝
func (s *StakingService) CompoundIn(ltx *LedgerTx, stakeNo string) (*CompoundResult, error) {
	stake, pool, err := s.loadActive(ltx, stakeNo)
	if err != nil {
		return nil, err
	}

	acc := s.accrue(stake, pool, ltx.Account(), ltx.Now())
	result := &CompoundResult{StakeNo: stakeNo, EffectivePrincipal: stake.EffectivePrincipal}
	if acc.Amount <= 0 {
		return result, nil
	}
	if stake.EffectivePrincipal+acc.Amount > pool.MaxStake {
		return nil, economy.ErrAboveMaximumStake
	}

	stake.EffectivePrincipal += acc.Amount
	stake.TotalCompounded += acc.Amount
	stake.LastAccrualAt = acc.Anchor
	if err := s.stakeRepo.Update(ltx.ctx, ltx.tx, stake, model.StakeStatusActive); err != nil {
		return nil, err
	}

	result.Amount = acc.Amount
	result.EffectivePrincipal = stake.EffectivePrincipal
	return result, nil
}

// UnstakeIn 到期赎回无罚金；未到期需要 force，罚金只扣本金部分，未领取收益全额发放
func (s *StakingService) UnstakeIn(ltx *LedgerTx, stakeNo string, force bool) (*UnstakeResult, error) {
	stake, pool, err := s.loadActive(ltx, stakeNo)
	if err != nil {
		return nil, err
	}

	now := ltx.Now()
	early := now.Before(stake.UnlocksAt)
	if early && !force {
		return nil, economy.ErrStillLocked
	}

	acc := s.accrue(stake, pool, ltx.Account(), now)
	var penalty int64
	if early {
		penalty = pool.Penalty(stake.EffectivePrincipal)
	}
	returned := stake.EffectivePrincipal - penalty

	stake.Status = model.StakeStatusUnstaked
	stake.LastAccrualAt = acc.Anchor
	stake.TotalClaimed += acc.Amount
	stake.PenaltyAmount = penalty
	stake.ReturnedAmount = returned
	stake.UnstakedAt = &now
	if err := s.stakeRepo.Update(ltx.ctx, ltx.tx, stake, model.StakeStatusActive); err != nil {
		return nil, err
	}

	result := &UnstakeResult{
		StakeNo:   stakeNo,
		Early:     early,
		Principal: stake.EffectivePrincipal,
		Penalty:   penalty,
		Returned:  returned,
		Rewards:   acc.Amount,
	}

	if returned > 0 {
		reason := fmt.Sprintf("赎回 %s", pool.Name)
		if penalty > 0 {
			reason = fmt.Sprintf("提前赎回 %s，罚金 %d", pool.Name, penalty)
		}
		_, err := ltx.Credit(model.AssetCurrency, returned, Entry{
			Kind:   model.TxnKindUnstake,
			Reason: reason,
			RefNo:  stakeNo,
		})
		if err != nil {
			return nil, err
		}
	}

	if acc.Amount > 0 {
		_, err := ltx.Credit(model.AssetCurrency, acc.Amount, Entry{
			Kind:   model.TxnKindStakeReward,
			Reason: fmt.Sprintf("%s 赎回时结算收益 %d 天", pool.Name, acc.Days),
			Source: string(economy.SourceStakeReward),
			RefNo:  stakeNo,
		})
		if err != nil {
			return nil, err
		}
		points, err := s.points.ConvertIn(ltx, acc.Amount, economy.SourceStakeReward, stakeNo)
		if err != nil {
			return nil, err
		}
		result.PointsCredited = points
	}

	return result, nil
}

func (s *StakingService) Stake(ctx context.Context, userID int64, poolID string, amount int64) (*StakeView, error) {
	var view *StakeView
	err := s.ledger.Execute(ctx, userID, func(ltx *LedgerTx) error {
		var err error
		view, err = s.StakeIn(ltx, poolID, amount)
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[Staking] 质押成功: userID=%d, stakeNo=%s, pool=%s, amount=%d", userID, view.StakeNo, poolID, amount)
	return view, nil
}

func (s *StakingService) Claim(ctx context.Context, userID int64, stakeNo string) (*ClaimResult, error) {
	var result *ClaimResult
	err := s.ledger.Execute(ctx, userID, func(ltx *LedgerTx) error {
		var err error
		result, err = s.ClaimIn(ltx, stakeNo)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *StakingService) ClaimAll(ctx context.Context, userID int64) ([]ClaimResult, error) {
	var results []ClaimResult
	err := s.ledger.Execute(ctx, userID, func(ltx *LedgerTx) error {
		var err error
		results, err = s.ClaimAllIn(ltx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (s *StakingService) Compound(ctx context.Context, userID int64, stakeNo string) (*CompoundResult, error) {
	var result *CompoundResult
	err := s.ledger.Execute(ctx, userID, func(ltx *LedgerTx) error {
		var err error
		result, err = s.CompoundIn(ltx, stakeNo)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *StakingService) Unstake(ctx context.Context, userID int64, stakeNo string, force bool) (*UnstakeResult, error) {
	var result *UnstakeResult
	err := s.ledger.Execute(ctx, userID, func(ltx *LedgerTx) error {
		var err error
		result, err = s.UnstakeIn(ltx, stakeNo, force)
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[Staking] 赎回成功: userID=%d, stakeNo=%s, returned=%d, penalty=%d, rewards=%d",
		userID, stakeNo, result.Returned, result.Penalty, result.Rewards)
	return result, nil
}

// NotifyUnlocked 为已过锁定期的仓位写入一次 stake.unlocked 事件，不涉及余额
func (s *StakingService) NotifyUnlocked(ctx context.Context, topic string, limit int) (int, error) {
	now := s.clock.Now().UTC()
	stakes, err := s.stakeRepo.ListUnlockedUnnotified(ctx, now, limit)
	if err != nil {
		return 0, fmt.Errorf("查询到期质押失败: %w", err)
	}

	notified := 0
	for _, stake := range stakes {
		payload, _ := json.Marshal(map[string]interface{}{
			"stake_no":   stake.StakeNo,
			"user_id":    stake.UserID,
			"pool_id":    stake.PoolID,
			"principal":  stake.EffectivePrincipal,
			"unlocks_at": stake.UnlocksAt.Format(time.RFC3339),
		})

		var marked bool
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var err error
			marked, err = s.stakeRepo.MarkUnlockNotified(ctx, tx, stake.ID)
			if err != nil || !marked {
				return err
			}
			return s.outboxRepo.Create(ctx, tx, &model.OutboxMessage{
				MessageKey: stake.StakeNo,
				EventType:  model.EventStakeUnlocked,
				Topic:      topic,
				Payload:    string(payload),
				Status:     model.OutboxStatusPending,
			})
		})
		if err != nil {
			log.Printf("[Staking] 写入解锁通知失败: stakeNo=%s, err=%v", stake.StakeNo, err)
			continue
		}
		if marked {
			notified++
		}
	}
	return notified, nil
}
