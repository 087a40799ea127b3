package service

import (
	"context"
	"fmt"

	"rewardsystem/internal/economy"
	"rewardsystem/internal/model"
)

type StreakResult struct {
	CurrentLength  int          `json:"current_length"`
	LongestLength  int          `json:"longest_length"`
	TotalDays      int          `json:"total_days_active"`
	LastDate       economy.Date `json:"last_credited_date"`
	IsNewDay       bool         `json:"is_new_day"`
	Bonus          int64        `json:"bonus"`
	PointsCredited int64        `json:"points_credited"`
}

// StreakService 每日签到
type StreakService struct {
	econ   *economy.Economy
	ledger *LedgerService
	points *PointsService
}

func NewStreakService(econ *economy.Economy, ledger *LedgerService, points *PointsService) *StreakService {
	return &StreakService{econ: econ, ledger: ledger, points: points}
}

// RecordIn 以 today 与 last_credited_date 的比较作为幂等依据，同一天只会发放一次奖励
func (s *StreakService) RecordIn(ltx *LedgerTx, today economy.Date) (*StreakResult, error) {
	next, isNewDay := economy.AdvanceStreak(ltx.Account().Streak(), today)
	result := &StreakResult{
		CurrentLength: next.Current,
		LongestLength: next.Longest,
		TotalDays:     next.TotalDays,
		LastDate:      next.LastDate,
		IsNewDay:      isNewDay,
	}
	if !isNewDay {
		return result, nil
	}

	if err := ltx.SetStreak(next); err != nil {
		return nil, err
	}

	bonus := s.econ.Milestones.BonusFor(next.Current)
	if bonus <= 0 {
		return result, nil
	}

	_, err := ltx.Credit(model.AssetCurrency, bonus, Entry{
		Kind:   model.TxnKindStreakBonus,
		Reason: fmt.Sprintf("连续签到第 %d 天", next.Current),
		Source: string(economy.SourceStreakClaim),
		RefNo:  today.String(),
	})
	if err != nil {
		return nil, err
	}

	points, err := s.points.ConvertIn(ltx, bonus, economy.SourceStreakClaim, today.String())
	if err != nil {
		return nil, err
	}

	result.Bonus = bonus
	result.PointsCredited = points
	return result, nil
}

// RecordActivity today 取服务器时钟在经济时区下的日期
func (s *StreakService) RecordActivity(ctx context.Context, userID int64) (*StreakResult, error) {
	var result *StreakResult
	err := s.ledger.Execute(ctx, userID, func(ltx *LedgerTx) error {
		var err error
		result, err = s.RecordIn(ltx, ltx.Today())
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RecordActivityOn 指定日期签到
func (s *StreakService) RecordActivityOn(ctx context.Context, userID int64, today economy.Date) (*StreakResult, error) {
	var result *StreakResult
	err := s.ledger.Execute(ctx, userID, func(ltx *LedgerTx) error {
		var err error
		result, err = s.RecordIn(ltx, today)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

type StreakView struct {
	CurrentLength   int                `json:"current_length"`
	EffectiveLength int                `json:"effective_length"`
	LongestLength   int                `json:"longest_length"`
	TotalDays       int                `json:"total_days_active"`
	LastDate        economy.Date       `json:"last_credited_date"`
	CheckedInToday  bool               `json:"checked_in_today"`
	TodayBonus      int64              `json:"today_bonus"`
	NextMilestone   *economy.Milestone `json:"next_milestone,omitempty"`
}

// View 只读，不修改状态；断签后 EffectiveLength 为 0
func (s *StreakService) View(account *model.Account, today economy.Date) StreakView {
	state := account.Streak()
	effective := economy.EffectiveStreak(state, today)
	checkedIn := state.LastDate == today

	// 今天签到后会达到的长度
	upcoming := effective + 1
	if checkedIn {
		upcoming = effective
	}

	view := StreakView{
		CurrentLength:   state.Current,
		EffectiveLength: effective,
		LongestLength:   state.Longest,
		TotalDays:       state.TotalDays,
		LastDate:        state.LastDate,
		CheckedInToday:  checkedIn,
		TodayBonus:      s.econ.Milestones.BonusFor(upcoming),
	}
	if next, ok := s.econ.Milestones.Next(upcoming); ok {
		view.NextMilestone = &next
	}
	return view
}
