package economy

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Source 收益来源
type Source string

const (
	SourceMissionComplete Source = "mission_complete"
	SourceStreakClaim     Source = "daily_streak"
	SourceInterestPayout  Source = "interest_payout"
	SourceStakeReward     Source = "stake_reward"
	SourceReferral        Source = "referral"
	SourceLevelUp         Source = "level_up"
	SourceFirstMission    Source = "first_mission"
	SourceWeeklyBonus     Source = "weekly_bonus"
)

var hundred = decimal.NewFromInt(100)

// Rate 积分换算规则：按百分比换算，或者固定积分（与金额无关）
type Rate struct {
	Source  Source          `json:"source"`
	Percent decimal.Decimal `json:"percent"`
	Flat    int64           `json:"flat"`
}

func (r Rate) IsFlat() bool {
	return r.Flat > 0
}

type RateTable struct {
	rates map[Source]Rate
	order []Source
}

func NewRateTable(rates []Rate) (*RateTable, error) {
	t := &RateTable{rates: make(map[Source]Rate, len(rates))}
	for _, r := range rates {
		if r.Source == "" {
			return nil, fmt.Errorf("换算规则缺少来源")
		}
		if _, dup := t.rates[r.Source]; dup {
			return nil, fmt.Errorf("换算来源重复: %s", r.Source)
		}
		hasPercent := r.Percent.IsPositive()
		if hasPercent == r.IsFlat() {
			return nil, fmt.Errorf("来源 %s 必须且只能配置百分比或固定积分之一", r.Source)
		}
		t.rates[r.Source] = r
		t.order = append(t.order, r.Source)
	}
	return t, nil
}

func (t *RateTable) Lookup(source Source) (Rate, bool) {
	r, ok := t.rates[source]
	return r, ok
}

// Base 未乘等级倍率的基础积分（不取整）
func (t *RateTable) Base(source Source, currencyAmount int64) (decimal.Decimal, error) {
	r, ok := t.rates[source]
	if !ok {
		return decimal.Zero, ErrUnknownSource
	}
	if r.IsFlat() {
		return decimal.NewFromInt(r.Flat), nil
	}
	if currencyAmount <= 0 {
		return decimal.Zero, nil
	}
	return decimal.NewFromInt(currencyAmount).Mul(r.Percent).Div(hundred), nil
}

// Points floor(base * multiplier)，只在最后取整一次
func (t *RateTable) Points(source Source, currencyAmount int64, multiplier decimal.Decimal) (int64, error) {
	base, err := t.Base(source, currencyAmount)
	if err != nil {
		return 0, err
	}
	return base.Mul(multiplier).Floor().IntPart(), nil
}

func (t *RateTable) All() []Rate {
	out := make([]Rate, 0, len(t.order))
	for _, s := range t.order {
		out = append(out, t.rates[s])
	}
	return out
}
