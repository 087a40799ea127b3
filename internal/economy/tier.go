package economy

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Tier 会员等级，由累计获得积分决定
type Tier struct {
	Name              string          `json:"name"`
	Rank              int             `json:"rank"`
	MinLifetimePoints int64           `json:"min_lifetime_points"`
	Multiplier        decimal.Decimal `json:"multiplier"`
	BonusStakingAPY   decimal.Decimal `json:"bonus_staking_apy"`
}

// TierProgress 距离下一等级的进度
type TierProgress struct {
	Current         Tier    `json:"current"`
	NextTier        *Tier   `json:"next_tier"`
	PointsRemaining int64   `json:"points_remaining"`
	Percent         float64 `json:"percent"`
}

// TierTable 有序等级表，创建后只读
type TierTable struct {
	tiers []Tier
}

// NewTierTable 校验并创建等级表
//
// 约束：第一档门槛为 0，门槛严格递增，倍率不低于 1 且随等级不递减
func NewTierTable(tiers []Tier) (*TierTable, error) {
	if len(tiers) == 0 {
		return nil, errors.New("等级表不能为空")
	}
	if tiers[0].MinLifetimePoints != 0 {
		return nil, errors.New("第一档等级门槛必须为0")
	}

	out := make([]Tier, len(tiers))
	one := decimal.NewFromInt(1)
	for i, t := range tiers {
		if t.Name == "" {
			return nil, fmt.Errorf("第 %d 档等级缺少名称", i)
		}
		if t.Multiplier.LessThan(one) {
			return nil, fmt.Errorf("等级 %s 倍率不能小于1", t.Name)
		}
		if i > 0 {
			prev := tiers[i-1]
			if t.MinLifetimePoints <= prev.MinLifetimePoints {
				return nil, fmt.Errorf("等级 %s 门槛必须大于 %s", t.Name, prev.Name)
			}
			if t.Multiplier.LessThan(prev.Multiplier) {
				return nil, fmt.Errorf("等级 %s 倍率不能低于 %s", t.Name, prev.Name)
			}
		}
		t.Rank = i
		out[i] = t
	}
	return &TierTable{tiers: out}, nil
}

// TierOf 返回门槛不超过 lifetimePoints 的最高等级
func (t *TierTable) TierOf(lifetimePoints int64) Tier {
	current := t.tiers[0]
	for _, tier := range t.tiers[1:] {
		if lifetimePoints < tier.MinLifetimePoints {
			break
		}
		current = tier
	}
	return current
}

func (t *TierTable) MultiplierOf(tier Tier) decimal.Decimal {
	return tier.Multiplier
}

// ProgressToNext 已是最高等级时 NextTier 为 nil，Percent 为 100
func (t *TierTable) ProgressToNext(lifetimePoints int64) TierProgress {
	current := t.TierOf(lifetimePoints)
	if current.Rank == len(t.tiers)-1 {
		return TierProgress{Current: current, Percent: 100}
	}

	next := t.tiers[current.Rank+1]
	span := decimal.NewFromInt(next.MinLifetimePoints - current.MinLifetimePoints)
	done := decimal.NewFromInt(lifetimePoints - current.MinLifetimePoints)
	if done.IsNegative() {
		done = decimal.Zero
	}
	percent := done.Mul(decimal.NewFromInt(100)).Div(span).Round(2)

	return TierProgress{
		Current:         current,
		NextTier:        &next,
		PointsRemaining: next.MinLifetimePoints - lifetimePoints,
		Percent:         percent.InexactFloat64(),
	}
}

// Lookup 按名称查找等级，不区分大小写
func (t *TierTable) Lookup(name string) (Tier, bool) {
	for _, tier := range t.tiers {
		if strings.EqualFold(tier.Name, name) {
			return tier, true
		}
	}
	return Tier{}, false
}

// Meets minTier 为空表示无等级要求，未知等级视为不满足
func (t *TierTable) Meets(tier Tier, minTier string) bool {
	if minTier == "" {
		return true
	}
	required, ok := t.Lookup(minTier)
	if !ok {
		return false
	}
	return tier.Rank >= required.Rank
}

func (t *TierTable) All() []Tier {
	out := make([]Tier, len(t.tiers))
	copy(out, t.tiers)
	return out
}
