package economy

import "fmt"

// RewardItem 兑换商城中的奖励
type RewardItem struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Partner         string `json:"partner"`
	Category        string `json:"category"`
	PointsCost      int64  `json:"points_cost"`
	MinTier         string `json:"min_tier,omitempty"`
	InStock         bool   `json:"in_stock"`
	LimitPerAccount int    `json:"limit_per_account,omitempty"` // 0 表示不限
	Featured        bool   `json:"featured"`
}

type RewardCatalog struct {
	items []RewardItem
	byID  map[string]RewardItem
}

// NewRewardCatalog minTier 必须是等级表中存在的等级
func NewRewardCatalog(items []RewardItem, tiers *TierTable) (*RewardCatalog, error) {
	c := &RewardCatalog{byID: make(map[string]RewardItem, len(items))}
	for _, item := range items {
		if item.ID == "" {
			return nil, fmt.Errorf("奖励缺少ID")
		}
		if item.PointsCost <= 0 {
			return nil, fmt.Errorf("奖励 %s 积分价格必须大于0", item.ID)
		}
		if item.LimitPerAccount < 0 {
			return nil, fmt.Errorf("奖励 %s 兑换上限不能为负", item.ID)
		}
		if item.MinTier != "" {
			if _, ok := tiers.Lookup(item.MinTier); !ok {
				return nil, fmt.Errorf("奖励 %s 的等级要求 %s 不存在", item.ID, item.MinTier)
			}
		}
		if _, dup := c.byID[item.ID]; dup {
			return nil, fmt.Errorf("奖励ID重复: %s", item.ID)
		}
		c.byID[item.ID] = item
		c.items = append(c.items, item)
	}
	return c, nil
}

func (c *RewardCatalog) Lookup(id string) (RewardItem, error) {
	item, ok := c.byID[id]
	if !ok {
		return RewardItem{}, ErrUnknownItem
	}
	return item, nil
}

func (c *RewardCatalog) All() []RewardItem {
	out := make([]RewardItem, len(c.items))
	copy(out, c.items)
	return out
}

// RedemptionCheck 兑换前校验所需的账户状态
type RedemptionCheck struct {
	LifetimePoints  int64
	PointsBalance   int64
	RedeemedAlready int
}

// CheckRedemption 按顺序校验，遇到第一个失败即返回：
// 库存 -> 等级 -> 兑换上限 -> 积分余额
func CheckRedemption(item RewardItem, tiers *TierTable, state RedemptionCheck) error {
	if !item.InStock {
		return ErrOutOfStock
	}
	if !tiers.Meets(tiers.TierOf(state.LifetimePoints), item.MinTier) {
		return ErrTierNotMet
	}
	if item.LimitPerAccount > 0 && state.RedeemedAlready >= item.LimitPerAccount {
		return ErrLimitReached
	}
	if state.PointsBalance < item.PointsCost {
		return ErrInsufficientPoints
	}
	return nil
}

// Remaining 剩余可兑换次数，-1 表示不限
func (item RewardItem) Remaining(redeemed int) int {
	if item.LimitPerAccount == 0 {
		return -1
	}
	if left := item.LimitPerAccount - redeemed; left > 0 {
		return left
	}
	return 0
}
