package economy

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"rewardsystem/internal/config"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func DefaultTiers() []Tier {
	return []Tier{
		{Name: "starter", MinLifetimePoints: 0, Multiplier: d("1.0"), BonusStakingAPY: d("0")},
		{Name: "bronze", MinLifetimePoints: 500, Multiplier: d("1.1"), BonusStakingAPY: d("2")},
		{Name: "silver", MinLifetimePoints: 2000, Multiplier: d("1.25"), BonusStakingAPY: d("5")},
		{Name: "gold", MinLifetimePoints: 5000, Multiplier: d("1.5"), BonusStakingAPY: d("10")},
		{Name: "platinum", MinLifetimePoints: 15000, Multiplier: d("2.0"), BonusStakingAPY: d("20")},
	}
}

func DefaultRates() []Rate {
	return []Rate{
		{Source: SourceMissionComplete, Percent: d("10")},
		{Source: SourceStreakClaim, Percent: d("15")},
		{Source: SourceInterestPayout, Percent: d("20")},
		{Source: SourceStakeReward, Percent: d("10")},
		{Source: SourceReferral, Flat: 200},
		{Source: SourceLevelUp, Flat: 50},
		{Source: SourceFirstMission, Flat: 100},
		{Source: SourceWeeklyBonus, Flat: 25},
	}
}

func DefaultPools() []Pool {
	return []Pool{
		{ID: "flex", Name: "Flex Saver", LockPeriodDays: 0, APYPercent: d("5"), MinStake: 50, MaxStake: 1000,
			EarlyUnstakePenaltyPercent: d("0"), StreakMultiplierAtFullStreak: d("1.0")},
		{ID: "starter", Name: "Starter Vault", LockPeriodDays: 7, APYPercent: d("12"), MinStake: 100, MaxStake: 2500,
			EarlyUnstakePenaltyPercent: d("10"), StreakMultiplierAtFullStreak: d("1.1")},
		{ID: "hodl", Name: "HODL Vault", LockPeriodDays: 14, APYPercent: d("25"), MinStake: 250, MaxStake: 5000,
			EarlyUnstakePenaltyPercent: d("15"), StreakMultiplierAtFullStreak: d("1.25")},
		{ID: "whale", Name: "Whale Pool", LockPeriodDays: 30, APYPercent: d("50"), MinStake: 500, MaxStake: 10000,
			EarlyUnstakePenaltyPercent: d("20"), StreakMultiplierAtFullStreak: d("1.5")},
		{ID: "legend", Name: "Legend Vault", LockPeriodDays: 60, APYPercent: d("100"), MinStake: 1000, MaxStake: 25000,
			EarlyUnstakePenaltyPercent: d("25"), StreakMultiplierAtFullStreak: d("2.0")},
	}
}

func DefaultRewards() []RewardItem {
	return []RewardItem{
		{ID: "boost-smoothie", Name: "Boost Juice Smoothie", Partner: "Boost Juice", Category: "food", PointsCost: 800, InStock: true},
		{ID: "maccas-small-meal", Name: "McDonald's Small Meal", Partner: "McDonald's", Category: "food", PointsCost: 1000, InStock: true, Featured: true},
		{ID: "starbucks-tall", Name: "Starbucks Tall Drink", Partner: "Starbucks", Category: "food", PointsCost: 600, InStock: true},
		{ID: "gyg-burrito", Name: "GYG Burrito or Bowl", Partner: "Guzman y Gomez", Category: "food", PointsCost: 1500, InStock: true, Featured: true},
		{ID: "krispy-dozen", Name: "Krispy Kreme Dozen", Partner: "Krispy Kreme", Category: "food", PointsCost: 2000, InStock: true},
		{ID: "spotify-month", Name: "Spotify Premium 1 Month", Partner: "Spotify", Category: "entertainment", PointsCost: 1300, InStock: true, Featured: true},
		{ID: "netflix-month", Name: "Netflix Standard 1 Month", Partner: "Netflix", Category: "entertainment", PointsCost: 1700, InStock: true, Featured: true},
		{ID: "event-movie", Name: "Movie Ticket", Partner: "Event Cinemas", Category: "entertainment", PointsCost: 2200, InStock: true},
		{ID: "youtube-premium", Name: "YouTube Premium 1 Month", Partner: "YouTube", Category: "entertainment", PointsCost: 1500, InStock: true},
		{ID: "steam-10", Name: "Steam $10 Gift Card", Partner: "Steam", Category: "gaming", PointsCost: 1000, InStock: true, Featured: true},
		{ID: "steam-20", Name: "Steam $20 Gift Card", Partner: "Steam", Category: "gaming", PointsCost: 2000, InStock: true},
		{ID: "playstation-25", Name: "PlayStation $25 Credit", Partner: "PlayStation", Category: "gaming", PointsCost: 2500, InStock: true},
		{ID: "xbox-25", Name: "Xbox $25 Credit", Partner: "Xbox", Category: "gaming", PointsCost: 2500, InStock: true},
		{ID: "nintendo-20", Name: "Nintendo eShop $20", Partner: "Nintendo", Category: "gaming", PointsCost: 2000, InStock: true},
		{ID: "jbhifi-20", Name: "JB Hi-Fi $20 Gift Card", Partner: "JB Hi-Fi", Category: "shopping", PointsCost: 2000, MinTier: "bronze", InStock: true, Featured: true},
		{ID: "jbhifi-50", Name: "JB Hi-Fi $50 Gift Card", Partner: "JB Hi-Fi", Category: "shopping", PointsCost: 5000, MinTier: "silver", InStock: true},
		{ID: "cottonon-20", Name: "Cotton On $20 Voucher", Partner: "Cotton On", Category: "shopping", PointsCost: 2000, InStock: true},
		{ID: "rebel-25", Name: "Rebel Sport $25 Voucher", Partner: "Rebel Sport", Category: "shopping", PointsCost: 2500, InStock: true},
		{ID: "amazon-25", Name: "Amazon $25 Gift Card", Partner: "Amazon", Category: "shopping", PointsCost: 2500, MinTier: "bronze", InStock: true, Featured: true},
		{ID: "tree-plant", Name: "Plant a Tree", Partner: "One Tree Planted", Category: "charity", PointsCost: 100, InStock: true, Featured: true},
		{ID: "meal-donate", Name: "Donate 5 Meals", Partner: "Foodbank Australia", Category: "charity", PointsCost: 500, InStock: true},
		{ID: "ocean-cleanup", Name: "Remove 1kg Ocean Plastic", Partner: "Ocean Conservancy", Category: "charity", PointsCost: 300, InStock: true},
		{ID: "escape-room", Name: "Escape Room for 2", Partner: "Strike Bowling", Category: "experience", PointsCost: 8000, MinTier: "gold", InStock: true, LimitPerAccount: 1},
		{ID: "bowling-game", Name: "Bowling Game for 2", Partner: "Strike Bowling", Category: "experience", PointsCost: 3000, MinTier: "silver", InStock: true, LimitPerAccount: 2},
	}
}

func DefaultMilestones() []Milestone {
	return []Milestone{
		{Day: 1, Bonus: 10}, {Day: 2, Bonus: 15}, {Day: 3, Bonus: 25}, {Day: 5, Bonus: 40},
		{Day: 7, Bonus: 75}, {Day: 14, Bonus: 150}, {Day: 21, Bonus: 250}, {Day: 30, Bonus: 500},
	}
}

const DefaultFullStreakDays = 7

// Economy 启动时构建并校验的全部静态表，运行期只读
type Economy struct {
	Tiers          *TierTable
	Rates          *RateTable
	Pools          *PoolTable
	Rewards        *RewardCatalog
	Milestones     *MilestoneTable
	FullStreakDays int
	Location       *time.Location
}

// Today 当前时刻在经济时区下的日期
func (e *Economy) Today(now time.Time) Date {
	return DateOf(now, e.Location)
}

// New 用给定的表构建经济系统，任一表不满足约束即返回错误
func New(tiers []Tier, rates []Rate, pools []Pool, rewards []RewardItem, milestones []Milestone, fullStreakDays int, loc *time.Location) (*Economy, error) {
	tierTable, err := NewTierTable(tiers)
	if err != nil {
		return nil, err
	}
	rateTable, err := NewRateTable(rates)
	if err != nil {
		return nil, err
	}
	poolTable, err := NewPoolTable(pools)
	if err != nil {
		return nil, err
	}
	catalog, err := NewRewardCatalog(rewards, tierTable)
	if err != nil {
		return nil, err
	}
	milestoneTable, err := NewMilestoneTable(milestones)
	if err != nil {
		return nil, err
	}
	if fullStreakDays <= 0 {
		fullStreakDays = DefaultFullStreakDays
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Economy{
		Tiers:          tierTable,
		Rates:          rateTable,
		Pools:          poolTable,
		Rewards:        catalog,
		Milestones:     milestoneTable,
		FullStreakDays: fullStreakDays,
		Location:       loc,
	}, nil
}

// Default 内置默认表，UTC
func Default() *Economy {
	e, err := New(DefaultTiers(), DefaultRates(), DefaultPools(), DefaultRewards(), DefaultMilestones(), DefaultFullStreakDays, time.UTC)
	if err != nil {
		panic(fmt.Sprintf("内置经济配置不合法: %v", err))
	}
	return e
}

// FromConfig 配置中留空的表使用默认值
func FromConfig(cfg *config.Config) (*Economy, error) {
	loc := time.UTC
	if tz := cfg.Business.Timezone; tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("加载时区失败: %w", err)
		}
		loc = l
	}

	ec := cfg.Economy

	tiers := DefaultTiers()
	if len(ec.Tiers) > 0 {
		tiers = make([]Tier, 0, len(ec.Tiers))
		for _, t := range ec.Tiers {
			tiers = append(tiers, Tier{
				Name:              strings.ToLower(t.Name),
				MinLifetimePoints: t.MinLifetimePoints,
				Multiplier:        decimal.NewFromFloat(t.Multiplier),
				BonusStakingAPY:   decimal.NewFromFloat(t.BonusStakingAPY),
			})
		}
	}

	rates := DefaultRates()
	if len(ec.EarningRates) > 0 {
		rates = make([]Rate, 0, len(ec.EarningRates))
		for _, r := range ec.EarningRates {
			rates = append(rates, Rate{
				Source:  Source(r.Source),
				Percent: decimal.NewFromFloat(r.Percent),
				Flat:    r.Flat,
			})
		}
	}

	pools := DefaultPools()
	if len(ec.Pools) > 0 {
		pools = make([]Pool, 0, len(ec.Pools))
		for _, p := range ec.Pools {
			pools = append(pools, Pool{
				ID:                           p.ID,
				Name:                         p.Name,
				LockPeriodDays:               p.LockPeriodDays,
				APYPercent:                   decimal.NewFromFloat(p.APYPercent),
				MinStake:                     p.MinStake,
				MaxStake:                     p.MaxStake,
				EarlyUnstakePenaltyPercent:   decimal.NewFromFloat(p.EarlyUnstakePenaltyPercent),
				StreakMultiplierAtFullStreak: decimal.NewFromFloat(p.StreakMultiplierAtFullStreak),
			})
		}
	}

	rewards := DefaultRewards()
	if len(ec.Rewards) > 0 {
		rewards = make([]RewardItem, 0, len(ec.Rewards))
		for _, r := range ec.Rewards {
			rewards = append(rewards, RewardItem{
				ID:              r.ID,
				Name:            r.Name,
				Partner:         r.Partner,
				Category:        r.Category,
				PointsCost:      r.PointsCost,
				MinTier:         strings.ToLower(r.MinTier),
				InStock:         r.InStock,
				LimitPerAccount: r.LimitPerAccount,
				Featured:        r.Featured,
			})
		}
	}

	milestones := DefaultMilestones()
	if len(ec.StreakMilestones) > 0 {
		milestones = make([]Milestone, 0, len(ec.StreakMilestones))
		for _, m := range ec.StreakMilestones {
			milestones = append(milestones, Milestone{Day: m.Day, Bonus: m.Bonus})
		}
	}

	return New(tiers, rates, pools, rewards, milestones, ec.FullStreakDays, loc)
}
