package economy

import (
	"fmt"
	"sort"
)

// StreakState 账户内嵌的连续签到状态
type StreakState struct {
	Current   int  `json:"current_length"`
	Longest   int  `json:"longest_length"`
	TotalDays int  `json:"total_days_active"`
	LastDate  Date `json:"last_credited_date"`
}

// Milestone 连续签到第 Day 天起每天奖励 Bonus
type Milestone struct {
	Day   int   `json:"day"`
	Bonus int64 `json:"bonus"`
}

type MilestoneTable struct {
	milestones []Milestone
}

// NewMilestoneTable 按天数排序，同一天配置多次时取较大的奖励
func NewMilestoneTable(milestones []Milestone) (*MilestoneTable, error) {
	byDay := make(map[int]int64, len(milestones))
	for _, m := range milestones {
		if m.Day <= 0 || m.Bonus < 0 {
			return nil, fmt.Errorf("连续签到里程碑不合法: day=%d bonus=%d", m.Day, m.Bonus)
		}
		if cur, ok := byDay[m.Day]; !ok || m.Bonus > cur {
			byDay[m.Day] = m.Bonus
		}
	}

	out := make([]Milestone, 0, len(byDay))
	for day, bonus := range byDay {
		out = append(out, Milestone{Day: day, Bonus: bonus})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day < out[j].Day })

	for i := 1; i < len(out); i++ {
		if out[i].Bonus <= out[i-1].Bonus {
			return nil, fmt.Errorf("连续签到奖励必须随天数严格递增: day=%d", out[i].Day)
		}
	}
	return &MilestoneTable{milestones: out}, nil
}

// BonusFor 返回不超过 length 的最高里程碑奖励
func (t *MilestoneTable) BonusFor(length int) int64 {
	var bonus int64
	for _, m := range t.milestones {
		if m.Day > length {
			break
		}
		bonus = m.Bonus
	}
	return bonus
}

// Next 下一个尚未达到的里程碑
func (t *MilestoneTable) Next(length int) (Milestone, bool) {
	for _, m := range t.milestones {
		if m.Day > length {
			return m, true
		}
	}
	return Milestone{}, false
}

func (t *MilestoneTable) All() []Milestone {
	out := make([]Milestone, len(t.milestones))
	copy(out, t.milestones)
	return out
}

// AdvanceStreak 计算 today 签到后的状态
//
//	today == LastDate      -> 不变，isNewDay=false
//	today == LastDate + 1  -> Current+1
//	其他（断签或首次）     -> Current=1
//
// today 早于 LastDate（时钟回拨）按同一天处理，不允许回退
func AdvanceStreak(state StreakState, today Date) (StreakState, bool) {
	if !state.LastDate.IsZero() && DaysBetween(state.LastDate, today) <= 0 {
		return state, false
	}

	next := state
	if !state.LastDate.IsZero() && DaysBetween(state.LastDate, today) == 1 {
		next.Current = state.Current + 1
	} else {
		next.Current = 1
	}
	if next.Current > next.Longest {
		next.Longest = next.Current
	}
	next.TotalDays = state.TotalDays + 1
	next.LastDate = today
	return next, true
}

// EffectiveStreak 昨天或今天签过到才算连续，否则视为 0
func EffectiveStreak(state StreakState, today Date) int {
	if state.LastDate.IsZero() {
		return 0
	}
	if gap := DaysBetween(state.LastDate, today); gap > 1 {
		return 0
	}
	return state.Current
}
