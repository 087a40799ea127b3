package economy

import (
	"time"
)

const dateLayout = "2006-01-02"

// Date 日历日期（YYYY-MM-DD），连续签到只关心日期不关心时刻
type Date string

// DateOf 返回 t 在 loc 时区下的日历日期
func DateOf(t time.Time, loc *time.Location) Date {
	if loc == nil {
		loc = time.UTC
	}
	return Date(t.In(loc).Format(dateLayout))
}

func (d Date) IsZero() bool {
	return d == ""
}

func (d Date) String() string {
	return string(d)
}

// midnight 按 UTC 零点解析，日期加减不受夏令时影响
func (d Date) midnight() time.Time {
	t, err := time.Parse(dateLayout, string(d))
	if err != nil {
		return time.Time{}
	}
	return t
}

func (d Date) AddDays(n int) Date {
	return Date(d.midnight().AddDate(0, 0, n).Format(dateLayout))
}

// DaysBetween 返回 to - from 的天数
func DaysBetween(from, to Date) int {
	return int(to.midnight().Sub(from.midnight()).Hours() / 24)
}
