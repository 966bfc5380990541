package service

import (
	"fmt"
	"time"
)

// DateLayout 所有日粒度日期统一使用的格式
const DateLayout = "2006-01-02"

// ParseDate 将 "YYYY-MM-DD" 解析为 UTC 零点的日期
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// FormatDate 将日期格式化为 "YYYY-MM-DD"
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// DayOf 将任意时间截断为 UTC 零点的日粒度日期
func DayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// IsWeekend 判断是否为周末（市场休市）。
// 节假日日历因市场而异，这里只做周末排除；节假日在装载结果里
// 表现为未补齐日期，不视为错误。
func IsWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// WeekdaysBetween 返回 [start, end] 区间内的所有工作日（含两端），升序
func WeekdaysBetween(start, end time.Time) []time.Time {
	start, end = DayOf(start), DayOf(end)
	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if !IsWeekend(d) {
			days = append(days, d)
		}
	}
	return days
}
