package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAndFormatDate(t *testing.T) {
	d, err := ParseDate("2024-03-04")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), d)
	assert.Equal(t, "2024-03-04", FormatDate(d))

	_, err = ParseDate("20240304")
	assert.Error(t, err)
}

func TestDayOfTruncates(t *testing.T) {
	loc := time.FixedZone("CST", 8*3600)
	ts := time.Date(2024, 3, 4, 15, 30, 0, 0, loc) // UTC 07:30
	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), DayOf(ts))
}

func TestWeekdaysBetween(t *testing.T) {
	mon := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	fri := mon.AddDate(0, 0, 4)
	sun := mon.AddDate(0, 0, 6)

	days := WeekdaysBetween(mon, sun)
	require.Len(t, days, 5) // 周一到周五
	assert.Equal(t, mon, days[0])
	assert.Equal(t, fri, days[4])
	for _, d := range days {
		assert.False(t, IsWeekend(d))
	}

	// 单日区间
	assert.Len(t, WeekdaysBetween(mon, mon), 1)
	sat := mon.AddDate(0, 0, 5)
	assert.Empty(t, WeekdaysBetween(sat, sun))
}
