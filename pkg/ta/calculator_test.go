package ta

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-backtest/internal/model"
)

func mkBars(closes []float64) []model.Bar {
	bars := make([]model.Bar, len(closes))
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		bars[i] = model.Bar{
			Date: day.AddDate(0, 0, i),
			Open: c, High: c + 1, Low: c - 1, Close: c,
		}
	}
	return bars
}

func TestSMA(t *testing.T) {
	s := NewSeries(mkBars([]float64{1, 2, 3, 4, 5}))
	out := s.SMA(3)
	require.Len(t, out, 5)

	// 前 period-1 个位置未成形
	assert.Zero(t, out[0])
	assert.Zero(t, out[1])
	assert.InDelta(t, 2.0, out[2], 1e-9)
	assert.InDelta(t, 3.0, out[3], 1e-9)
	assert.InDelta(t, 4.0, out[4], 1e-9)

	assert.Nil(t, s.SMA(6)) // 数据不够
}

func TestATRConstantRange(t *testing.T) {
	// 收盘价恒定、高低点对称：每根真实波幅都是 2，ATR 收敛于 2
	s := NewSeries(mkBars([]float64{10, 10, 10, 10, 10, 10}))
	out := s.ATR(3)
	require.Len(t, out, 6)
	assert.Zero(t, out[2])
	assert.InDelta(t, 2.0, out[3], 1e-9)
	assert.InDelta(t, 2.0, out[5], 1e-9)

	assert.Nil(t, s.ATR(6))
}

func TestSeriesLen(t *testing.T) {
	assert.Equal(t, 4, NewSeries(mkBars([]float64{1, 2, 3, 4})).Len())
	assert.Zero(t, NewSeries(nil).Len())
}
