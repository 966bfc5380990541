package ta

import (
	"github.com/markcheno/go-talib"

	"stock-backtest/internal/model"
)

// Series 整段 K 线的价格序列视图，供指标计算使用。
// 回测是全量离线计算，一次性展开后逐项调 talib，
// 不需要逐根推进的流式状态。
type Series struct {
	High  []float64
	Low   []float64
	Close []float64
}

// NewSeries 从 Bar 序列展开价格数组（输入需已按日期升序）
func NewSeries(bars []model.Bar) *Series {
	s := &Series{
		High:  make([]float64, 0, len(bars)),
		Low:   make([]float64, 0, len(bars)),
		Close: make([]float64, 0, len(bars)),
	}
	for _, b := range bars {
		s.High = append(s.High, b.High)
		s.Low = append(s.Low, b.Low)
		s.Close = append(s.Close, b.Close)
	}
	return s
}

func (s *Series) Len() int {
	return len(s.Close)
}

// SMA 收盘价简单移动平均。
// 返回序列与输入等长，前 period-1 个位置为 0（未成形），
// 数据长度不足 period 时返回 nil。
func (s *Series) SMA(period int) []float64 {
	if len(s.Close) < period {
		return nil
	}
	return talib.Sma(s.Close, period)
}

// ATR 平均真实波幅，Wilder 平滑。
// 返回序列与输入等长，前 period 个位置为 0（未成形），
// 数据长度不足 period+1 时返回 nil。
func (s *Series) ATR(period int) []float64 {
	if len(s.Close) < period+1 {
		return nil
	}
	return talib.Atr(s.High, s.Low, s.Close, period)
}
