package analytics

import (
	"math"

	"stock-backtest/internal/model"
)

// Calculate 从日度结果和成交台账整体重算汇总指标。
// 日度输入为空时返回全零 Metrics。
// 年化收益、波动率和夏普都基于日收益率序列；只有一天时序列为空，三者都报 0。
// 无亏损平仓时 profit_factor 报 0 而不是 +Inf；
// 日收益率方差为 0 时 sharpe_ratio 报 0。
func Calculate(daily []model.DailyResult, trades []model.Trade) model.Metrics {
	var m model.Metrics
	if len(daily) == 0 {
		return m
	}

	last := daily[len(daily)-1]
	m.TotalReturn = last.ReturnRatio
	m.TotalPnL = last.TotalPnL
	m.WinLossRatio = last.WinLossRatio

	// 最大回撤按正的幅度上报
	for _, d := range daily {
		if -d.Drawdown > m.MaxDrawdown {
			m.MaxDrawdown = -d.Drawdown
		}
	}

	// 日收益率序列从第二天起算，首日没有前一日基数。
	// 收益率取累计收益率的逐日差分，与日度行口径一致；
	// 年化收益和夏普的分子都用这条序列的均值，不走累计值的捷径。
	if len(daily) > 1 {
		returns := make([]float64, 0, len(daily)-1)
		var sum float64
		for i := 1; i < len(daily); i++ {
			r := daily[i].ReturnRatio - daily[i-1].ReturnRatio
			returns = append(returns, r)
			sum += r
		}
		m.AnnualReturn = sum / float64(len(returns)) * model.TradingDaysPerYear
		m.AnnualVolatility = stddev(returns) * math.Sqrt(model.TradingDaysPerYear)
		if m.AnnualVolatility > 0 {
			m.SharpeRatio = m.AnnualReturn / m.AnnualVolatility
		}
	}

	m.TotalTrades = len(trades)

	var (
		grossProfit float64
		grossLoss   float64 // 取绝对值累加
		wins        int
		losses      int
		closes      int
	)
	for _, t := range trades {
		if t.Offset != model.OffsetClose {
			continue
		}
		// 极值在全部平仓记录上取，全亏的台账里 max_win 就是亏得最少的那笔
		if closes == 0 || t.PnL > m.MaxWin {
			m.MaxWin = t.PnL
		}
		if closes == 0 || t.PnL < m.MaxLoss {
			m.MaxLoss = t.PnL
		}
		closes++
		// 打平的平仓不算赢也不算输
		switch {
		case t.PnL > 0:
			wins++
			grossProfit += t.PnL
		case t.PnL < 0:
			losses++
			grossLoss += -t.PnL
		}
	}
	if closes > 0 {
		m.WinRate = float64(wins) / float64(closes) * 100
	}
	if wins > 0 {
		m.AvgWin = grossProfit / float64(wins)
	}
	if losses > 0 {
		m.AvgLoss = -grossLoss / float64(losses)
	}
	if grossLoss > 0 {
		m.ProfitFactor = grossProfit / grossLoss
	}
	return m
}

// stddev 总体标准差（除以 N 而非 N-1）
func stddev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var mean float64
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))

	var sq float64
	for _, x := range xs {
		d := x - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(xs)))
}
