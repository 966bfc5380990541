package analytics

import (
	"stock-backtest/internal/model"
	"stock-backtest/internal/service"
)

// AggregateDaily 从成交台账推导逐日结果，每根 Bar 对应一行。
// 只有平仓成交的已实现盈亏计入当日 NetPnL，持仓浮盈浮亏一律不进日度行，
// 因此一段只开仓未平仓的回测，所有日度行的盈亏都是 0。
// 每次回测整体重算，不做增量维护。
func AggregateDaily(bars []model.Bar, trades []model.Trade) []model.DailyResult {
	if len(bars) == 0 {
		return nil
	}

	// 按日归集已实现盈亏
	pnlByDay := make(map[string]float64)
	for _, t := range trades {
		if t.Offset != model.OffsetClose {
			continue
		}
		pnlByDay[service.FormatDate(t.Timestamp)] += t.PnL
	}

	results := make([]model.DailyResult, 0, len(bars))
	var (
		totalPnL  float64
		maxEquity = model.InitialCapital
		winDays   int
		lossDays  int
	)
	for _, bar := range bars {
		netPnL := pnlByDay[service.FormatDate(bar.Date)]
		totalPnL += netPnL

		equity := model.InitialCapital + totalPnL
		if equity > maxEquity {
			maxEquity = equity
		}

		switch {
		case netPnL > model.ProfitThreshold:
			winDays++
		case netPnL < model.LossThreshold:
			lossDays++
		}

		results = append(results, model.DailyResult{
			Date:         bar.Date,
			NetPnL:       netPnL,
			TotalPnL:     totalPnL,
			ReturnRatio:  totalPnL / model.InitialCapital * 100,
			Drawdown:     (equity - maxEquity) / maxEquity * 100,
			WinLossRatio: dayRatio(winDays, lossDays),
		})
	}
	return results
}

// dayRatio 盈利天数/亏损天数。亏损天数为 0 时退化为盈利天数本身，
// 避免除零同时保留"全是盈利日"这一信息
func dayRatio(winDays, lossDays int) float64 {
	if lossDays == 0 {
		return float64(winDays)
	}
	return float64(winDays) / float64(lossDays)
}
