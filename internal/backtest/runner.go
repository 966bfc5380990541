package backtest

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"go.uber.org/zap"

	"stock-backtest/internal/analytics"
	"stock-backtest/internal/loader"
	"stock-backtest/internal/model"
	"stock-backtest/internal/service"
	"stock-backtest/internal/store"
	"stock-backtest/internal/strategy"
)

// Runner 把装载、策略回放、日度聚合、指标计算和落库串成一次完整回测
type Runner struct {
	loader *loader.Loader
	store  *store.Store
	logger *zap.Logger
}

func NewRunner(l *loader.Loader, st *store.Store, logger *zap.Logger) *Runner {
	return &Runner{loader: l, store: st, logger: logger}
}

// Report 一次回测的完整产出
type Report struct {
	RunID         string
	Symbol        string
	StartDate     time.Time
	EndDate       time.Time
	Trades        []model.Trade
	DailyResults  []model.DailyResult
	Metrics       model.Metrics
	UnfilledDates []time.Time
	DroppedBars   int
}

// LoadSeries 只做数据装载，不跑策略，供数据预热和缓存巡检使用
func (r *Runner) LoadSeries(ctx context.Context, symbol string, start, end time.Time) (*loader.Result, error) {
	return r.loader.Load(ctx, symbol, start, end)
}

// RunBacktest 执行一次完整回测并持久化结果。
// 参数非法或区间内拿不到任何可用 Bar 时报错；
// 个别日期缺数或个别 Bar 被丢弃不阻断回测，在 Report 里如实体现。
func (r *Runner) RunBacktest(ctx context.Context, symbol string, start, end time.Time,
	params strategy.Params) (*Report, error) {

	engine, err := strategy.NewTrendFollowing(params, r.logger)
	if err != nil {
		return nil, err
	}

	res, err := r.loader.Load(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}
	if len(res.Bars) == 0 {
		return nil, &model.InsufficientDataError{
			Symbol: symbol,
			Start:  service.FormatDate(start),
			End:    service.FormatDate(end),
		}
	}

	trades := engine.Run(res.Bars)
	daily := analytics.AggregateDaily(res.Bars, trades)
	metrics := analytics.Calculate(daily, trades)

	report := &Report{
		RunID:         newRunID(),
		Symbol:        symbol,
		StartDate:     start,
		EndDate:       end,
		Trades:        trades,
		DailyResults:  daily,
		Metrics:       metrics,
		UnfilledDates: res.UnfilledDates,
		DroppedBars:   res.Dropped,
	}

	if err := r.store.SaveRun(report.RunID, symbol, start, end, trades, daily, metrics); err != nil {
		return nil, err
	}

	r.logger.Info("回测完成",
		zap.String("run_id", report.RunID),
		zap.String("symbol", symbol),
		zap.Int("bars", len(res.Bars)),
		zap.Int("trades", len(trades)),
		zap.Float64("total_return_pct", metrics.TotalReturn),
		zap.Float64("max_drawdown_pct", metrics.MaxDrawdown),
		zap.Float64("sharpe_ratio", metrics.SharpeRatio))
	return report, nil
}

// PurgeCache 清理行情缓存，返回删除行数。symbol 和 providerName 都为空时清空整表
func (r *Runner) PurgeCache(symbol, providerName string) (int64, error) {
	n, err := r.store.Purge(symbol, providerName)
	if err != nil {
		return 0, err
	}
	r.logger.Info("缓存已清理",
		zap.String("symbol", symbol),
		zap.String("provider", providerName),
		zap.Int64("rows", n))
	return n, nil
}

func newRunID() string {
	buf := make([]byte, 4)
	rand.Read(buf)
	return fmt.Sprintf("run-%s-%s", time.Now().Format("20060102150405"), hex.EncodeToString(buf))
}
