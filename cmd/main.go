package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"stock-backtest/internal/backtest"
	"stock-backtest/internal/catalog"
	"stock-backtest/internal/loader"
	"stock-backtest/internal/provider"
	"stock-backtest/internal/service"
	"stock-backtest/internal/store"
	"stock-backtest/internal/strategy"
)

func main() {
	service.InitLogger()
	defer service.Logger.Sync()

	configPath := "config"
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		service.Logger.Fatal("Configuration directory 'config/' not found. Please create it.")
	}
	cfg := service.LoadConfig(configPath)

	// 1. 标的目录：内置表 + config/symbols 下的自定义清单
	cat := catalog.NewCatalog()
	symbolsDir := "config/symbols"
	if _, err := os.Stat(symbolsDir); err == nil {
		if err := cat.LoadDir(symbolsDir); err != nil {
			service.Logger.Fatal("加载标的清单失败", zap.Error(err))
		}
	}

	// 2. 本地行情缓存
	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		service.Logger.Fatal("打开缓存数据库失败", zap.Error(err))
	}

	// 3. 按优先级组装数据源
	var sources []loader.Source
	for _, name := range cfg.ProvidersByPriority() {
		pc := cfg.Providers[name]
		var p provider.DataProvider
		switch name {
		case "tushare":
			p = provider.NewTushareProvider(&pc, cat, service.Logger)
		case "futu":
			p = provider.NewFutuProvider(&pc, cat, service.Logger)
		default:
			service.Logger.Warn("未知数据源，跳过", zap.String("provider", name))
			continue
		}
		sources = append(sources, loader.Source{
			Provider: p,
			Retries:  pc.RetryCount,
			Timeout:  time.Duration(pc.TimeoutSec) * time.Second,
		})
		service.Logger.Info("数据源已启用",
			zap.String("provider", name),
			zap.Int("priority", pc.Priority))
	}
	if len(sources) == 0 {
		service.Logger.Warn("没有启用任何数据源，只能使用已有缓存")
	}

	ld := loader.NewLoader(st, sources, service.Logger)
	runner := backtest.NewRunner(ld, st, service.Logger)

	// 4. 回测入参
	bc := cfg.Backtest
	if !cat.Supported(bc.Symbol) {
		service.Logger.Fatal("标的不在目录中", zap.String("symbol", bc.Symbol))
	}
	start, err := service.ParseDate(bc.StartDate)
	if err != nil {
		service.Logger.Fatal("起始日期非法", zap.String("start_date", bc.StartDate), zap.Error(err))
	}
	end, err := service.ParseDate(bc.EndDate)
	if err != nil {
		service.Logger.Fatal("结束日期非法", zap.String("end_date", bc.EndDate), zap.Error(err))
	}

	// Ctrl-C 中止数据拉取，已入缓存的部分保留
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := runner.RunBacktest(ctx, bc.Symbol, start, end, strategy.ParamsFromConfig(bc.Strategy))
	if err != nil {
		service.Logger.Fatal("回测失败", zap.Error(err))
	}

	for _, t := range report.Trades {
		service.Logger.Info(t.String())
	}
	if len(report.UnfilledDates) > 0 {
		service.Logger.Warn("区间内存在未能补齐的工作日（节假日或源端缺数）",
			zap.Int("days", len(report.UnfilledDates)))
	}

	m := report.Metrics
	service.Logger.Info("汇总指标",
		zap.String("run_id", report.RunID),
		zap.Float64("total_return_pct", m.TotalReturn),
		zap.Float64("annual_return_pct", m.AnnualReturn),
		zap.Float64("max_drawdown_pct", m.MaxDrawdown),
		zap.Float64("annual_volatility_pct", m.AnnualVolatility),
		zap.Float64("sharpe_ratio", m.SharpeRatio),
		zap.Float64("total_pnl", m.TotalPnL),
		zap.Int("total_trades", m.TotalTrades),
		zap.Float64("win_rate_pct", m.WinRate),
		zap.Float64("profit_factor", m.ProfitFactor),
		zap.Float64("avg_win", m.AvgWin),
		zap.Float64("avg_loss", m.AvgLoss),
		zap.Float64("max_win", m.MaxWin),
		zap.Float64("max_loss", m.MaxLoss),
		zap.Float64("win_loss_ratio", m.WinLossRatio))
}
