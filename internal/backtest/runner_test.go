package backtest

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"stock-backtest/internal/loader"
	"stock-backtest/internal/model"
	"stock-backtest/internal/service"
	"stock-backtest/internal/store"
	"stock-backtest/internal/strategy"
)

// trendProvider 对任意工作日出单边上涨的日线
type trendProvider struct {
	calls int
	err   error
}

func (p *trendProvider) Name() string { return "fake" }

func (p *trendProvider) Supports(string) bool { return true }

func (p *trendProvider) Fetch(ctx context.Context, symbol string, start, end time.Time) ([]model.Bar, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var out []model.Bar
	for _, d := range service.WeekdaysBetween(start, end) {
		c := 100.0 + float64(d.Sub(base)/(24*time.Hour))
		out = append(out, model.Bar{
			Symbol: symbol, Date: d,
			Open: c - 0.2, High: c + 0.5, Low: c - 0.5, Close: c,
			Volume: 1000,
		})
	}
	return out, nil
}

func newTestRunner(t *testing.T, p *trendProvider) (*Runner, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	var sources []loader.Source
	if p != nil {
		sources = append(sources, loader.Source{Provider: p, Retries: 0, Timeout: time.Second})
	}
	ld := loader.NewLoader(st, sources, zap.NewNop())
	return NewRunner(ld, st, zap.NewNop()), st
}

func testParams() strategy.Params {
	return strategy.Params{
		FastPeriod:     5,
		SlowPeriod:     10,
		ATRPeriod:      5,
		ATRMultiplier:  2.0,
		PositionMode:   strategy.ModeFixed,
		FixedSize:      100,
		CommissionRate: 0.0003,
	}
}

func TestRunBacktestEndToEnd(t *testing.T) {
	p := &trendProvider{}
	runner, st := newTestRunner(t, p)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 29, 0, 0, 0, 0, time.UTC)
	report, err := runner.RunBacktest(context.Background(), "600519.SH", start, end, testParams())
	require.NoError(t, err)

	// 单边上涨：一笔多单开仓，持有到结束
	require.Len(t, report.Trades, 1)
	assert.Equal(t, model.OffsetOpen, report.Trades[0].Offset)
	assert.Equal(t, model.DirLong, report.Trades[0].Direction)

	// 每根 Bar 对应一行日度结果；只开仓不平仓，收益恒为零
	assert.Len(t, report.DailyResults, len(service.WeekdaysBetween(start, end)))
	assert.Zero(t, report.Metrics.TotalReturn)
	assert.Equal(t, 1, report.Metrics.TotalTrades)
	assert.Empty(t, report.UnfilledDates)

	// 结果已落库
	runs, err := st.History()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, report.RunID, runs[0].RunID)
	assert.Equal(t, "600519.SH", runs[0].Symbol)
	assert.Equal(t, 1, runs[0].TotalTrades)
}

func TestRunBacktestSecondRunHitsCache(t *testing.T) {
	p := &trendProvider{}
	runner, _ := newTestRunner(t, p)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)
	first, err := runner.RunBacktest(context.Background(), "600519.SH", start, end, testParams())
	require.NoError(t, err)
	callsAfterFirst := p.calls

	second, err := runner.RunBacktest(context.Background(), "600519.SH", start, end, testParams())
	require.NoError(t, err)

	// 第二次全量命中缓存，且结果可复现
	assert.Equal(t, callsAfterFirst, p.calls)
	assert.Equal(t, first.Trades, second.Trades)
	assert.Equal(t, first.Metrics, second.Metrics)
}

func TestRunBacktestNoDataIsAnError(t *testing.T) {
	p := &trendProvider{err: errors.New("network down")}
	runner, _ := newTestRunner(t, p)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := runner.RunBacktest(context.Background(), "600519.SH", start, start.AddDate(0, 0, 30), testParams())
	var ierr *model.InsufficientDataError
	require.ErrorAs(t, err, &ierr)
	assert.Equal(t, "600519.SH", ierr.Symbol)
}

func TestRunBacktestRejectsBadParams(t *testing.T) {
	p := &trendProvider{}
	runner, _ := newTestRunner(t, p)

	params := testParams()
	params.SlowPeriod = params.FastPeriod
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := runner.RunBacktest(context.Background(), "600519.SH", start, start.AddDate(0, 0, 30), params)
	var cerr *model.ConfigurationError
	require.ErrorAs(t, err, &cerr)
	assert.Zero(t, p.calls) // 参数不合法时不应发起任何数据请求
}

func TestPurgeCache(t *testing.T) {
	p := &trendProvider{}
	runner, _ := newTestRunner(t, p)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	res, err := runner.LoadSeries(context.Background(), "600519.SH", start, start.AddDate(0, 0, 11))
	require.NoError(t, err)
	require.NotEmpty(t, res.Bars)

	n, err := runner.PurgeCache("600519.SH", "")
	require.NoError(t, err)
	assert.Equal(t, int64(len(res.Bars)), n)

	// 清理后再装载必须重新拉取
	before := p.calls
	_, err = runner.LoadSeries(context.Background(), "600519.SH", start, start.AddDate(0, 0, 11))
	require.NoError(t, err)
	assert.Greater(t, p.calls, before)
}
