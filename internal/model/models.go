package model

import (
	"fmt"
	"time"
)

// 回测相关常量
const (
	InitialCapital     = 1_000_000.0 // 初始资金（100万）
	TradingDaysPerYear = 252         // 每年交易日数

	// 盈亏天数判断阈值（避免浮点数精度问题把 0 附近的日子误判为盈利/亏损）
	ProfitThreshold = 0.01
	LossThreshold   = -0.01
)

// ProvenanceCache 表示 Bar 由本地缓存提供，而非远程数据源
const ProvenanceCache = "cache"

// Bar 代表一根日线 K 线
type Bar struct {
	Symbol     string
	Date       time.Time // 交易日（日粒度，UTC 零点，无盘中时间）
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     float64
	Provenance string // 数据来源: "cache" 或数据源名称
}

// Validate 校验 OHLC 不变式：low <= open,close <= high 且所有价格 > 0。
// 不合法的 Bar 会被丢弃并计数，绝不静默入库。
func (b Bar) Validate() error {
	if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
		return fmt.Errorf("bar %s %s: non-positive price", b.Symbol, b.Date.Format("2006-01-02"))
	}
	if b.Low > b.Open || b.Low > b.Close || b.High < b.Open || b.High < b.Close {
		return fmt.Errorf("bar %s %s: OHLC out of order (O=%.4f H=%.4f L=%.4f C=%.4f)",
			b.Symbol, b.Date.Format("2006-01-02"), b.Open, b.High, b.Low, b.Close)
	}
	if b.Volume < 0 {
		return fmt.Errorf("bar %s %s: negative volume", b.Symbol, b.Date.Format("2006-01-02"))
	}
	return nil
}

// Direction 定义了交易方向
type Direction string

const (
	DirLong  Direction = "LONG"
	DirShort Direction = "SHORT"
	DirFlat  Direction = "FLAT"
)

func (d Direction) String() string {
	return string(d)
}

// Offset 定义了开平仓标记
type Offset string

const (
	OffsetOpen  Offset = "OPEN"
	OffsetClose Offset = "CLOSE"
)

// Trade 代表一笔成交记录，由策略引擎在开仓或平仓时生成。
// 成交序列是权威的交易台账：回测运行期间只追加，结束后只读。
// PnL 在 OPEN 记录上恒为 0，在 CLOSE 记录上为该笔已实现盈亏。
type Trade struct {
	ID         int
	Timestamp  time.Time
	Symbol     string
	Direction  Direction
	Offset     Offset
	Price      float64
	Volume     float64
	PnL        float64
	Commission float64
}

func (t Trade) String() string {
	return fmt.Sprintf("TRADE #%d [%s | %s] %s @ %.4f x %.0f | PnL: %.2f",
		t.ID, t.Direction, t.Offset, t.Timestamp.Format("2006-01-02"), t.Price, t.Volume, t.PnL)
}

// DailyResult 每个交易日一行，由日度聚合器从交易台账推导，每次运行整体重算
type DailyResult struct {
	Date         time.Time
	NetPnL       float64 // 当日已实现净盈亏
	TotalPnL     float64 // 累计已实现盈亏
	ReturnRatio  float64 // 相对初始资金的累计收益率 (%)
	Drawdown     float64 // 当前相对历史最高净值的回撤 (%)
	WinLossRatio float64 // 截至当日的盈利天数/亏损天数
}

// Metrics 汇总统计指标，由统计计算器从 DailyResult + Trade 整体重算
type Metrics struct {
	TotalReturn      float64 `json:"total_return"`
	AnnualReturn     float64 `json:"annual_return"`
	MaxDrawdown      float64 `json:"max_drawdown"`
	AnnualVolatility float64 `json:"annual_volatility"`
	SharpeRatio      float64 `json:"sharpe_ratio"`
	TotalPnL         float64 `json:"total_pnl"`
	TotalTrades      int     `json:"total_trades"`
	WinRate          float64 `json:"win_rate"`
	ProfitFactor     float64 `json:"profit_factor"`
	AvgWin           float64 `json:"avg_win"`
	AvgLoss          float64 `json:"avg_loss"`
	MaxWin           float64 `json:"max_win"`
	MaxLoss          float64 `json:"max_loss"`
	WinLossRatio     float64 `json:"win_loss_ratio"`
}
