package strategy

import (
	"math"

	"go.uber.org/zap"

	"stock-backtest/internal/model"
	"stock-backtest/pkg/ta"
)

// 均线相对位置状态
type crossState int

const (
	crossUnknown crossState = iota // 预热刚结束，尚无前一根的相对位置
	crossAbove                     // 快线在慢线上方
	crossBelow                     // 快线在慢线下方
)

// TrendFollowing 双均线趋势跟踪策略，金叉做多、死叉做空，ATR 倍数止损。
// 引擎是纯函数式的整段回放：同一份 Bar 序列和同一组参数，
// 输出的成交台账逐字节一致。
type TrendFollowing struct {
	params Params
	logger *zap.Logger
}

func NewTrendFollowing(params Params, logger *zap.Logger) (*TrendFollowing, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &TrendFollowing{params: params, logger: logger}, nil
}

// position 当前持仓。atrAtEntry 在开仓时刻快照，
// 止损线在整个持仓期内固定不动，不随后续 ATR 漂移。
type position struct {
	direction  model.Direction
	entryPrice float64
	volume     float64
	atrAtEntry float64
}

// Run 对整段日线序列回放策略，返回按时间追加的成交台账。
// 序列长度不足以完成指标预热时返回空台账（不报错，没信号可出而已）。
//
// 每根 Bar 的处理顺序固定：先查止损，再查均线交叉。
// 止损离场后当根 Bar 内不允许再开同方向仓位，防止"刚止损又追进去"；
// 反向信号不受此限制。
func (s *TrendFollowing) Run(bars []model.Bar) []model.Trade {
	p := s.params
	warmIdx := p.SlowPeriod
	if p.ATRPeriod > warmIdx {
		warmIdx = p.ATRPeriod
	}
	if len(bars) <= warmIdx {
		return nil
	}

	series := ta.NewSeries(bars)
	fast := series.SMA(p.FastPeriod)
	slow := series.SMA(p.SlowPeriod)
	atr := series.ATR(p.ATRPeriod)
	if fast == nil || slow == nil || atr == nil {
		return nil
	}

	var (
		trades   []model.Trade
		pos      *position
		realized float64 // 累计已实现盈亏，作为后续开仓的权益基数
		state    crossState
	)

	appendTrade := func(bar model.Bar, dir model.Direction, offset model.Offset, price, volume, pnl float64) {
		t := model.Trade{
			ID:         len(trades) + 1,
			Timestamp:  bar.Date,
			Symbol:     bar.Symbol,
			Direction:  dir,
			Offset:     offset,
			Price:      price,
			Volume:     volume,
			PnL:        pnl,
			Commission: price * volume * p.CommissionRate,
		}
		trades = append(trades, t)
		s.logger.Debug("成交", zap.String("trade", t.String()))
	}

	closePosition := func(bar model.Bar, price float64) {
		var pnl float64
		if pos.direction == model.DirLong {
			pnl = (price - pos.entryPrice) * pos.volume
		} else {
			pnl = (pos.entryPrice - price) * pos.volume
		}
		appendTrade(bar, pos.direction, model.OffsetClose, price, pos.volume, pnl)
		realized += pnl
		pos = nil
	}

	openPosition := func(bar model.Bar, dir model.Direction, atrNow float64) {
		volume := p.FixedSize
		if p.PositionMode != ModeFixed {
			equity := model.InitialCapital + realized
			volume = math.Floor(equity * p.fraction() / bar.Close)
		}
		if volume <= 0 {
			return
		}
		pos = &position{
			direction:  dir,
			entryPrice: bar.Close,
			volume:     volume,
			atrAtEntry: atrNow,
		}
		appendTrade(bar, dir, model.OffsetOpen, bar.Close, volume, 0)
	}

	for i := warmIdx; i < len(bars); i++ {
		bar := bars[i]
		stoppedDir := model.DirFlat

		// 1. 止损检查。触发后按止损价成交，不用收盘价，
		//    与盘中挂出的止损单行为保持一致。
		if pos != nil {
			if pos.direction == model.DirLong {
				stop := pos.entryPrice - p.ATRMultiplier*pos.atrAtEntry
				if bar.Low <= stop {
					stoppedDir = pos.direction
					closePosition(bar, stop)
				}
			} else {
				stop := pos.entryPrice + p.ATRMultiplier*pos.atrAtEntry
				if bar.High >= stop {
					stoppedDir = pos.direction
					closePosition(bar, stop)
				}
			}
		}

		// 2. 均线交叉检查。快慢线相等时保持原状态，不出信号。
		golden, death := false, false
		switch {
		case fast[i] > slow[i]:
			if state != crossAbove {
				golden = state == crossBelow || state == crossUnknown
				state = crossAbove
			}
		case fast[i] < slow[i]:
			if state != crossBelow {
				death = state == crossAbove || state == crossUnknown
				state = crossBelow
			}
		}

		switch {
		case golden:
			if pos != nil && pos.direction == model.DirShort {
				closePosition(bar, bar.Close)
			}
			if pos == nil && stoppedDir != model.DirLong {
				openPosition(bar, model.DirLong, atr[i])
			}
		case death:
			if pos != nil && pos.direction == model.DirLong {
				closePosition(bar, bar.Close)
			}
			if pos == nil && stoppedDir != model.DirShort {
				openPosition(bar, model.DirShort, atr[i])
			}
		}
	}

	// 回测结束后留存的持仓不强制平仓，浮动盈亏不进台账
	return trades
}
