package strategy

import (
	"fmt"

	"stock-backtest/internal/model"
	"stock-backtest/internal/service"
)

// PositionMode 仓位模式
type PositionMode string

const (
	ModeFull    PositionMode = "full"    // 全仓
	ModeHalf    PositionMode = "half"    // 半仓
	ModeQuarter PositionMode = "quarter" // 四分之一仓
	ModeFixed   PositionMode = "fixed"   // 固定手数
)

// Params 趋势跟踪策略的启动参数，Run 之前必须通过 Validate
type Params struct {
	FastPeriod     int
	SlowPeriod     int
	ATRPeriod      int
	ATRMultiplier  float64
	PositionMode   PositionMode
	FixedSize      float64
	CommissionRate float64
}

// ParamsFromConfig 从配置文件的策略段构造参数
func ParamsFromConfig(sc service.StrategyConfig) Params {
	return Params{
		FastPeriod:     sc.FastPeriod,
		SlowPeriod:     sc.SlowPeriod,
		ATRPeriod:      sc.ATRPeriod,
		ATRMultiplier:  sc.ATRMultiplier,
		PositionMode:   PositionMode(sc.PositionMode),
		FixedSize:      sc.FixedSize,
		CommissionRate: sc.CommissionRate,
	}
}

// Validate 校验参数合法性，任何一项不合格都在回测开始前拒绝
func (p Params) Validate() error {
	if p.FastPeriod < 1 {
		return &model.ConfigurationError{Field: "fast_period", Reason: "must be >= 1"}
	}
	if p.SlowPeriod <= p.FastPeriod {
		return &model.ConfigurationError{
			Field:  "slow_period",
			Reason: fmt.Sprintf("must be greater than fast_period (%d)", p.FastPeriod),
		}
	}
	if p.ATRPeriod < 1 {
		return &model.ConfigurationError{Field: "atr_period", Reason: "must be >= 1"}
	}
	if p.ATRMultiplier <= 0 {
		return &model.ConfigurationError{Field: "atr_multiplier", Reason: "must be positive"}
	}
	switch p.PositionMode {
	case ModeFull, ModeHalf, ModeQuarter:
	case ModeFixed:
		if p.FixedSize < 1 {
			return &model.ConfigurationError{Field: "fixed_size", Reason: "must be >= 1 in fixed mode"}
		}
	default:
		return &model.ConfigurationError{
			Field:  "position_mode",
			Reason: fmt.Sprintf("unknown mode %q", p.PositionMode),
		}
	}
	if p.CommissionRate < 0 {
		return &model.ConfigurationError{Field: "commission_rate", Reason: "must be >= 0"}
	}
	return nil
}

// fraction 返回按权益比例开仓时使用的资金占比，固定手数模式返回 0
func (p Params) fraction() float64 {
	switch p.PositionMode {
	case ModeFull:
		return 1.0
	case ModeHalf:
		return 0.5
	case ModeQuarter:
		return 0.25
	default:
		return 0
	}
}
