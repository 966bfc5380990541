package loader

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"stock-backtest/internal/model"
	"stock-backtest/internal/provider"
	"stock-backtest/internal/service"
	"stock-backtest/internal/store"
)

// 缺口跨度合并阈值：两段缺失日期间隔不超过 7 个自然日时合并为一次请求，
// 减少对数据源的请求次数（长假前后各缺一天没必要拆成两次拉取）
const spanMergeGapDays = 7

// Source 绑定一个数据源及其容错参数，按优先级升序排列后交给 Loader
type Source struct {
	Provider provider.DataProvider
	Retries  int           // 单个数据源的重试次数（不含首次请求）
	Timeout  time.Duration // 单次请求超时
}

// Loader 缓存优先的行情装载器。
// 每次 Load 先查本地缓存，只对缺失的工作日区间发起远程拉取，
// 拉取成功即回写缓存，下一次同参数调用应当零远程请求命中缓存。
type Loader struct {
	store   *store.Store
	sources []Source
	logger  *zap.Logger
}

// Result 一次装载的产出。
// UnfilledDates 是所有数据源都没能补上的工作日（节假日停牌属于正常情况），
// Dropped 是因 OHLC 校验失败被丢弃的 Bar 数量。两者都不构成错误。
type Result struct {
	Bars          []model.Bar
	UnfilledDates []time.Time
	Dropped       int
}

func NewLoader(st *store.Store, sources []Source, logger *zap.Logger) *Loader {
	return &Loader{store: st, sources: sources, logger: logger}
}

// span 一段待拉取的连续日期区间（闭区间）
type span struct {
	start time.Time
	end   time.Time
}

// Load 装载 [start, end] 区间内的日线序列，日期升序。
// 缓存 I/O 错误立即上抛；数据源故障逐级降级，最终补不上的日期记入
// UnfilledDates。ctx 取消时中止剩余拉取，返回已组装好的部分序列，
// 已完成的缓存回写保持不变。
func (l *Loader) Load(ctx context.Context, symbol string, start, end time.Time) (*Result, error) {
	start, end = service.DayOf(start), service.DayOf(end)
	if end.Before(start) {
		return nil, &model.ConfigurationError{Field: "date range", Reason: "end before start"}
	}

	cached, err := l.store.BarsInRange(symbol, start, end)
	if err != nil {
		return nil, err
	}
	merged := make(map[time.Time]model.Bar, len(cached))
	for _, b := range cached {
		merged[b.Date] = b
	}

	wanted := service.WeekdaysBetween(start, end)
	var missing []time.Time
	for _, d := range wanted {
		if _, ok := merged[d]; !ok {
			missing = append(missing, d)
		}
	}
	if len(missing) == 0 {
		return &Result{Bars: assemble(merged)}, nil
	}

	l.logger.Info("缓存缺口待补齐",
		zap.String("symbol", symbol),
		zap.Int("cached", len(cached)),
		zap.Int("missing", len(missing)))

	dropped := 0
	for _, sp := range mergeSpans(missing) {
		if ctx.Err() != nil {
			l.logger.Warn("装载被取消，返回已有部分序列", zap.String("symbol", symbol))
			break
		}
		bars, n, err := l.fetchSpan(ctx, symbol, sp)
		dropped += n
		if err != nil {
			// 只有缓存写入失败会走到这里，必须上抛
			return nil, err
		}
		// 拉取结果覆盖同日期缓存行（正常情况下两者不相交）
		for _, b := range bars {
			merged[b.Date] = b
		}
	}

	var unfilled []time.Time
	for _, d := range wanted {
		if _, ok := merged[d]; !ok {
			unfilled = append(unfilled, d)
		}
	}
	return &Result{Bars: assemble(merged), UnfilledDates: unfilled, Dropped: dropped}, nil
}

// fetchSpan 对一段缺失区间按优先级逐个尝试数据源，
// 单源失败重试 Retries 次后降级到下一个源；全部失败不算错误，
// 该区间留待 UnfilledDates 体现。返回值是校验通过并已回写缓存的 Bar。
func (l *Loader) fetchSpan(ctx context.Context, symbol string, sp span) ([]model.Bar, int, error) {
	dropped := 0
	for _, src := range l.sources {
		if !src.Provider.Supports(symbol) {
			continue
		}
		name := src.Provider.Name()
		for attempt := 0; attempt <= src.Retries; attempt++ {
			cctx, cancel := context.WithTimeout(ctx, src.Timeout)
			bars, err := src.Provider.Fetch(cctx, symbol, sp.start, sp.end)
			cancel()
			if err != nil {
				if !provider.IsRetryable(err) {
					// 调用方取消，立即停手
					return nil, dropped, nil
				}
				l.logger.Warn("数据源请求失败",
					zap.String("provider", name),
					zap.String("symbol", symbol),
					zap.Int("attempt", attempt+1),
					zap.Error(err))
				continue
			}

			valid := make([]model.Bar, 0, len(bars))
			for _, b := range bars {
				if b.Date.Before(sp.start) || b.Date.After(sp.end) {
					continue // 源端多给的区间外数据直接裁掉
				}
				if verr := b.Validate(); verr != nil {
					dropped++
					l.logger.Warn("丢弃非法 Bar",
						zap.String("provider", name),
						zap.String("symbol", symbol),
						zap.Time("date", b.Date),
						zap.Error(verr))
					continue
				}
				b.Provenance = name
				valid = append(valid, b)
			}
			if err := l.store.Upsert(valid, name); err != nil {
				return nil, dropped, err
			}
			l.logger.Info("缺口区间拉取完成",
				zap.String("provider", name),
				zap.String("symbol", symbol),
				zap.String("start", service.FormatDate(sp.start)),
				zap.String("end", service.FormatDate(sp.end)),
				zap.Int("bars", len(valid)))
			return valid, dropped, nil
		}
	}
	l.logger.Warn("所有数据源均未能补齐区间",
		zap.String("symbol", symbol),
		zap.String("start", service.FormatDate(sp.start)),
		zap.String("end", service.FormatDate(sp.end)))
	return nil, dropped, nil
}

// mergeSpans 把升序的缺失日期压成若干连续区间，
// 相邻区间自然日间隔不超过 spanMergeGapDays 时合并
func mergeSpans(dates []time.Time) []span {
	if len(dates) == 0 {
		return nil
	}
	spans := []span{{start: dates[0], end: dates[0]}}
	for _, d := range dates[1:] {
		last := &spans[len(spans)-1]
		if d.Sub(last.end) <= spanMergeGapDays*24*time.Hour {
			last.end = d
		} else {
			spans = append(spans, span{start: d, end: d})
		}
	}
	return spans
}

func assemble(merged map[time.Time]model.Bar) []model.Bar {
	bars := make([]model.Bar, 0, len(merged))
	for _, b := range merged {
		bars = append(bars, b)
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return bars
}
