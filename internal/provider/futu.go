package provider

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"stock-backtest/internal/catalog"
	"stock-backtest/internal/model"
	"stock-backtest/internal/service"
)

// FutuProvider 通过本地 OpenD 网关获取港股/美股数据。
// 网关协议是请求/响应式的 JSON 帧走长连接，用请求序号配对响应，
// 历史 K 线按 page_req_key 分页拉取。
type FutuProvider struct {
	gatewayURL string
	timeout    time.Duration
	catalog    *catalog.Catalog
	logger     *zap.Logger
	nextReqID  int64 // 原子递增，实例可能被多个并发回测共用
}

// NewFutuProvider 初始化 futu 数据提供器
func NewFutuProvider(cfg *service.ProviderConfig, cat *catalog.Catalog, logger *zap.Logger) *FutuProvider {
	host := cfg.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.Port
	if port == 0 {
		port = 11111
	}
	return &FutuProvider{
		gatewayURL: fmt.Sprintf("ws://%s:%d/ws", host, port),
		timeout:    time.Duration(cfg.TimeoutSec) * time.Second,
		catalog:    cat,
		logger:     logger.With(zap.String("provider", "futu")),
	}
}

func (p *FutuProvider) Name() string {
	return "futu"
}

// Supports futu 覆盖港股和美股标的
func (p *FutuProvider) Supports(symbol string) bool {
	info, ok := p.catalog.Lookup(symbol)
	return ok && (info.Market == catalog.MarketHK || info.Market == catalog.MarketUS)
}

// futuRequest 网关请求帧
type futuRequest struct {
	ID     int64  `json:"id"`
	Method string `json:"method"`
	Params struct {
		Code       string `json:"code"`
		Start      string `json:"start"`
		End        string `json:"end"`
		MaxCount   int    `json:"max_count"`
		PageReqKey string `json:"page_req_key,omitempty"`
	} `json:"params"`
}

// futuResponse 网关响应帧，ret != 0 表示网关侧错误
type futuResponse struct {
	ID   int64  `json:"id"`
	Ret  int    `json:"ret"`
	Msg  string `json:"msg"`
	Data struct {
		KLines []struct {
			TimeKey string  `json:"time_key"` // "2024-01-02 00:00:00"
			Open    float64 `json:"open"`
			High    float64 `json:"high"`
			Low     float64 `json:"low"`
			Close   float64 `json:"close"`
			Volume  float64 `json:"volume"`
		} `json:"kline_list"`
		PageReqKey string `json:"page_req_key"`
	} `json:"data"`
}

// futu 网关的业务错误码
const (
	futuRetUnauthorized = 1001
	futuRetRateLimited  = 1002
)

const futuPageSize = 1000 // 每页最大 K 线数量

// Fetch 拉取日线数据，自动翻页直到 page_req_key 为空
func (p *FutuProvider) Fetch(ctx context.Context, symbol string, start, end time.Time) ([]model.Bar, error) {
	if !p.Supports(symbol) {
		return nil, fmt.Errorf("%w: symbol %s not covered", ErrUnavailable, symbol)
	}

	dialer := websocket.Dialer{HandshakeTimeout: p.timeout}
	conn, _, err := dialer.DialContext(ctx, p.gatewayURL, nil)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: dial gateway: %v", ErrUnavailable, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(p.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	var bars []model.Bar
	pageReqKey := ""
	for {
		req := futuRequest{ID: atomic.AddInt64(&p.nextReqID, 1), Method: "request_history_kline"}
		req.Params.Code = symbol
		req.Params.Start = service.FormatDate(start)
		req.Params.End = service.FormatDate(end)
		req.Params.MaxCount = futuPageSize
		req.Params.PageReqKey = pageReqKey

		if err := conn.SetWriteDeadline(deadline); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if err := conn.WriteJSON(req); err != nil {
			return nil, fmt.Errorf("%w: write request: %v", ErrUnavailable, err)
		}

		if err := conn.SetReadDeadline(deadline); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		var resp futuResponse
		if err := conn.ReadJSON(&resp); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, &MalformedResponseError{Provider: p.Name(), Detail: err.Error()}
		}
		if resp.ID != req.ID {
			return nil, &MalformedResponseError{Provider: p.Name(),
				Detail: fmt.Sprintf("response id %d does not match request id %d", resp.ID, req.ID)}
		}
		if resp.Ret != 0 {
			switch resp.Ret {
			case futuRetUnauthorized:
				return nil, fmt.Errorf("%w: %s", ErrAuth, resp.Msg)
			case futuRetRateLimited:
				return nil, fmt.Errorf("%w: %s", ErrRateLimited, resp.Msg)
			default:
				return nil, fmt.Errorf("%w: ret %d: %s", ErrUnavailable, resp.Ret, resp.Msg)
			}
		}

		for _, k := range resp.Data.KLines {
			date, err := time.Parse("2006-01-02 15:04:05", k.TimeKey)
			if err != nil {
				return nil, &MalformedResponseError{Provider: p.Name(), Detail: "bad time_key " + k.TimeKey}
			}
			bars = append(bars, model.Bar{
				Symbol:     symbol,
				Date:       service.DayOf(date),
				Open:       k.Open,
				High:       k.High,
				Low:        k.Low,
				Close:      k.Close,
				Volume:     k.Volume,
				Provenance: p.Name(),
			})
		}

		if resp.Data.PageReqKey == "" {
			break
		}
		pageReqKey = resp.Data.PageReqKey
	}

	sortBarsByDate(bars)

	p.logger.Info("fetched bars", zap.String("symbol", symbol), zap.Int("count", len(bars)))
	return bars, nil
}
