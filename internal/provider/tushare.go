package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"stock-backtest/internal/catalog"
	"stock-backtest/internal/model"
	"stock-backtest/internal/service"
)

// TushareProvider 通过 tushare pro 的 HTTP JSON 接口获取 A 股数据。
// 接口形式是单一端点 + api_name 路由：指数走 index_daily，个股走 daily。
type TushareProvider struct {
	endpoint   string
	token      string
	catalog    *catalog.Catalog
	httpClient *http.Client
	logger     *zap.Logger
}

// NewTushareProvider 初始化 tushare 数据提供器
func NewTushareProvider(cfg *service.ProviderConfig, cat *catalog.Catalog, logger *zap.Logger) *TushareProvider {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "http://api.tushare.pro"
	}
	return &TushareProvider{
		endpoint:   endpoint,
		token:      cfg.Token,
		catalog:    cat,
		httpClient: &http.Client{Timeout: time.Duration(cfg.TimeoutSec) * time.Second},
		logger:     logger.With(zap.String("provider", "tushare")),
	}
}

func (p *TushareProvider) Name() string {
	return "tushare"
}

// Supports tushare 只覆盖 A 股市场的标的
func (p *TushareProvider) Supports(symbol string) bool {
	info, ok := p.catalog.Lookup(symbol)
	return ok && info.Market == catalog.MarketCN
}

// tushareRequest tushare pro 的统一请求体
type tushareRequest struct {
	APIName string            `json:"api_name"`
	Token   string            `json:"token"`
	Params  map[string]string `json:"params"`
	Fields  string            `json:"fields"`
}

// tushareResponse 统一响应体，data.items 是与 data.fields 对齐的二维数组
type tushareResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		// items 的元素类型混合：trade_date 是字符串，价格和量是数字
		Fields []string `json:"fields"`
		Items  [][]any  `json:"items"`
	} `json:"data"`
}

// Fetch 拉取日线数据
func (p *TushareProvider) Fetch(ctx context.Context, symbol string, start, end time.Time) ([]model.Bar, error) {
	if !p.Supports(symbol) {
		return nil, fmt.Errorf("%w: symbol %s not covered", ErrUnavailable, symbol)
	}
	info, _ := p.catalog.Lookup(symbol)

	apiName := "daily"
	if info.Type == catalog.TypeIndex {
		apiName = "index_daily"
	}

	reqBody := tushareRequest{
		APIName: apiName,
		Token:   p.token,
		Params: map[string]string{
			"ts_code":    symbol,
			"start_date": start.Format("20060102"),
			"end_date":   end.Format("20060102"),
		},
		Fields: "trade_date,open,high,low,close,vol",
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %v", ErrUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrAuth
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: http %d", ErrUnavailable, resp.StatusCode)
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	var tr tushareResponse
	if err := dec.Decode(&tr); err != nil {
		return nil, &MalformedResponseError{Provider: p.Name(), Detail: err.Error()}
	}

	if tr.Code != 0 {
		// tushare 的业务错误通过 code/msg 返回：token 问题按认证错误处理
		if strings.Contains(strings.ToLower(tr.Msg), "token") {
			return nil, fmt.Errorf("%w: %s", ErrAuth, tr.Msg)
		}
		if strings.Contains(tr.Msg, "每分钟") || strings.Contains(strings.ToLower(tr.Msg), "limit") {
			return nil, fmt.Errorf("%w: %s", ErrRateLimited, tr.Msg)
		}
		return nil, fmt.Errorf("%w: code %d: %s", ErrUnavailable, tr.Code, tr.Msg)
	}

	idx := make(map[string]int, len(tr.Data.Fields))
	for i, f := range tr.Data.Fields {
		idx[f] = i
	}
	for _, f := range []string{"trade_date", "open", "high", "low", "close", "vol"} {
		if _, ok := idx[f]; !ok {
			return nil, &MalformedResponseError{Provider: p.Name(), Detail: "missing field " + f}
		}
	}

	bars := make([]model.Bar, 0, len(tr.Data.Items))
	for _, row := range tr.Data.Items {
		if len(row) < len(tr.Data.Fields) {
			return nil, &MalformedResponseError{Provider: p.Name(), Detail: "short row"}
		}
		dateStr, ok := row[idx["trade_date"]].(string)
		if !ok {
			return nil, &MalformedResponseError{Provider: p.Name(), Detail: "trade_date is not a string"}
		}
		date, err := time.Parse("20060102", dateStr)
		if err != nil {
			return nil, &MalformedResponseError{Provider: p.Name(), Detail: "bad trade_date " + dateStr}
		}
		open, e1 := itemFloat(row[idx["open"]])
		high, e2 := itemFloat(row[idx["high"]])
		low, e3 := itemFloat(row[idx["low"]])
		closep, e4 := itemFloat(row[idx["close"]])
		vol, e5 := itemFloat(row[idx["vol"]])
		if e1 != nil || e2 != nil || e3 != nil || e4 != nil || e5 != nil {
			return nil, &MalformedResponseError{Provider: p.Name(), Detail: "non-numeric OHLCV"}
		}
		bars = append(bars, model.Bar{
			Symbol:     symbol,
			Date:       service.DayOf(date),
			Open:       open,
			High:       high,
			Low:        low,
			Close:      closep,
			Volume:     vol,
			Provenance: p.Name(),
		})
	}

	// tushare 默认按日期倒序返回，统一转为升序
	sortBarsByDate(bars)

	p.logger.Info("fetched bars",
		zap.String("symbol", symbol),
		zap.String("api", apiName),
		zap.Int("count", len(bars)))
	return bars, nil
}

func sortBarsByDate(bars []model.Bar) {
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
}

// itemFloat 将 items 中的数值字段转为 float64（UseNumber 下为 json.Number）
func itemFloat(v any) (float64, error) {
	switch n := v.(type) {
	case json.Number:
		return n.Float64()
	case float64:
		return n, nil
	default:
		return 0, fmt.Errorf("unexpected item type %T", v)
	}
}
