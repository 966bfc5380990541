package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"stock-backtest/internal/catalog"
	"stock-backtest/internal/service"
)

func newTushare(t *testing.T, url string) *TushareProvider {
	t.Helper()
	cfg := &service.ProviderConfig{Endpoint: url, Token: "test-token", TimeoutSec: 5}
	return NewTushareProvider(cfg, catalog.NewCatalog(), zap.NewNop())
}

func tushareOK(fields []string, items [][]any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"code": 0,
			"msg":  "",
			"data": map[string]any{"fields": fields, "items": items},
		})
	}
}

var tushareFields = []string{"trade_date", "open", "high", "low", "close", "vol"}

func TestTushareFetchParsesAndSortsAscending(t *testing.T) {
	var gotReq tushareRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		// tushare 按日期倒序出数
		tushareOK(tushareFields, [][]any{
			{"20240105", 101.0, 102.0, 100.0, 101.5, 8000.0},
			{"20240104", 100.0, 101.0, 99.0, 100.5, 9000.0},
		})(w, r)
	}))
	defer srv.Close()

	p := newTushare(t, srv.URL)
	start, _ := service.ParseDate("2024-01-04")
	end, _ := service.ParseDate("2024-01-05")
	bars, err := p.Fetch(context.Background(), "600519.SH", start, end)
	require.NoError(t, err)

	// 请求体：个股走 daily，token 和日期格式符合接口约定
	assert.Equal(t, "daily", gotReq.APIName)
	assert.Equal(t, "test-token", gotReq.Token)
	assert.Equal(t, "20240104", gotReq.Params["start_date"])
	assert.Equal(t, "20240105", gotReq.Params["end_date"])
	assert.Equal(t, "600519.SH", gotReq.Params["ts_code"])

	require.Len(t, bars, 2)
	assert.True(t, bars[0].Date.Before(bars[1].Date))
	assert.Equal(t, 100.5, bars[0].Close)
	assert.Equal(t, 9000.0, bars[0].Volume)
	assert.Equal(t, "tushare", bars[0].Provenance)
}

func TestTushareIndexSymbolUsesIndexDaily(t *testing.T) {
	var gotReq tushareRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		tushareOK(tushareFields, nil)(w, r)
	}))
	defer srv.Close()

	p := newTushare(t, srv.URL)
	start, _ := service.ParseDate("2024-01-04")
	_, err := p.Fetch(context.Background(), "000300.SH", start, start)
	require.NoError(t, err)
	assert.Equal(t, "index_daily", gotReq.APIName)
}

func TestTushareSupportsOnlyCNMarket(t *testing.T) {
	p := newTushare(t, "http://unused")
	assert.True(t, p.Supports("600519.SH"))
	assert.True(t, p.Supports("000300.SH"))
	assert.False(t, p.Supports("HK.00700"))
	assert.False(t, p.Supports("AAPL.US"))
	assert.False(t, p.Supports("UNKNOWN"))
}

func TestTushareErrorMapping(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
		want    error
	}{
		{
			"http 401",
			func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusUnauthorized) },
			ErrAuth,
		},
		{
			"http 429",
			func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTooManyRequests) },
			ErrRateLimited,
		},
		{
			"http 500",
			func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusInternalServerError) },
			ErrUnavailable,
		},
		{
			"business code token error",
			func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]any{"code": 2002, "msg": "token不对，请确认"})
			},
			ErrAuth,
		},
		{
			"business code rate limit",
			func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]any{"code": 40203, "msg": "抱歉，您每分钟最多访问该接口2次"})
			},
			ErrRateLimited,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()

			p := newTushare(t, srv.URL)
			start, _ := service.ParseDate("2024-01-04")
			_, err := p.Fetch(context.Background(), "600519.SH", start, start)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestTushareMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 缺 trade_date 字段
		tushareOK([]string{"open", "high", "low", "close", "vol"},
			[][]any{{100.0, 101.0, 99.0, 100.5, 9000.0}})(w, r)
	}))
	defer srv.Close()

	p := newTushare(t, srv.URL)
	start, _ := service.ParseDate("2024-01-04")
	_, err := p.Fetch(context.Background(), "600519.SH", start, start)
	var merr *MalformedResponseError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, "tushare", merr.Provider)
}

func TestTushareCanceledContextNotRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		tushareOK(tushareFields, nil)(w, r)
	}))
	defer srv.Close()

	p := newTushare(t, srv.URL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start, _ := service.ParseDate("2024-01-04")
	_, err := p.Fetch(ctx, "600519.SH", start, start)
	require.Error(t, err)
	assert.False(t, IsRetryable(err))
}
