package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stock-backtest/internal/model"
)

// DataProvider 是数据源的通用能力接口。
// 加载器只面向这个接口编程，绝不依赖具体数据源类型；
// 新增数据源只需要实现该接口并在装配处注册。
type DataProvider interface {
	// Name 返回数据源标识，用于缓存 provenance 标记和日志
	Name() string

	// Supports 判断该数据源是否覆盖指定标的
	Supports(symbol string) bool

	// Fetch 拉取 [start, end] 区间内的日线数据，按日期升序返回。
	// 失败时返回下方定义的类型化错误；对加载器而言它们语义等价：
	// 本数据源对该区间失败，换下一个。
	Fetch(ctx context.Context, symbol string, start, end time.Time) ([]model.Bar, error)
}

// 数据源层的类型化错误
var (
	ErrAuth        = errors.New("provider: authentication failed")
	ErrRateLimited = errors.New("provider: rate limited")
	ErrUnavailable = errors.New("provider: unavailable")
)

// MalformedResponseError 表示数据源返回了无法解析的载荷
type MalformedResponseError struct {
	Provider string
	Detail   string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("provider %s: malformed response: %s", e.Provider, e.Detail)
}

// IsRetryable 判断错误是否属于可失败转移的数据源错误。
// 单次调用超时（DeadlineExceeded）可以换源重试；
// 调用方主动取消（Canceled）必须立即中止，不换源。
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, context.Canceled)
}
