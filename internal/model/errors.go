package model

import "fmt"

// ConfigurationError 表示策略参数不合法，在回测开始前就被拒绝
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// InsufficientDataError 表示缓存和所有数据源加起来都拿不到任何可用 Bar。
// 这种情况必须显式报错，而不是返回一份"空但成功"的误导性结果。
type InsufficientDataError struct {
	Symbol string
	Start  string
	End    string
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: no usable bars for %s in [%s, %s]", e.Symbol, e.Start, e.End)
}
