package catalog

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Market 市场类型
type Market string

const (
	MarketCN Market = "CN"
	MarketHK Market = "HK"
	MarketUS Market = "US"
)

// SymbolType 标的类型
type SymbolType string

const (
	TypeStock SymbolType = "stock"
	TypeIndex SymbolType = "index"
)

// Symbol 标的静态元数据，构建期创建后不再修改
type Symbol struct {
	Code     string
	Name     string
	Market   Market
	Type     SymbolType
	Exchange string
}

// Catalog 支持的标的清单
type Catalog struct {
	symbols map[string]Symbol
}

// builtin 内置标的表，覆盖常用指数和个股
var builtin = []Symbol{
	{Code: "000001.SH", Name: "上证指数", Market: MarketCN, Type: TypeIndex, Exchange: "SSE"},
	{Code: "000016.SH", Name: "上证50", Market: MarketCN, Type: TypeIndex, Exchange: "SSE"},
	{Code: "000300.SH", Name: "沪深300", Market: MarketCN, Type: TypeIndex, Exchange: "SSE"},
	{Code: "399001.SZ", Name: "深证成指", Market: MarketCN, Type: TypeIndex, Exchange: "SZSE"},
	{Code: "399006.SZ", Name: "创业板指", Market: MarketCN, Type: TypeIndex, Exchange: "SZSE"},
	{Code: "600519.SH", Name: "贵州茅台", Market: MarketCN, Type: TypeStock, Exchange: "SSE"},
	{Code: "000001.SZ", Name: "平安银行", Market: MarketCN, Type: TypeStock, Exchange: "SZSE"},
	{Code: "HK.00700", Name: "腾讯控股", Market: MarketHK, Type: TypeStock, Exchange: "SEHK"},
	{Code: "HK.09988", Name: "阿里巴巴", Market: MarketHK, Type: TypeStock, Exchange: "SEHK"},
	{Code: "AAPL.US", Name: "Apple Inc.", Market: MarketUS, Type: TypeStock, Exchange: "NASDAQ"},
	{Code: "TSLA.US", Name: "Tesla Inc.", Market: MarketUS, Type: TypeStock, Exchange: "NASDAQ"},
}

// NewCatalog 构建内置标的目录
func NewCatalog() *Catalog {
	c := &Catalog{symbols: make(map[string]Symbol, len(builtin))}
	for _, s := range builtin {
		c.symbols[s.Code] = s
	}
	return c
}

// LoadDir 从目录加载额外的标的文件（每行 "code,name"），文件名决定市场和类型，
// 例如 A_stock.txt、A_index.txt、HK_stock.txt、US_stock.txt
func (c *Catalog) LoadDir(dir string) error {
	mappings := map[string]struct {
		market Market
		typ    SymbolType
	}{
		"A_stock.txt":  {MarketCN, TypeStock},
		"A_index.txt":  {MarketCN, TypeIndex},
		"HK_stock.txt": {MarketHK, TypeStock},
		"US_stock.txt": {MarketUS, TypeStock},
	}

	for filename, info := range mappings {
		path := filepath.Join(dir, filename)
		f, err := os.Open(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("open symbol file %s: %w", path, err)
		}

		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			parts := strings.SplitN(line, ",", 2)
			if len(parts) != 2 {
				continue
			}
			code := strings.TrimSpace(parts[0])
			c.symbols[code] = Symbol{
				Code:     code,
				Name:     strings.TrimSpace(parts[1]),
				Market:   info.market,
				Type:     info.typ,
				Exchange: exchangeOf(code, info.market),
			}
		}
		err = scanner.Err()
		f.Close()
		if err != nil {
			return fmt.Errorf("read symbol file %s: %w", path, err)
		}
	}
	return nil
}

// exchangeOf 根据代码后缀和市场确定交易所
func exchangeOf(code string, market Market) string {
	switch market {
	case MarketCN:
		if strings.HasSuffix(code, ".SH") {
			return "SSE"
		}
		if strings.HasSuffix(code, ".SZ") {
			return "SZSE"
		}
		return "SSE"
	case MarketHK:
		return "SEHK"
	default:
		return "NASDAQ"
	}
}

// Lookup 查询标的元数据
func (c *Catalog) Lookup(code string) (Symbol, bool) {
	s, ok := c.symbols[code]
	return s, ok
}

// Supported 判断是否支持该标的
func (c *Catalog) Supported(code string) bool {
	_, ok := c.symbols[code]
	return ok
}

// ByMarket 返回指定市场的所有标的
func (c *Catalog) ByMarket(market Market) []Symbol {
	var out []Symbol
	for _, s := range c.symbols {
		if s.Market == market {
			out = append(out, s)
		}
	}
	return out
}

// ByType 返回指定类型的所有标的
func (c *Catalog) ByType(typ SymbolType) []Symbol {
	var out []Symbol
	for _, s := range c.symbols {
		if s.Type == typ {
			out = append(out, s)
		}
	}
	return out
}

// All 返回所有支持的标的
func (c *Catalog) All() []Symbol {
	out := make([]Symbol, 0, len(c.symbols))
	for _, s := range c.symbols {
		out = append(out, s)
	}
	return out
}

// MarketOf 根据代码格式推断市场，用于没有目录信息时的回退判断
func MarketOf(code string) Market {
	switch {
	case strings.HasSuffix(code, ".SH"), strings.HasSuffix(code, ".SZ"):
		return MarketCN
	case strings.HasPrefix(code, "HK."):
		return MarketHK
	default:
		return MarketUS
	}
}
