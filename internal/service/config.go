package service

import (
	"log"
	"sort"

	"github.com/spf13/viper"
)

// ProviderConfig 定义了单个数据源的连接信息和重试策略
type ProviderConfig struct {
	Enabled    bool
	Priority   int // 优先级，数字越小优先级越高
	Endpoint   string
	Token      string // tushare 独有
	Host       string // futu OpenD 网关独有
	Port       int
	TimeoutSec int
	RetryCount int
}

// DatabaseConfig 本地缓存数据库配置
type DatabaseConfig struct {
	Path string // SQLite 文件路径，例如 "market_data.db"
}

// StrategyConfig 定义了趋势跟踪策略的启动参数
type StrategyConfig struct {
	FastPeriod     int
	SlowPeriod     int
	ATRPeriod      int
	ATRMultiplier  float64
	PositionMode   string // "full", "half", "quarter", "fixed"
	FixedSize      float64
	CommissionRate float64
}

// BacktestConfig 定义了一次回测的入参
type BacktestConfig struct {
	Symbol    string
	StartDate string // "2006-01-02"
	EndDate   string
	Strategy  StrategyConfig
}

type Config struct {
	Database  DatabaseConfig            `mapstructure:"Database"`
	Providers map[string]ProviderConfig `mapstructure:"Providers"`
	Backtest  BacktestConfig            `mapstructure:"Backtest"`
}

// GlobalConfig 存储加载后的全局配置
var GlobalConfig Config

// LoadConfig 读取并解析配置文件
func LoadConfig(configPath string) *Config {
	viper.SetConfigName("config") // 文件名是 config
	viper.SetConfigType("yaml")   // 文件类型是 yaml
	viper.AddConfigPath(configPath)

	viper.SetDefault("Database.Path", "market_data.db")
	viper.SetDefault("Backtest.Strategy.CommissionRate", 0.0003)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Fatalf("Config file not found: %s", err)
		} else {
			log.Fatalf("Error reading config file: %s", err)
		}
	}

	if err := viper.Unmarshal(&GlobalConfig); err != nil {
		log.Fatalf("Unable to decode config into struct: %s", err)
	}

	return &GlobalConfig
}

// ProvidersByPriority 返回启用的数据源名称，按优先级升序排列（数字小的先尝试）
func (c *Config) ProvidersByPriority() []string {
	var names []string
	for name, pc := range c.Providers {
		if pc.Enabled {
			names = append(names, name)
		}
	}
	sort.Slice(names, func(i, j int) bool {
		pi, pj := c.Providers[names[i]].Priority, c.Providers[names[j]].Priority
		if pi != pj {
			return pi < pj
		}
		return names[i] < names[j] // 同优先级时按名称稳定排序
	})
	return names
}
