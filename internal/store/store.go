package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"stock-backtest/internal/model"
	"stock-backtest/internal/service"
)

// CacheStoreError 表示持久化存储的 I/O 故障。
// 缓存完整性决定了后续所有回测的可复现性，这类错误必须立即上抛，不允许吞掉。
type CacheStoreError struct {
	Op  string
	Err error
}

func (e *CacheStoreError) Error() string {
	return fmt.Sprintf("cache store: %s: %v", e.Op, e.Err)
}

func (e *CacheStoreError) Unwrap() error {
	return e.Err
}

// CacheEntry 是 Bar 的持久化形态，主键 (symbol, trade_date)，
// 附加 provider 来源标记；(symbol, provider) 上建索引支持按来源清理。
// 同一日期重复写入时整行覆盖（last write wins），绝不合并两个版本。
type CacheEntry struct {
	Symbol    string  `gorm:"primaryKey;size:32;index:idx_symbol_provider,priority:1"`
	TradeDate string  `gorm:"primaryKey;size:10"` // "2006-01-02"
	Provider  string  `gorm:"size:32;index:idx_symbol_provider,priority:2"`
	Open      float64 `gorm:"not null"`
	High      float64 `gorm:"not null"`
	Low       float64 `gorm:"not null"`
	Close     float64 `gorm:"not null"`
	Volume    float64
	CreatedAt time.Time
}

func (CacheEntry) TableName() string {
	return "market_data"
}

// Store 本地行情缓存，SQLite 文件承载，跨回测共享。
// 读（范围查询）可以并发；写（upsert/purge）由 writeMu 串行化，
// 防止并发回测对同一标的交错写入半截数据。写只发生在缓存未命中时，
// 频率很低，整库级别的锁粒度足够。
type Store struct {
	db      *gorm.DB
	writeMu sync.Mutex
}

// Open 打开（必要时创建）缓存数据库并建表
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, &CacheStoreError{Op: "open", Err: err}
	}
	if err := db.AutoMigrate(&CacheEntry{}, &RunRecord{}, &TradeRow{}, &DailyRow{}); err != nil {
		return nil, &CacheStoreError{Op: "migrate", Err: err}
	}
	return &Store{db: db}, nil
}

// BarsInRange 查询 [start, end] 区间内已缓存的 Bar，按日期升序
func (s *Store) BarsInRange(symbol string, start, end time.Time) ([]model.Bar, error) {
	var entries []CacheEntry
	err := s.db.
		Where("symbol = ? AND trade_date >= ? AND trade_date <= ?",
			symbol, service.FormatDate(start), service.FormatDate(end)).
		Order("trade_date").
		Find(&entries).Error
	if err != nil {
		return nil, &CacheStoreError{Op: "range query", Err: err}
	}

	bars := make([]model.Bar, 0, len(entries))
	for _, e := range entries {
		date, err := service.ParseDate(e.TradeDate)
		if err != nil {
			return nil, &CacheStoreError{Op: "range query", Err: err}
		}
		bars = append(bars, model.Bar{
			Symbol:     e.Symbol,
			Date:       date,
			Open:       e.Open,
			High:       e.High,
			Low:        e.Low,
			Close:      e.Close,
			Volume:     e.Volume,
			Provenance: model.ProvenanceCache,
		})
	}
	return bars, nil
}

// Upsert 批量写入拉取到的 Bar，标记来源数据源。
// (symbol, trade_date) 冲突时整行覆盖，即最后一次成功拉取获胜。
// 整批在一个事务内完成，避免并发写入者交错出半截数据。
func (s *Store) Upsert(bars []model.Bar, providerName string) error {
	if len(bars) == 0 {
		return nil
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	entries := make([]CacheEntry, 0, len(bars))
	now := time.Now()
	for _, b := range bars {
		entries = append(entries, CacheEntry{
			Symbol:    b.Symbol,
			TradeDate: service.FormatDate(b.Date),
			Provider:  providerName,
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    b.Volume,
			CreatedAt: now,
		})
	}
	err := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "symbol"}, {Name: "trade_date"}},
		DoUpdates: clause.AssignmentColumns(
			[]string{"provider", "open", "high", "low", "close", "volume", "created_at"}),
	}).Create(&entries).Error
	if err != nil {
		return &CacheStoreError{Op: "upsert", Err: err}
	}
	return nil
}

// Purge 按标的和/或数据源批量删除缓存行，返回删除行数。
// 两个条件都为空时清空整张表（显式操作，提供给运维入口）。
func (s *Store) Purge(symbol, providerName string) (int64, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx := s.db.Model(&CacheEntry{})
	switch {
	case symbol != "" && providerName != "":
		tx = tx.Where("symbol = ? AND provider = ?", symbol, providerName)
	case symbol != "":
		tx = tx.Where("symbol = ?", symbol)
	case providerName != "":
		tx = tx.Where("provider = ?", providerName)
	default:
		tx = tx.Where("1 = 1")
	}
	res := tx.Delete(&CacheEntry{})
	if res.Error != nil {
		return 0, &CacheStoreError{Op: "purge", Err: res.Error}
	}
	return res.RowsAffected, nil
}

// CacheStat 单个 (symbol, provider) 组合的缓存概况
type CacheStat struct {
	Symbol   string
	Provider string
	Count    int64
	MinDate  string
	MaxDate  string
}

// Stats 返回缓存现状，按标的和数据源分组
func (s *Store) Stats() ([]CacheStat, error) {
	var stats []CacheStat
	err := s.db.Model(&CacheEntry{}).
		Select("symbol, provider, COUNT(*) as count, MIN(trade_date) as min_date, MAX(trade_date) as max_date").
		Group("symbol, provider").
		Order("symbol, provider").
		Scan(&stats).Error
	if err != nil {
		return nil, &CacheStoreError{Op: "stats", Err: err}
	}
	return stats, nil
}
