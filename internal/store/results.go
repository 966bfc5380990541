package store

import (
	"time"

	"gorm.io/gorm"

	"stock-backtest/internal/model"
	"stock-backtest/internal/service"
)

// RunRecord 一次回测运行的元信息
type RunRecord struct {
	RunID       string `gorm:"primaryKey;size:32"`
	Symbol      string `gorm:"size:32;index"`
	StartDate   string `gorm:"size:10"`
	EndDate     string `gorm:"size:10"`
	TotalReturn float64
	MaxDrawdown float64
	SharpeRatio float64
	TotalTrades int
	CreatedAt   time.Time
}

func (RunRecord) TableName() string {
	return "backtest_runs"
}

// TradeRow 回测产出的单条成交记录
type TradeRow struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	RunID      string `gorm:"size:32;index"`
	TradeID    int
	TradeDate  string `gorm:"size:10"`
	Symbol     string `gorm:"size:32"`
	Direction  string `gorm:"size:8"`
	Offset     string `gorm:"size:8"`
	Price      float64
	Volume     float64
	PnL        float64
	Commission float64
}

func (TradeRow) TableName() string {
	return "backtest_trades"
}

// DailyRow 回测产出的单日结果
type DailyRow struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	RunID        string `gorm:"size:32;index"`
	TradeDate    string `gorm:"size:10"`
	NetPnL       float64
	TotalPnL     float64
	ReturnRatio  float64
	Drawdown     float64
	WinLossRatio float64
}

func (DailyRow) TableName() string {
	return "backtest_daily_results"
}

// SaveRun 持久化一次回测的成交与日度明细。
// 三张表在同一个事务内写入，保证历史记录不会出现半截运行。
func (s *Store) SaveRun(runID, symbol string, start, end time.Time,
	trades []model.Trade, daily []model.DailyResult, metrics model.Metrics) error {

	err := s.db.Transaction(func(tx *gorm.DB) error {
		rec := RunRecord{
			RunID:       runID,
			Symbol:      symbol,
			StartDate:   service.FormatDate(start),
			EndDate:     service.FormatDate(end),
			TotalReturn: metrics.TotalReturn,
			MaxDrawdown: metrics.MaxDrawdown,
			SharpeRatio: metrics.SharpeRatio,
			TotalTrades: metrics.TotalTrades,
			CreatedAt:   time.Now(),
		}
		if err := tx.Create(&rec).Error; err != nil {
			return err
		}

		for _, t := range trades {
			row := TradeRow{
				RunID:      runID,
				TradeID:    t.ID,
				TradeDate:  service.FormatDate(t.Timestamp),
				Symbol:     t.Symbol,
				Direction:  string(t.Direction),
				Offset:     string(t.Offset),
				Price:      t.Price,
				Volume:     t.Volume,
				PnL:        t.PnL,
				Commission: t.Commission,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}

		for _, d := range daily {
			row := DailyRow{
				RunID:        runID,
				TradeDate:    service.FormatDate(d.Date),
				NetPnL:       d.NetPnL,
				TotalPnL:     d.TotalPnL,
				ReturnRatio:  d.ReturnRatio,
				Drawdown:     d.Drawdown,
				WinLossRatio: d.WinLossRatio,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return &CacheStoreError{Op: "save run", Err: err}
	}
	return nil
}

// History 返回历史回测运行记录，新的在前
func (s *Store) History() ([]RunRecord, error) {
	var runs []RunRecord
	if err := s.db.Order("created_at DESC").Find(&runs).Error; err != nil {
		return nil, &CacheStoreError{Op: "history", Err: err}
	}
	return runs, nil
}

// DeleteRun 删除一次运行及其全部明细
func (s *Store) DeleteRun(runID string) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("run_id = ?", runID).Delete(&TradeRow{}).Error; err != nil {
			return err
		}
		if err := tx.Where("run_id = ?", runID).Delete(&DailyRow{}).Error; err != nil {
			return err
		}
		return tx.Where("run_id = ?", runID).Delete(&RunRecord{}).Error
	})
	if err != nil {
		return &CacheStoreError{Op: "delete run", Err: err}
	}
	return nil
}
