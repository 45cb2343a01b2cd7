package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// DailyStatsRepository maintains the rollup the alerting /stats command
// reads back.
type DailyStatsRepository struct {
	store *Store
}

func NewDailyStatsRepository(s *Store) *DailyStatsRepository {
	return &DailyStatsRepository{store: s}
}

func dateKey(t time.Time) string { return t.UTC().Format("2006-01-02") }

// RecordTrade increments today's trade/win/loss counters and accumulates
// realized P&L and the closing equity snapshot.
func (r *DailyStatsRepository) RecordTrade(realizedPnL, equity decimal.Decimal) error {
	return r.store.retryTransient("record_daily_trade", func() error {
		date := dateKey(time.Now())
		var stats DailyStats
		err := r.store.db.Where("date = ?", date).First(&stats).Error
		if err == errRecordNotFound {
			stats = DailyStats{Date: date}
		} else if err != nil {
			return err
		}

		stats.Trades++
		if realizedPnL.GreaterThan(decimal.Zero) {
			stats.Wins++
		} else if realizedPnL.LessThan(decimal.Zero) {
			stats.Losses++
		}
		stats.PnL = stats.PnL.Add(realizedPnL)
		stats.Equity = equity

		return r.store.db.Save(&stats).Error
	})
}

func (r *DailyStatsRepository) Today() (*DailyStats, error) {
	return r.For(time.Now())
}

func (r *DailyStatsRepository) For(day time.Time) (*DailyStats, error) {
	var stats DailyStats
	err := r.store.retryTransient("get_daily_stats", func() error {
		return r.store.db.Where("date = ?", dateKey(day)).First(&stats).Error
	})
	if err != nil {
		if err == errRecordNotFound {
			return &DailyStats{Date: dateKey(day)}, nil
		}
		return nil, err
	}
	return &stats, nil
}
