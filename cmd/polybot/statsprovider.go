package main

import (
	"github.com/shopspring/decimal"

	"github.com/web3guy0/polybot/internal/balance"
	"github.com/web3guy0/polybot/internal/storage"
)

// repoStatsProvider satisfies alerting.StatsProvider. Balance is read from
// the in-process balance manager rather than the venue directly, since the
// venue's own balance call is already mediated through it.
type repoStatsProvider struct {
	dailyStats *storage.DailyStatsRepository
	positions  *storage.PositionRepository
	balanceMgr *balance.Manager
}

func (p *repoStatsProvider) DailyStats() (*storage.DailyStats, error) {
	return p.dailyStats.Today()
}

func (p *repoStatsProvider) Balance() (decimal.Decimal, error) {
	return p.balanceMgr.AvailableBalance(), nil
}

func (p *repoStatsProvider) OpenPositions() ([]storage.Position, error) {
	return p.positions.OpenPositions()
}
