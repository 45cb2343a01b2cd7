package alerting

import (
	"github.com/shopspring/decimal"

	"github.com/web3guy0/polybot/internal/storage"
)

// RepoStatsProvider implements StatsProvider directly against storage
// repositories and a balance callback, so the notifier's command surface
// needs nothing beyond what's already built: no separate "bot" facade.
type RepoStatsProvider struct {
	dailyStats *storage.DailyStatsRepository
	positions  *storage.PositionRepository
	balance    func() (decimal.Decimal, error)
}

func NewRepoStatsProvider(dailyStats *storage.DailyStatsRepository, positions *storage.PositionRepository, balance func() (decimal.Decimal, error)) *RepoStatsProvider {
	return &RepoStatsProvider{dailyStats: dailyStats, positions: positions, balance: balance}
}

func (p *RepoStatsProvider) DailyStats() (*storage.DailyStats, error) {
	return p.dailyStats.Today()
}

func (p *RepoStatsProvider) Balance() (decimal.Decimal, error) {
	return p.balance()
}

func (p *RepoStatsProvider) OpenPositions() ([]storage.Position, error) {
	return p.positions.OpenPositions()
}
