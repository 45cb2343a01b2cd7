// Package watchlist runs the watching -> promoted|expired state machine
// over tokens that have triggered but not yet been approved for execution.
package watchlist

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/polybot/internal/storage"
)

// Config mirrors config.WatchlistConfig.
type Config struct {
	ExecutionThreshold decimal.Decimal
	WatchlistMin       decimal.Decimal
	MinHoursToExpiry   float64
}

// Promotion is emitted by RescoreAll when an item crosses the execution
// threshold, for the caller to turn into a Candidate.
type Promotion struct {
	TokenID     string
	ConditionID string
	Question    string
	Score       float64
}

// Service wraps the watchlist repository with the scoring state machine.
type Service struct {
	repo *storage.WatchlistRepository
	cfg  Config
}

func NewService(repo *storage.WatchlistRepository, cfg Config) *Service {
	return &Service{repo: repo, cfg: cfg}
}

// AddToWatchlist upserts a token in watching state.
func (s *Service) AddToWatchlist(tokenID, conditionID, question string, initialScore, triggerPrice, triggerSize decimal.Decimal, timeToEndHours float64) error {
	return s.repo.Upsert(&storage.WatchlistItem{
		TokenID:        tokenID,
		ConditionID:    conditionID,
		Question:       question,
		TriggerPrice:   triggerPrice,
		TriggerSize:    triggerSize,
		InitialScore:   initialScore.InexactFloat64(),
		CurrentScore:   initialScore.InexactFloat64(),
		TimeToEndHours: timeToEndHours,
		LastScoredAt:   time.Now().UTC(),
		Status:         storage.WatchlistWatching,
	})
}

// Score computes a monotone-increasing score bounded at 1.0 as time to
// expiry shrinks — urgency rises the closer a market gets to resolving,
// but never exceeds the cap the promotion threshold compares against.
func Score(currentScore float64, timeToEndHours float64) float64 {
	if timeToEndHours <= 0 {
		return 1.0
	}
	urgency := 1.0 / (1.0 + timeToEndHours/24.0)
	score := currentScore
	if urgency > score {
		score = urgency
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// RescoreAll recomputes scores for every watching item, promoting or
// expiring as thresholds dictate, and returns the promotions the caller
// should turn into candidates.
func (s *Service) RescoreAll() ([]Promotion, error) {
	items, err := s.repo.GetWatching()
	if err != nil {
		return nil, err
	}

	var promotions []Promotion
	for _, item := range items {
		newScore := Score(item.CurrentScore, item.TimeToEndHours)

		if err := s.repo.UpdateScore(item.TokenID, newScore, item.TimeToEndHours); err != nil {
			log.Warn().Err(err).Str("token_id", item.TokenID).Msg("📋 failed to update watchlist score")
			continue
		}
		if err := s.repo.AppendScoreHistory(item.TokenID, newScore, item.TimeToEndHours); err != nil {
			log.Warn().Err(err).Str("token_id", item.TokenID).Msg("📋 failed to append score history")
		}

		executionThreshold, _ := s.cfg.ExecutionThreshold.Float64()
		watchlistMin, _ := s.cfg.WatchlistMin.Float64()

		switch {
		case newScore >= executionThreshold:
			if err := s.repo.Promote(item.TokenID); err != nil {
				log.Warn().Err(err).Str("token_id", item.TokenID).Msg("📋 failed to promote watchlist item")
				continue
			}
			promotions = append(promotions, Promotion{
				TokenID:     item.TokenID,
				ConditionID: item.ConditionID,
				Question:    item.Question,
				Score:       newScore,
			})
		case newScore < watchlistMin:
			if err := s.repo.MarkExpired(item.TokenID); err != nil {
				log.Warn().Err(err).Str("token_id", item.TokenID).Msg("📋 failed to expire watchlist item")
			}
		}
	}
	return promotions, nil
}

// RemoveExpired marks expired any watching entry whose market is within
// minHours of closing.
func (s *Service) RemoveExpired() (int, error) {
	items, err := s.repo.ExpiringWithin(s.cfg.MinHoursToExpiry)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, item := range items {
		if err := s.repo.MarkExpired(item.TokenID); err != nil {
			log.Warn().Err(err).Str("token_id", item.TokenID).Msg("📋 failed to expire near-closing watchlist item")
			continue
		}
		count++
	}
	return count, nil
}
