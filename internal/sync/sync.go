// Package sync runs the background full-sync and hot-markets-only sync
// loops against the venue, each guarded by its own well-known advisory
// lock so that at most one replica performs a given scope's work at a
// time. Grounded directly on original_source's SyncService
// (try-lock/record/finally-release run lifecycle).
package sync

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/web3guy0/polybot/internal/storage"
)

const (
	ScopeFull  = "full"
	ScopePrice = "price"
)

// FetchOptions controls how much of the market universe a single sync
// iteration pulls.
type FetchOptions struct {
	PriceOnly bool
	TopN      int // 0 means "no limit" — only meaningful with PriceOnly
}

// Fetcher performs one sync iteration against the venue and Storage,
// returning how many rows it touched. Implemented by internal/ingestion's
// universe fetcher; kept as an interface here so the sync loop's locking
// and audit-trail logic has no dependency on the HTTP/pagination details.
type Fetcher interface {
	SyncMarkets(ctx context.Context, opts FetchOptions) (rows int, err error)
}

// Service runs the full-sync and price-sync loops.
type Service struct {
	store    *storage.Store
	runs     *storage.SyncRunRepository
	fetcher  Fetcher
	fullLockKey  int64
	priceLockKey int64
}

func NewService(store *storage.Store, runs *storage.SyncRunRepository, fetcher Fetcher) *Service {
	return &Service{
		store:        store,
		runs:         runs,
		fetcher:      fetcher,
		fullLockKey:  storage.SyncLockKey(ScopeFull),
		priceLockKey: storage.SyncLockKey(ScopePrice),
	}
}

// Run starts both loops and blocks until ctx is cancelled.
func (s *Service) Run(ctx context.Context, fullInterval, priceInterval time.Duration, priceTopN int) {
	done := make(chan struct{}, 2)

	go func() {
		s.loop(ctx, ScopeFull, s.fullLockKey, fullInterval, FetchOptions{})
		done <- struct{}{}
	}()

	go func() {
		// Offset from the full sync so the two loops don't collide every
		// time they happen to align.
		select {
		case <-time.After(priceInterval / 2):
		case <-ctx.Done():
			done <- struct{}{}
			return
		}
		s.loop(ctx, ScopePrice, s.priceLockKey, priceInterval, FetchOptions{PriceOnly: true, TopN: priceTopN})
		done <- struct{}{}
	}()

	<-done
	<-done
}

func (s *Service) loop(ctx context.Context, scope string, lockKey int64, interval time.Duration, opts FetchOptions) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		s.runOnce(ctx, scope, lockKey, opts)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// runOnce performs a single guarded sync iteration: try the advisory lock,
// record running/skipped/success/failed, and always release the lock if
// it was acquired — mirroring the try/record/finally-release shape
// exactly.
func (s *Service) runOnce(ctx context.Context, scope string, lockKey int64, opts FetchOptions) {
	acquired, release, err := s.store.TryAdvisoryLock(lockKey)
	if err != nil {
		log.Error().Err(err).Str("scope", scope).Msg("🔄 advisory lock attempt failed")
		return
	}
	if !acquired {
		log.Info().Str("scope", scope).Msg("🔄 sync skipped - another replica is running")
		if err := s.runs.RecordSkipped(scope); err != nil {
			log.Warn().Err(err).Str("scope", scope).Msg("📋 failed to record skipped sync run")
		}
		return
	}
	defer release()

	run, err := s.runs.Start(scope)
	if err != nil {
		log.Error().Err(err).Str("scope", scope).Msg("🔄 failed to record sync run start")
		return
	}

	rows, syncErr := s.fetcher.SyncMarkets(ctx, opts)

	status := storage.SyncSuccess
	if syncErr != nil {
		status = storage.SyncFailed
		log.Error().Err(syncErr).Str("scope", scope).Msg("🔄 sync iteration failed")
	} else {
		log.Info().Str("scope", scope).Int("rows", rows).Msg("🔄 sync iteration complete")
	}

	if err := s.runs.Finish(run.ID, status, rows, syncErr); err != nil {
		log.Error().Err(err).Str("scope", scope).Msg("🔄 failed to record sync run finish")
	}
}
