package storage

import (
	"hash/fnv"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// advisoryKey derives a deterministic int64 lock ID from a (namespace, parts)
// tuple, used to key Postgres session/transaction-scoped advisory locks.
// Two callers computing the key for the same inputs always contend for the
// same lock; callers with different inputs essentially never collide
// (64-bit FNV-1a).
func advisoryKey(namespace string, parts ...string) int64 {
	h := fnv.New64a()
	h.Write([]byte(namespace))
	for _, p := range parts {
		h.Write([]byte{0})
		h.Write([]byte(p))
	}
	return int64(h.Sum64())
}

func triggerLockKey(conditionID string, threshold decimal.Decimal) int64 {
	return advisoryKey("trigger", conditionID, threshold.String())
}

func approvalLockKey(tokenID string) int64 {
	return advisoryKey("approval", tokenID)
}

// SyncLockKey derives the well-known lock ID for a named sync scope (e.g.
// "full", "price"), so every replica computes the same ID for the same
// scope without needing to share configuration beyond the scope string.
func SyncLockKey(scope string) int64 {
	return advisoryKey("sync", scope)
}

// TryAdvisoryLock attempts a non-blocking, session-scoped acquire of key.
// On Postgres this is pg_try_advisory_lock/pg_advisory_unlock, held for as
// long as the caller wants (unlike the transaction-scoped lock the trigger
// tracker uses); in SQLite/dev mode it degrades to the same process-local
// mutex map as the trigger tracker's fallback, with the same cross-replica
// caveat. Returns acquired=false (no error) if the lock is already held.
func (s *Store) TryAdvisoryLock(key int64) (acquired bool, release func(), err error) {
	if !s.IsPostgres() {
		ok := s.localLocks.tryLock(key)
		if !ok {
			return false, nil, nil
		}
		return true, func() { s.localLocks.unlock(key) }, nil
	}

	var ok bool
	if err := s.db.Raw("SELECT pg_try_advisory_lock(?)", key).Scan(&ok).Error; err != nil {
		return false, nil, err
	}
	if !ok {
		return false, nil, nil
	}
	return true, func() {
		if err := s.db.Exec("SELECT pg_advisory_unlock(?)", key).Error; err != nil {
			log.Warn().Err(err).Int64("key", key).Msg("📋 failed to release advisory lock")
		}
	}, nil
}

// localLocks provides the SQLite/dev-mode fallback for advisory locking: a
// process-local mutex per key. It gives correct single-process semantics
// (enough for local development and tests) but not the cross-replica
// exclusion a real Postgres advisory lock provides; IsPostgres() callers
// should treat this as a documented limitation of non-Postgres mode, not a
// substitute for it in production.
type localLocks struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func newLocalLocks() *localLocks {
	return &localLocks{locks: make(map[int64]*sync.Mutex)}
}

func (l *localLocks) lock(key int64) func() {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}

func (l *localLocks) tryLock(key int64) bool {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	return m.TryLock()
}

func (l *localLocks) unlock(key int64) {
	l.mu.Lock()
	m, ok := l.locks[key]
	l.mu.Unlock()
	if ok {
		m.Unlock()
	}
}
