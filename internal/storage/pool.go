package storage

import (
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/web3guy0/polybot/internal/config"
	"github.com/web3guy0/polybot/internal/pkgerr"
)

// Store is the connection pool and typed-repository facade over the
// relational schema. It auto-reconnects with exponential backoff and each
// repository retries individual queries on transient errors.
//
// Storage exclusively owns persisted rows (§3 "Ownership"); in-memory caches
// elsewhere are re-hydrated from here on startup and defer to it on mismatch.
type Store struct {
	db      *gorm.DB
	driver  string // "postgres" or "sqlite"
	backoff config.BackoffConfig

	// localLocks backs advisory-lock semantics in SQLite/dev mode, see
	// localLocks' doc comment for the limitation this implies.
	localLocks *localLocks
}

// Open connects to the configured database, retrying with exponential
// backoff, and runs AutoMigrate. An empty dsn falls back to a local SQLite
// file so the bot can run in dry-run mode without external infrastructure.
func Open(dsn string, backoff config.BackoffConfig) (*Store, error) {
	driver := "sqlite"
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		driver = "postgres"
	}
	if dsn == "" {
		dsn = "data/polybot.db"
		driver = "sqlite"
	}

	var db *gorm.DB
	var lastErr error

	delay := backoff.InitialDelay
	attempts := backoff.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		db, lastErr = dial(driver, dsn)
		if lastErr == nil {
			break
		}
		log.Warn().
			Err(lastErr).
			Int("attempt", attempt+1).
			Dur("next_delay", delay).
			Msg("💾 database connect failed, retrying")

		time.Sleep(delay)
		delay = time.Duration(math.Min(float64(backoff.MaxDelay), float64(delay)*backoff.Multiplier))
	}
	if lastErr != nil {
		return nil, pkgerr.TransientErr("exhausted database connect retries", lastErr)
	}

	if err := db.AutoMigrate(AllModels()...); err != nil {
		return nil, fmt.Errorf("automigrate: %w", err)
	}

	log.Info().Str("driver", driver).Msg("💾 database connected")
	return &Store{db: db, driver: driver, backoff: backoff, localLocks: newLocalLocks()}, nil
}

func dial(driver, dsn string) (*gorm.DB, error) {
	gcfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}

	switch driver {
	case "postgres":
		return gorm.Open(postgres.Open(dsn), gcfg)
	default:
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
		}
		return gorm.Open(sqlite.Open(dsn), gcfg)
	}
}

// IsPostgres reports whether the pool is backed by Postgres, i.e. whether
// advisory locks are available. SQLite mode is local/dev only; callers that
// need cross-process exclusion (trigger tracker, sync service) must check
// this and fall back to a process-local mutex, documented at each call site.
func (s *Store) IsPostgres() bool {
	return s.driver == "postgres"
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// retryTransient retries fn up to the pool's configured attempt count on
// errors that look like transient connection failures (closed connection,
// timeout, driver bad-conn). Validation and uniqueness-conflict errors must
// not be retried and are returned immediately.
func (s *Store) retryTransient(op string, fn func() error) error {
	delay := s.backoff.InitialDelay
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}
	attempts := s.backoff.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !isTransient(lastErr) {
			return lastErr
		}
		if attempt == attempts-1 {
			break
		}
		time.Sleep(delay)
		mult := s.backoff.Multiplier
		if mult <= 0 {
			mult = 2
		}
		delay = time.Duration(math.Min(float64(s.backoff.MaxDelay), float64(delay)*mult))
	}
	return pkgerr.TransientErr(op+" exhausted retries", lastErr)
}

func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if err == sql.ErrConnDone || err == sql.ErrTxDone {
		return true
	}
	msg := err.Error()
	for _, needle := range []string{"connection reset", "broken pipe", "EOF", "timeout", "connection refused", "bad connection"} {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}
