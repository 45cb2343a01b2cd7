package storage

import "time"

// SyncRunRepository is the audit log of Sync Service iterations, used both
// for observability and to detect a run that started but never finished
// (crash mid-cycle).
type SyncRunRepository struct {
	store *Store
}

func NewSyncRunRepository(s *Store) *SyncRunRepository {
	return &SyncRunRepository{store: s}
}

func (r *SyncRunRepository) Start(scope string) (*SyncRun, error) {
	run := &SyncRun{Scope: scope, Status: SyncRunning, StartedAt: time.Now().UTC()}
	err := r.store.retryTransient("start_sync_run", func() error {
		return r.store.db.Create(run).Error
	})
	if err != nil {
		return nil, err
	}
	return run, nil
}

func (r *SyncRunRepository) Finish(id uint, status SyncRunStatus, recordCount int, syncErr error) error {
	now := time.Now().UTC()
	errMsg := ""
	if syncErr != nil {
		errMsg = syncErr.Error()
	}
	return r.store.retryTransient("finish_sync_run", func() error {
		var run SyncRun
		if err := r.store.db.First(&run, id).Error; err != nil {
			return err
		}
		durationMs := now.Sub(run.StartedAt).Milliseconds()
		return r.store.db.Model(&SyncRun{}).Where("id = ?", id).Updates(map[string]interface{}{
			"status":       status,
			"finished_at":  &now,
			"duration_ms":  durationMs,
			"record_count": recordCount,
			"error":        errMsg,
		}).Error
	})
}

// RecordSkipped inserts a finished "skipped" row for a run that never
// started because another replica already held the scope's advisory lock.
func (r *SyncRunRepository) RecordSkipped(scope string) error {
	now := time.Now().UTC()
	run := &SyncRun{Scope: scope, Status: SyncSkipped, StartedAt: now, FinishedAt: &now}
	return r.store.retryTransient("record_sync_skipped", func() error {
		return r.store.db.Create(run).Error
	})
}

// LastFor returns the most recent run for a scope, if any.
func (r *SyncRunRepository) LastFor(scope string) (*SyncRun, error) {
	var run SyncRun
	err := r.store.retryTransient("last_sync_run", func() error {
		return r.store.db.Where("scope = ?", scope).Order("started_at DESC").First(&run).Error
	})
	if err != nil {
		return nil, err
	}
	return &run, nil
}
