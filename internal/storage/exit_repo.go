package storage

import "time"

// ExitRepository persists the audit trail of position closes.
type ExitRepository struct {
	store *Store
}

func NewExitRepository(s *Store) *ExitRepository {
	return &ExitRepository{store: s}
}

func (r *ExitRepository) Create(e *ExitEvent) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.Status == "" {
		e.Status = ExitPending
	}
	return r.store.retryTransient("create_exit_event", func() error {
		return r.store.db.Create(e).Error
	})
}

func (r *ExitRepository) MarkExecuted(id uint) error {
	return r.store.retryTransient("mark_exit_executed", func() error {
		return r.store.db.Model(&ExitEvent{}).Where("id = ?", id).
			Update("status", ExitExecuted).Error
	})
}

func (r *ExitRepository) ByPosition(positionID string) ([]ExitEvent, error) {
	var out []ExitEvent
	err := r.store.retryTransient("exit_events_by_position", func() error {
		return r.store.db.Where("position_id = ?", positionID).Order("created_at ASC").Find(&out).Error
	})
	return out, err
}
