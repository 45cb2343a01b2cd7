package storage

import "time"

// CandidateRepository manages the strategy-evaluation queue: triggers
// recorded by TriggerRepository become Candidates here, which strategy
// evaluation then approves, rejects, or (once executed) marks Executed.
type CandidateRepository struct {
	store *Store
}

func NewCandidateRepository(s *Store) *CandidateRepository {
	return &CandidateRepository{store: s}
}

func (r *CandidateRepository) Create(c *Candidate) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	c.UpdatedAt = time.Now().UTC()
	if c.Status == "" {
		c.Status = CandidatePending
	}
	return r.store.retryTransient("create_candidate", func() error {
		return r.store.db.Create(c).Error
	})
}

// Pending returns candidates awaiting strategy evaluation, oldest first.
func (r *CandidateRepository) Pending(limit int) ([]Candidate, error) {
	var out []Candidate
	err := r.store.retryTransient("pending_candidates", func() error {
		return r.store.db.
			Where("status = ?", CandidatePending).
			Order("created_at ASC").
			Limit(limit).
			Find(&out).Error
	})
	return out, err
}

// UpdateStatus transitions a candidate, enforcing the pending -> {approved,
// rejected} -> executed state machine by constraining the WHERE clause to
// the expected prior status rather than trusting the caller's read.
func (r *CandidateRepository) UpdateStatus(id uint, from, to CandidateStatus) (bool, error) {
	var ok bool
	err := r.store.retryTransient("update_candidate_status", func() error {
		res := r.store.db.Model(&Candidate{}).
			Where("id = ? AND status = ?", id, from).
			Updates(map[string]interface{}{"status": to, "updated_at": time.Now().UTC()})
		if res.Error != nil {
			return res.Error
		}
		ok = res.RowsAffected > 0
		return nil
	})
	return ok, err
}

func (r *CandidateRepository) GetByID(id uint) (*Candidate, error) {
	var c Candidate
	err := r.store.retryTransient("get_candidate", func() error {
		return r.store.db.First(&c, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}
