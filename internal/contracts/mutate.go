package contracts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/aldoetobex/rentify-backend/pkg/models"
)

// change describes one contract mutation. It is applied in a single
// transaction together with the version check.
type change struct {
	fields    map[string]any // column -> value
	history   []models.ContractHistory
	documents []models.ContractDocument
	schedule  []models.PaymentScheduleItem
	// replaceSchedule swaps the whole payment schedule for schedule.
	replaceSchedule bool
	// enqueue lists target statuses that need a PDF.
	enqueue []models.ContractStatus
}

func (ch *change) empty() bool {
	return len(ch.fields) == 0 && len(ch.history) == 0 && len(ch.documents) == 0 &&
		!ch.replaceSchedule && len(ch.enqueue) == 0
}

func (ch *change) set(column string, v any) {
	if ch.fields == nil {
		ch.fields = map[string]any{}
	}
	ch.fields[column] = v
}

func (ch *change) record(action string, by *uuid.UUID, notes string) {
	ch.history = append(ch.history, models.ContractHistory{Action: action, ByID: by, Notes: notes})
}

// applyFunc inspects the freshly loaded contract and returns the change to
// write. It may run more than once when the version check fails, so it must
// not have side effects outside tx.
type applyFunc func(tx *gorm.DB, c *models.Contract) (*change, error)

// mutate loads the contract, applies fn and writes the result with
// UPDATE ... WHERE id = ? AND version = ?. A lost race is retried with
// exponential backoff; when retries run out the caller gets ErrConflict.
func (s *Service) mutate(ctx context.Context, id uuid.UUID, fn applyFunc) (*models.Contract, error) {
	var written *change

	op := func() error {
		written = nil
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var c models.Contract
			if err := tx.First(&c, "id = ?", id).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return backoff.Permanent(fmt.Errorf("%w: contract not found", ErrNotFound))
				}
				return backoff.Permanent(fmt.Errorf("%w: load contract: %v", ErrInternal, err))
			}

			ch, err := fn(tx, &c)
			if err != nil {
				return backoff.Permanent(err)
			}
			if ch == nil || ch.empty() {
				return nil
			}
			if err := s.write(tx, &c, ch); err != nil {
				return err
			}
			written = ch
			return nil
		})
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.opts.RetryInterval
	b.MaxInterval = 20 * s.opts.RetryInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(b, s.opts.MaxRetries), ctx)

	notify := func(err error, wait time.Duration) {
		versionConflictsTotal.Inc()
		s.log.WithField("contract_id", id).WithError(err).Debugf("retrying contract update in %s", wait)
	}
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		if errors.Is(err, errVersionConflict) {
			return nil, fmt.Errorf("%w: contract was modified concurrently, please retry", ErrConflict)
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		if !isKind(err) {
			s.log.WithField("contract_id", id).WithError(err).Error("contract update failed")
			return nil, fmt.Errorf("%w: %v", ErrInternal, err)
		}
		return nil, err
	}

	if written != nil {
		for _, h := range written.history {
			actionsTotal.WithLabelValues(h.Action).Inc()
		}
		if len(written.enqueue) > 0 {
			s.notify()
		}
	}
	return s.load(ctx, id)
}

// write performs the conditional update and the dependent inserts.
func (s *Service) write(tx *gorm.DB, c *models.Contract, ch *change) error {
	now := s.now()

	updates := map[string]any{
		"version":    gorm.Expr("version + 1"),
		"updated_at": now,
	}
	for k, v := range ch.fields {
		updates[k] = v
	}
	res := tx.Model(&models.Contract{}).
		Where("id = ? AND version = ?", c.ID, c.Version).
		Updates(updates)
	if res.Error != nil {
		return backoff.Permanent(fmt.Errorf("%w: update contract: %v", ErrInternal, res.Error))
	}
	if res.RowsAffected == 0 {
		return errVersionConflict
	}

	if err := appendHistory(tx, c.ID, now, ch.history); err != nil {
		return backoff.Permanent(err)
	}

	if len(ch.documents) > 0 {
		for i := range ch.documents {
			ch.documents[i].ContractID = c.ID
			if ch.documents[i].UploadedAt.IsZero() {
				ch.documents[i].UploadedAt = now
			}
		}
		if err := tx.Create(&ch.documents).Error; err != nil {
			return backoff.Permanent(fmt.Errorf("%w: insert documents: %v", ErrInternal, err))
		}
	}

	if ch.replaceSchedule {
		if err := tx.Where("contract_id = ?", c.ID).Delete(&models.PaymentScheduleItem{}).Error; err != nil {
			return backoff.Permanent(fmt.Errorf("%w: clear schedule: %v", ErrInternal, err))
		}
		if len(ch.schedule) > 0 {
			for i := range ch.schedule {
				ch.schedule[i].ContractID = c.ID
			}
			if err := tx.Create(&ch.schedule).Error; err != nil {
				return backoff.Permanent(fmt.Errorf("%w: insert schedule: %v", ErrInternal, err))
			}
		}
	}

	for _, target := range ch.enqueue {
		if err := enqueuePDF(tx, c.ID, target, now); err != nil {
			return backoff.Permanent(err)
		}
	}
	return nil
}

// appendHistory numbers entries after the current highest seq of the contract.
func appendHistory(tx *gorm.DB, contractID uuid.UUID, at time.Time, entries []models.ContractHistory) error {
	if len(entries) == 0 {
		return nil
	}
	var last int
	if err := tx.Model(&models.ContractHistory{}).
		Where("contract_id = ?", contractID).
		Select("COALESCE(MAX(seq), 0)").
		Scan(&last).Error; err != nil {
		return fmt.Errorf("%w: read history: %v", ErrInternal, err)
	}
	for i := range entries {
		last++
		entries[i].ContractID = contractID
		entries[i].Seq = last
		if entries[i].At.IsZero() {
			entries[i].At = at
		}
	}
	if err := tx.Create(&entries).Error; err != nil {
		return fmt.Errorf("%w: append history: %v", ErrInternal, err)
	}
	return nil
}

// enqueuePDF creates the job for (contract, target) or resets an existing one.
func enqueuePDF(tx *gorm.DB, contractID uuid.UUID, target models.ContractStatus, now time.Time) error {
	job := models.PDFJob{
		ContractID:   contractID,
		TargetStatus: target,
		Status:       models.JobQueued,
		NextRunAt:    now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "contract_id"}, {Name: "target_status"}},
		DoUpdates: clause.Assignments(map[string]any{
			"status":      models.JobQueued,
			"attempts":    0,
			"last_error":  "",
			"next_run_at": now,
			"updated_at":  now,
		}),
	}).Create(&job).Error
	if err != nil {
		return fmt.Errorf("%w: enqueue pdf job: %v", ErrInternal, err)
	}
	return nil
}

func isKind(err error) bool {
	for _, m := range statusByKind {
		if errors.Is(err, m.kind) {
			return true
		}
	}
	return errors.Is(err, ErrInternal)
}
