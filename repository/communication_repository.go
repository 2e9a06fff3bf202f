// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/amirphl/realty-workflow/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OutboxChannel is the postgres NOTIFY channel raised when a queued communication is inserted
const OutboxChannel = "outbox_new"

// CommunicationRepositoryImpl implements CommunicationRepository interface
type CommunicationRepositoryImpl struct {
	*BaseRepository[models.Communication, models.CommunicationFilter]
}

// NewCommunicationRepository creates a new communication repository
func NewCommunicationRepository(db *gorm.DB) CommunicationRepository {
	return &CommunicationRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Communication, models.CommunicationFilter](db, applyCommunicationFilter),
	}
}

func applyCommunicationFilter(query *gorm.DB, filter models.CommunicationFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.LeadID != nil {
		query = query.Where("lead_id = ?", *filter.LeadID)
	}
	if filter.PartnerID != nil {
		query = query.Where("partner_id = ?", *filter.PartnerID)
	}
	if filter.InvestorID != nil {
		query = query.Where("investor_id = ?", *filter.InvestorID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Direction != nil {
		query = query.Where("direction = ?", *filter.Direction)
	}
	if filter.DueBefore != nil {
		query = query.Where("next_attempt_at <= ?", *filter.DueBefore)
	}
	return query
}

// Save inserts a communication and wakes outbox listeners when it is queued
func (r *CommunicationRepositoryImpl) Save(ctx context.Context, entity *models.Communication) error {
	if err := r.BaseRepository.Save(ctx, entity); err != nil {
		return err
	}
	if entity.Status == models.CommunicationStatusQueued {
		r.notifyOutbox(ctx)
	}
	return nil
}

// SaveBatch inserts communications and wakes outbox listeners once
func (r *CommunicationRepositoryImpl) SaveBatch(ctx context.Context, entities []*models.Communication) error {
	if err := r.BaseRepository.SaveBatch(ctx, entities); err != nil {
		return err
	}
	for _, c := range entities {
		if c.Status == models.CommunicationStatusQueued {
			r.notifyOutbox(ctx)
			break
		}
	}
	return nil
}

// notifyOutbox raises pg_notify on postgres. Inside a transaction the notification is delivered on commit.
// Other drivers rely on the dispatcher's poll interval.
func (r *CommunicationRepositoryImpl) notifyOutbox(ctx context.Context) {
	db := r.getDB(ctx)
	if db.Dialector.Name() != "postgres" {
		return
	}
	// best effort; the poll loop picks the row up regardless
	_ = db.Exec("SELECT pg_notify(?, '')", OutboxChannel).Error
}

// ListByLead returns every communication tied to a lead, newest first
func (r *CommunicationRepositoryImpl) ListByLead(ctx context.Context, leadID uint) ([]*models.Communication, error) {
	return r.ByFilter(ctx, models.CommunicationFilter{LeadID: &leadID}, "created_at DESC, id DESC", 0, 0)
}

// ClaimDue leases up to limit queued rows whose next attempt is due.
// Claimed rows get next_attempt_at pushed by lease so concurrent dispatchers skip them.
func (r *CommunicationRepositoryImpl) ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]*models.Communication, error) {
	var claimed []*models.Communication

	err := WithTransaction(ctx, r.DB, func(txCtx context.Context) error {
		tx := r.getDB(txCtx)

		query := tx
		if tx.Dialector.Name() != "sqlite" {
			query = query.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}
		err := query.
			Where("status = ? AND next_attempt_at <= ?", models.CommunicationStatusQueued, now).
			Order("next_attempt_at ASC, id ASC").
			Limit(limit).
			Find(&claimed).Error
		if err != nil {
			return fmt.Errorf("failed to select due communications: %w", err)
		}
		if len(claimed) == 0 {
			return nil
		}

		ids := make([]uint, 0, len(claimed))
		for _, c := range claimed {
			ids = append(ids, c.ID)
		}

		err = tx.Model(&models.Communication{}).
			Where("id IN ?", ids).
			Update("next_attempt_at", now.Add(lease)).Error
		if err != nil {
			return fmt.Errorf("failed to lease due communications: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return claimed, nil
}

// MarkSent records a successful delivery
func (r *CommunicationRepositoryImpl) MarkSent(ctx context.Context, id uint, at time.Time) error {
	_, err := r.updateWhere(ctx, map[string]any{
		"status":          models.CommunicationStatusSent,
		"sent_at":         at,
		"next_attempt_at": nil,
		"last_error":      nil,
	}, "id = ?", id)
	return err
}

// MarkAttemptFailed records a failed delivery attempt. Exhausted rows become failed and leave the queue.
func (r *CommunicationRepositoryImpl) MarkAttemptFailed(ctx context.Context, id uint, attempts int, lastErr string, nextAttemptAt *time.Time, exhausted bool) error {
	updates := map[string]any{
		"attempts":        attempts,
		"last_error":      lastErr,
		"next_attempt_at": nextAttemptAt,
	}
	if exhausted {
		updates["status"] = models.CommunicationStatusFailed
		updates["next_attempt_at"] = nil
	}
	_, err := r.updateWhere(ctx, updates, "id = ?", id)
	return err
}

// UpdateFields applies an admin edit to a communication
func (r *CommunicationRepositoryImpl) UpdateFields(ctx context.Context, id uint, updates map[string]any) (bool, error) {
	n, err := r.updateWhere(ctx, updates, "id = ?", id)
	return n > 0, err
}
