// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/realty-workflow/models"
	"gorm.io/gorm"
)

// InstitutionalSessionRepositoryImpl implements InstitutionalSessionRepository interface
type InstitutionalSessionRepositoryImpl struct {
	*BaseRepository[models.InstitutionalSession, models.InstitutionalSessionFilter]
}

// NewInstitutionalSessionRepository creates a new institutional session repository
func NewInstitutionalSessionRepository(db *gorm.DB) InstitutionalSessionRepository {
	return &InstitutionalSessionRepositoryImpl{
		BaseRepository: NewBaseRepository[models.InstitutionalSession, models.InstitutionalSessionFilter](db, applySessionFilter),
	}
}

func applySessionFilter(query *gorm.DB, filter models.InstitutionalSessionFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.InvestorID != nil {
		query = query.Where("investor_id = ?", *filter.InvestorID)
	}
	if filter.ExpiresBefore != nil {
		query = query.Where("expires_at < ?", *filter.ExpiresBefore)
	}
	if filter.ExpiresAfter != nil {
		query = query.Where("expires_at > ?", *filter.ExpiresAfter)
	}
	return query
}

// ByToken resolves a session together with its investor. Expired rows are returned as-is.
func (r *InstitutionalSessionRepositoryImpl) ByToken(ctx context.Context, token string) (*models.InstitutionalSession, error) {
	var session models.InstitutionalSession
	err := r.getDB(ctx).Preload("Investor").Where("session_token = ?", token).First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	return &session, nil
}

// DeleteByToken removes a session. Unknown tokens are not an error.
func (r *InstitutionalSessionRepositoryImpl) DeleteByToken(ctx context.Context, token string) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	if err = db.Where("session_token = ?", token).Delete(&models.InstitutionalSession{}).Error; err != nil {
		err = fmt.Errorf("failed to delete session: %w", err)
	}

	return finish(db, shouldCommit, err)
}
