// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/amirphl/realty-workflow/models"
	"gorm.io/gorm"
)

// InstitutionalInvestorRepositoryImpl implements InstitutionalInvestorRepository interface
type InstitutionalInvestorRepositoryImpl struct {
	*BaseRepository[models.InstitutionalInvestor, models.InstitutionalInvestorFilter]
}

// NewInstitutionalInvestorRepository creates a new institutional investor repository
func NewInstitutionalInvestorRepository(db *gorm.DB) InstitutionalInvestorRepository {
	return &InstitutionalInvestorRepositoryImpl{
		BaseRepository: NewBaseRepository[models.InstitutionalInvestor, models.InstitutionalInvestorFilter](db, applyInvestorFilter),
	}
}

func applyInvestorFilter(query *gorm.DB, filter models.InstitutionalInvestorFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.Username != nil {
		query = query.Where("username = ?", *filter.Username)
	}
	if filter.Email != nil {
		query = query.Where("email = ?", *filter.Email)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}
	if filter.LeadID != nil {
		query = query.Where("lead_id = ?", *filter.LeadID)
	}
	return query
}

// ByUsername retrieves an investor by username
func (r *InstitutionalInvestorRepositoryImpl) ByUsername(ctx context.Context, username string) (*models.InstitutionalInvestor, error) {
	return r.findOne(ctx, "username = ?", username)
}

// ByEmail retrieves an investor by email
func (r *InstitutionalInvestorRepositoryImpl) ByEmail(ctx context.Context, email string) (*models.InstitutionalInvestor, error) {
	return r.findOne(ctx, "email = ?", email)
}

// Approve issues credentials to a pending investor and activates it.
// It reports false when the investor is missing or no longer pending.
func (r *InstitutionalInvestorRepositoryImpl) Approve(ctx context.Context, id uint, username, passwordHash, approvedBy string, at time.Time) (bool, error) {
	n, err := r.updateWhere(ctx, map[string]any{
		"status":        models.ApprovalStatusApproved,
		"is_active":     true,
		"username":      username,
		"password_hash": passwordHash,
		"approved_at":   at,
		"approved_by":   approvedBy,
	}, "id = ? AND status = ?", id, models.ApprovalStatusPending)
	return n > 0, err
}

// Reject closes a pending application without issuing credentials
func (r *InstitutionalInvestorRepositoryImpl) Reject(ctx context.Context, id uint, reason, rejectedBy string, at time.Time) (bool, error) {
	n, err := r.updateWhere(ctx, map[string]any{
		"status":           models.ApprovalStatusRejected,
		"is_active":        false,
		"rejected_at":      at,
		"rejection_reason": reason,
		"rejected_by":      rejectedBy,
	}, "id = ? AND status = ?", id, models.ApprovalStatusPending)
	return n > 0, err
}

// TouchLastLogin stamps the last successful login
func (r *InstitutionalInvestorRepositoryImpl) TouchLastLogin(ctx context.Context, id uint, at time.Time) error {
	_, err := r.updateWhere(ctx, map[string]any{"last_login_at": at}, "id = ?", id)
	return err
}
