// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/amirphl/realty-workflow/models"
	"gorm.io/gorm"
)

// PartnerRepositoryImpl implements PartnerRepository interface
type PartnerRepositoryImpl struct {
	*BaseRepository[models.Partner, models.PartnerFilter]
}

// NewPartnerRepository creates a new partner repository
func NewPartnerRepository(db *gorm.DB) PartnerRepository {
	return &PartnerRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Partner, models.PartnerFilter](db, applyPartnerFilter),
	}
}

func applyPartnerFilter(query *gorm.DB, filter models.PartnerFilter) *gorm.DB {
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
	if filter.ApprovalStatus != nil {
		query = query.Where("approval_status = ?", *filter.ApprovalStatus)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at > ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}
	return query
}

// ByUsername retrieves a partner by username
func (r *PartnerRepositoryImpl) ByUsername(ctx context.Context, username string) (*models.Partner, error) {
	return r.findOne(ctx, "username = ?", username)
}

// ByEmail retrieves a partner by email
func (r *PartnerRepositoryImpl) ByEmail(ctx context.Context, email string) (*models.Partner, error) {
	return r.findOne(ctx, "email = ?", email)
}

// Approve moves a pending partner to approved. It reports false when the partner is missing or not pending.
func (r *PartnerRepositoryImpl) Approve(ctx context.Context, id uint, approvedBy string, at time.Time) (bool, error) {
	n, err := r.updateWhere(ctx, map[string]any{
		"approval_status": models.ApprovalStatusApproved,
		"approved_at":     at,
		"approved_by":     approvedBy,
	}, "id = ? AND approval_status = ?", id, models.ApprovalStatusPending)
	return n > 0, err
}

// Reject moves a pending partner to rejected. It reports false when the partner is missing or not pending.
func (r *PartnerRepositoryImpl) Reject(ctx context.Context, id uint, reason, rejectedBy string, at time.Time) (bool, error) {
	n, err := r.updateWhere(ctx, map[string]any{
		"approval_status":  models.ApprovalStatusRejected,
		"rejected_at":      at,
		"rejection_reason": reason,
		"rejected_by":      rejectedBy,
	}, "id = ? AND approval_status = ?", id, models.ApprovalStatusPending)
	return n > 0, err
}

// TouchLastLogin stamps the last successful login
func (r *PartnerRepositoryImpl) TouchLastLogin(ctx context.Context, id uint, at time.Time) error {
	_, err := r.updateWhere(ctx, map[string]any{"last_login_at": at}, "id = ?", id)
	return err
}

// VerificationTargetByID loads the verification view of a partner
func (r *PartnerRepositoryImpl) VerificationTargetByID(ctx context.Context, id uint) (*models.VerificationTarget, error) {
	partner, err := r.ByID(ctx, id)
	if err != nil || partner == nil {
		return nil, err
	}
	return partner.VerificationTarget(), nil
}

// VerificationTargetByEmailToken finds the partner holding an outstanding email token
func (r *PartnerRepositoryImpl) VerificationTargetByEmailToken(ctx context.Context, token string) (*models.VerificationTarget, error) {
	partner, err := r.findOne(ctx, "email_verification_token = ?", token)
	if err != nil || partner == nil {
		return nil, err
	}
	return partner.VerificationTarget(), nil
}

// IssueVerification stores a new token or code for the given channel
func (r *PartnerRepositoryImpl) IssueVerification(ctx context.Context, id uint, kind, secret string, sentAt time.Time) (bool, error) {
	return r.issueVerification(ctx, id, kind, secret, sentAt)
}

// ConfirmVerification marks the channel verified if the secret still matches
func (r *PartnerRepositoryImpl) ConfirmVerification(ctx context.Context, id uint, kind, secret string, verifiedAt time.Time) (bool, error) {
	return r.confirmVerification(ctx, id, kind, secret, verifiedAt)
}
