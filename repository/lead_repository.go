// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/amirphl/realty-workflow/models"
	"github.com/amirphl/realty-workflow/utils"
	"gorm.io/gorm"
)

// LeadRepositoryImpl implements LeadRepository interface
type LeadRepositoryImpl struct {
	*BaseRepository[models.Lead, models.LeadFilter]
}

// NewLeadRepository creates a new lead repository
func NewLeadRepository(db *gorm.DB) LeadRepository {
	return &LeadRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Lead, models.LeadFilter](db, applyLeadFilter),
	}
}

func applyLeadFilter(query *gorm.DB, filter models.LeadFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.Type != nil {
		query = query.Where("type = ?", *filter.Type)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Email != nil {
		query = query.Where("email = ?", *filter.Email)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at > ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}
	return query
}

// ByUUID retrieves a lead by UUID
func (r *LeadRepositoryImpl) ByUUID(ctx context.Context, uuid string) (*models.Lead, error) {
	parsedUUID, err := utils.ParseUUID(uuid)
	if err != nil {
		return nil, err
	}

	leads, err := r.ByFilter(ctx, models.LeadFilter{UUID: &parsedUUID}, "", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(leads) == 0 {
		return nil, nil
	}
	return leads[0], nil
}

// UpdateStatus sets the pipeline status of a lead
func (r *LeadRepositoryImpl) UpdateStatus(ctx context.Context, id uint, status string) (bool, error) {
	n, err := r.updateWhere(ctx, map[string]any{"status": status}, "id = ?", id)
	return n > 0, err
}

// VerificationTargetByID loads the verification view of a lead
func (r *LeadRepositoryImpl) VerificationTargetByID(ctx context.Context, id uint) (*models.VerificationTarget, error) {
	lead, err := r.ByID(ctx, id)
	if err != nil || lead == nil {
		return nil, err
	}
	return lead.VerificationTarget(), nil
}

// VerificationTargetByEmailToken finds the lead holding an outstanding email token
func (r *LeadRepositoryImpl) VerificationTargetByEmailToken(ctx context.Context, token string) (*models.VerificationTarget, error) {
	lead, err := r.findOne(ctx, "email_verification_token = ?", token)
	if err != nil || lead == nil {
		return nil, err
	}
	return lead.VerificationTarget(), nil
}

// IssueVerification stores a new token or code for the given channel
func (r *LeadRepositoryImpl) IssueVerification(ctx context.Context, id uint, kind, secret string, sentAt time.Time) (bool, error) {
	return r.issueVerification(ctx, id, kind, secret, sentAt)
}

// ConfirmVerification marks the channel verified if the secret still matches
func (r *LeadRepositoryImpl) ConfirmVerification(ctx context.Context, id uint, kind, secret string, verifiedAt time.Time) (bool, error) {
	return r.confirmVerification(ctx, id, kind, secret, verifiedAt)
}
