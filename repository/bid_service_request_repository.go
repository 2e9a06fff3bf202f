// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"

	"github.com/amirphl/realty-workflow/models"
	"gorm.io/gorm"
)

// BidServiceRequestRepositoryImpl implements BidServiceRequestRepository interface
type BidServiceRequestRepositoryImpl struct {
	*BaseRepository[models.BidServiceRequest, models.BidServiceRequestFilter]
}

// NewBidServiceRequestRepository creates a new bid service request repository
func NewBidServiceRequestRepository(db *gorm.DB) BidServiceRequestRepository {
	return &BidServiceRequestRepositoryImpl{
		BaseRepository: NewBaseRepository[models.BidServiceRequest, models.BidServiceRequestFilter](db, applyBidServiceRequestFilter),
	}
}

func applyBidServiceRequestFilter(query *gorm.DB, filter models.BidServiceRequestFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.LeadID != nil {
		query = query.Where("lead_id = ?", *filter.LeadID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	return query
}

// UpdateFields applies a partial update and reports whether the request exists
func (r *BidServiceRequestRepositoryImpl) UpdateFields(ctx context.Context, id uint, updates map[string]any) (bool, error) {
	n, err := r.updateWhere(ctx, updates, "id = ?", id)
	return n > 0, err
}
