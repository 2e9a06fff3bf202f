// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"

	"github.com/amirphl/realty-workflow/models"
	"gorm.io/gorm"
)

// InstitutionalBidRepositoryImpl implements InstitutionalBidRepository interface
type InstitutionalBidRepositoryImpl struct {
	*BaseRepository[models.InstitutionalBid, models.InstitutionalBidFilter]
}

// NewInstitutionalBidRepository creates a new institutional bid repository
func NewInstitutionalBidRepository(db *gorm.DB) InstitutionalBidRepository {
	return &InstitutionalBidRepositoryImpl{
		BaseRepository: NewBaseRepository[models.InstitutionalBid, models.InstitutionalBidFilter](db, applyInstitutionalBidFilter),
	}
}

func applyInstitutionalBidFilter(query *gorm.DB, filter models.InstitutionalBidFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.InvestorID != nil {
		query = query.Where("investor_id = ?", *filter.InvestorID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	return query
}

// ListByInvestor returns an investor's bids, soonest auction first
func (r *InstitutionalBidRepositoryImpl) ListByInvestor(ctx context.Context, investorID uint) ([]*models.InstitutionalBid, error) {
	return r.ByFilter(ctx, models.InstitutionalBidFilter{InvestorID: &investorID}, "auction_date ASC, id ASC", 0, 0)
}
