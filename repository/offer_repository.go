// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"

	"github.com/amirphl/realty-workflow/models"
	"gorm.io/gorm"
)

// OfferRepositoryImpl implements OfferRepository interface
type OfferRepositoryImpl struct {
	*BaseRepository[models.Offer, models.OfferFilter]
}

// NewOfferRepository creates a new offer repository
func NewOfferRepository(db *gorm.DB) OfferRepository {
	return &OfferRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Offer, models.OfferFilter](db, applyOfferFilter),
	}
}

func applyOfferFilter(query *gorm.DB, filter models.OfferFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.BuyerLeadID != nil {
		query = query.Where("buyer_lead_id = ?", *filter.BuyerLeadID)
	}
	if filter.PropertyID != nil {
		query = query.Where("property_id = ?", *filter.PropertyID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	return query
}

// UpdateFields applies a partial update and reports whether the offer exists
func (r *OfferRepositoryImpl) UpdateFields(ctx context.Context, id uint, updates map[string]any) (bool, error) {
	n, err := r.updateWhere(ctx, updates, "id = ?", id)
	return n > 0, err
}
