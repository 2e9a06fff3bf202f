// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"

	"github.com/amirphl/realty-workflow/models"
	"gorm.io/gorm"
)

// ForeclosureSubscriptionRepositoryImpl implements ForeclosureSubscriptionRepository interface
type ForeclosureSubscriptionRepositoryImpl struct {
	*BaseRepository[models.ForeclosureSubscription, models.ForeclosureSubscriptionFilter]
}

// NewForeclosureSubscriptionRepository creates a new foreclosure subscription repository
func NewForeclosureSubscriptionRepository(db *gorm.DB) ForeclosureSubscriptionRepository {
	return &ForeclosureSubscriptionRepositoryImpl{
		BaseRepository: NewBaseRepository[models.ForeclosureSubscription, models.ForeclosureSubscriptionFilter](db, applySubscriptionFilter),
	}
}

func applySubscriptionFilter(query *gorm.DB, filter models.ForeclosureSubscriptionFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.LeadID != nil {
		query = query.Where("lead_id = ?", *filter.LeadID)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}
	return query
}

// UpdateFields applies a partial update and reports whether the subscription exists
func (r *ForeclosureSubscriptionRepositoryImpl) UpdateFields(ctx context.Context, id uint, updates map[string]any) (bool, error) {
	n, err := r.updateWhere(ctx, updates, "id = ?", id)
	return n > 0, err
}
