// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"fmt"

	"github.com/amirphl/realty-workflow/models"
	"gorm.io/gorm"
)

// Models lists every persisted entity in dependency order
func Models() []any {
	return []any{
		&models.Admin{},
		&models.Lead{},
		&models.Partner{},
		&models.User{},
		&models.InstitutionalInvestor{},
		&models.InstitutionalSession{},
		&models.InstitutionalBid{},
		&models.Communication{},
		&models.Offer{},
		&models.BidServiceRequest{},
		&models.ForeclosureSubscription{},
		&models.AuditLog{},
	}
}

// AutoMigrate creates or updates the schema for all entities
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}
