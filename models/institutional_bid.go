// Package models contains domain entities and business models for the marketplace workflow
package models

import (
	"time"

	"github.com/google/uuid"
)

// Institutional bid statuses
const (
	InstitutionalBidStatusSubmitted = "submitted"
	InstitutionalBidStatusPending   = "pending"
	InstitutionalBidStatusWon       = "won"
	InstitutionalBidStatusLost      = "lost"
)

// InstitutionalBid tracks a bid an approved investor placed at a foreclosure auction
type InstitutionalBid struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	UUID            uuid.UUID `gorm:"type:varchar(36);not null;uniqueIndex:uk_institutional_bids_uuid" json:"uuid"`
	InvestorID      uint      `gorm:"not null;index:idx_institutional_bids_investor_id" json:"investor_id"`
	PropertyID      *string   `gorm:"size:64" json:"property_id,omitempty"`
	PropertyAddress string    `gorm:"size:500;not null" json:"property_address"`
	BidAmount       string    `gorm:"size:32;not null" json:"bid_amount"`
	AuctionDate     time.Time `gorm:"not null" json:"auction_date"`
	Status          string    `gorm:"size:32;not null;default:submitted" json:"status"`
	Notes           *string   `gorm:"type:text" json:"notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (InstitutionalBid) TableName() string {
	return "institutional_bids"
}

// InstitutionalBidFilter represents filter criteria for institutional bid queries
type InstitutionalBidFilter struct {
	ID         *uint
	InvestorID *uint
	Status     *string
}
