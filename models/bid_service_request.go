// Package models contains domain entities and business models for the marketplace workflow
package models

import (
	"time"

	"github.com/google/uuid"
)

// Bid service request statuses
const (
	BidServiceStatusPending    = "pending"
	BidServiceStatusInProgress = "in_progress"
	BidServiceStatusCompleted  = "completed"
	BidServiceStatusCancelled  = "cancelled"
)

// BidServiceRequest asks the operator to bid on a foreclosure auction on the lead's behalf
type BidServiceRequest struct {
	ID                     uint      `gorm:"primaryKey" json:"id"`
	UUID                   uuid.UUID `gorm:"type:varchar(36);not null;uniqueIndex:uk_bid_service_requests_uuid" json:"uuid"`
	LeadID                 uint      `gorm:"not null;index:idx_bid_service_requests_lead_id" json:"lead_id"`
	Lead                   *Lead     `gorm:"foreignKey:LeadID;references:ID" json:"-"`
	ForeclosureListingID   *string   `gorm:"size:64" json:"foreclosure_listing_id,omitempty"`
	Name                   string    `gorm:"size:255;not null" json:"name"`
	Email                  string    `gorm:"size:255;not null" json:"email"`
	Phone                  string    `gorm:"size:50;not null" json:"phone"`
	InvestmentBudget       *string   `gorm:"size:100" json:"investment_budget,omitempty"`
	MaxBidAmount           *string   `gorm:"size:100" json:"max_bid_amount,omitempty"`
	InvestmentExperience   *string   `gorm:"size:50" json:"investment_experience,omitempty"`
	PreferredContactMethod *string   `gorm:"size:50" json:"preferred_contact_method,omitempty"`
	Timeframe              *string   `gorm:"size:100" json:"timeframe,omitempty"`
	AdditionalRequirements *string   `gorm:"type:text" json:"additional_requirements,omitempty"`
	Status                 string    `gorm:"size:32;not null;default:pending" json:"status"`
	AssignedTo             *string   `gorm:"size:255" json:"assigned_to,omitempty"`
	Notes                  *string   `gorm:"type:text" json:"notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (BidServiceRequest) TableName() string {
	return "bid_service_requests"
}

// IsValidBidServiceStatus reports whether s is a known bid service status
func IsValidBidServiceStatus(s string) bool {
	switch s {
	case BidServiceStatusPending, BidServiceStatusInProgress, BidServiceStatusCompleted, BidServiceStatusCancelled:
		return true
	}
	return false
}

// BidServiceRequestFilter represents filter criteria for bid service request queries
type BidServiceRequestFilter struct {
	ID     *uint
	LeadID *uint
	Status *string
}
