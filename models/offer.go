// Package models contains domain entities and business models for the marketplace workflow
package models

import (
	"time"

	"github.com/google/uuid"
)

// Offer statuses
const (
	OfferStatusPending   = "pending"
	OfferStatusAccepted  = "accepted"
	OfferStatusRejected  = "rejected"
	OfferStatusCountered = "countered"
	OfferStatusWithdrawn = "withdrawn"
)

type Offer struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	UUID            uuid.UUID `gorm:"type:varchar(36);not null;uniqueIndex:uk_offers_uuid" json:"uuid"`
	PropertyID      string    `gorm:"size:64;not null;index:idx_offers_property_id" json:"property_id"`
	BuyerLeadID     uint      `gorm:"not null;index:idx_offers_buyer_lead_id" json:"buyer_lead_id"`
	BuyerLead       *Lead     `gorm:"foreignKey:BuyerLeadID;references:ID" json:"-"`
	OfferAmount     string    `gorm:"size:32;not null" json:"offer_amount"`
	CounterAmount   *string   `gorm:"size:32" json:"counter_amount,omitempty"`
	Terms           *string   `gorm:"type:text" json:"terms,omitempty"`
	Status          string    `gorm:"size:32;not null;default:pending;index:idx_offers_status" json:"status"`
	ClosingDate     *string   `gorm:"size:32" json:"closing_date,omitempty"`
	DownPayment     *string   `gorm:"size:32" json:"down_payment,omitempty"`
	FinancingType   *string   `gorm:"size:32" json:"financing_type,omitempty"`
	Contingencies   *string   `gorm:"type:text" json:"contingencies,omitempty"`
	AdditionalTerms *string   `gorm:"type:text" json:"additional_terms,omitempty"`
	OfferLetterURL  *string   `gorm:"size:1024" json:"offer_letter_url,omitempty"`
	ProofOfFundsURL *string   `gorm:"size:1024" json:"proof_of_funds_url,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Offer) TableName() string {
	return "offers"
}

// IsValidOfferStatus reports whether s is a known offer status
func IsValidOfferStatus(s string) bool {
	switch s {
	case OfferStatusPending, OfferStatusAccepted, OfferStatusRejected, OfferStatusCountered, OfferStatusWithdrawn:
		return true
	}
	return false
}

// OfferFilter represents filter criteria for offer queries
type OfferFilter struct {
	ID          *uint
	UUID        *uuid.UUID
	BuyerLeadID *uint
	PropertyID  *string
	Status      *string
}
