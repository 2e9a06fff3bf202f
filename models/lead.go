// Package models contains domain entities and business models for the marketplace workflow
package models

import (
	"time"

	"github.com/google/uuid"
)

// Lead types
const (
	LeadTypeSeller                = "seller"
	LeadTypeBuyer                 = "buyer"
	LeadTypePropertySubmission    = "property_submission"
	LeadTypeInstitutionalInvestor = "institutional_investor"
)

// Lead statuses
const (
	LeadStatusNew       = "new"
	LeadStatusContacted = "contacted"
	LeadStatusQualified = "qualified"
	LeadStatusConverted = "converted"
	LeadStatusClosed    = "closed"
)

// Lead sources
const (
	LeadSourceWebsiteForm = "website_form"
	LeadSourceManualEntry = "manual_entry"
)

type Lead struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	UUID            uuid.UUID  `gorm:"type:varchar(36);not null;uniqueIndex:uk_leads_uuid" json:"uuid"`
	Type            string     `gorm:"size:32;not null;index:idx_leads_type" json:"type"`
	Name            string     `gorm:"size:255;not null" json:"name"`
	Email           string     `gorm:"size:255;not null;index:idx_leads_email" json:"email"`
	Phone           string     `gorm:"size:50;not null" json:"phone"`
	Source          string     `gorm:"size:32;not null;default:website_form" json:"source"`
	Status          string     `gorm:"size:32;not null;default:new;index:idx_leads_status" json:"status"`
	Motivation      *string    `gorm:"type:text" json:"motivation,omitempty"`
	Timeline        *string    `gorm:"size:100" json:"timeline,omitempty"`
	Budget          *string    `gorm:"size:100" json:"budget,omitempty"`
	PreferredAreas  StringList `gorm:"type:text" json:"preferred_areas,omitempty"`
	ExperienceLevel *string    `gorm:"size:50" json:"experience_level,omitempty"`
	PropertyAddress *string    `gorm:"size:500" json:"property_address,omitempty"`
	Notes           *string    `gorm:"type:text" json:"notes,omitempty"`

	VerificationState `gorm:"embedded"`

	CreatedAt time.Time `gorm:"index:idx_leads_created_at" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Lead) TableName() string {
	return "leads"
}

// LeadFilter represents filter criteria for lead queries
type LeadFilter struct {
	ID            *uint
	UUID          *uuid.UUID
	Type          *string
	Status        *string
	Email         *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

// IsValidLeadStatus reports whether s is a known lead status
func IsValidLeadStatus(s string) bool {
	switch s {
	case LeadStatusNew, LeadStatusContacted, LeadStatusQualified, LeadStatusConverted, LeadStatusClosed:
		return true
	}
	return false
}
