// Package models contains domain entities and business models for the marketplace workflow
package models

import (
	"time"

	"github.com/google/uuid"
)

// InstitutionalInvestor is created pending with no credentials. Username and password
// hash are only set by approval.
type InstitutionalInvestor struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	UUID             uuid.UUID `gorm:"type:varchar(36);not null;uniqueIndex:uk_investors_uuid" json:"uuid"`
	LeadID           *uint     `gorm:"index:idx_investors_lead_id" json:"lead_id,omitempty"`
	Lead             *Lead     `gorm:"foreignKey:LeadID;references:ID" json:"-"`
	PersonName       string    `gorm:"size:255;not null" json:"person_name"`
	InstitutionName  string    `gorm:"size:255;not null" json:"institution_name"`
	JobTitle         string    `gorm:"size:255;not null" json:"job_title"`
	Email            string    `gorm:"size:255;not null;uniqueIndex:uk_investors_email" json:"email"`
	WorkPhone        string    `gorm:"size:50;not null" json:"work_phone"`
	PersonalPhone    string    `gorm:"size:50;not null" json:"personal_phone"`
	BusinessCardName *string   `gorm:"size:255" json:"business_card_name,omitempty"`

	Status          string     `gorm:"size:32;not null;default:pending;index:idx_investors_status" json:"status"`
	IsActive        *bool      `gorm:"not null;default:false" json:"is_active"`
	Username        *string    `gorm:"size:255;uniqueIndex:uk_investors_username" json:"username,omitempty"`
	PasswordHash    *string    `gorm:"size:255" json:"-"`
	ApprovedAt      *time.Time `json:"approved_at,omitempty"`
	ApprovedBy      *string    `gorm:"size:255" json:"approved_by,omitempty"`
	RejectedAt      *time.Time `json:"rejected_at,omitempty"`
	RejectedBy      *string    `gorm:"size:255" json:"rejected_by,omitempty"`
	RejectionReason *string    `gorm:"type:text" json:"rejection_reason,omitempty"`
	LastLoginAt     *time.Time `json:"last_login_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (InstitutionalInvestor) TableName() string {
	return "institutional_investors"
}

// IsActiveAndApproved reports whether the investor may hold a session
func (i *InstitutionalInvestor) IsActiveAndApproved() bool {
	return i.Status == ApprovalStatusApproved && i.IsActive != nil && *i.IsActive
}

// InstitutionalInvestorFilter represents filter criteria for investor queries
type InstitutionalInvestorFilter struct {
	ID       *uint
	UUID     *uuid.UUID
	Username *string
	Email    *string
	Status   *string
	IsActive *bool
	LeadID   *uint
}
