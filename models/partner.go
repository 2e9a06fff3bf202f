// Package models contains domain entities and business models for the marketplace workflow
package models

import (
	"time"

	"github.com/google/uuid"
)

// Approval statuses shared by partners and institutional investors
const (
	ApprovalStatusPending  = "pending"
	ApprovalStatusApproved = "approved"
	ApprovalStatusRejected = "rejected"
)

// Partner is a property-posting business account. It chooses its credentials at
// registration and can only log in once approved and verified on both channels.
type Partner struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UUID         uuid.UUID `gorm:"type:varchar(36);not null;uniqueIndex:uk_partners_uuid" json:"uuid"`
	Username     string    `gorm:"size:255;not null;uniqueIndex:uk_partners_username" json:"username"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	Email        string    `gorm:"size:255;not null;uniqueIndex:uk_partners_email" json:"email"`
	FirstName    string    `gorm:"size:255;not null" json:"first_name"`
	LastName     string    `gorm:"size:255;not null" json:"last_name"`
	Company      *string   `gorm:"size:255" json:"company,omitempty"`
	Phone        *string   `gorm:"size:50" json:"phone,omitempty"`
	IsActive     *bool     `gorm:"not null;default:true" json:"is_active"`

	ApprovalStatus  string     `gorm:"size:32;not null;default:pending;index:idx_partners_approval_status" json:"approval_status"`
	ApprovedAt      *time.Time `json:"approved_at,omitempty"`
	ApprovedBy      *string    `gorm:"size:255" json:"approved_by,omitempty"`
	RejectedAt      *time.Time `json:"rejected_at,omitempty"`
	RejectedBy      *string    `gorm:"size:255" json:"rejected_by,omitempty"`
	RejectionReason *string    `gorm:"type:text" json:"rejection_reason,omitempty"`

	VerificationState `gorm:"embedded"`

	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (Partner) TableName() string {
	return "partners"
}

// CanAuthenticate is the four-way login gate: active, approved, email and phone verified
func (p *Partner) CanAuthenticate() bool {
	return p.IsActive != nil && *p.IsActive &&
		p.ApprovalStatus == ApprovalStatusApproved &&
		p.IsVerified(VerificationKindEmail) &&
		p.IsVerified(VerificationKindPhone)
}

// PartnerFilter represents filter criteria for partner queries
type PartnerFilter struct {
	ID             *uint
	UUID           *uuid.UUID
	Username       *string
	Email          *string
	ApprovalStatus *string
	IsActive       *bool
	CreatedAfter   *time.Time
	CreatedBefore  *time.Time
}
