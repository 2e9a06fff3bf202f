// Package models contains domain entities and business models for the marketplace workflow
package models

import (
	"time"
)

// InstitutionalSession maps an opaque session token to an investor. Expired rows are
// only noticed on lookup; there is no background sweep.
type InstitutionalSession struct {
	ID           uint                   `gorm:"primaryKey" json:"id"`
	SessionToken string                 `gorm:"size:64;not null;uniqueIndex:uk_institutional_sessions_token" json:"-"`
	InvestorID   uint                   `gorm:"not null;index:idx_institutional_sessions_investor_id" json:"investor_id"`
	Investor     *InstitutionalInvestor `gorm:"foreignKey:InvestorID;references:ID;constraint:OnDelete:CASCADE" json:"investor,omitempty"`
	ExpiresAt    time.Time              `gorm:"not null;index:idx_institutional_sessions_expires_at" json:"expires_at"`
	IPAddress    *string                `gorm:"size:64" json:"ip_address,omitempty"`
	UserAgent    *string                `gorm:"type:text" json:"user_agent,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
}

func (InstitutionalSession) TableName() string {
	return "institutional_sessions"
}

// IsExpiredAt reports whether the session is past its expiry at the given instant
func (s *InstitutionalSession) IsExpiredAt(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// InstitutionalSessionFilter represents filter criteria for session queries
type InstitutionalSessionFilter struct {
	ID            *uint
	InvestorID    *uint
	ExpiresBefore *time.Time
	ExpiresAfter  *time.Time
}
