// Package models contains domain entities and business models for the marketplace workflow
package models

import (
	"time"
)

// Verification channels
const (
	VerificationKindEmail = "email"
	VerificationKindPhone = "phone"
)

// Verification owners; each owns its own table but shares the VerificationState columns
const (
	VerificationOwnerLead    = "lead"
	VerificationOwnerPartner = "partner"
	VerificationOwnerUser    = "user"
)

// VerificationState is embedded into every entity that proves ownership of an email
// address and a phone number. Token and code are cleared when the matching flag flips.
type VerificationState struct {
	EmailVerified           *bool      `gorm:"not null;default:false" json:"email_verified"`
	EmailVerificationToken  *string    `gorm:"size:64" json:"-"`
	EmailVerificationSentAt *time.Time `json:"-"`
	EmailVerifiedAt         *time.Time `json:"email_verified_at,omitempty"`

	PhoneVerified           *bool      `gorm:"not null;default:false" json:"phone_verified"`
	PhoneVerificationCode   *string    `gorm:"size:6" json:"-"`
	PhoneVerificationSentAt *time.Time `json:"-"`
	PhoneVerifiedAt         *time.Time `json:"phone_verified_at,omitempty"`
}

// IsVerified reports the flag for the given channel
func (v VerificationState) IsVerified(kind string) bool {
	switch kind {
	case VerificationKindEmail:
		return v.EmailVerified != nil && *v.EmailVerified
	case VerificationKindPhone:
		return v.PhoneVerified != nil && *v.PhoneVerified
	}
	return false
}

// Secret returns the stored token or code for the given channel
func (v VerificationState) Secret(kind string) *string {
	if kind == VerificationKindEmail {
		return v.EmailVerificationToken
	}
	return v.PhoneVerificationCode
}

// SentAt returns the issuance timestamp for the given channel
func (v VerificationState) SentAt(kind string) *time.Time {
	if kind == VerificationKindEmail {
		return v.EmailVerificationSentAt
	}
	return v.PhoneVerificationSentAt
}

// VerificationColumns maps a channel to its column names
type VerificationColumns struct {
	Flag       string
	Secret     string
	SentAt     string
	VerifiedAt string
}

// ColumnsFor returns the column set used by the channel
func ColumnsFor(kind string) VerificationColumns {
	if kind == VerificationKindEmail {
		return VerificationColumns{
			Flag:       "email_verified",
			Secret:     "email_verification_token",
			SentAt:     "email_verification_sent_at",
			VerifiedAt: "email_verified_at",
		}
	}
	return VerificationColumns{
		Flag:       "phone_verified",
		Secret:     "phone_verification_code",
		SentAt:     "phone_verification_sent_at",
		VerifiedAt: "phone_verified_at",
	}
}

// VerificationTarget is the owner-agnostic view the verification service works on
type VerificationTarget struct {
	OwnerType string
	ID        uint
	Name      string
	Email     string
	Phone     string
	State     VerificationState
}

// VerificationTarget returns the lead as a verification target
func (l *Lead) VerificationTarget() *VerificationTarget {
	return &VerificationTarget{
		OwnerType: VerificationOwnerLead,
		ID:        l.ID,
		Name:      l.Name,
		Email:     l.Email,
		Phone:     l.Phone,
		State:     l.VerificationState,
	}
}

// VerificationTarget returns the partner as a verification target
func (p *Partner) VerificationTarget() *VerificationTarget {
	phone := ""
	if p.Phone != nil {
		phone = *p.Phone
	}
	return &VerificationTarget{
		OwnerType: VerificationOwnerPartner,
		ID:        p.ID,
		Name:      p.FirstName,
		Email:     p.Email,
		Phone:     phone,
		State:     p.VerificationState,
	}
}

// VerificationTarget returns the user as a verification target
func (u *User) VerificationTarget() *VerificationTarget {
	return &VerificationTarget{
		OwnerType: VerificationOwnerUser,
		ID:        u.ID,
		Name:      u.FirstName,
		Email:     u.Email,
		State:     u.VerificationState,
	}
}
