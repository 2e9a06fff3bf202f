// Package dto contains Data Transfer Objects for API requests and responses
package dto

type VerifyEmailRequest struct {
	Token string `json:"token" validate:"required,max=128"`
}

type VerifyLeadPhoneRequest struct {
	LeadID uint   `json:"lead_id" validate:"required,gt=0"`
	Code   string `json:"code" validate:"required,max=16"`
}

type VerifyPartnerPhoneRequest struct {
	PartnerID uint   `json:"partner_id" validate:"required,gt=0"`
	Code      string `json:"code" validate:"required,max=16"`
}

type ResendLeadVerificationRequest struct {
	LeadID uint   `json:"lead_id" validate:"required,gt=0"`
	Type   string `json:"type" validate:"required,oneof=email phone" example:"email"`
}

type ResendPartnerVerificationRequest struct {
	PartnerID uint   `json:"partner_id" validate:"required,gt=0"`
	Type      string `json:"type" validate:"required,oneof=email phone" example:"phone"`
}

// ResendUserVerificationRequest reissues the email link; users have no phone channel
type ResendUserVerificationRequest struct {
	UserID uint `json:"user_id" validate:"required,gt=0" example:"1"`
}

type VerificationResponse struct {
	Message    string `json:"message" example:"Email verified successfully"`
	OwnerType  string `json:"owner_type" example:"lead"`
	OwnerID    uint   `json:"owner_id" example:"1"`
	Kind       string `json:"kind" example:"email"`
	VerifiedAt string `json:"verified_at" example:"2024-01-15T10:30:00Z"`
}

type ResendVerificationResponse struct {
	Message string `json:"message" example:"Email verification sent successfully"`
	Kind    string `json:"kind" example:"email"`
	SentAt  string `json:"sent_at" example:"2024-01-15T10:30:00Z"`
}
