// Package dto contains Data Transfer Objects for API requests and responses
package dto

type PartnerRegisterRequest struct {
	Username  string  `json:"username" validate:"required,min=3,max=64" example:"acme_realty"`
	Password  string  `json:"password" validate:"required,min=8,max=100"`
	Email     string  `json:"email" validate:"required,email,max=255" example:"ops@acme.com"`
	FirstName string  `json:"first_name" validate:"required,max=255"`
	LastName  string  `json:"last_name" validate:"required,max=255"`
	Company   *string `json:"company,omitempty" validate:"omitempty,max=255"`
	Phone     string  `json:"phone" validate:"required,min=7,max=50" example:"+16465550123"`
}

type PartnerRegisterResponse struct {
	Message              string `json:"message"`
	PartnerID            uint   `json:"partner_id" example:"1"`
	RequiresVerification bool   `json:"requires_verification" example:"true"`
}

type PartnerDTO struct {
	ID              uint    `json:"id" example:"1"`
	UUID            string  `json:"uuid"`
	Username        string  `json:"username"`
	Email           string  `json:"email"`
	FirstName       string  `json:"first_name"`
	LastName        string  `json:"last_name"`
	Company         *string `json:"company,omitempty"`
	Phone           *string `json:"phone,omitempty"`
	IsActive        bool    `json:"is_active"`
	ApprovalStatus  string  `json:"approval_status" example:"pending"`
	EmailVerified   bool    `json:"email_verified"`
	PhoneVerified   bool    `json:"phone_verified"`
	ApprovedAt      *string `json:"approved_at,omitempty"`
	ApprovedBy      *string `json:"approved_by,omitempty"`
	RejectedAt      *string `json:"rejected_at,omitempty"`
	RejectedBy      *string `json:"rejected_by,omitempty"`
	RejectionReason *string `json:"rejection_reason,omitempty"`
	LastLoginAt     *string `json:"last_login_at,omitempty"`
	CreatedAt       string  `json:"created_at"`
}

type PartnerLoginResponse struct {
	Partner PartnerDTO   `json:"partner"`
	Session TokenPairDTO `json:"session"`
}
