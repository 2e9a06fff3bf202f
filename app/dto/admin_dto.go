// Package dto
package dto

type AdminDTO struct {
	ID          uint    `json:"id" example:"1"`
	UUID        string  `json:"uuid" example:"f47ac10b-58cc-4372-a567-0e02b2c3d479"`
	Username    string  `json:"username" example:"admin"`
	Role        string  `json:"role" example:"administrator"`
	IsActive    bool    `json:"is_active" example:"true"`
	LastLoginAt *string `json:"last_login_at,omitempty"`
	CreatedAt   string  `json:"created_at" example:"2024-01-15T10:30:00Z"`
}

type AdminCaptchaInitResponse struct {
	ChallengeID       string `json:"challenge_id"`
	MasterImageBase64 string `json:"master_image_base64"`
	ThumbImageBase64  string `json:"thumb_image_base64"`
}

// AdminLoginRequest carries the captcha answer only when the captcha is enabled
type AdminLoginRequest struct {
	Username    string   `json:"username" validate:"required,min=3,max=255"`
	Password    string   `json:"password" validate:"required,max=100"`
	ChallengeID *string  `json:"challenge_id,omitempty" validate:"omitempty,max=64"`
	UserAngle   *float64 `json:"user_angle,omitempty" validate:"omitempty"`
}

type AdminLoginResponse struct {
	Admin        AdminDTO `json:"admin"`
	SessionToken string   `json:"session_token"`
	ExpiresAt    string   `json:"expires_at"`
}

type ApproveInvestorRequest struct {
	Username *string `json:"username,omitempty" validate:"omitempty,min=3,max=64"`
	Password *string `json:"password,omitempty" validate:"omitempty,min=8,max=100"`
}

// ApproveInvestorResponse holds the plaintext password. It is returned once and never stored.
type ApproveInvestorResponse struct {
	Message  string           `json:"message"`
	Investor InvestorAdminDTO `json:"investor"`
	Username string           `json:"username"`
	Password string           `json:"password"`
}

type RejectRequest struct {
	Reason *string `json:"reason,omitempty" validate:"omitempty,max=2000"`
}

type InvestorDecisionResponse struct {
	Message  string           `json:"message"`
	Investor InvestorAdminDTO `json:"investor"`
}

type PartnerDecisionResponse struct {
	Message string     `json:"message"`
	Partner PartnerDTO `json:"partner"`
}

type ListByStatusRequest struct {
	Status *string `query:"status" validate:"omitempty,oneof=pending approved rejected"`
	Limit  int     `query:"limit" validate:"omitempty,min=1,max=500"`
	Offset int     `query:"offset" validate:"omitempty,min=0"`
}

type ListPartnersResponse struct {
	Items []PartnerDTO `json:"items"`
	Total int64        `json:"total"`
}

type ListInvestorsResponse struct {
	Items []InvestorAdminDTO `json:"items"`
	Total int64              `json:"total"`
}
