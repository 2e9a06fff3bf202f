// Package dto contains Data Transfer Objects for API requests and responses
package dto

// InvestorDTO is the sanitized projection handed to the investor
type InvestorDTO struct {
	ID              uint   `json:"id" example:"1"`
	PersonName      string `json:"person_name"`
	InstitutionName string `json:"institution_name"`
	Email           string `json:"email"`
	JobTitle        string `json:"job_title"`
}

// InvestorAdminDTO is the full projection shown in the back office
type InvestorAdminDTO struct {
	ID               uint    `json:"id"`
	UUID             string  `json:"uuid"`
	LeadID           *uint   `json:"lead_id,omitempty"`
	PersonName       string  `json:"person_name"`
	InstitutionName  string  `json:"institution_name"`
	JobTitle         string  `json:"job_title"`
	Email            string  `json:"email"`
	WorkPhone        string  `json:"work_phone"`
	PersonalPhone    string  `json:"personal_phone"`
	BusinessCardName *string `json:"business_card_name,omitempty"`
	Status           string  `json:"status" example:"pending"`
	IsActive         bool    `json:"is_active"`
	Username         *string `json:"username,omitempty"`
	ApprovedAt       *string `json:"approved_at,omitempty"`
	ApprovedBy       *string `json:"approved_by,omitempty"`
	RejectedAt       *string `json:"rejected_at,omitempty"`
	RejectedBy       *string `json:"rejected_by,omitempty"`
	RejectionReason  *string `json:"rejection_reason,omitempty"`
	LastLoginAt      *string `json:"last_login_at,omitempty"`
	CreatedAt        string  `json:"created_at"`
}

type InstitutionalLoginResponse struct {
	Investor     InvestorDTO `json:"investor"`
	SessionToken string      `json:"session_token"`
	ExpiresAt    string      `json:"expires_at" example:"2024-02-14T10:30:00Z"`
}

type CreateInstitutionalBidRequest struct {
	PropertyID      *string `json:"property_id,omitempty" validate:"omitempty,max=64"`
	PropertyAddress string  `json:"property_address" validate:"required,max=500"`
	BidAmount       string  `json:"bid_amount" validate:"required,numeric,max=32" example:"250000"`
	AuctionDate     string  `json:"auction_date" validate:"required" example:"2024-03-01"`
	Notes           *string `json:"notes,omitempty" validate:"omitempty,max=5000"`
}

type InstitutionalBidDTO struct {
	ID              uint    `json:"id"`
	UUID            string  `json:"uuid"`
	PropertyID      *string `json:"property_id,omitempty"`
	PropertyAddress string  `json:"property_address"`
	BidAmount       string  `json:"bid_amount"`
	AuctionDate     string  `json:"auction_date"`
	Status          string  `json:"status"`
	Notes           *string `json:"notes,omitempty"`
	CreatedAt       string  `json:"created_at"`
}
