// Package dto contains Data Transfer Objects for API requests and responses
package dto

type CreateOfferRequest struct {
	PropertyID      string  `json:"property_id" validate:"required,max=64"`
	BuyerLeadID     uint    `json:"buyer_lead_id" validate:"required,gt=0"`
	OfferAmount     string  `json:"offer_amount" validate:"required,numeric,max=32" example:"350000"`
	Terms           *string `json:"terms,omitempty" validate:"omitempty,max=5000"`
	ClosingDate     *string `json:"closing_date,omitempty" validate:"omitempty,max=32"`
	DownPayment     *string `json:"down_payment,omitempty" validate:"omitempty,numeric,max=32"`
	FinancingType   *string `json:"financing_type,omitempty" validate:"omitempty,max=32"`
	Contingencies   *string `json:"contingencies,omitempty" validate:"omitempty,max=5000"`
	AdditionalTerms *string `json:"additional_terms,omitempty" validate:"omitempty,max=5000"`
	OfferLetterURL  *string `json:"offer_letter_url,omitempty" validate:"omitempty,url,max=1024"`
	ProofOfFundsURL *string `json:"proof_of_funds_url,omitempty" validate:"omitempty,url,max=1024"`
}

type UpdateOfferRequest struct {
	Status        *string `json:"status,omitempty" validate:"omitempty,oneof=pending accepted rejected countered withdrawn"`
	CounterAmount *string `json:"counter_amount,omitempty" validate:"omitempty,numeric,max=32"`
	Terms         *string `json:"terms,omitempty" validate:"omitempty,max=5000"`
}

type OfferDTO struct {
	ID              uint    `json:"id"`
	UUID            string  `json:"uuid"`
	PropertyID      string  `json:"property_id"`
	BuyerLeadID     uint    `json:"buyer_lead_id"`
	OfferAmount     string  `json:"offer_amount"`
	CounterAmount   *string `json:"counter_amount,omitempty"`
	Terms           *string `json:"terms,omitempty"`
	Status          string  `json:"status"`
	ClosingDate     *string `json:"closing_date,omitempty"`
	DownPayment     *string `json:"down_payment,omitempty"`
	FinancingType   *string `json:"financing_type,omitempty"`
	Contingencies   *string `json:"contingencies,omitempty"`
	AdditionalTerms *string `json:"additional_terms,omitempty"`
	OfferLetterURL  *string `json:"offer_letter_url,omitempty"`
	ProofOfFundsURL *string `json:"proof_of_funds_url,omitempty"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
}

type CreateForeclosureSubscriptionRequest struct {
	LeadID           uint     `json:"lead_id" validate:"required,gt=0"`
	Counties         []string `json:"counties" validate:"required,min=1,max=62,dive,required,max=100"`
	SubscriptionType string   `json:"subscription_type" validate:"required,oneof=weekly instant" example:"weekly"`
}

type UpdateForeclosureSubscriptionRequest struct {
	Counties         []string `json:"counties,omitempty" validate:"omitempty,min=1,max=62,dive,required,max=100"`
	SubscriptionType *string  `json:"subscription_type,omitempty" validate:"omitempty,oneof=weekly instant"`
	IsActive         *bool    `json:"is_active,omitempty"`
}

type ForeclosureSubscriptionDTO struct {
	ID               uint     `json:"id"`
	UUID             string   `json:"uuid"`
	LeadID           uint     `json:"lead_id"`
	Counties         []string `json:"counties"`
	SubscriptionType string   `json:"subscription_type"`
	IsActive         bool     `json:"is_active"`
	LastSent         *string  `json:"last_sent,omitempty"`
	CreatedAt        string   `json:"created_at"`
	UpdatedAt        string   `json:"updated_at"`
}

type CreateBidServiceRequest struct {
	LeadID                 uint    `json:"lead_id" validate:"required,gt=0"`
	ForeclosureListingID   *string `json:"foreclosure_listing_id,omitempty" validate:"omitempty,max=64"`
	Name                   string  `json:"name" validate:"required,max=255"`
	Email                  string  `json:"email" validate:"required,email,max=255"`
	Phone                  string  `json:"phone" validate:"required,min=7,max=50"`
	InvestmentBudget       *string `json:"investment_budget,omitempty" validate:"omitempty,max=100"`
	MaxBidAmount           *string `json:"max_bid_amount,omitempty" validate:"omitempty,max=100"`
	InvestmentExperience   *string `json:"investment_experience,omitempty" validate:"omitempty,max=50"`
	PreferredContactMethod *string `json:"preferred_contact_method,omitempty" validate:"omitempty,max=50"`
	Timeframe              *string `json:"timeframe,omitempty" validate:"omitempty,max=100"`
	AdditionalRequirements *string `json:"additional_requirements,omitempty" validate:"omitempty,max=5000"`
}

type UpdateBidServiceRequest struct {
	Status     *string `json:"status,omitempty" validate:"omitempty,oneof=pending in_progress completed cancelled"`
	AssignedTo *string `json:"assigned_to,omitempty" validate:"omitempty,max=255"`
	Notes      *string `json:"notes,omitempty" validate:"omitempty,max=5000"`
}

type BidServiceRequestDTO struct {
	ID                     uint    `json:"id"`
	UUID                   string  `json:"uuid"`
	LeadID                 uint    `json:"lead_id"`
	ForeclosureListingID   *string `json:"foreclosure_listing_id,omitempty"`
	Name                   string  `json:"name"`
	Email                  string  `json:"email"`
	Phone                  string  `json:"phone"`
	InvestmentBudget       *string `json:"investment_budget,omitempty"`
	MaxBidAmount           *string `json:"max_bid_amount,omitempty"`
	InvestmentExperience   *string `json:"investment_experience,omitempty"`
	PreferredContactMethod *string `json:"preferred_contact_method,omitempty"`
	Timeframe              *string `json:"timeframe,omitempty"`
	AdditionalRequirements *string `json:"additional_requirements,omitempty"`
	Status                 string  `json:"status"`
	AssignedTo             *string `json:"assigned_to,omitempty"`
	Notes                  *string `json:"notes,omitempty"`
	CreatedAt              string  `json:"created_at"`
	UpdatedAt              string  `json:"updated_at"`
}

type CommunicationDTO struct {
	ID            uint    `json:"id"`
	UUID          string  `json:"uuid"`
	LeadID        *uint   `json:"lead_id,omitempty"`
	PartnerID     *uint   `json:"partner_id,omitempty"`
	InvestorID    *uint   `json:"investor_id,omitempty"`
	Type          string  `json:"type"`
	Direction     string  `json:"direction"`
	Recipient     string  `json:"recipient,omitempty"`
	Subject       string  `json:"subject"`
	Content       string  `json:"content"`
	Status        string  `json:"status"`
	Attempts      int     `json:"attempts"`
	LastError     *string `json:"last_error,omitempty"`
	NextAttemptAt *string `json:"next_attempt_at,omitempty"`
	SentAt        *string `json:"sent_at,omitempty"`
	CreatedAt     string  `json:"created_at"`
}

type UpdateCommunicationRequest struct {
	Subject *string `json:"subject,omitempty" validate:"omitempty,max=500"`
	Content *string `json:"content,omitempty" validate:"omitempty,max=20000"`
	Status  *string `json:"status,omitempty" validate:"omitempty,oneof=queued sent failed"`
}

type ListOffersRequest struct {
	PropertyID *string `query:"property_id" validate:"omitempty,max=64"`
	LeadID     *uint   `query:"lead_id" validate:"omitempty,gt=0"`
}

type ListByLeadRequest struct {
	LeadID *uint `query:"lead_id" validate:"omitempty,gt=0"`
}
