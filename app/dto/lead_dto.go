// Package dto contains Data Transfer Objects for API requests and responses
package dto

// InstitutionalDetails is the investor application submitted together with an institutional lead
type InstitutionalDetails struct {
	PersonName       string  `json:"person_name" validate:"required,min=2,max=255"`
	InstitutionName  string  `json:"institution_name" validate:"required,min=2,max=255"`
	JobTitle         string  `json:"job_title" validate:"required,max=255"`
	WorkPhone        string  `json:"work_phone" validate:"required,min=7,max=50"`
	PersonalPhone    string  `json:"personal_phone" validate:"required,min=7,max=50"`
	BusinessCardName *string `json:"business_card_name,omitempty" validate:"omitempty,max=255"`
}

// CreateLeadRequest is submitted by the public lead forms
type CreateLeadRequest struct {
	Type            string   `json:"type" validate:"required,oneof=seller buyer property_submission institutional_investor" example:"buyer"`
	Name            string   `json:"name" validate:"required,min=1,max=255" example:"Jane Doe"`
	Email           string   `json:"email" validate:"required,email,max=255" example:"jane@example.com"`
	Phone           string   `json:"phone" validate:"required,min=7,max=50" example:"555-0100"`
	Source          *string  `json:"source,omitempty" validate:"omitempty,oneof=website_form manual_entry"`
	Motivation      *string  `json:"motivation,omitempty" validate:"omitempty,max=2000"`
	Timeline        *string  `json:"timeline,omitempty" validate:"omitempty,max=100"`
	Budget          *string  `json:"budget,omitempty" validate:"omitempty,max=100"`
	PreferredAreas  []string `json:"preferred_areas,omitempty" validate:"omitempty,max=50,dive,max=100"`
	ExperienceLevel *string  `json:"experience_level,omitempty" validate:"omitempty,max=50"`
	PropertyAddress *string  `json:"property_address,omitempty" validate:"omitempty,max=500"`
	Notes           *string  `json:"notes,omitempty" validate:"omitempty,max=5000"`

	InstitutionalDetails *InstitutionalDetails `json:"institutional_details,omitempty" validate:"omitempty"`
}

// LeadDTO never carries verification secrets
type LeadDTO struct {
	ID              uint     `json:"id" example:"1"`
	UUID            string   `json:"uuid"`
	Type            string   `json:"type" example:"buyer"`
	Name            string   `json:"name"`
	Email           string   `json:"email"`
	Phone           string   `json:"phone"`
	Source          string   `json:"source"`
	Status          string   `json:"status" example:"new"`
	Motivation      *string  `json:"motivation,omitempty"`
	Timeline        *string  `json:"timeline,omitempty"`
	Budget          *string  `json:"budget,omitempty"`
	PreferredAreas  []string `json:"preferred_areas,omitempty"`
	ExperienceLevel *string  `json:"experience_level,omitempty"`
	PropertyAddress *string  `json:"property_address,omitempty"`
	Notes           *string  `json:"notes,omitempty"`
	EmailVerified   bool     `json:"email_verified"`
	PhoneVerified   bool     `json:"phone_verified"`
	CreatedAt       string   `json:"created_at" example:"2024-01-15T10:30:00Z"`
	UpdatedAt       string   `json:"updated_at" example:"2024-01-15T10:30:00Z"`
}

type CreateLeadResponse struct {
	Message              string  `json:"message"`
	Lead                 LeadDTO `json:"lead"`
	RequiresVerification bool    `json:"requires_verification"`
	InvestorID           *uint   `json:"investor_id,omitempty"`
}

type UpdateLeadStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=new contacted qualified converted closed" example:"contacted"`
}

type ListLeadsRequest struct {
	Type   *string `query:"type" validate:"omitempty,oneof=seller buyer property_submission institutional_investor"`
	Status *string `query:"status" validate:"omitempty,oneof=new contacted qualified converted closed"`
}
