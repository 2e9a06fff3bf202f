// Package models contains domain entities and business models for the marketplace workflow
package models

import (
	"time"
)

// Audit actor kinds
const (
	AuditActorSystem   = "system"
	AuditActorLead     = "lead"
	AuditActorPartner  = "partner"
	AuditActorUser     = "user"
	AuditActorInvestor = "investor"
	AuditActorAdmin    = "admin"
)

type AuditLog struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	ActorType    string    `gorm:"size:16;not null;index:idx_audit_actor,priority:1" json:"actor_type"`
	ActorID      *uint     `gorm:"index:idx_audit_actor,priority:2" json:"actor_id,omitempty"`
	Action       string    `gorm:"size:64;not null;index:idx_audit_action" json:"action"`
	Description  *string   `gorm:"type:text" json:"description,omitempty"`
	IPAddress    *string   `gorm:"size:64" json:"ip_address,omitempty"`
	UserAgent    *string   `gorm:"type:text" json:"user_agent,omitempty"`
	RequestID    *string   `gorm:"size:255;index:idx_audit_request_id" json:"request_id,omitempty"`
	Success      *bool     `gorm:"not null;default:true;index:idx_audit_success" json:"success"`
	ErrorMessage *string   `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt    time.Time `gorm:"index:idx_audit_created_at" json:"created_at"`
}

func (AuditLog) TableName() string {
	return "audit_log"
}

// Audit action constants
const (
	AuditActionLeadCreated             = "lead_created"
	AuditActionLeadStatusUpdated       = "lead_status_updated"
	AuditActionPartnerRegistered       = "partner_registered"
	AuditActionUserRegistered          = "user_registered"
	AuditActionEmailVerified           = "email_verified"
	AuditActionPhoneVerified           = "phone_verified"
	AuditActionVerificationFailed      = "verification_failed"
	AuditActionVerificationResent      = "verification_resent"
	AuditActionVerificationSendFailed  = "verification_send_failed"
	AuditActionPartnerApproved         = "partner_approved"
	AuditActionPartnerRejected         = "partner_rejected"
	AuditActionInvestorApproved        = "investor_approved"
	AuditActionInvestorRejected        = "investor_rejected"
	AuditActionLoginSuccess            = "login_success"
	AuditActionLoginFailed             = "login_failed"
	AuditActionLogout                  = "logout"
	AuditActionOfferCreated            = "offer_created"
	AuditActionOfferUpdated            = "offer_updated"
	AuditActionSubscriptionCreated     = "foreclosure_subscription_created"
	AuditActionSubscriptionUpdated     = "foreclosure_subscription_updated"
	AuditActionBidRequestCreated       = "bid_service_request_created"
	AuditActionBidRequestUpdated       = "bid_service_request_updated"
	AuditActionCommunicationUpdated    = "communication_updated"
	AuditActionCommunicationDispatched = "communication_dispatched"
	AuditActionCommunicationFailed     = "communication_failed"
)

// AuditLogFilter represents filter criteria for audit log queries
type AuditLogFilter struct {
	ID            *uint
	ActorType     *string
	ActorID       *uint
	Action        *string
	Success       *bool
	RequestID     *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

func (a *AuditLog) IsFailed() bool {
	return a.Success != nil && !*a.Success
}

func (a *AuditLog) IsSecurityEvent() bool {
	securityActions := map[string]bool{
		AuditActionLoginSuccess:       true,
		AuditActionLoginFailed:        true,
		AuditActionVerificationFailed: true,
		AuditActionPartnerApproved:    true,
		AuditActionInvestorApproved:   true,
	}
	return securityActions[a.Action]
}
