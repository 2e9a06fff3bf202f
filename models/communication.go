// Package models contains domain entities and business models for the marketplace workflow
package models

import (
	"time"

	"github.com/google/uuid"
)

// Communication channels
const (
	CommunicationTypeEmail = "email"
	CommunicationTypeSMS   = "sms"
	CommunicationTypeNote  = "note"
)

// Communication directions
const (
	CommunicationDirectionOutbound = "outbound"
	CommunicationDirectionInbound  = "inbound"
)

// Communication statuses. Outbound rows start queued and the dispatcher moves them on.
const (
	CommunicationStatusQueued = "queued"
	CommunicationStatusSent   = "sent"
	CommunicationStatusFailed = "failed"
)

// Communication is an outbox row recording an intent to notify a party.
type Communication struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	UUID          uuid.UUID  `gorm:"type:varchar(36);not null;uniqueIndex:uk_communications_uuid" json:"uuid"`
	LeadID        *uint      `gorm:"index:idx_communications_lead_id" json:"lead_id,omitempty"`
	PartnerID     *uint      `gorm:"index:idx_communications_partner_id" json:"partner_id,omitempty"`
	InvestorID    *uint      `gorm:"index:idx_communications_investor_id" json:"investor_id,omitempty"`
	Type          string     `gorm:"size:16;not null" json:"type"`
	Direction     string     `gorm:"size:16;not null" json:"direction"`
	Recipient     string     `gorm:"size:255" json:"recipient,omitempty"`
	Subject       string     `gorm:"size:500" json:"subject"`
	Content       string     `gorm:"type:text" json:"content"`
	Status        string     `gorm:"size:16;not null;index:idx_communications_status_next,priority:1" json:"status"`
	Attempts      int        `gorm:"not null;default:0" json:"attempts"`
	LastError     *string    `gorm:"type:text" json:"last_error,omitempty"`
	NextAttemptAt *time.Time `gorm:"index:idx_communications_status_next,priority:2" json:"next_attempt_at,omitempty"`
	SentAt        *time.Time `json:"sent_at,omitempty"`
	CreatedAt     time.Time  `gorm:"index:idx_communications_created_at" json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (Communication) TableName() string {
	return "communications"
}

// IsDeliverable reports whether the dispatcher should try to deliver this row
func (c *Communication) IsDeliverable() bool {
	return c.Direction == CommunicationDirectionOutbound && c.Type != CommunicationTypeNote && c.Recipient != ""
}

// CommunicationFilter represents filter criteria for communication queries
type CommunicationFilter struct {
	ID         *uint
	LeadID     *uint
	PartnerID  *uint
	InvestorID *uint
	Status     *string
	Direction  *string
	DueBefore  *time.Time
}
