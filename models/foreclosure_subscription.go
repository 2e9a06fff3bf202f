// Package models contains domain entities and business models for the marketplace workflow
package models

import (
	"time"

	"github.com/google/uuid"
)

// Subscription delivery frequencies
const (
	SubscriptionTypeWeekly  = "weekly"
	SubscriptionTypeInstant = "instant"
)

type ForeclosureSubscription struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	UUID             uuid.UUID  `gorm:"type:varchar(36);not null;uniqueIndex:uk_foreclosure_subscriptions_uuid" json:"uuid"`
	LeadID           uint       `gorm:"not null;index:idx_foreclosure_subscriptions_lead_id" json:"lead_id"`
	Lead             *Lead      `gorm:"foreignKey:LeadID;references:ID" json:"-"`
	Counties         StringList `gorm:"type:text;not null" json:"counties"`
	SubscriptionType string     `gorm:"size:16;not null" json:"subscription_type"`
	IsActive         *bool      `gorm:"not null;default:true" json:"is_active"`
	LastSent         *time.Time `json:"last_sent,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (ForeclosureSubscription) TableName() string {
	return "foreclosure_subscriptions"
}

// ForeclosureSubscriptionFilter represents filter criteria for subscription queries
type ForeclosureSubscriptionFilter struct {
	ID       *uint
	LeadID   *uint
	IsActive *bool
}
