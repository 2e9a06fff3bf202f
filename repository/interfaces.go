// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/amirphl/realty-workflow/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// VerificationStore is implemented by every repository whose entity carries email/phone verification state.
// IssueVerification and ConfirmVerification are conditional: they report false when the row no longer
// satisfies the precondition (already verified, or the secret was replaced or consumed).
type VerificationStore interface {
	VerificationTargetByID(ctx context.Context, id uint) (*models.VerificationTarget, error)
	VerificationTargetByEmailToken(ctx context.Context, token string) (*models.VerificationTarget, error)
	IssueVerification(ctx context.Context, id uint, kind, secret string, sentAt time.Time) (bool, error)
	ConfirmVerification(ctx context.Context, id uint, kind, secret string, verifiedAt time.Time) (bool, error)
}

// LeadRepository defines operations for leads
type LeadRepository interface {
	Repository[models.Lead, models.LeadFilter]
	VerificationStore
	ByUUID(ctx context.Context, uuid string) (*models.Lead, error)
	UpdateStatus(ctx context.Context, id uint, status string) (bool, error)
}

// PartnerRepository defines operations for selling partners
type PartnerRepository interface {
	Repository[models.Partner, models.PartnerFilter]
	VerificationStore
	ByUsername(ctx context.Context, username string) (*models.Partner, error)
	ByEmail(ctx context.Context, email string) (*models.Partner, error)
	Approve(ctx context.Context, id uint, approvedBy string, at time.Time) (bool, error)
	Reject(ctx context.Context, id uint, reason, rejectedBy string, at time.Time) (bool, error)
	TouchLastLogin(ctx context.Context, id uint, at time.Time) error
}

// UserRepository defines operations for site users
type UserRepository interface {
	Repository[models.User, models.UserFilter]
	VerificationStore
	ByUsername(ctx context.Context, username string) (*models.User, error)
	ByEmail(ctx context.Context, email string) (*models.User, error)
	TouchLastLogin(ctx context.Context, id uint, at time.Time) error
}

// InstitutionalInvestorRepository defines operations for institutional investors
type InstitutionalInvestorRepository interface {
	Repository[models.InstitutionalInvestor, models.InstitutionalInvestorFilter]
	ByUsername(ctx context.Context, username string) (*models.InstitutionalInvestor, error)
	ByEmail(ctx context.Context, email string) (*models.InstitutionalInvestor, error)
	Approve(ctx context.Context, id uint, username, passwordHash, approvedBy string, at time.Time) (bool, error)
	Reject(ctx context.Context, id uint, reason, rejectedBy string, at time.Time) (bool, error)
	TouchLastLogin(ctx context.Context, id uint, at time.Time) error
}

// InstitutionalSessionRepository defines operations for institutional investor sessions
type InstitutionalSessionRepository interface {
	Repository[models.InstitutionalSession, models.InstitutionalSessionFilter]
	ByToken(ctx context.Context, token string) (*models.InstitutionalSession, error)
	DeleteByToken(ctx context.Context, token string) error
}

// CommunicationRepository defines operations for the communication log and outbox
type CommunicationRepository interface {
	Repository[models.Communication, models.CommunicationFilter]
	ListByLead(ctx context.Context, leadID uint) ([]*models.Communication, error)
	ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]*models.Communication, error)
	MarkSent(ctx context.Context, id uint, at time.Time) error
	MarkAttemptFailed(ctx context.Context, id uint, attempts int, lastErr string, nextAttemptAt *time.Time, exhausted bool) error
	UpdateFields(ctx context.Context, id uint, updates map[string]any) (bool, error)
}

// OfferRepository defines operations for offers
type OfferRepository interface {
	Repository[models.Offer, models.OfferFilter]
	UpdateFields(ctx context.Context, id uint, updates map[string]any) (bool, error)
}

// BidServiceRequestRepository defines operations for bid service requests
type BidServiceRequestRepository interface {
	Repository[models.BidServiceRequest, models.BidServiceRequestFilter]
	UpdateFields(ctx context.Context, id uint, updates map[string]any) (bool, error)
}

// ForeclosureSubscriptionRepository defines operations for foreclosure alert subscriptions
type ForeclosureSubscriptionRepository interface {
	Repository[models.ForeclosureSubscription, models.ForeclosureSubscriptionFilter]
	UpdateFields(ctx context.Context, id uint, updates map[string]any) (bool, error)
}

// InstitutionalBidRepository defines operations for institutional auction bids
type InstitutionalBidRepository interface {
	Repository[models.InstitutionalBid, models.InstitutionalBidFilter]
	ListByInvestor(ctx context.Context, investorID uint) ([]*models.InstitutionalBid, error)
}

// AdminRepository defines operations for admin users
type AdminRepository interface {
	Repository[models.Admin, models.AdminFilter]
	ByUUID(ctx context.Context, uuid string) (*models.Admin, error)
	ByUsername(ctx context.Context, username string) (*models.Admin, error)
	TouchLastLogin(ctx context.Context, id uint, at time.Time) error
}

// AuditLogRepository defines operations for audit logs
type AuditLogRepository interface {
	Repository[models.AuditLog, models.AuditLogFilter]
	ListByActor(ctx context.Context, actorType string, actorID uint, limit, offset int) ([]*models.AuditLog, error)
	ListByAction(ctx context.Context, action string, limit, offset int) ([]*models.AuditLog, error)
	ListFailedActions(ctx context.Context, limit, offset int) ([]*models.AuditLog, error)
}
