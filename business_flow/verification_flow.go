// Package businessflow contains the core business logic and use cases for the realty workflow
package businessflow

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/amirphl/realty-workflow/app/dto"
	"github.com/amirphl/realty-workflow/app/services"
	"github.com/amirphl/realty-workflow/models"
	"github.com/amirphl/realty-workflow/repository"
	"github.com/amirphl/realty-workflow/utils"
)

const brandName = "Investor Properties NY"

// VerificationFlow issues and confirms single-use email tokens and phone codes for leads, partners and users
type VerificationFlow interface {
	VerifyEmail(ctx context.Context, ownerType string, req *dto.VerifyEmailRequest, metadata *ClientMetadata) (*dto.VerificationResponse, error)
	VerifyPhone(ctx context.Context, ownerType string, ownerID uint, code string, metadata *ClientMetadata) (*dto.VerificationResponse, error)
	Resend(ctx context.Context, ownerType string, ownerID uint, kind string, metadata *ClientMetadata) (*dto.ResendVerificationResponse, error)
	Dispatch(target *models.VerificationTarget, kind, secret string, metadata *ClientMetadata)
}

// VerificationFlowImpl implements the verification business flow
type VerificationFlowImpl struct {
	stores          map[string]repository.VerificationStore
	auditRepo       repository.AuditLogRepository
	notificationSvc services.NotificationService
	guard           services.VerificationGuard
	publicBaseURL   string
	logger          *zap.Logger
}

// NewVerificationFlow creates a new verification flow instance
func NewVerificationFlow(
	leadRepo repository.LeadRepository,
	partnerRepo repository.PartnerRepository,
	userRepo repository.UserRepository,
	auditRepo repository.AuditLogRepository,
	notificationSvc services.NotificationService,
	guard services.VerificationGuard,
	publicBaseURL string,
	logger *zap.Logger,
) VerificationFlow {
	if guard == nil {
		guard = services.NewNoopVerificationGuard()
	}
	return &VerificationFlowImpl{
		stores: map[string]repository.VerificationStore{
			models.VerificationOwnerLead:    leadRepo,
			models.VerificationOwnerPartner: partnerRepo,
			models.VerificationOwnerUser:    userRepo,
		},
		auditRepo:       auditRepo,
		notificationSvc: notificationSvc,
		guard:           guard,
		publicBaseURL:   strings.TrimRight(publicBaseURL, "/"),
		logger:          logger,
	}
}

// GenerateEmailToken returns 32 random bytes, hex encoded
func GenerateEmailToken() (string, error) {
	return utils.RandomHex(utils.EmailTokenBytes)
}

// GenerateOTP returns a 6-digit code drawn uniformly from 100000-999999
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// GenerateSecret returns a fresh token or code for the channel
func GenerateSecret(kind string) (string, error) {
	switch kind {
	case models.VerificationKindEmail:
		return GenerateEmailToken()
	case models.VerificationKindPhone:
		return GenerateOTP()
	}
	return "", ErrInvalidVerificationKind
}

// IsVerificationValid reports whether a secret issued at sentAt is still usable at now.
// Email secrets last 24 hours and phone codes 10 minutes, inclusive of the boundary.
func IsVerificationValid(sentAt *time.Time, kind string, now time.Time) bool {
	if sentAt == nil {
		return false
	}
	var window time.Duration
	switch kind {
	case models.VerificationKindEmail:
		window = utils.EmailVerificationWindow
	case models.VerificationKindPhone:
		window = utils.PhoneVerificationWindow
	default:
		return false
	}
	return now.Sub(*sentAt) <= window
}

// VerifyEmail confirms an email token. Unknown or consumed tokens are indistinguishable.
func (v *VerificationFlowImpl) VerifyEmail(ctx context.Context, ownerType string, req *dto.VerifyEmailRequest, metadata *ClientMetadata) (*dto.VerificationResponse, error) {
	store, err := v.store(ownerType)
	if err != nil {
		return nil, NewBusinessError("VERIFICATION_FAILED", "Email verification failed", err)
	}

	token := strings.TrimSpace(req.Token)
	if token == "" {
		return nil, NewBusinessError("VERIFICATION_FAILED", "Email verification failed", ErrInvalidToken)
	}

	target, err := store.VerificationTargetByEmailToken(ctx, token)
	if err != nil {
		return nil, NewBusinessError("VERIFICATION_FAILED", "Email verification failed", err)
	}
	if target == nil {
		return nil, NewBusinessError("VERIFICATION_FAILED", "Email verification failed", ErrInvalidToken)
	}

	return v.confirm(ctx, store, target, models.VerificationKindEmail, token, metadata)
}

// VerifyPhone confirms a phone code for the given owner
func (v *VerificationFlowImpl) VerifyPhone(ctx context.Context, ownerType string, ownerID uint, code string, metadata *ClientMetadata) (*dto.VerificationResponse, error) {
	store, err := v.store(ownerType)
	if err != nil {
		return nil, NewBusinessError("VERIFICATION_FAILED", "Phone verification failed", err)
	}

	target, err := store.VerificationTargetByID(ctx, ownerID)
	if err != nil {
		return nil, NewBusinessError("VERIFICATION_FAILED", "Phone verification failed", err)
	}
	if target == nil {
		return nil, NewBusinessError("VERIFICATION_FAILED", "Phone verification failed", notFoundFor(ownerType))
	}

	return v.confirm(ctx, store, target, models.VerificationKindPhone, strings.TrimSpace(code), metadata)
}

func (v *VerificationFlowImpl) confirm(ctx context.Context, store repository.VerificationStore, target *models.VerificationTarget, kind, supplied string, metadata *ClientMetadata) (*dto.VerificationResponse, error) {
	code := "VERIFICATION_FAILED"
	msg := "Email verification failed"
	if kind == models.VerificationKindPhone {
		msg = "Phone verification failed"
	}

	fail := func(cause error) (*dto.VerificationResponse, error) {
		errMsg := fmt.Sprintf("%s verification failed for %s %d: %s", kind, target.OwnerType, target.ID, cause.Error())
		_ = writeAudit(ctx, v.auditRepo, target.OwnerType, &target.ID, models.AuditActionVerificationFailed, errMsg, false, &errMsg, metadata)
		return nil, NewBusinessError(code, msg, cause)
	}

	if target.State.IsVerified(kind) {
		return fail(ErrAlreadyVerified)
	}

	if err := v.guard.CheckAttempts(ctx, target.OwnerType, target.ID, kind); err != nil {
		if errors.Is(err, services.ErrRateLimited) {
			return fail(ErrTooManyRequests)
		}
		return fail(err)
	}

	stored := target.State.Secret(kind)
	if stored == nil || subtle.ConstantTimeCompare([]byte(*stored), []byte(supplied)) != 1 {
		_ = v.guard.RecordFailure(ctx, target.OwnerType, target.ID, kind)
		return fail(ErrInvalidToken)
	}

	now := utils.UTCNow()
	if !IsVerificationValid(target.State.SentAt(kind), kind, now) {
		return fail(ErrVerificationExpired)
	}

	ok, err := store.ConfirmVerification(ctx, target.ID, kind, supplied, now)
	if err != nil {
		return nil, NewBusinessError(code, msg, err)
	}
	if !ok {
		// a concurrent confirm or resend replaced the secret first
		return fail(ErrInvalidToken)
	}

	_ = v.guard.Reset(ctx, target.OwnerType, target.ID, kind)

	action := models.AuditActionEmailVerified
	message := "Email verified successfully"
	if kind == models.VerificationKindPhone {
		action = models.AuditActionPhoneVerified
		message = "Phone verified successfully"
	}
	desc := fmt.Sprintf("%s %d verified %s", target.OwnerType, target.ID, kind)
	_ = writeAudit(ctx, v.auditRepo, target.OwnerType, &target.ID, action, desc, true, nil, metadata)

	return &dto.VerificationResponse{
		Message:    message,
		OwnerType:  target.OwnerType,
		OwnerID:    target.ID,
		Kind:       kind,
		VerifiedAt: formatTime(now),
	}, nil
}

// Resend replaces the outstanding token or code and sends it again. Only the newest secret is valid.
func (v *VerificationFlowImpl) Resend(ctx context.Context, ownerType string, ownerID uint, kind string, metadata *ClientMetadata) (*dto.ResendVerificationResponse, error) {
	if kind != models.VerificationKindEmail && kind != models.VerificationKindPhone {
		return nil, NewBusinessError("RESEND_VERIFICATION_FAILED", "Resend verification failed", ErrInvalidVerificationKind)
	}

	store, err := v.store(ownerType)
	if err != nil {
		return nil, NewBusinessError("RESEND_VERIFICATION_FAILED", "Resend verification failed", err)
	}

	target, err := store.VerificationTargetByID(ctx, ownerID)
	if err != nil {
		return nil, NewBusinessError("RESEND_VERIFICATION_FAILED", "Resend verification failed", err)
	}
	if target == nil {
		return nil, NewBusinessError("RESEND_VERIFICATION_FAILED", "Resend verification failed", notFoundFor(ownerType))
	}
	if target.State.IsVerified(kind) {
		return nil, NewBusinessError("RESEND_VERIFICATION_FAILED", "Resend verification failed", ErrAlreadyVerified)
	}
	if kind == models.VerificationKindPhone && strings.TrimSpace(target.Phone) == "" {
		return nil, NewBusinessError("RESEND_VERIFICATION_FAILED", "Resend verification failed", ErrNoPhoneOnFile)
	}

	if err := v.guard.AllowResend(ctx, ownerType, ownerID, kind); err != nil {
		if errors.Is(err, services.ErrRateLimited) {
			return nil, NewBusinessError("RESEND_VERIFICATION_FAILED", "Resend verification failed", ErrTooManyRequests)
		}
		return nil, NewBusinessError("RESEND_VERIFICATION_FAILED", "Resend verification failed", err)
	}

	secret, err := GenerateSecret(kind)
	if err != nil {
		v.releaseResend(ownerType, ownerID, kind)
		return nil, NewBusinessError("RESEND_VERIFICATION_FAILED", "Resend verification failed", err)
	}

	now := utils.UTCNow()
	ok, err := store.IssueVerification(ctx, ownerID, kind, secret, now)
	if err != nil {
		v.releaseResend(ownerType, ownerID, kind)
		return nil, NewBusinessError("RESEND_VERIFICATION_FAILED", "Resend verification failed", err)
	}
	if !ok {
		v.releaseResend(ownerType, ownerID, kind)
		return nil, NewBusinessError("RESEND_VERIFICATION_FAILED", "Resend verification failed", ErrAlreadyVerified)
	}

	v.Dispatch(target, kind, secret, metadata)

	desc := fmt.Sprintf("%s verification resent to %s %d", kind, ownerType, ownerID)
	_ = writeAudit(ctx, v.auditRepo, ownerType, &target.ID, models.AuditActionVerificationResent, desc, true, nil, metadata)

	message := "Email verification sent successfully"
	if kind == models.VerificationKindPhone {
		message = "Phone verification code sent successfully"
	}
	return &dto.ResendVerificationResponse{
		Message: message,
		Kind:    kind,
		SentAt:  formatTime(now),
	}, nil
}

// releaseResend frees the cooldown slot after a resend that never issued a new secret.
// It runs on its own context so a cancelled request still releases the slot.
func (v *VerificationFlowImpl) releaseResend(ownerType string, ownerID uint, kind string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := v.guard.ReleaseResend(ctx, ownerType, ownerID, kind); err != nil {
		v.logger.Warn("failed to release resend cooldown",
			zap.String("owner_type", ownerType),
			zap.Uint("owner_id", ownerID),
			zap.String("kind", kind),
			zap.Error(err),
		)
	}
}

// Dispatch delivers a secret to its owner in the background. The secret never reaches the outbox;
// send failures are logged and audited but not reported to the caller.
func (v *VerificationFlowImpl) Dispatch(target *models.VerificationTarget, kind, secret string, metadata *ClientMetadata) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		var err error
		switch kind {
		case models.VerificationKindEmail:
			err = v.notificationSvc.SendEmail(ctx, target.Email, fmt.Sprintf("Verify your email - %s", brandName), v.emailBody(target, secret))
		case models.VerificationKindPhone:
			err = v.notificationSvc.SendSMS(ctx, target.Phone, fmt.Sprintf("Your %s verification code is: %s. It expires in 10 minutes.", brandName, secret))
		}
		if err == nil {
			return
		}

		if v.logger != nil {
			v.logger.Warn("failed to send verification",
				zap.String("owner_type", target.OwnerType),
				zap.Uint("owner_id", target.ID),
				zap.String("kind", kind),
				zap.Error(err))
		}
		errMsg := fmt.Sprintf("Failed to send %s verification: %v", kind, err)
		_ = writeAudit(ctx, v.auditRepo, target.OwnerType, &target.ID, models.AuditActionVerificationSendFailed, errMsg, false, &errMsg, metadata)
	}()
}

func (v *VerificationFlowImpl) emailBody(target *models.VerificationTarget, token string) string {
	path := "/verify-email"
	switch target.OwnerType {
	case models.VerificationOwnerPartner:
		path = "/partners/verify-email"
	case models.VerificationOwnerUser:
		path = "/users/verify-email"
	}
	name := target.Name
	if name == "" {
		name = "there"
	}
	return fmt.Sprintf("Hi %s,\n\nPlease confirm your email address by opening the link below. The link expires in 24 hours.\n\n%s%s?token=%s\n\n%s",
		name, v.publicBaseURL, path, token, brandName)
}

func (v *VerificationFlowImpl) store(ownerType string) (repository.VerificationStore, error) {
	store, ok := v.stores[ownerType]
	if !ok || store == nil {
		return nil, fmt.Errorf("unknown verification owner %q", ownerType)
	}
	return store, nil
}

func notFoundFor(ownerType string) error {
	switch ownerType {
	case models.VerificationOwnerPartner:
		return ErrPartnerNotFound
	case models.VerificationOwnerUser:
		return ErrUserNotFound
	}
	return ErrLeadNotFound
}
