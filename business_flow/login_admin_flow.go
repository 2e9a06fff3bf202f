// Package businessflow contains the core business logic and use cases for the realty workflow
package businessflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/amirphl/realty-workflow/app/dto"
	"github.com/amirphl/realty-workflow/app/services"
	"github.com/amirphl/realty-workflow/models"
	"github.com/amirphl/realty-workflow/repository"
	"github.com/amirphl/realty-workflow/utils"
)

// AdminAuthFlow represents the admin authentication flow used by handlers
type AdminAuthFlow interface {
	InitCaptcha(ctx context.Context) (*dto.AdminCaptchaInitResponse, error)
	Login(ctx context.Context, req *dto.AdminLoginRequest, metadata *ClientMetadata) (*dto.AdminLoginResponse, error)
	Authenticate(ctx context.Context, token string) (*models.Admin, error)
	Logout(ctx context.Context, token string, metadata *ClientMetadata) error
	Me(ctx context.Context, adminID uint) (*dto.AdminDTO, error)
	EnsureBootstrapAdmin(ctx context.Context, username, password string) (bool, error)
}

// AdminAuthFlowImpl checks admin credentials against the admins table and keeps sessions server side
type AdminAuthFlowImpl struct {
	adminRepo      repository.AdminRepository
	auditRepo      repository.AuditLogRepository
	sessionStore   services.AdminSessionStore
	captchaSvc     services.CaptchaService
	captchaEnabled bool
	sessionTTL     time.Duration
	bcryptCost     int
}

// NewAdminAuthFlow creates a new admin auth flow. captchaSvc may be nil when the captcha is disabled.
func NewAdminAuthFlow(
	adminRepo repository.AdminRepository,
	auditRepo repository.AuditLogRepository,
	sessionStore services.AdminSessionStore,
	captchaSvc services.CaptchaService,
	captchaEnabled bool,
	sessionTTL time.Duration,
	bcryptCost int,
) AdminAuthFlow {
	if sessionTTL <= 0 {
		sessionTTL = utils.AdminSessionTTL
	}
	if bcryptCost <= 0 {
		bcryptCost = utils.BcryptCost
	}
	return &AdminAuthFlowImpl{
		adminRepo:      adminRepo,
		auditRepo:      auditRepo,
		sessionStore:   sessionStore,
		captchaSvc:     captchaSvc,
		captchaEnabled: captchaEnabled,
		sessionTTL:     sessionTTL,
		bcryptCost:     bcryptCost,
	}
}

func (af *AdminAuthFlowImpl) InitCaptcha(ctx context.Context) (*dto.AdminCaptchaInitResponse, error) {
	if af.captchaSvc == nil {
		return nil, NewBusinessError("CAPTCHA_NOT_AVAILABLE", "Captcha service not available", ErrCaptchaUnavailable)
	}
	ch, err := af.captchaSvc.GenerateRotate(ctx)
	if err != nil {
		if errors.Is(err, services.ErrCaptchaUnavailable) {
			err = errors.Join(ErrCaptchaUnavailable, err)
		}
		return nil, NewBusinessError("CAPTCHA_INIT_FAILED", "Failed to initialize captcha", err)
	}
	return &dto.AdminCaptchaInitResponse{
		ChallengeID:       ch.ID,
		MasterImageBase64: ch.MasterImageBase64,
		ThumbImageBase64:  ch.ThumbImageBase64,
	}, nil
}

// Login verifies the optional captcha, then the admin's bcrypt hash, and opens a server-side session
func (af *AdminAuthFlowImpl) Login(ctx context.Context, req *dto.AdminLoginRequest, metadata *ClientMetadata) (*dto.AdminLoginResponse, error) {
	if af.captchaEnabled {
		if req.ChallengeID == nil || *req.ChallengeID == "" || req.UserAngle == nil {
			return nil, NewBusinessError("CAPTCHA_INVALID", "Captcha challenge missing", ErrInvalidCaptcha)
		}
		if af.captchaSvc == nil || !af.captchaSvc.VerifyRotate(ctx, *req.ChallengeID, *req.UserAngle) {
			return nil, NewBusinessError("CAPTCHA_INVALID", "Captcha validation failed", ErrInvalidCaptcha)
		}
	}

	admin, err := af.adminRepo.ByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		return nil, NewBusinessError("ADMIN_LOOKUP_FAILED", "Failed to lookup admin", err)
	}
	// unknown username and wrong password look the same from outside
	if admin == nil || bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(req.Password)) != nil {
		var actorID *uint
		if admin != nil {
			actorID = &admin.ID
		}
		errMsg := fmt.Sprintf("Admin login failed for %q", req.Username)
		_ = writeAudit(ctx, af.auditRepo, models.AuditActorAdmin, actorID, models.AuditActionLoginFailed, errMsg, false, &errMsg, metadata)
		return nil, NewBusinessError("ADMIN_LOGIN_FAILED", "Invalid username or password", ErrInvalidCredentials)
	}
	if !utils.IsTrue(admin.IsActive) {
		return nil, NewBusinessError("ADMIN_INACTIVE", "Admin account is inactive", ErrAccountInactive)
	}

	session, err := af.sessionStore.Create(ctx, admin.ID, af.sessionTTL)
	if err != nil {
		return nil, NewBusinessError("ADMIN_LOGIN_FAILED", "Failed to create session", err)
	}

	now := utils.UTCNow()
	if err := af.adminRepo.TouchLastLogin(ctx, admin.ID, now); err != nil {
		return nil, NewBusinessError("ADMIN_LOGIN_FAILED", "Login failed", err)
	}
	admin.LastLoginAt = &now

	msg := fmt.Sprintf("Admin logged in: %d", admin.ID)
	_ = writeAudit(ctx, af.auditRepo, models.AuditActorAdmin, &admin.ID, models.AuditActionLoginSuccess, msg, true, nil, metadata)

	return &dto.AdminLoginResponse{
		Admin:        ToAdminDTO(*admin),
		SessionToken: session.Token,
		ExpiresAt:    formatTime(session.ExpiresAt),
	}, nil
}

// Authenticate resolves an admin session token to an active admin
func (af *AdminAuthFlowImpl) Authenticate(ctx context.Context, token string) (*models.Admin, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}
	session, err := af.sessionStore.Get(ctx, token)
	if err != nil {
		if errors.Is(err, services.ErrSessionNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}

	admin, err := af.adminRepo.ByID(ctx, session.AdminID)
	if err != nil {
		return nil, err
	}
	if admin == nil || !utils.IsTrue(admin.IsActive) {
		return nil, ErrAccountInactive
	}
	return admin, nil
}

func (af *AdminAuthFlowImpl) Logout(ctx context.Context, token string, metadata *ClientMetadata) error {
	if token == "" {
		return nil
	}
	if err := af.sessionStore.Delete(ctx, token); err != nil {
		return NewBusinessError("ADMIN_LOGOUT_FAILED", "Logout failed", err)
	}
	_ = writeAudit(ctx, af.auditRepo, models.AuditActorAdmin, nil, models.AuditActionLogout, "Admin session closed", true, nil, metadata)
	return nil
}

func (af *AdminAuthFlowImpl) Me(ctx context.Context, adminID uint) (*dto.AdminDTO, error) {
	admin, err := af.adminRepo.ByID(ctx, adminID)
	if err != nil {
		return nil, NewBusinessError("GET_ADMIN_FAILED", "Failed to load admin", err)
	}
	if admin == nil {
		return nil, NewBusinessError("GET_ADMIN_FAILED", "Failed to load admin", ErrAdminNotFound)
	}
	out := ToAdminDTO(*admin)
	return &out, nil
}

// EnsureBootstrapAdmin creates the configured admin when no admin with that username exists.
// An existing admin is left untouched so rotating the env var never resets a changed password.
func (af *AdminAuthFlowImpl) EnsureBootstrapAdmin(ctx context.Context, username, password string) (bool, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return false, nil
	}

	existing, err := af.adminRepo.ByUsername(ctx, username)
	if err != nil {
		return false, fmt.Errorf("failed to lookup bootstrap admin: %w", err)
	}
	if existing != nil {
		return false, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), af.bcryptCost)
	if err != nil {
		return false, fmt.Errorf("failed to hash bootstrap admin password: %w", err)
	}

	admin := &models.Admin{
		UUID:         uuid.New(),
		Username:     username,
		PasswordHash: string(hash),
		Role:         models.AdminRoleAdministrator,
		IsActive:     utils.ToPtr(true),
	}
	if err := af.adminRepo.Save(ctx, admin); err != nil {
		return false, fmt.Errorf("failed to create bootstrap admin: %w", err)
	}
	return true, nil
}
