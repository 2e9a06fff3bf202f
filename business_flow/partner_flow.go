// Package businessflow contains the core business logic and use cases for the realty workflow
package businessflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/amirphl/realty-workflow/app/dto"
	"github.com/amirphl/realty-workflow/app/services"
	"github.com/amirphl/realty-workflow/models"
	"github.com/amirphl/realty-workflow/repository"
	"github.com/amirphl/realty-workflow/utils"
)

// PartnerFlow handles selling partner registration and login
type PartnerFlow interface {
	Register(ctx context.Context, req *dto.PartnerRegisterRequest, metadata *ClientMetadata) (*dto.PartnerRegisterResponse, error)
	Login(ctx context.Context, req *dto.LoginRequest, metadata *ClientMetadata) (*dto.PartnerLoginResponse, error)
	Refresh(ctx context.Context, req *dto.RefreshTokenRequest) (*dto.TokenPairDTO, error)
	Logout(ctx context.Context, partnerID uint, accessToken string, refreshToken *string, metadata *ClientMetadata) error
	Me(ctx context.Context, partnerID uint) (*dto.PartnerDTO, error)
}

// PartnerFlowImpl implements the partner business flow
type PartnerFlowImpl struct {
	partnerRepo      repository.PartnerRepository
	auditRepo        repository.AuditLogRepository
	tokenService     services.TokenService
	verificationFlow VerificationFlow
	bcryptCost       int
}

// NewPartnerFlow creates a new partner flow instance
func NewPartnerFlow(
	partnerRepo repository.PartnerRepository,
	auditRepo repository.AuditLogRepository,
	tokenService services.TokenService,
	verificationFlow VerificationFlow,
	bcryptCost int,
) PartnerFlow {
	if bcryptCost <= 0 {
		bcryptCost = utils.BcryptCost
	}
	return &PartnerFlowImpl{
		partnerRepo:      partnerRepo,
		auditRepo:        auditRepo,
		tokenService:     tokenService,
		verificationFlow: verificationFlow,
		bcryptCost:       bcryptCost,
	}
}

// Register creates a pending partner and sends both verifications
func (f *PartnerFlowImpl) Register(ctx context.Context, req *dto.PartnerRegisterRequest, metadata *ClientMetadata) (*dto.PartnerRegisterResponse, error) {
	username := strings.TrimSpace(req.Username)
	email := utils.NormalizeEmail(req.Email)
	phone := strings.TrimSpace(req.Phone)

	// login requires a verified phone, so a partner without one could never sign in
	if phone == "" {
		return nil, NewBusinessError("PARTNER_REGISTRATION_FAILED", "A phone number is required", ErrNoPhoneOnFile)
	}

	if err := f.ensureUnique(ctx, username, email); err != nil {
		return nil, NewBusinessError("PARTNER_REGISTRATION_FAILED", "Partner registration failed", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), f.bcryptCost)
	if err != nil {
		return nil, NewBusinessError("PARTNER_REGISTRATION_FAILED", "Partner registration failed", err)
	}

	emailToken, err := GenerateEmailToken()
	if err != nil {
		return nil, NewBusinessError("PARTNER_REGISTRATION_FAILED", "Partner registration failed", err)
	}

	phoneCode, err := GenerateOTP()
	if err != nil {
		return nil, NewBusinessError("PARTNER_REGISTRATION_FAILED", "Partner registration failed", err)
	}

	now := utils.UTCNow()
	partner := &models.Partner{
		UUID:           uuid.New(),
		Username:       username,
		PasswordHash:   string(hash),
		Email:          email,
		FirstName:      strings.TrimSpace(req.FirstName),
		LastName:       strings.TrimSpace(req.LastName),
		Company:        req.Company,
		Phone:          &phone,
		IsActive:       utils.ToPtr(true),
		ApprovalStatus: models.ApprovalStatusPending,
		VerificationState: models.VerificationState{
			EmailVerified:           utils.ToPtr(false),
			EmailVerificationToken:  &emailToken,
			EmailVerificationSentAt: &now,
			PhoneVerified:           utils.ToPtr(false),
			PhoneVerificationCode:   &phoneCode,
			PhoneVerificationSentAt: &now,
		},
	}

	if err := f.partnerRepo.Save(ctx, partner); err != nil {
		errMsg := fmt.Sprintf("Partner registration failed: %s", err.Error())
		_ = writeAudit(ctx, f.auditRepo, models.AuditActorPartner, nil, models.AuditActionPartnerRegistered, errMsg, false, &errMsg, metadata)
		return nil, NewBusinessError("PARTNER_REGISTRATION_FAILED", "Partner registration failed", err)
	}

	msg := fmt.Sprintf("Partner registered: %d", partner.ID)
	_ = writeAudit(ctx, f.auditRepo, models.AuditActorPartner, &partner.ID, models.AuditActionPartnerRegistered, msg, true, nil, metadata)

	target := partner.VerificationTarget()
	f.verificationFlow.Dispatch(target, models.VerificationKindEmail, emailToken, metadata)
	f.verificationFlow.Dispatch(target, models.VerificationKindPhone, phoneCode, metadata)

	return &dto.PartnerRegisterResponse{
		Message:              "Registration successful. Please verify your email and phone number. Your account will be reviewed by an administrator.",
		PartnerID:            partner.ID,
		RequiresVerification: true,
	}, nil
}

// Login authenticates a partner. Approval is necessary but not sufficient: both channels must be verified too.
func (f *PartnerFlowImpl) Login(ctx context.Context, req *dto.LoginRequest, metadata *ClientMetadata) (*dto.PartnerLoginResponse, error) {
	partner, err := f.partnerRepo.ByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		return nil, NewBusinessError("PARTNER_LOGIN_FAILED", "Login failed", err)
	}

	if partner == nil || bcrypt.CompareHashAndPassword([]byte(partner.PasswordHash), []byte(req.Password)) != nil {
		var actorID *uint
		if partner != nil {
			actorID = &partner.ID
		}
		errMsg := fmt.Sprintf("Partner login failed for %q: invalid credentials", req.Username)
		_ = writeAudit(ctx, f.auditRepo, models.AuditActorPartner, actorID, models.AuditActionLoginFailed, errMsg, false, &errMsg, metadata)
		return nil, NewBusinessError("PARTNER_LOGIN_FAILED", "Invalid username or password", ErrInvalidCredentials)
	}

	if gateErr := partnerGate(partner); gateErr != nil {
		errMsg := fmt.Sprintf("Partner %d login refused: %s", partner.ID, gateErr.Error())
		_ = writeAudit(ctx, f.auditRepo, models.AuditActorPartner, &partner.ID, models.AuditActionLoginFailed, errMsg, false, &errMsg, metadata)
		return nil, gateErr
	}

	access, refresh, err := f.tokenService.GenerateTokens(services.SubjectPartner, partner.ID)
	if err != nil {
		return nil, NewBusinessError("PARTNER_LOGIN_FAILED", "Login failed", err)
	}

	now := utils.UTCNow()
	if err := f.partnerRepo.TouchLastLogin(ctx, partner.ID, now); err != nil {
		return nil, NewBusinessError("PARTNER_LOGIN_FAILED", "Login failed", err)
	}
	partner.LastLoginAt = &now

	msg := fmt.Sprintf("Partner logged in: %d", partner.ID)
	_ = writeAudit(ctx, f.auditRepo, models.AuditActorPartner, &partner.ID, models.AuditActionLoginSuccess, msg, true, nil, metadata)

	return &dto.PartnerLoginResponse{
		Partner: ToPartnerDTO(*partner),
		Session: f.tokenPair(access, refresh),
	}, nil
}

// partnerGate explains which of the four login conditions failed
func partnerGate(p *models.Partner) error {
	if p.CanAuthenticate() {
		return nil
	}
	switch {
	case !utils.IsTrue(p.IsActive):
		return NewBusinessError("ACCOUNT_INACTIVE", "Your account has been deactivated", ErrAccountInactive)
	case p.ApprovalStatus == models.ApprovalStatusRejected:
		return NewBusinessError("NOT_APPROVED", "Your partner application was not approved", ErrNotApproved)
	case p.ApprovalStatus != models.ApprovalStatusApproved:
		return NewBusinessError("NOT_APPROVED", "Your account is pending approval", ErrNotApproved)
	case !p.IsVerified(models.VerificationKindEmail):
		return NewBusinessError("VERIFICATION_REQUIRED", "Please verify your email before logging in", ErrVerificationRequired)
	default:
		return NewBusinessError("VERIFICATION_REQUIRED", "Please verify your phone number before logging in", ErrVerificationRequired)
	}
}

// Refresh rotates a partner's token pair
func (f *PartnerFlowImpl) Refresh(ctx context.Context, req *dto.RefreshTokenRequest) (*dto.TokenPairDTO, error) {
	return refreshPair(ctx, f.tokenService, services.SubjectPartner, req.RefreshToken)
}

// Logout revokes the partner's access token and, when supplied, the refresh token
func (f *PartnerFlowImpl) Logout(ctx context.Context, partnerID uint, accessToken string, refreshToken *string, metadata *ClientMetadata) error {
	if err := f.tokenService.RevokeToken(ctx, accessToken); err != nil {
		return NewBusinessError("PARTNER_LOGOUT_FAILED", "Logout failed", err)
	}
	if refreshToken != nil && *refreshToken != "" {
		_ = f.tokenService.RevokeToken(ctx, *refreshToken)
	}

	msg := fmt.Sprintf("Partner logged out: %d", partnerID)
	_ = writeAudit(ctx, f.auditRepo, models.AuditActorPartner, &partnerID, models.AuditActionLogout, msg, true, nil, metadata)
	return nil
}

// Me returns the authenticated partner
func (f *PartnerFlowImpl) Me(ctx context.Context, partnerID uint) (*dto.PartnerDTO, error) {
	partner, err := f.partnerRepo.ByID(ctx, partnerID)
	if err != nil {
		return nil, NewBusinessError("GET_PARTNER_FAILED", "Failed to load partner", err)
	}
	if partner == nil {
		return nil, NewBusinessError("GET_PARTNER_FAILED", "Failed to load partner", ErrPartnerNotFound)
	}
	out := ToPartnerDTO(*partner)
	return &out, nil
}

func (f *PartnerFlowImpl) ensureUnique(ctx context.Context, username, email string) error {
	existing, err := f.partnerRepo.ByUsername(ctx, username)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrUsernameAlreadyExists
	}

	existing, err = f.partnerRepo.ByEmail(ctx, email)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrEmailAlreadyExists
	}
	return nil
}

func (f *PartnerFlowImpl) tokenPair(access, refresh string) dto.TokenPairDTO {
	return dto.TokenPairDTO{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int(f.tokenService.AccessTokenTTL().Seconds()),
		TokenType:    "Bearer",
	}
}

// refreshPair rotates a refresh token, refusing tokens minted for another subject kind
func refreshPair(ctx context.Context, tokenService services.TokenService, subjectType, refreshToken string) (*dto.TokenPairDTO, error) {
	claims, err := tokenService.ValidateToken(ctx, refreshToken)
	if err != nil {
		return nil, NewBusinessError("REFRESH_FAILED", "Invalid refresh token", errors.Join(ErrUnauthenticated, err))
	}
	if claims.SubjectType != subjectType || claims.TokenType != services.TokenTypeRefresh {
		return nil, NewBusinessError("REFRESH_FAILED", "Invalid refresh token", ErrUnauthenticated)
	}

	access, refresh, err := tokenService.RefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, NewBusinessError("REFRESH_FAILED", "Invalid refresh token", errors.Join(ErrUnauthenticated, err))
	}

	return &dto.TokenPairDTO{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int(tokenService.AccessTokenTTL().Seconds()),
		TokenType:    "Bearer",
	}, nil
}
