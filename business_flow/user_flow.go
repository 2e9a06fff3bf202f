// Package businessflow contains the core business logic and use cases for the realty workflow
package businessflow

import (
	"context"
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

// UserFlow handles site account registration, login and logout
type UserFlow interface {
	Register(ctx context.Context, req *dto.UserRegisterRequest, metadata *ClientMetadata) (*dto.UserRegisterResponse, error)
	Login(ctx context.Context, req *dto.LoginRequest, metadata *ClientMetadata) (*dto.UserLoginResponse, error)
	Refresh(ctx context.Context, req *dto.RefreshTokenRequest) (*dto.TokenPairDTO, error)
	Logout(ctx context.Context, userID uint, accessToken string, refreshToken *string, metadata *ClientMetadata) error
	Me(ctx context.Context, userID uint) (*dto.UserDTO, error)
}

// UserFlowImpl implements the user business flow
type UserFlowImpl struct {
	userRepo         repository.UserRepository
	auditRepo        repository.AuditLogRepository
	tokenService     services.TokenService
	verificationFlow VerificationFlow
	bcryptCost       int
}

// NewUserFlow creates a new user flow instance
func NewUserFlow(
	userRepo repository.UserRepository,
	auditRepo repository.AuditLogRepository,
	tokenService services.TokenService,
	verificationFlow VerificationFlow,
	bcryptCost int,
) UserFlow {
	if bcryptCost <= 0 {
		bcryptCost = utils.BcryptCost
	}
	return &UserFlowImpl{
		userRepo:         userRepo,
		auditRepo:        auditRepo,
		tokenService:     tokenService,
		verificationFlow: verificationFlow,
		bcryptCost:       bcryptCost,
	}
}

// Register creates a user and sends the email verification link
func (f *UserFlowImpl) Register(ctx context.Context, req *dto.UserRegisterRequest, metadata *ClientMetadata) (*dto.UserRegisterResponse, error) {
	username := strings.TrimSpace(req.Username)
	email := utils.NormalizeEmail(req.Email)

	existing, err := f.userRepo.ByUsername(ctx, username)
	if err != nil {
		return nil, NewBusinessError("USER_REGISTRATION_FAILED", "User registration failed", err)
	}
	if existing != nil {
		return nil, NewBusinessError("USER_REGISTRATION_FAILED", "User registration failed", ErrUsernameAlreadyExists)
	}
	existing, err = f.userRepo.ByEmail(ctx, email)
	if err != nil {
		return nil, NewBusinessError("USER_REGISTRATION_FAILED", "User registration failed", err)
	}
	if existing != nil {
		return nil, NewBusinessError("USER_REGISTRATION_FAILED", "User registration failed", ErrEmailAlreadyExists)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), f.bcryptCost)
	if err != nil {
		return nil, NewBusinessError("USER_REGISTRATION_FAILED", "User registration failed", err)
	}
	token, err := GenerateEmailToken()
	if err != nil {
		return nil, NewBusinessError("USER_REGISTRATION_FAILED", "User registration failed", err)
	}

	now := utils.UTCNow()
	user := &models.User{
		UUID:         uuid.New(),
		Username:     username,
		PasswordHash: string(hash),
		Email:        email,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		IsActive:     utils.ToPtr(true),
		VerificationState: models.VerificationState{
			EmailVerified:           utils.ToPtr(false),
			EmailVerificationToken:  &token,
			EmailVerificationSentAt: &now,
			PhoneVerified:           utils.ToPtr(false),
		},
	}

	if err := f.userRepo.Save(ctx, user); err != nil {
		errMsg := fmt.Sprintf("User registration failed: %s", err.Error())
		_ = writeAudit(ctx, f.auditRepo, models.AuditActorUser, nil, models.AuditActionUserRegistered, errMsg, false, &errMsg, metadata)
		return nil, NewBusinessError("USER_REGISTRATION_FAILED", "User registration failed", err)
	}

	msg := fmt.Sprintf("User registered: %d", user.ID)
	_ = writeAudit(ctx, f.auditRepo, models.AuditActorUser, &user.ID, models.AuditActionUserRegistered, msg, true, nil, metadata)

	f.verificationFlow.Dispatch(user.VerificationTarget(), models.VerificationKindEmail, token, metadata)

	return &dto.UserRegisterResponse{
		Message:              "Registration successful. Please check your email to verify your account.",
		UserID:               user.ID,
		RequiresVerification: true,
	}, nil
}

// Login authenticates a user; the email must be verified first
func (f *UserFlowImpl) Login(ctx context.Context, req *dto.LoginRequest, metadata *ClientMetadata) (*dto.UserLoginResponse, error) {
	user, err := f.userRepo.ByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		return nil, NewBusinessError("USER_LOGIN_FAILED", "Login failed", err)
	}

	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		var actorID *uint
		if user != nil {
			actorID = &user.ID
		}
		errMsg := fmt.Sprintf("User login failed for %q: invalid credentials", req.Username)
		_ = writeAudit(ctx, f.auditRepo, models.AuditActorUser, actorID, models.AuditActionLoginFailed, errMsg, false, &errMsg, metadata)
		return nil, NewBusinessError("USER_LOGIN_FAILED", "Invalid username or password", ErrInvalidCredentials)
	}

	if !utils.IsTrue(user.IsActive) {
		return nil, NewBusinessError("ACCOUNT_INACTIVE", "Your account has been deactivated", ErrAccountInactive)
	}
	if !user.IsVerified(models.VerificationKindEmail) {
		errMsg := fmt.Sprintf("User %d login refused: email not verified", user.ID)
		_ = writeAudit(ctx, f.auditRepo, models.AuditActorUser, &user.ID, models.AuditActionLoginFailed, errMsg, false, &errMsg, metadata)
		return nil, NewBusinessError("VERIFICATION_REQUIRED", "Please verify your email before logging in", ErrVerificationRequired)
	}

	access, refresh, err := f.tokenService.GenerateTokens(services.SubjectUser, user.ID)
	if err != nil {
		return nil, NewBusinessError("USER_LOGIN_FAILED", "Login failed", err)
	}

	now := utils.UTCNow()
	if err := f.userRepo.TouchLastLogin(ctx, user.ID, now); err != nil {
		return nil, NewBusinessError("USER_LOGIN_FAILED", "Login failed", err)
	}
	user.LastLoginAt = &now

	msg := fmt.Sprintf("User logged in: %d", user.ID)
	_ = writeAudit(ctx, f.auditRepo, models.AuditActorUser, &user.ID, models.AuditActionLoginSuccess, msg, true, nil, metadata)

	return &dto.UserLoginResponse{
		User: ToUserDTO(*user),
		Session: dto.TokenPairDTO{
			AccessToken:  access,
			RefreshToken: refresh,
			ExpiresIn:    int(f.tokenService.AccessTokenTTL().Seconds()),
			TokenType:    "Bearer",
		},
	}, nil
}

// Refresh rotates a user's token pair
func (f *UserFlowImpl) Refresh(ctx context.Context, req *dto.RefreshTokenRequest) (*dto.TokenPairDTO, error) {
	return refreshPair(ctx, f.tokenService, services.SubjectUser, req.RefreshToken)
}

// Logout revokes the access token and, when supplied, the refresh token
func (f *UserFlowImpl) Logout(ctx context.Context, userID uint, accessToken string, refreshToken *string, metadata *ClientMetadata) error {
	if err := f.tokenService.RevokeToken(ctx, accessToken); err != nil {
		return NewBusinessError("USER_LOGOUT_FAILED", "Logout failed", err)
	}
	if refreshToken != nil && *refreshToken != "" {
		// a malformed refresh token is simply not revocable
		_ = f.tokenService.RevokeToken(ctx, *refreshToken)
	}

	msg := fmt.Sprintf("User logged out: %d", userID)
	_ = writeAudit(ctx, f.auditRepo, models.AuditActorUser, &userID, models.AuditActionLogout, msg, true, nil, metadata)
	return nil
}

// Me returns the authenticated user
func (f *UserFlowImpl) Me(ctx context.Context, userID uint) (*dto.UserDTO, error) {
	user, err := f.userRepo.ByID(ctx, userID)
	if err != nil {
		return nil, NewBusinessError("GET_USER_FAILED", "Failed to load user", err)
	}
	if user == nil {
		return nil, NewBusinessError("GET_USER_FAILED", "Failed to load user", ErrUserNotFound)
	}
	out := ToUserDTO(*user)
	return &out, nil
}
