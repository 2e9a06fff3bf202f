// Package middleware contains HTTP middleware functions for request processing
package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/amirphl/realty-workflow/app/dto"
	"github.com/amirphl/realty-workflow/app/services"
	businessflow "github.com/amirphl/realty-workflow/business_flow"
	"github.com/amirphl/realty-workflow/models"
	"github.com/amirphl/realty-workflow/utils"
)

// Locals keys set by the auth middlewares
const (
	LocalPartnerID    = "partner_id"
	LocalUserID       = "user_id"
	LocalAccessToken  = "access_token"
	LocalTokenClaims  = "token_claims"
	LocalInvestor     = "investor"
	LocalSessionToken = "session_token"
	LocalAdmin        = "admin"
	LocalAdminToken   = "admin_session_token"
)

// InvestorAuthenticator resolves an institutional session token
type InvestorAuthenticator interface {
	Authenticate(ctx context.Context, token string) (*models.InstitutionalInvestor, error)
}

// AdminAuthenticator resolves an admin session token
type AdminAuthenticator interface {
	Authenticate(ctx context.Context, token string) (*models.Admin, error)
}

// AuthMiddleware guards the partner, user, institutional and admin route groups
type AuthMiddleware struct {
	tokenService services.TokenService
	investors    InvestorAuthenticator
	admins       AdminAuthenticator
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(tokenService services.TokenService, investors InvestorAuthenticator, admins AdminAuthenticator) *AuthMiddleware {
	return &AuthMiddleware{
		tokenService: tokenService,
		investors:    investors,
		admins:       admins,
	}
}

func unauthorized(c fiber.Ctx, message, code string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error:   dto.ErrorDetail{Code: code},
	})
}

// bearerToken returns the token from "Authorization: Bearer <token>", or "" when absent.
// ok is false when a header is present but malformed.
func bearerToken(c fiber.Ctx) (token string, ok bool) {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return "", true
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer ")), true
}

// Authenticate validates a JWT access token minted for subjectType (partner or user)
func (m *AuthMiddleware) Authenticate(subjectType string) fiber.Handler {
	return func(c fiber.Ctx) error {
		token, ok := bearerToken(c)
		if !ok {
			return unauthorized(c, "Invalid authorization header format. Expected 'Bearer <token>'", "INVALID_AUTHORIZATION_FORMAT")
		}
		if token == "" {
			return unauthorized(c, "Authorization header is required", "MISSING_AUTHORIZATION_HEADER")
		}

		// ValidateToken also checks the revocation list
		claims, err := m.tokenService.ValidateToken(c.Context(), token)
		if err != nil {
			var code, message string
			switch {
			case errors.Is(err, services.ErrTokenExpired):
				code, message = "TOKEN_EXPIRED", "Access token has expired"
			case errors.Is(err, services.ErrTokenRevoked):
				code, message = "TOKEN_REVOKED", "Access token has been revoked"
			case errors.Is(err, services.ErrTokenInvalid):
				code, message = "TOKEN_INVALID", "Invalid access token"
			default:
				code, message = "TOKEN_VALIDATION_FAILED", "Token validation failed"
			}
			return unauthorized(c, message, code)
		}
		if claims.TokenType != services.TokenTypeAccess || claims.SubjectType != subjectType {
			return unauthorized(c, "Invalid access token", "TOKEN_INVALID")
		}

		switch subjectType {
		case services.SubjectPartner:
			c.Locals(LocalPartnerID, claims.SubjectID)
		case services.SubjectUser:
			c.Locals(LocalUserID, claims.SubjectID)
		}
		c.Locals(LocalAccessToken, token)
		c.Locals(LocalTokenClaims, claims)

		return c.Next()
	}
}

// InstitutionalAuthenticate accepts the session token as a bearer token or the institutional_session cookie
func (m *AuthMiddleware) InstitutionalAuthenticate() fiber.Handler {
	return func(c fiber.Ctx) error {
		token, ok := bearerToken(c)
		if !ok {
			return unauthorized(c, "Invalid authorization header format. Expected 'Bearer <token>'", "INVALID_AUTHORIZATION_FORMAT")
		}
		if token == "" {
			token = c.Cookies(utils.InstitutionalSessionCookie)
		}
		if token == "" {
			return unauthorized(c, "Authentication required", "UNAUTHENTICATED")
		}

		investor, err := m.investors.Authenticate(c.Context(), token)
		if err != nil {
			switch {
			case businessflow.IsSessionExpired(err):
				return unauthorized(c, "Session expired", "SESSION_EXPIRED")
			case businessflow.IsAccountInactive(err):
				return unauthorized(c, "Account is not active", "ACCOUNT_INACTIVE")
			case businessflow.IsUnauthenticated(err):
				return unauthorized(c, "Invalid session", "UNAUTHENTICATED")
			default:
				return c.Status(fiber.StatusInternalServerError).JSON(dto.APIResponse{
					Success: false,
					Message: "Authentication failed",
					Error:   dto.ErrorDetail{Code: "AUTHENTICATION_FAILED"},
				})
			}
		}

		c.Locals(LocalInvestor, investor)
		c.Locals(LocalSessionToken, token)
		return c.Next()
	}
}

// AdminAuthenticate checks the server-side admin session from a bearer token or the admin_session cookie
func (m *AuthMiddleware) AdminAuthenticate() fiber.Handler {
	return func(c fiber.Ctx) error {
		token, ok := bearerToken(c)
		if !ok {
			return unauthorized(c, "Invalid authorization header format. Expected 'Bearer <token>'", "INVALID_AUTHORIZATION_FORMAT")
		}
		if token == "" {
			token = c.Cookies(utils.AdminSessionCookie)
		}
		if token == "" {
			return unauthorized(c, "Admin authentication required", "UNAUTHENTICATED")
		}

		admin, err := m.admins.Authenticate(c.Context(), token)
		if err != nil {
			if businessflow.IsUnauthenticated(err) || businessflow.IsAccountInactive(err) {
				return unauthorized(c, "Invalid admin session", "UNAUTHENTICATED")
			}
			return c.Status(fiber.StatusInternalServerError).JSON(dto.APIResponse{
				Success: false,
				Message: "Authentication failed",
				Error:   dto.ErrorDetail{Code: "AUTHENTICATION_FAILED"},
			})
		}

		c.Locals(LocalAdmin, admin)
		c.Locals(LocalAdminToken, token)
		return c.Next()
	}
}
