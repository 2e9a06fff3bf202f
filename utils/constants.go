package utils

import (
	"time"
)

type contextKey string

// Request-scoped context keys set by handlers
const (
	RequestIDKey  contextKey = "request_id"
	UserAgentKey  contextKey = "user_agent"
	IPAddressKey  contextKey = "ip_address"
	EndpointKey   contextKey = "endpoint"
	TimeoutKey    contextKey = "timeout"
	CancelFuncKey contextKey = "cancel_func"
)

// Token and session time constants
const (
	// AccessTokenTTL is the time-to-live for partner/user access tokens (24 hours)
	AccessTokenTTL = 24 * time.Hour

	// RefreshTokenTTL is the time-to-live for refresh tokens (7 days)
	RefreshTokenTTL = 7 * 24 * time.Hour

	// InstitutionalSessionTTL is how long an institutional session stays valid (30 days)
	InstitutionalSessionTTL = 30 * 24 * time.Hour

	// AdminSessionTTL is the default lifetime of an admin session
	AdminSessionTTL = 12 * time.Hour
)

// Verification windows, measured from the moment a token or code is issued
const (
	EmailVerificationWindow = 24 * time.Hour
	PhoneVerificationWindow = 10 * time.Minute

	// EmailTokenBytes is the amount of randomness in an email verification token
	EmailTokenBytes = 32

	// SessionTokenBytes is the amount of randomness in an opaque session token
	SessionTokenBytes = 32
)

// Credential constants
const (
	BcryptCost             = 12
	GeneratedPasswordLen   = 16
	DefaultRejectionReason = "Application did not meet requirements"
	ApprovedByAdmin        = "admin"
)

// Cookie names
const (
	InstitutionalSessionCookie = "institutional_session"
	AdminSessionCookie         = "admin_session"
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)
