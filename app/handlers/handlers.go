// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"go.uber.org/zap"

	"github.com/amirphl/realty-workflow/app/dto"
	businessflow "github.com/amirphl/realty-workflow/business_flow"
	"github.com/amirphl/realty-workflow/utils"
)

// baseHandler carries the response helpers shared by every handler
type baseHandler struct {
	validator *validator.Validate
	logger    *zap.Logger
}

func newBaseHandler(logger *zap.Logger) baseHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return baseHandler{validator: validator.New(), logger: logger}
}

func (h *baseHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *baseHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// bindJSON decodes and validates the body. It reports false after writing the 400 response.
func (h *baseHandler) bindJSON(c fiber.Ctx, req any) bool {
	if err := c.Bind().JSON(req); err != nil {
		_ = h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
		return false
	}
	return h.validate(c, req)
}

func (h *baseHandler) bindQuery(c fiber.Ctx, req any) bool {
	if err := c.Bind().Query(req); err != nil {
		_ = h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid query parameters", "INVALID_REQUEST", err.Error())
		return false
	}
	return h.validate(c, req)
}

func (h *baseHandler) validate(c fiber.Ctx, req any) bool {
	err := h.validator.Struct(req)
	if err == nil {
		return true
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		_ = h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", err.Error())
		return false
	}
	validationErrors := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		validationErrors = append(validationErrors, getValidationErrorMessage(fe))
	}
	_ = h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	return false
}

// paramID parses a positive numeric path parameter, writing a 400 when it is not one
func (h *baseHandler) paramID(c fiber.Ctx, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || id == 0 {
		_ = h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid "+name, "INVALID_ID", nil)
		return 0, false
	}
	return uint(id), true
}

func (h *baseHandler) metadata(c fiber.Ctx) *businessflow.ClientMetadata {
	md := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	md.SetRequestID(requestid.FromContext(c))
	return md
}

// createRequestContext creates a context with the default timeout and request-scoped values
func (h *baseHandler) createRequestContext(c fiber.Ctx, endpoint string) (context.Context, context.CancelFunc) {
	return h.createRequestContextWithTimeout(c, endpoint, 30*time.Second)
}

func (h *baseHandler) createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	ctx = context.WithValue(ctx, utils.RequestIDKey, requestid.FromContext(c))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, timeout)

	return ctx, cancel
}

type errorMapping struct {
	is      func(error) bool
	status  int
	code    string
	message string
}

// flowErrors maps the business error taxonomy to HTTP statuses. Order matters: the first match wins.
var flowErrors = []errorMapping{
	{businessflow.IsNotFound, fiber.StatusNotFound, "NOT_FOUND", "Resource not found"},
	{businessflow.IsInvalidCredentials, fiber.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid username or password"},
	{businessflow.IsUnauthenticated, fiber.StatusUnauthorized, "UNAUTHENTICATED", "Authentication required"},
	{businessflow.IsSessionExpired, fiber.StatusUnauthorized, "SESSION_EXPIRED", "Session expired"},
	{businessflow.IsNotApproved, fiber.StatusForbidden, "NOT_APPROVED", "Account is not approved"},
	{businessflow.IsAccountInactive, fiber.StatusForbidden, "ACCOUNT_INACTIVE", "Account is inactive"},
	{businessflow.IsVerificationRequired, fiber.StatusForbidden, "VERIFICATION_REQUIRED", "Verification required"},
	{businessflow.IsUsernameAlreadyExists, fiber.StatusBadRequest, "USERNAME_EXISTS", "Username already exists"},
	{businessflow.IsEmailAlreadyExists, fiber.StatusBadRequest, "EMAIL_EXISTS", "Email already exists"},
	{businessflow.IsInvalidToken, fiber.StatusBadRequest, "INVALID_TOKEN", "Invalid or already used verification token"},
	{businessflow.IsVerificationExpired, fiber.StatusBadRequest, "VERIFICATION_EXPIRED", "Verification has expired. Please request a new one"},
	{businessflow.IsAlreadyVerified, fiber.StatusConflict, "ALREADY_VERIFIED", "Already verified"},
	{businessflow.IsInvalidVerificationKind, fiber.StatusBadRequest, "INVALID_VERIFICATION_TYPE", "Type must be email or phone"},
	{businessflow.IsNoPhoneOnFile, fiber.StatusBadRequest, "NO_PHONE", "No phone number on file"},
	{businessflow.IsTooManyRequests, fiber.StatusTooManyRequests, "TOO_MANY_REQUESTS", "Too many requests. Please try again later"},
	{businessflow.IsNotPending, fiber.StatusConflict, "NOT_PENDING", "Application has already been decided"},
	{businessflow.IsInvalidCaptcha, fiber.StatusBadRequest, "CAPTCHA_INVALID", "Captcha validation failed"},
	{businessflow.IsCaptchaUnavailable, fiber.StatusServiceUnavailable, "CAPTCHA_NOT_AVAILABLE", "Captcha service not available"},
	{businessflow.IsInvalidStatus, fiber.StatusBadRequest, "INVALID_STATUS", "Invalid status"},
	{businessflow.IsInvalidAuctionDate, fiber.StatusBadRequest, "INVALID_AUCTION_DATE", "auction_date must be YYYY-MM-DD or RFC3339"},
	{businessflow.IsNothingToUpdate, fiber.StatusBadRequest, "NOTHING_TO_UPDATE", "At least one field must be provided for update"},
}

// handleFlowError writes the response for a business flow failure
func (h *baseHandler) handleFlowError(c fiber.Ctx, err error, fallbackMessage, fallbackCode string) error {
	for _, m := range flowErrors {
		if m.is(err) {
			message := m.message
			var be *businessflow.BusinessError
			// gate errors carry a user-facing reason
			if errors.As(err, &be) && (m.status == fiber.StatusForbidden) {
				message = be.Message
			}
			return h.ErrorResponse(c, m.status, message, m.code, nil)
		}
	}

	h.logger.Error(fallbackMessage,
		zap.String("request_id", requestid.FromContext(c)),
		zap.String("path", c.Path()),
		zap.Error(err),
	)
	return h.ErrorResponse(c, fiber.StatusInternalServerError, fallbackMessage, fallbackCode, nil)
}

func getValidationErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return err.Field() + " is required"
	case "email":
		return "Invalid email format"
	case "min":
		return err.Field() + " must be at least " + err.Param() + " characters"
	case "max":
		return err.Field() + " must be at most " + err.Param() + " characters"
	case "len":
		return err.Field() + " must be exactly " + err.Param() + " characters"
	case "oneof":
		return err.Field() + " must be one of: " + err.Param()
	case "numeric":
		return err.Field() + " must contain only numbers"
	case "url":
		return err.Field() + " must be a valid URL"
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", err.Field(), err.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", err.Field(), err.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", err.Field(), err.Param())
	default:
		return err.Field() + " is invalid"
	}
}

// setSessionCookie stores an opaque session token in an httpOnly cookie that expires with the session
func setSessionCookie(c fiber.Ctx, name, token, expiresAt string, secure bool) {
	expires, err := time.Parse(time.RFC3339, expiresAt)
	if err != nil {
		expires = time.Now().Add(24 * time.Hour)
	}
	maxAge := int(time.Until(expires).Seconds())
	if maxAge <= 0 {
		maxAge = -1
	}
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		MaxAge:   maxAge,
		HTTPOnly: true,
		Secure:   secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func clearSessionCookie(c fiber.Ctx, name string, secure bool) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HTTPOnly: true,
		Secure:   secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}
