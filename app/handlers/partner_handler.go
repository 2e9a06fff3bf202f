package handlers

import (
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"

	"github.com/amirphl/realty-workflow/app/dto"
	"github.com/amirphl/realty-workflow/app/middleware"
	businessflow "github.com/amirphl/realty-workflow/business_flow"
)

// PartnerHandlerInterface defines the contract for partner portal handlers
type PartnerHandlerInterface interface {
	Register(c fiber.Ctx) error
	Login(c fiber.Ctx) error
	Refresh(c fiber.Ctx) error
	Logout(c fiber.Ctx) error
	Me(c fiber.Ctx) error
}

// PartnerHandler serves partner registration and JWT sessions
type PartnerHandler struct {
	baseHandler
	partnerFlow businessflow.PartnerFlow
}

func NewPartnerHandler(partnerFlow businessflow.PartnerFlow, logger *zap.Logger) *PartnerHandler {
	return &PartnerHandler{
		baseHandler: newBaseHandler(logger),
		partnerFlow: partnerFlow,
	}
}

// Register handles partner applications
// @Summary Register Partner
// @Description Create a pending partner account. Email and phone verification are sent, and an admin must approve before login.
// @Tags Partners
// @Accept json
// @Produce json
// @Param Idempotency-Key header string false "Replay protection key"
// @Param request body dto.PartnerRegisterRequest true "Partner application"
// @Success 201 {object} dto.APIResponse{data=dto.PartnerRegisterResponse}
// @Failure 400 {object} dto.APIResponse "Validation error or duplicate username/email"
// @Router /api/v1/partners/register [post]
func (h *PartnerHandler) Register(c fiber.Ctx) error {
	var req dto.PartnerRegisterRequest
	if !h.bindJSON(c, &req) {
		return nil
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/partners/register")
	defer cancel()

	res, err := h.partnerFlow.Register(ctx, &req, h.metadata(c))
	if err != nil {
		return h.handleFlowError(c, err, "Partner registration failed", "PARTNER_REGISTRATION_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusCreated, res.Message, res)
}

// Login issues an access and refresh token pair
// @Summary Partner Login
// @Description Requires an approved partner with both email and phone verified.
// @Tags Partners
// @Accept json
// @Produce json
// @Param request body dto.LoginRequest true "Credentials"
// @Success 200 {object} dto.APIResponse{data=dto.PartnerLoginResponse}
// @Failure 401 {object} dto.APIResponse "Invalid credentials"
// @Failure 403 {object} dto.APIResponse "Not approved or not verified"
// @Router /api/v1/partners/login [post]
func (h *PartnerHandler) Login(c fiber.Ctx) error {
	var req dto.LoginRequest
	if !h.bindJSON(c, &req) {
		return nil
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/partners/login")
	defer cancel()

	res, err := h.partnerFlow.Login(ctx, &req, h.metadata(c))
	if err != nil {
		return h.handleFlowError(c, err, "Login failed", "LOGIN_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Login successful", res)
}

// Refresh rotates the token pair
// @Summary Refresh Partner Token
// @Tags Partners
// @Accept json
// @Produce json
// @Param request body dto.RefreshTokenRequest true "Refresh token"
// @Success 200 {object} dto.APIResponse{data=dto.TokenPairDTO}
// @Failure 401 {object} dto.APIResponse "Invalid refresh token"
// @Router /api/v1/partners/refresh [post]
func (h *PartnerHandler) Refresh(c fiber.Ctx) error {
	var req dto.RefreshTokenRequest
	if !h.bindJSON(c, &req) {
		return nil
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/partners/refresh")
	defer cancel()

	pair, err := h.partnerFlow.Refresh(ctx, &req)
	if err != nil {
		return h.handleFlowError(c, err, "Token refresh failed", "REFRESH_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Token refreshed", pair)
}

// Logout revokes the presented access token and, when supplied, the refresh token
// @Summary Partner Logout
// @Tags Partners
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.LogoutRequest false "Optional refresh token to revoke"
// @Success 200 {object} dto.APIResponse
// @Router /api/v1/partners/logout [post]
func (h *PartnerHandler) Logout(c fiber.Ctx) error {
	partnerID, _ := c.Locals(middleware.LocalPartnerID).(uint)
	accessToken, _ := c.Locals(middleware.LocalAccessToken).(string)
	if partnerID == 0 || accessToken == "" {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Authentication required", "UNAUTHENTICATED", nil)
	}

	var req dto.LogoutRequest
	if len(c.Body()) > 0 {
		if !h.bindJSON(c, &req) {
			return nil
		}
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/partners/logout")
	defer cancel()

	if err := h.partnerFlow.Logout(ctx, partnerID, accessToken, req.RefreshToken, h.metadata(c)); err != nil {
		return h.handleFlowError(c, err, "Logout failed", "LOGOUT_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Logged out", nil)
}

// Me returns the authenticated partner
// @Summary Current Partner
// @Tags Partners
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.PartnerDTO}
// @Router /api/v1/partners/me [get]
func (h *PartnerHandler) Me(c fiber.Ctx) error {
	partnerID, ok := c.Locals(middleware.LocalPartnerID).(uint)
	if !ok || partnerID == 0 {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Authentication required", "UNAUTHENTICATED", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/partners/me")
	defer cancel()

	partner, err := h.partnerFlow.Me(ctx, partnerID)
	if err != nil {
		return h.handleFlowError(c, err, "Failed to load partner", "PARTNER_LOOKUP_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Partner retrieved", partner)
}
