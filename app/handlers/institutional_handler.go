package handlers

import (
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"

	"github.com/amirphl/realty-workflow/app/dto"
	"github.com/amirphl/realty-workflow/app/middleware"
	businessflow "github.com/amirphl/realty-workflow/business_flow"
	"github.com/amirphl/realty-workflow/models"
	"github.com/amirphl/realty-workflow/utils"
)

// InstitutionalHandler serves the approved investor portal. Sessions are opaque tokens
// carried in the institutional_session cookie or as a bearer token.
type InstitutionalHandler struct {
	baseHandler
	flow         businessflow.InstitutionalAuthFlow
	cookieSecure bool
}

func NewInstitutionalHandler(flow businessflow.InstitutionalAuthFlow, cookieSecure bool, logger *zap.Logger) *InstitutionalHandler {
	return &InstitutionalHandler{
		baseHandler:  newBaseHandler(logger),
		flow:         flow,
		cookieSecure: cookieSecure,
	}
}

// Login
// @Summary Institutional Login
// @Description Only approved and active investors can log in. Sets the institutional_session cookie.
// @Tags Institutional
// @Accept json
// @Produce json
// @Param request body dto.LoginRequest true "Credentials issued on approval"
// @Success 200 {object} dto.APIResponse{data=dto.InstitutionalLoginResponse}
// @Failure 401 {object} dto.APIResponse "Invalid credentials"
// @Failure 403 {object} dto.APIResponse "Account not approved"
// @Router /api/v1/institutional/login [post]
func (h *InstitutionalHandler) Login(c fiber.Ctx) error {
	var req dto.LoginRequest
	if !h.bindJSON(c, &req) {
		return nil
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/institutional/login")
	defer cancel()

	res, err := h.flow.Login(ctx, &req, h.metadata(c))
	if err != nil {
		return h.handleFlowError(c, err, "Login failed", "LOGIN_FAILED")
	}

	setSessionCookie(c, utils.InstitutionalSessionCookie, res.SessionToken, res.ExpiresAt, h.cookieSecure)
	return h.SuccessResponse(c, fiber.StatusOK, "Login successful", res)
}

// Logout deletes the session row and clears the cookie
// @Summary Institutional Logout
// @Tags Institutional
// @Produce json
// @Security InstitutionalSession
// @Success 200 {object} dto.APIResponse
// @Router /api/v1/institutional/logout [post]
func (h *InstitutionalHandler) Logout(c fiber.Ctx) error {
	token, _ := c.Locals(middleware.LocalSessionToken).(string)

	ctx, cancel := h.createRequestContext(c, "/api/v1/institutional/logout")
	defer cancel()

	if err := h.flow.Logout(ctx, token, h.metadata(c)); err != nil {
		return h.handleFlowError(c, err, "Logout failed", "LOGOUT_FAILED")
	}

	clearSessionCookie(c, utils.InstitutionalSessionCookie, h.cookieSecure)
	return h.SuccessResponse(c, fiber.StatusOK, "Logged out", nil)
}

// @Summary Current Investor
// @Tags Institutional
// @Produce json
// @Security InstitutionalSession
// @Success 200 {object} dto.APIResponse{data=dto.InvestorDTO}
// @Router /api/v1/institutional/me [get]
func (h *InstitutionalHandler) Me(c fiber.Ctx) error {
	investor, ok := c.Locals(middleware.LocalInvestor).(*models.InstitutionalInvestor)
	if !ok || investor == nil {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Authentication required", "UNAUTHENTICATED", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/institutional/me")
	defer cancel()

	res, err := h.flow.Me(ctx, investor.ID)
	if err != nil {
		return h.handleFlowError(c, err, "Failed to load investor", "INVESTOR_LOOKUP_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Investor retrieved", res)
}

// CreateBid
// @Summary Place Institutional Bid
// @Tags Institutional
// @Accept json
// @Produce json
// @Security InstitutionalSession
// @Param Idempotency-Key header string false "Replay protection key"
// @Param request body dto.CreateInstitutionalBidRequest true "Bid"
// @Success 201 {object} dto.APIResponse{data=dto.InstitutionalBidDTO}
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Router /api/v1/institutional/bids [post]
func (h *InstitutionalHandler) CreateBid(c fiber.Ctx) error {
	investor, ok := c.Locals(middleware.LocalInvestor).(*models.InstitutionalInvestor)
	if !ok || investor == nil {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Authentication required", "UNAUTHENTICATED", nil)
	}

	var req dto.CreateInstitutionalBidRequest
	if !h.bindJSON(c, &req) {
		return nil
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/institutional/bids")
	defer cancel()

	bid, err := h.flow.CreateBid(ctx, investor.ID, &req, h.metadata(c))
	if err != nil {
		return h.handleFlowError(c, err, "Failed to place bid", "CREATE_BID_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Bid submitted", bid)
}

// @Summary List Institutional Bids
// @Tags Institutional
// @Produce json
// @Security InstitutionalSession
// @Success 200 {object} dto.APIResponse{data=[]dto.InstitutionalBidDTO}
// @Router /api/v1/institutional/bids [get]
func (h *InstitutionalHandler) ListBids(c fiber.Ctx) error {
	investor, ok := c.Locals(middleware.LocalInvestor).(*models.InstitutionalInvestor)
	if !ok || investor == nil {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Authentication required", "UNAUTHENTICATED", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/institutional/bids")
	defer cancel()

	bids, err := h.flow.ListBids(ctx, investor.ID)
	if err != nil {
		return h.handleFlowError(c, err, "Failed to list bids", "LIST_BIDS_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Bids retrieved", bids)
}
