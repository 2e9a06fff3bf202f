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

// AdminHandlerInterface defines the contract for admin handlers
type AdminHandlerInterface interface {
	InitCaptcha(c fiber.Ctx) error
	Login(c fiber.Ctx) error
	Logout(c fiber.Ctx) error
	Me(c fiber.Ctx) error

	ListPartners(c fiber.Ctx) error
	ApprovePartner(c fiber.Ctx) error
	RejectPartner(c fiber.Ctx) error
	ListInvestors(c fiber.Ctx) error
	ApproveInvestor(c fiber.Ctx) error
	RejectInvestor(c fiber.Ctx) error
}

// AdminHandler implements AdminHandlerInterface
type AdminHandler struct {
	baseHandler
	authFlow     businessflow.AdminAuthFlow
	approvalFlow businessflow.ApprovalFlow
	cookieSecure bool
}

func NewAdminHandler(authFlow businessflow.AdminAuthFlow, approvalFlow businessflow.ApprovalFlow, cookieSecure bool, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		baseHandler:  newBaseHandler(logger),
		authFlow:     authFlow,
		approvalFlow: approvalFlow,
		cookieSecure: cookieSecure,
	}
}

// InitCaptcha starts the admin login by returning a rotate captcha challenge
// @Summary Admin captcha init
// @Description Initialize rotate captcha for admin login (returns base64 images and challenge ID)
// @Tags Admin Authentication
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.AdminCaptchaInitResponse} "Captcha initialized"
// @Failure 503 {object} dto.APIResponse "Captcha disabled"
// @Router /api/v1/admin/captcha [get]
func (h *AdminHandler) InitCaptcha(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/captcha")
	defer cancel()

	resp, err := h.authFlow.InitCaptcha(ctx)
	if err != nil {
		return h.handleFlowError(c, err, "Admin captcha init failed", "ADMIN_CAPTCHA_INIT_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Captcha initialized", resp)
}

// Login authenticates an admin and opens a server-side session
// @Summary Admin login
// @Description Verify the captcha answer when enabled, then username and password. Sets the admin_session cookie.
// @Tags Admin Authentication
// @Accept json
// @Produce json
// @Param request body dto.AdminLoginRequest true "Admin login data"
// @Success 200 {object} dto.APIResponse{data=dto.AdminLoginResponse} "Login successful"
// @Failure 400 {object} dto.APIResponse "Captcha validation failed"
// @Failure 401 {object} dto.APIResponse "Invalid credentials"
// @Router /api/v1/admin/login [post]
func (h *AdminHandler) Login(c fiber.Ctx) error {
	var req dto.AdminLoginRequest
	if !h.bindJSON(c, &req) {
		return nil
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/login")
	defer cancel()

	res, err := h.authFlow.Login(ctx, &req, h.metadata(c))
	if err != nil {
		return h.handleFlowError(c, err, "Admin login failed", "ADMIN_LOGIN_FAILED")
	}

	setSessionCookie(c, utils.AdminSessionCookie, res.SessionToken, res.ExpiresAt, h.cookieSecure)
	return h.SuccessResponse(c, fiber.StatusOK, "Login successful", res)
}

// @Summary Admin logout
// @Tags Admin Authentication
// @Produce json
// @Security AdminSession
// @Success 200 {object} dto.APIResponse
// @Router /api/v1/admin/logout [post]
func (h *AdminHandler) Logout(c fiber.Ctx) error {
	token, _ := c.Locals(middleware.LocalAdminToken).(string)

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/logout")
	defer cancel()

	if err := h.authFlow.Logout(ctx, token, h.metadata(c)); err != nil {
		return h.handleFlowError(c, err, "Admin logout failed", "ADMIN_LOGOUT_FAILED")
	}

	clearSessionCookie(c, utils.AdminSessionCookie, h.cookieSecure)
	return h.SuccessResponse(c, fiber.StatusOK, "Logged out", nil)
}

// @Summary Current admin
// @Tags Admin Authentication
// @Produce json
// @Security AdminSession
// @Success 200 {object} dto.APIResponse{data=dto.AdminDTO}
// @Router /api/v1/admin/me [get]
func (h *AdminHandler) Me(c fiber.Ctx) error {
	admin, ok := h.currentAdmin(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Admin authentication required", "UNAUTHENTICATED", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/me")
	defer cancel()

	res, err := h.authFlow.Me(ctx, admin.ID)
	if err != nil {
		return h.handleFlowError(c, err, "Failed to load admin", "ADMIN_LOOKUP_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Admin retrieved", res)
}

// ListPartners
// @Summary List partner applications
// @Tags Admin Approvals
// @Produce json
// @Security AdminSession
// @Param status query string false "pending, approved or rejected"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} dto.APIResponse{data=dto.ListPartnersResponse}
// @Router /api/v1/admin/partners [get]
func (h *AdminHandler) ListPartners(c fiber.Ctx) error {
	var req dto.ListByStatusRequest
	if !h.bindQuery(c, &req) {
		return nil
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/partners")
	defer cancel()

	res, err := h.approvalFlow.ListPartners(ctx, &req)
	if err != nil {
		return h.handleFlowError(c, err, "Failed to list partners", "LIST_PARTNERS_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Partners retrieved", res)
}

// ApprovePartner
// @Summary Approve partner
// @Tags Admin Approvals
// @Produce json
// @Security AdminSession
// @Param id path int true "Partner ID"
// @Success 200 {object} dto.APIResponse{data=dto.PartnerDecisionResponse}
// @Failure 404 {object} dto.APIResponse "Partner not found"
// @Failure 409 {object} dto.APIResponse "Already decided"
// @Router /api/v1/admin/partners/{id}/approve [post]
func (h *AdminHandler) ApprovePartner(c fiber.Ctx) error {
	admin, ok := h.currentAdmin(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Admin authentication required", "UNAUTHENTICATED", nil)
	}
	id, ok := h.paramID(c, "id")
	if !ok {
		return nil
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/partners/:id/approve")
	defer cancel()

	res, err := h.approvalFlow.ApprovePartner(ctx, id, admin.Username, h.metadata(c))
	if err != nil {
		return h.handleFlowError(c, err, "Partner approval failed", "APPROVE_PARTNER_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, res.Message, res)
}

// RejectPartner
// @Summary Reject partner
// @Tags Admin Approvals
// @Accept json
// @Produce json
// @Security AdminSession
// @Param id path int true "Partner ID"
// @Param request body dto.RejectRequest false "Reason"
// @Success 200 {object} dto.APIResponse{data=dto.PartnerDecisionResponse}
// @Router /api/v1/admin/partners/{id}/reject [post]
func (h *AdminHandler) RejectPartner(c fiber.Ctx) error {
	admin, ok := h.currentAdmin(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Admin authentication required", "UNAUTHENTICATED", nil)
	}
	id, ok := h.paramID(c, "id")
	if !ok {
		return nil
	}
	var req dto.RejectRequest
	if len(c.Body()) > 0 {
		if !h.bindJSON(c, &req) {
			return nil
		}
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/partners/:id/reject")
	defer cancel()

	res, err := h.approvalFlow.RejectPartner(ctx, id, &req, admin.Username, h.metadata(c))
	if err != nil {
		return h.handleFlowError(c, err, "Partner rejection failed", "REJECT_PARTNER_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, res.Message, res)
}

// ListInvestors
// @Summary List institutional investor applications
// @Tags Admin Approvals
// @Produce json
// @Security AdminSession
// @Param status query string false "pending, approved or rejected"
// @Success 200 {object} dto.APIResponse{data=dto.ListInvestorsResponse}
// @Router /api/v1/admin/investors [get]
func (h *AdminHandler) ListInvestors(c fiber.Ctx) error {
	var req dto.ListByStatusRequest
	if !h.bindQuery(c, &req) {
		return nil
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/investors")
	defer cancel()

	res, err := h.approvalFlow.ListInvestors(ctx, &req)
	if err != nil {
		return h.handleFlowError(c, err, "Failed to list investors", "LIST_INVESTORS_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Investors retrieved", res)
}

// ApproveInvestor issues credentials to a pending investor. The plaintext password appears only in this response.
// @Summary Approve institutional investor
// @Tags Admin Approvals
// @Accept json
// @Produce json
// @Security AdminSession
// @Param id path int true "Investor ID"
// @Param request body dto.ApproveInvestorRequest false "Optional username and password; generated when omitted"
// @Success 200 {object} dto.APIResponse{data=dto.ApproveInvestorResponse}
// @Failure 404 {object} dto.APIResponse "Investor not found"
// @Failure 409 {object} dto.APIResponse "Already decided"
// @Router /api/v1/admin/investors/{id}/approve [post]
func (h *AdminHandler) ApproveInvestor(c fiber.Ctx) error {
	admin, ok := h.currentAdmin(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Admin authentication required", "UNAUTHENTICATED", nil)
	}
	id, ok := h.paramID(c, "id")
	if !ok {
		return nil
	}
	var req dto.ApproveInvestorRequest
	if len(c.Body()) > 0 {
		if !h.bindJSON(c, &req) {
			return nil
		}
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/investors/:id/approve")
	defer cancel()

	res, err := h.approvalFlow.ApproveInvestor(ctx, id, &req, admin.Username, h.metadata(c))
	if err != nil {
		return h.handleFlowError(c, err, "Investor approval failed", "APPROVE_INVESTOR_FAILED")
	}
	// never let a proxy cache the one-time password
	c.Set(fiber.HeaderCacheControl, "no-store")
	return h.SuccessResponse(c, fiber.StatusOK, res.Message, res)
}

// RejectInvestor
// @Summary Reject institutional investor
// @Tags Admin Approvals
// @Accept json
// @Produce json
// @Security AdminSession
// @Param id path int true "Investor ID"
// @Param request body dto.RejectRequest false "Reason"
// @Success 200 {object} dto.APIResponse{data=dto.InvestorDecisionResponse}
// @Router /api/v1/admin/investors/{id}/reject [post]
func (h *AdminHandler) RejectInvestor(c fiber.Ctx) error {
	admin, ok := h.currentAdmin(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Admin authentication required", "UNAUTHENTICATED", nil)
	}
	id, ok := h.paramID(c, "id")
	if !ok {
		return nil
	}
	var req dto.RejectRequest
	if len(c.Body()) > 0 {
		if !h.bindJSON(c, &req) {
			return nil
		}
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/investors/:id/reject")
	defer cancel()

	res, err := h.approvalFlow.RejectInvestor(ctx, id, &req, admin.Username, h.metadata(c))
	if err != nil {
		return h.handleFlowError(c, err, "Investor rejection failed", "REJECT_INVESTOR_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, res.Message, res)
}

func (h *AdminHandler) currentAdmin(c fiber.Ctx) (*models.Admin, bool) {
	admin, ok := c.Locals(middleware.LocalAdmin).(*models.Admin)
	return admin, ok && admin != nil
}
