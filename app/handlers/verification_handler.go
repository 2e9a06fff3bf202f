package handlers

import (
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"

	"github.com/amirphl/realty-workflow/app/dto"
	businessflow "github.com/amirphl/realty-workflow/business_flow"
	"github.com/amirphl/realty-workflow/models"
)

// VerificationHandler serves the email link and phone code endpoints for leads, partners and users
type VerificationHandler struct {
	baseHandler
	flow businessflow.VerificationFlow
}

func NewVerificationHandler(flow businessflow.VerificationFlow, logger *zap.Logger) *VerificationHandler {
	return &VerificationHandler{
		baseHandler: newBaseHandler(logger),
		flow:        flow,
	}
}

// VerifyEmail returns a handler that consumes an email token issued to ownerType
// @Summary Verify Email
// @Description Consume a single-use email verification token. Used tokens are rejected.
// @Tags Verification
// @Accept json
// @Produce json
// @Param request body dto.VerifyEmailRequest true "Token from the verification link"
// @Success 200 {object} dto.APIResponse{data=dto.VerificationResponse}
// @Failure 400 {object} dto.APIResponse "Invalid, used or expired token"
// @Router /api/v1/verify-email [post]
// @Router /api/v1/partners/verify-email [post]
// @Router /api/v1/users/verify-email [post]
func (h *VerificationHandler) VerifyEmail(ownerType string) fiber.Handler {
	return func(c fiber.Ctx) error {
		var req dto.VerifyEmailRequest
		if !h.bindJSON(c, &req) {
			return nil
		}

		ctx, cancel := h.createRequestContext(c, c.Path())
		defer cancel()

		res, err := h.flow.VerifyEmail(ctx, ownerType, &req, h.metadata(c))
		if err != nil {
			return h.handleFlowError(c, err, "Email verification failed", "VERIFY_EMAIL_FAILED")
		}
		return h.SuccessResponse(c, fiber.StatusOK, res.Message, res)
	}
}

// VerifyLeadPhone checks the six digit code sent to a buyer
// @Summary Verify Lead Phone
// @Tags Verification
// @Accept json
// @Produce json
// @Param request body dto.VerifyLeadPhoneRequest true "Lead ID and code"
// @Success 200 {object} dto.APIResponse{data=dto.VerificationResponse}
// @Failure 400 {object} dto.APIResponse "Invalid or expired code"
// @Failure 409 {object} dto.APIResponse "Already verified"
// @Router /api/v1/verify-phone [post]
func (h *VerificationHandler) VerifyLeadPhone(c fiber.Ctx) error {
	var req dto.VerifyLeadPhoneRequest
	if !h.bindJSON(c, &req) {
		return nil
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/verify-phone")
	defer cancel()

	res, err := h.flow.VerifyPhone(ctx, models.VerificationOwnerLead, req.LeadID, req.Code, h.metadata(c))
	if err != nil {
		return h.handleFlowError(c, err, "Phone verification failed", "VERIFY_PHONE_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, res.Message, res)
}

// VerifyPartnerPhone checks the code sent to a registering partner
// @Summary Verify Partner Phone
// @Tags Verification
// @Accept json
// @Produce json
// @Param request body dto.VerifyPartnerPhoneRequest true "Partner ID and code"
// @Success 200 {object} dto.APIResponse{data=dto.VerificationResponse}
// @Router /api/v1/partners/verify-phone [post]
func (h *VerificationHandler) VerifyPartnerPhone(c fiber.Ctx) error {
	var req dto.VerifyPartnerPhoneRequest
	if !h.bindJSON(c, &req) {
		return nil
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/partners/verify-phone")
	defer cancel()

	res, err := h.flow.VerifyPhone(ctx, models.VerificationOwnerPartner, req.PartnerID, req.Code, h.metadata(c))
	if err != nil {
		return h.handleFlowError(c, err, "Phone verification failed", "VERIFY_PHONE_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, res.Message, res)
}

// ResendLead reissues an email token or phone code for a lead
// @Summary Resend Lead Verification
// @Tags Verification
// @Accept json
// @Produce json
// @Param request body dto.ResendLeadVerificationRequest true "Lead ID and channel"
// @Success 200 {object} dto.APIResponse{data=dto.ResendVerificationResponse}
// @Failure 429 {object} dto.APIResponse "Resend cooldown active"
// @Router /api/v1/resend-verification [post]
func (h *VerificationHandler) ResendLead(c fiber.Ctx) error {
	var req dto.ResendLeadVerificationRequest
	if !h.bindJSON(c, &req) {
		return nil
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/resend-verification")
	defer cancel()

	res, err := h.flow.Resend(ctx, models.VerificationOwnerLead, req.LeadID, req.Type, h.metadata(c))
	if err != nil {
		return h.handleFlowError(c, err, "Failed to resend verification", "RESEND_VERIFICATION_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, res.Message, res)
}

// ResendPartner reissues an email token or phone code for a partner
// @Summary Resend Partner Verification
// @Tags Verification
// @Accept json
// @Produce json
// @Param request body dto.ResendPartnerVerificationRequest true "Partner ID and channel"
// @Success 200 {object} dto.APIResponse{data=dto.ResendVerificationResponse}
// @Router /api/v1/partners/resend-verification [post]
func (h *VerificationHandler) ResendPartner(c fiber.Ctx) error {
	var req dto.ResendPartnerVerificationRequest
	if !h.bindJSON(c, &req) {
		return nil
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/partners/resend-verification")
	defer cancel()

	res, err := h.flow.Resend(ctx, models.VerificationOwnerPartner, req.PartnerID, req.Type, h.metadata(c))
	if err != nil {
		return h.handleFlowError(c, err, "Failed to resend verification", "RESEND_VERIFICATION_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, res.Message, res)
}

// ResendUser reissues the email verification link for a site user
// @Summary Resend User Verification
// @Tags Verification
// @Accept json
// @Produce json
// @Param request body dto.ResendUserVerificationRequest true "User ID"
// @Success 200 {object} dto.APIResponse{data=dto.ResendVerificationResponse}
// @Failure 409 {object} dto.APIResponse "Already verified"
// @Failure 429 {object} dto.APIResponse "Resend cooldown active"
// @Router /api/v1/users/resend-verification [post]
func (h *VerificationHandler) ResendUser(c fiber.Ctx) error {
	var req dto.ResendUserVerificationRequest
	if !h.bindJSON(c, &req) {
		return nil
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/users/resend-verification")
	defer cancel()

	res, err := h.flow.Resend(ctx, models.VerificationOwnerUser, req.UserID, models.VerificationKindEmail, h.metadata(c))
	if err != nil {
		return h.handleFlowError(c, err, "Failed to resend verification", "RESEND_VERIFICATION_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, res.Message, res)
}
