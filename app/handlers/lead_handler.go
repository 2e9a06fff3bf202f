package handlers

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"

	"github.com/amirphl/realty-workflow/app/dto"
	businessflow "github.com/amirphl/realty-workflow/business_flow"
)

// LeadHandlerInterface defines the contract for lead handlers
type LeadHandlerInterface interface {
	CreateLead(c fiber.Ctx) error
	UpdateLeadStatus(c fiber.Ctx) error
	ListLeads(c fiber.Ctx) error
	ExportLeads(c fiber.Ctx) error
}

// LeadHandler handles lead capture and the admin lead pipeline
type LeadHandler struct {
	baseHandler
	leadFlow businessflow.LeadFlow
}

// NewLeadHandler creates a new lead handler
func NewLeadHandler(leadFlow businessflow.LeadFlow, logger *zap.Logger) *LeadHandler {
	return &LeadHandler{
		baseHandler: newBaseHandler(logger),
		leadFlow:    leadFlow,
	}
}

// CreateLead handles a public form submission
// @Summary Submit Lead
// @Description Capture a seller, buyer, property submission or institutional investor lead. Buyer leads receive email and phone verification out of band.
// @Tags Leads
// @Accept json
// @Produce json
// @Param Idempotency-Key header string false "Replay protection key"
// @Param request body dto.CreateLeadRequest true "Lead data"
// @Success 201 {object} dto.APIResponse{data=dto.CreateLeadResponse} "Lead created"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/leads [post]
func (h *LeadHandler) CreateLead(c fiber.Ctx) error {
	var req dto.CreateLeadRequest
	if !h.bindJSON(c, &req) {
		return nil
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/leads")
	defer cancel()

	result, err := h.leadFlow.CreateLead(ctx, &req, h.metadata(c))
	if err != nil {
		return h.handleFlowError(c, err, "Lead creation failed", "CREATE_LEAD_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusCreated, result.Message, result)
}

// UpdateLeadStatus moves a lead through the pipeline
// @Summary Update Lead Status
// @Tags Admin Leads
// @Accept json
// @Produce json
// @Security AdminSession
// @Param id path int true "Lead ID"
// @Param request body dto.UpdateLeadStatusRequest true "New status"
// @Success 200 {object} dto.APIResponse{data=dto.LeadDTO}
// @Failure 404 {object} dto.APIResponse "Lead not found"
// @Router /api/v1/leads/{id}/status [put]
func (h *LeadHandler) UpdateLeadStatus(c fiber.Ctx) error {
	id, ok := h.paramID(c, "id")
	if !ok {
		return nil
	}
	var req dto.UpdateLeadStatusRequest
	if !h.bindJSON(c, &req) {
		return nil
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/leads/:id/status")
	defer cancel()

	lead, err := h.leadFlow.UpdateLeadStatus(ctx, id, &req, h.metadata(c))
	if err != nil {
		return h.handleFlowError(c, err, "Lead status update failed", "UPDATE_LEAD_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Lead status updated", lead)
}

// ListLeads lists leads for the back office
// @Summary List Leads
// @Tags Admin Leads
// @Produce json
// @Security AdminSession
// @Param type query string false "Lead type"
// @Param status query string false "Lead status"
// @Success 200 {object} dto.APIResponse{data=[]dto.LeadDTO}
// @Router /api/v1/admin/leads [get]
func (h *LeadHandler) ListLeads(c fiber.Ctx) error {
	var req dto.ListLeadsRequest
	if !h.bindQuery(c, &req) {
		return nil
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/leads")
	defer cancel()

	leads, err := h.leadFlow.ListLeads(ctx, &req)
	if err != nil {
		return h.handleFlowError(c, err, "Failed to list leads", "LIST_LEADS_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Leads retrieved", leads)
}

// ExportLeads streams the filtered leads as an XLSX workbook
// @Summary Export Leads
// @Tags Admin Leads
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security AdminSession
// @Param type query string false "Lead type"
// @Param status query string false "Lead status"
// @Success 200 {file} file
// @Router /api/v1/admin/leads/export [get]
func (h *LeadHandler) ExportLeads(c fiber.Ctx) error {
	var req dto.ListLeadsRequest
	if !h.bindQuery(c, &req) {
		return nil
	}

	ctx, cancel := h.createRequestContextWithTimeout(c, "/api/v1/admin/leads/export", time.Minute)
	defer cancel()

	filename, data, err := h.leadFlow.ExportLeads(ctx, &req)
	if err != nil {
		return h.handleFlowError(c, err, "Lead export failed", "EXPORT_LEADS_FAILED")
	}

	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Status(fiber.StatusOK).Send(data)
}
