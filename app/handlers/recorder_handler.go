package handlers

import (
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"

	"github.com/amirphl/realty-workflow/app/dto"
	businessflow "github.com/amirphl/realty-workflow/business_flow"
)

// RecorderHandler serves offers, foreclosure subscriptions, bid service requests and the communication log
type RecorderHandler struct {
	baseHandler
	flow businessflow.RecorderFlow
}

func NewRecorderHandler(flow businessflow.RecorderFlow, logger *zap.Logger) *RecorderHandler {
	return &RecorderHandler{
		baseHandler: newBaseHandler(logger),
		flow:        flow,
	}
}

// CreateOffer records a buyer offer and queues the confirmation email
// @Summary Submit Offer
// @Tags Offers
// @Accept json
// @Produce json
// @Param Idempotency-Key header string false "Replay protection key"
// @Param request body dto.CreateOfferRequest true "Offer"
// @Success 201 {object} dto.APIResponse{data=dto.OfferDTO}
// @Failure 404 {object} dto.APIResponse "Buyer lead not found"
// @Router /api/v1/offers [post]
func (h *RecorderHandler) CreateOffer(c fiber.Ctx) error {
	var req dto.CreateOfferRequest
	if !h.bindJSON(c, &req) {
		return nil
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/offers")
	defer cancel()

	offer, err := h.flow.CreateOffer(ctx, &req, h.metadata(c))
	if err != nil {
		return h.handleFlowError(c, err, "Failed to submit offer", "CREATE_OFFER_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Offer submitted successfully", offer)
}

// @Summary Update Offer
// @Tags Offers
// @Accept json
// @Produce json
// @Security AdminSession
// @Param id path int true "Offer ID"
// @Param request body dto.UpdateOfferRequest true "Fields to change"
// @Success 200 {object} dto.APIResponse{data=dto.OfferDTO}
// @Router /api/v1/offers/{id} [put]
func (h *RecorderHandler) UpdateOffer(c fiber.Ctx) error {
	id, ok := h.paramID(c, "id")
	if !ok {
		return nil
	}
	var req dto.UpdateOfferRequest
	if !h.bindJSON(c, &req) {
		return nil
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/offers/:id")
	defer cancel()

	offer, err := h.flow.UpdateOffer(ctx, id, &req, h.metadata(c))
	if err != nil {
		return h.handleFlowError(c, err, "Failed to update offer", "UPDATE_OFFER_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Offer updated", offer)
}

// @Summary List Offers
// @Tags Admin Records
// @Produce json
// @Security AdminSession
// @Param property_id query string false "Property ID"
// @Param lead_id query int false "Buyer lead ID"
// @Success 200 {object} dto.APIResponse{data=[]dto.OfferDTO}
// @Router /api/v1/admin/offers [get]
func (h *RecorderHandler) ListOffers(c fiber.Ctx) error {
	var req dto.ListOffersRequest
	if !h.bindQuery(c, &req) {
		return nil
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/offers")
	defer cancel()

	offers, err := h.flow.ListOffers(ctx, &req)
	if err != nil {
		return h.handleFlowError(c, err, "Failed to list offers", "LIST_OFFERS_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Offers retrieved", offers)
}

// CreateSubscription
// @Summary Subscribe to Foreclosure Alerts
// @Tags Foreclosure
// @Accept json
// @Produce json
// @Param Idempotency-Key header string false "Replay protection key"
// @Param request body dto.CreateForeclosureSubscriptionRequest true "Subscription"
// @Success 201 {object} dto.APIResponse{data=dto.ForeclosureSubscriptionDTO}
// @Router /api/v1/foreclosure-subscriptions [post]
func (h *RecorderHandler) CreateSubscription(c fiber.Ctx) error {
	var req dto.CreateForeclosureSubscriptionRequest
	if !h.bindJSON(c, &req) {
		return nil
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/foreclosure-subscriptions")
	defer cancel()

	sub, err := h.flow.CreateForeclosureSubscription(ctx, &req, h.metadata(c))
	if err != nil {
		return h.handleFlowError(c, err, "Failed to create subscription", "CREATE_SUBSCRIPTION_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Subscription created", sub)
}

// @Summary Update Foreclosure Subscription
// @Tags Foreclosure
// @Accept json
// @Produce json
// @Security AdminSession
// @Param id path int true "Subscription ID"
// @Param request body dto.UpdateForeclosureSubscriptionRequest true "Fields to change"
// @Success 200 {object} dto.APIResponse{data=dto.ForeclosureSubscriptionDTO}
// @Router /api/v1/foreclosure-subscriptions/{id} [put]
func (h *RecorderHandler) UpdateSubscription(c fiber.Ctx) error {
	id, ok := h.paramID(c, "id")
	if !ok {
		return nil
	}
	var req dto.UpdateForeclosureSubscriptionRequest
	if !h.bindJSON(c, &req) {
		return nil
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/foreclosure-subscriptions/:id")
	defer cancel()

	sub, err := h.flow.UpdateForeclosureSubscription(ctx, id, &req, h.metadata(c))
	if err != nil {
		return h.handleFlowError(c, err, "Failed to update subscription", "UPDATE_SUBSCRIPTION_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Subscription updated", sub)
}

// @Summary List Foreclosure Subscriptions
// @Tags Admin Records
// @Produce json
// @Security AdminSession
// @Param lead_id query int false "Lead ID"
// @Success 200 {object} dto.APIResponse{data=[]dto.ForeclosureSubscriptionDTO}
// @Router /api/v1/admin/foreclosure-subscriptions [get]
func (h *RecorderHandler) ListSubscriptions(c fiber.Ctx) error {
	var req dto.ListByLeadRequest
	if !h.bindQuery(c, &req) {
		return nil
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/foreclosure-subscriptions")
	defer cancel()

	subs, err := h.flow.ListForeclosureSubscriptions(ctx, &req)
	if err != nil {
		return h.handleFlowError(c, err, "Failed to list subscriptions", "LIST_SUBSCRIPTIONS_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Subscriptions retrieved", subs)
}

// CreateBidRequest
// @Summary Request Bid Service
// @Tags Foreclosure
// @Accept json
// @Produce json
// @Param Idempotency-Key header string false "Replay protection key"
// @Param request body dto.CreateBidServiceRequest true "Bid service request"
// @Success 201 {object} dto.APIResponse{data=dto.BidServiceRequestDTO}
// @Router /api/v1/bid-service-requests [post]
func (h *RecorderHandler) CreateBidRequest(c fiber.Ctx) error {
	var req dto.CreateBidServiceRequest
	if !h.bindJSON(c, &req) {
		return nil
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/bid-service-requests")
	defer cancel()

	br, err := h.flow.CreateBidServiceRequest(ctx, &req, h.metadata(c))
	if err != nil {
		return h.handleFlowError(c, err, "Failed to create bid service request", "CREATE_BID_REQUEST_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Bid service request created", br)
}

// @Summary Update Bid Service Request
// @Tags Foreclosure
// @Accept json
// @Produce json
// @Security AdminSession
// @Param id path int true "Request ID"
// @Param request body dto.UpdateBidServiceRequest true "Fields to change"
// @Success 200 {object} dto.APIResponse{data=dto.BidServiceRequestDTO}
// @Router /api/v1/bid-service-requests/{id} [put]
func (h *RecorderHandler) UpdateBidRequest(c fiber.Ctx) error {
	id, ok := h.paramID(c, "id")
	if !ok {
		return nil
	}
	var req dto.UpdateBidServiceRequest
	if !h.bindJSON(c, &req) {
		return nil
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/bid-service-requests/:id")
	defer cancel()

	br, err := h.flow.UpdateBidServiceRequest(ctx, id, &req, h.metadata(c))
	if err != nil {
		return h.handleFlowError(c, err, "Failed to update bid service request", "UPDATE_BID_REQUEST_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Bid service request updated", br)
}

// @Summary List Bid Service Requests
// @Tags Admin Records
// @Produce json
// @Security AdminSession
// @Param lead_id query int false "Lead ID"
// @Success 200 {object} dto.APIResponse{data=[]dto.BidServiceRequestDTO}
// @Router /api/v1/admin/bid-service-requests [get]
func (h *RecorderHandler) ListBidRequests(c fiber.Ctx) error {
	var req dto.ListByLeadRequest
	if !h.bindQuery(c, &req) {
		return nil
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/bid-service-requests")
	defer cancel()

	items, err := h.flow.ListBidServiceRequests(ctx, &req)
	if err != nil {
		return h.handleFlowError(c, err, "Failed to list bid service requests", "LIST_BID_REQUESTS_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Bid service requests retrieved", items)
}

// ListCommunications returns the communication log of a lead, newest first
// @Summary Lead Communications
// @Tags Admin Records
// @Produce json
// @Security AdminSession
// @Param leadId path int true "Lead ID"
// @Success 200 {object} dto.APIResponse{data=[]dto.CommunicationDTO}
// @Router /api/v1/communications/{leadId} [get]
func (h *RecorderHandler) ListCommunications(c fiber.Ctx) error {
	leadID, ok := h.paramID(c, "leadId")
	if !ok {
		return nil
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/communications/:leadId")
	defer cancel()

	items, err := h.flow.ListCommunications(ctx, leadID)
	if err != nil {
		return h.handleFlowError(c, err, "Failed to list communications", "LIST_COMMUNICATIONS_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Communications retrieved", items)
}

// UpdateCommunication lets an admin edit a queued message or requeue a failed one
// @Summary Update Communication
// @Tags Admin Records
// @Accept json
// @Produce json
// @Security AdminSession
// @Param id path int true "Communication ID"
// @Param request body dto.UpdateCommunicationRequest true "Fields to change"
// @Success 200 {object} dto.APIResponse{data=dto.CommunicationDTO}
// @Router /api/v1/admin/communications/{id} [put]
func (h *RecorderHandler) UpdateCommunication(c fiber.Ctx) error {
	id, ok := h.paramID(c, "id")
	if !ok {
		return nil
	}
	var req dto.UpdateCommunicationRequest
	if !h.bindJSON(c, &req) {
		return nil
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/communications/:id")
	defer cancel()

	comm, err := h.flow.UpdateCommunication(ctx, id, &req, h.metadata(c))
	if err != nil {
		return h.handleFlowError(c, err, "Failed to update communication", "UPDATE_COMMUNICATION_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Communication updated", comm)
}
