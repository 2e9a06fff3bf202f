// Package businessflow contains the core business logic and use cases for the realty workflow
package businessflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/amirphl/realty-workflow/app/dto"
	"github.com/amirphl/realty-workflow/app/services"
	"github.com/amirphl/realty-workflow/models"
	"github.com/amirphl/realty-workflow/repository"
	"github.com/amirphl/realty-workflow/utils"
)

// RecorderFlow persists lead-scoped business events together with the communications they promise.
// Delivery is left to the outbox dispatcher, so a creation never fails because a provider is down.
type RecorderFlow interface {
	CreateOffer(ctx context.Context, req *dto.CreateOfferRequest, metadata *ClientMetadata) (*dto.OfferDTO, error)
	UpdateOffer(ctx context.Context, id uint, req *dto.UpdateOfferRequest, metadata *ClientMetadata) (*dto.OfferDTO, error)
	ListOffers(ctx context.Context, req *dto.ListOffersRequest) ([]dto.OfferDTO, error)

	CreateForeclosureSubscription(ctx context.Context, req *dto.CreateForeclosureSubscriptionRequest, metadata *ClientMetadata) (*dto.ForeclosureSubscriptionDTO, error)
	UpdateForeclosureSubscription(ctx context.Context, id uint, req *dto.UpdateForeclosureSubscriptionRequest, metadata *ClientMetadata) (*dto.ForeclosureSubscriptionDTO, error)
	ListForeclosureSubscriptions(ctx context.Context, req *dto.ListByLeadRequest) ([]dto.ForeclosureSubscriptionDTO, error)

	CreateBidServiceRequest(ctx context.Context, req *dto.CreateBidServiceRequest, metadata *ClientMetadata) (*dto.BidServiceRequestDTO, error)
	UpdateBidServiceRequest(ctx context.Context, id uint, req *dto.UpdateBidServiceRequest, metadata *ClientMetadata) (*dto.BidServiceRequestDTO, error)
	ListBidServiceRequests(ctx context.Context, req *dto.ListByLeadRequest) ([]dto.BidServiceRequestDTO, error)

	ListCommunications(ctx context.Context, leadID uint) ([]dto.CommunicationDTO, error)
	UpdateCommunication(ctx context.Context, id uint, req *dto.UpdateCommunicationRequest, metadata *ClientMetadata) (*dto.CommunicationDTO, error)
}

// RecorderFlowImpl implements the recorder business flow
type RecorderFlowImpl struct {
	leadRepo         repository.LeadRepository
	offerRepo        repository.OfferRepository
	subscriptionRepo repository.ForeclosureSubscriptionRepository
	bidRequestRepo   repository.BidServiceRequestRepository
	commRepo         repository.CommunicationRepository
	auditRepo        repository.AuditLogRepository
	publisher        services.EventPublisher
	logger           *zap.Logger
	db               *gorm.DB
}

// NewRecorderFlow creates a new recorder flow instance
func NewRecorderFlow(
	leadRepo repository.LeadRepository,
	offerRepo repository.OfferRepository,
	subscriptionRepo repository.ForeclosureSubscriptionRepository,
	bidRequestRepo repository.BidServiceRequestRepository,
	commRepo repository.CommunicationRepository,
	auditRepo repository.AuditLogRepository,
	publisher services.EventPublisher,
	logger *zap.Logger,
	db *gorm.DB,
) RecorderFlow {
	return &RecorderFlowImpl{
		leadRepo:         leadRepo,
		offerRepo:        offerRepo,
		subscriptionRepo: subscriptionRepo,
		bidRequestRepo:   bidRequestRepo,
		commRepo:         commRepo,
		auditRepo:        auditRepo,
		publisher:        publisher,
		logger:           logger,
		db:               db,
	}
}

// CreateOffer stores the offer plus an outbound confirmation to the buyer and an inbound note for the operator
func (f *RecorderFlowImpl) CreateOffer(ctx context.Context, req *dto.CreateOfferRequest, metadata *ClientMetadata) (*dto.OfferDTO, error) {
	lead, err := f.leadRepo.ByID(ctx, req.BuyerLeadID)
	if err != nil {
		return nil, NewBusinessError("CREATE_OFFER_FAILED", "Offer creation failed", err)
	}
	if lead == nil {
		return nil, NewBusinessError("CREATE_OFFER_FAILED", "Offer creation failed", ErrLeadNotFound)
	}

	offer := &models.Offer{
		UUID:            uuid.New(),
		PropertyID:      strings.TrimSpace(req.PropertyID),
		BuyerLeadID:     lead.ID,
		OfferAmount:     req.OfferAmount,
		Terms:           req.Terms,
		Status:          models.OfferStatusPending,
		ClosingDate:     req.ClosingDate,
		DownPayment:     req.DownPayment,
		FinancingType:   req.FinancingType,
		Contingencies:   req.Contingencies,
		AdditionalTerms: req.AdditionalTerms,
		OfferLetterURL:  req.OfferLetterURL,
		ProofOfFundsURL: req.ProofOfFundsURL,
	}

	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		if err := f.offerRepo.Save(txCtx, offer); err != nil {
			return err
		}

		confirmation := newOutboundEmail(lead.Email,
			"Offer Submitted Successfully",
			fmt.Sprintf("Hi %s, your offer of $%s on property %s has been submitted. Our team will contact you within 24 hours.",
				lead.Name, offer.OfferAmount, offer.PropertyID))
		confirmation.LeadID = &lead.ID

		note := newInboundNote("New Offer Received",
			fmt.Sprintf("Offer %s from %s (%s, %s): $%s on property %s",
				offer.UUID, lead.Name, lead.Email, lead.Phone, offer.OfferAmount, offer.PropertyID))
		note.LeadID = &lead.ID

		return f.commRepo.SaveBatch(txCtx, []*models.Communication{confirmation, note})
	})
	if err != nil {
		return nil, NewBusinessError("CREATE_OFFER_FAILED", "Offer creation failed", err)
	}

	msg := fmt.Sprintf("Offer %d created for lead %d", offer.ID, lead.ID)
	_ = writeAudit(ctx, f.auditRepo, models.AuditActorLead, &lead.ID, models.AuditActionOfferCreated, msg, true, nil, metadata)

	publishEvent(f.publisher, f.logger, services.NewEvent(services.EventOfferCreated, offer.ID, map[string]any{
		"lead_id":     lead.ID,
		"property_id": offer.PropertyID,
		"amount":      offer.OfferAmount,
	}))

	out := ToOfferDTO(*offer)
	return &out, nil
}

// UpdateOffer changes the status, counter amount or terms of an offer
func (f *RecorderFlowImpl) UpdateOffer(ctx context.Context, id uint, req *dto.UpdateOfferRequest, metadata *ClientMetadata) (*dto.OfferDTO, error) {
	updates := map[string]any{}
	if req.Status != nil {
		if !models.IsValidOfferStatus(*req.Status) {
			return nil, NewBusinessError("UPDATE_OFFER_FAILED", "Offer update failed", ErrInvalidStatus)
		}
		updates["status"] = *req.Status
	}
	if req.CounterAmount != nil {
		updates["counter_amount"] = *req.CounterAmount
	}
	if req.Terms != nil {
		updates["terms"] = *req.Terms
	}

	if err := f.applyUpdate(ctx, id, updates, ErrOfferNotFound, f.offerExists, f.offerRepo.UpdateFields); err != nil {
		return nil, NewBusinessError("UPDATE_OFFER_FAILED", "Offer update failed", err)
	}

	offer, err := f.offerRepo.ByID(ctx, id)
	if err != nil {
		return nil, NewBusinessError("UPDATE_OFFER_FAILED", "Offer update failed", err)
	}
	if offer == nil {
		return nil, NewBusinessError("UPDATE_OFFER_FAILED", "Offer update failed", ErrOfferNotFound)
	}

	msg := fmt.Sprintf("Offer %d updated", id)
	_ = writeAudit(ctx, f.auditRepo, models.AuditActorAdmin, nil, models.AuditActionOfferUpdated, msg, true, nil, metadata)

	out := ToOfferDTO(*offer)
	return &out, nil
}

func (f *RecorderFlowImpl) ListOffers(ctx context.Context, req *dto.ListOffersRequest) ([]dto.OfferDTO, error) {
	filter := models.OfferFilter{PropertyID: req.PropertyID, BuyerLeadID: req.LeadID}
	offers, err := f.offerRepo.ByFilter(ctx, filter, "created_at DESC", 0, 0)
	if err != nil {
		return nil, NewBusinessError("LIST_OFFERS_FAILED", "Failed to list offers", err)
	}
	items := make([]dto.OfferDTO, 0, len(offers))
	for _, o := range offers {
		items = append(items, ToOfferDTO(*o))
	}
	return items, nil
}

// CreateForeclosureSubscription stores the subscription and queues a confirmation listing the counties
func (f *RecorderFlowImpl) CreateForeclosureSubscription(ctx context.Context, req *dto.CreateForeclosureSubscriptionRequest, metadata *ClientMetadata) (*dto.ForeclosureSubscriptionDTO, error) {
	lead, err := f.leadRepo.ByID(ctx, req.LeadID)
	if err != nil {
		return nil, NewBusinessError("CREATE_SUBSCRIPTION_FAILED", "Subscription creation failed", err)
	}
	if lead == nil {
		return nil, NewBusinessError("CREATE_SUBSCRIPTION_FAILED", "Subscription creation failed", ErrLeadNotFound)
	}

	sub := &models.ForeclosureSubscription{
		UUID:             uuid.New(),
		LeadID:           lead.ID,
		Counties:         models.StringList(trimAll(req.Counties)),
		SubscriptionType: req.SubscriptionType,
		IsActive:         utils.ToPtr(true),
	}

	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		if err := f.subscriptionRepo.Save(txCtx, sub); err != nil {
			return err
		}
		confirmation := newOutboundEmail(lead.Email,
			"Foreclosure Alert Subscription Confirmed",
			fmt.Sprintf("Hi %s, you will receive %s foreclosure alerts for: %s.",
				lead.Name, sub.SubscriptionType, strings.Join(sub.Counties, ", ")))
		confirmation.LeadID = &lead.ID
		return f.commRepo.Save(txCtx, confirmation)
	})
	if err != nil {
		return nil, NewBusinessError("CREATE_SUBSCRIPTION_FAILED", "Subscription creation failed", err)
	}

	msg := fmt.Sprintf("Foreclosure subscription %d created for lead %d", sub.ID, lead.ID)
	_ = writeAudit(ctx, f.auditRepo, models.AuditActorLead, &lead.ID, models.AuditActionSubscriptionCreated, msg, true, nil, metadata)

	out := ToForeclosureSubscriptionDTO(*sub)
	return &out, nil
}

func (f *RecorderFlowImpl) UpdateForeclosureSubscription(ctx context.Context, id uint, req *dto.UpdateForeclosureSubscriptionRequest, metadata *ClientMetadata) (*dto.ForeclosureSubscriptionDTO, error) {
	updates := map[string]any{}
	if len(req.Counties) > 0 {
		updates["counties"] = models.StringList(trimAll(req.Counties))
	}
	if req.SubscriptionType != nil {
		updates["subscription_type"] = *req.SubscriptionType
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}

	if err := f.applyUpdate(ctx, id, updates, ErrSubscriptionNotFound, f.subscriptionExists, f.subscriptionRepo.UpdateFields); err != nil {
		return nil, NewBusinessError("UPDATE_SUBSCRIPTION_FAILED", "Subscription update failed", err)
	}

	sub, err := f.subscriptionRepo.ByID(ctx, id)
	if err != nil {
		return nil, NewBusinessError("UPDATE_SUBSCRIPTION_FAILED", "Subscription update failed", err)
	}
	if sub == nil {
		return nil, NewBusinessError("UPDATE_SUBSCRIPTION_FAILED", "Subscription update failed", ErrSubscriptionNotFound)
	}

	msg := fmt.Sprintf("Foreclosure subscription %d updated", id)
	_ = writeAudit(ctx, f.auditRepo, models.AuditActorLead, &sub.LeadID, models.AuditActionSubscriptionUpdated, msg, true, nil, metadata)

	out := ToForeclosureSubscriptionDTO(*sub)
	return &out, nil
}

func (f *RecorderFlowImpl) ListForeclosureSubscriptions(ctx context.Context, req *dto.ListByLeadRequest) ([]dto.ForeclosureSubscriptionDTO, error) {
	subs, err := f.subscriptionRepo.ByFilter(ctx, models.ForeclosureSubscriptionFilter{LeadID: req.LeadID}, "created_at DESC", 0, 0)
	if err != nil {
		return nil, NewBusinessError("LIST_SUBSCRIPTIONS_FAILED", "Failed to list subscriptions", err)
	}
	items := make([]dto.ForeclosureSubscriptionDTO, 0, len(subs))
	for _, s := range subs {
		items = append(items, ToForeclosureSubscriptionDTO(*s))
	}
	return items, nil
}

// CreateBidServiceRequest stores the request and queues a confirmation to the contact email on the form
func (f *RecorderFlowImpl) CreateBidServiceRequest(ctx context.Context, req *dto.CreateBidServiceRequest, metadata *ClientMetadata) (*dto.BidServiceRequestDTO, error) {
	lead, err := f.leadRepo.ByID(ctx, req.LeadID)
	if err != nil {
		return nil, NewBusinessError("CREATE_BID_REQUEST_FAILED", "Bid service request failed", err)
	}
	if lead == nil {
		return nil, NewBusinessError("CREATE_BID_REQUEST_FAILED", "Bid service request failed", ErrLeadNotFound)
	}

	bidReq := &models.BidServiceRequest{
		UUID:                   uuid.New(),
		LeadID:                 lead.ID,
		ForeclosureListingID:   req.ForeclosureListingID,
		Name:                   strings.TrimSpace(req.Name),
		Email:                  utils.NormalizeEmail(req.Email),
		Phone:                  strings.TrimSpace(req.Phone),
		InvestmentBudget:       req.InvestmentBudget,
		MaxBidAmount:           req.MaxBidAmount,
		InvestmentExperience:   req.InvestmentExperience,
		PreferredContactMethod: req.PreferredContactMethod,
		Timeframe:              req.Timeframe,
		AdditionalRequirements: req.AdditionalRequirements,
		Status:                 models.BidServiceStatusPending,
	}

	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		if err := f.bidRequestRepo.Save(txCtx, bidReq); err != nil {
			return err
		}
		confirmation := newOutboundEmail(bidReq.Email,
			"Bid Service Request Confirmed",
			fmt.Sprintf("Hi %s, we received your bid service request. An auction specialist will contact you within 24 hours.", bidReq.Name))
		confirmation.LeadID = &lead.ID
		return f.commRepo.Save(txCtx, confirmation)
	})
	if err != nil {
		return nil, NewBusinessError("CREATE_BID_REQUEST_FAILED", "Bid service request failed", err)
	}

	msg := fmt.Sprintf("Bid service request %d created for lead %d", bidReq.ID, lead.ID)
	_ = writeAudit(ctx, f.auditRepo, models.AuditActorLead, &lead.ID, models.AuditActionBidRequestCreated, msg, true, nil, metadata)

	out := ToBidServiceRequestDTO(*bidReq)
	return &out, nil
}

func (f *RecorderFlowImpl) UpdateBidServiceRequest(ctx context.Context, id uint, req *dto.UpdateBidServiceRequest, metadata *ClientMetadata) (*dto.BidServiceRequestDTO, error) {
	updates := map[string]any{}
	if req.Status != nil {
		if !models.IsValidBidServiceStatus(*req.Status) {
			return nil, NewBusinessError("UPDATE_BID_REQUEST_FAILED", "Bid service request update failed", ErrInvalidStatus)
		}
		updates["status"] = *req.Status
	}
	if req.AssignedTo != nil {
		updates["assigned_to"] = *req.AssignedTo
	}
	if req.Notes != nil {
		updates["notes"] = *req.Notes
	}

	if err := f.applyUpdate(ctx, id, updates, ErrBidServiceRequestNotFound, f.bidRequestExists, f.bidRequestRepo.UpdateFields); err != nil {
		return nil, NewBusinessError("UPDATE_BID_REQUEST_FAILED", "Bid service request update failed", err)
	}

	bidReq, err := f.bidRequestRepo.ByID(ctx, id)
	if err != nil {
		return nil, NewBusinessError("UPDATE_BID_REQUEST_FAILED", "Bid service request update failed", err)
	}
	if bidReq == nil {
		return nil, NewBusinessError("UPDATE_BID_REQUEST_FAILED", "Bid service request update failed", ErrBidServiceRequestNotFound)
	}

	msg := fmt.Sprintf("Bid service request %d updated", id)
	_ = writeAudit(ctx, f.auditRepo, models.AuditActorAdmin, nil, models.AuditActionBidRequestUpdated, msg, true, nil, metadata)

	out := ToBidServiceRequestDTO(*bidReq)
	return &out, nil
}

func (f *RecorderFlowImpl) ListBidServiceRequests(ctx context.Context, req *dto.ListByLeadRequest) ([]dto.BidServiceRequestDTO, error) {
	reqs, err := f.bidRequestRepo.ByFilter(ctx, models.BidServiceRequestFilter{LeadID: req.LeadID}, "created_at DESC", 0, 0)
	if err != nil {
		return nil, NewBusinessError("LIST_BID_REQUESTS_FAILED", "Failed to list bid service requests", err)
	}
	items := make([]dto.BidServiceRequestDTO, 0, len(reqs))
	for _, r := range reqs {
		items = append(items, ToBidServiceRequestDTO(*r))
	}
	return items, nil
}

// ListCommunications returns every communication recorded for a lead, newest first
func (f *RecorderFlowImpl) ListCommunications(ctx context.Context, leadID uint) ([]dto.CommunicationDTO, error) {
	comms, err := f.commRepo.ListByLead(ctx, leadID)
	if err != nil {
		return nil, NewBusinessError("LIST_COMMUNICATIONS_FAILED", "Failed to list communications", err)
	}
	items := make([]dto.CommunicationDTO, 0, len(comms))
	for _, c := range comms {
		items = append(items, ToCommunicationDTO(*c))
	}
	return items, nil
}

// UpdateCommunication is the only way a communication changes after creation besides the dispatcher
func (f *RecorderFlowImpl) UpdateCommunication(ctx context.Context, id uint, req *dto.UpdateCommunicationRequest, metadata *ClientMetadata) (*dto.CommunicationDTO, error) {
	updates := map[string]any{}
	if req.Subject != nil {
		updates["subject"] = *req.Subject
	}
	if req.Content != nil {
		updates["content"] = *req.Content
	}
	if req.Status != nil {
		updates["status"] = *req.Status
		switch *req.Status {
		case models.CommunicationStatusSent:
			updates["sent_at"] = utils.UTCNow()
		case models.CommunicationStatusQueued:
			// requeue for the dispatcher
			updates["next_attempt_at"] = utils.UTCNow()
			updates["attempts"] = 0
		}
	}

	if err := f.applyUpdate(ctx, id, updates, ErrCommunicationNotFound, f.communicationExists, f.commRepo.UpdateFields); err != nil {
		return nil, NewBusinessError("UPDATE_COMMUNICATION_FAILED", "Communication update failed", err)
	}

	comm, err := f.commRepo.ByID(ctx, id)
	if err != nil {
		return nil, NewBusinessError("UPDATE_COMMUNICATION_FAILED", "Communication update failed", err)
	}
	if comm == nil {
		return nil, NewBusinessError("UPDATE_COMMUNICATION_FAILED", "Communication update failed", ErrCommunicationNotFound)
	}

	msg := fmt.Sprintf("Communication %d updated", id)
	_ = writeAudit(ctx, f.auditRepo, models.AuditActorAdmin, nil, models.AuditActionCommunicationUpdated, msg, true, nil, metadata)

	out := ToCommunicationDTO(*comm)
	return &out, nil
}

// applyUpdate checks existence first: MySQL reports zero affected rows for a no-op update
func (f *RecorderFlowImpl) applyUpdate(
	ctx context.Context,
	id uint,
	updates map[string]any,
	notFound error,
	exists func(context.Context, uint) (bool, error),
	update func(context.Context, uint, map[string]any) (bool, error),
) error {
	if len(updates) == 0 {
		return ErrNothingToUpdate
	}
	ok, err := exists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return notFound
	}
	_, err = update(ctx, id, updates)
	return err
}

func (f *RecorderFlowImpl) offerExists(ctx context.Context, id uint) (bool, error) {
	return f.offerRepo.Exists(ctx, models.OfferFilter{ID: &id})
}

func (f *RecorderFlowImpl) subscriptionExists(ctx context.Context, id uint) (bool, error) {
	return f.subscriptionRepo.Exists(ctx, models.ForeclosureSubscriptionFilter{ID: &id})
}

func (f *RecorderFlowImpl) bidRequestExists(ctx context.Context, id uint) (bool, error) {
	return f.bidRequestRepo.Exists(ctx, models.BidServiceRequestFilter{ID: &id})
}

func (f *RecorderFlowImpl) communicationExists(ctx context.Context, id uint) (bool, error) {
	return f.commRepo.Exists(ctx, models.CommunicationFilter{ID: &id})
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
