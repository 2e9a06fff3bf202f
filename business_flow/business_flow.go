// Package businessflow contains the core business logic and use cases for the realty workflow
package businessflow

import (
	"context"
	"time"

	"github.com/amirphl/realty-workflow/app/dto"
	"github.com/amirphl/realty-workflow/app/services"
	"github.com/amirphl/realty-workflow/models"
	"github.com/amirphl/realty-workflow/repository"
	"github.com/amirphl/realty-workflow/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ClientMetadata holds all client-related information for audit logging and session tracking
type ClientMetadata struct {
	IPAddress  string            `json:"ip_address"`
	UserAgent  string            `json:"user_agent"`
	RequestID  string            `json:"request_id,omitempty"`
	Additional map[string]string `json:"additional,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance with basic information
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		Additional: make(map[string]string),
	}
}

// AddAdditional adds additional custom information to the metadata
func (cm *ClientMetadata) AddAdditional(key, value string) {
	if cm.Additional == nil {
		cm.Additional = make(map[string]string)
	}
	cm.Additional[key] = value
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

// writeAudit persists one audit row. Failures to audit never fail the caller's operation.
func writeAudit(ctx context.Context, repo repository.AuditLogRepository, actorType string, actorID *uint, action, description string, success bool, errorMsg *string, metadata *ClientMetadata) error {
	ipAddress := "127.0.0.1"
	userAgent := ""
	if metadata != nil {
		ipAddress = metadata.IPAddress
		userAgent = metadata.UserAgent
	}

	audit := &models.AuditLog{
		ActorType:    actorType,
		ActorID:      actorID,
		Action:       action,
		Description:  &description,
		Success:      utils.ToPtr(success),
		IPAddress:    &ipAddress,
		UserAgent:    &userAgent,
		ErrorMessage: errorMsg,
	}

	if requestID, ok := ctx.Value(utils.RequestIDKey).(string); ok && requestID != "" {
		audit.RequestID = &requestID
	} else if metadata != nil && metadata.RequestID != "" {
		audit.RequestID = utils.ToPtr(metadata.RequestID)
	}

	return repo.Save(ctx, audit)
}

// newOutboundEmail builds a queued outbox row addressed to recipient
func newOutboundEmail(recipient, subject, content string) *models.Communication {
	now := utils.UTCNow()
	return &models.Communication{
		UUID:          uuid.New(),
		Type:          models.CommunicationTypeEmail,
		Direction:     models.CommunicationDirectionOutbound,
		Recipient:     recipient,
		Subject:       subject,
		Content:       content,
		Status:        models.CommunicationStatusQueued,
		NextAttemptAt: &now,
	}
}

// newInboundNote builds a communication that records something received; it is never delivered
func newInboundNote(subject, content string) *models.Communication {
	now := utils.UTCNow()
	return &models.Communication{
		UUID:      uuid.New(),
		Type:      models.CommunicationTypeNote,
		Direction: models.CommunicationDirectionInbound,
		Subject:   subject,
		Content:   content,
		Status:    models.CommunicationStatusSent,
		SentAt:    &now,
	}
}

// publishEvent sends a domain event without blocking or failing the caller
func publishEvent(publisher services.EventPublisher, logger *zap.Logger, event services.Event) {
	if publisher == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := publisher.Publish(ctx, event); err != nil && logger != nil {
			logger.Warn("failed to publish event", zap.String("type", event.Type), zap.Uint("entity_id", event.EntityID), zap.Error(err))
		}
	}()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

// ToLeadDTO converts a lead to its public projection. Verification secrets are never copied.
func ToLeadDTO(lead models.Lead) dto.LeadDTO {
	return dto.LeadDTO{
		ID:              lead.ID,
		UUID:            lead.UUID.String(),
		Type:            lead.Type,
		Name:            lead.Name,
		Email:           lead.Email,
		Phone:           lead.Phone,
		Source:          lead.Source,
		Status:          lead.Status,
		Motivation:      lead.Motivation,
		Timeline:        lead.Timeline,
		Budget:          lead.Budget,
		PreferredAreas:  []string(lead.PreferredAreas),
		ExperienceLevel: lead.ExperienceLevel,
		PropertyAddress: lead.PropertyAddress,
		Notes:           lead.Notes,
		EmailVerified:   lead.IsVerified(models.VerificationKindEmail),
		PhoneVerified:   lead.IsVerified(models.VerificationKindPhone),
		CreatedAt:       formatTime(lead.CreatedAt),
		UpdatedAt:       formatTime(lead.UpdatedAt),
	}
}

func ToPartnerDTO(partner models.Partner) dto.PartnerDTO {
	return dto.PartnerDTO{
		ID:              partner.ID,
		UUID:            partner.UUID.String(),
		Username:        partner.Username,
		Email:           partner.Email,
		FirstName:       partner.FirstName,
		LastName:        partner.LastName,
		Company:         partner.Company,
		Phone:           partner.Phone,
		IsActive:        utils.IsTrue(partner.IsActive),
		ApprovalStatus:  partner.ApprovalStatus,
		EmailVerified:   partner.IsVerified(models.VerificationKindEmail),
		PhoneVerified:   partner.IsVerified(models.VerificationKindPhone),
		ApprovedAt:      formatTimePtr(partner.ApprovedAt),
		ApprovedBy:      partner.ApprovedBy,
		RejectedAt:      formatTimePtr(partner.RejectedAt),
		RejectedBy:      partner.RejectedBy,
		RejectionReason: partner.RejectionReason,
		LastLoginAt:     formatTimePtr(partner.LastLoginAt),
		CreatedAt:       formatTime(partner.CreatedAt),
	}
}

func ToUserDTO(user models.User) dto.UserDTO {
	return dto.UserDTO{
		ID:            user.ID,
		UUID:          user.UUID.String(),
		Username:      user.Username,
		Email:         user.Email,
		FirstName:     user.FirstName,
		LastName:      user.LastName,
		EmailVerified: user.IsVerified(models.VerificationKindEmail),
		LastLoginAt:   formatTimePtr(user.LastLoginAt),
		CreatedAt:     formatTime(user.CreatedAt),
	}
}

// ToInvestorDTO is the sanitized projection returned to the investor themselves
func ToInvestorDTO(investor models.InstitutionalInvestor) dto.InvestorDTO {
	return dto.InvestorDTO{
		ID:              investor.ID,
		PersonName:      investor.PersonName,
		InstitutionName: investor.InstitutionName,
		Email:           investor.Email,
		JobTitle:        investor.JobTitle,
	}
}

func ToInvestorAdminDTO(investor models.InstitutionalInvestor) dto.InvestorAdminDTO {
	return dto.InvestorAdminDTO{
		ID:               investor.ID,
		UUID:             investor.UUID.String(),
		LeadID:           investor.LeadID,
		PersonName:       investor.PersonName,
		InstitutionName:  investor.InstitutionName,
		JobTitle:         investor.JobTitle,
		Email:            investor.Email,
		WorkPhone:        investor.WorkPhone,
		PersonalPhone:    investor.PersonalPhone,
		BusinessCardName: investor.BusinessCardName,
		Status:           investor.Status,
		IsActive:         utils.IsTrue(investor.IsActive),
		Username:         investor.Username,
		ApprovedAt:       formatTimePtr(investor.ApprovedAt),
		ApprovedBy:       investor.ApprovedBy,
		RejectedAt:       formatTimePtr(investor.RejectedAt),
		RejectedBy:       investor.RejectedBy,
		RejectionReason:  investor.RejectionReason,
		LastLoginAt:      formatTimePtr(investor.LastLoginAt),
		CreatedAt:        formatTime(investor.CreatedAt),
	}
}

func ToAdminDTO(admin models.Admin) dto.AdminDTO {
	return dto.AdminDTO{
		ID:          admin.ID,
		UUID:        admin.UUID.String(),
		Username:    admin.Username,
		Role:        admin.Role,
		IsActive:    utils.IsTrue(admin.IsActive),
		LastLoginAt: formatTimePtr(admin.LastLoginAt),
		CreatedAt:   formatTime(admin.CreatedAt),
	}
}

func ToOfferDTO(offer models.Offer) dto.OfferDTO {
	return dto.OfferDTO{
		ID:              offer.ID,
		UUID:            offer.UUID.String(),
		PropertyID:      offer.PropertyID,
		BuyerLeadID:     offer.BuyerLeadID,
		OfferAmount:     offer.OfferAmount,
		CounterAmount:   offer.CounterAmount,
		Terms:           offer.Terms,
		Status:          offer.Status,
		ClosingDate:     offer.ClosingDate,
		DownPayment:     offer.DownPayment,
		FinancingType:   offer.FinancingType,
		Contingencies:   offer.Contingencies,
		AdditionalTerms: offer.AdditionalTerms,
		OfferLetterURL:  offer.OfferLetterURL,
		ProofOfFundsURL: offer.ProofOfFundsURL,
		CreatedAt:       formatTime(offer.CreatedAt),
		UpdatedAt:       formatTime(offer.UpdatedAt),
	}
}

func ToForeclosureSubscriptionDTO(sub models.ForeclosureSubscription) dto.ForeclosureSubscriptionDTO {
	counties := []string(sub.Counties)
	if counties == nil {
		counties = []string{}
	}
	return dto.ForeclosureSubscriptionDTO{
		ID:               sub.ID,
		UUID:             sub.UUID.String(),
		LeadID:           sub.LeadID,
		Counties:         counties,
		SubscriptionType: sub.SubscriptionType,
		IsActive:         utils.IsTrue(sub.IsActive),
		LastSent:         formatTimePtr(sub.LastSent),
		CreatedAt:        formatTime(sub.CreatedAt),
		UpdatedAt:        formatTime(sub.UpdatedAt),
	}
}

func ToBidServiceRequestDTO(req models.BidServiceRequest) dto.BidServiceRequestDTO {
	return dto.BidServiceRequestDTO{
		ID:                     req.ID,
		UUID:                   req.UUID.String(),
		LeadID:                 req.LeadID,
		ForeclosureListingID:   req.ForeclosureListingID,
		Name:                   req.Name,
		Email:                  req.Email,
		Phone:                  req.Phone,
		InvestmentBudget:       req.InvestmentBudget,
		MaxBidAmount:           req.MaxBidAmount,
		InvestmentExperience:   req.InvestmentExperience,
		PreferredContactMethod: req.PreferredContactMethod,
		Timeframe:              req.Timeframe,
		AdditionalRequirements: req.AdditionalRequirements,
		Status:                 req.Status,
		AssignedTo:             req.AssignedTo,
		Notes:                  req.Notes,
		CreatedAt:              formatTime(req.CreatedAt),
		UpdatedAt:              formatTime(req.UpdatedAt),
	}
}

func ToCommunicationDTO(c models.Communication) dto.CommunicationDTO {
	return dto.CommunicationDTO{
		ID:            c.ID,
		UUID:          c.UUID.String(),
		LeadID:        c.LeadID,
		PartnerID:     c.PartnerID,
		InvestorID:    c.InvestorID,
		Type:          c.Type,
		Direction:     c.Direction,
		Recipient:     c.Recipient,
		Subject:       c.Subject,
		Content:       c.Content,
		Status:        c.Status,
		Attempts:      c.Attempts,
		LastError:     c.LastError,
		NextAttemptAt: formatTimePtr(c.NextAttemptAt),
		SentAt:        formatTimePtr(c.SentAt),
		CreatedAt:     formatTime(c.CreatedAt),
	}
}

func ToInstitutionalBidDTO(bid models.InstitutionalBid) dto.InstitutionalBidDTO {
	return dto.InstitutionalBidDTO{
		ID:              bid.ID,
		UUID:            bid.UUID.String(),
		PropertyID:      bid.PropertyID,
		PropertyAddress: bid.PropertyAddress,
		BidAmount:       bid.BidAmount,
		AuctionDate:     bid.AuctionDate.UTC().Format("2006-01-02"),
		Status:          bid.Status,
		Notes:           bid.Notes,
		CreatedAt:       formatTime(bid.CreatedAt),
	}
}
