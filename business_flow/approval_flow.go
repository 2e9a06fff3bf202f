// Package businessflow contains the core business logic and use cases for the realty workflow
package businessflow

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/amirphl/realty-workflow/app/dto"
	"github.com/amirphl/realty-workflow/app/services"
	"github.com/amirphl/realty-workflow/models"
	"github.com/amirphl/realty-workflow/repository"
	"github.com/amirphl/realty-workflow/utils"
)

const (
	passwordAlphabet      = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz23456789!@#$%"
	usernameGenerateTries = 5
)

// ApprovalFlow moves partners and institutional investors out of pending, exactly once
type ApprovalFlow interface {
	ApproveInvestor(ctx context.Context, id uint, req *dto.ApproveInvestorRequest, approvedBy string, metadata *ClientMetadata) (*dto.ApproveInvestorResponse, error)
	RejectInvestor(ctx context.Context, id uint, req *dto.RejectRequest, rejectedBy string, metadata *ClientMetadata) (*dto.InvestorDecisionResponse, error)
	ApprovePartner(ctx context.Context, id uint, approvedBy string, metadata *ClientMetadata) (*dto.PartnerDecisionResponse, error)
	RejectPartner(ctx context.Context, id uint, req *dto.RejectRequest, rejectedBy string, metadata *ClientMetadata) (*dto.PartnerDecisionResponse, error)
	ListPartners(ctx context.Context, req *dto.ListByStatusRequest) (*dto.ListPartnersResponse, error)
	ListInvestors(ctx context.Context, req *dto.ListByStatusRequest) (*dto.ListInvestorsResponse, error)
}

// ApprovalFlowImpl implements the approval workflow
type ApprovalFlowImpl struct {
	partnerRepo  repository.PartnerRepository
	investorRepo repository.InstitutionalInvestorRepository
	commRepo     repository.CommunicationRepository
	auditRepo    repository.AuditLogRepository
	publisher    services.EventPublisher
	bcryptCost   int
	logger       *zap.Logger
	db           *gorm.DB
}

// NewApprovalFlow creates a new approval flow instance
func NewApprovalFlow(
	partnerRepo repository.PartnerRepository,
	investorRepo repository.InstitutionalInvestorRepository,
	commRepo repository.CommunicationRepository,
	auditRepo repository.AuditLogRepository,
	publisher services.EventPublisher,
	bcryptCost int,
	logger *zap.Logger,
	db *gorm.DB,
) ApprovalFlow {
	if bcryptCost <= 0 {
		bcryptCost = utils.BcryptCost
	}
	return &ApprovalFlowImpl{
		partnerRepo:  partnerRepo,
		investorRepo: investorRepo,
		commRepo:     commRepo,
		auditRepo:    auditRepo,
		publisher:    publisher,
		bcryptCost:   bcryptCost,
		logger:       logger,
		db:           db,
	}
}

// GeneratePassword returns a random password of n characters
func GeneratePassword(n int) (string, error) {
	limit := big.NewInt(int64(len(passwordAlphabet)))
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		out[i] = passwordAlphabet[idx.Int64()]
	}
	return string(out), nil
}

// GenerateInvestorUsername derives <slug(institution)>_<4 random digits>
func GenerateInvestorUsername(institution string) (string, error) {
	slug := utils.Slugify(institution)
	if slug == "" {
		slug = "investor"
	}
	if len(slug) > 40 {
		slug = strings.TrimRight(slug[:40], "_")
	}
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s_%04d", slug, n.Int64()), nil
}

// ApproveInvestor issues credentials to a pending investor. The plaintext password is returned
// here and nowhere else; only its hash is stored.
func (f *ApprovalFlowImpl) ApproveInvestor(ctx context.Context, id uint, req *dto.ApproveInvestorRequest, approvedBy string, metadata *ClientMetadata) (*dto.ApproveInvestorResponse, error) {
	investor, err := f.investorRepo.ByID(ctx, id)
	if err != nil {
		return nil, NewBusinessError("APPROVE_INVESTOR_FAILED", "Investor approval failed", err)
	}
	if investor == nil {
		return nil, NewBusinessError("APPROVE_INVESTOR_FAILED", "Investor approval failed", ErrInvestorNotFound)
	}
	if investor.Status != models.ApprovalStatusPending {
		return nil, NewBusinessError("APPROVE_INVESTOR_FAILED", "Investor approval failed", ErrNotPending)
	}

	var suppliedUsername, suppliedPassword *string
	if req != nil {
		suppliedUsername, suppliedPassword = req.Username, req.Password
	}

	username, err := f.pickUsername(ctx, investor, suppliedUsername)
	if err != nil {
		return nil, NewBusinessError("APPROVE_INVESTOR_FAILED", "Investor approval failed", err)
	}

	password := utils.DerefString(suppliedPassword)
	if password == "" {
		if password, err = GeneratePassword(utils.GeneratedPasswordLen); err != nil {
			return nil, NewBusinessError("APPROVE_INVESTOR_FAILED", "Investor approval failed", err)
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), f.bcryptCost)
	if err != nil {
		return nil, NewBusinessError("APPROVE_INVESTOR_FAILED", "Investor approval failed", err)
	}

	now := utils.UTCNow()
	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		ok, err := f.investorRepo.Approve(txCtx, id, username, string(hash), approvedBy, now)
		if err != nil {
			return err
		}
		if !ok {
			return f.resolveInvestorMiss(txCtx, id)
		}

		notice := newOutboundEmail(investor.Email,
			fmt.Sprintf("Your institutional investor account has been approved - %s", brandName),
			fmt.Sprintf("Hi %s,\n\nYour institutional investor application for %s has been approved. Your login credentials will be shared with you separately by our team.\n\n%s",
				investor.PersonName, investor.InstitutionName, brandName))
		notice.InvestorID = &investor.ID
		notice.LeadID = investor.LeadID
		return f.commRepo.Save(txCtx, notice)
	})
	if err != nil {
		errMsg := fmt.Sprintf("Investor %d approval failed: %s", id, err.Error())
		_ = writeAudit(ctx, f.auditRepo, models.AuditActorAdmin, nil, models.AuditActionInvestorApproved, errMsg, false, &errMsg, metadata)
		return nil, NewBusinessError("APPROVE_INVESTOR_FAILED", "Investor approval failed", err)
	}

	msg := fmt.Sprintf("Investor %d approved by %s as %s", id, approvedBy, username)
	_ = writeAudit(ctx, f.auditRepo, models.AuditActorAdmin, nil, models.AuditActionInvestorApproved, msg, true, nil, metadata)

	publishEvent(f.publisher, f.logger, services.NewEvent(services.EventInvestorApproved, id, map[string]any{
		"approved_by": approvedBy,
	}))

	investor.Status = models.ApprovalStatusApproved
	investor.IsActive = utils.ToPtr(true)
	investor.Username = &username
	investor.ApprovedAt = &now
	investor.ApprovedBy = &approvedBy

	return &dto.ApproveInvestorResponse{
		Message:  "Investor approved. Share these credentials with the investor; the password will not be shown again.",
		Investor: ToInvestorAdminDTO(*investor),
		Username: username,
		Password: password,
	}, nil
}

// RejectInvestor closes a pending application
func (f *ApprovalFlowImpl) RejectInvestor(ctx context.Context, id uint, req *dto.RejectRequest, rejectedBy string, metadata *ClientMetadata) (*dto.InvestorDecisionResponse, error) {
	reason := rejectionReason(req)
	now := utils.UTCNow()

	ok, err := f.investorRepo.Reject(ctx, id, reason, rejectedBy, now)
	if err == nil && !ok {
		err = f.resolveInvestorMiss(ctx, id)
	}
	if err != nil {
		errMsg := fmt.Sprintf("Investor %d rejection failed: %s", id, err.Error())
		_ = writeAudit(ctx, f.auditRepo, models.AuditActorAdmin, nil, models.AuditActionInvestorRejected, errMsg, false, &errMsg, metadata)
		return nil, NewBusinessError("REJECT_INVESTOR_FAILED", "Investor rejection failed", err)
	}

	msg := fmt.Sprintf("Investor %d rejected by %s: %s", id, rejectedBy, reason)
	_ = writeAudit(ctx, f.auditRepo, models.AuditActorAdmin, nil, models.AuditActionInvestorRejected, msg, true, nil, metadata)

	publishEvent(f.publisher, f.logger, services.NewEvent(services.EventInvestorRejected, id, map[string]any{
		"reason": reason,
	}))

	investor, err := f.investorRepo.ByID(ctx, id)
	if err != nil {
		return nil, NewBusinessError("REJECT_INVESTOR_FAILED", "Investor rejection failed", err)
	}
	if investor == nil {
		return nil, NewBusinessError("REJECT_INVESTOR_FAILED", "Investor rejection failed", ErrInvestorNotFound)
	}
	return &dto.InvestorDecisionResponse{
		Message:  "Investor rejected",
		Investor: ToInvestorAdminDTO(*investor),
	}, nil
}

// ApprovePartner unlocks a pending partner. Login still requires both verifications.
func (f *ApprovalFlowImpl) ApprovePartner(ctx context.Context, id uint, approvedBy string, metadata *ClientMetadata) (*dto.PartnerDecisionResponse, error) {
	now := utils.UTCNow()

	var partner *models.Partner
	err := repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		ok, err := f.partnerRepo.Approve(txCtx, id, approvedBy, now)
		if err != nil {
			return err
		}
		if !ok {
			return f.resolvePartnerMiss(txCtx, id)
		}

		partner, err = f.partnerRepo.ByID(txCtx, id)
		if err != nil {
			return err
		}
		if partner == nil {
			return ErrPartnerNotFound
		}

		notice := newOutboundEmail(partner.Email,
			fmt.Sprintf("Partner account approved - %s", brandName),
			fmt.Sprintf("Hi %s,\n\nYour selling partner account has been approved! You can now log in and start posting properties.\n\n%s",
				partner.FirstName, brandName))
		notice.PartnerID = &partner.ID
		return f.commRepo.Save(txCtx, notice)
	})
	if err != nil {
		errMsg := fmt.Sprintf("Partner %d approval failed: %s", id, err.Error())
		_ = writeAudit(ctx, f.auditRepo, models.AuditActorAdmin, nil, models.AuditActionPartnerApproved, errMsg, false, &errMsg, metadata)
		return nil, NewBusinessError("APPROVE_PARTNER_FAILED", "Partner approval failed", err)
	}

	msg := fmt.Sprintf("Partner %d approved by %s", id, approvedBy)
	_ = writeAudit(ctx, f.auditRepo, models.AuditActorAdmin, nil, models.AuditActionPartnerApproved, msg, true, nil, metadata)

	publishEvent(f.publisher, f.logger, services.NewEvent(services.EventPartnerApproved, id, map[string]any{
		"approved_by": approvedBy,
	}))

	return &dto.PartnerDecisionResponse{
		Message: "Partner approved",
		Partner: ToPartnerDTO(*partner),
	}, nil
}

// RejectPartner closes a pending partner application
func (f *ApprovalFlowImpl) RejectPartner(ctx context.Context, id uint, req *dto.RejectRequest, rejectedBy string, metadata *ClientMetadata) (*dto.PartnerDecisionResponse, error) {
	reason := rejectionReason(req)
	now := utils.UTCNow()

	ok, err := f.partnerRepo.Reject(ctx, id, reason, rejectedBy, now)
	if err == nil && !ok {
		err = f.resolvePartnerMiss(ctx, id)
	}
	if err != nil {
		errMsg := fmt.Sprintf("Partner %d rejection failed: %s", id, err.Error())
		_ = writeAudit(ctx, f.auditRepo, models.AuditActorAdmin, nil, models.AuditActionPartnerRejected, errMsg, false, &errMsg, metadata)
		return nil, NewBusinessError("REJECT_PARTNER_FAILED", "Partner rejection failed", err)
	}

	msg := fmt.Sprintf("Partner %d rejected by %s: %s", id, rejectedBy, reason)
	_ = writeAudit(ctx, f.auditRepo, models.AuditActorAdmin, nil, models.AuditActionPartnerRejected, msg, true, nil, metadata)

	publishEvent(f.publisher, f.logger, services.NewEvent(services.EventPartnerRejected, id, map[string]any{
		"reason": reason,
	}))

	partner, err := f.partnerRepo.ByID(ctx, id)
	if err != nil {
		return nil, NewBusinessError("REJECT_PARTNER_FAILED", "Partner rejection failed", err)
	}
	if partner == nil {
		return nil, NewBusinessError("REJECT_PARTNER_FAILED", "Partner rejection failed", ErrPartnerNotFound)
	}
	return &dto.PartnerDecisionResponse{
		Message: "Partner rejected",
		Partner: ToPartnerDTO(*partner),
	}, nil
}

// ListPartners lists partners, optionally by approval status
func (f *ApprovalFlowImpl) ListPartners(ctx context.Context, req *dto.ListByStatusRequest) (*dto.ListPartnersResponse, error) {
	filter := models.PartnerFilter{ApprovalStatus: req.Status}

	total, err := f.partnerRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("LIST_PARTNERS_FAILED", "Failed to list partners", err)
	}
	partners, err := f.partnerRepo.ByFilter(ctx, filter, "created_at DESC, id DESC", req.Limit, req.Offset)
	if err != nil {
		return nil, NewBusinessError("LIST_PARTNERS_FAILED", "Failed to list partners", err)
	}

	items := make([]dto.PartnerDTO, 0, len(partners))
	for _, p := range partners {
		items = append(items, ToPartnerDTO(*p))
	}
	return &dto.ListPartnersResponse{Items: items, Total: total}, nil
}

// ListInvestors lists institutional investors, optionally by status
func (f *ApprovalFlowImpl) ListInvestors(ctx context.Context, req *dto.ListByStatusRequest) (*dto.ListInvestorsResponse, error) {
	filter := models.InstitutionalInvestorFilter{Status: req.Status}

	total, err := f.investorRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("LIST_INVESTORS_FAILED", "Failed to list investors", err)
	}
	investors, err := f.investorRepo.ByFilter(ctx, filter, "created_at DESC, id DESC", req.Limit, req.Offset)
	if err != nil {
		return nil, NewBusinessError("LIST_INVESTORS_FAILED", "Failed to list investors", err)
	}

	items := make([]dto.InvestorAdminDTO, 0, len(investors))
	for _, i := range investors {
		items = append(items, ToInvestorAdminDTO(*i))
	}
	return &dto.ListInvestorsResponse{Items: items, Total: total}, nil
}

func (f *ApprovalFlowImpl) pickUsername(ctx context.Context, investor *models.InstitutionalInvestor, supplied *string) (string, error) {
	if supplied != nil && strings.TrimSpace(*supplied) != "" {
		username := strings.TrimSpace(*supplied)
		taken, err := f.investorRepo.ByUsername(ctx, username)
		if err != nil {
			return "", err
		}
		if taken != nil && taken.ID != investor.ID {
			return "", ErrUsernameAlreadyExists
		}
		return username, nil
	}

	for range usernameGenerateTries {
		username, err := GenerateInvestorUsername(investor.InstitutionName)
		if err != nil {
			return "", err
		}
		taken, err := f.investorRepo.ByUsername(ctx, username)
		if err != nil {
			return "", err
		}
		if taken == nil {
			return username, nil
		}
	}
	return "", ErrUsernameAlreadyExists
}

// resolveInvestorMiss explains why a conditional update matched no row
func (f *ApprovalFlowImpl) resolveInvestorMiss(ctx context.Context, id uint) error {
	investor, err := f.investorRepo.ByID(ctx, id)
	if err != nil {
		return err
	}
	if investor == nil {
		return ErrInvestorNotFound
	}
	return ErrNotPending
}

func (f *ApprovalFlowImpl) resolvePartnerMiss(ctx context.Context, id uint) error {
	partner, err := f.partnerRepo.ByID(ctx, id)
	if err != nil {
		return err
	}
	if partner == nil {
		return ErrPartnerNotFound
	}
	return ErrNotPending
}

func rejectionReason(req *dto.RejectRequest) string {
	if req == nil || req.Reason == nil || strings.TrimSpace(*req.Reason) == "" {
		return utils.DefaultRejectionReason
	}
	return strings.TrimSpace(*req.Reason)
}
