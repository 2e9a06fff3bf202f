// Package businessflow contains the core business logic and use cases for the realty workflow
package businessflow

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/amirphl/realty-workflow/app/dto"
	"github.com/amirphl/realty-workflow/app/services"
	"github.com/amirphl/realty-workflow/models"
	"github.com/amirphl/realty-workflow/repository"
	"github.com/amirphl/realty-workflow/utils"
)

// LeadFlow captures public form submissions and lets admins work the lead pipeline
type LeadFlow interface {
	CreateLead(ctx context.Context, req *dto.CreateLeadRequest, metadata *ClientMetadata) (*dto.CreateLeadResponse, error)
	UpdateLeadStatus(ctx context.Context, id uint, req *dto.UpdateLeadStatusRequest, metadata *ClientMetadata) (*dto.LeadDTO, error)
	ListLeads(ctx context.Context, req *dto.ListLeadsRequest) ([]dto.LeadDTO, error)
	ExportLeads(ctx context.Context, req *dto.ListLeadsRequest) (string, []byte, error)
}

// LeadFlowImpl implements the lead business flow
type LeadFlowImpl struct {
	leadRepo         repository.LeadRepository
	investorRepo     repository.InstitutionalInvestorRepository
	commRepo         repository.CommunicationRepository
	auditRepo        repository.AuditLogRepository
	verificationFlow VerificationFlow
	publisher        services.EventPublisher
	logger           *zap.Logger
	db               *gorm.DB
}

// NewLeadFlow creates a new lead flow instance
func NewLeadFlow(
	leadRepo repository.LeadRepository,
	investorRepo repository.InstitutionalInvestorRepository,
	commRepo repository.CommunicationRepository,
	auditRepo repository.AuditLogRepository,
	verificationFlow VerificationFlow,
	publisher services.EventPublisher,
	logger *zap.Logger,
	db *gorm.DB,
) LeadFlow {
	return &LeadFlowImpl{
		leadRepo:         leadRepo,
		investorRepo:     investorRepo,
		commRepo:         commRepo,
		auditRepo:        auditRepo,
		verificationFlow: verificationFlow,
		publisher:        publisher,
		logger:           logger,
		db:               db,
	}
}

// CreateLead records a lead. Buyer leads get an email token and a phone code; the response never carries them.
func (f *LeadFlowImpl) CreateLead(ctx context.Context, req *dto.CreateLeadRequest, metadata *ClientMetadata) (*dto.CreateLeadResponse, error) {
	if req.InstitutionalDetails != nil {
		existing, err := f.investorRepo.ByEmail(ctx, utils.NormalizeEmail(req.Email))
		if err != nil {
			return nil, NewBusinessError("CREATE_LEAD_FAILED", "Lead creation failed", err)
		}
		if existing != nil {
			return nil, NewBusinessError("CREATE_LEAD_FAILED", "Lead creation failed", ErrEmailAlreadyExists)
		}
	}

	lead := f.buildLead(req)
	isBuyer := lead.Type == models.LeadTypeBuyer

	var emailToken, phoneCode string
	if isBuyer {
		var err error
		if emailToken, err = GenerateEmailToken(); err != nil {
			return nil, NewBusinessError("CREATE_LEAD_FAILED", "Lead creation failed", err)
		}
		if phoneCode, err = GenerateOTP(); err != nil {
			return nil, NewBusinessError("CREATE_LEAD_FAILED", "Lead creation failed", err)
		}
		now := utils.UTCNow()
		lead.EmailVerificationToken = &emailToken
		lead.EmailVerificationSentAt = &now
		lead.PhoneVerificationCode = &phoneCode
		lead.PhoneVerificationSentAt = &now
	}

	var investor *models.InstitutionalInvestor
	err := repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		if err := f.leadRepo.Save(txCtx, lead); err != nil {
			return err
		}

		if req.InstitutionalDetails != nil {
			investor = buildInvestor(lead, req.InstitutionalDetails)
			if err := f.investorRepo.Save(txCtx, investor); err != nil {
				return err
			}
		}

		return f.commRepo.Save(txCtx, leadAcknowledgement(lead))
	})
	if err != nil {
		errMsg := fmt.Sprintf("Lead creation failed: %s", err.Error())
		_ = writeAudit(ctx, f.auditRepo, models.AuditActorLead, nil, models.AuditActionLeadCreated, errMsg, false, &errMsg, metadata)
		return nil, NewBusinessError("CREATE_LEAD_FAILED", "Lead creation failed", err)
	}

	msg := fmt.Sprintf("Lead created: %d (%s)", lead.ID, lead.Type)
	_ = writeAudit(ctx, f.auditRepo, models.AuditActorLead, &lead.ID, models.AuditActionLeadCreated, msg, true, nil, metadata)

	if isBuyer {
		target := lead.VerificationTarget()
		f.verificationFlow.Dispatch(target, models.VerificationKindEmail, emailToken, metadata)
		f.verificationFlow.Dispatch(target, models.VerificationKindPhone, phoneCode, metadata)
	}

	publishEvent(f.publisher, f.logger, services.NewEvent(services.EventLeadCreated, lead.ID, map[string]any{
		"type": lead.Type,
	}))

	resp := &dto.CreateLeadResponse{
		Message:              "Lead submitted successfully",
		Lead:                 ToLeadDTO(*lead),
		RequiresVerification: isBuyer,
	}
	if isBuyer {
		resp.Message = "Lead submitted successfully. Please verify your email and phone number."
	}
	if investor != nil {
		resp.InvestorID = &investor.ID
	}
	return resp, nil
}

// UpdateLeadStatus moves a lead through the pipeline
func (f *LeadFlowImpl) UpdateLeadStatus(ctx context.Context, id uint, req *dto.UpdateLeadStatusRequest, metadata *ClientMetadata) (*dto.LeadDTO, error) {
	if !models.IsValidLeadStatus(req.Status) {
		return nil, NewBusinessError("UPDATE_LEAD_STATUS_FAILED", "Lead status update failed", ErrInvalidStatus)
	}

	lead, err := f.leadRepo.ByID(ctx, id)
	if err != nil {
		return nil, NewBusinessError("UPDATE_LEAD_STATUS_FAILED", "Lead status update failed", err)
	}
	if lead == nil {
		return nil, NewBusinessError("UPDATE_LEAD_STATUS_FAILED", "Lead status update failed", ErrLeadNotFound)
	}

	if _, err := f.leadRepo.UpdateStatus(ctx, id, req.Status); err != nil {
		return nil, NewBusinessError("UPDATE_LEAD_STATUS_FAILED", "Lead status update failed", err)
	}

	msg := fmt.Sprintf("Lead %d status %s -> %s", id, lead.Status, req.Status)
	_ = writeAudit(ctx, f.auditRepo, models.AuditActorAdmin, nil, models.AuditActionLeadStatusUpdated, msg, true, nil, metadata)

	lead.Status = req.Status
	out := ToLeadDTO(*lead)
	return &out, nil
}

// ListLeads returns leads newest first
func (f *LeadFlowImpl) ListLeads(ctx context.Context, req *dto.ListLeadsRequest) ([]dto.LeadDTO, error) {
	leads, err := f.leadRepo.ByFilter(ctx, leadFilterFrom(req), "created_at DESC, id DESC", 0, 0)
	if err != nil {
		return nil, NewBusinessError("LIST_LEADS_FAILED", "Failed to list leads", err)
	}

	items := make([]dto.LeadDTO, 0, len(leads))
	for _, l := range leads {
		items = append(items, ToLeadDTO(*l))
	}
	return items, nil
}

// ExportLeads renders the filtered leads as an XLSX workbook
func (f *LeadFlowImpl) ExportLeads(ctx context.Context, req *dto.ListLeadsRequest) (string, []byte, error) {
	leads, err := f.leadRepo.ByFilter(ctx, leadFilterFrom(req), "created_at DESC, id DESC", 0, 0)
	if err != nil {
		return "", nil, NewBusinessError("EXPORT_LEADS_FAILED", "Failed to fetch leads", err)
	}

	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	sheet := "Leads"
	if err := xl.SetSheetName(xl.GetSheetName(0), sheet); err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}

	header := []string{"id", "uuid", "type", "name", "email", "phone", "source", "status", "email_verified", "phone_verified", "property_address", "created_at"}
	_ = xl.SetSheetRow(sheet, "A1", &header)

	for i, l := range leads {
		record := []string{
			strconv.FormatUint(uint64(l.ID), 10),
			l.UUID.String(),
			l.Type,
			l.Name,
			l.Email,
			l.Phone,
			l.Source,
			l.Status,
			strconv.FormatBool(l.IsVerified(models.VerificationKindEmail)),
			strconv.FormatBool(l.IsVerified(models.VerificationKindPhone)),
			utils.DerefString(l.PropertyAddress),
			formatTime(l.CreatedAt),
		}
		cellRef, _ := excelize.CoordinatesToCellName(1, i+2)
		_ = xl.SetSheetRow(sheet, cellRef, &record)
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}
	filename := fmt.Sprintf("leads_%s.xlsx", utils.UTCNow().Format("20060102"))
	return filename, buf.Bytes(), nil
}

func (f *LeadFlowImpl) buildLead(req *dto.CreateLeadRequest) *models.Lead {
	source := models.LeadSourceWebsiteForm
	if req.Source != nil && *req.Source != "" {
		source = *req.Source
	}
	return &models.Lead{
		UUID:            uuid.New(),
		Type:            req.Type,
		Name:            strings.TrimSpace(req.Name),
		Email:           utils.NormalizeEmail(req.Email),
		Phone:           strings.TrimSpace(req.Phone),
		Source:          source,
		Status:          models.LeadStatusNew,
		Motivation:      req.Motivation,
		Timeline:        req.Timeline,
		Budget:          req.Budget,
		PreferredAreas:  models.StringList(req.PreferredAreas),
		ExperienceLevel: req.ExperienceLevel,
		PropertyAddress: req.PropertyAddress,
		Notes:           req.Notes,
		VerificationState: models.VerificationState{
			EmailVerified: utils.ToPtr(false),
			PhoneVerified: utils.ToPtr(false),
		},
	}
}

func buildInvestor(lead *models.Lead, details *dto.InstitutionalDetails) *models.InstitutionalInvestor {
	return &models.InstitutionalInvestor{
		UUID:             uuid.New(),
		LeadID:           &lead.ID,
		PersonName:       strings.TrimSpace(details.PersonName),
		InstitutionName:  strings.TrimSpace(details.InstitutionName),
		JobTitle:         strings.TrimSpace(details.JobTitle),
		Email:            lead.Email,
		WorkPhone:        strings.TrimSpace(details.WorkPhone),
		PersonalPhone:    strings.TrimSpace(details.PersonalPhone),
		BusinessCardName: details.BusinessCardName,
		Status:           models.ApprovalStatusPending,
		IsActive:         utils.ToPtr(false),
	}
}

// leadAcknowledgement is the outbox row written for every new lead. It never carries a verification secret.
func leadAcknowledgement(lead *models.Lead) *models.Communication {
	var c *models.Communication
	if lead.Type == models.LeadTypeBuyer {
		c = newOutboundEmail(lead.Email,
			fmt.Sprintf("Verify your email - %s", brandName),
			fmt.Sprintf("Hi %s,\n\nThanks for your interest in our investment properties. We sent a verification link to %s and a 6-digit code to your phone. Please confirm both to get full access.\n\n%s",
				lead.Name, lead.Email, brandName))
	} else {
		c = newOutboundEmail(lead.Email,
			"Thank you for your property submission",
			fmt.Sprintf("Hi %s,\n\nThank you for reaching out. A member of our team will review your submission and contact you within 24 hours.\n\n%s",
				lead.Name, brandName))
	}
	c.LeadID = &lead.ID
	return c
}

func leadFilterFrom(req *dto.ListLeadsRequest) models.LeadFilter {
	if req == nil {
		return models.LeadFilter{}
	}
	return models.LeadFilter{Type: req.Type, Status: req.Status}
}
