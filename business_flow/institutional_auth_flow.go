// Package businessflow contains the core business logic and use cases for the realty workflow
package businessflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/amirphl/realty-workflow/app/dto"
	"github.com/amirphl/realty-workflow/models"
	"github.com/amirphl/realty-workflow/repository"
	"github.com/amirphl/realty-workflow/utils"
)

// InstitutionalAuthFlow issues and checks opaque sessions for approved institutional investors
type InstitutionalAuthFlow interface {
	Login(ctx context.Context, req *dto.LoginRequest, metadata *ClientMetadata) (*dto.InstitutionalLoginResponse, error)
	Authenticate(ctx context.Context, token string) (*models.InstitutionalInvestor, error)
	Logout(ctx context.Context, token string, metadata *ClientMetadata) error
	Me(ctx context.Context, investorID uint) (*dto.InvestorDTO, error)
	CreateBid(ctx context.Context, investorID uint, req *dto.CreateInstitutionalBidRequest, metadata *ClientMetadata) (*dto.InstitutionalBidDTO, error)
	ListBids(ctx context.Context, investorID uint) ([]dto.InstitutionalBidDTO, error)
}

// InstitutionalAuthFlowImpl implements the institutional session gate
type InstitutionalAuthFlowImpl struct {
	investorRepo repository.InstitutionalInvestorRepository
	sessionRepo  repository.InstitutionalSessionRepository
	bidRepo      repository.InstitutionalBidRepository
	auditRepo    repository.AuditLogRepository
	sessionTTL   time.Duration
}

// NewInstitutionalAuthFlow creates a new institutional auth flow instance
func NewInstitutionalAuthFlow(
	investorRepo repository.InstitutionalInvestorRepository,
	sessionRepo repository.InstitutionalSessionRepository,
	bidRepo repository.InstitutionalBidRepository,
	auditRepo repository.AuditLogRepository,
	sessionTTL time.Duration,
) InstitutionalAuthFlow {
	if sessionTTL <= 0 {
		sessionTTL = utils.InstitutionalSessionTTL
	}
	return &InstitutionalAuthFlowImpl{
		investorRepo: investorRepo,
		sessionRepo:  sessionRepo,
		bidRepo:      bidRepo,
		auditRepo:    auditRepo,
		sessionTTL:   sessionTTL,
	}
}

// Login checks the investor's credentials and opens a new session
func (f *InstitutionalAuthFlowImpl) Login(ctx context.Context, req *dto.LoginRequest, metadata *ClientMetadata) (*dto.InstitutionalLoginResponse, error) {
	investor, err := f.investorRepo.ByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		return nil, NewBusinessError("INSTITUTIONAL_LOGIN_FAILED", "Login failed", err)
	}

	// unapproved investors have no username or hash yet
	if investor == nil || investor.PasswordHash == nil {
		f.auditLoginFailure(ctx, nil, fmt.Sprintf("Institutional login failed for %q: unknown username", req.Username), metadata)
		return nil, NewBusinessError("INSTITUTIONAL_LOGIN_FAILED", "Invalid username or password", ErrInvalidCredentials)
	}
	if !investor.IsActiveAndApproved() {
		f.auditLoginFailure(ctx, &investor.ID, fmt.Sprintf("Institutional login refused for %d: not approved", investor.ID), metadata)
		return nil, NewBusinessError("NOT_APPROVED", "Your account is not approved or has been deactivated", ErrNotApproved)
	}
	if bcrypt.CompareHashAndPassword([]byte(*investor.PasswordHash), []byte(req.Password)) != nil {
		f.auditLoginFailure(ctx, &investor.ID, fmt.Sprintf("Institutional login failed for %d: wrong password", investor.ID), metadata)
		return nil, NewBusinessError("INSTITUTIONAL_LOGIN_FAILED", "Invalid username or password", ErrInvalidCredentials)
	}

	token, err := utils.RandomHex(utils.SessionTokenBytes)
	if err != nil {
		return nil, NewBusinessError("INSTITUTIONAL_LOGIN_FAILED", "Login failed", err)
	}

	now := utils.UTCNow()
	session := &models.InstitutionalSession{
		SessionToken: token,
		InvestorID:   investor.ID,
		ExpiresAt:    now.Add(f.sessionTTL),
	}
	if metadata != nil {
		session.IPAddress = &metadata.IPAddress
		session.UserAgent = &metadata.UserAgent
	}

	if err := f.sessionRepo.Save(ctx, session); err != nil {
		return nil, NewBusinessError("INSTITUTIONAL_LOGIN_FAILED", "Login failed", err)
	}
	if err := f.investorRepo.TouchLastLogin(ctx, investor.ID, now); err != nil {
		return nil, NewBusinessError("INSTITUTIONAL_LOGIN_FAILED", "Login failed", err)
	}

	msg := fmt.Sprintf("Institutional investor logged in: %d", investor.ID)
	_ = writeAudit(ctx, f.auditRepo, models.AuditActorInvestor, &investor.ID, models.AuditActionLoginSuccess, msg, true, nil, metadata)

	return &dto.InstitutionalLoginResponse{
		Investor:     ToInvestorDTO(*investor),
		SessionToken: token,
		ExpiresAt:    formatTime(session.ExpiresAt),
	}, nil
}

// Authenticate resolves a session token to an active, approved investor.
// Expired sessions are only detected here; nothing sweeps them.
func (f *InstitutionalAuthFlowImpl) Authenticate(ctx context.Context, token string) (*models.InstitutionalInvestor, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}

	session, err := f.sessionRepo.ByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrUnauthenticated
	}
	if session.IsExpiredAt(utils.UTCNow()) {
		return nil, ErrSessionExpired
	}

	investor := session.Investor
	if investor == nil {
		if investor, err = f.investorRepo.ByID(ctx, session.InvestorID); err != nil {
			return nil, err
		}
	}
	if investor == nil || !investor.IsActiveAndApproved() {
		return nil, ErrAccountInactive
	}
	return investor, nil
}

// Logout deletes the session. Unknown tokens are not an error.
func (f *InstitutionalAuthFlowImpl) Logout(ctx context.Context, token string, metadata *ClientMetadata) error {
	if token == "" {
		return nil
	}
	if err := f.sessionRepo.DeleteByToken(ctx, token); err != nil {
		return NewBusinessError("INSTITUTIONAL_LOGOUT_FAILED", "Logout failed", err)
	}
	_ = writeAudit(ctx, f.auditRepo, models.AuditActorInvestor, nil, models.AuditActionLogout, "Institutional session closed", true, nil, metadata)
	return nil
}

// Me returns the sanitized investor projection
func (f *InstitutionalAuthFlowImpl) Me(ctx context.Context, investorID uint) (*dto.InvestorDTO, error) {
	investor, err := f.investorRepo.ByID(ctx, investorID)
	if err != nil {
		return nil, NewBusinessError("GET_INVESTOR_FAILED", "Failed to load investor", err)
	}
	if investor == nil {
		return nil, NewBusinessError("GET_INVESTOR_FAILED", "Failed to load investor", ErrInvestorNotFound)
	}
	out := ToInvestorDTO(*investor)
	return &out, nil
}

// CreateBid records an auction bid placed by the investor
func (f *InstitutionalAuthFlowImpl) CreateBid(ctx context.Context, investorID uint, req *dto.CreateInstitutionalBidRequest, metadata *ClientMetadata) (*dto.InstitutionalBidDTO, error) {
	auctionDate, err := parseAuctionDate(req.AuctionDate)
	if err != nil {
		return nil, NewBusinessError("CREATE_BID_FAILED", "Bid creation failed", ErrInvalidAuctionDate)
	}

	bid := &models.InstitutionalBid{
		UUID:            uuid.New(),
		InvestorID:      investorID,
		PropertyID:      req.PropertyID,
		PropertyAddress: strings.TrimSpace(req.PropertyAddress),
		BidAmount:       req.BidAmount,
		AuctionDate:     auctionDate,
		Status:          models.InstitutionalBidStatusSubmitted,
		Notes:           req.Notes,
	}
	if err := f.bidRepo.Save(ctx, bid); err != nil {
		return nil, NewBusinessError("CREATE_BID_FAILED", "Bid creation failed", err)
	}

	out := ToInstitutionalBidDTO(*bid)
	return &out, nil
}

// ListBids returns the investor's own bids
func (f *InstitutionalAuthFlowImpl) ListBids(ctx context.Context, investorID uint) ([]dto.InstitutionalBidDTO, error) {
	bids, err := f.bidRepo.ListByInvestor(ctx, investorID)
	if err != nil {
		return nil, NewBusinessError("LIST_BIDS_FAILED", "Failed to list bids", err)
	}
	items := make([]dto.InstitutionalBidDTO, 0, len(bids))
	for _, b := range bids {
		items = append(items, ToInstitutionalBidDTO(*b))
	}
	return items, nil
}

func (f *InstitutionalAuthFlowImpl) auditLoginFailure(ctx context.Context, investorID *uint, msg string, metadata *ClientMetadata) {
	_ = writeAudit(ctx, f.auditRepo, models.AuditActorInvestor, investorID, models.AuditActionLoginFailed, msg, false, &msg, metadata)
}

func parseAuctionDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
