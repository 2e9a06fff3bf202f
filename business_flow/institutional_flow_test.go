package businessflow_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/amirphl/realty-workflow/app/dto"
	"github.com/amirphl/realty-workflow/app/services"
	businessflow "github.com/amirphl/realty-workflow/business_flow"
	"github.com/amirphl/realty-workflow/models"
	"github.com/amirphl/realty-workflow/utils"
)

func applyAsInstitution(t *testing.T, env *flowEnv, email string) uint {
	t.Helper()
	resp, err := env.Lead.CreateLead(context.Background(), &dto.CreateLeadRequest{
		Type:  models.LeadTypeInstitutionalInvestor,
		Name:  "Irene Institution",
		Email: email,
		Phone: "+12125550199",
		InstitutionalDetails: &dto.InstitutionalDetails{
			PersonName:      "Irene Institution",
			InstitutionName: "Hudson River Capital LLC",
			JobTitle:        "Managing Director",
			WorkPhone:       "+12125550100",
			PersonalPhone:   "+19175550100",
		},
	}, metadata())
	require.NoError(t, err)
	require.NotNil(t, resp.InvestorID)
	return *resp.InvestorID
}

func TestInvestorApprovalThenLogin(t *testing.T) {
	ctx := context.Background()
	env := newFlowEnv(t)

	id := applyAsInstitution(t, env, "irene@hudson.example.com")

	investor, err := env.Investors.ByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalStatusPending, investor.Status)
	assert.Nil(t, investor.Username)
	assert.Nil(t, investor.PasswordHash)

	approved, err := env.Approval.ApproveInvestor(ctx, id, nil, utils.ApprovedByAdmin, metadata())
	require.NoError(t, err)
	assert.NotEmpty(t, approved.Username)
	assert.Len(t, approved.Password, utils.GeneratedPasswordLen)
	assert.Contains(t, approved.Username, "hudson_river_capital_llc_")
	assert.True(t, approved.Investor.IsActive)

	investor, err = env.Investors.ByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, investor.PasswordHash)
	assert.NotEqual(t, approved.Password, *investor.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(*investor.PasswordHash), []byte(approved.Password)))

	comms, err := env.Comms.ByFilter(ctx, models.CommunicationFilter{InvestorID: &id}, "", 0, 0)
	require.NoError(t, err)
	require.Len(t, comms, 1)
	assert.NotContains(t, comms[0].Content, approved.Password)

	_, err = env.Approval.ApproveInvestor(ctx, id, nil, utils.ApprovedByAdmin, metadata())
	assert.True(t, businessflow.IsNotPending(err))

	session, err := env.Institutional.Login(ctx, &dto.LoginRequest{Username: approved.Username, Password: approved.Password}, metadata())
	require.NoError(t, err)
	assert.Len(t, session.SessionToken, 2*utils.SessionTokenBytes)
	assert.Equal(t, "Hudson River Capital LLC", session.Investor.InstitutionName)

	who, err := env.Institutional.Authenticate(ctx, session.SessionToken)
	require.NoError(t, err)
	assert.Equal(t, id, who.ID)

	require.Eventually(t, func() bool {
		for _, typ := range env.Events.types() {
			if typ == services.EventInvestorApproved {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}

func TestInvestorApprovalWithSuppliedCredentials(t *testing.T) {
	ctx := context.Background()
	env := newFlowEnv(t)

	id := applyAsInstitution(t, env, "chosen@hudson.example.com")
	approved, err := env.Approval.ApproveInvestor(ctx, id, &dto.ApproveInvestorRequest{
		Username: utils.ToPtr("hudson_desk"),
		Password: utils.ToPtr("Correct-Horse-42"),
	}, utils.ApprovedByAdmin, metadata())
	require.NoError(t, err)
	assert.Equal(t, "hudson_desk", approved.Username)
	assert.Equal(t, "Correct-Horse-42", approved.Password)

	_, err = env.Institutional.Login(ctx, &dto.LoginRequest{Username: "hudson_desk", Password: "wrong-password"}, metadata())
	assert.True(t, businessflow.IsInvalidCredentials(err))

	_, err = env.Institutional.Login(ctx, &dto.LoginRequest{Username: "hudson_desk", Password: "Correct-Horse-42"}, metadata())
	assert.NoError(t, err)
}

func TestInstitutionalApplicationRules(t *testing.T) {
	ctx := context.Background()
	env := newFlowEnv(t)

	t.Run("DuplicateEmail", func(t *testing.T) {
		applyAsInstitution(t, env, "twice@hudson.example.com")
		_, err := env.Lead.CreateLead(ctx, &dto.CreateLeadRequest{
			Type:  models.LeadTypeInstitutionalInvestor,
			Name:  "Again",
			Email: "TWICE@hudson.example.com",
			Phone: "+12125550111",
			InstitutionalDetails: &dto.InstitutionalDetails{
				PersonName:      "Again",
				InstitutionName: "Hudson",
				JobTitle:        "VP",
				WorkPhone:       "+12125550111",
				PersonalPhone:   "+12125550112",
			},
		}, metadata())
		assert.True(t, businessflow.IsEmailAlreadyExists(err))
	})

	t.Run("PendingInvestorCannotLogIn", func(t *testing.T) {
		inv, err := env.Fixtures.CreatePendingInvestor()
		require.NoError(t, err)
		_, err = env.Institutional.Login(ctx, &dto.LoginRequest{Username: inv.Email, Password: "anything"}, metadata())
		assert.True(t, businessflow.IsInvalidCredentials(err))
	})

	t.Run("RejectedInvestorCannotBeApproved", func(t *testing.T) {
		inv, err := env.Fixtures.CreatePendingInvestor()
		require.NoError(t, err)

		out, err := env.Approval.RejectInvestor(ctx, inv.ID, &dto.RejectRequest{Reason: utils.ToPtr("Incomplete documents")}, "ops_lead", metadata())
		require.NoError(t, err)
		assert.Equal(t, models.ApprovalStatusRejected, out.Investor.Status)
		assert.Equal(t, "Incomplete documents", *out.Investor.RejectionReason)
		require.NotNil(t, out.Investor.RejectedBy)
		assert.Equal(t, "ops_lead", *out.Investor.RejectedBy)
		assert.Nil(t, out.Investor.ApprovedBy, "a rejection never records an approver")

		_, err = env.Approval.ApproveInvestor(ctx, inv.ID, nil, utils.ApprovedByAdmin, metadata())
		assert.True(t, businessflow.IsNotPending(err))
	})
}

func TestInstitutionalSessions(t *testing.T) {
	ctx := context.Background()
	env := newFlowEnv(t)

	inv, err := env.Fixtures.CreateApprovedInvestor()
	require.NoError(t, err)
	login := &dto.LoginRequest{Username: *inv.Username, Password: "TestPass123!"}

	t.Run("ExpiredSessionIsRefused", func(t *testing.T) {
		session, err := env.Institutional.Login(ctx, login, metadata())
		require.NoError(t, err)

		require.NoError(t, env.Fixtures.ExpireInstitutionalSessions(inv.ID))

		_, err = env.Institutional.Authenticate(ctx, session.SessionToken)
		assert.True(t, businessflow.IsSessionExpired(err))
	})

	t.Run("LogoutDeletesSession", func(t *testing.T) {
		session, err := env.Institutional.Login(ctx, login, metadata())
		require.NoError(t, err)

		require.NoError(t, env.Institutional.Logout(ctx, session.SessionToken, metadata()))
		_, err = env.Institutional.Authenticate(ctx, session.SessionToken)
		assert.True(t, businessflow.IsUnauthenticated(err))

		// idempotent
		assert.NoError(t, env.Institutional.Logout(ctx, session.SessionToken, metadata()))
	})

	t.Run("UnknownTokenIsUnauthenticated", func(t *testing.T) {
		_, err := env.Institutional.Authenticate(ctx, "not-a-session")
		assert.True(t, businessflow.IsUnauthenticated(err))
		_, err = env.Institutional.Authenticate(ctx, "")
		assert.True(t, businessflow.IsUnauthenticated(err))
	})

	t.Run("BidsAreScopedToInvestor", func(t *testing.T) {
		bid, err := env.Institutional.CreateBid(ctx, inv.ID, &dto.CreateInstitutionalBidRequest{
			PropertyAddress: "88 Court St, Brooklyn, NY",
			BidAmount:       "410000",
			AuctionDate:     "2024-03-01",
		}, metadata())
		require.NoError(t, err)
		assert.Equal(t, models.InstitutionalBidStatusSubmitted, bid.Status)

		other, err := env.Fixtures.CreateApprovedInvestor()
		require.NoError(t, err)

		mine, err := env.Institutional.ListBids(ctx, inv.ID)
		require.NoError(t, err)
		assert.Len(t, mine, 1)
		theirs, err := env.Institutional.ListBids(ctx, other.ID)
		require.NoError(t, err)
		assert.Empty(t, theirs)
	})

	t.Run("BadAuctionDate", func(t *testing.T) {
		_, err := env.Institutional.CreateBid(ctx, inv.ID, &dto.CreateInstitutionalBidRequest{
			PropertyAddress: "1 Main St",
			BidAmount:       "1000",
			AuctionDate:     "next tuesday",
		}, metadata())
		assert.True(t, businessflow.IsInvalidAuctionDate(err))
	})
}
