package businessflow_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirphl/realty-workflow/app/dto"
	"github.com/amirphl/realty-workflow/app/services"
	businessflow "github.com/amirphl/realty-workflow/business_flow"
	"github.com/amirphl/realty-workflow/models"
	testingutil "github.com/amirphl/realty-workflow/testing"
	"github.com/amirphl/realty-workflow/utils"
)

func registerPartner(t *testing.T, env *flowEnv, username string) uint {
	t.Helper()
	resp, err := env.Partner.Register(context.Background(), &dto.PartnerRegisterRequest{
		Username:  username,
		Password:  testingutil.TestPassword,
		Email:     username + "@acme.example.com",
		FirstName: "Alex",
		LastName:  "Acme",
		Phone:     "+16465550123",
	}, metadata())
	require.NoError(t, err)
	assert.True(t, resp.RequiresVerification)
	return resp.PartnerID
}

func TestPartnerLoginRequiresApprovalAndBothVerifications(t *testing.T) {
	ctx := context.Background()
	env := newFlowEnv(t)
	login := &dto.LoginRequest{Username: "acme_realty", Password: testingutil.TestPassword}

	id := registerPartner(t, env, "acme_realty")

	_, err := env.Partner.Login(ctx, login, metadata())
	assert.True(t, businessflow.IsNotApproved(err), "pending partner must not log in")

	decision, err := env.Approval.ApprovePartner(ctx, id, "ops", metadata())
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalStatusApproved, decision.Partner.ApprovalStatus)

	_, err = env.Partner.Login(ctx, login, metadata())
	assert.True(t, businessflow.IsVerificationRequired(err), "approved but unverified partner must not log in")

	partner, err := env.Partners.ByID(ctx, id)
	require.NoError(t, err)
	_, err = env.Verification.VerifyEmail(ctx, models.VerificationOwnerPartner, &dto.VerifyEmailRequest{Token: *partner.EmailVerificationToken}, metadata())
	require.NoError(t, err)

	_, err = env.Partner.Login(ctx, login, metadata())
	assert.True(t, businessflow.IsVerificationRequired(err), "phone is still unverified")

	_, err = env.Verification.VerifyPhone(ctx, models.VerificationOwnerPartner, id, *partner.PhoneVerificationCode, metadata())
	require.NoError(t, err)

	out, err := env.Partner.Login(ctx, login, metadata())
	require.NoError(t, err)
	assert.Equal(t, id, out.Partner.ID)
	assert.NotEmpty(t, out.Session.AccessToken)
	assert.Equal(t, "Bearer", out.Session.TokenType)

	claims, err := env.Tokens.ValidateToken(ctx, out.Session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, services.SubjectPartner, claims.SubjectType)
	assert.Equal(t, id, claims.SubjectID)

	pair, err := env.Partner.Refresh(ctx, &dto.RefreshTokenRequest{RefreshToken: out.Session.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, out.Session.RefreshToken, pair.RefreshToken)

	me, err := env.Partner.Me(ctx, id)
	require.NoError(t, err)
	assert.NotNil(t, me.LastLoginAt)
}

func TestPartnerFlowFailures(t *testing.T) {
	ctx := context.Background()
	env := newFlowEnv(t)

	t.Run("WrongPassword", func(t *testing.T) {
		p, err := env.Fixtures.CreateTestPartner(models.ApprovalStatusApproved, true, true)
		require.NoError(t, err)
		_, err = env.Partner.Login(ctx, &dto.LoginRequest{Username: p.Username, Password: "nope-nope"}, metadata())
		assert.True(t, businessflow.IsInvalidCredentials(err))

		out, err := env.Partner.Login(ctx, &dto.LoginRequest{Username: p.Username, Password: testingutil.TestPassword}, metadata())
		require.NoError(t, err)
		assert.Equal(t, p.ID, out.Partner.ID)
	})

	t.Run("UnknownUsername", func(t *testing.T) {
		_, err := env.Partner.Login(ctx, &dto.LoginRequest{Username: "ghost", Password: testingutil.TestPassword}, metadata())
		assert.True(t, businessflow.IsInvalidCredentials(err))
	})

	t.Run("DuplicateUsername", func(t *testing.T) {
		registerPartner(t, env, "dupe_partner")
		_, err := env.Partner.Register(ctx, &dto.PartnerRegisterRequest{
			Username:  "dupe_partner",
			Password:  testingutil.TestPassword,
			Email:     "other@acme.example.com",
			FirstName: "B",
			LastName:  "C",
			Phone:     "+16465550124",
		}, metadata())
		assert.True(t, businessflow.IsUsernameAlreadyExists(err))
	})

	t.Run("PhoneIsRequired", func(t *testing.T) {
		for _, phone := range []string{"", "   "} {
			_, err := env.Partner.Register(ctx, &dto.PartnerRegisterRequest{
				Username:  "phoneless_partner",
				Password:  testingutil.TestPassword,
				Email:     "phoneless@acme.example.com",
				FirstName: "No",
				LastName:  "Phone",
				Phone:     phone,
			}, metadata())
			assert.True(t, businessflow.IsNoPhoneOnFile(err), "phone %q", phone)
		}

		p, err := env.Partners.ByUsername(ctx, "phoneless_partner")
		require.NoError(t, err)
		assert.Nil(t, p, "nothing is stored")
	})

	t.Run("RegisteredPartnerCanResendPhoneCode", func(t *testing.T) {
		id := registerPartner(t, env, "resend_partner")
		_, err := env.Approval.ApprovePartner(ctx, id, "ops", metadata())
		require.NoError(t, err)

		_, err = env.Verification.Resend(ctx, models.VerificationOwnerPartner, id, models.VerificationKindPhone, metadata())
		require.NoError(t, err)

		p, err := env.Partners.ByID(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, p.Phone)
		assert.Equal(t, "+16465550123", *p.Phone)
		require.NotNil(t, p.PhoneVerificationCode)
		_, err = env.Verification.VerifyEmail(ctx, models.VerificationOwnerPartner, &dto.VerifyEmailRequest{Token: *p.EmailVerificationToken}, metadata())
		require.NoError(t, err)
		_, err = env.Verification.VerifyPhone(ctx, models.VerificationOwnerPartner, id, *p.PhoneVerificationCode, metadata())
		require.NoError(t, err)

		_, err = env.Partner.Login(ctx, &dto.LoginRequest{Username: "resend_partner", Password: testingutil.TestPassword}, metadata())
		assert.NoError(t, err)
	})

	t.Run("LogoutRevokesTokens", func(t *testing.T) {
		p, err := env.Fixtures.CreateTestPartner(models.ApprovalStatusApproved, true, true)
		require.NoError(t, err)
		out, err := env.Partner.Login(ctx, &dto.LoginRequest{Username: p.Username, Password: testingutil.TestPassword}, metadata())
		require.NoError(t, err)

		require.NoError(t, env.Partner.Logout(ctx, p.ID, out.Session.AccessToken, &out.Session.RefreshToken, metadata()))

		_, err = env.Tokens.ValidateToken(ctx, out.Session.AccessToken)
		assert.ErrorIs(t, err, services.ErrTokenRevoked)
		_, err = env.Partner.Refresh(ctx, &dto.RefreshTokenRequest{RefreshToken: out.Session.RefreshToken})
		assert.True(t, businessflow.IsUnauthenticated(err))

		n, err := env.Fixtures.CountAudit(models.AuditActionLogout)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, int64(1))
	})

	t.Run("SecondDecisionConflicts", func(t *testing.T) {
		id := registerPartner(t, env, "decided_partner")
		_, err := env.Approval.ApprovePartner(ctx, id, "ops", metadata())
		require.NoError(t, err)

		_, err = env.Approval.ApprovePartner(ctx, id, "ops", metadata())
		assert.True(t, businessflow.IsNotPending(err))
		_, err = env.Approval.RejectPartner(ctx, id, nil, "ops", metadata())
		assert.True(t, businessflow.IsNotPending(err))
	})

	t.Run("MissingPartnerIsNotFound", func(t *testing.T) {
		_, err := env.Approval.ApprovePartner(ctx, 99999, "ops", metadata())
		assert.True(t, businessflow.IsNotFound(err))
	})

	t.Run("RejectedPartnerCannotLogIn", func(t *testing.T) {
		id := registerPartner(t, env, "rejected_partner")
		out, err := env.Approval.RejectPartner(ctx, id, nil, "ops", metadata())
		require.NoError(t, err)
		require.NotNil(t, out.Partner.RejectionReason)
		assert.Equal(t, utils.DefaultRejectionReason, *out.Partner.RejectionReason)
		require.NotNil(t, out.Partner.RejectedBy)
		assert.Equal(t, "ops", *out.Partner.RejectedBy)
		assert.Nil(t, out.Partner.ApprovedBy)

		_, err = env.Partner.Login(ctx, &dto.LoginRequest{Username: "rejected_partner", Password: testingutil.TestPassword}, metadata())
		assert.True(t, businessflow.IsNotApproved(err))
	})

	t.Run("ApprovalQueuesNotice", func(t *testing.T) {
		id := registerPartner(t, env, "noticed_partner")
		_, err := env.Approval.ApprovePartner(ctx, id, "ops", metadata())
		require.NoError(t, err)

		comms, err := env.Comms.ByFilter(ctx, models.CommunicationFilter{PartnerID: &id}, "", 0, 0)
		require.NoError(t, err)
		require.Len(t, comms, 1)
		assert.Equal(t, models.CommunicationStatusQueued, comms[0].Status)
		assert.Equal(t, "noticed_partner@acme.example.com", comms[0].Recipient)
	})

	t.Run("ListPartnersByStatus", func(t *testing.T) {
		pending := models.ApprovalStatusPending
		out, err := env.Approval.ListPartners(ctx, &dto.ListByStatusRequest{Status: &pending})
		require.NoError(t, err)
		assert.Equal(t, int64(len(out.Items)), out.Total)
		for _, p := range out.Items {
			assert.Equal(t, models.ApprovalStatusPending, p.ApprovalStatus)
		}
	})
}

func TestUserFlow(t *testing.T) {
	ctx := context.Background()
	env := newFlowEnv(t)

	t.Run("UnverifiedEmailBlocksLogin", func(t *testing.T) {
		u, err := env.Fixtures.CreateTestUser(false)
		require.NoError(t, err)
		_, err = env.User.Login(ctx, &dto.LoginRequest{Username: u.Username, Password: testingutil.TestPassword}, metadata())
		assert.True(t, businessflow.IsVerificationRequired(err))
	})

	t.Run("LogoutRevokesAccessToken", func(t *testing.T) {
		u, err := env.Fixtures.CreateTestUser(true)
		require.NoError(t, err)
		out, err := env.User.Login(ctx, &dto.LoginRequest{Username: u.Username, Password: testingutil.TestPassword}, metadata())
		require.NoError(t, err)

		_, err = env.Tokens.ValidateToken(ctx, out.Session.AccessToken)
		require.NoError(t, err)

		require.NoError(t, env.User.Logout(ctx, u.ID, out.Session.AccessToken, &out.Session.RefreshToken, metadata()))

		_, err = env.Tokens.ValidateToken(ctx, out.Session.AccessToken)
		assert.Error(t, err)
		_, err = env.User.Refresh(ctx, &dto.RefreshTokenRequest{RefreshToken: out.Session.RefreshToken})
		assert.True(t, businessflow.IsUnauthenticated(err))
	})

	t.Run("PartnerRefreshTokenRejectedForUser", func(t *testing.T) {
		p, err := env.Fixtures.CreateTestPartner(models.ApprovalStatusApproved, true, true)
		require.NoError(t, err)
		out, err := env.Partner.Login(ctx, &dto.LoginRequest{Username: p.Username, Password: testingutil.TestPassword}, metadata())
		require.NoError(t, err)

		_, err = env.User.Refresh(ctx, &dto.RefreshTokenRequest{RefreshToken: out.Session.RefreshToken})
		assert.True(t, businessflow.IsUnauthenticated(err))
	})
}
