package businessflow_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/amirphl/realty-workflow/app/dto"
	"github.com/amirphl/realty-workflow/app/services"
	businessflow "github.com/amirphl/realty-workflow/business_flow"
	"github.com/amirphl/realty-workflow/models"
	"github.com/amirphl/realty-workflow/repository"
	"github.com/amirphl/realty-workflow/utils"
)

func TestIsVerificationValid(t *testing.T) {
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	at := func(d time.Duration) *time.Time {
		ts := now.Add(-d)
		return &ts
	}

	tests := []struct {
		name   string
		sentAt *time.Time
		kind   string
		want   bool
	}{
		{"email just issued", at(0), models.VerificationKindEmail, true},
		{"email at 24h boundary", at(24 * time.Hour), models.VerificationKindEmail, true},
		{"email past 24h", at(24*time.Hour + time.Second), models.VerificationKindEmail, false},
		{"phone at 10m boundary", at(10 * time.Minute), models.VerificationKindPhone, true},
		{"phone past 10m", at(10*time.Minute + time.Second), models.VerificationKindPhone, false},
		{"never issued", nil, models.VerificationKindEmail, false},
		{"unknown kind", at(0), "fax", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, businessflow.IsVerificationValid(tt.sentAt, tt.kind, now))
		})
	}
}

func TestGenerateSecrets(t *testing.T) {
	for range 50 {
		code, err := businessflow.GenerateOTP()
		require.NoError(t, err)
		require.Len(t, code, 6)
		assert.NotEqual(t, byte('0'), code[0])
	}

	token, err := businessflow.GenerateEmailToken()
	require.NoError(t, err)
	assert.Len(t, token, 64)

	_, err = businessflow.GenerateSecret("fax")
	assert.True(t, businessflow.IsInvalidVerificationKind(err))
}

func createBuyer(t *testing.T, env *flowEnv) *dto.CreateLeadResponse {
	t.Helper()
	resp, err := env.Lead.CreateLead(context.Background(), &dto.CreateLeadRequest{
		Type:  models.LeadTypeBuyer,
		Name:  "Bea Buyer",
		Email: "Bea.Buyer@Example.com",
		Phone: "+12125550100",
	}, metadata())
	require.NoError(t, err)
	return resp
}

func TestVerificationFlow(t *testing.T) {
	ctx := context.Background()

	t.Run("BuyerLeadReceivesSecretsOutOfBand", func(t *testing.T) {
		env := newFlowEnv(t)
		resp := createBuyer(t, env)
		assert.True(t, resp.RequiresVerification)
		assert.Equal(t, "bea.buyer@example.com", resp.Lead.Email)

		lead, err := env.Leads.ByID(ctx, resp.Lead.ID)
		require.NoError(t, err)
		require.NotNil(t, lead.EmailVerificationToken)
		require.NotNil(t, lead.PhoneVerificationCode)

		raw, err := json.Marshal(resp)
		require.NoError(t, err)
		assert.NotContains(t, string(raw), *lead.EmailVerificationToken)
		assert.NotContains(t, string(raw), *lead.PhoneVerificationCode)

		email := env.waitForMessage(t, "email", lead.Email)
		assert.Contains(t, email.Body, "/verify-email?token="+*lead.EmailVerificationToken)
		sms := env.waitForMessage(t, "sms", lead.Phone)
		assert.Contains(t, sms.Body, *lead.PhoneVerificationCode)

		comms, err := env.Comms.ListByLead(ctx, lead.ID)
		require.NoError(t, err)
		require.Len(t, comms, 1)
		assert.Equal(t, models.CommunicationStatusQueued, comms[0].Status)
		assert.NotContains(t, comms[0].Content, *lead.EmailVerificationToken)
		assert.NotContains(t, comms[0].Content, *lead.PhoneVerificationCode)
	})

	t.Run("EmailTokenIsSingleUse", func(t *testing.T) {
		env := newFlowEnv(t)
		resp := createBuyer(t, env)
		lead, err := env.Leads.ByID(ctx, resp.Lead.ID)
		require.NoError(t, err)
		token := *lead.EmailVerificationToken

		out, err := env.Verification.VerifyEmail(ctx, models.VerificationOwnerLead, &dto.VerifyEmailRequest{Token: token}, metadata())
		require.NoError(t, err)
		assert.Equal(t, lead.ID, out.OwnerID)
		assert.Equal(t, models.VerificationKindEmail, out.Kind)

		_, err = env.Verification.VerifyEmail(ctx, models.VerificationOwnerLead, &dto.VerifyEmailRequest{Token: token}, metadata())
		assert.True(t, businessflow.IsInvalidToken(err))

		lead, err = env.Leads.ByID(ctx, lead.ID)
		require.NoError(t, err)
		assert.True(t, lead.IsVerified(models.VerificationKindEmail))
		assert.Nil(t, lead.EmailVerificationToken)
		assert.NotNil(t, lead.EmailVerifiedAt)
	})

	t.Run("UnknownTokenIsInvalid", func(t *testing.T) {
		env := newFlowEnv(t)
		_, err := env.Verification.VerifyEmail(ctx, models.VerificationOwnerLead, &dto.VerifyEmailRequest{Token: "deadbeef"}, metadata())
		assert.True(t, businessflow.IsInvalidToken(err))
	})

	t.Run("PhoneCodeWrongThenRightThenAlreadyVerified", func(t *testing.T) {
		env := newFlowEnv(t)
		resp := createBuyer(t, env)
		lead, err := env.Leads.ByID(ctx, resp.Lead.ID)
		require.NoError(t, err)
		code := *lead.PhoneVerificationCode

		wrong := "000000"
		_, err = env.Verification.VerifyPhone(ctx, models.VerificationOwnerLead, lead.ID, wrong, metadata())
		assert.True(t, businessflow.IsInvalidToken(err))

		_, err = env.Verification.VerifyPhone(ctx, models.VerificationOwnerLead, lead.ID, code, metadata())
		require.NoError(t, err)

		_, err = env.Verification.VerifyPhone(ctx, models.VerificationOwnerLead, lead.ID, code, metadata())
		assert.True(t, businessflow.IsAlreadyVerified(err))

		n, err := env.Fixtures.CountAudit(models.AuditActionPhoneVerified)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("ExpiredPhoneCodeIsRejected", func(t *testing.T) {
		env := newFlowEnv(t)
		resp := createBuyer(t, env)
		lead, err := env.Leads.ByID(ctx, resp.Lead.ID)
		require.NoError(t, err)

		require.NoError(t, env.Fixtures.BackdateVerification("leads", lead.ID, models.VerificationKindPhone, 11*time.Minute))

		_, err = env.Verification.VerifyPhone(ctx, models.VerificationOwnerLead, lead.ID, *lead.PhoneVerificationCode, metadata())
		assert.True(t, businessflow.IsVerificationExpired(err))
	})

	t.Run("EmailTokenValidAfterTwentyThreeHours", func(t *testing.T) {
		env := newFlowEnv(t)
		resp := createBuyer(t, env)
		lead, err := env.Leads.ByID(ctx, resp.Lead.ID)
		require.NoError(t, err)

		require.NoError(t, env.Fixtures.BackdateVerification("leads", lead.ID, models.VerificationKindEmail, 23*time.Hour))

		_, err = env.Verification.VerifyEmail(ctx, models.VerificationOwnerLead, &dto.VerifyEmailRequest{Token: *lead.EmailVerificationToken}, metadata())
		assert.NoError(t, err)
	})

	t.Run("ResendReplacesOutstandingCode", func(t *testing.T) {
		env := newFlowEnv(t)
		resp := createBuyer(t, env)
		lead, err := env.Leads.ByID(ctx, resp.Lead.ID)
		require.NoError(t, err)
		oldCode := *lead.PhoneVerificationCode

		out, err := env.Verification.Resend(ctx, models.VerificationOwnerLead, lead.ID, models.VerificationKindPhone, metadata())
		require.NoError(t, err)
		assert.Equal(t, models.VerificationKindPhone, out.Kind)

		lead, err = env.Leads.ByID(ctx, lead.ID)
		require.NoError(t, err)
		newCode := *lead.PhoneVerificationCode
		if newCode != oldCode {
			_, err = env.Verification.VerifyPhone(ctx, models.VerificationOwnerLead, lead.ID, oldCode, metadata())
			assert.True(t, businessflow.IsInvalidToken(err))
		}

		_, err = env.Verification.VerifyPhone(ctx, models.VerificationOwnerLead, lead.ID, newCode, metadata())
		assert.NoError(t, err)
	})

	t.Run("FailedResendKeepsCooldownFree", func(t *testing.T) {
		env := newFlowEnv(t)
		resp := createBuyer(t, env)

		mr := miniredis.RunT(t)
		rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = rc.Close() })

		leads := &flakyLeadStore{LeadRepository: env.Leads, failures: 1}
		flow := businessflow.NewVerificationFlow(leads, env.Partners, env.Users, env.Audit, env.Notifier,
			services.NewRedisVerificationGuard(rc, "test:", time.Minute, 5, time.Hour), "https://example.test", zap.NewNop())

		_, err := flow.Resend(ctx, models.VerificationOwnerLead, resp.Lead.ID, models.VerificationKindPhone, metadata())
		require.Error(t, err)
		assert.False(t, businessflow.IsTooManyRequests(err))

		_, err = flow.Resend(ctx, models.VerificationOwnerLead, resp.Lead.ID, models.VerificationKindPhone, metadata())
		require.NoError(t, err, "a retry after a failed issue is not throttled")

		_, err = flow.Resend(ctx, models.VerificationOwnerLead, resp.Lead.ID, models.VerificationKindPhone, metadata())
		assert.True(t, businessflow.IsTooManyRequests(err), "a successful resend starts the cooldown")
	})

	t.Run("ResendAfterVerificationConflicts", func(t *testing.T) {
		env := newFlowEnv(t)
		resp := createBuyer(t, env)
		lead, err := env.Leads.ByID(ctx, resp.Lead.ID)
		require.NoError(t, err)

		_, err = env.Verification.VerifyEmail(ctx, models.VerificationOwnerLead, &dto.VerifyEmailRequest{Token: *lead.EmailVerificationToken}, metadata())
		require.NoError(t, err)

		_, err = env.Verification.Resend(ctx, models.VerificationOwnerLead, lead.ID, models.VerificationKindEmail, metadata())
		assert.True(t, businessflow.IsAlreadyVerified(err))
	})

	t.Run("ResendRejectsUnknownKindAndLead", func(t *testing.T) {
		env := newFlowEnv(t)
		_, err := env.Verification.Resend(ctx, models.VerificationOwnerLead, 1, "fax", metadata())
		assert.True(t, businessflow.IsInvalidVerificationKind(err))

		_, err = env.Verification.Resend(ctx, models.VerificationOwnerLead, 4242, models.VerificationKindEmail, metadata())
		assert.True(t, businessflow.IsNotFound(err))
	})

	t.Run("SendFailureIsAuditedNotReturned", func(t *testing.T) {
		env := newFlowEnv(t)
		env.Notifier.setFail(true)

		resp := createBuyer(t, env)
		assert.True(t, resp.RequiresVerification)

		require.Eventually(t, func() bool {
			n, err := env.Fixtures.CountAudit(models.AuditActionVerificationSendFailed)
			return err == nil && n == 2
		}, 2*time.Second, 20*time.Millisecond)
	})

	t.Run("SellerLeadNeedsNoVerification", func(t *testing.T) {
		env := newFlowEnv(t)
		resp, err := env.Lead.CreateLead(ctx, &dto.CreateLeadRequest{
			Type:            models.LeadTypeSeller,
			Name:            "Sam Seller",
			Email:           "sam@example.com",
			Phone:           "+17185550100",
			PropertyAddress: utils.ToPtr("12 Elm St, Queens, NY"),
		}, metadata())
		require.NoError(t, err)
		assert.False(t, resp.RequiresVerification)

		lead, err := env.Leads.ByID(ctx, resp.Lead.ID)
		require.NoError(t, err)
		assert.Nil(t, lead.EmailVerificationToken)
		assert.Nil(t, lead.PhoneVerificationCode)
	})
}

// flakyLeadStore fails the first IssueVerification calls
type flakyLeadStore struct {
	repository.LeadRepository
	failures int
}

func (s *flakyLeadStore) IssueVerification(ctx context.Context, id uint, kind, secret string, sentAt time.Time) (bool, error) {
	if s.failures > 0 {
		s.failures--
		return false, errors.New("database is locked")
	}
	return s.LeadRepository.IssueVerification(ctx, id, kind, secret, sentAt)
}
