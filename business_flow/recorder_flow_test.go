package businessflow_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirphl/realty-workflow/app/dto"
	businessflow "github.com/amirphl/realty-workflow/business_flow"
	"github.com/amirphl/realty-workflow/models"
	"github.com/amirphl/realty-workflow/utils"
)

// TestBuyerJourney walks a buyer from the public form through verification to an offer
func TestBuyerJourney(t *testing.T) {
	ctx := context.Background()
	env := newFlowEnv(t)

	created := createBuyer(t, env)
	leadID := created.Lead.ID

	lead, err := env.Leads.ByID(ctx, leadID)
	require.NoError(t, err)
	_, err = env.Verification.VerifyEmail(ctx, models.VerificationOwnerLead, &dto.VerifyEmailRequest{Token: *lead.EmailVerificationToken}, metadata())
	require.NoError(t, err)
	_, err = env.Verification.VerifyPhone(ctx, models.VerificationOwnerLead, leadID, *lead.PhoneVerificationCode, metadata())
	require.NoError(t, err)

	offer, err := env.Recorder.CreateOffer(ctx, &dto.CreateOfferRequest{
		PropertyID:    "prop-1042",
		BuyerLeadID:   leadID,
		OfferAmount:   "350000",
		FinancingType: utils.ToPtr("cash"),
	}, metadata())
	require.NoError(t, err)
	assert.Equal(t, models.OfferStatusPending, offer.Status)
	assert.Equal(t, leadID, offer.BuyerLeadID)

	comms, err := env.Recorder.ListCommunications(ctx, leadID)
	require.NoError(t, err)
	require.Len(t, comms, 3)

	var queued, notes int
	for _, c := range comms {
		switch {
		case c.Type == models.CommunicationTypeNote:
			notes++
			assert.Equal(t, models.CommunicationDirectionInbound, c.Direction)
			assert.Contains(t, c.Content, "prop-1042")
		case c.Status == models.CommunicationStatusQueued:
			queued++
			assert.Equal(t, "bea.buyer@example.com", c.Recipient)
		}
	}
	assert.Equal(t, 2, queued, "lead acknowledgement and offer confirmation")
	assert.Equal(t, 1, notes)

	countered, err := env.Recorder.UpdateOffer(ctx, offer.ID, &dto.UpdateOfferRequest{
		Status:        utils.ToPtr(models.OfferStatusCountered),
		CounterAmount: utils.ToPtr("365000"),
	}, metadata())
	require.NoError(t, err)
	assert.Equal(t, models.OfferStatusCountered, countered.Status)
	require.NotNil(t, countered.CounterAmount)
	assert.Equal(t, "365000", *countered.CounterAmount)

	offers, err := env.Recorder.ListOffers(ctx, &dto.ListOffersRequest{LeadID: &leadID})
	require.NoError(t, err)
	assert.Len(t, offers, 1)

	leads, err := env.Lead.ListLeads(ctx, &dto.ListLeadsRequest{Type: utils.ToPtr(models.LeadTypeBuyer)})
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.True(t, leads[0].EmailVerified)
	assert.True(t, leads[0].PhoneVerified)
}

func TestRecorderFlow(t *testing.T) {
	ctx := context.Background()
	env := newFlowEnv(t)

	lead, err := env.Fixtures.CreateTestLead(models.LeadTypeBuyer)
	require.NoError(t, err)

	t.Run("OfferForUnknownLead", func(t *testing.T) {
		_, err := env.Recorder.CreateOffer(ctx, &dto.CreateOfferRequest{
			PropertyID:  "prop-1",
			BuyerLeadID: 424242,
			OfferAmount: "1000",
		}, metadata())
		assert.True(t, businessflow.IsNotFound(err))
	})

	t.Run("OfferSurvivesProviderOutage", func(t *testing.T) {
		env.Notifier.setFail(true)
		defer env.Notifier.setFail(false)

		offer, err := env.Recorder.CreateOffer(ctx, &dto.CreateOfferRequest{
			PropertyID:  "prop-outage",
			BuyerLeadID: lead.ID,
			OfferAmount: "275000",
		}, metadata())
		require.NoError(t, err)
		assert.NotZero(t, offer.ID)
	})

	t.Run("UpdateOfferValidation", func(t *testing.T) {
		_, err := env.Recorder.UpdateOffer(ctx, 1, &dto.UpdateOfferRequest{Status: utils.ToPtr("haggling")}, metadata())
		assert.True(t, businessflow.IsInvalidStatus(err))

		_, err = env.Recorder.UpdateOffer(ctx, 1, &dto.UpdateOfferRequest{}, metadata())
		assert.True(t, businessflow.IsNothingToUpdate(err))

		_, err = env.Recorder.UpdateOffer(ctx, 9999, &dto.UpdateOfferRequest{Terms: utils.ToPtr("as-is")}, metadata())
		assert.True(t, businessflow.IsNotFound(err))
	})

	t.Run("ForeclosureSubscription", func(t *testing.T) {
		sub, err := env.Recorder.CreateForeclosureSubscription(ctx, &dto.CreateForeclosureSubscriptionRequest{
			LeadID:           lead.ID,
			Counties:         []string{" Kings ", "Queens"},
			SubscriptionType: models.SubscriptionTypeWeekly,
		}, metadata())
		require.NoError(t, err)
		assert.Equal(t, []string{"Kings", "Queens"}, sub.Counties)
		assert.True(t, sub.IsActive)

		updated, err := env.Recorder.UpdateForeclosureSubscription(ctx, sub.ID, &dto.UpdateForeclosureSubscriptionRequest{
			IsActive: utils.ToPtr(false),
		}, metadata())
		require.NoError(t, err)
		assert.False(t, updated.IsActive)
		assert.Equal(t, []string{"Kings", "Queens"}, updated.Counties)

		subs, err := env.Recorder.ListForeclosureSubscriptions(ctx, &dto.ListByLeadRequest{LeadID: &lead.ID})
		require.NoError(t, err)
		assert.Len(t, subs, 1)
	})

	t.Run("BidServiceRequest", func(t *testing.T) {
		req, err := env.Recorder.CreateBidServiceRequest(ctx, &dto.CreateBidServiceRequest{
			LeadID: lead.ID,
			Name:   "Bea Bidder",
			Email:  "Bidder@Example.com",
			Phone:  "+12125550142",
		}, metadata())
		require.NoError(t, err)
		assert.Equal(t, "bidder@example.com", req.Email)
		assert.Equal(t, models.BidServiceStatusPending, req.Status)

		updated, err := env.Recorder.UpdateBidServiceRequest(ctx, req.ID, &dto.UpdateBidServiceRequest{
			AssignedTo: utils.ToPtr("desk-2"),
		}, metadata())
		require.NoError(t, err)
		require.NotNil(t, updated.AssignedTo)
		assert.Equal(t, "desk-2", *updated.AssignedTo)
	})

	t.Run("RequeueFailedCommunication", func(t *testing.T) {
		comms, err := env.Comms.ListByLead(ctx, lead.ID)
		require.NoError(t, err)
		require.NotEmpty(t, comms)
		target := comms[0]

		require.NoError(t, env.Comms.MarkAttemptFailed(ctx, target.ID, 5, "smtp down", nil, true))

		out, err := env.Recorder.UpdateCommunication(ctx, target.ID, &dto.UpdateCommunicationRequest{
			Status: utils.ToPtr(models.CommunicationStatusQueued),
		}, metadata())
		require.NoError(t, err)
		assert.Equal(t, models.CommunicationStatusQueued, out.Status)
		assert.Zero(t, out.Attempts)
		assert.NotNil(t, out.NextAttemptAt)
	})
}
