package businessflow_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/amirphl/realty-workflow/app/services"
	businessflow "github.com/amirphl/realty-workflow/business_flow"
	"github.com/amirphl/realty-workflow/repository"
	testingutil "github.com/amirphl/realty-workflow/testing"
)

var errProviderDown = errors.New("provider unavailable")

type sentMessage struct {
	Channel   string
	Recipient string
	Subject   string
	Body      string
}

// recordingNotifier captures every message and fails on demand
type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
	fail bool
}

func (n *recordingNotifier) SendSMS(ctx context.Context, phone, message string) error {
	return n.record(sentMessage{Channel: "sms", Recipient: phone, Body: message})
}

func (n *recordingNotifier) SendEmail(ctx context.Context, email, subject, message string) error {
	return n.record(sentMessage{Channel: "email", Recipient: email, Subject: subject, Body: message})
}

func (n *recordingNotifier) record(m sentMessage) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail {
		return errProviderDown
	}
	n.sent = append(n.sent, m)
	return nil
}

func (n *recordingNotifier) setFail(fail bool) {
	n.mu.Lock()
	n.fail = fail
	n.mu.Unlock()
}

func (n *recordingNotifier) messages() []sentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]sentMessage, len(n.sent))
	copy(out, n.sent)
	return out
}

// recordingPublisher keeps published events in memory
type recordingPublisher struct {
	mu     sync.Mutex
	events []services.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, event services.Event) error {
	p.mu.Lock()
	p.events = append(p.events, event)
	p.mu.Unlock()
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// flowEnv wires every flow against one throwaway database
type flowEnv struct {
	DB       *testingutil.TestDB
	Fixtures *testingutil.TestFixtures
	Notifier *recordingNotifier
	Events   *recordingPublisher
	Tokens   services.TokenService
	Sessions services.AdminSessionStore

	Leads        repository.LeadRepository
	Partners     repository.PartnerRepository
	Users        repository.UserRepository
	Investors    repository.InstitutionalInvestorRepository
	InstSessions repository.InstitutionalSessionRepository
	Comms        repository.CommunicationRepository
	Audit        repository.AuditLogRepository

	Verification  businessflow.VerificationFlow
	Lead          businessflow.LeadFlow
	Partner       businessflow.PartnerFlow
	User          businessflow.UserFlow
	Approval      businessflow.ApprovalFlow
	Institutional businessflow.InstitutionalAuthFlow
	AdminAuth     businessflow.AdminAuthFlow
	Recorder      businessflow.RecorderFlow
}

func newFlowEnv(t *testing.T) *flowEnv {
	t.Helper()

	tdb, err := testingutil.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = tdb.TeardownTestDB() })

	db := tdb.DB
	logger := zap.NewNop()
	env := &flowEnv{
		DB:       tdb,
		Fixtures: testingutil.NewTestFixtures(tdb),
		Notifier: &recordingNotifier{},
		Events:   &recordingPublisher{},
		Sessions: services.NewMemoryAdminSessionStore(),

		Leads:        repository.NewLeadRepository(db),
		Partners:     repository.NewPartnerRepository(db),
		Users:        repository.NewUserRepository(db),
		Investors:    repository.NewInstitutionalInvestorRepository(db),
		InstSessions: repository.NewInstitutionalSessionRepository(db),
		Comms:        repository.NewCommunicationRepository(db),
		Audit:        repository.NewAuditLogRepository(db),
	}

	env.Tokens, err = services.NewTokenService(
		15*time.Minute, 24*time.Hour, "test-issuer", "test-audience",
		false, "", "", "test-secret-key-for-jwt-signing-32-chars",
		services.NewMemoryRevocationStore(),
	)
	require.NoError(t, err)

	offers := repository.NewOfferRepository(db)
	subs := repository.NewForeclosureSubscriptionRepository(db)
	bidRequests := repository.NewBidServiceRequestRepository(db)
	bids := repository.NewInstitutionalBidRepository(db)
	admins := repository.NewAdminRepository(db)

	env.Verification = businessflow.NewVerificationFlow(env.Leads, env.Partners, env.Users, env.Audit,
		env.Notifier, services.NewNoopVerificationGuard(), "https://example.test", logger)
	env.Lead = businessflow.NewLeadFlow(env.Leads, env.Investors, env.Comms, env.Audit, env.Verification, env.Events, logger, db)
	env.Partner = businessflow.NewPartnerFlow(env.Partners, env.Audit, env.Tokens, env.Verification, bcrypt.MinCost)
	env.User = businessflow.NewUserFlow(env.Users, env.Audit, env.Tokens, env.Verification, bcrypt.MinCost)
	env.Approval = businessflow.NewApprovalFlow(env.Partners, env.Investors, env.Comms, env.Audit, env.Events, bcrypt.MinCost, logger, db)
	env.Institutional = businessflow.NewInstitutionalAuthFlow(env.Investors, env.InstSessions, bids, env.Audit, 30*24*time.Hour)
	env.AdminAuth = businessflow.NewAdminAuthFlow(admins, env.Audit, env.Sessions, nil, false, time.Hour, bcrypt.MinCost)
	env.Recorder = businessflow.NewRecorderFlow(env.Leads, offers, subs, bidRequests, env.Comms, env.Audit, env.Events, logger, db)

	return env
}

func metadata() *businessflow.ClientMetadata {
	return businessflow.NewClientMetadata("127.0.0.1", "flow-test")
}

// waitForMessage blocks until a message to recipient on channel has been sent
func (e *flowEnv) waitForMessage(t *testing.T, channel, recipient string) sentMessage {
	t.Helper()
	var found sentMessage
	require.Eventually(t, func() bool {
		for _, m := range e.Notifier.messages() {
			if m.Channel == channel && strings.EqualFold(m.Recipient, recipient) {
				found = m
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
	return found
}
