package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/amirphl/realty-workflow/app/services"
	"github.com/amirphl/realty-workflow/config"
	"github.com/amirphl/realty-workflow/models"
	"github.com/amirphl/realty-workflow/repository"
	testingutil "github.com/amirphl/realty-workflow/testing"
	"github.com/amirphl/realty-workflow/utils"
)

type stubNotifier struct {
	mu     sync.Mutex
	err    error
	emails []string
	sms    []string
}

func (s *stubNotifier) SendEmail(ctx context.Context, email, subject, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.emails = append(s.emails, email)
	return nil
}

func (s *stubNotifier) SendSMS(ctx context.Context, phone, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sms = append(s.sms, phone)
	return nil
}

type stubPublisher struct {
	mu     sync.Mutex
	events []services.Event
}

func (p *stubPublisher) Publish(ctx context.Context, e services.Event) error {
	p.mu.Lock()
	p.events = append(p.events, e)
	p.mu.Unlock()
	return nil
}

func (p *stubPublisher) Close() error { return nil }

func TestBackoff(t *testing.T) {
	base := 30 * time.Second
	ceiling := time.Hour

	tests := []struct {
		attempts int
		want     time.Duration
	}{
		{0, 30 * time.Second},
		{1, 30 * time.Second},
		{2, time.Minute},
		{3, 2 * time.Minute},
		{7, 32 * time.Minute},
		{8, time.Hour},
		{50, time.Hour},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Backoff(base, ceiling, tt.attempts), "attempts=%d", tt.attempts)
	}
}

func setupDispatcher(t *testing.T, notifier *stubNotifier, maxAttempts int) (*OutboxDispatcher, repository.CommunicationRepository, *stubPublisher) {
	t.Helper()
	tdb, err := testingutil.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = tdb.TeardownTestDB() })

	repo := repository.NewCommunicationRepository(tdb.DB)
	pub := &stubPublisher{}
	d := NewOutboxDispatcher(repo, notifier, pub, config.OutboxConfig{
		BatchSize:   10,
		MaxAttempts: maxAttempts,
		BaseBackoff: 30 * time.Second,
		MaxBackoff:  time.Hour,
		Lease:       time.Minute,
	}, "", zap.NewNop())
	return d, repo, pub
}

func queueEmail(t *testing.T, repo repository.CommunicationRepository, recipient string) *models.Communication {
	t.Helper()
	now := utils.UTCNow().Add(-time.Second)
	c := &models.Communication{
		UUID:          uuid.New(),
		Type:          models.CommunicationTypeEmail,
		Direction:     models.CommunicationDirectionOutbound,
		Recipient:     recipient,
		Subject:       "Offer Submitted Successfully",
		Content:       "Hi there",
		Status:        models.CommunicationStatusQueued,
		NextAttemptAt: &now,
	}
	require.NoError(t, repo.Save(context.Background(), c))
	return c
}

func TestOutboxDispatcher(t *testing.T) {
	ctx := context.Background()

	t.Run("DeliversAndMarksSent", func(t *testing.T) {
		notifier := &stubNotifier{}
		d, repo, pub := setupDispatcher(t, notifier, 3)
		c := queueEmail(t, repo, "buyer@example.com")

		assert.Equal(t, 1, d.RunOnce(ctx))

		got, err := repo.ByID(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, models.CommunicationStatusSent, got.Status)
		assert.NotNil(t, got.SentAt)
		assert.Nil(t, got.NextAttemptAt)
		assert.Equal(t, []string{"buyer@example.com"}, notifier.emails)
		require.Len(t, pub.events, 1)
		assert.Equal(t, services.EventCommunicationSent, pub.events[0].Type)

		assert.Equal(t, 0, d.RunOnce(ctx), "sent rows are not claimed again")
	})

	t.Run("FailureSchedulesRetry", func(t *testing.T) {
		notifier := &stubNotifier{err: errors.New("smtp 451")}
		d, repo, _ := setupDispatcher(t, notifier, 3)
		c := queueEmail(t, repo, "buyer@example.com")

		before := utils.UTCNow()
		assert.Equal(t, 1, d.RunOnce(ctx))

		got, err := repo.ByID(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, models.CommunicationStatusQueued, got.Status)
		assert.Equal(t, 1, got.Attempts)
		require.NotNil(t, got.LastError)
		assert.Contains(t, *got.LastError, "smtp 451")
		require.NotNil(t, got.NextAttemptAt)
		assert.True(t, got.NextAttemptAt.After(before.Add(29*time.Second)))

		assert.Equal(t, 0, d.RunOnce(ctx), "row is not due until its backoff elapses")
	})

	t.Run("GivesUpAfterMaxAttempts", func(t *testing.T) {
		notifier := &stubNotifier{err: errors.New("smtp 550")}
		d, repo, pub := setupDispatcher(t, notifier, 1)
		c := queueEmail(t, repo, "buyer@example.com")

		d.RunOnce(ctx)

		got, err := repo.ByID(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, models.CommunicationStatusFailed, got.Status)
		assert.Nil(t, got.NextAttemptAt)
		require.Len(t, pub.events, 1)
		assert.Equal(t, services.EventCommunicationFailed, pub.events[0].Type)
	})

	t.Run("UndeliverableFailsImmediately", func(t *testing.T) {
		d, repo, _ := setupDispatcher(t, &stubNotifier{}, 5)
		c := queueEmail(t, repo, "")

		d.RunOnce(ctx)

		got, err := repo.ByID(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, models.CommunicationStatusFailed, got.Status)
		assert.Equal(t, 1, got.Attempts)
	})

	t.Run("StartStops", func(t *testing.T) {
		notifier := &stubNotifier{}
		d, repo, _ := setupDispatcher(t, notifier, 3)
		d.cfg.PollInterval = 20 * time.Millisecond
		queueEmail(t, repo, "late@example.com")

		stop := d.Start(ctx)
		defer stop()

		require.Eventually(t, func() bool {
			notifier.mu.Lock()
			defer notifier.mu.Unlock()
			return len(notifier.emails) == 1
		}, 2*time.Second, 20*time.Millisecond)
	})
}
