// Package scheduler
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/amirphl/realty-workflow/app/services"
	"github.com/amirphl/realty-workflow/config"
	"github.com/amirphl/realty-workflow/models"
	"github.com/amirphl/realty-workflow/repository"
	"github.com/amirphl/realty-workflow/utils"
)

var (
	outboxDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_deliveries_total",
			Help: "Outbox delivery attempts partitioned by channel and result",
		},
		[]string{"type", "result"},
	)

	outboxBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "outbox_claimed_rows",
			Help:    "Rows claimed per dispatcher pass",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
		},
	)
)

var errUndeliverable = errors.New("communication has no deliverable channel or recipient")

// OutboxDispatcher delivers queued communications and retries failures with exponential backoff
type OutboxDispatcher struct {
	commRepo  repository.CommunicationRepository
	notifier  services.NotificationService
	publisher services.EventPublisher
	logger    *zap.Logger
	cfg       config.OutboxConfig

	// listenDSN enables LISTEN outbox_new when set; only postgres supports it
	listenDSN string
}

func NewOutboxDispatcher(
	commRepo repository.CommunicationRepository,
	notifier services.NotificationService,
	publisher services.EventPublisher,
	cfg config.OutboxConfig,
	listenDSN string,
	logger *zap.Logger,
) *OutboxDispatcher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = 30 * time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = time.Hour
	}
	if cfg.Lease <= 0 {
		cfg.Lease = 2 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &OutboxDispatcher{
		commRepo:  commRepo,
		notifier:  notifier,
		publisher: publisher,
		logger:    logger,
		cfg:       cfg,
		listenDSN: listenDSN,
	}
}

// Start launches the dispatcher loop in a background goroutine and returns a stop function
func (d *OutboxDispatcher) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	listener := d.listen()

	go func() {
		ticker := time.NewTicker(d.cfg.PollInterval)
		defer ticker.Stop()
		if listener != nil {
			defer listener.Close()
		}

		// a nil channel never fires, which leaves the ticker as the only trigger
		var wake <-chan *pq.Notification
		if listener != nil {
			wake = listener.Notify
		}

		d.RunOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				d.RunOnce(ctx)
			case <-wake:
				d.RunOnce(ctx)
			}
		}
	}()

	return cancel
}

func (d *OutboxDispatcher) listen() *pq.Listener {
	if d.listenDSN == "" {
		return nil
	}

	listener := pq.NewListener(d.listenDSN, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			d.logger.Warn("outbox listener event", zap.Int("event", int(ev)), zap.Error(err))
		}
	})
	if err := listener.Listen(repository.OutboxChannel); err != nil {
		d.logger.Warn("outbox LISTEN failed; falling back to polling", zap.Error(err))
		_ = listener.Close()
		return nil
	}
	d.logger.Info("outbox listener started", zap.String("channel", repository.OutboxChannel))
	return listener
}

// RunOnce claims one batch of due rows and attempts each of them. It returns the number of rows claimed.
func (d *OutboxDispatcher) RunOnce(ctx context.Context) int {
	now := utils.UTCNow()
	rows, err := d.commRepo.ClaimDue(ctx, now, d.cfg.Lease, d.cfg.BatchSize)
	if err != nil {
		d.logger.Error("failed to claim due communications", zap.Error(err))
		return 0
	}
	outboxBatchSize.Observe(float64(len(rows)))

	for _, c := range rows {
		if ctx.Err() != nil {
			break
		}
		d.dispatch(ctx, c)
	}
	return len(rows)
}

func (d *OutboxDispatcher) dispatch(ctx context.Context, c *models.Communication) {
	err := d.deliver(ctx, c)
	now := utils.UTCNow()

	if err == nil {
		if markErr := d.commRepo.MarkSent(ctx, c.ID, now); markErr != nil {
			d.logger.Error("failed to mark communication sent", zap.Uint("id", c.ID), zap.Error(markErr))
			return
		}
		outboxDeliveries.WithLabelValues(c.Type, "sent").Inc()
		d.publish(ctx, services.NewEvent(services.EventCommunicationSent, c.ID, map[string]any{
			"type":      c.Type,
			"recipient": c.Recipient,
			"subject":   c.Subject,
			"lead_id":   c.LeadID,
		}))
		return
	}

	attempts := c.Attempts + 1
	exhausted := attempts >= d.cfg.MaxAttempts || errors.Is(err, errUndeliverable)

	var next *time.Time
	if !exhausted {
		at := now.Add(Backoff(d.cfg.BaseBackoff, d.cfg.MaxBackoff, attempts))
		next = &at
	}

	if markErr := d.commRepo.MarkAttemptFailed(ctx, c.ID, attempts, err.Error(), next, exhausted); markErr != nil {
		d.logger.Error("failed to record delivery failure", zap.Uint("id", c.ID), zap.Error(markErr))
		return
	}

	if exhausted {
		outboxDeliveries.WithLabelValues(c.Type, "failed").Inc()
		d.logger.Warn("communication delivery gave up",
			zap.Uint("id", c.ID),
			zap.Int("attempts", attempts),
			zap.Error(err),
		)
		d.publish(ctx, services.NewEvent(services.EventCommunicationFailed, c.ID, map[string]any{
			"type":     c.Type,
			"attempts": attempts,
			"error":    err.Error(),
		}))
		return
	}

	outboxDeliveries.WithLabelValues(c.Type, "retry").Inc()
	d.logger.Info("communication delivery failed; will retry",
		zap.Uint("id", c.ID),
		zap.Int("attempts", attempts),
		zap.Timep("next_attempt_at", next),
		zap.Error(err),
	)
}

func (d *OutboxDispatcher) deliver(ctx context.Context, c *models.Communication) error {
	if !c.IsDeliverable() {
		return errUndeliverable
	}

	sendCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	switch c.Type {
	case models.CommunicationTypeEmail:
		return d.notifier.SendEmail(sendCtx, c.Recipient, c.Subject, c.Content)
	case models.CommunicationTypeSMS:
		return d.notifier.SendSMS(sendCtx, c.Recipient, c.Content)
	default:
		return fmt.Errorf("%w: type %q", errUndeliverable, c.Type)
	}
}

func (d *OutboxDispatcher) publish(ctx context.Context, event services.Event) {
	if d.publisher == nil {
		return
	}
	if err := d.publisher.Publish(ctx, event); err != nil {
		d.logger.Warn("failed to publish outbox event", zap.String("type", event.Type), zap.Error(err))
	}
}

// Backoff returns base * 2^(attempts-1), capped at ceiling
func Backoff(base, ceiling time.Duration, attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	delay := base
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= ceiling {
			return ceiling
		}
	}
	return min(delay, ceiling)
}
