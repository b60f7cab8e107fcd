// Package notify fans observation change events out to external
// collaborators such as webhooks and issue trackers.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/openctemio/observe/internal/metrics"
	"github.com/openctemio/observe/pkg/domain/observation"
	"github.com/openctemio/observe/pkg/domain/shared"
	"github.com/openctemio/observe/pkg/logger"
)

// Event is one observation change, carrying the before/after state so the
// collaborator can decide whether to act on it.
type Event struct {
	ObservationID shared.ID `json:"observation_id"`
	ProductID     shared.ID `json:"product_id"`
	Title         string    `json:"title"`

	SeverityBefore      observation.Severity      `json:"severity_before"`
	SeverityAfter       observation.Severity      `json:"severity_after"`
	StatusBefore        observation.Status        `json:"status_before"`
	StatusAfter         observation.Status        `json:"status_after"`
	JustificationBefore observation.Justification `json:"justification_before,omitempty"`
	JustificationAfter  observation.Justification `json:"justification_after,omitempty"`
}

// NewEvent builds an event from an observation and its snapshots.
func NewEvent(o *observation.Observation, before, after observation.StateSnapshot) Event {
	return Event{
		ObservationID:       o.ID(),
		ProductID:           o.ProductID(),
		Title:               o.Title(),
		SeverityBefore:      before.Severity,
		SeverityAfter:       after.Severity,
		StatusBefore:        before.Status,
		StatusAfter:         after.Status,
		JustificationBefore: before.Justification,
		JustificationAfter:  after.Justification,
	}
}

// Notifier delivers observation change events.
type Notifier interface {
	NotifyObservationChanged(ctx context.Context, event Event) error
}

// NopNotifier discards all events.
type NopNotifier struct{}

func (NopNotifier) NotifyObservationChanged(context.Context, Event) error { return nil }

// WebhookNotifierConfig holds configuration for the webhook notifier.
type WebhookNotifierConfig struct {
	// URL is the webhook endpoint. Empty disables delivery.
	URL string

	// EventsPerSecond caps the delivery rate (default: 1).
	EventsPerSecond float64

	// Burst is the rate limiter burst size (default: 10).
	Burst int

	// Timeout is the per-request timeout (default: 10s).
	Timeout time.Duration
}

// WebhookNotifier posts events as JSON to a single webhook URL. Deliveries
// beyond the configured rate are dropped rather than queued: change events
// are advisory and the audit log remains the source of truth.
type WebhookNotifier struct {
	config  WebhookNotifierConfig
	client  *http.Client
	limiter *rate.Limiter
	logger  *logger.Logger

	// now is injectable so rate limiting is testable without sleeping.
	now func() time.Time
}

// NewWebhookNotifier creates a webhook notifier.
func NewWebhookNotifier(cfg WebhookNotifierConfig, log *logger.Logger) *WebhookNotifier {
	if cfg.EventsPerSecond == 0 {
		cfg.EventsPerSecond = 1
	}
	if cfg.Burst == 0 {
		cfg.Burst = 10
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &WebhookNotifier{
		config:  cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.EventsPerSecond), cfg.Burst),
		logger:  log.With("component", "webhook_notifier"),
		now:     time.Now,
	}
}

// NotifyObservationChanged delivers one event, subject to the rate limit.
func (n *WebhookNotifier) NotifyObservationChanged(ctx context.Context, event Event) error {
	if n.config.URL == "" {
		return nil
	}
	if !n.limiter.AllowN(n.now(), 1) {
		n.logger.Warn("notification dropped by rate limit",
			"observation_id", event.ObservationID)
		metrics.NotificationsTotal.WithLabelValues("rate_limited").Inc()
		return nil
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.config.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		metrics.NotificationsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to deliver event: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		metrics.NotificationsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	metrics.NotificationsTotal.WithLabelValues("delivered").Inc()
	return nil
}
