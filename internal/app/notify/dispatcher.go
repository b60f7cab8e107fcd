package notify

import (
	"context"
	"sync"
	"time"

	"github.com/openctemio/observe/pkg/domain/observation"
	"github.com/openctemio/observe/pkg/domain/product"
	"github.com/openctemio/observe/pkg/logger"
)

// DispatcherConfig holds configuration for the dispatcher.
type DispatcherConfig struct {
	// Enabled controls whether any events are delivered.
	Enabled bool

	// EventsPerSecond, Burst and Timeout are passed through to the
	// per-URL webhook notifiers.
	EventsPerSecond float64
	Burst           int
	Timeout         time.Duration
}

// Dispatcher routes observation change events to the webhook configured on
// the observation's product. Products without a webhook URL are skipped.
// Each distinct URL gets its own notifier so one slow endpoint's rate limit
// does not starve the others.
type Dispatcher struct {
	products product.Repository
	config   DispatcherConfig
	logger   *logger.Logger

	mu        sync.Mutex
	notifiers map[string]*WebhookNotifier
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(products product.Repository, cfg DispatcherConfig, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		products:  products,
		config:    cfg,
		logger:    log.With("component", "notify_dispatcher"),
		notifiers: make(map[string]*WebhookNotifier),
	}
}

// ObservationChanged delivers one change event to the product's webhook.
// The signature matches the reconciler's change callback. Delivery failures
// are logged, never propagated; the observation log is the source of truth.
func (d *Dispatcher) ObservationChanged(ctx context.Context, o *observation.Observation, before, after observation.StateSnapshot) {
	if !d.config.Enabled {
		return
	}

	p, err := d.products.FindByID(ctx, o.ProductID())
	if err != nil {
		d.logger.Warn("product lookup failed for notification",
			"product_id", o.ProductID(), "error", err)
		return
	}

	url := p.NotificationWebhookURL()
	if url == "" {
		return
	}

	event := NewEvent(o, before, after)
	if err := d.notifierFor(url).NotifyObservationChanged(ctx, event); err != nil {
		d.logger.Warn("webhook delivery failed",
			"product_id", o.ProductID(),
			"observation_id", o.ID(),
			"error", err)
	}
}

func (d *Dispatcher) notifierFor(url string) *WebhookNotifier {
	d.mu.Lock()
	defer d.mu.Unlock()

	n, ok := d.notifiers[url]
	if !ok {
		n = NewWebhookNotifier(WebhookNotifierConfig{
			URL:             url,
			EventsPerSecond: d.config.EventsPerSecond,
			Burst:           d.config.Burst,
			Timeout:         d.config.Timeout,
		}, d.logger)
		d.notifiers[url] = n
	}
	return n
}
