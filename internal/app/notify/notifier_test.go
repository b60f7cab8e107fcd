package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openctemio/observe/pkg/domain/observation"
	"github.com/openctemio/observe/pkg/domain/shared"
	"github.com/openctemio/observe/pkg/logger"
)

func newTestEvent(t *testing.T) Event {
	t.Helper()
	o, err := observation.NewObservation(shared.NewID(), "trivy", "CVE-2023-0001")
	require.NoError(t, err)
	before := observation.StateSnapshot{Severity: observation.SeverityUnknown, Status: observation.StatusOpen}
	after := observation.StateSnapshot{Severity: observation.SeverityHigh, Status: observation.StatusOpen}
	return NewEvent(o, before, after)
}

func TestWebhookNotifierDelivers(t *testing.T) {
	var received Event
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := NewWebhookNotifier(WebhookNotifierConfig{URL: server.URL}, logger.NewNop())

	event := newTestEvent(t)
	require.NoError(t, n.NotifyObservationChanged(context.Background(), event))
	assert.Equal(t, event.Title, received.Title)
	assert.Equal(t, observation.SeverityHigh, received.SeverityAfter)
}

func TestWebhookNotifierErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	n := NewWebhookNotifier(WebhookNotifierConfig{URL: server.URL}, logger.NewNop())

	err := n.NotifyObservationChanged(context.Background(), newTestEvent(t))
	require.Error(t, err)
}

func TestWebhookNotifierRateLimit(t *testing.T) {
	var deliveries int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		deliveries++
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := NewWebhookNotifier(WebhookNotifierConfig{
		URL:             server.URL,
		EventsPerSecond: 1,
		Burst:           2,
	}, logger.NewNop())

	// Freeze the clock so only the burst passes.
	frozen := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	n.now = func() time.Time { return frozen }

	for range 5 {
		require.NoError(t, n.NotifyObservationChanged(context.Background(), newTestEvent(t)))
	}
	assert.Equal(t, 2, deliveries, "only the burst may be delivered on a frozen clock")
}

func TestWebhookNotifierDisabledWithoutURL(t *testing.T) {
	n := NewWebhookNotifier(WebhookNotifierConfig{}, logger.NewNop())
	require.NoError(t, n.NotifyObservationChanged(context.Background(), newTestEvent(t)))
}
