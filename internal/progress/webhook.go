package progress

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/pricing-cli/internal/model"
	"github.com/sells-group/pricing-cli/internal/resilience"
)

type webhookPayload struct {
	ConnectionID string `json:"connectionId"`
	model.ProgressEvent
}

// WebhookNotifier POSTs each event as JSON to a fixed URL. A circuit breaker
// stops calls to an endpoint that keeps failing.
type WebhookNotifier struct {
	url     string
	client  *http.Client
	breaker *resilience.CircuitBreaker
}

// NewWebhookNotifier creates a notifier for url.
func NewWebhookNotifier(url string, breakerCfg resilience.BreakerConfig) *WebhookNotifier {
	return &WebhookNotifier{
		url:     url,
		client:  &http.Client{Timeout: 5 * time.Second},
		breaker: resilience.NewCircuitBreaker(breakerCfg),
	}
}

// Breaker exposes the circuit state.
func (w *WebhookNotifier) Breaker() *resilience.CircuitBreaker {
	return w.breaker
}

// Notify implements Notifier.
func (w *WebhookNotifier) Notify(ctx context.Context, connectionID string, ev model.ProgressEvent) error {
	body, err := json.Marshal(webhookPayload{ConnectionID: connectionID, ProgressEvent: ev})
	if err != nil {
		return eris.Wrap(err, "progress: encode webhook payload")
	}

	return w.breaker.Execute(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
		if err != nil {
			return eris.Wrap(err, "progress: build webhook request")
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := w.client.Do(req)
		if err != nil {
			return eris.Wrap(err, "progress: webhook post")
		}
		defer resp.Body.Close() //nolint:errcheck

		if resp.StatusCode >= 300 {
			return eris.Errorf("progress: webhook returned status %d", resp.StatusCode)
		}
		return nil
	})
}
