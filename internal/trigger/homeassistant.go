package trigger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/soundpilot/soundpilot/internal/observe"
)

const turnOnEndpoint = "/api/services/script/turn_on"

// HomeAssistant fires recognised commands as Home Assistant script
// activations via the REST API.
type HomeAssistant struct {
	baseURL    string
	token      string
	httpClient *http.Client
	metrics    *observe.Metrics
}

var _ Trigger = (*HomeAssistant)(nil)

// NewHomeAssistant returns a trigger that POSTs to baseURL's script
// turn_on service, authenticating with the given long-lived access token.
func NewHomeAssistant(baseURL, token string, timeout time.Duration, metrics *observe.Metrics) *HomeAssistant {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &HomeAssistant{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		metrics:    metrics,
	}
}

type turnOnRequest struct {
	EntityID string `json:"entity_id"`
}

// Fire activates the Home Assistant script named by actionID.
func (h *HomeAssistant) Fire(ctx context.Context, user, label, actionID string) error {
	data, err := json.Marshal(turnOnRequest{EntityID: actionID})
	if err != nil {
		return fmt.Errorf("homeassistant: marshal turn_on request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+turnOnEndpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("homeassistant: create turn_on request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		h.recordTrigger(ctx, "error")
		return fmt.Errorf("homeassistant: POST %s: %w", turnOnEndpoint, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		h.recordTrigger(ctx, "error")
		return fmt.Errorf("homeassistant: POST %s returned status %d", turnOnEndpoint, resp.StatusCode)
	}

	h.recordTrigger(ctx, "ok")
	slog.Info("action triggered", "user", user, "label", label, "action_id", actionID)
	return nil
}

func (h *HomeAssistant) recordTrigger(ctx context.Context, status string) {
	h.metrics.ActionTriggers.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}
