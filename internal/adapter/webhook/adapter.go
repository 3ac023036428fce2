// Package webhook relays crash events to an operator-supplied URL as a
// JSON POST. It is stateless glue: one request per event, status code
// mapped to a result.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/crashfeed/relay/internal/adapter"
	"github.com/crashfeed/relay/internal/model"
)

// eventBody is the JSON envelope posted to the webhook endpoint.
type eventBody struct {
	Event       string              `json:"event"`
	PayloadType string              `json:"payload_type"`
	Payload     *model.CrashPayload `json:"payload,omitempty"`
}

// Adapter posts event envelopes to a single configured URL.
type Adapter struct {
	url        string
	httpClient *http.Client
}

// New builds a webhook adapter. The url setting is the full endpoint,
// which may embed basic-auth userinfo and query parameters.
func New(cfg model.HookConfig, _ func(key string) (string, error)) (*Adapter, error) {
	url := cfg.Setting("url")
	if url == "" {
		return nil, fmt.Errorf("webhook hook %s: missing url setting", cfg.ID)
	}
	return &Adapter{
		url: url,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// Factory adapts New to the registry's constructor signature.
func Factory(cfg model.HookConfig, credential func(key string) (string, error)) (adapter.Adapter, error) {
	return New(cfg, credential)
}

// Type returns the hook type identifier for webhooks.
func (a *Adapter) Type() model.HookType {
	return model.HookTypeWebHook
}

// Verify posts a verification event and maps the status code to a
// boolean result. Failures are caught, never raised.
func (a *Adapter) Verify(ctx context.Context) (bool, string) {
	status, _, err := a.postEvent(ctx, model.EventVerification, "none", nil)
	if err != nil || !successful(status) {
		return false, "Oops! Please check your settings again."
	}
	return true, "Successfully verified Web Hook settings"
}

// NotifyImpactChange posts the crash payload. Webhook endpoints carry
// no record of their own, so a successful delivery returns an empty
// resource.
func (a *Adapter) NotifyImpactChange(ctx context.Context, payload *model.CrashPayload) (adapter.Resource, error) {
	status, body, err := a.postEvent(ctx, model.EventIssueImpact, "issue", payload)
	if err != nil {
		return nil, fmt.Errorf("WebHook issue create failed - %w", err)
	}
	if !successful(status) {
		return nil, fmt.Errorf(
			"WebHook issue create failed - %s",
			responseDetails(status, body),
		)
	}
	return adapter.Resource{}, nil
}

// postEvent sends one event envelope and returns the response status
// and body. Verification requests are marked with a query parameter so
// receivers can ignore them.
func (a *Adapter) postEvent(ctx context.Context, event, payloadType string, payload *model.CrashPayload) (int, string, error) {
	data, err := json.Marshal(eventBody{
		Event:       event,
		PayloadType: payloadType,
		Payload:     payload,
	})
	if err != nil {
		return 0, "", fmt.Errorf("marshaling event body: %w", err)
	}

	url := a.url
	if event == model.EventVerification {
		separator := "?"
		if strings.Contains(url, "?") {
			separator = "&"
		}
		url += separator + "verification=1"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return 0, "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, "", fmt.Errorf("reading response body: %w", err)
	}

	return resp.StatusCode, string(body), nil
}

// successful reports whether status is in the 2xx range.
func successful(status int) bool {
	return status >= 200 && status <= 299
}

// responseDetails formats a failed response for the error message. HTML
// error pages are not worth echoing, so bodies that look like one are
// dropped.
func responseDetails(status int, body string) string {
	info := fmt.Sprintf("HTTP status code: %d", status)
	if body == "" || strings.Contains(body, "!DOCTYPE") {
		return info
	}
	return fmt.Sprintf("%s, body: %s", info, body)
}
