// Package hall posts crash notifications to a Hall group chat via its
// Crashlytics service endpoint.
package hall

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

// defaultBaseURL is the Hall services endpoint; overridable in tests
// via the base_url setting.
const defaultBaseURL = "https://hall.com/api/1/services/crashlytics"

// eventBody is the JSON envelope Hall expects, shared with the generic
// webhook convention.
type eventBody struct {
	Event       string              `json:"event"`
	PayloadType string              `json:"payload_type"`
	Payload     *model.CrashPayload `json:"payload,omitempty"`
}

// Adapter posts event envelopes to a Hall group identified by its API
// token.
type Adapter struct {
	baseURL    string
	groupToken string
	httpClient *http.Client
}

// New builds a Hall adapter. The group token is credential material and
// comes from the keyring, not the config file.
func New(cfg model.HookConfig, credential func(key string) (string, error)) (*Adapter, error) {
	token, err := credential("group_token")
	if err != nil || token == "" {
		return nil, fmt.Errorf("hall hook %s: missing group_token credential", cfg.ID)
	}

	baseURL := cfg.Setting("base_url")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Adapter{
		baseURL:    strings.TrimRight(baseURL, "/"),
		groupToken: token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// Factory adapts New to the registry's constructor signature.
func Factory(cfg model.HookConfig, credential func(key string) (string, error)) (adapter.Adapter, error) {
	return New(cfg, credential)
}

// Type returns the hook type identifier for Hall.
func (a *Adapter) Type() model.HookType {
	return model.HookTypeHall
}

// Verify posts a verification event to the group endpoint.
func (a *Adapter) Verify(ctx context.Context) (bool, string) {
	status, _, err := a.postEvent(ctx, model.EventVerification, "issue", nil)
	if err != nil || !successful(status) {
		return false, "Oops! Please check your Group API Token."
	}
	return true, "Successfully verified Hall settings"
}

// NotifyImpactChange posts the crash payload as a Hall message. Hall
// returns no record identifier, so success yields an empty resource.
func (a *Adapter) NotifyImpactChange(ctx context.Context, payload *model.CrashPayload) (adapter.Resource, error) {
	status, body, err := a.postEvent(ctx, model.EventIssueImpact, "issue", payload)
	if err != nil {
		return nil, fmt.Errorf("Failed to send Hall message - %w", err)
	}
	if !successful(status) {
		return nil, fmt.Errorf(
			"Failed to send Hall message - HTTP status code: %d, body: %s",
			status, body,
		)
	}
	return adapter.Resource{}, nil
}

// postEvent sends one event envelope to the group's service URL.
func (a *Adapter) postEvent(ctx context.Context, event, payloadType string, payload *model.CrashPayload) (int, string, error) {
	data, err := json.Marshal(eventBody{
		Event:       event,
		PayloadType: payloadType,
		Payload:     payload,
	})
	if err != nil {
		return 0, "", fmt.Errorf("marshaling event body: %w", err)
	}

	url := a.baseURL + "/" + a.groupToken
	if event == model.EventVerification {
		url += "?verification=1"
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
