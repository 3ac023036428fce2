// Package campfire posts crash notifications to a Campfire chat room.
// The room is looked up by name on every call; Campfire identifies
// rooms by numeric id on the wire.
package campfire

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

// room is a single entry from GET /rooms.json.
type room struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type roomList struct {
	Rooms []room `json:"rooms"`
}

// speakRequest is the body for POST /room/<id>/speak.json.
type speakRequest struct {
	Message speakMessage `json:"message"`
}

type speakMessage struct {
	Body string `json:"body"`
}

// speakResponse carries the id of the posted message.
type speakResponse struct {
	Message struct {
		ID int64 `json:"id"`
	} `json:"message"`
}

// Adapter posts crash messages to one named Campfire room.
type Adapter struct {
	baseURL    string
	roomName   string
	token      string
	httpClient *http.Client
}

// New builds a Campfire adapter from the subdomain and room settings
// plus the api_token credential. Campfire authenticates with the token
// as the basic-auth username.
func New(cfg model.HookConfig, credential func(key string) (string, error)) (*Adapter, error) {
	token, err := credential("api_token")
	if err != nil || token == "" {
		return nil, fmt.Errorf("campfire hook %s: missing api_token credential", cfg.ID)
	}

	roomName := cfg.Setting("room")
	if roomName == "" {
		return nil, fmt.Errorf("campfire hook %s: missing room setting", cfg.ID)
	}

	baseURL := cfg.Setting("base_url")
	if baseURL == "" {
		subdomain := cfg.Setting("subdomain")
		if subdomain == "" {
			return nil, fmt.Errorf("campfire hook %s: missing subdomain setting", cfg.ID)
		}
		baseURL = fmt.Sprintf("https://%s.campfirenow.com", subdomain)
	}

	return &Adapter{
		baseURL:  strings.TrimRight(baseURL, "/"),
		roomName: roomName,
		token:    token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// Factory adapts New to the registry's constructor signature.
func Factory(cfg model.HookConfig, credential func(key string) (string, error)) (adapter.Adapter, error) {
	return New(cfg, credential)
}

// Type returns the hook type identifier for Campfire.
func (a *Adapter) Type() model.HookType {
	return model.HookTypeCampfire
}

// Verify confirms the token works and the configured room exists.
func (a *Adapter) Verify(ctx context.Context) (bool, string) {
	if _, err := a.findRoom(ctx); err != nil {
		return false, fmt.Sprintf(
			"Oops! Can not find %s room. Please check your settings.",
			a.roomName,
		)
	}
	return true, "Successfully verified Campfire settings"
}

// NotifyImpactChange speaks a one-line crash summary into the room and
// returns the posted message id.
func (a *Adapter) NotifyImpactChange(ctx context.Context, payload *model.CrashPayload) (adapter.Resource, error) {
	r, err := a.findRoom(ctx)
	if err != nil {
		return nil, fmt.Errorf("sending Campfire message: %w", err)
	}

	text := fmt.Sprintf(
		"%s crashed at least %d times, affecting at least %d users. More information: %s",
		adapter.ImpactSummary(payload),
		payload.CrashesCount,
		payload.ImpactedDevicesCount,
		payload.URL,
	)

	var spoken speakResponse
	path := fmt.Sprintf("/room/%d/speak.json", r.ID)
	if err := a.post(ctx, path, speakRequest{Message: speakMessage{Body: text}}, &spoken); err != nil {
		return nil, fmt.Errorf("sending Campfire message: %w", err)
	}
	if spoken.Message.ID == 0 {
		return nil, fmt.Errorf("sending Campfire message: no message id in response")
	}

	return adapter.Resource{
		"campfire_message_id": fmt.Sprintf("%d", spoken.Message.ID),
	}, nil
}

// findRoom lists the account's rooms and returns the configured one.
func (a *Adapter) findRoom(ctx context.Context) (*room, error) {
	var list roomList
	if err := a.get(ctx, "/rooms.json", &list); err != nil {
		return nil, err
	}
	for i := range list.Rooms {
		if list.Rooms[i].Name == a.roomName {
			return &list.Rooms[i], nil
		}
	}
	return nil, fmt.Errorf("room %q not found", a.roomName)
}

func (a *Adapter) get(ctx context.Context, path string, result interface{}) error {
	return a.do(ctx, http.MethodGet, path, nil, result)
}

func (a *Adapter) post(ctx context.Context, path string, body, result interface{}) error {
	return a.do(ctx, http.MethodPost, path, body, result)
}

// do issues one JSON request with token basic auth.
func (a *Adapter) do(ctx context.Context, method, path string, body, result interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	// Campfire's token auth: token as username, any password.
	req.SetBasicAuth(a.token, "X")
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf(
			"unexpected status %d on %s %s: %s",
			resp.StatusCode, method, path, string(respBody),
		)
	}

	if result == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("unmarshaling response from %s %s: %w", method, path, err)
	}
	return nil
}
