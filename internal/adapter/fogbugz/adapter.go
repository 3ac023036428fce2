// Package fogbugz creates FogBugz cases for crash events via the
// api.asp XML endpoint.
package fogbugz

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/crashfeed/relay/internal/adapter"
	"github.com/crashfeed/relay/internal/model"
)

// apiResponse is the envelope every api.asp call returns. Exactly one
// of the payload elements is present, or an error element.
type apiResponse struct {
	XMLName  xml.Name     `xml:"response"`
	Case     *apiCase     `xml:"case"`
	Projects *apiProjects `xml:"projects"`
	Error    *apiError    `xml:"error"`
}

type apiCase struct {
	IxBug string `xml:"ixBug,attr"`
}

type apiProjects struct {
	Projects []apiProject `xml:"project"`
}

type apiProject struct {
	Name string `xml:"sProject"`
}

type apiError struct {
	Code string `xml:"code,attr"`
	Text string `xml:",chardata"`
}

// Adapter creates FogBugz cases in the project behind the configured
// URL and token.
type Adapter struct {
	projectURL string
	token      string
	httpClient *http.Client
}

// New builds a FogBugz adapter from the project_url setting and the
// api_token credential.
func New(cfg model.HookConfig, credential func(key string) (string, error)) (*Adapter, error) {
	projectURL := cfg.Setting("project_url")
	if projectURL == "" {
		return nil, fmt.Errorf("fogbugz hook %s: missing project_url setting", cfg.ID)
	}

	token, err := credential("api_token")
	if err != nil || token == "" {
		return nil, fmt.Errorf("fogbugz hook %s: missing api_token credential", cfg.ID)
	}

	return &Adapter{
		projectURL: strings.TrimRight(projectURL, "/"),
		token:      token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// Factory adapts New to the registry's constructor signature.
func Factory(cfg model.HookConfig, credential func(key string) (string, error)) (adapter.Adapter, error) {
	return New(cfg, credential)
}

// Type returns the hook type identifier for FogBugz.
func (a *Adapter) Type() model.HookType {
	return model.HookTypeFogBugz
}

// Verify lists the account's projects to confirm the URL and token are
// usable.
func (a *Adapter) Verify(ctx context.Context) (bool, string) {
	resp, err := a.call(ctx, http.MethodGet, url.Values{"cmd": {"listProjects"}})
	if err != nil || resp.Error != nil || resp.Projects == nil {
		return false, "Oops! Please check your API key again."
	}
	return true, "Successfully verified Fogbugz settings"
}

// NotifyImpactChange opens a new case titled after the crash with the
// shared impact description as the case event text.
func (a *Adapter) NotifyImpactChange(ctx context.Context, payload *model.CrashPayload) (adapter.Resource, error) {
	params := url.Values{
		"cmd":    {"new"},
		"sTitle": {adapter.ImpactSummary(payload)},
		"sEvent": {adapter.ImpactDescription(payload)},
	}

	resp, err := a.call(ctx, http.MethodPost, params)
	if err != nil {
		return nil, fmt.Errorf("Could not create FogBugz case: %w", err)
	}
	if resp.Error != nil || resp.Case == nil {
		detail := "missing case in response"
		if resp.Error != nil {
			detail = resp.Error.Text
		}
		return nil, fmt.Errorf("Could not create FogBugz case: Response: %s", detail)
	}

	return adapter.Resource{"fogbugz_case_number": resp.Case.IxBug}, nil
}

// call issues one api.asp request with the token attached and parses
// the XML envelope. For POSTs the parameters travel as a form body.
func (a *Adapter) call(ctx context.Context, method string, params url.Values) (*apiResponse, error) {
	params.Set("token", a.token)

	endpoint := a.projectURL + "/api.asp"
	var bodyReader io.Reader
	if method == http.MethodPost {
		bodyReader = strings.NewReader(params.Encode())
	} else {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf(
			"unexpected status %d: %s", resp.StatusCode, string(respBody),
		)
	}

	var parsed apiResponse
	if err := xml.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("parsing api.asp response: %w", err)
	}
	return &parsed, nil
}
