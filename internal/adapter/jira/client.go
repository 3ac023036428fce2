package jira

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/crashfeed/relay/internal/adapter"
	"github.com/crashfeed/relay/internal/model"
)

// Credentials holds the authentication material for a Jira instance.
// When APIToken is set it is sent as a Bearer token; otherwise Username
// and Password are sent as HTTP basic auth. Credentials are never
// logged or echoed in error messages.
type Credentials struct {
	Username string
	Password string
	APIToken string
}

// Client is a thin HTTP client for the Jira REST API v2, scoped to one
// resolved project reference. Every request path is routed under the
// reference's context path, and the transport mode (plaintext vs.
// encrypted with strict peer verification) follows the URL scheme.
type Client struct {
	baseURL     string
	contextPath string
	creds       Credentials
	httpClient  *http.Client
	maxRetries  int
}

// NewClient builds a client handle from a resolved project reference.
func NewClient(ref ProjectRef, creds Credentials) *Client {
	transport := &http.Transport{}
	if ref.UseTLS {
		// Strict validation; there is deliberately no insecure-mode
		// escape hatch for https URLs.
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: !ref.VerifyPeer,
		}
	}

	return &Client{
		baseURL:     ref.BaseURL,
		contextPath: ref.ContextPath,
		creds:       creds,
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		maxRetries: 3,
	}
}

// Get performs an HTTP GET request and unmarshals the JSON response.
func (c *Client) Get(ctx context.Context, path string, result interface{}) error {
	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return unmarshalResult(body, result)
}

// GetRaw performs an HTTP GET request and returns the raw response
// body. Used where the caller needs the untyped JSON for pass-through.
func (c *Client) GetRaw(ctx context.Context, path string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

// Post performs an HTTP POST request with a JSON body and unmarshals
// the JSON response.
func (c *Client) Post(ctx context.Context, path string, body, result interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request body: %w", err)
	}
	respBody, err := c.do(ctx, http.MethodPost, path, data)
	if err != nil {
		return err
	}
	return unmarshalResult(respBody, result)
}

// do is the core HTTP method: it prefixes the context path, attaches
// auth headers, retries on 429, and maps non-2xx responses to typed
// errors. The response body is returned on success.
func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	url := c.baseURL + c.contextPath + path

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		var bodyReader io.Reader
		if body != nil {
			bodyReader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}

		if c.creds.APIToken != "" {
			req.Header.Set("Authorization", "Bearer "+c.creds.APIToken)
		} else if c.creds.Username != "" {
			req.SetBasicAuth(c.creds.Username, c.creds.Password)
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("executing request %s %s: %w", method, path, err)
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("reading response body: %w", readErr)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			waitDuration := retryAfterDuration(resp, attempt)
			lastErr = fmt.Errorf("rate limited (429) on %s %s", method, path)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(waitDuration):
				continue
			}
		}

		if resp.StatusCode == http.StatusUnauthorized {
			return nil, &adapter.AuthError{
				HookType: model.HookTypeJira,
				Message: fmt.Sprintf(
					"authentication failed (401): check your credentials for %s",
					c.baseURL,
				),
				Err: &StatusError{
					Code: resp.StatusCode,
					Body: string(respBody),
				},
			}
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &StatusError{
				Code: resp.StatusCode,
				Body: string(respBody),
			}
		}

		return respBody, nil
	}

	return nil, fmt.Errorf("max retries (%d) exceeded: %w", c.maxRetries, lastErr)
}

// unmarshalResult decodes a response body into result, tolerating empty
// bodies (e.g. 204 or transition responses).
func unmarshalResult(body []byte, result interface{}) error {
	if result == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("unmarshaling response: %w", err)
	}
	return nil
}

// retryAfterDuration reads the Retry-After header and computes a wait
// duration. Falls back to exponential backoff if the header is missing.
func retryAfterDuration(resp *http.Response, attempt int) time.Duration {
	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}

	// Exponential backoff: 1s, 2s, 4s, ...
	backoff := time.Duration(1<<uint(attempt)) * time.Second
	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	return backoff
}
