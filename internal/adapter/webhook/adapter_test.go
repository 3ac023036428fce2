package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crashfeed/relay/internal/model"
)

func noCredentials(string) (string, error) { return "", nil }

func newTestAdapter(t *testing.T, url string) *Adapter {
	t.Helper()

	a, err := New(model.HookConfig{
		ID:       "wh-1",
		Settings: map[string]string{"url": url},
	}, noCredentials)
	require.NoError(t, err)
	return a
}

func testPayload() *model.CrashPayload {
	return &model.CrashPayload{
		Title:        "Fatal Exception",
		Method:       "MainActivity.java line 10",
		CrashesCount: 5,
	}
}

func TestNewRequiresURL(t *testing.T) {
	_, err := New(model.HookConfig{ID: "wh-1"}, noCredentials)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing url setting")
}

func TestVerifyMarksRequest(t *testing.T) {
	var gotQuery, gotEvent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery

		var body eventBody
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotEvent = body.Event
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL)
	ok, msg := a.Verify(context.Background())

	assert.True(t, ok)
	assert.Equal(t, "Successfully verified Web Hook settings", msg)
	assert.Equal(t, "verification=1", gotQuery)
	assert.Equal(t, model.EventVerification, gotEvent)
}

func TestVerifyAppendsToExistingQuery(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL+"?token=abc")
	ok, _ := a.Verify(context.Background())

	assert.True(t, ok)
	assert.Equal(t, "token=abc&verification=1", gotQuery)
}

func TestVerifyFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL)
	ok, msg := a.Verify(context.Background())

	assert.False(t, ok)
	assert.Equal(t, "Oops! Please check your settings again.", msg)
}

func TestNotifyImpactChange(t *testing.T) {
	var body eventBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.RawQuery)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL)
	res, err := a.NotifyImpactChange(context.Background(), testPayload())
	require.NoError(t, err)
	assert.Empty(t, res)

	assert.Equal(t, model.EventIssueImpact, body.Event)
	assert.Equal(t, "issue", body.PayloadType)
	require.NotNil(t, body.Payload)
	assert.Equal(t, "Fatal Exception", body.Payload.Title)
}

func TestNotifyImpactChangeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		io.WriteString(w, "upstream broken")
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL)
	_, err := a.NotifyImpactChange(context.Background(), testPayload())
	require.Error(t, err)
	assert.Equal(t,
		"WebHook issue create failed - HTTP status code: 502, body: upstream broken",
		err.Error(),
	)
}

func TestNotifyImpactChangeDropsHTMLBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, "<!DOCTYPE html><html><body>error page</body></html>")
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL)
	_, err := a.NotifyImpactChange(context.Background(), testPayload())
	require.Error(t, err)
	assert.Equal(t, "WebHook issue create failed - HTTP status code: 500", err.Error())
}
