package jira

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crashfeed/relay/internal/adapter"
	"github.com/crashfeed/relay/internal/model"
)

func testCredentials(values map[string]string) func(key string) (string, error) {
	return func(key string) (string, error) {
		v, ok := values[key]
		if !ok {
			return "", fmt.Errorf("credential %q not found", key)
		}
		return v, nil
	}
}

func newTestAdapter(t *testing.T, serverURL string, settings map[string]string) *Adapter {
	t.Helper()

	cfg := model.HookConfig{
		ID:       "jira-1",
		Type:     string(model.HookTypeJira),
		Settings: map[string]string{"project_url": serverURL + "/browse/PROJ"},
	}
	for k, v := range settings {
		cfg.Settings[k] = v
	}

	a, err := New(cfg, testCredentials(map[string]string{"api_token": "secret-token"}))
	require.NoError(t, err)
	return a
}

func testPayload() *model.CrashPayload {
	return &model.CrashPayload{
		Title:                "Fatal Exception",
		Method:               "MainActivity.java line 10",
		ImpactedDevicesCount: 3,
		CrashesCount:         5,
		URL:                  "http://crashlytics.com/issue/1",
	}
}

func TestNewRejectsMalformedProjectURL(t *testing.T) {
	cfg := model.HookConfig{
		ID:       "jira-1",
		Settings: map[string]string{"project_url": "https://example.com/no/marker"},
	}

	_, err := New(cfg, testCredentials(nil))
	require.Error(t, err)

	var malformed *MalformedURLError
	assert.True(t, errors.As(err, &malformed))
}

func TestVerify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/api/2/project/PROJ", r.URL.Path)
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"id":10000,"key":"PROJ"}`)
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL, nil)
	ok, msg := a.Verify(context.Background())
	assert.True(t, ok)
	assert.Equal(t, "Successfully verified Jira settings", msg)
}

func TestVerifyFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL, nil)
	ok, msg := a.Verify(context.Background())
	assert.False(t, ok)
	assert.Equal(t, "Oops! Please check your settings again.", msg)
}

func TestVerifyUnreachableHost(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	a := newTestAdapter(t, srv.URL, nil)
	ok, _ := a.Verify(context.Background())
	assert.False(t, ok)
}

func TestNotifyImpactChange(t *testing.T) {
	var createBody map[string]interface{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/rest/api/2/project/PROJ":
			fmt.Fprint(w, `{"id":10000,"key":"PROJ"}`)
		case r.Method == http.MethodPost && r.URL.Path == "/rest/api/2/issue":
			data, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			require.NoError(t, json.Unmarshal(data, &createBody))
			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, `{"id":"foo","key":"bar"}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL, nil)
	res, err := a.NotifyImpactChange(context.Background(), testPayload())
	require.NoError(t, err)

	assert.Equal(t, adapter.Resource{
		"jira_story_id":  "foo",
		"jira_story_key": "bar",
	}, res)

	fields := createBody["fields"].(map[string]interface{})
	assert.Equal(t, "Fatal Exception [Crashlytics]", fields["summary"])
	assert.Contains(t, fields["description"], "Crashlytics detected a new issue.")
	assert.Contains(t, fields["description"], "at least 3 users who have crashed")
	assert.Contains(t, fields["description"], "at least 5 times.")
	assert.Equal(t,
		map[string]interface{}{"id": "10000"},
		fields["project"],
	)
	assert.Equal(t,
		map[string]interface{}{"name": "Bug"},
		fields["issuetype"],
	)
}

func TestNotifyImpactChangeHTTPRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			fmt.Fprint(w, `{"id":10000,"key":"PROJ"}`)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, "tracker says no")
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL, nil)
	_, err := a.NotifyImpactChange(context.Background(), testPayload())
	require.Error(t, err)

	var createErr *CreateError
	require.True(t, errors.As(err, &createErr))
	require.NotNil(t, createErr.Status)
	assert.Equal(t, "Status: 500, Body: tracker says no", err.Error())
}

func TestNotifyImpactChangeClientFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	a := newTestAdapter(t, srv.URL, nil)
	_, err := a.NotifyImpactChange(context.Background(), testPayload())
	require.Error(t, err)

	var createErr *CreateError
	require.True(t, errors.As(err, &createErr))
	assert.Nil(t, createErr.Status)
	assert.Contains(t, err.Error(), "Jira Issue Create Failed:")
}

func TestNotifyImpactChangeUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			fmt.Fprint(w, `{"id":10000,"key":"PROJ"}`)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, "denied")
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL, nil)
	_, err := a.NotifyImpactChange(context.Background(), testPayload())
	require.Error(t, err)

	// A 401 is still an HTTP-layer rejection and keeps the status/body
	// form, while the auth classification stays reachable in the chain.
	var createErr *CreateError
	require.True(t, errors.As(err, &createErr))
	require.NotNil(t, createErr.Status)
	assert.Equal(t, "Status: 401, Body: denied", err.Error())
	assert.True(t, adapter.IsAuthError(err))
}

func TestSyncResolutionUnauthorizedFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL, nil)
	_, err := a.SyncResolution(context.Background(), adapter.Resource{"jira_story_id": "foo"}, testPayload())
	require.Error(t, err)

	var notFound *NotFoundError
	assert.True(t, errors.As(err, &notFound))
}

func TestRequestsHonorContextPath(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	cfg := model.HookConfig{
		ID:       "jira-1",
		Settings: map[string]string{"project_url": srv.URL + "/jira/browse/PROJ"},
	}
	a, err := New(cfg, testCredentials(map[string]string{"api_token": "t"}))
	require.NoError(t, err)

	ok, _ := a.Verify(context.Background())
	assert.True(t, ok)
	assert.Equal(t, "/jira/rest/api/2/project/PROJ", gotPath)
}

func TestBasicAuthFallback(t *testing.T) {
	var user, pass string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, _ = r.BasicAuth()
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	cfg := model.HookConfig{
		ID: "jira-1",
		Settings: map[string]string{
			"project_url": srv.URL + "/browse/PROJ",
			"username":    "alice",
		},
	}
	a, err := New(cfg, testCredentials(map[string]string{"password": "hunter2"}))
	require.NoError(t, err)

	ok, _ := a.Verify(context.Background())
	assert.True(t, ok)
	assert.Equal(t, "alice", user)
	assert.Equal(t, "hunter2", pass)
}

func TestIssueDetails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/api/2/issue/foo", r.URL.Path)
		fmt.Fprint(w, `{
			"id": "foo",
			"key": "PROJ-1",
			"fields": {"summary": "Fatal Exception [Crashlytics]", "resolution": null}
		}`)
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL, nil)
	details, ok := a.IssueDetails(context.Background(), adapter.Resource{"jira_story_id": "foo"})
	require.True(t, ok)

	assert.Equal(t, "foo", details["id"])
	assert.Equal(t, "PROJ-1", details["key"])
	assert.Equal(t, "Fatal Exception [Crashlytics]", details["summary"])
}

func TestIssueDetailsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL, nil)

	_, ok := a.IssueDetails(context.Background(), adapter.Resource{"jira_story_id": "gone"})
	assert.False(t, ok)

	_, ok = a.IssueDetails(context.Background(), adapter.Resource{})
	assert.False(t, ok)
}

// jiraIssueServer simulates the fetch/transition/refetch sequence of a
// reconciliation.
type jiraIssueServer struct {
	t *testing.T

	resolved       bool
	fetches        int
	transitionBody map[string]interface{}
	transitionErr  int
}

func (s *jiraIssueServer) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/rest/api/2/issue/foo":
			s.fetches++
			resolution := "null"
			if s.resolved {
				resolution = `{"name": "Fixed"}`
			}
			fmt.Fprintf(w, `{
				"id": "foo",
				"key": "PROJ-1",
				"fields": {"summary": "Fatal Exception", "resolution": %s}
			}`, resolution)

		case r.Method == http.MethodPost && r.URL.Path == "/rest/api/2/issue/foo/transitions":
			assert.Equal(s.t, "transitions.fields", r.URL.Query().Get("expand"))
			data, err := io.ReadAll(r.Body)
			require.NoError(s.t, err)
			require.NoError(s.t, json.Unmarshal(data, &s.transitionBody))

			if s.transitionErr != 0 {
				w.WriteHeader(s.transitionErr)
				return
			}
			// A transition flips the remote resolution state.
			s.resolved = !s.resolved
			w.WriteHeader(http.StatusNoContent)

		default:
			http.NotFound(w, r)
		}
	}
}

func (s *jiraIssueServer) transitionID() string {
	tr := s.transitionBody["transition"].(map[string]interface{})
	return tr["id"].(string)
}

func (s *jiraIssueServer) comment() string {
	update := s.transitionBody["update"].(map[string]interface{})
	comments := update["comment"].([]interface{})
	add := comments[0].(map[string]interface{})["add"].(map[string]interface{})
	return add["body"].(string)
}

func TestSyncResolutionCloses(t *testing.T) {
	state := &jiraIssueServer{t: t}
	srv := httptest.NewServer(state.handler())
	defer srv.Close()

	a := newTestAdapter(t, srv.URL, nil)
	resolvedAt := time.Now()
	payload := testPayload()
	payload.ResolvedAt = &resolvedAt

	issue, err := a.SyncResolution(context.Background(), adapter.Resource{"jira_story_id": "foo"}, payload)
	require.NoError(t, err)
	require.NotNil(t, issue)

	assert.Equal(t, "2", state.transitionID())
	assert.Equal(t, "This CR has been marked as resolved in Crashlytics", state.comment())

	// The returned issue is a fresh read taken after the transition.
	assert.Equal(t, 2, state.fetches)
	assert.NotNil(t, issue["resolution"])
}

func TestSyncResolutionReopens(t *testing.T) {
	state := &jiraIssueServer{t: t, resolved: true}
	srv := httptest.NewServer(state.handler())
	defer srv.Close()

	a := newTestAdapter(t, srv.URL, nil)
	issue, err := a.SyncResolution(context.Background(), adapter.Resource{"jira_story_id": "foo"}, testPayload())
	require.NoError(t, err)
	require.NotNil(t, issue)

	assert.Equal(t, "3", state.transitionID())
	assert.Equal(t, "This CR has been reopened in Crashlytics", state.comment())
	assert.Nil(t, issue["resolution"])
}

func TestSyncResolutionNoOp(t *testing.T) {
	state := &jiraIssueServer{t: t, resolved: true}
	srv := httptest.NewServer(state.handler())
	defer srv.Close()

	a := newTestAdapter(t, srv.URL, nil)
	resolvedAt := time.Now()
	payload := testPayload()
	payload.ResolvedAt = &resolvedAt

	issue, err := a.SyncResolution(context.Background(), adapter.Resource{"jira_story_id": "foo"}, payload)
	require.NoError(t, err)
	assert.Nil(t, issue)

	// Agreement is observed, not assumed: exactly one read, no
	// transition.
	assert.Equal(t, 1, state.fetches)
	assert.Nil(t, state.transitionBody)
}

func TestSyncResolutionTransitionFailure(t *testing.T) {
	state := &jiraIssueServer{t: t, transitionErr: http.StatusBadRequest}
	srv := httptest.NewServer(state.handler())
	defer srv.Close()

	a := newTestAdapter(t, srv.URL, nil)
	resolvedAt := time.Now()
	payload := testPayload()
	payload.ResolvedAt = &resolvedAt

	_, err := a.SyncResolution(context.Background(), adapter.Resource{"jira_story_id": "foo"}, payload)
	require.Error(t, err)

	var transitionErr *TransitionError
	require.True(t, errors.As(err, &transitionErr))
	assert.Equal(t, "foo", transitionErr.IssueID)
	assert.Equal(t, "2", transitionErr.TransitionID)
}

func TestSyncResolutionMissingIssue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL, nil)
	_, err := a.SyncResolution(context.Background(), adapter.Resource{"jira_story_id": "gone"}, testPayload())
	require.Error(t, err)

	var notFound *NotFoundError
	assert.True(t, errors.As(err, &notFound))
}

func TestSyncResolutionRequiresStoredResource(t *testing.T) {
	a := newTestAdapter(t, "http://unused.invalid", nil)
	_, err := a.SyncResolution(context.Background(), adapter.Resource{}, testPayload())
	require.Error(t, err)
}

func TestClientMapsUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, "denied")
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL, nil)
	_, err := a.client.GetRaw(context.Background(), "/rest/api/2/project/PROJ")
	require.Error(t, err)
	assert.True(t, adapter.IsAuthError(err))

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, 401, statusErr.Code)
	assert.Equal(t, "denied", statusErr.Body)
}

func TestClientRetriesRateLimit(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL, nil)
	_, err := a.client.GetRaw(context.Background(), "/rest/api/2/project/PROJ")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}
