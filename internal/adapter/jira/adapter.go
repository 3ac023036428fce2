package jira

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/crashfeed/relay/internal/adapter"
	"github.com/crashfeed/relay/internal/model"
)

// Resource keys stored by the host after issue creation.
const (
	resourceStoryID  = "jira_story_id"
	resourceStoryKey = "jira_story_key"
)

// Adapter relays crash events to a Jira instance. Unlike the one-shot
// chat and webhook adapters it reconciles remote, stateful records (the
// issue) against the local crash-resolution status, so it also
// implements IssueDetailer and ResolutionSyncer.
//
// The adapter is stateless between calls: the project reference and
// client handle are derived from configuration at construction and no
// remote state is cached, so every reconciliation works from a fresh
// read of the remote issue.
type Adapter struct {
	ref    ProjectRef
	client *Client

	resolveTransitionID string
	reopenTransitionID  string
}

// New builds a Jira adapter from hook configuration. The project_url
// setting supplies the base address, context path, and project key;
// credentials come from the keyring via the credential function
// (api_token, or username setting + password credential).
func New(cfg model.HookConfig, credential func(key string) (string, error)) (*Adapter, error) {
	ref, err := ParseProjectURL(cfg.Setting("project_url"))
	if err != nil {
		return nil, err
	}

	creds := Credentials{Username: cfg.Setting("username")}
	// Missing credentials surface later as 401s from the tracker, the
	// same way a wrong credential would; settings are validated only
	// by attempted use.
	if token, err := credential("api_token"); err == nil {
		creds.APIToken = token
	}
	if creds.APIToken == "" {
		if password, err := credential("password"); err == nil {
			creds.Password = password
		}
	}

	a := &Adapter{
		ref:                 ref,
		client:              NewClient(ref, creds),
		resolveTransitionID: cfg.Setting("resolve_transition_id"),
		reopenTransitionID:  cfg.Setting("reopen_transition_id"),
	}
	if a.resolveTransitionID == "" {
		a.resolveTransitionID = defaultResolveTransitionID
	}
	if a.reopenTransitionID == "" {
		a.reopenTransitionID = defaultReopenTransitionID
	}

	return a, nil
}

// Factory adapts New to the registry's constructor signature.
func Factory(cfg model.HookConfig, credential func(key string) (string, error)) (adapter.Adapter, error) {
	return New(cfg, credential)
}

// Type returns the hook type identifier for Jira.
func (a *Adapter) Type() model.HookType {
	return model.HookTypeJira
}

// Verify checks the configured URL and credentials with a project
// lookup. Verification is a best-effort settings probe: every failure
// is caught and mapped to a (false, message) result.
func (a *Adapter) Verify(ctx context.Context) (bool, string) {
	path := fmt.Sprintf("/rest/api/2/project/%s", a.ref.Key)
	if _, err := a.client.GetRaw(ctx, path); err != nil {
		return false, "Oops! Please check your settings again."
	}
	return true, "Successfully verified Jira settings"
}

// NotifyImpactChange creates a Jira issue for the crash. The project id
// is looked up first because the creation endpoint wants the numeric
// id, not the key from the URL.
//
// HTTP rejections and client-side failures surface as distinct
// CreateError variants so operators can tell "the tracker refused the
// request" apart from "the client itself failed".
func (a *Adapter) NotifyImpactChange(ctx context.Context, payload *model.CrashPayload) (adapter.Resource, error) {
	var project Project
	path := fmt.Sprintf("/rest/api/2/project/%s", a.ref.Key)
	if err := a.client.Get(ctx, path, &project); err != nil {
		return nil, wrapCreateErr(err)
	}

	req := issueCreateRequest{
		Fields: issueCreateFields{
			Project:     projectID{ID: project.ID.String()},
			Summary:     adapter.ImpactSummary(payload),
			Description: adapter.ImpactDescription(payload),
			IssueType:   issueType{Name: "Bug"},
		},
	}

	var created createResponse
	if err := a.client.Post(ctx, "/rest/api/2/issue", req, &created); err != nil {
		return nil, wrapCreateErr(err)
	}

	return adapter.Resource{
		resourceStoryID:  created.ID,
		resourceStoryKey: created.Key,
	}, nil
}

// IssueDetails fetches the remote issue previously created for a crash
// and returns it as an untyped pass-through map, or false on any
// failure. Transport errors never propagate past this boundary.
func (a *Adapter) IssueDetails(ctx context.Context, res adapter.Resource) (map[string]interface{}, bool) {
	storyID := res[resourceStoryID]
	if storyID == "" {
		return nil, false
	}

	_, raw, err := a.fetchIssue(ctx, storyID)
	if err != nil {
		return nil, false
	}
	return raw, true
}

// SyncResolution reconciles the remote issue's workflow state against
// the payload's resolution status.
//
// The decision is re-derived from a fresh read of the remote issue on
// every call, which makes the operation idempotent under at-least-once
// event delivery: a duplicate event observes the already-transitioned
// issue and does nothing. A nil map with a nil error reports that
// no-op; otherwise the returned map is the issue re-fetched after the
// transition, since the transition endpoint's own response body is not
// a reliable view of the post-transition state.
func (a *Adapter) SyncResolution(ctx context.Context, res adapter.Resource, payload *model.CrashPayload) (map[string]interface{}, error) {
	storyID := res[resourceStoryID]
	if storyID == "" {
		return nil, fmt.Errorf("no %s recorded for this hook", resourceStoryID)
	}

	issue, _, err := a.fetchIssue(ctx, storyID)
	if err != nil {
		return nil, err
	}

	d := a.decide(payload.Resolved(), issue.Fields.Resolution != nil)
	if d.kind == decideNoOp {
		return nil, nil
	}

	path := fmt.Sprintf(
		"/rest/api/2/issue/%s/transitions?expand=transitions.fields",
		issue.ID,
	)
	req := transitionRequest{
		Update: transitionUpdate{
			Comment: []commentOp{{Add: commentBody{Body: d.comment}}},
		},
		Transition: transitionID{ID: d.transitionID},
	}
	if err := a.client.Post(ctx, path, req, nil); err != nil {
		return nil, &TransitionError{
			IssueID:      issue.ID,
			TransitionID: d.transitionID,
			Err:          err,
		}
	}

	// Read after write: the transition may have set the resolution,
	// resolution date, and status, so return the refreshed issue.
	_, raw, err := a.fetchIssue(ctx, storyID)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// fetchIssue retrieves an issue by id or key, returning both the typed
// view the reconciler needs and the flattened untyped map handed back
// to callers.
func (a *Adapter) fetchIssue(ctx context.Context, idOrKey string) (*Issue, map[string]interface{}, error) {
	path := fmt.Sprintf("/rest/api/2/issue/%s", idOrKey)

	body, err := a.client.GetRaw(ctx, path)
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			return nil, nil, &NotFoundError{Key: idOrKey, Err: err}
		}
		return nil, nil, err
	}

	var issue Issue
	if err := json.Unmarshal(body, &issue); err != nil {
		return nil, nil, fmt.Errorf("unmarshaling issue %s: %w", idOrKey, err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, nil, fmt.Errorf("unmarshaling issue %s: %w", idOrKey, err)
	}

	return &issue, flattenIssue(raw), nil
}

// flattenIssue lifts the "fields" object up beside the issue's id and
// key, matching the shape stored and displayed by the host.
func flattenIssue(raw map[string]interface{}) map[string]interface{} {
	flat := make(map[string]interface{})
	if fields, ok := raw["fields"].(map[string]interface{}); ok {
		for k, v := range fields {
			flat[k] = v
		}
	}
	if id, ok := raw["id"]; ok {
		flat["id"] = id
	}
	if key, ok := raw["key"]; ok {
		flat["key"] = key
	}
	return flat
}

// wrapCreateErr classifies a creation failure into the two CreateError
// variants.
func wrapCreateErr(err error) *CreateError {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return &CreateError{Status: statusErr, Err: err}
	}
	return &CreateError{Err: err}
}
