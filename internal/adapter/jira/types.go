package jira

import "encoding/json"

// Issue is the subset of a Jira issue the relay reads. Everything else
// is passed through untyped via the raw response body.
type Issue struct {
	ID     string      `json:"id"`
	Key    string      `json:"key"`
	Fields IssueFields `json:"fields"`
}

// IssueFields contains the issue fields the reconciler inspects.
type IssueFields struct {
	Summary string `json:"summary"`

	// Resolution is nil while the issue is open; its presence is what
	// "remotely resolved" means.
	Resolution     *Resolution `json:"resolution"`
	ResolutionDate string      `json:"resolutiondate"`
	Status         *Status     `json:"status"`
}

// Resolution is the tracker's resolution record (e.g. "Fixed").
type Resolution struct {
	Name string `json:"name"`
}

// Status is the workflow status of an issue.
type Status struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Project is the response from GET /rest/api/2/project/<key>.
type Project struct {
	ID  json.Number `json:"id"`
	Key string      `json:"key"`
}

// issueCreateRequest is the body for POST /rest/api/2/issue.
type issueCreateRequest struct {
	Fields issueCreateFields `json:"fields"`
}

type issueCreateFields struct {
	Project     projectID `json:"project"`
	Summary     string    `json:"summary"`
	Description string    `json:"description"`
	IssueType   issueType `json:"issuetype"`
}

type projectID struct {
	ID string `json:"id"`
}

type issueType struct {
	Name string `json:"name"`
}

// createResponse is the response from POST /rest/api/2/issue.
type createResponse struct {
	ID  string `json:"id"`
	Key string `json:"key"`
}

// transitionRequest is the body for the transitions endpoint: it adds a
// comment and applies the workflow transition in one call.
type transitionRequest struct {
	Update     transitionUpdate `json:"update"`
	Transition transitionID     `json:"transition"`
}

type transitionUpdate struct {
	Comment []commentOp `json:"comment"`
}

type commentOp struct {
	Add commentBody `json:"add"`
}

type commentBody struct {
	Body string `json:"body"`
}

type transitionID struct {
	ID string `json:"id"`
}
