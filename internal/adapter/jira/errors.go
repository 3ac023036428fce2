package jira

import "fmt"

// MalformedURLError reports an operator-supplied project URL that could
// not be resolved. It is a settings problem, not a transient failure.
type MalformedURLError struct {
	URL    string
	Reason string
}

func (e *MalformedURLError) Error() string {
	return fmt.Sprintf("malformed Jira project URL %q: %s", e.URL, e.Reason)
}

// StatusError is a non-2xx response from the Jira REST API. The message
// format is load-bearing: callers surface it verbatim to operators.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("Status: %d, Body: %s", e.Code, e.Body)
}

// CreateError is a failed issue creation. Status is set when the
// tracker rejected the request over HTTP (any non-2xx, including 401);
// it is nil when the client itself failed before or after the call.
// Upstream callers format the two kinds differently. Err always holds
// the underlying error chain.
type CreateError struct {
	Status *StatusError
	Err    error
}

func (e *CreateError) Error() string {
	if e.Status != nil {
		return e.Status.Error()
	}
	return fmt.Sprintf("Jira Issue Create Failed: %v", e.Err)
}

func (e *CreateError) Unwrap() error { return e.Err }

// NotFoundError reports that a previously created issue could not be
// fetched.
type NotFoundError struct {
	Key string
	Err error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("Jira issue %s not found: %v", e.Key, e.Err)
}

func (e *NotFoundError) Unwrap() error { return e.Err }

// TransitionError reports a failure while applying a workflow
// transition during reconciliation.
type TransitionError struct {
	IssueID      string
	TransitionID string
	Err          error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf(
		"transitioning Jira issue %s (transition %s): %v",
		e.IssueID, e.TransitionID, e.Err,
	)
}

func (e *TransitionError) Unwrap() error { return e.Err }
