package model

import "time"

// HookType identifies the kind of third-party product a hook delivers to.
type HookType string

const (
	HookTypeJira     HookType = "jira"
	HookTypeFogBugz  HookType = "fogbugz"
	HookTypeWebHook  HookType = "webhook"
	HookTypeCampfire HookType = "campfire"
	HookTypeHall     HookType = "hall"
	HookTypeMail     HookType = "mail"
)

// Event names sent alongside payloads to webhook-style endpoints.
const (
	EventVerification     = "verification"
	EventIssueImpact      = "issue_impact_change"
	EventIssueResolution  = "issue_resolution_change"
	EventIssueIntegration = "issue_integration_request"
)

// App describes the application a crash originated from.
type App struct {
	// Name is the display name of the application.
	Name string `json:"name"`

	// BundleIdentifier is the reverse-DNS identifier of the application.
	BundleIdentifier string `json:"bundle_identifier"`
}

// CrashPayload is a crash/issue event received from the upstream
// monitoring system. It is read-only from the relay's perspective and
// discarded once the delivery call chain returns.
type CrashPayload struct {
	// Title is the crash issue title.
	Title string `json:"title"`

	// Method is the originating method or source location.
	Method string `json:"method"`

	// ImpactLevel is the upstream severity bucket.
	ImpactLevel int `json:"impact_level"`

	// ImpactedDevicesCount is how many distinct devices hit the crash.
	ImpactedDevicesCount int `json:"impacted_devices_count"`

	// CrashesCount is the total number of crash occurrences.
	CrashesCount int `json:"crashes_count"`

	// URL links back to the issue detail page upstream.
	URL string `json:"url"`

	// App identifies the crashing application.
	App App `json:"app"`

	// ResolvedAt is set when the issue has been marked resolved
	// upstream; nil means the issue is open.
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// Resolved reports whether the payload is locally marked resolved.
func (p *CrashPayload) Resolved() bool {
	return p.ResolvedAt != nil
}
