package model

import "time"

// Delivery records one attempt to relay an event to a configured hook.
type Delivery struct {
	// ID is the unique identifier for this delivery record.
	ID string `json:"id"`

	// HookID links this delivery to the configured hook instance.
	HookID string `json:"hook_id"`

	// HookType identifies which adapter handled the delivery.
	HookType HookType `json:"hook_type"`

	// Event is the event kind that was delivered (Event* constants).
	Event string `json:"event"`

	// PayloadTitle is the crash title at delivery time, kept for display.
	PayloadTitle string `json:"payload_title"`

	// OK indicates whether the remote side accepted the delivery.
	OK bool `json:"ok"`

	// Resource holds the identifiers returned by the remote product as
	// JSON (e.g. the created issue id and key). Empty on failure.
	Resource string `json:"resource"`

	// Error is the diagnostic message when OK is false.
	Error string `json:"error"`

	// CreatedAt is when the delivery was attempted.
	CreatedAt time.Time `json:"created_at"`
}
