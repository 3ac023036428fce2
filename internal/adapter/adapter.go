package adapter

import (
	"context"
	"errors"
	"fmt"

	"github.com/crashfeed/relay/internal/model"
)

// AuthError indicates that authentication was rejected by the remote
// product. It is returned by adapter clients when a 401 response is
// received so callers can point the operator at their credentials. Err
// carries the underlying HTTP status error, so a 401 still classifies
// as an HTTP-layer rejection via errors.As.
type AuthError struct {
	HookType model.HookType
	Message  string
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %s", e.HookType, e.Message)
}

func (e *AuthError) Unwrap() error { return e.Err }

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// Resource holds the identifiers a remote product returned for a created
// record (e.g. "jira_story_id"). The host stores it and hands it back on
// later integration-request and resolution-change events.
type Resource map[string]string

// Adapter is the contract every outbound notification hook implements.
//
// Verify is a best-effort settings probe: it must catch all failures and
// convert them to a (false, message) result rather than returning an
// error past the adapter boundary. NotifyImpactChange is the opposite:
// a failed delivery must surface as an error so the dispatcher knows the
// side effect did not happen.
type Adapter interface {
	// Type returns the hook type identifier.
	Type() model.HookType

	// Verify checks that the configured settings and credentials are
	// usable, returning a human-readable status message.
	Verify(ctx context.Context) (bool, string)

	// NotifyImpactChange relays a new or escalated crash issue to the
	// remote product and returns the remote identifiers, if any.
	NotifyImpactChange(ctx context.Context, payload *model.CrashPayload) (Resource, error)
}

// IssueDetailer is implemented by adapters that can look up the remote
// record previously created for an issue. The second return is false on
// any failure; lookup errors never propagate as errors.
type IssueDetailer interface {
	IssueDetails(ctx context.Context, res Resource) (map[string]interface{}, bool)
}

// ResolutionSyncer is implemented by adapters that reconcile the remote
// record's workflow state against the local resolution status.
//
// A nil map with a nil error means the remote state already agreed and
// nothing was changed. A non-nil map is the refreshed remote record
// after a transition was applied. Errors propagate.
type ResolutionSyncer interface {
	SyncResolution(ctx context.Context, res Resource, payload *model.CrashPayload) (map[string]interface{}, error)
}

// Factory builds an adapter from a hook configuration. The credential
// function resolves secret material by key (backed by the system
// keyring) so secrets stay out of the config file.
type Factory func(cfg model.HookConfig, credential func(key string) (string, error)) (Adapter, error)

// Registry maps hook types to their adapter factories.
type Registry struct {
	factories map[model.HookType]Factory
}

// NewRegistry returns an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[model.HookType]Factory)}
}

// Register adds a factory for the given hook type, replacing any
// previous registration.
func (r *Registry) Register(t model.HookType, f Factory) {
	r.factories[t] = f
}

// Build constructs an adapter for the hook configuration.
func (r *Registry) Build(cfg model.HookConfig, credential func(key string) (string, error)) (Adapter, error) {
	f, ok := r.factories[model.HookType(cfg.Type)]
	if !ok {
		return nil, fmt.Errorf("unknown hook type %q for hook %s", cfg.Type, cfg.ID)
	}
	return f(cfg, credential)
}

// Types returns the registered hook types.
func (r *Registry) Types() []model.HookType {
	types := make([]model.HookType, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	return types
}
