// Package dispatch routes inbound crash events to the configured hooks
// and records every delivery attempt in the store.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/crashfeed/relay/internal/adapter"
	"github.com/crashfeed/relay/internal/model"
	"github.com/crashfeed/relay/internal/store"
)

// deliveryTimeout bounds one delivery attempt to one hook. The adapter
// clients carry their own HTTP timeouts; this is the outer guard.
const deliveryTimeout = 60 * time.Second

// VerifyResult is the outcome of a settings probe for one hook.
type VerifyResult struct {
	HookID   string
	HookType model.HookType
	OK       bool
	Message  string
}

// Result is the outcome of an impact-change delivery to one hook.
type Result struct {
	HookID   string
	HookType model.HookType
	Resource adapter.Resource
	Err      error
}

// ResolutionResult is the outcome of a resolution-change delivery to
// one hook. Changed is false when the remote record already agreed
// with the local state and no transition was applied.
type ResolutionResult struct {
	HookID   string
	HookType model.HookType
	Issue    map[string]interface{}
	Changed  bool
	Err      error
}

// hookEntry holds a built adapter and its configuration.
type hookEntry struct {
	cfg model.HookConfig
	adp adapter.Adapter
}

// Dispatcher fans events out to registered hooks. Each event is handled
// by one sequential call chain per hook; the only state shared between
// invocations is the delivery log.
type Dispatcher struct {
	store store.Store
	mu    sync.Mutex
	hooks []hookEntry
}

// New creates a Dispatcher backed by the given delivery log.
func New(s store.Store) *Dispatcher {
	return &Dispatcher{store: s}
}

// RegisterHook adds a built adapter and its configuration.
func (d *Dispatcher) RegisterHook(cfg model.HookConfig, adp adapter.Adapter) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hooks = append(d.hooks, hookEntry{cfg: cfg, adp: adp})
}

// Hooks returns the configurations of all registered hooks.
func (d *Dispatcher) Hooks() []model.HookConfig {
	d.mu.Lock()
	defer d.mu.Unlock()

	cfgs := make([]model.HookConfig, 0, len(d.hooks))
	for _, e := range d.hooks {
		cfgs = append(cfgs, e.cfg)
	}
	return cfgs
}

// entries returns a snapshot of the registered hooks.
func (d *Dispatcher) entries() []hookEntry {
	d.mu.Lock()
	defer d.mu.Unlock()

	hooks := make([]hookEntry, len(d.hooks))
	copy(hooks, d.hooks)
	return hooks
}

// entry finds one registered hook by id.
func (d *Dispatcher) entry(hookID string) (hookEntry, error) {
	for _, e := range d.entries() {
		if e.cfg.ID == hookID {
			return e, nil
		}
	}
	return hookEntry{}, fmt.Errorf("no hook registered with id %q", hookID)
}

// Verify runs the settings probe for a single hook.
func (d *Dispatcher) Verify(ctx context.Context, hookID string) (VerifyResult, error) {
	e, err := d.entry(hookID)
	if err != nil {
		return VerifyResult{}, err
	}
	return d.verifyEntry(ctx, e), nil
}

// VerifyAll runs the settings probe for every registered hook.
func (d *Dispatcher) VerifyAll(ctx context.Context) []VerifyResult {
	entries := d.entries()
	results := make([]VerifyResult, 0, len(entries))
	for _, e := range entries {
		results = append(results, d.verifyEntry(ctx, e))
	}
	return results
}

func (d *Dispatcher) verifyEntry(ctx context.Context, e hookEntry) VerifyResult {
	callCtx, cancel := context.WithTimeout(ctx, deliveryTimeout)
	defer cancel()

	ok, msg := e.adp.Verify(callCtx)
	return VerifyResult{
		HookID:   e.cfg.ID,
		HookType: e.adp.Type(),
		OK:       ok,
		Message:  msg,
	}
}

// ImpactChange delivers a new-crash event to every registered hook.
// Deliveries are independent: one hook failing does not stop the rest.
// Every attempt is recorded in the delivery log.
func (d *Dispatcher) ImpactChange(ctx context.Context, payload *model.CrashPayload) []Result {
	entries := d.entries()
	results := make([]Result, 0, len(entries))

	for _, e := range entries {
		callCtx, cancel := context.WithTimeout(ctx, deliveryTimeout)
		res, err := e.adp.NotifyImpactChange(callCtx, payload)
		cancel()

		d.record(ctx, e, model.EventIssueImpact, payload.Title, resourceJSON(res), err)
		results = append(results, Result{
			HookID:   e.cfg.ID,
			HookType: e.adp.Type(),
			Resource: res,
			Err:      err,
		})
	}

	return results
}

// ResolutionChange delivers a resolution-change event to every hook
// that reconciles remote records. The remote identifiers come from the
// hook's most recent successful impact-change delivery.
func (d *Dispatcher) ResolutionChange(ctx context.Context, payload *model.CrashPayload) []ResolutionResult {
	var results []ResolutionResult

	for _, e := range d.entries() {
		syncer, ok := e.adp.(adapter.ResolutionSyncer)
		if !ok {
			continue
		}

		res, err := d.storedResource(ctx, e.cfg.ID)
		if err == nil && len(res) == 0 {
			err = fmt.Errorf("hook %s has no recorded remote issue", e.cfg.ID)
		}

		var issue map[string]interface{}
		if err == nil {
			callCtx, cancel := context.WithTimeout(ctx, deliveryTimeout)
			issue, err = syncer.SyncResolution(callCtx, res, payload)
			cancel()
		}

		d.record(ctx, e, model.EventIssueResolution, payload.Title, "", err)
		results = append(results, ResolutionResult{
			HookID:   e.cfg.ID,
			HookType: e.adp.Type(),
			Issue:    issue,
			Changed:  issue != nil,
			Err:      err,
		})
	}

	return results
}

// IntegrationRequest looks up the remote record previously created by
// one hook, returning false when the hook cannot answer or the lookup
// fails.
func (d *Dispatcher) IntegrationRequest(ctx context.Context, hookID string) (map[string]interface{}, bool) {
	e, err := d.entry(hookID)
	if err != nil {
		return nil, false
	}

	detailer, ok := e.adp.(adapter.IssueDetailer)
	if !ok {
		return nil, false
	}

	res, err := d.storedResource(ctx, hookID)
	if err != nil || len(res) == 0 {
		return nil, false
	}

	callCtx, cancel := context.WithTimeout(ctx, deliveryTimeout)
	defer cancel()
	return detailer.IssueDetails(callCtx, res)
}

// storedResource loads and decodes the hook's most recent resource.
func (d *Dispatcher) storedResource(ctx context.Context, hookID string) (adapter.Resource, error) {
	raw, err := d.store.LatestResource(ctx, hookID)
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, nil
	}

	var res adapter.Resource
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return nil, fmt.Errorf("decoding stored resource for hook %s: %w", hookID, err)
	}
	return res, nil
}

// record writes one delivery attempt to the store. Log failures do not
// fail the delivery.
func (d *Dispatcher) record(ctx context.Context, e hookEntry, event, title, resource string, deliveryErr error) {
	delivery := model.Delivery{
		HookID:       e.cfg.ID,
		HookType:     e.adp.Type(),
		Event:        event,
		PayloadTitle: title,
		OK:           deliveryErr == nil,
		Resource:     resource,
		CreatedAt:    time.Now(),
	}
	if deliveryErr != nil {
		delivery.Error = deliveryErr.Error()
	}

	_ = d.store.CreateDelivery(ctx, delivery)
}

// resourceJSON encodes a resource map for storage; empty resources
// store as an empty string so LatestResource skips them.
func resourceJSON(res adapter.Resource) string {
	if len(res) == 0 {
		return ""
	}
	data, err := json.Marshal(res)
	if err != nil {
		return ""
	}
	return string(data)
}
