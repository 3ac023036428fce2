package store

import (
	"context"

	"github.com/crashfeed/relay/internal/model"
)

// DeliveryFilter controls filtering, sorting, and pagination for
// delivery log queries.
type DeliveryFilter struct {
	HookID   *string
	HookType *string
	Event    *string
	OK       *bool
	Limit    int
	Offset   int
}

// Store defines the persistence interface for the delivery log.
type Store interface {
	// CreateDelivery appends one delivery record.
	CreateDelivery(ctx context.Context, d model.Delivery) error

	// GetDeliveries retrieves deliveries matching the filter, newest
	// first.
	GetDeliveries(ctx context.Context, filter DeliveryFilter) ([]model.Delivery, error)

	// GetDeliveryByID retrieves a single delivery record.
	GetDeliveryByID(ctx context.Context, id string) (*model.Delivery, error)

	// LatestResource returns the resource JSON of the most recent
	// successful impact-change delivery for a hook, or empty when the
	// hook has never created a remote record.
	LatestResource(ctx context.Context, hookID string) (string, error)
}
