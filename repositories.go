package pushrelay

import (
	"context"

	"github.com/coregx/pushrelay/model"
)

// SubscriptionRepository defines the persistence interface for push
// subscriptions. The endpoint URL is the identity key.
//
// Implementations must be safe for concurrent use.
type SubscriptionRepository interface {
	// Load retrieves a subscription by ID.
	// Returns ErrNoData if not found.
	Load(ctx context.Context, id int64) (model.Subscription, error)

	// GetByEndpoint retrieves a subscription by its endpoint URL,
	// active or not. Returns ErrNoData if not found.
	GetByEndpoint(ctx context.Context, endpoint string) (model.Subscription, error)

	// Save creates a new subscription (if ID=0) or updates an existing one.
	// Returns the saved subscription with populated ID.
	Save(ctx context.Context, m model.Subscription) (model.Subscription, error)

	// Deactivate soft-deletes the subscription with the given endpoint.
	// Idempotent: unknown or already-inactive endpoints are not an error.
	Deactivate(ctx context.Context, endpoint string) error

	// FindActive retrieves all active subscriptions.
	// Returns ErrNoData if there are none.
	FindActive(ctx context.Context) ([]model.Subscription, error)

	// List retrieves every subscription, active and inactive.
	// Returns ErrNoData if the table is empty.
	List(ctx context.Context) ([]model.Subscription, error)
}

// NotificationRepository defines the persistence interface for notification
// records. Content is immutable after creation; only the aggregate counters
// are updated post-dispatch.
type NotificationRepository interface {
	// Load retrieves a notification by ID.
	// Returns ErrNoData if not found.
	Load(ctx context.Context, id int64) (model.Notification, error)

	// Save creates a new notification (if ID=0) or updates an existing one.
	// Returns the saved notification with populated ID.
	Save(ctx context.Context, m model.Notification) (model.Notification, error)

	// IncrementCounts adds the given deltas to a notification's aggregate
	// success/failure counters after a dispatch completes. Increments (rather
	// than overwrites) so that concurrent or resumed dispatches of one
	// notification accumulate correctly.
	IncrementCounts(ctx context.Context, id int64, sentDelta, failedDelta int) error
}

// DeliveryRepository defines the persistence interface for the delivery
// ledger: one row per (notification, subscription) pair.
type DeliveryRepository interface {
	// Load retrieves a ledger row by ID.
	// Returns ErrNoData if not found.
	Load(ctx context.Context, id int64) (model.Delivery, error)

	// Save updates an existing ledger row (terminal-state writes).
	Save(ctx context.Context, m *model.Delivery) (*model.Delivery, error)

	// CreateBatch inserts one pending ledger row per subscription ID for the
	// given notification, atomically: either every row is created or none
	// are. A half-created fan-out must never become visible to a dispatcher
	// read.
	CreateBatch(ctx context.Context, notificationID int64, subscriptionIDs []int64) (int, error)

	// FindPendingByNotification retrieves all pending rows for a
	// notification, ordered by created_at ASC. Returns ErrNoData if none.
	FindPendingByNotification(ctx context.Context, notificationID int64) ([]model.Delivery, error)

	// FindByNotification retrieves all ledger rows for a notification.
	// Returns ErrNoData if none.
	FindByNotification(ctx context.Context, notificationID int64) ([]model.Delivery, error)

	// Claim atomically takes ownership of a pending row prior to a delivery
	// attempt by stamping its claimed_at marker; the row stays pending until
	// the attempt's terminal write. Returns false if the row was already
	// claimed or terminal, so concurrent dispatches never double-deliver.
	Claim(ctx context.Context, id int64) (bool, error)
}

// VAPIDConfigRepository defines the persistence interface for the single-row
// VAPID key configuration the dispatcher authenticates with.
type VAPIDConfigRepository interface {
	// Load retrieves the VAPID configuration.
	// Returns ErrNoData if none has been stored.
	Load(ctx context.Context) (model.VAPIDConfig, error)

	// Save stores the VAPID configuration.
	Save(ctx context.Context, m model.VAPIDConfig) (model.VAPIDConfig, error)
}
