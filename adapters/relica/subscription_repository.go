package relica

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/coregx/pushrelay"
	"github.com/coregx/pushrelay/model"
	"github.com/coregx/relica"
)

// SubscriptionRepository implements pushrelay.SubscriptionRepository using Relica.
type SubscriptionRepository struct {
	db          *relica.DB
	tablePrefix string
}

// NewSubscriptionRepository creates a new SubscriptionRepository with default table prefix.
func NewSubscriptionRepository(sqlDB *sql.DB, driverName string) *SubscriptionRepository {
	return &SubscriptionRepository{db: relica.WrapDB(sqlDB, driverName), tablePrefix: "push_"}
}

// NewSubscriptionRepositoryWithPrefix creates a new SubscriptionRepository with custom table prefix.
func NewSubscriptionRepositoryWithPrefix(sqlDB *sql.DB, driverName, prefix string) *SubscriptionRepository {
	return &SubscriptionRepository{db: relica.WrapDB(sqlDB, driverName), tablePrefix: prefix}
}

func (r *SubscriptionRepository) tableName() string {
	return r.tablePrefix + "subscription"
}

// Load retrieves a subscription by ID.
func (r *SubscriptionRepository) Load(ctx context.Context, id int64) (model.Subscription, error) {
	var sub model.Subscription
	err := r.db.WithContext(ctx).Select("*").From(r.tableName()).Where("id = ?", id).One(&sub)
	if errors.Is(err, sql.ErrNoRows) {
		return sub, pushrelay.ErrNoData
	}
	if err != nil {
		return sub, pushrelay.NewErrorWithCause(pushrelay.ErrCodeDatabase, "failed to load subscription", err)
	}
	return sub, nil
}

// GetByEndpoint retrieves a subscription by its endpoint URL, active or not.
func (r *SubscriptionRepository) GetByEndpoint(ctx context.Context, endpoint string) (model.Subscription, error) {
	var sub model.Subscription
	err := r.db.WithContext(ctx).Select("*").From(r.tableName()).Where("endpoint = ?", endpoint).One(&sub)
	if errors.Is(err, sql.ErrNoRows) {
		return sub, pushrelay.ErrNoData
	}
	if err != nil {
		return sub, pushrelay.NewErrorWithCause(pushrelay.ErrCodeDatabase, "failed to load subscription by endpoint", err)
	}
	return sub, nil
}

// Save creates or updates a subscription.
func (r *SubscriptionRepository) Save(ctx context.Context, m model.Subscription) (model.Subscription, error) {
	if m.ID == 0 {
		// Insert new subscription using Model() API
		err := r.db.WithContext(ctx).Model(&m).Table(r.tableName()).Insert()
		if err != nil {
			return m, pushrelay.NewErrorWithCause(pushrelay.ErrCodeDatabase, "failed to insert subscription", err)
		}
		// m.ID is auto-populated by Model().Insert()
		return m, nil
	}

	// Update existing subscription
	err := r.db.WithContext(ctx).Model(&m).Table(r.tableName()).Update()
	if err != nil {
		return m, pushrelay.NewErrorWithCause(pushrelay.ErrCodeDatabase, "failed to update subscription", err)
	}
	return m, nil
}

// Deactivate soft-deletes the subscription with the given endpoint.
// Unknown or already-inactive endpoints are not an error.
func (r *SubscriptionRepository) Deactivate(ctx context.Context, endpoint string) error {
	_, err := r.db.WithContext(ctx).Update(r.tableName()).
		Set(map[string]interface{}{
			"is_active":  false,
			"deleted_at": time.Now(),
		}).
		Where("endpoint = ?", endpoint).
		WithContext(ctx).
		Execute()

	if err != nil {
		return pushrelay.NewErrorWithCause(pushrelay.ErrCodeDatabase, "failed to deactivate subscription", err)
	}

	return nil
}

// FindActive retrieves all active subscriptions.
func (r *SubscriptionRepository) FindActive(ctx context.Context) ([]model.Subscription, error) {
	var subs []model.Subscription
	err := r.db.WithContext(ctx).Select("*").
		From(r.tableName()).
		Where("is_active = ?", true).
		OrderBy("id ASC").
		WithContext(ctx).
		All(&subs)
	if err != nil {
		return nil, pushrelay.NewErrorWithCause(pushrelay.ErrCodeDatabase, "failed to find active subscriptions", err)
	}
	if len(subs) == 0 {
		return nil, pushrelay.ErrNoData
	}
	return subs, nil
}

// List retrieves every subscription, active and inactive.
func (r *SubscriptionRepository) List(ctx context.Context) ([]model.Subscription, error) {
	var subs []model.Subscription
	err := r.db.WithContext(ctx).Select("*").
		From(r.tableName()).
		OrderBy("id ASC").
		WithContext(ctx).
		All(&subs)
	if err != nil {
		return nil, pushrelay.NewErrorWithCause(pushrelay.ErrCodeDatabase, "failed to list subscriptions", err)
	}
	if len(subs) == 0 {
		return nil, pushrelay.ErrNoData
	}
	return subs, nil
}
