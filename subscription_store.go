package pushrelay

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/coregx/pushrelay/model"
)

// SubscriptionStore handles the subscription lifecycle for the push pipeline.
// It owns Subscription rows exclusively: upserts keyed by endpoint,
// soft-delete deactivation, preference updates, and category queries used at
// fan-out time.
//
// Thread safety: Safe for concurrent use.
type SubscriptionStore struct {
	subscriptionRepo SubscriptionRepository
	logger           Logger
}

// StoreOption is a function that configures a SubscriptionStore.
type StoreOption func(*SubscriptionStore) error

// NewSubscriptionStore creates a new SubscriptionStore with the provided options.
//
// Required options:
//   - WithStoreRepository: subscription repository
//   - WithStoreLogger: logger instance
func NewSubscriptionStore(opts ...StoreOption) (*SubscriptionStore, error) {
	s := &SubscriptionStore{}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, NewErrorWithCause(ErrCodeConfiguration, "failed to apply store option", err)
		}
	}

	if s.subscriptionRepo == nil {
		return nil, NewError(ErrCodeConfiguration, "SubscriptionRepository is required (use WithStoreRepository)")
	}
	if s.logger == nil {
		return nil, NewError(ErrCodeConfiguration, "Logger is required (use WithStoreLogger)")
	}

	return s, nil
}

// WithStoreRepository sets the subscription repository dependency.
//
// This is a required option for NewSubscriptionStore.
func WithStoreRepository(repo SubscriptionRepository) StoreOption {
	return func(s *SubscriptionStore) error {
		if repo == nil {
			return fmt.Errorf("subscriptionRepo cannot be nil")
		}
		s.subscriptionRepo = repo
		return nil
	}
}

// WithStoreLogger sets the logger instance for the subscription store.
//
// This is a required option for NewSubscriptionStore.
func WithStoreLogger(logger Logger) StoreOption {
	return func(s *SubscriptionStore) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		s.logger = logger
		return nil
	}
}

// UpsertSubscription registers a push endpoint or refreshes an existing one.
// The endpoint is the identity key: on conflict the stored encryption keys
// and preferences are overwritten and the subscription is reactivated, so
// re-subscribing an inactive endpoint brings it back without a duplicate row.
//
// When the request carries no preferences, new subscriptions start with every
// category enabled and existing subscriptions keep their stored preferences.
func (s *SubscriptionStore) UpsertSubscription(ctx context.Context, req SubscribeRequest) (*model.Subscription, error) {
	if err := req.Validate(); err != nil {
		return nil, NewErrorWithCause(ErrCodeValidation, "invalid subscribe request", err)
	}

	existing, err := s.subscriptionRepo.GetByEndpoint(ctx, req.Endpoint)
	if err != nil && !IsNoData(err) {
		return nil, NewErrorWithCause(ErrCodeDatabase, "failed to look up subscription", err)
	}

	if err == nil {
		existing.P256dh = req.P256dh
		existing.Auth = req.Auth
		if req.Preferences != nil {
			existing.Preferences = *req.Preferences
		}
		existing.Reactivate()
		applyMetadata(&existing, req)

		existing, err = s.subscriptionRepo.Save(ctx, existing)
		if err != nil {
			return nil, NewErrorWithCause(ErrCodeDatabase, "failed to update subscription", err)
		}
		s.logger.Infof("Subscription refreshed: id=%d", existing.ID)
		return &existing, nil
	}

	prefs := model.DefaultPreferences()
	if req.Preferences != nil {
		prefs = *req.Preferences
	}

	subscription := model.NewSubscription(req.Endpoint, req.P256dh, req.Auth, prefs)
	applyMetadata(&subscription, req)

	subscription, err = s.subscriptionRepo.Save(ctx, subscription)
	if err != nil {
		return nil, NewErrorWithCause(ErrCodeDatabase, "failed to save subscription", err)
	}

	s.logger.Infof("Subscription created: id=%d", subscription.ID)

	return &subscription, nil
}

// Deactivate soft-deletes the subscription for an endpoint.
// Idempotent: unknown or already-inactive endpoints are not an error.
func (s *SubscriptionStore) Deactivate(ctx context.Context, endpoint string) error {
	if endpoint == "" {
		return NewError(ErrCodeValidation, "endpoint is required")
	}

	if err := s.subscriptionRepo.Deactivate(ctx, endpoint); err != nil {
		return NewErrorWithCause(ErrCodeDatabase, "failed to deactivate subscription", err)
	}

	s.logger.Infof("Subscription deactivated: endpoint=%s", truncate(endpoint, 64))
	return nil
}

// UpdatePreferences replaces the stored preference set for an active
// subscription. Fails with a NOT_FOUND error if no active subscription
// matches the endpoint.
func (s *SubscriptionStore) UpdatePreferences(ctx context.Context, endpoint string, prefs model.Preferences) error {
	if endpoint == "" {
		return NewError(ErrCodeValidation, "endpoint is required")
	}

	subscription, err := s.subscriptionRepo.GetByEndpoint(ctx, endpoint)
	if err != nil {
		if IsNoData(err) {
			return NewErrorWithCause(ErrCodeNotFound, "no subscription for endpoint", err)
		}
		return NewErrorWithCause(ErrCodeDatabase, "failed to load subscription", err)
	}
	if !subscription.IsActive {
		return NewError(ErrCodeNotFound, "subscription is inactive")
	}

	subscription.Preferences = prefs
	if _, err := s.subscriptionRepo.Save(ctx, subscription); err != nil {
		return NewErrorWithCause(ErrCodeDatabase, "failed to save preferences", err)
	}

	s.logger.Infof("Preferences updated: id=%d", subscription.ID)
	return nil
}

// ActiveSubscriptionsForCategory returns the active subscriptions eligible
// for a notification of the given category. CategoryGeneralUpdates matches
// every active subscription; other categories require an explicit opt-in.
//
// Returns an empty slice when no subscription matches (not an error).
func (s *SubscriptionStore) ActiveSubscriptionsForCategory(ctx context.Context, category model.Category) ([]model.Subscription, error) {
	if !category.Valid() {
		return nil, NewError(ErrCodeValidation, fmt.Sprintf("unknown category: %s", category))
	}

	subscriptions, err := s.subscriptionRepo.FindActive(ctx)
	if err != nil {
		if IsNoData(err) {
			return []model.Subscription{}, nil
		}
		return nil, NewErrorWithCause(ErrCodeDatabase, "failed to load active subscriptions", err)
	}

	matched := make([]model.Subscription, 0, len(subscriptions))
	for _, sub := range subscriptions {
		if sub.Preferences.Matches(category) {
			matched = append(matched, sub)
		}
	}
	return matched, nil
}

// Stats computes a read-only aggregate over the subscription table:
// total/active/inactive counts plus per-category enabled counts among active
// subscriptions. Used for admin visibility only.
func (s *SubscriptionStore) Stats(ctx context.Context) (model.SubscriptionStats, error) {
	stats := model.SubscriptionStats{
		PerCategory: make(map[model.Category]int, len(model.Categories())),
	}
	for _, c := range model.Categories() {
		stats.PerCategory[c] = 0
	}

	subscriptions, err := s.subscriptionRepo.List(ctx)
	if err != nil {
		if IsNoData(err) {
			return stats, nil
		}
		return stats, NewErrorWithCause(ErrCodeDatabase, "failed to list subscriptions", err)
	}

	for _, sub := range subscriptions {
		stats.Total++
		if !sub.IsActive {
			stats.Inactive++
			continue
		}
		stats.Active++
		for _, c := range model.Categories() {
			if sub.Preferences.Enabled(c) {
				stats.PerCategory[c]++
			}
		}
	}

	return stats, nil
}

func applyMetadata(sub *model.Subscription, req SubscribeRequest) {
	if req.UserAgent != "" {
		sub.UserAgent = sql.NullString{String: req.UserAgent, Valid: true}
	}
	if req.IPAddress != "" {
		sub.IPAddress = sql.NullString{String: req.IPAddress, Valid: true}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
