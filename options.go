package pushrelay

import (
	"fmt"
	"time"
)

// Option is a function that configures a Dispatcher.
// Used with the Options Pattern for flexible service construction.
//
// Example:
//
//	dispatcher, err := pushrelay.NewDispatcher(
//	    pushrelay.WithDispatcherRepositories(deliveryRepo, notificationRepo, subscriptionRepo, vapidRepo),
//	    pushrelay.WithGateway(gateway),
//	    pushrelay.WithDispatcherLogger(logger),
//	    pushrelay.WithConcurrency(16), // optional
//	)
type Option func(*Dispatcher) error

// WithDispatcherRepositories sets the required repository dependencies for
// the dispatcher. All four repositories are required and must not be nil.
//
// This is a required option for NewDispatcher.
//
// Parameters:
//   - deliveryRepo: Delivery ledger persistence
//   - notificationRepo: Notification persistence
//   - subscriptionRepo: Subscription persistence (endpoint keys and deactivation)
//   - vapidRepo: VAPID key configuration
func WithDispatcherRepositories(
	deliveryRepo DeliveryRepository,
	notificationRepo NotificationRepository,
	subscriptionRepo SubscriptionRepository,
	vapidRepo VAPIDConfigRepository,
) Option {
	return func(d *Dispatcher) error {
		if deliveryRepo == nil {
			return fmt.Errorf("deliveryRepo cannot be nil")
		}
		if notificationRepo == nil {
			return fmt.Errorf("notificationRepo cannot be nil")
		}
		if subscriptionRepo == nil {
			return fmt.Errorf("subscriptionRepo cannot be nil")
		}
		if vapidRepo == nil {
			return fmt.Errorf("vapidRepo cannot be nil")
		}

		d.dr = deliveryRepo
		d.nr = notificationRepo
		d.sr = subscriptionRepo
		d.vr = vapidRepo
		return nil
	}
}

// WithGateway sets the push delivery gateway.
// The gateway handles Web Push encryption, VAPID authentication, and transport.
//
// This is a required option for NewDispatcher.
func WithGateway(gateway PushGateway) Option {
	return func(d *Dispatcher) error {
		if gateway == nil {
			return fmt.Errorf("gateway cannot be nil")
		}
		d.gateway = gateway
		return nil
	}
}

// WithDispatcherLogger sets the logger instance for the dispatcher.
// Logger is required and must not be nil.
//
// This is a required option for NewDispatcher.
//
// Use NoopLogger for silent operation or implement Logger interface
// to integrate with your logging system (zap, logrus, etc.).
func WithDispatcherLogger(logger Logger) Option {
	return func(d *Dispatcher) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		d.logger = logger
		return nil
	}
}

// WithConcurrency bounds the number of in-flight delivery attempts per batch.
// This is an optional configuration - default is 8.
//
// Must be > 0. Higher values increase throughput against the push service;
// keep it modest to respect push-service rate limits.
func WithConcurrency(n int) Option {
	return func(d *Dispatcher) error {
		if n <= 0 {
			return fmt.Errorf("concurrency must be > 0, got %d", n)
		}
		d.concurrency = n
		return nil
	}
}

// WithAttemptTimeout bounds each individual delivery attempt.
// This is an optional configuration - default is 30 seconds.
//
// A timed-out attempt is a terminal failure for that ledger row, so a slow or
// hanging endpoint never leaves the batch without a determinate end state.
func WithAttemptTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) error {
		if timeout <= 0 {
			return fmt.Errorf("attempt timeout must be > 0, got %v", timeout)
		}
		d.attemptTimeout = timeout
		return nil
	}
}

// WithHooks sets optional delivery event hooks for the dispatcher.
// This is an optional configuration - default is NoOpDeliveryHooks.
//
// Hooks receive callbacks for per-recipient failures, endpoint-gone
// deactivations, and completed dispatches. Use this to integrate with
// alerting or metrics systems.
func WithHooks(hooks DeliveryHooks) Option {
	return func(d *Dispatcher) error {
		if hooks == nil {
			return fmt.Errorf("hooks cannot be nil")
		}
		d.hooks = hooks
		return nil
	}
}
