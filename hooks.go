package pushrelay

import (
	"context"

	"github.com/coregx/pushrelay/model"
)

// DeliveryHooks defines an optional interface for observing delivery pipeline
// events (failures, deactivations, completed dispatches).
//
// Implementations might send alerts, export metrics, or log to monitoring
// systems. Hook errors are logged by the dispatcher and never affect
// delivery outcomes.
type DeliveryHooks interface {
	// OnDeliveryFailure is called when one recipient's push attempt fails.
	// This is informational; the row has already been marked failed.
	OnDeliveryFailure(ctx context.Context, delivery *model.Delivery, err error) error

	// OnSubscriptionDeactivated is called when the dispatcher deactivates a
	// subscription because its endpoint was reported gone.
	OnSubscriptionDeactivated(ctx context.Context, sub model.Subscription) error

	// OnDispatchCompleted is called once per dispatch after every pending row
	// reached a terminal state.
	OnDispatchCompleted(ctx context.Context, notificationID int64, result DispatchResult) error
}

// NoOpDeliveryHooks is a no-op implementation of DeliveryHooks.
// Use this when event hooks are not needed.
type NoOpDeliveryHooks struct{}

// OnDeliveryFailure does nothing.
func (n *NoOpDeliveryHooks) OnDeliveryFailure(_ context.Context, _ *model.Delivery, _ error) error {
	return nil
}

// OnSubscriptionDeactivated does nothing.
func (n *NoOpDeliveryHooks) OnSubscriptionDeactivated(_ context.Context, _ model.Subscription) error {
	return nil
}

// OnDispatchCompleted does nothing.
func (n *NoOpDeliveryHooks) OnDispatchCompleted(_ context.Context, _ int64, _ DispatchResult) error {
	return nil
}

// LoggingDeliveryHooks is a simple implementation that logs pipeline events.
type LoggingDeliveryHooks struct {
	logger Logger
}

// NewLoggingDeliveryHooks creates a new LoggingDeliveryHooks.
func NewLoggingDeliveryHooks(logger Logger) *LoggingDeliveryHooks {
	return &LoggingDeliveryHooks{logger: logger}
}

// OnDeliveryFailure logs a failed recipient delivery.
func (n *LoggingDeliveryHooks) OnDeliveryFailure(_ context.Context, delivery *model.Delivery, err error) error {
	n.logger.Warnf("Delivery failed: delivery_id=%d, notification_id=%d, subscription_id=%d, error=%v",
		delivery.ID, delivery.NotificationID, delivery.SubscriptionID, err)
	return nil
}

// OnSubscriptionDeactivated logs an endpoint-gone deactivation.
func (n *LoggingDeliveryHooks) OnSubscriptionDeactivated(_ context.Context, sub model.Subscription) error {
	n.logger.Warnf("Subscription deactivated (endpoint gone): id=%d", sub.ID)
	return nil
}

// OnDispatchCompleted logs the batch outcome.
func (n *LoggingDeliveryHooks) OnDispatchCompleted(_ context.Context, notificationID int64, result DispatchResult) error {
	n.logger.Infof("Dispatch completed: notification_id=%d, sent=%d, failed=%d",
		notificationID, result.Sent, result.Failed)
	return nil
}
