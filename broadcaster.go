package pushrelay

import (
	"context"
	"fmt"

	"github.com/coregx/pushrelay/model"
)

// Broadcaster composes the two phases of a send: create-and-fan-out
// (all-or-nothing) followed by dispatch (best-effort per recipient).
// It is the only caller-facing "send notification" operation.
type Broadcaster struct {
	notificationRepo NotificationRepository
	deliveryRepo     DeliveryRepository
	store            *SubscriptionStore
	dispatcher       *Dispatcher
	logger           Logger
}

// BroadcasterOption configures a Broadcaster.
type BroadcasterOption func(*Broadcaster) error

// NewBroadcaster creates a new Broadcaster with the provided options.
//
// Required options:
//   - WithBroadcasterRepositories: notification and delivery repositories
//   - WithBroadcasterStore: subscription store (recipient selection)
//   - WithBroadcasterDispatcher: dispatcher (delivery phase)
//   - WithBroadcasterLogger: logger instance
func NewBroadcaster(opts ...BroadcasterOption) (*Broadcaster, error) {
	b := &Broadcaster{}

	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, NewErrorWithCause(ErrCodeConfiguration, "failed to apply broadcaster option", err)
		}
	}

	if b.notificationRepo == nil {
		return nil, NewError(ErrCodeConfiguration, "NotificationRepository is required (use WithBroadcasterRepositories)")
	}
	if b.deliveryRepo == nil {
		return nil, NewError(ErrCodeConfiguration, "DeliveryRepository is required (use WithBroadcasterRepositories)")
	}
	if b.store == nil {
		return nil, NewError(ErrCodeConfiguration, "SubscriptionStore is required (use WithBroadcasterStore)")
	}
	if b.dispatcher == nil {
		return nil, NewError(ErrCodeConfiguration, "Dispatcher is required (use WithBroadcasterDispatcher)")
	}
	if b.logger == nil {
		return nil, NewError(ErrCodeConfiguration, "Logger is required (use WithBroadcasterLogger)")
	}

	return b, nil
}

// WithBroadcasterRepositories sets the required repository dependencies.
func WithBroadcasterRepositories(
	notificationRepo NotificationRepository,
	deliveryRepo DeliveryRepository,
) BroadcasterOption {
	return func(b *Broadcaster) error {
		if notificationRepo == nil {
			return fmt.Errorf("notificationRepo cannot be nil")
		}
		if deliveryRepo == nil {
			return fmt.Errorf("deliveryRepo cannot be nil")
		}
		b.notificationRepo = notificationRepo
		b.deliveryRepo = deliveryRepo
		return nil
	}
}

// WithBroadcasterStore sets the subscription store used for recipient selection.
func WithBroadcasterStore(store *SubscriptionStore) BroadcasterOption {
	return func(b *Broadcaster) error {
		if store == nil {
			return fmt.Errorf("store cannot be nil")
		}
		b.store = store
		return nil
	}
}

// WithBroadcasterDispatcher sets the dispatcher for the delivery phase.
func WithBroadcasterDispatcher(dispatcher *Dispatcher) BroadcasterOption {
	return func(b *Broadcaster) error {
		if dispatcher == nil {
			return fmt.Errorf("dispatcher cannot be nil")
		}
		b.dispatcher = dispatcher
		return nil
	}
}

// WithBroadcasterLogger sets the logger instance.
func WithBroadcasterLogger(logger Logger) BroadcasterOption {
	return func(b *Broadcaster) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		b.logger = logger
		return nil
	}
}

// FanOutResult represents the outcome of the create-and-fan-out phase.
type FanOutResult struct {
	// NotificationID is the created notification's identifier.
	NotificationID int64 `json:"notificationId"`

	// Recipients is the number of pending ledger rows created, i.e. the
	// recipient count before dispatch.
	Recipients int `json:"totalRecipients"`
}

// BroadcastResult represents the outcome of a full broadcast.
// TotalRecipients equals Sent + Failed once dispatch has completed.
type BroadcastResult struct {
	NotificationID  int64 `json:"notificationId"`
	TotalRecipients int   `json:"totalRecipients"`
	Sent            int   `json:"sent"`
	Failed          int   `json:"failed"`
}

// CreateAndFanOut validates the request, creates the notification record, and
// creates one pending ledger row per eligible subscription (active AND
// category-opted-in; generalUpdates matches all active subscriptions).
//
// Fan-out is all-or-nothing: the ledger batch is inserted atomically, so a
// failure leaves the notification with zero ledger rows, never a partial set.
// The rows are durably visible before this method returns, which is what lets
// dispatch read them afterwards.
func (b *Broadcaster) CreateAndFanOut(ctx context.Context, req SendRequest) (*FanOutResult, error) {
	if err := req.Validate(); err != nil {
		return nil, NewErrorWithCause(ErrCodeValidation, "invalid send request", err)
	}

	subscriptions, err := b.store.ActiveSubscriptionsForCategory(ctx, req.Category)
	if err != nil {
		return nil, err
	}

	notification := model.NewNotification(req.Title, req.Body, req.Category,
		req.Icon, req.Badge, req.Image, req.Payload())
	notification, err = b.notificationRepo.Save(ctx, notification)
	if err != nil {
		return nil, NewErrorWithCause(ErrCodeDatabase, "failed to save notification", err)
	}

	b.logger.Infof("Notification created: id=%d, category=%s", notification.ID, req.Category)

	if len(subscriptions) == 0 {
		b.logger.Warnf("No eligible subscriptions for category=%s", req.Category)
		return &FanOutResult{NotificationID: notification.ID, Recipients: 0}, nil
	}

	subscriptionIDs := make([]int64, 0, len(subscriptions))
	for _, sub := range subscriptions {
		subscriptionIDs = append(subscriptionIDs, sub.ID)
	}

	created, err := b.deliveryRepo.CreateBatch(ctx, notification.ID, subscriptionIDs)
	if err != nil {
		return nil, NewErrorWithCause(ErrCodeDatabase, "failed to create delivery ledger", err)
	}

	b.logger.Infof("Fanned out notification %d to %d recipients (category=%s)",
		notification.ID, created, req.Category)

	return &FanOutResult{NotificationID: notification.ID, Recipients: created}, nil
}

// Broadcast creates a notification, fans it out, dispatches it, and returns
// the aggregate counts. Fan-out failures abort the whole send; per-recipient
// dispatch failures are reflected in the Failed count only.
func (b *Broadcaster) Broadcast(ctx context.Context, req SendRequest) (*BroadcastResult, error) {
	fanOut, err := b.CreateAndFanOut(ctx, req)
	if err != nil {
		return nil, err
	}

	dispatched, err := b.dispatcher.Dispatch(ctx, fanOut.NotificationID)
	if err != nil {
		return nil, err
	}

	return &BroadcastResult{
		NotificationID:  fanOut.NotificationID,
		TotalRecipients: fanOut.Recipients,
		Sent:            dispatched.Sent,
		Failed:          dispatched.Failed,
	}, nil
}

// SendTest dispatches a canned notification to a single endpoint, bypassing
// category preference filtering but requiring an active subscription.
//
// Returns a NOT_FOUND error when the endpoint is unknown or inactive; a test
// send is never a silent no-op.
func (b *Broadcaster) SendTest(ctx context.Context, endpoint string) (*BroadcastResult, error) {
	if endpoint == "" {
		return nil, NewError(ErrCodeValidation, "endpoint is required")
	}

	sub, err := b.store.subscriptionRepo.GetByEndpoint(ctx, endpoint)
	if err != nil {
		if IsNoData(err) {
			return nil, NewErrorWithCause(ErrCodeNotFound, "no subscription for endpoint", err)
		}
		return nil, NewErrorWithCause(ErrCodeDatabase, "failed to load subscription", err)
	}
	if !sub.IsActive {
		return nil, NewError(ErrCodeNotFound, "subscription is inactive")
	}

	notification := model.NewNotification(
		"Test notification",
		"Push notifications are working on this device.",
		model.CategoryGeneralUpdates,
		"", "", "",
		model.Payload{URL: "/"},
	)
	notification, err = b.notificationRepo.Save(ctx, notification)
	if err != nil {
		return nil, NewErrorWithCause(ErrCodeDatabase, "failed to save test notification", err)
	}

	if _, err := b.deliveryRepo.CreateBatch(ctx, notification.ID, []int64{sub.ID}); err != nil {
		return nil, NewErrorWithCause(ErrCodeDatabase, "failed to create test delivery", err)
	}

	dispatched, err := b.dispatcher.Dispatch(ctx, notification.ID)
	if err != nil {
		return nil, err
	}

	return &BroadcastResult{
		NotificationID:  notification.ID,
		TotalRecipients: 1,
		Sent:            dispatched.Sent,
		Failed:          dispatched.Failed,
	}, nil
}
