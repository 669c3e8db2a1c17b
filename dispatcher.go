package pushrelay

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/coregx/pushrelay/model"
)

// DispatchResult holds the aggregate outcome of one dispatch batch.
type DispatchResult struct {
	// Sent is the number of recipients whose push message was accepted by
	// the push service.
	Sent int `json:"sent"`

	// Failed is the number of recipients whose delivery attempt failed.
	Failed int `json:"failed"`
}

// Dispatcher delivers a notification's payload to every pending delivery
// ledger row, via the Web Push protocol, and records the outcome per row.
//
// It runs as a request-scoped invocation, not a background worker: one call
// processes the notification's fixed set of pending rows to completion.
// Recipients are processed independently with bounded concurrency; a failure
// on one recipient never aborts the others, and every row reaches a terminal
// state (a timed-out attempt is a failure, not a leftover pending row).
//
// Permanent failures (the push service reports the endpoint gone) additionally
// deactivate the subscription so future fan-outs skip it.
//
// Thread safety: Safe for concurrent use. Concurrent dispatches of the same
// notification are serialized per row by the repository's conditional claim.
type Dispatcher struct {
	dr             DeliveryRepository
	nr             NotificationRepository
	sr             SubscriptionRepository
	vr             VAPIDConfigRepository
	gateway        PushGateway
	hooks          DeliveryHooks
	logger         Logger
	concurrency    int
	attemptTimeout time.Duration
}

// NewDispatcher creates a new dispatcher with the provided options.
//
// Required options:
//   - WithDispatcherRepositories: delivery, notification, subscription, and
//     VAPID config repositories
//   - WithGateway: push delivery gateway
//   - WithDispatcherLogger: logger instance
//
// Optional options:
//   - WithConcurrency: bounded parallelism per batch (default: 8)
//   - WithAttemptTimeout: per-recipient delivery timeout (default: 30s)
//   - WithHooks: delivery event hooks (default: no-op)
func NewDispatcher(opts ...Option) (*Dispatcher, error) {
	d := &Dispatcher{
		hooks:          &NoOpDeliveryHooks{},
		concurrency:    8,
		attemptTimeout: 30 * time.Second,
	}

	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, NewErrorWithCause(ErrCodeConfiguration, "failed to apply option", err)
		}
	}

	if d.dr == nil {
		return nil, NewError(ErrCodeConfiguration, "DeliveryRepository is required (use WithDispatcherRepositories)")
	}
	if d.nr == nil {
		return nil, NewError(ErrCodeConfiguration, "NotificationRepository is required (use WithDispatcherRepositories)")
	}
	if d.sr == nil {
		return nil, NewError(ErrCodeConfiguration, "SubscriptionRepository is required (use WithDispatcherRepositories)")
	}
	if d.vr == nil {
		return nil, NewError(ErrCodeConfiguration, "VAPIDConfigRepository is required (use WithDispatcherRepositories)")
	}
	if d.gateway == nil {
		return nil, NewError(ErrCodeConfiguration, "PushGateway is required (use WithGateway)")
	}
	if d.logger == nil {
		return nil, NewError(ErrCodeConfiguration, "Logger is required (use WithDispatcherLogger)")
	}

	return d, nil
}

// Dispatch delivers a notification to every pending ledger row and writes the
// aggregate success/failure counts back onto the notification record.
//
// Zero pending rows is not an error: the result is {0, 0}.
func (d *Dispatcher) Dispatch(ctx context.Context, notificationID int64) (DispatchResult, error) {
	notification, err := d.nr.Load(ctx, notificationID)
	if err != nil {
		if IsNoData(err) {
			return DispatchResult{}, NewErrorWithCause(ErrCodeNotFound, fmt.Sprintf("notification not found: %d", notificationID), err)
		}
		return DispatchResult{}, NewErrorWithCause(ErrCodeDatabase, "failed to load notification", err)
	}

	rows, err := d.dr.FindPendingByNotification(ctx, notificationID)
	if err != nil {
		if IsNoData(err) {
			return DispatchResult{}, nil
		}
		return DispatchResult{}, NewErrorWithCause(ErrCodeDatabase, "failed to load pending deliveries", err)
	}

	// One VAPID load per batch, not per recipient.
	vapid, err := d.vr.Load(ctx)
	if err != nil {
		return DispatchResult{}, NewErrorWithCause(ErrCodeConfiguration, "failed to load VAPID configuration", err)
	}
	if !vapid.IsComplete() {
		return DispatchResult{}, NewError(ErrCodeConfiguration, "VAPID configuration is incomplete")
	}

	payload, err := json.Marshal(notification.WebPayload())
	if err != nil {
		return DispatchResult{}, NewErrorWithCause(ErrCodeDelivery, "failed to encode push payload", err)
	}

	var mu sync.Mutex
	var result DispatchResult

	g := new(errgroup.Group)
	g.SetLimit(d.concurrency)

	for i := range rows {
		row := rows[i]
		g.Go(func() error {
			// Recipient failures are recorded on the row, never propagated:
			// one dead endpoint must not abort the batch.
			outcome := d.deliverOne(ctx, &row, payload, vapid)
			mu.Lock()
			switch outcome {
			case outcomeSent:
				result.Sent++
			case outcomeFailed:
				result.Failed++
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if err := d.nr.IncrementCounts(ctx, notificationID, result.Sent, result.Failed); err != nil {
		d.logger.Errorf("Failed to update counts for notification %d: %v", notificationID, err)
	}

	if err := d.hooks.OnDispatchCompleted(ctx, notificationID, result); err != nil {
		d.logger.Warnf("Dispatch-completed hook failed: %v", err)
	}

	d.logger.Infof("Dispatched notification %d: recipients=%d, sent=%d, failed=%d",
		notificationID, len(rows), result.Sent, result.Failed)

	return result, nil
}

type deliveryOutcome int

const (
	outcomeSkipped deliveryOutcome = iota
	outcomeSent
	outcomeFailed
)

// deliverOne processes a single ledger row: claim, send, record terminal state.
func (d *Dispatcher) deliverOne(ctx context.Context, row *model.Delivery, payload []byte, vapid model.VAPIDConfig) deliveryOutcome {
	claimed, err := d.dr.Claim(ctx, row.ID)
	if err != nil {
		d.logger.Errorf("Failed to claim delivery %d: %v", row.ID, err)
		return outcomeSkipped
	}
	if !claimed {
		// Another dispatch owns this row; it will account for it.
		d.logger.Debugf("Delivery %d already claimed, skipping", row.ID)
		return outcomeSkipped
	}
	row.MarkClaimed()

	// A subscription deactivated between fan-out and dispatch is still
	// attempted: its ledger row exists, and the push service failing it is
	// the normal resolution.
	sub, err := d.sr.Load(ctx, row.SubscriptionID)
	if err != nil {
		d.recordFailure(ctx, row, fmt.Errorf("failed to load subscription: %w", err), "")
		return outcomeFailed
	}

	attemptCtx, cancel := context.WithTimeout(ctx, d.attemptTimeout)
	defer cancel()

	res, err := d.gateway.Deliver(attemptCtx, sub, payload, vapid)
	if err != nil {
		responseBody := ""
		if res != nil {
			responseBody = res.Body
		}
		d.recordFailure(ctx, row, err, responseBody)

		if IsEndpointGone(err) {
			d.deactivateGone(ctx, sub)
		}
		return outcomeFailed
	}

	responseBody := ""
	if res != nil {
		responseBody = res.Body
	}
	if err := row.MarkSent(responseBody); err != nil {
		d.logger.Errorf("Delivery %d: %v", row.ID, err)
		return outcomeSkipped
	}
	if _, err := d.dr.Save(ctx, row); err != nil {
		d.logger.Errorf("Failed to mark delivery %d as sent: %v", row.ID, err)
	}

	d.logger.Debugf("Delivered notification %d to subscription %d (delivery_id=%d)",
		row.NotificationID, row.SubscriptionID, row.ID)
	return outcomeSent
}

// recordFailure moves a claimed row to its terminal failed state.
func (d *Dispatcher) recordFailure(ctx context.Context, row *model.Delivery, deliveryErr error, responseData string) {
	if err := row.MarkFailed(deliveryErr, responseData); err != nil {
		d.logger.Errorf("Delivery %d: %v", row.ID, err)
		return
	}
	if _, err := d.dr.Save(ctx, row); err != nil {
		d.logger.Errorf("Failed to mark delivery %d as failed: %v", row.ID, err)
		return
	}

	if err := d.hooks.OnDeliveryFailure(ctx, row, deliveryErr); err != nil {
		d.logger.Warnf("Delivery-failure hook failed: %v", err)
	}
}

// deactivateGone soft-deletes a subscription whose endpoint the push service
// reported as permanently expired or unregistered.
func (d *Dispatcher) deactivateGone(ctx context.Context, sub model.Subscription) {
	if err := d.sr.Deactivate(ctx, sub.Endpoint); err != nil {
		d.logger.Errorf("Failed to deactivate gone subscription %d: %v", sub.ID, err)
		return
	}

	d.logger.Warnf("Deactivated subscription %d: endpoint gone", sub.ID)

	if err := d.hooks.OnSubscriptionDeactivated(ctx, sub); err != nil {
		d.logger.Warnf("Deactivation hook failed: %v", err)
	}
}
