package pushrelay

import (
	"context"

	"github.com/coregx/pushrelay/model"
)

// PushResult carries the push service's response for one delivery attempt.
// Body is truncated by gateway implementations to a bounded size before it is
// recorded on the ledger row.
type PushResult struct {
	StatusCode int
	Body       string
}

// PushGateway defines the interface for delivering an encrypted payload to a
// subscriber's push endpoint. This keeps the dispatcher independent of the
// Web Push transport so tests can substitute a fake.
//
// Implementations must:
//   - encrypt the payload with the subscription's p256dh/auth keys and
//     authenticate with the supplied VAPID configuration,
//   - return an error wrapping ErrEndpointGone when the push service reports
//     the endpoint as permanently expired or unregistered (HTTP 404/410),
//   - return any other error for transient failures (network error, timeout,
//     temporary service error),
//   - honor ctx cancellation and deadlines.
//
// A non-nil PushResult may accompany an error so the caller can record the
// service's response.
type PushGateway interface {
	// Deliver sends one encrypted push message to the subscription's endpoint.
	Deliver(ctx context.Context, sub model.Subscription, payload []byte, vapid model.VAPIDConfig) (*PushResult, error)
}
