// Package webpush provides the production PushGateway implementation on top
// of the Web Push protocol (RFC 8030) with VAPID authentication.
package webpush

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	wp "github.com/SherClockHolmes/webpush-go"

	"github.com/coregx/pushrelay"
	"github.com/coregx/pushrelay/model"
	"github.com/coregx/pushrelay/retry"
)

// maxResponseBody bounds how much of the push service response is kept for
// the delivery ledger.
const maxResponseBody = 512

// Gateway delivers push messages via webpush-go: payload encryption with the
// subscription's p256dh/auth keys, VAPID-signed requests to the push service.
//
// Transient failures (network errors, HTTP 429 and 5xx) are retried with
// exponential backoff inside the caller's context deadline. HTTP 404 and 410
// are permanent: the gateway reports them as ErrEndpointGone without retrying.
type Gateway struct {
	httpClient *http.Client
	ttl        int
	strategy   retry.Strategy
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithHTTPClient sets the HTTP client used for push service requests.
// Tests point this at a local server.
func WithHTTPClient(client *http.Client) GatewayOption {
	return func(g *Gateway) {
		g.httpClient = client
	}
}

// WithTTL sets the push message TTL in seconds (how long the push service
// queues the message for an offline device).
func WithTTL(seconds int) GatewayOption {
	return func(g *Gateway) {
		g.ttl = seconds
	}
}

// WithRetryStrategy sets the backoff strategy for transient failures.
func WithRetryStrategy(strategy retry.Strategy) GatewayOption {
	return func(g *Gateway) {
		g.strategy = strategy
	}
}

// NewGateway creates a Gateway with a 30s HTTP client, a 24h TTL, and the
// default retry strategy, each overridable via options.
func NewGateway(opts ...GatewayOption) *Gateway {
	g := &Gateway{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		ttl:        86400,
		strategy:   retry.DefaultStrategy(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Deliver sends one encrypted push message to the subscription's endpoint.
func (g *Gateway) Deliver(ctx context.Context, sub model.Subscription, payload []byte, vapid model.VAPIDConfig) (*pushrelay.PushResult, error) {
	s := &wp.Subscription{
		Endpoint: sub.Endpoint,
		Keys: wp.Keys{
			P256dh: sub.P256dh,
			Auth:   sub.Auth,
		},
	}

	options := &wp.Options{
		HTTPClient:      g.httpClient,
		Subscriber:      vapid.Subject,
		VAPIDPublicKey:  vapid.PublicKey,
		VAPIDPrivateKey: vapid.PrivateKey,
		TTL:             g.ttl,
	}

	var lastResult *pushrelay.PushResult
	var lastErr error

	for attempt := 0; g.strategy.IsRetryable(attempt); attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, g.strategy.Delay(attempt)); err != nil {
				return lastResult, lastErr
			}
		}

		resp, err := wp.SendNotificationWithContext(ctx, payload, s, options)
		if err != nil {
			lastResult = nil
			lastErr = pushrelay.NewErrorWithCause(pushrelay.ErrCodeDelivery, "push request failed", err)
			if ctx.Err() != nil {
				return lastResult, lastErr
			}
			continue
		}

		result := &pushrelay.PushResult{
			StatusCode: resp.StatusCode,
			Body:       readBody(resp),
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return result, nil

		case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
			return result, pushrelay.NewErrorWithCause(pushrelay.ErrCodeEndpointGone,
				fmt.Sprintf("push service returned %d", resp.StatusCode), pushrelay.ErrEndpointGone)

		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			lastResult = result
			lastErr = pushrelay.NewError(pushrelay.ErrCodeDelivery,
				fmt.Sprintf("push service returned %d", resp.StatusCode))

		default:
			// Remaining 4xx codes (400, 401, 413, ...) indicate a bad request
			// or key mismatch that a retry cannot fix.
			return result, pushrelay.NewError(pushrelay.ErrCodeDelivery,
				fmt.Sprintf("push service rejected message with %d", resp.StatusCode))
		}
	}

	return lastResult, lastErr
}

func readBody(resp *http.Response) string {
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return ""
	}
	return string(body)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
