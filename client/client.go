// Package client implements the subscriber side of the push pipeline: it
// drives the browser's permission prompt and push registration through a
// Browser interface and speaks the server's HTTP API.
//
// The Browser abstraction exists because the registration flow (permission,
// service-worker push manager, local notifications) lives outside this
// process; callers bridge it to their runtime, and tests substitute a fake.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/coregx/pushrelay"
	"github.com/coregx/pushrelay/model"
)

// Registration is a browser-held push registration: the endpoint plus the
// client encryption keys the server needs to send to it.
type Registration struct {
	Endpoint string `json:"endpoint"`
	P256dh   string `json:"p256dh"`
	Auth     string `json:"auth"`
}

// Browser abstracts the browser-facing pieces of the subscribe flow.
type Browser interface {
	// RequestPermission prompts for notification permission.
	// Returns false when the user declines.
	RequestPermission(ctx context.Context) (bool, error)

	// ExistingRegistration returns the current push registration, or nil if
	// this origin holds none.
	ExistingRegistration(ctx context.Context) (*Registration, error)

	// Register creates a push registration against the server's public
	// VAPID key.
	Register(ctx context.Context, vapidPublicKey string) (*Registration, error)

	// Unregister cancels the current push registration. Idempotent.
	Unregister(ctx context.Context) error

	// ShowNotification displays a same-device local notification, bypassing
	// the push service.
	ShowNotification(ctx context.Context, title, body string) error
}

// Client talks to the push server on behalf of one browser.
//
// It keeps a local copy of the submitted subscription so preference reads
// are answered optimistically without a server round trip.
type Client struct {
	baseURL        string
	vapidPublicKey string
	httpClient     *http.Client
	browser        Browser
	logger         pushrelay.Logger

	mu    sync.Mutex
	local *localSubscription
}

type localSubscription struct {
	registration Registration
	preferences  model.Preferences
}

// ClientOption configures a Client.
type ClientOption func(*Client) error

// NewClient creates a new Client with the provided options.
//
// Required options:
//   - WithBaseURL: server base URL (routes are resolved under it)
//   - WithBrowser: browser bridge
//   - WithVAPIDPublicKey: the server's public VAPID key for registration
//
// Optional options:
//   - WithHTTPClient: custom HTTP client (default: 15s timeout)
//   - WithClientLogger: logger instance (default: NoopLogger)
func NewClient(opts ...ClientOption) (*Client, error) {
	c := &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     &pushrelay.NoopLogger{},
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, pushrelay.NewErrorWithCause(pushrelay.ErrCodeConfiguration, "failed to apply client option", err)
		}
	}

	if c.baseURL == "" {
		return nil, pushrelay.NewError(pushrelay.ErrCodeConfiguration, "base URL is required (use WithBaseURL)")
	}
	if c.browser == nil {
		return nil, pushrelay.NewError(pushrelay.ErrCodeConfiguration, "Browser is required (use WithBrowser)")
	}
	if c.vapidPublicKey == "" {
		return nil, pushrelay.NewError(pushrelay.ErrCodeConfiguration, "VAPID public key is required (use WithVAPIDPublicKey)")
	}

	return c, nil
}

// WithBaseURL sets the server base URL, e.g. "https://example.com".
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) error {
		if baseURL == "" {
			return fmt.Errorf("baseURL cannot be empty")
		}
		c.baseURL = baseURL
		return nil
	}
}

// WithBrowser sets the browser bridge.
func WithBrowser(browser Browser) ClientOption {
	return func(c *Client) error {
		if browser == nil {
			return fmt.Errorf("browser cannot be nil")
		}
		c.browser = browser
		return nil
	}
}

// WithVAPIDPublicKey sets the server's public VAPID key.
func WithVAPIDPublicKey(key string) ClientOption {
	return func(c *Client) error {
		if key == "" {
			return fmt.Errorf("VAPID public key cannot be empty")
		}
		c.vapidPublicKey = key
		return nil
	}
}

// WithHTTPClient sets the HTTP client for server calls.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) error {
		if httpClient == nil {
			return fmt.Errorf("httpClient cannot be nil")
		}
		c.httpClient = httpClient
		return nil
	}
}

// WithClientLogger sets the logger instance.
func WithClientLogger(logger pushrelay.Logger) ClientOption {
	return func(c *Client) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		c.logger = logger
		return nil
	}
}

// Subscribe runs the full registration flow: permission gate, registration
// reuse-or-create, server submission, local copy.
//
// Returns ErrPermissionDenied when the user declines the permission prompt.
func (c *Client) Subscribe(ctx context.Context, prefs model.Preferences) (*Registration, error) {
	granted, err := c.browser.RequestPermission(ctx)
	if err != nil {
		return nil, pushrelay.NewErrorWithCause(pushrelay.ErrCodePermissionDenied, "permission prompt failed", err)
	}
	if !granted {
		return nil, pushrelay.ErrPermissionDenied
	}

	reg, err := c.browser.ExistingRegistration(ctx)
	if err != nil {
		return nil, pushrelay.NewErrorWithCause(pushrelay.ErrCodeConfiguration, "failed to read existing registration", err)
	}
	if reg == nil {
		reg, err = c.browser.Register(ctx, c.vapidPublicKey)
		if err != nil {
			return nil, pushrelay.NewErrorWithCause(pushrelay.ErrCodeConfiguration, "push registration failed", err)
		}
	} else {
		c.logger.Debugf("Reusing existing push registration: %s", reg.Endpoint)
	}

	body := pushrelay.SubscribeRequest{
		Endpoint:    reg.Endpoint,
		P256dh:      reg.P256dh,
		Auth:        reg.Auth,
		Preferences: &prefs,
	}
	if err := c.call(ctx, http.MethodPost, "/push-notifications/subscribe", body, nil); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.local = &localSubscription{registration: *reg, preferences: prefs}
	c.mu.Unlock()

	c.logger.Infof("Subscribed: %s", reg.Endpoint)
	return reg, nil
}

// Unsubscribe cancels the browser registration first, then deactivates the
// subscription on the server. The local cancellation stands even when the
// server call fails; the error is still returned so the caller can surface
// it.
func (c *Client) Unsubscribe(ctx context.Context) error {
	c.mu.Lock()
	local := c.local
	c.local = nil
	c.mu.Unlock()

	if err := c.browser.Unregister(ctx); err != nil {
		c.logger.Warnf("Failed to cancel browser registration: %v", err)
	}

	if local == nil {
		return nil
	}

	body := pushrelay.UnsubscribeRequest{Endpoint: local.registration.Endpoint}
	if err := c.call(ctx, http.MethodDelete, "/push-notifications/unsubscribe", body, nil); err != nil {
		return err
	}

	c.logger.Infof("Unsubscribed: %s", local.registration.Endpoint)
	return nil
}

// UpdatePreferences submits new preferences for the current subscription and
// updates the local copy on success.
func (c *Client) UpdatePreferences(ctx context.Context, prefs model.Preferences) error {
	c.mu.Lock()
	local := c.local
	c.mu.Unlock()

	if local == nil {
		return pushrelay.NewError(pushrelay.ErrCodeNotFound, "not subscribed")
	}

	body := pushrelay.UpdatePreferencesRequest{
		Endpoint:    local.registration.Endpoint,
		Preferences: prefs,
	}
	if err := c.call(ctx, http.MethodPut, "/push-notifications/preferences", body, nil); err != nil {
		return err
	}

	c.mu.Lock()
	if c.local != nil {
		c.local.preferences = prefs
	}
	c.mu.Unlock()
	return nil
}

// Preferences returns the locally cached preferences and whether a
// subscription exists. The copy is optimistic: it reflects the last
// successful submission, not a fresh server read.
func (c *Client) Preferences() (model.Preferences, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.local == nil {
		return model.Preferences{}, false
	}
	return c.local.preferences, true
}

// SendTest asks the server to push one test notification to this client's
// own endpoint. When the server path fails, it degrades to a same-device
// local notification and reports degraded=true instead of a bare error.
func (c *Client) SendTest(ctx context.Context) (degraded bool, err error) {
	c.mu.Lock()
	local := c.local
	c.mu.Unlock()

	if local == nil {
		return false, pushrelay.NewError(pushrelay.ErrCodeNotFound, "not subscribed")
	}

	body := pushrelay.TestSendRequest{Endpoint: local.registration.Endpoint}
	err = c.call(ctx, http.MethodPost, "/push-notifications/test", body, nil)
	if err == nil {
		return false, nil
	}
	if pushrelay.IsNotFound(err) || pushrelay.IsValidation(err) {
		// The server understood and rejected the request; a local popup
		// would mask a real problem with the subscription.
		return false, err
	}

	c.logger.Warnf("Server test send failed, falling back to local notification: %v", err)
	if showErr := c.browser.ShowNotification(ctx,
		"Test notification",
		"Push server unreachable; this notification was shown locally."); showErr != nil {
		return false, pushrelay.NewErrorWithCause(pushrelay.ErrCodeDelivery, "test send and local fallback both failed", showErr)
	}
	return true, nil
}

type serverResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// call sends a JSON request and decodes the standard {success, error}
// envelope, mapping HTTP status codes onto the library's error codes.
func (c *Client) call(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return pushrelay.NewErrorWithCause(pushrelay.ErrCodeValidation, "failed to encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return pushrelay.NewErrorWithCause(pushrelay.ErrCodeConfiguration, "failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pushrelay.NewErrorWithCause(pushrelay.ErrCodeDelivery, "server request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return pushrelay.NewErrorWithCause(pushrelay.ErrCodeDelivery, "failed to read response", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out != nil {
			if err := json.Unmarshal(raw, out); err != nil {
				return pushrelay.NewErrorWithCause(pushrelay.ErrCodeDelivery, "failed to decode response", err)
			}
		}
		return nil
	}

	var sr serverResponse
	message := string(raw)
	if json.Unmarshal(raw, &sr) == nil && sr.Error != "" {
		message = sr.Error
	}

	switch resp.StatusCode {
	case http.StatusBadRequest:
		return pushrelay.NewError(pushrelay.ErrCodeValidation, message)
	case http.StatusNotFound:
		return pushrelay.NewError(pushrelay.ErrCodeNotFound, message)
	default:
		return pushrelay.NewError(pushrelay.ErrCodeDelivery,
			fmt.Sprintf("server returned %d: %s", resp.StatusCode, message))
	}
}
