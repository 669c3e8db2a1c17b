// Package api provides the HTTP handlers for the push relay server.
//
// The surface is the six JSON routes under /push-notifications/*, CORS-enabled
// so browser pages can call them directly. Every response carries the
// permissive CORS headers and OPTIONS preflights short-circuit with 200 "ok".
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/coregx/pushrelay"
	"github.com/coregx/pushrelay/model"
)

// SubscriptionService is the subscription-store surface the handlers need.
type SubscriptionService interface {
	UpsertSubscription(ctx context.Context, req pushrelay.SubscribeRequest) (*model.Subscription, error)
	Deactivate(ctx context.Context, endpoint string) error
	UpdatePreferences(ctx context.Context, endpoint string, prefs model.Preferences) error
	Stats(ctx context.Context) (model.SubscriptionStats, error)
}

// SendService is the broadcast surface the handlers need.
type SendService interface {
	Broadcast(ctx context.Context, req pushrelay.SendRequest) (*pushrelay.BroadcastResult, error)
	SendTest(ctx context.Context, endpoint string) (*pushrelay.BroadcastResult, error)
}

// Handler holds dependencies for API handlers.
type Handler struct {
	store  SubscriptionService
	sender SendService
	logger pushrelay.Logger
}

// NewHandler creates a new API handler.
func NewHandler(store SubscriptionService, sender SendService, logger pushrelay.Logger) *Handler {
	return &Handler{
		store:  store,
		sender: sender,
		logger: logger,
	}
}

// Register wires the routes onto the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/push-notifications/send", h.HandleSend)
	mux.HandleFunc("/push-notifications/subscribe", h.HandleSubscribe)
	mux.HandleFunc("/push-notifications/unsubscribe", h.HandleUnsubscribe)
	mux.HandleFunc("/push-notifications/preferences", h.HandlePreferences)
	mux.HandleFunc("/push-notifications/stats", h.HandleStats)
	mux.HandleFunc("/push-notifications/test", h.HandleTest)
}

// HandleSend handles POST /push-notifications/send
func (h *Handler) HandleSend(w http.ResponseWriter, r *http.Request) {
	if h.preflight(w, r) {
		return
	}
	if r.Method != http.MethodPost {
		h.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req pushrelay.SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	result, err := h.sender.Broadcast(r.Context(), req)
	if err != nil {
		h.respondServiceError(w, err, "Failed to send notification")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":         true,
		"notificationId":  result.NotificationID,
		"totalRecipients": result.TotalRecipients,
		"sent":            result.Sent,
		"failed":          result.Failed,
	})
}

// HandleSubscribe handles POST /push-notifications/subscribe
func (h *Handler) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	if h.preflight(w, r) {
		return
	}
	if r.Method != http.MethodPost {
		h.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req pushrelay.SubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	// Capture caller metadata when the client didn't supply it.
	if req.UserAgent == "" {
		req.UserAgent = r.UserAgent()
	}
	if req.IPAddress == "" {
		req.IPAddress = r.RemoteAddr
	}

	sub, err := h.store.UpsertSubscription(r.Context(), req)
	if err != nil {
		h.respondServiceError(w, err, "Failed to subscribe")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"subscription": sub,
	})
}

// HandleUnsubscribe handles DELETE /push-notifications/unsubscribe
func (h *Handler) HandleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	if h.preflight(w, r) {
		return
	}
	if r.Method != http.MethodDelete {
		h.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req pushrelay.UnsubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if err := req.Validate(); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.Deactivate(r.Context(), req.Endpoint); err != nil {
		h.respondServiceError(w, err, "Failed to unsubscribe")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// HandlePreferences handles PUT /push-notifications/preferences
func (h *Handler) HandlePreferences(w http.ResponseWriter, r *http.Request) {
	if h.preflight(w, r) {
		return
	}
	if r.Method != http.MethodPut {
		h.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req pushrelay.UpdatePreferencesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if err := req.Validate(); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.UpdatePreferences(r.Context(), req.Endpoint, req.Preferences); err != nil {
		h.respondServiceError(w, err, "Failed to update preferences")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// HandleStats handles GET /push-notifications/stats
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if h.preflight(w, r) {
		return
	}
	if r.Method != http.MethodGet {
		h.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	stats, err := h.store.Stats(r.Context())
	if err != nil {
		h.respondServiceError(w, err, "Failed to load stats")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"stats":   stats,
	})
}

// HandleTest handles POST /push-notifications/test
func (h *Handler) HandleTest(w http.ResponseWriter, r *http.Request) {
	if h.preflight(w, r) {
		return
	}
	if r.Method != http.MethodPost {
		h.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req pushrelay.TestSendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if _, err := h.sender.SendTest(r.Context(), req.Endpoint); err != nil {
		h.respondServiceError(w, err, "Failed to send test notification")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Test notification sent",
	})
}

// preflight writes the CORS headers and, for OPTIONS, the 200 "ok"
// short-circuit. Returns true when the request is fully handled.
func (h *Handler) preflight(w http.ResponseWriter, r *http.Request) bool {
	header := w.Header()
	header.Set("Access-Control-Allow-Origin", "*")
	header.Set("Access-Control-Allow-Headers", "authorization, x-client-info, apikey, content-type")
	header.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
		return true
	}
	return false
}

// respondServiceError maps library error codes onto HTTP status codes.
func (h *Handler) respondServiceError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case pushrelay.IsValidation(err):
		h.respondError(w, http.StatusBadRequest, err.Error())
	case pushrelay.IsNotFound(err):
		h.respondError(w, http.StatusNotFound, err.Error())
	default:
		h.logger.Errorf("%s: %v", fallback, err)
		h.respondError(w, http.StatusInternalServerError, fallback)
	}
}

// respondError sends an error response.
func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}

// respondJSON sends a JSON response.
func (h *Handler) respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
