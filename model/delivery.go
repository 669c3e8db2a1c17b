package model

import (
	"database/sql"
	"time"
)

// DeliveryStatus represents the lifecycle state of a delivery ledger row.
type DeliveryStatus string

const (
	// DeliveryStatusPending indicates the row is awaiting its delivery attempt.
	DeliveryStatusPending DeliveryStatus = "pending"

	// DeliveryStatusSent indicates the push message reached the push service.
	DeliveryStatusSent DeliveryStatus = "sent"

	// DeliveryStatusFailed indicates the delivery attempt failed.
	DeliveryStatusFailed DeliveryStatus = "failed"
)

// Delivery is one ledger row per (notification, subscription) pair, created
// at fan-out time. It is what makes "send to all subscribers" restart-safe
// and auditable.
//
// Every row starts pending and transitions exactly once to a terminal state,
// sent or failed. Failed rows are never retried in place; a later send
// creates fresh rows for recipients that are still active.
type Delivery struct {
	ID             int64          `json:"id"`
	NotificationID int64          `json:"notificationID" db:"notification_id"`
	SubscriptionID int64          `json:"subscriptionID" db:"subscription_id"`
	Status         DeliveryStatus `json:"status"`
	ClaimedAt      sql.NullTime   `json:"claimedAt" db:"claimed_at"`
	DeliveredAt    sql.NullTime   `json:"deliveredAt" db:"delivered_at"`
	ErrorMessage   sql.NullString `json:"errorMessage" db:"error_message"`
	ResponseData   sql.NullString `json:"responseData" db:"response_data"`
	CreatedAt      time.Time      `json:"createdAt" db:"created_at"`
}

// TableName returns the database table name for Delivery.
func (t *Delivery) TableName() string {
	return tablePrefix + "delivery"
}

// NewDelivery creates a pending ledger row for one recipient of a notification.
func NewDelivery(notificationID, subscriptionID int64) Delivery {
	return Delivery{
		ID:             0,
		NotificationID: notificationID,
		SubscriptionID: subscriptionID,
		Status:         DeliveryStatusPending,
		CreatedAt:      time.Now(),
	}
}

// MarkClaimed stamps the row as owned by a dispatcher. Claiming is an
// ownership marker, not a state transition: the row stays pending until the
// delivery attempt concludes.
func (t *Delivery) MarkClaimed() {
	if !t.ClaimedAt.Valid {
		t.ClaimedAt = sql.NullTime{Time: time.Now(), Valid: true}
	}
}

// MarkSent transitions the row to its terminal sent state and stamps
// delivered_at. Optional response data from the push service is recorded
// for auditing.
func (t *Delivery) MarkSent(responseData string) error {
	if t.IsTerminal() {
		return ErrDeliveryAlreadyTerminal
	}
	t.Status = DeliveryStatusSent
	t.DeliveredAt = sql.NullTime{Time: time.Now(), Valid: true}
	if responseData != "" {
		t.ResponseData = sql.NullString{String: responseData, Valid: true}
	}
	return nil
}

// MarkFailed transitions the row to its terminal failed state, recording the
// delivery error and any response body from the push service.
func (t *Delivery) MarkFailed(err error, responseData string) error {
	if t.IsTerminal() {
		return ErrDeliveryAlreadyTerminal
	}
	t.Status = DeliveryStatusFailed
	if err != nil {
		t.ErrorMessage = sql.NullString{String: err.Error(), Valid: true}
	}
	if responseData != "" {
		t.ResponseData = sql.NullString{String: responseData, Valid: true}
	}
	return nil
}

// IsTerminal reports whether the row has reached sent or failed.
// Terminal rows are never mutated again.
func (t *Delivery) IsTerminal() bool {
	return t.Status == DeliveryStatusSent || t.Status == DeliveryStatusFailed
}

// Domain errors returned by Delivery business logic methods.
var (
	// ErrDeliveryAlreadyTerminal indicates a second transition was attempted
	// on a row that already reached sent or failed.
	ErrDeliveryAlreadyTerminal = DomainError{Code: "ALREADY_TERMINAL", Message: "Delivery row already reached a terminal state"}
)

// DomainError represents a domain-level business rule violation.
type DomainError struct {
	Code    string // Error code for programmatic handling
	Message string // Human-readable error message
}

func (e DomainError) Error() string {
	return e.Message
}
