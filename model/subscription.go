package model

import (
	"database/sql"
	"time"
)

// Subscription represents one browser's push registration.
//
// The endpoint URL is the identity key: re-subscribing an endpoint updates its
// encryption keys and preferences in place instead of creating a duplicate.
// The p256dh/auth keys are required to encrypt payloads per the Web Push
// standard.
//
// Lifecycle: created active on subscribe; deactivated (soft delete) on
// explicit unsubscribe or when the dispatcher observes a permanently expired
// endpoint. Deactivated subscriptions are retained so the delivery ledger
// keeps its history.
type Subscription struct {
	ID          int64          `json:"id"`
	Endpoint    string         `json:"endpoint"`
	P256dh      string         `json:"p256dh"`
	Auth        string         `json:"auth"`
	Preferences Preferences    `json:"preferences"`
	IsActive    bool           `json:"isActive" db:"is_active"`
	UserAgent   sql.NullString `json:"userAgent" db:"user_agent"`
	IPAddress   sql.NullString `json:"ipAddress" db:"ip_address"`
	CreatedAt   time.Time      `json:"createdAt" db:"created_at"`
	DeletedAt   sql.NullTime   `json:"deletedAt" db:"deleted_at"`
}

// TableName returns the database table name for Subscription.
func (m Subscription) TableName() string {
	return tablePrefix + "subscription"
}

// NewSubscription creates a new active subscription for a push endpoint.
func NewSubscription(endpoint, p256dh, auth string, prefs Preferences) Subscription {
	return Subscription{
		ID:          0,
		Endpoint:    endpoint,
		P256dh:      p256dh,
		Auth:        auth,
		Preferences: prefs,
		IsActive:    true,
		CreatedAt:   time.Now(),
		DeletedAt:   sql.NullTime{},
	}
}

// Deactivate performs a soft delete on the subscription.
// Deactivated subscriptions are skipped by future fan-outs but retained
// for delivery history.
func (m *Subscription) Deactivate() {
	m.IsActive = false
	m.DeletedAt = sql.NullTime{Time: time.Now(), Valid: true}
}

// Reactivate re-enables a previously deactivated subscription.
// Called when an endpoint re-subscribes.
func (m *Subscription) Reactivate() {
	m.IsActive = true
	m.DeletedAt = sql.NullTime{}
}

// SubscriptionStats is a read-only aggregate over the subscription table,
// used for admin visibility only.
type SubscriptionStats struct {
	Total       int              `json:"total"`
	Active      int              `json:"active"`
	Inactive    int              `json:"inactive"`
	PerCategory map[Category]int `json:"perCategoryEnabledCounts"`
}
