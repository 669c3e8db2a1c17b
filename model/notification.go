package model

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Payload is the arbitrary data attached to a notification.
//
// URL is the click-through target and is always present; any further keys
// supplied by the sender ride along in Extra. The payload serializes to a flat
// JSON object both over the wire and in the database column.
type Payload struct {
	URL string

	// Extra holds sender-supplied keys beyond the click-through URL.
	Extra map[string]interface{}
}

// MarshalJSON serializes the payload as a flat object with a "url" key.
func (p Payload) MarshalJSON() ([]byte, error) {
	m := make(map[string]interface{}, 1+len(p.Extra))
	for k, v := range p.Extra {
		m[k] = v
	}
	m["url"] = p.URL
	return json.Marshal(m)
}

// UnmarshalJSON parses a flat object, extracting "url" and keeping the rest
// in Extra.
func (p *Payload) UnmarshalJSON(data []byte) error {
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*p = Payload{}
	if u, ok := m["url"].(string); ok {
		p.URL = u
	}
	delete(m, "url")
	if len(m) > 0 {
		p.Extra = m
	}
	return nil
}

// Value implements driver.Valuer so the payload persists as a JSON column.
func (p Payload) Value() (driver.Value, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for reading the JSON column back.
func (p *Payload) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*p = Payload{}
		return nil
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	default:
		return fmt.Errorf("cannot scan %T into Payload", src)
	}
}

// Notification represents a single send request (broadcast or test).
//
// Content is immutable after creation; only the aggregate success/failure
// counters are written back once dispatch completes. When dispatch has
// finished, SuccessCount + FailureCount equals the number of delivery ledger
// rows created for the notification.
type Notification struct {
	ID           int64          `json:"id"`
	Title        string         `json:"title"`
	Body         string         `json:"body"`
	Category     Category       `json:"category"`
	Icon         sql.NullString `json:"icon"`
	Badge        sql.NullString `json:"badge"`
	Image        sql.NullString `json:"image"`
	Data         Payload        `json:"data"`
	SuccessCount int            `json:"successCount" db:"success_count"`
	FailureCount int            `json:"failureCount" db:"failure_count"`
	CreatedAt    time.Time      `json:"createdAt" db:"created_at"`
}

// TableName returns the database table name for Notification.
func (t Notification) TableName() string {
	return tablePrefix + "notification"
}

// NewNotification creates a notification record for a send request.
// Empty icon/badge/image URLs are stored as NULL.
func NewNotification(title, body string, category Category, icon, badge, image string, data Payload) Notification {
	return Notification{
		ID:        0,
		Title:     title,
		Body:      body,
		Category:  category,
		Icon:      nullString(icon),
		Badge:     nullString(badge),
		Image:     nullString(image),
		Data:      data,
		CreatedAt: time.Now(),
	}
}

// WebPayload builds the browser-facing push message body. The service worker
// renders it directly: title/body for the notification, icon/badge/image for
// its appearance, and data.url as the click-through target.
func (t Notification) WebPayload() map[string]interface{} {
	m := map[string]interface{}{
		"title": t.Title,
		"body":  t.Body,
		"data":  t.Data,
	}
	if t.Icon.Valid {
		m["icon"] = t.Icon.String
	}
	if t.Badge.Valid {
		m["badge"] = t.Badge.String
	}
	if t.Image.Valid {
		m["image"] = t.Image.String
	}
	return m
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
