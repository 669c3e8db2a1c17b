package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewSubscription(t *testing.T) {
	beforeCreate := time.Now()
	sub := NewSubscription("https://push.example.com/abc", "p256dh-key", "auth-key", DefaultPreferences())

	assert.Equal(t, "https://push.example.com/abc", sub.Endpoint)
	assert.Equal(t, "p256dh-key", sub.P256dh)
	assert.Equal(t, "auth-key", sub.Auth)
	assert.True(t, sub.IsActive)
	assert.False(t, sub.DeletedAt.Valid)
	assert.WithinDuration(t, beforeCreate, sub.CreatedAt, 1*time.Second)
}

func TestSubscription_DeactivateReactivate(t *testing.T) {
	sub := NewSubscription("https://push.example.com/abc", "k", "a", DefaultPreferences())

	sub.Deactivate()
	assert.False(t, sub.IsActive)
	assert.True(t, sub.DeletedAt.Valid)
	assert.WithinDuration(t, time.Now(), sub.DeletedAt.Time, 1*time.Second)

	sub.Reactivate()
	assert.True(t, sub.IsActive)
	assert.False(t, sub.DeletedAt.Valid)
}
