package model

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDelivery(t *testing.T) {
	beforeCreate := time.Now()
	d := NewDelivery(42, 7)

	assert.Equal(t, int64(42), d.NotificationID)
	assert.Equal(t, int64(7), d.SubscriptionID)
	assert.Equal(t, DeliveryStatusPending, d.Status)
	assert.False(t, d.IsTerminal())
	assert.False(t, d.DeliveredAt.Valid)
	assert.False(t, d.ErrorMessage.Valid)
	assert.WithinDuration(t, beforeCreate, d.CreatedAt, 1*time.Second)
}

func TestDelivery_MarkClaimed(t *testing.T) {
	d := NewDelivery(1, 2)

	d.MarkClaimed()

	// Claiming marks ownership only; the row is still pending and its
	// terminal transition is still open.
	require.True(t, d.ClaimedAt.Valid)
	assert.Equal(t, DeliveryStatusPending, d.Status)
	assert.False(t, d.IsTerminal())

	stamped := d.ClaimedAt.Time
	d.MarkClaimed()
	assert.Equal(t, stamped, d.ClaimedAt.Time)

	require.NoError(t, d.MarkSent(""))
	assert.Equal(t, DeliveryStatusSent, d.Status)
}

func TestDelivery_MarkSent(t *testing.T) {
	d := NewDelivery(1, 2)

	err := d.MarkSent(`{"status":201}`)

	require.NoError(t, err)
	assert.Equal(t, DeliveryStatusSent, d.Status)
	assert.True(t, d.IsTerminal())
	assert.True(t, d.DeliveredAt.Valid)
	assert.WithinDuration(t, time.Now(), d.DeliveredAt.Time, 1*time.Second)
	assert.Equal(t, `{"status":201}`, d.ResponseData.String)
	assert.False(t, d.ErrorMessage.Valid)
}

func TestDelivery_MarkFailed(t *testing.T) {
	d := NewDelivery(1, 2)

	err := d.MarkFailed(errors.New("endpoint unreachable"), "")

	require.NoError(t, err)
	assert.Equal(t, DeliveryStatusFailed, d.Status)
	assert.True(t, d.IsTerminal())
	assert.False(t, d.DeliveredAt.Valid)
	assert.Equal(t, "endpoint unreachable", d.ErrorMessage.String)
	assert.False(t, d.ResponseData.Valid)
}

func TestDelivery_TerminalStateIsFinal(t *testing.T) {
	tests := []struct {
		name       string
		transition func(d *Delivery) error
	}{
		{
			name:       "Sent row rejects second sent",
			transition: func(d *Delivery) error { return d.MarkSent("") },
		},
		{
			name:       "Sent row rejects failed",
			transition: func(d *Delivery) error { return d.MarkFailed(errors.New("late error"), "") },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDelivery(1, 2)
			require.NoError(t, d.MarkSent("ok"))

			err := tt.transition(&d)

			assert.ErrorIs(t, err, ErrDeliveryAlreadyTerminal)
			assert.Equal(t, DeliveryStatusSent, d.Status)
			assert.Equal(t, "ok", d.ResponseData.String)
		})
	}
}

func TestDelivery_FailedRowRejectsSent(t *testing.T) {
	d := NewDelivery(1, 2)
	require.NoError(t, d.MarkFailed(errors.New("boom"), ""))

	err := d.MarkSent("")

	assert.ErrorIs(t, err, ErrDeliveryAlreadyTerminal)
	assert.Equal(t, DeliveryStatusFailed, d.Status)
}
