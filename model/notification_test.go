package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNotification(t *testing.T) {
	beforeCreate := time.Now()
	n := NewNotification("New results", "UPSC 2026 results are out", CategoryResults,
		"/icon.png", "", "", Payload{URL: "/results/upsc-2026"})

	assert.Equal(t, "New results", n.Title)
	assert.Equal(t, CategoryResults, n.Category)
	assert.True(t, n.Icon.Valid)
	assert.Equal(t, "/icon.png", n.Icon.String)
	assert.False(t, n.Badge.Valid)
	assert.False(t, n.Image.Valid)
	assert.Equal(t, 0, n.SuccessCount)
	assert.Equal(t, 0, n.FailureCount)
	assert.WithinDuration(t, beforeCreate, n.CreatedAt, 1*time.Second)
}

func TestNotification_WebPayload(t *testing.T) {
	n := NewNotification("Title", "Body", CategoryNewJobs,
		"/icon.png", "/badge.png", "", Payload{URL: "/jobs/123", Extra: map[string]interface{}{"jobId": "123"}})

	payload := n.WebPayload()

	assert.Equal(t, "Title", payload["title"])
	assert.Equal(t, "Body", payload["body"])
	assert.Equal(t, "/icon.png", payload["icon"])
	assert.Equal(t, "/badge.png", payload["badge"])
	assert.NotContains(t, payload, "image")

	// The payload must serialize with data.url for the click-through.
	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	var decoded struct {
		Data map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "/jobs/123", decoded.Data["url"])
	assert.Equal(t, "123", decoded.Data["jobId"])
}

func TestPayload_JSONRoundTrip(t *testing.T) {
	original := Payload{URL: "/jobs/42", Extra: map[string]interface{}{"source": "admin"}}

	data, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded Payload
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, original.URL, decoded.URL)
	assert.Equal(t, "admin", decoded.Extra["source"])
}

func TestPayload_ScanValue(t *testing.T) {
	original := Payload{URL: "/"}

	v, err := original.Value()
	require.NoError(t, err)

	var decoded Payload
	require.NoError(t, decoded.Scan(v))
	assert.Equal(t, "/", decoded.URL)
	assert.Nil(t, decoded.Extra)
}
