package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategory_Valid(t *testing.T) {
	for _, c := range Categories() {
		assert.True(t, c.Valid(), "category %q should be valid", c)
	}
	assert.False(t, Category("sportsNews").Valid())
	assert.False(t, Category("").Valid())
}

func TestDefaultPreferences(t *testing.T) {
	prefs := DefaultPreferences()

	for _, c := range Categories() {
		assert.True(t, prefs.Enabled(c), "default preferences should enable %q", c)
	}
}

func TestPreferences_Matches(t *testing.T) {
	tests := []struct {
		name     string
		prefs    Preferences
		category Category
		expected bool
	}{
		{
			name:     "Enabled category matches",
			prefs:    Preferences{NewJobs: true},
			category: CategoryNewJobs,
			expected: true,
		},
		{
			name:     "Disabled category does not match",
			prefs:    Preferences{NewJobs: false, Results: true},
			category: CategoryNewJobs,
			expected: false,
		},
		{
			name:     "General updates matches even when disabled",
			prefs:    Preferences{GeneralUpdates: false},
			category: CategoryGeneralUpdates,
			expected: true,
		},
		{
			name:     "Unknown category without opt-in does not match",
			prefs:    Preferences{},
			category: Category("weather"),
			expected: false,
		},
		{
			name:     "Extension category with opt-in matches",
			prefs:    Preferences{Extra: map[string]bool{"weather": true}},
			category: Category("weather"),
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.prefs.Matches(tt.category))
		})
	}
}

func TestPreferences_JSONRoundTrip(t *testing.T) {
	original := Preferences{
		NewJobs:    true,
		AnswerKeys: true,
		Extra:      map[string]bool{"weather": true},
	}

	data, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded Preferences
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, original.NewJobs, decoded.NewJobs)
	assert.Equal(t, original.Results, decoded.Results)
	assert.Equal(t, original.AnswerKeys, decoded.AnswerKeys)
	assert.Equal(t, original.Extra, decoded.Extra)
}

func TestPreferences_UnmarshalKeepsUnknownKeys(t *testing.T) {
	var prefs Preferences
	require.NoError(t, json.Unmarshal([]byte(`{"newJobs":true,"weather":false}`), &prefs))

	assert.True(t, prefs.NewJobs)
	assert.Contains(t, prefs.Extra, "weather")
	assert.False(t, prefs.Extra["weather"])
}

func TestPreferences_ScanValue(t *testing.T) {
	original := Preferences{Results: true, GeneralUpdates: true}

	v, err := original.Value()
	require.NoError(t, err)

	var decoded Preferences
	require.NoError(t, decoded.Scan(v))
	assert.Equal(t, original.Results, decoded.Results)
	assert.Equal(t, original.GeneralUpdates, decoded.GeneralUpdates)
	assert.False(t, decoded.NewJobs)

	// Drivers may hand back []byte instead of string.
	var fromBytes Preferences
	require.NoError(t, fromBytes.Scan([]byte(`{"admitCards":true}`)))
	assert.True(t, fromBytes.AdmitCards)
}
