package retry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultStrategy(t *testing.T) {
	strategy := DefaultStrategy()

	assert.Equal(t, 3, strategy.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, strategy.BaseDelay)
	assert.Equal(t, 5*time.Second, strategy.MaxDelay)
	assert.Equal(t, 2.0, strategy.ExponentialBase)
}

func TestStrategy_Delay(t *testing.T) {
	strategy := DefaultStrategy()

	tests := []struct {
		name          string
		attemptNumber int
		expectedDelay time.Duration
	}{
		{
			name:          "Zero attempts - base delay",
			attemptNumber: 0,
			expectedDelay: 500 * time.Millisecond,
		},
		{
			name:          "Negative attempts - base delay",
			attemptNumber: -1,
			expectedDelay: 500 * time.Millisecond,
		},
		{
			name:          "First attempt - doubled",
			attemptNumber: 1,
			expectedDelay: 1 * time.Second, // 500ms * 2^1
		},
		{
			name:          "Second attempt - exponential",
			attemptNumber: 2,
			expectedDelay: 2 * time.Second, // 500ms * 2^2
		},
		{
			name:          "Third attempt",
			attemptNumber: 3,
			expectedDelay: 4 * time.Second, // 500ms * 2^3
		},
		{
			name:          "Capped at max delay",
			attemptNumber: 10,
			expectedDelay: 5 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			delay := strategy.Delay(tt.attemptNumber)
			assert.Equal(t, tt.expectedDelay, delay)
		})
	}
}

func TestStrategy_IsRetryable(t *testing.T) {
	strategy := Strategy{MaxAttempts: 3}

	assert.True(t, strategy.IsRetryable(0))
	assert.True(t, strategy.IsRetryable(1))
	assert.True(t, strategy.IsRetryable(2))
	assert.False(t, strategy.IsRetryable(3))
	assert.False(t, strategy.IsRetryable(4))
}
