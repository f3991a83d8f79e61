package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadLimiterPerMinute(t *testing.T) {
	l := NewUploadLimiter(2, 0)

	require.NoError(t, l.Check("10.0.0.1", 100))
	require.NoError(t, l.Check("10.0.0.1", 100))

	err := l.Check("10.0.0.1", 100)
	var rle *RateLimitError
	require.ErrorAs(t, err, &rle)
	assert.Equal(t, "minute", rle.Type)
	assert.Equal(t, 2, rle.Limit)

	// Other clients are tracked independently.
	assert.NoError(t, l.Check("10.0.0.2", 100))
}

func TestUploadLimiterDailyDataQuota(t *testing.T) {
	l := NewUploadLimiter(0, 1000)

	require.NoError(t, l.Check("10.0.0.1", 600))

	err := l.Check("10.0.0.1", 600)
	var qe *QuotaExceededError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, "data", qe.Type)
	assert.Equal(t, int64(600), qe.Used)

	// A smaller upload that fits under the quota still goes through.
	assert.NoError(t, l.Check("10.0.0.1", 300))
}

func TestUploadLimiterZeroLimitsDisabled(t *testing.T) {
	l := NewUploadLimiter(0, 0)
	for i := 0; i < 50; i++ {
		require.NoError(t, l.Check("10.0.0.1", 1<<20))
	}
}
