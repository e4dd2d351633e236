package provider

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectRateLimitVietnamese(t *testing.T) {
	rl, ok := DetectRateLimit("Quá nhiều request, vui lòng thử lại sau 30 giây")
	require.True(t, ok)
	assert.Equal(t, 30*time.Second, rl.RetryAfter)
}

func TestDetectRateLimitEnglish(t *testing.T) {
	rl, ok := DetectRateLimit("Too Many Requests - retry after 45 seconds")
	require.True(t, ok)
	assert.Equal(t, 45*time.Second, rl.RetryAfter)

	rl, ok = DetectRateLimit("rate limit exceeded")
	require.True(t, ok)
	assert.Equal(t, DefaultRetryAfter, rl.RetryAfter)
}

func TestDetectRateLimitDefaultWait(t *testing.T) {
	rl, ok := DetectRateLimit("quá nhiều request")
	require.True(t, ok)
	assert.Equal(t, 15*time.Second, rl.RetryAfter)
}

func TestDetectRateLimitNoMatch(t *testing.T) {
	_, ok := DetectRateLimit("symbol not found")
	assert.False(t, ok)
	_, ok = DetectRateLimit("")
	assert.False(t, ok)
}

func TestParseWaitVariants(t *testing.T) {
	assert.Equal(t, 20*time.Second, ParseWait("thử lại sau 20 giây"))
	assert.Equal(t, 5*time.Second, ParseWait("wait 5 sec"))
	assert.Equal(t, time.Second, ParseWait("retry after 1 second"))
	assert.Equal(t, DefaultRetryAfter, ParseWait("no number here"))
	// Zero is not a usable wait.
	assert.Equal(t, DefaultRetryAfter, ParseWait("retry after 0 seconds"))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, KindRateLimited, Classify(&RateLimitError{RetryAfter: time.Second}))
	assert.Equal(t, KindPermanent, Classify(&PermanentError{StatusCode: 404}))
	assert.Equal(t, KindTransient, Classify(errors.New("connection refused")))

	// Wrapped errors classify the same.
	wrapped := errors.Join(errors.New("request failed"), &RateLimitError{RetryAfter: time.Second})
	assert.Equal(t, KindRateLimited, Classify(wrapped))
}
