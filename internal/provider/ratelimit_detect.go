package provider

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DefaultRetryAfter is used when a rate-limit message carries no wait hint.
const DefaultRetryAfter = 15 * time.Second

// rateLimitPhrases are matched case-insensitively against provider response
// text. The provider mixes Vietnamese and English wording depending on which
// upstream answered.
var rateLimitPhrases = []string{
	"quá nhiều request",
	"thử lại sau",
	"too many requests",
	"rate limit",
	"retry after",
}

// waitPatterns extract an explicit wait, in seconds, from the message.
var waitPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\d+)\s*giây`),
	regexp.MustCompile(`(\d+)\s*seconds?`),
	regexp.MustCompile(`(\d+)\s*sec`),
}

// DetectRateLimit inspects provider response text for rate-limit wording and,
// when found, returns a RateLimitError with the parsed or default wait.
func DetectRateLimit(message string) (*RateLimitError, bool) {
	lower := strings.ToLower(message)
	matched := false
	for _, phrase := range rateLimitPhrases {
		if strings.Contains(lower, phrase) {
			matched = true
			break
		}
	}
	if !matched {
		return nil, false
	}
	return &RateLimitError{RetryAfter: ParseWait(message), Message: message}, true
}

// ParseWait pulls an explicit seconds value out of a rate-limit message,
// falling back to DefaultRetryAfter.
func ParseWait(message string) time.Duration {
	lower := strings.ToLower(message)
	for _, re := range waitPatterns {
		if m := re.FindStringSubmatch(lower); m != nil {
			if secs, err := strconv.Atoi(m[1]); err == nil && secs > 0 {
				return time.Duration(secs) * time.Second
			}
		}
	}
	return DefaultRetryAfter
}
