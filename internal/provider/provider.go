// Package provider defines the market-data provider port and its error
// taxonomy. Implementations live in subpackages; services depend only on the
// interface so tests can substitute fakes.
package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/epeers/vnmarket/internal/models"
)

// Quote is the raw latest-price payload as the provider reports it, before any
// unit normalization.
type Quote struct {
	Symbol    string
	Date      string // YYYY-MM-DD
	Open      float64
	High      float64
	Low       float64
	Close     float64
	AdjClose  float64
	Volume    float64
	NAV       *float64
	BuyPrice  *float64
	SellPrice *float64
	Raw       string // verbatim provider JSON
}

// HistoryRow is one raw daily observation from the provider.
type HistoryRow struct {
	Date      string
	Open      float64
	High      float64
	Low       float64
	Close     float64
	AdjClose  float64
	Volume    float64
	NAV       *float64
	BuyPrice  *float64
	SellPrice *float64
	Raw       string
}

// AssetInfo is one listing entry from the provider's catalogs.
type AssetInfo struct {
	Symbol   string
	Name     string
	Exchange string
}

// GoldSpot is a single-day gold observation.
type GoldSpot struct {
	Date      string
	BuyPrice  float64
	SellPrice float64
	Raw       string
}

// Provider is the upstream market-data port. A nil result with a nil error
// means the provider answered but has no data (ok-empty); callers must treat
// that differently from an error.
type Provider interface {
	FetchQuote(ctx context.Context, symbol string, assetType models.AssetType) (*Quote, error)
	FetchHistory(ctx context.Context, symbol string, assetType models.AssetType, start, end string) ([]HistoryRow, error)
	FetchListing(ctx context.Context, assetType models.AssetType) ([]AssetInfo, error)
	FetchGoldSpotByDate(ctx context.Context, date string) (*GoldSpot, error)
}

// RateLimitError signals the provider asked us to back off. RetryAfter is
// parsed from the provider's message when present, 15s otherwise.
type RateLimitError struct {
	RetryAfter time.Duration
	Message    string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("provider rate limited (retry after %s): %s", e.RetryAfter, e.Message)
}

// PermanentError signals a request that will not succeed on retry, such as an
// unknown symbol or a malformed request rejected upstream.
type PermanentError struct {
	StatusCode int
	Message    string
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("provider rejected request (status %d): %s", e.StatusCode, e.Message)
}

// ErrorKind classifies a provider failure for retry policy.
type ErrorKind int

const (
	KindTransient ErrorKind = iota
	KindRateLimited
	KindPermanent
)

// Classify buckets an error into the retry taxonomy. Unknown errors are
// transient: network blips and provider hiccups are the common case.
func Classify(err error) ErrorKind {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return KindRateLimited
	}
	var pe *PermanentError
	if errors.As(err, &pe) {
		return KindPermanent
	}
	return KindTransient
}
