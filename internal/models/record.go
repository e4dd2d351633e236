package models

import "time"

// HistoricalRecord is an immutable point-in-time observation keyed by
// (symbol, asset_type, date). Price fields are pointers so that placeholder
// rows (all prices nil) can be told apart from a real zero.
type HistoricalRecord struct {
	Symbol    string    `json:"symbol"`
	AssetType AssetType `json:"-"`
	Date      string    `json:"date"` // YYYY-MM-DD

	Open     *float64 `json:"open,omitempty"`
	High     *float64 `json:"high,omitempty"`
	Low      *float64 `json:"low,omitempty"`
	Close    *float64 `json:"close,omitempty"`
	AdjClose *float64 `json:"adjclose,omitempty"`
	Volume   float64  `json:"volume"`
	NAV      *float64 `json:"nav,omitempty"`

	// Gold only.
	BuyPrice  *float64 `json:"buy_price,omitempty"`
	SellPrice *float64 `json:"sell_price,omitempty"`

	// Verbatim provider payload, kept for forward-compatible fields.
	// Placeholder rows store "{}".
	DataJSON  string    `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// IsPlaceholder reports whether the record only marks a date as
// already-attempted (weekend, holiday, pre-inception): no real prices.
func (r *HistoricalRecord) IsPlaceholder() bool {
	for _, p := range []*float64{r.Open, r.High, r.Low, r.Close, r.NAV, r.BuyPrice, r.SellPrice} {
		if p != nil && *p != 0 {
			return false
		}
	}
	return true
}

// CloseOrNAV returns the best available price for the record.
func (r *HistoricalRecord) CloseOrNAV() float64 {
	if r.Close != nil && *r.Close != 0 {
		return *r.Close
	}
	if r.NAV != nil {
		return *r.NAV
	}
	return 0
}

// Float returns a pointer to v; a small helper for building records.
func Float(v float64) *float64 { return &v }

// Quote is the unified latest-price payload served by the quote endpoints and
// stored in the quote caches.
type Quote struct {
	Symbol    string    `json:"symbol"`
	AssetType AssetType `json:"asset_type,omitempty"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	AdjClose  float64   `json:"adjclose"`
	Volume    float64   `json:"volume"`
	NAV       *float64  `json:"nav,omitempty"`
	BuyPrice  *float64  `json:"buy_price,omitempty"`
	SellPrice *float64  `json:"sell_price,omitempty"`
	Date      string    `json:"date"`
	Currency  string    `json:"currency,omitempty"`
}

// QuoteFromRecord degrades a historical record into a quote payload.
func QuoteFromRecord(r *HistoricalRecord) *Quote {
	q := &Quote{
		Symbol:    r.Symbol,
		AssetType: r.AssetType,
		Volume:    r.Volume,
		NAV:       r.NAV,
		BuyPrice:  r.BuyPrice,
		SellPrice: r.SellPrice,
		Date:      r.Date,
		Currency:  CurrencyVND,
	}
	deref := func(p *float64) float64 {
		if p == nil {
			return 0
		}
		return *p
	}
	q.Open = deref(r.Open)
	q.High = deref(r.High)
	q.Low = deref(r.Low)
	q.Close = deref(r.Close)
	q.AdjClose = deref(r.AdjClose)
	return q
}

// SearchResult is one hit of the free-text asset search.
type SearchResult struct {
	Symbol        string    `json:"symbol"`
	Name          string    `json:"name"`
	AssetType     AssetType `json:"asset_type"`
	AssetClass    string    `json:"asset_class"`
	AssetSubClass string    `json:"asset_sub_class"`
	Exchange      string    `json:"exchange"`
	Currency      string    `json:"currency"`
	DataSource    string    `json:"data_source"`
}
