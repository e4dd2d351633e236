package vnmarket

// envelope is the provider's common response wrapper. On throttling the
// provider still answers 200 with status "error" and a human-readable message,
// so the message text is run through rate-limit detection.
type envelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type quoteResponse struct {
	envelope
	Data *quoteData `json:"data"`
}

type quoteData struct {
	Symbol    string   `json:"symbol"`
	Date      string   `json:"date"`
	Open      float64  `json:"open"`
	High      float64  `json:"high"`
	Low       float64  `json:"low"`
	Close     float64  `json:"close"`
	AdjClose  float64  `json:"adjclose"`
	Volume    float64  `json:"volume"`
	NAV       *float64 `json:"nav"`
	BuyPrice  *float64 `json:"buy_price"`
	SellPrice *float64 `json:"sell_price"`
}

type historyResponse struct {
	envelope
	Data []historyRow `json:"data"`
}

type historyRow struct {
	Date      string   `json:"date"`
	Open      float64  `json:"open"`
	High      float64  `json:"high"`
	Low       float64  `json:"low"`
	Close     float64  `json:"close"`
	AdjClose  float64  `json:"adjclose"`
	Volume    float64  `json:"volume"`
	NAV       *float64 `json:"nav"`
	BuyPrice  *float64 `json:"buy_price"`
	SellPrice *float64 `json:"sell_price"`
}

type listingResponse struct {
	envelope
	Data []listingRow `json:"data"`
}

type listingRow struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Exchange string `json:"exchange"`
}

type goldResponse struct {
	envelope
	Data *goldRow `json:"data"`
}

type goldRow struct {
	Date      string  `json:"date"`
	BuyPrice  float64 `json:"buy_price"`
	SellPrice float64 `json:"sell_price"`
}
