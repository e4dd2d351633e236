package models

import "time"

// AssetType identifies one of the supported instrument categories.
type AssetType string

const (
	AssetTypeStock AssetType = "STOCK"
	AssetTypeFund  AssetType = "FUND"
	AssetTypeIndex AssetType = "INDEX"
	AssetTypeGold  AssetType = "GOLD"
)

// Classification carries the class/sub-class/currency/source tuple that is
// fully determined by the asset type.
type Classification struct {
	AssetClass    string
	AssetSubClass string
	Currency      string
	DataSource    string
}

const (
	CurrencyVND      = "VND"
	DataSourceMarket = "VN_MARKET"
)

// Classifications maps each asset type to its fixed classification. A record
// whose (asset_class, asset_sub_class) disagrees with this table is invalid.
var Classifications = map[AssetType]Classification{
	AssetTypeStock: {AssetClass: "Equity", AssetSubClass: "Stock", Currency: CurrencyVND, DataSource: DataSourceMarket},
	AssetTypeFund:  {AssetClass: "Investment Fund", AssetSubClass: "Mutual Fund", Currency: CurrencyVND, DataSource: DataSourceMarket},
	AssetTypeIndex: {AssetClass: "Index", AssetSubClass: "Market Index", Currency: CurrencyVND, DataSource: DataSourceMarket},
	AssetTypeGold:  {AssetClass: "Commodity", AssetSubClass: "Precious Metal", Currency: CurrencyVND, DataSource: DataSourceMarket},
}

// ClassificationFor returns the classification for an asset type, falling back
// to an empty tuple for unknown types.
func ClassificationFor(at AssetType) Classification {
	return Classifications[at]
}

// IndexSymbols is the curated set of market indices the service serves.
var IndexSymbols = []string{"VNINDEX", "VN30", "HNX", "HNX30", "UPCOM"}

// IsIndexSymbol reports whether the (already upper-cased) symbol is a known index.
func IsIndexSymbol(symbol string) bool {
	for _, s := range IndexSymbols {
		if s == symbol {
			return true
		}
	}
	return false
}

// Gold symbols. VN.GOLD is priced per Lượng; VN.GOLD.C per Chỉ (1 Lượng = 10
// Chỉ). Both map to the SJC provider and share storage under VN.GOLD.
const (
	GoldSymbolLuong = "VN.GOLD"
	GoldSymbolChi   = "VN.GOLD.C"
)

// GoldProviders maps gold symbols to their provider code.
var GoldProviders = map[string]string{
	GoldSymbolLuong: "SJC",
	GoldSymbolChi:   "SJC",
}

// Asset is the canonical identity of a tradable instrument, keyed by symbol.
type Asset struct {
	Symbol        string            `json:"symbol"`
	Name          string            `json:"name"`
	AssetType     AssetType         `json:"asset_type"`
	AssetClass    string            `json:"asset_class"`
	AssetSubClass string            `json:"asset_sub_class"`
	Exchange      string            `json:"exchange"`
	Currency      string            `json:"currency"`
	DataSource    string            `json:"data_source"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	CreatedAt     time.Time         `json:"-"`
	UpdatedAt     time.Time         `json:"-"`
}
