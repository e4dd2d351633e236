package services

import (
	"github.com/epeers/vnmarket/internal/models"
	"github.com/epeers/vnmarket/internal/provider"
)

// thousandsFactor converts stock and index prices, which the provider quotes
// in thousands of VND, to full VND on ingest.
const thousandsFactor = 1000

// normalizeRow converts a raw provider row into a storage record for the
// asset type:
//   - STOCK/INDEX: OHLC scaled x1000 (provider quotes thousands of VND);
//     adjclose kept equal to close.
//   - FUND: NAV mirrored into all four OHLC fields.
//   - GOLD: close derived from sell price, falling back to buy; OHLC mirrored.
func normalizeRow(symbol string, at models.AssetType, row provider.HistoryRow) models.HistoricalRecord {
	rec := models.HistoricalRecord{
		Symbol:    symbol,
		AssetType: at,
		Date:      row.Date,
		Volume:    row.Volume,
		DataJSON:  row.Raw,
	}

	switch at {
	case models.AssetTypeFund:
		nav := 0.0
		if row.NAV != nil {
			nav = *row.NAV
		} else if row.Close != 0 {
			nav = row.Close
		}
		if nav != 0 {
			rec.NAV = models.Float(nav)
			rec.Open = models.Float(nav)
			rec.High = models.Float(nav)
			rec.Low = models.Float(nav)
			rec.Close = models.Float(nav)
			rec.AdjClose = models.Float(nav)
		}

	case models.AssetTypeGold:
		var buy, sell float64
		if row.BuyPrice != nil {
			buy = *row.BuyPrice
		}
		if row.SellPrice != nil {
			sell = *row.SellPrice
		}
		closeP := sell
		if closeP <= 0 {
			closeP = buy
		}
		if buy != 0 {
			rec.BuyPrice = models.Float(buy)
		}
		if sell != 0 {
			rec.SellPrice = models.Float(sell)
		}
		if closeP != 0 {
			rec.Open = models.Float(closeP)
			rec.High = models.Float(closeP)
			rec.Low = models.Float(closeP)
			rec.Close = models.Float(closeP)
			rec.AdjClose = models.Float(closeP)
		}

	default: // STOCK, INDEX
		if row.Open != 0 || row.High != 0 || row.Low != 0 || row.Close != 0 {
			rec.Open = models.Float(row.Open * thousandsFactor)
			rec.High = models.Float(row.High * thousandsFactor)
			rec.Low = models.Float(row.Low * thousandsFactor)
			closeP := row.Close * thousandsFactor
			rec.Close = models.Float(closeP)
			// The provider's adjusted close tracks close exactly, so we
			// persist that rather than pretend to adjust.
			rec.AdjClose = models.Float(closeP)
		}
	}
	return rec
}

// normalizeGoldSpot converts a single-day gold observation.
func normalizeGoldSpot(spot provider.GoldSpot) models.HistoricalRecord {
	return normalizeRow(models.GoldSymbolLuong, models.AssetTypeGold, provider.HistoryRow{
		Date:      spot.Date,
		BuyPrice:  models.Float(spot.BuyPrice),
		SellPrice: models.Float(spot.SellPrice),
		Raw:       spot.Raw,
	})
}

// chiDivisor converts Lượng-based prices to Chỉ (1 Lượng = 10 Chỉ).
const chiDivisor = 10

// goldStorageSymbol maps the display symbol to the storage base; gold is
// always persisted under VN.GOLD regardless of the requested unit.
func goldStorageSymbol(symbol string) string {
	if symbol == models.GoldSymbolChi {
		return models.GoldSymbolLuong
	}
	return symbol
}

// applyChiRecord rewrites a stored Lượng record for the VN.GOLD.C display
// symbol, dividing every monetary field by 10.
func applyChiRecord(rec models.HistoricalRecord) models.HistoricalRecord {
	rec.Symbol = models.GoldSymbolChi
	div := func(p *float64) *float64 {
		if p == nil {
			return nil
		}
		return models.Float(*p / chiDivisor)
	}
	rec.Open = div(rec.Open)
	rec.High = div(rec.High)
	rec.Low = div(rec.Low)
	rec.Close = div(rec.Close)
	rec.AdjClose = div(rec.AdjClose)
	rec.NAV = div(rec.NAV)
	rec.BuyPrice = div(rec.BuyPrice)
	rec.SellPrice = div(rec.SellPrice)
	return rec
}

// applyChiQuote rewrites a Lượng quote for the VN.GOLD.C display symbol.
func applyChiQuote(q models.Quote) models.Quote {
	q.Symbol = models.GoldSymbolChi
	q.Open /= chiDivisor
	q.High /= chiDivisor
	q.Low /= chiDivisor
	q.Close /= chiDivisor
	q.AdjClose /= chiDivisor
	div := func(p *float64) *float64 {
		if p == nil {
			return nil
		}
		return models.Float(*p / chiDivisor)
	}
	q.NAV = div(q.NAV)
	q.BuyPrice = div(q.BuyPrice)
	q.SellPrice = div(q.SellPrice)
	return q
}
