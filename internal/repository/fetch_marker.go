package repository

import (
	"context"

	"github.com/epeers/vnmarket/internal/models"
	"github.com/epeers/vnmarket/internal/util"
)

// FetchMarker records that a date range was attempted for a symbol, so gap
// planning does not re-request dates the provider has nothing for. How (and
// whether) to mark depends on the asset type.
type FetchMarker interface {
	MarkFetched(ctx context.Context, repo *HistoricalRepository, symbol string, at models.AssetType, start, end string) (int, error)
}

// placeholderMarker writes a '{}' row for every expected trading date in the
// range. Insert-or-ignore: existing rows, real or placeholder, stay untouched.
type placeholderMarker struct{}

func (placeholderMarker) MarkFetched(ctx context.Context, repo *HistoricalRepository, symbol string, at models.AssetType, start, end string) (int, error) {
	s, err := util.ParseDate(start)
	if err != nil {
		return 0, err
	}
	e, err := util.ParseDate(end)
	if err != nil {
		return 0, err
	}

	var markers []models.HistoricalRecord
	for _, d := range util.ExpectedTradingDates(at, s, e, repo.now()) {
		markers = append(markers, models.HistoricalRecord{
			Symbol:    symbol,
			AssetType: at,
			Date:      d,
			DataJSON:  placeholderJSON,
		})
	}
	return repo.Store(ctx, markers)
}

// noopMarker declines to mark. Sparse assets re-plan gaps from real rows and
// expected trading dates instead of accumulating placeholder rows.
type noopMarker struct{}

func (noopMarker) MarkFetched(context.Context, *HistoricalRepository, string, models.AssetType, string, string) (int, error) {
	return 0, nil
}

var markers = map[models.AssetType]FetchMarker{
	models.AssetTypeStock: noopMarker{},
	models.AssetTypeFund:  noopMarker{},
	models.AssetTypeIndex: noopMarker{},
	models.AssetTypeGold:  noopMarker{},
}

// markerFor selects the policy for an asset type; unknown types get the
// legacy placeholder behavior.
func markerFor(at models.AssetType) FetchMarker {
	if m, ok := markers[at]; ok {
		return m
	}
	return placeholderMarker{}
}
