package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epeers/vnmarket/internal/models"
)

func TestQuoteRowFreshWithinTTL(t *testing.T) {
	repo := NewQuoteCacheRepository(openTestDB(t))
	ctx := context.Background()

	base := time.Date(2025, 10, 3, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return base }
	require.NoError(t, repo.SetQuote(ctx, &models.Quote{
		Symbol: "FPT", AssetType: models.AssetTypeStock, Close: 98500, Date: "2025-10-03",
	}))

	// One second inside the lifetime.
	repo.now = func() time.Time { return base.Add(time.Hour - time.Second) }
	q, err := repo.GetQuote(ctx, "FPT", models.AssetTypeStock, time.Hour)
	require.NoError(t, err)
	require.NotNil(t, q)
	assert.Equal(t, 98500.0, q.Close)

	// One second past it: the row is stale, not an error.
	repo.now = func() time.Time { return base.Add(time.Hour + time.Second) }
	q, err = repo.GetQuote(ctx, "FPT", models.AssetTypeStock, time.Hour)
	require.NoError(t, err)
	assert.Nil(t, q)
}

func TestQuoteRowAbsent(t *testing.T) {
	repo := NewQuoteCacheRepository(openTestDB(t))
	q, err := repo.GetQuote(context.Background(), "NOPE", models.AssetTypeStock, time.Hour)
	require.NoError(t, err)
	assert.Nil(t, q)
}

func TestQuoteRowReplacedOnRewrite(t *testing.T) {
	repo := NewQuoteCacheRepository(openTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.SetQuote(ctx, &models.Quote{Symbol: "FPT", AssetType: models.AssetTypeStock, Close: 98000}))
	require.NoError(t, repo.SetQuote(ctx, &models.Quote{Symbol: "FPT", AssetType: models.AssetTypeStock, Close: 99000}))

	q, err := repo.GetQuote(ctx, "FPT", models.AssetTypeStock, time.Hour)
	require.NoError(t, err)
	require.NotNil(t, q)
	assert.Equal(t, 99000.0, q.Close)
}

func TestSearchResultsRoundtripAndStaleness(t *testing.T) {
	repo := NewQuoteCacheRepository(openTestDB(t))
	ctx := context.Background()

	base := time.Date(2025, 10, 3, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return base }
	stored := []models.SearchResult{
		{Symbol: "FPT", Name: "FPT Corporation", AssetType: models.AssetTypeStock},
		{Symbol: "FPTS", Name: "FPT Securities", AssetType: models.AssetTypeStock},
	}
	require.NoError(t, repo.SetSearchResults(ctx, "FPT", stored))

	results, err := repo.GetSearchResults(ctx, "FPT", 30*time.Minute)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "FPT", results[0].Symbol)

	repo.now = func() time.Time { return base.Add(31 * time.Minute) }
	results, err = repo.GetSearchResults(ctx, "FPT", 30*time.Minute)
	require.NoError(t, err)
	assert.Nil(t, results)
}

func TestCleanupExpiredSweepsOldRows(t *testing.T) {
	repo := NewQuoteCacheRepository(openTestDB(t))
	ctx := context.Background()

	base := time.Date(2025, 10, 3, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return base.Add(-2 * time.Hour) }
	require.NoError(t, repo.SetQuote(ctx, &models.Quote{Symbol: "OLD", AssetType: models.AssetTypeStock}))
	require.NoError(t, repo.SetSearchResults(ctx, "OLD", []models.SearchResult{{Symbol: "OLD"}}))

	repo.now = func() time.Time { return base }
	require.NoError(t, repo.SetQuote(ctx, &models.Quote{Symbol: "NEW", AssetType: models.AssetTypeStock}))

	removed, err := repo.CleanupExpired(ctx, time.Hour, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	q, err := repo.GetQuote(ctx, "NEW", models.AssetTypeStock, time.Hour)
	require.NoError(t, err)
	assert.NotNil(t, q)
}
